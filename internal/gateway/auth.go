package gateway

import (
	"net/http"
	"strings"
)

const bearerPrefix = "Bearer "

// checkAuth reports whether the request carries the expected bearer secret.
func checkAuth(r *http.Request, secret string) bool {
	header := r.Header.Get("Authorization")
	if !strings.HasPrefix(header, bearerPrefix) {
		return false
	}
	return secretsEqual(header[len(bearerPrefix):], secret)
}

// secretsEqual compares in time independent of where the inputs differ. A
// length mismatch returns immediately.
func secretsEqual(got, want string) bool {
	if len(got) != len(want) {
		return false
	}
	var diff byte
	for i := 0; i < len(got); i++ {
		diff |= got[i] ^ want[i]
	}
	return diff == 0
}
