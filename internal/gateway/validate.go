package gateway

import (
	"errors"

	"github.com/j-veylop/claude-usage-dashboard/internal/models"
)

// Field limits, in bytes.
const (
	maxStringLen = 256
	maxCwdLen    = 4096
)

var (
	errSessionRequired = errors.New("session_id is required")
	errHostRequired    = errors.New("hostname is required")
	errSessionTooLong  = errors.New("session_id too long")
	errHostTooLong     = errors.New("hostname too long")
	errCwdTooLong      = errors.New("cwd too long")
	errNegativeTokens  = errors.New("token counts must be non-negative")
)

// validateReport returns the first rule the report breaks. The error text is
// the response body.
func validateReport(r *models.TokenReport) error {
	switch {
	case r.SessionID == "":
		return errSessionRequired
	case r.Hostname == "":
		return errHostRequired
	case len(r.SessionID) > maxStringLen:
		return errSessionTooLong
	case len(r.Hostname) > maxStringLen:
		return errHostTooLong
	case r.Cwd != nil && len(*r.Cwd) > maxCwdLen:
		return errCwdTooLong
	case r.InputTokens < 0 || r.OutputTokens < 0 ||
		r.CacheCreationInputTokens < 0 || r.CacheReadInputTokens < 0:
		return errNegativeTokens
	}
	return nil
}
