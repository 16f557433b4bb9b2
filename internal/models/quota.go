// Package models defines data structures and domain types.
package models

import (
	"math"
	"time"
)

// UsageBucket is one quota dimension returned by the usage API, for example
// the rolling five-hour window or the weekly Opus allowance.
type UsageBucket struct {
	ResetsAt    *time.Time `json:"resets_at"`
	Label       string     `json:"label"`
	Utilization float64    `json:"utilization"`
}

// Valid reports whether the utilization may be persisted.
func (b UsageBucket) Valid() bool {
	return !math.IsNaN(b.Utilization) && !math.IsInf(b.Utilization, 0) && b.Utilization >= 0
}

// UsageData is the result of one fetch. Exactly one of Buckets or Error is
// meaningful; a failed fetch carries no buckets.
type UsageData struct {
	FetchedAt time.Time     `json:"fetched_at"`
	Error     string        `json:"error,omitempty"`
	Buckets   []UsageBucket `json:"buckets"`
}

// OK reports whether the fetch succeeded.
func (d UsageData) OK() bool {
	return d.Error == ""
}

// Unavailable returns the user-facing message for a failed fetch.
func (d UsageData) Unavailable() string {
	if d.Error == "" {
		return ""
	}
	return "usage data unavailable: " + d.Error
}

// Bucket returns the bucket with the given label.
func (d UsageData) Bucket(label string) (UsageBucket, bool) {
	for _, b := range d.Buckets {
		if b.Label == label {
			return b, true
		}
	}
	return UsageBucket{}, false
}
