package usage

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/j-veylop/claude-usage-dashboard/internal/models"
)

const extraUsageKey = "extra_usage"

type bucketKey struct {
	key   string
	label string
}

// bucketKeys lists the recognized response keys in display order.
var bucketKeys = []bucketKey{
	{"five_hour", "per 5 hours"},
	{"seven_day", "per 7 days"},
	{"seven_day_sonnet", "Sonnet"},
	{"seven_day_opus", "Opus"},
	{"seven_day_cowork", "Code"},
	{"seven_day_oauth_apps", "OAuth"},
	{extraUsageKey, "Extra"},
}

// Labels returns every bucket label the fetcher can produce, in order.
func Labels() []string {
	out := make([]string, len(bucketKeys))
	for i, k := range bucketKeys {
		out[i] = k.label
	}
	return out
}

// parseBuckets extracts the recognized buckets from a usage response body.
// Unknown keys are ignored. A bucket without a numeric utilization, or with
// one that is negative or not finite, is dropped.
func parseBuckets(body []byte) ([]models.UsageBucket, error) {
	var doc map[string]json.RawMessage
	if err := json.Unmarshal(body, &doc); err != nil {
		return nil, err
	}
	if doc == nil {
		return nil, fmt.Errorf("expected a JSON object")
	}

	var buckets []models.UsageBucket
	for _, k := range bucketKeys {
		raw, ok := doc[k.key]
		if !ok {
			continue
		}
		var entry map[string]any
		if err := json.Unmarshal(raw, &entry); err != nil || entry == nil {
			continue
		}

		util, ok := entry["utilization"].(float64)
		if !ok {
			continue
		}

		b := models.UsageBucket{Label: k.label, Utilization: util}
		if k.key == extraUsageKey {
			if enabled, _ := entry["is_enabled"].(bool); !enabled {
				continue
			}
		} else if s, ok := entry["resets_at"].(string); ok {
			b.ResetsAt = parseResetsAt(s)
		}

		if !b.Valid() {
			continue
		}
		buckets = append(buckets, b)
	}
	return buckets, nil
}

func parseResetsAt(s string) *time.Time {
	t, err := time.Parse(time.RFC3339Nano, s)
	if err != nil {
		return nil
	}
	t = t.UTC()
	return &t
}
