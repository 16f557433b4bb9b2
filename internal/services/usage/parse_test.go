package usage

import (
	"testing"
	"time"
)

func TestParseBuckets(t *testing.T) {
	body := `{
		"five_hour": {"utilization": 12, "resets_at": "2026-03-10T17:00:00.123+02:00"},
		"seven_day": {"utilization": "high"},
		"seven_day_sonnet": {"utilization": -4},
		"seven_day_opus": {"utilization": 7, "resets_at": "tomorrow"},
		"seven_day_cowork": null,
		"seven_day_oauth_apps": {"utilization": 0},
		"extra_usage": {"utilization": 55, "is_enabled": true, "resets_at": "2026-03-10T17:00:00Z"},
		"iguana_necktie": {"utilization": 99}
	}`

	buckets, err := parseBuckets([]byte(body))
	if err != nil {
		t.Fatalf("parseBuckets() failed: %v", err)
	}

	wantLabels := []string{"per 5 hours", "Opus", "OAuth", "Extra"}
	if len(buckets) != len(wantLabels) {
		t.Fatalf("got %d buckets (%+v), want %d", len(buckets), buckets, len(wantLabels))
	}
	for i, want := range wantLabels {
		if buckets[i].Label != want {
			t.Errorf("bucket %d label = %q, want %q", i, buckets[i].Label, want)
		}
	}

	wantReset := time.Date(2026, 3, 10, 15, 0, 0, 123_000_000, time.UTC)
	if buckets[0].ResetsAt == nil || !buckets[0].ResetsAt.Equal(wantReset) {
		t.Errorf("five_hour resets_at = %v, want %v", buckets[0].ResetsAt, wantReset)
	}
	if buckets[1].ResetsAt != nil {
		t.Errorf("unparseable resets_at should be dropped, got %v", buckets[1].ResetsAt)
	}
	if buckets[3].ResetsAt != nil {
		t.Errorf("extra usage never carries a reset time, got %v", buckets[3].ResetsAt)
	}
}

func TestParseBuckets_ExtraUsageRequiresEnabled(t *testing.T) {
	tests := []struct {
		name string
		body string
	}{
		{"Disabled", `{"extra_usage": {"utilization": 5, "is_enabled": false}}`},
		{"Missing", `{"extra_usage": {"utilization": 5}}`},
		{"NotBool", `{"extra_usage": {"utilization": 5, "is_enabled": "true"}}`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			buckets, err := parseBuckets([]byte(tt.body))
			if err != nil {
				t.Fatalf("parseBuckets() failed: %v", err)
			}
			if len(buckets) != 0 {
				t.Errorf("expected no buckets, got %+v", buckets)
			}
		})
	}
}

func TestParseBuckets_NotAnObject(t *testing.T) {
	for _, body := range []string{`[]`, `null`, `{`} {
		if _, err := parseBuckets([]byte(body)); err == nil {
			t.Errorf("parseBuckets(%s) should fail", body)
		}
	}
}

func TestLabels(t *testing.T) {
	labels := Labels()
	if len(labels) != 7 || labels[0] != "per 5 hours" || labels[6] != "Extra" {
		t.Errorf("Labels() = %v", labels)
	}
}
