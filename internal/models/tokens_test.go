package models

import "testing"

func TestHistoryFilter(t *testing.T) {
	tests := []struct {
		name             string
		host, sess, cwd  string
		wantKind         FilterKind
		wantValue        string
		wantGranularOnly bool
	}{
		{"None", "", "", "", FilterNone, "", false},
		{"Host", "box", "", "", FilterHost, "box", false},
		{"ProjectBeatsHost", "box", "", "/src", FilterProject, "/src", true},
		{"SessionBeatsAll", "box", "s1", "/src", FilterSession, "s1", true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := HistoryFilter(tt.host, tt.sess, tt.cwd)
			if f.Kind != tt.wantKind || f.Value != tt.wantValue {
				t.Errorf("HistoryFilter() = %+v", f)
			}
			if f.GranularOnly() != tt.wantGranularOnly {
				t.Errorf("GranularOnly() = %v", f.GranularOnly())
			}
		})
	}
}

func TestStatsFilter(t *testing.T) {
	if f := StatsFilter("box", "/src"); f.Kind != FilterProject {
		t.Errorf("cwd should take precedence, got %v", f.Kind)
	}
	if f := StatsFilter("box", ""); f.Kind != FilterHost || f.Value != "box" {
		t.Errorf("StatsFilter(host) = %+v", f)
	}
	if f := StatsFilter("", ""); f.Kind != FilterNone {
		t.Errorf("StatsFilter() = %+v", f)
	}
}

func TestTokenReport_TotalTokens(t *testing.T) {
	r := TokenReport{InputTokens: 1, OutputTokens: 2, CacheCreationInputTokens: 3, CacheReadInputTokens: 4}
	if r.TotalTokens() != 10 {
		t.Errorf("TotalTokens() = %d", r.TotalTokens())
	}
}
