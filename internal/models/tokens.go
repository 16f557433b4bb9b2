package models

// TokenReport is the payload an external hook posts for one turn.
type TokenReport struct {
	Cwd                      *string `json:"cwd,omitempty"`
	SessionID                string  `json:"session_id"`
	Hostname                 string  `json:"hostname"`
	InputTokens              int64   `json:"input_tokens"`
	OutputTokens             int64   `json:"output_tokens"`
	CacheCreationInputTokens int64   `json:"cache_creation_input_tokens"`
	CacheReadInputTokens     int64   `json:"cache_read_input_tokens"`
}

// TotalTokens sums all four counters.
func (r TokenReport) TotalTokens() int64 {
	return r.InputTokens + r.OutputTokens + r.CacheCreationInputTokens + r.CacheReadInputTokens
}

// FilterKind names the single dimension a token query is restricted to.
type FilterKind int

const (
	// FilterNone matches every row.
	FilterNone FilterKind = iota
	// FilterHost matches rows from one hostname.
	FilterHost
	// FilterSession matches rows from one session.
	FilterSession
	// FilterProject matches rows from one working directory.
	FilterProject
)

// String returns the filter kind name.
func (k FilterKind) String() string {
	switch k {
	case FilterHost:
		return "host"
	case FilterSession:
		return "session"
	case FilterProject:
		return "project"
	default:
		return "none"
	}
}

// TokenFilter restricts a token query to at most one dimension.
type TokenFilter struct {
	Value string
	Kind  FilterKind
}

// NoFilter matches everything.
func NoFilter() TokenFilter { return TokenFilter{Kind: FilterNone} }

// HostFilter matches one hostname.
func HostFilter(hostname string) TokenFilter { return TokenFilter{Kind: FilterHost, Value: hostname} }

// SessionFilter matches one session.
func SessionFilter(sessionID string) TokenFilter {
	return TokenFilter{Kind: FilterSession, Value: sessionID}
}

// ProjectFilter matches one working directory.
func ProjectFilter(cwd string) TokenFilter { return TokenFilter{Kind: FilterProject, Value: cwd} }

// HistoryFilter picks the filter for a history query. Session wins over
// project, which wins over hostname. Empty strings mean "not given".
func HistoryFilter(hostname, sessionID, cwd string) TokenFilter {
	switch {
	case sessionID != "":
		return SessionFilter(sessionID)
	case cwd != "":
		return ProjectFilter(cwd)
	case hostname != "":
		return HostFilter(hostname)
	default:
		return NoFilter()
	}
}

// StatsFilter picks the filter for a stats query. Project wins over hostname.
func StatsFilter(hostname, cwd string) TokenFilter {
	switch {
	case cwd != "":
		return ProjectFilter(cwd)
	case hostname != "":
		return HostFilter(hostname)
	default:
		return NoFilter()
	}
}

// GranularOnly reports whether the filter's dimension is absent from the
// hourly aggregates, forcing queries onto granular rows.
func (f TokenFilter) GranularOnly() bool {
	return f.Kind == FilterSession || f.Kind == FilterProject
}
