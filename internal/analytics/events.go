package analytics

import "time"

type Outcome string

const (
	OutcomeRewritten     Outcome = "rewritten"
	OutcomeUnchanged     Outcome = "unchanged"
	OutcomeNotReady      Outcome = "not_ready"
	OutcomeUnknownParser Outcome = "unknown_parser"
	OutcomeParserError   Outcome = "parser_error"
)

// RewriteEvent records one query passing through the rewriter.
type RewriteEvent struct {
	Query     string    `json:"query"`
	Rewritten string    `json:"rewritten"`
	Phrases   []string  `json:"phrases,omitempty"`
	Parser    string    `json:"parser,omitempty"`
	Version   uint64    `json:"version"`
	Outcome   Outcome   `json:"outcome"`
	LatencyUs int64     `json:"latency_us"`
	CacheHit  bool      `json:"cache_hit"`
	RequestID string    `json:"request_id,omitempty"`
	Timestamp time.Time `json:"timestamp"`
}
