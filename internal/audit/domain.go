// Package audit records and serves the security audit trail: one entry per
// authorization decision, written asynchronously and never read by the
// decision path.
package audit

import "time"

// Decision outcomes.
const (
	OutcomeAllow = "ALLOW"
	OutcomeDeny  = "DENY"
)

// Entry is one persisted authorization decision.
type Entry struct {
	ID        int64     `json:"id"`
	Timestamp time.Time `json:"timestamp"`
	Username  string    `json:"username"`
	Resource  string    `json:"resource"`
	Action    string    `json:"action"`
	Context   string    `json:"context,omitempty"`
	Outcome   string    `json:"outcome"`
	Details   string    `json:"details,omitempty"`
}

// ListFilters narrows and pages the audit listing.
type ListFilters struct {
	From     time.Time
	To       time.Time
	Username string
	Outcome  string
	Page     int
	PageSize int
}

// PagingInfo describes the page returned by List.
type PagingInfo struct {
	Page     int  `json:"page"`
	PageSize int  `json:"pageSize"`
	HasNext  bool `json:"hasNext"`
}
