package notification

import "time"

// Type categorizes a feed record.
type Type string

const (
	TypeCompliance Type = "compliance"
	TypeInvoice    Type = "invoice"
	TypeCampaign   Type = "campaign"
	TypeCommunity  Type = "community"
	TypeSystem     Type = "system"
)

// Valid reports whether t is a known category.
func (t Type) Valid() bool {
	switch t {
	case TypeCompliance, TypeInvoice, TypeCampaign, TypeCommunity, TypeSystem:
		return true
	}
	return false
}

// Priority orders records for display emphasis.
type Priority string

const (
	PriorityHigh   Priority = "high"
	PriorityMedium Priority = "medium"
	PriorityLow    Priority = "low"
)

// Valid reports whether p is a known priority.
func (p Priority) Valid() bool {
	switch p {
	case PriorityHigh, PriorityMedium, PriorityLow:
		return true
	}
	return false
}

// Record is one entry in the feed. IDs combine creation time with entropy and
// are unique within the store.
type Record struct {
	ID        string         `json:"id"`
	Type      Type           `json:"type"`
	Title     string         `json:"title"`
	Message   string         `json:"message"`
	Timestamp time.Time      `json:"timestamp"`
	Read      bool           `json:"read"`
	Priority  Priority       `json:"priority"`
	ActionURL string         `json:"action_url,omitempty"`
	Metadata  map[string]any `json:"metadata,omitempty"`
}

// clone detaches the metadata map so holders of the copy cannot reach the
// original's state.
func (r Record) clone() Record {
	if r.Metadata != nil {
		meta := make(map[string]any, len(r.Metadata))
		for k, v := range r.Metadata {
			meta[k] = v
		}
		r.Metadata = meta
	}
	return r
}

// Draft carries the caller-supplied fields of a new record; id, timestamp and
// read state are assigned by the store.
type Draft struct {
	Type      Type           `json:"type"`
	Title     string         `json:"title"`
	Message   string         `json:"message"`
	Priority  Priority       `json:"priority"`
	ActionURL string         `json:"action_url,omitempty"`
	Metadata  map[string]any `json:"metadata,omitempty"`
}

// Per-type defaults applied by the convenience constructors.
var typeDefaults = map[Type]struct {
	priority  Priority
	actionURL string
}{
	TypeCompliance: {PriorityHigh, "/compliance"},
	TypeInvoice:    {PriorityHigh, "/invoices"},
	TypeCampaign:   {PriorityMedium, "/marketing"},
	TypeCommunity:  {PriorityLow, "/community"},
	TypeSystem:     {PriorityMedium, ""},
}
