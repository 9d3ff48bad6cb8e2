package domain

import (
	"maps"
	"slices"
	"time"
)

// Record is the serialisable snapshot of a conversation as written to the
// session store. The flow engine is never stored, only its cursor: it is
// rebuilt from the catalog graph on load.
type Record struct {
	ID         string         `json:"id"`
	FlowID     string         `json:"flow_id"`
	Current    string         `json:"current"`
	Previous   string         `json:"previous,omitempty"`
	History    []string       `json:"history,omitempty"`
	Attributes map[string]any `json:"attributes,omitempty"`
	UpdatedAt  time.Time      `json:"updated_at"`
}

// Clone returns a copy that does not share the attribute map or history.
func (r Record) Clone() Record {
	out := r
	out.History = slices.Clone(r.History)
	if r.Attributes != nil {
		out.Attributes = maps.Clone(r.Attributes)
	}
	return out
}
