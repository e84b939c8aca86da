package model

import "time"

// Tick is a single executed trade report as normalized by a collector,
// regardless of the originating venue's wire shape (streaming push, polled
// REST during hours, or polled end-of-day).
type Tick struct {
	Venue    string    `json:"venue"`
	Symbol   string    `json:"symbol"`
	Price    float64   `json:"price"`             // > 0
	Quantity float64   `json:"quantity"`          // >= 0
	TS       time.Time `json:"ts"`                // UTC, exchange-canonical when known
	SideHint string    `json:"side_hint,omitempty"`
}

// Key returns "venue:symbol".
func (t *Tick) Key() string {
	return t.Venue + ":" + t.Symbol
}
