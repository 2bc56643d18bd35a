package domain

import "encoding/json"

// Card is the chat-card payload delivered to a webhook target.
// All three sections are kept as raw JSON: the service is a transparent
// carrier and applies no schema validation to card content. A card is
// assembled once by the caller and never mutated after submission.
type Card struct {
	// Config carries card-level settings (e.g. wide-screen mode).
	Config json.RawMessage `json:"config,omitempty"`
	// Header carries the card title block.
	Header json.RawMessage `json:"header,omitempty"`
	// Elements is the free-form content tree: strings, numbers, booleans,
	// nested objects and arrays, in whatever shape the chat platform expects.
	Elements json.RawMessage `json:"elements,omitempty"`
}

// Size returns the number of bytes the card occupies once serialized.
// Used only to enforce the transport payload cap, never to inspect content.
func (c Card) Size() int {
	b, err := json.Marshal(c)
	if err != nil {
		return 0
	}
	return len(b)
}

// IsEmpty reports whether the card has no sections at all.
func (c Card) IsEmpty() bool {
	return len(c.Config) == 0 && len(c.Header) == 0 && len(c.Elements) == 0
}
