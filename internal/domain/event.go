package domain

import (
	"strings"
	"time"
)

// Event is a news-linked causal factor anchoring feature extraction.
// Created upstream; read-only to the extractor.
type Event struct {
	EventID   string         `json:"event_id"`          // opaque identifier, PRIMARY KEY
	Ticker    string         `json:"ticker,omitempty"`  // associated instrument, may be empty
	Timestamp time.Time      `json:"timestamp"`         // event time, UTC
	Payload   map[string]any `json:"payload,omitempty"` // upstream attributes, passed through to the feature record
}

// payloadTickerKeys are checked in order when the event carries no ticker.
var payloadTickerKeys = []string{"ticker", "symbol"}

// ResolveTicker returns the instrument for the event: the explicit ticker,
// then a ticker/symbol payload attribute, then fallback.
func (e *Event) ResolveTicker(fallback string) string {
	if t := strings.TrimSpace(e.Ticker); t != "" {
		return strings.ToUpper(t)
	}
	for _, k := range payloadTickerKeys {
		if v, ok := e.Payload[k].(string); ok && strings.TrimSpace(v) != "" {
			return strings.ToUpper(strings.TrimSpace(v))
		}
	}
	return strings.ToUpper(fallback)
}

// Clone returns a copy with its own payload map.
func (e Event) Clone() Event {
	c := e
	if e.Payload != nil {
		c.Payload = make(map[string]any, len(e.Payload))
		for k, v := range e.Payload {
			c.Payload[k] = v
		}
	}
	return c
}
