// Package worker consumes parse requests from Kafka and publishes the parsed
// dependency arcs back to a result topic.
package worker

import (
	"time"

	"github.com/Adithya-Monish-Kumar-K/Chinese-NLP-Inference-Engine/internal/depparse"
)

// ParseRequest is the Kafka payload on the request topic.
type ParseRequest struct {
	ID     string   `json:"id"`
	Tokens []string `json:"tokens"`
	Tags   []string `json:"tags"`
}

// ParseResult is published for every decoded request, including failed ones.
// Error is empty on success.
type ParseResult struct {
	ID        string        `json:"id"`
	Arcs      depparse.Arcs `json:"arcs,omitempty"`
	Parser    string        `json:"parser,omitempty"`
	BeamSize  int           `json:"beam_size,omitempty"`
	LatencyMs int64         `json:"latency_ms"`
	Error     string        `json:"error,omitempty"`
	ParsedAt  time.Time     `json:"parsed_at"`
}
