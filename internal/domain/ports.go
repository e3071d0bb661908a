package domain

import (
	"context"
	"time"
)

// GenerationRequest is one constrained-output call to a language model.
type GenerationRequest struct {
	SystemInstruction string
	UserMessage       string
	// ResponseSchema is a JSON-schema document describing the reply object.
	ResponseSchema map[string]any
}

// Generator returns the raw text the model produced.
type Generator interface {
	Generate(ctx context.Context, req GenerationRequest) (string, error)
}

type Extractor interface {
	Extract(ctx context.Context, message string) (ParsedQuery, error)
}

type PlaceSearcher interface {
	Search(ctx context.Context, params ParsedQuery) (SearchResponse, error)
}

// RateDecision is what an inbound limiter tells the HTTP layer.
type RateDecision struct {
	Allowed   bool
	Limit     int
	Remaining int
	Reset     time.Time
}

type RateLimiter interface {
	Allow(ctx context.Context, key string) (RateDecision, error)
}
