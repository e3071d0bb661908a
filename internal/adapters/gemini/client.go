// internal/adapters/gemini/client.go
package gemini

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/rs/zerolog/log"
	"google.golang.org/genai"

	"placefinder/internal/adapters/observability"
	"placefinder/internal/domain"
)

const DefaultModel = "gemini-2.0-flash"

type Options struct {
	Model       string
	Timeout     time.Duration // per attempt; 0 means 20s
	MaxRetries  int           // extra attempts on 429/5xx/network errors
	Temperature float32
	BaseURL     string // override for tests and proxies
	HTTPClient  *http.Client
}

// Client is a domain.Generator backed by the Gemini API.
type Client struct {
	models  *genai.Models
	model   string
	timeout time.Duration
	retries int
	temp    float32
}

func New(ctx context.Context, key string, opts Options) (*Client, error) {
	if key == "" {
		return nil, fmt.Errorf("API key is required")
	}
	if opts.Model == "" {
		opts.Model = DefaultModel
	}
	if opts.Timeout <= 0 {
		opts.Timeout = 20 * time.Second
	}
	if opts.MaxRetries < 0 {
		opts.MaxRetries = 0
	}
	cfg := &genai.ClientConfig{
		APIKey:     key,
		Backend:    genai.BackendGeminiAPI,
		HTTPClient: opts.HTTPClient,
	}
	if opts.BaseURL != "" {
		cfg.HTTPOptions = genai.HTTPOptions{BaseURL: opts.BaseURL}
	}
	gc, err := genai.NewClient(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("genai client: %w", err)
	}
	return &Client{
		models:  gc.Models,
		model:   opts.Model,
		timeout: opts.Timeout,
		retries: opts.MaxRetries,
		temp:    opts.Temperature,
	}, nil
}

// Generate asks the model for a JSON reply constrained by req.ResponseSchema.
// Transient provider failures are retried; everything else is returned as is.
func (c *Client) Generate(ctx context.Context, req domain.GenerationRequest) (string, error) {
	cfg := &genai.GenerateContentConfig{
		Temperature:      genai.Ptr(c.temp),
		ResponseMIMEType: "application/json",
		ResponseSchema:   ToSchema(req.ResponseSchema),
	}
	if req.SystemInstruction != "" {
		cfg.SystemInstruction = &genai.Content{Parts: []*genai.Part{{Text: req.SystemInstruction}}}
	}

	attempt := 0
	op := func() (string, error) {
		attempt++
		actx, cancel := context.WithTimeout(ctx, c.timeout)
		defer cancel()

		start := time.Now()
		resp, err := c.models.GenerateContent(actx, c.model, genai.Text(req.UserMessage), cfg)
		observability.ObserveExternal("gemini", "generate_content", statusOf(err), time.Since(start))
		if err != nil {
			if ctx.Err() != nil || domain.IsTimeout(err) || !transient(err) {
				return "", backoff.Permanent(err)
			}
			log.Warn().Err(err).Int("attempt", attempt).Str("model", c.model).Msg("gemini transient failure")
			return "", err
		}
		return resp.Text(), nil
	}

	eb := backoff.NewExponentialBackOff()
	eb.InitialInterval = 200 * time.Millisecond
	eb.MaxElapsedTime = 0
	b := backoff.WithContext(backoff.WithMaxRetries(eb, uint64(c.retries)), ctx)

	text, err := backoff.RetryWithData(op, b)
	if err != nil {
		if domain.IsTimeout(err) {
			return "", domain.ExtractionError("model request timed out", err)
		}
		return "", domain.ExtractionError("AI translation request failed", err)
	}
	return text, nil
}

// ToSchema converts a flat JSON-schema document into the provider's schema type.
func ToSchema(doc map[string]any) *genai.Schema {
	if doc == nil {
		return nil
	}
	s := &genai.Schema{}
	if t, ok := doc["type"].(string); ok {
		s.Type = genai.Type(strings.ToUpper(t))
	}
	if d, ok := doc["description"].(string); ok {
		s.Description = d
	}
	if p, ok := doc["pattern"].(string); ok {
		s.Pattern = p
	}
	if props, ok := doc["properties"].(map[string]any); ok {
		s.Properties = make(map[string]*genai.Schema, len(props))
		for name, p := range props {
			if pm, ok := p.(map[string]any); ok {
				s.Properties[name] = ToSchema(pm)
			}
		}
	}
	switch req := doc["required"].(type) {
	case []string:
		s.Required = append(s.Required, req...)
	case []any:
		for _, r := range req {
			if name, ok := r.(string); ok {
				s.Required = append(s.Required, name)
			}
		}
	}
	return s
}

func apiError(err error) (genai.APIError, bool) {
	var ae genai.APIError
	if errors.As(err, &ae) {
		return ae, true
	}
	var pae *genai.APIError
	if errors.As(err, &pae) && pae != nil {
		return *pae, true
	}
	return genai.APIError{}, false
}

// transient: rate limits, server-side failures and plain network errors.
func transient(err error) bool {
	ae, ok := apiError(err)
	if !ok {
		return true
	}
	return ae.Code == http.StatusTooManyRequests || ae.Code >= 500
}

func statusOf(err error) int {
	if err == nil {
		return http.StatusOK
	}
	if ae, ok := apiError(err); ok {
		return ae.Code
	}
	return 0
}
