// internal/adapters/foursquare/client.go
package foursquare

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/rs/zerolog/log"
	"golang.org/x/time/rate"

	"placefinder/internal/adapters/observability"
	"placefinder/internal/domain"
)

const DefaultBaseURL = "https://api.foursquare.com/v3"

// Fixed search parameters sent with every request.
const (
	SearchFields = "fsq_id,name,location,categories,rating,price,hours,description,stats"
	SearchSort   = "RATING"
	SearchLimit  = 10
)

type Options struct {
	Timeout    time.Duration // per attempt; 0 means 10s
	RPS        int           // client-side rate limit; 0 means 5
	MaxRetries int           // extra attempts on 429/5xx/network errors; 0 disables
	HTTPClient *http.Client
}

type Client struct {
	base    string
	hc      *http.Client
	key     string
	rl      *rate.Limiter
	retries int
}

func New(base, key string, opts Options) (*Client, error) {
	if key == "" {
		return nil, fmt.Errorf("API key is required")
	}
	if base == "" {
		base = DefaultBaseURL
	}
	if opts.RPS <= 0 {
		opts.RPS = 5
	}
	if opts.Timeout <= 0 {
		opts.Timeout = 10 * time.Second
	}
	if opts.MaxRetries < 0 {
		opts.MaxRetries = 0
	}
	hc := opts.HTTPClient
	if hc == nil {
		hc = &http.Client{Timeout: opts.Timeout}
	}
	return &Client{
		base:    strings.TrimRight(base, "/"),
		hc:      hc,
		key:     key,
		rl:      rate.NewLimiter(rate.Limit(opts.RPS), opts.RPS),
		retries: opts.MaxRetries,
	}, nil
}

// BuildQuery maps extracted parameters plus the fixed defaults onto query values.
func BuildQuery(p domain.ParsedQuery) url.Values {
	v := url.Values{}
	if p.Query != "" {
		v.Set("query", p.Query)
	}
	if p.Near != "" {
		v.Set("near", p.Near)
	}
	if p.Price != nil && *p.Price != "" {
		v.Set("price", *p.Price)
	}
	if p.OpenNow != nil && *p.OpenNow {
		v.Set("open_now", "true")
	}
	v.Set("fields", SearchFields)
	v.Set("sort", SearchSort)
	v.Set("limit", strconv.Itoa(SearchLimit))
	return v
}

// Search fetches places for p and applies the minimum-rating filter the provider
// cannot express itself.
func (c *Client) Search(ctx context.Context, p domain.ParsedQuery) (domain.SearchResponse, error) {
	u := c.base + "/places/search?" + BuildQuery(p).Encode()

	var body struct {
		Results *[]domain.PlaceResult `json:"results"`
	}
	if err := c.get(ctx, u, &body); err != nil {
		return domain.SearchResponse{}, wrapErr(err)
	}
	if body.Results == nil {
		return domain.SearchResponse{}, domain.SearchError("invalid data from places API: 'results' array missing", nil)
	}

	results := domain.FilterMinRating(*body.Results, p.Rating)
	if p.Rating != nil {
		log.Debug().
			Float64("min_rating", *p.Rating).
			Int("fetched", len(*body.Results)).
			Int("kept", len(results)).
			Msg("rating filter applied")
	}
	return domain.NewSearchResponse(results), nil
}

// ---- Internals ----

var (
	ErrUnauthorized = errors.New("foursquare: unauthorized")
	ErrForbidden    = errors.New("foursquare: forbidden")
)

// StatusError is a non-success reply; Message is the provider's own text when it sent one.
type StatusError struct {
	Status  int
	Message string
}

func (e *StatusError) Error() string {
	if e.Message == "" {
		return fmt.Sprintf("status %d", e.Status)
	}
	return fmt.Sprintf("status %d: %s", e.Status, e.Message)
}

func wrapErr(err error) error {
	var se *StatusError
	switch {
	case domain.IsTimeout(err):
		return domain.SearchError("places API request timed out", err)
	case errors.Is(err, ErrUnauthorized), errors.Is(err, ErrForbidden):
		msg := "places API rejected the credentials"
		if errors.As(err, &se) && se.Message != "" {
			msg += ": " + se.Message
		}
		return domain.SearchError(msg, err)
	case errors.As(err, &se):
		msg := se.Message
		if msg == "" {
			msg = fmt.Sprintf("status %d", se.Status)
		}
		return domain.SearchError("places API request failed: "+msg, err)
	default:
		return domain.SearchError("places API request failed", err)
	}
}

// get performs a GET with client-side rate limiting, retries, and JSON decode into out.
// Retries on 429 and transient 5xx, honoring Retry-After when provided.
func (c *Client) get(ctx context.Context, u string, out any) error {
	if err := c.rl.Wait(ctx); err != nil {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		// the limiter refuses to wait past the deadline
		return fmt.Errorf("%w: %v", context.DeadlineExceeded, err)
	}

	eb := backoff.NewExponentialBackOff()
	eb.InitialInterval = 200 * time.Millisecond
	eb.RandomizationFactor = 0.5
	eb.MaxElapsedTime = 0
	hinted := &retryAfterBackOff{BackOff: eb}
	b := backoff.WithContext(backoff.WithMaxRetries(hinted, uint64(c.retries)), ctx)

	attempt := 0
	op := func() error {
		attempt++
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
		if err != nil {
			return backoff.Permanent(err)
		}
		// raw key, no Bearer prefix
		req.Header.Set("Authorization", c.key)
		req.Header.Set("Accept", "application/json")
		req.Header.Set("User-Agent", "placefinder/1.0")

		start := time.Now()
		resp, err := c.hc.Do(req)
		if err != nil {
			observability.ObserveExternal("foursquare", "places_search", 0, time.Since(start))
			if ctx.Err() != nil {
				return backoff.Permanent(ctx.Err())
			}
			log.Warn().Err(err).Int("attempt", attempt).Msg("places API transport failure")
			return err
		}
		observability.ObserveExternal("foursquare", "places_search", resp.StatusCode, time.Since(start))

		switch resp.StatusCode {
		case http.StatusOK:
			err := json.NewDecoder(resp.Body).Decode(out)
			resp.Body.Close()
			if err != nil {
				return backoff.Permanent(fmt.Errorf("decode response: %w", err))
			}
			return nil

		case http.StatusUnauthorized:
			return backoff.Permanent(fmt.Errorf("%w: %w", ErrUnauthorized, statusError(resp)))

		case http.StatusForbidden:
			return backoff.Permanent(fmt.Errorf("%w: %w", ErrForbidden, statusError(resp)))

		case http.StatusTooManyRequests, http.StatusInternalServerError,
			http.StatusBadGateway, http.StatusServiceUnavailable, http.StatusGatewayTimeout:
			hinted.next = retryAfter(resp)
			log.Warn().Int("status", resp.StatusCode).Int("attempt", attempt).Msg("places API transient failure")
			return statusError(resp)

		default:
			return backoff.Permanent(statusError(resp))
		}
	}

	return backoff.Retry(op, b)
}

// retryAfterBackOff waits for the provider's Retry-After hint once, when set,
// and otherwise defers to the wrapped policy.
type retryAfterBackOff struct {
	backoff.BackOff
	next time.Duration
}

func (r *retryAfterBackOff) NextBackOff() time.Duration {
	if d := r.next; d > 0 {
		r.next = 0
		return d
	}
	return r.BackOff.NextBackOff()
}

// statusError reads a small error body and closes it. A JSON body with a
// "message" field wins over the raw text.
func statusError(resp *http.Response) *StatusError {
	b, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
	resp.Body.Close()
	se := &StatusError{Status: resp.StatusCode}
	var payload struct {
		Message string `json:"message"`
	}
	if json.Unmarshal(b, &payload) == nil && payload.Message != "" {
		se.Message = payload.Message
	} else {
		se.Message = strings.TrimSpace(string(b))
	}
	return se
}

// retryAfter parses Retry-After header (seconds or HTTP-date). Returns 0 if absent/invalid.
func retryAfter(resp *http.Response) time.Duration {
	h := resp.Header.Get("Retry-After")
	if h == "" {
		return 0
	}
	if secs, err := strconv.Atoi(strings.TrimSpace(h)); err == nil && secs >= 0 {
		return time.Duration(secs) * time.Second
	}
	if t, err := http.ParseTime(h); err == nil {
		if d := time.Until(t); d > 0 {
			return d
		}
	}
	return 0
}
