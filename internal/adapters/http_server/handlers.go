// internal/adapters/http_server/handlers.go
package httpserver

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog/log"

	"placefinder/internal/adapters/observability"
	"placefinder/internal/app"
	"placefinder/internal/domain"
)

const maxBodyBytes = 64 << 10

type Handlers struct {
	S       *app.SearchService
	Limiter domain.RateLimiter // nil disables inbound limiting
}

type searchRequest struct {
	Message   string `json:"message"`
	Query     string `json:"query"` // older clients
	OpenFirst bool   `json:"open_first"`
}

type errorBody struct {
	Error string      `json:"error"`
	Kind  domain.Kind `json:"kind"`
}

func (s *Server) MountHandlers(h *Handlers) {
	s.mux.Get("/healthz", func(w http.ResponseWriter, r *http.Request) { w.WriteHeader(200); _, _ = w.Write([]byte("ok")) })
	s.mux.Group(func(r chi.Router) {
		if h.Limiter != nil {
			r.Use(RateLimit(h.Limiter))
		}
		r.Post("/api/search", h.search)
		r.Post("/api/execute", h.search)
	})
}

func (h *Handlers) search(w http.ResponseWriter, r *http.Request) {
	var req searchRequest
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	if err := dec.Decode(&req); err != nil && !errors.Is(err, io.EOF) {
		writeError(w, domain.InvalidInput("Invalid JSON request body"))
		return
	}
	msg := req.Message
	if strings.TrimSpace(msg) == "" {
		msg = req.Query
	}

	res, err := h.S.Search(r.Context(), msg, app.SearchOptions{OpenFirst: req.OpenFirst})
	if err != nil {
		writeError(w, err)
		return
	}
	log.Debug().
		Str("query", res.Params.Query).
		Str("near", res.Params.Near).
		Int("total", res.Response.Total).
		Msg("search ok")
	writeJSON(w, http.StatusOK, res.Response)
}

// statusFor maps a pipeline failure to its HTTP status; provider timeouts are 504.
func statusFor(err error) int {
	switch domain.KindOf(err) {
	case domain.KindInvalidInput:
		return http.StatusBadRequest
	case domain.KindConfiguration:
		return http.StatusInternalServerError
	case domain.KindExtraction, domain.KindSearch:
		if domain.IsTimeout(err) {
			return http.StatusGatewayTimeout
		}
		return http.StatusBadGateway
	case domain.KindRateLimited:
		return http.StatusTooManyRequests
	default:
		return http.StatusInternalServerError
	}
}

func writeError(w http.ResponseWriter, err error) {
	kind := domain.KindOf(err)
	status := statusFor(err)
	msg := domain.MessageOf(err)
	if kind == domain.KindInternal {
		msg = "internal error"
	}

	ev := log.Warn()
	if status >= 500 {
		ev = log.Error()
	}
	ev.Err(err).Str("kind", string(kind)).Int("status", status).Msg("search failed")
	observability.ObservePipelineFailure(string(kind))

	writeJSON(w, status, errorBody{Error: msg, Kind: kind})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	body, err := json.Marshal(v)
	if err != nil {
		log.Error().Err(err).Msg("marshal response failed")
		http.Error(w, `{"error":"internal error","kind":"internal_error"}`, http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if _, err := w.Write(body); err != nil {
		log.Error().Err(err).Msg("write response body failed")
	}
}
