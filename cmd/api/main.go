package main

import (
	"context"
	"net/http"
	"time"

	"github.com/rs/zerolog/log"

	"placefinder/internal/adapters/foursquare"
	"placefinder/internal/adapters/gemini"
	server "placefinder/internal/adapters/http_server"
	"placefinder/internal/adapters/observability"
	"placefinder/internal/adapters/ratelimit"
	"placefinder/internal/app"
	"placefinder/internal/domain"
	"placefinder/internal/shared"
)

func main() {
	ctx := context.Background()
	shared.LoadDotEnv()
	cfg := shared.Load()

	// set global logger (console in dev, JSON otherwise)
	log.Logger = observability.NewLogger(cfg.AppEnv)

	reg := observability.InitRegistry()
	observability.Serve(cfg.MetricsAddr, reg)

	// deps
	svc := app.NewSearchService(buildPipeline(ctx, cfg))
	limiter := buildLimiter(ctx, cfg)

	// http
	srv := server.New(server.Options{Timeout: cfg.RequestTimeout, TrustProxy: cfg.TrustProxy})
	srv.Mount("/metrics", observability.MetricsHandler(reg))
	srv.MountHandlers(&server.Handlers{S: svc, Limiter: limiter})

	log.Info().Str("addr", cfg.HTTPAddr).Str("rate_limit", cfg.RateLimit.String()).Msg("API listening")
	httpSrv := &http.Server{
		Addr:              cfg.HTTPAddr,
		Handler:           srv.Mux(),
		ReadHeaderTimeout: 5 * time.Second,
		WriteTimeout:      cfg.RequestTimeout + 5*time.Second,
	}

	if err := httpSrv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		log.Fatal().Err(err).Msg("http server failed")
	}
}

// buildPipeline leaves a collaborator nil when its key is missing; requests then
// fail with a configuration error.
func buildPipeline(ctx context.Context, cfg shared.Config) (domain.Extractor, domain.PlaceSearcher) {
	var (
		ex     domain.Extractor
		places domain.PlaceSearcher
	)
	if cfg.GeminiKey != "" {
		gc, err := gemini.New(ctx, cfg.GeminiKey, gemini.Options{
			Model:      cfg.GeminiModel,
			Timeout:    cfg.GeminiTimeout,
			MaxRetries: cfg.GeminiMaxRetries,
		})
		if err != nil {
			log.Fatal().Err(err).Msg("failed to initialize Gemini client")
		}
		pe, err := app.NewParameterExtractor(gc)
		if err != nil {
			log.Fatal().Err(err).Msg("failed to compile response schema")
		}
		ex = pe
	}
	if cfg.FoursquareKey != "" {
		fc, err := foursquare.New(cfg.FoursquareBase, cfg.FoursquareKey, foursquare.Options{
			Timeout:    cfg.FoursquareTimeout,
			RPS:        cfg.FoursquareRPS,
			MaxRetries: cfg.FoursquareMaxRetries,
		})
		if err != nil {
			log.Fatal().Err(err).Msg("failed to initialize Foursquare client")
		}
		places = fc
	}
	return ex, places
}

func buildLimiter(ctx context.Context, cfg shared.Config) domain.RateLimiter {
	rl := cfg.RateLimit
	if cfg.RedisAddr == "" {
		log.Info().Msg("REDIS_ADDR empty, using in-process rate limiter")
		return ratelimit.NewMemory(rl.Requests, rl.Window)
	}
	r := ratelimit.NewRedis(cfg.RedisAddr, cfg.RedisPass, cfg.RedisDB, rl.Requests, rl.Window)
	pctx, cancel := context.WithTimeout(ctx, 2*time.Second)
	defer cancel()
	if err := r.Ping(pctx); err != nil {
		// requests still fail open while redis is unreachable
		log.Warn().Err(err).Str("addr", cfg.RedisAddr).Msg("redis ping failed")
	} else {
		log.Info().Str("addr", cfg.RedisAddr).Msg("redis rate limiter ok")
	}
	return r
}
