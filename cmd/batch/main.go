// Command batch runs the search pipeline over a file of messages, one per line,
// and prints one JSON object per message in input order.
package main

import (
	"bufio"
	"context"
	"encoding/json"
	"flag"
	"io"
	"os"
	"strings"
	"sync"

	"github.com/rs/zerolog/log"
	"golang.org/x/sync/semaphore"

	"placefinder/internal/adapters/foursquare"
	"placefinder/internal/adapters/gemini"
	"placefinder/internal/adapters/observability"
	"placefinder/internal/app"
	"placefinder/internal/domain"
	"placefinder/internal/shared"
)

type line struct {
	Message string               `json:"message"`
	Params  *domain.ParsedQuery  `json:"params,omitempty"`
	Results []domain.PlaceResult `json:"results,omitempty"`
	Total   int                  `json:"total"`
	Error   string               `json:"error,omitempty"`
	Kind    domain.Kind          `json:"kind,omitempty"`
}

func main() {
	in := flag.String("in", "-", "file with one message per line, - for stdin")
	openFirst := flag.Bool("open-first", false, "list places that are open now first")
	flag.Parse()

	ctx := context.Background()
	shared.LoadDotEnv()
	cfg := shared.Load()

	// stdout carries the results, logs go to stderr
	log.Logger = observability.NewLoggerTo(cfg.AppEnv, os.Stderr)

	msgs, err := readMessages(*in)
	if err != nil {
		log.Fatal().Err(err).Str("in", *in).Msg("read messages failed")
	}
	log.Info().Int("messages", len(msgs)).Int("workers", cfg.Workers).Msg("batch starting")

	gc, err := gemini.New(ctx, cfg.GeminiKey, gemini.Options{
		Model:      cfg.GeminiModel,
		Timeout:    cfg.GeminiTimeout,
		MaxRetries: cfg.GeminiMaxRetries,
	})
	if err != nil {
		log.Fatal().Err(err).Msg("failed to initialize Gemini client")
	}
	ex, err := app.NewParameterExtractor(gc)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to compile response schema")
	}
	fc, err := foursquare.New(cfg.FoursquareBase, cfg.FoursquareKey, foursquare.Options{
		Timeout:    cfg.FoursquareTimeout,
		RPS:        cfg.FoursquareRPS,
		MaxRetries: cfg.FoursquareMaxRetries,
	})
	if err != nil {
		log.Fatal().Err(err).Msg("failed to initialize Foursquare client")
	}

	out := run(ctx, app.NewSearchService(ex, fc), msgs, cfg.Workers, app.SearchOptions{OpenFirst: *openFirst})

	enc := json.NewEncoder(os.Stdout)
	failed := 0
	for _, l := range out {
		if l.Error != "" {
			failed++
		}
		if err := enc.Encode(l); err != nil {
			log.Fatal().Err(err).Msg("write output failed")
		}
	}
	log.Info().Int("messages", len(out)).Int("failed", failed).Msg("batch completed")
}

func run(ctx context.Context, svc *app.SearchService, msgs []string, workers int, opts app.SearchOptions) []line {
	out := make([]line, len(msgs))
	sem := semaphore.NewWeighted(int64(workers))
	var wg sync.WaitGroup

	for i, msg := range msgs {
		// acquire before launching the goroutine; release inside it
		if err := sem.Acquire(ctx, 1); err != nil {
			log.Fatal().Err(err).Msg("semaphore acquire failed")
		}

		wg.Add(1)
		go func(i int, msg string) {
			defer wg.Done()
			defer sem.Release(1)

			l := line{Message: msg}
			res, err := svc.Search(ctx, msg, opts)
			if err != nil {
				l.Error, l.Kind = domain.MessageOf(err), domain.KindOf(err)
				log.Warn().Err(err).Int("line", i+1).Msg("search failed")
			} else {
				l.Params = &res.Params
				l.Results, l.Total = res.Response.Results, res.Response.Total
			}
			out[i] = l
		}(i, msg)
	}

	wg.Wait()
	return out
}

func readMessages(path string) ([]string, error) {
	var r io.Reader = os.Stdin
	if path != "-" {
		f, err := os.Open(path)
		if err != nil {
			return nil, err
		}
		defer f.Close()
		r = f
	}
	var msgs []string
	sc := bufio.NewScanner(r)
	for sc.Scan() {
		if s := strings.TrimSpace(sc.Text()); s != "" {
			msgs = append(msgs, s)
		}
	}
	return msgs, sc.Err()
}
