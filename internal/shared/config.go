package shared

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/rs/zerolog/log"
)

type RateLimit struct {
	Requests int
	Window   time.Duration
}

func (r RateLimit) String() string { return fmt.Sprintf("%d/%s", r.Requests, r.Window) }

var DefaultRateLimit = RateLimit{Requests: 3, Window: 15 * time.Second}

type Config struct {
	AppEnv      string
	HTTPAddr    string
	MetricsAddr string

	GeminiKey        string
	GeminiModel      string
	GeminiTimeout    time.Duration
	GeminiMaxRetries int

	FoursquareBase       string
	FoursquareKey        string
	FoursquareTimeout    time.Duration
	FoursquareRPS        int
	FoursquareMaxRetries int

	RedisAddr string
	RedisDB   int
	RedisPass string

	RateLimit      RateLimit
	RequestTimeout time.Duration
	TrustProxy     bool
	Workers        int
}

// LoadDotEnv reads .env (or the given files) into the process environment.
// Variables already set win; a missing file is not an error.
func LoadDotEnv(files ...string) {
	if err := godotenv.Load(files...); err != nil && !errors.Is(err, os.ErrNotExist) {
		log.Warn().Err(err).Msg("could not load .env")
	}
}

func Load() Config {
	c := Config{
		AppEnv:      env("APP_ENV", "prod"),
		HTTPAddr:    env("HTTP_ADDR", ":8080"),
		MetricsAddr: env("METRICS_ADDR", ""),

		GeminiKey:        env("GEMINI_API_KEY", ""),
		GeminiModel:      env("GEMINI_MODEL", "gemini-2.0-flash"),
		GeminiTimeout:    duration("GEMINI_TIMEOUT", 20*time.Second),
		GeminiMaxRetries: atoi("GEMINI_MAX_RETRIES", 2),

		FoursquareBase:       env("FOURSQUARE_BASE_URL", "https://api.foursquare.com/v3"),
		FoursquareKey:        env("FOURSQUARE_API_KEY", ""),
		FoursquareTimeout:    duration("FOURSQUARE_TIMEOUT", 10*time.Second),
		FoursquareRPS:        atoi("FOURSQUARE_RPS", 5),
		FoursquareMaxRetries: atoi("FOURSQUARE_MAX_RETRIES", 2),

		RedisAddr: env("REDIS_ADDR", ""),
		RedisPass: env("REDIS_PASSWORD", ""),
		RedisDB:   atoi("REDIS_DB", 0),

		RateLimit:      DefaultRateLimit,
		RequestTimeout: duration("REQUEST_TIMEOUT", 30*time.Second),
		TrustProxy:     boolean("TRUST_PROXY", false),
		Workers:        atoi("BATCH_WORKERS", 4),
	}
	if v := env("RATE_LIMIT", ""); v != "" {
		rl, err := ParseRateLimit(v)
		if err != nil {
			log.Warn().Err(err).Str("default", DefaultRateLimit.String()).Msg("invalid RATE_LIMIT, using default")
		} else {
			c.RateLimit = rl
		}
	}
	if c.Workers <= 0 {
		c.Workers = 1
	}
	if c.GeminiKey == "" {
		log.Warn().Msg("GEMINI_API_KEY is empty")
	}
	if c.FoursquareKey == "" {
		log.Warn().Msg("FOURSQUARE_API_KEY is empty")
	}
	return c
}

// ParseRateLimit accepts "<requests>/<window>" where window is a unit name
// (s, min, hour) or a duration such as 15s or "15 s".
func ParseRateLimit(value string) (RateLimit, error) {
	parts := strings.Split(value, "/")
	if len(parts) != 2 {
		return RateLimit{}, fmt.Errorf("expected format <requests>/<window>, got %q", value)
	}

	requests, err := strconv.Atoi(strings.TrimSpace(parts[0]))
	if err != nil || requests <= 0 {
		return RateLimit{}, fmt.Errorf("invalid request count: %v", parts[0])
	}

	unit := strings.ToLower(strings.ReplaceAll(parts[1], " ", ""))
	var window time.Duration
	switch unit {
	case "s", "sec", "second", "seconds":
		window = time.Second
	case "m", "min", "minute", "minutes":
		window = time.Minute
	case "h", "hr", "hour", "hours":
		window = time.Hour
	default:
		d, err := time.ParseDuration(unit)
		if err != nil || d <= 0 {
			return RateLimit{}, fmt.Errorf("unsupported window: %s", parts[1])
		}
		window = d
	}
	return RateLimit{Requests: requests, Window: window}, nil
}

func env(k, def string) string {
	if v := os.Getenv(k); v != "" {
		return v
	}
	return def
}

func atoi(k string, def int) int {
	if v := os.Getenv(k); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return def
}

func boolean(k string, def bool) bool {
	if v := os.Getenv(k); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			return b
		}
	}
	return def
}

// duration reads a Go duration ("20s") or a bare number of seconds.
func duration(k string, def time.Duration) time.Duration {
	v := os.Getenv(k)
	if v == "" {
		return def
	}
	if d, err := time.ParseDuration(v); err == nil && d > 0 {
		return d
	}
	if n, err := strconv.Atoi(v); err == nil && n > 0 {
		return time.Duration(n) * time.Second
	}
	log.Warn().Str("key", k).Str("value", v).Msg("invalid duration, using default")
	return def
}
