// internal/sources/fetcher.go
package sources

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/sony/gobreaker"

	"github.com/javajoker/canva-seat-ledger/internal/apperr"
)

const DefaultTimeout = 4 * time.Second

type BreakerConfig struct {
	ConsecutiveFailures uint32
	OpenTimeout         time.Duration
}

var DefaultBreakerConfig = BreakerConfig{ConsecutiveFailures: 3, OpenTimeout: 30 * time.Second}

// Result is what a fetch produced. Stale means every source failed and the
// payload came from the cache.
type Result struct {
	Source    string                 `json:"source"`
	FetchedAt time.Time              `json:"fetched_at"`
	Payload   []byte                 `json:"-"`
	Stale     bool                   `json:"stale"`
	Failures  []apperr.SourceFailure `json:"failures,omitempty"`
}

type guarded struct {
	source  Source
	breaker *gobreaker.CircuitBreaker
}

// Fetcher tries sources in order, each under its own timeout and circuit
// breaker. The first payload that validates wins and is cached.
type Fetcher struct {
	sources []guarded
	cache   Cache
	timeout time.Duration
	now     func() time.Time
}

func NewFetcher(srcs []Source, cache Cache, timeout time.Duration, cfg BreakerConfig) *Fetcher {
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	if cfg.ConsecutiveFailures == 0 {
		cfg.ConsecutiveFailures = DefaultBreakerConfig.ConsecutiveFailures
	}
	if cache == nil {
		cache = NewMemoryCache()
	}

	f := &Fetcher{cache: cache, timeout: timeout, now: time.Now}
	for _, src := range srcs {
		name := src.Name()
		threshold := cfg.ConsecutiveFailures
		f.sources = append(f.sources, guarded{
			source: src,
			breaker: gobreaker.NewCircuitBreaker(gobreaker.Settings{
				Name:    "source-" + name,
				Timeout: cfg.OpenTimeout,
				ReadyToTrip: func(counts gobreaker.Counts) bool {
					return counts.ConsecutiveFailures >= threshold
				},
				OnStateChange: func(_ string, from, to gobreaker.State) {
					logrus.WithFields(logrus.Fields{
						"source": name,
						"from":   from.String(),
						"to":     to.String(),
					}).Warn("Snapshot source breaker changed state")
				},
			}),
		})
	}
	return f
}

func (f *Fetcher) Sources() []string {
	names := make([]string, 0, len(f.sources))
	for _, g := range f.sources {
		names = append(names, g.source.Name())
	}
	return names
}

// Fetch returns the first payload that validate accepts. When every source
// fails it falls back to the cached snapshot marked Stale, or returns a
// SourceUnavailableError when nothing was ever cached.
func (f *Fetcher) Fetch(ctx context.Context, validate func([]byte) error) (*Result, error) {
	var failures []apperr.SourceFailure

	for _, g := range f.sources {
		name := g.source.Name()
		payload, err := f.try(ctx, g, validate)
		if err != nil {
			logrus.WithError(err).WithField("source", name).Warn("Snapshot source failed")
			failures = append(failures, apperr.SourceFailure{Source: name, Reason: err.Error()})
			if ctx.Err() != nil {
				break
			}
			continue
		}

		res := &Result{Source: name, FetchedAt: f.now().UTC(), Payload: payload, Failures: failures}
		err = f.cache.Store(ctx, CachedSnapshot{Source: name, FetchedAt: res.FetchedAt, Payload: payload})
		if err != nil {
			logrus.WithError(err).Warn("Failed to cache snapshot")
		}
		return res, nil
	}

	cached, err := f.cache.Load(ctx)
	if err != nil {
		logrus.WithError(err).Warn("Failed to load cached snapshot")
	}
	if cached == nil {
		return nil, &apperr.SourceUnavailableError{Failures: failures}
	}

	logrus.WithFields(logrus.Fields{
		"source":     cached.Source,
		"fetched_at": cached.FetchedAt,
	}).Warn("Serving stale snapshot from cache")

	return &Result{
		Source:    cached.Source,
		FetchedAt: cached.FetchedAt,
		Payload:   cached.Payload,
		Stale:     true,
		Failures:  failures,
	}, nil
}

func (f *Fetcher) try(ctx context.Context, g guarded, validate func([]byte) error) ([]byte, error) {
	out, err := g.breaker.Execute(func() (interface{}, error) {
		ctx, cancel := context.WithTimeout(ctx, f.timeout)
		defer cancel()

		payload, err := g.source.Fetch(ctx)
		if err != nil {
			return nil, err
		}
		if validate != nil {
			if err := validate(payload); err != nil {
				return nil, fmt.Errorf("invalid snapshot: %w", err)
			}
		}
		return payload, nil
	})
	if err != nil {
		if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
			return nil, fmt.Errorf("circuit breaker open: %w", err)
		}
		return nil, err
	}
	return out.([]byte), nil
}
