// Package ai holds the AI-assisted features and the cache-aside wrapper that keeps
// them cheap and always answerable.
package ai

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"time"

	"github.com/pkg/errors"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/trezcool/elimu/core"
)

var (
	ErrUnauthorized    = core.NewError(core.KindUpstreamUnavailable, "AI provider rejected the API key")
	ErrRateLimited     = core.NewError(core.KindUpstreamUnavailable, "AI provider rate limit exceeded")
	ErrUnavailable     = core.NewError(core.KindUpstreamUnavailable, "AI service is currently unavailable")
	ErrInvalidResponse = core.NewError(core.KindUpstreamUnavailable, "AI provider returned an unusable response")

	cacheOutcomes = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "elimu_ai_cache_outcomes_total",
		Help: "AI cache-aside results by outcome.",
	}, []string{"outcome"})

	upstreamFailures = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "elimu_ai_upstream_failures_total",
		Help: "Failed AI generations by reason.",
	}, []string{"reason"})
)

// Generator is the hosted-model collaborator.
type Generator interface {
	Generate(ctx context.Context, prompt string, maxTokens int, temperature float64) (string, error)
}

// Cache is where generated answers are kept between identical requests.
type Cache interface {
	Get(ctx context.Context, key string) (string, bool, error)
	Set(ctx context.Context, key, value string, ttl time.Duration) error
}

type Outcome uint8

const (
	OutcomeHit Outcome = iota + 1
	OutcomeGenerated
	OutcomeFallback
)

func (o Outcome) String() string {
	switch o {
	case OutcomeHit:
		return "hit"
	case OutcomeGenerated:
		return "generated"
	case OutcomeFallback:
		return "fallback"
	}
	return "unknown"
}

// Source is the marker clients use to tell genuine answers from degraded ones.
func (o Outcome) Source() string {
	switch o {
	case OutcomeHit:
		return "cache"
	case OutcomeGenerated:
		return "AI"
	}
	return "System-Fallback"
}

// Result is a cache-aside answer. Reason is set only for OutcomeFallback.
type Result struct {
	Value   string
	Outcome Outcome
	Reason  error
}

func (r Result) Degraded() bool { return r.Outcome == OutcomeFallback }

// CacheAside serves answers from Cache and generates them on a miss.
type CacheAside struct {
	cache   Cache
	enabled bool
	timeout time.Duration
	logger  core.Logger
}

func NewCacheAside(cache Cache, conf core.AIConfig, logger core.Logger) *CacheAside {
	return &CacheAside{
		cache:   cache,
		enabled: conf.CacheEnabled && cache != nil,
		timeout: conf.Timeout,
		logger:  logger,
	}
}

// CachedGenerate returns the cached value under key or generates, stores and returns a fresh one.
// It never fails: any generation error yields the fallback value, tagged as such.
// Cache failures are logged and otherwise ignored.
func (ca *CacheAside) CachedGenerate(ctx context.Context, key string, ttl time.Duration, fallback string, fn func(ctx context.Context) (string, error)) Result {
	if ca.enabled {
		val, ok, err := ca.cache.Get(ctx, key)
		switch {
		case err != nil:
			ca.logger.Warn(fmt.Sprintf("ai.CacheAside: reading %s: %v", key, err))
		case ok:
			cacheOutcomes.WithLabelValues(OutcomeHit.String()).Inc()
			return Result{Value: val, Outcome: OutcomeHit}
		}
	}

	val, err := ca.Generate(ctx, fn)
	if err != nil {
		cacheOutcomes.WithLabelValues(OutcomeFallback.String()).Inc()
		return Result{Value: fallback, Outcome: OutcomeFallback, Reason: err}
	}

	if ca.enabled {
		if err = ca.cache.Set(context.WithoutCancel(ctx), key, val, ttl); err != nil {
			ca.logger.Warn(fmt.Sprintf("ai.CacheAside: writing %s: %v", key, err))
		}
	}
	cacheOutcomes.WithLabelValues(OutcomeGenerated.String()).Inc()
	return Result{Value: val, Outcome: OutcomeGenerated}
}

// Generate runs fn under the generation timeout, without caching.
func (ca *CacheAside) Generate(ctx context.Context, fn func(ctx context.Context) (string, error)) (string, error) {
	genCtx := ctx
	if ca.timeout > 0 {
		var cancel context.CancelFunc
		genCtx, cancel = context.WithTimeout(ctx, ca.timeout)
		defer cancel()
	}

	val, err := fn(genCtx)
	if err == nil && genCtx.Err() != nil {
		err = genCtx.Err()
	}
	if err != nil {
		upstreamFailures.WithLabelValues(failureReason(err)).Inc()
		ca.logger.Warn(fmt.Sprintf("ai: generation failed: %v", err))
		return "", err
	}
	return val, nil
}

func failureReason(err error) string {
	switch {
	case errors.Is(err, context.DeadlineExceeded):
		return "timeout"
	case errors.Is(err, ErrUnauthorized):
		return "unauthorized"
	case errors.Is(err, ErrRateLimited):
		return "rate_limited"
	case errors.Is(err, ErrInvalidResponse):
		return "invalid_response"
	}
	return "unavailable"
}

// Key derives the cache key of a request from its normalized semantic fields.
// payload must only hold those fields: struct fields encode in declaration order
// and map keys sorted, so equal payloads always give equal keys.
func Key(namespace string, payload interface{}) (string, error) {
	b, err := json.Marshal(payload)
	if err != nil {
		return "", errors.Wrap(err, "encoding cache key payload")
	}
	sum := sha256.Sum256(b)
	return "ai:" + namespace + ":" + hex.EncodeToString(sum[:]), nil
}
