package engine

import (
	"context"
	"time"

	"github.com/fulmenhq/gofulmen/logging"
	"go.uber.org/zap"

	"github.com/namelens/tubelens/internal/core"
	"github.com/namelens/tubelens/internal/metrics"
)

// Resolver translates a video into an upstream payload.
type Resolver interface {
	Name() string
	Resolve(ctx context.Context, req core.ResolveRequest) core.ResolverResult
}

// Chain tries resolvers in priority order and stops at the first success.
// Calls are strictly sequential.
type Chain struct {
	Resolvers []Resolver
	Logger    *logging.Logger
	Clock     func() time.Time
}

// ChainOutcome holds the winning result, if any, and every failure before it.
type ChainOutcome struct {
	Result   *core.ResolverResult
	Failures []core.ResolverResult
}

// Exhausted reports whether every resolver failed.
func (o ChainOutcome) Exhausted() bool {
	return o.Result == nil
}

// Resolve folds over the resolver list, short-circuiting on the first result
// without an error tag. Exhaustion is not an error.
func (c *Chain) Resolve(ctx context.Context, req core.ResolveRequest) ChainOutcome {
	if c == nil {
		return ChainOutcome{}
	}
	if ctx == nil {
		ctx = context.Background()
	}

	var failures []core.ResolverResult
	winner, ok := firstMatch(c.Resolvers, func(attempt int, r Resolver) (core.ResolverResult, bool) {
		start := c.now()
		result := r.Resolve(ctx, req)
		if result.Resolver == "" {
			result.Resolver = r.Name()
		}
		elapsed := c.now().Sub(start)

		if result.Failed() {
			failures = append(failures, result)
			metrics.RecordResolverAttempt(r.Name(), false, elapsed)
			c.logWarn("Resolver failed",
				zap.String("resolver", r.Name()),
				zap.Int("attempt", attempt+1),
				zap.String("reason", result.Reason()),
				zap.Duration("duration", elapsed))
			return result, false
		}

		metrics.RecordResolverAttempt(r.Name(), true, elapsed)
		c.logDebug("Resolver succeeded",
			zap.String("resolver", r.Name()),
			zap.Int("attempt", attempt+1),
			zap.Duration("duration", elapsed))
		return result, true
	})

	if !ok {
		return ChainOutcome{Failures: failures}
	}
	return ChainOutcome{Result: &winner, Failures: failures}
}

// firstMatch applies try to each item in order and returns the first value
// try accepts. Items after the match are never visited.
func firstMatch[T, R any](items []T, try func(int, T) (R, bool)) (R, bool) {
	for i, item := range items {
		if value, ok := try(i, item); ok {
			return value, true
		}
	}
	var zero R
	return zero, false
}

func (c *Chain) now() time.Time {
	if c != nil && c.Clock != nil {
		return c.Clock()
	}
	return time.Now()
}

func (c *Chain) logWarn(msg string, fields ...zap.Field) {
	if c.Logger != nil {
		c.Logger.Warn(msg, fields...)
	}
}

func (c *Chain) logDebug(msg string, fields ...zap.Field) {
	if c.Logger != nil {
		c.Logger.Debug(msg, fields...)
	}
}
