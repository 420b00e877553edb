package engine

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/namelens/tubelens/internal/core"
)

type stubResolver struct {
	name   string
	result core.ResolverResult
	calls  int
}

func (s *stubResolver) Name() string { return s.name }

func (s *stubResolver) Resolve(ctx context.Context, req core.ResolveRequest) core.ResolverResult {
	s.calls++
	return s.result
}

func okPayload(link string) map[string]any {
	return map[string]any{"response": map[string]any{"direct_link": link}}
}

func TestChainStopsAtFirstSuccess(t *testing.T) {
	first := &stubResolver{name: "r1", result: core.PayloadResult("r1", okPayload("https://cdn.example/1.mp4"))}
	second := &stubResolver{name: "r2", result: core.PayloadResult("r2", okPayload("https://cdn.example/2.mp4"))}
	third := &stubResolver{name: "r3", result: core.PayloadResult("r3", okPayload("https://cdn.example/3.mp4"))}

	chain := &Chain{Resolvers: []Resolver{first, second, third}}
	outcome := chain.Resolve(context.Background(), core.ResolveRequest{VideoID: "abc"})

	require.False(t, outcome.Exhausted())
	require.Equal(t, "r1", outcome.Result.Resolver)
	require.Equal(t, 1, first.calls)
	require.Zero(t, second.calls)
	require.Zero(t, third.calls)
	require.Empty(t, outcome.Failures)
}

func TestChainFallsThroughErrors(t *testing.T) {
	first := &stubResolver{name: "r1", result: core.ErrorResult("r1", "HTTP 500 (r1)")}
	second := &stubResolver{name: "r2", result: core.PayloadResult("r2", okPayload("https://cdn.example/2.mp4"))}
	third := &stubResolver{name: "r3", result: core.PayloadResult("r3", okPayload("https://cdn.example/3.mp4"))}

	chain := &Chain{Resolvers: []Resolver{first, second, third}}
	outcome := chain.Resolve(context.Background(), core.ResolveRequest{VideoID: "abc"})

	require.NotNil(t, outcome.Result)
	link, ok := outcome.Result.DirectLink()
	require.True(t, ok)
	require.Equal(t, "https://cdn.example/2.mp4", link)
	require.Zero(t, third.calls)
	require.Len(t, outcome.Failures, 1)
	require.Equal(t, "HTTP 500 (r1)", outcome.Failures[0].Reason())
}

func TestChainTreatsUpstreamErrorKeyAsFailure(t *testing.T) {
	first := &stubResolver{name: "r1", result: core.PayloadResult("r1", map[string]any{"error": "quota"})}
	second := &stubResolver{name: "r2", result: core.PayloadResult("r2", map[string]any{"status": "ok"})}

	chain := &Chain{Resolvers: []Resolver{first, second}}
	outcome := chain.Resolve(context.Background(), core.ResolveRequest{})

	require.NotNil(t, outcome.Result)
	require.Equal(t, "r2", outcome.Result.Resolver)
	_, ok := outcome.Result.DirectLink()
	require.False(t, ok, "success without direct link is passed through unchanged")
}

func TestChainTreatsEmptyPayloadAsFailure(t *testing.T) {
	first := &stubResolver{name: "r1", result: core.PayloadResult("r1", map[string]any{})}
	second := &stubResolver{name: "r2", result: core.PayloadResult("r2", okPayload("https://cdn.example/2.mp4"))}

	chain := &Chain{Resolvers: []Resolver{first, second}}
	outcome := chain.Resolve(context.Background(), core.ResolveRequest{VideoID: "abc"})

	require.NotNil(t, outcome.Result)
	require.Equal(t, "r2", outcome.Result.Resolver)
	require.Equal(t, 1, second.calls)
	require.Len(t, outcome.Failures, 1)
	require.Equal(t, "r1 returned an empty payload", outcome.Failures[0].Reason())
}

func TestChainExhaustion(t *testing.T) {
	resolvers := []Resolver{
		&stubResolver{name: "r1", result: core.ErrorResult("r1", "HTTP 500 (r1)")},
		&stubResolver{name: "r2", result: core.ErrorResult("r2", "Invalid JSON (r2)")},
		&stubResolver{name: "r3", result: core.ErrorResult("r3", "r3 failed: connection refused")},
	}

	outcome := (&Chain{Resolvers: resolvers}).Resolve(context.Background(), core.ResolveRequest{})
	require.True(t, outcome.Exhausted())
	require.Len(t, outcome.Failures, 3)
	for _, r := range resolvers {
		require.Equal(t, 1, r.(*stubResolver).calls)
	}
}

func TestChainEmptyAndNil(t *testing.T) {
	require.True(t, (&Chain{}).Resolve(context.Background(), core.ResolveRequest{}).Exhausted())

	var chain *Chain
	require.True(t, chain.Resolve(context.Background(), core.ResolveRequest{}).Exhausted())
}
