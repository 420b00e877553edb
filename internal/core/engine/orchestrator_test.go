package engine

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/namelens/tubelens/internal/core"
	"github.com/namelens/tubelens/internal/core/fallback"
	"github.com/namelens/tubelens/internal/core/videoid"
)

type stubMetadata struct {
	info map[string]any
	err  error
}

func (s stubMetadata) Lookup(ctx context.Context, videoID string) (map[string]any, error) {
	return s.info, s.err
}

type memoryHistory struct {
	recorded []*core.Resolution
	err      error
}

func (m *memoryHistory) RecordResolution(ctx context.Context, resolution *core.Resolution) error {
	m.recorded = append(m.recorded, resolution)
	return m.err
}

func failingChain() *Chain {
	return &Chain{Resolvers: []Resolver{
		&stubResolver{name: "r1", result: core.ErrorResult("r1", "HTTP 500 (r1)")},
		&stubResolver{name: "r2", result: core.ErrorResult("r2", "HTTP 500 (r2)")},
		&stubResolver{name: "r3", result: core.ErrorResult("r3", "HTTP 500 (r3)")},
	}}
}

func TestOrchestratorFallsBackToGeneratedLinks(t *testing.T) {
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.Local)
	history := &memoryHistory{}
	o := &Orchestrator{
		Chain:    failingChain(),
		Links:    &fallback.PlaceholderGenerator{},
		Metadata: stubMetadata{err: errors.New("HTTP 404")},
		History:  history,
		Clock:    func() time.Time { return now },
	}

	res, err := o.Resolve(context.Background(), "https://www.youtube.com/watch?v=abc123XYZ_-", "")
	require.NoError(t, err)

	require.Equal(t, "success", res.Status)
	require.Equal(t, core.SourceGenerated, res.Source)
	require.Equal(t, "abc123XYZ_-", res.VideoID)
	require.Equal(t, core.DefaultFormatCode, res.FormatCode)
	require.Nil(t, res.VideoInfo)
	require.NotEmpty(t, res.Links.Primary)
	require.Contains(t, res.Links.Primary, "itag=18")
	require.Len(t, res.Links.Alternatives, 2)
	require.Equal(t, res.Links.Primary, res.Response["direct_link"])
	require.Equal(t, "2026-03-01 12:00:00", res.Timestamp)
	require.Equal(t, "2026-03-01 18:00:00", res.ExpiresAt)
	require.Len(t, res.Attempts, 3)
	require.Len(t, history.recorded, 1)
}

func TestOrchestratorUsesUpstreamLink(t *testing.T) {
	payload := map[string]any{"response": map[string]any{
		"direct_link": "https://cdn.example/v.mp4",
		"title":       "Demo",
	}}
	chain := &Chain{Resolvers: []Resolver{
		&stubResolver{name: "r1", result: core.ErrorResult("r1", "Invalid JSON (r1)")},
		&stubResolver{name: "r2", result: core.PayloadResult("r2", payload)},
	}}
	o := &Orchestrator{
		Chain:    chain,
		Links:    &fallback.PlaceholderGenerator{},
		Metadata: stubMetadata{info: map[string]any{"title": "Demo"}},
	}

	res, err := o.Resolve(context.Background(), "https://youtu.be/abc123XYZ_-", "22")
	require.NoError(t, err)
	require.Equal(t, core.SourceAPI, res.Source)
	require.Equal(t, "r2", res.Resolver)
	require.Equal(t, "https://cdn.example/v.mp4", res.Links.Primary)
	require.Equal(t, "Demo", res.Response["title"])
	require.Equal(t, "Demo", res.VideoInfo["title"])
	require.Len(t, res.Links.Alternatives, 2)
	for _, alt := range res.Links.Alternatives {
		require.True(t, strings.Contains(alt, "googlevideo.com"))
		require.Contains(t, alt, "itag=22")
	}
}

func TestOrchestratorSuccessWithoutLinkIsGenerated(t *testing.T) {
	chain := &Chain{Resolvers: []Resolver{
		&stubResolver{name: "r1", result: core.PayloadResult("r1", map[string]any{"status": "ok"})},
	}}
	o := &Orchestrator{Chain: chain, Links: &fallback.PlaceholderGenerator{}}

	res, err := o.Resolve(context.Background(), "https://www.youtube.com/shorts/abc123XYZ_-", "18")
	require.NoError(t, err)
	require.Equal(t, core.SourceGenerated, res.Source)
	require.NotEmpty(t, res.Links.Primary)
}

func TestOrchestratorRejectsInvalidInput(t *testing.T) {
	history := &memoryHistory{}
	chain := failingChain()
	o := &Orchestrator{Chain: chain, Links: &fallback.PlaceholderGenerator{}, History: history}

	_, err := o.Resolve(context.Background(), "", "18")
	require.ErrorIs(t, err, videoid.ErrURLRequired)

	_, err = o.Resolve(context.Background(), "not-a-url", "18")
	require.ErrorIs(t, err, videoid.ErrInvalidURL)

	_, err = o.Resolve(context.Background(), "https://www.youtube.com/feed/trending", "18")
	require.ErrorIs(t, err, videoid.ErrNoVideoID)

	require.Empty(t, history.recorded)
	for _, r := range chain.Resolvers {
		require.Zero(t, r.(*stubResolver).calls)
	}
}

func TestOrchestratorHistoryFailureDoesNotFailResolution(t *testing.T) {
	o := &Orchestrator{
		Chain:   failingChain(),
		Links:   &fallback.PlaceholderGenerator{},
		History: &memoryHistory{err: errors.New("disk full")},
	}
	res, err := o.Resolve(context.Background(), "https://www.youtube.com/embed/abc123XYZ_-", "18")
	require.NoError(t, err)
	require.NotNil(t, res)
}

func TestOrchestratorNil(t *testing.T) {
	var o *Orchestrator
	_, err := o.Resolve(context.Background(), "https://youtu.be/abc", "18")
	require.Error(t, err)
}
