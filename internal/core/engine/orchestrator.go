package engine

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/fulmenhq/gofulmen/logging"
	"go.uber.org/zap"

	"github.com/namelens/tubelens/internal/core"
	"github.com/namelens/tubelens/internal/core/videoid"
	"github.com/namelens/tubelens/internal/metrics"
)

// TimestampLayout is the wall-clock layout used in resolution responses.
const TimestampLayout = "2006-01-02 15:04:05"

// DefaultLinkTTL is how long fabricated and reported links claim to stay valid.
const DefaultLinkTTL = 6 * time.Hour

// LinkGenerator fabricates placeholder download links.
type LinkGenerator interface {
	Generate(videoID, formatCode string) []string
}

// MetadataLookup fetches basic video metadata.
type MetadataLookup interface {
	Lookup(ctx context.Context, videoID string) (map[string]any, error)
}

// HistoryRecorder persists completed resolutions.
type HistoryRecorder interface {
	RecordResolution(ctx context.Context, resolution *core.Resolution) error
}

// Orchestrator validates the URL, extracts the identifier, runs the resolver
// chain and falls back to placeholder links when nothing usable came back.
type Orchestrator struct {
	Chain    *Chain
	Links    LinkGenerator
	Metadata MetadataLookup
	History  HistoryRecorder
	TTL      time.Duration
	Clock    func() time.Time
	Logger   *logging.Logger
}

// Resolve produces a resolution for rawURL. Only client input errors are
// returned; upstream failures degrade to generated links.
func (o *Orchestrator) Resolve(ctx context.Context, rawURL, formatCode string) (*core.Resolution, error) {
	if o == nil {
		return nil, fmt.Errorf("orchestrator is not configured")
	}
	if ctx == nil {
		ctx = context.Background()
	}

	formatCode = strings.TrimSpace(formatCode)
	if formatCode == "" {
		formatCode = core.DefaultFormatCode
	}

	videoID, err := videoid.Parse(rawURL)
	if err != nil {
		return nil, fmt.Errorf("parse video url: %w", err)
	}

	info := o.lookupMetadata(ctx, videoID)

	outcome := o.Chain.Resolve(ctx, core.ResolveRequest{
		URL:        rawURL,
		VideoID:    videoID,
		FormatCode: formatCode,
	})

	now := o.now()
	resolution := &core.Resolution{
		Status:     "success",
		VideoID:    videoID,
		URL:        rawURL,
		FormatCode: formatCode,
		VideoInfo:  info,
		Timestamp:  now.Local().Format(TimestampLayout),
		ExpiresAt:  now.Add(o.ttl()).Local().Format(TimestampLayout),
		ResolvedAt: now,
	}
	for _, failure := range outcome.Failures {
		resolution.Attempts = append(resolution.Attempts, failure.Reason())
	}

	link, usable := "", false
	if outcome.Result != nil {
		link, usable = outcome.Result.DirectLink()
	}

	if usable {
		resolution.Source = core.SourceAPI
		resolution.Resolver = outcome.Result.Resolver
		resolution.Response = outcome.Result.Response()
		resolution.Links.Primary = link
	} else {
		if outcome.Result != nil {
			o.logInfo("Resolver payload has no direct link, using placeholder links",
				zap.String("resolver", outcome.Result.Resolver),
				zap.String("video_id", videoID))
		}
		primary := o.placeholders(videoID, formatCode)
		resolution.Source = core.SourceGenerated
		if len(primary) > 0 {
			resolution.Links.Primary = primary[0]
		}
		resolution.Response = map[string]any{"direct_link": resolution.Links.Primary}
	}

	// Alternatives come from an independent generation, even for api results.
	alternatives := o.placeholders(videoID, formatCode)
	if len(alternatives) > 1 {
		resolution.Links.Alternatives = alternatives[1:]
	} else {
		resolution.Links.Alternatives = []string{}
	}

	metrics.RecordResolution(string(resolution.Source))
	o.logInfo("Resolution completed",
		zap.String("video_id", videoID),
		zap.String("source", string(resolution.Source)),
		zap.String("resolver", resolution.Resolver),
		zap.Int("failed_resolvers", len(outcome.Failures)))

	o.record(ctx, resolution)

	return resolution, nil
}

func (o *Orchestrator) placeholders(videoID, formatCode string) []string {
	if o.Links == nil {
		return nil
	}
	links := o.Links.Generate(videoID, formatCode)
	o.logInfo("Generated placeholder links",
		zap.String("video_id", videoID),
		zap.String("format_code", formatCode),
		zap.Bool("placeholder", true),
		zap.Int("count", len(links)))
	return links
}

func (o *Orchestrator) lookupMetadata(ctx context.Context, videoID string) map[string]any {
	if o.Metadata == nil {
		return nil
	}
	info, err := o.Metadata.Lookup(ctx, videoID)
	if err != nil {
		metrics.RecordMetadataLookup(false)
		if o.Logger != nil {
			o.Logger.Debug("Metadata lookup failed",
				zap.String("video_id", videoID),
				zap.Error(err))
		}
		return nil
	}
	metrics.RecordMetadataLookup(info != nil)
	return info
}

func (o *Orchestrator) record(ctx context.Context, resolution *core.Resolution) {
	if o.History == nil {
		return
	}
	if err := o.History.RecordResolution(ctx, resolution); err != nil && o.Logger != nil {
		o.Logger.Warn("Failed to record resolution history",
			zap.String("video_id", resolution.VideoID),
			zap.Error(err))
	}
}

func (o *Orchestrator) ttl() time.Duration {
	if o.TTL > 0 {
		return o.TTL
	}
	return DefaultLinkTTL
}

func (o *Orchestrator) now() time.Time {
	if o.Clock != nil {
		return o.Clock()
	}
	return time.Now()
}

func (o *Orchestrator) logInfo(msg string, fields ...zap.Field) {
	if o.Logger != nil {
		o.Logger.Info(msg, fields...)
	}
}
