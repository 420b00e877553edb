package resolver

import (
	"net/http"
	"strings"
	"time"

	"github.com/namelens/tubelens/internal/core"
	"github.com/namelens/tubelens/internal/core/engine"
)

// DefaultSpecs returns the built-in resolver list in priority order.
func DefaultSpecs() []core.ResolverSpec {
	return []core.ResolverSpec{
		{
			Name:     "bizft-v1",
			Endpoint: "https://yt.savetube.me/api/v1/video-downloader",
			Method:   http.MethodPost,
			Encoding: core.PayloadJSON,
			Payload: []core.PayloadField{
				{Key: "url", Value: "{url}"},
				{Key: "format_code", Value: "{format_code}"},
			},
		},
		{
			Name:     "bizft-v2",
			Endpoint: "https://www.y2mate.com/mates/analyzeV2/ajax",
			Method:   http.MethodPost,
			Encoding: core.PayloadForm,
			Payload: []core.PayloadField{
				{Key: "k_query", Value: "{url}"},
				{Key: "k_page", Value: "home"},
				{Key: "hl", Value: "en"},
				{Key: "q_auto", Value: "0"},
			},
		},
		{
			Name:     "bizft-v3",
			Endpoint: "https://sfrom.net/mates/en/analyze/ajax",
			Method:   http.MethodPost,
			Encoding: core.PayloadForm,
			Payload: []core.PayloadField{
				{Key: "url", Value: "{url}"},
			},
		},
	}
}

// WithEndpoints returns a copy of specs with endpoints replaced by name.
// Order and every other field are left untouched; unknown names are ignored.
func WithEndpoints(specs []core.ResolverSpec, overrides map[string]string) []core.ResolverSpec {
	out := make([]core.ResolverSpec, len(specs))
	copy(out, specs)
	for i := range out {
		if endpoint, ok := overrides[out[i].Name]; ok && strings.TrimSpace(endpoint) != "" {
			out[i].Endpoint = strings.TrimSpace(endpoint)
		}
	}
	return out
}

// Options configures the resolvers built from specs.
type Options struct {
	Client    *http.Client
	Timeout   time.Duration
	UserAgent string
}

// Build turns specs into chain resolvers sharing one HTTP client.
func Build(specs []core.ResolverSpec, opts Options) []engine.Resolver {
	client := opts.Client
	if client == nil {
		client = NewHTTPClient()
	}
	resolvers := make([]engine.Resolver, 0, len(specs))
	for _, spec := range specs {
		resolvers = append(resolvers, &HTTPResolver{
			Spec:      spec,
			Client:    client,
			Timeout:   opts.Timeout,
			UserAgent: opts.UserAgent,
		})
	}
	return resolvers
}
