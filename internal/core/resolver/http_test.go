package resolver

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/namelens/tubelens/internal/core"
	"github.com/namelens/tubelens/internal/core/engine"
)

var testRequest = core.ResolveRequest{
	URL:        "https://www.youtube.com/watch?v=abc123XYZ_-",
	VideoID:    "abc123XYZ_-",
	FormatCode: "22",
}

func TestHTTPResolverJSONPayload(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, http.MethodPost, r.Method)
		require.Equal(t, "application/json", r.Header.Get("Content-Type"))
		require.Equal(t, "tubelens-test", r.Header.Get("User-Agent"))
		require.Equal(t, "yes", r.Header.Get("X-Extra"))

		var body map[string]string
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		require.Equal(t, testRequest.URL, body["url"])
		require.Equal(t, "22", body["format_code"])

		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"response":{"direct_link":"https://cdn.example/v.mp4","title":"x"}}`))
	}))
	defer server.Close()

	spec := DefaultSpecs()[0]
	spec.Endpoint = server.URL
	spec.Headers = map[string]string{"X-Extra": "yes"}

	r := &HTTPResolver{Spec: spec, Client: server.Client(), UserAgent: "tubelens-test"}
	result := r.Resolve(context.Background(), testRequest)

	require.False(t, result.Failed())
	require.Equal(t, "bizft-v1", result.Resolver)
	link, ok := result.DirectLink()
	require.True(t, ok)
	require.Equal(t, "https://cdn.example/v.mp4", link)
}

func TestHTTPResolverFormPayloadKeepsOrder(t *testing.T) {
	var captured string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "application/x-www-form-urlencoded", r.Header.Get("Content-Type"))
		data, _ := io.ReadAll(r.Body)
		captured = string(data)
		_, _ = w.Write([]byte(`{"status":"ok"}`))
	}))
	defer server.Close()

	spec := DefaultSpecs()[1]
	spec.Endpoint = server.URL

	result := (&HTTPResolver{Spec: spec, Client: server.Client()}).Resolve(context.Background(), testRequest)
	require.False(t, result.Failed())
	require.True(t, strings.HasPrefix(captured, "k_query=https%3A%2F%2Fwww.youtube.com%2Fwatch%3Fv%3Dabc123XYZ_-&k_page=home"))
	require.True(t, strings.HasSuffix(captured, "&hl=en&q_auto=0"))
}

func TestHTTPResolverErrorClassification(t *testing.T) {
	t.Run("non-200 status", func(t *testing.T) {
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusInternalServerError)
		}))
		defer server.Close()

		spec := core.ResolverSpec{Name: "up", Endpoint: server.URL}
		result := (&HTTPResolver{Spec: spec, Client: server.Client()}).Resolve(context.Background(), testRequest)
		require.True(t, result.Failed())
		require.Equal(t, "HTTP 500 (up)", result.Reason())
	})

	t.Run("invalid json", func(t *testing.T) {
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			_, _ = w.Write([]byte(`<html>blocked</html>`))
		}))
		defer server.Close()

		spec := core.ResolverSpec{Name: "up", Endpoint: server.URL}
		result := (&HTTPResolver{Spec: spec, Client: server.Client()}).Resolve(context.Background(), testRequest)
		require.Equal(t, "Invalid JSON (up)", result.Reason())
	})

	t.Run("null body", func(t *testing.T) {
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			_, _ = w.Write([]byte(`null`))
		}))
		defer server.Close()

		spec := core.ResolverSpec{Name: "up", Endpoint: server.URL}
		result := (&HTTPResolver{Spec: spec, Client: server.Client()}).Resolve(context.Background(), testRequest)
		require.Equal(t, "Invalid JSON (up)", result.Reason())
	})

	t.Run("transport failure", func(t *testing.T) {
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
		endpoint := server.URL
		server.Close()

		spec := core.ResolverSpec{Name: "up", Endpoint: endpoint}
		result := (&HTTPResolver{Spec: spec}).Resolve(context.Background(), testRequest)
		require.True(t, result.Failed())
		require.True(t, strings.HasPrefix(result.Reason(), "up failed: "), result.Reason())
	})

	t.Run("timeout", func(t *testing.T) {
		release := make(chan struct{})
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			select {
			case <-release:
			case <-r.Context().Done():
			}
		}))
		defer server.Close()
		defer close(release)

		spec := core.ResolverSpec{Name: "slow", Endpoint: server.URL}
		r := &HTTPResolver{Spec: spec, Client: server.Client(), Timeout: 50 * time.Millisecond}
		result := r.Resolve(context.Background(), testRequest)
		require.True(t, strings.HasPrefix(result.Reason(), "slow failed: "), result.Reason())
	})
}

func TestHTTPResolverEmptyPayloads(t *testing.T) {
	for _, body := range []string{`{}`, `[]`, `""`, `false`, `0`} {
		t.Run(body, func(t *testing.T) {
			server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				_, _ = w.Write([]byte(body))
			}))
			defer server.Close()

			spec := core.ResolverSpec{Name: "up", Endpoint: server.URL}
			result := (&HTTPResolver{Spec: spec, Client: server.Client()}).Resolve(context.Background(), testRequest)
			require.True(t, result.Failed())
			require.Equal(t, "up returned an empty payload", result.Reason())
		})
	}
}

func TestHTTPResolverNonObjectPayload(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`[1,2,3]`))
	}))
	defer server.Close()

	spec := core.ResolverSpec{Name: "up", Endpoint: server.URL}
	result := (&HTTPResolver{Spec: spec, Client: server.Client()}).Resolve(context.Background(), testRequest)
	require.False(t, result.Failed())
	_, ok := result.DirectLink()
	require.False(t, ok)
}

func TestHTTPResolverGetAppendsPayloadToQuery(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, http.MethodGet, r.Method)
		require.Equal(t, "abc123XYZ_-", r.URL.Query().Get("id"))
		require.Equal(t, "1", r.URL.Query().Get("keep"))
		_, _ = w.Write([]byte(`{"status":"ok"}`))
	}))
	defer server.Close()

	spec := core.ResolverSpec{
		Name:     "get",
		Endpoint: server.URL + "/lookup?keep=1",
		Method:   http.MethodGet,
		Payload:  []core.PayloadField{{Key: "id", Value: "{video_id}"}},
	}
	result := (&HTTPResolver{Spec: spec, Client: server.Client()}).Resolve(context.Background(), testRequest)
	require.False(t, result.Failed())
}

func TestChainOverHTTPResolvers(t *testing.T) {
	var calls [3]atomic.Int32
	newUpstream := func(idx int, status int, body string) *httptest.Server {
		return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			calls[idx].Add(1)
			w.WriteHeader(status)
			_, _ = w.Write([]byte(body))
		}))
	}

	first := newUpstream(0, http.StatusInternalServerError, "")
	defer first.Close()
	second := newUpstream(1, http.StatusOK, `{"response":{"direct_link":"https://cdn.example/2.mp4"}}`)
	defer second.Close()
	third := newUpstream(2, http.StatusOK, `{"response":{"direct_link":"https://cdn.example/3.mp4"}}`)
	defer third.Close()

	specs := WithEndpoints(DefaultSpecs(), map[string]string{
		"bizft-v1": first.URL,
		"bizft-v2": second.URL,
		"bizft-v3": third.URL,
	})
	chain := &engine.Chain{Resolvers: Build(specs, Options{Timeout: time.Second})}

	outcome := chain.Resolve(context.Background(), testRequest)
	require.NotNil(t, outcome.Result)
	require.Equal(t, "bizft-v2", outcome.Result.Resolver)
	require.Equal(t, int32(1), calls[0].Load())
	require.Equal(t, int32(1), calls[1].Load())
	require.Equal(t, int32(0), calls[2].Load())
}

func TestChainSkipsEmptyUpstreamAnswer(t *testing.T) {
	var secondCalls atomic.Int32
	first := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{}`))
	}))
	defer first.Close()
	second := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		secondCalls.Add(1)
		_, _ = w.Write([]byte(`{"response":{"direct_link":"https://cdn.example/real.mp4"}}`))
	}))
	defer second.Close()

	specs := WithEndpoints(DefaultSpecs(), map[string]string{
		"bizft-v1": first.URL,
		"bizft-v2": second.URL,
	})
	chain := &engine.Chain{Resolvers: Build(specs, Options{Timeout: time.Second})}

	outcome := chain.Resolve(context.Background(), testRequest)
	require.NotNil(t, outcome.Result)
	require.Equal(t, "bizft-v2", outcome.Result.Resolver)
	link, ok := outcome.Result.DirectLink()
	require.True(t, ok)
	require.Equal(t, "https://cdn.example/real.mp4", link)
	require.Equal(t, int32(1), secondCalls.Load())
	require.Len(t, outcome.Failures, 1)
	require.Equal(t, "bizft-v1 returned an empty payload", outcome.Failures[0].Reason())
}

func TestWithEndpointsKeepsOrder(t *testing.T) {
	specs := WithEndpoints(DefaultSpecs(), map[string]string{"bizft-v3": "http://local", "unknown": "x"})
	require.Len(t, specs, 3)
	require.Equal(t, []string{"bizft-v1", "bizft-v2", "bizft-v3"}, []string{specs[0].Name, specs[1].Name, specs[2].Name})
	require.Equal(t, "http://local", specs[2].Endpoint)
	require.Equal(t, "https://sfrom.net/mates/en/analyze/ajax", DefaultSpecs()[2].Endpoint)
}
