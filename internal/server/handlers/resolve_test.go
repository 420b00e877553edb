package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"net/netip"
	"net/url"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/namelens/tubelens/internal/core"
	"github.com/namelens/tubelens/internal/core/engine"
	"github.com/namelens/tubelens/internal/core/fallback"
	"github.com/namelens/tubelens/internal/core/resolver"
	"github.com/namelens/tubelens/internal/core/videoid"
	servermw "github.com/namelens/tubelens/internal/server/middleware"
)

const watchURL = "https://www.youtube.com/watch?v=abc123XYZ_-"

type stubService struct {
	calls      int
	formatCode string
	err        error
}

func (s *stubService) Resolve(ctx context.Context, rawURL, formatCode string) (*core.Resolution, error) {
	s.calls++
	s.formatCode = formatCode
	if s.err != nil {
		return nil, s.err
	}
	if err := videoid.Validate(rawURL); err != nil {
		return nil, err
	}
	return &core.Resolution{
		Status:     "success",
		Source:     core.SourceGenerated,
		VideoID:    "abc123XYZ_-",
		URL:        rawURL,
		FormatCode: formatCode,
		Links:      core.DownloadLinks{Primary: "https://example.test/v", Alternatives: []string{}},
	}, nil
}

func resolveRequest(rawURL, remote string) *http.Request {
	target := "/"
	if rawURL != "" {
		target += "?url=" + url.QueryEscape(rawURL)
	}
	req := httptest.NewRequest(http.MethodGet, target, nil)
	req.RemoteAddr = remote
	return req
}

type errorBody struct {
	Detail string `json:"detail"`
	Error  struct {
		Code string `json:"code"`
	} `json:"error"`
}

func decodeError(t *testing.T, rec *httptest.ResponseRecorder) errorBody {
	t.Helper()
	var body errorBody
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&body))
	return body
}

func TestResolveHandlerSuccess(t *testing.T) {
	svc := &stubService{}
	h := &ResolveHandler{Limiter: engine.NewClientLimiter(10, time.Minute), Service: svc, DefaultFormat: "18"}

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, resolveRequest(watchURL, "10.0.0.1:5555"))

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "application/json", rec.Header().Get("Content-Type"))
	assert.Equal(t, "9", rec.Header().Get("X-RateLimit-Remaining"))
	assert.Equal(t, "18", svc.formatCode)

	var resolution core.Resolution
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&resolution))
	assert.Equal(t, "success", resolution.Status)
	assert.Equal(t, core.SourceGenerated, resolution.Source)
	assert.Equal(t, "abc123XYZ_-", resolution.VideoID)
}

func TestResolveHandlerPassesFormatCode(t *testing.T) {
	svc := &stubService{}
	h := &ResolveHandler{Service: svc, DefaultFormat: "18"}

	req := httptest.NewRequest(http.MethodGet, "/?url="+url.QueryEscape(watchURL)+"&format_code=22&quality=high", nil)
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "22", svc.formatCode)
}

func TestResolveHandlerRateLimit(t *testing.T) {
	svc := &stubService{}
	h := &ResolveHandler{Limiter: engine.NewClientLimiter(10, time.Minute), Service: svc, DefaultFormat: "18"}

	for i := 0; i < 10; i++ {
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, resolveRequest(watchURL, "10.0.0.1:5555"))
		require.Equal(t, http.StatusOK, rec.Code, "request %d", i+1)
	}

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, resolveRequest(watchURL, "10.0.0.1:6666"))
	require.Equal(t, http.StatusTooManyRequests, rec.Code)
	assert.NotEmpty(t, rec.Header().Get("Retry-After"))
	body := decodeError(t, rec)
	assert.Equal(t, "Rate limit exceeded. Try again later.", body.Detail)
	assert.Equal(t, "RATE_LIMITED", body.Error.Code)
	assert.Equal(t, 10, svc.calls)

	// Another client still has its own budget.
	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, resolveRequest(watchURL, "10.0.0.2:5555"))
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestResolveHandlerMalformedRequestsConsumeBudget(t *testing.T) {
	h := &ResolveHandler{Limiter: engine.NewClientLimiter(2, time.Minute), Service: &stubService{}}

	for i := 0; i < 2; i++ {
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, resolveRequest("", "10.0.0.9:1"))
		require.Equal(t, http.StatusBadRequest, rec.Code)
	}

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, resolveRequest(watchURL, "10.0.0.9:1"))
	assert.Equal(t, http.StatusTooManyRequests, rec.Code)
}

func TestResolveHandlerInputErrors(t *testing.T) {
	cases := []struct {
		name   string
		rawURL string
		detail string
	}{
		{name: "missing url", rawURL: "", detail: "URL parameter is required"},
		{name: "not a youtube url", rawURL: "not-a-url", detail: "Invalid YouTube URL"},
		{name: "other host", rawURL: "https://vimeo.com/123", detail: "Invalid YouTube URL"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			h := &ResolveHandler{Service: &stubService{}}
			rec := httptest.NewRecorder()
			h.ServeHTTP(rec, resolveRequest(tc.rawURL, "10.0.0.1:1"))

			require.Equal(t, http.StatusBadRequest, rec.Code)
			body := decodeError(t, rec)
			assert.Equal(t, tc.detail, body.Detail)
			assert.Equal(t, "INVALID_INPUT", body.Error.Code)
		})
	}
}

func TestResolveHandlerWrappedInputError(t *testing.T) {
	svc := &stubService{err: errors.Join(videoid.ErrNoVideoID, errors.New("context"))}
	h := &ResolveHandler{Service: svc}

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, resolveRequest("https://youtu.be/", "10.0.0.1:1"))
	require.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "Could not extract video ID", decodeError(t, rec).Detail)
}

func TestResolveHandlerInternalError(t *testing.T) {
	h := &ResolveHandler{Service: &stubService{err: errors.New("boom")}}

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, resolveRequest(watchURL, "10.0.0.1:1"))
	require.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.Equal(t, "INTERNAL_ERROR", decodeError(t, rec).Error.Code)
}

func TestResolveHandlerWithoutService(t *testing.T) {
	var h *ResolveHandler
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, resolveRequest(watchURL, "10.0.0.1:1"))
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
}

func TestResolveHandlerFallsBackWhenUpstreamsFail(t *testing.T) {
	var upstreamCalls int
	upstream := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		upstreamCalls++
		w.WriteHeader(http.StatusBadGateway)
	}))
	t.Cleanup(upstream.Close)

	specs := resolver.WithEndpoints(resolver.DefaultSpecs(), map[string]string{
		"bizft-v1": upstream.URL + "/v1",
		"bizft-v2": upstream.URL + "/v2",
		"bizft-v3": upstream.URL + "/v3",
	})
	orchestrator := &engine.Orchestrator{
		Chain: &engine.Chain{Resolvers: resolver.Build(specs, resolver.Options{
			Client:  upstream.Client(),
			Timeout: 2 * time.Second,
		})},
		Links: fallback.NewPlaceholderGenerator(nil, 0),
	}
	h := &ResolveHandler{Limiter: engine.NewClientLimiter(10, time.Minute), Service: orchestrator, DefaultFormat: "18"}

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, resolveRequest("https://youtu.be/abc123XYZ_-", "192.0.2.1:1234"))

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, 3, upstreamCalls)

	var body map[string]any
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&body))
	assert.Equal(t, "success", body["status"])
	assert.Equal(t, "generated", body["source"])
	assert.Equal(t, "abc123XYZ_-", body["video_id"])
	assert.Equal(t, "18", body["format_code"])

	links, ok := body["download_links"].(map[string]any)
	require.True(t, ok)
	assert.Contains(t, links["primary"], "googlevideo.com/videoplayback")
	assert.Len(t, links["alternatives"], 2)
}

func TestClientKey(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.RemoteAddr = "203.0.113.7:4242"
	assert.Equal(t, "203.0.113.7", ClientKey(req, nil))

	req.RemoteAddr = "203.0.113.8"
	assert.Equal(t, "203.0.113.8", ClientKey(req, nil))

	req.RemoteAddr = "[2001:db8::1]:80"
	assert.Equal(t, "2001:db8::1", ClientKey(req, nil))

	assert.Equal(t, "", ClientKey(nil, nil))
}

// forwardedRequest mimics the server chain: PeerAddr saw peer, then RealIP
// replaced RemoteAddr with the forwarded client.
func forwardedRequest(peer, forwarded string) *http.Request {
	req := resolveRequest(watchURL, peer)
	var captured *http.Request
	servermw.PeerAddr(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		captured = r
	})).ServeHTTP(httptest.NewRecorder(), req)
	captured.RemoteAddr = forwarded
	return captured
}

func TestClientKeyIgnoresForwardingFromUntrustedPeer(t *testing.T) {
	req := forwardedRequest("198.51.100.4:9999", "10.0.0.1")
	assert.Equal(t, "198.51.100.4", ClientKey(req, nil))

	trusted := []netip.Prefix{netip.MustParsePrefix("192.0.2.0/24")}
	assert.Equal(t, "198.51.100.4", ClientKey(req, trusted))
}

func TestClientKeyHonoursTrustedProxy(t *testing.T) {
	trusted := []netip.Prefix{
		netip.MustParsePrefix("192.0.2.0/24"),
		netip.MustParsePrefix("2001:db8::/32"),
	}

	assert.Equal(t, "10.0.0.1", ClientKey(forwardedRequest("192.0.2.10:443", "10.0.0.1"), trusted))
	assert.Equal(t, "10.0.0.2", ClientKey(forwardedRequest("[2001:db8::5]:443", "10.0.0.2"), trusted))
	// No forwarding header: RemoteAddr is still the peer.
	assert.Equal(t, "192.0.2.10", ClientKey(forwardedRequest("192.0.2.10:443", "192.0.2.10:443"), trusted))
}

func TestResolveHandlerRotatingForwardedForSharesPeerBudget(t *testing.T) {
	svc := &stubService{}
	h := &ResolveHandler{Limiter: engine.NewClientLimiter(10, time.Minute), Service: svc, DefaultFormat: "18"}

	for i := 1; i <= 11; i++ {
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, forwardedRequest("198.51.100.4:9999", fmt.Sprintf("10.0.0.%d", i)))
		if i <= 10 {
			require.Equal(t, http.StatusOK, rec.Code, "request %d", i)
			continue
		}
		assert.Equal(t, http.StatusTooManyRequests, rec.Code)
	}
	assert.Equal(t, 10, svc.calls)
}

func TestResolveHandlerTrustedProxyKeysForwardedClients(t *testing.T) {
	h := &ResolveHandler{
		Limiter:        engine.NewClientLimiter(1, time.Minute),
		Service:        &stubService{},
		TrustedProxies: []netip.Prefix{netip.MustParsePrefix("192.0.2.1/32")},
	}

	for _, client := range []string{"10.0.0.1", "10.0.0.2"} {
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, forwardedRequest("192.0.2.1:443", client))
		assert.Equal(t, http.StatusOK, rec.Code, client)
	}

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, forwardedRequest("192.0.2.1:443", "10.0.0.1"))
	assert.Equal(t, http.StatusTooManyRequests, rec.Code)
}

func TestRetryAfterSeconds(t *testing.T) {
	assert.Equal(t, 1, retryAfterSeconds(engine.Decision{}))
	assert.Equal(t, 2, retryAfterSeconds(engine.Decision{RetryAfter: 1500 * time.Millisecond}))
	assert.Equal(t, 60, retryAfterSeconds(engine.Decision{RetryAfter: time.Minute}))
}
