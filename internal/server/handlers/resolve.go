package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"math"
	"net"
	"net/http"
	"net/netip"
	"strconv"
	"strings"

	"github.com/fulmenhq/gofulmen/logging"
	"go.uber.org/zap"

	"github.com/namelens/tubelens/internal/core"
	"github.com/namelens/tubelens/internal/core/engine"
	"github.com/namelens/tubelens/internal/core/videoid"
	apperrors "github.com/namelens/tubelens/internal/errors"
	"github.com/namelens/tubelens/internal/metrics"
	servermw "github.com/namelens/tubelens/internal/server/middleware"
)

// Client-facing detail messages.
const (
	msgURLRequired = "URL parameter is required"
	msgInvalidURL  = "Invalid YouTube URL"
	msgNoVideoID   = "Could not extract video ID"
	msgRateLimited = "Rate limit exceeded. Try again later."
)

var inputErrorMessages = []struct {
	err error
	msg string
}{
	{videoid.ErrURLRequired, msgURLRequired},
	{videoid.ErrInvalidURL, msgInvalidURL},
	{videoid.ErrNoVideoID, msgNoVideoID},
}

// ResolutionService turns a video URL into a resolution.
type ResolutionService interface {
	Resolve(ctx context.Context, rawURL, formatCode string) (*core.Resolution, error)
}

// Admitter decides whether a client may proceed.
type Admitter interface {
	Check(key string) engine.Decision
}

// ResolveHandler serves GET /?url=...&format_code=...&quality=...
type ResolveHandler struct {
	Limiter       Admitter
	Service       ResolutionService
	DefaultFormat string
	Logger        *logging.Logger
	// TrustedProxies are peers allowed to name the client via forwarding headers.
	TrustedProxies []netip.Prefix
}

// ServeHTTP admits the client, then resolves the requested URL. Admission is
// checked before any input validation, so malformed requests still count.
func (h *ResolveHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if h == nil || h.Service == nil {
		respondWithError(w, r, apperrors.NewServiceUnavailableError("resolver is not configured"))
		return
	}

	if h.Limiter != nil {
		decision := h.Limiter.Check(ClientKey(r, h.TrustedProxies))
		if !decision.Allowed {
			metrics.RecordRateLimited()
			w.Header().Set("Retry-After", strconv.Itoa(retryAfterSeconds(decision)))
			respondWithError(w, r, apperrors.WrapRateLimited(r.Context(), engine.ErrRateLimited, msgRateLimited))
			return
		}
		w.Header().Set("X-RateLimit-Remaining", strconv.Itoa(decision.Remaining))
	}

	query := r.URL.Query()
	formatCode := strings.TrimSpace(query.Get("format_code"))
	if formatCode == "" {
		formatCode = h.DefaultFormat
	}

	// Upstream calls run to completion even if the client goes away.
	ctx := context.WithoutCancel(r.Context())

	resolution, err := h.Service.Resolve(ctx, query.Get("url"), formatCode)
	if err != nil {
		if msg, ok := inputErrorMessage(err); ok {
			respondWithError(w, r, apperrors.NewInvalidInputError(msg))
			return
		}
		if h.Logger != nil {
			h.Logger.Error("Resolution failed", zap.Error(err))
		}
		respondWithError(w, r, apperrors.WrapInternal(r.Context(), err, "resolution failed"))
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	_ = json.NewEncoder(w).Encode(resolution)
}

// ClientKey identifies the caller by its socket peer. The forwarded address
// that RealIP put in RemoteAddr is used only when the peer is a trusted proxy.
func ClientKey(r *http.Request, trusted []netip.Prefix) string {
	if r == nil {
		return ""
	}
	peer, ok := servermw.GetPeerAddr(r.Context())
	if !ok {
		peer = r.RemoteAddr
	}
	peerHost := hostOf(peer)
	if r.RemoteAddr != peer && trustedPeer(peerHost, trusted) {
		if forwarded := hostOf(r.RemoteAddr); forwarded != "" {
			return forwarded
		}
	}
	return peerHost
}

func hostOf(addr string) string {
	host, _, err := net.SplitHostPort(addr)
	if err != nil {
		return strings.TrimSpace(addr)
	}
	return host
}

func trustedPeer(host string, trusted []netip.Prefix) bool {
	if len(trusted) == 0 {
		return false
	}
	addr, err := netip.ParseAddr(host)
	if err != nil {
		return false
	}
	addr = addr.Unmap()
	for _, prefix := range trusted {
		if prefix.Contains(addr) {
			return true
		}
	}
	return false
}

func inputErrorMessage(err error) (string, bool) {
	for _, m := range inputErrorMessages {
		if errors.Is(err, m.err) {
			return m.msg, true
		}
	}
	return "", false
}

func retryAfterSeconds(decision engine.Decision) int {
	seconds := int(math.Ceil(decision.RetryAfter.Seconds()))
	if seconds < 1 {
		return 1
	}
	return seconds
}

func respondWithError(w http.ResponseWriter, r *http.Request, err error) {
	apperrors.RespondWithError(w, r, err)
}
