package middleware

import (
	"context"
	"net/http"
)

type peerAddrKey struct{}

// PeerAddr records the socket RemoteAddr on the request context. It must run
// before any middleware that rewrites RemoteAddr from proxy headers.
func PeerAddr(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ctx := context.WithValue(r.Context(), peerAddrKey{}, r.RemoteAddr)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// GetPeerAddr returns the address recorded by PeerAddr.
func GetPeerAddr(ctx context.Context) (string, bool) {
	if ctx == nil {
		return "", false
	}
	addr, ok := ctx.Value(peerAddrKey{}).(string)
	return addr, ok
}
