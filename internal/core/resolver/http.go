// Package resolver executes upstream resolver specs over HTTP.
package resolver

import (
	"bytes"
	"context"
	"crypto/tls"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/namelens/tubelens/internal/core"
)

// DefaultTimeout bounds every individual resolver call.
const DefaultTimeout = 30 * time.Second

// maxBodyBytes caps how much of an upstream body is read.
const maxBodyBytes = 10 * 1024 * 1024

// NewHTTPClient returns the client shared by every resolver of a chain so
// calls reuse one connection pool.
func NewHTTPClient() *http.Client {
	return &http.Client{
		Transport: &http.Transport{
			Proxy: http.ProxyFromEnvironment,
			TLSClientConfig: &tls.Config{
				MinVersion: tls.VersionTLS12,
			},
			ForceAttemptHTTP2:   true,
			MaxIdleConns:        20,
			MaxIdleConnsPerHost: 5,
			IdleConnTimeout:     90 * time.Second,
		},
	}
}

// HTTPResolver performs the call described by a ResolverSpec.
type HTTPResolver struct {
	Spec      core.ResolverSpec
	Client    *http.Client
	Timeout   time.Duration
	UserAgent string
}

// Name returns the resolver's spec name.
func (r *HTTPResolver) Name() string {
	if r == nil {
		return ""
	}
	return r.Spec.Name
}

// Resolve issues the upstream call and normalizes every failure into an
// error result; it never returns a Go error.
func (r *HTTPResolver) Resolve(ctx context.Context, req core.ResolveRequest) core.ResolverResult {
	name := r.Name()
	if r == nil || strings.TrimSpace(r.Spec.Endpoint) == "" {
		return core.ErrorResult(name, fmt.Sprintf("%s failed: resolver is not configured", name))
	}
	if ctx == nil {
		ctx = context.Background()
	}

	callCtx, cancel := context.WithTimeout(ctx, r.timeout())
	defer cancel()

	httpReq, err := r.buildRequest(callCtx, req)
	if err != nil {
		return core.ErrorResult(name, fmt.Sprintf("%s failed: %s", name, err.Error()))
	}

	client := r.Client
	if client == nil {
		client = NewHTTPClient()
	}

	resp, err := client.Do(httpReq)
	if err != nil {
		return core.ErrorResult(name, fmt.Sprintf("%s failed: %s", name, err.Error()))
	}
	defer resp.Body.Close() // nolint:errcheck // best-effort cleanup on HTTP response body

	if resp.StatusCode != http.StatusOK {
		return core.ErrorResult(name, fmt.Sprintf("HTTP %d (%s)", resp.StatusCode, name))
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxBodyBytes))
	if err != nil {
		return core.ErrorResult(name, fmt.Sprintf("%s failed: %s", name, err.Error()))
	}

	payload, err := decodePayload(body)
	switch {
	case errors.Is(err, errEmptyPayload):
		return core.ErrorResult(name, core.EmptyPayloadReason(name))
	case err != nil:
		return core.ErrorResult(name, fmt.Sprintf("Invalid JSON (%s)", name))
	}

	return core.PayloadResult(name, payload)
}

func (r *HTTPResolver) buildRequest(ctx context.Context, req core.ResolveRequest) (*http.Request, error) {
	method := strings.ToUpper(strings.TrimSpace(r.Spec.Method))
	if method == "" {
		method = http.MethodPost
	}

	fields := expandPayload(r.Spec.Payload, req)
	endpoint := r.Spec.Endpoint

	var body io.Reader
	contentType := ""
	if method == http.MethodGet {
		if len(fields) > 0 {
			sep := "?"
			if strings.Contains(endpoint, "?") {
				sep = "&"
			}
			endpoint += sep + encodeForm(fields)
		}
	} else {
		switch r.Spec.Encoding {
		case core.PayloadForm:
			body = strings.NewReader(encodeForm(fields))
			contentType = "application/x-www-form-urlencoded"
		default:
			data, err := encodeJSON(fields)
			if err != nil {
				return nil, err
			}
			body = bytes.NewReader(data)
			contentType = "application/json"
		}
	}

	httpReq, err := http.NewRequestWithContext(ctx, method, endpoint, body)
	if err != nil {
		return nil, err
	}
	if contentType != "" {
		httpReq.Header.Set("Content-Type", contentType)
	}
	httpReq.Header.Set("Accept", "application/json")
	if ua := strings.TrimSpace(r.UserAgent); ua != "" {
		httpReq.Header.Set("User-Agent", ua)
	}
	for key, value := range r.Spec.Headers {
		httpReq.Header.Set(key, value)
	}

	return httpReq, nil
}

func (r *HTTPResolver) timeout() time.Duration {
	if r != nil && r.Timeout > 0 {
		return r.Timeout
	}
	return DefaultTimeout
}

func expandPayload(template []core.PayloadField, req core.ResolveRequest) []core.PayloadField {
	if len(template) == 0 {
		return nil
	}
	replacer := strings.NewReplacer(
		"{url}", req.URL,
		"{video_id}", req.VideoID,
		"{format_code}", req.FormatCode,
	)
	fields := make([]core.PayloadField, 0, len(template))
	for _, field := range template {
		fields = append(fields, core.PayloadField{
			Key:   field.Key,
			Value: replacer.Replace(field.Value),
		})
	}
	return fields
}

// encodeForm keeps template order, unlike url.Values.Encode.
func encodeForm(fields []core.PayloadField) string {
	parts := make([]string, 0, len(fields))
	for _, field := range fields {
		parts = append(parts, url.QueryEscape(field.Key)+"="+url.QueryEscape(field.Value))
	}
	return strings.Join(parts, "&")
}

func encodeJSON(fields []core.PayloadField) ([]byte, error) {
	obj := make(map[string]string, len(fields))
	for _, field := range fields {
		obj[field.Key] = field.Value
	}
	return json.Marshal(obj)
}

var (
	errInvalidJSON  = errors.New("invalid json")
	errEmptyPayload = errors.New("empty payload")
)

// decodePayload accepts any well-formed, non-empty JSON document. Objects pass
// through as-is; other values are wrapped under "data". Empty objects, arrays
// and strings, false and zero count as empty.
func decodePayload(body []byte) (map[string]any, error) {
	var value any
	if err := json.Unmarshal(body, &value); err != nil {
		return nil, errInvalidJSON
	}
	switch typed := value.(type) {
	case nil:
		return nil, errInvalidJSON
	case map[string]any:
		if len(typed) == 0 {
			return nil, errEmptyPayload
		}
		return typed, nil
	case []any:
		if len(typed) == 0 {
			return nil, errEmptyPayload
		}
	case string:
		if typed == "" {
			return nil, errEmptyPayload
		}
	case bool:
		if !typed {
			return nil, errEmptyPayload
		}
	case float64:
		if typed == 0 {
			return nil, errEmptyPayload
		}
	}
	return map[string]any{"data": value}, nil
}
