package core

import "time"

// Source identifies where the primary download link came from.
type Source string

const (
	SourceAPI       Source = "api"
	SourceGenerated Source = "generated"
)

// Defaults applied when a request omits optional parameters.
const (
	DefaultFormatCode = "18"
	DefaultQuality    = "medium"
)

// PayloadEncoding describes how a resolver request body is encoded.
type PayloadEncoding string

const (
	PayloadJSON PayloadEncoding = "json"
	PayloadForm PayloadEncoding = "form"
)

// ResolverSpec is the static description of one upstream resolver.
//
// Payload values may reference the placeholders {url}, {video_id} and
// {format_code}; they are substituted per request.
type ResolverSpec struct {
	Name     string            `json:"name" mapstructure:"name"`
	Endpoint string            `json:"endpoint" mapstructure:"endpoint"`
	Method   string            `json:"method" mapstructure:"method"`
	Encoding PayloadEncoding   `json:"encoding" mapstructure:"encoding"`
	Payload  []PayloadField    `json:"payload,omitempty" mapstructure:"payload"`
	Headers  map[string]string `json:"headers,omitempty" mapstructure:"headers"`
}

// PayloadField is an ordered key/value pair of a payload template.
type PayloadField struct {
	Key   string `json:"key" mapstructure:"key"`
	Value string `json:"value" mapstructure:"value"`
}

// ResolveRequest carries the inputs for one resolution attempt.
type ResolveRequest struct {
	URL        string
	VideoID    string
	FormatCode string
}

// ResolverResult is either an opaque upstream payload or an error reason.
// Exactly one of Payload and Err is meaningful.
type ResolverResult struct {
	Resolver string
	Payload  map[string]any
	Err      string
}

// PayloadResult builds a successful resolver result.
func PayloadResult(resolver string, payload map[string]any) ResolverResult {
	if payload == nil {
		payload = map[string]any{}
	}
	return ResolverResult{Resolver: resolver, Payload: payload}
}

// EmptyPayloadReason is the failure reason for an upstream that answered
// with an empty document.
func EmptyPayloadReason(resolver string) string {
	return resolver + " returned an empty payload"
}

// ErrorResult builds a failed resolver result.
func ErrorResult(resolver string, reason string) ResolverResult {
	return ResolverResult{Resolver: resolver, Err: reason}
}

// Failed reports whether the result carries an error tag. Empty payloads and
// payloads that contain a top-level "error" key are treated as failures.
func (r ResolverResult) Failed() bool {
	if r.Err != "" {
		return true
	}
	if len(r.Payload) == 0 {
		return true
	}
	_, hasError := r.Payload["error"]
	return hasError
}

// Reason returns the human-readable failure reason, if any.
func (r ResolverResult) Reason() string {
	if r.Err != "" {
		return r.Err
	}
	if len(r.Payload) == 0 {
		return EmptyPayloadReason(r.Resolver)
	}
	if r.Payload != nil {
		if value, ok := r.Payload["error"]; ok {
			if text, ok := value.(string); ok {
				return text
			}
			return "upstream reported an error"
		}
	}
	return ""
}

// Response returns the nested "response" object of the payload, or nil.
func (r ResolverResult) Response() map[string]any {
	if r.Payload == nil {
		return nil
	}
	response, _ := r.Payload["response"].(map[string]any)
	return response
}

// DirectLink returns payload.response.direct_link when present and a string.
func (r ResolverResult) DirectLink() (string, bool) {
	response := r.Response()
	if response == nil {
		return "", false
	}
	value, ok := response["direct_link"]
	if !ok {
		return "", false
	}
	link, ok := value.(string)
	if !ok || link == "" {
		return "", false
	}
	return link, true
}

// DownloadLinks holds the primary link and the placeholder alternatives.
type DownloadLinks struct {
	Primary      string   `json:"primary" yaml:"primary"`
	Alternatives []string `json:"alternatives" yaml:"alternatives"`
}

// Resolution is the assembled answer for one video URL.
type Resolution struct {
	Status     string         `json:"status" yaml:"status"`
	Source     Source         `json:"source" yaml:"source"`
	VideoID    string         `json:"video_id" yaml:"video_id"`
	URL        string         `json:"url" yaml:"url"`
	FormatCode string         `json:"format_code" yaml:"format_code"`
	VideoInfo  map[string]any `json:"video_info" yaml:"video_info"`
	Response   map[string]any `json:"response" yaml:"response"`
	Links      DownloadLinks  `json:"download_links" yaml:"download_links"`
	Timestamp  string         `json:"timestamp" yaml:"timestamp"`
	ExpiresAt  string         `json:"expires_at" yaml:"expires_at"`

	// Resolver names the upstream that won; empty when generated.
	Resolver string `json:"-" yaml:"resolver,omitempty"`
	// Attempts lists every failed resolver reason in chain order.
	Attempts []string `json:"-" yaml:"attempts,omitempty"`
	// ResolvedAt is the wall-clock time the resolution was assembled.
	ResolvedAt time.Time `json:"-" yaml:"-"`
}

// HistoryEntry is one persisted resolution.
type HistoryEntry struct {
	ID             int64     `json:"id" yaml:"id"`
	VideoID        string    `json:"video_id" yaml:"video_id"`
	Source         Source    `json:"source" yaml:"source"`
	Resolver       string    `json:"resolver,omitempty" yaml:"resolver,omitempty"`
	FormatCode     string    `json:"format_code" yaml:"format_code"`
	URL            string    `json:"url" yaml:"url"`
	PrimaryLink    string    `json:"primary_link" yaml:"primary_link"`
	FailedAttempts int       `json:"failed_attempts" yaml:"failed_attempts"`
	ResolvedAt     time.Time `json:"resolved_at" yaml:"resolved_at"`
}
