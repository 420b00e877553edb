// Package fallback fabricates placeholder mirror links used when no upstream
// resolver produced a usable direct link. The links are not guaranteed to work.
package fallback

import (
	"crypto/rand"
	"encoding/base64"
	"io"
	mathrand "math/rand/v2"
	"net/url"
	"strconv"
	"strings"
	"time"
)

// DefaultTTL is the validity window advertised in the expire parameter.
const DefaultTTL = 6 * time.Hour

const (
	minContentLength = 1000000
	maxContentLength = 10000000
)

// DefaultMirrors lists the mirror bases in output order.
var DefaultMirrors = []string{
	"https://rr1---sn-oj5hn5-55.googlevideo.com/videoplayback",
	"https://rr2---sn-oj5hn5-55.googlevideo.com/videoplayback",
	"https://rr3---sn-oj5hn5-55.googlevideo.com/videoplayback",
}

// PlaceholderGenerator builds one link per mirror.
type PlaceholderGenerator struct {
	Mirrors []string
	TTL     time.Duration
	Clock   func() time.Time
	// Random supplies the ei and id tokens.
	Random io.Reader
	// Intn returns a value in [0, n).
	Intn func(n int) int
}

// NewPlaceholderGenerator returns a generator over mirrors, or the default
// mirrors when none are given.
func NewPlaceholderGenerator(mirrors []string, ttl time.Duration) *PlaceholderGenerator {
	cleaned := make([]string, 0, len(mirrors))
	for _, m := range mirrors {
		if m = strings.TrimSpace(m); m != "" {
			cleaned = append(cleaned, m)
		}
	}
	if len(cleaned) == 0 {
		cleaned = append(cleaned, DefaultMirrors...)
	}
	return &PlaceholderGenerator{Mirrors: cleaned, TTL: ttl}
}

// Generate returns one placeholder URL per mirror. The video identifier is
// accepted for interface symmetry; the links only carry the format code.
func (g *PlaceholderGenerator) Generate(videoID, formatCode string) []string {
	if g == nil {
		return nil
	}
	mirrors := g.Mirrors
	if len(mirrors) == 0 {
		mirrors = DefaultMirrors
	}

	now := g.now()
	expire := now.Add(g.ttl()).Unix()
	lmt := strconv.FormatInt(now.Unix(), 10) + "000"

	links := make([]string, 0, len(mirrors))
	for _, base := range mirrors {
		params := []param{
			{"expire", strconv.FormatInt(expire, 10)},
			{"ei", g.token(12)},
			{"ip", "127.0.0.1"},
			{"id", "o-" + g.token(20)},
			{"itag", formatCode},
			{"source", "youtube"},
			{"requiressl", "yes"},
			{"mime", "video/mp4"},
			{"ratebypass", "yes"},
			{"lmt", lmt},
			{"clen", strconv.Itoa(minContentLength + g.intn(maxContentLength-minContentLength+1))},
			{"gir", "yes"},
		}
		links = append(links, base+"?"+encode(params))
	}
	return links
}

type param struct {
	key   string
	value string
}

func encode(params []param) string {
	parts := make([]string, 0, len(params))
	for _, p := range params {
		parts = append(parts, url.QueryEscape(p.key)+"="+url.QueryEscape(p.value))
	}
	return strings.Join(parts, "&")
}

func (g *PlaceholderGenerator) token(n int) string {
	buf := make([]byte, n)
	source := g.Random
	if source == nil {
		source = rand.Reader
	}
	// A short read leaves zero bytes; the token stays well-formed.
	_, _ = io.ReadFull(source, buf)
	return base64.StdEncoding.EncodeToString(buf)
}

func (g *PlaceholderGenerator) intn(n int) int {
	if g.Intn != nil {
		return g.Intn(n)
	}
	return mathrand.IntN(n)
}

func (g *PlaceholderGenerator) ttl() time.Duration {
	if g.TTL > 0 {
		return g.TTL
	}
	return DefaultTTL
}

func (g *PlaceholderGenerator) now() time.Time {
	if g.Clock != nil {
		return g.Clock()
	}
	return time.Now()
}
