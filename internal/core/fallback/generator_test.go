package fallback

import (
	"bytes"
	"net/url"
	"strconv"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestGenerateProducesOneLinkPerMirror(t *testing.T) {
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	g := &PlaceholderGenerator{Clock: func() time.Time { return now }}

	links := g.Generate("abc123XYZ_-", "22")
	require.Len(t, links, 3)

	for i, link := range links {
		parsed, err := url.Parse(link)
		require.NoError(t, err)
		require.Equal(t, "https", parsed.Scheme)
		require.Equal(t, "rr"+strconv.Itoa(i+1)+"---sn-oj5hn5-55.googlevideo.com", parsed.Host)
		require.Equal(t, "/videoplayback", parsed.Path)

		q := parsed.Query()
		require.Equal(t, "22", q.Get("itag"))
		require.Equal(t, strconv.FormatInt(now.Add(6*time.Hour).Unix(), 10), q.Get("expire"))
		require.Equal(t, strconv.FormatInt(now.Unix(), 10)+"000", q.Get("lmt"))
		require.Equal(t, "127.0.0.1", q.Get("ip"))
		require.Equal(t, "youtube", q.Get("source"))
		require.Equal(t, "video/mp4", q.Get("mime"))
		require.True(t, strings.HasPrefix(q.Get("id"), "o-"))
		require.Len(t, q.Get("ei"), 16)

		clen, err := strconv.Atoi(q.Get("clen"))
		require.NoError(t, err)
		require.GreaterOrEqual(t, clen, 1000000)
		require.LessOrEqual(t, clen, 10000000)
	}
}

func TestGenerateExpireTracksWallClock(t *testing.T) {
	links := (&PlaceholderGenerator{}).Generate("abc", "18")
	require.Len(t, links, 3)

	parsed, err := url.Parse(links[0])
	require.NoError(t, err)
	expire, err := strconv.ParseInt(parsed.Query().Get("expire"), 10, 64)
	require.NoError(t, err)
	require.InDelta(t, time.Now().Unix()+21600, expire, 1)
}

func TestGenerateParameterOrder(t *testing.T) {
	g := &PlaceholderGenerator{
		Mirrors: []string{"https://mirror.example/videoplayback"},
		Random:  bytes.NewReader(make([]byte, 64)),
		Intn:    func(int) int { return 0 },
		Clock:   func() time.Time { return time.Unix(1000, 0) },
	}

	links := g.Generate("abc", "18")
	require.Equal(t, []string{
		"https://mirror.example/videoplayback?expire=22600&ei=AAAAAAAAAAAAAAAA&ip=127.0.0.1" +
			"&id=o-AAAAAAAAAAAAAAAAAAAAAAAAAAA%3D&itag=18&source=youtube&requiressl=yes" +
			"&mime=video%2Fmp4&ratebypass=yes&lmt=1000000&clen=1000000&gir=yes",
	}, links)
}

func TestGenerateRandomTokensDiffer(t *testing.T) {
	links := (&PlaceholderGenerator{}).Generate("abc", "18")
	first, _ := url.Parse(links[0])
	second, _ := url.Parse(links[1])
	require.NotEqual(t, first.Query().Get("id"), second.Query().Get("id"))
}

func TestNewPlaceholderGeneratorDefaults(t *testing.T) {
	g := NewPlaceholderGenerator([]string{" ", ""}, 0)
	require.Equal(t, DefaultMirrors, g.Mirrors)

	g = NewPlaceholderGenerator([]string{"https://a.example/vp"}, time.Hour)
	require.Len(t, g.Generate("abc", "18"), 1)

	var nilGen *PlaceholderGenerator
	require.Nil(t, nilGen.Generate("abc", "18"))
}
