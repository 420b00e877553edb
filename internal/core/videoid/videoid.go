// Package videoid validates video page URLs and extracts their identifiers.
package videoid

import (
	"errors"
	"regexp"
	"strings"
)

var (
	// ErrURLRequired is returned when no URL was supplied.
	ErrURLRequired = errors.New("url parameter is required")
	// ErrInvalidURL is returned when the URL is not on a supported host.
	ErrInvalidURL = errors.New("invalid youtube url")
	// ErrNoVideoID is returned when no identifier could be extracted.
	ErrNoVideoID = errors.New("could not extract video id")
)

var hostPattern = regexp.MustCompile(`^https?://(www\.)?(youtube\.com|youtu\.be)`)

// The first matching pattern wins: watch page, shorts, youtu.be, embed, legacy /v/.
var idPatterns = []*regexp.Regexp{
	regexp.MustCompile(`youtube\.com/watch\?v=([a-zA-Z0-9_-]+)`),
	regexp.MustCompile(`youtube\.com/shorts/([a-zA-Z0-9_-]+)`),
	regexp.MustCompile(`youtu\.be/([a-zA-Z0-9_-]+)`),
	regexp.MustCompile(`youtube\.com/embed/([a-zA-Z0-9_-]+)`),
	regexp.MustCompile(`youtube\.com/v/([a-zA-Z0-9_-]+)`),
}

// Validate checks that rawURL is present and points at a supported host.
func Validate(rawURL string) error {
	if strings.TrimSpace(rawURL) == "" {
		return ErrURLRequired
	}
	if !hostPattern.MatchString(rawURL) {
		return ErrInvalidURL
	}
	return nil
}

// Extract returns the first identifier captured by the ordered patterns.
func Extract(rawURL string) (string, bool) {
	for _, pattern := range idPatterns {
		if match := pattern.FindStringSubmatch(rawURL); len(match) > 1 {
			return match[1], true
		}
	}
	return "", false
}

// Parse validates rawURL and extracts its identifier in one step.
func Parse(rawURL string) (string, error) {
	if err := Validate(rawURL); err != nil {
		return "", err
	}
	id, ok := Extract(rawURL)
	if !ok {
		return "", ErrNoVideoID
	}
	return id, nil
}
