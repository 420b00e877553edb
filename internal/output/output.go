package output

import (
	"fmt"
	"strings"

	"github.com/namelens/tubelens/internal/core"
)

// Format represents an output format.
type Format string

const (
	FormatTable    Format = "table"
	FormatJSON     Format = "json"
	FormatMarkdown Format = "markdown"
	FormatYAML     Format = "yaml"
)

// Formatter renders resolutions and history listings.
type Formatter interface {
	FormatResolution(resolution *core.Resolution) (string, error)
	FormatHistory(entries []core.HistoryEntry) (string, error)
}

// ParseFormat validates and normalizes a format string.
func ParseFormat(value string) (Format, error) {
	normalized := strings.ToLower(strings.TrimSpace(value))
	switch normalized {
	case "", string(FormatTable):
		return FormatTable, nil
	case string(FormatJSON):
		return FormatJSON, nil
	case string(FormatMarkdown), "md":
		return FormatMarkdown, nil
	case string(FormatYAML), "yml":
		return FormatYAML, nil
	default:
		return "", fmt.Errorf("unsupported output format: %s", value)
	}
}

// NewFormatter returns a formatter for the requested format.
func NewFormatter(format Format) Formatter {
	switch format {
	case FormatJSON:
		return &JSONFormatter{Indent: true}
	case FormatMarkdown:
		return &MarkdownFormatter{}
	case FormatYAML:
		return &YAMLFormatter{}
	default:
		return &TableFormatter{}
	}
}

// Extension returns the file extension used when writing format to disk.
func (f Format) Extension() string {
	switch f {
	case FormatJSON:
		return "json"
	case FormatMarkdown:
		return "md"
	case FormatYAML:
		return "yaml"
	default:
		return "txt"
	}
}

// videoTitle pulls the oEmbed title out of the metadata, if any.
func videoTitle(resolution *core.Resolution) string {
	if resolution == nil || resolution.VideoInfo == nil {
		return ""
	}
	title, _ := resolution.VideoInfo["title"].(string)
	return strings.TrimSpace(title)
}

func videoAuthor(resolution *core.Resolution) string {
	if resolution == nil || resolution.VideoInfo == nil {
		return ""
	}
	author, _ := resolution.VideoInfo["author_name"].(string)
	return strings.TrimSpace(author)
}

// resolutionRows lists the human-facing fields in display order.
func resolutionRows(resolution *core.Resolution) [][2]string {
	rows := [][2]string{
		{"Video ID", resolution.VideoID},
	}
	if title := videoTitle(resolution); title != "" {
		rows = append(rows, [2]string{"Title", title})
	}
	if author := videoAuthor(resolution); author != "" {
		rows = append(rows, [2]string{"Author", author})
	}
	rows = append(rows,
		[2]string{"Source", sourceLabel(resolution)},
		[2]string{"Format", resolution.FormatCode},
		[2]string{"Primary", resolution.Links.Primary},
	)
	for i, alt := range resolution.Links.Alternatives {
		rows = append(rows, [2]string{fmt.Sprintf("Alternative %d", i+1), alt})
	}
	rows = append(rows,
		[2]string{"Resolved", resolution.Timestamp},
		[2]string{"Expires", resolution.ExpiresAt},
	)
	for _, attempt := range resolution.Attempts {
		rows = append(rows, [2]string{"Failed", attempt})
	}
	return rows
}

func sourceLabel(resolution *core.Resolution) string {
	label := string(resolution.Source)
	if resolution.Resolver != "" {
		label += " (" + resolution.Resolver + ")"
	}
	return label
}

// shortLink truncates long links for table cells.
func shortLink(link string, max int) string {
	if max <= 3 || len(link) <= max {
		return link
	}
	return link[:max-3] + "..."
}
