package output

import (
	"encoding/json"

	"github.com/namelens/tubelens/internal/core"
)

// JSONFormatter renders results as JSON. The resolution body matches the
// HTTP API response.
type JSONFormatter struct {
	Indent bool
}

// FormatResolution renders a resolution as JSON.
func (f *JSONFormatter) FormatResolution(resolution *core.Resolution) (string, error) {
	if resolution == nil {
		return "", nil
	}
	return f.marshal(resolution)
}

// FormatHistory renders history entries as a JSON array.
func (f *JSONFormatter) FormatHistory(entries []core.HistoryEntry) (string, error) {
	if entries == nil {
		entries = []core.HistoryEntry{}
	}
	return f.marshal(entries)
}

func (f *JSONFormatter) marshal(value any) (string, error) {
	var (
		data []byte
		err  error
	)

	if f.Indent {
		data, err = json.MarshalIndent(value, "", "  ")
	} else {
		data, err = json.Marshal(value)
	}
	if err != nil {
		return "", err
	}

	return string(data), nil
}
