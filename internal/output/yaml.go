package output

import (
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/namelens/tubelens/internal/core"
)

// YAMLFormatter renders results as YAML, including resolver and attempt
// details the JSON body omits.
type YAMLFormatter struct{}

// FormatResolution renders a resolution as YAML.
func (f *YAMLFormatter) FormatResolution(resolution *core.Resolution) (string, error) {
	if resolution == nil {
		return "", nil
	}
	return marshalYAML(resolution)
}

// FormatHistory renders history entries as a YAML sequence.
func (f *YAMLFormatter) FormatHistory(entries []core.HistoryEntry) (string, error) {
	if entries == nil {
		entries = []core.HistoryEntry{}
	}
	return marshalYAML(entries)
}

func marshalYAML(value any) (string, error) {
	data, err := yaml.Marshal(value)
	if err != nil {
		return "", err
	}
	return strings.TrimRight(string(data), "\n"), nil
}
