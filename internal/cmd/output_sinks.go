package cmd

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"

	"github.com/namelens/tubelens/internal/output"
)

type outputSink struct {
	writer io.Writer
	close  func() error
	path   string
}

func addOutputFlags(cmd *cobra.Command) {
	cmd.Flags().StringP("output-format", "o", "table", "output format: table, json, markdown, yaml")
	cmd.Flags().String("out", "", "write output to file (default stdout; use - for stdout)")
}

func resolveOutputFormat(cmd *cobra.Command) (output.Format, error) {
	value, err := cmd.Flags().GetString("output-format")
	if err != nil {
		return "", err
	}
	return output.ParseFormat(value)
}

func resolveOutputPath(cmd *cobra.Command) (string, error) {
	value, err := cmd.Flags().GetString("out")
	if err != nil {
		return "", err
	}
	return strings.TrimSpace(value), nil
}

func openSink(path string) (*outputSink, error) {
	trimmed := strings.TrimSpace(path)
	if trimmed == "" || trimmed == "-" {
		return &outputSink{writer: os.Stdout, close: func() error { return nil }, path: "-"}, nil
	}

	if err := os.MkdirAll(filepath.Dir(trimmed), 0755); err != nil {
		return nil, fmt.Errorf("create output directory: %w", err)
	}
	file, err := os.Create(trimmed)
	if err != nil {
		return nil, err
	}
	return &outputSink{writer: file, close: file.Close, path: trimmed}, nil
}

// writeRendered writes rendered output to path (stdout when empty) with a
// trailing newline.
func writeRendered(path, rendered string) error {
	sink, err := openSink(path)
	if err != nil {
		return err
	}
	if _, err := io.WriteString(sink.writer, strings.TrimRight(rendered, "\n")+"\n"); err != nil {
		_ = sink.close()
		return err
	}
	return sink.close()
}
