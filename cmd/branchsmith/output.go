package main

import (
	"encoding/json"
	"fmt"
	"io"

	"github.com/fatih/color"
	"gopkg.in/yaml.v3"
)

const (
	outputText = "text"
	outputJSON = "json"
	outputYAML = "yaml"
)

var (
	green = color.New(color.FgGreen).SprintFunc()
	red   = color.New(color.FgRed).SprintFunc()
	cyan  = color.New(color.FgCyan, color.Bold).SprintFunc()
	gray  = color.New(color.FgHiBlack).SprintFunc()
)

// render writes v as JSON or YAML, or calls text for the human format.
func render(w io.Writer, format string, v interface{}, text func(io.Writer)) error {
	switch format {
	case outputText, "":
		text(w)
		return nil
	case outputJSON:
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(v)
	case outputYAML:
		enc := yaml.NewEncoder(w)
		enc.SetIndent(2)
		if err := enc.Encode(v); err != nil {
			return err
		}
		return enc.Close()
	default:
		return fmt.Errorf("unknown output format %q (want text, json or yaml)", format)
	}
}

func mark(ok bool) string {
	if ok {
		return green("✓")
	}
	return red("✗")
}
