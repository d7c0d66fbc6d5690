package format

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"

	"gopkg.in/yaml.v3"
)

// Formatter abstracts output formatting.
type Formatter interface {
	Write(w io.Writer, payload any) error
}

// JSONFormatter writes JSON output.
type JSONFormatter struct {
	Indent bool
}

// Write writes JSON payload to a writer.
func (f JSONFormatter) Write(w io.Writer, payload any) error {
	enc := json.NewEncoder(w)
	if f.Indent {
		enc.SetIndent("", "  ")
	}
	return enc.Encode(payload)
}

// YAMLFormatter writes YAML output. Payloads go through their JSON form
// first so field names match the API.
type YAMLFormatter struct{}

func (f YAMLFormatter) Write(w io.Writer, payload any) error {
	raw, err := json.Marshal(payload)
	if err != nil {
		return err
	}
	var generic any
	if err := json.Unmarshal(raw, &generic); err != nil {
		return err
	}
	enc := yaml.NewEncoder(w)
	enc.SetIndent(2)
	if err := enc.Encode(generic); err != nil {
		return err
	}
	return enc.Close()
}

// ByName returns the formatter for "json", "json-pretty" or "yaml".
func ByName(name string) (Formatter, error) {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "", "json":
		return JSONFormatter{}, nil
	case "json-pretty":
		return JSONFormatter{Indent: true}, nil
	case "yaml", "yml":
		return YAMLFormatter{}, nil
	default:
		return nil, fmt.Errorf("unknown output format %q (use json, json-pretty or yaml)", name)
	}
}
