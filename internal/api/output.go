package api

import (
	"encoding/json"
	"fmt"
	"io"
	"os"

	"gopkg.in/yaml.v3"
)

// OutputFormat names a CLI rendering of API responses.
type OutputFormat string

const (
	FormatYAML OutputFormat = "yaml"
	FormatJSON OutputFormat = "json"
)

// Extraction results are deeply nested and YAML reads far better at a
// terminal, so it is the default. JSON is for piping into jq.
var outputFormat = FormatYAML

// SetOutputFormat selects the format CLI commands print in. Unrecognized
// names keep the YAML default.
func SetOutputFormat(name string) {
	if OutputFormat(name) == FormatJSON {
		outputFormat = FormatJSON
	} else {
		outputFormat = FormatYAML
	}
}

// Output renders data to stdout in the selected format.
func Output(data any) error {
	return Render(os.Stdout, outputFormat, data)
}

// Render writes data to w in the given format.
func Render(w io.Writer, format OutputFormat, data any) error {
	switch format {
	case FormatJSON:
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(data)
	case FormatYAML:
		enc := yaml.NewEncoder(w)
		enc.SetIndent(2)
		defer enc.Close()
		return enc.Encode(data)
	default:
		return fmt.Errorf("unknown output format %q", format)
	}
}
