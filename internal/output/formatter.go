// Package output provides formatters for displaying VM descriptors
// in various formats (table, YAML, JSON).
package output

import (
	"fmt"

	"github.com/tnk4on/qvm/internal/vm"
)

// Format represents an output format type.
type Format string

const (
	// FormatTable is a human-readable table format.
	FormatTable Format = "table"
	// FormatYAML is a YAML format.
	FormatYAML Format = "yaml"
	// FormatJSON is a JSON format for machine consumption.
	FormatJSON Format = "json"
)

// Formatter formats VM descriptors for output.
type Formatter interface {
	// FormatVM formats a single descriptor.
	FormatVM(d *vm.Descriptor) (string, error)

	// FormatVMList formats the result of a listing.
	FormatVMList(vms []vm.Summary) (string, error)
}

// Options contains options for formatting output.
type Options struct {
	// Format specifies the output format.
	Format Format
	// NoHeaders omits headers in table format.
	NoHeaders bool
}

// NewFormatter creates a new Formatter based on the specified format.
func NewFormatter(opts Options) (Formatter, error) {
	switch opts.Format {
	case FormatTable:
		return &TableFormatter{NoHeaders: opts.NoHeaders}, nil
	case FormatYAML:
		return &YAMLFormatter{}, nil
	case FormatJSON:
		return &JSONFormatter{}, nil
	default:
		return nil, fmt.Errorf("unsupported output format: %s (supported: table, yaml, json)", opts.Format)
	}
}

// ValidateFormat checks if a format string is one of allowed.
func ValidateFormat(format string, allowed ...Format) error {
	if len(allowed) == 0 {
		allowed = []Format{FormatTable, FormatYAML, FormatJSON}
	}
	for _, f := range allowed {
		if Format(format) == f {
			return nil
		}
	}
	names := make([]string, len(allowed))
	for i, f := range allowed {
		names[i] = string(f)
	}
	return fmt.Errorf("invalid format: %s (valid formats: %v)", format, names)
}
