package cmd

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"

	"github.com/conneroisu/contactform/internal/form"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"gopkg.in/yaml.v3"
)

// Output formats accepted by --format.
const (
	formatText = "text"
	formatJSON = "json"
	formatYAML = "yaml"
)

// FormFlags holds the four field values given on the command line.
type FormFlags struct {
	Name    string
	Email   string
	Phone   string
	Message string
}

// Data converts the flags into form data.
func (f *FormFlags) Data() form.Data {
	return form.Data{Name: f.Name, Email: f.Email, Phone: f.Phone, Message: f.Message}
}

// FlagSet returns a flag set with one flag per form field, described by the
// field's placeholder text.
func (f *FormFlags) FlagSet() *pflag.FlagSet {
	fs := pflag.NewFlagSet("form", pflag.ContinueOnError)
	targets := map[form.Field]*string{
		form.FieldName:    &f.Name,
		form.FieldEmail:   &f.Email,
		form.FieldPhone:   &f.Phone,
		form.FieldMessage: &f.Message,
	}
	for _, field := range form.Fields {
		fs.StringVar(targets[field], string(field), "", field.Placeholder())
	}
	return fs
}

// addFormFlags registers the field flags and --format on cmd.
func addFormFlags(cmd *cobra.Command, f *FormFlags, format *string) {
	cmd.Flags().AddFlagSet(f.FlagSet())
	cmd.Flags().StringVarP(format, "format", "f", formatText, "Output format (text, json, yaml)")
}

func checkFormat(format string) error {
	switch format {
	case formatText, formatJSON, formatYAML:
		return nil
	default:
		return fmt.Errorf("unsupported format: %s (supported: %s)",
			format, strings.Join([]string{formatText, formatJSON, formatYAML}, ", "))
	}
}

// writeOutput encodes v as JSON or YAML, or calls text for the text format.
func writeOutput(w io.Writer, format string, v interface{}, text func(io.Writer) error) error {
	switch format {
	case formatJSON:
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(v)
	case formatYAML:
		enc := yaml.NewEncoder(w)
		enc.SetIndent(2)
		if err := enc.Encode(v); err != nil {
			return err
		}
		return enc.Close()
	default:
		return text(w)
	}
}

// writeErrors prints one "field: message" line per error in display order.
func writeErrors(w io.Writer, errs form.ErrorMap) error {
	for _, field := range form.Fields {
		if msg := errs.Get(field); msg != "" {
			if _, err := fmt.Fprintf(w, "%s: %s\n", field, msg); err != nil {
				return err
			}
		}
	}
	return nil
}
