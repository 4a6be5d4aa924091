package cmd

import (
	"fmt"
	"io"

	"github.com/conneroisu/contactform/internal/validation"
	"github.com/spf13/cobra"
)

var (
	validateFlags  FormFlags
	validateFormat string
)

var validateCmd = &cobra.Command{
	Use:   "validate",
	Short: "Check a form without sending it",
	Long: `Run the form validation rules and print any field errors. Nothing is sent.
The exit status is non-zero when at least one field is invalid.

Examples:
  contactform validate --name Ada --email not-an-email --phone 1 --message Hi
  contactform validate --format json`,
	RunE: runValidate,
}

func init() {
	rootCmd.AddCommand(validateCmd)
	addFormFlags(validateCmd, &validateFlags, &validateFormat)
}

func runValidate(cmd *cobra.Command, args []string) error {
	if err := checkFormat(validateFormat); err != nil {
		return err
	}

	data := validateFlags.Data()
	errs := validation.Validate(data)

	if err := writeOutput(cmd.OutOrStdout(), validateFormat, errs, func(w io.Writer) error {
		if !errs.HasErrors() {
			_, err := fmt.Fprintln(w, "valid")
			return err
		}
		return writeErrors(w, errs)
	}); err != nil {
		return err
	}

	return validation.ValidateCollection(data)
}
