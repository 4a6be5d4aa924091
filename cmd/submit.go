package cmd

import (
	"fmt"
	"io"

	"github.com/conneroisu/contactform/internal/errors"
	"github.com/conneroisu/contactform/internal/form"
	"github.com/conneroisu/contactform/internal/submit"
	"github.com/spf13/cobra"
)

var (
	submitFlags  FormFlags
	submitFormat string
)

var submitCmd = &cobra.Command{
	Use:   "submit",
	Short: "Validate a form and post it to the endpoint",
	Long: `Validate the four form fields and, if they are all valid, post them as JSON
to the configured endpoint once. The exit status is non-zero when validation
fails, the endpoint answers with anything other than 200 or 201, or the
endpoint cannot be reached.

Examples:
  contactform submit --name Ada --email ada@example.com --phone 555-0100 --message Hi
  contactform submit --name Ada ... --format json
  contactform submit --endpoint http://localhost:9000/contact/ --name Ada ...`,
	RunE: runSubmit,
}

func init() {
	rootCmd.AddCommand(submitCmd)
	addFormFlags(submitCmd, &submitFlags, &submitFormat)
}

func runSubmit(cmd *cobra.Command, args []string) error {
	if err := checkFormat(submitFormat); err != nil {
		return err
	}

	cfg, logger, err := loadRuntime()
	if err != nil {
		return err
	}

	state := form.NewWithData(submitFlags.Data())
	controller := submit.New(state,
		submit.WithEndpoint(cfg.Endpoint),
		submit.WithLogger(logger))

	result, submitErr := controller.Submit(commandContext(cmd))

	if err := writeOutput(cmd.OutOrStdout(), submitFormat, result, func(w io.Writer) error {
		return writeResultText(w, result)
	}); err != nil {
		return err
	}

	if submitErr != nil {
		errors.NewErrorHandler(logger).Handle(commandContext(cmd), submitErr)
	}
	return submitErr
}

func writeResultText(w io.Writer, result submit.Result) error {
	if result.Errors.HasErrors() {
		return writeErrors(w, result.Errors)
	}
	_, err := fmt.Fprintln(w, result.Status)
	return err
}
