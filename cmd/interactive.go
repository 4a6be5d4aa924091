package cmd

import (
	"bufio"
	"fmt"
	"io"
	"strings"

	"github.com/conneroisu/contactform/internal/errors"
	"github.com/conneroisu/contactform/internal/form"
	"github.com/conneroisu/contactform/internal/submit"
	"github.com/spf13/cobra"
)

var interactiveCmd = &cobra.Command{
	Use:     "interactive",
	Aliases: []string{"i"},
	Short:   "Fill in the contact form at a prompt",
	Long: `Prompt for each field of the contact form and submit it.

When a field is invalid its message is shown and only the invalid fields are
asked for again. When the endpoint rejects the form or cannot be reached you
are asked whether to try again with the same answers.`,
	RunE: runInteractive,
}

func init() {
	rootCmd.AddCommand(interactiveCmd)
}

func runInteractive(cmd *cobra.Command, args []string) error {
	cfg, logger, err := loadRuntime()
	if err != nil {
		return err
	}

	controller := submit.New(form.New(),
		submit.WithEndpoint(cfg.Endpoint),
		submit.WithLogger(logger))

	return promptLoop(cmd, controller, bufio.NewReader(cmd.InOrStdin()), cmd.OutOrStdout())
}

func promptLoop(cmd *cobra.Command, controller *submit.Controller, in *bufio.Reader, out io.Writer) error {
	state := controller.State()
	ctx := commandContext(cmd)
	ask := form.Fields

	fmt.Fprintln(out, "Contact Us")
	for {
		errs := state.Errors()
		for _, field := range ask {
			if msg := errs.Get(field); msg != "" {
				fmt.Fprintf(out, "  ! %s\n", msg)
			}
			value, err := prompt(in, out, field.Label()+": ")
			if err != nil {
				return err
			}
			if err := state.Set(field, value); err != nil {
				return err
			}
		}

		fmt.Fprintln(out, "Sending...")
		result, err := controller.Submit(ctx)
		switch {
		case err == nil:
			fmt.Fprintln(out, result.Status)
			return nil

		case errors.IsValidationError(err) && !errors.IsInFlight(err):
			ask = invalidFields(result.Errors)

		default:
			fmt.Fprintln(out, result.Status)
			answer, perr := prompt(in, out, "Try again? [y/N]: ")
			if perr != nil || !isYes(answer) {
				return err
			}
			ask = nil
		}
	}
}

func invalidFields(errs form.ErrorMap) []form.Field {
	var fields []form.Field
	for _, field := range form.Fields {
		if errs.Get(field) != "" {
			fields = append(fields, field)
		}
	}
	return fields
}

// prompt reads one line. A final line without a newline is accepted; an
// empty read at end of input is an error.
func prompt(in *bufio.Reader, out io.Writer, label string) (string, error) {
	fmt.Fprint(out, label)
	line, err := in.ReadString('\n')
	if err != nil && (err != io.EOF || line == "") {
		fmt.Fprintln(out)
		if err == io.EOF {
			return "", fmt.Errorf("input closed before the form was complete")
		}
		return "", err
	}
	return strings.TrimRight(line, "\r\n"), nil
}

func isYes(s string) bool {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "y", "yes":
		return true
	}
	return false
}
