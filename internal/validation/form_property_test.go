//go:build property

package validation

import (
	"strings"
	"testing"

	"github.com/conneroisu/contactform/internal/form"
	"github.com/leanovate/gopter"
	"github.com/leanovate/gopter/gen"
	"github.com/leanovate/gopter/prop"
)

// TestValidateProperties checks validator invariants over generated input.
func TestValidateProperties(t *testing.T) {
	parameters := gopter.DefaultTestParameters()
	parameters.Rng.Seed(1357)
	parameters.MinSuccessfulTests = 200

	properties := gopter.NewProperties(parameters)

	// Property: any field that is blank after trimming is reported
	properties.Property("blank fields are always reported", prop.ForAll(
		func(d form.Data, blank int, padding string) bool {
			field := form.Fields[blank]
			d = d.With(field, padding)

			errs := Validate(d)

			return errs.Get(field) != "" && errs.HasErrors()
		},
		genData(),
		gen.IntRange(0, len(form.Fields)-1),
		gen.OneConstOf("", " ", "\t", "\n", "  \r\n "),
	))

	// Property: well-formed data produces an empty map
	properties.Property("well-formed data is valid", prop.ForAll(
		func(d form.Data) bool {
			return len(Validate(d)) == 0
		},
		genData(),
	))

	// Property: an address without "@" never passes
	properties.Property("email without @ is rejected", prop.ForAll(
		func(d form.Data, email string) bool {
			if strings.TrimSpace(email) == "" {
				return true
			}
			d.Email = strings.ReplaceAll(email, "@", "")
			if strings.TrimSpace(d.Email) == "" {
				return true
			}

			return Validate(d).Get(form.FieldEmail) == MsgEmailInvalid
		},
		genData(),
		gen.AnyString(),
	))

	// Property: fields are validated independently
	properties.Property("errors only name failing fields", prop.ForAll(
		func(d form.Data, blank int) bool {
			field := form.Fields[blank]
			d = d.With(field, "")

			errs := Validate(d)

			return len(errs) == 1 && errs.Get(field) != ""
		},
		genData(),
		gen.IntRange(0, len(form.Fields)-1),
	))

	properties.TestingRun(t)
}

// genData produces valid form data.
func genData() gopter.Gen {
	return gopter.CombineGens(
		gen.AlphaString().SuchThat(nonBlank),
		gen.Identifier(),
		gen.Identifier(),
		gen.NumString().SuchThat(nonBlank),
		gen.AlphaString().SuchThat(nonBlank),
	).Map(func(values []interface{}) form.Data {
		return form.Data{
			Name:    values[0].(string),
			Email:   values[1].(string) + "@" + values[2].(string) + ".com",
			Phone:   values[3].(string),
			Message: values[4].(string),
		}
	})
}

func nonBlank(s string) bool {
	return strings.TrimSpace(s) != ""
}
