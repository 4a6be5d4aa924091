// Package validation checks contact form input and the configured endpoint.
package validation

import (
	"regexp"
	"strings"

	"github.com/conneroisu/contactform/internal/errors"
	"github.com/conneroisu/contactform/internal/form"
)

// Validation messages shown next to the offending input.
const (
	MsgNameRequired    = "Name is required"
	MsgEmailRequired   = "Email is required"
	MsgEmailInvalid    = "Enter a valid email"
	MsgPhoneRequired   = "Phone is required"
	MsgMessageRequired = "Message is required"
)

// emailPattern needs exactly one "@", a local part without whitespace and a
// domain part containing a ".". Whitespace includes \v, the Unicode
// separators and the byte order mark, not only RE2's ASCII \s.
var emailPattern = regexp.MustCompile(`^[^\s\v\p{Z}\x{FEFF}@]+@[^\s\v\p{Z}\x{FEFF}@]+\.[^\s\v\p{Z}\x{FEFF}@]+$`)

// IsEmail reports whether s (already trimmed) looks like an email address.
func IsEmail(s string) bool {
	return emailPattern.MatchString(s)
}

// Validate checks every field independently and returns one message per
// failing field. The map is empty, never nil, when the data is valid.
func Validate(d form.Data) form.ErrorMap {
	errs := make(form.ErrorMap)

	if strings.TrimSpace(d.Name) == "" {
		errs[form.FieldName] = MsgNameRequired
	}

	email := strings.TrimSpace(d.Email)
	if email == "" {
		errs[form.FieldEmail] = MsgEmailRequired
	} else if !IsEmail(email) {
		errs[form.FieldEmail] = MsgEmailInvalid
	}

	if strings.TrimSpace(d.Phone) == "" {
		errs[form.FieldPhone] = MsgPhoneRequired
	}

	if strings.TrimSpace(d.Message) == "" {
		errs[form.FieldMessage] = MsgMessageRequired
	}

	return errs
}

// ValidateCollection runs Validate and returns the failures as an error, or
// nil when the data is valid.
func ValidateCollection(d form.Data) error {
	errs := Validate(d)
	if !errs.HasErrors() {
		return nil
	}

	vec := &errors.ValidationErrorCollection{}
	for _, f := range form.Fields {
		if msg := errs.Get(f); msg != "" {
			vec.AddField(string(f), d.Get(f), msg)
		}
	}

	return vec
}
