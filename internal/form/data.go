// Package form holds the state of a single contact form: the four field
// values, the per-field error messages, the submission status text and the
// sending flag.
//
// State is an owned, mutex-guarded container. Every mutation goes through an
// explicit operation and is announced to subscribers as an Event, so front
// ends (the terminal prompt, the preview server's websocket) redraw from
// notifications instead of polling.
package form

import (
	"fmt"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"
)

// DefaultEndpoint is the contact-us API the form submits to.
const DefaultEndpoint = "https://vernanbackend.ezlab.in/api/contact-us/"

// Field names one of the form's inputs.
type Field string

const (
	FieldName    Field = "name"
	FieldEmail   Field = "email"
	FieldPhone   Field = "phone"
	FieldMessage Field = "message"
)

// Fields lists every field in display order.
var Fields = []Field{FieldName, FieldEmail, FieldPhone, FieldMessage}

// Label is the human-readable field name, e.g. "Email".
func (f Field) Label() string {
	return cases.Title(language.English).String(string(f))
}

// Placeholder is the hint shown in an empty input.
func (f Field) Placeholder() string {
	return "Enter your " + string(f)
}

// Valid reports whether f is one of the known fields.
func (f Field) Valid() bool {
	switch f {
	case FieldName, FieldEmail, FieldPhone, FieldMessage:
		return true
	}
	return false
}

// ParseField converts a raw name into a Field.
func ParseField(s string) (Field, error) {
	f := Field(s)
	if !f.Valid() {
		return "", fmt.Errorf("unknown field %q", s)
	}
	return f, nil
}

// Data is the user input record. The JSON form is the request body sent to
// the endpoint.
type Data struct {
	Name    string `json:"name" yaml:"name"`
	Email   string `json:"email" yaml:"email"`
	Phone   string `json:"phone" yaml:"phone"`
	Message string `json:"message" yaml:"message"`
}

// Get returns the value of one field.
func (d Data) Get(f Field) string {
	switch f {
	case FieldName:
		return d.Name
	case FieldEmail:
		return d.Email
	case FieldPhone:
		return d.Phone
	case FieldMessage:
		return d.Message
	}
	return ""
}

// With returns a copy of d with one field replaced. Unknown fields leave d
// unchanged.
func (d Data) With(f Field, value string) Data {
	switch f {
	case FieldName:
		d.Name = value
	case FieldEmail:
		d.Email = value
	case FieldPhone:
		d.Phone = value
	case FieldMessage:
		d.Message = value
	}
	return d
}

// IsZero reports whether every field is empty.
func (d Data) IsZero() bool {
	return d == Data{}
}

// ErrorMap maps a field to its validation message. A missing key or an empty
// message both mean the field is valid.
type ErrorMap map[Field]string

// HasErrors reports whether any field carries a non-empty message.
func (m ErrorMap) HasErrors() bool {
	for _, msg := range m {
		if msg != "" {
			return true
		}
	}
	return false
}

// Get returns the message for f, or "".
func (m ErrorMap) Get(f Field) string {
	return m[f]
}

// Clone returns an independent copy.
func (m ErrorMap) Clone() ErrorMap {
	out := make(ErrorMap, len(m))
	for k, v := range m {
		out[k] = v
	}
	return out
}

// Status is the text shown after a submit attempt.
type Status string

const (
	StatusIdle         Status = ""
	StatusSubmitted    Status = "Form Submitted"
	StatusAPIError     Status = "Error: Please check API"
	StatusNetworkError Status = "Network error"
)

// Snapshot is a consistent view of the whole state.
type Snapshot struct {
	Data    Data     `json:"data" yaml:"data"`
	Errors  ErrorMap `json:"errors" yaml:"errors"`
	Status  Status   `json:"status" yaml:"status"`
	Sending bool     `json:"sending" yaml:"sending"`
}
