package form

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFieldLabels(t *testing.T) {
	testCases := []struct {
		field       Field
		label       string
		placeholder string
	}{
		{FieldName, "Name", "Enter your name"},
		{FieldEmail, "Email", "Enter your email"},
		{FieldPhone, "Phone", "Enter your phone"},
		{FieldMessage, "Message", "Enter your message"},
	}

	for _, tc := range testCases {
		t.Run(string(tc.field), func(t *testing.T) {
			assert.Equal(t, tc.label, tc.field.Label())
			assert.Equal(t, tc.placeholder, tc.field.Placeholder())
		})
	}
}

func TestParseField(t *testing.T) {
	f, err := ParseField("email")
	require.NoError(t, err)
	assert.Equal(t, FieldEmail, f)

	_, err = ParseField("Email")
	assert.Error(t, err)
}

func TestDataGetWith(t *testing.T) {
	d := Data{}
	for _, f := range Fields {
		d = d.With(f, string(f)+"-value")
	}

	for _, f := range Fields {
		assert.Equal(t, string(f)+"-value", d.Get(f))
	}

	assert.Equal(t, d, d.With(Field("bogus"), "x"))
	assert.Empty(t, d.Get(Field("bogus")))
}

func TestDataJSONShape(t *testing.T) {
	body, err := json.Marshal(Data{Name: "A", Email: "a@b.com", Phone: "1", Message: "hi"})
	require.NoError(t, err)

	assert.JSONEq(t, `{"name":"A","email":"a@b.com","phone":"1","message":"hi"}`, string(body))
}

func TestErrorMapHasErrors(t *testing.T) {
	assert.False(t, ErrorMap(nil).HasErrors())
	assert.False(t, ErrorMap{FieldName: ""}.HasErrors())
	assert.True(t, ErrorMap{FieldName: "Name is required"}.HasErrors())
}
