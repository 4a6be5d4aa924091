package errors

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestContactErrorError(t *testing.T) {
	cause := errors.New("connection refused")
	err := NewNetworkError(cause)

	assert.Equal(t, "[ERR_NETWORK] request did not complete: connection refused", err.Error())
	assert.Equal(t, cause, errors.Unwrap(err))
}

func TestContactErrorIs(t *testing.T) {
	a := NewAPIError(500)
	b := NewAPIError(404)

	assert.True(t, errors.Is(a, b), "same type and code should match regardless of status")
	assert.False(t, errors.Is(a, NewNetworkError(nil)))
	assert.True(t, errors.Is(fmt.Errorf("wrapped: %w", ErrSubmissionInFlight), ErrSubmissionInFlight))
}

func TestIsInFlight(t *testing.T) {
	assert.True(t, IsInFlight(fmt.Errorf("submit: %w", ErrSubmissionInFlight)))
	assert.False(t, IsInFlight(NewValidationError(ErrCodeValidationFailed, "bad")))
	assert.False(t, IsInFlight(nil))
}

func TestTypePredicates(t *testing.T) {
	vec := &ValidationErrorCollection{}
	vec.AddField("email", "x", "Enter a valid email")

	testCases := []struct {
		name       string
		err        error
		validation bool
		api        bool
		network    bool
		config     bool
	}{
		{"validation collection", vec, true, false, false, false},
		{"validation error", NewValidationError(ErrCodeUnknownField, "unknown field"), true, false, false, false},
		{"api error", NewAPIError(503), false, true, false, false},
		{"network error", NewNetworkError(errors.New("dial")), false, false, true, false},
		{"config error", NewConfigError(ErrCodeConfigInvalid, "bad port", nil), false, false, false, true},
		{"plain error", errors.New("boom"), false, false, false, false},
		{"nil", nil, false, false, false, false},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.validation, IsValidationError(tc.err))
			assert.Equal(t, tc.api, IsAPIError(tc.err))
			assert.Equal(t, tc.network, IsNetworkError(tc.err))
			assert.Equal(t, tc.config, IsConfigError(tc.err))
		})
	}
}

func TestIsRecoverable(t *testing.T) {
	vec := &ValidationErrorCollection{}
	vec.AddField("name", "", "Name is required")

	assert.True(t, IsRecoverable(vec))
	assert.True(t, IsRecoverable(ErrSubmissionInFlight))
	assert.False(t, IsRecoverable(NewAPIError(500)))
	assert.False(t, IsRecoverable(errors.New("plain")))
}

func TestStatusCode(t *testing.T) {
	assert.Equal(t, 502, StatusCode(fmt.Errorf("submit: %w", NewAPIError(502))))
	assert.Equal(t, 0, StatusCode(NewNetworkError(nil)))
	assert.Equal(t, 0, StatusCode(nil))
}

func TestValidationErrorCollection(t *testing.T) {
	t.Run("empty", func(t *testing.T) {
		vec := &ValidationErrorCollection{}
		assert.False(t, vec.HasErrors())
		assert.Equal(t, "no validation errors", vec.Error())
		assert.Nil(t, vec.ToContactError())
	})

	t.Run("single", func(t *testing.T) {
		vec := &ValidationErrorCollection{}
		vec.AddField("phone", "", "Phone is required")

		assert.Equal(t, "validation error in field 'phone': Phone is required", vec.Error())
		assert.Equal(t, map[string]string{"phone": "Phone is required"}, vec.Messages())
	})

	t.Run("multiple", func(t *testing.T) {
		vec := &ValidationErrorCollection{}
		vec.AddField("name", "", "Name is required")
		vec.AddField("email", "", "Email is required")

		assert.Equal(t, []string{"email", "name"}, vec.Fields())
		assert.Contains(t, vec.Error(), "2 errors")

		ce := vec.ToContactError()
		require.NotNil(t, ce)
		assert.Equal(t, ErrorTypeValidation, ce.Type)
		assert.Equal(t, ErrCodeValidationFailed, ce.Code)
		assert.Equal(t, "Name is required", ce.Context["name"])
		assert.True(t, ce.Recoverable)
	})
}

type recordingLogger struct {
	level  string
	msg    string
	fields []interface{}
}

func (r *recordingLogger) Error(_ context.Context, _ error, msg string, fields ...interface{}) {
	r.level, r.msg, r.fields = "error", msg, fields
}

func (r *recordingLogger) Warn(_ context.Context, _ error, msg string, fields ...interface{}) {
	r.level, r.msg, r.fields = "warn", msg, fields
}

func TestErrorHandler(t *testing.T) {
	vec := &ValidationErrorCollection{}
	vec.AddField("name", "", "Name is required")

	testCases := []struct {
		name  string
		err   error
		level string
		msg   string
	}{
		{"collection", vec, "warn", "Validation failed"},
		{"api", NewAPIError(500), "warn", "Endpoint rejected submission"},
		{"network", NewNetworkError(errors.New("eof")), "error", "Error occurred"},
		{"generic", errors.New("boom"), "error", "Unhandled error occurred"},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			logger := &recordingLogger{}
			NewErrorHandler(logger).Handle(context.Background(), tc.err)

			assert.Equal(t, tc.level, logger.level)
			assert.Equal(t, tc.msg, logger.msg)
		})
	}

	t.Run("nil error is ignored", func(t *testing.T) {
		logger := &recordingLogger{}
		NewErrorHandler(logger).Handle(context.Background(), nil)
		assert.Empty(t, logger.level)
	})
}
