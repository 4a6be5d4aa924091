package submit

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/conneroisu/contactform/internal/errors"
	"github.com/conneroisu/contactform/internal/form"
	"github.com/conneroisu/contactform/internal/metrics"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel/trace/noop"
)

var validData = form.Data{Name: "A", Email: "a@b.com", Phone: "1", Message: "hi"}

// recordingEndpoint answers every request with status and remembers what it
// received.
type recordingEndpoint struct {
	*httptest.Server
	status   int
	requests atomic.Int32

	mu          sync.Mutex
	method      string
	contentType string
	body        form.Data
}

func newEndpoint(t *testing.T, status int) *recordingEndpoint {
	t.Helper()
	e := &recordingEndpoint{status: status}
	e.Server = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		e.requests.Add(1)
		raw, _ := io.ReadAll(r.Body)

		e.mu.Lock()
		e.method = r.Method
		e.contentType = r.Header.Get("Content-Type")
		_ = json.Unmarshal(raw, &e.body)
		e.mu.Unlock()

		w.WriteHeader(e.status)
		_, _ = w.Write([]byte(`{"detail":"ignored"}`))
	}))
	t.Cleanup(e.Close)
	return e
}

func closedEndpointURL(t *testing.T) string {
	t.Helper()
	srv := httptest.NewServer(http.NotFoundHandler())
	url := srv.URL
	srv.Close()
	return url
}

func TestSubmitOutcomes(t *testing.T) {
	tests := []struct {
		name         string
		status       int
		wantStatus   form.Status
		wantReset    bool
		wantErrCheck func(error) bool
	}{
		{"201 created", http.StatusCreated, form.StatusSubmitted, true, func(err error) bool { return err == nil }},
		{"200 ok", http.StatusOK, form.StatusSubmitted, true, func(err error) bool { return err == nil }},
		{"500", http.StatusInternalServerError, form.StatusAPIError, false, errors.IsAPIError},
		{"400", http.StatusBadRequest, form.StatusAPIError, false, errors.IsAPIError},
		{"202 is not success", http.StatusAccepted, form.StatusAPIError, false, errors.IsAPIError},
		{"204 is not success", http.StatusNoContent, form.StatusAPIError, false, errors.IsAPIError},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			endpoint := newEndpoint(t, tt.status)
			state := form.NewWithData(validData)
			c := New(state, WithEndpoint(endpoint.URL))

			result, err := c.Submit(context.Background())

			assert.True(t, tt.wantErrCheck(err), "unexpected error: %v", err)
			assert.Equal(t, tt.wantStatus, result.Status)
			assert.Equal(t, tt.wantStatus, state.Status())
			assert.Equal(t, tt.status, result.StatusCode)
			assert.NotEmpty(t, result.ID)
			assert.False(t, state.Sending())
			assert.Empty(t, state.Errors())
			assert.EqualValues(t, 1, endpoint.requests.Load())

			if tt.wantReset {
				assert.True(t, state.Values().IsZero())
			} else {
				assert.Equal(t, validData, state.Values())
				assert.Equal(t, tt.status, errors.StatusCode(err))
			}
		})
	}
}

func TestSubmitSendsJSON(t *testing.T) {
	endpoint := newEndpoint(t, http.StatusCreated)
	c := New(form.NewWithData(validData), WithEndpoint(endpoint.URL))

	_, err := c.Submit(context.Background())
	require.NoError(t, err)

	endpoint.mu.Lock()
	defer endpoint.mu.Unlock()
	assert.Equal(t, http.MethodPost, endpoint.method)
	assert.Equal(t, "application/json", endpoint.contentType)
	assert.Equal(t, validData, endpoint.body)
}

func TestSubmitNetworkError(t *testing.T) {
	state := form.NewWithData(validData)
	c := New(state, WithEndpoint(closedEndpointURL(t)))

	result, err := c.Submit(context.Background())

	require.Error(t, err)
	assert.True(t, errors.IsNetworkError(err))
	assert.Equal(t, form.StatusNetworkError, result.Status)
	assert.Equal(t, form.StatusNetworkError, state.Status())
	assert.Equal(t, validData, state.Values())
	assert.False(t, state.Sending())
}

func TestSubmitInvalidNeverCallsNetwork(t *testing.T) {
	tests := []struct {
		name     string
		data     form.Data
		expected form.ErrorMap
	}{
		{
			name:     "blank name",
			data:     form.Data{Name: "  ", Email: "a@b.com", Phone: "1", Message: "hi"},
			expected: form.ErrorMap{form.FieldName: "Name is required"},
		},
		{
			name:     "malformed email",
			data:     form.Data{Name: "A", Email: "not-an-email", Phone: "1", Message: "hi"},
			expected: form.ErrorMap{form.FieldEmail: "Enter a valid email"},
		},
		{
			name: "everything blank",
			data: form.Data{},
			expected: form.ErrorMap{
				form.FieldName:    "Name is required",
				form.FieldEmail:   "Email is required",
				form.FieldPhone:   "Phone is required",
				form.FieldMessage: "Message is required",
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			endpoint := newEndpoint(t, http.StatusCreated)
			state := form.NewWithData(tt.data)

			var sawSending bool
			state.Subscribe(func(ev form.Event) {
				if ev.Type == form.EventSendingChanged {
					sawSending = true
				}
			})

			result, err := New(state, WithEndpoint(endpoint.URL)).Submit(context.Background())

			require.Error(t, err)
			assert.True(t, errors.IsValidationError(err))
			assert.Equal(t, tt.expected, result.Errors)
			assert.Equal(t, tt.expected, state.Errors())
			assert.Equal(t, tt.data, state.Values())
			assert.Equal(t, form.StatusIdle, state.Status())
			assert.False(t, sawSending)
			assert.EqualValues(t, 0, endpoint.requests.Load())
		})
	}
}

func TestSubmitClearsPreviousStatus(t *testing.T) {
	state := form.New()
	state.SetStatus(form.StatusNetworkError)

	_, err := New(state).Submit(context.Background())

	require.Error(t, err)
	assert.Equal(t, form.StatusIdle, state.Status())
}

func TestSubmitEventSequence(t *testing.T) {
	endpoint := newEndpoint(t, http.StatusCreated)
	state := form.NewWithData(validData)

	var events []form.EventType
	state.Subscribe(func(ev form.Event) { events = append(events, ev.Type) })

	_, err := New(state, WithEndpoint(endpoint.URL)).Submit(context.Background())
	require.NoError(t, err)

	assert.Equal(t, []form.EventType{
		form.EventStatusChanged,  // cleared
		form.EventErrorsChanged,  // published
		form.EventSendingChanged, // true
		form.EventStatusChanged,  // Form Submitted
		form.EventReset,
		form.EventSendingChanged, // false
	}, events)
}

// blockingEndpoint holds every request until release is closed.
func blockingEndpoint(t *testing.T) (url string, arrived chan struct{}, release chan struct{}, count *atomic.Int32) {
	t.Helper()
	arrived = make(chan struct{}, 4)
	release = make(chan struct{})
	count = &atomic.Int32{}

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		count.Add(1)
		arrived <- struct{}{}
		<-release
		w.WriteHeader(http.StatusCreated)
	}))
	t.Cleanup(srv.Close)

	return srv.URL, arrived, release, count
}

func TestSubmitRejectsConcurrentSubmission(t *testing.T) {
	url, arrived, release, count := blockingEndpoint(t)
	state := form.NewWithData(validData)
	c := New(state, WithEndpoint(url))

	done := make(chan error, 1)
	go func() {
		_, err := c.Submit(context.Background())
		done <- err
	}()

	<-arrived
	assert.True(t, state.Sending())

	_, err := c.Submit(context.Background())
	assert.ErrorIs(t, err, errors.ErrSubmissionInFlight)

	close(release)
	require.NoError(t, <-done)
	assert.EqualValues(t, 1, count.Load())
	assert.False(t, state.Sending())

	// The guard is released once the first submit finishes.
	require.NoError(t, state.Set(form.FieldName, "B"))
	require.NoError(t, state.Set(form.FieldEmail, "b@c.io"))
	require.NoError(t, state.Set(form.FieldPhone, "2"))
	require.NoError(t, state.Set(form.FieldMessage, "again"))
	_, err = c.Submit(context.Background())
	assert.NoError(t, err)
}

func TestSubmitDataRejectedWhileInFlight(t *testing.T) {
	url, arrived, release, count := blockingEndpoint(t)
	state := form.New()
	c := New(state, WithEndpoint(url))

	done := make(chan error, 1)
	go func() {
		_, err := c.SubmitData(context.Background(), validData)
		done <- err
	}()

	<-arrived
	assert.Equal(t, validData, state.Values())

	other := form.Data{Name: "B", Email: "b@c.io", Phone: "2", Message: "other"}
	_, err := c.SubmitData(context.Background(), other)
	assert.ErrorIs(t, err, errors.ErrSubmissionInFlight)
	assert.Equal(t, validData, state.Values())

	close(release)
	require.NoError(t, <-done)
	assert.EqualValues(t, 1, count.Load())

	result, err := c.SubmitData(context.Background(), other)
	require.NoError(t, err)
	assert.Equal(t, form.StatusSubmitted, result.Status)
	assert.EqualValues(t, 2, count.Load())
}

func TestSubmitConcurrentAllowed(t *testing.T) {
	url, arrived, release, count := blockingEndpoint(t)
	state := form.NewWithData(validData)
	c := New(state, WithEndpoint(url), WithConcurrentSubmits(true))

	var wg sync.WaitGroup
	for i := 0; i < 2; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, _ = c.Submit(context.Background())
		}()
		<-arrived
	}

	close(release)
	wg.Wait()
	assert.EqualValues(t, 2, count.Load())
}

func TestSubmitIgnoresCallerCancellation(t *testing.T) {
	url, arrived, release, _ := blockingEndpoint(t)
	state := form.NewWithData(validData)
	c := New(state, WithEndpoint(url))

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan form.Status, 1)
	go func() {
		result, _ := c.Submit(ctx)
		done <- result.Status
	}()

	<-arrived
	cancel()
	time.Sleep(10 * time.Millisecond)
	assert.True(t, state.Sending(), "request must still be awaited")

	close(release)
	assert.Equal(t, form.StatusSubmitted, <-done)
	assert.False(t, state.Sending())
}

func TestSubmitRecordsMetrics(t *testing.T) {
	m := metrics.New(nil)
	endpoint := newEndpoint(t, http.StatusInternalServerError)
	state := form.NewWithData(validData)
	c := New(state, WithEndpoint(endpoint.URL), WithMetrics(m), WithTracer(noop.NewTracerProvider().Tracer("test")))

	_, _ = c.Submit(context.Background())
	state.Reset()
	_, _ = c.Submit(context.Background())

	assert.Equal(t, 1.0, testutil.ToFloat64(m.Submissions.WithLabelValues(metrics.OutcomeAPIError)))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.Submissions.WithLabelValues(metrics.OutcomeInvalid)))
}

func TestSetEndpoint(t *testing.T) {
	c := New(form.New())
	assert.Equal(t, form.DefaultEndpoint, c.Endpoint())

	require.NoError(t, c.SetEndpoint("http://localhost:9999/contact"))
	assert.Equal(t, "http://localhost:9999/contact", c.Endpoint())

	err := c.SetEndpoint("ftp://example.com")
	require.Error(t, err)
	assert.True(t, errors.IsConfigError(err))
	assert.Equal(t, "http://localhost:9999/contact", c.Endpoint())
}

type failingDoer struct{}

func (failingDoer) Do(*http.Request) (*http.Response, error) {
	return nil, io.ErrUnexpectedEOF
}

func TestSubmitWithCustomClient(t *testing.T) {
	state := form.NewWithData(validData)
	_, err := New(state, WithHTTPClient(failingDoer{})).Submit(context.Background())

	require.Error(t, err)
	assert.ErrorIs(t, err, io.ErrUnexpectedEOF)
	assert.Equal(t, form.StatusNetworkError, state.Status())
}
