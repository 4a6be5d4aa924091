// Package submit validates a contact form and sends it to the remote
// endpoint, translating the outcome into the form's status text.
//
// A submit is a single attempt. There are no retries and no timeout; once the
// request is issued it is awaited to completion even if the caller's context
// is cancelled, and the sending flag is cleared only after that.
package submit

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"sync/atomic"
	"time"

	"github.com/conneroisu/contactform/internal/errors"
	"github.com/conneroisu/contactform/internal/form"
	"github.com/conneroisu/contactform/internal/logging"
	"github.com/conneroisu/contactform/internal/metrics"
	"github.com/conneroisu/contactform/internal/validation"
	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

const tracerName = "github.com/conneroisu/contactform/internal/submit"

// Doer is the subset of *http.Client the controller needs.
type Doer interface {
	Do(req *http.Request) (*http.Response, error)
}

// Result is what a single Submit produced.
type Result struct {
	ID         string        `json:"id,omitempty" yaml:"id,omitempty"`
	Status     form.Status   `json:"status" yaml:"status"`
	Errors     form.ErrorMap `json:"errors,omitempty" yaml:"errors,omitempty"`
	StatusCode int           `json:"status_code,omitempty" yaml:"status_code,omitempty"`
	Duration   time.Duration `json:"duration" yaml:"duration"`
}

// Controller runs the validate-then-send flow against one form.State.
type Controller struct {
	state    *form.State
	endpoint atomic.Pointer[string]
	client   Doer
	logger   logging.Logger
	metrics  *metrics.Metrics
	tracer   trace.Tracer

	allowConcurrent bool
	inFlight        atomic.Bool
}

// Option configures a Controller.
type Option func(*Controller)

// WithEndpoint overrides form.DefaultEndpoint.
func WithEndpoint(endpoint string) Option {
	return func(c *Controller) {
		c.endpoint.Store(&endpoint)
	}
}

// WithHTTPClient sets the client used for the request.
func WithHTTPClient(client Doer) Option {
	return func(c *Controller) {
		c.client = client
	}
}

// WithLogger sets the logger.
func WithLogger(logger logging.Logger) Option {
	return func(c *Controller) {
		c.logger = logger
	}
}

// WithMetrics records submit outcomes on m.
func WithMetrics(m *metrics.Metrics) Option {
	return func(c *Controller) {
		c.metrics = m
	}
}

// WithTracer replaces the global OpenTelemetry tracer.
func WithTracer(tracer trace.Tracer) Option {
	return func(c *Controller) {
		c.tracer = tracer
	}
}

// WithConcurrentSubmits disables the in-flight guard, so overlapping calls
// each issue their own request and the sending flag is advisory only.
func WithConcurrentSubmits(allow bool) Option {
	return func(c *Controller) {
		c.allowConcurrent = allow
	}
}

// New creates a controller for state.
func New(state *form.State, opts ...Option) *Controller {
	c := &Controller{
		state:  state,
		client: http.DefaultClient,
		logger: logging.NewNopLogger(),
		tracer: otel.Tracer(tracerName),
	}
	endpoint := form.DefaultEndpoint
	c.endpoint.Store(&endpoint)

	for _, opt := range opts {
		opt(c)
	}
	c.logger = c.logger.WithComponent("submit")

	return c
}

// State returns the form this controller submits.
func (c *Controller) State() *form.State {
	return c.state
}

// Endpoint returns the URL submissions are posted to.
func (c *Controller) Endpoint() string {
	return *c.endpoint.Load()
}

// SetEndpoint swaps the target URL for subsequent submits. A request already
// in flight keeps the URL it started with.
func (c *Controller) SetEndpoint(endpoint string) error {
	if err := validation.ValidateURL(endpoint); err != nil {
		return err
	}
	c.endpoint.Store(&endpoint)

	return nil
}

// Submit validates the form and, when it is valid, posts it once.
//
// The returned error is a validation collection when fields are invalid, an
// API error for any status other than 200/201, a network error when no
// response was obtained, or errors.ErrSubmissionInFlight when another submit
// is still running. In every case the form state has already been updated.
func (c *Controller) Submit(ctx context.Context) (Result, error) {
	return c.submit(ctx, nil)
}

// SubmitData replaces all four fields with d and submits. The fields are
// only written once the in-flight guard is held, so a rejected call leaves
// the running submission's values alone.
func (c *Controller) SubmitData(ctx context.Context, d form.Data) (Result, error) {
	return c.submit(ctx, &d)
}

func (c *Controller) submit(ctx context.Context, replace *form.Data) (Result, error) {
	if !c.allowConcurrent {
		if !c.inFlight.CompareAndSwap(false, true) {
			c.metrics.ObserveSubmit(metrics.OutcomeRejected, 0)
			return Result{Status: c.state.Status()}, errors.ErrSubmissionInFlight
		}
		defer c.inFlight.Store(false)
	}

	if replace != nil {
		for _, field := range form.Fields {
			if err := c.state.Set(field, replace.Get(field)); err != nil {
				return Result{Status: c.state.Status()}, err
			}
		}
	}

	c.state.SetStatus(form.StatusIdle)

	data := c.state.Values()
	errs := validation.Validate(data)
	c.state.SetErrors(errs)
	if errs.HasErrors() {
		c.metrics.ObserveSubmit(metrics.OutcomeInvalid, 0)
		c.logger.Debug(ctx, "Submit blocked by validation", "fields", len(errs))
		return Result{Status: form.StatusIdle, Errors: errs}, validation.ValidateCollection(data)
	}

	c.state.SetSending(true)
	defer c.state.SetSending(false)

	return c.send(context.WithoutCancel(ctx), data)
}

func (c *Controller) send(ctx context.Context, data form.Data) (Result, error) {
	id := uuid.NewString()
	endpoint := c.Endpoint()

	ctx, span := c.tracer.Start(ctx, "contactform.submit",
		trace.WithSpanKind(trace.SpanKindClient),
		trace.WithAttributes(
			attribute.String("submission.id", id),
			attribute.String("http.request.method", http.MethodPost),
			attribute.String("url.full", endpoint),
		))
	defer span.End()

	logger := c.logger.With("submission_id", id)
	op := logging.StartOperation(logger, "submit")
	logger.Debug(ctx, "Submitting contact form",
		"endpoint", endpoint,
		"email", logging.MaskEmail(data.Email),
		"phone", logging.MaskPhone(data.Phone))

	result := Result{ID: id}

	statusCode, err := c.post(ctx, endpoint, data)
	result.Duration = op.Elapsed()
	result.StatusCode = statusCode

	switch {
	case err != nil:
		c.state.SetStatus(form.StatusNetworkError)
		result.Status = form.StatusNetworkError
		c.metrics.ObserveSubmit(metrics.OutcomeNetworkError, result.Duration)
		span.RecordError(err)
		span.SetStatus(codes.Error, "network error")
		op.EndWithError(ctx, err, "outcome", metrics.OutcomeNetworkError)

	case statusCode == http.StatusOK || statusCode == http.StatusCreated:
		c.state.SetStatus(form.StatusSubmitted)
		c.state.Reset()
		result.Status = form.StatusSubmitted
		c.metrics.ObserveSubmit(metrics.OutcomeSubmitted, result.Duration)
		span.SetAttributes(attribute.Int("http.response.status_code", statusCode))
		span.SetStatus(codes.Ok, "")
		op.End(ctx, "outcome", metrics.OutcomeSubmitted, "status_code", statusCode)

	default:
		err = errors.NewAPIError(statusCode)
		c.state.SetStatus(form.StatusAPIError)
		result.Status = form.StatusAPIError
		c.metrics.ObserveSubmit(metrics.OutcomeAPIError, result.Duration)
		span.SetAttributes(attribute.Int("http.response.status_code", statusCode))
		span.SetStatus(codes.Error, "unexpected status")
		op.EndWithError(ctx, err, "outcome", metrics.OutcomeAPIError, "status_code", statusCode)
	}

	return result, err
}

// post sends data and returns the response status. The body is drained and
// discarded. Every failure to obtain a response is a network error.
func (c *Controller) post(ctx context.Context, endpoint string, data form.Data) (int, error) {
	body, err := json.Marshal(data)
	if err != nil {
		return 0, errors.NewNetworkError(fmt.Errorf("encoding form: %w", err))
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(body))
	if err != nil {
		return 0, errors.NewNetworkError(fmt.Errorf("building request: %w", err))
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")

	resp, err := c.client.Do(req)
	if err != nil {
		return 0, errors.NewNetworkError(err)
	}
	defer resp.Body.Close()

	_, _ = io.Copy(io.Discard, resp.Body)

	return resp.StatusCode, nil
}
