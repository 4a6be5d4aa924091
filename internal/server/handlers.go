package server

import (
	"encoding/json"
	"io"
	"net/http"

	"github.com/a-h/templ"
	"github.com/conneroisu/contactform/internal/errors"
	"github.com/conneroisu/contactform/internal/form"
	"github.com/conneroisu/contactform/internal/logging"
	"github.com/conneroisu/contactform/internal/submit"
)

const maxBodyBytes = 64 << 10

type fieldRequest struct {
	Field string `json:"field"`
	Value string `json:"value"`
}

type submitResponse struct {
	ID      string        `json:"id,omitempty"`
	Status  form.Status   `json:"status"`
	Errors  form.ErrorMap `json:"errors"`
	Data    form.Data     `json:"data"`
	Sending bool          `json:"sending"`
}

type errorResponse struct {
	Error string `json:"error"`
	Code  string `json:"code,omitempty"`
}

func (s *Server) handleIndex(w http.ResponseWriter, r *http.Request) {
	templ.Handler(Page(s.state.Snapshot())).ServeHTTP(w, r)
}

// handleFormSubmit is the no-JavaScript path: the browser posts all four
// fields and gets the re-rendered page back.
func (s *Server) handleFormSubmit(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
	if err := r.ParseForm(); err != nil {
		http.Error(w, "Bad Request", http.StatusBadRequest)
		return
	}

	for _, field := range form.Fields {
		if err := s.state.Set(field, r.PostFormValue(string(field))); err != nil {
			s.errHandler.Handle(r.Context(), err)
		}
	}

	if _, err := s.submitter.Submit(r.Context()); err != nil {
		s.errHandler.Handle(r.Context(), err)
	}

	templ.Handler(Page(s.state.Snapshot())).ServeHTTP(w, r)
}

func (s *Server) handleState(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.state.Snapshot())
}

func (s *Server) handleField(w http.ResponseWriter, r *http.Request) {
	var req fieldRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: "invalid JSON body"})
		return
	}

	field, err := form.ParseField(req.Field)
	if err != nil {
		writeJSON(w, http.StatusBadRequest, errorResponse{
			Error: "unknown field: " + logging.SanitizeForLog(req.Field),
			Code:  errors.ErrCodeUnknownField,
		})
		return
	}

	if err := s.state.Set(field, req.Value); err != nil {
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: err.Error(), Code: errors.ErrCodeUnknownField})
		return
	}

	writeJSON(w, http.StatusOK, s.state.Snapshot())
}

// handleSubmit submits the current form. A JSON body, when present, replaces
// all four fields, but only if no other submit is running.
func (s *Server) handleSubmit(w http.ResponseWriter, r *http.Request) {
	var (
		result submit.Result
		err    error
	)
	var data form.Data
	switch decodeErr := decodeJSON(w, r, &data); {
	case decodeErr == io.EOF:
		result, err = s.submitter.Submit(r.Context())
	case decodeErr != nil:
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: "invalid JSON body"})
		return
	default:
		result, err = s.submitter.SubmitData(r.Context(), data)
	}
	if err != nil {
		s.errHandler.Handle(r.Context(), err)
	}

	snap := s.state.Snapshot()
	resp := submitResponse{
		ID:      result.ID,
		Status:  snap.Status,
		Errors:  snap.Errors,
		Data:    snap.Data,
		Sending: snap.Sending,
	}

	writeJSON(w, submitStatusCode(err), resp)
}

func submitStatusCode(err error) int {
	switch {
	case err == nil:
		return http.StatusOK
	case errors.IsInFlight(err):
		return http.StatusConflict
	case errors.IsValidationError(err):
		return http.StatusUnprocessableEntity
	case errors.IsAPIError(err), errors.IsNetworkError(err):
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}

func handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func decodeJSON(w http.ResponseWriter, r *http.Request, v interface{}) error {
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	dec.DisallowUnknownFields()
	return dec.Decode(v)
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
