package http

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"

	"github.com/couchcryptid/bloom-risk-service/internal/adapter/weather"
	"github.com/couchcryptid/bloom-risk-service/internal/domain"
	"github.com/couchcryptid/bloom-risk-service/internal/pipeline"
	"github.com/vmihailenco/msgpack/v5"
)

const msgpackContentType = "application/x-msgpack"

// errBadParam marks a query parameter that could not be parsed.
var errBadParam = errors.New("invalid parameter")

var errZeroLocation = errors.New("lat=0 lon=0 is not a supported location")

func badParam(name, value string, cause error) error {
	if cause != nil {
		return fmt.Errorf("%w %s=%q: %w", errBadParam, name, value, cause)
	}
	return fmt.Errorf("%w %s=%q", errBadParam, name, value)
}

type errorResponse struct {
	Error     string `json:"error"`
	RequestID string `json:"request_id,omitempty"`
}

// writeResponse encodes v as MessagePack when the query asks for
// format=msgpack and as JSON otherwise.
func (s *Server) writeResponse(w http.ResponseWriter, r *http.Request, status int, v any) {
	var err error
	if r.URL.Query().Get("format") == "msgpack" {
		w.Header().Set("Content-Type", msgpackContentType)
		w.WriteHeader(status)
		enc := msgpack.NewEncoder(w)
		enc.SetCustomStructTag("json")
		err = enc.Encode(v)
	} else {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(status)
		err = json.NewEncoder(w).Encode(v)
	}
	if err != nil {
		s.logger.Error("encode response", "path", r.URL.Path, "error", err)
	}
}

// writeError maps err to a status code. Unexpected errors are logged and
// reported without detail.
func (s *Server) writeError(w http.ResponseWriter, r *http.Request, err error) {
	status := statusFor(err)
	msg := err.Error()
	if status == http.StatusInternalServerError {
		s.logger.Error("api request failed", "path", r.URL.Path, "error", err)
		msg = "internal error"
	}
	s.writeResponse(w, r, status, errorResponse{
		Error:     msg,
		RequestID: pipeline.RequestID(r.Context()),
	})
}

func statusFor(err error) int {
	switch {
	case errors.Is(err, errBadParam),
		errors.Is(err, pipeline.ErrInvalidRequest),
		errors.Is(err, pipeline.ErrInvalidRange),
		errors.Is(err, domain.ErrInvalidDate),
		errors.Is(err, weather.ErrUnknownMode):
		return http.StatusBadRequest
	case errors.Is(err, pipeline.ErrNoSeries):
		return http.StatusNotFound
	case errors.Is(err, weather.ErrNotConfigured):
		return http.StatusServiceUnavailable
	case errors.Is(err, context.DeadlineExceeded):
		return http.StatusGatewayTimeout
	}
	return http.StatusInternalServerError
}
