package service

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/brimdata/semq/api"
	"github.com/brimdata/semq/runner"
	"go.uber.org/zap"
)

type statusError struct {
	status int
	kind   string
	msg    string
}

func (e *statusError) Error() string {
	return e.msg
}

func errBadRequest(msg string) error {
	return &statusError{http.StatusBadRequest, "invalid", msg}
}

func errNotFound(msg string) error {
	return &statusError{http.StatusNotFound, "item does not exist", msg}
}

func errUnauthorized(msg string) error {
	return &statusError{http.StatusUnauthorized, "unauthorized", msg}
}

func errorResponse(err error) (int, api.Error) {
	var se *statusError
	switch {
	case errors.As(err, &se):
		return se.status, api.Error{Type: se.kind, Message: se.msg}
	case errors.Is(err, runner.ErrTooManyRounds):
		return http.StatusUnprocessableEntity, api.Error{Type: "invalid", Message: err.Error()}
	}
	return http.StatusInternalServerError, api.Error{Type: "error", Message: err.Error()}
}

func (c *Core) writeError(w http.ResponseWriter, r *http.Request, err error) {
	status, body := errorResponse(err)
	if status >= 500 {
		c.logger.Warn("request failed",
			zap.String("request_id", api.RequestIDFromContext(r.Context())),
			zap.Error(err))
	}
	w.Header().Set("Content-Type", api.MediaTypeJSON)
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(body)
}
