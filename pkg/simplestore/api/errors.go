package api

import (
	"errors"
	"log/slog"
	"net/http"

	"github.com/go-chi/render"
	"github.com/tendant/simple-store/pkg/simplestore"
)

// ErrorResponse is the body of every failed request
type ErrorResponse struct {
	Error   string `json:"error"`
	Details string `json:"details,omitempty"`
	Key     string `json:"key,omitempty"`
}

func writeError(w http.ResponseWriter, r *http.Request, status int, resp ErrorResponse) {
	render.Status(r, status)
	render.JSON(w, r, resp)
}

// writeServiceError maps a service error onto a status code. failure is
// the message reported for unexpected backend errors.
func writeServiceError(w http.ResponseWriter, r *http.Request, err error, failure string) {
	var (
		verr       *simplestore.ValidationError
		uerr       *simplestore.UniqueViolationError
		maxBytesEr *http.MaxBytesError
	)

	switch {
	case errors.As(err, &verr):
		writeError(w, r, http.StatusBadRequest, ErrorResponse{Error: verr.Message})
	case errors.Is(err, simplestore.ErrInvalidInput):
		writeError(w, r, http.StatusBadRequest, ErrorResponse{Error: err.Error()})
	case simplestore.IsNotFound(err):
		writeError(w, r, http.StatusNotFound, ErrorResponse{Error: notFoundMessage(err)})
	case errors.As(err, &uerr):
		writeError(w, r, http.StatusConflict, ErrorResponse{Error: conflictMessage(uerr)})
	case errors.As(err, &maxBytesEr):
		writeError(w, r, http.StatusRequestEntityTooLarge, ErrorResponse{Error: "Request body too large"})
	default:
		slog.Error(failure,
			"request_id", RequestIDFromContext(r.Context()),
			"method", r.Method,
			"path", r.URL.Path,
			"err", err,
		)
		writeError(w, r, http.StatusInternalServerError, ErrorResponse{Error: failure, Details: err.Error()})
	}
}

func notFoundMessage(err error) string {
	if errors.Is(err, simplestore.ErrUserNotFound) {
		return "User not found"
	}
	return "File not found"
}

func conflictMessage(err *simplestore.UniqueViolationError) string {
	if err.Field == string(simplestore.UserFieldEmail) {
		return "A user with this email already exists"
	}
	return "A record with this value already exists"
}
