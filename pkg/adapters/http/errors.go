package http

import (
	"errors"
	"fmt"
	"net/http"

	"github.com/aretw0/tollgate/pkg/domain"
)

// ErrorResponse is the body of every non-2xx JSON response.
type ErrorResponse struct {
	Detail string `json:"detail"`
}

var errInvalidBody = errors.New("invalid request body")

func errBadBody(err error) error {
	return fmt.Errorf("%w: %v", errInvalidBody, err)
}

// StatusFor maps engine errors to HTTP status codes.
func StatusFor(err error) int {
	var mie *domain.ModelInvocationError
	switch {
	case errors.Is(err, domain.ErrConversationNotFound):
		return http.StatusNotFound
	case errors.Is(err, errInvalidBody),
		errors.Is(err, domain.ErrInvalidInput),
		errors.Is(err, domain.ErrNotSuspended),
		errors.Is(err, domain.ErrNotStalled):
		return http.StatusBadRequest
	case errors.Is(err, domain.ErrConversationExists),
		errors.Is(err, domain.ErrVersionConflict):
		return http.StatusConflict
	case errors.As(err, &mie):
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}

func (s *Server) writeError(w http.ResponseWriter, r *http.Request, err error) {
	status := StatusFor(err)
	if status >= http.StatusInternalServerError {
		s.logger.Error("request failed", "path", r.URL.Path, "status", status, "err", err)
	} else {
		s.logger.Warn("request rejected", "path", r.URL.Path, "status", status, "err", err)
	}
	s.writeJSON(w, status, ErrorResponse{Detail: err.Error()})
}
