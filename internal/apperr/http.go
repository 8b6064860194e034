package apperr

import (
	"log/slog"
	"net/http"

	"github.com/lavente-household/authcore/internal/api/helpers"
)

// statusFor is the single point mapping a Kind to an HTTP status code.
func statusFor(k Kind) int {
	switch k {
	case KindUnauthorized:
		return http.StatusUnauthorized
	case KindForbidden:
		return http.StatusForbidden
	case KindNotFound:
		return http.StatusNotFound
	case KindInvalidUsage:
		return http.StatusBadRequest
	default:
		return http.StatusInternalServerError
	}
}

// WriteHTTP translates err into the response envelope, logging internal
// errors with full detail while returning a generic message to the caller.
func WriteHTTP(w http.ResponseWriter, r *http.Request, err error) {
	e, ok := As(err)
	if !ok {
		e = Internal("unexpected error", err)
	}

	status := statusFor(e.Kind)
	message := e.Message
	if e.Kind == KindInternal {
		slog.ErrorContext(r.Context(), "internal_error", "error", e.Err, "path", r.URL.Path)
		message = "internal server error"
	}

	helpers.RespondJSON(w, status, map[string]string{"msg": message})
}
