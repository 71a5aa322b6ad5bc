package httpx

import (
	"errors"
	"net/http"

	"github.com/mtvts/mtvts/internal/shared"
)

// RetryAfterSeconds is advertised on 409 responses.
const RetryAfterSeconds = "1"

// RespondError maps domain errors to HTTP responses using RFC7807. Unclassified
// errors become an opaque 500.
func RespondError(w http.ResponseWriter, err error) {
	var validation *shared.ValidationError
	var overpay *shared.OverpaymentError

	switch {
	case errors.As(err, &overpay):
		writeProblem(w, ProblemDetail{
			Title:             "Overpayment Rejected",
			Status:            http.StatusUnprocessableEntity,
			Detail:            "Payment exceeds ticket total.",
			OutstandingAmount: overpay.Outstanding.StringFixed(2),
		})
	case errors.As(err, &validation):
		writeProblem(w, ProblemDetail{
			Title:  "Validation Failed",
			Status: http.StatusUnprocessableEntity,
			Detail: err.Error(),
			Errors: validation.Fields,
		})
	case errors.Is(err, ErrBadJSON), errors.Is(err, shared.ErrValidation):
		Problem(w, http.StatusUnprocessableEntity, "Validation Failed", err.Error())
	case errors.Is(err, shared.ErrNotFound):
		Problem(w, http.StatusNotFound, "Not Found", err.Error())
	case errors.Is(err, shared.ErrReplayed):
		Problem(w, http.StatusConflict, "Conflict", "This Idempotency-Key was already used; send a new key for a new request.")
	case errors.Is(err, shared.ErrDailyLimit):
		Problem(w, http.StatusConflict, "Conflict", "No control numbers are left for today.")
	case errors.Is(err, shared.ErrConflict):
		w.Header().Set("Retry-After", RetryAfterSeconds)
		Problem(w, http.StatusConflict, "Conflict", "The resource is busy, please retry.")
	case errors.Is(err, shared.ErrInvalidCredentials):
		Problem(w, http.StatusUnauthorized, "Unauthorized", "Invalid credentials.")
	case errors.Is(err, shared.ErrUnauthorized):
		Problem(w, http.StatusUnauthorized, "Unauthorized", "")
	case errors.Is(err, shared.ErrForbidden):
		Problem(w, http.StatusForbidden, "Forbidden", "")
	default:
		Problem(w, http.StatusInternalServerError, "Internal Error", "")
	}
}
