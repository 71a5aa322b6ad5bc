package shared

import (
	"errors"
	"fmt"
	"sort"
	"strings"

	"github.com/shopspring/decimal"
)

var (
	// ErrNotFound indicates resource not found.
	ErrNotFound = errors.New("not found")
	// ErrValidation indicates malformed or missing input. Nothing was written.
	ErrValidation = errors.New("validation failed")
	// ErrConflict indicates lock contention or a uniqueness collision. The whole
	// operation may be retried from scratch.
	ErrConflict = errors.New("conflict")
	// ErrReplayed indicates an Idempotency-Key was already used. Retrying with
	// the same key can never succeed.
	ErrReplayed = errors.New("idempotency key already used")
	// ErrDailyLimit indicates the day's control numbers are used up.
	ErrDailyLimit = errors.New("daily control number limit reached")
	// ErrOverpayment indicates a payment would exceed the outstanding balance.
	ErrOverpayment = errors.New("payment exceeds ticket total")
	// ErrInvalidCredentials indicates login failure.
	ErrInvalidCredentials = errors.New("invalid credentials")
	// ErrUnauthorized indicates a missing or expired bearer token.
	ErrUnauthorized = errors.New("unauthorized")
	// ErrForbidden indicates the actor lacks the required role.
	ErrForbidden = errors.New("forbidden")
)

// ValidationError carries per-field messages. It matches ErrValidation.
type ValidationError struct {
	Fields map[string]string
}

// NewValidationError builds a ValidationError for a single field.
func NewValidationError(field, message string) *ValidationError {
	return &ValidationError{Fields: map[string]string{field: message}}
}

func (e *ValidationError) Error() string {
	if len(e.Fields) == 0 {
		return ErrValidation.Error()
	}
	keys := make([]string, 0, len(e.Fields))
	for k := range e.Fields {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	parts := make([]string, 0, len(keys))
	for _, k := range keys {
		parts = append(parts, k+": "+e.Fields[k])
	}
	return ErrValidation.Error() + ": " + strings.Join(parts, "; ")
}

// Is reports ErrValidation equivalence.
func (e *ValidationError) Is(target error) bool {
	return target == ErrValidation
}

// OverpaymentError reports the rejected amount against the outstanding balance.
type OverpaymentError struct {
	Attempted   decimal.Decimal
	Outstanding decimal.Decimal
}

func (e *OverpaymentError) Error() string {
	return fmt.Sprintf("%s: attempted %s, outstanding %s", ErrOverpayment, e.Attempted.StringFixed(2), e.Outstanding.StringFixed(2))
}

// Is reports ErrOverpayment equivalence.
func (e *OverpaymentError) Is(target error) bool {
	return target == ErrOverpayment
}

// NotFoundf wraps ErrNotFound with a description of the missing target.
func NotFoundf(format string, args ...any) error {
	return fmt.Errorf("%s: %w", fmt.Sprintf(format, args...), ErrNotFound)
}
