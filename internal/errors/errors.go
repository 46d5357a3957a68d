// Package errors defines the error taxonomy shared by the service, repository
// and handler layers. Callers match with errors.Is and errors.As.
package errors

import (
	stderrors "errors"
	"fmt"
	"sort"
	"strings"
)

var (
	ErrNotFound     = stderrors.New("not found")
	ErrUnauthorized = stderrors.New("unauthorized")
	ErrForbidden    = stderrors.New("forbidden")
	ErrConflict     = stderrors.New("conflict")

	ErrPaymentRequired = stderrors.New("payment required")
	ErrAmountTooSmall  = stderrors.New("amount too small")
	ErrPaymentAdapter  = stderrors.New("payment adapter error")

	ErrPersistence = stderrors.New("persistence error")
)

// ValidationError reports one or more invalid request fields.
type ValidationError struct {
	Message string            `json:"message"`
	Details map[string]string `json:"details,omitempty"`
}

// NewValidationError creates a validation error for a single field.
func NewValidationError(field, message string) *ValidationError {
	v := &ValidationError{Message: "validation failed"}
	v.Add(field, message)
	return v
}

// Add records a problem with field. The first message for a field wins.
func (e *ValidationError) Add(field, message string) {
	if e.Details == nil {
		e.Details = make(map[string]string)
	}
	if _, exists := e.Details[field]; exists {
		return
	}
	e.Details[field] = message
}

// HasErrors reports whether any field problem was recorded.
func (e *ValidationError) HasErrors() bool {
	return len(e.Details) > 0
}

// OrNil returns nil when nothing was recorded, so validators can return it directly.
func (e *ValidationError) OrNil() error {
	if e == nil || !e.HasErrors() {
		return nil
	}
	return e
}

func (e *ValidationError) Error() string {
	if len(e.Details) == 0 {
		return e.Message
	}
	fields := make([]string, 0, len(e.Details))
	for f := range e.Details {
		fields = append(fields, f)
	}
	sort.Strings(fields)

	parts := make([]string, 0, len(fields))
	for _, f := range fields {
		parts = append(parts, f+": "+e.Details[f])
	}
	return e.Message + ": " + strings.Join(parts, "; ")
}

// PaymentError is returned by the payment capture path. Kind is one of
// ErrPaymentRequired, ErrAmountTooSmall or ErrPaymentAdapter.
type PaymentError struct {
	Kind    error
	Message string
	Err     error
}

func (e *PaymentError) Error() string {
	if e.Message == "" {
		return e.Kind.Error()
	}
	return e.Kind.Error() + ": " + e.Message
}

func (e *PaymentError) Is(target error) bool {
	return target == e.Kind
}

func (e *PaymentError) Unwrap() error {
	return e.Err
}

// NewPaymentRequired reports a card order without a confirmed capture.
func NewPaymentRequired(message string) *PaymentError {
	return &PaymentError{Kind: ErrPaymentRequired, Message: message}
}

// NewAmountTooSmall reports an intent below the processor minimum charge.
func NewAmountTooSmall(amount, minimum int64, currency string) *PaymentError {
	return &PaymentError{
		Kind:    ErrAmountTooSmall,
		Message: fmt.Sprintf("amount %d %s is below the minimum charge of %d", amount, currency, minimum),
	}
}

// NewPaymentAdapterError wraps a processor failure. message is surfaced to clients.
func NewPaymentAdapterError(message string, err error) *PaymentError {
	return &PaymentError{Kind: ErrPaymentAdapter, Message: message, Err: err}
}

// PersistenceError wraps a storage failure. Its detail is never shown to clients.
type PersistenceError struct {
	Op  string
	Err error
}

func NewPersistenceError(op string, err error) *PersistenceError {
	return &PersistenceError{Op: op, Err: err}
}

func (e *PersistenceError) Error() string {
	return fmt.Sprintf("persistence error during %s: %v", e.Op, e.Err)
}

func (e *PersistenceError) Is(target error) bool {
	return target == ErrPersistence
}

func (e *PersistenceError) Unwrap() error {
	return e.Err
}

// Is and As re-export the standard helpers so callers need a single import.
func Is(err, target error) bool { return stderrors.Is(err, target) }

func As(err error, target interface{}) bool { return stderrors.As(err, target) }

func New(text string) error { return stderrors.New(text) }
