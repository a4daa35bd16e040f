package service

import (
	"errors"
	"fmt"
	"math"
	"strings"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

var (
	ErrForbidden       = errors.New("forbidden: insufficient permissions")
	ErrUnauthenticated = errors.New("not authenticated")
)

var tracer = otel.Tracer("github.com/dmehra2102/prod-golang-projects/dentaflow/internal/service")

type ValidationError struct {
	Fields []string
}

func (e *ValidationError) Error() string {
	return "validation failed: " + strings.Join(e.Fields, "; ")
}

func invalid(fields ...string) *ValidationError {
	return &ValidationError{Fields: fields}
}

// AccountLockedError is returned while an account is locked after too many failed logins.
type AccountLockedError struct {
	Remaining time.Duration
}

func (e *AccountLockedError) Minutes() int {
	return int(math.Ceil(e.Remaining.Minutes()))
}

func (e *AccountLockedError) Error() string {
	return fmt.Sprintf("Too many failed login attempts. Please try again in %d minutes.", e.Minutes())
}

func (e *AccountLockedError) Unwrap() error {
	return ErrAccountLocked
}

// endSpan records err on the span before ending it.
func endSpan(span trace.Span, err error) {
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	}
	span.End()
}
