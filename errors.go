package trident

import (
	"context"
	"fmt"
	"time"

	"github.com/pkg/errors"
)

// ErrNoFeasibleSolution is returned when a search or a correction cannot meet
// its tolerance within its budget. Results returned alongside it are the best
// attempt and must not be read as compliant.
var ErrNoFeasibleSolution = errors.New("no feasible solution")

// ConfigurationError reports a malformed or physically invalid input.
type ConfigurationError struct {
	Field  string
	Reason string
}

func (e *ConfigurationError) Error() string {
	return fmt.Sprintf("invalid configuration: %s: %s", e.Field, e.Reason)
}

func configErr(field, format string, args ...interface{}) error {
	return &ConfigurationError{Field: field, Reason: fmt.Sprintf(format, args...)}
}

// PropagationError reports a numerical failure of a single propagation call.
type PropagationError struct {
	Spacecraft string
	Epoch      time.Time
	Reason     string
}

func (e *PropagationError) Error() string {
	if e.Spacecraft == "" {
		return fmt.Sprintf("propagation failed @%s: %s", e.Epoch.Format(time.RFC3339), e.Reason)
	}
	return fmt.Sprintf("propagation of %s failed @%s: %s", e.Spacecraft, e.Epoch.Format(time.RFC3339), e.Reason)
}

// FailureKind classifies an error for audit records.
type FailureKind string

// Known failure kinds.
const (
	FailureNone          FailureKind = ""
	FailureConfiguration FailureKind = "configuration"
	FailurePropagation   FailureKind = "propagation"
	FailureInfeasible    FailureKind = "infeasible"
	FailureCancelled     FailureKind = "cancelled"
	FailureOther         FailureKind = "other"
)

// KindOf returns the failure kind of the provided error.
func KindOf(err error) FailureKind {
	if err == nil {
		return FailureNone
	}
	var cfgErr *ConfigurationError
	var propErr *PropagationError
	switch {
	case errors.As(err, &cfgErr):
		return FailureConfiguration
	case errors.As(err, &propErr):
		return FailurePropagation
	case errors.Is(err, ErrNoFeasibleSolution):
		return FailureInfeasible
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return FailureCancelled
	}
	return FailureOther
}
