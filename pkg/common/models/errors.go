package models

import (
	"errors"
	"fmt"
)

var (
	ErrZeroDivisor          = errors.New("divisor is zero")
	ErrZeroAvailableDays    = errors.New("available days per year is zero")
	ErrZeroDuration         = errors.New("average visit duration is zero")
	ErrZeroAvailableMinutes = errors.New("total minutes per year is zero")
)

// ConfigurationError marks a computation that cannot proceed with the stored
// settings. It is fatal for the affected service only.
type ConfigurationError struct {
	Scope  string
	Field  string
	Reason string
	Err    error
}

func (e ConfigurationError) Error() string {
	if e.Scope != "" {
		return fmt.Sprintf("configuration error in %s: %s: %s", e.Scope, e.Field, e.Reason)
	}
	return fmt.Sprintf("configuration error: %s: %s", e.Field, e.Reason)
}

func (e ConfigurationError) Unwrap() error {
	return e.Err
}

func IsConfigurationError(err error) bool {
	var ce ConfigurationError
	return errors.As(err, &ce)
}

// InputValidationError rejects a value at the boundary before it reaches the
// pipeline.
type InputValidationError struct {
	Field  string
	Value  interface{}
	Reason string
}

func (e InputValidationError) Error() string {
	return fmt.Sprintf("invalid %s %v: %s", e.Field, e.Value, e.Reason)
}

func IsInputValidationError(err error) bool {
	var ve InputValidationError
	return errors.As(err, &ve)
}

type Severity string

const (
	SeverityWarning Severity = "warning"
	SeverityError   Severity = "error"
)

type IssueKind string

const (
	KindDataCompleteness IssueKind = "data_completeness"
	KindConfiguration    IssueKind = "configuration"
	KindValidation       IssueKind = "validation"
)

// Issue is a non-fatal finding reported next to results. Warnings flag
// unmapped cells, errors flag a service whose computation was skipped.
type Issue struct {
	Severity Severity  `json:"severity"`
	Kind     IssueKind `json:"kind"`
	Service  Service   `json:"service,omitempty"`
	AgeGroup AgeGroup  `json:"age_group,omitempty"`
	Detail   string    `json:"detail"`
}

func CompletenessWarning(service Service, age AgeGroup, detail string) Issue {
	return Issue{Severity: SeverityWarning, Kind: KindDataCompleteness, Service: service, AgeGroup: age, Detail: detail}
}

// IssueFromError classifies err into an error-severity issue for service.
func IssueFromError(service Service, err error) Issue {
	kind := KindConfiguration
	if IsInputValidationError(err) {
		kind = KindValidation
	}
	return Issue{Severity: SeverityError, Kind: kind, Service: service, Detail: err.Error()}
}
