// Package errors provides custom error types for domain-specific errors.
package errors

import (
	"errors"
	"fmt"
)

// Standard sentinel errors
var (
	ErrNoVotes              = errors.New("no votes to aggregate")
	ErrNoIndicators         = errors.New("no indicators available")
	ErrAgentNotFound        = errors.New("agent not found")
	ErrUnsupportedAgentType = errors.New("unsupported agent type")
	ErrAllAgentsFailed      = errors.New("all agents failed")
	ErrConfigInvalid        = errors.New("invalid configuration")
	ErrDataNotFound         = errors.New("data not found")
	ErrDatabaseError        = errors.New("database error")
	ErrRateLimited          = errors.New("rate limited")
	ErrNotifyFailed         = errors.New("notification failed")
	ErrNoChannels           = errors.New("no notification channels enabled")
)

// ValidationError represents a validation error.
type ValidationError struct {
	Field   string
	Value   interface{}
	Message string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("validation error: %s (%v): %s", e.Field, e.Value, e.Message)
}

// Unwrap lets errors.Is match ErrConfigInvalid on any validation failure.
func (e *ValidationError) Unwrap() error {
	return ErrConfigInvalid
}

// NewValidationError creates a new ValidationError.
func NewValidationError(field string, value interface{}, message string) *ValidationError {
	return &ValidationError{
		Field:   field,
		Value:   value,
		Message: message,
	}
}

// AgentError represents a failure inside one agent.
type AgentError struct {
	AgentName string
	Operation string
	Err       error
}

func (e *AgentError) Error() string {
	return fmt.Sprintf("agent error [%s] %s: %v", e.AgentName, e.Operation, e.Err)
}

func (e *AgentError) Unwrap() error {
	return e.Err
}

// NewAgentError creates a new AgentError.
func NewAgentError(agentName, operation string, err error) *AgentError {
	return &AgentError{
		AgentName: agentName,
		Operation: operation,
		Err:       err,
	}
}

// DataError represents a data-related error for one kind of record on one date.
type DataError struct {
	DataType string
	Date     string
	Message  string
	Err      error
}

func (e *DataError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("data error [%s] %s: %s: %v", e.DataType, e.Date, e.Message, e.Err)
	}
	return fmt.Sprintf("data error [%s] %s: %s", e.DataType, e.Date, e.Message)
}

func (e *DataError) Unwrap() error {
	return e.Err
}

// NewDataError creates a new DataError.
func NewDataError(dataType, date, message string, err error) *DataError {
	return &DataError{
		DataType: dataType,
		Date:     date,
		Message:  message,
		Err:      err,
	}
}

// NotifyError represents a failed delivery to a notification channel.
type NotifyError struct {
	Channel string
	Status  int
	Body    string
	Err     error
}

func (e *NotifyError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("notify error [%s]: %v", e.Channel, e.Err)
	}
	return fmt.Sprintf("notify error [%s]: status %d: %s", e.Channel, e.Status, e.Body)
}

func (e *NotifyError) Unwrap() error {
	if e.Err != nil {
		return e.Err
	}
	return ErrNotifyFailed
}

// NewNotifyError creates a new NotifyError.
func NewNotifyError(channel string, status int, body string, err error) *NotifyError {
	return &NotifyError{
		Channel: channel,
		Status:  status,
		Body:    body,
		Err:     err,
	}
}

// Wrap wraps an error with additional context.
func Wrap(err error, message string) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf("%s: %w", message, err)
}

// Wrapf wraps an error with formatted context.
func Wrapf(err error, format string, args ...interface{}) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf("%s: %w", fmt.Sprintf(format, args...), err)
}

// Is reports whether any error in err's chain matches target.
func Is(err, target error) bool {
	return errors.Is(err, target)
}

// As finds the first error in err's chain that matches target.
func As(err error, target interface{}) bool {
	return errors.As(err, target)
}

// Join combines several errors into one, dropping nils.
func Join(errs ...error) error {
	return errors.Join(errs...)
}
