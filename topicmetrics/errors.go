package topicmetrics

import (
	"fmt"
)

// APIError wraps backend metric system errors.
type APIError struct {
	Request string
	Message string
}

// Error implements the error interface for APIError.
func (e *APIError) Error() string {
	return fmt.Sprintf("API error [%s]: %s", e.Request, e.Message)
}

// MissingTopicError is returned when a series references a topic that has
// no stats in the current run.
type MissingTopicError struct {
	Topic string
	Field string
}

// Error implements the error interface for MissingTopicError.
func (e *MissingTopicError) Error() string {
	return fmt.Sprintf("no stats for topic %s (field %s)", e.Topic, e.Field)
}

// MissingFieldError is returned when a topic's stats were fetched but don't
// carry the requested field.
type MissingFieldError struct {
	Topic string
	Field string
}

// Error implements the error interface for MissingFieldError.
func (e *MissingFieldError) Error() string {
	return fmt.Sprintf("stats for topic %s have no field %s", e.Topic, e.Field)
}

// UnknownFieldError is returned when a kind names a stats field that isn't
// tracked.
type UnknownFieldError struct {
	Field string
}

// Error implements the error interface for UnknownFieldError.
func (e *UnknownFieldError) Error() string {
	return fmt.Sprintf("unknown topic stats field %s", e.Field)
}
