package pulsaradmin

import (
	"fmt"
)

// APIError wraps failed admin API requests.
type APIError struct {
	Request    string
	StatusCode int
	Message    string
}

// Error implements the error interface for APIError.
func (e *APIError) Error() string {
	if e.StatusCode != 0 {
		return fmt.Sprintf("admin API error [%s] (HTTP %d): %s", e.Request, e.StatusCode, e.Message)
	}
	return fmt.Sprintf("admin API error [%s]: %s", e.Request, e.Message)
}

// ErrTopicNotFound is returned when the admin API doesn't know the
// requested topic.
type ErrTopicNotFound struct {
	Request string
}

func (e ErrTopicNotFound) Error() string {
	return fmt.Sprintf("topic not found [%s]", e.Request)
}

// ErrFetchTopic wraps a failed stats fetch for a single topic.
type ErrFetchTopic struct {
	Topic string
	Err   error
}

func (e ErrFetchTopic) Error() string {
	return fmt.Sprintf("failed to fetch stats for topic %s: %s", e.Topic, e.Err)
}

// Unwrap returns the underlying error.
func (e ErrFetchTopic) Unwrap() error {
	return e.Err
}
