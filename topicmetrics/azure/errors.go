package azure

import (
	"fmt"
)

// Token error codes that trigger a token refresh.
const (
	CodeTokenExpired = "TokenExpired"
	CodeInvalidToken = "InvalidToken"
)

// ErrorKind classifies a failed submission.
type ErrorKind int

const (
	// Failed submissions were rejected for a non-token reason, or the
	// rejection couldn't be parsed. They aren't retried.
	Failed ErrorKind = iota
	// Abandoned submissions exhausted the attempt budget on token errors.
	Abandoned
	// TokenIssue submissions failed because a new token couldn't be issued
	// or stored.
	TokenIssue
)

func (k ErrorKind) String() string {
	switch k {
	case Failed:
		return "failed"
	case Abandoned:
		return "abandoned"
	case TokenIssue:
		return "token issue"
	default:
		return "unknown"
	}
}

// SubmitError is returned when an envelope isn't accepted.
type SubmitError struct {
	Kind     ErrorKind
	Metric   string
	Attempts int
	// StatusCode and Code describe the last monitoring response, if any.
	StatusCode int
	Code       string
	Err        error
}

// Error implements the error interface for SubmitError.
func (e *SubmitError) Error() string {
	msg := fmt.Sprintf("submitting metric %q %s after %d attempt(s)", e.Metric, e.Kind, e.Attempts)

	if e.StatusCode != 0 {
		msg += fmt.Sprintf(" (HTTP %d", e.StatusCode)
		if e.Code != "" {
			msg += ", code " + e.Code
		}
		msg += ")"
	}

	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}

	return msg
}

// Unwrap returns the underlying error.
func (e *SubmitError) Unwrap() error {
	return e.Err
}

// TokenError is returned when the identity provider doesn't issue a token.
type TokenError struct {
	Request string
	Err     error
}

// Error implements the error interface for TokenError.
func (e *TokenError) Error() string {
	return fmt.Sprintf("token request [%s] failed: %s", e.Request, e.Err)
}

// Unwrap returns the underlying error.
func (e *TokenError) Unwrap() error {
	return e.Err
}
