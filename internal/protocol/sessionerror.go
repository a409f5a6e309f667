package protocol

import "fmt"

// SessionError is the error value handed to a session's error handling
// transition. It carries the wire code plus either a human readable message
// or an underlying cause, never both. It is constructed where a transport or
// protocol failure is detected and consumed immediately by the session.
type SessionError struct {
	Code    ErrorCode
	Message string
	Cause   error
}

// NewSessionError builds a SessionError carrying a message.
func NewSessionError(code ErrorCode, message string) *SessionError {
	return &SessionError{Code: code, Message: message}
}

// WrapSessionError builds a SessionError carrying an underlying cause.
func WrapSessionError(code ErrorCode, cause error) *SessionError {
	return &SessionError{Code: code, Cause: cause}
}

func (e *SessionError) Error() string {
	switch {
	case e.Cause != nil:
		return fmt.Sprintf("%s: %s", e.Code, e.Cause)
	case e.Message != "":
		return fmt.Sprintf("%s: %s", e.Code, e.Message)
	default:
		return e.Code.String()
	}
}

func (e *SessionError) Unwrap() error {
	return e.Cause
}

// Category is a shortcut for e.Code.Category().
func (e *SessionError) Category() Category {
	return e.Code.Category()
}
