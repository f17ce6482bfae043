package model

import (
	"errors"
	"fmt"
)

// ErrorKind classifies where a tool invocation failed.
type ErrorKind string

const (
	KindInput        ErrorKind = "INPUT"
	KindTransport    ErrorKind = "TRANSPORT"
	KindRemoteStatus ErrorKind = "REMOTE_STATUS"
	KindDecode       ErrorKind = "DECODE"
	KindApplication  ErrorKind = "APPLICATION"
	KindShape        ErrorKind = "SHAPE"
	KindProcessing   ErrorKind = "PROCESSING"
)

// ToolError is the only error type that leaves a pipeline stage. Message is
// the human readable text returned to the caller verbatim.
type ToolError struct {
	Kind       ErrorKind
	Message    string
	StatusCode int
	Cause      error
}

func (e *ToolError) Error() string {
	if e == nil {
		return ""
	}
	return e.Message
}

func (e *ToolError) Unwrap() error {
	if e == nil {
		return nil
	}
	return e.Cause
}

// KindOf reports the kind of err, or KindProcessing for foreign errors.
func KindOf(err error) ErrorKind {
	var toolErr *ToolError
	if errors.As(err, &toolErr) {
		return toolErr.Kind
	}
	return KindProcessing
}

func InputError(format string, args ...any) *ToolError {
	return &ToolError{Kind: KindInput, Message: fmt.Sprintf(format, args...)}
}

func TransportError(message string, cause error) *ToolError {
	return &ToolError{Kind: KindTransport, Message: fmt.Sprintf("%s: %v", message, cause), Cause: cause}
}

func RemoteStatusError(status int, message string) *ToolError {
	return &ToolError{Kind: KindRemoteStatus, Message: message, StatusCode: status}
}

func DecodeError(message, body string, cause error) *ToolError {
	return &ToolError{Kind: KindDecode, Message: message + ": " + body, Cause: cause}
}

func ApplicationError(prefix, remoteMessage string) *ToolError {
	return &ToolError{Kind: KindApplication, Message: prefix + ": " + remoteMessage}
}

func ShapeError(message, body string) *ToolError {
	return &ToolError{Kind: KindShape, Message: message + ": " + body}
}

func ProcessingError(cause error) *ToolError {
	return &ToolError{Kind: KindProcessing, Message: fmt.Sprintf("Error processing file: %v", cause), Cause: cause}
}
