package common

import (
	"errors"
	"io"
)

// StreamError represents stream-related errors
type StreamError struct {
	Type    StreamType `json:"type"`
	URL     string     `json:"url"`
	Code    string     `json:"code"`
	Message string     `json:"message"`
	Cause   error      `json:"-"`
}

func (e *StreamError) Error() string {
	if e.Cause != nil {
		return e.Message + ": " + e.Cause.Error()
	}
	return e.Message
}

func (e *StreamError) Unwrap() error {
	return e.Cause
}

// Common error codes
const (
	ErrCodeConnection      = "CONNECTION_FAILED"
	ErrCodeTimeout         = "TIMEOUT"
	ErrCodeRejected        = "REJECTED"
	ErrCodeDropped         = "DROPPED"
	ErrCodeInvalidPlaylist = "INVALID_PLAYLIST"
	ErrCodeNoPlayableEntry = "NO_PLAYABLE_ENTRY"
	ErrCodeMetadata        = "METADATA_ERROR"
)

// NewStreamError creates a new stream error
func NewStreamError(streamType StreamType, url, code, message string, cause error) *StreamError {
	return &StreamError{
		Type:    streamType,
		URL:     url,
		Code:    code,
		Message: message,
		Cause:   cause,
	}
}

// ErrorCode extracts the StreamError code from err, or "" when err carries none.
func ErrorCode(err error) string {
	var se *StreamError
	if errors.As(err, &se) {
		return se.Code
	}
	return ""
}

// IsRetryable reports whether the session manager should attempt recovery for
// err. Resolve failures and rejected negotiations are surfaced immediately;
// dropped connections, timeouts and a server-side EOF are worth retrying.
func IsRetryable(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, io.EOF) || errors.Is(err, io.ErrUnexpectedEOF) {
		return true
	}
	switch ErrorCode(err) {
	case ErrCodeDropped, ErrCodeConnection, ErrCodeTimeout:
		return true
	default:
		return false
	}
}
