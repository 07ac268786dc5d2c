package whatsapp

import (
	"errors"
	"fmt"
)

// ErrEmptyMediaRef indicates an image or template message without a resolved
// media handle or link.
var ErrEmptyMediaRef = errors.New("outbound message has no media reference")

// UploadError reports a failed media upload. Body preserves the platform's
// response verbatim for operator diagnosis.
type UploadError struct {
	Status int
	Body   string
	cause  error
}

func (e *UploadError) Error() string {
	if e.cause != nil {
		return fmt.Sprintf("media upload failed: %v", e.cause)
	}
	return fmt.Sprintf("media upload failed: status %d: %s", e.Status, e.Body)
}

func (e *UploadError) Unwrap() error { return e.cause }

// SendError reports a failed message send, preserving the platform error body.
type SendError struct {
	Status int
	Body   string
	cause  error
}

func (e *SendError) Error() string {
	if e.cause != nil {
		return fmt.Sprintf("message send failed: %v", e.cause)
	}
	return fmt.Sprintf("message send failed: status %d: %s", e.Status, e.Body)
}

func (e *SendError) Unwrap() error { return e.cause }
