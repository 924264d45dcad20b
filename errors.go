package resourcex

import (
	"errors"
	"fmt"
)

// Kind tags an Error with its taxonomy entry from the error handling
// design: a stable string a caller can switch on, independent of message
// text.
type Kind string

const (
	KindInvalidLocator   Kind = "InvalidLocator"
	KindBlobNotFound     Kind = "BlobNotFound"
	KindResourceNotFound Kind = "ResourceNotFound"
	KindCorruptArchive   Kind = "CorruptArchive"
	KindCorruptState     Kind = "CorruptState"
	KindTransport        Kind = "Transport"
	KindTimeout          Kind = "Timeout"
	KindDiscoveryFailed  Kind = "DiscoveryFailed"
	KindEmptyRegistries  Kind = "EmptyRegistries"
	KindUndetectable     Kind = "Undetectable"
	KindNoLoader         Kind = "NoLoader"
	KindStorageIO        Kind = "StorageIO"
	KindCancelled        Kind = "Cancelled"
)

// Error is the common error shape surfaced by every component: a kind tag,
// a short message, and an optional wrapped cause. No Error ever contains
// the raw bytes of a blob or manifest.
type Error struct {
	Kind    Kind
	Message string
	Cause   error
}

func (e *Error) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %s: %v", e.Kind, e.Message, e.Cause)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Message)
}

func (e *Error) Unwrap() error { return e.Cause }

// NewError constructs an Error with no wrapped cause.
func NewError(kind Kind, message string) *Error {
	return &Error{Kind: kind, Message: message}
}

// Wrap constructs an Error that carries cause for inspection by Unwrap.
// The Error's text includes cause's text.
func Wrap(kind Kind, message string, cause error) *Error {
	return &Error{Kind: kind, Message: message, Cause: cause}
}

// KindOf returns the Kind carried by err, or the empty Kind if err is nil
// or was not produced by this package.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return ""
}

// Is reports whether err carries the given kind.
func Is(err error, kind Kind) bool {
	return KindOf(err) == kind
}
