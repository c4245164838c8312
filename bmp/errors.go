package bmp

import (
	"errors"
	"fmt"
)

// Kind classifies why a file could not be converted.
type Kind int

const (
	// NotFound means the file could not be opened.
	NotFound Kind = iota + 1
	// Corrupted means the header or pixel data is missing or invalid.
	Corrupted
	// Unsupported means the file is a BMP but not a 24-bit bottom-up one.
	Unsupported
)

func (k Kind) String() string {
	switch k {
	case NotFound:
		return "not found"
	case Corrupted:
		return "corrupted"
	case Unsupported:
		return "unsupported format"
	}
	return "unknown"
}

// Sentinel errors for use with errors.Is.
var (
	ErrNotFound    = errors.New("bmp: file not found")
	ErrCorrupted   = errors.New("bmp: file is invalid or corrupted")
	ErrUnsupported = errors.New("bmp: unsupported format")
)

// An Error reports a failed decode along with the file and the cause.
type Error struct {
	Kind Kind
	// Path is empty when decoding from a plain io.Reader
	Path     string
	Reason   string
	BitDepth int32
	Err      error
}

func (e *Error) Error() string {
	path := e.Path
	if path == "" {
		path = "<input>"
	}
	switch e.Kind {
	case NotFound:
		return fmt.Sprintf("file not found: %s", path)
	case Unsupported:
		if e.Reason != "" {
			return fmt.Sprintf("file is not a 24bit BMP: %s (%s)", path, e.Reason)
		}
		return fmt.Sprintf("file is not a 24bit BMP: %s is %dbit", path, e.BitDepth)
	default:
		if e.Reason != "" {
			return fmt.Sprintf("file is invalid or corrupted: %s (%s)", path, e.Reason)
		}
		return fmt.Sprintf("file is invalid or corrupted: %s", path)
	}
}

// Unwrap returns the underlying I/O error, if any.
func (e *Error) Unwrap() error {
	return e.Err
}

// Is matches the sentinel error for the kind of e.
func (e *Error) Is(target error) bool {
	switch target {
	case ErrNotFound:
		return e.Kind == NotFound
	case ErrCorrupted:
		return e.Kind == Corrupted
	case ErrUnsupported:
		return e.Kind == Unsupported
	}
	return false
}

func corrupted(reason string, err error) *Error {
	return &Error{Kind: Corrupted, Reason: reason, Err: err}
}

// KindOf returns the kind of err, or zero if err did not come from this
// package.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return 0
}
