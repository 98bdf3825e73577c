package drivekit

import (
	"errors"
	"fmt"
)

// Common filesystem errors
var (
	ErrNotExist       = errors.New("file does not exist")
	ErrExist          = errors.New("file already exists")
	ErrPermission     = errors.New("permission denied")
	ErrClosed         = errors.New("file already closed")
	ErrNotDir         = errors.New("not a directory")
	ErrIsDir          = errors.New("is a directory")
	ErrNotEmpty       = errors.New("directory not empty")
	ErrInvalidName    = errors.New("invalid name")
	ErrInvalidPath    = errors.New("invalid path")
	ErrInvalidOffset  = errors.New("invalid offset")
	ErrInvalidWhence  = errors.New("invalid whence")
	ErrNotSupported   = errors.New("operation not supported")
	ErrNotSeekable    = errors.New("stream is not seekable")
	ErrUnknownLength  = errors.New("stream length unknown")
	ErrCrossStorage   = errors.New("operation cannot cross storage boundaries")
	ErrTooManyRetries = errors.New("too many retries")
	ErrProtocol       = errors.New("unexpected remote response")
)

// PathError records an error and the operation and file path that caused it
type PathError struct {
	Op   string
	Path string
	Err  error
}

// Error implements the error interface
func (e *PathError) Error() string {
	return fmt.Sprintf("%s %s: %v", e.Op, e.Path, e.Err)
}

// Unwrap returns the underlying error
func (e *PathError) Unwrap() error {
	return e.Err
}

// NewPathError wraps err with the operation and path that produced it.
func NewPathError(op, path string, err error) *PathError {
	return &PathError{Op: op, Path: path, Err: err}
}

// RenameError records a failed two-path operation (rename, move, copy).
// It keeps both endpoints so callers can branch on kind without parsing
// the message.
type RenameError struct {
	Op  string
	Src string
	Dst string
	Err error
}

// Error implements the error interface
func (e *RenameError) Error() string {
	return fmt.Sprintf("%s %s -> %s: %v", e.Op, e.Src, e.Dst, e.Err)
}

// Unwrap returns the underlying error
func (e *RenameError) Unwrap() error {
	return e.Err
}

// IsNotExist reports whether an error indicates that a file or directory
// does not exist
func IsNotExist(err error) bool {
	return errors.Is(err, ErrNotExist)
}

// IsExist reports whether an error indicates that a file or directory
// already exists
func IsExist(err error) bool {
	return errors.Is(err, ErrExist)
}

// IsPermission reports whether an error indicates that permission is denied
func IsPermission(err error) bool {
	return errors.Is(err, ErrPermission) || errors.Is(err, ErrCrossStorage)
}
