package drivekit

import (
	"context"
	"errors"
	"io"
)

// ErrReadOnly is returned when a mutating operation is attempted on a
// read-only backend.
var ErrReadOnly = errors.New("filesystem is read-only")

// ============================================================================
// ReadOnlyAPI Decorator
// ============================================================================

// ReadOnlyAPI wraps a RemoteAPI to reject every mutating primitive.
// This is useful for:
// - Providing safe read-only access to sensitive data
// - Creating temporary read-only views of a drive
// - Testing scenarios where writes should be prevented
type ReadOnlyAPI struct {
	api  RemoteAPI
	opts ReadOnlyOptions
}

// ReadOnlyOptions configures the ReadOnlyAPI behavior.
type ReadOnlyOptions struct {
	// AllowMkdir permits directory creation even in read-only mode.
	// Useful for temporary directories or staging areas.
	// Default: false
	AllowMkdir bool

	// OnWriteAttempt is called when a mutating operation is attempted.
	// If nil, the default behavior returns ErrReadOnly.
	// If this function returns nil, the operation is allowed (use carefully).
	OnWriteAttempt func(op, path string) error
}

// ReadOnlyOption is a functional option for configuring ReadOnlyAPI.
type ReadOnlyOption func(*ReadOnlyOptions)

// WithAllowMkdir allows directory creation in read-only mode.
func WithAllowMkdir(allow bool) ReadOnlyOption {
	return func(o *ReadOnlyOptions) {
		o.AllowMkdir = allow
	}
}

// WithOnWriteAttempt sets a callback deciding the fate of each write.
func WithOnWriteAttempt(fn func(op, path string) error) ReadOnlyOption {
	return func(o *ReadOnlyOptions) {
		o.OnWriteAttempt = fn
	}
}

// NewReadOnlyAPI wraps api so that every mutating primitive fails with
// ErrReadOnly.
func NewReadOnlyAPI(api RemoteAPI, options ...ReadOnlyOption) *ReadOnlyAPI {
	opts := ReadOnlyOptions{}
	for _, option := range options {
		option(&opts)
	}
	return &ReadOnlyAPI{api: api, opts: opts}
}

func (r *ReadOnlyAPI) deny(op, path string) error {
	if r.opts.OnWriteAttempt != nil {
		return r.opts.OnWriteAttempt(op, path)
	}
	return NewPathError(op, path, ErrReadOnly)
}

// Info implements RemoteAPI.
func (r *ReadOnlyAPI) Info(ctx context.Context, path string, opts ...Option) (*Attributes, error) {
	return r.api.Info(ctx, path, opts...)
}

// List implements RemoteAPI.
func (r *ReadOnlyAPI) List(ctx context.Context, dir string, page, perPage int, opts ...Option) (*ListResult, error) {
	return r.api.List(ctx, dir, page, perPage, opts...)
}

// Mkdir implements RemoteAPI.
func (r *ReadOnlyAPI) Mkdir(ctx context.Context, path string) error {
	if r.opts.AllowMkdir {
		return r.api.Mkdir(ctx, path)
	}
	if err := r.deny("mkdir", path); err != nil {
		return err
	}
	return r.api.Mkdir(ctx, path)
}

// Rename implements RemoteAPI.
func (r *ReadOnlyAPI) Rename(ctx context.Context, path, newName string) error {
	if err := r.deny("rename", path); err != nil {
		return err
	}
	return r.api.Rename(ctx, path, newName)
}

// Move implements RemoteAPI.
func (r *ReadOnlyAPI) Move(ctx context.Context, srcDir, dstDir string, names []string) error {
	if err := r.deny("move", srcDir); err != nil {
		return err
	}
	return r.api.Move(ctx, srcDir, dstDir, names)
}

// Copy implements RemoteAPI.
func (r *ReadOnlyAPI) Copy(ctx context.Context, srcDir, dstDir string, names []string) error {
	if err := r.deny("copy", srcDir); err != nil {
		return err
	}
	return r.api.Copy(ctx, srcDir, dstDir, names)
}

// Remove implements RemoteAPI.
func (r *ReadOnlyAPI) Remove(ctx context.Context, dir string, names []string) error {
	if err := r.deny("remove", dir); err != nil {
		return err
	}
	return r.api.Remove(ctx, dir, names)
}

// Upload implements RemoteAPI.
func (r *ReadOnlyAPI) Upload(ctx context.Context, path string, rd io.Reader, opts ...Option) error {
	if err := r.deny("upload", path); err != nil {
		return err
	}
	return r.api.Upload(ctx, path, rd, opts...)
}

// DownloadURL implements RemoteAPI.
func (r *ReadOnlyAPI) DownloadURL(ctx context.Context, path string) (string, error) {
	return r.api.DownloadURL(ctx, path)
}

// ListMounts implements RemoteAPI.
func (r *ReadOnlyAPI) ListMounts(ctx context.Context) ([]MountPoint, error) {
	return r.api.ListMounts(ctx)
}

// Unwrap returns the wrapped RemoteAPI.
func (r *ReadOnlyAPI) Unwrap() RemoteAPI {
	return r.api
}

var _ RemoteAPI = (*ReadOnlyAPI)(nil)
