package drivekit

// Option represents a per-operation configuration option
type Option func(*Options)

// Options contains all possible options for remote operations
type Options struct {
	// Password unlocks password-protected directories on backends that
	// support them. An empty value means the filesystem default applies.
	Password string

	// Refresh asks the backend to bypass its own listing cache.
	Refresh bool

	// Replace allows rename/move to overwrite an existing destination.
	// Only files and empty directories are replaceable.
	Replace bool

	// Overwrite allows upload to replace an existing file.
	Overwrite bool

	// PerPage overrides the listing page size for this operation.
	PerPage int
}

// ApplyOptions folds opts into an Options value. Drivers use it to read
// per-operation options passed through the RemoteAPI surface.
func ApplyOptions(opts ...Option) *Options {
	o := &Options{}
	for _, opt := range opts {
		opt(o)
	}
	return o
}

// WithPassword sets the directory password for this operation
func WithPassword(password string) Option {
	return func(o *Options) {
		o.Password = password
	}
}

// WithRefresh asks the backend to re-read the directory instead of
// serving its cached listing
func WithRefresh(refresh bool) Option {
	return func(o *Options) {
		o.Refresh = refresh
	}
}

// WithReplace allows overwriting an existing destination
func WithReplace(replace bool) Option {
	return func(o *Options) {
		o.Replace = replace
	}
}

// WithOverwrite allows upload to replace an existing file
func WithOverwrite(overwrite bool) Option {
	return func(o *Options) {
		o.Overwrite = overwrite
	}
}

// WithPerPage overrides the listing page size
func WithPerPage(perPage int) Option {
	return func(o *Options) {
		o.PerPage = perPage
	}
}
