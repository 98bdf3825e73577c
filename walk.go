package drivekit

import (
	"context"
	"errors"
)

// SkipDir is returned by a WalkFunc to skip descending into the
// directory just visited (or, for a file, to skip the rest of its
// directory). The walk itself continues.
var SkipDir = errors.New("skip this directory")

// WalkFunc visits one entry during a walk.
type WalkFunc func(e *Entry) error

// WalkOptions bounds and orders a directory walk.
type WalkOptions struct {
	// MinDepth is the shallowest depth yielded; depth 1 means the
	// immediate children of the starting directory. Values below 1 are
	// treated as 1.
	MinDepth int

	// MaxDepth is the deepest level descended into. Zero or negative
	// means unbounded.
	MaxDepth int

	// BottomUp yields a directory after its descendants instead of
	// before. SkipDir has no effect on directories in bottom-up order.
	BottomUp bool

	// OnError decides what happens when listing a directory fails.
	// Nil swallows the failure: the directory yields no children but
	// the walk goes on. A non-nil callback may inspect the error and
	// return a non-nil error to abort the whole walk.
	OnError func(dir string, err error) error

	// Refresh forwards a cache-bypass hint to every listing call.
	Refresh bool

	// Password applies to every listing call of the walk.
	Password string
}

// FailOnError is an OnError policy that aborts the walk on the first
// listing failure.
func FailOnError(dir string, err error) error { return err }

// Walk descends the tree under dir, calling fn for every entry within
// the configured depth bounds. Listing failures follow the OnError
// policy; a directory that fails to list yields no children but does
// not abort the walk unless the policy says so.
func (fs *FileSystem) Walk(ctx context.Context, dir string, opts WalkOptions, fn WalkFunc) error {
	return fs.WalkFrom(ctx, dir, opts, fn)
}

// WalkFrom is Walk with dir resolved against the working directory.
func (fs *FileSystem) WalkFrom(ctx context.Context, dir string, opts WalkOptions, fn WalkFunc) error {
	if opts.MinDepth < 1 {
		opts.MinDepth = 1
	}
	err := fs.walk(ctx, fs.Abspath(dir), 1, opts, fn)
	if err == SkipDir {
		return nil
	}
	return err
}

func (fs *FileSystem) walk(ctx context.Context, dir string, depth int, opts WalkOptions, fn WalkFunc) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	listOpts := []Option{WithRefresh(opts.Refresh)}
	if opts.Password != "" {
		listOpts = append(listOpts, WithPassword(opts.Password))
	}
	entries, err := fs.ListdirEntry(ctx, dir, listOpts...)
	if err != nil {
		if opts.OnError != nil {
			return opts.OnError(dir, err)
		}
		return nil
	}
	for _, e := range entries {
		isDir := e.attrs != nil && e.attrs.IsDir
		yield := depth >= opts.MinDepth

		if yield && !opts.BottomUp {
			switch err := fn(e); {
			case err == SkipDir:
				if isDir {
					continue
				}
				return nil
			case err != nil:
				return err
			}
		}
		if isDir && (opts.MaxDepth <= 0 || depth < opts.MaxDepth) {
			if err := fs.walk(ctx, e.path, depth+1, opts, fn); err != nil {
				return err
			}
		}
		if yield && opts.BottomUp {
			if err := fn(e); err != nil && err != SkipDir {
				return err
			}
		}
	}
	return nil
}

// WalkEntries collects every entry a Walk with the same options would
// visit. Convenient for tests and small trees; prefer Walk for large
// ones.
func (fs *FileSystem) WalkEntries(ctx context.Context, dir string, opts WalkOptions) ([]*Entry, error) {
	var entries []*Entry
	err := fs.WalkFrom(ctx, dir, opts, func(e *Entry) error {
		entries = append(entries, e)
		return nil
	})
	if err != nil {
		return nil, err
	}
	return entries, nil
}
