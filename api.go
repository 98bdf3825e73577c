package drivekit

import (
	"context"
	"io"
	"time"
)

// Attributes is an immutable snapshot of the metadata the remote service
// reports for one path. Well-known fields are typed; anything
// backend-specific rides along in Extra.
type Attributes struct {
	Name        string
	Path        string
	Size        int64
	ModTime     time.Time
	IsDir       bool
	ContentType string

	// DownloadURL is a direct (possibly expiring) URL for the file
	// content, when the backend returns one with the metadata.
	DownloadURL string

	// MountPath is set when this entry is the root of a storage mount.
	MountPath string

	Extra map[string]string
}

// MountPoint identifies one independently-backed subtree of the virtual
// filesystem. Remote rename and move primitives operate only within a
// single mount.
type MountPoint struct {
	// Path is the absolute path prefix the mount owns.
	Path string

	// Backend identifies the storage backing this mount.
	Backend string
}

// ListResult is one page of a directory listing.
type ListResult struct {
	Items []Attributes

	// Total is the number of entries in the directory across all pages,
	// or -1 when the backend does not report it.
	Total int
}

// ============================================================================
// Remote API Surface
// ============================================================================

// RemoteAPI is the backend-agnostic surface a driver must provide. Each
// method maps to one coarse remote primitive; the filesystem layer builds
// POSIX-like semantics on top of them.
//
// Path arguments are always absolute and normalized. Info returns
// ErrNotExist (usually wrapped in a PathError) when the path is absent.
type RemoteAPI interface {
	// Info returns the metadata of a single path.
	Info(ctx context.Context, path string, opts ...Option) (*Attributes, error)

	// List returns one page of a directory listing. Pages are numbered
	// from 1. A perPage of 0 lets the backend choose its page size.
	List(ctx context.Context, dir string, page, perPage int, opts ...Option) (*ListResult, error)

	// Mkdir creates a directory. Parents must already exist.
	Mkdir(ctx context.Context, path string) error

	// Rename changes the base name of path in place.
	Rename(ctx context.Context, path, newName string) error

	// Move relocates the named children of srcDir into dstDir,
	// preserving their names.
	Move(ctx context.Context, srcDir, dstDir string, names []string) error

	// Copy duplicates the named children of srcDir into dstDir.
	Copy(ctx context.Context, srcDir, dstDir string, names []string) error

	// Remove deletes the named children of dir.
	Remove(ctx context.Context, dir string, names []string) error

	// Upload stores the content read from r at path.
	Upload(ctx context.Context, path string, r io.Reader, opts ...Option) error

	// DownloadURL resolves a URL serving the file content. The URL may
	// expire; callers needing long-lived access should re-resolve.
	DownloadURL(ctx context.Context, path string) (string, error)

	// ListMounts returns the storage mount table.
	ListMounts(ctx context.Context) ([]MountPoint, error)
}

// ============================================================================
// Optional Capability Interfaces
// ============================================================================
// Drivers may expose optional capabilities. Use type assertion to check:
//
//	if closer, ok := api.(io.Closer); ok {
//	    closer.Close()
//	}

// CanRemoveMount indicates the backend can detach a storage mount.
// Removing a mount root through Remove is rejected by the filesystem
// layer; this is the explicit administrative path.
type CanRemoveMount interface {
	RemoveMount(ctx context.Context, mountPath string) error
}

// CanSignURL indicates the backend can produce pre-signed URLs with an
// explicit lifetime, beyond the plain DownloadURL resolution.
type CanSignURL interface {
	SignedURL(ctx context.Context, path string, expires time.Duration) (string, error)
}
