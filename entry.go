package drivekit

import (
	"context"
	"strings"
	"time"

	"github.com/gobwas/glob"
)

// Entry is a cheap handle to one absolute path on a remote filesystem.
// Creating an entry performs no network call; metadata is fetched lazily
// on first access and cached until Refresh. Entries returned from
// directory listings come pre-seeded with the listing's attributes and
// skip the extra info round-trip entirely.
//
// Two entries denote the same file iff they share the owning filesystem
// and the normalized path. The attribute cache is per-instance and not
// synchronized; share entries between goroutines only read-only after
// the attributes are loaded.
type Entry struct {
	fs       *FileSystem
	path     string
	password string

	attrs     *Attributes
	fetchedAt time.Time
}

// Path returns the absolute normalized path of the entry.
func (e *Entry) Path() string { return e.path }

// Name returns the final path component.
func (e *Entry) Name() string {
	_, name := SplitPath(e.path)
	return name
}

// Stem returns the name without its final extension.
func (e *Entry) Stem() string {
	name := e.Name()
	if i := strings.LastIndexByte(name, '.'); i > 0 {
		return name[:i]
	}
	return name
}

// Suffix returns the final extension including the dot, or "".
func (e *Entry) Suffix() string {
	name := e.Name()
	if i := strings.LastIndexByte(name, '.'); i > 0 {
		return name[i:]
	}
	return ""
}

// Parent returns the entry for the containing directory. The root is its
// own parent.
func (e *Entry) Parent() *Entry {
	dir, _ := SplitPath(e.path)
	return e.fs.entry(dir, e.password)
}

// Parents returns the chain of ancestors, nearest first, ending at "/".
func (e *Entry) Parents() []*Entry {
	var parents []*Entry
	p := e.path
	for p != "/" {
		p, _ = SplitPath(p)
		parents = append(parents, e.fs.entry(p, e.password))
	}
	return parents
}

// Parts splits the path into its components, beginning with "/".
func (e *Entry) Parts() []string {
	parts := []string{"/"}
	if e.path != "/" {
		parts = append(parts, strings.Split(e.path[1:], "/")...)
	}
	return parts
}

// Joinpath returns the entry for the path below this one.
func (e *Entry) Joinpath(parts ...string) *Entry {
	p := e.path
	for _, part := range parts {
		p = NormalizePath(p, part)
	}
	return e.fs.entry(p, e.password)
}

// WithName returns a sibling entry carrying the given name.
func (e *Entry) WithName(name string) *Entry {
	return e.Parent().Joinpath(name)
}

// WithStem returns a sibling entry with the stem replaced.
func (e *Entry) WithStem(stem string) *Entry {
	return e.Parent().Joinpath(stem + e.Suffix())
}

// WithSuffix returns a sibling entry with the extension replaced.
func (e *Entry) WithSuffix(suffix string) *Entry {
	return e.Parent().Joinpath(e.Stem() + suffix)
}

// RelativeTo returns the path of the entry relative to other.
func (e *Entry) RelativeTo(other string) (string, error) {
	other = NormalizePath("/", other)
	if !underMount(e.path, other) {
		return "", NewPathError("relative_to", e.path, ErrInvalidPath)
	}
	if e.path == other {
		return "", nil
	}
	if other == "/" {
		return e.path[1:], nil
	}
	return e.path[len(other)+1:], nil
}

// SameFile reports whether other denotes the same remote file.
func (e *Entry) SameFile(other *Entry) bool {
	return other != nil && e.fs == other.fs && e.path == other.path
}

// Match reports whether the path matches the glob pattern. This is a
// pure string match against the already-known path; nothing is listed
// or fetched.
func (e *Entry) Match(pattern string) bool {
	g, err := glob.Compile(pattern, '/')
	if err != nil {
		return false
	}
	if strings.HasPrefix(pattern, "/") {
		return g.Match(e.path)
	}
	return g.Match(e.Name())
}

// MediaType guesses the media type from the entry name. It consults the
// cached attributes' content type first when they are already loaded.
func (e *Entry) MediaType() string {
	if e.attrs != nil && e.attrs.ContentType != "" {
		return e.attrs.ContentType
	}
	return GuessMediaType(e.Name())
}

// ============================================================================
// Attribute cache
// ============================================================================

// Loaded reports whether the attributes have been fetched at least once.
func (e *Entry) Loaded() bool { return e.attrs != nil }

// FetchedAt returns when the cached attributes were fetched, or the zero
// time when none are cached.
func (e *Entry) FetchedAt() time.Time { return e.fetchedAt }

// Attr returns the entry's attributes, fetching them on first access.
// A failed fetch leaves the cache empty so a later access retries
// instead of serving a negative result.
func (e *Entry) Attr(ctx context.Context) (*Attributes, error) {
	if e.attrs != nil {
		return e.attrs, nil
	}
	return e.Refresh(ctx)
}

// Refresh re-fetches the attributes unconditionally.
func (e *Entry) Refresh(ctx context.Context) (*Attributes, error) {
	attrs, err := e.fs.api.Info(ctx, e.path, e.opOptions()...)
	if err != nil {
		return nil, err
	}
	e.seed(attrs)
	return attrs, nil
}

// seed installs freshly-fetched attributes, marking the cache valid.
func (e *Entry) seed(attrs *Attributes) {
	e.attrs = attrs
	e.fetchedAt = time.Now()
}

// Exists reports whether the path exists remotely.
func (e *Entry) Exists(ctx context.Context) (bool, error) {
	_, err := e.Attr(ctx)
	if err != nil {
		if IsNotExist(err) {
			return false, nil
		}
		return false, err
	}
	return true, nil
}

// IsDir reports whether the entry is a directory.
func (e *Entry) IsDir(ctx context.Context) (bool, error) {
	attrs, err := e.Attr(ctx)
	if err != nil {
		return false, err
	}
	return attrs.IsDir, nil
}

// IsFile reports whether the entry is a regular file.
func (e *Entry) IsFile(ctx context.Context) (bool, error) {
	attrs, err := e.Attr(ctx)
	if err != nil {
		return false, err
	}
	return !attrs.IsDir, nil
}

// Size returns the file size in bytes.
func (e *Entry) Size(ctx context.Context) (int64, error) {
	attrs, err := e.Attr(ctx)
	if err != nil {
		return 0, err
	}
	return attrs.Size, nil
}

// ModTime returns the last modification time.
func (e *Entry) ModTime(ctx context.Context) (time.Time, error) {
	attrs, err := e.Attr(ctx)
	if err != nil {
		return time.Time{}, err
	}
	return attrs.ModTime, nil
}

// DownloadURL resolves a URL for the file content, preferring one the
// attributes already carry.
func (e *Entry) DownloadURL(ctx context.Context) (string, error) {
	if e.attrs != nil && e.attrs.DownloadURL != "" {
		return e.attrs.DownloadURL, nil
	}
	return e.fs.api.DownloadURL(ctx, e.path)
}

// Storage returns the mount that owns this entry.
func (e *Entry) Storage(ctx context.Context) (MountPoint, error) {
	return e.fs.StorageOf(ctx, e.path)
}

// ============================================================================
// Filesystem delegation
// ============================================================================

// Open opens the file content for reading.
func (e *Entry) Open(ctx context.Context, opts ...ReaderOption) (*HTTPReader, error) {
	return e.fs.Open(ctx, e.path, opts...)
}

// ReadBytes reads the whole file into memory.
func (e *Entry) ReadBytes(ctx context.Context) ([]byte, error) {
	return e.fs.ReadBytes(ctx, e.path)
}

// Listdir lists the child names of this directory.
func (e *Entry) Listdir(ctx context.Context, opts ...Option) ([]string, error) {
	return e.fs.Listdir(ctx, e.path, opts...)
}

// ListdirEntry lists the children as pre-seeded entries.
func (e *Entry) ListdirEntry(ctx context.Context, opts ...Option) ([]*Entry, error) {
	return e.fs.ListdirEntry(ctx, e.path, opts...)
}

// Glob matches pattern below this directory.
func (e *Entry) Glob(ctx context.Context, pattern string) ([]*Entry, error) {
	return e.fs.GlobFrom(ctx, pattern, e.path, false)
}

// Walk descends below this directory.
func (e *Entry) Walk(ctx context.Context, opts WalkOptions, fn WalkFunc) error {
	return e.fs.WalkFrom(ctx, e.path, opts, fn)
}

func (e *Entry) opOptions() []Option {
	if e.password != "" {
		return []Option{WithPassword(e.password)}
	}
	return nil
}
