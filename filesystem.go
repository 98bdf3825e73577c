package drivekit

import (
	"bytes"
	"context"
	"io"
	"time"

	"go.uber.org/zap"
)

// DefaultPageSize is the listing page size requested when neither the
// filesystem nor the operation specifies one.
const DefaultPageSize = 100

// FileSystem layers POSIX-like path semantics over a RemoteAPI: a working
// directory, relative path resolution, directory traversal, glob
// matching, and move/copy/rename built from the coarse remote
// primitives.
//
// A FileSystem is not safe for concurrent use; give each logical caller
// its own instance (instances are cheap and share nothing but the API
// client).
type FileSystem struct {
	api      RemoteAPI
	cwd      string
	password string
	pageSize int
	logger   *zap.Logger
	mounts   *mountTable
}

// FSOption configures a FileSystem
type FSOption func(*fsConfig)

type fsConfig struct {
	password string
	pageSize int
	logger   *zap.Logger
	cache    Cache
	mountTTL time.Duration
}

// WithDefaultPassword sets the password applied to every operation that
// does not carry its own
func WithDefaultPassword(password string) FSOption {
	return func(c *fsConfig) {
		c.password = password
	}
}

// WithPageSize sets the default listing page size
func WithPageSize(n int) FSOption {
	return func(c *fsConfig) {
		if n > 0 {
			c.pageSize = n
		}
	}
}

// WithLogger sets the logger used for diagnostics
func WithLogger(logger *zap.Logger) FSOption {
	return func(c *fsConfig) {
		if logger != nil {
			c.logger = logger
		}
	}
}

// WithCache sets the metadata cache backing the mount table
func WithCache(cache Cache) FSOption {
	return func(c *fsConfig) {
		c.cache = cache
	}
}

// WithMountTTL bounds how long the storage mount table is cached
func WithMountTTL(ttl time.Duration) FSOption {
	return func(c *fsConfig) {
		c.mountTTL = ttl
	}
}

// NewFileSystem creates a filesystem over the given remote API, rooted
// at "/".
func NewFileSystem(api RemoteAPI, opts ...FSOption) *FileSystem {
	cfg := &fsConfig{
		pageSize: DefaultPageSize,
		logger:   zap.NewNop(),
	}
	for _, opt := range opts {
		opt(cfg)
	}
	return &FileSystem{
		api:      api,
		cwd:      "/",
		password: cfg.password,
		pageSize: cfg.pageSize,
		logger:   cfg.logger,
		mounts:   newMountTable(api, cfg.cache, cfg.mountTTL),
	}
}

// API returns the underlying remote client.
func (fs *FileSystem) API() RemoteAPI { return fs.api }

// ============================================================================
// Path resolution
// ============================================================================

// Abspath resolves p against the working directory and normalizes it.
func (fs *FileSystem) Abspath(p string) string {
	return NormalizePath(fs.cwd, p)
}

// Getcwd returns the current working directory.
func (fs *FileSystem) Getcwd() string { return fs.cwd }

// Chdir changes the working directory. The target must exist and be a
// directory.
func (fs *FileSystem) Chdir(ctx context.Context, p string, opts ...Option) error {
	abs := fs.Abspath(p)
	if abs == "/" {
		fs.cwd = "/"
		return nil
	}
	attrs, err := fs.Stat(ctx, abs, opts...)
	if err != nil {
		return err
	}
	if !attrs.IsDir {
		return NewPathError("chdir", abs, ErrNotDir)
	}
	fs.cwd = abs
	return nil
}

// Entry returns a handle for p without touching the network.
func (fs *FileSystem) Entry(p string) *Entry {
	return fs.entry(fs.Abspath(p), fs.password)
}

// entry builds a handle for an already-normalized absolute path.
func (fs *FileSystem) entry(path, password string) *Entry {
	return &Entry{fs: fs, path: path, password: password}
}

// seededEntry builds a handle pre-loaded with freshly-listed attributes,
// skipping the info round-trip on first access.
func (fs *FileSystem) seededEntry(attrs Attributes, password string) *Entry {
	e := fs.entry(attrs.Path, password)
	a := attrs
	e.seed(&a)
	return e
}

func (fs *FileSystem) opOptions(opts []Option) []Option {
	o := ApplyOptions(opts...)
	if o.Password == "" && fs.password != "" {
		opts = append([]Option{WithPassword(fs.password)}, opts...)
	}
	return opts
}

// ============================================================================
// Metadata
// ============================================================================

// Stat returns the attributes of p.
func (fs *FileSystem) Stat(ctx context.Context, p string, opts ...Option) (*Attributes, error) {
	return fs.api.Info(ctx, fs.Abspath(p), fs.opOptions(opts)...)
}

// Exists reports whether p exists.
func (fs *FileSystem) Exists(ctx context.Context, p string, opts ...Option) (bool, error) {
	_, err := fs.Stat(ctx, p, opts...)
	if err != nil {
		if IsNotExist(err) {
			return false, nil
		}
		return false, err
	}
	return true, nil
}

// IsDir reports whether p exists and is a directory.
func (fs *FileSystem) IsDir(ctx context.Context, p string, opts ...Option) (bool, error) {
	attrs, err := fs.Stat(ctx, p, opts...)
	if err != nil {
		if IsNotExist(err) {
			return false, nil
		}
		return false, err
	}
	return attrs.IsDir, nil
}

// IsFile reports whether p exists and is a regular file.
func (fs *FileSystem) IsFile(ctx context.Context, p string, opts ...Option) (bool, error) {
	attrs, err := fs.Stat(ctx, p, opts...)
	if err != nil {
		if IsNotExist(err) {
			return false, nil
		}
		return false, err
	}
	return !attrs.IsDir, nil
}

// IsEmpty reports whether p is an empty directory or a zero-length file.
func (fs *FileSystem) IsEmpty(ctx context.Context, p string, opts ...Option) (bool, error) {
	attrs, err := fs.Stat(ctx, p, opts...)
	if err != nil {
		return false, err
	}
	if !attrs.IsDir {
		return attrs.Size == 0, nil
	}
	n, err := fs.DirectoryCapacity(ctx, p, opts...)
	if err != nil {
		return false, err
	}
	return n == 0, nil
}

// DirectoryCapacity returns the number of entries directly inside dir.
func (fs *FileSystem) DirectoryCapacity(ctx context.Context, dir string, opts ...Option) (int, error) {
	abs := fs.Abspath(dir)
	page, err := fs.api.List(ctx, abs, 1, fs.listPageSize(opts), fs.opOptions(opts)...)
	if err != nil {
		return 0, err
	}
	if page.Total >= 0 {
		return page.Total, nil
	}
	total := len(page.Items)
	for n := 2; len(page.Items) == fs.listPageSize(opts); n++ {
		page, err = fs.api.List(ctx, abs, n, fs.listPageSize(opts), fs.opOptions(opts)...)
		if err != nil {
			return 0, err
		}
		total += len(page.Items)
	}
	return total, nil
}

// ============================================================================
// Listing
// ============================================================================

func (fs *FileSystem) listPageSize(opts []Option) int {
	if o := ApplyOptions(opts...); o.PerPage > 0 {
		return o.PerPage
	}
	return fs.pageSize
}

// ListdirAttr lists the attributes of every child of dir, paging through
// the remote listing until a short page.
func (fs *FileSystem) ListdirAttr(ctx context.Context, dir string, opts ...Option) ([]Attributes, error) {
	abs := fs.Abspath(dir)
	perPage := fs.listPageSize(opts)
	forwarded := fs.opOptions(opts)

	var items []Attributes
	for page := 1; ; page++ {
		result, err := fs.api.List(ctx, abs, page, perPage, forwarded...)
		if err != nil {
			return nil, err
		}
		items = append(items, result.Items...)
		if len(result.Items) < perPage {
			break
		}
		if result.Total >= 0 && len(items) >= result.Total {
			break
		}
	}
	return items, nil
}

// Listdir lists the child names of dir.
func (fs *FileSystem) Listdir(ctx context.Context, dir string, opts ...Option) ([]string, error) {
	items, err := fs.ListdirAttr(ctx, dir, opts...)
	if err != nil {
		return nil, err
	}
	names := make([]string, len(items))
	for i, item := range items {
		names[i] = item.Name
	}
	return names, nil
}

// ListdirEntry lists the children of dir as entries pre-seeded with the
// listing attributes.
func (fs *FileSystem) ListdirEntry(ctx context.Context, dir string, opts ...Option) ([]*Entry, error) {
	items, err := fs.ListdirAttr(ctx, dir, opts...)
	if err != nil {
		return nil, err
	}
	password := ApplyOptions(opts...).Password
	if password == "" {
		password = fs.password
	}
	entries := make([]*Entry, len(items))
	for i, item := range items {
		entries[i] = fs.seededEntry(item, password)
	}
	return entries, nil
}

// ============================================================================
// Mutation
// ============================================================================

// Mkdir creates the directory p. The parent must exist.
func (fs *FileSystem) Mkdir(ctx context.Context, p string, opts ...Option) error {
	abs := fs.Abspath(p)
	if abs == "/" {
		return NewPathError("mkdir", abs, ErrExist)
	}
	if ok, err := fs.Exists(ctx, abs, opts...); err != nil {
		return err
	} else if ok {
		return NewPathError("mkdir", abs, ErrExist)
	}
	dir, _ := SplitPath(abs)
	if dir != "/" {
		attrs, err := fs.Stat(ctx, dir, opts...)
		if err != nil {
			return err
		}
		if !attrs.IsDir {
			return NewPathError("mkdir", dir, ErrNotDir)
		}
	}
	return fs.api.Mkdir(ctx, abs)
}

// Makedirs creates p and any missing ancestors. Existing directories are
// not an error.
func (fs *FileSystem) Makedirs(ctx context.Context, p string, opts ...Option) error {
	abs := fs.Abspath(p)
	if abs == "/" {
		return nil
	}
	attrs, err := fs.Stat(ctx, abs, opts...)
	if err == nil {
		if attrs.IsDir {
			return nil
		}
		return NewPathError("makedirs", abs, ErrExist)
	}
	if !IsNotExist(err) {
		return err
	}
	dir, _ := SplitPath(abs)
	if dir != "/" {
		if err := fs.Makedirs(ctx, dir, opts...); err != nil {
			return err
		}
	}
	return fs.api.Mkdir(ctx, abs)
}

// Remove deletes a file or an empty directory. Storage mount roots are
// never removable through this path.
func (fs *FileSystem) Remove(ctx context.Context, p string, opts ...Option) error {
	abs := fs.Abspath(p)
	if abs == "/" {
		return NewPathError("remove", abs, ErrPermission)
	}
	if isRoot, err := fs.mounts.isMountRoot(ctx, abs); err != nil {
		return err
	} else if isRoot {
		return NewPathError("remove", abs, ErrPermission)
	}
	attrs, err := fs.Stat(ctx, abs, opts...)
	if err != nil {
		return err
	}
	if attrs.IsDir {
		n, err := fs.DirectoryCapacity(ctx, abs, opts...)
		if err != nil {
			return err
		}
		if n > 0 {
			return NewPathError("remove", abs, ErrNotEmpty)
		}
	}
	dir, name := SplitPath(abs)
	return fs.api.Remove(ctx, dir, []string{name})
}

// Rmdir deletes an empty directory.
func (fs *FileSystem) Rmdir(ctx context.Context, p string, opts ...Option) error {
	abs := fs.Abspath(p)
	attrs, err := fs.Stat(ctx, abs, opts...)
	if err != nil {
		return err
	}
	if !attrs.IsDir {
		return NewPathError("rmdir", abs, ErrNotDir)
	}
	return fs.Remove(ctx, abs, opts...)
}

// RemoveAll deletes p and, for directories, everything below it.
func (fs *FileSystem) RemoveAll(ctx context.Context, p string, opts ...Option) error {
	abs := fs.Abspath(p)
	if abs == "/" {
		return NewPathError("remove_all", abs, ErrPermission)
	}
	if isRoot, err := fs.mounts.isMountRoot(ctx, abs); err != nil {
		return err
	} else if isRoot {
		return NewPathError("remove_all", abs, ErrPermission)
	}
	if _, err := fs.Stat(ctx, abs, opts...); err != nil {
		return err
	}
	dir, name := SplitPath(abs)
	return fs.api.Remove(ctx, dir, []string{name})
}

// RemoveDirs removes p if it is an empty directory, then prunes each
// empty ancestor until one is non-empty or a mount root.
func (fs *FileSystem) RemoveDirs(ctx context.Context, p string, opts ...Option) error {
	abs := fs.Abspath(p)
	if err := fs.Rmdir(ctx, abs, opts...); err != nil {
		return err
	}
	for {
		abs, _ = SplitPath(abs)
		if abs == "/" {
			return nil
		}
		if isRoot, err := fs.mounts.isMountRoot(ctx, abs); err != nil || isRoot {
			return err
		}
		empty, err := fs.IsEmpty(ctx, abs, opts...)
		if err != nil || !empty {
			return nil
		}
		dir, name := SplitPath(abs)
		if err := fs.api.Remove(ctx, dir, []string{name}); err != nil {
			return nil
		}
	}
}

// Touch creates an empty file at p when nothing exists there.
func (fs *FileSystem) Touch(ctx context.Context, p string, opts ...Option) error {
	abs := fs.Abspath(p)
	if ok, err := fs.Exists(ctx, abs, opts...); err != nil || ok {
		return err
	}
	return fs.Upload(ctx, abs, bytes.NewReader(nil), opts...)
}

// Upload stores the content of r at p.
func (fs *FileSystem) Upload(ctx context.Context, p string, r io.Reader, opts ...Option) error {
	abs := fs.Abspath(p)
	o := ApplyOptions(opts...)
	if !o.Overwrite {
		if ok, err := fs.Exists(ctx, abs, opts...); err != nil {
			return err
		} else if ok {
			return NewPathError("upload", abs, ErrExist)
		}
	}
	return fs.api.Upload(ctx, abs, r, fs.opOptions(opts)...)
}

// ============================================================================
// Content access
// ============================================================================

// Open opens the file at p for reading. The reader re-resolves the
// download URL on every reconnect, so expiring links renew themselves.
func (fs *FileSystem) Open(ctx context.Context, p string, opts ...ReaderOption) (*HTTPReader, error) {
	abs := fs.Abspath(p)
	attrs, err := fs.Stat(ctx, abs)
	if err != nil {
		return nil, err
	}
	if attrs.IsDir {
		return nil, NewPathError("open", abs, ErrIsDir)
	}
	urlf := func(ctx context.Context) (string, error) {
		return fs.api.DownloadURL(ctx, abs)
	}
	ropts := append([]ReaderOption{WithReaderLogger(fs.logger)}, opts...)
	return NewHTTPReader(ctx, urlf, ropts...)
}

// ReadBytes reads the whole file at p into memory.
func (fs *FileSystem) ReadBytes(ctx context.Context, p string) ([]byte, error) {
	r, err := fs.Open(ctx, p)
	if err != nil {
		return nil, err
	}
	defer r.Close()
	return io.ReadAll(r)
}

// ReadText reads the whole file at p as a string.
func (fs *FileSystem) ReadText(ctx context.Context, p string) (string, error) {
	data, err := fs.ReadBytes(ctx, p)
	if err != nil {
		return "", err
	}
	return string(data), nil
}

// ============================================================================
// Storage mounts
// ============================================================================

// ListMounts returns the storage mount table.
func (fs *FileSystem) ListMounts(ctx context.Context) ([]MountPoint, error) {
	return fs.mounts.load(ctx)
}

// StorageOf returns the mount owning p, by longest-prefix match.
func (fs *FileSystem) StorageOf(ctx context.Context, p string) (MountPoint, error) {
	return fs.mounts.storageOf(ctx, fs.Abspath(p))
}

// IsStorage reports whether p is exactly a storage mount root.
func (fs *FileSystem) IsStorage(ctx context.Context, p string) (bool, error) {
	return fs.mounts.isMountRoot(ctx, fs.Abspath(p))
}

// InvalidateMounts drops the cached mount table.
func (fs *FileSystem) InvalidateMounts() {
	fs.mounts.invalidate()
}
