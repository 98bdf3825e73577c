package drivekit

import (
	"context"
	"io"
	"sort"
	"strings"
	"time"
)

// mockNode is one file or directory in the in-memory backend.
type mockNode struct {
	isDir bool
	data  []byte
	mod   time.Time
	extra map[string]string
}

// mockAPI is an in-memory RemoteAPI that records every mutating call in
// order, so tests can assert on the exact remote protocol an operation
// produced. Lookup calls are counted but not recorded.
type mockAPI struct {
	nodes  map[string]*mockNode
	mounts []MountPoint

	// calls records mutating calls as "op arg arg ...".
	calls []string

	// failAt fails the Nth mutating call (1-based) with the given error.
	failAt map[int]error

	// failList fails every List call on the given directory.
	failList map[string]error

	// contentURL, when set, is prepended to the path to form DownloadURL
	// responses.
	contentURL string

	infoCalls  int
	listCalls  int
	mountCalls int
}

func newMockAPI() *mockAPI {
	return &mockAPI{
		nodes:    map[string]*mockNode{"/": {isDir: true}},
		failAt:   map[int]error{},
		failList: map[string]error{},
	}
}

func (m *mockAPI) addDir(p string) *mockAPI {
	m.nodes[p] = &mockNode{isDir: true, mod: time.Now()}
	return m
}

func (m *mockAPI) addFile(p string, data []byte) *mockAPI {
	m.nodes[p] = &mockNode{data: data, mod: time.Now()}
	return m
}

func (m *mockAPI) record(parts ...string) error {
	m.calls = append(m.calls, strings.Join(parts, " "))
	if err, ok := m.failAt[len(m.calls)]; ok {
		delete(m.failAt, len(m.calls))
		return err
	}
	return nil
}

// callOps reduces the recorded calls to their operation names.
func (m *mockAPI) callOps() []string {
	ops := make([]string, len(m.calls))
	for i, c := range m.calls {
		ops[i] = strings.SplitN(c, " ", 2)[0]
	}
	return ops
}

func (m *mockAPI) attrs(p string, n *mockNode) *Attributes {
	_, name := SplitPath(p)
	a := &Attributes{
		Name:    name,
		Path:    p,
		Size:    int64(len(n.data)),
		ModTime: n.mod,
		IsDir:   n.isDir,
		Extra:   n.extra,
	}
	if !n.isDir && m.contentURL != "" {
		a.DownloadURL = m.contentURL + p
	}
	return a
}

func (m *mockAPI) Info(ctx context.Context, p string, opts ...Option) (*Attributes, error) {
	m.infoCalls++
	n, ok := m.nodes[p]
	if !ok {
		return nil, NewPathError("info", p, ErrNotExist)
	}
	return m.attrs(p, n), nil
}

func (m *mockAPI) children(dir string) []string {
	var names []string
	for p := range m.nodes {
		if p == "/" {
			continue
		}
		if d, name := SplitPath(p); d == dir {
			names = append(names, name)
		}
	}
	sort.Strings(names)
	return names
}

func (m *mockAPI) List(ctx context.Context, dir string, page, perPage int, opts ...Option) (*ListResult, error) {
	m.listCalls++
	if err, ok := m.failList[dir]; ok {
		return nil, err
	}
	n, ok := m.nodes[dir]
	if !ok {
		return nil, NewPathError("list", dir, ErrNotExist)
	}
	if !n.isDir {
		return nil, NewPathError("list", dir, ErrNotDir)
	}
	names := m.children(dir)
	total := len(names)
	if perPage > 0 {
		if page < 1 {
			page = 1
		}
		lo := (page - 1) * perPage
		if lo > total {
			lo = total
		}
		hi := lo + perPage
		if hi > total {
			hi = total
		}
		names = names[lo:hi]
	}
	result := &ListResult{Total: total}
	base := dir
	if base == "/" {
		base = ""
	}
	for _, name := range names {
		p := base + "/" + name
		result.Items = append(result.Items, *m.attrs(p, m.nodes[p]))
	}
	return result, nil
}

func (m *mockAPI) Mkdir(ctx context.Context, p string) error {
	if err := m.record("mkdir", p); err != nil {
		return err
	}
	dir, _ := SplitPath(p)
	if parent, ok := m.nodes[dir]; !ok || !parent.isDir {
		return NewPathError("mkdir", p, ErrNotExist)
	}
	m.nodes[p] = &mockNode{isDir: true, mod: time.Now()}
	return nil
}

// relocate rewrites src and its whole subtree to dst, copying when keep
// is set.
func (m *mockAPI) relocate(src, dst string, keep bool) error {
	if _, ok := m.nodes[src]; !ok {
		return NewPathError("move", src, ErrNotExist)
	}
	moved := map[string]*mockNode{}
	for p, n := range m.nodes {
		if p == src || strings.HasPrefix(p, src+"/") {
			moved[dst+p[len(src):]] = n
			if !keep {
				delete(m.nodes, p)
			}
		}
	}
	for p, n := range moved {
		if keep {
			cp := *n
			m.nodes[p] = &cp
		} else {
			m.nodes[p] = n
		}
	}
	return nil
}

func (m *mockAPI) Rename(ctx context.Context, p, newName string) error {
	if err := m.record("rename", p, newName); err != nil {
		return err
	}
	dir, _ := SplitPath(p)
	return m.relocate(p, NormalizePath(dir, newName), false)
}

func (m *mockAPI) Move(ctx context.Context, srcDir, dstDir string, names []string) error {
	for _, name := range names {
		if err := m.record("move", srcDir, dstDir, name); err != nil {
			return err
		}
		if err := m.relocate(NormalizePath(srcDir, name), NormalizePath(dstDir, name), false); err != nil {
			return err
		}
	}
	return nil
}

func (m *mockAPI) Copy(ctx context.Context, srcDir, dstDir string, names []string) error {
	for _, name := range names {
		if err := m.record("copy", srcDir, dstDir, name); err != nil {
			return err
		}
		if err := m.relocate(NormalizePath(srcDir, name), NormalizePath(dstDir, name), true); err != nil {
			return err
		}
	}
	return nil
}

func (m *mockAPI) Remove(ctx context.Context, dir string, names []string) error {
	for _, name := range names {
		if err := m.record("remove", dir, name); err != nil {
			return err
		}
		p := NormalizePath(dir, name)
		for k := range m.nodes {
			if k == p || strings.HasPrefix(k, p+"/") {
				delete(m.nodes, k)
			}
		}
	}
	return nil
}

func (m *mockAPI) Upload(ctx context.Context, p string, r io.Reader, opts ...Option) error {
	if err := m.record("upload", p); err != nil {
		return err
	}
	data, err := io.ReadAll(r)
	if err != nil {
		return err
	}
	m.nodes[p] = &mockNode{data: data, mod: time.Now()}
	return nil
}

func (m *mockAPI) DownloadURL(ctx context.Context, p string) (string, error) {
	n, ok := m.nodes[p]
	if !ok {
		return "", NewPathError("download", p, ErrNotExist)
	}
	if n.isDir {
		return "", NewPathError("download", p, ErrIsDir)
	}
	if m.contentURL == "" {
		return "", NewPathError("download", p, ErrNotSupported)
	}
	return m.contentURL + p, nil
}

func (m *mockAPI) ListMounts(ctx context.Context) ([]MountPoint, error) {
	m.mountCalls++
	return m.mounts, nil
}

var _ RemoteAPI = (*mockAPI)(nil)

// paths is a helper collecting entry paths for assertions.
func paths(entries []*Entry) []string {
	out := make([]string, len(entries))
	for i, e := range entries {
		out[i] = e.Path()
	}
	sort.Strings(out)
	return out
}

func equalStrings(a, b []string) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}
