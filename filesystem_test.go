package drivekit

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"
)

// startContentServer serves the mock's file bodies over HTTP with range
// support, so Open and friends have something real to download from.
func startContentServer(t *testing.T, m *mockAPI) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		n, ok := m.nodes[r.URL.Path]
		if !ok || n.isDir {
			http.NotFound(w, r)
			return
		}
		http.ServeContent(w, r, "", time.Time{}, bytes.NewReader(n.data))
	}))
	t.Cleanup(srv.Close)
	m.contentURL = srv.URL
	return srv
}

func TestListdirPaged(t *testing.T) {
	m := newMockAPI()
	m.addDir("/docs")
	var want []string
	for i := 0; i < 25; i++ {
		name := fmt.Sprintf("file%02d.txt", i)
		m.addFile("/docs/"+name, []byte("x"))
		want = append(want, name)
	}
	fs := NewFileSystem(m, WithPageSize(10))

	names, err := fs.Listdir(context.Background(), "/docs")
	if err != nil {
		t.Fatalf("Listdir: %v", err)
	}
	if !equalStrings(names, want) {
		t.Errorf("names = %v", names)
	}
	if m.listCalls != 3 {
		t.Errorf("listCalls = %d, want 3 pages", m.listCalls)
	}
}

func TestStatAndPredicates(t *testing.T) {
	m := newMockAPI()
	m.addDir("/d").addFile("/f.txt", []byte("abc"))
	fs := NewFileSystem(m)
	ctx := context.Background()

	attrs, err := fs.Stat(ctx, "/f.txt")
	if err != nil || attrs.Size != 3 || attrs.IsDir {
		t.Fatalf("Stat = (%+v, %v)", attrs, err)
	}
	if _, err := fs.Stat(ctx, "/missing"); !IsNotExist(err) {
		t.Errorf("Stat missing = %v", err)
	}

	for _, tt := range []struct {
		p         string
		dir, file bool
		exists    bool
	}{
		{"/d", true, false, true},
		{"/f.txt", false, true, true},
		{"/nope", false, false, false},
	} {
		if ok, err := fs.IsDir(ctx, tt.p); err != nil || ok != tt.dir {
			t.Errorf("IsDir(%s) = (%v, %v)", tt.p, ok, err)
		}
		if ok, err := fs.IsFile(ctx, tt.p); err != nil || ok != tt.file {
			t.Errorf("IsFile(%s) = (%v, %v)", tt.p, ok, err)
		}
		if ok, err := fs.Exists(ctx, tt.p); err != nil || ok != tt.exists {
			t.Errorf("Exists(%s) = (%v, %v)", tt.p, ok, err)
		}
	}
}

func TestChdirAbspath(t *testing.T) {
	m := newMockAPI()
	m.addDir("/a").addDir("/a/b").addFile("/a/f.txt", nil)
	fs := NewFileSystem(m)
	ctx := context.Background()

	if err := fs.Chdir(ctx, "/a"); err != nil {
		t.Fatalf("Chdir: %v", err)
	}
	if fs.Getcwd() != "/a" {
		t.Errorf("Getcwd = %q", fs.Getcwd())
	}
	if got := fs.Abspath("b/c"); got != "/a/b/c" {
		t.Errorf("Abspath = %q", got)
	}
	if got := fs.Abspath("../x"); got != "/x" {
		t.Errorf("Abspath .. = %q", got)
	}

	if err := fs.Chdir(ctx, "f.txt"); !errors.Is(err, ErrNotDir) {
		t.Errorf("Chdir to file = %v, want ErrNotDir", err)
	}
	if err := fs.Chdir(ctx, "/nope"); !IsNotExist(err) {
		t.Errorf("Chdir missing = %v", err)
	}
}

func TestMkdir(t *testing.T) {
	m := newMockAPI()
	m.addDir("/a").addFile("/file", nil)
	fs := NewFileSystem(m)
	ctx := context.Background()

	if err := fs.Mkdir(ctx, "/a/new"); err != nil {
		t.Fatalf("Mkdir: %v", err)
	}
	if n, ok := m.nodes["/a/new"]; !ok || !n.isDir {
		t.Fatal("directory not created")
	}
	if err := fs.Mkdir(ctx, "/a"); !IsExist(err) {
		t.Errorf("Mkdir existing = %v, want ErrExist", err)
	}
	if err := fs.Mkdir(ctx, "/nope/child"); !IsNotExist(err) {
		t.Errorf("Mkdir under missing parent = %v, want ErrNotExist", err)
	}
	if err := fs.Mkdir(ctx, "/file/child"); !errors.Is(err, ErrNotDir) {
		t.Errorf("Mkdir under file = %v, want ErrNotDir", err)
	}
}

func TestMakedirs(t *testing.T) {
	m := newMockAPI()
	m.addFile("/blocker", nil)
	fs := NewFileSystem(m)
	ctx := context.Background()

	if err := fs.Makedirs(ctx, "/a/b/c"); err != nil {
		t.Fatalf("Makedirs: %v", err)
	}
	for _, p := range []string{"/a", "/a/b", "/a/b/c"} {
		if n, ok := m.nodes[p]; !ok || !n.isDir {
			t.Errorf("%s not created", p)
		}
	}
	if err := fs.Makedirs(ctx, "/a/b/c"); err != nil {
		t.Errorf("Makedirs existing = %v, want nil", err)
	}
	if err := fs.Makedirs(ctx, "/blocker"); !IsExist(err) {
		t.Errorf("Makedirs over file = %v, want ErrExist", err)
	}
}

func TestRemove(t *testing.T) {
	m := newMockAPI()
	m.addDir("/m1").addDir("/full").addFile("/full/f.txt", nil).addDir("/empty").addFile("/f.txt", nil)
	m.mounts = []MountPoint{{Path: "/m1", Backend: "test"}}
	fs := NewFileSystem(m)
	ctx := context.Background()

	if err := fs.Remove(ctx, "/f.txt"); err != nil {
		t.Fatalf("Remove file: %v", err)
	}
	if _, ok := m.nodes["/f.txt"]; ok {
		t.Fatal("file still present")
	}
	if err := fs.Remove(ctx, "/empty"); err != nil {
		t.Fatalf("Remove empty dir: %v", err)
	}
	if err := fs.Remove(ctx, "/full"); !errors.Is(err, ErrNotEmpty) {
		t.Errorf("Remove non-empty = %v, want ErrNotEmpty", err)
	}
	if err := fs.Remove(ctx, "/"); !IsPermission(err) {
		t.Errorf("Remove root = %v, want permission error", err)
	}
	if err := fs.Remove(ctx, "/m1"); !IsPermission(err) {
		t.Errorf("Remove mount root = %v, want permission error", err)
	}
}

func TestRemoveAll(t *testing.T) {
	m := newMockAPI()
	m.addDir("/t").addDir("/t/sub").addFile("/t/sub/x", nil).addFile("/t/y", nil)
	fs := NewFileSystem(m)

	if err := fs.RemoveAll(context.Background(), "/t"); err != nil {
		t.Fatalf("RemoveAll: %v", err)
	}
	for p := range m.nodes {
		if strings.HasPrefix(p, "/t") {
			t.Errorf("%s survived RemoveAll", p)
		}
	}
}

func TestRemoveDirs(t *testing.T) {
	m := newMockAPI()
	m.addDir("/a").addDir("/a/b").addDir("/a/b/c").addFile("/a/keep.txt", nil)
	fs := NewFileSystem(m)

	if err := fs.RemoveDirs(context.Background(), "/a/b/c"); err != nil {
		t.Fatalf("RemoveDirs: %v", err)
	}
	if _, ok := m.nodes["/a/b/c"]; ok {
		t.Error("/a/b/c not removed")
	}
	if _, ok := m.nodes["/a/b"]; ok {
		t.Error("/a/b not pruned")
	}
	// /a holds keep.txt, so pruning stops there.
	if _, ok := m.nodes["/a"]; !ok {
		t.Error("/a removed despite being non-empty")
	}
}

func TestUploadAndTouch(t *testing.T) {
	m := newMockAPI()
	m.addFile("/exists.txt", []byte("old"))
	fs := NewFileSystem(m)
	ctx := context.Background()

	if err := fs.Upload(ctx, "/new.txt", strings.NewReader("hi")); err != nil {
		t.Fatalf("Upload: %v", err)
	}
	if string(m.nodes["/new.txt"].data) != "hi" {
		t.Error("uploaded content mismatch")
	}

	err := fs.Upload(ctx, "/exists.txt", strings.NewReader("clobber"))
	if !IsExist(err) {
		t.Fatalf("Upload over existing = %v, want ErrExist", err)
	}
	if err := fs.Upload(ctx, "/exists.txt", strings.NewReader("clobber"), WithOverwrite(true)); err != nil {
		t.Fatalf("Upload overwrite: %v", err)
	}
	if string(m.nodes["/exists.txt"].data) != "clobber" {
		t.Error("overwrite content mismatch")
	}

	if err := fs.Touch(ctx, "/touched"); err != nil {
		t.Fatalf("Touch: %v", err)
	}
	if n := m.nodes["/touched"]; n == nil || n.isDir || len(n.data) != 0 {
		t.Error("Touch did not create an empty file")
	}
	// Touching an existing file is a no-op.
	if err := fs.Touch(ctx, "/exists.txt"); err != nil {
		t.Errorf("Touch existing = %v", err)
	}
	if string(m.nodes["/exists.txt"].data) != "clobber" {
		t.Error("Touch truncated an existing file")
	}
}

func TestIsEmptyAndCapacity(t *testing.T) {
	m := newMockAPI()
	m.addDir("/empty").addDir("/full")
	m.addFile("/full/a", nil).addFile("/full/b", nil)
	m.addFile("/zero.txt", nil).addFile("/sized.txt", []byte("abc"))
	fs := NewFileSystem(m)
	ctx := context.Background()

	for _, tt := range []struct {
		p    string
		want bool
	}{
		{"/empty", true},
		{"/full", false},
		{"/zero.txt", true},
		{"/sized.txt", false},
	} {
		if got, err := fs.IsEmpty(ctx, tt.p); err != nil || got != tt.want {
			t.Errorf("IsEmpty(%s) = (%v, %v), want %v", tt.p, got, err, tt.want)
		}
	}

	if n, err := fs.DirectoryCapacity(ctx, "/full"); err != nil || n != 2 {
		t.Errorf("DirectoryCapacity = (%d, %v), want 2", n, err)
	}
}

func TestOpenAndRead(t *testing.T) {
	m := newMockAPI()
	m.addDir("/d")
	m.addFile("/hello.txt", []byte("hello drive\nsecond line\n"))
	startContentServer(t, m)
	fs := NewFileSystem(m)
	ctx := context.Background()

	if _, err := fs.Open(ctx, "/d"); !errors.Is(err, ErrIsDir) {
		t.Errorf("Open dir = %v, want ErrIsDir", err)
	}
	if _, err := fs.Open(ctx, "/missing"); !IsNotExist(err) {
		t.Errorf("Open missing = %v, want ErrNotExist", err)
	}

	text, err := fs.ReadText(ctx, "/hello.txt")
	if err != nil || text != "hello drive\nsecond line\n" {
		t.Fatalf("ReadText = (%q, %v)", text, err)
	}

	r, err := fs.Open(ctx, "/hello.txt")
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	defer r.Close()
	line, err := r.ReadLine()
	if err != nil || string(line) != "hello drive\n" {
		t.Fatalf("ReadLine = (%q, %v)", line, err)
	}
}

func TestDefaultPasswordForwarded(t *testing.T) {
	m := newMockAPI()
	seen := ""
	m.addDir("/vault")
	fs := NewFileSystem(&passwordSpy{RemoteAPI: m, seen: &seen}, WithDefaultPassword("secret"))

	if _, err := fs.Stat(context.Background(), "/vault"); err != nil {
		t.Fatalf("Stat: %v", err)
	}
	if seen != "secret" {
		t.Errorf("password seen by backend = %q, want secret", seen)
	}

	if _, err := fs.Stat(context.Background(), "/vault", WithPassword("override")); err != nil {
		t.Fatalf("Stat: %v", err)
	}
	if seen != "override" {
		t.Errorf("password = %q, want override", seen)
	}
}

// passwordSpy records the password option reaching the backend.
type passwordSpy struct {
	RemoteAPI
	seen *string
}

func (s *passwordSpy) Info(ctx context.Context, p string, opts ...Option) (*Attributes, error) {
	*s.seen = ApplyOptions(opts...).Password
	return s.RemoteAPI.Info(ctx, p, opts...)
}
