package drivekit

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"
)

func moveTree() *mockAPI {
	m := newMockAPI()
	m.addDir("/a").addFile("/a/x.txt", []byte("payload"))
	m.addDir("/dst")
	return m
}

func hasRelayLeftovers(m *mockAPI) bool {
	for p := range m.nodes {
		if strings.Contains(p, ".dk-relay-") {
			return true
		}
	}
	return false
}

func TestRenameInPlace(t *testing.T) {
	m := moveTree()
	fs := NewFileSystem(m)

	if err := fs.Rename(context.Background(), "/a/x.txt", "/a/y.txt"); err != nil {
		t.Fatalf("Rename: %v", err)
	}
	if !equalStrings(m.calls, []string{"rename /a/x.txt y.txt"}) {
		t.Errorf("calls = %v", m.calls)
	}
	if _, ok := m.nodes["/a/y.txt"]; !ok {
		t.Error("destination missing")
	}
	if _, ok := m.nodes["/a/x.txt"]; ok {
		t.Error("source still present")
	}
}

func TestRenamePureMove(t *testing.T) {
	m := moveTree()
	fs := NewFileSystem(m)

	if err := fs.Rename(context.Background(), "/a/x.txt", "/dst/x.txt"); err != nil {
		t.Fatalf("Rename: %v", err)
	}
	if !equalStrings(m.calls, []string{"move /a /dst x.txt"}) {
		t.Errorf("calls = %v", m.calls)
	}
	if _, ok := m.nodes["/dst/x.txt"]; !ok {
		t.Error("destination missing")
	}
}

func TestRenameRelay(t *testing.T) {
	m := moveTree()
	fs := NewFileSystem(m)

	if err := fs.Rename(context.Background(), "/a/x.txt", "/dst/y.txt"); err != nil {
		t.Fatalf("Rename: %v", err)
	}
	wantOps := []string{"mkdir", "move", "rename", "move", "remove"}
	if !equalStrings(m.callOps(), wantOps) {
		t.Errorf("ops = %v, want %v", m.callOps(), wantOps)
	}
	if n, ok := m.nodes["/dst/y.txt"]; !ok || string(n.data) != "payload" {
		t.Error("destination missing or corrupted")
	}
	if _, ok := m.nodes["/a/x.txt"]; ok {
		t.Error("source still present")
	}
	if hasRelayLeftovers(m) {
		t.Error("relay directory left behind")
	}
}

func TestCopyRelay(t *testing.T) {
	m := moveTree()
	fs := NewFileSystem(m)

	if err := fs.Copy(context.Background(), "/a/x.txt", "/dst/y.txt"); err != nil {
		t.Fatalf("Copy: %v", err)
	}
	wantOps := []string{"mkdir", "copy", "rename", "move", "remove"}
	if !equalStrings(m.callOps(), wantOps) {
		t.Errorf("ops = %v, want %v", m.callOps(), wantOps)
	}
	if _, ok := m.nodes["/dst/y.txt"]; !ok {
		t.Error("copy destination missing")
	}
	if _, ok := m.nodes["/a/x.txt"]; !ok {
		t.Error("copy source must survive")
	}
	if hasRelayLeftovers(m) {
		t.Error("relay directory left behind")
	}
}

func TestRenameCrossStorage(t *testing.T) {
	m := newMockAPI()
	m.addDir("/m1").addDir("/m1/a").addFile("/m1/a/x.txt", nil)
	m.addDir("/m2").addDir("/m2/b")
	m.mounts = []MountPoint{
		{Path: "/m1", Backend: "alpha"},
		{Path: "/m2", Backend: "beta"},
	}
	fs := NewFileSystem(m)
	ctx := context.Background()

	// A pure move may cross storages.
	if err := fs.Rename(ctx, "/m1/a/x.txt", "/m2/b/x.txt"); err != nil {
		t.Fatalf("cross-storage move: %v", err)
	}
	if !equalStrings(m.calls, []string{"move /m1/a /m2/b x.txt"}) {
		t.Errorf("calls = %v", m.calls)
	}

	// A combined move-and-rename may not.
	m.calls = nil
	err := fs.Rename(ctx, "/m2/b/x.txt", "/m1/a/y.txt")
	if !errors.Is(err, ErrCrossStorage) {
		t.Fatalf("Rename = %v, want ErrCrossStorage", err)
	}
	if !IsPermission(err) {
		t.Error("ErrCrossStorage should read as a permission error")
	}
	if len(m.calls) != 0 {
		t.Errorf("rejected rename still mutated: %v", m.calls)
	}
}

func TestRenameValidation(t *testing.T) {
	m := moveTree()
	m.addDir("/m1")
	m.mounts = []MountPoint{{Path: "/m1", Backend: "alpha"}}
	fs := NewFileSystem(m)
	ctx := context.Background()

	tests := []struct {
		name     string
		src, dst string
		want     error
	}{
		{"same path", "/a/x.txt", "/a/x.txt", ErrInvalidPath},
		{"root src", "/", "/dst/r", ErrInvalidPath},
		{"root dst", "/a/x.txt", "/", ErrInvalidPath},
		{"into own subtree", "/a", "/a/sub", ErrPermission},
		{"onto own ancestor", "/a/x.txt", "/a", ErrPermission},
		{"mount root src", "/m1", "/renamed", ErrPermission},
		{"missing src", "/ghost.txt", "/dst/g.txt", ErrNotExist},
		{"missing dst parent", "/a/x.txt", "/nope/y.txt", ErrNotExist},
	}
	for _, tt := range tests {
		err := fs.Rename(ctx, tt.src, tt.dst)
		if !errors.Is(err, tt.want) {
			t.Errorf("%s: Rename = %v, want %v", tt.name, err, tt.want)
		}
	}
	if len(m.calls) != 0 {
		t.Errorf("rejected renames mutated the backend: %v", m.calls)
	}
}

func TestRenameDestinationExists(t *testing.T) {
	m := moveTree()
	m.addFile("/a/y.txt", []byte("old"))
	fs := NewFileSystem(m)
	ctx := context.Background()

	err := fs.Rename(ctx, "/a/x.txt", "/a/y.txt")
	if !IsExist(err) {
		t.Fatalf("Rename onto existing = %v, want ErrExist", err)
	}
	if len(m.calls) != 0 {
		t.Errorf("rejected rename mutated: %v", m.calls)
	}

	if err := fs.Replace(ctx, "/a/x.txt", "/a/y.txt"); err != nil {
		t.Fatalf("Replace: %v", err)
	}
	wantOps := []string{"remove", "rename"}
	if !equalStrings(m.callOps(), wantOps) {
		t.Errorf("ops = %v, want %v", m.callOps(), wantOps)
	}
	if n := m.nodes["/a/y.txt"]; n == nil || string(n.data) != "payload" {
		t.Error("replace did not install the source content")
	}
}

func TestRenameReplaceTypeConflicts(t *testing.T) {
	m := newMockAPI()
	m.addDir("/a").addDir("/a/srcdir").addFile("/a/srcfile", nil)
	m.addDir("/a/emptydir").addDir("/a/fulldir").addFile("/a/fulldir/x", nil)
	m.addFile("/a/afile", nil)
	fs := NewFileSystem(m)
	ctx := context.Background()

	if err := fs.Replace(ctx, "/a/srcdir", "/a/afile"); !errors.Is(err, ErrNotDir) {
		t.Errorf("dir over file = %v, want ErrNotDir", err)
	}
	if err := fs.Replace(ctx, "/a/srcdir", "/a/fulldir"); !errors.Is(err, ErrNotEmpty) {
		t.Errorf("dir over full dir = %v, want ErrNotEmpty", err)
	}
	if err := fs.Replace(ctx, "/a/srcfile", "/a/emptydir"); !errors.Is(err, ErrIsDir) {
		t.Errorf("file over dir = %v, want ErrIsDir", err)
	}
	if len(m.calls) != 0 {
		t.Errorf("rejected replaces mutated: %v", m.calls)
	}

	if err := fs.Replace(ctx, "/a/srcdir", "/a/emptydir"); err != nil {
		t.Fatalf("dir over empty dir: %v", err)
	}
	if m.callOps()[0] != "remove" {
		t.Errorf("ops = %v, want leading remove", m.callOps())
	}
}

func TestRenameRollback(t *testing.T) {
	m := moveTree()
	boom := errors.New("backend broke")
	// Relay steps are mkdir, move, rename, move, remove; fail the
	// fourth mutation, the move into place.
	m.failAt[4] = boom
	fs := NewFileSystem(m)

	err := fs.Rename(context.Background(), "/a/x.txt", "/dst/y.txt")
	if !errors.Is(err, boom) {
		t.Fatalf("Rename = %v, want the backend error unmasked", err)
	}
	if n, ok := m.nodes["/a/x.txt"]; !ok || string(n.data) != "payload" {
		t.Error("rollback did not restore the source")
	}
	if _, ok := m.nodes["/dst/y.txt"]; ok {
		t.Error("failed rename left the destination behind")
	}
	if hasRelayLeftovers(m) {
		t.Error("rollback left the relay directory behind")
	}
	wantOps := []string{"mkdir", "move", "rename", "move", "rename", "move", "remove"}
	if !equalStrings(m.callOps(), wantOps) {
		t.Errorf("ops = %v, want %v", m.callOps(), wantOps)
	}
}

func TestRenameAsync(t *testing.T) {
	m := moveTree()
	fs := NewFileSystem(m)
	ctx := context.Background()

	select {
	case err := <-fs.RenameAsync(ctx, "/a/x.txt", "/dst/y.txt"):
		if err != nil {
			t.Fatalf("RenameAsync: %v", err)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("RenameAsync did not complete")
	}
	if _, ok := m.nodes["/dst/y.txt"]; !ok {
		t.Error("destination missing")
	}

	// Validation failures arrive on the channel too.
	select {
	case err := <-fs.RenameAsync(ctx, "/same", "/same"):
		if !errors.Is(err, ErrInvalidPath) {
			t.Errorf("RenameAsync = %v, want ErrInvalidPath", err)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("RenameAsync validation did not complete")
	}
}

func TestCopyAsync(t *testing.T) {
	m := moveTree()
	fs := NewFileSystem(m)

	select {
	case err := <-fs.CopyAsync(context.Background(), "/a/x.txt", "/dst/x.txt"):
		if err != nil {
			t.Fatalf("CopyAsync: %v", err)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("CopyAsync did not complete")
	}
	if !equalStrings(m.calls, []string{"copy /a /dst x.txt"}) {
		t.Errorf("calls = %v", m.calls)
	}
	if _, ok := m.nodes["/a/x.txt"]; !ok {
		t.Error("copy source must survive")
	}
}

func TestMoveIntoDirectory(t *testing.T) {
	m := moveTree()
	fs := NewFileSystem(m)

	if err := fs.Move(context.Background(), "/a/x.txt", "/dst"); err != nil {
		t.Fatalf("Move: %v", err)
	}
	if !equalStrings(m.calls, []string{"move /a /dst x.txt"}) {
		t.Errorf("calls = %v", m.calls)
	}
}

func TestRenamesPrunesSource(t *testing.T) {
	m := newMockAPI()
	m.addDir("/a").addDir("/a/b").addFile("/a/b/x.txt", nil)
	m.addDir("/dst")
	fs := NewFileSystem(m)

	if err := fs.Renames(context.Background(), "/a/b/x.txt", "/dst/x.txt"); err != nil {
		t.Fatalf("Renames: %v", err)
	}
	if _, ok := m.nodes["/dst/x.txt"]; !ok {
		t.Error("destination missing")
	}
	if _, ok := m.nodes["/a/b"]; ok {
		t.Error("/a/b not pruned")
	}
	if _, ok := m.nodes["/a"]; ok {
		t.Error("/a not pruned")
	}
}

func TestRenameRelayRandomizedTempNames(t *testing.T) {
	m := moveTree()
	m.addFile("/a/x2.txt", nil)
	fs := NewFileSystem(m)
	ctx := context.Background()

	if err := fs.Rename(ctx, "/a/x.txt", "/dst/y.txt"); err != nil {
		t.Fatalf("Rename: %v", err)
	}
	first := m.calls[0]
	m.calls = nil
	if err := fs.Rename(ctx, "/a/x2.txt", "/dst/y2.txt"); err != nil {
		t.Fatalf("Rename: %v", err)
	}
	if m.calls[0] == first {
		t.Error("relay temp directory name reused across operations")
	}
}
