package virtualfs

import (
	"path/filepath"
	"testing"
)

func openTestVFS(t *testing.T) *VFS {
	t.Helper()
	v, err := Open(filepath.Join(t.TempDir(), "test.db"))
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	t.Cleanup(func() { v.Close() })
	return v
}

func TestWriteReadDelete(t *testing.T) {
	v := openTestVFS(t)

	if err := v.WriteFile("hello.bas", "10 PRINT \"HI\"", "s1"); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}
	content, err := v.ReadFile("HELLO.BAS", "s1")
	if err != nil {
		t.Fatalf("ReadFile: %v", err)
	}
	if content != "10 PRINT \"HI\"" {
		t.Errorf("content = %q", content)
	}
	if !v.Exists("hello", "s1") {
		t.Error("Exists false for bare name (default .BAS extension)")
	}

	if err := v.Delete("hello.bas", "s1"); err != nil {
		t.Fatalf("Delete: %v", err)
	}
	if _, err := v.ReadFile("hello.bas", "s1"); err != ErrNotFound {
		t.Errorf("read after delete: err = %v, want ErrNotFound", err)
	}
	if err := v.Delete("hello.bas", "s1"); err != ErrNotFound {
		t.Errorf("second delete: err = %v, want ErrNotFound", err)
	}
}

func TestSessionsAreIsolated(t *testing.T) {
	v := openTestVFS(t)

	if err := v.WriteFile("prog.bas", "A", "alice"); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}
	if _, err := v.ReadFile("prog.bas", "bob"); err != ErrNotFound {
		t.Errorf("cross-session read: err = %v, want ErrNotFound", err)
	}
	if v.Exists("prog.bas", "bob") {
		t.Error("file visible across sessions")
	}
}

func TestOverwriteReplacesContent(t *testing.T) {
	v := openTestVFS(t)

	if err := v.WriteFile("p.bas", "old", "s1"); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}
	if err := v.WriteFile("p.bas", "new", "s1"); err != nil {
		t.Fatalf("overwrite: %v", err)
	}
	content, err := v.ReadFile("p.bas", "s1")
	if err != nil {
		t.Fatalf("ReadFile: %v", err)
	}
	if content != "new" {
		t.Errorf("content = %q, want %q", content, "new")
	}

	infos, err := v.List("s1")
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if len(infos) != 1 {
		t.Fatalf("List returned %d entries, want 1", len(infos))
	}
	if infos[0].Name != "P.BAS" || infos[0].Size != 3 {
		t.Errorf("entry = %+v", infos[0])
	}
}

func TestInvalidPathsRejected(t *testing.T) {
	v := openTestVFS(t)

	for _, path := range []string{"", "  ", "a/b.bas", `a\b.bas`, "c:file"} {
		if err := v.WriteFile(path, "x", "s1"); err != ErrInvalidPath {
			t.Errorf("WriteFile(%q): err = %v, want ErrInvalidPath", path, err)
		}
	}
}

func TestNormalizePathDefaults(t *testing.T) {
	cases := []struct{ in, want string }{
		{"game", "GAME.BAS"},
		{"game.bas", "GAME.BAS"},
		{"notes.txt", "NOTES.TXT"},
		{" mixed.Bas ", "MIXED.BAS"},
	}
	for _, c := range cases {
		got, err := normalizePath(c.in)
		if err != nil {
			t.Errorf("normalizePath(%q): %v", c.in, err)
			continue
		}
		if got != c.want {
			t.Errorf("normalizePath(%q) = %q, want %q", c.in, got, c.want)
		}
	}
}
