package pathutil

import (
	"os"
	"path/filepath"
	"runtime"
	"testing"
)

func TestResolveAbsolutePath(t *testing.T) {
	dir, err := filepath.EvalSymlinks(t.TempDir())
	if err != nil {
		t.Fatal(err)
	}

	got, err := ResolveAbsolutePath(filepath.Join(dir, "a", "b.txt"))
	if err != nil {
		t.Fatal(err)
	}
	if want := filepath.Join(dir, "a", "b.txt"); got != want {
		t.Errorf("missing components: got %q, want %q", got, want)
	}

	home, err := os.UserHomeDir()
	if err == nil {
		got, err := ResolveAbsolutePath("~/filedock-test-nonexistent/x")
		if err != nil {
			t.Fatal(err)
		}
		if !filepath.IsAbs(got) || filepath.Base(got) != "x" {
			t.Errorf("tilde expansion: got %q (home %q)", got, home)
		}
	}

	wd, _ := os.Getwd()
	if got, err := ResolveAbsolutePath(""); err != nil || got != wd {
		t.Errorf("empty path: got %q, %v", got, err)
	}
}

func TestResolveAbsolutePath_Symlink(t *testing.T) {
	if runtime.GOOS == "windows" {
		t.Skip("symlinks need privileges on windows")
	}
	dir, err := filepath.EvalSymlinks(t.TempDir())
	if err != nil {
		t.Fatal(err)
	}
	target := filepath.Join(dir, "target")
	if err := os.Mkdir(target, 0o755); err != nil {
		t.Fatal(err)
	}
	link := filepath.Join(dir, "link")
	if err := os.Symlink(target, link); err != nil {
		t.Fatal(err)
	}

	got, err := ResolveAbsolutePath(filepath.Join(link, "new.txt"))
	if err != nil {
		t.Fatal(err)
	}
	if want := filepath.Join(target, "new.txt"); got != want {
		t.Errorf("got %q, want %q", got, want)
	}
}
