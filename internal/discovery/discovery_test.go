package discovery_test

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"wsiconvert/internal/discovery"
	"wsiconvert/internal/services"
)

var defaultExts = []string{".qptiff", ".svs", ".scn"}

func touch(t *testing.T, dir string, names ...string) {
	t.Helper()
	for _, name := range names {
		if err := os.WriteFile(filepath.Join(dir, name), []byte("x"), 0o644); err != nil {
			t.Fatalf("write %s: %v", name, err)
		}
	}
}

func basenames(paths []string) string {
	names := make([]string, len(paths))
	for i, p := range paths {
		names[i] = filepath.Base(p)
	}
	return strings.Join(names, ",")
}

func TestDiscoverGroupsByExtensionInConfiguredOrder(t *testing.T) {
	dir := t.TempDir()
	touch(t, dir, "b.svs", "a.svs", "z.qptiff", "c.scn", "notes.txt", "y.QPTIFF")
	if err := os.Mkdir(filepath.Join(dir, "nested.svs"), 0o755); err != nil {
		t.Fatalf("mkdir: %v", err)
	}
	touch(t, filepath.Join(dir, "nested.svs"), "deep.svs")

	files, err := discovery.Discover(dir, defaultExts)
	if err != nil {
		t.Fatalf("Discover returned error: %v", err)
	}
	if got, want := basenames(files), "y.QPTIFF,z.qptiff,a.svs,b.svs,c.scn"; got != want {
		t.Fatalf("unexpected order: got %s want %s", got, want)
	}
	for _, f := range files {
		if !filepath.IsAbs(f) {
			t.Fatalf("expected absolute path, got %q", f)
		}
	}
}

func TestDiscoverIsDeterministic(t *testing.T) {
	dir := t.TempDir()
	touch(t, dir, "3.svs", "1.svs", "2.scn", "0.qptiff")

	first, err := discovery.Discover(dir, defaultExts)
	if err != nil {
		t.Fatalf("Discover returned error: %v", err)
	}
	second, err := discovery.Discover(dir, defaultExts)
	if err != nil {
		t.Fatalf("Discover returned error: %v", err)
	}
	if basenames(first) != basenames(second) {
		t.Fatalf("non-deterministic discovery: %v vs %v", first, second)
	}
}

func TestDiscoverEmptyDirectory(t *testing.T) {
	files, err := discovery.Discover(t.TempDir(), defaultExts)
	if err != nil {
		t.Fatalf("Discover returned error: %v", err)
	}
	if len(files) != 0 {
		t.Fatalf("expected no files, got %v", files)
	}
}

func TestDiscoverInvalidPaths(t *testing.T) {
	dir := t.TempDir()
	touch(t, dir, "file.svs")

	for _, path := range []string{filepath.Join(dir, "missing"), filepath.Join(dir, "file.svs")} {
		_, err := discovery.Discover(path, defaultExts)
		if !errors.Is(err, services.ErrInvalidInputPath) {
			t.Fatalf("expected invalid input path for %s, got %v", path, err)
		}
	}
}

func TestDiscoverIgnoresBareExtensionName(t *testing.T) {
	dir := t.TempDir()
	touch(t, dir, ".svs", "real.svs")

	files, err := discovery.Discover(dir, defaultExts)
	if err != nil {
		t.Fatalf("Discover returned error: %v", err)
	}
	if got := basenames(files); got != "real.svs" {
		t.Fatalf("unexpected files: %s", got)
	}
}

func TestDiscoverSkipsHiddenFiles(t *testing.T) {
	dir := t.TempDir()
	touch(t, dir, "..svs", "...svs", ".wsiconvert.svs", ".scan.qptiff", "visible.svs")

	files, err := discovery.Discover(dir, defaultExts)
	if err != nil {
		t.Fatalf("Discover returned error: %v", err)
	}
	if got := basenames(files); got != "visible.svs" {
		t.Fatalf("unexpected files: %s", got)
	}
}
