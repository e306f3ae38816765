package deps

import (
	"os"
	"path/filepath"
	"testing"
)

func TestCheckBinaries(t *testing.T) {
	binDir := t.TempDir()
	present := filepath.Join(binDir, "bioformats2raw")
	script := []byte("#!/bin/sh\nexit 0\n")
	if err := os.WriteFile(present, script, 0o755); err != nil {
		t.Fatalf("write stub: %v", err)
	}
	reqs := []Requirement{
		{Name: "bioformats2raw", Command: present},
		{Name: "raw2ometiff", Command: "clearly-not-present-binary"},
		{Name: "java", Command: "clearly-not-present-java", Optional: true},
		{Name: "unset", Command: "  "},
	}

	results := CheckBinaries(reqs)
	if len(results) != len(reqs) {
		t.Fatalf("expected %d results, got %d", len(reqs), len(results))
	}

	if !results[0].Available || results[0].Path != present {
		t.Fatalf("expected first requirement to resolve to %s, got %#v", present, results[0])
	}
	if results[0].Detail != "" {
		t.Fatalf("unexpected detail for available dependency: %s", results[0].Detail)
	}

	if results[1].Available || !results[1].Missing() {
		t.Fatalf("expected missing binary to be reported missing: %#v", results[1])
	}
	if results[1].Command != "clearly-not-present-binary" || results[1].Detail == "" {
		t.Fatalf("unexpected status for missing binary: %#v", results[1])
	}

	if results[2].Available || results[2].Missing() {
		t.Fatalf("optional binary must not count as missing: %#v", results[2])
	}

	if results[3].Detail != "command not configured" {
		t.Fatalf("unexpected detail for blank command: %q", results[3].Detail)
	}
}

func TestCheckBinariesSearchesPath(t *testing.T) {
	binDir := t.TempDir()
	stub := filepath.Join(binDir, "raw2ometiff")
	if err := os.WriteFile(stub, []byte("#!/bin/sh\nexit 0\n"), 0o755); err != nil {
		t.Fatalf("write stub: %v", err)
	}
	t.Setenv("PATH", binDir+string(os.PathListSeparator)+os.Getenv("PATH"))

	results := CheckBinaries([]Requirement{{Name: "raw2ometiff", Command: "raw2ometiff"}})
	if !results[0].Available || results[0].Path != stub {
		t.Fatalf("expected PATH lookup to find %s, got %#v", stub, results[0])
	}
}
