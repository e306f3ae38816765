package testsupport

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"wsiconvert/internal/config"
)

// ConfigOption allows callers to customize the generated test configuration.
type ConfigOption func(*configBuilder)

type configBuilder struct {
	t       testing.TB
	baseDir string
	cfg     *config.Config
}

// NewConfig produces a config seeded with unique temp directories per test.
// The input directory exists; the output directory does not.
func NewConfig(t testing.TB, opts ...ConfigOption) *config.Config {
	t.Helper()

	base := t.TempDir()
	cfgVal := config.Default()
	cfgVal.Paths.InputDir = filepath.Join(base, "input")
	cfgVal.Paths.OutputDir = filepath.Join(base, "output")
	cfgVal.Paths.StateDir = filepath.Join(cfgVal.Paths.OutputDir, ".wsiconvert")
	cfgVal.Ledger.Path = filepath.Join(cfgVal.Paths.StateDir, "ledger.db")
	if err := os.MkdirAll(cfgVal.Paths.InputDir, 0o755); err != nil {
		t.Fatalf("mkdir input dir: %v", err)
	}

	builder := &configBuilder{
		t:       t,
		baseDir: base,
		cfg:     &cfgVal,
	}

	for _, opt := range opts {
		opt(builder)
	}

	return builder.cfg
}

// WithBatch overrides chunking and pool width.
func WithBatch(chunkSize, poolWidth int) ConfigOption {
	return func(b *configBuilder) {
		b.cfg.Batch.ChunkSize = chunkSize
		b.cfg.Batch.PoolWidth = poolWidth
	}
}

// WithoutLedger disables the SQLite run ledger.
func WithoutLedger() ConfigOption {
	return func(b *configBuilder) {
		b.cfg.Ledger.Enabled = false
	}
}

// StubTools describes the behaviour of generated converter scripts.
type StubTools struct {
	// Fixture is copied to every raw2ometiff output path.
	Fixture string
	// FailStage1 and FailStage2 are shell case patterns matched against the
	// basename of the tool's first positional argument.
	FailStage1 string
	FailStage2 string
	// Sleep delays each invocation, in seconds.
	Sleep string
	// Record, when set, receives one line per invocation.
	Record string
}

// WithStubTools writes bioformats2raw and raw2ometiff scripts under the test
// directory and points the config at them.
func WithStubTools(stub StubTools) ConfigOption {
	return func(b *configBuilder) {
		binDir := filepath.Join(b.baseDir, "bin")
		if err := os.MkdirAll(binDir, 0o755); err != nil {
			b.t.Fatalf("mkdir bin dir: %v", err)
		}

		stage1 := stubScript(`src="$1"; dst="$2"`, "$src", stub.FailStage1, stub, `mkdir -p "$dst/0" && echo "$src" > "$dst/.source"`)
		stage2 := stubScript(`for last; do :; done; if [ "$1" = "--rgb" ]; then raw="$2"; else raw="$1"; fi`, "$raw", stub.FailStage2, stub,
			fmt.Sprintf(`cp %q "$last"`, stub.Fixture))

		b.cfg.Tools.Bioformats2Raw = writeExecutable(b.t, filepath.Join(binDir, "bioformats2raw"), stage1)
		b.cfg.Tools.Raw2OmeTiff = writeExecutable(b.t, filepath.Join(binDir, "raw2ometiff"), stage2)
	}
}

func stubScript(prelude, subject, failPattern string, stub StubTools, action string) string {
	var sb strings.Builder
	sb.WriteString("#!/bin/sh\n")
	sb.WriteString(prelude + "\n")
	if stub.Record != "" {
		fmt.Fprintf(&sb, "echo \"$(basename \"$0\") $*\" >> %q\n", stub.Record)
	}
	if stub.Sleep != "" {
		fmt.Fprintf(&sb, "sleep %s\n", stub.Sleep)
	}
	if failPattern != "" {
		fmt.Fprintf(&sb, "case \"$(basename \"%s\")\" in\n%s)\n  echo \"cannot read %s\" >&2\n  exit 2\n  ;;\nesac\n", subject, failPattern, subject)
	}
	sb.WriteString(action + "\n")
	return sb.String()
}

func writeExecutable(t testing.TB, path, body string) string {
	t.Helper()
	if err := os.WriteFile(path, []byte(body), 0o755); err != nil {
		t.Fatalf("write stub %s: %v", path, err)
	}
	return path
}

// WithStubbedBinaries writes no-op executables for the provided names and
// prepends them to PATH. If names is empty, both converters are stubbed.
func WithStubbedBinaries(names ...string) ConfigOption {
	return func(b *configBuilder) {
		if len(names) == 0 {
			names = []string{"bioformats2raw", "raw2ometiff"}
		}
		binDir := filepath.Join(b.baseDir, "path-bin")
		if err := os.MkdirAll(binDir, 0o755); err != nil {
			b.t.Fatalf("mkdir bin dir: %v", err)
		}
		for _, name := range names {
			writeExecutable(b.t, filepath.Join(binDir, name), "#!/bin/sh\nexit 0\n")
		}
		b.t.Setenv("PATH", binDir+string(os.PathListSeparator)+os.Getenv("PATH"))
	}
}

// BaseDir returns the root temp directory backing the generated config.
func BaseDir(cfg *config.Config) string {
	return filepath.Dir(cfg.Paths.InputDir)
}
