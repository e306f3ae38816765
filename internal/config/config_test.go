package config_test

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/pelletier/go-toml/v2"

	"wsiconvert/internal/config"
)

func TestLoadDefaultsExpandPaths(t *testing.T) {
	tempHome := t.TempDir()
	t.Setenv("HOME", tempHome)
	workDir := t.TempDir()
	t.Chdir(workDir)

	cfg, resolved, exists, err := config.Load("")
	if err != nil {
		t.Fatalf("Load returned error: %v", err)
	}
	if resolved == "" {
		t.Fatal("expected resolved path")
	}
	if exists {
		t.Fatal("expected config file to be absent in temp HOME")
	}

	wd, err := os.Getwd()
	if err != nil {
		t.Fatalf("getwd: %v", err)
	}
	if cfg.Paths.InputDir != wd {
		t.Fatalf("unexpected input dir: got %q want %q", cfg.Paths.InputDir, wd)
	}
	if cfg.Paths.OutputDir != wd {
		t.Fatalf("unexpected output dir: got %q want %q", cfg.Paths.OutputDir, wd)
	}
	if cfg.Paths.StateDir != filepath.Join(wd, ".wsiconvert") {
		t.Fatalf("unexpected state dir: %q", cfg.Paths.StateDir)
	}
	if cfg.Ledger.Path != filepath.Join(wd, ".wsiconvert", "ledger.db") {
		t.Fatalf("unexpected ledger path: %q", cfg.Ledger.Path)
	}
	if cfg.Batch.ChunkSize != 10 || cfg.Batch.PoolWidth != 20 {
		t.Fatalf("unexpected batch defaults: chunk=%d pool=%d", cfg.Batch.ChunkSize, cfg.Batch.PoolWidth)
	}
	if got := strings.Join(cfg.Batch.Extensions, ","); got != ".qptiff,.svs,.scn" {
		t.Fatalf("unexpected extensions: %s", got)
	}
	if cfg.Batch.ContainerExtension != ".ome.tiff" {
		t.Fatalf("unexpected container extension: %q", cfg.Batch.ContainerExtension)
	}
	if cfg.ReportPath() != filepath.Join(wd, "htan_ome_metadata.xlsx") {
		t.Fatalf("unexpected report path: %q", cfg.ReportPath())
	}
	if cfg.ToolTimeout() != 0 {
		t.Fatalf("expected no timeout by default, got %s", cfg.ToolTimeout())
	}
}

func TestLoadCustomPathAndOverrides(t *testing.T) {
	tempDir := t.TempDir()
	configPath := filepath.Join(tempDir, "wsiconvert.toml")

	type payload struct {
		Paths struct {
			InputDir  string `toml:"input_dir"`
			OutputDir string `toml:"output_dir"`
		} `toml:"paths"`
		Batch struct {
			Extensions []string `toml:"extensions"`
			ChunkSize  int      `toml:"chunk_size"`
			PoolWidth  int      `toml:"pool_width"`
		} `toml:"batch"`
		Tools struct {
			TimeoutSeconds int `toml:"timeout_seconds"`
		} `toml:"tools"`
	}
	custom := payload{}
	custom.Paths.InputDir = filepath.Join(tempDir, "in")
	custom.Paths.OutputDir = filepath.Join(tempDir, "out")
	custom.Batch.Extensions = []string{"SVS", ".svs", " .qptiff "}
	custom.Batch.ChunkSize = 4
	custom.Batch.PoolWidth = 2
	custom.Tools.TimeoutSeconds = 90
	data, err := toml.Marshal(custom)
	if err != nil {
		t.Fatalf("marshal custom config: %v", err)
	}
	if err := os.WriteFile(configPath, data, 0o644); err != nil {
		t.Fatalf("write custom config: %v", err)
	}

	override := func(c *config.Config) {
		c.Batch.PoolWidth = 8
		c.Batch.RGB = true
	}
	cfg, resolved, exists, err := config.Load(configPath, override)
	if err != nil {
		t.Fatalf("Load returned error: %v", err)
	}
	if !exists || resolved != configPath {
		t.Fatalf("unexpected resolution: exists=%v resolved=%q", exists, resolved)
	}
	if got := strings.Join(cfg.Batch.Extensions, ","); got != ".svs,.qptiff" {
		t.Fatalf("expected normalized extensions, got %s", got)
	}
	if cfg.Batch.ChunkSize != 4 {
		t.Fatalf("expected chunk size from file, got %d", cfg.Batch.ChunkSize)
	}
	if cfg.Batch.PoolWidth != 8 || !cfg.Batch.RGB {
		t.Fatalf("expected overrides to win, got pool=%d rgb=%v", cfg.Batch.PoolWidth, cfg.Batch.RGB)
	}
	if cfg.Paths.StateDir != filepath.Join(tempDir, "out", ".wsiconvert") {
		t.Fatalf("expected state dir under output dir, got %q", cfg.Paths.StateDir)
	}
	if cfg.ToolTimeout().Seconds() != 90 {
		t.Fatalf("unexpected timeout: %s", cfg.ToolTimeout())
	}

	if err := cfg.EnsureDirectories(); err != nil {
		t.Fatalf("EnsureDirectories failed: %v", err)
	}
	for _, dir := range []string{cfg.Paths.OutputDir, cfg.Paths.StateDir} {
		info, err := os.Stat(dir)
		if err != nil || !info.IsDir() {
			t.Fatalf("expected directory %q to exist: %v", dir, err)
		}
	}
}

func TestLoadRejectsUnknownKeys(t *testing.T) {
	configPath := filepath.Join(t.TempDir(), "bad.toml")
	if err := os.WriteFile(configPath, []byte("[batch]\nchunk_sise = 3\n"), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}
	if _, _, _, err := config.Load(configPath); err == nil {
		t.Fatal("expected unknown key to be rejected")
	}
}

func TestLoadMissingExplicitPath(t *testing.T) {
	if _, _, _, err := config.Load(filepath.Join(t.TempDir(), "absent.toml")); err == nil {
		t.Fatal("expected error for missing explicit config path")
	}
}

func TestCreateSample(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "sample.toml")
	if err := config.CreateSample(path); err != nil {
		t.Fatalf("CreateSample failed: %v", err)
	}

	contents, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read sample: %v", err)
	}
	if !strings.Contains(string(contents), "htan_ome_metadata.xlsx") {
		t.Fatalf("sample config missing report filename: %s", contents)
	}

	var cfg config.Config
	if err := toml.Unmarshal(contents, &cfg); err != nil {
		t.Fatalf("unmarshal sample: %v", err)
	}
	if cfg.Batch.ChunkSize != 10 || cfg.Batch.PoolWidth != 20 {
		t.Fatalf("sample batch values drifted from defaults: %+v", cfg.Batch)
	}

	if _, _, _, err := config.Load(path); err != nil {
		t.Fatalf("sample config should load cleanly: %v", err)
	}
}

func TestValidateDetectsInvalidValues(t *testing.T) {
	base := t.TempDir()
	cases := []struct {
		name   string
		mutate func(*config.Config)
		want   string
	}{
		{"chunk size", func(c *config.Config) { c.Batch.ChunkSize = 0 }, "batch.chunk_size must be >= 1"},
		{"pool width", func(c *config.Config) { c.Batch.PoolWidth = -1 }, "batch.pool_width must be >= 1"},
		{"timeout", func(c *config.Config) { c.Tools.TimeoutSeconds = -5 }, "tools.timeout_seconds must be >= 0"},
		{"log format", func(c *config.Config) { c.Logging.Format = "xml" }, "logging.format must be one of"},
		{"log level", func(c *config.Config) { c.Logging.Level = "loud" }, "logging.level must be one of"},
		{"report path", func(c *config.Config) { c.Report.Filename = "sub/report.xlsx" }, "report.filename must be a file name"},
		{"report ext", func(c *config.Config) { c.Report.Filename = "report.csv" }, "report.filename must end in .xlsx"},
		{"container collides", func(c *config.Config) { c.Batch.ContainerExtension = ".svs" }, "would be rediscovered"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			override := func(c *config.Config) {
				c.Paths.InputDir = base
				c.Paths.OutputDir = base
				tc.mutate(c)
			}
			t.Setenv("HOME", t.TempDir())
			_, _, _, err := config.Load("", override)
			if err == nil {
				t.Fatalf("expected validation error containing %q", tc.want)
			}
			if !strings.Contains(err.Error(), tc.want) {
				t.Fatalf("expected error containing %q, got %v", tc.want, err)
			}
		})
	}
}
