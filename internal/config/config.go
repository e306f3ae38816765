package config

import (
	_ "embed"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/pelletier/go-toml/v2"
)

//go:embed sample_config.toml
var sampleConfig string

// Paths contains the batch input and output locations.
type Paths struct {
	InputDir  string `toml:"input_dir" validate:"required"`
	OutputDir string `toml:"output_dir" validate:"required"`
	StateDir  string `toml:"state_dir"`
}

// Tools describes the two external converters.
type Tools struct {
	Bioformats2Raw     string   `toml:"bioformats2raw" validate:"required"`
	Raw2OmeTiff        string   `toml:"raw2ometiff" validate:"required"`
	Bioformats2RawArgs []string `toml:"bioformats2raw_args"`
	Raw2OmeTiffArgs    []string `toml:"raw2ometiff_args"`
	TimeoutSeconds     int      `toml:"timeout_seconds" validate:"gte=0"`
}

// Batch controls discovery, partitioning, and stage execution.
type Batch struct {
	Extensions         []string `toml:"extensions" validate:"min=1,dive,startswith=."`
	ContainerExtension string   `toml:"container_extension" validate:"required,startswith=."`
	ChunkSize          int      `toml:"chunk_size" validate:"gte=1"`
	PoolWidth          int      `toml:"pool_width" validate:"gte=1"`
	Series             int      `toml:"series" validate:"gte=0"`
	RGB                bool     `toml:"rgb"`
	SkipStage1         bool     `toml:"skip_stage1"`
	SkipStage2         bool     `toml:"skip_stage2"`
	CleanIntermediate  bool     `toml:"clean_intermediate"`
}

// Report contains the inventory workbook settings.
type Report struct {
	Filename   string `toml:"filename" validate:"required"`
	Component  string `toml:"component"`
	FileFormat string `toml:"file_format"`
	AssayType  string `toml:"assay_type"`
}

// Ledger contains configuration for the SQLite run ledger.
type Ledger struct {
	Enabled bool   `toml:"enabled"`
	Path    string `toml:"path"`
}

// Logging contains configuration for log output.
type Logging struct {
	Format string `toml:"format" validate:"oneof=console json"`
	Level  string `toml:"level" validate:"oneof=debug info warn error"`
	File   string `toml:"file"`
}

// Config encapsulates every knob of a conversion run.
//
// Configuration sections by subsystem:
//   - Paths: input scan directory, output root, run state directory
//   - Tools: bioformats2raw and raw2ometiff binaries, extra args, timeout
//   - Batch: extensions, chunking, pool width, stage skips
//   - Report: workbook filename and constant columns
//   - Ledger: SQLite run history
//   - Logging: log format, level, and optional file
type Config struct {
	Paths   Paths   `toml:"paths"`
	Tools   Tools   `toml:"tools"`
	Batch   Batch   `toml:"batch"`
	Report  Report  `toml:"report"`
	Ledger  Ledger  `toml:"ledger"`
	Logging Logging `toml:"logging"`
}

// Override mutates a freshly decoded config before normalization. The CLI uses
// overrides to apply flags so they go through the same normalize/validate pass
// as file values.
type Override func(*Config)

// DefaultConfigPath returns the absolute path to the default configuration file location.
func DefaultConfigPath() (string, error) {
	return expandPath("~/.config/wsiconvert/config.toml")
}

// Load locates, parses, and validates a configuration file, then applies the
// provided overrides. The returned config has all path fields expanded and
// normalized.
func Load(path string, overrides ...Override) (*Config, string, bool, error) {
	cfg := Default()

	resolvedPath, exists, err := resolveConfigPath(path)
	if err != nil {
		return nil, "", false, err
	}

	if exists {
		file, err := os.Open(resolvedPath)
		if err != nil {
			return nil, "", false, fmt.Errorf("open config: %w", err)
		}
		defer file.Close()

		decoder := toml.NewDecoder(file)
		decoder.DisallowUnknownFields()
		if err := decoder.Decode(&cfg); err != nil {
			return nil, "", false, fmt.Errorf("parse config: %w", err)
		}
	}

	for _, override := range overrides {
		if override != nil {
			override(&cfg)
		}
	}

	if err := cfg.normalize(); err != nil {
		return nil, "", false, err
	}

	if err := cfg.Validate(); err != nil {
		return nil, "", false, err
	}

	return &cfg, resolvedPath, exists, nil
}

func resolveConfigPath(path string) (string, bool, error) {
	if path != "" {
		expanded, err := expandPath(path)
		if err != nil {
			return "", false, err
		}
		info, err := os.Stat(expanded)
		if err != nil {
			if errors.Is(err, fs.ErrNotExist) {
				return "", false, fmt.Errorf("config file %s does not exist", expanded)
			}
			return "", false, fmt.Errorf("stat config: %w", err)
		}
		if info.IsDir() {
			return "", false, fmt.Errorf("config path %s is a directory", expanded)
		}
		return expanded, true, nil
	}

	defaultPath, err := DefaultConfigPath()
	if err != nil {
		return "", false, err
	}

	projectPath, err := filepath.Abs("wsiconvert.toml")
	if err != nil {
		return "", false, err
	}

	if info, err := os.Stat(defaultPath); err == nil && !info.IsDir() {
		return defaultPath, true, nil
	}
	if info, err := os.Stat(projectPath); err == nil && !info.IsDir() {
		return projectPath, true, nil
	}

	return defaultPath, false, nil
}

// EnsureDirectories creates the output root and the run state directory.
func (c *Config) EnsureDirectories() error {
	for _, dir := range []string{c.Paths.OutputDir, c.Paths.StateDir} {
		if strings.TrimSpace(dir) == "" {
			continue
		}
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create directory %q: %w", dir, err)
		}
	}
	if c.Ledger.Enabled {
		if err := os.MkdirAll(filepath.Dir(c.Ledger.Path), 0o755); err != nil {
			return fmt.Errorf("create ledger directory: %w", err)
		}
	}
	return nil
}

// ReportPath returns the absolute location of the metadata workbook.
func (c *Config) ReportPath() string {
	return filepath.Join(c.Paths.OutputDir, c.Report.Filename)
}

// LockPath returns the lock file guarding the output directory.
func (c *Config) LockPath() string {
	return filepath.Join(c.Paths.StateDir, "run.lock")
}

// ToolTimeout returns the per-invocation timeout, zero when disabled.
func (c *Config) ToolTimeout() time.Duration {
	if c.Tools.TimeoutSeconds <= 0 {
		return 0
	}
	return time.Duration(c.Tools.TimeoutSeconds) * time.Second
}

func expandPath(pathValue string) (string, error) {
	if pathValue == "" {
		return pathValue, nil
	}
	if strings.HasPrefix(pathValue, "~") {
		home, err := os.UserHomeDir()
		if err != nil {
			return "", fmt.Errorf("resolve home directory: %w", err)
		}
		if pathValue == "~" {
			pathValue = home
		} else if len(pathValue) > 1 && (pathValue[1] == '/' || pathValue[1] == '\\') {
			pathValue = filepath.Join(home, pathValue[2:])
		}
	}
	cleaned := filepath.Clean(pathValue)
	absolute, err := filepath.Abs(cleaned)
	if err != nil {
		return "", fmt.Errorf("resolve absolute path for %q: %w", cleaned, err)
	}
	return absolute, nil
}

// ExpandPath exposes the repository path expansion rules for other packages.
func ExpandPath(pathValue string) (string, error) {
	return expandPath(pathValue)
}

// CreateSample writes a sample configuration file to the specified location.
func CreateSample(path string) error {
	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create config directory: %w", err)
		}
	}

	if err := os.WriteFile(path, []byte(sampleConfig), 0o644); err != nil {
		return fmt.Errorf("write sample config: %w", err)
	}
	return nil
}
