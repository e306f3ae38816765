package config

import (
	"fmt"
	"path/filepath"
	"strings"
)

func (c *Config) normalize() error {
	if err := c.normalizePaths(); err != nil {
		return err
	}
	c.normalizeTools()
	c.normalizeBatch()
	c.normalizeReport()
	if err := c.normalizeLedger(); err != nil {
		return err
	}
	return c.normalizeLogging()
}

func (c *Config) normalizePaths() error {
	var err error
	if strings.TrimSpace(c.Paths.InputDir) == "" {
		c.Paths.InputDir = defaultInputDir
	}
	if c.Paths.InputDir, err = expandPath(strings.TrimSpace(c.Paths.InputDir)); err != nil {
		return fmt.Errorf("paths.input_dir: %w", err)
	}
	if strings.TrimSpace(c.Paths.OutputDir) == "" {
		c.Paths.OutputDir = defaultOutputDir
	}
	if c.Paths.OutputDir, err = expandPath(strings.TrimSpace(c.Paths.OutputDir)); err != nil {
		return fmt.Errorf("paths.output_dir: %w", err)
	}
	if strings.TrimSpace(c.Paths.StateDir) == "" {
		c.Paths.StateDir = filepath.Join(c.Paths.OutputDir, defaultStateDirName)
	}
	if c.Paths.StateDir, err = expandPath(strings.TrimSpace(c.Paths.StateDir)); err != nil {
		return fmt.Errorf("paths.state_dir: %w", err)
	}
	return nil
}

func (c *Config) normalizeTools() {
	c.Tools.Bioformats2Raw = strings.TrimSpace(c.Tools.Bioformats2Raw)
	if c.Tools.Bioformats2Raw == "" {
		c.Tools.Bioformats2Raw = defaultBioformats2Raw
	}
	c.Tools.Raw2OmeTiff = strings.TrimSpace(c.Tools.Raw2OmeTiff)
	if c.Tools.Raw2OmeTiff == "" {
		c.Tools.Raw2OmeTiff = defaultRaw2OmeTiff
	}
	c.Tools.Bioformats2RawArgs = trimArgs(c.Tools.Bioformats2RawArgs)
	c.Tools.Raw2OmeTiffArgs = trimArgs(c.Tools.Raw2OmeTiffArgs)
}

func (c *Config) normalizeBatch() {
	if len(c.Batch.Extensions) == 0 {
		c.Batch.Extensions = DefaultExtensions()
	} else {
		exts := make([]string, 0, len(c.Batch.Extensions))
		seen := make(map[string]struct{}, len(c.Batch.Extensions))
		for _, ext := range c.Batch.Extensions {
			normalized := normalizeExtension(ext)
			if normalized == "" {
				continue
			}
			if _, exists := seen[normalized]; exists {
				continue
			}
			seen[normalized] = struct{}{}
			exts = append(exts, normalized)
		}
		if len(exts) == 0 {
			exts = DefaultExtensions()
		}
		c.Batch.Extensions = exts
	}
	c.Batch.ContainerExtension = normalizeExtension(c.Batch.ContainerExtension)
	if c.Batch.ContainerExtension == "" {
		c.Batch.ContainerExtension = defaultContainerExtension
	}
}

func (c *Config) normalizeReport() {
	c.Report.Filename = strings.TrimSpace(c.Report.Filename)
	if c.Report.Filename == "" {
		c.Report.Filename = defaultReportFilename
	}
	c.Report.Component = strings.TrimSpace(c.Report.Component)
	c.Report.FileFormat = strings.TrimSpace(c.Report.FileFormat)
	c.Report.AssayType = strings.TrimSpace(c.Report.AssayType)
}

func (c *Config) normalizeLedger() error {
	if strings.TrimSpace(c.Ledger.Path) == "" {
		c.Ledger.Path = filepath.Join(c.Paths.StateDir, defaultLedgerFile)
	}
	var err error
	if c.Ledger.Path, err = expandPath(strings.TrimSpace(c.Ledger.Path)); err != nil {
		return fmt.Errorf("ledger.path: %w", err)
	}
	return nil
}

func (c *Config) normalizeLogging() error {
	c.Logging.Format = strings.ToLower(strings.TrimSpace(c.Logging.Format))
	if c.Logging.Format == "" {
		c.Logging.Format = defaultLogFormat
	}
	c.Logging.Level = strings.ToLower(strings.TrimSpace(c.Logging.Level))
	if c.Logging.Level == "" {
		c.Logging.Level = defaultLogLevel
	}
	if strings.TrimSpace(c.Logging.File) != "" {
		var err error
		if c.Logging.File, err = expandPath(strings.TrimSpace(c.Logging.File)); err != nil {
			return fmt.Errorf("logging.file: %w", err)
		}
	}
	return nil
}

func normalizeExtension(ext string) string {
	ext = strings.ToLower(strings.TrimSpace(ext))
	if ext == "" {
		return ""
	}
	if !strings.HasPrefix(ext, ".") {
		ext = "." + ext
	}
	return ext
}

func trimArgs(args []string) []string {
	if len(args) == 0 {
		return nil
	}
	out := make([]string, 0, len(args))
	for _, arg := range args {
		if trimmed := strings.TrimSpace(arg); trimmed != "" {
			out = append(out, trimmed)
		}
	}
	return out
}
