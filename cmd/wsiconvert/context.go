package main

import (
	"strings"
	"sync"

	"github.com/spf13/cobra"

	"wsiconvert/internal/config"
)

// runFlags holds the flag values that override configuration.
type runFlags struct {
	config            string
	inputDir          string
	outputDir         string
	rgb               bool
	skipStage1        bool
	skipStage2        bool
	chunkSize         int
	poolWidth         int
	timeout           int
	cleanIntermediate bool
	report            string
	logLevel          string
	logFormat         string
}

type commandContext struct {
	flags runFlags

	configOnce sync.Once
	config     *config.Config
	configPath string
	configErr  error
}

func newCommandContext() *commandContext {
	return &commandContext{}
}

// ensureConfig loads the configuration once, applying flags the user set on
// cmd.
func (c *commandContext) ensureConfig(cmd *cobra.Command) (*config.Config, error) {
	c.configOnce.Do(func() {
		cfg, path, _, err := config.Load(strings.TrimSpace(c.flags.config), c.overrides(cmd))
		if err != nil {
			c.configErr = err
			return
		}
		c.config = cfg
		c.configPath = path
	})
	return c.config, c.configErr
}

func (c *commandContext) overrides(cmd *cobra.Command) config.Override {
	changed := func(names ...string) bool {
		for _, name := range names {
			if flag := cmd.Flags().Lookup(name); flag != nil && flag.Changed {
				return true
			}
		}
		return false
	}
	f := c.flags
	return func(cfg *config.Config) {
		if changed("input_dir") {
			cfg.Paths.InputDir = f.inputDir
		}
		if changed("output_dir") {
			cfg.Paths.OutputDir = f.outputDir
		}
		if changed("rgb") {
			cfg.Batch.RGB = f.rgb
		}
		if changed("skip_stage1", "skip_bioformats2raw") {
			cfg.Batch.SkipStage1 = f.skipStage1
		}
		if changed("skip_stage2", "skip_raw2ometiff") {
			cfg.Batch.SkipStage2 = f.skipStage2
		}
		if changed("chunk_size") {
			cfg.Batch.ChunkSize = f.chunkSize
		}
		if changed("pool_width") {
			cfg.Batch.PoolWidth = f.poolWidth
		}
		if changed("timeout") {
			cfg.Tools.TimeoutSeconds = f.timeout
		}
		if changed("clean_intermediate") {
			cfg.Batch.CleanIntermediate = f.cleanIntermediate
		}
		if changed("report") {
			cfg.Report.Filename = f.report
		}
		if changed("log_level") {
			cfg.Logging.Level = f.logLevel
		}
		if changed("log_format") {
			cfg.Logging.Format = f.logFormat
		}
	}
}

func shouldSkipConfig(cmd *cobra.Command) bool {
	for c := cmd; c != nil; c = c.Parent() {
		if c.Annotations != nil && c.Annotations["skipConfigLoad"] == "true" {
			return true
		}
	}
	return false
}
