package main

import (
	"fmt"
	"os/signal"
	"strings"
	"syscall"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"

	"wsiconvert/internal/logging"
	"wsiconvert/internal/report"
	"wsiconvert/internal/workflow"
)

func newRootCommand() *cobra.Command {
	ctx := newCommandContext()

	rootCmd := &cobra.Command{
		Use:   "wsiconvert",
		Short: "Convert whole-slide images to deidentified OME-TIFF",
		Long: "wsiconvert converts every .qptiff, .svs and .scn slide in the input directory\n" +
			"to pyramidal OME-TIFF via bioformats2raw and raw2ometiff, strips acquisition\n" +
			"dates and structured annotations from the embedded OME-XML, and writes a\n" +
			"metadata workbook to the output directory.",
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			if shouldSkipConfig(cmd) {
				return nil
			}
			_, err := ctx.ensureConfig(cmd)
			return err
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			return runBatch(cmd, ctx)
		},
	}

	rootCmd.SetGlobalNormalizationFunc(func(_ *pflag.FlagSet, name string) pflag.NormalizedName {
		return pflag.NormalizedName(strings.ReplaceAll(name, "-", "_"))
	})
	flags := rootCmd.PersistentFlags()
	f := &ctx.flags
	flags.StringVarP(&f.config, "config", "c", "", "Configuration file path")
	flags.StringVar(&f.inputDir, "input_dir", "", "Directory scanned for slides (default: current directory)")
	flags.StringVar(&f.outputDir, "output_dir", "", "Directory for intermediates, outputs and the report (default: current directory)")
	flags.BoolVar(&f.rgb, "rgb", false, "Pass --rgb to raw2ometiff")
	flags.BoolVar(&f.skipStage1, "skip_stage1", false, "Skip bioformats2raw; reuse existing intermediates")
	flags.BoolVar(&f.skipStage1, "skip_bioformats2raw", false, "Alias for --skip_stage1")
	flags.BoolVar(&f.skipStage2, "skip_stage2", false, "Skip raw2ometiff; reuse existing OME-TIFF outputs")
	flags.BoolVar(&f.skipStage2, "skip_raw2ometiff", false, "Alias for --skip_stage2")
	flags.IntVar(&f.chunkSize, "chunk_size", 0, "Jobs per wave (default 10)")
	flags.IntVar(&f.poolWidth, "pool_width", 0, "Concurrent tool invocations per wave (default 20)")
	flags.IntVar(&f.timeout, "timeout", 0, "Per-invocation timeout in seconds; 0 disables")
	flags.BoolVar(&f.cleanIntermediate, "clean_intermediate", false, "Remove each Zarr intermediate after stage 2 succeeds")
	flags.StringVar(&f.report, "report", "", "Report workbook filename (default htan_ome_metadata.xlsx)")
	flags.StringVar(&f.logLevel, "log_level", "", "Log level: debug, info, warn, error")
	flags.StringVar(&f.logFormat, "log_format", "", "Log format: console or json")

	rootCmd.AddCommand(newCheckCommand(ctx))
	rootCmd.AddCommand(newHistoryCommand(ctx))
	rootCmd.AddCommand(newConfigCommand(ctx))

	return rootCmd
}

func runBatch(cmd *cobra.Command, ctx *commandContext) error {
	cfg, err := ctx.ensureConfig(cmd)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	logger, err := logging.New(logging.Options{
		Level:    cfg.Logging.Level,
		Format:   cfg.Logging.Format,
		Output:   cmd.ErrOrStderr(),
		FilePath: cfg.Logging.File,
	})
	if err != nil {
		return fmt.Errorf("init logger: %w", err)
	}

	signalCtx, cancel := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	mgr, err := workflow.New(*cfg, logger)
	if err != nil {
		return err
	}
	summary, err := mgr.Run(signalCtx)
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	if err := report.RenderSummary(out, summary.Jobs, shouldColorize(out)); err != nil {
		return fmt.Errorf("render summary: %w", err)
	}
	fmt.Fprintf(out, "Report: %s\n", summary.ReportPath)
	fmt.Fprintf(out, "Run ID: %s\n", summary.RunID)

	if code := summary.ExitCode(); code != 0 {
		return &exitError{code: code, failed: summary.Counts.Failed}
	}
	return nil
}
