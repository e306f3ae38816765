package workflow

import (
	"fmt"
	"log/slog"
	"time"

	"wsiconvert/internal/config"
	"wsiconvert/internal/deid"
	"wsiconvert/internal/logging"
	"wsiconvert/internal/report"
	"wsiconvert/internal/services/bioformats2raw"
	"wsiconvert/internal/services/raw2ometiff"
)

// MaxExitCode caps the failed-job exit status below the shell's reserved range.
const MaxExitCode = 125

// Manager runs conversion batches for one configuration.
type Manager struct {
	cfg    config.Config
	logger *slog.Logger
	stage1 bioformats2raw.Converter
	stage2 raw2ometiff.Converter
	deid   *deid.Deidentifier
	now    func() time.Time
}

// Option configures optional Manager behavior.
type Option func(*Manager)

// WithStage1Converter replaces the bioformats2raw client (used in tests).
func WithStage1Converter(c bioformats2raw.Converter) Option {
	return func(m *Manager) {
		if c != nil {
			m.stage1 = c
		}
	}
}

// WithStage2Converter replaces the raw2ometiff client (used in tests).
func WithStage2Converter(c raw2ometiff.Converter) Option {
	return func(m *Manager) {
		if c != nil {
			m.stage2 = c
		}
	}
}

// WithClock overrides the time source stamped on ledger rows.
func WithClock(now func() time.Time) Option {
	return func(m *Manager) {
		if now != nil {
			m.now = now
		}
	}
}

// New constructs a Manager. cfg is copied; later changes by the caller do not
// affect the manager.
func New(cfg config.Config, logger *slog.Logger, opts ...Option) (*Manager, error) {
	if logger == nil {
		logger = logging.NewNop()
	}
	m := &Manager{
		cfg:    cfg,
		logger: logging.NewComponentLogger(logger, "workflow"),
		now:    time.Now,
	}
	for _, opt := range opts {
		opt(m)
	}

	if m.stage1 == nil {
		client, err := bioformats2raw.New(cfg.Tools.Bioformats2Raw, cfg.ToolTimeout(),
			bioformats2raw.WithLogger(logging.NewComponentLogger(logger, bioformats2raw.Stage)),
			bioformats2raw.WithSeries(cfg.Batch.Series),
			bioformats2raw.WithExtraArgs(cfg.Tools.Bioformats2RawArgs),
		)
		if err != nil {
			return nil, fmt.Errorf("stage 1 client: %w", err)
		}
		m.stage1 = client
	}
	if m.stage2 == nil {
		client, err := raw2ometiff.New(cfg.Tools.Raw2OmeTiff, cfg.ToolTimeout(),
			raw2ometiff.WithLogger(logging.NewComponentLogger(logger, raw2ometiff.Stage)),
			raw2ometiff.WithExtraArgs(cfg.Tools.Raw2OmeTiffArgs),
		)
		if err != nil {
			return nil, fmt.Errorf("stage 2 client: %w", err)
		}
		m.stage2 = client
	}

	m.deid = deid.New(report.Constants{
		Component:  cfg.Report.Component,
		FileFormat: cfg.Report.FileFormat,
		AssayType:  cfg.Report.AssayType,
	}, logger)
	return m, nil
}
