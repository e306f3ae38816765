package workflow

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/gofrs/flock"
	"github.com/google/uuid"

	"wsiconvert/internal/batch"
	"wsiconvert/internal/discovery"
	"wsiconvert/internal/ledger"
	"wsiconvert/internal/logging"
	"wsiconvert/internal/preflight"
	"wsiconvert/internal/report"
	"wsiconvert/internal/services"
)

// ErrRunLocked indicates another run holds the output directory lock.
var ErrRunLocked = errors.New("output directory is locked by another run")

// Run executes one batch. The returned error covers only run-level problems
// (preflight, locking, discovery, report writing); per-job failures are in
// the Summary.
func (m *Manager) Run(ctx context.Context) (Summary, error) {
	start := m.now()
	runID := uuid.NewString()
	ctx = services.WithRunID(ctx, runID)
	logger := logging.WithContext(ctx, m.logger)
	summary := Summary{RunID: runID, ReportPath: m.cfg.ReportPath()}

	if err := m.runPreflight(ctx, logger); err != nil {
		return summary, err
	}
	if err := m.cfg.EnsureDirectories(); err != nil {
		return summary, services.Wrap(services.ErrConfiguration, "prepare", "ensure directories", "", err)
	}

	unlock, err := m.acquireLock()
	if err != nil {
		return summary, err
	}
	defer unlock()

	sources, err := discovery.Discover(m.cfg.Paths.InputDir, m.cfg.Batch.Extensions)
	if err != nil {
		return summary, err
	}
	jobs := batch.Plan(sources, m.cfg.Paths.OutputDir, m.cfg.Batch.ContainerExtension, m.cfg.Paths.StateDir)
	chunks := batch.Partition(jobs, m.cfg.Batch.ChunkSize)
	summary.Jobs = jobs

	logger.Info("run started",
		logging.String(logging.FieldEventType, "run_start"),
		logging.String("input_dir", m.cfg.Paths.InputDir),
		logging.String("output_dir", m.cfg.Paths.OutputDir),
		logging.Int("jobs", len(jobs)),
		logging.Int("chunks", len(chunks)),
		logging.Int("pool_width", m.cfg.Batch.PoolWidth),
	)
	if len(jobs) == 0 {
		logger.Warn("no matching slides found",
			logging.String(logging.FieldEventType, "discovery_empty"),
			logging.Any("extensions", m.cfg.Batch.Extensions),
		)
	}
	for _, job := range jobs {
		if job.Failed() {
			logging.WarnWithContext(logging.WithContext(jobContext(ctx, job, "plan"), m.logger),
				"job skipped", "plan_conflict",
				logging.String(logging.FieldErrorHint, "rename one of the sources so their output names differ"),
				logging.Error(job.Err),
			)
		}
	}

	history := m.openLedger(ctx, logger, runID, start)
	defer history.close()
	history.record(ctx, jobs)

	if m.cfg.Batch.SkipStage1 {
		logger.Info("stage skipped", logging.String(logging.FieldStage, stage1Name))
	} else {
		m.runStage(ctx, chunks, m.stage1Wave(), history)
	}
	if m.cfg.Batch.SkipStage2 {
		logger.Info("stage skipped", logging.String(logging.FieldStage, stage2Name))
	} else {
		m.runStage(ctx, chunks, m.stage2Wave(), history)
	}
	m.failUnattempted(ctx, jobs)

	builder := report.NewBuilder()
	m.deid.Run(ctx, jobs, m.cfg.Batch.SkipStage2, builder)
	for _, job := range jobs {
		if job.Failed() {
			builder.AddFailure(report.Failure{
				Source:  job.SourcePath,
				Stage:   job.FailedStage,
				Kind:    job.ErrorKind(),
				Message: job.ErrorMessage(),
			})
		}
	}

	summary.Counts = batch.Tally(jobs)
	summary.Duration = m.now().Sub(start)
	history.record(ctx, jobs)

	if err := builder.Write(summary.ReportPath); err != nil {
		history.finish(ctx, summary, "")
		return summary, services.Wrap(services.ErrMetadataWrite, "report", "write", summary.ReportPath, err)
	}
	history.finish(ctx, summary, summary.ReportPath)

	logger.Info("run finished",
		logging.String(logging.FieldEventType, "run_complete"),
		logging.Int("total", summary.Counts.Total),
		logging.Int("succeeded", summary.Counts.Succeeded),
		logging.Int("failed", summary.Counts.Failed),
		logging.String("report", summary.ReportPath),
		logging.Duration("duration", summary.Duration),
	)
	return summary, nil
}

func (m *Manager) runPreflight(ctx context.Context, logger *slog.Logger) error {
	results := preflight.RunAll(ctx, &m.cfg)
	for _, r := range results {
		switch {
		case r.Passed:
			logger.Debug("preflight check passed",
				logging.String("check", r.Name),
				logging.String("detail", r.Detail),
				logging.String(logging.FieldEventType, "preflight_passed"),
			)
		case r.Optional:
			logger.Debug("optional preflight check failed",
				logging.String("check", r.Name),
				logging.String("detail", r.Detail),
			)
		default:
			logging.ErrorWithContext(logger, "preflight check failed", "preflight_failed",
				logging.String("check", r.Name),
				logging.String("detail", r.Detail),
				logging.String(logging.FieldErrorHint, "run 'wsiconvert check' and fix the reported issue"),
			)
		}
	}
	return preflight.Err(results)
}

func (m *Manager) acquireLock() (func(), error) {
	lock := flock.New(m.cfg.LockPath())
	locked, err := lock.TryLock()
	if err != nil {
		return nil, services.Wrap(services.ErrConfiguration, "prepare", "lock", m.cfg.LockPath(), err)
	}
	if !locked {
		return nil, services.Wrap(services.ErrConfiguration, "prepare", "lock", m.cfg.Paths.OutputDir, ErrRunLocked)
	}
	return func() {
		if err := lock.Unlock(); err != nil {
			m.logger.Warn("release run lock failed", logging.Error(err))
		}
	}, nil
}

// failUnattempted marks jobs that a canceled run never reached.
func (m *Manager) failUnattempted(ctx context.Context, jobs []*batch.Job) {
	cause := services.ContextError(ctx)
	if cause == nil {
		return
	}
	var want batch.Status
	switch {
	case !m.cfg.Batch.SkipStage2:
		want = batch.StatusStage2Done
	case !m.cfg.Batch.SkipStage1:
		want = batch.StatusStage1Done
	default:
		return
	}
	for _, job := range jobs {
		if job.Failed() || job.Status == want {
			continue
		}
		stage := stage2Name
		if job.Status == batch.StatusPending && !m.cfg.Batch.SkipStage1 {
			stage = stage1Name
		}
		job.Fail(stage, services.Wrap(services.ErrCanceled, stage, "", "run canceled before conversion", cause))
	}
}

func jobContext(ctx context.Context, job *batch.Job, stage string) context.Context {
	ctx = services.WithJob(ctx, job.Seq)
	ctx = services.WithSource(ctx, job.SourcePath)
	return services.WithStage(ctx, stage)
}

// ledgerSession records run history. Ledger problems are logged and never
// fail the run.
type ledgerSession struct {
	store  *ledger.Store
	runID  string
	logger *slog.Logger
	now    func() time.Time
}

func (m *Manager) openLedger(ctx context.Context, logger *slog.Logger, runID string, start time.Time) *ledgerSession {
	session := &ledgerSession{runID: runID, logger: logger, now: m.now}
	if !m.cfg.Ledger.Enabled {
		return session
	}
	store, err := ledger.Open(m.cfg.Ledger.Path)
	if err != nil {
		logging.WarnWithContext(logger, "run ledger unavailable", "ledger_open_failed",
			logging.String(logging.FieldErrorHint, fmt.Sprintf("delete %s if the schema changed", m.cfg.Ledger.Path)),
			logging.Error(err),
		)
		return session
	}
	if err := store.BeginRun(context.WithoutCancel(ctx), runID, m.cfg.Paths.InputDir, m.cfg.Paths.OutputDir, start); err != nil {
		logger.Warn("record run start failed", logging.Error(err))
		_ = store.Close()
		return session
	}
	session.store = store
	return session
}

func (s *ledgerSession) record(ctx context.Context, jobs []*batch.Job) {
	if s.store == nil {
		return
	}
	// Ledger writes outlive a canceled run so the history shows where it stopped.
	if err := s.store.RecordJobs(context.WithoutCancel(ctx), s.runID, jobs); err != nil {
		s.logger.Warn("record job state failed", logging.Error(err))
	}
}

func (s *ledgerSession) finish(ctx context.Context, summary Summary, reportPath string) {
	if s.store == nil {
		return
	}
	if err := s.store.FinishRun(context.WithoutCancel(ctx), s.runID, summary.Counts, reportPath, s.now()); err != nil {
		s.logger.Warn("record run finish failed", logging.Error(err))
	}
}

func (s *ledgerSession) close() {
	if s.store == nil {
		return
	}
	if err := s.store.Close(); err != nil {
		s.logger.Warn("close ledger failed", logging.Error(err))
	}
}
