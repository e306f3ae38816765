package workflow

import (
	"context"
	"os"
	"time"

	"github.com/dustin/go-humanize"
	"golang.org/x/sync/errgroup"

	"wsiconvert/internal/batch"
	"wsiconvert/internal/logging"
	"wsiconvert/internal/services"
	"wsiconvert/internal/services/bioformats2raw"
	"wsiconvert/internal/services/raw2ometiff"
)

const (
	stage1Name = bioformats2raw.Stage
	stage2Name = raw2ometiff.Stage
)

// wave describes one converter stage applied to a chunk of jobs.
type wave struct {
	stage string
	done  batch.Status
	work  func(ctx context.Context, job *batch.Job) error
}

func (m *Manager) stage1Wave() wave {
	return wave{
		stage: stage1Name,
		done:  batch.StatusStage1Done,
		work: func(ctx context.Context, job *batch.Job) error {
			return m.stage1.Convert(ctx, job.SourcePath, job.IntermediateDir)
		},
	}
}

func (m *Manager) stage2Wave() wave {
	return wave{
		stage: stage2Name,
		done:  batch.StatusStage2Done,
		work: func(ctx context.Context, job *batch.Job) error {
			if err := m.stage2.Convert(ctx, job.IntermediateDir, job.OutputPath, m.cfg.Batch.RGB); err != nil {
				return err
			}
			logger := logging.WithContext(ctx, m.logger)
			if info, err := os.Stat(job.OutputPath); err == nil {
				logger.Info("output written",
					logging.String("output", job.OutputPath),
					logging.String("size", humanize.Bytes(uint64(info.Size()))),
				)
			}
			if m.cfg.Batch.CleanIntermediate {
				if err := os.RemoveAll(job.IntermediateDir); err != nil {
					logger.Warn("remove intermediate failed",
						logging.String("intermediate", job.IntermediateDir),
						logging.Error(err),
					)
				}
			}
			return nil
		},
	}
}

// runStage applies w to every chunk in order. No new wave starts once ctx is
// done.
func (m *Manager) runStage(ctx context.Context, chunks []batch.Chunk, w wave, history *ledgerSession) {
	for _, chunk := range chunks {
		if ctx.Err() != nil {
			return
		}
		m.runWave(ctx, chunk, w)
		history.record(ctx, chunk.Jobs)
	}
}

// runWave runs w over the active jobs of chunk with at most pool_width
// concurrent invocations and returns once every job has finished.
func (m *Manager) runWave(ctx context.Context, chunk batch.Chunk, w wave) {
	active := chunk.Active()
	waveCtx := services.WithStage(services.WithChunk(ctx, chunk.Index), w.stage)
	logger := logging.WithContext(waveCtx, m.logger)
	if len(active) == 0 {
		logger.Debug("wave skipped, no active jobs")
		return
	}

	started := time.Now()
	logger.Info("wave started",
		logging.String(logging.FieldEventType, "wave_start"),
		logging.Int("jobs", len(active)),
	)

	var g errgroup.Group
	g.SetLimit(m.cfg.Batch.PoolWidth)
	for _, job := range active {
		g.Go(func() error {
			m.runJob(waveCtx, job, w)
			return nil
		})
	}
	_ = g.Wait()

	failed := 0
	for _, job := range active {
		if job.Failed() {
			failed++
		}
	}
	logger.Info("wave completed",
		logging.String(logging.FieldEventType, "wave_complete"),
		logging.Int("succeeded", len(active)-failed),
		logging.Int("failed", failed),
		logging.Duration("wave_duration", time.Since(started)),
	)
}

func (m *Manager) runJob(ctx context.Context, job *batch.Job, w wave) {
	jobCtx := jobContext(ctx, job, w.stage)
	logger := logging.WithContext(jobCtx, m.logger)

	if err := services.ContextError(ctx); err != nil {
		job.Fail(w.stage, services.Wrap(services.ErrCanceled, w.stage, "", "run canceled before conversion", err))
		return
	}

	started := time.Now()
	if err := w.work(jobCtx, job); err != nil {
		job.Fail(w.stage, err)
		logging.ErrorWithContext(logger, "stage failed", "stage_failure",
			logging.String("error_kind", job.ErrorKind()),
			logging.String(logging.FieldErrorHint, stageHint(job.ErrorKind())),
			logging.Error(err),
		)
		return
	}
	if err := job.Advance(w.done); err != nil {
		job.Fail(w.stage, services.Wrap(services.ErrExternalTool, w.stage, "advance", "", err))
		return
	}
	logger.Info("stage completed",
		logging.String(logging.FieldEventType, "stage_complete"),
		logging.Duration("stage_duration", time.Since(started)),
	)
}

func stageHint(kind string) string {
	switch kind {
	case services.KindInvalidInputPath:
		return "check that the source slide exists and is readable"
	case services.KindCanceled:
		return "rerun the batch; completed stages can be skipped"
	default:
		return "see the tool's stderr tail in the error for details"
	}
}
