// Package deid strips identifying metadata from converted OME-TIFF files and
// extracts the technical record reported for each one.
package deid

import (
	"context"
	"errors"
	"log/slog"
	"os"
	"path/filepath"
	"strconv"

	"wsiconvert/internal/batch"
	"wsiconvert/internal/logging"
	"wsiconvert/internal/ome"
	"wsiconvert/internal/report"
	"wsiconvert/internal/services"
)

// Stage is the workflow stage name used in logs, errors, and the ledger.
const Stage = "deidentify"

// Deidentifier rewrites embedded OME-XML and collects report records.
type Deidentifier struct {
	consts report.Constants
	logger *slog.Logger
}

// New constructs a Deidentifier.
func New(consts report.Constants, logger *slog.Logger) *Deidentifier {
	return &Deidentifier{
		consts: consts,
		logger: logging.NewComponentLogger(logger, Stage),
	}
}

// Eligible reports whether job should be deidentified. With stage 2 skipped
// every non-failed job qualifies; otherwise only jobs that finished stage 2.
func Eligible(job *batch.Job, stage2Skipped bool) bool {
	if job.Failed() {
		return false
	}
	if stage2Skipped {
		return job.Status != batch.StatusMetadataStripped
	}
	return job.Status == batch.StatusStage2Done
}

// Run processes eligible jobs in order, adding a record for each success to
// builder. Failures are recorded on the job. With stage 2 skipped, a job
// without an output file is left at its current status. Once ctx is done the
// remaining eligible jobs fail as canceled.
func (d *Deidentifier) Run(ctx context.Context, jobs []*batch.Job, stage2Skipped bool, builder *report.Builder) {
	for _, job := range jobs {
		if !Eligible(job, stage2Skipped) {
			continue
		}
		jobCtx := services.WithStage(services.WithSource(services.WithJob(ctx, job.Seq), job.SourcePath), Stage)
		logger := logging.WithContext(jobCtx, d.logger)

		if stage2Skipped {
			if _, err := os.Stat(job.OutputPath); errors.Is(err, os.ErrNotExist) {
				logging.WarnWithContext(logger, "output missing; skipping deidentification", "deidentify_skipped",
					logging.String("output", job.OutputPath),
					logging.String(logging.FieldErrorHint, "run without --skip_stage2 to produce it"),
				)
				continue
			}
		}

		if err := services.ContextError(ctx); err != nil {
			job.Fail(Stage, services.Wrap(services.ErrCanceled, Stage, "", "run canceled before deidentification", err))
			continue
		}

		record, err := d.Process(jobCtx, job)
		if err != nil {
			job.Fail(Stage, err)
			logging.ErrorWithContext(logger, "deidentification failed", "deidentify_failed",
				logging.String(logging.FieldErrorHint, "inspect the output file's ImageDescription"),
				logging.Error(err),
			)
			continue
		}
		if err := job.Advance(batch.StatusMetadataStripped); err != nil {
			job.Fail(Stage, services.Wrap(services.ErrMetadataWrite, Stage, "advance", "", err))
			continue
		}
		builder.AddRecord(record)
	}
}

// Process loads job's output, extracts its record, and rewrites the embedded
// metadata when stripping changes it. A file that is already clean is left
// byte-identical.
func (d *Deidentifier) Process(ctx context.Context, job *batch.Job) (report.Record, error) {
	logger := logging.WithContext(ctx, d.logger)

	if _, err := os.Stat(job.OutputPath); err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return report.Record{}, services.Wrap(services.ErrMetadataParse, Stage, "load", "output file not found", err)
		}
		return report.Record{}, services.Wrap(services.ErrMetadataParse, Stage, "load", job.OutputPath, err)
	}

	doc, err := ome.Load(job.OutputPath)
	if err != nil {
		return report.Record{}, err
	}

	record, err := Extract(doc, filepath.Base(job.OutputPath), d.consts)
	if err != nil {
		return report.Record{}, err
	}

	annotations := 0
	if ann, ok := doc.StructuredAnnotations(); ok {
		annotations = ann.Len()
	}
	logger.Debug("metadata before stripping",
		logging.Int("images", len(doc.Images())),
		logging.Int("instruments", len(doc.Instruments())),
		logging.Int("annotations", annotations),
	)

	if !doc.Strip() {
		logger.Info("metadata already deidentified", logging.String("output", job.OutputPath))
		return record, nil
	}

	text, err := doc.Serialize()
	if err != nil {
		return report.Record{}, err
	}
	if err := ome.Store(job.OutputPath, text); err != nil {
		return report.Record{}, err
	}
	logger.Info("metadata deidentified",
		logging.String("output", job.OutputPath),
		logging.Int("annotations_removed", annotations),
	)
	return record, nil
}

// Extract builds the report record from the first Image and the first
// Instrument. Documents declaring no Image or no Instrument are rejected.
func Extract(doc *ome.Document, filename string, consts report.Constants) (report.Record, error) {
	images := doc.Images()
	if len(images) == 0 {
		return report.Record{}, services.Wrap(services.ErrMetadataParse, Stage, "extract", "no Image declared", nil)
	}
	instruments := doc.Instruments()
	if len(instruments) == 0 {
		return report.Record{}, services.Wrap(services.ErrMetadataParse, Stage, "extract", "no Instrument declared", nil)
	}

	r := report.NewRecord(consts)
	r.Set(report.ColFilename, filename)

	instrument := instruments[0]
	if scope, ok := instrument.Microscope(); ok {
		r.Set(report.ColMicroscope, scope.Model())
	}
	if objectives := instrument.Objectives(); len(objectives) > 0 {
		r.Set(report.ColObjective, objectives[0].Model())
		r.Set(report.ColNominalMagnification, objectives[0].NominalMagnification())
	}

	image := images[0]
	r.Set(report.ColImageID, image.ID())
	if pixels, ok := image.Pixels(); ok {
		r.Set(report.ColDimensionOrder, pixels.DimensionOrder())
		r.Set(report.ColPhysicalSizeX, pixels.PhysicalSizeX())
		r.Set(report.ColPhysicalSizeXUnit, pixels.PhysicalSizeXUnit())
		r.Set(report.ColPhysicalSizeY, pixels.PhysicalSizeY())
		r.Set(report.ColPhysicalSizeYUnit, pixels.PhysicalSizeYUnit())
		r.Set(report.ColPhysicalSizeZ, pixels.PhysicalSizeZ())
		r.Set(report.ColPhysicalSizeZUnit, pixels.PhysicalSizeZUnit())
		r.Set(report.ColPixelsBigEndian, pixels.BigEndian())
		r.Set(report.ColPlaneCount, strconv.Itoa(pixels.Planes()))
		r.Set(report.ColSizeC, pixels.SizeC())
		r.Set(report.ColSizeT, pixels.SizeT())
		r.Set(report.ColSizeX, pixels.SizeX())
		r.Set(report.ColSizeY, pixels.SizeY())
		r.Set(report.ColSizeZ, pixels.SizeZ())
		r.Set(report.ColPixelType, pixels.Type())
	}
	return r, nil
}
