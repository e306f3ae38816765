package deid_test

import (
	"bytes"
	"context"
	"encoding/binary"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"wsiconvert/internal/batch"
	"wsiconvert/internal/deid"
	"wsiconvert/internal/logging"
	"wsiconvert/internal/report"
	"wsiconvert/internal/services"
	"wsiconvert/internal/testsupport"
	"wsiconvert/internal/tiff"
)

var consts = report.Constants{Component: "ImagingLevel2", FileFormat: "OME-TIFF", AssayType: "H&E"}

func newJob(t *testing.T, dir, name string, opts testsupport.OMEOptions) (*batch.Job, testsupport.TIFFFixture) {
	t.Helper()
	job := batch.NewJob(filepath.Join(dir, "in", name+".svs"), dir, ".ome.tiff")
	job.Seq = 1
	fixture := testsupport.WriteTIFF(t, job.OutputPath, testsupport.SampleOMEXML(opts), testsupport.TIFFLayout{})
	if err := job.Advance(batch.StatusStage2Done); err != nil {
		t.Fatalf("advance: %v", err)
	}
	return job, fixture
}

func TestProcessStripsAndExtracts(t *testing.T) {
	dir := t.TempDir()
	job, fixture := newJob(t, dir, "sample", testsupport.DefaultOME())
	d := deid.New(consts, logging.NewNop())

	record, err := d.Process(context.Background(), job)
	if err != nil {
		t.Fatalf("Process returned error: %v", err)
	}

	expect := map[string]string{
		report.ColFilename:             "sample.ome.tiff",
		report.ColComponent:            "ImagingLevel2",
		report.ColMicroscope:           "Vectra Polaris",
		report.ColObjective:            "Plan Apo 20x",
		report.ColNominalMagnification: "20.0",
		report.ColImageID:              "Image:0",
		report.ColDimensionOrder:       "XYCZT",
		report.ColPhysicalSizeX:        "0.4977",
		report.ColPhysicalSizeXUnit:    "µm",
		report.ColPhysicalSizeZ:        "",
		report.ColPixelsBigEndian:      "false",
		report.ColPlaneCount:           "3",
		report.ColSizeX:                "46080",
		report.ColSizeC:                "3",
		report.ColPixelType:            "uint8",
		report.ColLensNA:               "",
	}
	for col, want := range expect {
		if got := record.Get(col); got != want {
			t.Fatalf("%s = %q, want %q", col, got, want)
		}
	}

	text, err := tiff.ReadDescription(job.OutputPath)
	if err != nil {
		t.Fatalf("read description: %v", err)
	}
	if strings.Contains(text, "AcquisitionDate") || strings.Contains(text, "StructuredAnnotations") {
		t.Fatalf("identifying metadata survived: %s", text)
	}

	data := testsupport.ReadFile(t, job.OutputPath)
	if !bytes.Equal(data[fixture.PixelOffset:fixture.PixelOffset+len(fixture.Pixels)], fixture.Pixels) {
		t.Fatal("pixel data modified")
	}
}

func TestProcessIsIdempotent(t *testing.T) {
	dir := t.TempDir()
	job, _ := newJob(t, dir, "sample", testsupport.DefaultOME())
	d := deid.New(consts, logging.NewNop())

	first, err := d.Process(context.Background(), job)
	if err != nil {
		t.Fatalf("first Process: %v", err)
	}
	afterFirst := testsupport.ReadFile(t, job.OutputPath)
	descFirst, _ := tiff.ReadDescription(job.OutputPath)

	second, err := d.Process(context.Background(), job)
	if err != nil {
		t.Fatalf("second Process: %v", err)
	}
	afterSecond := testsupport.ReadFile(t, job.OutputPath)
	descSecond, _ := tiff.ReadDescription(job.OutputPath)

	if descFirst != descSecond {
		t.Fatal("metadata changed on second application")
	}
	if !bytes.Equal(afterFirst, afterSecond) {
		t.Fatal("file bytes changed on second application")
	}
	if strings.Join(first.Values(), "|") != strings.Join(second.Values(), "|") {
		t.Fatal("extracted record differs between runs")
	}
}

func TestExtractRequiresImagesAndInstruments(t *testing.T) {
	cases := map[string]testsupport.OMEOptions{
		"no images":      {Images: 0, Instruments: 1},
		"no instruments": {Images: 1, Instruments: 0, Planes: 1},
	}
	for name, opts := range cases {
		t.Run(name, func(t *testing.T) {
			job, _ := newJob(t, t.TempDir(), "empty", opts)
			before := testsupport.ReadFile(t, job.OutputPath)

			_, err := deid.New(consts, nil).Process(context.Background(), job)
			if !errors.Is(err, services.ErrMetadataParse) {
				t.Fatalf("expected metadata parse failure, got %v", err)
			}
			if !bytes.Equal(before, testsupport.ReadFile(t, job.OutputPath)) {
				t.Fatal("file must not be rewritten when extraction fails")
			}
		})
	}
}

func TestRunRecordsOutcomesPerJob(t *testing.T) {
	dir := t.TempDir()
	good, _ := newJob(t, dir, "good", testsupport.DefaultOME())
	good.Seq = 1

	broken := batch.NewJob(filepath.Join(dir, "in", "broken.svs"), dir, ".ome.tiff")
	broken.Seq = 2
	testsupport.WriteFile(t, broken.OutputPath, 100)
	_ = broken.Advance(batch.StatusStage2Done)

	failed := batch.NewJob(filepath.Join(dir, "in", "failed.svs"), dir, ".ome.tiff")
	failed.Seq = 3
	failed.Fail("raw2ometiff", errors.New("exit status 1"))

	notConverted := batch.NewJob(filepath.Join(dir, "in", "pending.svs"), dir, ".ome.tiff")
	notConverted.Seq = 4

	builder := report.NewBuilder()
	deid.New(consts, nil).Run(context.Background(), []*batch.Job{good, broken, failed, notConverted}, false, builder)

	if good.Status != batch.StatusMetadataStripped {
		t.Fatalf("good job status %s", good.Status)
	}
	if broken.ErrorKind() != services.KindMetadataParseFailure || broken.FailedStage != deid.Stage {
		t.Fatalf("broken job: kind=%s stage=%s", broken.ErrorKind(), broken.FailedStage)
	}
	if failed.FailedStage != "raw2ometiff" {
		t.Fatalf("failed job cause overwritten: %s", failed.FailedStage)
	}
	if notConverted.Status != batch.StatusPending {
		t.Fatalf("ineligible job touched: %s", notConverted.Status)
	}
	records := builder.Records()
	if len(records) != 1 || records[0].Get(report.ColFilename) != "good.ome.tiff" {
		t.Fatalf("unexpected records: %d", len(records))
	}
}

func TestRunWithStage2SkippedSkipsMissingOutput(t *testing.T) {
	dir := t.TempDir()
	present := batch.NewJob(filepath.Join(dir, "in", "present.svs"), dir, ".ome.tiff")
	present.Seq = 1
	testsupport.WriteTIFF(t, present.OutputPath, testsupport.SampleOMEXML(testsupport.DefaultOME()), testsupport.TIFFLayout{})

	missing := batch.NewJob(filepath.Join(dir, "in", "missing.svs"), dir, ".ome.tiff")
	missing.Seq = 2

	builder := report.NewBuilder()
	deid.New(consts, nil).Run(context.Background(), []*batch.Job{present, missing}, true, builder)

	if present.Status != batch.StatusMetadataStripped {
		t.Fatalf("present job status %s", present.Status)
	}
	if missing.Failed() || missing.Status != batch.StatusPending {
		t.Fatalf("missing job should be left pending: status=%s err=%v", missing.Status, missing.Err)
	}
	if counts := batch.Tally([]*batch.Job{present, missing}); counts.Failed != 0 || counts.Succeeded != 1 {
		t.Fatalf("unexpected counts %+v", counts)
	}
	if len(builder.Records()) != 1 {
		t.Fatalf("expected one record, got %d", len(builder.Records()))
	}
}

func TestRunWithoutStage2OutputFails(t *testing.T) {
	dir := t.TempDir()
	job := batch.NewJob(filepath.Join(dir, "in", "gone.svs"), dir, ".ome.tiff")
	job.Seq = 1
	if err := job.Advance(batch.StatusStage2Done); err != nil {
		t.Fatalf("advance: %v", err)
	}

	deid.New(consts, nil).Run(context.Background(), []*batch.Job{job}, false, report.NewBuilder())

	if !job.Failed() || !strings.Contains(job.ErrorMessage(), "output file not found") {
		t.Fatalf("expected failure, got status=%s err=%v", job.Status, job.Err)
	}
	if job.ErrorKind() != services.KindMetadataParseFailure {
		t.Fatalf("unexpected kind %s", job.ErrorKind())
	}
}

func TestRunCorruptBigTIFFFailsOnlyThatJob(t *testing.T) {
	dir := t.TempDir()
	good, _ := newJob(t, dir, "good", testsupport.DefaultOME())
	bad, _ := newJob(t, dir, "bad", testsupport.DefaultOME())
	bad.Seq = 2
	fixture := testsupport.BuildTIFF(testsupport.SampleOMEXML(testsupport.DefaultOME()), testsupport.TIFFLayout{BigTIFF: true})
	data := fixture.Data
	ifd := binary.LittleEndian.Uint64(data[8:16])
	binary.LittleEndian.PutUint64(data[ifd:ifd+8], 1<<62)
	if err := os.WriteFile(bad.OutputPath, data, 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}

	builder := report.NewBuilder()
	deid.New(consts, nil).Run(context.Background(), []*batch.Job{good, bad}, false, builder)

	if good.Status != batch.StatusMetadataStripped {
		t.Fatalf("good job status %s (%v)", good.Status, good.Err)
	}
	if bad.ErrorKind() != services.KindMetadataParseFailure {
		t.Fatalf("corrupt job: status=%s kind=%s err=%v", bad.Status, bad.ErrorKind(), bad.Err)
	}
}

func TestRunCanceledFailsRemainingJobs(t *testing.T) {
	dir := t.TempDir()
	job, _ := newJob(t, dir, "late", testsupport.DefaultOME())
	before := testsupport.ReadFile(t, job.OutputPath)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	deid.New(consts, nil).Run(ctx, []*batch.Job{job}, false, report.NewBuilder())

	if job.ErrorKind() != services.KindCanceled {
		t.Fatalf("expected canceled, got %s (%v)", job.ErrorKind(), job.Err)
	}
	if !bytes.Equal(before, testsupport.ReadFile(t, job.OutputPath)) {
		t.Fatal("canceled job must not be rewritten")
	}
	if _, err := os.Stat(job.OutputPath); err != nil {
		t.Fatalf("output removed: %v", err)
	}
}

func TestEligible(t *testing.T) {
	job := batch.NewJob("/in/a.svs", "/out", ".ome.tiff")
	if deid.Eligible(job, false) {
		t.Fatal("pending job is not eligible when stage 2 ran")
	}
	if !deid.Eligible(job, true) {
		t.Fatal("pending job is eligible when stage 2 was skipped")
	}
	job.Fail("bioformats2raw", errors.New("x"))
	if deid.Eligible(job, true) {
		t.Fatal("failed job is never eligible")
	}
}
