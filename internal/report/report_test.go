package report_test

import (
	"bytes"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"unicode/utf8"

	"github.com/xuri/excelize/v2"

	"wsiconvert/internal/batch"
	"wsiconvert/internal/report"
	"wsiconvert/internal/services"
)

var consts = report.Constants{Component: "ImagingLevel2", FileFormat: "OME-TIFF", AssayType: "H&E"}

func openWorkbook(t *testing.T, path string) *excelize.File {
	t.Helper()
	f, err := excelize.OpenFile(path)
	if err != nil {
		t.Fatalf("open workbook: %v", err)
	}
	t.Cleanup(func() { f.Close() })
	return f
}

func TestColumnsMatchInventoryLayout(t *testing.T) {
	if len(report.Columns) != 44 {
		t.Fatalf("expected 44 columns, got %d", len(report.Columns))
	}
	if report.Columns[0] != "Component" || report.Columns[43] != "PixelType" {
		t.Fatalf("unexpected column bounds: %s .. %s", report.Columns[0], report.Columns[43])
	}
}

func TestRecordSetAndConstants(t *testing.T) {
	r := report.NewRecord(consts)
	r.Set(report.ColFilename, " a.ome.tiff ")
	r.Set("Not A Column", "ignored")

	if r.Get(report.ColComponent) != "ImagingLevel2" || r.Get(report.ColImagingAssayType) != "H&E" {
		t.Fatalf("constants missing: %v", r.Values())
	}
	if r.Get(report.ColFilename) != "a.ome.tiff" {
		t.Fatalf("expected trimmed filename, got %q", r.Get(report.ColFilename))
	}
	if got := len(r.Values()); got != len(report.Columns) {
		t.Fatalf("row width %d", got)
	}
}

func TestWriteMetadataSheetWithTypedCells(t *testing.T) {
	path := filepath.Join(t.TempDir(), "htan_ome_metadata.xlsx")
	b := report.NewBuilder()
	r := report.NewRecord(consts)
	r.Set(report.ColFilename, "a.ome.tiff")
	r.Set(report.ColSizeX, "46080")
	r.Set(report.ColPhysicalSizeX, "0.4977")
	r.Set(report.ColPixelsBigEndian, "false")
	r.Set(report.ColPixelType, "uint8")
	b.AddRecord(r)

	if err := b.Write(path); err != nil {
		t.Fatalf("Write returned error: %v", err)
	}

	f := openWorkbook(t, path)
	if sheets := f.GetSheetList(); len(sheets) != 1 || sheets[0] != report.SheetMetadata {
		t.Fatalf("unexpected sheets: %v", sheets)
	}
	rows, err := f.GetRows(report.SheetMetadata)
	if err != nil {
		t.Fatalf("GetRows: %v", err)
	}
	if len(rows) != 2 {
		t.Fatalf("expected header plus one row, got %d", len(rows))
	}
	if strings.Join(rows[0], "|") != strings.Join(report.Columns, "|") {
		t.Fatalf("unexpected header: %v", rows[0])
	}
	// Trailing empty cells are trimmed by GetRows; PixelType is last and set.
	if rows[1][0] != "ImagingLevel2" || rows[1][1] != "a.ome.tiff" || rows[1][43] != "uint8" {
		t.Fatalf("unexpected row: %v", rows[1])
	}
	if rows[1][3] != "" {
		t.Fatalf("identifier columns should be blank, got %q", rows[1][3])
	}

	sizeCell, _ := excelize.CoordinatesToCellName(41, 2)
	if typ, _ := f.GetCellType(report.SheetMetadata, sizeCell); typ == excelize.CellTypeSharedString || typ == excelize.CellTypeInlineString {
		t.Fatalf("SizeX should be numeric, got type %v", typ)
	}
	endianCell, _ := excelize.CoordinatesToCellName(37, 2)
	if typ, _ := f.GetCellType(report.SheetMetadata, endianCell); typ != excelize.CellTypeBool {
		t.Fatalf("BigEndian should be boolean, got type %v", typ)
	}
	if v, _ := f.GetCellValue(report.SheetMetadata, endianCell); v != "FALSE" {
		t.Fatalf("unexpected BigEndian value %q", v)
	}

	if leftovers, _ := filepath.Glob(filepath.Join(filepath.Dir(path), ".report-*")); len(leftovers) != 0 {
		t.Fatalf("temp files left behind: %v", leftovers)
	}
}

func TestWriteHeaderOnlyAndFailuresSheet(t *testing.T) {
	path := filepath.Join(t.TempDir(), "out.xlsx")
	b := report.NewBuilder()
	b.AddFailure(report.Failure{Source: "/in/bad.svs", Stage: "bioformats2raw", Kind: services.KindExternalToolFailure, Message: "exit status 2"})

	if err := b.Write(path); err != nil {
		t.Fatalf("Write returned error: %v", err)
	}

	f := openWorkbook(t, path)
	rows, err := f.GetRows(report.SheetMetadata)
	if err != nil {
		t.Fatalf("GetRows: %v", err)
	}
	if len(rows) != 1 {
		t.Fatalf("expected header-only metadata sheet, got %d rows", len(rows))
	}
	failures, err := f.GetRows(report.SheetFailures)
	if err != nil {
		t.Fatalf("GetRows failures: %v", err)
	}
	if len(failures) != 2 || failures[1][0] != "/in/bad.svs" || failures[1][2] != "ExternalToolFailure" {
		t.Fatalf("unexpected failures sheet: %v", failures)
	}
}

func TestWriteOverwritesExistingReport(t *testing.T) {
	path := filepath.Join(t.TempDir(), "out.xlsx")
	if err := os.WriteFile(path, []byte("old"), 0o644); err != nil {
		t.Fatalf("seed: %v", err)
	}
	if err := report.NewBuilder().Write(path); err != nil {
		t.Fatalf("Write returned error: %v", err)
	}
	openWorkbook(t, path)
}

func TestRenderSummary(t *testing.T) {
	dir := t.TempDir()
	jobs := batch.Plan([]string{"/in/a.svs", "/in/b.svs"}, dir, ".ome.tiff")
	if err := os.WriteFile(jobs[0].OutputPath, make([]byte, 2048), 0o644); err != nil {
		t.Fatalf("write output: %v", err)
	}
	_ = jobs[0].Advance(batch.StatusMetadataStripped)
	jobs[1].Fail("raw2ometiff", services.Wrap(services.ErrExternalTool, "raw2ometiff", "convert", "", errors.New("exit status 1")))

	var buf bytes.Buffer
	if err := report.RenderSummary(&buf, jobs, false); err != nil {
		t.Fatalf("RenderSummary returned error: %v", err)
	}
	out := buf.String()
	for _, fragment := range []string{"Metadata Stripped", "Failed", "ExternalToolFailure", "a.ome.tiff (2.0 kB)", "2 jobs", "1 failed"} {
		if !strings.Contains(out, fragment) {
			t.Fatalf("summary missing %q:\n%s", fragment, out)
		}
	}
	if strings.Contains(out, "\x1b[") {
		t.Fatal("expected no ANSI codes when color is disabled")
	}
}

func TestRenderSummaryTruncatesOnRuneBoundaries(t *testing.T) {
	jobs := batch.Plan([]string{"/in/gewebe.svs"}, t.TempDir(), ".ome.tiff")
	long := "/daten/" + strings.Repeat("präparat-ü", 40) + ".svs: cannot read"
	jobs[0].Fail("bioformats2raw", services.Wrap(services.ErrExternalTool, "bioformats2raw", "convert", long, nil))

	var buf bytes.Buffer
	if err := report.RenderSummary(&buf, jobs, false); err != nil {
		t.Fatalf("RenderSummary returned error: %v", err)
	}
	out := buf.String()
	if !utf8.ValidString(out) {
		t.Fatalf("summary contains a split rune:\n%q", out)
	}
	if !strings.Contains(out, "...") {
		t.Fatalf("expected long detail to be shortened:\n%s", out)
	}
	if strings.Contains(out, "cannot read") {
		t.Fatalf("expected the tail of the message to be cut:\n%s", out)
	}
}

func TestStatusLabel(t *testing.T) {
	if got := report.StatusLabel(batch.StatusStage1Done); got != "Stage1 Done" {
		t.Fatalf("unexpected label %q", got)
	}
}
