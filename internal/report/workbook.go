package report

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/xuri/excelize/v2"
)

const (
	SheetMetadata = "metadata"
	SheetFailures = "failures"
)

// FailureColumns is the header of the failures sheet.
var FailureColumns = []string{"Source", "Stage", "Error Kind", "Error"}

// Failure describes one job that did not reach metadata_stripped.
type Failure struct {
	Source  string
	Stage   string
	Kind    string
	Message string
}

// Builder accumulates rows in job order and writes the workbook once.
type Builder struct {
	records  []Record
	failures []Failure
}

// NewBuilder returns an empty builder.
func NewBuilder() *Builder {
	return &Builder{}
}

// AddRecord appends a metadata row.
func (b *Builder) AddRecord(r Record) {
	b.records = append(b.records, r)
}

// AddFailure appends a failures row.
func (b *Builder) AddFailure(f Failure) {
	b.failures = append(b.failures, f)
}

// Records returns the accumulated metadata rows.
func (b *Builder) Records() []Record {
	return append([]Record(nil), b.records...)
}

// Write saves the workbook to path. The metadata sheet always carries a
// header; the failures sheet is added only when failures were recorded. The
// file is written beside path and renamed into place.
func (b *Builder) Write(path string) error {
	f := excelize.NewFile()
	defer f.Close()

	if err := f.SetSheetName(f.GetSheetName(0), SheetMetadata); err != nil {
		return fmt.Errorf("name metadata sheet: %w", err)
	}
	if err := writeHeader(f, SheetMetadata, Columns); err != nil {
		return err
	}
	for i, record := range b.records {
		row := i + 2
		for col, value := range record.Values() {
			v := cellValue(Columns[col], value)
			if v == nil {
				continue
			}
			if err := setCell(f, SheetMetadata, col+1, row, v); err != nil {
				return err
			}
		}
	}
	if err := f.SetPanes(SheetMetadata, &excelize.Panes{Freeze: true, YSplit: 1, TopLeftCell: "A2", ActivePane: "bottomLeft"}); err != nil {
		return fmt.Errorf("freeze metadata header: %w", err)
	}

	if len(b.failures) > 0 {
		if _, err := f.NewSheet(SheetFailures); err != nil {
			return fmt.Errorf("create failures sheet: %w", err)
		}
		if err := writeHeader(f, SheetFailures, FailureColumns); err != nil {
			return err
		}
		for i, failure := range b.failures {
			values := []string{failure.Source, failure.Stage, failure.Kind, failure.Message}
			for col, value := range values {
				if value == "" {
					continue
				}
				if err := setCell(f, SheetFailures, col+1, i+2, value); err != nil {
					return err
				}
			}
		}
	}
	f.SetActiveSheet(0)

	return save(f, path)
}

func writeHeader(f *excelize.File, sheet string, columns []string) error {
	header := make([]any, len(columns))
	for i, name := range columns {
		header[i] = name
	}
	if err := f.SetSheetRow(sheet, "A1", &header); err != nil {
		return fmt.Errorf("write %s header: %w", sheet, err)
	}
	return nil
}

func setCell(f *excelize.File, sheet string, col, row int, value any) error {
	cell, err := excelize.CoordinatesToCellName(col, row)
	if err != nil {
		return err
	}
	if err := f.SetCellValue(sheet, cell, value); err != nil {
		return fmt.Errorf("write %s!%s: %w", sheet, cell, err)
	}
	return nil
}

func save(f *excelize.File, path string) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("create report directory: %w", err)
	}
	tmp, err := os.CreateTemp(dir, ".report-*.xlsx")
	if err != nil {
		return fmt.Errorf("create report temp file: %w", err)
	}
	tmpPath := tmp.Name()
	defer os.Remove(tmpPath)

	if _, err := f.WriteTo(tmp); err != nil {
		tmp.Close()
		return fmt.Errorf("write report: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("close report: %w", err)
	}
	if err := os.Chmod(tmpPath, 0o644); err != nil {
		return fmt.Errorf("chmod report: %w", err)
	}
	if err := os.Rename(tmpPath, path); err != nil {
		return fmt.Errorf("install report: %w", err)
	}
	return nil
}
