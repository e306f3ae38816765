// Package report builds the per-run metadata workbook and the console
// summary table.
package report

import (
	"strconv"
	"strings"
)

// Column names of the metadata sheet, in order.
const (
	ColComponent            = "Component"
	ColFilename             = "Filename"
	ColFileFormat           = "File Format"
	ColImagingAssayType     = "Imaging Assay Type"
	ColMicroscope           = "Microscope"
	ColObjective            = "Objective"
	ColNominalMagnification = "NominalMagnification"
	ColLensNA               = "LensNA"
	ColWorkingDistance      = "WorkingDistance"
	ColWorkingDistanceUnit  = "WorkingDistanceUnit"
	ColImmersion            = "Immersion"
	ColImageID              = "Image ID"
	ColDimensionOrder       = "DimensionOrder"
	ColPhysicalSizeX        = "PhysicalSizeX"
	ColPhysicalSizeXUnit    = "PhysicalSizeXUnit"
	ColPhysicalSizeY        = "PhysicalSizeY"
	ColPhysicalSizeYUnit    = "PhysicalSizeYUnit"
	ColPhysicalSizeZ        = "PhysicalSizeZ"
	ColPhysicalSizeZUnit    = "PhysicalSizeZUnit"
	ColPixelsBigEndian      = "Pixels BigEndian"
	ColPlaneCount           = "PlaneCount"
	ColSizeC                = "SizeC"
	ColSizeT                = "SizeT"
	ColSizeX                = "SizeX"
	ColSizeY                = "SizeY"
	ColSizeZ                = "SizeZ"
	ColPixelType            = "PixelType"
)

// Columns is the fixed header of the metadata sheet. Identifier and curation
// columns are left blank for downstream annotation.
var Columns = []string{
	ColComponent, ColFilename, ColFileFormat,
	"HTAN Participant ID", "HTAN Parent Biospecimen ID", "HTAN Data File ID",
	"Channel Metadata Filename", ColImagingAssayType, "Protocol Link",
	"Software and Version", ColMicroscope, ColObjective, ColNominalMagnification,
	ColLensNA, ColWorkingDistance, ColWorkingDistanceUnit, ColImmersion,
	"Pyramid", "Zstack", "Tseries", "Passed QC", "Comment", "FOV number",
	"FOVX", "FOVXUnit", "FOVY", "FOVYUnit", "Frame Averaging",
	ColImageID, ColDimensionOrder, ColPhysicalSizeX, ColPhysicalSizeXUnit,
	ColPhysicalSizeY, ColPhysicalSizeYUnit, ColPhysicalSizeZ, ColPhysicalSizeZUnit,
	ColPixelsBigEndian, ColPlaneCount, ColSizeC, ColSizeT, ColSizeX, ColSizeY,
	ColSizeZ, ColPixelType,
}

var numericColumns = map[string]struct{}{
	ColNominalMagnification: {},
	ColLensNA:               {},
	ColWorkingDistance:      {},
	"FOV number":            {},
	"FOVX":                  {},
	"FOVY":                  {},
	ColPhysicalSizeX:        {},
	ColPhysicalSizeY:        {},
	ColPhysicalSizeZ:        {},
	ColPlaneCount:           {},
	ColSizeC:                {},
	ColSizeT:                {},
	ColSizeX:                {},
	ColSizeY:                {},
	ColSizeZ:                {},
}

var columnIndex = func() map[string]int {
	idx := make(map[string]int, len(Columns))
	for i, name := range Columns {
		idx[name] = i
	}
	return idx
}()

// Constants are the fixed per-row values taken from configuration.
type Constants struct {
	Component  string
	FileFormat string
	AssayType  string
}

// Record is one metadata row. Unset columns are empty.
type Record struct {
	values []string
}

// NewRecord returns a row pre-filled with the constant columns.
func NewRecord(consts Constants) Record {
	r := Record{values: make([]string, len(Columns))}
	r.Set(ColComponent, consts.Component)
	r.Set(ColFileFormat, consts.FileFormat)
	r.Set(ColImagingAssayType, consts.AssayType)
	return r
}

// Set stores value under column. Unknown columns are ignored.
func (r *Record) Set(column, value string) {
	if r.values == nil {
		r.values = make([]string, len(Columns))
	}
	if i, ok := columnIndex[column]; ok {
		r.values[i] = strings.TrimSpace(value)
	}
}

// Get returns the value stored under column.
func (r Record) Get(column string) string {
	i, ok := columnIndex[column]
	if !ok || r.values == nil {
		return ""
	}
	return r.values[i]
}

// Values returns the row in column order.
func (r Record) Values() []string {
	out := make([]string, len(Columns))
	copy(out, r.values)
	return out
}

// cellValue converts a column's text to the value written to the sheet.
// Numeric columns become numbers and BigEndian becomes a boolean when the
// text parses; everything else stays text.
func cellValue(column, value string) any {
	if value == "" {
		return nil
	}
	if _, ok := numericColumns[column]; ok {
		if n, err := strconv.ParseInt(value, 10, 64); err == nil {
			return n
		}
		if f, err := strconv.ParseFloat(value, 64); err == nil {
			return f
		}
	}
	if column == ColPixelsBigEndian {
		if b, err := strconv.ParseBool(value); err == nil {
			return b
		}
	}
	return value
}
