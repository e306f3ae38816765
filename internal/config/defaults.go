package config

const (
	defaultInputDir           = "."
	defaultOutputDir          = "."
	defaultStateDirName       = ".wsiconvert"
	defaultLedgerFile         = "ledger.db"
	defaultBioformats2Raw     = "bioformats2raw"
	defaultRaw2OmeTiff        = "raw2ometiff"
	defaultContainerExtension = ".ome.tiff"
	defaultChunkSize          = 10
	defaultPoolWidth          = 20
	defaultReportFilename     = "htan_ome_metadata.xlsx"
	defaultReportComponent    = "ImagingLevel2"
	defaultReportFileFormat   = "OME-TIFF"
	defaultReportAssayType    = "H&E"
	defaultLogFormat          = "console"
	defaultLogLevel           = "info"
)

// DefaultExtensions lists the whole-slide formats bioformats2raw is known to
// handle for this pipeline, in discovery order.
func DefaultExtensions() []string {
	return []string{".qptiff", ".svs", ".scn"}
}

// Default returns a Config populated with repository defaults.
func Default() Config {
	return Config{
		Paths: Paths{
			InputDir:  defaultInputDir,
			OutputDir: defaultOutputDir,
		},
		Tools: Tools{
			Bioformats2Raw: defaultBioformats2Raw,
			Raw2OmeTiff:    defaultRaw2OmeTiff,
		},
		Batch: Batch{
			Extensions:         DefaultExtensions(),
			ContainerExtension: defaultContainerExtension,
			ChunkSize:          defaultChunkSize,
			PoolWidth:          defaultPoolWidth,
		},
		Report: Report{
			Filename:   defaultReportFilename,
			Component:  defaultReportComponent,
			FileFormat: defaultReportFileFormat,
			AssayType:  defaultReportAssayType,
		},
		Ledger: Ledger{
			Enabled: true,
		},
		Logging: Logging{
			Format: defaultLogFormat,
			Level:  defaultLogLevel,
		},
	}
}
