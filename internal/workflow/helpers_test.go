package workflow_test

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/xuri/excelize/v2"

	"wsiconvert/internal/config"
	"wsiconvert/internal/logging"
	"wsiconvert/internal/report"
	"wsiconvert/internal/testsupport"
	"wsiconvert/internal/workflow"
)

// writeFixture writes an OME-TIFF that stub converters copy into place.
func writeFixture(t *testing.T) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "fixture.ome.tiff")
	testsupport.WriteTIFF(t, path, testsupport.SampleOMEXML(testsupport.DefaultOME()), testsupport.TIFFLayout{})
	return path
}

func newManager(t *testing.T, cfg *config.Config, opts ...workflow.Option) *workflow.Manager {
	t.Helper()
	m, err := workflow.New(*cfg, logging.NewNop(), opts...)
	if err != nil {
		t.Fatalf("workflow.New: %v", err)
	}
	return m
}

func readSheet(t *testing.T, path, sheet string) [][]string {
	t.Helper()
	f, err := excelize.OpenFile(path)
	if err != nil {
		t.Fatalf("open report: %v", err)
	}
	defer f.Close()
	rows, err := f.GetRows(sheet)
	if err != nil {
		t.Fatalf("read sheet %s: %v", sheet, err)
	}
	return rows
}

func sheetNames(t *testing.T, path string) []string {
	t.Helper()
	f, err := excelize.OpenFile(path)
	if err != nil {
		t.Fatalf("open report: %v", err)
	}
	defer f.Close()
	return f.GetSheetList()
}

func filenames(t *testing.T, path string) []string {
	t.Helper()
	rows := readSheet(t, path, report.SheetMetadata)
	var names []string
	for _, row := range rows[1:] {
		names = append(names, row[1])
	}
	return names
}

func invocations(t *testing.T, path string) []string {
	t.Helper()
	data, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return nil
	}
	if err != nil {
		t.Fatalf("read invocation log: %v", err)
	}
	return strings.Split(strings.TrimSpace(string(data)), "\n")
}

// waveRecorder is an in-process converter pair that records start and end
// order and the peak number of concurrent invocations.
type waveRecorder struct {
	mu          sync.Mutex
	delay       time.Duration
	fixture     []byte
	inFlight    int
	maxInFlight int
	events      []event
}

type event struct {
	stage string
	name  string
	start bool
}

func (r *waveRecorder) enter(stage, name string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.inFlight++
	r.maxInFlight = max(r.maxInFlight, r.inFlight)
	r.events = append(r.events, event{stage: stage, name: name, start: true})
}

func (r *waveRecorder) exit(stage, name string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.inFlight--
	r.events = append(r.events, event{stage: stage, name: name})
}

type recordingStage1 struct{ *waveRecorder }

func (r recordingStage1) Convert(ctx context.Context, source, rawDir string) error {
	name := filepath.Base(source)
	r.enter("stage1", name)
	defer r.exit("stage1", name)
	time.Sleep(r.delay)
	return os.MkdirAll(filepath.Join(rawDir, "0"), 0o755)
}

type recordingStage2 struct{ *waveRecorder }

func (r recordingStage2) Convert(ctx context.Context, rawDir, output string, rgb bool) error {
	name := filepath.Base(rawDir)
	r.enter("stage2", name)
	defer r.exit("stage2", name)
	time.Sleep(r.delay)
	return os.WriteFile(output, r.fixture, 0o644)
}
