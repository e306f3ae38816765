package logging

import (
	"bytes"
	"context"
	"errors"
	"log/slog"
	"strings"
	"testing"
	"time"
)

type failingHandler struct{ slog.Handler }

func (failingHandler) Handle(context.Context, slog.Record) error { return errors.New("disk full") }

func TestMirrorHandlerCollapsesMissingSides(t *testing.T) {
	console := slog.NewTextHandler(&bytes.Buffer{}, nil)
	if h := MirrorHandler(console, nil); h != console {
		t.Fatalf("expected console handler unchanged, got %T", h)
	}
	if h := MirrorHandler(nil, console); h != console {
		t.Fatalf("expected mirror to stand alone, got %T", h)
	}
	if _, ok := MirrorHandler(nil, nil).(NoopHandler); !ok {
		t.Fatal("expected NoopHandler with no sides")
	}
}

func TestMirrorHandlerCopiesRunLog(t *testing.T) {
	var console, runLog bytes.Buffer
	logger := slog.New(MirrorHandler(
		slog.NewTextHandler(&console, &slog.HandlerOptions{Level: slog.LevelWarn}),
		slog.NewJSONHandler(&runLog, &slog.HandlerOptions{Level: slog.LevelDebug}),
	))

	logger.Debug("wave started", slog.Int(FieldChunk, 1))
	logger.Warn("plan conflict")

	if strings.Contains(console.String(), "wave started") {
		t.Fatalf("console should not see debug records: %s", console.String())
	}
	if !strings.Contains(console.String(), "plan conflict") {
		t.Fatalf("console missing warning: %s", console.String())
	}
	for _, want := range []string{`"msg":"wave started"`, `"chunk":1`, `"msg":"plan conflict"`} {
		if !strings.Contains(runLog.String(), want) {
			t.Fatalf("run log missing %s: %s", want, runLog.String())
		}
	}
}

func TestMirrorHandlerScopesBothSides(t *testing.T) {
	var console, runLog bytes.Buffer
	logger := slog.New(MirrorHandler(slog.NewJSONHandler(&console, nil), slog.NewJSONHandler(&runLog, nil)))
	logger = logger.With(slog.String(FieldRunID, "run-1")).WithGroup("tool")

	logger.Info("exited", slog.Int("status", 2))

	for name, out := range map[string]string{"console": console.String(), "run log": runLog.String()} {
		if !strings.Contains(out, `"run_id":"run-1"`) || !strings.Contains(out, `"tool":{"status":2}`) {
			t.Fatalf("%s missing scoped attrs: %s", name, out)
		}
	}
}

func TestMirrorHandlerReportsMirrorErrors(t *testing.T) {
	var console bytes.Buffer
	h := MirrorHandler(slog.NewTextHandler(&console, nil), failingHandler{slog.NewTextHandler(&bytes.Buffer{}, nil)})

	record := slog.NewRecord(time.Time{}, slog.LevelInfo, "report written", 0)
	err := h.Handle(context.Background(), record)
	if err == nil || !strings.Contains(err.Error(), "disk full") {
		t.Fatalf("expected mirror error, got %v", err)
	}
	if !strings.Contains(console.String(), "report written") {
		t.Fatalf("console must still receive the record: %s", console.String())
	}
}

func TestFormatSubject(t *testing.T) {
	cases := map[string][2]string{
		"Job #2 (raw2ometiff)": {"2", "raw2ometiff"},
		"Job #7":               {"7", ""},
		"deidentify":           {"", "deidentify"},
		"":                     {" ", " "},
	}
	for want, in := range cases {
		if got := FormatSubject(in[0], in[1]); got != want {
			t.Fatalf("FormatSubject(%q, %q) = %q, want %q", in[0], in[1], got, want)
		}
	}
}
