package services_test

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"testing"

	"wsiconvert/internal/services"
)

func TestWrapIncludesContext(t *testing.T) {
	base := errors.New("boom")
	err := services.Wrap(services.ErrExternalTool, "bioformats2raw", "convert", "failed", base)
	if !errors.Is(err, services.ErrExternalTool) {
		t.Fatalf("expected marker to be retained, got %v", err)
	}
	if !errors.Is(err, base) {
		t.Fatalf("expected wrapped error to contain base error, got %v", err)
	}
	msg := err.Error()
	for _, fragment := range []string{"bioformats2raw", "convert", "failed", "boom"} {
		if !strings.Contains(msg, fragment) {
			t.Fatalf("expected %q in error string %q", fragment, msg)
		}
	}
}

func TestWrapWithoutDetail(t *testing.T) {
	err := services.Wrap(nil, "", "", "", nil)
	if !errors.Is(err, services.ErrExternalTool) {
		t.Fatalf("expected default marker, got %v", err)
	}
	if !strings.Contains(err.Error(), "service failure") {
		t.Fatalf("expected fallback detail, got %q", err)
	}
}

func TestKindMapping(t *testing.T) {
	cases := []struct {
		err  error
		want string
	}{
		{nil, ""},
		{services.Wrap(services.ErrInvalidInputPath, "discover", "", "missing", nil), services.KindInvalidInputPath},
		{services.Wrap(services.ErrExternalTool, "raw2ometiff", "", "", errors.New("exit 1")), services.KindExternalToolFailure},
		{services.Wrap(services.ErrExternalTool, "raw2ometiff", "", "", services.ErrTimeout), services.KindExternalToolFailure},
		{services.Wrap(services.ErrMetadataParse, "deidentify", "", "", nil), services.KindMetadataParseFailure},
		{services.Wrap(services.ErrMetadataWrite, "deidentify", "", "", nil), services.KindMetadataWriteFailure},
		{services.Wrap(services.ErrConfiguration, "", "", "bad", nil), services.KindConfigurationError},
		{services.Wrap(services.ErrExternalTool, "bioformats2raw", "", "", fmt.Errorf("%w", services.ErrCanceled)), services.KindCanceled},
		{context.Canceled, services.KindCanceled},
		{errors.New("mystery"), services.KindExternalToolFailure},
	}
	for _, tc := range cases {
		if got := services.Kind(tc.err); got != tc.want {
			t.Fatalf("Kind(%v) = %q, want %q", tc.err, got, tc.want)
		}
	}
}

func TestContextError(t *testing.T) {
	if err := services.ContextError(context.Background()); err != nil {
		t.Fatalf("expected nil for live context, got %v", err)
	}

	canceled, cancel := context.WithCancel(context.Background())
	cancel()
	if err := services.ContextError(canceled); !errors.Is(err, services.ErrCanceled) {
		t.Fatalf("expected canceled marker, got %v", err)
	}

	expired, cancelExpired := context.WithTimeout(context.Background(), 0)
	defer cancelExpired()
	<-expired.Done()
	if err := services.ContextError(expired); !errors.Is(err, services.ErrTimeout) {
		t.Fatalf("expected timeout marker, got %v", err)
	}
}
