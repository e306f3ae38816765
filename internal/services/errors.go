package services

import (
	"context"
	"errors"
	"fmt"
	"strings"
)

var (
	ErrInvalidInputPath = errors.New("invalid input path")
	ErrExternalTool     = errors.New("external tool error")
	ErrMetadataParse    = errors.New("metadata parse error")
	ErrMetadataWrite    = errors.New("metadata write error")
	ErrConfiguration    = errors.New("configuration error")
	ErrTimeout          = errors.New("timeout")
	ErrCanceled         = errors.New("canceled")
)

// Failure kinds reported per job.
const (
	KindInvalidInputPath     = "InvalidInputPath"
	KindExternalToolFailure  = "ExternalToolFailure"
	KindMetadataParseFailure = "MetadataParseFailure"
	KindMetadataWriteFailure = "MetadataWriteFailure"
	KindConfigurationError   = "ConfigurationError"
	KindCanceled             = "Canceled"
)

// Wrap builds an error message that includes stage context while tagging it with
// the provided marker for later classification. The marker should be one of the
// exported sentinel errors above.
func Wrap(marker error, stage, operation, message string, err error) error {
	detail := buildDetail(stage, operation, message)
	if marker == nil {
		marker = ErrExternalTool
	}
	if err != nil {
		return fmt.Errorf("%w: %s: %w", marker, detail, err)
	}
	return fmt.Errorf("%w: %s", marker, detail)
}

// Kind maps an error to its reported failure kind. Timeouts count as tool
// failures. Unclassified errors default to ExternalToolFailure.
func Kind(err error) string {
	switch {
	case err == nil:
		return ""
	case errors.Is(err, ErrCanceled), errors.Is(err, context.Canceled):
		return KindCanceled
	case errors.Is(err, ErrInvalidInputPath):
		return KindInvalidInputPath
	case errors.Is(err, ErrMetadataParse):
		return KindMetadataParseFailure
	case errors.Is(err, ErrMetadataWrite):
		return KindMetadataWriteFailure
	case errors.Is(err, ErrConfiguration):
		return KindConfigurationError
	default:
		return KindExternalToolFailure
	}
}

// ContextError converts a finished context into the matching marker, or nil
// while the context is still live.
func ContextError(ctx context.Context) error {
	switch err := ctx.Err(); {
	case err == nil:
		return nil
	case errors.Is(err, context.DeadlineExceeded):
		return fmt.Errorf("%w: %w", ErrTimeout, err)
	default:
		return fmt.Errorf("%w: %w", ErrCanceled, err)
	}
}

func buildDetail(stage, operation, message string) string {
	parts := make([]string, 0, 3)
	if stage = strings.TrimSpace(stage); stage != "" {
		parts = append(parts, stage)
	}
	if operation = strings.TrimSpace(operation); operation != "" {
		parts = append(parts, operation)
	}
	if message = strings.TrimSpace(message); message != "" {
		parts = append(parts, message)
	}
	if len(parts) == 0 {
		return "service failure"
	}
	return strings.Join(parts, ": ")
}
