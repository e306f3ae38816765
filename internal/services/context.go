package services

import "context"

type contextKey string

const (
	runIDKey  contextKey = "run_id"
	jobKey    contextKey = "job"
	sourceKey contextKey = "source"
	stageKey  contextKey = "stage"
	chunkKey  contextKey = "chunk"
)

// WithRunID annotates context with the batch run identifier.
func WithRunID(ctx context.Context, id string) context.Context {
	if id == "" {
		return ctx
	}
	return context.WithValue(ctx, runIDKey, id)
}

// RunIDFromContext extracts the run identifier if present.
func RunIDFromContext(ctx context.Context) (string, bool) {
	return stringValue(ctx, runIDKey)
}

// WithJob annotates context with the 1-based job sequence number.
func WithJob(ctx context.Context, seq int) context.Context {
	if seq <= 0 {
		return ctx
	}
	return context.WithValue(ctx, jobKey, seq)
}

// JobFromContext extracts the job sequence number if present.
func JobFromContext(ctx context.Context) (int, bool) {
	return intValue(ctx, jobKey)
}

// WithSource annotates context with the job's source path.
func WithSource(ctx context.Context, path string) context.Context {
	if path == "" {
		return ctx
	}
	return context.WithValue(ctx, sourceKey, path)
}

// SourceFromContext returns the source path if present.
func SourceFromContext(ctx context.Context) (string, bool) {
	return stringValue(ctx, sourceKey)
}

// WithStage annotates context with the workflow stage name.
func WithStage(ctx context.Context, stage string) context.Context {
	if stage == "" {
		return ctx
	}
	return context.WithValue(ctx, stageKey, stage)
}

// StageFromContext returns the stage name if present.
func StageFromContext(ctx context.Context) (string, bool) {
	return stringValue(ctx, stageKey)
}

// WithChunk annotates context with the 1-based chunk index.
func WithChunk(ctx context.Context, index int) context.Context {
	if index <= 0 {
		return ctx
	}
	return context.WithValue(ctx, chunkKey, index)
}

// ChunkFromContext returns the chunk index if present.
func ChunkFromContext(ctx context.Context) (int, bool) {
	return intValue(ctx, chunkKey)
}

func stringValue(ctx context.Context, key contextKey) (string, bool) {
	if ctx == nil {
		return "", false
	}
	if v, ok := ctx.Value(key).(string); ok && v != "" {
		return v, true
	}
	return "", false
}

func intValue(ctx context.Context, key contextKey) (int, bool) {
	if ctx == nil {
		return 0, false
	}
	if v, ok := ctx.Value(key).(int); ok {
		return v, true
	}
	return 0, false
}
