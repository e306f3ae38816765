package batch

import (
	"fmt"
	"path/filepath"
	"strings"

	"wsiconvert/internal/services"
)

// NewJob derives the intermediate directory and output path for source. Only
// the final extension is stripped, so "a.b.svs" maps to "a.b".
func NewJob(source, outputRoot, containerExt string) *Job {
	base := filepath.Base(source)
	stem := base[:len(base)-len(filepath.Ext(base))]
	return &Job{
		SourcePath:      source,
		IntermediateDir: filepath.Join(outputRoot, stem),
		OutputPath:      filepath.Join(outputRoot, stem+containerExt),
		Status:          StatusPending,
	}
}

// Plan builds jobs for sources in order, numbering them from 1. A job is
// marked failed instead of planned when its derived paths do not sit directly
// under outputRoot, overlap one of the reserved paths (the run state
// directory), or match the paths of an earlier job.
func Plan(sources []string, outputRoot, containerExt string, reserved ...string) []*Job {
	jobs := make([]*Job, 0, len(sources))
	owners := make(map[string]*Job, len(sources)*2)
	for i, source := range sources {
		job := NewJob(source, outputRoot, containerExt)
		job.Seq = i + 1
		if reason := unsafeTarget(job, outputRoot, reserved); reason != "" {
			job.Fail("plan", services.Wrap(services.ErrInvalidInputPath, "plan", "derive paths", reason, nil))
		}
		for _, target := range []string{job.IntermediateDir, job.OutputPath} {
			if job.Failed() {
				break
			}
			owner, taken := owners[target]
			if !taken {
				continue
			}
			job.Fail("plan", services.Wrap(services.ErrInvalidInputPath, "plan", "derive paths",
				fmt.Sprintf("output path collides with %s", owner.SourcePath), nil))
		}
		if !job.Failed() {
			owners[job.IntermediateDir] = job
			owners[job.OutputPath] = job
		}
		jobs = append(jobs, job)
	}
	return jobs
}

// unsafeTarget explains why the job's derived paths cannot be written, or
// returns "" when they are direct children of outputRoot clear of reserved.
func unsafeTarget(job *Job, outputRoot string, reserved []string) string {
	stem := strings.TrimSuffix(filepath.Base(job.SourcePath), filepath.Ext(job.SourcePath))
	if stem == "" || stem == "." || stem == ".." {
		return fmt.Sprintf("file name %q has no usable stem", filepath.Base(job.SourcePath))
	}
	root := filepath.Clean(outputRoot)
	for _, target := range []string{job.IntermediateDir, job.OutputPath} {
		if filepath.Dir(target) != root || target == root {
			return fmt.Sprintf("derived path %s escapes output directory %s", target, root)
		}
		for _, r := range reserved {
			if r == "" {
				continue
			}
			if within(filepath.Clean(r), target) {
				return fmt.Sprintf("derived path %s overlaps reserved path %s", target, r)
			}
		}
	}
	return ""
}

// within reports whether path is dir or lies beneath it.
func within(path, dir string) bool {
	rel, err := filepath.Rel(dir, path)
	if err != nil {
		return false
	}
	return rel == "." || (rel != ".." && !strings.HasPrefix(rel, ".."+string(filepath.Separator)))
}

// Partition splits jobs into consecutive chunks of at most size jobs. The last
// chunk may be shorter. A non-positive size yields a single chunk.
func Partition(jobs []*Job, size int) []Chunk {
	if len(jobs) == 0 {
		return nil
	}
	if size <= 0 || size > len(jobs) {
		size = len(jobs)
	}
	chunks := make([]Chunk, 0, (len(jobs)+size-1)/size)
	for start := 0; start < len(jobs); start += size {
		end := min(start+size, len(jobs))
		chunks = append(chunks, Chunk{Index: len(chunks) + 1, Jobs: jobs[start:end]})
	}
	return chunks
}
