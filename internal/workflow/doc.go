// Package workflow drives one batch conversion run from discovery to report.
//
// The Manager checks readiness, takes the output directory lock, plans one
// job per discovered slide, and runs the two converter stages as waves: each
// chunk of jobs runs through a bounded pool and the manager waits for the
// whole wave before starting the next. Every stage-1 wave finishes before the
// first stage-2 wave starts. Deidentification and report writing follow,
// single-threaded, over the complete job list.
//
// A job failure is recorded on that job only; siblings and later chunks keep
// going and the exit code is derived from the final Summary.
package workflow
