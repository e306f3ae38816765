// Package batch models conversion jobs and splits them into the fixed-size
// chunks the workflow processes one wave at a time.
//
// A Job's intermediate directory and output path are pure functions of its
// source path, the output root, and the container extension, so re-running a
// batch against the same input directory targets the same files. Job status
// only moves forward; failed is terminal and keeps the first recorded cause.
package batch
