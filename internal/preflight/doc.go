// Package preflight verifies that a conversion run can start: the input
// directory is readable, the output directory is writable or creatable, and
// the converter binaries for every enabled stage resolve.
//
// The workflow manager calls RunAll before taking the run lock and aborts on
// any required failure. The CLI "check" command renders the same results as a
// table.
package preflight
