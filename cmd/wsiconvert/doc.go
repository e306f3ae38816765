// Package main hosts the wsiconvert CLI.
//
// The root command runs one conversion batch: discover slides, convert them
// through bioformats2raw and raw2ometiff in chunked waves, strip identifying
// OME-XML metadata, and write the metadata workbook. Subcommands check the
// environment, list run history from the ledger, and scaffold configuration.
//
// Flags override the TOML configuration and go through the same validation.
// The process exits with the number of failed jobs (capped at 125), or 1 when
// the run could not start.
package main
