package logging

import "strings"

// FormatSubject builds the job/stage subject shown in console output, for
// example "Job #3 (bioformats2raw)".
func FormatSubject(job, stage string) string {
	job = strings.TrimSpace(job)
	stage = strings.TrimSpace(stage)
	switch {
	case job != "" && stage != "":
		return "Job #" + job + " (" + stage + ")"
	case job != "":
		return "Job #" + job
	default:
		return stage
	}
}
