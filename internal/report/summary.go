package report

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"unicode/utf8"

	"github.com/dustin/go-humanize"
	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/jedib0t/go-pretty/v6/text"
	"golang.org/x/text/cases"
	"golang.org/x/text/language"

	"wsiconvert/internal/batch"
)

const maxDetailWidth = 96

// SummaryColumns is the header of the console summary table.
var SummaryColumns = []string{"#", "Source", "Status", "Error Kind", "Detail"}

// StatusLabel renders a job status for humans, e.g. "Metadata Stripped".
func StatusLabel(status batch.Status) string {
	return cases.Title(language.Und).String(strings.ReplaceAll(string(status), "_", " "))
}

// RenderSummary writes one row per job. Colors are applied only when color is
// true.
func RenderSummary(w io.Writer, jobs []*batch.Job, color bool) error {
	tw := table.NewWriter()
	tw.SetStyle(table.StyleRounded)
	tw.Style().Format.Footer = text.FormatDefault
	if !color {
		tw.Style().Color = table.ColorOptions{}
	}

	header := make(table.Row, len(SummaryColumns))
	for i, name := range SummaryColumns {
		header[i] = name
	}
	tw.AppendHeader(header)

	for _, job := range jobs {
		status := StatusLabel(job.Status)
		if color {
			status = statusColors(job).Sprint(status)
		}
		tw.AppendRow(table.Row{
			strconv.Itoa(job.Seq),
			filepath.Base(job.SourcePath),
			status,
			job.ErrorKind(),
			detail(job),
		})
	}

	counts := batch.Tally(jobs)
	tw.AppendFooter(table.Row{"", fmt.Sprintf("%d jobs", counts.Total), fmt.Sprintf("%d ok", counts.Succeeded), fmt.Sprintf("%d failed", counts.Failed), ""})
	tw.SetColumnConfigs([]table.ColumnConfig{
		{Number: 1, Align: text.AlignRight, AlignHeader: text.AlignLeft},
		{Number: 5, WidthMax: maxDetailWidth},
	})

	_, err := io.WriteString(w, tw.Render()+"\n")
	return err
}

func statusColors(job *batch.Job) text.Colors {
	switch {
	case job.Failed():
		return text.Colors{text.FgRed, text.Bold}
	case job.Succeeded():
		return text.Colors{text.FgGreen}
	default:
		return text.Colors{text.FgYellow}
	}
}

func detail(job *batch.Job) string {
	if job.Failed() {
		msg := strings.Join(strings.Fields(job.ErrorMessage()), " ")
		if utf8.RuneCountInString(msg) > maxDetailWidth*2 {
			msg = text.Trim(msg, maxDetailWidth*2-3) + "..."
		}
		return msg
	}
	info, err := os.Stat(job.OutputPath)
	if err != nil {
		return ""
	}
	return fmt.Sprintf("%s (%s)", filepath.Base(job.OutputPath), humanize.Bytes(uint64(info.Size())))
}
