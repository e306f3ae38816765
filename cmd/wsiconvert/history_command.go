package main

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"

	"wsiconvert/internal/ledger"
	"wsiconvert/internal/report"
)

const shortRunIDLength = 8

func newHistoryCommand(ctx *commandContext) *cobra.Command {
	var runID string
	var limit int

	cmd := &cobra.Command{
		Use:   "history",
		Short: "List past runs or the jobs of one run",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig(cmd)
			if err != nil {
				return fmt.Errorf("load config: %w", err)
			}
			out := cmd.OutOrStdout()
			if !cfg.Ledger.Enabled {
				fmt.Fprintln(out, "Run ledger is disabled")
				return nil
			}
			if _, err := os.Stat(cfg.Ledger.Path); errors.Is(err, os.ErrNotExist) {
				fmt.Fprintln(out, "No runs recorded")
				return nil
			}

			store, err := ledger.Open(cfg.Ledger.Path)
			if err != nil {
				return fmt.Errorf("open ledger: %w", err)
			}
			defer store.Close()

			if id := strings.TrimSpace(runID); id != "" {
				run, err := store.GetRun(cmd.Context(), id)
				if err != nil {
					return err
				}
				if run == nil {
					return fmt.Errorf("run %q not found", id)
				}
				jobs, err := store.RunJobs(cmd.Context(), run.ID)
				if err != nil {
					return err
				}
				fmt.Fprintf(out, "Run:     %s\n", run.ID)
				fmt.Fprintf(out, "Started: %s\n", run.StartedAt.Local().Format(time.DateTime))
				fmt.Fprintf(out, "Input:   %s\n", run.InputDir)
				fmt.Fprintf(out, "Output:  %s\n", run.OutputDir)
				if run.ReportPath != "" {
					fmt.Fprintf(out, "Report:  %s\n", run.ReportPath)
				}
				fmt.Fprintln(out, renderJobHistory(jobs))
				return nil
			}

			runs, err := store.ListRuns(cmd.Context(), limit)
			if err != nil {
				return err
			}
			if len(runs) == 0 {
				fmt.Fprintln(out, "No runs recorded")
				return nil
			}
			fmt.Fprintln(out, renderRunHistory(runs, time.Now()))
			return nil
		},
	}

	cmd.Flags().StringVar(&runID, "run", "", "Show the jobs of one run (full ID or unique prefix)")
	cmd.Flags().IntVarP(&limit, "limit", "n", 20, "Maximum number of runs to list; 0 lists all")
	return cmd
}

func renderRunHistory(runs []ledger.Run, now time.Time) string {
	rows := make([][]string, 0, len(runs))
	for _, run := range runs {
		id := run.ID
		if len(id) > shortRunIDLength {
			id = id[:shortRunIDLength]
		}
		duration := "unfinished"
		if run.FinishedAt != nil {
			duration = run.FinishedAt.Sub(run.StartedAt).Round(time.Second).String()
		}
		reportName := ""
		if run.ReportPath != "" {
			reportName = filepath.Base(run.ReportPath)
		}
		rows = append(rows, []string{
			id,
			humanize.RelTime(run.StartedAt, now, "ago", "from now"),
			duration,
			strconv.Itoa(run.Total),
			strconv.Itoa(run.Succeeded),
			strconv.Itoa(run.Failed),
			reportName,
		})
	}
	return renderTable(
		[]string{"Run", "Started", "Duration", "Jobs", "OK", "Failed", "Report"},
		rows,
		[]columnAlignment{alignLeft, alignLeft, alignRight, alignRight, alignRight, alignRight, alignLeft},
	)
}

func renderJobHistory(jobs []ledger.JobRecord) string {
	rows := make([][]string, 0, len(jobs))
	for _, job := range jobs {
		steps := make([]string, 0, len(job.Transitions))
		for _, status := range job.Transitions {
			steps = append(steps, string(status))
		}
		detail := job.ErrorMessage
		if detail == "" {
			detail = strings.Join(steps, " > ")
		}
		rows = append(rows, []string{
			strconv.Itoa(job.Seq),
			filepath.Base(job.Source),
			report.StatusLabel(job.Status),
			job.ErrorKind,
			detail,
		})
	}
	return renderTable(
		[]string{"#", "Source", "Status", "Error Kind", "Detail"},
		rows,
		[]columnAlignment{alignRight},
	)
}
