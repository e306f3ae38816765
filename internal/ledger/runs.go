package ledger

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"wsiconvert/internal/batch"
)

// Run is one recorded conversion run.
type Run struct {
	ID         string
	StartedAt  time.Time
	FinishedAt *time.Time
	InputDir   string
	OutputDir  string
	ReportPath string
	Total      int
	Succeeded  int
	Failed     int
}

// Finished reports whether the run reached its summary.
func (r Run) Finished() bool {
	return r.FinishedAt != nil
}

// JobRecord is the stored state of one job within a run.
type JobRecord struct {
	RunID        string
	Seq          int
	Source       string
	Intermediate string
	Output       string
	Status       batch.Status
	FailedStage  string
	ErrorKind    string
	ErrorMessage string
	UpdatedAt    time.Time
	Transitions  []batch.Status
}

// BeginRun records the start of a run.
func (s *Store) BeginRun(ctx context.Context, id, inputDir, outputDir string, startedAt time.Time) error {
	err := s.exec(ctx,
		`INSERT INTO runs (id, started_at, input_dir, output_dir) VALUES (?, ?, ?, ?)`,
		id, formatTime(startedAt), inputDir, outputDir,
	)
	if err != nil {
		return fmt.Errorf("insert run: %w", err)
	}
	return nil
}

// RecordJobs upserts the current state of jobs. A job whose status differs
// from the stored one also gets a job_events row.
func (s *Store) RecordJobs(ctx context.Context, runID string, jobs []*batch.Job) error {
	if len(jobs) == 0 {
		return nil
	}
	now := formatTime(time.Now())
	return retryOnBusy(ctx, func() error {
		tx, err := s.db.BeginTx(ctx, nil)
		if err != nil {
			return fmt.Errorf("begin jobs tx: %w", err)
		}
		defer func() { _ = tx.Rollback() }()

		for _, job := range jobs {
			var previous sql.NullString
			err := tx.QueryRowContext(ctx,
				`SELECT status FROM jobs WHERE run_id = ? AND seq = ?`, runID, job.Seq,
			).Scan(&previous)
			if err != nil && !errors.Is(err, sql.ErrNoRows) {
				return fmt.Errorf("read job %d: %w", job.Seq, err)
			}

			if _, err := tx.ExecContext(ctx,
				`INSERT INTO jobs (run_id, seq, source, intermediate, output, status, failed_stage, error_kind, error_message, updated_at)
                 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
                 ON CONFLICT(run_id, seq) DO UPDATE SET
                     status = excluded.status,
                     failed_stage = excluded.failed_stage,
                     error_kind = excluded.error_kind,
                     error_message = excluded.error_message,
                     updated_at = excluded.updated_at`,
				runID, job.Seq, job.SourcePath,
				nullableString(job.IntermediateDir), nullableString(job.OutputPath),
				string(job.Status), nullableString(job.FailedStage),
				nullableString(job.ErrorKind()), nullableString(job.ErrorMessage()), now,
			); err != nil {
				return fmt.Errorf("upsert job %d: %w", job.Seq, err)
			}

			if previous.Valid && previous.String == string(job.Status) {
				continue
			}
			if _, err := tx.ExecContext(ctx,
				`INSERT INTO job_events (run_id, seq, status, recorded_at) VALUES (?, ?, ?, ?)`,
				runID, job.Seq, string(job.Status), now,
			); err != nil {
				return fmt.Errorf("insert job event %d: %w", job.Seq, err)
			}
		}
		return tx.Commit()
	})
}

// FinishRun stores the final counts and report location of a run.
func (s *Store) FinishRun(ctx context.Context, id string, counts batch.Counts, reportPath string, finishedAt time.Time) error {
	err := s.exec(ctx,
		`UPDATE runs SET finished_at = ?, total = ?, succeeded = ?, failed = ?, report_path = ? WHERE id = ?`,
		formatTime(finishedAt), counts.Total, counts.Succeeded, counts.Failed, nullableString(reportPath), id,
	)
	if err != nil {
		return fmt.Errorf("finish run: %w", err)
	}
	return nil
}

// ListRuns returns the most recent runs first. A non-positive limit returns all.
func (s *Store) ListRuns(ctx context.Context, limit int) ([]Run, error) {
	query := `SELECT id, started_at, finished_at, input_dir, output_dir, report_path, total, succeeded, failed
        FROM runs ORDER BY started_at DESC, id`
	args := []any{}
	if limit > 0 {
		query += " LIMIT ?"
		args = append(args, limit)
	}
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query runs: %w", err)
	}
	defer rows.Close()

	var runs []Run
	for rows.Next() {
		run, err := scanRun(rows)
		if err != nil {
			return nil, err
		}
		runs = append(runs, run)
	}
	return runs, rows.Err()
}

// GetRun returns the run with id, or nil when none exists. A unique id prefix
// is accepted.
func (s *Store) GetRun(ctx context.Context, id string) (*Run, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, started_at, finished_at, input_dir, output_dir, report_path, total, succeeded, failed
         FROM runs WHERE id = ? OR id LIKE ? ORDER BY id = ? DESC LIMIT 2`,
		id, id+"%", id,
	)
	if err != nil {
		return nil, fmt.Errorf("query run: %w", err)
	}
	defer rows.Close()

	var matches []Run
	for rows.Next() {
		run, err := scanRun(rows)
		if err != nil {
			return nil, err
		}
		matches = append(matches, run)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	switch {
	case len(matches) == 0:
		return nil, nil
	case matches[0].ID == id || len(matches) == 1:
		return &matches[0], nil
	default:
		return nil, fmt.Errorf("run id %q is ambiguous", id)
	}
}

// RunJobs returns the jobs of a run in sequence order, each with its status
// transitions.
func (s *Store) RunJobs(ctx context.Context, runID string) ([]JobRecord, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT run_id, seq, source, intermediate, output, status, failed_stage, error_kind, error_message, updated_at
         FROM jobs WHERE run_id = ? ORDER BY seq`, runID)
	if err != nil {
		return nil, fmt.Errorf("query jobs: %w", err)
	}
	var jobs []JobRecord
	for rows.Next() {
		var (
			rec                                    JobRecord
			intermediate, output, stage, kind, msg sql.NullString
			status, updated                        string
		)
		if err := rows.Scan(&rec.RunID, &rec.Seq, &rec.Source, &intermediate, &output,
			&status, &stage, &kind, &msg, &updated); err != nil {
			rows.Close()
			return nil, fmt.Errorf("scan job: %w", err)
		}
		rec.Intermediate = intermediate.String
		rec.Output = output.String
		rec.Status = batch.Status(status)
		rec.FailedStage = stage.String
		rec.ErrorKind = kind.String
		rec.ErrorMessage = msg.String
		if t, err := parseTimeString(updated); err == nil {
			rec.UpdatedAt = t
		}
		jobs = append(jobs, rec)
	}
	if err := rows.Close(); err != nil {
		return nil, err
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	for i := range jobs {
		transitions, err := s.transitions(ctx, runID, jobs[i].Seq)
		if err != nil {
			return nil, err
		}
		jobs[i].Transitions = transitions
	}
	return jobs, nil
}

func (s *Store) transitions(ctx context.Context, runID string, seq int) ([]batch.Status, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT status FROM job_events WHERE run_id = ? AND seq = ? ORDER BY id`, runID, seq)
	if err != nil {
		return nil, fmt.Errorf("query job events: %w", err)
	}
	defer rows.Close()
	var out []batch.Status
	for rows.Next() {
		var status string
		if err := rows.Scan(&status); err != nil {
			return nil, fmt.Errorf("scan job event: %w", err)
		}
		out = append(out, batch.Status(status))
	}
	return out, rows.Err()
}

func scanRun(scanner interface{ Scan(dest ...any) error }) (Run, error) {
	var (
		run                  Run
		started              string
		finished, reportPath sql.NullString
	)
	if err := scanner.Scan(&run.ID, &started, &finished, &run.InputDir, &run.OutputDir,
		&reportPath, &run.Total, &run.Succeeded, &run.Failed); err != nil {
		return Run{}, fmt.Errorf("scan run: %w", err)
	}
	run.ReportPath = reportPath.String
	if t, err := parseTimeString(started); err == nil {
		run.StartedAt = t
	}
	if finished.Valid {
		if t, err := parseTimeString(finished.String); err == nil {
			run.FinishedAt = &t
		}
	}
	return run, nil
}
