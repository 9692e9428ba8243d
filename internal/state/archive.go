package state

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/councilhq/council/pkg/models"
)

// Archive stores terminal runs and their thread logs. It satisfies the
// engine's Archiver interface.
type Archive struct {
	db *DB
}

// NewArchive creates an Archive over an open, migrated database.
func NewArchive(db *DB) *Archive {
	return &Archive{db: db}
}

// SaveRun stores a terminal run snapshot and its thread log.
func (a *Archive) SaveRun(run *models.Run) error {
	return a.db.Transaction(func(tx *sql.Tx) error {
		var completedAt any
		if run.CompletedAt != nil {
			completedAt = formatTime(*run.CompletedAt)
		}

		var variables any
		if len(run.Variables.PhaseLocal) > 0 || len(run.Variables.Global) > 0 {
			data, err := json.Marshal(run.Variables)
			if err != nil {
				return fmt.Errorf("marshal variables for run %s: %w", run.ID, err)
			}
			variables = string(data)
		}

		_, err := tx.Exec(`
			INSERT OR REPLACE INTO runs
				(id, pipeline_id, status, initial_input, final_output, error, variables, started_at, completed_at)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
		`, run.ID, run.PipelineID, string(run.Status), run.InitialInput,
			run.FinalOutput, run.Error, variables, formatTime(run.StartedAt), completedAt)
		if err != nil {
			return fmt.Errorf("insert run %s: %w", run.ID, err)
		}

		if _, err := tx.Exec(`DELETE FROM thread_entries WHERE run_id = ?`, run.ID); err != nil {
			return fmt.Errorf("clear thread entries for run %s: %w", run.ID, err)
		}
		for _, e := range run.ThreadLog {
			_, err := tx.Exec(`
				INSERT INTO thread_entries (run_id, phase_id, action_id, agent_id, role, text, at)
				VALUES (?, ?, ?, ?, ?, ?, ?)
			`, run.ID, e.PhaseID, e.ActionID, e.AgentID, e.Role, e.Text, formatTime(e.At))
			if err != nil {
				return fmt.Errorf("insert thread entry for run %s: %w", run.ID, err)
			}
		}
		return nil
	})
}

// GetRun loads an archived run, including its thread log.
func (a *Archive) GetRun(runID string) (*models.Run, error) {
	row := a.db.QueryRow(`
		SELECT id, pipeline_id, status, initial_input, final_output, error, variables, started_at, completed_at
		FROM runs WHERE id = ?
	`, runID)

	run, err := scanRun(row)
	if err != nil {
		return nil, err
	}

	rows, err := a.db.Query(`
		SELECT phase_id, action_id, COALESCE(agent_id, ''), role, text, at
		FROM thread_entries WHERE run_id = ? ORDER BY id
	`, runID)
	if err != nil {
		return nil, fmt.Errorf("load thread log for run %s: %w", runID, err)
	}
	defer rows.Close()

	for rows.Next() {
		var e models.ThreadEntry
		var at string
		if err := rows.Scan(&e.PhaseID, &e.ActionID, &e.AgentID, &e.Role, &e.Text, &at); err != nil {
			return nil, fmt.Errorf("scan thread entry: %w", err)
		}
		if t, err := parseTime(at); err == nil {
			e.At = t
		}
		run.ThreadLog = append(run.ThreadLog, e)
	}
	return run, rows.Err()
}

// ListRuns returns archived runs, most recent first, limited to n
// (0 = all).
func (a *Archive) ListRuns(n int) ([]*models.Run, error) {
	query := `
		SELECT id, pipeline_id, status, initial_input, final_output, error, variables, started_at, completed_at
		FROM runs ORDER BY started_at DESC
	`
	var args []any
	if n > 0 {
		query += " LIMIT ?"
		args = append(args, n)
	}

	rows, err := a.db.Query(query, args...)
	if err != nil {
		return nil, fmt.Errorf("list runs: %w", err)
	}
	defer rows.Close()

	var runs []*models.Run
	for rows.Next() {
		run, err := scanRun(rows)
		if err != nil {
			return nil, err
		}
		runs = append(runs, run)
	}
	return runs, rows.Err()
}

// DeleteRun removes an archived run and its thread log.
func (a *Archive) DeleteRun(runID string) error {
	_, err := a.db.Exec(`DELETE FROM runs WHERE id = ?`, runID)
	if err != nil {
		return fmt.Errorf("delete run %s: %w", runID, err)
	}
	return nil
}

// ExportThreadLog renders an archived run's thread log as plain text,
// one entry per block.
func (a *Archive) ExportThreadLog(runID string) (string, error) {
	run, err := a.GetRun(runID)
	if err != nil {
		return "", err
	}

	var b strings.Builder
	fmt.Fprintf(&b, "run %s (pipeline %s) %s\n", run.ID, run.PipelineID, run.Status)
	for _, e := range run.ThreadLog {
		who := e.AgentID
		if who == "" {
			who = "system"
		}
		fmt.Fprintf(&b, "\n[%s] %s/%s %s (%s)\n%s\n",
			e.At.Format("15:04:05"), e.PhaseID, e.ActionID, who, e.Role, e.Text)
	}
	return b.String(), nil
}

// scanner covers *sql.Row and *sql.Rows.
type scanner interface {
	Scan(dest ...any) error
}

func scanRun(s scanner) (*models.Run, error) {
	var run models.Run
	var status, startedAt string
	var variables, completedAt sql.NullString

	err := s.Scan(&run.ID, &run.PipelineID, &status, &run.InitialInput,
		&run.FinalOutput, &run.Error, &variables, &startedAt, &completedAt)
	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("run not found")
	}
	if err != nil {
		return nil, fmt.Errorf("scan run: %w", err)
	}

	run.Status = models.RunStatus(status)
	if variables.Valid && variables.String != "" {
		if err := json.Unmarshal([]byte(variables.String), &run.Variables); err != nil {
			return nil, fmt.Errorf("unmarshal variables for run %s: %w", run.ID, err)
		}
	}
	if t, err := parseTime(startedAt); err == nil {
		run.StartedAt = t
	}
	run.CompletedAt = parseNullableTime(completedAt)
	return &run, nil
}
