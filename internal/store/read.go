package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/roach88/parorch/internal/ir"
)

// ErrRunNotFound is returned for an unknown run ID.
var ErrRunNotFound = errors.New("run not found")

// RunSummary is one row of the run history.
type RunSummary struct {
	ID               string `json:"id"`
	Seq              int64  `json:"seq"`
	Status           string `json:"status"`
	Rounds           int    `json:"rounds"`
	Commands         int    `json:"commands"`
	TraceFormat      string `json:"trace_format"`
	SchedulerVersion string `json:"scheduler_version"`
	Error            string `json:"error,omitempty"`
	CreatedAt        string `json:"created_at"`
}

// RunDetail is a stored run with every recorded round.
type RunDetail struct {
	RunSummary
	CommandList  []string         `json:"command_list"`
	MaxRounds    int              `json:"max_rounds"`
	RoundRecords []ir.RoundRecord `json:"round_records"`
	Result       *ir.RunResult    `json:"result,omitempty"`
}

// ListRuns returns every run, newest first (ORDER BY seq DESC).
// Returns an empty slice (not nil) if no runs exist.
func (s *Store) ListRuns(ctx context.Context) ([]RunSummary, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, seq, status, rounds, commands, trace_format, scheduler_version, error, created_at
		FROM runs
		ORDER BY seq DESC
	`)
	if err != nil {
		return nil, fmt.Errorf("query runs: %w", err)
	}
	defer rows.Close()

	runs := []RunSummary{}
	for rows.Next() {
		var (
			r            RunSummary
			commandsJSON string
		)
		if err := rows.Scan(&r.ID, &r.Seq, &r.Status, &r.Rounds, &commandsJSON,
			&r.TraceFormat, &r.SchedulerVersion, &r.Error, &r.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan run: %w", err)
		}
		cmds, err := unmarshalStrings(commandsJSON)
		if err != nil {
			return nil, fmt.Errorf("run %s: %w", r.ID, err)
		}
		r.Commands = len(cmds)
		runs = append(runs, r)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate runs: %w", err)
	}
	return runs, nil
}

// GetRun returns one run with its rounds in round order.
// Returns ErrRunNotFound if id is unknown.
func (s *Store) GetRun(ctx context.Context, id string) (*RunDetail, error) {
	var (
		d            RunDetail
		commandsJSON string
		resultJSON   sql.NullString
	)
	err := s.db.QueryRowContext(ctx, `
		SELECT id, seq, status, rounds, commands, trace_format, scheduler_version, error, created_at,
		       max_rounds, result
		FROM runs
		WHERE id = ?
	`, id).Scan(&d.ID, &d.Seq, &d.Status, &d.Rounds, &commandsJSON,
		&d.TraceFormat, &d.SchedulerVersion, &d.Error, &d.CreatedAt, &d.MaxRounds, &resultJSON)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("get run %s: %w", id, ErrRunNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("get run %s: %w", id, err)
	}

	if d.CommandList, err = unmarshalStrings(commandsJSON); err != nil {
		return nil, fmt.Errorf("run %s: %w", id, err)
	}
	d.Commands = len(d.CommandList)
	if resultJSON.Valid {
		if d.Result, err = unmarshalResult(resultJSON.String); err != nil {
			return nil, fmt.Errorf("run %s: %w", id, err)
		}
	}

	if d.RoundRecords, err = s.readRounds(ctx, id); err != nil {
		return nil, err
	}
	return &d, nil
}

// readRounds loads every round of a run, ORDER BY round ASC.
func (s *Store) readRounds(ctx context.Context, runID string) ([]ir.RoundRecord, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT round, workset, workset_digest, trace_digest, next, opens, launches, skipped, unresolved
		FROM rounds
		WHERE run_id = ?
		ORDER BY round ASC
	`, runID)
	if err != nil {
		return nil, fmt.Errorf("query rounds: %w", err)
	}
	defer rows.Close()

	rounds := []ir.RoundRecord{}
	for rows.Next() {
		var (
			r                     ir.RoundRecord
			worksetJSON, nextJSON string
		)
		if err := rows.Scan(&r.Round, &worksetJSON, &r.WorksetDigest, &r.TraceDigest,
			&nextJSON, &r.Opens, &r.Launches, &r.Skipped, &r.Unresolved); err != nil {
			return nil, fmt.Errorf("scan round: %w", err)
		}
		r.RunID = runID
		if r.Workset, err = unmarshalStrings(worksetJSON); err != nil {
			return nil, err
		}
		if r.Next, err = unmarshalStrings(nextJSON); err != nil {
			return nil, err
		}
		rounds = append(rounds, r)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate rounds: %w", err)
	}
	// Close before issuing per-round queries on the single connection.
	rows.Close()

	for i := range rounds {
		if err := s.readRoundDetail(ctx, &rounds[i]); err != nil {
			return nil, err
		}
	}
	return rounds, nil
}

// readRoundDetail fills the per-command rows, dependencies and violations
// of one round.
func (s *Store) readRoundDetail(ctx context.Context, r *ir.RoundRecord) error {
	rows, err := s.db.QueryContext(ctx, `
		SELECT identity, command, exit_code, message, reads, writes
		FROM command_rounds
		WHERE run_id = ? AND round = ?
		ORDER BY position ASC
	`, r.RunID, r.Round)
	if err != nil {
		return fmt.Errorf("query command rounds: %w", err)
	}
	r.Statuses = []ir.CommandStatus{}
	r.Sets = []ir.CommandSets{}
	for rows.Next() {
		var (
			st           ir.CommandStatus
			cs           ir.CommandSets
			reads, write string
		)
		if err := rows.Scan(&cs.Identity, &st.Command, &st.ExitCode, &st.Message, &reads, &write); err != nil {
			rows.Close()
			return fmt.Errorf("scan command round: %w", err)
		}
		if cs.Reads, err = unmarshalStrings(reads); err != nil {
			rows.Close()
			return err
		}
		if cs.Writes, err = unmarshalStrings(write); err != nil {
			rows.Close()
			return err
		}
		r.Statuses = append(r.Statuses, st)
		r.Sets = append(r.Sets, cs)
	}
	err = rows.Err()
	rows.Close()
	if err != nil {
		return fmt.Errorf("iterate command rounds: %w", err)
	}

	if r.Dependencies, err = s.readDependencies(ctx, r.RunID, r.Round); err != nil {
		return err
	}
	r.Violations, err = s.readViolations(ctx, r.RunID, r.Round)
	return err
}

func (s *Store) readDependencies(ctx context.Context, runID string, round int) ([]ir.Dependency, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT from_identity, to_identity, paths
		FROM dependencies
		WHERE run_id = ? AND round = ?
		ORDER BY to_identity COLLATE BINARY ASC, from_identity COLLATE BINARY ASC
	`, runID, round)
	if err != nil {
		return nil, fmt.Errorf("query dependencies: %w", err)
	}
	defer rows.Close()

	deps := []ir.Dependency{}
	for rows.Next() {
		d := ir.Dependency{Round: round}
		var paths string
		if err := rows.Scan(&d.From, &d.To, &paths); err != nil {
			return nil, fmt.Errorf("scan dependency: %w", err)
		}
		if d.Paths, err = unmarshalStrings(paths); err != nil {
			return nil, err
		}
		deps = append(deps, d)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate dependencies: %w", err)
	}
	return deps, nil
}

func (s *Store) readViolations(ctx context.Context, runID string, round int) ([]ir.IdempotenceViolation, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT identity, reads_diff, writes_diff
		FROM violations
		WHERE run_id = ? AND round = ?
		ORDER BY identity COLLATE BINARY ASC
	`, runID, round)
	if err != nil {
		return nil, fmt.Errorf("query violations: %w", err)
	}
	defer rows.Close()

	var out []ir.IdempotenceViolation
	for rows.Next() {
		v := ir.IdempotenceViolation{Round: round}
		var reads, writes string
		if err := rows.Scan(&v.Identity, &reads, &writes); err != nil {
			return nil, fmt.Errorf("scan violation: %w", err)
		}
		if v.ReadsDiff, err = unmarshalStrings(reads); err != nil {
			return nil, err
		}
		if v.WritesDiff, err = unmarshalStrings(writes); err != nil {
			return nil, err
		}
		out = append(out, v)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate violations: %w", err)
	}
	return out, nil
}
