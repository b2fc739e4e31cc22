package store

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/roach88/parorch/internal/ir"
)

// BeginRun inserts a run in the running state.
// The run's seq is one more than the highest seq stored.
func (s *Store) BeginRun(ctx context.Context, run ir.RunRecord) error {
	commandsJSON, err := marshalStrings(run.Commands)
	if err != nil {
		return fmt.Errorf("begin run: %w", err)
	}

	_, err = s.db.ExecContext(ctx, `
		INSERT INTO runs
		(id, seq, commands, trace_format, max_rounds, scheduler_version)
		VALUES (?, (SELECT COALESCE(MAX(seq), 0) + 1 FROM runs), ?, ?, ?, ?)
	`,
		run.RunID,
		commandsJSON,
		run.TraceFormat,
		run.MaxRounds,
		run.SchedulerVersion,
	)
	if err != nil {
		return fmt.Errorf("begin run %s: %w", run.RunID, err)
	}
	return nil
}

// RecordRound writes a round, its per-command rows, dependencies and
// violations in one transaction.
func (s *Store) RecordRound(ctx context.Context, rec ir.RoundRecord) error {
	if len(rec.Statuses) != len(rec.Workset) || len(rec.Sets) != len(rec.Workset) {
		return fmt.Errorf("record round %d: %d statuses and %d sets for %d commands",
			rec.Round, len(rec.Statuses), len(rec.Sets), len(rec.Workset))
	}

	worksetJSON, err := marshalStrings(rec.Workset)
	if err != nil {
		return fmt.Errorf("record round %d: %w", rec.Round, err)
	}
	nextJSON, err := marshalStrings(rec.Next)
	if err != nil {
		return fmt.Errorf("record round %d: %w", rec.Round, err)
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("record round %d: begin tx: %w", rec.Round, err)
	}
	defer tx.Rollback() // No-op if committed

	_, err = tx.ExecContext(ctx, `
		INSERT INTO rounds
		(run_id, round, workset, workset_digest, trace_digest, next, opens, launches, skipped, unresolved)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`,
		rec.RunID, rec.Round, worksetJSON, rec.WorksetDigest, rec.TraceDigest,
		nextJSON, rec.Opens, rec.Launches, rec.Skipped, rec.Unresolved,
	)
	if err != nil {
		return fmt.Errorf("record round %d: %w", rec.Round, err)
	}

	for i, identity := range rec.Workset {
		if err := insertCommandRound(ctx, tx, rec, i, identity); err != nil {
			return err
		}
	}
	for _, d := range rec.Dependencies {
		paths, err := marshalStrings(d.Paths)
		if err != nil {
			return fmt.Errorf("record round %d: %w", rec.Round, err)
		}
		_, err = tx.ExecContext(ctx, `
			INSERT INTO dependencies (run_id, round, from_identity, to_identity, paths)
			VALUES (?, ?, ?, ?, ?)
		`, rec.RunID, rec.Round, d.From, d.To, paths)
		if err != nil {
			return fmt.Errorf("record round %d dependency: %w", rec.Round, err)
		}
	}
	for _, v := range rec.Violations {
		reads, err := marshalStrings(v.ReadsDiff)
		if err != nil {
			return fmt.Errorf("record round %d: %w", rec.Round, err)
		}
		writes, err := marshalStrings(v.WritesDiff)
		if err != nil {
			return fmt.Errorf("record round %d: %w", rec.Round, err)
		}
		_, err = tx.ExecContext(ctx, `
			INSERT INTO violations (run_id, round, identity, reads_diff, writes_diff)
			VALUES (?, ?, ?, ?, ?)
		`, rec.RunID, rec.Round, v.Identity, reads, writes)
		if err != nil {
			return fmt.Errorf("record round %d violation: %w", rec.Round, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("record round %d: commit: %w", rec.Round, err)
	}
	return nil
}

func insertCommandRound(ctx context.Context, tx *sql.Tx, rec ir.RoundRecord, i int, identity string) error {
	reads, err := marshalStrings(rec.Sets[i].Reads)
	if err != nil {
		return fmt.Errorf("record round %d: %w", rec.Round, err)
	}
	writes, err := marshalStrings(rec.Sets[i].Writes)
	if err != nil {
		return fmt.Errorf("record round %d: %w", rec.Round, err)
	}
	st := rec.Statuses[i]
	_, err = tx.ExecContext(ctx, `
		INSERT INTO command_rounds
		(run_id, round, position, identity, command, exit_code, message, reads, writes)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
	`, rec.RunID, rec.Round, i, identity, st.Command, st.ExitCode, st.Message, reads, writes)
	if err != nil {
		return fmt.Errorf("record round %d command %q: %w", rec.Round, identity, err)
	}
	return nil
}

// FinishRun stores a run's final status. result is stored when non-nil;
// runErr's message is stored when non-nil.
func (s *Store) FinishRun(ctx context.Context, runID, status string, result *ir.RunResult, runErr error) error {
	var resultJSON sql.NullString
	if result != nil {
		data, err := marshalResult(result)
		if err != nil {
			return fmt.Errorf("finish run %s: %w", runID, err)
		}
		resultJSON = sql.NullString{String: data, Valid: true}
	}
	errText := ""
	if runErr != nil {
		errText = runErr.Error()
	}

	res, err := s.db.ExecContext(ctx, `
		UPDATE runs
		SET status = ?, error = ?, result = ?,
		    rounds = (SELECT COUNT(*) FROM rounds WHERE run_id = ?)
		WHERE id = ?
	`, status, errText, resultJSON, runID, runID)
	if err != nil {
		return fmt.Errorf("finish run %s: %w", runID, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("finish run %s: %w", runID, err)
	}
	if n == 0 {
		return fmt.Errorf("finish run %s: %w", runID, ErrRunNotFound)
	}
	return nil
}
