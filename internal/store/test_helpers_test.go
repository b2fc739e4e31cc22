package store

import (
	"path/filepath"
	"testing"

	"github.com/roach88/parorch/internal/ir"
)

// createTestStore creates a new file-backed store for testing.
func createTestStore(t *testing.T) *Store {
	t.Helper()
	path := filepath.Join(t.TempDir(), "test.db")
	s, err := Open(path)
	if err != nil {
		t.Fatalf("Open() failed: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

// createTestRun creates a run record with minimal required fields.
func createTestRun(id string, commands ...string) ir.RunRecord {
	return ir.RunRecord{
		RunID:            id,
		Commands:         commands,
		TraceFormat:      "riker",
		MaxRounds:        len(commands),
		SchedulerVersion: ir.SchedulerVersion,
	}
}

// createTestRound creates a round in which every workset command read and
// wrote nothing and exited 0.
func createTestRound(runID string, round int, workset ...string) ir.RoundRecord {
	rec := ir.RoundRecord{
		RunID:         runID,
		Round:         round,
		Workset:       workset,
		WorksetDigest: "ws-digest",
		TraceDigest:   "trace-digest",
		Next:          []string{},
		Opens:         len(workset),
	}
	for _, id := range workset {
		rec.Statuses = append(rec.Statuses, ir.CommandStatus{Command: id})
		rec.Sets = append(rec.Sets, ir.CommandSets{Identity: id, Reads: []string{}, Writes: []string{}})
	}
	return rec
}
