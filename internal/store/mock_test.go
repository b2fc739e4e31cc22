package store

import (
	"context"
	"errors"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/parorch/internal/ir"
)

// newMockStore returns a store backed by sqlmock for driver error paths.
func newMockStore(t *testing.T) (*Store, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	return newWithDB(db), mock
}

func TestRecordRound_RollsBackOnCommandInsertFailure(t *testing.T) {
	s, mock := newMockStore(t)
	boom := errors.New("disk I/O error")

	mock.ExpectBegin()
	mock.ExpectExec("INSERT INTO rounds").WillReturnResult(sqlmock.NewResult(1, 1))
	mock.ExpectExec("INSERT INTO command_rounds").WillReturnError(boom)
	mock.ExpectRollback()

	err := s.RecordRound(context.Background(), createTestRound("run-1", 1, "ls"))
	require.ErrorIs(t, err, boom)
	assert.Contains(t, err.Error(), `command "ls"`)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestRecordRound_CommitFailure(t *testing.T) {
	s, mock := newMockStore(t)
	boom := errors.New("database is locked")

	mock.ExpectBegin()
	mock.ExpectExec("INSERT INTO rounds").WillReturnResult(sqlmock.NewResult(1, 1))
	mock.ExpectExec("INSERT INTO command_rounds").WillReturnResult(sqlmock.NewResult(1, 1))
	mock.ExpectCommit().WillReturnError(boom)

	err := s.RecordRound(context.Background(), createTestRound("run-1", 1, "ls"))
	require.ErrorIs(t, err, boom)
	assert.Contains(t, err.Error(), "commit")
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestBeginRun_ExecFailure(t *testing.T) {
	s, mock := newMockStore(t)
	boom := errors.New("readonly database")

	mock.ExpectExec("INSERT INTO runs").WillReturnError(boom)

	err := s.BeginRun(context.Background(), createTestRun("run-1", "ls"))
	require.ErrorIs(t, err, boom)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestFinishRun_RowsAffectedFailure(t *testing.T) {
	s, mock := newMockStore(t)
	boom := errors.New("no rows info")

	mock.ExpectExec("UPDATE runs").WillReturnResult(sqlmock.NewErrorResult(boom))

	err := s.FinishRun(context.Background(), "run-1", ir.RunConverged, nil, nil)
	require.ErrorIs(t, err, boom)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestListRuns_ScanFailure(t *testing.T) {
	s, mock := newMockStore(t)

	rows := sqlmock.NewRows([]string{"id", "seq", "status", "rounds", "commands", "trace_format", "scheduler_version", "error", "created_at"}).
		AddRow("run-1", "not-a-number", "running", 0, "[]", "riker", "0.1.0", "", "2026-01-01T00:00:00Z")
	mock.ExpectQuery("SELECT (.+) FROM runs").WillReturnRows(rows)

	_, err := s.ListRuns(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "scan run")
}

func TestGetRun_CorruptCommands(t *testing.T) {
	s, mock := newMockStore(t)

	rows := sqlmock.NewRows([]string{"id", "seq", "status", "rounds", "commands", "trace_format", "scheduler_version", "error", "created_at", "max_rounds", "result"}).
		AddRow("run-1", 1, "running", 0, "{", "riker", "0.1.0", "", "2026-01-01T00:00:00Z", 1, nil)
	mock.ExpectQuery("SELECT (.+) FROM runs").WithArgs("run-1").WillReturnRows(rows)

	_, err := s.GetRun(context.Background(), "run-1")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unmarshal strings")
}
