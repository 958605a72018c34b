package repository

import (
	"context"
	"database/sql"
	"regexp"
	"testing"
	"time"

	sqlmock "github.com/DATA-DOG/go-sqlmock"
	"github.com/jmoiron/sqlx"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/tramites-gateway/internal/models"
)

var operationColumns = []string{"id", "folio", "assignee_id", "assignee_name", "actor_id", "state", "error_message", "previous_snapshot", "created_at", "resolved_at"}

func newJournalMock(t *testing.T) (*sqlx.DB, sqlmock.Sqlmock, func()) {
	db, mock, err := sqlmock.New(sqlmock.QueryMatcherOption(sqlmock.QueryMatcherRegexp))
	require.NoError(t, err)
	return sqlx.NewDb(db, "sqlmock"), mock, func() { db.Close() }
}

func TestAssignmentOperationRepositoryCreateAndLatest(t *testing.T) {
	db, mock, cleanup := newJournalMock(t)
	defer cleanup()

	repo := NewAssignmentOperationRepository(db)
	mock.ExpectExec(regexp.QuoteMeta("INSERT INTO assignment_operations")).
		WillReturnResult(sqlmock.NewResult(1, 1))

	op := &models.AssignmentOperation{Folio: "F-100", AssigneeID: "A1", AssigneeName: "Ana", ActorID: "L1"}
	require.NoError(t, repo.Create(context.Background(), op))
	require.NotEmpty(t, op.ID)
	require.Equal(t, models.AssignmentPending, op.State)

	rows := sqlmock.NewRows(operationColumns).
		AddRow(op.ID, "F-100", "A1", "Ana", "L1", "pending", nil, `{"statusId":1}`, time.Now(), nil)
	mock.ExpectQuery(regexp.QuoteMeta("FROM assignment_operations")).
		WithArgs("F-100").
		WillReturnRows(rows)

	latest, err := repo.LatestForFolio(context.Background(), "F-100")
	require.NoError(t, err)
	require.Equal(t, op.ID, latest.ID)
	require.Equal(t, models.AssignmentPending, latest.State)
	require.JSONEq(t, `{"statusId":1}`, string(latest.PreviousSnapshot))
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestAssignmentOperationRepositoryUpdateState(t *testing.T) {
	db, mock, cleanup := newJournalMock(t)
	defer cleanup()

	repo := NewAssignmentOperationRepository(db)
	mock.ExpectExec(regexp.QuoteMeta("UPDATE assignment_operations")).
		WillReturnResult(sqlmock.NewResult(0, 1))
	require.NoError(t, repo.UpdateState(context.Background(), UpdateAssignmentStateParams{
		ID: "op-1", From: models.AssignmentPending, To: models.AssignmentConfirmed, ResolvedAt: time.Now(),
	}))

	mock.ExpectExec(regexp.QuoteMeta("UPDATE assignment_operations")).
		WillReturnResult(sqlmock.NewResult(0, 0))
	err := repo.UpdateState(context.Background(), UpdateAssignmentStateParams{
		ID: "op-1", From: models.AssignmentPending, To: models.AssignmentFailed, ResolvedAt: time.Now(),
	})
	require.ErrorIs(t, err, sql.ErrNoRows)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestMemoryAssignmentJournal(t *testing.T) {
	ctx := context.Background()
	journal := NewMemoryAssignmentJournal()

	first := &models.AssignmentOperation{Folio: "F-1", AssigneeID: "A1"}
	second := &models.AssignmentOperation{Folio: "F-1", AssigneeID: "A2"}
	require.NoError(t, journal.Create(ctx, first))
	require.NoError(t, journal.Create(ctx, second))

	latest, err := journal.LatestForFolio(ctx, "F-1")
	require.NoError(t, err)
	require.Equal(t, second.ID, latest.ID)

	msg := "backend down"
	require.NoError(t, journal.UpdateState(ctx, UpdateAssignmentStateParams{ID: second.ID, From: models.AssignmentPending, To: models.AssignmentFailed, ErrorMessage: &msg, ResolvedAt: time.Now()}))
	require.ErrorIs(t, journal.UpdateState(ctx, UpdateAssignmentStateParams{ID: second.ID, From: models.AssignmentPending, To: models.AssignmentConfirmed}), sql.ErrNoRows)

	got, err := journal.GetByID(ctx, second.ID)
	require.NoError(t, err)
	require.Equal(t, models.AssignmentFailed, got.State)
	require.Equal(t, "backend down", *got.ErrorMessage)

	_, err = journal.LatestForFolio(ctx, "F-404")
	require.ErrorIs(t, err, sql.ErrNoRows)
}
