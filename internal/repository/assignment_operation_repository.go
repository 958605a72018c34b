package repository

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/noah-isme/tramites-gateway/internal/models"
)

const assignmentOperationColumns = `id, folio, assignee_id, assignee_name, actor_id, state, error_message,
       previous_snapshot, created_at, resolved_at`

// AssignmentOperationRepository journals assignment operations in postgres.
type AssignmentOperationRepository struct {
	db *sqlx.DB
}

// NewAssignmentOperationRepository constructs the repository.
func NewAssignmentOperationRepository(db *sqlx.DB) *AssignmentOperationRepository {
	return &AssignmentOperationRepository{db: db}
}

// Create inserts a new operation row, defaulting to the pending state.
func (r *AssignmentOperationRepository) Create(ctx context.Context, op *models.AssignmentOperation) error {
	prepareOperation(op)
	const query = `INSERT INTO assignment_operations
	(id, folio, assignee_id, assignee_name, actor_id, state, error_message, previous_snapshot, created_at, resolved_at)
	VALUES (:id, :folio, :assignee_id, :assignee_name, :actor_id, :state, :error_message, :previous_snapshot, :created_at, :resolved_at)`
	if _, err := r.db.NamedExecContext(ctx, query, op); err != nil {
		return fmt.Errorf("create assignment operation: %w", err)
	}
	return nil
}

// GetByID fetches an operation by identifier.
func (r *AssignmentOperationRepository) GetByID(ctx context.Context, id string) (*models.AssignmentOperation, error) {
	query := `SELECT ` + assignmentOperationColumns + ` FROM assignment_operations WHERE id = $1`
	var op models.AssignmentOperation
	if err := r.db.GetContext(ctx, &op, query, id); err != nil {
		return nil, err
	}
	return &op, nil
}

// LatestForFolio returns the most recent operation recorded for a folio.
func (r *AssignmentOperationRepository) LatestForFolio(ctx context.Context, folio string) (*models.AssignmentOperation, error) {
	query := `SELECT ` + assignmentOperationColumns + ` FROM assignment_operations
	WHERE folio = $1 ORDER BY created_at DESC LIMIT 1`
	var op models.AssignmentOperation
	if err := r.db.GetContext(ctx, &op, query, folio); err != nil {
		return nil, err
	}
	return &op, nil
}

// UpdateAssignmentStateParams moves an operation between states.
type UpdateAssignmentStateParams struct {
	ID           string
	From         models.AssignmentState
	To           models.AssignmentState
	ErrorMessage *string
	ResolvedAt   time.Time
}

// UpdateState applies the transition only while the row is still in params.From.
// sql.ErrNoRows is returned when the row moved on already.
func (r *AssignmentOperationRepository) UpdateState(ctx context.Context, params UpdateAssignmentStateParams) error {
	const query = `UPDATE assignment_operations
	SET state = :to, error_message = :error_message, resolved_at = :resolved_at
	WHERE id = :id AND state = :from`
	result, err := r.db.NamedExecContext(ctx, query, map[string]interface{}{
		"id":            params.ID,
		"from":          params.From,
		"to":            params.To,
		"error_message": params.ErrorMessage,
		"resolved_at":   params.ResolvedAt,
	})
	if err != nil {
		return fmt.Errorf("update assignment operation state: %w", err)
	}
	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("check assignment operation rows: %w", err)
	}
	if rows == 0 {
		return sql.ErrNoRows
	}
	return nil
}

func prepareOperation(op *models.AssignmentOperation) {
	if op.ID == "" {
		op.ID = uuid.NewString()
	}
	if op.State == "" {
		op.State = models.AssignmentPending
	}
	if op.CreatedAt.IsZero() {
		op.CreatedAt = time.Now().UTC()
	}
	if op.PreviousSnapshot == nil {
		op.PreviousSnapshot = []byte(`{}`)
	}
}
