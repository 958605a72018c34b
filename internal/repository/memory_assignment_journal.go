package repository

import (
	"context"
	"database/sql"
	"sync"

	"github.com/noah-isme/tramites-gateway/internal/models"
)

// MemoryAssignmentJournal keeps assignment operations in process memory when no database is configured.
type MemoryAssignmentJournal struct {
	mu      sync.RWMutex
	ops     map[string]models.AssignmentOperation
	byFolio map[string][]string
}

// NewMemoryAssignmentJournal constructs an empty journal.
func NewMemoryAssignmentJournal() *MemoryAssignmentJournal {
	return &MemoryAssignmentJournal{
		ops:     make(map[string]models.AssignmentOperation),
		byFolio: make(map[string][]string),
	}
}

func (j *MemoryAssignmentJournal) Create(_ context.Context, op *models.AssignmentOperation) error {
	prepareOperation(op)
	j.mu.Lock()
	defer j.mu.Unlock()
	j.ops[op.ID] = *op
	j.byFolio[op.Folio] = append(j.byFolio[op.Folio], op.ID)
	return nil
}

func (j *MemoryAssignmentJournal) GetByID(_ context.Context, id string) (*models.AssignmentOperation, error) {
	j.mu.RLock()
	defer j.mu.RUnlock()
	op, ok := j.ops[id]
	if !ok {
		return nil, sql.ErrNoRows
	}
	return &op, nil
}

func (j *MemoryAssignmentJournal) LatestForFolio(_ context.Context, folio string) (*models.AssignmentOperation, error) {
	j.mu.RLock()
	defer j.mu.RUnlock()
	ids := j.byFolio[folio]
	if len(ids) == 0 {
		return nil, sql.ErrNoRows
	}
	op := j.ops[ids[len(ids)-1]]
	return &op, nil
}

func (j *MemoryAssignmentJournal) UpdateState(_ context.Context, params UpdateAssignmentStateParams) error {
	j.mu.Lock()
	defer j.mu.Unlock()
	op, ok := j.ops[params.ID]
	if !ok || op.State != params.From {
		return sql.ErrNoRows
	}
	op.State = params.To
	op.ErrorMessage = params.ErrorMessage
	resolved := params.ResolvedAt
	op.ResolvedAt = &resolved
	j.ops[params.ID] = op
	return nil
}
