package service

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/noah-isme/tramites-gateway/internal/models"
	"github.com/noah-isme/tramites-gateway/internal/repository"
	appErrors "github.com/noah-isme/tramites-gateway/pkg/errors"
)

type assignBackend interface {
	Assign(ctx context.Context, folio, assigneeUserID, comment string) (models.AssignmentResult, error)
}

// AssignmentJournal persists assignment operations so a failed assignment can be inspected and reverted.
type AssignmentJournal interface {
	Create(ctx context.Context, op *models.AssignmentOperation) error
	GetByID(ctx context.Context, id string) (*models.AssignmentOperation, error)
	LatestForFolio(ctx context.Context, folio string) (*models.AssignmentOperation, error)
	UpdateState(ctx context.Context, params repository.UpdateAssignmentStateParams) error
}

type analystDirectory interface {
	AnalystName(ctx context.Context, subUnitID int, userID string) string
}

type recordSource interface {
	Current(ctx context.Context, actor models.Actor, folio string) (models.Tramite, error)
	RefreshFolio(ctx context.Context, actor models.Actor, folio string) (models.Tramite, error)
}

// AssignmentService assigns analysts optimistically and reconciles with the backend response.
type AssignmentService struct {
	backend  assignBackend
	worklist worklistStore
	journal  AssignmentJournal
	analysts analystDirectory
	records  recordSource
	policy   *TransitionPolicy
	metrics  *MetricsService
	logger   *zap.Logger
	now      func() time.Time

	mu     sync.Mutex
	latest map[string]string
}

// AssignmentOption configures the service.
type AssignmentOption func(*AssignmentService)

// WithAssignmentMetrics attaches metrics.
func WithAssignmentMetrics(m *MetricsService) AssignmentOption {
	return func(s *AssignmentService) {
		s.metrics = m
	}
}

// WithAssignmentClock overrides the clock used for assignedAt.
func WithAssignmentClock(now func() time.Time) AssignmentOption {
	return func(s *AssignmentService) {
		if now != nil {
			s.now = now
		}
	}
}

// NewAssignmentService constructs the coordinator.
func NewAssignmentService(backend assignBackend, worklist worklistStore, journal AssignmentJournal, analysts analystDirectory, records recordSource, policy *TransitionPolicy, logger *zap.Logger, opts ...AssignmentOption) *AssignmentService {
	if logger == nil {
		logger = zap.NewNop()
	}
	svc := &AssignmentService{
		backend:  backend,
		worklist: worklist,
		journal:  journal,
		analysts: analysts,
		records:  records,
		policy:   policy,
		logger:   logger,
		now:      time.Now,
		latest:   make(map[string]string),
	}
	for _, opt := range opts {
		if opt != nil {
			opt(svc)
		}
	}
	return svc
}

// Assign hands folio to assigneeUserID. The optimistic update is applied before the backend call is issued;
// a failed call leaves the record flagged as failed so it can be retried or reverted.
func (s *AssignmentService) Assign(ctx context.Context, actor models.Actor, folio, assigneeUserID, comment string) (models.AssignmentOutcome, error) {
	assigneeUserID = strings.TrimSpace(assigneeUserID)
	if !Permissions(actor.Role).Assign {
		return models.AssignmentOutcome{}, forbidden(actor, "assign")
	}
	if assigneeUserID == "" {
		return models.AssignmentOutcome{}, appErrors.Clone(appErrors.ErrValidation, "assigneeUserId is required")
	}
	record, err := s.records.Current(ctx, actor, folio)
	if err != nil {
		return models.AssignmentOutcome{}, err
	}
	if err := s.policy.AuthorizeAssign(actor, record.StatusID); err != nil {
		return models.AssignmentOutcome{}, err
	}

	subUnit := record.SubUnitID
	if subUnit == 0 {
		subUnit = actor.SubUnitID
	}
	assigneeName := s.analysts.AnalystName(ctx, subUnit, assigneeUserID)

	snapshot, err := json.Marshal(models.SnapshotAssignment(record))
	if err != nil {
		return models.AssignmentOutcome{}, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "snapshot assignment")
	}
	op := &models.AssignmentOperation{
		Folio:            folio,
		AssigneeID:       assigneeUserID,
		AssigneeName:     assigneeName,
		ActorID:          actor.UserID,
		State:            models.AssignmentPending,
		PreviousSnapshot: snapshot,
		CreatedAt:        s.now().UTC(),
	}
	if err := s.journal.Create(ctx, op); err != nil {
		return models.AssignmentOutcome{}, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "journal assignment")
	}
	s.setLatest(folio, op.ID)

	assignedAt := s.now()
	s.worklist.Update(folio, func(t *models.Tramite) {
		t.StatusID = models.StatusAssigned
		t.StatusDesc = models.StatusAssigned.Label()
		t.AssignedTo = assigneeUserID
		t.AssignedToName = assigneeName
		t.AssignedBy = actor.UserID
		t.AssignedByName = actor.DisplayName()
		t.AssignedAt = &assignedAt
		t.AssignmentState = models.AssignmentPending
		t.AssignmentOpID = op.ID
	})

	comment = SanitizeComment(comment)
	if comment == "" {
		comment = fmt.Sprintf("assigned to %s by %s", assigneeName, actor.DisplayName())
	}
	result, err := s.backend.Assign(ctx, folio, assigneeUserID, comment)
	if err != nil {
		return s.fail(ctx, op, err)
	}
	return s.confirm(ctx, actor, op, result)
}

func (s *AssignmentService) fail(ctx context.Context, op *models.AssignmentOperation, cause error) (models.AssignmentOutcome, error) {
	msg := appErrors.FromError(cause).Message
	if err := s.journal.UpdateState(ctx, repository.UpdateAssignmentStateParams{
		ID: op.ID, From: models.AssignmentPending, To: models.AssignmentFailed, ErrorMessage: &msg, ResolvedAt: s.now().UTC(),
	}); err != nil {
		s.logger.Warn("journal failed assignment", zap.String("operation_id", op.ID), zap.Error(err))
	}
	op.State = models.AssignmentFailed
	op.ErrorMessage = &msg
	s.metrics.RecordAssignment(string(models.AssignmentFailed))

	if s.isLatest(op.Folio, op.ID) {
		s.worklist.Update(op.Folio, func(t *models.Tramite) {
			t.AssignmentState = models.AssignmentFailed
		})
	}
	s.logger.Warn("assignment failed",
		zap.String("folio", op.Folio),
		zap.String("operation_id", op.ID),
		zap.Error(cause),
	)
	return models.AssignmentOutcome{}, cause
}

func (s *AssignmentService) confirm(ctx context.Context, actor models.Actor, op *models.AssignmentOperation, result models.AssignmentResult) (models.AssignmentOutcome, error) {
	if err := s.journal.UpdateState(ctx, repository.UpdateAssignmentStateParams{
		ID: op.ID, From: models.AssignmentPending, To: models.AssignmentConfirmed, ResolvedAt: s.now().UTC(),
	}); err != nil {
		s.logger.Warn("journal confirmed assignment", zap.String("operation_id", op.ID), zap.Error(err))
	}
	op.State = models.AssignmentConfirmed
	s.metrics.RecordAssignment(string(models.AssignmentConfirmed))

	if !s.isLatest(op.Folio, op.ID) {
		s.logger.Info("dropping stale assignment result", zap.String("folio", op.Folio), zap.String("operation_id", op.ID))
		rec, _ := s.worklist.Get(op.Folio)
		return models.AssignmentOutcome{Operation: *op, Record: rec}, nil
	}

	record, _ := s.worklist.Update(op.Folio, func(t *models.Tramite) {
		mergeAssignmentResult(t, result)
		t.AssignmentState = models.AssignmentConfirmed
	})

	// a fresh fetch after reconciling is the last-write-wins guard against interleaved operations
	if refreshed, err := s.records.RefreshFolio(ctx, actor, op.Folio); err == nil {
		record = refreshed
	} else {
		s.logger.Warn("refresh after assignment failed", zap.String("folio", op.Folio), zap.Error(err))
	}
	return models.AssignmentOutcome{Operation: *op, Record: record}, nil
}

// mergeAssignmentResult applies server values where present, never reverting to an emptier state.
func mergeAssignmentResult(t *models.Tramite, result models.AssignmentResult) {
	if result.AssigneeID != "" {
		t.AssignedTo = result.AssigneeID
	}
	if result.AssigneeName != "" {
		t.AssignedToName = result.AssigneeName
	}
	if result.AssignedBy != "" {
		t.AssignedBy = result.AssignedBy
	}
	if result.AssignedByName != "" {
		t.AssignedByName = result.AssignedByName
	}
	if result.AssignedAt != nil {
		at := *result.AssignedAt
		t.AssignedAt = &at
	}
	t.StatusID = models.StatusAssigned
	t.StatusDesc = models.StatusAssigned.Label()
}

// AssignmentStatus returns the latest operation journaled for folio.
func (s *AssignmentService) AssignmentStatus(ctx context.Context, folio string) (*models.AssignmentOperation, error) {
	op, err := s.journal.LatestForFolio(ctx, folio)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, fmt.Sprintf("no assignment recorded for folio %s", folio))
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "load assignment status")
	}
	return op, nil
}

// RevertAssignment restores the record to its state before the latest assignment, which must have failed.
func (s *AssignmentService) RevertAssignment(ctx context.Context, actor models.Actor, folio string) (models.AssignmentOutcome, error) {
	if !Permissions(actor.Role).Assign {
		return models.AssignmentOutcome{}, forbidden(actor, "revert assignments")
	}
	op, err := s.AssignmentStatus(ctx, folio)
	if err != nil {
		return models.AssignmentOutcome{}, err
	}
	if op.State != models.AssignmentFailed {
		return models.AssignmentOutcome{}, appErrors.Clone(appErrors.ErrConflict, fmt.Sprintf("assignment is %s; only failed assignments can be reverted", op.State))
	}
	var snapshot models.AssignmentSnapshot
	if err := json.Unmarshal(op.PreviousSnapshot, &snapshot); err != nil {
		return models.AssignmentOutcome{}, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "decode assignment snapshot")
	}
	if err := s.journal.UpdateState(ctx, repository.UpdateAssignmentStateParams{
		ID: op.ID, From: models.AssignmentFailed, To: models.AssignmentReverted, ErrorMessage: op.ErrorMessage, ResolvedAt: s.now().UTC(),
	}); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return models.AssignmentOutcome{}, appErrors.Clone(appErrors.ErrConflict, "assignment changed state concurrently")
		}
		return models.AssignmentOutcome{}, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "journal revert")
	}
	op.State = models.AssignmentReverted
	s.metrics.RecordAssignment(string(models.AssignmentReverted))

	record, ok := s.worklist.Update(folio, func(t *models.Tramite) {
		snapshot.Restore(t)
		t.AssignmentState = models.AssignmentReverted
		t.AssignmentOpID = op.ID
	})
	if !ok {
		return models.AssignmentOutcome{}, appErrors.Clone(appErrors.ErrNotFound, fmt.Sprintf("folio %s is no longer in the worklist", folio))
	}
	s.clearLatest(folio, op.ID)
	return models.AssignmentOutcome{Operation: *op, Record: record}, nil
}

func (s *AssignmentService) setLatest(folio, opID string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.latest[folio] = opID
}

func (s *AssignmentService) isLatest(folio, opID string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.latest[folio] == opID
}

func (s *AssignmentService) clearLatest(folio, opID string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.latest[folio] == opID {
		delete(s.latest, folio)
	}
}
