package service

import (
	"context"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/noah-isme/tramites-gateway/internal/backend"
	"github.com/noah-isme/tramites-gateway/internal/models"
	"github.com/noah-isme/tramites-gateway/pkg/jobs"
)

// JobTypeReconcileAssignedBy identifies assigned-by backfill jobs.
const JobTypeReconcileAssignedBy = "reconcile_assigned_by"

const sessionIdleTTL = 12 * time.Hour

type detailFetcher interface {
	GetFull(ctx context.Context, folio string) (models.TramiteFull, error)
}

type recordUpdater interface {
	Update(folio string, fn func(*models.Tramite)) (models.Tramite, bool)
}

type jobQueue interface {
	Enqueue(job jobs.Job) error
}

type reconcilePayload struct {
	Folio     string
	Token     string
	RequestID string
}

type seenSet struct {
	folios  map[string]struct{}
	touched time.Time
}

// ReconciliationService backfills assignedBy from the audit trail for records the listing returns without it.
// Each folio is fetched at most once per session.
type ReconciliationService struct {
	backend  detailFetcher
	worklist recordUpdater
	queue    jobQueue
	metrics  *MetricsService
	logger   *zap.Logger
	now      func() time.Time

	mu   sync.Mutex
	seen map[string]*seenSet
}

// ReconciliationOption configures the service.
type ReconciliationOption func(*ReconciliationService)

// WithReconcileQueue runs backfills on a worker queue instead of inline.
func WithReconcileQueue(q jobQueue) ReconciliationOption {
	return func(s *ReconciliationService) {
		s.queue = q
	}
}

// WithReconcileMetrics attaches metrics.
func WithReconcileMetrics(m *MetricsService) ReconciliationOption {
	return func(s *ReconciliationService) {
		s.metrics = m
	}
}

// NewReconciliationService constructs the service. Without a queue every backfill runs inline.
func NewReconciliationService(backend detailFetcher, worklist recordUpdater, logger *zap.Logger, opts ...ReconciliationOption) *ReconciliationService {
	if logger == nil {
		logger = zap.NewNop()
	}
	svc := &ReconciliationService{
		backend:  backend,
		worklist: worklist,
		logger:   logger,
		now:      time.Now,
		seen:     make(map[string]*seenSet),
	}
	for _, opt := range opts {
		if opt != nil {
			opt(svc)
		}
	}
	return svc
}

// NeedsBackfill reports whether a record is ASSIGNED with an assignment time but no assigner.
func NeedsBackfill(t models.Tramite) bool {
	return t.StatusID == models.StatusAssigned && t.AssignedAt != nil && t.AssignedBy == ""
}

// Reconcile claims eligible records for the actor's session and backfills them.
// It returns how many folios were processed inline.
func (s *ReconciliationService) Reconcile(ctx context.Context, actor models.Actor, records []models.Tramite) int {
	targets := s.claim(sessionKey(actor), records)
	if len(targets) == 0 {
		return 0
	}
	if s.queue == nil {
		return s.runInline(ctx, targets)
	}

	token := backend.TokenFromContext(ctx)
	requestID := backend.RequestIDFromContext(ctx)
	inline := make([]string, 0)
	for _, folio := range targets {
		job := jobs.Job{
			ID:      fmt.Sprintf("%s:%s", JobTypeReconcileAssignedBy, folio),
			Type:    JobTypeReconcileAssignedBy,
			Payload: reconcilePayload{Folio: folio, Token: token, RequestID: requestID},
		}
		if err := s.queue.Enqueue(job); err != nil {
			s.logger.Warn("reconcile queue rejected job, running inline", zap.String("folio", folio), zap.Error(err))
			inline = append(inline, folio)
		}
	}
	return s.runInline(ctx, inline)
}

// ReconcileNow claims and backfills eligible records inline regardless of any queue.
func (s *ReconciliationService) ReconcileNow(ctx context.Context, actor models.Actor, records []models.Tramite) int {
	return s.runInline(ctx, s.claim(sessionKey(actor), records))
}

// Handle is the queue handler for backfill jobs.
func (s *ReconciliationService) Handle(ctx context.Context, job jobs.Job) error {
	payload, ok := job.Payload.(reconcilePayload)
	if !ok {
		return fmt.Errorf("unexpected payload %T for job %s", job.Payload, job.ID)
	}
	ctx = backend.WithToken(ctx, payload.Token)
	if payload.RequestID != "" {
		ctx = backend.WithRequestID(ctx, payload.RequestID)
	}
	return s.backfill(ctx, payload.Folio)
}

// ForgetSession drops the seen-set of a session.
func (s *ReconciliationService) ForgetSession(sessionID string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.seen, sessionID)
}

// claim marks eligible folios as seen before any fetch is issued.
func (s *ReconciliationService) claim(session string, records []models.Tramite) []string {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.now()
	for key, set := range s.seen {
		if now.Sub(set.touched) > sessionIdleTTL {
			delete(s.seen, key)
		}
	}
	set, ok := s.seen[session]
	if !ok {
		set = &seenSet{folios: make(map[string]struct{})}
		s.seen[session] = set
	}
	set.touched = now

	targets := make([]string, 0)
	for _, rec := range records {
		if !NeedsBackfill(rec) {
			continue
		}
		if _, done := set.folios[rec.Folio]; done {
			continue
		}
		set.folios[rec.Folio] = struct{}{}
		targets = append(targets, rec.Folio)
	}
	return targets
}

func (s *ReconciliationService) runInline(ctx context.Context, folios []string) int {
	for _, folio := range folios {
		// one failing folio must not block the rest
		if err := s.backfill(ctx, folio); err != nil {
			s.logger.Warn("assigned-by backfill failed", zap.String("folio", folio), zap.Error(err))
		}
	}
	return len(folios)
}

func (s *ReconciliationService) backfill(ctx context.Context, folio string) error {
	full, err := s.backend.GetFull(ctx, folio)
	if err != nil {
		s.metrics.RecordReconciliation("error")
		return err
	}
	ev, ok := full.Detail.LatestTransitionTo(models.StatusAssigned)
	if !ok || ev.ChangedBy == "" {
		s.metrics.RecordReconciliation("no_event")
		return nil
	}
	_, present := s.worklist.Update(folio, func(t *models.Tramite) {
		if t.AssignedBy == "" {
			t.AssignedBy = ev.ChangedBy
		}
		if t.AssignedByName == "" {
			t.AssignedByName = ev.ChangedBy
		}
	})
	if !present {
		s.metrics.RecordReconciliation("evicted")
		return nil
	}
	s.metrics.RecordReconciliation("backfilled")
	return nil
}
