package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/noah-isme/tramites-gateway/internal/models"
	appErrors "github.com/noah-isme/tramites-gateway/pkg/errors"
)

const (
	defaultPageSize = 20
	maxPageSize     = 200
)

type tramiteBackend interface {
	Search(ctx context.Context, filter models.TramiteFilter) (models.TramitePage, error)
	GetFull(ctx context.Context, folio string) (models.TramiteFull, error)
	ChangeType(ctx context.Context, folio string, newTypeID int, comment string) error
	ChangeStatus(ctx context.Context, folio string, sidecar models.StatusSidecar) error
}

type worklistStore interface {
	Upsert(incoming models.Tramite) models.Tramite
	UpsertAll(incoming []models.Tramite) []models.Tramite
	Get(folio string) (models.Tramite, bool)
	Update(folio string, fn func(*models.Tramite)) (models.Tramite, bool)
	List(folios []string) []models.Tramite
	Len() int
	Track(session string, folios ...string)
	ForgetSession(session string) int
	DebtDraft(session, folio string) (models.DebtDraft, bool)
	EditDebtDraft(session, folio string, fn func(*models.DebtDraft)) (models.DebtDraft, bool)
	ClearDebtDraft(session, folio string)
}

type slaRuleSource interface {
	RuleBook(ctx context.Context) (*SlaRuleBook, error)
}

type historyReconciler interface {
	Reconcile(ctx context.Context, actor models.Actor, records []models.Tramite) int
}

// TramiteService drives searches and the generic workflow changes against the worklist.
type TramiteService struct {
	backend    tramiteBackend
	worklist   worklistStore
	policy     *TransitionPolicy
	sla        *SlaCalculator
	rules      slaRuleSource
	reconciler historyReconciler
	metrics    *MetricsService
	logger     *zap.Logger
	now        func() time.Time

	lockDebtAfterEvidence bool

	mu          sync.Mutex
	lastFilters map[string]models.TramiteFilter
}

// TramiteServiceOption configures the service.
type TramiteServiceOption func(*TramiteService)

// WithTramiteReconciler attaches the assigned-by backfill.
func WithTramiteReconciler(r historyReconciler) TramiteServiceOption {
	return func(s *TramiteService) {
		s.reconciler = r
	}
}

// WithTramiteMetrics attaches metrics.
func WithTramiteMetrics(m *MetricsService) TramiteServiceOption {
	return func(s *TramiteService) {
		s.metrics = m
	}
}

// WithTramiteClock overrides the clock used for SLA annotation.
func WithTramiteClock(now func() time.Time) TramiteServiceOption {
	return func(s *TramiteService) {
		if now != nil {
			s.now = now
		}
	}
}

// WithDebtLockAfterEvidence makes the debt toggle read-only once evidence exists.
func WithDebtLockAfterEvidence(lock bool) TramiteServiceOption {
	return func(s *TramiteService) {
		s.lockDebtAfterEvidence = lock
	}
}

// NewTramiteService constructs the service.
func NewTramiteService(backend tramiteBackend, worklist worklistStore, policy *TransitionPolicy, sla *SlaCalculator, rules slaRuleSource, logger *zap.Logger, opts ...TramiteServiceOption) *TramiteService {
	if logger == nil {
		logger = zap.NewNop()
	}
	svc := &TramiteService{
		backend:     backend,
		worklist:    worklist,
		policy:      policy,
		sla:         sla,
		rules:       rules,
		logger:      logger,
		now:         time.Now,
		lastFilters: make(map[string]models.TramiteFilter),
	}
	for _, opt := range opts {
		if opt != nil {
			opt(svc)
		}
	}
	return svc
}

// ScopeFilter applies the role scoping rules: analysts only ever see their own cases and
// everyone but ADMIN defaults to their own sub-unit.
func ScopeFilter(actor models.Actor, filter models.TramiteFilter) models.TramiteFilter {
	if actor.Role == models.RoleAnalyst {
		filter.AssignedTo = actor.UserID
		filter.Assigned = nil
	}
	if actor.Role != models.RoleAdmin && filter.SubUnitID == nil && actor.SubUnitID > 0 {
		sub := actor.SubUnitID
		filter.SubUnitID = &sub
	}
	if filter.Page < 0 {
		filter.Page = 0
	}
	if filter.Size <= 0 {
		filter.Size = defaultPageSize
	}
	if filter.Size > maxPageSize {
		filter.Size = maxPageSize
	}
	return filter
}

// Search fetches a page from the backend, merges it into the worklist and annotates SLA fields.
func (s *TramiteService) Search(ctx context.Context, actor models.Actor, filter models.TramiteFilter) (models.TramitePage, error) {
	filter = ScopeFilter(actor, filter)
	page, err := s.backend.Search(ctx, filter)
	if err != nil {
		return models.TramitePage{}, err
	}
	s.rememberFilter(actor, filter)

	book := s.ruleBook(ctx)
	now := s.now()
	for i := range page.Records {
		s.sla.Annotate(&page.Records[i], book, now)
	}
	records := s.worklist.UpsertAll(page.Records)
	s.worklist.Track(sessionKey(actor), folios(records)...)

	if s.reconciler != nil && s.reconciler.Reconcile(ctx, actor, records) > 0 {
		records = s.worklist.List(folios(records))
	}
	s.metrics.SetWorklistSize(s.worklist.Len())

	page.Records = s.withDrafts(actor, records)
	page.Page = filter.Page
	page.Size = filter.Size
	return page, nil
}

// Refresh re-runs the last search of the actor's session.
func (s *TramiteService) Refresh(ctx context.Context, actor models.Actor) error {
	s.mu.Lock()
	filter, ok := s.lastFilters[sessionKey(actor)]
	s.mu.Unlock()
	if !ok {
		filter = models.TramiteFilter{}
	}
	_, err := s.Search(ctx, actor, filter)
	return err
}

// RefreshFolio re-fetches a single record so the latest server state wins.
func (s *TramiteService) RefreshFolio(ctx context.Context, actor models.Actor, folio string) (models.Tramite, error) {
	filter := ScopeFilter(actor, models.TramiteFilter{Query: folio, Size: 10})
	page, err := s.backend.Search(ctx, filter)
	if err != nil {
		return models.Tramite{}, err
	}
	for _, rec := range page.Records {
		if rec.Folio != folio {
			continue
		}
		s.sla.Annotate(&rec, s.ruleBook(ctx), s.now())
		stored := s.worklist.Upsert(rec)
		s.worklist.Track(sessionKey(actor), folio)
		return s.withDraft(actor, stored), nil
	}
	return models.Tramite{}, appErrors.Clone(appErrors.ErrNotFound, fmt.Sprintf("folio %s not found", folio))
}

// Detail returns the full detail, history and documents of a folio.
func (s *TramiteService) Detail(ctx context.Context, folio string) (models.TramiteFull, error) {
	return s.backend.GetFull(ctx, folio)
}

// ChangeType reclassifies a trámite.
func (s *TramiteService) ChangeType(ctx context.Context, actor models.Actor, folio string, newTypeID int, comment string) (models.Tramite, error) {
	if err := s.policy.AuthorizeTypeChange(actor); err != nil {
		return models.Tramite{}, err
	}
	if newTypeID <= 0 {
		return models.Tramite{}, appErrors.Clone(appErrors.ErrValidation, "newTypeId must be positive")
	}
	comment = SanitizeComment(comment)
	if comment == "" {
		comment = "type changed by " + actor.DisplayName()
	}
	if err := s.backend.ChangeType(ctx, folio, newTypeID, comment); err != nil {
		return models.Tramite{}, err
	}
	s.worklist.Update(folio, func(t *models.Tramite) { t.TypeID = newTypeID })
	return s.refreshOrLocal(ctx, actor, folio)
}

// ChangeStatus performs a generic (non-finalize, non-assign) transition.
func (s *TramiteService) ChangeStatus(ctx context.Context, actor models.Actor, folio string, target models.Status, comment string) (models.Tramite, error) {
	if err := s.policy.AuthorizeStatusRole(actor, target); err != nil {
		s.recordTransition(target, err)
		return models.Tramite{}, err
	}
	record, err := s.Current(ctx, actor, folio)
	if err != nil {
		return models.Tramite{}, err
	}
	if err := s.policy.AuthorizeStatusChange(actor, record.StatusID, target); err != nil {
		s.recordTransition(target, err)
		return models.Tramite{}, err
	}

	sidecar := s.policy.BuildStatusSidecar(actor, record, target, comment)
	if err := s.backend.ChangeStatus(ctx, folio, sidecar); err != nil {
		s.recordTransition(target, err)
		return models.Tramite{}, err
	}
	s.recordTransition(target, nil)
	s.logger.Info("status changed",
		zap.String("folio", folio),
		zap.String("from", record.StatusID.Code()),
		zap.String("to", target.Code()),
		zap.String("actor_id", actor.UserID),
	)

	s.worklist.Update(folio, func(t *models.Tramite) {
		t.StatusID = target
		t.StatusDesc = target.Label()
	})
	return s.refreshOrLocal(ctx, actor, folio)
}

// EditDebt edits the caller's unsubmitted debt fields before finalization. Each field is optional and
// independent. Other sessions keep seeing the server values.
func (s *TramiteService) EditDebt(ctx context.Context, actor models.Actor, folio string, inDebt *bool, amount *string) (models.Tramite, error) {
	record, err := s.Current(ctx, actor, folio)
	if err != nil {
		return models.Tramite{}, err
	}
	if err := s.policy.AuthorizeDebtEdit(actor, record, s.lockDebtAfterEvidence); err != nil {
		return models.Tramite{}, err
	}
	var parsed *decimal.Decimal
	if amount != nil {
		value, err := ParseDebtAmount(*amount)
		if err != nil {
			return models.Tramite{}, err
		}
		parsed = &value
	}

	draft, ok := s.worklist.EditDebtDraft(sessionKey(actor), folio, func(d *models.DebtDraft) {
		if inDebt != nil {
			d.InDebt = *inDebt
		}
		if parsed != nil {
			d.DebtAmount = *parsed
		}
	})
	if !ok {
		return models.Tramite{}, appErrors.Clone(appErrors.ErrNotFound, fmt.Sprintf("folio %s is no longer in the worklist", folio))
	}
	draft.Apply(&record)
	return record, nil
}

// Current returns the worklist record for folio as the actor sees it, loading it when absent.
// A search by folio carries the list fields; the detail endpoint is only a fallback.
func (s *TramiteService) Current(ctx context.Context, actor models.Actor, folio string) (models.Tramite, error) {
	if rec, ok := s.worklist.Get(folio); ok {
		s.worklist.Track(sessionKey(actor), folio)
		return s.withDraft(actor, rec), nil
	}
	rec, err := s.RefreshFolio(ctx, actor, folio)
	if err == nil {
		return rec, nil
	}
	if !errors.Is(err, appErrors.ErrNotFound) {
		return models.Tramite{}, err
	}
	return s.loadFromDetail(ctx, actor, folio)
}

func (s *TramiteService) loadFromDetail(ctx context.Context, actor models.Actor, folio string) (models.Tramite, error) {
	full, err := s.backend.GetFull(ctx, folio)
	if err != nil {
		return models.Tramite{}, err
	}
	status, ok := models.ParseStatusLabel(full.Detail.CurrentStatus)
	if !ok {
		return models.Tramite{}, appErrors.Clone(appErrors.ErrNetworkFailure, fmt.Sprintf("unrecognised status %q for folio %s", full.Detail.CurrentStatus, folio))
	}
	rec := models.Tramite{
		Folio:         folio,
		TypeDesc:      full.Detail.TypeDesc,
		StatusID:      status,
		StatusDesc:    status.Label(),
		RequesterID:   full.Detail.UserID,
		RequesterName: full.Detail.UserName,
		CreatedAt:     full.Detail.CreatedAt,
		DocsCount:     len(full.Documents),
	}
	if ev, ok := full.Detail.LatestTransitionTo(models.StatusAssigned); ok && status >= models.StatusAssigned {
		at := ev.ChangedAt
		rec.AssignedBy = ev.ChangedBy
		rec.AssignedByName = ev.ChangedBy
		rec.AssignedAt = &at
	}
	stored := s.worklist.Upsert(rec)
	s.worklist.Track(sessionKey(actor), folio)
	return s.withDraft(actor, stored), nil
}

func (s *TramiteService) withDraft(actor models.Actor, rec models.Tramite) models.Tramite {
	if draft, ok := s.worklist.DebtDraft(sessionKey(actor), rec.Folio); ok {
		draft.Apply(&rec)
	}
	return rec
}

func (s *TramiteService) withDrafts(actor models.Actor, records []models.Tramite) []models.Tramite {
	for i := range records {
		records[i] = s.withDraft(actor, records[i])
	}
	return records
}

// ParseDebtAmount accepts a non-negative decimal, optionally prefixed with "$".
func ParseDebtAmount(raw string) (decimal.Decimal, error) {
	trimmed := strings.TrimSpace(strings.TrimPrefix(strings.TrimSpace(raw), "$"))
	if trimmed == "" {
		return decimal.Zero, appErrors.Clone(appErrors.ErrValidation, "debt amount is required")
	}
	amount, err := decimal.NewFromString(trimmed)
	if err != nil {
		return decimal.Zero, appErrors.Clone(appErrors.ErrValidation, "debt amount must be numeric")
	}
	if amount.IsNegative() {
		return decimal.Zero, appErrors.Clone(appErrors.ErrValidation, "debt amount must not be negative")
	}
	return amount.Round(2), nil
}

func (s *TramiteService) refreshOrLocal(ctx context.Context, actor models.Actor, folio string) (models.Tramite, error) {
	rec, err := s.RefreshFolio(ctx, actor, folio)
	if err == nil {
		return rec, nil
	}
	s.logger.Warn("refresh after change failed", zap.String("folio", folio), zap.Error(err))
	if local, ok := s.worklist.Get(folio); ok {
		return s.withDraft(actor, local), nil
	}
	return models.Tramite{Folio: folio}, nil
}

func (s *TramiteService) ruleBook(ctx context.Context) *SlaRuleBook {
	if s.rules == nil {
		return nil
	}
	book, err := s.rules.RuleBook(ctx)
	if err != nil {
		s.logger.Warn("sla rules unavailable, labels fall back to UNKNOWN", zap.Error(err))
		return nil
	}
	return book
}

// ForgetSession drops the last search filter, the debt drafts and the folios a session loaded.
func (s *TramiteService) ForgetSession(sessionID string) {
	s.mu.Lock()
	delete(s.lastFilters, sessionID)
	s.mu.Unlock()

	evicted := s.worklist.ForgetSession(sessionID)
	s.metrics.SetWorklistSize(s.worklist.Len())
	if evicted > 0 {
		s.logger.Debug("session released worklist records", zap.String("session", sessionID), zap.Int("evicted", evicted))
	}
}

func (s *TramiteService) rememberFilter(actor models.Actor, filter models.TramiteFilter) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.lastFilters[sessionKey(actor)] = filter
}

func (s *TramiteService) recordTransition(target models.Status, err error) {
	outcome := "ok"
	if err != nil {
		outcome = appErrors.FromError(err).Code
	}
	s.metrics.RecordTransition(target.Code(), outcome)
}

func sessionKey(actor models.Actor) string {
	if actor.SessionID != "" {
		return actor.SessionID
	}
	return actor.UserID
}

func folios(records []models.Tramite) []string {
	out := make([]string, len(records))
	for i, r := range records {
		out[i] = r.Folio
	}
	return out
}
