package service

import (
	"context"
	"fmt"
	"mime"
	"net/http"
	"strings"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/noah-isme/tramites-gateway/internal/models"
	"github.com/noah-isme/tramites-gateway/pkg/config"
	appErrors "github.com/noah-isme/tramites-gateway/pkg/errors"
)

type finalizeBackend interface {
	ChangeStatusWithEvidence(ctx context.Context, folio string, sidecar models.StatusSidecar, evidence models.EvidenceUpload) error
}

type worklistRefresher interface {
	Current(ctx context.Context, actor models.Actor, folio string) (models.Tramite, error)
	Refresh(ctx context.Context, actor models.Actor) error
}

// FinalizeRequest carries a finalize submission. Nil debt fields fall back to the submitter's own edits,
// then to the server values. A blank amount counts as absent when the case is not in debt.
type FinalizeRequest struct {
	Folio            string
	OfficeMemoNumber string
	InDebt           *bool
	DebtAmount       *string
	Comment          string
	Evidence         *models.EvidenceUpload
}

// FinalizationService submits the FINALIZED transition together with its evidence file.
type FinalizationService struct {
	backend  finalizeBackend
	worklist worklistStore
	records  worklistRefresher
	policy   *TransitionPolicy
	limits   config.EvidenceConfig
	metrics  *MetricsService
	logger   *zap.Logger
}

// NewFinalizationService constructs the handler.
func NewFinalizationService(backend finalizeBackend, worklist worklistStore, records worklistRefresher, policy *TransitionPolicy, limits config.EvidenceConfig, metrics *MetricsService, logger *zap.Logger) *FinalizationService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &FinalizationService{
		backend:  backend,
		worklist: worklist,
		records:  records,
		policy:   policy,
		limits:   limits,
		metrics:  metrics,
		logger:   logger,
	}
}

// Finalize validates every precondition locally, then sends one multipart request.
// Nothing reaches the backend unless all checks pass.
func (s *FinalizationService) Finalize(ctx context.Context, actor models.Actor, req FinalizeRequest) (models.Tramite, error) {
	record, err := s.finalize(ctx, actor, req)
	outcome := "ok"
	if err != nil {
		outcome = appErrors.FromError(err).Code
	}
	s.metrics.RecordTransition(models.StatusFinalized.Code(), outcome)
	return record, err
}

func (s *FinalizationService) finalize(ctx context.Context, actor models.Actor, req FinalizeRequest) (models.Tramite, error) {
	if !Permissions(actor.Role).Finalize {
		return models.Tramite{}, forbidden(actor, "finalize")
	}
	session := sessionKey(actor)
	local, isLocal := s.worklist.Get(req.Folio)
	if isLocal {
		if draft, ok := s.worklist.DebtDraft(session, req.Folio); ok {
			draft.Apply(&local)
		}
		if err := s.policy.AuthorizeFinalize(actor, local.StatusID); err != nil {
			return models.Tramite{}, err
		}
	}

	memo := strings.TrimSpace(req.OfficeMemoNumber)
	if memo == "" {
		return models.Tramite{}, appErrors.ErrMissingOfficeMemo
	}
	evidence, err := s.checkEvidence(req.Evidence)
	if err != nil {
		return models.Tramite{}, err
	}
	var requested *decimal.Decimal
	blankAmount := req.DebtAmount != nil && strings.TrimSpace(*req.DebtAmount) == ""
	if req.DebtAmount != nil && !blankAmount {
		parsed, err := ParseDebtAmount(*req.DebtAmount)
		if err != nil {
			return models.Tramite{}, err
		}
		requested = &parsed
	}

	if !isLocal {
		if local, err = s.records.Current(ctx, actor, req.Folio); err != nil {
			return models.Tramite{}, err
		}
		if err := s.policy.AuthorizeFinalize(actor, local.StatusID); err != nil {
			return models.Tramite{}, err
		}
	}

	inDebt := local.InDebt
	if req.InDebt != nil {
		inDebt = *req.InDebt
	}
	amount := local.DebtAmount
	if requested != nil {
		amount = *requested
	}
	if !inDebt {
		amount = decimal.Zero
	} else if blankAmount {
		return models.Tramite{}, appErrors.Clone(appErrors.ErrValidation, "debt amount is required")
	}

	sidecar := s.policy.BuildFinalizeSidecar(actor, inDebt, amount, memo, req.Comment)
	if err := s.backend.ChangeStatusWithEvidence(ctx, req.Folio, sidecar, evidence); err != nil {
		s.logger.Warn("finalize rejected",
			zap.String("folio", req.Folio),
			zap.String("actor_id", actor.UserID),
			zap.Error(err),
		)
		return models.Tramite{}, err
	}
	s.logger.Info("tramite finalized",
		zap.String("folio", req.Folio),
		zap.String("actor_id", actor.UserID),
		zap.Bool("in_debt", inDebt),
	)

	updated, _ := s.worklist.Update(req.Folio, func(t *models.Tramite) {
		t.StatusID = models.StatusFinalized
		t.StatusDesc = models.StatusFinalized.Label()
		t.OfficeMemoNumber = memo
		t.EvidenceRef = evidence.Filename
		t.InDebt = inDebt
		t.DebtAmount = amount
	})
	s.worklist.ClearDebtDraft(session, req.Folio)
	if err := s.records.Refresh(ctx, actor); err != nil {
		s.logger.Warn("worklist refresh after finalize failed", zap.Error(err))
	}
	if rec, ok := s.worklist.Get(req.Folio); ok {
		return rec, nil
	}
	return updated, nil
}

func (s *FinalizationService) checkEvidence(upload *models.EvidenceUpload) (models.EvidenceUpload, error) {
	if upload == nil || len(upload.Content) == 0 {
		return models.EvidenceUpload{}, appErrors.ErrMissingEvidence
	}
	evidence := *upload
	if s.limits.MaxFileSizeBytes > 0 && int64(len(evidence.Content)) > s.limits.MaxFileSizeBytes {
		return models.EvidenceUpload{}, appErrors.Clone(appErrors.ErrValidation, fmt.Sprintf("evidence exceeds %d bytes", s.limits.MaxFileSizeBytes))
	}
	mediaType := evidence.MimeType
	if mediaType == "" || mediaType == "application/octet-stream" {
		mediaType = http.DetectContentType(evidence.Content)
	}
	if parsed, _, err := mime.ParseMediaType(mediaType); err == nil {
		mediaType = parsed
	}
	if len(s.limits.AllowedMIMEs) > 0 && !containsFold(s.limits.AllowedMIMEs, mediaType) {
		return models.EvidenceUpload{}, appErrors.Clone(appErrors.ErrValidation, fmt.Sprintf("evidence type %s is not allowed", mediaType))
	}
	evidence.MimeType = mediaType
	if strings.TrimSpace(evidence.Filename) == "" {
		evidence.Filename = "evidencia"
	}
	return evidence, nil
}

func containsFold(values []string, target string) bool {
	for _, v := range values {
		if strings.EqualFold(strings.TrimSpace(v), target) {
			return true
		}
	}
	return false
}
