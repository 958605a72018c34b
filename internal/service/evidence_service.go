package service

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/noah-isme/tramites-gateway/internal/models"
	appErrors "github.com/noah-isme/tramites-gateway/pkg/errors"
	"github.com/noah-isme/tramites-gateway/pkg/storage"
)

type evidenceBackend interface {
	GetEvidence(ctx context.Context, folio string, inline bool) (models.EvidenceFile, error)
}

// EvidenceHandle is the short-lived reference returned to viewers.
type EvidenceHandle struct {
	Token       string    `json:"token"`
	ExpiresAt   time.Time `json:"expiresAt"`
	Filename    string    `json:"filename"`
	ContentType string    `json:"contentType"`
	Size        int       `json:"size"`
	Inline      bool      `json:"inline"`
}

// EvidenceDownload is the payload released by Consume.
type EvidenceDownload struct {
	models.EvidenceFile
	Folio  string
	Inline bool
}

type evidenceEntry struct {
	folio  string
	file   models.EvidenceFile
	inline bool
	timer  *time.Timer
}

// EvidenceService holds fetched evidence in memory behind signed single-use handles.
type EvidenceService struct {
	backend evidenceBackend
	signer  *storage.HandleSigner
	metrics *MetricsService
	logger  *zap.Logger

	mu      sync.Mutex
	handles map[string]*evidenceEntry
}

// NewEvidenceService constructs the viewer.
func NewEvidenceService(backend evidenceBackend, signer *storage.HandleSigner, metrics *MetricsService, logger *zap.Logger) *EvidenceService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &EvidenceService{
		backend: backend,
		signer:  signer,
		metrics: metrics,
		logger:  logger,
		handles: make(map[string]*evidenceEntry),
	}
}

// Open fetches the evidence of folio and parks it behind a handle that expires after the signer TTL.
func (s *EvidenceService) Open(ctx context.Context, actor models.Actor, folio string, inline bool) (*EvidenceHandle, error) {
	folio = strings.TrimSpace(folio)
	if folio == "" {
		return nil, appErrors.Clone(appErrors.ErrValidation, "folio is required")
	}
	file, err := s.backend.GetEvidence(ctx, folio, inline)
	if err != nil {
		return nil, err
	}
	if len(file.Content) == 0 {
		return nil, appErrors.Clone(appErrors.ErrNotFound, fmt.Sprintf("folio %s has no evidence on file", folio))
	}

	id := uuid.NewString()
	token, expiresAt, err := s.signer.Generate(id, folio)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "sign evidence handle")
	}

	entry := &evidenceEntry{folio: folio, file: file, inline: inline}
	s.mu.Lock()
	entry.timer = time.AfterFunc(s.signer.TTL(), func() { s.revoke(id, "expired") })
	s.handles[id] = entry
	open := len(s.handles)
	s.mu.Unlock()
	s.metrics.SetEvidenceHandles(open)

	s.logger.Debug("evidence handle opened",
		zap.String("folio", folio),
		zap.String("actor_id", actor.UserID),
		zap.Time("expires_at", expiresAt),
	)
	return &EvidenceHandle{
		Token:       token,
		ExpiresAt:   expiresAt,
		Filename:    file.Filename,
		ContentType: file.ContentType,
		Size:        len(file.Content),
		Inline:      inline,
	}, nil
}

// Consume releases the evidence behind token exactly once.
func (s *EvidenceService) Consume(token string) (*EvidenceDownload, error) {
	id, folio, _, err := s.signer.Parse(token)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrNotFound.Code, appErrors.ErrNotFound.Status, "evidence handle expired or unknown")
	}

	s.mu.Lock()
	entry, ok := s.handles[id]
	if ok && entry.folio == folio {
		delete(s.handles, id)
		entry.timer.Stop()
	}
	open := len(s.handles)
	s.mu.Unlock()

	if !ok || entry.folio != folio {
		return nil, appErrors.Clone(appErrors.ErrNotFound, "evidence handle expired or unknown")
	}
	s.metrics.SetEvidenceHandles(open)
	return &EvidenceDownload{EvidenceFile: entry.file, Folio: entry.folio, Inline: entry.inline}, nil
}

// OpenHandles returns the number of live handles.
func (s *EvidenceService) OpenHandles() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.handles)
}

// Close revokes every handle.
func (s *EvidenceService) Close() {
	s.mu.Lock()
	for id, entry := range s.handles {
		entry.timer.Stop()
		delete(s.handles, id)
	}
	s.mu.Unlock()
	s.metrics.SetEvidenceHandles(0)
}

func (s *EvidenceService) revoke(id, reason string) {
	s.mu.Lock()
	entry, ok := s.handles[id]
	if ok {
		delete(s.handles, id)
	}
	open := len(s.handles)
	s.mu.Unlock()
	if !ok {
		return
	}
	s.metrics.SetEvidenceHandles(open)
	s.logger.Debug("evidence handle revoked", zap.String("folio", entry.folio), zap.String("reason", reason))
}
