package service

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/noah-isme/tramites-gateway/internal/models"
	appErrors "github.com/noah-isme/tramites-gateway/pkg/errors"
	"github.com/noah-isme/tramites-gateway/pkg/storage"
)

func evidenceFixture(ttl time.Duration) (*EvidenceService, *fakeBackend) {
	b := newFakeBackend()
	b.evidence["F-1"] = models.EvidenceFile{Filename: "oficio.pdf", ContentType: "application/pdf", Content: []byte("%PDF-1.4")}
	svc := NewEvidenceService(b, storage.NewHandleSigner("secret", ttl), NewMetricsService(), nil)
	return svc, b
}

func TestEvidenceHandleIsSingleUse(t *testing.T) {
	svc, _ := evidenceFixture(time.Minute)
	defer svc.Close()

	handle, err := svc.Open(context.Background(), leader(), "F-1", true)
	require.NoError(t, err)
	require.Equal(t, "oficio.pdf", handle.Filename)
	require.Equal(t, 8, handle.Size)
	require.Equal(t, 1, svc.OpenHandles())

	download, err := svc.Consume(handle.Token)
	require.NoError(t, err)
	require.Equal(t, []byte("%PDF-1.4"), download.Content)
	require.Equal(t, "F-1", download.Folio)
	require.True(t, download.Inline)
	require.Zero(t, svc.OpenHandles())

	_, err = svc.Consume(handle.Token)
	require.ErrorIs(t, err, appErrors.ErrNotFound)
}

func TestEvidenceHandleExpires(t *testing.T) {
	svc, _ := evidenceFixture(30 * time.Millisecond)
	defer svc.Close()

	_, err := svc.Open(context.Background(), leader(), "F-1", false)
	require.NoError(t, err)
	require.Eventually(t, func() bool { return svc.OpenHandles() == 0 }, time.Second, 10*time.Millisecond)
}

func TestEvidenceRejectsTamperedAndMissing(t *testing.T) {
	svc, _ := evidenceFixture(time.Minute)
	defer svc.Close()

	handle, err := svc.Open(context.Background(), leader(), "F-1", false)
	require.NoError(t, err)
	_, err = svc.Consume(handle.Token + "00")
	require.ErrorIs(t, err, appErrors.ErrNotFound)
	require.Equal(t, 1, svc.OpenHandles())

	_, err = svc.Open(context.Background(), leader(), "F-404", false)
	require.ErrorIs(t, err, appErrors.ErrNotFound)

	_, err = svc.Open(context.Background(), leader(), " ", false)
	require.ErrorIs(t, err, appErrors.ErrValidation)
}
