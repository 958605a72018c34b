package repository

import (
	"sync"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/tramites-gateway/internal/models"
)

func TestWorklistDebtDraftsArePerSession(t *testing.T) {
	repo := NewWorklistRepository()
	repo.Upsert(models.Tramite{Folio: "F-1", StatusID: models.StatusInProcess})

	draft, ok := repo.EditDebtDraft("s-a", "F-1", func(d *models.DebtDraft) {
		d.InDebt = true
		d.DebtAmount = decimal.NewFromInt(250)
	})
	require.True(t, ok)
	require.True(t, draft.InDebt)

	shared := repo.Upsert(models.Tramite{Folio: "F-1", StatusID: models.StatusInProcess})
	require.False(t, shared.InDebt)
	require.False(t, shared.DebtEdited)

	_, ok = repo.DebtDraft("s-b", "F-1")
	require.False(t, ok)
	draft, ok = repo.DebtDraft("s-a", "F-1")
	require.True(t, ok)
	require.Equal(t, "250", draft.DebtAmount.String())

	view := shared
	draft.Apply(&view)
	require.True(t, view.InDebt)
	require.True(t, view.DebtEdited)

	finalized := repo.Upsert(models.Tramite{Folio: "F-1", StatusID: models.StatusFinalized})
	draft.Apply(&finalized)
	require.False(t, finalized.InDebt)

	repo.ClearDebtDraft("s-a", "F-1")
	_, ok = repo.DebtDraft("s-a", "F-1")
	require.False(t, ok)

	_, ok = repo.EditDebtDraft("s-a", "missing", func(d *models.DebtDraft) {})
	require.False(t, ok)
}

func TestWorklistUpsertNeverEmptiesAssignment(t *testing.T) {
	repo := NewWorklistRepository()
	at := time.Date(2025, 1, 2, 10, 0, 0, 0, time.UTC)
	repo.Upsert(models.Tramite{Folio: "F-1", StatusID: models.StatusAssigned, AssignedTo: "A1", AssignedToName: "Ana", AssignedAt: &at})
	repo.Update("F-1", func(t *models.Tramite) {
		t.AssignedBy = "L1"
		t.AssignedByName = "Lucía"
	})

	merged := repo.Upsert(models.Tramite{Folio: "F-1", StatusID: models.StatusAssigned, AssignedTo: "A1"})
	require.Equal(t, "Ana", merged.AssignedToName)
	require.Equal(t, "L1", merged.AssignedBy)
	require.Equal(t, &at, merged.AssignedAt)

	reassigned := repo.Upsert(models.Tramite{Folio: "F-1", StatusID: models.StatusAssigned, AssignedTo: "A2", AssignedToName: "Beto"})
	require.Equal(t, "Beto", reassigned.AssignedToName)
	require.Empty(t, reassigned.AssignedBy)
}

func TestWorklistAssigneeInvariant(t *testing.T) {
	repo := NewWorklistRepository()
	rec := repo.Upsert(models.Tramite{Folio: "F-1", StatusID: models.StatusReceived, AssignedTo: "ghost"})
	require.Empty(t, rec.AssignedTo)

	updated, ok := repo.Update("F-1", func(t *models.Tramite) {
		t.StatusID = models.StatusAssigned
		t.AssignedTo = "A1"
	})
	require.True(t, ok)
	require.Equal(t, "A1", updated.AssignedTo)
}

func TestWorklistPendingAssignmentSurvivesStaleListing(t *testing.T) {
	repo := NewWorklistRepository()
	repo.Upsert(models.Tramite{Folio: "F-1", StatusID: models.StatusReceived})
	repo.Update("F-1", func(t *models.Tramite) {
		t.StatusID = models.StatusAssigned
		t.AssignedTo = "A1"
		t.AssignmentState = models.AssignmentPending
	})

	merged := repo.Upsert(models.Tramite{Folio: "F-1", StatusID: models.StatusReceived})
	require.Equal(t, models.StatusAssigned, merged.StatusID)
	require.Equal(t, "A1", merged.AssignedTo)
	require.Equal(t, models.AssignmentPending, merged.AssignmentState)
}

func TestWorklistUpdateIgnoresEvictedFolios(t *testing.T) {
	repo := NewWorklistRepository()
	repo.Upsert(models.Tramite{Folio: "F-1"})
	repo.Track("s-a", "F-1")
	require.Equal(t, 1, repo.ForgetSession("s-a"))

	_, ok := repo.Update("F-1", func(t *models.Tramite) { t.StatusID = models.StatusAssigned })
	require.False(t, ok)
	_, ok = repo.Get("F-1")
	require.False(t, ok)
}

func TestWorklistForgetSessionKeepsSharedFolios(t *testing.T) {
	repo := NewWorklistRepository()
	repo.UpsertAll([]models.Tramite{{Folio: "F-1"}, {Folio: "F-2"}})
	repo.Track("s-a", "F-1", "F-2")
	repo.Track("s-b", "F-1", "unknown")

	require.Equal(t, 1, repo.ForgetSession("s-a"))
	require.Equal(t, 1, repo.Len())
	_, ok := repo.Get("F-1")
	require.True(t, ok)
	require.Zero(t, repo.ForgetSession("s-a"))
}

func TestWorklistReleasesIdleSessions(t *testing.T) {
	now := time.Date(2025, 1, 1, 8, 0, 0, 0, time.UTC)
	repo := NewWorklistRepository(WithSessionIdleTTL(time.Hour), WithWorklistClock(func() time.Time { return now }))
	repo.UpsertAll([]models.Tramite{{Folio: "F-1"}, {Folio: "F-2"}})
	repo.Track("s-idle", "F-1")
	repo.EditDebtDraft("s-idle", "F-1", func(d *models.DebtDraft) { d.InDebt = true })

	now = now.Add(2 * time.Hour)
	repo.Track("s-live", "F-2")

	_, ok := repo.Get("F-1")
	require.False(t, ok)
	_, ok = repo.DebtDraft("s-idle", "F-1")
	require.False(t, ok)
	require.Equal(t, 1, repo.Len())
}

func TestWorklistConcurrentMerges(t *testing.T) {
	repo := NewWorklistRepository()
	repo.Upsert(models.Tramite{Folio: "F-1", StatusID: models.StatusInProcess})

	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(2)
		go func() {
			defer wg.Done()
			repo.Update("F-1", func(t *models.Tramite) { t.DocsCount++ })
		}()
		go func() {
			defer wg.Done()
			_, _ = repo.Get("F-1")
		}()
	}
	wg.Wait()

	rec, _ := repo.Get("F-1")
	require.Equal(t, 50, rec.DocsCount)
	require.Equal(t, int64(51), rec.Revision)
}

func TestWorklistList(t *testing.T) {
	repo := NewWorklistRepository()
	repo.UpsertAll([]models.Tramite{{Folio: "B"}, {Folio: "A"}})

	listed := repo.List([]string{"B", "missing", "A"})
	require.Len(t, listed, 2)
	require.Equal(t, "B", listed[0].Folio)
	require.Equal(t, 2, repo.Len())
}
