package service

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/noah-isme/tramites-gateway/internal/backend"
	"github.com/noah-isme/tramites-gateway/internal/models"
	"github.com/noah-isme/tramites-gateway/internal/repository"
	"github.com/noah-isme/tramites-gateway/pkg/jobs"
	appErrors "github.com/noah-isme/tramites-gateway/pkg/errors"
)

type recordingQueue struct {
	jobs []jobs.Job
	err  error
}

func (q *recordingQueue) Enqueue(job jobs.Job) error {
	if q.err != nil {
		return q.err
	}
	q.jobs = append(q.jobs, job)
	return nil
}

func reconcileFixture(t *testing.T) (*fakeBackend, *repository.WorklistRepository, []models.Tramite) {
	t.Helper()
	at := time.Date(2025, 3, 3, 9, 0, 0, 0, time.UTC)
	records := []models.Tramite{
		{Folio: "F-1", StatusID: models.StatusAssigned, AssignedTo: "A1", AssignedAt: &at},
		{Folio: "F-2", StatusID: models.StatusAssigned, AssignedTo: "A2", AssignedAt: &at, AssignedBy: "L1"},
		{Folio: "F-3", StatusID: models.StatusReceived},
	}
	b := newFakeBackend(records...)
	b.history["F-1"] = []models.HistoryEvent{
		{FromStatus: "RECEIVED", ToStatus: "ASSIGNED", ChangedBy: "L9", ChangedAt: at.Add(-time.Hour)},
		{FromStatus: "ASSIGNED", ToStatus: "RECEIVED", ChangedBy: "L9", ChangedAt: at.Add(-30 * time.Minute)},
		{FromStatus: "RECEIVED", ToStatus: "Asignado", ChangedBy: "L1", ChangedAt: at},
	}
	worklist := repository.NewWorklistRepository()
	return b, worklist, worklist.UpsertAll(records)
}

func TestReconcileBackfillsOnlyEligibleRecordsOncePerSession(t *testing.T) {
	b, worklist, records := reconcileFixture(t)
	svc := NewReconciliationService(b, worklist, nil)
	ctx := context.Background()

	require.Equal(t, 1, svc.Reconcile(ctx, leader(), records))
	require.Equal(t, 1, b.fullCalls["F-1"])
	require.Zero(t, b.fullCalls["F-2"])
	require.Zero(t, b.fullCalls["F-3"])

	rec, _ := worklist.Get("F-1")
	require.Equal(t, "L1", rec.AssignedBy)

	// same session, stale copies: no refetch
	require.Zero(t, svc.Reconcile(ctx, leader(), records))
	require.Equal(t, 1, b.fullCalls["F-1"])

	svc.ForgetSession(leader().SessionID)
	require.Equal(t, 1, svc.Reconcile(ctx, leader(), records))
	require.Equal(t, 2, b.fullCalls["F-1"])
}

func TestReconcileFailureDoesNotBlockOthers(t *testing.T) {
	at := time.Now()
	records := []models.Tramite{
		{Folio: "F-1", StatusID: models.StatusAssigned, AssignedTo: "A1", AssignedAt: &at},
		{Folio: "F-2", StatusID: models.StatusAssigned, AssignedTo: "A2", AssignedAt: &at},
	}
	b := newFakeBackend(records...)
	b.fullErr["F-1"] = appErrors.Clone(appErrors.ErrNetworkFailure, "boom")
	b.history["F-2"] = []models.HistoryEvent{{ToStatus: "ASSIGNED", ChangedBy: "L2", ChangedAt: at}}
	worklist := repository.NewWorklistRepository()
	records = worklist.UpsertAll(records)

	svc := NewReconciliationService(b, worklist, nil)
	require.Equal(t, 2, svc.Reconcile(context.Background(), leader(), records))

	rec, _ := worklist.Get("F-2")
	require.Equal(t, "L2", rec.AssignedBy)
	rec, _ = worklist.Get("F-1")
	require.Empty(t, rec.AssignedBy)
}

func TestReconcileQueuesJobsWithCallerToken(t *testing.T) {
	b, worklist, records := reconcileFixture(t)
	queue := &recordingQueue{}
	svc := NewReconciliationService(b, worklist, nil, WithReconcileQueue(queue))

	ctx := backend.WithToken(context.Background(), "tok-1")
	require.Zero(t, svc.Reconcile(ctx, leader(), records))
	require.Len(t, queue.jobs, 1)
	require.Zero(t, b.fullCalls["F-1"])

	job := queue.jobs[0]
	require.Equal(t, JobTypeReconcileAssignedBy, job.Type)
	require.Equal(t, "tok-1", job.Payload.(reconcilePayload).Token)

	require.NoError(t, svc.Handle(context.Background(), job))
	rec, _ := worklist.Get("F-1")
	require.Equal(t, "L1", rec.AssignedBy)

	require.Error(t, svc.Handle(context.Background(), jobs.Job{ID: "x", Payload: "nope"}))
}

func TestReconcileFallsBackInlineWhenQueueRejects(t *testing.T) {
	b, worklist, records := reconcileFixture(t)
	svc := NewReconciliationService(b, worklist, nil, WithReconcileQueue(&recordingQueue{err: errors.New("full")}))

	require.Equal(t, 1, svc.Reconcile(context.Background(), leader(), records))
	rec, _ := worklist.Get("F-1")
	require.Equal(t, "L1", rec.AssignedBy)
}

func TestReconcileDropsResultsForEvictedFolios(t *testing.T) {
	b, worklist, records := reconcileFixture(t)
	worklist.Track("s-gone", "F-1")
	worklist.ForgetSession("s-gone")
	svc := NewReconciliationService(b, worklist, nil)

	require.Equal(t, 1, svc.Reconcile(context.Background(), leader(), records))
	_, ok := worklist.Get("F-1")
	require.False(t, ok)
}

func TestReconcileNowIgnoresQueue(t *testing.T) {
	b, worklist, records := reconcileFixture(t)
	queue := &recordingQueue{}
	svc := NewReconciliationService(b, worklist, nil, WithReconcileQueue(queue))

	require.Equal(t, 1, svc.ReconcileNow(context.Background(), leader(), records))
	require.Empty(t, queue.jobs)
	require.Equal(t, 1, b.fullCalls["F-1"])
}
