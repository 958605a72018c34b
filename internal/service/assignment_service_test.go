package service

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/noah-isme/tramites-gateway/internal/models"
	"github.com/noah-isme/tramites-gateway/internal/repository"
	"github.com/noah-isme/tramites-gateway/pkg/config"
	appErrors "github.com/noah-isme/tramites-gateway/pkg/errors"
)

// gatedAssignBackend blocks each Assign call until released, then applies it to the shared fake.
type gatedAssignBackend struct {
	server  *fakeBackend
	started chan struct{}
	release chan struct{}
	result  models.AssignmentResult
	err     error
}

func (g *gatedAssignBackend) Assign(ctx context.Context, folio, assigneeUserID, comment string) (models.AssignmentResult, error) {
	if g.started != nil {
		g.started <- struct{}{}
	}
	if g.release != nil {
		<-g.release
	}
	if g.err != nil {
		return models.AssignmentResult{}, g.err
	}
	g.server.mu.Lock()
	rec := g.server.records[folio]
	rec.StatusID = models.StatusAssigned
	rec.AssignedTo = assigneeUserID
	rec.AssignedToName = g.result.AssigneeName
	g.server.records[folio] = rec
	g.server.mu.Unlock()
	return g.result, nil
}

type assignmentFixture struct {
	svc      *AssignmentService
	worklist *repository.WorklistRepository
	journal  *repository.MemoryAssignmentJournal
	server   *fakeBackend
	gate     *gatedAssignBackend
}

func newAssignmentFixture(t *testing.T, records ...models.Tramite) *assignmentFixture {
	t.Helper()
	server := newFakeBackend(records...)
	tramites, worklist := newTramiteFixture(server)
	_, err := tramites.Search(context.Background(), leader(), models.TramiteFilter{})
	require.NoError(t, err)

	gate := &gatedAssignBackend{server: server}
	journal := repository.NewMemoryAssignmentJournal()
	catalog := NewCatalogService(server, nil, time.Minute, nil)
	policy := NewTransitionPolicy(config.WorkflowConfig{})
	svc := NewAssignmentService(gate, worklist, journal, catalog, tramites, policy, nil)
	return &assignmentFixture{svc: svc, worklist: worklist, journal: journal, server: server, gate: gate}
}

func TestAssignIsOptimisticThenReconciles(t *testing.T) {
	f := newAssignmentFixture(t, models.Tramite{Folio: "F-100", StatusID: models.StatusReceived, SubUnitID: 7})
	f.gate.started = make(chan struct{})
	f.gate.release = make(chan struct{})
	f.gate.result = models.AssignmentResult{AssigneeID: "A1", AssigneeName: "Ana"}

	type outcome struct {
		out models.AssignmentOutcome
		err error
	}
	done := make(chan outcome, 1)
	go func() {
		out, err := f.svc.Assign(context.Background(), leader(), "F-100", "A1", "")
		done <- outcome{out, err}
	}()

	<-f.gate.started
	rec, ok := f.worklist.Get("F-100")
	require.True(t, ok)
	require.Equal(t, models.StatusAssigned, rec.StatusID)
	require.Equal(t, "A1", rec.AssignedTo)
	require.Equal(t, "A1", rec.AssignedToName)
	require.Equal(t, "L1", rec.AssignedBy)
	require.NotNil(t, rec.AssignedAt)
	require.Equal(t, models.AssignmentPending, rec.AssignmentState)

	close(f.gate.release)
	res := <-done
	require.NoError(t, res.err)
	require.Equal(t, models.AssignmentConfirmed, res.out.Operation.State)
	require.Equal(t, "Ana", res.out.Record.AssignedToName)
	require.Equal(t, models.StatusAssigned, res.out.Record.StatusID)
	require.Equal(t, "L1", res.out.Record.AssignedBy)

	op, err := f.svc.AssignmentStatus(context.Background(), "F-100")
	require.NoError(t, err)
	require.Equal(t, models.AssignmentConfirmed, op.State)
}

func TestAssignFailureKeepsSnapshotForRevert(t *testing.T) {
	f := newAssignmentFixture(t, models.Tramite{Folio: "F-200", StatusID: models.StatusReceived})
	f.gate.err = appErrors.Clone(appErrors.ErrNetworkFailure, "analista inactivo")

	_, err := f.svc.Assign(context.Background(), leader(), "F-200", "A1", "")
	require.ErrorIs(t, err, appErrors.ErrNetworkFailure)

	rec, _ := f.worklist.Get("F-200")
	require.Equal(t, models.AssignmentFailed, rec.AssignmentState)
	require.Equal(t, models.StatusAssigned, rec.StatusID)

	op, err := f.svc.AssignmentStatus(context.Background(), "F-200")
	require.NoError(t, err)
	require.Equal(t, models.AssignmentFailed, op.State)
	require.Equal(t, "analista inactivo", *op.ErrorMessage)

	out, err := f.svc.RevertAssignment(context.Background(), leader(), "F-200")
	require.NoError(t, err)
	require.Equal(t, models.StatusReceived, out.Record.StatusID)
	require.Empty(t, out.Record.AssignedTo)
	require.Nil(t, out.Record.AssignedAt)
	require.Equal(t, models.AssignmentReverted, out.Record.AssignmentState)

	_, err = f.svc.RevertAssignment(context.Background(), leader(), "F-200")
	require.ErrorIs(t, err, appErrors.ErrConflict)
}

func TestAssignRejectsBeforeAnyChange(t *testing.T) {
	f := newAssignmentFixture(t,
		models.Tramite{Folio: "F-1", StatusID: models.StatusReceived},
		models.Tramite{Folio: "F-2", StatusID: models.StatusFinalized},
	)
	f.gate.err = appErrors.Clone(appErrors.ErrInternal, "must not be called")

	_, err := f.svc.Assign(context.Background(), analyst("A1"), "F-1", "A2", "")
	require.ErrorIs(t, err, appErrors.ErrForbidden)

	_, err = f.svc.Assign(context.Background(), leader(), "F-1", " ", "")
	require.ErrorIs(t, err, appErrors.ErrValidation)

	_, err = f.svc.Assign(context.Background(), leader(), "F-2", "A1", "")
	require.ErrorIs(t, err, appErrors.ErrInvalidTransition)

	rec, _ := f.worklist.Get("F-1")
	require.Equal(t, models.StatusReceived, rec.StatusID)
	require.Empty(t, rec.AssignmentState)

	_, err = f.svc.AssignmentStatus(context.Background(), "F-1")
	require.ErrorIs(t, err, appErrors.ErrNotFound)
}

func TestStaleAssignmentResultIsDropped(t *testing.T) {
	f := newAssignmentFixture(t, models.Tramite{Folio: "F-300", StatusID: models.StatusReceived})
	f.gate.started = make(chan struct{})
	f.gate.release = make(chan struct{})
	f.gate.result = models.AssignmentResult{AssigneeID: "A1", AssigneeName: "Ana"}

	done := make(chan models.AssignmentOutcome, 1)
	go func() {
		out, _ := f.svc.Assign(context.Background(), leader(), "F-300", "A1", "")
		done <- out
	}()
	<-f.gate.started
	f.svc.setLatest("F-300", "newer-op")
	close(f.gate.release)

	out := <-done
	require.Equal(t, models.AssignmentConfirmed, out.Operation.State)
	rec, _ := f.worklist.Get("F-300")
	require.Equal(t, "A1", rec.AssignedToName)
	require.Equal(t, models.AssignmentPending, rec.AssignmentState)
}
