package repository

import (
	"sync"
	"time"

	"github.com/noah-isme/tramites-gateway/internal/models"
)

const defaultSessionIdleTTL = 12 * time.Hour

// worklistSession is what one session has loaded plus its unsubmitted debt edits.
type worklistSession struct {
	folios  map[string]struct{}
	drafts  map[string]models.DebtDraft
	touched time.Time
}

// WorklistRepository is the in-memory set of trámites keyed by folio.
// Every write is a merge against the current record under the lock; no caller holds a record between read and write.
// A record stays while at least one live session has loaded it.
type WorklistRepository struct {
	mu       sync.RWMutex
	records  map[string]models.Tramite
	sessions map[string]*worklistSession
	idleTTL  time.Duration
	now      func() time.Time
}

// WorklistOption configures the repository.
type WorklistOption func(*WorklistRepository)

// WithSessionIdleTTL sets how long a session may stay untouched before its folios are released.
func WithSessionIdleTTL(ttl time.Duration) WorklistOption {
	return func(r *WorklistRepository) {
		if ttl > 0 {
			r.idleTTL = ttl
		}
	}
}

// WithWorklistClock overrides the clock used for idle expiry.
func WithWorklistClock(now func() time.Time) WorklistOption {
	return func(r *WorklistRepository) {
		if now != nil {
			r.now = now
		}
	}
}

// NewWorklistRepository constructs an empty worklist.
func NewWorklistRepository(opts ...WorklistOption) *WorklistRepository {
	r := &WorklistRepository{
		records:  make(map[string]models.Tramite),
		sessions: make(map[string]*worklistSession),
		idleTTL:  defaultSessionIdleTTL,
		now:      time.Now,
	}
	for _, opt := range opts {
		if opt != nil {
			opt(r)
		}
	}
	return r
}

// Upsert merges a backend record into the worklist and returns the stored result.
func (r *WorklistRepository) Upsert(incoming models.Tramite) models.Tramite {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.upsertLocked(incoming)
}

// UpsertAll merges a page of backend records, preserving input order in the result.
func (r *WorklistRepository) UpsertAll(incoming []models.Tramite) []models.Tramite {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]models.Tramite, 0, len(incoming))
	for _, rec := range incoming {
		out = append(out, r.upsertLocked(rec))
	}
	return out
}

func (r *WorklistRepository) upsertLocked(incoming models.Tramite) models.Tramite {
	incoming.DebtEdited = false
	existing, ok := r.records[incoming.Folio]
	if !ok {
		incoming.Revision = 1
		enforceAssigneeInvariant(&incoming)
		r.records[incoming.Folio] = incoming
		return incoming
	}
	merged := mergeServerRecord(existing, incoming)
	merged.Revision = existing.Revision + 1
	r.records[merged.Folio] = merged
	return merged
}

// mergeServerRecord lets the server record win, except for local state it cannot know about.
func mergeServerRecord(local, server models.Tramite) models.Tramite {
	merged := server

	if merged.OfficeMemoNumber == "" {
		merged.OfficeMemoNumber = local.OfficeMemoNumber
	}
	if merged.EvidenceRef == "" {
		merged.EvidenceRef = local.EvidenceRef
	}

	if server.StatusID >= models.StatusAssigned {
		if merged.AssignedTo == "" && local.AssignedTo != "" {
			merged.AssignedTo = local.AssignedTo
			merged.AssignedToName = local.AssignedToName
		}
		if merged.AssignedToName == "" && merged.AssignedTo == local.AssignedTo {
			merged.AssignedToName = local.AssignedToName
		}
		if merged.AssignedAt == nil {
			merged.AssignedAt = local.AssignedAt
		}
		if merged.AssignedBy == "" && merged.AssignedTo == local.AssignedTo {
			merged.AssignedBy = local.AssignedBy
			merged.AssignedByName = local.AssignedByName
		}
	}

	// an assignment still in flight outranks a listing fetched before the backend applied it
	if local.AssignmentState == models.AssignmentPending && server.StatusID <= models.StatusAssigned {
		models.SnapshotAssignment(local).Restore(&merged)
	}

	merged.AssignmentState = local.AssignmentState
	merged.AssignmentOpID = local.AssignmentOpID
	enforceAssigneeInvariant(&merged)
	return merged
}

// assignee is set if and only if the status has reached ASSIGNED
func enforceAssigneeInvariant(t *models.Tramite) {
	if t.StatusID >= models.StatusAssigned {
		return
	}
	t.AssignedTo = ""
	t.AssignedToName = ""
	t.AssignedBy = ""
	t.AssignedByName = ""
	t.AssignedAt = nil
}

// Get returns a copy of the record for folio.
func (r *WorklistRepository) Get(folio string) (models.Tramite, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	rec, ok := r.records[folio]
	return rec, ok
}

// Update applies fn to the current record when it is still in the worklist.
// Results arriving for evicted folios are dropped and ok is false.
func (r *WorklistRepository) Update(folio string, fn func(*models.Tramite)) (models.Tramite, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	rec, ok := r.records[folio]
	if !ok {
		return models.Tramite{}, false
	}
	fn(&rec)
	rec.Folio = folio
	rec.DebtEdited = false
	enforceAssigneeInvariant(&rec)
	rec.Revision++
	r.records[folio] = rec
	return rec, true
}

// List returns the requested folios in order, skipping any no longer present.
func (r *WorklistRepository) List(folios []string) []models.Tramite {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]models.Tramite, 0, len(folios))
	for _, folio := range folios {
		if rec, ok := r.records[folio]; ok {
			out = append(out, rec)
		}
	}
	return out
}

// Len reports how many records are held.
func (r *WorklistRepository) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.records)
}

// Track marks folios as loaded by session. Sessions idle past the TTL are released on the way.
func (r *WorklistRepository) Track(session string, folios ...string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.expireIdleLocked()
	sess := r.sessionLocked(session)
	for _, folio := range folios {
		if _, ok := r.records[folio]; ok {
			sess.folios[folio] = struct{}{}
		}
	}
}

// ForgetSession releases everything session loaded. Folios no other session holds are evicted;
// the number evicted is returned.
func (r *WorklistRepository) ForgetSession(session string) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.forgetLocked(session)
}

func (r *WorklistRepository) forgetLocked(session string) int {
	sess, ok := r.sessions[session]
	if !ok {
		return 0
	}
	delete(r.sessions, session)
	evicted := 0
	for folio := range sess.folios {
		if r.heldLocked(folio) {
			continue
		}
		if _, present := r.records[folio]; present {
			delete(r.records, folio)
			evicted++
		}
	}
	return evicted
}

func (r *WorklistRepository) heldLocked(folio string) bool {
	for _, sess := range r.sessions {
		if _, ok := sess.folios[folio]; ok {
			return true
		}
	}
	return false
}

func (r *WorklistRepository) expireIdleLocked() {
	now := r.now()
	for key, sess := range r.sessions {
		if now.Sub(sess.touched) > r.idleTTL {
			r.forgetLocked(key)
		}
	}
}

func (r *WorklistRepository) sessionLocked(session string) *worklistSession {
	sess, ok := r.sessions[session]
	if !ok {
		sess = &worklistSession{
			folios: make(map[string]struct{}),
			drafts: make(map[string]models.DebtDraft),
		}
		r.sessions[session] = sess
	}
	sess.touched = r.now()
	return sess
}

// DebtDraft returns the unsubmitted debt edit session holds for folio.
func (r *WorklistRepository) DebtDraft(session, folio string) (models.DebtDraft, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	sess, ok := r.sessions[session]
	if !ok {
		return models.DebtDraft{}, false
	}
	draft, ok := sess.drafts[folio]
	return draft, ok
}

// EditDebtDraft applies fn to session's draft for folio, seeding it from the stored record.
// Drafts are private to the session; the shared record is never touched.
func (r *WorklistRepository) EditDebtDraft(session, folio string, fn func(*models.DebtDraft)) (models.DebtDraft, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	rec, ok := r.records[folio]
	if !ok {
		return models.DebtDraft{}, false
	}
	sess := r.sessionLocked(session)
	sess.folios[folio] = struct{}{}
	draft, ok := sess.drafts[folio]
	if !ok {
		draft = models.DebtDraft{InDebt: rec.InDebt, DebtAmount: rec.DebtAmount}
	}
	fn(&draft)
	sess.drafts[folio] = draft
	return draft, true
}

// ClearDebtDraft drops session's draft for folio.
func (r *WorklistRepository) ClearDebtDraft(session, folio string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if sess, ok := r.sessions[session]; ok {
		delete(sess.drafts, folio)
	}
}
