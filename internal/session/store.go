package session

import (
	"sync"
	"time"

	"github.com/google/uuid"
)

// Store holds every live session in a single reader-writer-locked map.
// Callers never receive a pointer into the map; every method returns a
// Snapshot, an immutable value copy of the observable state.
type Store struct {
	mu                    sync.RWMutex
	sessions              map[ID]*Session
	maxConcurrentSessions int
	now                   func() time.Time
}

// NewStore builds an empty store. maxConcurrentSessions bounds the
// number of simultaneously live sessions; zero means unbounded.
func NewStore(maxConcurrentSessions int) *Store {
	return &Store{
		sessions:              make(map[ID]*Session),
		maxConcurrentSessions: maxConcurrentSessions,
		now:                   time.Now,
	}
}

// Create installs a new session for slide, with a presenter participant
// already joined. It returns the cleartext join secret and presenter
// key exactly once; they are never recoverable afterward.
func (st *Store) Create(slide SlideDescriptor, maxDuration time.Duration) (Snapshot, string, string, error) {
	st.mu.Lock()
	defer st.mu.Unlock()

	if st.maxConcurrentSessions > 0 && len(st.sessions) >= st.maxConcurrentSessions {
		return Snapshot{}, "", "", ErrTooManySessions
	}

	id, err := NewID()
	if err != nil {
		return Snapshot{}, "", "", err
	}
	for st.sessions[id] != nil {
		if id, err = NewID(); err != nil {
			return Snapshot{}, "", "", err
		}
	}

	joinSecret, err := NewJoinSecret()
	if err != nil {
		return Snapshot{}, "", "", err
	}
	presenterKey, err := NewPresenterKey()
	if err != nil {
		return Snapshot{}, "", "", err
	}
	joinHash, err := hashSecret(joinSecret)
	if err != nil {
		return Snapshot{}, "", "", err
	}
	presenterHash, err := hashSecret(presenterKey)
	if err != nil {
		return Snapshot{}, "", "", err
	}

	name, err := randomDisplayName()
	if err != nil {
		return Snapshot{}, "", "", err
	}

	now := st.now()
	presenterID := uuid.New()
	presenter := &Participant{
		ID:          presenterID,
		Name:        name,
		Color:       colorForIndex(0),
		Role:        RolePresenter,
		ConnectedAt: now.UnixMilli(),
		LastSeenAt:  now.UnixMilli(),
	}

	sess := &Session{
		ID:               id,
		Rev:              1,
		JoinSecretHash:   joinHash,
		PresenterKeyHash: presenterHash,
		CreatedAt:        now,
		ExpiresAt:        now.Add(maxDuration),
		State:            StateActive,
		PresenterID:      presenterID,
		Participants:     map[uuid.UUID]*Participant{presenterID: presenter},
		Slide:            slide,
	}
	st.sessions[id] = sess

	return sess.snapshot(), joinSecret, presenterKey, nil
}

// Join admits a new follower to an active, unlocked session, provided
// joinSecret verifies and the follower count stays within maxFollowers.
func (st *Store) Join(id ID, joinSecret string, maxFollowers int) (Snapshot, Participant, error) {
	st.mu.Lock()
	defer st.mu.Unlock()

	sess, err := st.lookupActive(id)
	if err != nil {
		return Snapshot{}, Participant{}, err
	}
	if sess.Locked {
		return Snapshot{}, Participant{}, ErrSessionLocked
	}
	if !verifySecret(joinSecret, sess.JoinSecretHash) {
		return Snapshot{}, Participant{}, ErrInvalidJoinSecret
	}

	followerCount := 0
	for _, p := range sess.Participants {
		if p.Role == RoleFollower {
			followerCount++
		}
	}
	if followerCount >= maxFollowers {
		return Snapshot{}, Participant{}, ErrSessionFull
	}

	name, err := randomDisplayName()
	if err != nil {
		return Snapshot{}, Participant{}, err
	}

	now := st.now()
	p := &Participant{
		ID:          uuid.New(),
		Name:        name,
		Color:       colorForIndex(len(sess.Participants)),
		Role:        RoleFollower,
		ConnectedAt: now.UnixMilli(),
		LastSeenAt:  now.UnixMilli(),
	}
	sess.Participants[p.ID] = p
	sess.Rev++

	return sess.snapshot(), *p, nil
}

// AuthenticatePresenter verifies presenterKey against the session's
// stored hash. It does not itself reassign the presenter role; callers
// combine this with a role transition once authenticated.
func (st *Store) AuthenticatePresenter(id ID, presenterKey string) error {
	st.mu.RLock()
	defer st.mu.RUnlock()

	sess, err := st.lookupActive(id)
	if err != nil {
		return err
	}
	if !verifySecret(presenterKey, sess.PresenterKeyHash) {
		return ErrInvalidPresenterKey
	}
	return nil
}

// ReclaimPresenter authenticates presenterKey and, on success, installs
// a fresh presenter participant and transitions the session back to
// Active. It is meant for the reconnect-within-grace-period flow, where
// the reconnecting client is a new connection rather than the
// participant record that was just removed.
func (st *Store) ReclaimPresenter(id ID, presenterKey string) (Snapshot, Participant, error) {
	st.mu.Lock()
	defer st.mu.Unlock()

	sess, ok := st.sessions[id]
	if !ok {
		return Snapshot{}, Participant{}, ErrNotFound
	}
	if sess.State == StateExpired {
		return Snapshot{}, Participant{}, ErrSessionExpired
	}
	if !verifySecret(presenterKey, sess.PresenterKeyHash) {
		return Snapshot{}, Participant{}, ErrInvalidPresenterKey
	}

	name, err := randomDisplayName()
	if err != nil {
		return Snapshot{}, Participant{}, err
	}

	now := st.now()
	p := &Participant{
		ID:          uuid.New(),
		Name:        name,
		Color:       colorForIndex(0),
		Role:        RolePresenter,
		ConnectedAt: now.UnixMilli(),
		LastSeenAt:  now.UnixMilli(),
	}
	sess.Participants[p.ID] = p
	sess.PresenterID = p.ID
	sess.State = StateActive
	sess.PresenterDisconnectedAt = time.Time{}
	sess.Rev++

	return sess.snapshot(), *p, nil
}

// Get returns the current snapshot for id.
func (st *Store) Get(id ID) (Snapshot, error) {
	st.mu.RLock()
	defer st.mu.RUnlock()

	sess, err := st.lookupActive(id)
	if err != nil {
		return Snapshot{}, err
	}
	return sess.snapshot(), nil
}

// Exists reports whether id names a currently active session. It
// implements overlay.SessionLookup.
func (st *Store) Exists(id string) bool {
	st.mu.RLock()
	defer st.mu.RUnlock()
	_, err := st.lookupActive(ID(id))
	return err == nil
}

// Count returns the number of sessions currently held in the store,
// active or not yet swept by CleanupExpired.
func (st *Store) Count() int {
	st.mu.RLock()
	defer st.mu.RUnlock()
	return len(st.sessions)
}

// UpdatePresenterViewport records the presenter's authoritative view
// and bumps rev.
func (st *Store) UpdatePresenterViewport(id ID, vp Viewport) (uint64, error) {
	st.mu.Lock()
	defer st.mu.Unlock()

	sess, ok := st.sessions[id]
	if !ok {
		return 0, ErrNotFound
	}
	sess.PresenterView = vp
	sess.Rev++
	return sess.Rev, nil
}

// UpdateLayerVisibility records the presenter-controlled overlay toggle
// state and bumps rev.
func (st *Store) UpdateLayerVisibility(id ID, vis LayerVisibility) (uint64, error) {
	st.mu.Lock()
	defer st.mu.Unlock()

	sess, ok := st.sessions[id]
	if !ok {
		return 0, ErrNotFound
	}
	sess.LayerVisibility = vis
	sess.Rev++
	return sess.Rev, nil
}

// ChangeSlide swaps the session's active slide and bumps rev. Callers
// enforce that only the presenter may invoke this.
func (st *Store) ChangeSlide(id ID, slide SlideDescriptor) (uint64, error) {
	st.mu.Lock()
	defer st.mu.Unlock()

	sess, ok := st.sessions[id]
	if !ok {
		return 0, ErrNotFound
	}
	sess.Slide = slide
	sess.Rev++
	return sess.Rev, nil
}

// UpdateCursor records a participant's latest pointer position. It
// updates LastSeenAt but never bumps rev: cursor motion is presence,
// not session state.
func (st *Store) UpdateCursor(id ID, participantID uuid.UUID, x, y float64) error {
	st.mu.Lock()
	defer st.mu.Unlock()

	sess, ok := st.sessions[id]
	if !ok {
		return ErrNotFound
	}
	p, ok := sess.Participants[participantID]
	if !ok {
		return ErrParticipantNotFound
	}
	now := st.now()
	p.Cursor = Cursor{X: x, Y: y, Valid: true, AtMilli: now.UnixMilli()}
	p.LastSeenAt = now.UnixMilli()
	return nil
}

// RemoveParticipant removes participantID from the session. If the
// removed participant was the presenter, the session enters
// PresenterDisconnected and starts its grace-period clock.
func (st *Store) RemoveParticipant(id ID, participantID uuid.UUID, gracePeriod time.Duration) (wasPresenter bool, err error) {
	st.mu.Lock()
	defer st.mu.Unlock()

	sess, ok := st.sessions[id]
	if !ok {
		return false, ErrNotFound
	}
	if _, ok := sess.Participants[participantID]; !ok {
		return false, ErrParticipantNotFound
	}
	delete(sess.Participants, participantID)
	sess.Rev++

	if participantID == sess.PresenterID {
		sess.State = StatePresenterDisconnected
		sess.PresenterDisconnectedAt = st.now()
		sess.ExpiresAt = minTime(sess.ExpiresAt, sess.PresenterDisconnectedAt.Add(gracePeriod))
		return true, nil
	}
	return false, nil
}

// ExpiredSession names one session CleanupExpired swept out, along
// with why: "presenter_left" if it was removed still
// PresenterDisconnected past its grace period, "expired" otherwise
// (absolute MaxDuration lapsed).
type ExpiredSession struct {
	ID     ID
	Reason string
}

// CleanupExpired removes every session past its absolute expiry or
// past its PresenterDisconnected grace period, returning their ids and
// expiry reasons.
func (st *Store) CleanupExpired() []ExpiredSession {
	st.mu.Lock()
	defer st.mu.Unlock()

	now := st.now()
	var expired []ExpiredSession
	for id, sess := range st.sessions {
		if now.After(sess.ExpiresAt) {
			reason := "expired"
			if sess.State == StatePresenterDisconnected {
				reason = "presenter_left"
			}
			sess.State = StateExpired
			expired = append(expired, ExpiredSession{ID: id, Reason: reason})
			delete(st.sessions, id)
		}
	}
	return expired
}

// lookupActive returns the session for id, translating lifecycle state
// into the NotFound/Expired/PresenterLeft errors callers expect. A
// session still PresenterDisconnected past its grace-period cutoff
// reports ErrPresenterLeft rather than the generic ErrSessionExpired,
// so callers can surface the distinct session_ended{reason:
// "presenter_left"} Scenario 6 calls for. Must be called with st.mu
// held.
func (st *Store) lookupActive(id ID) (*Session, error) {
	sess, ok := st.sessions[id]
	if !ok {
		return nil, ErrNotFound
	}
	if sess.State == StateExpired || st.now().After(sess.ExpiresAt) {
		if sess.State == StatePresenterDisconnected {
			return nil, ErrPresenterLeft
		}
		return nil, ErrSessionExpired
	}
	return sess, nil
}

func minTime(a, b time.Time) time.Time {
	if a.Before(b) {
		return a
	}
	return b
}
