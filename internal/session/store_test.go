package session

import (
	"testing"
	"time"

	"github.com/google/uuid"
)

func testSlide() SlideDescriptor {
	return SlideDescriptor{SlideID: "demo", Width: 100000, Height: 100000, TileSize: 256, LevelCount: 18}
}

func TestCreateReturnsRevOneAndValidID(t *testing.T) {
	st := NewStore(0)
	snap, joinSecret, presenterKey, err := st.Create(testSlide(), 4*time.Hour)
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	if snap.Rev != 1 {
		t.Errorf("Rev = %d, want 1", snap.Rev)
	}
	if !ValidID(string(snap.ID)) {
		t.Errorf("session id %q invalid", snap.ID)
	}
	if joinSecret == "" || presenterKey == "" {
		t.Error("Create must return cleartext secrets")
	}
	if len(snap.Participants) != 1 || snap.Participants[0].Role != RolePresenter {
		t.Errorf("expected single presenter participant, got %+v", snap.Participants)
	}
}

func TestJoinRejectsInvalidSecret(t *testing.T) {
	st := NewStore(0)
	snap, _, _, _ := st.Create(testSlide(), 4*time.Hour)
	if _, _, err := st.Join(snap.ID, "wrong-secret", 20); err != ErrInvalidJoinSecret {
		t.Errorf("Join with wrong secret = %v, want ErrInvalidJoinSecret", err)
	}
}

func TestJoinEnforcesMaxFollowers(t *testing.T) {
	st := NewStore(0)
	snap, joinSecret, _, _ := st.Create(testSlide(), 4*time.Hour)

	const maxFollowers = 2
	for i := 0; i < maxFollowers; i++ {
		if _, _, err := st.Join(snap.ID, joinSecret, maxFollowers); err != nil {
			t.Fatalf("Join #%d: %v", i, err)
		}
	}
	if _, _, err := st.Join(snap.ID, joinSecret, maxFollowers); err != ErrSessionFull {
		t.Errorf("Join beyond max = %v, want ErrSessionFull", err)
	}

	final, err := st.Get(snap.ID)
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if final.FollowerCount() > maxFollowers {
		t.Errorf("FollowerCount = %d, want <= %d", final.FollowerCount(), maxFollowers)
	}
}

func TestRevIsMonotonicAcrossMutations(t *testing.T) {
	st := NewStore(0)
	snap, joinSecret, _, _ := st.Create(testSlide(), 4*time.Hour)
	prev := snap.Rev

	after, _, err := st.Join(snap.ID, joinSecret, 20)
	if err != nil {
		t.Fatalf("Join: %v", err)
	}
	if after.Rev < prev {
		t.Fatalf("rev went backward: %d -> %d", prev, after.Rev)
	}
	prev = after.Rev

	rev, err := st.UpdatePresenterViewport(snap.ID, Viewport{CenterX: 0.5, CenterY: 0.5, Zoom: 1})
	if err != nil {
		t.Fatalf("UpdatePresenterViewport: %v", err)
	}
	if rev < prev {
		t.Fatalf("rev went backward after viewport update: %d -> %d", prev, rev)
	}
	prev = rev

	rev, err = st.UpdateLayerVisibility(snap.ID, LayerVisibility{Cells: true})
	if err != nil {
		t.Fatalf("UpdateLayerVisibility: %v", err)
	}
	if rev < prev {
		t.Fatalf("rev went backward after layer update: %d -> %d", prev, rev)
	}
}

func TestUpdateCursorDoesNotBumpRev(t *testing.T) {
	st := NewStore(0)
	snap, joinSecret, _, _ := st.Create(testSlide(), 4*time.Hour)
	joined, p, _ := st.Join(snap.ID, joinSecret, 20)
	before := joined.Rev

	if err := st.UpdateCursor(snap.ID, p.ID, 0.3, 0.4); err != nil {
		t.Fatalf("UpdateCursor: %v", err)
	}

	after, err := st.Get(snap.ID)
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if after.Rev != before {
		t.Errorf("rev changed after cursor update: %d -> %d", before, after.Rev)
	}
}

func TestAuthenticatePresenterRejectsWrongKey(t *testing.T) {
	st := NewStore(0)
	snap, _, presenterKey, _ := st.Create(testSlide(), 4*time.Hour)

	if err := st.AuthenticatePresenter(snap.ID, "not-the-key"); err != ErrInvalidPresenterKey {
		t.Errorf("AuthenticatePresenter(wrong) = %v, want ErrInvalidPresenterKey", err)
	}
	if err := st.AuthenticatePresenter(snap.ID, presenterKey); err != nil {
		t.Errorf("AuthenticatePresenter(correct) = %v, want nil", err)
	}
}

func TestRemoveParticipantReportsPresenterAndEntersGrace(t *testing.T) {
	st := NewStore(0)
	snap, _, _, _ := st.Create(testSlide(), 4*time.Hour)
	presenterID := snap.PresenterID

	wasPresenter, err := st.RemoveParticipant(snap.ID, presenterID, 30*time.Second)
	if err != nil {
		t.Fatalf("RemoveParticipant: %v", err)
	}
	if !wasPresenter {
		t.Error("wasPresenter = false, want true")
	}

	after, err := st.Get(snap.ID)
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if after.State != StatePresenterDisconnected {
		t.Errorf("State = %v, want StatePresenterDisconnected", after.State)
	}
}

func TestRemoveParticipantUnknownFails(t *testing.T) {
	st := NewStore(0)
	snap, _, _, _ := st.Create(testSlide(), 4*time.Hour)
	if _, err := st.RemoveParticipant(snap.ID, uuid.New(), 30*time.Second); err != ErrParticipantNotFound {
		t.Errorf("RemoveParticipant(unknown) = %v, want ErrParticipantNotFound", err)
	}
}

func TestCleanupExpiredRemovesPastAbsoluteExpiry(t *testing.T) {
	st := NewStore(0)
	snap, _, _, _ := st.Create(testSlide(), 1*time.Millisecond)
	time.Sleep(5 * time.Millisecond)

	expired := st.CleanupExpired()
	if len(expired) != 1 || expired[0].ID != snap.ID || expired[0].Reason != "expired" {
		t.Fatalf("CleanupExpired = %v, want [{%s expired}]", expired, snap.ID)
	}
	if _, err := st.Get(snap.ID); err != ErrNotFound {
		t.Errorf("Get after cleanup = %v, want ErrNotFound", err)
	}
}

func TestCleanupExpiredReportsPresenterLeft(t *testing.T) {
	st := NewStore(0)
	snap, _, _, _ := st.Create(testSlide(), time.Hour)
	presenterID := snap.PresenterID

	if _, err := st.RemoveParticipant(snap.ID, presenterID, 1*time.Millisecond); err != nil {
		t.Fatalf("RemoveParticipant: %v", err)
	}
	time.Sleep(5 * time.Millisecond)

	expired := st.CleanupExpired()
	if len(expired) != 1 || expired[0].ID != snap.ID || expired[0].Reason != "presenter_left" {
		t.Fatalf("CleanupExpired = %v, want [{%s presenter_left}]", expired, snap.ID)
	}
}

func TestJoinAfterGracePeriodLapsesReportsPresenterLeft(t *testing.T) {
	st := NewStore(0)
	snap, joinSecret, _, _ := st.Create(testSlide(), time.Hour)
	presenterID := snap.PresenterID

	if _, err := st.RemoveParticipant(snap.ID, presenterID, 1*time.Millisecond); err != nil {
		t.Fatalf("RemoveParticipant: %v", err)
	}
	time.Sleep(5 * time.Millisecond)

	// The grace period has lapsed but no cleanup sweep has run yet;
	// a join attempt must still see the session as over, not merely
	// rejected.
	if _, _, err := st.Join(snap.ID, joinSecret, 20); err != ErrPresenterLeft {
		t.Errorf("Join after grace period = %v, want ErrPresenterLeft", err)
	}
}

func TestCreateEnforcesMaxConcurrentSessions(t *testing.T) {
	st := NewStore(1)
	if _, _, _, err := st.Create(testSlide(), time.Hour); err != nil {
		t.Fatalf("first Create: %v", err)
	}
	if _, _, _, err := st.Create(testSlide(), time.Hour); err != ErrTooManySessions {
		t.Errorf("second Create = %v, want ErrTooManySessions", err)
	}
}

func TestReclaimPresenterWithinGrace(t *testing.T) {
	st := NewStore(0)
	snap, _, presenterKey, _ := st.Create(testSlide(), time.Hour)
	presenterID := snap.PresenterID

	if _, err := st.RemoveParticipant(snap.ID, presenterID, 30*time.Second); err != nil {
		t.Fatalf("RemoveParticipant: %v", err)
	}

	reclaimed, newPresenter, err := st.ReclaimPresenter(snap.ID, presenterKey)
	if err != nil {
		t.Fatalf("ReclaimPresenter: %v", err)
	}
	if reclaimed.State != StateActive {
		t.Errorf("State after reclaim = %v, want StateActive", reclaimed.State)
	}
	if reclaimed.PresenterID != newPresenter.ID {
		t.Errorf("PresenterID = %v, want %v", reclaimed.PresenterID, newPresenter.ID)
	}
	if newPresenter.ID == presenterID {
		t.Error("reclaiming presenter should be a distinct participant record from the disconnected one")
	}
}
