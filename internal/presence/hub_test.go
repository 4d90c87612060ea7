package presence

import (
	"context"
	"encoding/json"
	"fmt"
	"testing"
	"time"

	"github.com/pathcollab/pathcollab/internal/session"
)

type fakeDescriber struct{}

func (fakeDescriber) Describe(_ context.Context, slideID string) (session.SlideDescriptor, error) {
	return session.SlideDescriptor{
		SlideID: slideID, Width: 1000, Height: 800, TileSize: 256, LevelCount: 4,
		TileURLTempl: "/api/slide/" + slideID + "/tile/{level}/{x}/{y}",
	}, nil
}

func testConfig() Config {
	return Config{
		MaxFollowers: 5, MaxDuration: time.Hour, GracePeriod: 50 * time.Millisecond,
		CursorHz: 200, FollowerHz: 100,
	}
}

func recvMessage(t *testing.T, conn *Connection, timeout time.Duration) map[string]any {
	t.Helper()
	select {
	case data := <-conn.Mailbox().Recv():
		var m map[string]any
		if err := json.Unmarshal(data, &m); err != nil {
			t.Fatalf("unmarshal %s: %v", data, err)
		}
		return m
	case <-time.After(timeout):
		t.Fatal("timed out waiting for a message")
		return nil
	}
}

func createTestSession(t *testing.T, hub *Hub) (conn *Connection, sessionID, joinSecret string) {
	t.Helper()
	conn = NewConnection()
	hub.HandleInbound(context.Background(), conn, []byte(`{"type":"create_session","seq":1,"slide_id":"demo"}`))
	created := recvMessage(t, conn, time.Second)
	if created["type"] != "session_created" {
		t.Fatalf("got type %v, want session_created", created["type"])
	}
	recvMessage(t, conn, time.Second) // qos_profile
	return conn, created["session_id"].(string), created["join_secret"].(string)
}

func joinTestSession(t *testing.T, hub *Hub, sessionID, joinSecret string) *Connection {
	t.Helper()
	conn := NewConnection()
	hub.HandleInbound(context.Background(), conn, []byte(fmt.Sprintf(
		`{"type":"join_session","seq":1,"session_id":%q,"join_secret":%q}`, sessionID, joinSecret)))
	joined := recvMessage(t, conn, time.Second)
	if joined["type"] != "session_joined" {
		t.Fatalf("got type %v, want session_joined", joined["type"])
	}
	recvMessage(t, conn, time.Second) // qos_profile
	return conn
}

func TestCreateSessionRespondsWithSnapshotAndSecrets(t *testing.T) {
	hub := NewHub(session.NewStore(10), fakeDescriber{}, testConfig())
	_, sessionID, joinSecret := createTestSession(t, hub)

	if len(sessionID) != 10 {
		t.Errorf("session id %q should be 10 characters", sessionID)
	}
	if joinSecret == "" {
		t.Error("expected a non-empty join secret")
	}
}

func TestJoinSessionNotifiesExistingMembers(t *testing.T) {
	hub := NewHub(session.NewStore(10), fakeDescriber{}, testConfig())
	presenterConn, sessionID, joinSecret := createTestSession(t, hub)

	joinTestSession(t, hub, sessionID, joinSecret)

	notice := recvMessage(t, presenterConn, time.Second)
	if notice["type"] != "participant_joined" {
		t.Fatalf("got %v, want participant_joined", notice["type"])
	}
}

func TestJoinSessionRejectsWrongSecret(t *testing.T) {
	hub := NewHub(session.NewStore(10), fakeDescriber{}, testConfig())
	_, sessionID, _ := createTestSession(t, hub)

	conn := NewConnection()
	hub.HandleInbound(context.Background(), conn, []byte(fmt.Sprintf(
		`{"type":"join_session","seq":1,"session_id":%q,"join_secret":"deadbeef"}`, sessionID)))

	resp := recvMessage(t, conn, time.Second)
	if resp["type"] != "session_error" {
		t.Fatalf("got %v, want session_error", resp["type"])
	}
	if resp["code"] != "invalid_join_secret" {
		t.Errorf("code = %v, want invalid_join_secret", resp["code"])
	}

	ack := recvMessage(t, conn, time.Second)
	if ack["type"] != "ack" || ack["status"] != "rejected" {
		t.Fatalf("got %v, want ack{status:rejected}", ack)
	}
}

func TestCursorUpdateCoalescesIntoPresenceDelta(t *testing.T) {
	hub := NewHub(session.NewStore(10), fakeDescriber{}, testConfig())
	conn, _, _ := createTestSession(t, hub)

	hub.HandleInbound(context.Background(), conn, []byte(`{"type":"cursor_update","seq":2,"x":0.5,"y":0.25}`))

	ack := recvMessage(t, conn, time.Second)
	if ack["type"] != "ack" {
		t.Fatalf("got %v, want ack", ack["type"])
	}

	delta := recvMessage(t, conn, time.Second)
	if delta["type"] != "presence_delta" {
		t.Fatalf("got %v, want presence_delta", delta["type"])
	}
	changed, ok := delta["changed"].(map[string]any)
	if !ok || len(changed) != 1 {
		t.Fatalf("changed = %v, want exactly one entry", delta["changed"])
	}
}

func TestLayerUpdateRejectedForFollower(t *testing.T) {
	hub := NewHub(session.NewStore(10), fakeDescriber{}, testConfig())
	presenterConn, sessionID, joinSecret := createTestSession(t, hub)
	followerConn := joinTestSession(t, hub, sessionID, joinSecret)
	recvMessage(t, presenterConn, time.Second) // participant_joined

	hub.HandleInbound(context.Background(), followerConn, []byte(`{"type":"layer_update","seq":2,"cells":true,"tissue":false}`))

	resp := recvMessage(t, followerConn, time.Second)
	if resp["type"] != "session_error" {
		t.Fatalf("got %v, want session_error", resp["type"])
	}
	if resp["code"] != "not_presenter" {
		t.Errorf("code = %v, want not_presenter", resp["code"])
	}

	ack := recvMessage(t, followerConn, time.Second)
	if ack["type"] != "ack" || ack["status"] != "rejected" {
		t.Fatalf("got %v, want ack{status:rejected}", ack)
	}
}

func TestLayerUpdateByPresenterBroadcastsLayerState(t *testing.T) {
	hub := NewHub(session.NewStore(10), fakeDescriber{}, testConfig())
	presenterConn, sessionID, joinSecret := createTestSession(t, hub)
	followerConn := joinTestSession(t, hub, sessionID, joinSecret)
	recvMessage(t, presenterConn, time.Second) // participant_joined

	hub.HandleInbound(context.Background(), presenterConn, []byte(`{"type":"layer_update","seq":2,"cells":true,"tissue":false}`))

	ack := recvMessage(t, presenterConn, time.Second)
	if ack["type"] != "ack" {
		t.Fatalf("got %v, want ack", ack["type"])
	}
	state := recvMessage(t, followerConn, time.Second)
	if state["type"] != "layer_state" || state["cells"] != true {
		t.Fatalf("got %v, want layer_state with cells=true", state)
	}
}

func TestDisconnectMarksPresenterGraceAndNotifiesFollowers(t *testing.T) {
	store := session.NewStore(10)
	hub := NewHub(store, fakeDescriber{}, testConfig())
	presenterConn, sessionID, joinSecret := createTestSession(t, hub)
	followerConn := joinTestSession(t, hub, sessionID, joinSecret)
	recvMessage(t, presenterConn, time.Second) // participant_joined

	hub.Disconnect(presenterConn)

	left := recvMessage(t, followerConn, time.Second)
	if left["type"] != "participant_left" {
		t.Fatalf("got %v, want participant_left", left["type"])
	}
	if left["was_presenter"] != true {
		t.Errorf("was_presenter = %v, want true", left["was_presenter"])
	}

	snap, err := store.Get(session.ID(sessionID))
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if snap.State != session.StatePresenterDisconnected {
		t.Errorf("state = %v, want PresenterDisconnected", snap.State)
	}
}

func TestJoinAfterGracePeriodLapsesGetsSessionEnded(t *testing.T) {
	cfg := testConfig()
	cfg.GracePeriod = 1 * time.Millisecond
	hub := NewHub(session.NewStore(10), fakeDescriber{}, cfg)
	presenterConn, sessionID, joinSecret := createTestSession(t, hub)

	hub.Disconnect(presenterConn)
	time.Sleep(10 * time.Millisecond)

	conn := NewConnection()
	hub.HandleInbound(context.Background(), conn, []byte(fmt.Sprintf(
		`{"type":"join_session","seq":1,"session_id":%q,"join_secret":%q}`, sessionID, joinSecret)))

	resp := recvMessage(t, conn, time.Second)
	if resp["type"] != "session_ended" {
		t.Fatalf("got %v, want session_ended", resp["type"])
	}
	if resp["reason"] != "presenter_left" {
		t.Errorf("reason = %v, want presenter_left", resp["reason"])
	}
}

func TestPingRepliesWithPongAndAck(t *testing.T) {
	hub := NewHub(session.NewStore(10), fakeDescriber{}, testConfig())
	conn, _, _ := createTestSession(t, hub)

	hub.HandleInbound(context.Background(), conn, []byte(`{"type":"ping","seq":9}`))

	pong := recvMessage(t, conn, time.Second)
	if pong["type"] != "pong" {
		t.Fatalf("got %v, want pong", pong["type"])
	}
	ack := recvMessage(t, conn, time.Second)
	if ack["type"] != "ack" || ack["ack_seq"].(float64) != 9 {
		t.Fatalf("got %v, want ack with ack_seq=9", ack)
	}
}
