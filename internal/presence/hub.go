package presence

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/pathcollab/pathcollab/internal/session"
)

// SlideDescriber resolves a slide id to the geometry the session store
// needs (dimensions, tile size, level count), consumed by
// create_session and change_slide. internal/slide provides the real
// implementation; the hub only depends on this narrow interface.
type SlideDescriber interface {
	Describe(ctx context.Context, slideID string) (session.SlideDescriptor, error)
}

// Config holds the presence hub's tunables, sourced from
// internal/config at wiring time.
type Config struct {
	MaxFollowers int
	MaxDuration  time.Duration
	GracePeriod  time.Duration
	CursorHz     int
	FollowerHz   int
}

// Hub is the presence and broadcast core: it holds every connection
// bound to each live session, dispatches inbound client messages
// against the session store, and drives the per-session coalescers
// that rate-limit outbound cursor and viewport deltas.
type Hub struct {
	sessions  *session.Store
	describer SlideDescriber
	cfg       Config
	now       func() time.Time

	mu         sync.Mutex
	conns      map[session.ID]map[*Connection]struct{}
	coalescers map[session.ID]*sessionCoalescer
}

// NewHub builds a Hub over store, describer, and cfg.
func NewHub(store *session.Store, describer SlideDescriber, cfg Config) *Hub {
	return &Hub{
		sessions:   store,
		describer:  describer,
		cfg:        cfg,
		now:        time.Now,
		conns:      make(map[session.ID]map[*Connection]struct{}),
		coalescers: make(map[session.ID]*sessionCoalescer),
	}
}

// HandleInbound dispatches one client message against conn's current
// state, per the message-handling state machine.
func (h *Hub) HandleInbound(ctx context.Context, conn *Connection, raw []byte) {
	var env envelope
	if err := json.Unmarshal(raw, &env); err != nil {
		h.sendError(conn, 0, "bad_request", "malformed message envelope")
		return
	}

	switch env.Type {
	case msgCreateSession:
		h.handleCreateSession(ctx, conn, raw, env)
	case msgJoinSession:
		h.handleJoinSession(conn, raw, env)
	case msgPresenterAuth:
		h.handlePresenterAuth(conn, raw, env)
	case msgCursorUpdate:
		h.handleCursorUpdate(conn, raw, env)
	case msgViewportUpdate:
		h.handleViewportUpdate(conn, raw, env)
	case msgLayerUpdate:
		h.handleLayerUpdate(conn, raw, env)
	case msgSnapToPresenter:
		h.handleSnapToPresenter(conn, env)
	case msgChangeSlide:
		h.handleChangeSlide(ctx, conn, raw, env)
	case msgPing:
		h.handlePing(conn, env)
	default:
		h.sendError(conn, env.Seq, "unknown_type", "unrecognized message type "+env.Type)
	}
}

// Disconnect removes conn from its session (if bound), broadcasts its
// departure, and closes its mailbox. It implements the "Any -> close
// -> remove from session" row of the state table and the cancellation
// contract: closing a connection always triggers participant removal.
func (h *Hub) Disconnect(conn *Connection) {
	b := conn.binding()
	if !b.bound {
		conn.Mailbox().Close()
		return
	}

	wasPresenter, err := h.sessions.RemoveParticipant(b.sessionID, b.participantID, h.cfg.GracePeriod)
	h.unregister(b.sessionID, conn)
	conn.Mailbox().Close()
	if err != nil {
		return
	}

	h.bufferRemoved(b.sessionID, b.participantID)
	h.broadcastAll(b.sessionID, marshal(participantLeftMsg{
		Type: msgParticipantLeft, ServerTS: h.nowMillis(),
		ParticipantID: b.participantID.String(), WasPresenter: wasPresenter,
	}))
}

// BroadcastOverlayLoaded notifies every member of id that an overlay
// finished uploading and deriving. Called by the HTTP layer after a
// successful overlay upload (§4.2's "broadcasts OverlayLoaded").
func (h *Hub) BroadcastOverlayLoaded(id session.ID, overlayID, contentSHA256 string, cellCount, tileCount int) {
	h.broadcastAll(id, marshal(overlayLoadedMsg{
		Type: msgOverlayLoaded, OverlayID: overlayID, ContentSHA256: contentSHA256,
		CellCount: cellCount, TileCount: tileCount, ServerTS: h.nowMillis(),
	}))
}

// RunCleanupLoop periodically sweeps expired sessions out of the store
// and ends their hub-side bookkeeping, until ctx is canceled.
func (h *Hub) RunCleanupLoop(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			for _, exp := range h.sessions.CleanupExpired() {
				h.endSession(exp.ID, exp.Reason)
			}
		}
	}
}

func (h *Hub) endSession(id session.ID, reason string) {
	h.mu.Lock()
	conns := h.conns[id]
	targets := make([]*Connection, 0, len(conns))
	for c := range conns {
		targets = append(targets, c)
	}
	delete(h.conns, id)
	if c := h.coalescers[id]; c != nil {
		c.stop()
		delete(h.coalescers, id)
	}
	h.mu.Unlock()

	data := marshal(sessionEndedMsg{Type: msgSessionEnded, Reason: reason})
	for _, c := range targets {
		c.Mailbox().TrySend(data)
		c.Mailbox().Close()
	}
}

func (h *Hub) handleCreateSession(ctx context.Context, conn *Connection, raw []byte, env envelope) {
	var msg createSessionMsg
	if err := json.Unmarshal(raw, &msg); err != nil {
		h.sendError(conn, env.Seq, "bad_request", "malformed create_session")
		return
	}

	descriptor, err := h.describer.Describe(ctx, msg.SlideID)
	if err != nil {
		h.sendError(conn, env.Seq, "slide_not_found", err.Error())
		return
	}

	snap, joinSecret, presenterKey, err := h.sessions.Create(descriptor, h.cfg.MaxDuration)
	if err != nil {
		h.sendError(conn, env.Seq, errorCode(err), err.Error())
		return
	}

	presenter := snap.Participants[0]
	conn.bind(snap.ID, presenter.ID, presenter.Role)
	h.register(snap.ID, conn)

	conn.Mailbox().TrySend(marshal(sessionCreatedMsg{
		Type: msgSessionCreated, AckSeq: env.Seq, ServerTS: h.nowMillis(),
		SessionID: string(snap.ID), JoinSecret: joinSecret, PresenterKey: presenterKey,
		Rev: snap.Rev, Self: toWireParticipant(presenter),
		Participants: toWireParticipants(snap.Participants), Slide: toWireSlide(snap.Slide),
	}))
	conn.Mailbox().TrySend(marshal(h.qosProfile()))
}

func (h *Hub) handleJoinSession(conn *Connection, raw []byte, env envelope) {
	var msg joinSessionMsg
	if err := json.Unmarshal(raw, &msg); err != nil {
		h.sendError(conn, env.Seq, "bad_request", "malformed join_session")
		return
	}

	id := session.ID(msg.SessionID)
	snap, participant, err := h.sessions.Join(id, msg.JoinSecret, h.cfg.MaxFollowers)
	if errors.Is(err, session.ErrPresenterLeft) {
		// The presenter never reclaimed within the grace period: the
		// session is over, not merely rejecting this join. A joiner gets
		// the same session_ended a still-connected participant would
		// have received when the grace period lapsed, not a session_error.
		conn.Mailbox().TrySend(marshal(sessionEndedMsg{Type: msgSessionEnded, Reason: "presenter_left"}))
		return
	}
	if err != nil {
		h.sendError(conn, env.Seq, errorCode(err), err.Error())
		return
	}

	conn.bind(id, participant.ID, participant.Role)
	h.register(id, conn)

	conn.Mailbox().TrySend(marshal(sessionJoinedMsg{
		Type: msgSessionJoined, AckSeq: env.Seq, ServerTS: h.nowMillis(),
		SessionID: string(id), Rev: snap.Rev, Self: toWireParticipant(participant),
		Participants: toWireParticipants(snap.Participants), Slide: toWireSlide(snap.Slide),
		Presenter: wireViewport{
			CenterX: snap.PresenterView.CenterX, CenterY: snap.PresenterView.CenterY,
			Zoom: snap.PresenterView.Zoom, Timestamp: snap.PresenterView.Timestamp,
		},
	}))
	conn.Mailbox().TrySend(marshal(h.qosProfile()))
	h.broadcastExcept(id, conn, marshal(participantJoinedMsg{
		Type: msgParticipantJoined, ServerTS: h.nowMillis(), Participant: toWireParticipant(participant),
	}))
}

func (h *Hub) handlePresenterAuth(conn *Connection, raw []byte, env envelope) {
	b := conn.binding()
	if !b.bound {
		h.sendError(conn, env.Seq, "not_bound", "must join or create a session first")
		return
	}
	var msg presenterAuthMsg
	if err := json.Unmarshal(raw, &msg); err != nil {
		h.sendError(conn, env.Seq, "bad_request", "malformed presenter_auth")
		return
	}

	// A follower proving the presenter key reclaims the role entirely:
	// ReclaimPresenter always installs a fresh presenter participant, so
	// drop this connection's stale follower record first to avoid
	// leaving a ghost entry in the participant list.
	if b.role != session.RolePresenter {
		h.sessions.RemoveParticipant(b.sessionID, b.participantID, 0)
	}

	_, newParticipant, err := h.sessions.ReclaimPresenter(b.sessionID, msg.PresenterKey)
	if err != nil {
		h.sendError(conn, env.Seq, errorCode(err), err.Error())
		return
	}

	conn.bind(b.sessionID, newParticipant.ID, session.RolePresenter)
	h.sendAck(conn, env.Seq, "ok", "")
	h.broadcastExcept(b.sessionID, conn, marshal(participantJoinedMsg{
		Type: msgParticipantJoined, ServerTS: h.nowMillis(), Participant: toWireParticipant(newParticipant),
	}))
}

func (h *Hub) handleCursorUpdate(conn *Connection, raw []byte, env envelope) {
	b := conn.binding()
	if !b.bound {
		h.sendError(conn, env.Seq, "not_bound", "must join or create a session first")
		return
	}
	var msg cursorUpdateMsg
	if err := json.Unmarshal(raw, &msg); err != nil {
		h.sendError(conn, env.Seq, "bad_request", "malformed cursor_update")
		return
	}
	if err := h.sessions.UpdateCursor(b.sessionID, b.participantID, msg.X, msg.Y); err != nil {
		h.sendError(conn, env.Seq, errorCode(err), err.Error())
		return
	}
	h.bufferCursor(b.sessionID, b.participantID, b.role, msg.X, msg.Y)
	h.sendAck(conn, env.Seq, "ok", "")
}

func (h *Hub) handleViewportUpdate(conn *Connection, raw []byte, env envelope) {
	b := conn.binding()
	if !b.bound {
		h.sendError(conn, env.Seq, "not_bound", "must join or create a session first")
		return
	}
	var msg viewportUpdateMsg
	if err := json.Unmarshal(raw, &msg); err != nil {
		h.sendError(conn, env.Seq, "bad_request", "malformed viewport_update")
		return
	}

	if b.role == session.RolePresenter {
		vp := session.Viewport{CenterX: msg.CenterX, CenterY: msg.CenterY, Zoom: msg.Zoom, Timestamp: h.nowMillis()}
		if _, err := h.sessions.UpdatePresenterViewport(b.sessionID, vp); err != nil {
			h.sendError(conn, env.Seq, errorCode(err), err.Error())
			return
		}
		h.bufferViewport(b.sessionID, vp)
	}
	// A follower's own viewport is local presentation state only; the
	// server does not need to track or rebroadcast it.
	h.sendAck(conn, env.Seq, "ok", "")
}

func (h *Hub) handleLayerUpdate(conn *Connection, raw []byte, env envelope) {
	b := conn.binding()
	if !b.bound {
		h.sendError(conn, env.Seq, "not_bound", "must join or create a session first")
		return
	}
	if b.role != session.RolePresenter {
		h.sendError(conn, env.Seq, "not_presenter", session.ErrNotPresenter.Error())
		return
	}
	var msg layerUpdateMsg
	if err := json.Unmarshal(raw, &msg); err != nil {
		h.sendError(conn, env.Seq, "bad_request", "malformed layer_update")
		return
	}
	vis := session.LayerVisibility{Cells: msg.Cells, Tissue: msg.Tissue}
	if _, err := h.sessions.UpdateLayerVisibility(b.sessionID, vis); err != nil {
		h.sendError(conn, env.Seq, errorCode(err), err.Error())
		return
	}
	h.sendAck(conn, env.Seq, "ok", "")
	h.broadcastAll(b.sessionID, marshal(layerStateMsg{
		Type: msgLayerState, Cells: msg.Cells, Tissue: msg.Tissue, ServerTS: h.nowMillis(),
	}))
}

func (h *Hub) handleSnapToPresenter(conn *Connection, env envelope) {
	b := conn.binding()
	if !b.bound {
		h.sendError(conn, env.Seq, "not_bound", "must join or create a session first")
		return
	}
	snap, err := h.sessions.Get(b.sessionID)
	if err != nil {
		h.sendError(conn, env.Seq, errorCode(err), err.Error())
		return
	}
	conn.Mailbox().TrySend(marshal(presenterViewportMsg{
		Type: msgPresenterViewport, CenterX: snap.PresenterView.CenterX, CenterY: snap.PresenterView.CenterY,
		Zoom: snap.PresenterView.Zoom, ServerTS: h.nowMillis(),
	}))
	h.sendAck(conn, env.Seq, "ok", "")
}

func (h *Hub) handleChangeSlide(ctx context.Context, conn *Connection, raw []byte, env envelope) {
	b := conn.binding()
	if !b.bound {
		h.sendError(conn, env.Seq, "not_bound", "must join or create a session first")
		return
	}
	if b.role != session.RolePresenter {
		h.sendError(conn, env.Seq, "not_presenter", session.ErrNotPresenter.Error())
		return
	}
	var msg changeSlideMsg
	if err := json.Unmarshal(raw, &msg); err != nil {
		h.sendError(conn, env.Seq, "bad_request", "malformed change_slide")
		return
	}
	descriptor, err := h.describer.Describe(ctx, msg.SlideID)
	if err != nil {
		h.sendError(conn, env.Seq, "slide_not_found", err.Error())
		return
	}
	if _, err := h.sessions.ChangeSlide(b.sessionID, descriptor); err != nil {
		h.sendError(conn, env.Seq, errorCode(err), err.Error())
		return
	}
	h.sendAck(conn, env.Seq, "ok", "")
	h.broadcastAll(b.sessionID, marshal(slideChangedMsg{
		Type: msgSlideChanged, Slide: toWireSlide(descriptor), ServerTS: h.nowMillis(),
	}))
}

func (h *Hub) handlePing(conn *Connection, env envelope) {
	conn.Mailbox().TrySend(marshal(pongMsg{Type: msgPong, ServerTS: h.nowMillis()}))
	h.sendAck(conn, env.Seq, "ok", "")
}

func (h *Hub) qosProfile() qosProfileMsg {
	return qosProfileMsg{
		Type: msgQosProfile, CursorHz: h.cfg.CursorHz, ViewportHz: h.cfg.FollowerHz,
		MailboxCapacity: MailboxCapacity,
	}
}

func (h *Hub) register(id session.ID, conn *Connection) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.conns[id] == nil {
		h.conns[id] = make(map[*Connection]struct{})
	}
	h.conns[id][conn] = struct{}{}
	if h.coalescers[id] == nil {
		h.coalescers[id] = newSessionCoalescer(h, id, h.cfg.CursorHz, h.cfg.FollowerHz)
	}
}

func (h *Hub) unregister(id session.ID, conn *Connection) {
	h.mu.Lock()
	defer h.mu.Unlock()
	set := h.conns[id]
	delete(set, conn)
	if len(set) == 0 {
		delete(h.conns, id)
		if c := h.coalescers[id]; c != nil {
			c.stop()
			delete(h.coalescers, id)
		}
	}
}

func (h *Hub) bufferCursor(id session.ID, participantID uuid.UUID, role session.Role, x, y float64) {
	h.mu.Lock()
	c := h.coalescers[id]
	h.mu.Unlock()
	if c != nil {
		c.bufferCursor(participantID, role, x, y)
	}
}

func (h *Hub) bufferViewport(id session.ID, vp session.Viewport) {
	h.mu.Lock()
	c := h.coalescers[id]
	h.mu.Unlock()
	if c != nil {
		c.bufferViewport(vp)
	}
}

func (h *Hub) bufferRemoved(id session.ID, participantID uuid.UUID) {
	h.mu.Lock()
	c := h.coalescers[id]
	h.mu.Unlock()
	if c != nil {
		c.bufferRemoved(participantID)
	}
}

func (h *Hub) emitPresenceDelta(id session.ID, changed map[uuid.UUID]cursorPending, removed []uuid.UUID) {
	wireChanged := make(map[string]cursorEntry, len(changed))
	for pid, c := range changed {
		wireChanged[pid.String()] = cursorEntry{X: c.x, Y: c.y}
	}
	wireRemoved := make([]string, len(removed))
	for i, r := range removed {
		wireRemoved[i] = r.String()
	}
	h.broadcastAll(id, marshal(presenceDeltaMsg{
		Type: msgPresenceDelta, Changed: wireChanged, Removed: wireRemoved, ServerTS: h.nowMillis(),
	}))
}

func (h *Hub) emitPresenterViewport(id session.ID, vp session.Viewport) {
	h.broadcastToFollowers(id, marshal(presenterViewportMsg{
		Type: msgPresenterViewport, CenterX: vp.CenterX, CenterY: vp.CenterY, Zoom: vp.Zoom, ServerTS: h.nowMillis(),
	}))
}

func (h *Hub) broadcastAll(id session.ID, data []byte) {
	for _, c := range h.snapshotConns(id, nil) {
		c.Mailbox().TrySend(data)
	}
}

func (h *Hub) broadcastExcept(id session.ID, except *Connection, data []byte) {
	for _, c := range h.snapshotConns(id, except) {
		c.Mailbox().TrySend(data)
	}
}

func (h *Hub) broadcastToFollowers(id session.ID, data []byte) {
	for _, c := range h.snapshotConns(id, nil) {
		if c.binding().role == session.RoleFollower {
			c.Mailbox().TrySend(data)
		}
	}
}

func (h *Hub) snapshotConns(id session.ID, except *Connection) []*Connection {
	h.mu.Lock()
	defer h.mu.Unlock()
	conns := h.conns[id]
	targets := make([]*Connection, 0, len(conns))
	for c := range conns {
		if c != except {
			targets = append(targets, c)
		}
	}
	return targets
}

func (h *Hub) sendAck(conn *Connection, seq uint64, status, reason string) {
	conn.Mailbox().TrySend(marshal(ackMsg{Type: msgAck, AckSeq: seq, Status: status, Reason: reason}))
}

// sendError reports a terminal failure for one inbound message: a
// session_error naming the failure, followed by the Ack{status:
// rejected} every terminal handling owes the sender (spec §7).
func (h *Hub) sendError(conn *Connection, seq uint64, code, message string) {
	conn.Mailbox().TrySend(marshal(sessionErrorMsg{Type: msgSessionError, AckSeq: seq, Code: code, Message: message}))
	h.sendAck(conn, seq, "rejected", message)
}

func (h *Hub) nowMillis() int64 { return h.now().UnixMilli() }

func toWireParticipant(p session.Participant) wireParticipant {
	return wireParticipant{
		ID: p.ID.String(), Name: p.Name, Color: p.Color,
		Role: p.Role.String(), ConnectedAt: p.ConnectedAt,
	}
}

func toWireParticipants(ps []session.Participant) []wireParticipant {
	out := make([]wireParticipant, len(ps))
	for i, p := range ps {
		out[i] = toWireParticipant(p)
	}
	return out
}

func toWireSlide(s session.SlideDescriptor) wireSlide {
	return wireSlide{
		SlideID: s.SlideID, Width: s.Width, Height: s.Height,
		TileSize: s.TileSize, LevelCount: s.LevelCount, TileURLTempl: s.TileURLTempl,
	}
}

func errorCode(err error) string {
	switch {
	case errors.Is(err, session.ErrNotFound):
		return "not_found"
	case errors.Is(err, session.ErrSessionExpired):
		return "session_expired"
	case errors.Is(err, session.ErrPresenterLeft):
		return "presenter_left"
	case errors.Is(err, session.ErrSessionLocked):
		return "session_locked"
	case errors.Is(err, session.ErrInvalidJoinSecret):
		return "invalid_join_secret"
	case errors.Is(err, session.ErrInvalidPresenterKey):
		return "invalid_presenter_key"
	case errors.Is(err, session.ErrSessionFull):
		return "session_full"
	case errors.Is(err, session.ErrParticipantNotFound):
		return "participant_not_found"
	case errors.Is(err, session.ErrNotPresenter):
		return "not_presenter"
	case errors.Is(err, session.ErrTooManySessions):
		return "too_many_sessions"
	default:
		return "internal_error"
	}
}
