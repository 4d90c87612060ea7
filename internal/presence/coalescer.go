package presence

import (
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/pathcollab/pathcollab/internal/session"
)

type cursorPending struct {
	x, y float64
	role session.Role
}

// sessionCoalescer buffers one session's pending cursor and presenter
// viewport updates and flushes them on two independent ticks: a
// time.Ticker-driven goroutine reads and clears the buffered state
// behind a mutex, with a done channel for clean shutdown.
//
// Presenter cursor moves flush at cursorHz (the fast path followers
// see); follower cursor moves and presenter viewport changes flush at
// the slower followerHz, matching the "follower cursor updates:
// broadcast at 10 Hz (configurable)" rate policy.
type sessionCoalescer struct {
	hub       *Hub
	sessionID session.ID

	cursorHz   int
	followerHz int

	mu              sync.Mutex
	pendingCursor   map[uuid.UUID]cursorPending
	pendingRemoved  map[uuid.UUID]struct{}
	pendingViewport *session.Viewport

	done chan struct{}
	wg   sync.WaitGroup
}

func newSessionCoalescer(hub *Hub, id session.ID, cursorHz, followerHz int) *sessionCoalescer {
	if cursorHz <= 0 {
		cursorHz = 30
	}
	if followerHz <= 0 {
		followerHz = 10
	}
	c := &sessionCoalescer{
		hub:            hub,
		sessionID:      id,
		cursorHz:       cursorHz,
		followerHz:     followerHz,
		pendingCursor:  make(map[uuid.UUID]cursorPending),
		pendingRemoved: make(map[uuid.UUID]struct{}),
		done:           make(chan struct{}),
	}
	c.wg.Add(2)
	go c.run(time.Second/time.Duration(c.cursorHz), func() { c.flushCursors(session.RolePresenter, true) })
	go c.run(time.Second/time.Duration(c.followerHz), func() { c.flushCursors(session.RoleFollower, false); c.flushViewport() })
	return c
}

func (c *sessionCoalescer) run(period time.Duration, tick func()) {
	defer c.wg.Done()
	ticker := time.NewTicker(period)
	defer ticker.Stop()
	for {
		select {
		case <-c.done:
			return
		case <-ticker.C:
			tick()
		}
	}
}

// flushCursors drains every pending cursor belonging to role, and
// (when drainRemoved is set) the pending removed-participant set, into
// one PresenceDelta broadcast.
func (c *sessionCoalescer) flushCursors(role session.Role, drainRemoved bool) {
	c.mu.Lock()
	var changed map[uuid.UUID]cursorPending
	for id, p := range c.pendingCursor {
		if p.role != role {
			continue
		}
		if changed == nil {
			changed = make(map[uuid.UUID]cursorPending)
		}
		changed[id] = p
		delete(c.pendingCursor, id)
	}
	var removed []uuid.UUID
	if drainRemoved && len(c.pendingRemoved) > 0 {
		removed = make([]uuid.UUID, 0, len(c.pendingRemoved))
		for id := range c.pendingRemoved {
			removed = append(removed, id)
		}
		c.pendingRemoved = make(map[uuid.UUID]struct{})
	}
	c.mu.Unlock()

	if len(changed) == 0 && len(removed) == 0 {
		return
	}
	c.hub.emitPresenceDelta(c.sessionID, changed, removed)
}

func (c *sessionCoalescer) flushViewport() {
	c.mu.Lock()
	vp := c.pendingViewport
	c.pendingViewport = nil
	c.mu.Unlock()

	if vp == nil {
		return
	}
	c.hub.emitPresenterViewport(c.sessionID, *vp)
}

func (c *sessionCoalescer) bufferCursor(participantID uuid.UUID, role session.Role, x, y float64) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.pendingCursor[participantID] = cursorPending{x: x, y: y, role: role}
}

func (c *sessionCoalescer) bufferRemoved(participantID uuid.UUID) {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.pendingCursor, participantID)
	c.pendingRemoved[participantID] = struct{}{}
}

func (c *sessionCoalescer) bufferViewport(vp session.Viewport) {
	c.mu.Lock()
	defer c.mu.Unlock()
	v := vp
	c.pendingViewport = &v
}

func (c *sessionCoalescer) stop() {
	close(c.done)
	c.wg.Wait()
}
