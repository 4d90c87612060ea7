// Package session implements the session and presence core's session
// store: session lifecycle, participant set, revision counter, and
// secret verification. All operations on a single session are atomic;
// the store itself is a map guarded by a reader-writer lock.
package session

import (
	"time"

	"github.com/google/uuid"
)

// ID is a session identifier: 10 characters from the lowercase base32
// alphabet a-z2-7 (the confusable digits 0/1/8/9 are excluded).
type ID string

// Role is a participant's role within a session.
type Role int

const (
	RoleFollower Role = iota
	RolePresenter
)

func (r Role) String() string {
	if r == RolePresenter {
		return "presenter"
	}
	return "follower"
}

// State is the session lifecycle state.
type State int

const (
	StateActive State = iota
	StatePresenterDisconnected
	StateExpired
)

func (s State) String() string {
	switch s {
	case StateActive:
		return "active"
	case StatePresenterDisconnected:
		return "presenter_disconnected"
	default:
		return "expired"
	}
}

// SlideDescriptor is an opaque-to-the-core record identifying a slide
// and the geometry the tile pipeline needs to serve it.
type SlideDescriptor struct {
	SlideID      string
	Width        int
	Height       int
	TileSize     int
	LevelCount   int
	TileURLTempl string
}

// Viewport is the presenter's authoritative view into the slide, in
// slide-normalized coordinates (center in [0,1]).
type Viewport struct {
	CenterX   float64
	CenterY   float64
	Zoom      float64
	Timestamp int64 // ms since Unix epoch
}

// LayerVisibility holds the presenter-controlled overlay toggle flags.
type LayerVisibility struct {
	Cells   bool
	Tissue  bool
}

// Cursor is a participant's last-known pointer position in
// slide-normalized coordinates.
type Cursor struct {
	X, Y    float64
	Valid   bool
	AtMilli int64
}

// Participant is one connected client bound to a session.
type Participant struct {
	ID            uuid.UUID
	Name          string
	Color         string
	Role          Role
	ConnectedAt   int64
	LastSeenAt    int64
	Cursor        Cursor
	Viewport      *Viewport // followers may track their own local viewport
}

// Session is the full authoritative record for one collaborative
// viewing session. All mutation happens through Store methods, which
// hold the Store's mutex for the duration of the mutation only.
type Session struct {
	ID       ID
	Rev      uint64

	JoinSecretHash     []byte
	PresenterKeyHash   []byte

	Locked bool

	CreatedAt time.Time
	ExpiresAt time.Time

	State                  State
	PresenterDisconnectedAt time.Time

	PresenterID  uuid.UUID
	Participants map[uuid.UUID]*Participant

	Slide           SlideDescriptor
	PresenterView   Viewport
	LayerVisibility LayerVisibility
}

// Snapshot is an immutable, externally-safe copy of a session's
// observable state, returned from every Store operation so callers
// never hold a reference into the store's internal map.
type Snapshot struct {
	ID              ID
	Rev             uint64
	Locked          bool
	CreatedAt       time.Time
	ExpiresAt       time.Time
	State           State
	PresenterID     uuid.UUID
	Participants    []Participant
	Slide           SlideDescriptor
	PresenterView   Viewport
	LayerVisibility LayerVisibility
}

func (s *Session) snapshot() Snapshot {
	participants := make([]Participant, 0, len(s.Participants))
	for _, p := range s.Participants {
		participants = append(participants, *p)
	}
	return Snapshot{
		ID:              s.ID,
		Rev:             s.Rev,
		Locked:          s.Locked,
		CreatedAt:       s.CreatedAt,
		ExpiresAt:       s.ExpiresAt,
		State:           s.State,
		PresenterID:     s.PresenterID,
		Participants:    participants,
		Slide:           s.Slide,
		PresenterView:   s.PresenterView,
		LayerVisibility: s.LayerVisibility,
	}
}

// FollowerCount returns the number of non-presenter participants.
func (s Snapshot) FollowerCount() int {
	n := 0
	for _, p := range s.Participants {
		if p.Role == RoleFollower {
			n++
		}
	}
	return n
}
