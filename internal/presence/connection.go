package presence

import (
	"sync"

	"github.com/google/uuid"

	"github.com/pathcollab/pathcollab/internal/session"
)

type connState int

const (
	stateUnbound connState = iota
	stateBound
)

// Connection is the hub's view of one accepted client: its outbound
// mailbox plus the state-machine fields from the message-handling
// table (Unbound, or Bound to a session with a role). The transport
// layer (internal/httpapi) owns the socket; Connection never touches
// it directly.
type Connection struct {
	mailbox *Mailbox

	mu            sync.Mutex
	state         connState
	sessionID     session.ID
	participantID uuid.UUID
	role          session.Role
}

// NewConnection allocates an Unbound connection with a fresh mailbox.
func NewConnection() *Connection {
	return &Connection{mailbox: NewMailbox()}
}

// Mailbox returns the connection's outbound queue.
func (c *Connection) Mailbox() *Mailbox { return c.mailbox }

func (c *Connection) bind(id session.ID, participantID uuid.UUID, role session.Role) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.state = stateBound
	c.sessionID = id
	c.participantID = participantID
	c.role = role
}

func (c *Connection) setRole(role session.Role) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.role = role
}

type connBinding struct {
	bound         bool
	sessionID     session.ID
	participantID uuid.UUID
	role          session.Role
}

func (c *Connection) binding() connBinding {
	c.mu.Lock()
	defer c.mu.Unlock()
	return connBinding{
		bound:         c.state == stateBound,
		sessionID:     c.sessionID,
		participantID: c.participantID,
		role:          c.role,
	}
}
