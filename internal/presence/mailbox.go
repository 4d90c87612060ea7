package presence

import "sync/atomic"

// MailboxCapacity is the bounded per-connection outbound queue depth
// named in the scheduling model: broadcast fan-out never blocks on a
// slow consumer past this many buffered messages.
const MailboxCapacity = 32

// Mailbox is a connection's outbound queue. Exactly one goroutine (the
// connection's writer loop) ever receives from it; any number of
// goroutines may call TrySend concurrently.
type Mailbox struct {
	ch           chan []byte
	slowConsumer atomic.Uint64
}

// NewMailbox allocates an empty, open mailbox.
func NewMailbox() *Mailbox {
	return &Mailbox{ch: make(chan []byte, MailboxCapacity)}
}

// TrySend enqueues data without blocking. If the mailbox is full the
// message is dropped and the slow-consumer counter is incremented;
// callers never stall on a backed-up peer.
func (m *Mailbox) TrySend(data []byte) bool {
	select {
	case m.ch <- data:
		return true
	default:
		m.slowConsumer.Add(1)
		return false
	}
}

// Recv exposes the receive side for a connection's writer loop.
func (m *Mailbox) Recv() <-chan []byte { return m.ch }

// SlowConsumerDrops reports how many outbound messages this mailbox
// has dropped to overflow.
func (m *Mailbox) SlowConsumerDrops() uint64 { return m.slowConsumer.Load() }

// Close shuts the mailbox down; the writer loop's range over Recv()
// exits once buffered messages are drained.
func (m *Mailbox) Close() { close(m.ch) }
