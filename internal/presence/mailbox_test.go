package presence

import "testing"

func TestMailboxTrySendRoundTrip(t *testing.T) {
	m := NewMailbox()
	if !m.TrySend([]byte("hello")) {
		t.Fatal("expected TrySend to succeed into an empty mailbox")
	}
	select {
	case got := <-m.Recv():
		if string(got) != "hello" {
			t.Errorf("got %q, want %q", got, "hello")
		}
	default:
		t.Fatal("expected a buffered message")
	}
}

func TestMailboxTrySendDropsOnOverflow(t *testing.T) {
	m := NewMailbox()
	for i := 0; i < MailboxCapacity; i++ {
		if !m.TrySend([]byte{byte(i)}) {
			t.Fatalf("TrySend %d should have succeeded under capacity", i)
		}
	}
	if m.TrySend([]byte("overflow")) {
		t.Fatal("expected TrySend to fail once the mailbox is full")
	}
	if m.SlowConsumerDrops() != 1 {
		t.Errorf("SlowConsumerDrops() = %d, want 1", m.SlowConsumerDrops())
	}
}
