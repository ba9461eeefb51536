package realtime

import (
	"testing"

	"github.com/google/uuid"
)

func TestConnectionEnqueueDropsWhenBufferFull(t *testing.T) {
	c := &Connection{userID: uuid.New(), send: make(chan []byte, 2)}

	if !c.Enqueue([]byte("a")) {
		t.Fatalf("expected first enqueue to succeed")
	}
	if !c.Enqueue([]byte("b")) {
		t.Fatalf("expected second enqueue to succeed")
	}
	if c.Enqueue([]byte("c")) {
		t.Fatalf("expected enqueue to report false once the buffer is full")
	}

	if got := <-c.send; string(got) != "a" {
		t.Fatalf("expected FIFO order, got %q", got)
	}
}

func TestConnectionSendFrameMarshalsAndEnqueues(t *testing.T) {
	c := &Connection{userID: uuid.New(), send: make(chan []byte, 1)}

	if !c.sendFrame(map[string]string{"type": "ping"}) {
		t.Fatalf("expected sendFrame to succeed")
	}

	got := <-c.send
	if string(got) != `{"type":"ping"}` {
		t.Fatalf("unexpected frame payload: %s", got)
	}
}
