package session

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

func TestBusPublishAndSubscribePattern(t *testing.T) {
	mr, err := miniredis.Run()
	if err != nil {
		t.Fatalf("failed to start miniredis: %v", err)
	}
	defer mr.Close()

	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	bus := NewBus(client)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	type arrival struct {
		cid     uuid.UUID
		payload json.RawMessage
	}
	received := make(chan arrival, 1)

	go bus.SubscribePattern(ctx, func(cid uuid.UUID, payload json.RawMessage) {
		received <- arrival{cid: cid, payload: payload}
	})

	// Give the subscriber a moment to establish its PSUBSCRIBE before publishing.
	time.Sleep(50 * time.Millisecond)

	cid := uuid.New()
	if err := bus.PublishToChat(ctx, cid, map[string]string{"type": "message"}); err != nil {
		t.Fatalf("PublishToChat: %v", err)
	}

	select {
	case got := <-received:
		if got.cid != cid {
			t.Fatalf("expected chat id %s, got %s", cid, got.cid)
		}
		if string(got.payload) != `{"type":"message"}` {
			t.Fatalf("unexpected payload: %s", got.payload)
		}
	case <-time.After(time.Second):
		t.Fatalf("timed out waiting for subscribed message")
	}
}

func TestChatChannelNaming(t *testing.T) {
	cid := uuid.New()
	want := "chat:" + cid.String()
	if got := chatChannel(cid); got != want {
		t.Fatalf("expected %s, got %s", want, got)
	}
}
