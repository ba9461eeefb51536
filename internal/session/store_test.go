package session

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	mr, err := miniredis.Run()
	if err != nil {
		t.Fatalf("failed to start miniredis: %v", err)
	}
	t.Cleanup(mr.Close)

	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	return &Store{client: client}
}

func TestStorePresence(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	uid := uuid.New()

	online, err := s.IsOnline(ctx, uid)
	if err != nil || online {
		t.Fatalf("expected user to start offline, got online=%v err=%v", online, err)
	}

	if err := s.MarkOnline(ctx, uid); err != nil {
		t.Fatalf("MarkOnline: %v", err)
	}
	if online, err = s.IsOnline(ctx, uid); err != nil || !online {
		t.Fatalf("expected user to be online, got online=%v err=%v", online, err)
	}

	if err := s.MarkOffline(ctx, uid); err != nil {
		t.Fatalf("MarkOffline: %v", err)
	}
	if online, err = s.IsOnline(ctx, uid); err != nil || online {
		t.Fatalf("expected user to be offline again, got online=%v err=%v", online, err)
	}
}

func TestStoreChatMembership(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	cid := uuid.New()
	u1, u2 := uuid.New(), uuid.New()

	if err := s.AddUserToChat(ctx, u1, cid); err != nil {
		t.Fatalf("AddUserToChat: %v", err)
	}
	if err := s.AddUserToChat(ctx, u2, cid); err != nil {
		t.Fatalf("AddUserToChat: %v", err)
	}

	members, err := s.ChatMembers(ctx, cid)
	if err != nil {
		t.Fatalf("ChatMembers: %v", err)
	}
	if len(members) != 2 {
		t.Fatalf("expected 2 members, got %d", len(members))
	}

	if err := s.RemoveUserFromChat(ctx, u1, cid); err != nil {
		t.Fatalf("RemoveUserFromChat: %v", err)
	}
	members, err = s.ChatMembers(ctx, cid)
	if err != nil {
		t.Fatalf("ChatMembers: %v", err)
	}
	if len(members) != 1 || members[0] != u2 {
		t.Fatalf("expected only u2 to remain, got %v", members)
	}
}

func TestStoreOfflineQueueDrainIsFIFOAndClears(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	uid := uuid.New()

	if err := s.StoreOffline(ctx, uid, map[string]string{"n": "1"}); err != nil {
		t.Fatalf("StoreOffline: %v", err)
	}
	if err := s.StoreOffline(ctx, uid, map[string]string{"n": "2"}); err != nil {
		t.Fatalf("StoreOffline: %v", err)
	}

	payloads, err := s.DrainOffline(ctx, uid)
	if err != nil {
		t.Fatalf("DrainOffline: %v", err)
	}
	if len(payloads) != 2 {
		t.Fatalf("expected 2 queued payloads, got %d", len(payloads))
	}
	if string(payloads[0]) != `{"n":"1"}` {
		t.Fatalf("expected FIFO order, got first=%s", payloads[0])
	}

	payloads, err = s.DrainOffline(ctx, uid)
	if err != nil {
		t.Fatalf("DrainOffline after drain: %v", err)
	}
	if len(payloads) != 0 {
		t.Fatalf("expected queue to be empty after drain, got %d", len(payloads))
	}
}

func TestStoreRefreshAllowlist(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	uid := uuid.New()
	jti := uuid.New().String()

	if err := s.AddRefresh(ctx, jti, uid, time.Minute); err != nil {
		t.Fatalf("AddRefresh: %v", err)
	}

	valid, err := s.IsRefreshValid(ctx, jti, uid)
	if err != nil || !valid {
		t.Fatalf("expected refresh token to be valid, got valid=%v err=%v", valid, err)
	}

	otherUID := uuid.New()
	valid, err = s.IsRefreshValid(ctx, jti, otherUID)
	if err != nil || valid {
		t.Fatalf("expected refresh token to not validate for a different user")
	}

	if err := s.RevokeRefresh(ctx, jti); err != nil {
		t.Fatalf("RevokeRefresh: %v", err)
	}
	valid, err = s.IsRefreshValid(ctx, jti, uid)
	if err != nil || valid {
		t.Fatalf("expected refresh token to be invalid after revocation")
	}
}

func TestStoreRateCheck(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	uid := uuid.New()

	for i := 0; i < 3; i++ {
		allowed, err := s.RateCheck(ctx, uid, 3, time.Second)
		if err != nil {
			t.Fatalf("RateCheck: %v", err)
		}
		if !allowed {
			t.Fatalf("expected attempt %d to be allowed", i)
		}
	}

	allowed, err := s.RateCheck(ctx, uid, 3, time.Second)
	if err != nil {
		t.Fatalf("RateCheck: %v", err)
	}
	if allowed {
		t.Fatalf("expected 4th attempt within the window to be rate limited")
	}
}
