package queue

import (
	"context"
	"errors"
	"io"
	"os"
	"sync"
	"testing"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	"github.com/vblendo1/koisando-green-alien/internal/ids"
)

// flakyHandler fails the first delivery of every message.
type flakyHandler struct {
	mu   sync.Mutex
	seen map[string]int
	done chan string
}

func (h *flakyHandler) Handle(_ context.Context, msg redis.XMessage) error {
	h.mu.Lock()
	h.seen[msg.ID]++
	n := h.seen[msg.ID]
	h.mu.Unlock()
	if n == 1 {
		return errors.New("first delivery fails")
	}
	h.done <- msg.ID
	return nil
}

func TestConsumerReclaimsFailedMessages(t *testing.T) {
	addr := os.Getenv("TEST_REDIS_ADDR")
	if addr == "" {
		t.Skip("TEST_REDIS_ADDR not set")
	}
	client := redis.NewClient(&redis.Options{Addr: addr})
	t.Cleanup(func() { _ = client.Close() })

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	stream := "test:events:" + ids.New()
	t.Cleanup(func() { client.Del(context.Background(), stream) })

	handler := &flakyHandler{seen: map[string]int{}, done: make(chan string, 1)}
	consumer := NewConsumer(client, Options{
		Stream:        stream,
		Group:         "test-workers",
		Consumer:      "c1",
		ClaimInterval: 100 * time.Millisecond,
		MinIdle:       100 * time.Millisecond,
		Block:         100 * time.Millisecond,
	}, zerolog.New(io.Discard), handler)

	if err := consumer.EnsureGroup(ctx); err != nil {
		t.Fatalf("ensure group: %v", err)
	}
	if err := consumer.EnsureGroup(ctx); err != nil {
		t.Fatalf("ensure group twice: %v", err)
	}
	id, err := client.XAdd(ctx, &redis.XAddArgs{Stream: stream, Values: map[string]interface{}{"type": "integrity.sweep"}}).Result()
	if err != nil {
		t.Fatalf("xadd: %v", err)
	}

	go func() { _ = consumer.Start(ctx) }()

	select {
	case got := <-handler.done:
		if got != id {
			t.Fatalf("handled %s, want %s", got, id)
		}
	case <-ctx.Done():
		t.Fatal("message was never reclaimed")
	}

	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		pending, err := client.XPending(ctx, stream, "test-workers").Result()
		if err == nil && pending.Count == 0 {
			return
		}
		time.Sleep(50 * time.Millisecond)
	}
	t.Fatal("message still pending after successful handling")
}
