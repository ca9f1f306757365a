package event

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
)

func TestRedisPublisherDelivers(t *testing.T) {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	ctx := context.Background()

	sub := client.Subscribe(ctx, "identity_registered")
	t.Cleanup(func() { _ = sub.Close() })
	if _, err := sub.Receive(ctx); err != nil {
		t.Fatalf("subscribe: %v", err)
	}

	pub := NewRedisPublisher(client)
	payload := map[string]string{"id": "id-1", "email": "a@example.com"}
	if err := pub.Publish(ctx, "identity_registered", payload); err != nil {
		t.Fatal(err)
	}

	select {
	case msg := <-sub.Channel():
		var got map[string]string
		if err := json.Unmarshal([]byte(msg.Payload), &got); err != nil {
			t.Fatalf("unmarshal payload: %v", err)
		}
		if got["id"] != "id-1" || got["email"] != "a@example.com" {
			t.Fatalf("payload = %v", got)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("no message received")
	}
}

func TestRedisPublisherFailure(t *testing.T) {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	mr.Close()

	pub := NewRedisPublisher(client)
	if err := pub.Publish(context.Background(), "identity_registered", map[string]string{"id": "x"}); err == nil {
		t.Fatal("expected publish error after server shutdown")
	}
}

func TestRedisPublisherRejectsUnmarshalable(t *testing.T) {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })

	pub := NewRedisPublisher(client)
	if err := pub.Publish(context.Background(), "t", func() {}); err == nil {
		t.Fatal("expected marshal error")
	}
}
