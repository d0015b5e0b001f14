package feed

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/go-redis/redis/v8"
	"github.com/rs/zerolog"
)

func setupTestRedis(t *testing.T) (*miniredis.Miniredis, *Redis) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { client.Close() })
	return mr, NewRedis(client, zerolog.Nop())
}

func TestRedis_PublishReachesSubscriber(t *testing.T) {
	_, f := setupTestRedis(t)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	ready := make(chan struct{})
	go f.Run(ctx, ready)
	select {
	case <-ready:
	case <-time.After(2 * time.Second):
		t.Fatal("redis subscription not confirmed")
	}

	sub := f.Subscribe("2024-06-03_F_1")
	defer sub.Close()
	other := f.Subscribe("2024-06-03_F_2")
	defer other.Close()

	if err := f.Publish(ctx, "2024-06-03_F_1"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	select {
	case <-sub.C:
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for redis notification")
	}
	assertNoSignal(t, other)
}

func TestRedis_Ping(t *testing.T) {
	mr, f := setupTestRedis(t)
	if err := f.Ping(context.Background()); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	mr.Close()
	if err := f.Ping(context.Background()); err == nil {
		t.Error("expected error after server shutdown")
	}
}
