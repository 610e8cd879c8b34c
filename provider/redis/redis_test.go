package redis

import (
	"bytes"
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	goredis "github.com/redis/go-redis/v9"
)

func newTestProvider(t *testing.T, prefix string) (*Redis, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := goredis.NewClient(&goredis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { client.Close() })

	p, err := New(Config{Client: client, Prefix: prefix})
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	return p, mr
}

func TestNilClient(t *testing.T) {
	if _, err := New(Config{}); err != ErrNilClient {
		t.Fatalf("expected ErrNilClient, got %v", err)
	}
}

func TestGetSetDel(t *testing.T) {
	ctx := context.Background()
	p, mr := newTestProvider(t, "app:")

	if _, ok, err := p.Get(ctx, "record:1"); err != nil || ok {
		t.Fatalf("expected miss, ok=%v err=%v", ok, err)
	}
	ok, err := p.Set(ctx, "record:1", []byte("v1"), 1, time.Minute)
	if err != nil || !ok {
		t.Fatalf("Set: ok=%v err=%v", ok, err)
	}
	if !mr.Exists("app:record:1") {
		t.Fatalf("expected prefixed key, keys=%v", mr.Keys())
	}
	if ttl := mr.TTL("app:record:1"); ttl <= 0 || ttl > time.Minute {
		t.Fatalf("unexpected ttl %v", ttl)
	}
	b, ok, err := p.Get(ctx, "record:1")
	if err != nil || !ok || !bytes.Equal(b, []byte("v1")) {
		t.Fatalf("Get: b=%q ok=%v err=%v", b, ok, err)
	}
	if err := p.Del(ctx, "record:1"); err != nil {
		t.Fatalf("Del: %v", err)
	}
	if _, ok, _ := p.Get(ctx, "record:1"); ok {
		t.Fatalf("expected miss after Del")
	}
}

func TestNoExpiryForNonPositiveTTL(t *testing.T) {
	ctx := context.Background()
	p, mr := newTestProvider(t, "")

	if _, err := p.Set(ctx, "container:9", []byte("x"), 1, -time.Second); err != nil {
		t.Fatalf("Set: %v", err)
	}
	if ttl := mr.TTL("container:9"); ttl != 0 {
		t.Fatalf("expected no expiry, ttl=%v", ttl)
	}
}

func TestServerErrorsSurface(t *testing.T) {
	ctx := context.Background()
	p, mr := newTestProvider(t, "")
	mr.SetError("LOADING redis is loading")

	if _, _, err := p.Get(ctx, "k"); err == nil {
		t.Fatalf("expected Get error")
	}
	if ok, err := p.Set(ctx, "k", []byte("v"), 1, 0); err == nil || ok {
		t.Fatalf("expected Set error, ok=%v", ok)
	}
	if err := p.Del(ctx, "k"); err == nil {
		t.Fatalf("expected Del error")
	}
}
