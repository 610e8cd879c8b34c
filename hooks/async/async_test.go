package async

import (
	"sync"
	"testing"

	"github.com/unkn0wn-root/discordb"
)

type countHooks struct {
	discordb.NopHooks
	mu      sync.Mutex
	n       int
	block   chan struct{}
	started chan struct{}
}

func (c *countHooks) Lookup(string, bool) {
	if c.block != nil {
		c.started <- struct{}{}
		<-c.block
	}
	c.mu.Lock()
	c.n++
	c.mu.Unlock()
}

func TestDeliversAndDrainsOnClose(t *testing.T) {
	inner := &countHooks{}
	h := New(inner, 2, 100)
	for range 50 {
		h.Lookup("record", true)
	}
	h.Close()
	if inner.n != 50 {
		t.Fatalf("delivered %d of 50", inner.n)
	}
	h.Lookup("record", true)
	h.Close()
	if h.Dropped() != 1 {
		t.Fatalf("event after Close should be dropped, dropped=%d", h.Dropped())
	}
}

func TestDropsWhenQueueFull(t *testing.T) {
	inner := &countHooks{block: make(chan struct{}), started: make(chan struct{}, 1)}
	h := New(inner, 1, 1)

	h.Lookup("record", true) // taken by the worker, which then blocks
	<-inner.started
	h.Lookup("record", true) // fills the queue
	h.Lookup("record", true) // dropped
	h.Lookup("record", true) // dropped

	if h.Dropped() != 2 {
		t.Fatalf("dropped=%d, want 2", h.Dropped())
	}
	close(inner.block)
	// drain the started signal of the queued event
	go func() {
		for range inner.started {
		}
	}()
	h.Close()
	close(inner.started)
	if inner.n != 2 {
		t.Fatalf("delivered %d, want 2", inner.n)
	}
}
