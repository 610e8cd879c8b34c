package rest

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strconv"
	"sync"
	"testing"
	"time"

	"github.com/unkn0wn-root/discordb/internal/discordtest"
)

func newTestClient(t *testing.T, bot bool) (*Client, *discordtest.Server) {
	t.Helper()
	srv := discordtest.New(discordtest.Options{Token: "tok", Channels: []string{"111"}})
	t.Cleanup(srv.Close)
	c, err := New(Config{Token: "tok", Bot: bot, BaseURL: srv.URL})
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	return c, srv
}

func TestNewRequiresToken(t *testing.T) {
	if _, err := New(Config{}); err == nil {
		t.Fatalf("expected error without token")
	}
}

func TestAuthorizationHeader(t *testing.T) {
	var (
		mu  sync.Mutex
		got []string
	)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		mu.Lock()
		got = append(got, r.Header.Get("Authorization"), r.Header.Get("User-Agent"))
		mu.Unlock()
		w.WriteHeader(http.StatusNoContent)
	}))
	defer srv.Close()

	for _, bot := range []bool{true, false} {
		c, err := New(Config{Token: "tok", Bot: bot, BaseURL: srv.URL + "/"})
		if err != nil {
			t.Fatalf("New: %v", err)
		}
		if err := c.DeleteMessage(context.Background(), "1", "2"); err != nil {
			t.Fatalf("DeleteMessage: %v", err)
		}
	}
	want := []string{"Bot tok", DefaultUserAgent, "tok", DefaultUserAgent}
	mu.Lock()
	defer mu.Unlock()
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("header %d: got %q want %q", i, got[i], want[i])
		}
	}
}

func TestCreateEditGetDelete(t *testing.T) {
	ctx := context.Background()
	c, _ := newTestClient(t, true)

	m, err := c.CreateMessage(ctx, "111", "hello")
	if err != nil {
		t.Fatalf("CreateMessage: %v", err)
	}
	if m.ID == "" || m.ChannelID != "111" || m.Content != "hello" || m.Timestamp.IsZero() || m.EditedTimestamp != nil {
		t.Fatalf("unexpected message: %+v", m)
	}

	e, err := c.EditMessage(ctx, "111", m.ID, "bye")
	if err != nil || e.Content != "bye" || e.EditedTimestamp == nil {
		t.Fatalf("EditMessage: %+v err=%v", e, err)
	}

	g, err := c.GetMessage(ctx, "111", m.ID)
	if err != nil || g.Content != "bye" {
		t.Fatalf("GetMessage: %+v err=%v", g, err)
	}

	if err := c.DeleteMessage(ctx, "111", m.ID); err != nil {
		t.Fatalf("DeleteMessage: %v", err)
	}
	_, err = c.GetMessage(ctx, "111", m.ID)
	var ae *APIError
	if !errors.As(err, &ae) || ae.Status != http.StatusNotFound || ae.Code != discordtest.CodeUnknownMessage {
		t.Fatalf("expected 404 unknown message, got %v", err)
	}
}

func TestListMessagesPaginates(t *testing.T) {
	c, srv := newTestClient(t, false)
	const n = 2*PageSize + 50
	var seeded []string
	for i := range n {
		seeded = append(seeded, srv.Seed("111", strconv.Itoa(i)))
	}

	msgs, err := c.ListMessages(context.Background(), "111")
	if err != nil {
		t.Fatalf("ListMessages: %v", err)
	}
	if len(msgs) != n {
		t.Fatalf("got %d messages, want %d", len(msgs), n)
	}
	// newest first
	for i, m := range msgs {
		if m.ID != seeded[n-1-i] {
			t.Fatalf("position %d: got %s want %s", i, m.ID, seeded[n-1-i])
		}
	}
	if calls := srv.Count(discordtest.OpList); calls != 3 {
		t.Fatalf("expected 3 pages, got %d", calls)
	}
}

func TestListExactPageBoundary(t *testing.T) {
	c, srv := newTestClient(t, false)
	for i := range PageSize {
		srv.Seed("111", strconv.Itoa(i))
	}
	msgs, err := c.ListMessages(context.Background(), "111")
	if err != nil || len(msgs) != PageSize {
		t.Fatalf("ListMessages: %d err=%v", len(msgs), err)
	}
	// a full page forces one more (empty) request
	if calls := srv.Count(discordtest.OpList); calls != 2 {
		t.Fatalf("expected 2 requests, got %d", calls)
	}
}

func TestGetMessageNeedsBotToken(t *testing.T) {
	c, srv := newTestClient(t, false)
	id := srv.Seed("111", "x")
	_, err := c.GetMessage(context.Background(), "111", id)
	var ae *APIError
	if !errors.As(err, &ae) || ae.Status != http.StatusForbidden || ae.Code != discordtest.CodeMissingAccess {
		t.Fatalf("expected 403 missing access, got %v", err)
	}
}

func TestCreateMessageWithFile(t *testing.T) {
	c, _ := newTestClient(t, true)
	data := []byte("file body")
	m, err := c.CreateMessageWithFile(context.Background(), "111", data, "note.txt", "caption")
	if err != nil {
		t.Fatalf("CreateMessageWithFile: %v", err)
	}
	if m.Content != "caption" || len(m.Attachments) != 1 {
		t.Fatalf("unexpected message: %+v", m)
	}
	a := m.Attachments[0]
	if a.Filename != "note.txt" || a.Size != int64(len(data)) || a.URL == "" || a.ProxyURL == "" {
		t.Fatalf("unexpected attachment: %+v", a)
	}
}

func TestAPIErrorDecoding(t *testing.T) {
	ctx := context.Background()
	c, srv := newTestClient(t, true)

	_, err := c.CreateMessage(ctx, "999", "x")
	var ae *APIError
	if !errors.As(err, &ae) || ae.Status != http.StatusNotFound || ae.Code != discordtest.CodeUnknownChannel || ae.Message != "Unknown Channel" {
		t.Fatalf("unknown channel: %#v", err)
	}

	_, err = c.CreateMessage(ctx, "111", "")
	if !errors.As(err, &ae) || ae.Code != discordtest.CodeEmptyMessage {
		t.Fatalf("empty message: %#v", err)
	}

	srv.RateLimitNext(discordtest.OpCreate, 250*time.Millisecond)
	_, err = c.CreateMessage(ctx, "111", "x")
	if !errors.As(err, &ae) || ae.Status != http.StatusTooManyRequests || ae.RetryAfter != 250*time.Millisecond {
		t.Fatalf("rate limit: %#v", err)
	}
}

func TestRetryAfterHeaderFallback(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Retry-After", "2")
		w.WriteHeader(http.StatusTooManyRequests)
		_, _ = w.Write([]byte("slow down"))
	}))
	defer srv.Close()

	c, err := New(Config{Token: "tok", BaseURL: srv.URL})
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	_, err = c.CreateMessage(context.Background(), "1", "x")
	var ae *APIError
	if !errors.As(err, &ae) || ae.RetryAfter != 2*time.Second || ae.Message != "Too Many Requests" {
		t.Fatalf("expected header retry-after and status text, got %#v", err)
	}
}

func TestUnauthorized(t *testing.T) {
	srv := discordtest.New(discordtest.Options{Token: "tok", Channels: []string{"111"}})
	defer srv.Close()
	c, err := New(Config{Token: "wrong", BaseURL: srv.URL})
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	_, err = c.ListMessages(context.Background(), "111")
	var ae *APIError
	if !errors.As(err, &ae) || ae.Status != http.StatusUnauthorized {
		t.Fatalf("expected 401, got %v", err)
	}
}
