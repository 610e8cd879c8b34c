// Package discordtest runs an in-memory imitation of the discord channel
// message endpoints on an httptest server.
package discordtest

import (
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"slices"
	"strconv"
	"strings"
	"sync"
	"time"
	"unicode/utf8"
)

const (
	// UploadLimit is the attachment size at and above which uploads are refused.
	UploadLimit = 8 << 20

	maxContent = 2000
	firstID    = 1100000000000000000
)

// Discord json error codes.
const (
	CodeUnknownChannel = 10003
	CodeUnknownMessage = 10008
	CodeMissingAccess  = 50001
	CodeEmptyMessage   = 50006
	CodeInvalidForm    = 50035
	CodeEntityTooLarge = 40005
	CodeRateLimited    = 40062
)

// Op names accepted by Count, FailNext and RateLimitNext.
const (
	OpCreate = "create"
	OpList   = "list"
	OpGet    = "get"
	OpEdit   = "edit"
	OpDelete = "delete"
	OpUpload = "upload"
)

type Options struct {
	Token string
	// Channels exist from the start. More can be added with AddChannel.
	Channels []string
}

type message struct {
	ID              string       `json:"id"`
	ChannelID       string       `json:"channel_id"`
	Content         string       `json:"content"`
	Timestamp       time.Time    `json:"timestamp"`
	EditedTimestamp *time.Time   `json:"edited_timestamp"`
	Attachments     []attachment `json:"attachments"`
}

type attachment struct {
	ID          string `json:"id"`
	Filename    string `json:"filename"`
	Size        int64  `json:"size"`
	URL         string `json:"url"`
	ProxyURL    string `json:"proxy_url"`
	ContentType string `json:"content_type,omitempty"`
}

type failure struct {
	status     int
	code       int
	msg        string
	retryAfter time.Duration
}

// Server is safe for concurrent use.
type Server struct {
	*httptest.Server

	token string

	mu       sync.Mutex
	seq      uint64
	channels map[string][]*message // oldest first
	counts   map[string]int
	fail     map[string][]failure
	latency  time.Duration
}

func New(opts Options) *Server {
	s := &Server{
		token:    opts.Token,
		channels: make(map[string][]*message),
		counts:   make(map[string]int),
		fail:     make(map[string][]failure),
	}
	for _, ch := range opts.Channels {
		s.channels[ch] = nil
	}

	mux := http.NewServeMux()
	mux.HandleFunc("POST /channels/{cid}/messages", s.handleCreate)
	mux.HandleFunc("GET /channels/{cid}/messages", s.handleList)
	mux.HandleFunc("GET /channels/{cid}/messages/{mid}", s.handleGet)
	mux.HandleFunc("PATCH /channels/{cid}/messages/{mid}", s.handleEdit)
	mux.HandleFunc("DELETE /channels/{cid}/messages/{mid}", s.handleDelete)
	s.Server = httptest.NewServer(mux)
	return s
}

// BaseURL is the value to pass as the client base url.
func (s *Server) BaseURL() string { return s.URL }

func (s *Server) AddChannel(id string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.channels[id]; !ok {
		s.channels[id] = nil
	}
}

// Count returns how many requests for op reached the handler.
func (s *Server) Count(op string) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.counts[op]
}

// Len returns the number of messages stored in a channel.
func (s *Server) Len(channelID string) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.channels[channelID])
}

// FailNext makes the next request for op fail with status and discord code.
func (s *Server) FailNext(op string, status, code int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.fail[op] = append(s.fail[op], failure{status: status, code: code, msg: "injected failure"})
}

// RateLimitNext makes the next request for op return 429.
func (s *Server) RateLimitNext(op string, retryAfter time.Duration) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.fail[op] = append(s.fail[op], failure{
		status:     http.StatusTooManyRequests,
		msg:        "You are being rate limited.",
		retryAfter: retryAfter,
	})
}

// SetLatency delays every response by d, or until the request is cancelled.
func (s *Server) SetLatency(d time.Duration) {
	s.mu.Lock()
	s.latency = d
	s.mu.Unlock()
}

// Seed stores a message directly, bypassing auth and counters.
func (s *Server) Seed(channelID, content string) string {
	s.mu.Lock()
	defer s.mu.Unlock()
	m := s.newMessage(channelID, content)
	s.channels[channelID] = append(s.channels[channelID], m)
	return m.ID
}

func (s *Server) handleCreate(w http.ResponseWriter, r *http.Request) {
	if strings.HasPrefix(r.Header.Get("Content-Type"), "multipart/form-data") {
		s.handleUpload(w, r)
		return
	}
	if !s.begin(w, r, OpCreate) {
		return
	}
	var body struct {
		Content string `json:"content"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		writeError(w, http.StatusBadRequest, CodeInvalidForm, "Invalid Form Body")
		return
	}
	if !validContent(w, body.Content, false) {
		return
	}

	cid := r.PathValue("cid")
	s.mu.Lock()
	if _, ok := s.channels[cid]; !ok {
		s.mu.Unlock()
		writeError(w, http.StatusNotFound, CodeUnknownChannel, "Unknown Channel")
		return
	}
	m := s.newMessage(cid, body.Content)
	s.channels[cid] = append(s.channels[cid], m)
	out := *m
	s.mu.Unlock()

	writeJSON(w, http.StatusOK, out)
}

func (s *Server) handleUpload(w http.ResponseWriter, r *http.Request) {
	if !s.begin(w, r, OpUpload) {
		return
	}
	if err := r.ParseMultipartForm(1 << 20); err != nil {
		writeError(w, http.StatusBadRequest, CodeInvalidForm, "Invalid Form Body")
		return
	}
	defer func() { _ = r.MultipartForm.RemoveAll() }()

	var payload struct {
		Content string `json:"content"`
	}
	if pj := r.FormValue("payload_json"); pj != "" {
		if err := json.Unmarshal([]byte(pj), &payload); err != nil {
			writeError(w, http.StatusBadRequest, CodeInvalidForm, "Invalid Form Body")
			return
		}
	}
	f, hdr, err := r.FormFile("files[0]")
	if err != nil {
		writeError(w, http.StatusBadRequest, CodeEmptyMessage, "Cannot send an empty message")
		return
	}
	defer func() { _ = f.Close() }()
	n, err := io.Copy(io.Discard, f)
	if err != nil {
		writeError(w, http.StatusBadRequest, CodeInvalidForm, "Invalid Form Body")
		return
	}
	if n >= UploadLimit {
		writeError(w, http.StatusRequestEntityTooLarge, CodeEntityTooLarge, "Request entity too large")
		return
	}
	if !validContent(w, payload.Content, true) {
		return
	}

	cid := r.PathValue("cid")
	s.mu.Lock()
	if _, ok := s.channels[cid]; !ok {
		s.mu.Unlock()
		writeError(w, http.StatusNotFound, CodeUnknownChannel, "Unknown Channel")
		return
	}
	m := s.newMessage(cid, payload.Content)
	s.seq++
	attID := strconv.FormatUint(firstID+s.seq, 10)
	path := "/attachments/" + cid + "/" + attID + "/" + hdr.Filename
	m.Attachments = []attachment{{
		ID:          attID,
		Filename:    hdr.Filename,
		Size:        n,
		URL:         "https://cdn.discordapp.com" + path,
		ProxyURL:    "https://media.discordapp.net" + path,
		ContentType: hdr.Header.Get("Content-Type"),
	}}
	s.channels[cid] = append(s.channels[cid], m)
	out := *m
	s.mu.Unlock()

	writeJSON(w, http.StatusOK, out)
}

func (s *Server) handleList(w http.ResponseWriter, r *http.Request) {
	if !s.begin(w, r, OpList) {
		return
	}
	limit := 50
	if v := r.URL.Query().Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 1 || n > 100 {
			writeError(w, http.StatusBadRequest, CodeInvalidForm, "Invalid Form Body")
			return
		}
		limit = n
	}
	var before uint64
	if v := r.URL.Query().Get("before"); v != "" {
		before, _ = strconv.ParseUint(v, 10, 64)
	}

	cid := r.PathValue("cid")
	s.mu.Lock()
	msgs, ok := s.channels[cid]
	if !ok {
		s.mu.Unlock()
		writeError(w, http.StatusNotFound, CodeUnknownChannel, "Unknown Channel")
		return
	}
	page := make([]message, 0, limit)
	for i := len(msgs) - 1; i >= 0 && len(page) < limit; i-- {
		if before != 0 && idNum(msgs[i].ID) >= before {
			continue
		}
		page = append(page, *msgs[i])
	}
	s.mu.Unlock()

	writeJSON(w, http.StatusOK, page)
}

func (s *Server) handleGet(w http.ResponseWriter, r *http.Request) {
	if !s.begin(w, r, OpGet) {
		return
	}
	if !strings.HasPrefix(r.Header.Get("Authorization"), "Bot ") {
		writeError(w, http.StatusForbidden, CodeMissingAccess, "Missing Access")
		return
	}
	s.mu.Lock()
	m, status, code := s.lookup(r.PathValue("cid"), r.PathValue("mid"))
	var out message
	if m != nil {
		out = *m
	}
	s.mu.Unlock()
	if m == nil {
		writeError(w, status, code, http.StatusText(status))
		return
	}
	writeJSON(w, http.StatusOK, out)
}

func (s *Server) handleEdit(w http.ResponseWriter, r *http.Request) {
	if !s.begin(w, r, OpEdit) {
		return
	}
	var body struct {
		Content string `json:"content"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		writeError(w, http.StatusBadRequest, CodeInvalidForm, "Invalid Form Body")
		return
	}

	s.mu.Lock()
	m, status, code := s.lookup(r.PathValue("cid"), r.PathValue("mid"))
	if m == nil {
		s.mu.Unlock()
		writeError(w, status, code, http.StatusText(status))
		return
	}
	if !validContent(w, body.Content, len(m.Attachments) > 0) {
		s.mu.Unlock()
		return
	}
	now := s.now()
	m.Content = body.Content
	m.EditedTimestamp = &now
	out := *m
	s.mu.Unlock()

	writeJSON(w, http.StatusOK, out)
}

func (s *Server) handleDelete(w http.ResponseWriter, r *http.Request) {
	if !s.begin(w, r, OpDelete) {
		return
	}
	cid, mid := r.PathValue("cid"), r.PathValue("mid")
	s.mu.Lock()
	m, status, code := s.lookup(cid, mid)
	if m == nil {
		s.mu.Unlock()
		writeError(w, status, code, http.StatusText(status))
		return
	}
	s.channels[cid] = slices.DeleteFunc(s.channels[cid], func(x *message) bool { return x.ID == mid })
	s.mu.Unlock()

	w.WriteHeader(http.StatusNoContent)
}

// begin counts the request, applies latency and injected failures, and
// checks the token. It reports false when a response was already written.
func (s *Server) begin(w http.ResponseWriter, r *http.Request, op string) bool {
	s.mu.Lock()
	s.counts[op]++
	latency := s.latency
	var f *failure
	if q := s.fail[op]; len(q) > 0 {
		f = &q[0]
		s.fail[op] = q[1:]
	}
	s.mu.Unlock()

	if latency > 0 {
		t := time.NewTimer(latency)
		select {
		case <-t.C:
		case <-r.Context().Done():
			t.Stop()
			return false
		}
	}

	auth := r.Header.Get("Authorization")
	if s.token != "" && auth != s.token && auth != "Bot "+s.token {
		writeError(w, http.StatusUnauthorized, 0, "401: Unauthorized")
		return false
	}

	if f != nil {
		if f.status == http.StatusTooManyRequests {
			secs := f.retryAfter.Seconds()
			w.Header().Set("Retry-After", strconv.FormatFloat(secs, 'f', -1, 64))
			writeJSON(w, f.status, map[string]any{
				"message":     f.msg,
				"retry_after": secs,
				"global":      false,
			})
			return false
		}
		writeError(w, f.status, f.code, f.msg)
		return false
	}
	return true
}

// lookup must be called with s.mu held.
func (s *Server) lookup(cid, mid string) (*message, int, int) {
	msgs, ok := s.channels[cid]
	if !ok {
		return nil, http.StatusNotFound, CodeUnknownChannel
	}
	for _, m := range msgs {
		if m.ID == mid {
			return m, 0, 0
		}
	}
	return nil, http.StatusNotFound, CodeUnknownMessage
}

// newMessage must be called with s.mu held.
func (s *Server) newMessage(cid, content string) *message {
	s.seq++
	return &message{
		ID:          strconv.FormatUint(firstID+s.seq, 10),
		ChannelID:   cid,
		Content:     content,
		Timestamp:   s.now(),
		Attachments: []attachment{},
	}
}

func (s *Server) now() time.Time {
	return time.Now().UTC().Truncate(time.Millisecond)
}

func validContent(w http.ResponseWriter, content string, hasFile bool) bool {
	if content == "" && !hasFile {
		writeError(w, http.StatusBadRequest, CodeEmptyMessage, "Cannot send an empty message")
		return false
	}
	if utf8.RuneCountInString(content) > maxContent {
		writeError(w, http.StatusBadRequest, CodeInvalidForm,
			fmt.Sprintf("Invalid Form Body: content must be %d or fewer in length", maxContent))
		return false
	}
	return true
}

func idNum(id string) uint64 {
	n, _ := strconv.ParseUint(id, 10, 64)
	return n
}

func writeError(w http.ResponseWriter, status, code int, msg string) {
	writeJSON(w, status, map[string]any{"message": msg, "code": code})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
