// Package rest is a small client for the discord channel message endpoints.
package rest

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
)

const (
	DefaultBaseURL   = "https://discord.com/api/v10"
	DefaultUserAgent = "DiscordBot (https://github.com/unkn0wn-root/discordb, 1.0)"

	// PageSize is the largest page discord serves for message listings.
	PageSize = 100

	defaultTimeout = 30 * time.Second
)

// Config configures a Client. Token is required.
type Config struct {
	Token      string
	Bot        bool         // send "Bot <token>" instead of the raw token
	BaseURL    string       // "" => DefaultBaseURL
	HTTPClient *http.Client // nil => otelhttp-instrumented client, 30s timeout
	UserAgent  string       // "" => DefaultUserAgent
}

// Client talks to the discord REST API. Safe for concurrent use.
type Client struct {
	base string
	auth string
	ua   string
	hc   *http.Client
}

func New(cfg Config) (*Client, error) {
	if cfg.Token == "" {
		return nil, errors.New("rest: token is required")
	}
	c := &Client{
		base: strings.TrimRight(cfg.BaseURL, "/"),
		auth: cfg.Token,
		ua:   cfg.UserAgent,
		hc:   cfg.HTTPClient,
	}
	if c.base == "" {
		c.base = DefaultBaseURL
	}
	if cfg.Bot {
		c.auth = "Bot " + cfg.Token
	}
	if c.ua == "" {
		c.ua = DefaultUserAgent
	}
	if c.hc == nil {
		c.hc = &http.Client{
			Timeout:   defaultTimeout,
			Transport: otelhttp.NewTransport(http.DefaultTransport),
		}
	}
	return c, nil
}

// Message is the subset of the discord message object the store uses.
type Message struct {
	ID              string       `json:"id"`
	ChannelID       string       `json:"channel_id"`
	Content         string       `json:"content"`
	Timestamp       time.Time    `json:"timestamp"`
	EditedTimestamp *time.Time   `json:"edited_timestamp"`
	Attachments     []Attachment `json:"attachments"`
}

type Attachment struct {
	ID          string `json:"id"`
	Filename    string `json:"filename"`
	Size        int64  `json:"size"`
	URL         string `json:"url"`
	ProxyURL    string `json:"proxy_url"`
	ContentType string `json:"content_type,omitempty"`
}

type messageBody struct {
	Content     string           `json:"content"`
	Attachments []attachmentStub `json:"attachments,omitempty"`
}

type attachmentStub struct {
	ID       int    `json:"id"`
	Filename string `json:"filename"`
}

// APIError is a non-2xx response. Code and Message come from the discord
// json error body when present.
type APIError struct {
	Status     int
	Code       int
	Message    string
	RetryAfter time.Duration
	Global     bool
}

func (e *APIError) Error() string {
	if e.Code != 0 {
		return fmt.Sprintf("discord: %d %s (code %d)", e.Status, e.Message, e.Code)
	}
	return fmt.Sprintf("discord: %d %s", e.Status, e.Message)
}

func (c *Client) CreateMessage(ctx context.Context, channelID, content string) (Message, error) {
	var m Message
	err := c.doJSON(ctx, http.MethodPost, channelPath(channelID), messageBody{Content: content}, &m)
	return m, err
}

// ListMessages returns every message in the channel, newest first.
// Pages are fetched with before=<oldest id seen> until a short page.
func (c *Client) ListMessages(ctx context.Context, channelID string) ([]Message, error) {
	var all []Message
	before := ""
	for {
		q := url.Values{"limit": {strconv.Itoa(PageSize)}}
		if before != "" {
			q.Set("before", before)
		}
		var page []Message
		if err := c.doJSON(ctx, http.MethodGet, channelPath(channelID)+"?"+q.Encode(), nil, &page); err != nil {
			return nil, err
		}
		all = append(all, page...)
		if len(page) < PageSize {
			return all, nil
		}
		before = page[len(page)-1].ID
	}
}

// GetMessage fetches one message. Discord only allows this for bot tokens.
func (c *Client) GetMessage(ctx context.Context, channelID, messageID string) (Message, error) {
	var m Message
	err := c.doJSON(ctx, http.MethodGet, messagePath(channelID, messageID), nil, &m)
	return m, err
}

func (c *Client) EditMessage(ctx context.Context, channelID, messageID, content string) (Message, error) {
	var m Message
	err := c.doJSON(ctx, http.MethodPatch, messagePath(channelID, messageID), messageBody{Content: content}, &m)
	return m, err
}

func (c *Client) DeleteMessage(ctx context.Context, channelID, messageID string) error {
	return c.doJSON(ctx, http.MethodDelete, messagePath(channelID, messageID), nil, nil)
}

// CreateMessageWithFile posts content with data attached as files[0].
func (c *Client) CreateMessageWithFile(ctx context.Context, channelID string, data []byte, filename, content string) (Message, error) {
	payload, err := json.Marshal(messageBody{
		Content:     content,
		Attachments: []attachmentStub{{ID: 0, Filename: filename}},
	})
	if err != nil {
		return Message{}, fmt.Errorf("rest: marshal payload: %w", err)
	}

	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	if err := mw.WriteField("payload_json", string(payload)); err != nil {
		return Message{}, fmt.Errorf("rest: write payload_json: %w", err)
	}
	fw, err := mw.CreateFormFile("files[0]", filename)
	if err != nil {
		return Message{}, fmt.Errorf("rest: create form file: %w", err)
	}
	if _, err := fw.Write(data); err != nil {
		return Message{}, fmt.Errorf("rest: write file: %w", err)
	}
	if err := mw.Close(); err != nil {
		return Message{}, fmt.Errorf("rest: close multipart: %w", err)
	}

	var m Message
	err = c.do(ctx, http.MethodPost, channelPath(channelID), &buf, mw.FormDataContentType(), &m)
	return m, err
}

func (c *Client) doJSON(ctx context.Context, method, path string, in, out any) error {
	var (
		body        io.Reader
		contentType string
	)
	if in != nil {
		b, err := json.Marshal(in)
		if err != nil {
			return fmt.Errorf("rest: marshal request: %w", err)
		}
		body = bytes.NewReader(b)
		contentType = "application/json"
	}
	return c.do(ctx, method, path, body, contentType, out)
}

func (c *Client) do(ctx context.Context, method, path string, body io.Reader, contentType string, out any) error {
	req, err := http.NewRequestWithContext(ctx, method, c.base+path, body)
	if err != nil {
		return fmt.Errorf("rest: build request: %w", err)
	}
	req.Header.Set("Authorization", c.auth)
	req.Header.Set("User-Agent", c.ua)
	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}

	resp, err := c.hc.Do(req)
	if err != nil {
		return fmt.Errorf("rest: %s %s: %w", method, path, err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return decodeError(resp)
	}
	if out == nil || resp.StatusCode == http.StatusNoContent {
		_, _ = io.Copy(io.Discard, resp.Body)
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("rest: decode response: %w", err)
	}
	return nil
}

func decodeError(resp *http.Response) error {
	e := &APIError{Status: resp.StatusCode, Message: http.StatusText(resp.StatusCode)}

	var body struct {
		Code       int     `json:"code"`
		Message    string  `json:"message"`
		RetryAfter float64 `json:"retry_after"`
		Global     bool    `json:"global"`
	}
	raw, _ := io.ReadAll(io.LimitReader(resp.Body, 64<<10))
	if json.Unmarshal(raw, &body) == nil {
		e.Code = body.Code
		if body.Message != "" {
			e.Message = body.Message
		}
		e.Global = body.Global
		if body.RetryAfter > 0 {
			e.RetryAfter = time.Duration(body.RetryAfter * float64(time.Second))
		}
	}
	if e.RetryAfter == 0 {
		if s, err := strconv.ParseFloat(resp.Header.Get("Retry-After"), 64); err == nil && s > 0 {
			e.RetryAfter = time.Duration(s * float64(time.Second))
		}
	}
	return e
}

func channelPath(channelID string) string {
	return "/channels/" + url.PathEscape(channelID) + "/messages"
}

func messagePath(channelID, messageID string) string {
	return channelPath(channelID) + "/" + url.PathEscape(messageID)
}
