package discordb

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"

	"github.com/unkn0wn-root/discordb/internal/rest"
)

// Remote is the discord surface DB depends on. Implementations return
// errors from the package taxonomy (RemoteError and its refinements,
// NotFoundError, ArgumentError).
type Remote interface {
	CreateRecord(ctx context.Context, containerID, body string) (Record, error)
	ListRecords(ctx context.Context, containerID string) ([]Record, error)
	// FetchRecord needs a bot token.
	FetchRecord(ctx context.Context, containerID, recordID string) (Record, error)
	PatchRecord(ctx context.Context, containerID, recordID, body string) (Record, error)
	DeleteRecord(ctx context.Context, containerID, recordID string) error
	CreateRecordWithAttachment(ctx context.Context, containerID string, file io.Reader, filename, content string) (Record, error)
}

const (
	codeRateLimited    = 40062
	codeEntityTooLarge = 40005
)

type restRemote struct {
	c *rest.Client
}

var _ Remote = (*restRemote)(nil)

func newRESTRemote(cfg rest.Config) (*restRemote, error) {
	c, err := rest.New(cfg)
	if err != nil {
		return nil, &ConfigurationError{Field: "token", Reason: err.Error()}
	}
	return &restRemote{c: c}, nil
}

func (r *restRemote) CreateRecord(ctx context.Context, containerID, body string) (Record, error) {
	m, err := r.c.CreateMessage(ctx, containerID, body)
	if err != nil {
		return Record{}, mapRemoteError("create", containerID, "", err)
	}
	return recordFromMessage(m), nil
}

func (r *restRemote) ListRecords(ctx context.Context, containerID string) ([]Record, error) {
	msgs, err := r.c.ListMessages(ctx, containerID)
	if err != nil {
		return nil, mapRemoteError("list", containerID, "", err)
	}
	out := make([]Record, len(msgs))
	for i, m := range msgs {
		out[i] = recordFromMessage(m)
	}
	return out, nil
}

func (r *restRemote) FetchRecord(ctx context.Context, containerID, recordID string) (Record, error) {
	m, err := r.c.GetMessage(ctx, containerID, recordID)
	if err != nil {
		return Record{}, mapRemoteError("fetch", containerID, recordID, err)
	}
	return recordFromMessage(m), nil
}

func (r *restRemote) PatchRecord(ctx context.Context, containerID, recordID, body string) (Record, error) {
	m, err := r.c.EditMessage(ctx, containerID, recordID, body)
	if err != nil {
		return Record{}, mapRemoteError("update", containerID, recordID, err)
	}
	return recordFromMessage(m), nil
}

func (r *restRemote) DeleteRecord(ctx context.Context, containerID, recordID string) error {
	if err := r.c.DeleteMessage(ctx, containerID, recordID); err != nil {
		return mapRemoteError("delete", containerID, recordID, err)
	}
	return nil
}

func (r *restRemote) CreateRecordWithAttachment(ctx context.Context, containerID string, file io.Reader, filename, content string) (Record, error) {
	data, err := io.ReadAll(file)
	if err != nil {
		return Record{}, &ArgumentError{Op: "upload", Arg: "file", Err: err}
	}
	m, err := r.c.CreateMessageWithFile(ctx, containerID, data, filename, content)
	if err != nil {
		err = mapRemoteError("upload", containerID, "", err)
		var ptl *PayloadTooLargeError
		if errors.As(err, &ptl) {
			ptl.Size = int64(len(data))
		}
		return Record{}, err
	}
	return recordFromMessage(m), nil
}

func recordFromMessage(m rest.Message) Record {
	ts := m.Timestamp
	if m.EditedTimestamp != nil {
		ts = *m.EditedTimestamp
	}
	rec := Record{ID: m.ID, Body: m.Content, Timestamp: ts.UnixMilli()}
	if len(m.Attachments) > 0 {
		a := m.Attachments[0]
		rec.Attachment = &Attachment{
			Filename:    a.Filename,
			Size:        a.Size,
			URL:         a.URL,
			ProxyURL:    a.ProxyURL,
			ContentType: a.ContentType,
		}
	}
	return rec
}

// mapRemoteError converts rest failures into the package error kinds.
// recordID is empty for channel-level calls.
func mapRemoteError(op, containerID, recordID string, err error) error {
	var ae *rest.APIError
	if !errors.As(err, &ae) {
		return &RemoteError{Op: op, Err: err}
	}
	re := &RemoteError{
		Op:      op,
		Status:  ae.Status,
		Code:    ae.Code,
		Message: ae.Message,
		Hint:    hintFor(ae.Status),
		Err:     ae,
	}
	switch {
	case ae.Status == http.StatusTooManyRequests || ae.Code == codeRateLimited:
		return &RateLimitedError{RemoteError: re, RetryAfter: ae.RetryAfter, Global: ae.Global}
	case ae.Status == http.StatusRequestEntityTooLarge || ae.Code == codeEntityTooLarge:
		return &PayloadTooLargeError{RemoteError: re, Limit: MaxUploadSize}
	case ae.Status == http.StatusNotFound:
		return &NotFoundError{Container: containerID, ID: recordID, Err: re}
	}
	return re
}

func hintFor(status int) string {
	switch status {
	case http.StatusUnauthorized:
		return "check the token and the bot setting"
	case http.StatusForbidden:
		return "the token cannot access this channel; fetching single messages also needs a bot token"
	case http.StatusNotFound:
		return "check the channel id or the container name mapping"
	case http.StatusTooManyRequests:
		return "slow down and retry after the indicated delay"
	case http.StatusRequestEntityTooLarge:
		return fmt.Sprintf("attachments must be smaller than %d bytes", MaxUploadSize)
	}
	if status >= 500 {
		return "discord is failing; retry later"
	}
	return ""
}
