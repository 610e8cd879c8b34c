package discordb

import (
	"context"
	"errors"
	"io"
	"net/http"
	"testing"
	"time"

	"github.com/unkn0wn-root/discordb/internal/rest"
)

func TestRecordFromMessage(t *testing.T) {
	created := time.Date(2024, 1, 2, 3, 4, 5, 6e6, time.UTC)
	edited := created.Add(time.Minute)

	rec := recordFromMessage(rest.Message{ID: "1", Content: "body", Timestamp: created})
	if rec.ID != "1" || rec.Body != "body" || rec.Timestamp != created.UnixMilli() || rec.Attachment != nil {
		t.Fatalf("plain message: %+v", rec)
	}

	rec = recordFromMessage(rest.Message{
		ID:              "2",
		Timestamp:       created,
		EditedTimestamp: &edited,
		Attachments: []rest.Attachment{
			{Filename: "a.png", Size: 3, URL: "u1", ProxyURL: "p1", ContentType: "image/png"},
			{Filename: "b.png", Size: 4, URL: "u2", ProxyURL: "p2"},
		},
	})
	if rec.Timestamp != edited.UnixMilli() {
		t.Fatalf("edited timestamp should win: %d", rec.Timestamp)
	}
	want := Attachment{Filename: "a.png", Size: 3, URL: "u1", ProxyURL: "p1", ContentType: "image/png"}
	if rec.Attachment == nil || *rec.Attachment != want {
		t.Fatalf("first attachment expected, got %+v", rec.Attachment)
	}
}

func TestMapRemoteError(t *testing.T) {
	cases := []struct {
		name string
		in   error
		is   error
	}{
		{"429", &rest.APIError{Status: http.StatusTooManyRequests, RetryAfter: time.Second}, ErrRateLimited},
		{"40062", &rest.APIError{Status: http.StatusBadRequest, Code: 40062}, ErrRateLimited},
		{"413", &rest.APIError{Status: http.StatusRequestEntityTooLarge}, ErrPayloadTooLarge},
		{"40005", &rest.APIError{Status: http.StatusBadRequest, Code: 40005}, ErrPayloadTooLarge},
		{"404", &rest.APIError{Status: http.StatusNotFound, Code: 10008}, ErrNotFound},
	}
	for _, tc := range cases {
		err := mapRemoteError("op", "111", "1", tc.in)
		if !errors.Is(err, tc.is) {
			t.Fatalf("%s: expected %v, got %v", tc.name, tc.is, err)
		}
		var re *RemoteError
		if !errors.As(err, &re) || re.Op != "op" {
			t.Fatalf("%s: expected an embedded RemoteError, got %#v", tc.name, err)
		}
	}

	err := mapRemoteError("list", "111", "", &rest.APIError{Status: http.StatusForbidden, Code: 50001, Message: "Missing Access"})
	var re *RemoteError
	if !errors.As(err, &re) || re.Status != http.StatusForbidden || re.Code != 50001 || re.Hint == "" {
		t.Fatalf("403: %#v", err)
	}
	if errors.Is(err, ErrNotFound) || errors.Is(err, ErrRateLimited) {
		t.Fatalf("403 must stay a plain RemoteError: %v", err)
	}

	cause := errors.New("dial tcp: connection refused")
	err = mapRemoteError("create", "111", "", cause)
	if !errors.As(err, &re) || re.Status != 0 || !errors.Is(err, cause) {
		t.Fatalf("transport failure: %#v", err)
	}
}

type failingReader struct{}

func (failingReader) Read([]byte) (int, error) { return 0, io.ErrUnexpectedEOF }

func TestUploadReadFailureIsArgumentError(t *testing.T) {
	r, err := newRESTRemote(rest.Config{Token: "tok", BaseURL: "http://127.0.0.1:1"})
	if err != nil {
		t.Fatalf("newRESTRemote: %v", err)
	}
	_, err = r.CreateRecordWithAttachment(context.Background(), "111", failingReader{}, "a.txt", "")
	if !errors.Is(err, ErrInvalidArgument) || !errors.Is(err, io.ErrUnexpectedEOF) {
		t.Fatalf("expected ArgumentError wrapping the read error, got %v", err)
	}
}
