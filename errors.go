package discordb

import (
	"errors"
	"fmt"
	"time"
)

var (
	ErrConfiguration   = errors.New("discordb: invalid configuration")
	ErrInvalidArgument = errors.New("discordb: invalid argument")
	ErrNotFound        = errors.New("discordb: not found")
	ErrRateLimited     = errors.New("discordb: rate limited")
	ErrPayloadTooLarge = errors.New("discordb: payload too large")
)

// ConfigurationError is returned by New and NewResolver only.
type ConfigurationError struct {
	Field  string
	Reason string
}

func (e *ConfigurationError) Error() string {
	return fmt.Sprintf("discordb: invalid configuration: %s: %s", e.Field, e.Reason)
}

func (e *ConfigurationError) Is(target error) bool { return target == ErrConfiguration }

// ArgumentError reports a missing or unusable operation argument.
// Nothing was sent to discord and the cache was not touched.
type ArgumentError struct {
	Op  string
	Arg string
	Err error
}

func (e *ArgumentError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("discordb: %s: invalid %s: %v", e.Op, e.Arg, e.Err)
	}
	return fmt.Sprintf("discordb: %s: %s is required", e.Op, e.Arg)
}

func (e *ArgumentError) Is(target error) bool { return target == ErrInvalidArgument }
func (e *ArgumentError) Unwrap() error        { return e.Err }

// NotFoundError means no record (or attachment) matched. Err carries the
// remote 404 when discord reported it.
type NotFoundError struct {
	Container string
	ID        string
	URL       string
	Err       error
}

func (e *NotFoundError) Error() string {
	switch {
	case e.URL != "":
		return fmt.Sprintf("discordb: no record with attachment url %q", e.URL)
	case e.ID != "":
		return fmt.Sprintf("discordb: record %s not found in container %s", e.ID, e.Container)
	default:
		return fmt.Sprintf("discordb: container %s not found", e.Container)
	}
}

func (e *NotFoundError) Is(target error) bool { return target == ErrNotFound }
func (e *NotFoundError) Unwrap() error        { return e.Err }

// RemoteError is a failed call to discord. Status is 0 when no response was
// received (transport failure, cancellation, deadline); Err then holds the cause.
type RemoteError struct {
	Op      string
	Status  int
	Code    int // discord json error code, 0 if absent
	Message string
	Hint    string
	Err     error
}

func (e *RemoteError) Error() string {
	var msg string
	if e.Status == 0 {
		msg = fmt.Sprintf("discordb: %s: remote unreachable: %v", e.Op, e.Err)
	} else {
		msg = fmt.Sprintf("discordb: %s: remote returned %d (code %d): %s", e.Op, e.Status, e.Code, e.Message)
	}
	if e.Hint != "" {
		msg += " (" + e.Hint + ")"
	}
	return msg
}

func (e *RemoteError) Unwrap() error { return e.Err }

// RateLimitedError is a RemoteError discord flagged as throttling.
type RateLimitedError struct {
	*RemoteError
	RetryAfter time.Duration
	Global     bool
}

func (e *RateLimitedError) Error() string {
	return fmt.Sprintf("%s; retry after %s", e.RemoteError.Error(), e.RetryAfter)
}

func (e *RateLimitedError) Is(target error) bool { return target == ErrRateLimited }
func (e *RateLimitedError) Unwrap() error        { return e.RemoteError }

// PayloadTooLargeError is a RemoteError for an upload discord refused by size.
type PayloadTooLargeError struct {
	*RemoteError
	Size  int64
	Limit int64
}

func (e *PayloadTooLargeError) Error() string {
	return fmt.Sprintf("%s; %d bytes, limit %d", e.RemoteError.Error(), e.Size, e.Limit)
}

func (e *PayloadTooLargeError) Is(target error) bool { return target == ErrPayloadTooLarge }
func (e *PayloadTooLargeError) Unwrap() error        { return e.RemoteError }

// InvalidateError is logged when a cache delete could neither bump the
// generation nor remove the entry. It is never returned to callers.
type InvalidateError struct {
	Key     string
	BumpErr error
	DelErr  error
}

func (e *InvalidateError) Error() string {
	switch {
	case e.BumpErr != nil && e.DelErr != nil:
		return fmt.Sprintf("invalidate %q failed: gen bump and delete failed: bump=%v; delete=%v",
			e.Key, e.BumpErr, e.DelErr)
	case e.BumpErr != nil:
		return fmt.Sprintf("invalidate %q: gen bump failed: %v", e.Key, e.BumpErr)
	case e.DelErr != nil:
		return fmt.Sprintf("invalidate %q: delete failed: %v", e.Key, e.DelErr)
	default:
		return fmt.Sprintf("invalidate %q: unknown error", e.Key)
	}
}

func (e *InvalidateError) Unwrap() []error {
	errs := make([]error, 0, 2)
	if e.BumpErr != nil {
		errs = append(errs, e.BumpErr)
	}
	if e.DelErr != nil {
		errs = append(errs, e.DelErr)
	}
	return errs
}

// isKnown reports whether err already belongs to the package's error kinds.
func isKnown(err error) bool {
	var (
		re *RemoteError
		nf *NotFoundError
		ae *ArgumentError
	)
	return errors.As(err, &re) || errors.As(err, &nf) || errors.As(err, &ae)
}
