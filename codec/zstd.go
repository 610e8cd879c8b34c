package codec

import (
	"errors"
	"fmt"

	"github.com/klauspost/compress/zstd"
)

const (
	frameRaw  byte = 0
	frameZstd byte = 1

	// payloads below this size are stored uncompressed
	minCompress = 128
)

var errEmptyFrame = errors.New("zstd codec: empty payload")

// Zstd wraps another codec and compresses its output with zstd.
// Each payload is prefixed with one flag byte so small or incompressible
// payloads can be stored as-is. Construct with NewZstd; safe for concurrent use.
type Zstd[V any] struct {
	inner Codec[V]
	enc   *zstd.Encoder
	dec   *zstd.Decoder
}

var _ Codec[struct{}] = (*Zstd[struct{}])(nil)

// NewZstd builds a compressing codec. level 1 = fastest, 3 = best, anything
// else = default.
func NewZstd[V any](inner Codec[V], level int) (*Zstd[V], error) {
	if inner == nil {
		return nil, errors.New("zstd codec: inner codec is required")
	}
	var el zstd.EncoderLevel
	switch level {
	case 1:
		el = zstd.SpeedFastest
	case 3:
		el = zstd.SpeedBetterCompression
	default:
		el = zstd.SpeedDefault
	}
	enc, err := zstd.NewWriter(nil, zstd.WithEncoderLevel(el), zstd.WithEncoderConcurrency(1))
	if err != nil {
		return nil, err
	}
	dec, err := zstd.NewReader(nil)
	if err != nil {
		enc.Close()
		return nil, err
	}
	return &Zstd[V]{inner: inner, enc: enc, dec: dec}, nil
}

func (c *Zstd[V]) Encode(v V) ([]byte, error) {
	raw, err := c.inner.Encode(v)
	if err != nil {
		return nil, err
	}
	if len(raw) >= minCompress {
		out := c.enc.EncodeAll(raw, []byte{frameZstd})
		if len(out) < len(raw)+1 {
			return out, nil
		}
	}
	out := make([]byte, 0, len(raw)+1)
	out = append(out, frameRaw)
	return append(out, raw...), nil
}

func (c *Zstd[V]) Decode(b []byte) (V, error) {
	var zero V
	if len(b) == 0 {
		return zero, errEmptyFrame
	}
	switch b[0] {
	case frameRaw:
		return c.inner.Decode(b[1:])
	case frameZstd:
		raw, err := c.dec.DecodeAll(b[1:], nil)
		if err != nil {
			return zero, fmt.Errorf("zstd codec: %w", err)
		}
		return c.inner.Decode(raw)
	default:
		return zero, fmt.Errorf("zstd codec: unknown frame flag %d", b[0])
	}
}

// Close releases encoder and decoder resources.
func (c *Zstd[V]) Close() {
	c.enc.Close()
	c.dec.Close()
}
