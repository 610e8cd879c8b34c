package wire

import (
	"bytes"
	"encoding/binary"
	"errors"
)

const (
	version byte = 1
	hdrLen       = 4 + 1 + 8 + 4
)

var (
	ErrCorrupt = errors.New("discordb: corrupt cache entry")
	magic4     = [...]byte{'D', 'S', 'D', 'B'}
)

func hasMagic(b []byte) bool {
	return len(b) >= 4 && bytes.Equal(b[:4], magic4[:])
}

// Encode frames a payload with the generation it was written under.
//
//	magic(4) | ver(1) | gen(u64 be) | vlen(u32 be) | payload(vlen)
func Encode(gen uint64, payload []byte) []byte {
	buf := make([]byte, hdrLen+len(payload))
	copy(buf, magic4[:])
	buf[4] = version
	binary.BigEndian.PutUint64(buf[5:13], gen)
	binary.BigEndian.PutUint32(buf[13:17], uint32(len(payload)))
	copy(buf[hdrLen:], payload)
	return buf
}

// Decode returns the generation and a payload slice aliasing b.
func Decode(b []byte) (gen uint64, payload []byte, err error) {
	if len(b) < hdrLen || !hasMagic(b) || b[4] != version {
		return 0, nil, ErrCorrupt
	}
	gen = binary.BigEndian.Uint64(b[5:13])
	vlen := int(binary.BigEndian.Uint32(b[13:17]))
	if vlen != len(b)-hdrLen {
		return 0, nil, ErrCorrupt
	}
	return gen, b[hdrLen:], nil
}
