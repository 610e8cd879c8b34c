// Package codec holds the value serializers used by the record cache.
// Cached records and container listings are encoded with a Codec before
// they are framed and handed to a provider.
package codec

// Codec encodes/decodes values V to []byte for storage.
type Codec[V any] interface {
	Encode(V) ([]byte, error)
	Decode([]byte) (V, error)
}
