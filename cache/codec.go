package cache

import (
	"encoding/json"

	"github.com/lestrrat-go/jwx/v3/jwk"
)

// Codec converts cached values to and from JSON for stores that live
// outside the process.
type Codec[T any] interface {
	Marshal(v T) ([]byte, error)
	Unmarshal(data []byte) (T, error)
}

// JSONCodec encodes values with encoding/json.
type JSONCodec[T any] struct{}

// Marshal implements Codec.
func (JSONCodec[T]) Marshal(v T) ([]byte, error) {
	return json.Marshal(v)
}

// Unmarshal implements Codec.
func (JSONCodec[T]) Unmarshal(data []byte) (T, error) {
	var v T
	err := json.Unmarshal(data, &v)
	return v, err
}

// KeySetCodec encodes JSON Web Key Sets.
type KeySetCodec struct{}

// Marshal implements Codec.
func (KeySetCodec) Marshal(set jwk.Set) ([]byte, error) {
	return json.Marshal(set)
}

// Unmarshal implements Codec.
func (KeySetCodec) Unmarshal(data []byte) (jwk.Set, error) {
	return jwk.Parse(data)
}
