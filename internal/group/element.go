package group

import (
	"crypto/subtle"

	"github.com/gtank/ristretto255"
)

// Element32 is the canonical 32-byte Ristretto255 encoding of a group element.
type Element32 [32]byte

// Element is a point in the prime-order Ristretto255 group.
type Element struct {
	inner *ristretto255.Element
}

func wrapElement(e *ristretto255.Element) *Element {
	return &Element{inner: e}
}

// Base returns the fixed generator G.
func Base() *Element {
	return wrapElement(ristretto255.NewElement().Base())
}

// Identity returns the group identity element.
func Identity() *Element {
	return wrapElement(ristretto255.NewElement())
}

// DecodeElement parses a canonical 32-byte element encoding, rejecting
// non-canonical input per the Ristretto255 decoding rules.
func DecodeElement(b Element32) (*Element, error) {
	e := ristretto255.NewElement()
	if err := e.Decode(b[:]); err != nil {
		return nil, ErrInvalidEncoding
	}
	return wrapElement(e), nil
}

// HashToGroup maps an arbitrary message to a uniformly distributed group
// element via expand_message_xmd (RFC 9380) with the given domain
// separation tag.
func HashToGroup(msg, dst []byte) (*Element, error) {
	uniform, err := expandMessageXMD(msg, dst, 64)
	if err != nil {
		return nil, err
	}
	e := ristretto255.NewElement()
	e.FromUniformBytes(uniform)
	return wrapElement(e), nil
}

// FromUniformBytes maps a 64-byte uniformly random string directly onto
// the group, without the expand_message_xmd step HashToGroup performs.
// Used when the caller has already produced a wide-output hash (e.g. a
// raw BLAKE2b-512 digest) and domain separation was applied upstream.
func FromUniformBytes(uniform []byte) *Element {
	e := ristretto255.NewElement()
	e.FromUniformBytes(uniform)
	return wrapElement(e)
}

// Encode returns the canonical 32-byte encoding of e.
func (e *Element) Encode() Element32 {
	var out Element32
	copy(out[:], e.inner.Encode(nil))
	return out
}

// IsIdentity reports whether e is the group identity, by canonical-byte
// comparison against the identity's encoding.
func (e *Element) IsIdentity() bool {
	id := Identity().Encode()
	enc := e.Encode()
	return subtle.ConstantTimeCompare(enc[:], id[:]) == 1
}

// Equal reports whether e and f encode to the same canonical bytes.
func (e *Element) Equal(f *Element) bool {
	a, b := e.Encode(), f.Encode()
	return subtle.ConstantTimeCompare(a[:], b[:]) == 1
}

// Add returns e + f.
func (e *Element) Add(f *Element) *Element {
	return wrapElement(ristretto255.NewElement().Add(e.inner, f.inner))
}

// ScalarMult returns s * e.
func (e *Element) ScalarMult(s *Scalar) *Element {
	return wrapElement(ristretto255.NewElement().ScalarMult(s.inner, e.inner))
}

// BaseMult returns s * G, the scalar multiple of the fixed generator.
func BaseMult(s *Scalar) *Element {
	return wrapElement(ristretto255.NewElement().ScalarBaseMult(s.inner))
}
