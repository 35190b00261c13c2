package group

import "crypto/subtle"

// Proof64 is the wire encoding of a DLEQ proof: challenge c (32 bytes)
// followed by response s (32 bytes).
type Proof64 [64]byte

// Secret64 is a 64-byte shared secret, the VOPRF finalize output.
type Secret64 [64]byte

// EncodeProof concatenates (c, s) into the wire form.
func EncodeProof(c, s Scalar32) Proof64 {
	var out Proof64
	copy(out[:32], c[:])
	copy(out[32:], s[:])
	return out
}

// DecodeProof splits a wire-form proof back into (c, s).
func DecodeProof(p Proof64) (c, s Scalar32) {
	copy(c[:], p[:32])
	copy(s[:], p[32:])
	return
}

// SecretEqual compares two 64-byte shared secrets in constant time.
func SecretEqual(a, b Secret64) bool {
	return subtle.ConstantTimeCompare(a[:], b[:]) == 1
}
