// Package group wraps Ristretto255 scalar and element arithmetic behind
// the fixed-width value types the rest of the credential service speaks:
// Scalar32, Element32, Proof64 and Secret64.
package group

import "errors"

// ErrInvalidEncoding is returned whenever a 32-byte value fails to decode
// as a canonical scalar or element.
var ErrInvalidEncoding = errors.New("group: invalid encoding")

// ErrArithmeticDomain is returned when an operation is undefined for its
// input, e.g. inverting the zero scalar.
var ErrArithmeticDomain = errors.New("group: arithmetic domain error")
