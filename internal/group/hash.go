package group

import (
	"crypto/sha512"
	"encoding/binary"
)

// SHA-512 parameters for expand_message_xmd (RFC 9380 §5.3.1).
const (
	sha512OutputBytes = 64
	sha512BlockSize   = 128
)

// expandMessageXMD implements expand_message_xmd from RFC 9380 §5.3.1 using
// SHA-512, producing lenInBytes uniform bytes from msg under the given
// domain separation tag.
func expandMessageXMD(msg, dst []byte, lenInBytes int) ([]byte, error) {
	ell := (lenInBytes + sha512OutputBytes - 1) / sha512OutputBytes
	if ell > 255 {
		return nil, ErrInvalidEncoding
	}

	dstPrime := make([]byte, len(dst)+1)
	copy(dstPrime, dst)
	dstPrime[len(dst)] = byte(len(dst))

	zPad := make([]byte, sha512BlockSize)

	libStr := make([]byte, 2)
	binary.BigEndian.PutUint16(libStr, uint16(lenInBytes))

	h := sha512.New()
	h.Write(zPad)
	h.Write(msg)
	h.Write(libStr)
	h.Write([]byte{0})
	h.Write(dstPrime)
	b0 := h.Sum(nil)

	h.Reset()
	h.Write(b0)
	h.Write([]byte{1})
	h.Write(dstPrime)
	b1 := h.Sum(nil)

	uniformBytes := make([]byte, 0, ell*sha512OutputBytes)
	uniformBytes = append(uniformBytes, b1...)

	bPrev := b1
	for i := 2; i <= ell; i++ {
		h.Reset()

		xorResult := make([]byte, sha512OutputBytes)
		for j := 0; j < sha512OutputBytes; j++ {
			xorResult[j] = b0[j] ^ bPrev[j]
		}

		h.Write(xorResult)
		h.Write([]byte{byte(i)})
		h.Write(dstPrime)
		bi := h.Sum(nil)

		uniformBytes = append(uniformBytes, bi...)
		bPrev = bi
	}

	return uniformBytes[:lenInBytes], nil
}
