package core

import (
	"fmt"

	"github.com/vybium/vybium-crypto/pkg/vybium-crypto/field"
	"github.com/vybium/vybium-crypto/pkg/vybium-crypto/hash"
)

// DigestSize is the encoded length of a Tip5 digest
const DigestSize = hash.DigestLen * 8

// DigestBytes encodes a digest as big-endian 8-byte limbs
func DigestBytes(d hash.Digest) []byte {
	out := make([]byte, 0, DigestSize)
	for _, elem := range d {
		val := elem.Value()
		for j := 7; j >= 0; j-- {
			out = append(out, byte(val>>(uint(j)*8)))
		}
	}
	return out
}

// DigestFromBytes decodes a digest written by DigestBytes, rejecting non-canonical limbs
func DigestFromBytes(b []byte) (hash.Digest, error) {
	var d hash.Digest
	if len(b) != DigestSize {
		return d, fmt.Errorf("digest must be %d bytes, got %d", DigestSize, len(b))
	}
	for i := range d {
		var val uint64
		for j := 0; j < 8; j++ {
			val = val<<8 | uint64(b[i*8+j])
		}
		if val >= field.P {
			return d, fmt.Errorf("digest limb %d is not a canonical field element", i)
		}
		d[i] = field.New(val)
	}
	return d, nil
}
