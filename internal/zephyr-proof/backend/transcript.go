package backend

import (
	"encoding/binary"
	"fmt"

	"github.com/consensys/gnark-crypto/ecc/bn254/fr"
	"github.com/vybium/vybium-crypto/pkg/vybium-crypto/field"
	"github.com/vybium/vybium-crypto/pkg/vybium-crypto/hash"

	"github.com/kunalsinghdadhwal/zephyr-proof/internal/zephyr-proof/utils"
)

// limbsPerCell is the number of 32-bit limbs a BN254 scalar is split into.
// 32-bit limbs are always canonical in the Tip5 base field.
const limbsPerCell = fr.Bytes / 4

// Transcript is the Fiat-Shamir state shared by prover and verifier. Both
// sides absorb the same items in the same order and sample the same
// query indices.
type Transcript struct {
	sponge *hash.Tip5
}

// NewTranscript creates a transcript bound to a domain separator
func NewTranscript(domain string) *Transcript {
	t := &Transcript{sponge: hash.Init()}
	t.AbsorbBytes([]byte(domain))
	return t
}

// AbsorbDigest absorbs a Tip5 digest
func (t *Transcript) AbsorbDigest(d hash.Digest) {
	t.sponge.PadAndAbsorbAll(d[:])
}

// AbsorbCells absorbs BN254 elements as 32-bit limbs
func (t *Transcript) AbsorbCells(cells []fr.Element) {
	t.sponge.PadAndAbsorbAll(CellsToElements(cells))
}

// AbsorbBytes absorbs raw bytes
func (t *Transcript) AbsorbBytes(b []byte) {
	t.sponge.PadAndAbsorbAll(BytesToElements(b))
}

// SampleIndices produces n indices in [0, upperBound). upperBound must be a power of 2.
func (t *Transcript) SampleIndices(upperBound, n int) ([]int, error) {
	if !utils.IsPowerOfTwo(upperBound) {
		return nil, fmt.Errorf("upper bound must be a power of 2, got %d", upperBound)
	}
	if uint64(upperBound) > field.P-1 {
		return nil, fmt.Errorf("upper bound %d exceeds field maximum", upperBound)
	}
	raw := t.sponge.SampleIndices(uint32(upperBound), n)
	out := make([]int, len(raw))
	for i, idx := range raw {
		out[i] = int(idx)
	}
	return out, nil
}

// CellsToElements splits every cell into big-endian 32-bit limbs
func CellsToElements(cells []fr.Element) []field.Element {
	out := make([]field.Element, 0, len(cells)*limbsPerCell)
	for i := range cells {
		b := cells[i].Bytes()
		for j := 0; j < fr.Bytes; j += 4 {
			out = append(out, field.New(uint64(binary.BigEndian.Uint32(b[j:j+4]))))
		}
	}
	return out
}

// BytesToElements packs b into 32-bit limbs prefixed with its length
func BytesToElements(b []byte) []field.Element {
	out := make([]field.Element, 0, 1+(len(b)+3)/4)
	out = append(out, field.New(uint64(len(b))))
	for i := 0; i < len(b); i += 4 {
		var limb [4]byte
		copy(limb[:], b[i:])
		out = append(out, field.New(uint64(binary.BigEndian.Uint32(limb[:]))))
	}
	return out
}

// RowDigest is the Merkle leaf of one table row
func RowDigest(row []fr.Element) hash.Digest {
	return hash.HashVarlen(CellsToElements(row))
}
