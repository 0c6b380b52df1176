package witness

import (
	"encoding/binary"

	"github.com/consensys/gnark-crypto/ecc/bn254/fr"
	"github.com/holiman/uint256"
	"golang.org/x/crypto/sha3"

	"github.com/kunalsinghdadhwal/zephyr-proof/internal/zephyr-proof/trace"
)

const commitmentDomain = "zephyr-trace-v1"

var scalarModulus = uint256.MustFromBig(fr.Modulus())

// EncodeTrace returns the canonical byte encoding of the ordered step sequence
func EncodeTrace(tr *trace.Trace) []byte {
	size := len(commitmentDomain) + 8
	for i := range tr.Steps {
		size += 1 + 8 + 8 + 4 + 8*len(tr.Steps[i].Stack) + 1 + 8 + 8 + 1
	}
	buf := make([]byte, 0, size)
	buf = append(buf, commitmentDomain...)
	buf = binary.BigEndian.AppendUint64(buf, uint64(len(tr.Steps)))

	for i := range tr.Steps {
		s := &tr.Steps[i]
		buf = append(buf, byte(s.Opcode))
		buf = binary.BigEndian.AppendUint64(buf, s.PC)
		buf = binary.BigEndian.AppendUint64(buf, s.Gas)
		buf = binary.BigEndian.AppendUint32(buf, uint32(len(s.Stack)))
		for _, word := range s.Stack {
			buf = binary.BigEndian.AppendUint64(buf, word)
		}
		if s.Storage == nil {
			buf = append(buf, 0)
			buf = binary.BigEndian.AppendUint64(buf, 0)
			buf = binary.BigEndian.AppendUint64(buf, 0)
			buf = append(buf, 0)
			continue
		}
		buf = append(buf, 1)
		buf = binary.BigEndian.AppendUint64(buf, s.Storage.Key)
		buf = binary.BigEndian.AppendUint64(buf, s.Storage.Value)
		if s.Storage.IsWrite {
			buf = append(buf, 1)
		} else {
			buf = append(buf, 0)
		}
	}
	return buf
}

// Digest returns the Keccak-256 digest of the canonical trace encoding
func Digest(tr *trace.Trace) [32]byte {
	var out [32]byte
	h := sha3.NewLegacyKeccak256()
	h.Write(EncodeTrace(tr))
	h.Sum(out[:0])
	return out
}

// Commit reduces the trace digest modulo the BN254 scalar field
func Commit(tr *trace.Trace) fr.Element {
	digest := Digest(tr)
	return ReduceDigest(digest)
}

// ReduceDigest interprets a digest as a big-endian integer and reduces it into fr
func ReduceDigest(digest [32]byte) fr.Element {
	var x uint256.Int
	x.SetBytes32(digest[:])
	x.Mod(&x, scalarModulus)

	reduced := x.Bytes32()
	var e fr.Element
	e.SetBytes(reduced[:])
	return e
}
