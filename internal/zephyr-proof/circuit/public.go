package circuit

import (
	"fmt"
	"math/big"

	"github.com/consensys/gnark-crypto/ecc/bn254/fr"

	"github.com/kunalsinghdadhwal/zephyr-proof/internal/zephyr-proof/chips"
	"github.com/kunalsinghdadhwal/zephyr-proof/internal/zephyr-proof/constraints"
	"github.com/kunalsinghdadhwal/zephyr-proof/internal/zephyr-proof/core"
	"github.com/kunalsinghdadhwal/zephyr-proof/internal/zephyr-proof/evm"
	"github.com/kunalsinghdadhwal/zephyr-proof/internal/zephyr-proof/trace"
)

// PublicInputs is the public vector of one chunk:
//
//	[commitment, chunk_index, rows, gas_in, depth_in, pc_in,
//	 gas_out, depth_out, pc_out, storage_writes, histogram...]
//
// with one histogram entry per supported opcode in ascending code order.
type PublicInputs []fr.Element

// Summary is the plain-integer view of a chunk's public inputs
type Summary struct {
	Chunk         int
	Rows          int
	Entry         trace.State
	Exit          trace.State
	StorageWrites uint64
	Histogram     map[evm.OpCode]uint64
}

// GasUsed returns the gas consumed inside the chunk
func (s *Summary) GasUsed() uint64 {
	return s.Entry.Gas - s.Exit.Gas
}

// NewPublicInputs lays out the public vector of a chunk
func NewPublicInputs(commitment fr.Element, s *Summary) PublicInputs {
	p := make(PublicInputs, chips.NumPublicInputs)
	p[chips.PubCommitment] = commitment
	p[chips.PubChunkIndex] = constraints.Const(uint64(s.Chunk))
	p[chips.PubRows] = constraints.Const(uint64(s.Rows))
	p[chips.PubGasIn] = constraints.Const(s.Entry.Gas)
	p[chips.PubDepthIn] = constraints.Const(uint64(s.Entry.Depth))
	p[chips.PubPCIn] = constraints.Const(s.Entry.PC)
	p[chips.PubGasOut] = constraints.Const(s.Exit.Gas)
	p[chips.PubDepthOut] = constraints.Const(uint64(s.Exit.Depth))
	p[chips.PubPCOut] = constraints.Const(s.Exit.PC)
	p[chips.PubStorageWrites] = constraints.Const(s.StorageWrites)
	for i, op := range chips.Opcodes {
		p[chips.PubHistogramBase+i] = constraints.Const(s.Histogram[op])
	}
	return p
}

// Commitment returns the trace commitment shared by every chunk
func (p PublicInputs) Commitment() fr.Element {
	return p[chips.PubCommitment]
}

// Summary decodes the integer fields. Every field except the commitment
// must be a 64-bit integer and depths must not exceed the stack limit.
func (p PublicInputs) Summary() (*Summary, error) {
	if len(p) != chips.NumPublicInputs {
		return nil, core.NewError(core.ErrInvalidProof, "public input vector has %d entries, want %d",
			len(p), chips.NumPublicInputs)
	}
	word := func(i int) (uint64, error) {
		if !p[i].IsUint64() {
			return 0, core.NewError(core.ErrInvalidProof, "public input %d is not a 64-bit integer", i)
		}
		return p[i].Uint64(), nil
	}
	depth := func(i int) (int, error) {
		v, err := word(i)
		if err != nil {
			return 0, err
		}
		if v > evm.MaxStackDepth {
			return 0, core.NewError(core.ErrInvalidProof, "public input %d: depth %d exceeds %d", i, v, evm.MaxStackDepth)
		}
		return int(v), nil
	}

	var (
		s   = &Summary{Histogram: make(map[evm.OpCode]uint64)}
		err error
		v   uint64
	)
	if v, err = word(chips.PubChunkIndex); err != nil {
		return nil, err
	}
	if v > MaxChunks {
		return nil, core.NewError(core.ErrInvalidProof, "chunk index %d exceeds %d", v, MaxChunks)
	}
	s.Chunk = int(v)
	if v, err = word(chips.PubRows); err != nil {
		return nil, err
	}
	if v > 1<<MaxK {
		return nil, core.NewError(core.ErrInvalidProof, "row count %d exceeds %d", v, 1<<MaxK)
	}
	s.Rows = int(v)
	if s.Entry.Gas, err = word(chips.PubGasIn); err != nil {
		return nil, err
	}
	if s.Entry.Depth, err = depth(chips.PubDepthIn); err != nil {
		return nil, err
	}
	if s.Entry.PC, err = word(chips.PubPCIn); err != nil {
		return nil, err
	}
	if s.Exit.Gas, err = word(chips.PubGasOut); err != nil {
		return nil, err
	}
	if s.Exit.Depth, err = depth(chips.PubDepthOut); err != nil {
		return nil, err
	}
	if s.Exit.PC, err = word(chips.PubPCOut); err != nil {
		return nil, err
	}
	if s.StorageWrites, err = word(chips.PubStorageWrites); err != nil {
		return nil, err
	}
	for i, op := range chips.Opcodes {
		if v, err = word(chips.PubHistogramBase + i); err != nil {
			return nil, err
		}
		if v > 0 {
			s.Histogram[op] = v
		}
	}
	return s, nil
}

// Strings renders the vector as unsigned decimal strings
func (p PublicInputs) Strings() []string {
	out := make([]string, len(p))
	for i := range p {
		out[i] = FormatElement(&p[i])
	}
	return out
}

// ParsePublicInputs decodes decimal strings produced by Strings
func ParsePublicInputs(values []string) (PublicInputs, error) {
	p := make(PublicInputs, len(values))
	for i, s := range values {
		e, err := ParseElement(s)
		if err != nil {
			return nil, core.Wrap(core.ErrInvalidProof, err, "public input %d", i)
		}
		p[i] = e
	}
	return p, nil
}

// FormatElement renders e as an unsigned decimal integer in [0, r)
func FormatElement(e *fr.Element) string {
	return e.BigInt(new(big.Int)).String()
}

// ParseElement accepts only the canonical form written by FormatElement:
// decimal digits, no sign, no leading zeros, value below the modulus.
func ParseElement(s string) (fr.Element, error) {
	var e fr.Element
	if s == "" || len(s) > 78 || (len(s) > 1 && s[0] == '0') {
		return e, fmt.Errorf("invalid field element %q", s)
	}
	for _, c := range s {
		if c < '0' || c > '9' {
			return e, fmt.Errorf("invalid field element %q", s)
		}
	}
	v, ok := new(big.Int).SetString(s, 10)
	if !ok || v.Cmp(fr.Modulus()) >= 0 {
		return e, fmt.Errorf("field element %q out of range", s)
	}
	e.SetBigInt(v)
	return e, nil
}

// Split cuts a concatenated vector into per-chunk vectors
func Split(all []fr.Element, chunks int) ([]PublicInputs, error) {
	if chunks <= 0 || len(all) != chunks*chips.NumPublicInputs {
		return nil, core.NewError(core.ErrInvalidProof, "public inputs have %d entries, want %d chunks of %d",
			len(all), chunks, chips.NumPublicInputs)
	}
	out := make([]PublicInputs, chunks)
	for i := range out {
		out[i] = PublicInputs(all[i*chips.NumPublicInputs : (i+1)*chips.NumPublicInputs])
	}
	return out, nil
}

// Equal reports whether two vectors are identical
func (p PublicInputs) Equal(other PublicInputs) bool {
	if len(p) != len(other) {
		return false
	}
	for i := range p {
		if !p[i].Equal(&other[i]) {
			return false
		}
	}
	return true
}

func (s *Summary) String() string {
	return fmt.Sprintf("chunk %d: %d rows, gas %d→%d, depth %d→%d, pc %d→%d, %d writes",
		s.Chunk, s.Rows, s.Entry.Gas, s.Exit.Gas, s.Entry.Depth, s.Exit.Depth, s.Entry.PC, s.Exit.PC, s.StorageWrites)
}
