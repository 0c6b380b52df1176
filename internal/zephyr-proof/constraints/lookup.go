package constraints

import (
	"fmt"
	"math/bits"

	"github.com/consensys/gnark-crypto/ecc/bn254/fr"
)

// Table is a fixed lookup table. Membership is decided natively: the tables
// are far too large to materialize (2^64 range, 2^128 bitwise triples).
type Table interface {
	Name() string
	Arity() int
	Contains(values []fr.Element) bool
}

// RangeTable holds every integer in [0, 2^Bits)
type RangeTable struct {
	Bits int
}

// NewRangeTable creates a range table of the given bit width
func NewRangeTable(bits int) *RangeTable {
	return &RangeTable{Bits: bits}
}

func (t *RangeTable) Name() string { return fmt.Sprintf("range%d", t.Bits) }
func (t *RangeTable) Arity() int   { return 1 }

// Contains reports whether the single value fits in Bits bits
func (t *RangeTable) Contains(values []fr.Element) bool {
	if len(values) != 1 {
		return false
	}
	return bitLen(&values[0]) <= t.Bits
}

// bitLen measures the regular (non-Montgomery) representation
func bitLen(e *fr.Element) int {
	words := e.Bits()
	for i := len(words) - 1; i >= 0; i-- {
		if words[i] != 0 {
			return 64*i + bits.Len64(words[i])
		}
	}
	return 0
}

// BoundedTable holds every integer in [0, Max]
type BoundedTable struct {
	Max uint64
}

// NewBoundedTable creates a table of the integers 0..max
func NewBoundedTable(max uint64) *BoundedTable {
	return &BoundedTable{Max: max}
}

func (t *BoundedTable) Name() string { return fmt.Sprintf("bounded%d", t.Max) }
func (t *BoundedTable) Arity() int   { return 1 }

// Contains reports whether the single value is at most Max
func (t *BoundedTable) Contains(values []fr.Element) bool {
	if len(values) != 1 || !values[0].IsUint64() {
		return false
	}
	return values[0].Uint64() <= t.Max
}

// BitwiseOp selects the relation of a BitwiseTable
type BitwiseOp int

const (
	BitwiseAnd BitwiseOp = iota
	BitwiseOr
	BitwiseXor
)

func (op BitwiseOp) String() string {
	switch op {
	case BitwiseAnd:
		return "and"
	case BitwiseOr:
		return "or"
	case BitwiseXor:
		return "xor"
	default:
		return fmt.Sprintf("bitwise(%d)", int(op))
	}
}

// BitwiseTable holds every triple (a, b, a op b) of 64-bit words
type BitwiseTable struct {
	Op BitwiseOp
}

// NewBitwiseTable creates a bitwise relation table
func NewBitwiseTable(op BitwiseOp) *BitwiseTable {
	return &BitwiseTable{Op: op}
}

func (t *BitwiseTable) Name() string { return t.Op.String() + "64" }
func (t *BitwiseTable) Arity() int   { return 3 }

// Contains reports whether values is a valid (a, b, result) triple
func (t *BitwiseTable) Contains(values []fr.Element) bool {
	if len(values) != 3 {
		return false
	}
	for i := range values {
		if !values[i].IsUint64() {
			return false
		}
	}
	a, b, r := values[0].Uint64(), values[1].Uint64(), values[2].Uint64()
	switch t.Op {
	case BitwiseAnd:
		return a&b == r
	case BitwiseOr:
		return a|b == r
	case BitwiseXor:
		return a^b == r
	default:
		return false
	}
}
