// Package chips defines the circuit column layout and the opcode constraint
// chips: selector dispatch, arithmetic, gas, stack, storage, control flow and
// the activity counters that bind a chunk's public summary.
package chips

import (
	"github.com/consensys/gnark-crypto/ecc/bn254/fr"

	"github.com/kunalsinghdadhwal/zephyr-proof/internal/zephyr-proof/evm"
)

// Fixed columns
const (
	ColSelArith = iota
	ColSelStack
	ColSelStorage
	ColSelMemory
	ColSelControl

	ColOpcode
	ColPC
	ColGas
	ColDepth
	ColS0
	ColS1
	ColS2
	ColResult
	ColAux0
	ColAux1
	ColAux2
	ColInv
	ColFlag
	ColNextPC
	ColCost
	ColDelta
	ColPops

	ColStKey
	ColStValue
	ColStWrite
	ColStDiff

	ColActive
	ColStepsSeen
	ColWritesSeen

	// ColIndicatorBase is followed by one indicator column per supported opcode
	// and then one running counter column per supported opcode.
	ColIndicatorBase
)

// Public input positions
const (
	PubCommitment = iota
	PubChunkIndex
	PubRows
	PubGasIn
	PubDepthIn
	PubPCIn
	PubGasOut
	PubDepthOut
	PubPCOut
	PubStorageWrites
	PubHistogramBase
)

var (
	// Opcodes lists the supported opcodes in column order
	Opcodes = evm.Supported()

	// NumOpcodes is the number of indicator (and counter) columns
	NumOpcodes = len(Opcodes)

	// ColCounterBase is the first running opcode counter column
	ColCounterBase = ColIndicatorBase + NumOpcodes

	// NumColumns is the table width
	NumColumns = ColCounterBase + NumOpcodes

	// NumPublicInputs is the length of one chunk's public input vector
	NumPublicInputs = PubHistogramBase + NumOpcodes
)

// Indicator returns the indicator column of op
func Indicator(op evm.OpCode) int {
	return ColIndicatorBase + evm.Index(op)
}

// Counter returns the running counter column of op
func Counter(op evm.OpCode) int {
	return ColCounterBase + evm.Index(op)
}

// SelectorColumn returns the family selector column
func SelectorColumn(f evm.Family) int {
	return ColSelArith + int(f)
}

// Step is the per-row input to the chips
type Step struct {
	Opcode evm.OpCode
	PC     uint64
	Gas    uint64
	Depth  int
	S0     uint64
	S1     uint64
	S2     uint64
	Result uint64

	HasStorage bool
	StKey      uint64
	StValue    uint64
	StWrite    bool

	Active bool
}

// PadStep returns the no-op row that carries the exit state after the last real step
func PadStep(gas uint64, depth int, pc uint64) Step {
	return Step{Opcode: evm.STOP, PC: pc, Gas: gas, Depth: depth}
}

// NewRow allocates an all-zero row
func NewRow() []fr.Element {
	return make([]fr.Element, NumColumns)
}

func ind(row []fr.Element, op evm.OpCode) fr.Element {
	return row[Indicator(op)]
}

func signed(v int) fr.Element {
	var e fr.Element
	e.SetInt64(int64(v))
	return e
}
