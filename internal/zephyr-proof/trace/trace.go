// Package trace holds the EVM execution trace model and its validation.
package trace

import (
	"github.com/kunalsinghdadhwal/zephyr-proof/internal/zephyr-proof/evm"
)

// StorageOp is the storage access performed by an SLOAD or SSTORE step
type StorageOp struct {
	Key     uint64
	Value   uint64
	IsWrite bool
}

// Step is a single executed opcode with the machine state before it runs.
// Stack is a view of the pre-step stack, top first, possibly truncated.
type Step struct {
	Opcode  evm.OpCode
	PC      uint64
	Stack   []uint64
	Gas     uint64
	Storage *StorageOp
}

// Word returns the i-th stack word from the top, or zero beyond the snapshot
func (s *Step) Word(i int) uint64 {
	if i < len(s.Stack) {
		return s.Stack[i]
	}
	return 0
}

// Trace is an ordered sequence of executed steps
type Trace struct {
	Steps       []Step
	TxHash      string
	BlockNumber *uint64
}

// Len returns num_steps
func (t *Trace) Len() int {
	return len(t.Steps)
}

// State is the continuation state carried into a step: gas remaining,
// tracked stack depth and program counter.
type State struct {
	Gas   uint64
	Depth int
	PC    uint64
}

// EntryState returns the state before the first step
func (t *Trace) EntryState() State {
	if len(t.Steps) == 0 {
		return State{}
	}
	first := &t.Steps[0]
	return State{Gas: first.Gas, Depth: len(first.Stack), PC: first.PC}
}

// Apply returns the state after executing s from the pre-step depth.
// Gas wraps if the step cost exceeds the gas left; Validate rejects such traces.
func (s *Step) Apply(depth int) State {
	info := evm.MustLookup(s.Opcode)
	return State{
		Gas:   s.Gas - info.Cost,
		Depth: depth + info.Delta(),
		PC:    evm.NextPC(s.Opcode, s.PC, s.Word(0), s.Word(1)),
	}
}

// Depths returns the tracked pre-step stack depth of every step
func (t *Trace) Depths() []int {
	depths := make([]int, len(t.Steps))
	if len(t.Steps) == 0 {
		return depths
	}
	depth := len(t.Steps[0].Stack)
	for i := range t.Steps {
		depths[i] = depth
		depth += evm.MustLookup(t.Steps[i].Opcode).Delta()
	}
	return depths
}

// ExitState returns the state after the last step
func (t *Trace) ExitState() State {
	if len(t.Steps) == 0 {
		return State{}
	}
	depths := t.Depths()
	last := len(t.Steps) - 1
	return t.Steps[last].Apply(depths[last])
}

// GasUsed returns the gas consumed by the whole trace
func (t *Trace) GasUsed() uint64 {
	if len(t.Steps) == 0 {
		return 0
	}
	return t.Steps[0].Gas - t.ExitState().Gas
}

// Histogram counts executed opcodes
func (t *Trace) Histogram() map[evm.OpCode]uint64 {
	hist := make(map[evm.OpCode]uint64)
	for i := range t.Steps {
		hist[t.Steps[i].Opcode]++
	}
	return hist
}

// StorageWrites counts SSTORE steps
func (t *Trace) StorageWrites() uint64 {
	var n uint64
	for i := range t.Steps {
		if t.Steps[i].Storage != nil && t.Steps[i].Storage.IsWrite {
			n++
		}
	}
	return n
}
