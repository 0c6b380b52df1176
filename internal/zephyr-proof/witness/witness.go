// Package witness flattens a validated trace into fixed-width columns and
// computes the trace commitment shared by every chunk of one proof.
package witness

import (
	"encoding/binary"

	"github.com/consensys/gnark-crypto/ecc/bn254/fr"

	"github.com/kunalsinghdadhwal/zephyr-proof/internal/zephyr-proof/core"
	"github.com/kunalsinghdadhwal/zephyr-proof/internal/zephyr-proof/evm"
	"github.com/kunalsinghdadhwal/zephyr-proof/internal/zephyr-proof/trace"
)

// Witness holds one column entry per step. It is never mutated after Build;
// windows share the backing arrays and the commitment.
type Witness struct {
	Opcodes []evm.OpCode
	PCs     []uint64
	Gas     []uint64
	Depths  []int

	// Top three pre-step stack words, zero padded
	S0 []uint64
	S1 []uint64
	S2 []uint64

	// Declared result word of each step, zero for opcodes without a result
	Results []uint64

	HasStorage    []bool
	StorageKeys   []uint64
	StorageValues []uint64
	StorageWrites []bool

	// Offset of the first row within the full trace
	Offset int

	Commitment fr.Element
}

// Builder builds witnesses for traces of at most MaxSteps steps (0 = unbounded)
type Builder struct {
	MaxSteps int
}

// NewBuilder creates a witness builder
func NewBuilder(maxSteps int) *Builder {
	return &Builder{MaxSteps: maxSteps}
}

// Build flattens tr. The trace is expected to have passed trace.Validate.
func (b *Builder) Build(tr *trace.Trace) (*Witness, error) {
	if tr == nil || len(tr.Steps) == 0 {
		return nil, core.NewError(core.ErrEmptyTrace, "trace has no steps")
	}
	n := len(tr.Steps)
	if b.MaxSteps > 0 && n > b.MaxSteps {
		return nil, core.NewError(core.ErrWidthOverflow,
			"trace has %d steps, the configured circuit size holds at most %d", n, b.MaxSteps)
	}
	for i := range tr.Steps {
		if !evm.IsSupported(tr.Steps[i].Opcode) {
			return nil, core.StepError(core.ErrUnsupportedOpcode, i, "opcode 0x%02x is not supported",
				byte(tr.Steps[i].Opcode))
		}
	}

	w := &Witness{
		Opcodes:       make([]evm.OpCode, n),
		PCs:           make([]uint64, n),
		Gas:           make([]uint64, n),
		Depths:        tr.Depths(),
		S0:            make([]uint64, n),
		S1:            make([]uint64, n),
		S2:            make([]uint64, n),
		Results:       make([]uint64, n),
		HasStorage:    make([]bool, n),
		StorageKeys:   make([]uint64, n),
		StorageValues: make([]uint64, n),
		StorageWrites: make([]bool, n),
	}

	for i := range tr.Steps {
		s := &tr.Steps[i]
		w.Opcodes[i] = s.Opcode
		w.PCs[i] = s.PC
		w.Gas[i] = s.Gas
		w.S0[i] = s.Word(0)
		w.S1[i] = s.Word(1)
		w.S2[i] = s.Word(2)
		if s.Storage != nil {
			w.HasStorage[i] = true
			w.StorageKeys[i] = s.Storage.Key
			w.StorageValues[i] = s.Storage.Value
			w.StorageWrites[i] = s.Storage.IsWrite
		}
		w.Results[i] = declaredResult(tr, i)
	}

	w.Commitment = Commit(tr)
	return w, nil
}

// declaredResult is the word the step leaves on top of the stack. Opcodes
// whose result is not a function of the stack (PUSH, MLOAD) take it from the
// next snapshot when one is available.
func declaredResult(tr *trace.Trace, i int) uint64 {
	s := &tr.Steps[i]
	info := evm.MustLookup(s.Opcode)
	if !info.HasResult() {
		return 0
	}
	if s.Opcode == evm.SLOAD {
		if s.Storage != nil {
			return s.Storage.Value
		}
		return 0
	}
	if v, ok := evm.Eval(s.Opcode, s.Word(0), s.Word(1), s.Word(2)); ok {
		return v
	}
	if i+1 < len(tr.Steps) && len(tr.Steps[i+1].Stack) > 0 {
		return tr.Steps[i+1].Stack[0]
	}
	return 0
}

// Len returns the number of steps covered by the witness
func (w *Witness) Len() int {
	return len(w.Opcodes)
}

// Window returns the rows [start, end) as a witness sharing the commitment
func (w *Witness) Window(start, end int) *Witness {
	return &Witness{
		Opcodes:       w.Opcodes[start:end],
		PCs:           w.PCs[start:end],
		Gas:           w.Gas[start:end],
		Depths:        w.Depths[start:end],
		S0:            w.S0[start:end],
		S1:            w.S1[start:end],
		S2:            w.S2[start:end],
		Results:       w.Results[start:end],
		HasStorage:    w.HasStorage[start:end],
		StorageKeys:   w.StorageKeys[start:end],
		StorageValues: w.StorageValues[start:end],
		StorageWrites: w.StorageWrites[start:end],
		Offset:        w.Offset + start,
		Commitment:    w.Commitment,
	}
}

// StateAt returns the continuation state before row i
func (w *Witness) StateAt(i int) trace.State {
	return trace.State{Gas: w.Gas[i], Depth: w.Depths[i], PC: w.PCs[i]}
}

// PostState returns the continuation state after row i
func (w *Witness) PostState(i int) trace.State {
	op := w.Opcodes[i]
	info := evm.MustLookup(op)
	return trace.State{
		Gas:   w.Gas[i] - info.Cost,
		Depth: w.Depths[i] + info.Delta(),
		PC:    evm.NextPC(op, w.PCs[i], w.S0[i], w.S1[i]),
	}
}

// GasUsed returns the gas consumed by the rows of the witness
func (w *Witness) GasUsed() uint64 {
	if w.Len() == 0 {
		return 0
	}
	return w.Gas[0] - w.PostState(w.Len()-1).Gas
}

// Bytes serializes every column and the commitment
func (w *Witness) Bytes() []byte {
	n := w.Len()
	buf := make([]byte, 0, 8+n*(1+8*8+3)+fr.Bytes)
	buf = binary.BigEndian.AppendUint64(buf, uint64(n))
	for i := 0; i < n; i++ {
		buf = append(buf, byte(w.Opcodes[i]))
		buf = binary.BigEndian.AppendUint64(buf, w.PCs[i])
		buf = binary.BigEndian.AppendUint64(buf, w.Gas[i])
		buf = binary.BigEndian.AppendUint64(buf, uint64(w.Depths[i]))
		buf = binary.BigEndian.AppendUint64(buf, w.S0[i])
		buf = binary.BigEndian.AppendUint64(buf, w.S1[i])
		buf = binary.BigEndian.AppendUint64(buf, w.S2[i])
		buf = binary.BigEndian.AppendUint64(buf, w.Results[i])
		buf = binary.BigEndian.AppendUint64(buf, w.StorageKeys[i])
		buf = binary.BigEndian.AppendUint64(buf, w.StorageValues[i])
		buf = append(buf, boolByte(w.HasStorage[i]), boolByte(w.StorageWrites[i]))
	}
	commitment := w.Commitment.Bytes()
	return append(buf, commitment[:]...)
}

func boolByte(b bool) byte {
	if b {
		return 1
	}
	return 0
}
