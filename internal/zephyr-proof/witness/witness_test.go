package witness

import (
	"bytes"
	"testing"

	"github.com/consensys/gnark-crypto/ecc/bn254/fr"

	"github.com/kunalsinghdadhwal/zephyr-proof/internal/zephyr-proof/core"
	"github.com/kunalsinghdadhwal/zephyr-proof/internal/zephyr-proof/evm"
	"github.com/kunalsinghdadhwal/zephyr-proof/internal/zephyr-proof/trace"
)

func addTrace() *trace.Trace {
	return &trace.Trace{Steps: []trace.Step{
		{Opcode: evm.PUSH1, PC: 0, Stack: []uint64{}, Gas: 1000},
		{Opcode: evm.PUSH1, PC: 2, Stack: []uint64{}, Gas: 997},
		{Opcode: evm.ADD, PC: 4, Stack: []uint64{1}, Gas: 994},
	}}
}

func TestBuildColumns(t *testing.T) {
	w, err := NewBuilder(0).Build(addTrace())
	if err != nil {
		t.Fatalf("Build failed: %v", err)
	}
	if w.Len() != 3 {
		t.Fatalf("expected 3 rows, got %d", w.Len())
	}
	for _, col := range [][]uint64{w.PCs, w.Gas, w.S0, w.S1, w.S2, w.Results} {
		if len(col) != 3 {
			t.Fatalf("column has %d entries, want 3", len(col))
		}
	}
	if w.S0[2] != 1 || w.S1[2] != 0 {
		t.Errorf("ADD operands = (%d, %d), want (1, 0)", w.S0[2], w.S1[2])
	}
	// PUSH1 at step 1 pushes the word seen on top at step 2
	if w.Results[1] != 1 {
		t.Errorf("PUSH1 result = %d, want 1", w.Results[1])
	}
	if w.Results[2] != 1 {
		t.Errorf("ADD result = %d, want 1", w.Results[2])
	}
	if w.GasUsed() != 9 {
		t.Errorf("GasUsed = %d, want 9", w.GasUsed())
	}
}

func TestBuildDeterministic(t *testing.T) {
	a, err := NewBuilder(0).Build(addTrace())
	if err != nil {
		t.Fatalf("Build failed: %v", err)
	}
	b, err := NewBuilder(0).Build(addTrace())
	if err != nil {
		t.Fatalf("Build failed: %v", err)
	}
	if !bytes.Equal(a.Bytes(), b.Bytes()) {
		t.Error("witness bytes differ between runs")
	}
	if !a.Commitment.Equal(&b.Commitment) {
		t.Error("commitment differs between runs")
	}
}

func TestCommitmentBindsTrace(t *testing.T) {
	base := Commit(addTrace())

	changed := addTrace()
	changed.Steps[2].Stack[0] = 2
	if c := Commit(changed); c.Equal(&base) {
		t.Error("commitment did not change with the stack snapshot")
	}

	withStorage := addTrace()
	withStorage.Steps[0].Storage = &trace.StorageOp{Key: 1}
	if c := Commit(withStorage); c.Equal(&base) {
		t.Error("commitment did not change with a storage op")
	}
}

func TestReduceDigest(t *testing.T) {
	var max [32]byte
	for i := range max {
		max[i] = 0xff
	}
	e := ReduceDigest(max)
	b := e.Bytes()
	var check fr.Element
	if err := check.SetBytesCanonical(b[:]); err != nil {
		t.Fatalf("reduced digest is not canonical: %v", err)
	}

	var small [32]byte
	small[31] = 7
	if got := ReduceDigest(small); !got.Equal(new(fr.Element).SetUint64(7)) {
		t.Errorf("small digest reduced to %s, want 7", got.String())
	}
}

func TestWindowSharesCommitment(t *testing.T) {
	w, err := NewBuilder(0).Build(addTrace())
	if err != nil {
		t.Fatalf("Build failed: %v", err)
	}
	win := w.Window(1, 3)
	if win.Len() != 2 || win.Offset != 1 {
		t.Fatalf("unexpected window len=%d offset=%d", win.Len(), win.Offset)
	}
	if !win.Commitment.Equal(&w.Commitment) {
		t.Error("window commitment differs from the full witness")
	}
	if win.Opcodes[1] != evm.ADD {
		t.Errorf("window row 1 = %s, want ADD", win.Opcodes[1])
	}
	post := w.PostState(0)
	if post != w.StateAt(1) {
		t.Errorf("post state %+v differs from next state %+v", post, w.StateAt(1))
	}
}

func TestBuildErrors(t *testing.T) {
	if _, err := NewBuilder(0).Build(&trace.Trace{}); !core.HasCode(err, core.ErrEmptyTrace) {
		t.Errorf("expected EmptyTrace, got %v", err)
	}
	if _, err := NewBuilder(2).Build(addTrace()); !core.HasCode(err, core.ErrWidthOverflow) {
		t.Errorf("expected WidthOverflow, got %v", err)
	}
}
