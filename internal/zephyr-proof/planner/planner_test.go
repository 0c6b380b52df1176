package planner

import (
	"reflect"
	"testing"

	"github.com/kunalsinghdadhwal/zephyr-proof/internal/zephyr-proof/core"
	"github.com/kunalsinghdadhwal/zephyr-proof/internal/zephyr-proof/evm"
	"github.com/kunalsinghdadhwal/zephyr-proof/internal/zephyr-proof/trace"
	"github.com/kunalsinghdadhwal/zephyr-proof/internal/zephyr-proof/witness"
)

// pushPopTrace alternates PUSH1 and POP for n steps
func pushPopTrace(n int) *trace.Trace {
	tr := &trace.Trace{Steps: make([]trace.Step, n)}
	gas, pc := uint64(100_000), uint64(0)
	for i := range tr.Steps {
		op := evm.PUSH1
		if i%2 == 1 {
			op = evm.POP
		}
		tr.Steps[i] = trace.Step{Opcode: op, PC: pc, Gas: gas}
		gas -= op.Cost()
		pc = evm.NextPC(op, pc, 0, 0)
	}
	return tr
}

func build(t *testing.T, n int) *witness.Witness {
	t.Helper()
	tr := pushPopTrace(n)
	if err := trace.Validate(tr); err != nil {
		t.Fatalf("test trace invalid: %v", err)
	}
	w, err := witness.NewBuilder(0).Build(tr)
	if err != nil {
		t.Fatalf("Build: %v", err)
	}
	return w
}

func TestChunkSizes(t *testing.T) {
	tests := []struct {
		steps, maxRows int
		want           []int
	}{
		{3, 4, []int{3}},
		{4, 4, []int{4}},
		{5, 4, []int{4, 1}},
		{10, 4, []int{4, 4, 2}},
		{0, 4, nil},
		{5, 0, nil},
	}
	for _, tt := range tests {
		if got := ChunkSizes(tt.steps, tt.maxRows); !reflect.DeepEqual(got, tt.want) {
			t.Errorf("ChunkSizes(%d, %d) = %v, want %v", tt.steps, tt.maxRows, got, tt.want)
		}
	}
}

func TestPlanContinuity(t *testing.T) {
	w := build(t, 11)
	entry := w.StateAt(0)
	chunks, err := Plan(w, entry, 4)
	if err != nil {
		t.Fatalf("Plan: %v", err)
	}
	if len(chunks) != 3 {
		t.Fatalf("got %d chunks, want 3", len(chunks))
	}
	if chunks[0].Entry != entry {
		t.Errorf("chunk 0 entry %+v, want %+v", chunks[0].Entry, entry)
	}
	for i, c := range chunks {
		if c.Index != i {
			t.Errorf("chunk %d has index %d", i, c.Index)
		}
		if c.Entry != w.StateAt(c.Start) {
			t.Errorf("chunk %d entry %+v differs from row state %+v", i, c.Entry, w.StateAt(c.Start))
		}
	}
	if chunks[2].Len() != 3 || chunks[2].End != 11 {
		t.Errorf("last chunk = %+v", chunks[2])
	}
	if !Continuous(w, chunks) {
		t.Error("planned chunks are not continuous")
	}

	chunks[1].Entry.Gas++
	if Continuous(w, chunks) {
		t.Error("broken boundary reported continuous")
	}
}

func TestPlanErrors(t *testing.T) {
	if _, err := Plan(nil, trace.State{}, 4); !core.HasCode(err, core.ErrEmptyTrace) {
		t.Errorf("nil witness: got %v", err)
	}
	w := build(t, 2)
	if _, err := Plan(w, w.StateAt(0), 0); !core.HasCode(err, core.ErrInvalidConfig) {
		t.Errorf("zero rows: got %v", err)
	}
}
