package circuit

import (
	"errors"
	"testing"

	"github.com/kunalsinghdadhwal/zephyr-proof/internal/zephyr-proof/chips"
	"github.com/kunalsinghdadhwal/zephyr-proof/internal/zephyr-proof/constraints"
	"github.com/kunalsinghdadhwal/zephyr-proof/internal/zephyr-proof/core"
	"github.com/kunalsinghdadhwal/zephyr-proof/internal/zephyr-proof/evm"
	"github.com/kunalsinghdadhwal/zephyr-proof/internal/zephyr-proof/trace"
	"github.com/kunalsinghdadhwal/zephyr-proof/internal/zephyr-proof/witness"
)

// pushPushAdd is PUSH1 1, PUSH1 2, ADD with gas 1000, 997, 994
func pushPushAdd() *trace.Trace {
	return &trace.Trace{Steps: []trace.Step{
		{Opcode: evm.PUSH1, PC: 0, Gas: 1000},
		{Opcode: evm.PUSH1, PC: 2, Gas: 997, Stack: []uint64{1}},
		{Opcode: evm.ADD, PC: 4, Gas: 994, Stack: []uint64{2, 1}},
	}}
}

func buildWitness(t *testing.T, tr *trace.Trace) *witness.Witness {
	t.Helper()
	if err := trace.Validate(tr); err != nil {
		t.Fatalf("Validate: %v", err)
	}
	w, err := witness.NewBuilder(0).Build(tr)
	if err != nil {
		t.Fatalf("Build: %v", err)
	}
	return w
}

func assemble(t *testing.T, w *witness.Witness, k int) *Circuit {
	t.Helper()
	c, err := Assemble(w, Entry{Chunk: 0, State: w.StateAt(0)}, k)
	if err != nil {
		t.Fatalf("Assemble: %v", err)
	}
	return c
}

func TestAssembleSatisfiesConstraints(t *testing.T) {
	w := buildWitness(t, pushPushAdd())
	for _, k := range []int{2, 3, 5} {
		c := assemble(t, w, k)
		if c.NumRows() != 1<<k {
			t.Errorf("k=%d: %d rows", k, c.NumRows())
		}
		if err := c.CheckConstraints(); err != nil {
			t.Errorf("k=%d: %v", k, err)
		}
	}
}

func TestPublicInputs(t *testing.T) {
	w := buildWitness(t, pushPushAdd())
	c := assemble(t, w, 2)

	s, err := c.Public.Summary()
	if err != nil {
		t.Fatalf("Summary: %v", err)
	}
	want := trace.State{Gas: 991, Depth: 1, PC: 5}
	if s.Exit != want {
		t.Errorf("exit = %+v, want %+v", s.Exit, want)
	}
	if s.Entry != (trace.State{Gas: 1000, Depth: 0, PC: 0}) {
		t.Errorf("entry = %+v", s.Entry)
	}
	if s.Rows != 3 || s.GasUsed() != 9 {
		t.Errorf("rows %d gas used %d", s.Rows, s.GasUsed())
	}
	if s.Histogram[evm.PUSH1] != 2 || s.Histogram[evm.ADD] != 1 || len(s.Histogram) != 2 {
		t.Errorf("histogram = %v", s.Histogram)
	}
	commitment := c.Public.Commitment()
	if !commitment.Equal(&w.Commitment) {
		t.Error("commitment not carried into public inputs")
	}

	parsed, err := ParsePublicInputs(c.Public.Strings())
	if err != nil {
		t.Fatalf("ParsePublicInputs: %v", err)
	}
	if !parsed.Equal(c.Public) {
		t.Error("public inputs changed through decimal strings")
	}
}

func TestParseElementRejectsNonCanonical(t *testing.T) {
	for _, s := range []string{"", "-1", "01", "0x10", "1_000", "12a",
		"21888242871839275222246405745257275088548364400416034343698204186575808495617"} {
		if _, err := ParseElement(s); err == nil {
			t.Errorf("ParseElement(%q) accepted", s)
		}
	}
	e, err := ParseElement("21888242871839275222246405745257275088548364400416034343698204186575808495616")
	if err != nil {
		t.Fatalf("r-1 rejected: %v", err)
	}
	if FormatElement(&e) != "21888242871839275222246405745257275088548364400416034343698204186575808495616" {
		t.Errorf("r-1 formatted as %s", FormatElement(&e))
	}
}

func TestRowOverflow(t *testing.T) {
	tr := pushPushAdd()
	tr.Steps = append(tr.Steps,
		trace.Step{Opcode: evm.PUSH1, PC: 5, Gas: 991, Stack: []uint64{3}},
		trace.Step{Opcode: evm.POP, PC: 7, Gas: 988, Stack: []uint64{7, 3}},
	)
	w := buildWitness(t, tr)
	_, err := Assemble(w, Entry{State: w.StateAt(0)}, 2)
	if !core.HasCode(err, core.ErrRowOverflow) {
		t.Fatalf("expected RowOverflow, got %v", err)
	}
	if c := assemble(t, w, 3); c.CheckConstraints() != nil {
		t.Errorf("five steps at k=3: %v", c.CheckConstraints())
	}
}

func TestInvalidK(t *testing.T) {
	w := buildWitness(t, pushPushAdd())
	for _, k := range []int{MinK - 1, MaxK + 1} {
		if _, err := Assemble(w, Entry{State: w.StateAt(0)}, k); !core.HasCode(err, core.ErrInvalidConfig) {
			t.Errorf("k=%d: got %v", k, err)
		}
	}
}

func TestTamperedTableRejected(t *testing.T) {
	w := buildWitness(t, pushPushAdd())

	tests := []struct {
		name   string
		tamper func(c *Circuit)
		kind   constraints.Kind
		step   int
	}{
		{"gas skipped", func(c *Circuit) { c.Rows[1][chips.ColGas] = constraints.Const(998) }, constraints.KindTransition, 0},
		{"wrong entry", func(c *Circuit) { c.Public[chips.PubGasIn] = constraints.Const(999) }, constraints.KindInitial, 0},
		{"wrong exit", func(c *Circuit) { c.Public[chips.PubPCOut] = constraints.Const(6) }, constraints.KindTerminal, -1},
		{"hidden step", func(c *Circuit) { c.Public[chips.PubRows] = constraints.Const(2) }, constraints.KindTerminal, -1},
		{"wrong sum", func(c *Circuit) { c.Rows[2][chips.ColResult] = constraints.Const(4) }, constraints.KindConsistency, 2},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := assemble(t, w, 2)
			tt.tamper(c)
			err := c.CheckConstraints()
			if !core.HasCode(err, core.ErrConstraintViolation) {
				t.Fatalf("expected ConstraintViolation, got %v", err)
			}
			var v *constraints.Violation
			if !errors.As(err, &v) || v.Kind != tt.kind {
				t.Errorf("violation = %v, want kind %s", v, tt.kind)
			}
			var e *core.Error
			if errors.As(err, &e) && e.Step != tt.step {
				t.Errorf("step = %d, want %d", e.Step, tt.step)
			}
		})
	}
}

func TestFingerprintDeterministic(t *testing.T) {
	w := buildWitness(t, pushPushAdd())
	a := assemble(t, w, 3).Fingerprint()
	b := assemble(t, w, 3).Fingerprint()
	if a != b {
		t.Error("fingerprint differs between assemblies")
	}
	if a == assemble(t, w, 4).Fingerprint() {
		t.Error("fingerprint ignores k")
	}
}

func TestShape(t *testing.T) {
	s, err := NewShape(10, 2)
	if err != nil {
		t.Fatalf("NewShape: %v", err)
	}
	if s.NumChunks() != 3 || s.ChunkRows[2] != 2 || s.Capacity() != 4 {
		t.Errorf("shape = %+v", s)
	}
	if s.NumPublicInputs() != 3*chips.NumPublicInputs {
		t.Errorf("NumPublicInputs = %d", s.NumPublicInputs())
	}
	if _, err := NewShape(MaxSteps(2)+1, 2); !core.HasCode(err, core.ErrWidthOverflow) {
		t.Errorf("oversized trace: got %v", err)
	}
	if _, err := NewShape(0, 2); !core.HasCode(err, core.ErrEmptyTrace) {
		t.Errorf("empty trace: got %v", err)
	}
}
