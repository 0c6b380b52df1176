package trace

import (
	"bytes"
	"errors"
	"math"
	"strings"
	"testing"

	"github.com/kunalsinghdadhwal/zephyr-proof/internal/zephyr-proof/core"
	"github.com/kunalsinghdadhwal/zephyr-proof/internal/zephyr-proof/evm"
)

const addTraceJSON = `{
	"opcodes": [96, 96, 1],
	"stack_states": [[], [], [1]],
	"gas_values": [1000, 997, 994]
}`

func TestParseJSONDerivesPCs(t *testing.T) {
	tr, err := ParseJSON([]byte(addTraceJSON))
	if err != nil {
		t.Fatalf("ParseJSON failed: %v", err)
	}
	if tr.Len() != 3 {
		t.Fatalf("expected 3 steps, got %d", tr.Len())
	}
	wantPCs := []uint64{0, 2, 4}
	for i, want := range wantPCs {
		if tr.Steps[i].PC != want {
			t.Errorf("step %d pc = %d, want %d", i, tr.Steps[i].PC, want)
		}
	}
	if err := Validate(tr); err != nil {
		t.Fatalf("Validate rejected example trace: %v", err)
	}
	if got := tr.GasUsed(); got != 9 {
		t.Errorf("GasUsed = %d, want 9", got)
	}
}

func TestParseJSONMnemonicsAndStorage(t *testing.T) {
	input := `{
		"opcodes": ["PUSH1", "PUSH1", "SSTORE", "PUSH1", "SLOAD"],
		"stack_states": [[], [7], [5, 7], [], [5]],
		"pcs": [0, 2, 4, 5, 7],
		"gas_values": [30000, 29997, 29994, 9994, 9991],
		"storage_ops": [
			{"step": 2, "key": 5, "value": 7, "is_write": true},
			{"step": 4, "key": 5, "value": 7, "is_write": false}
		],
		"tx_hash": "0xabc",
		"block_number": 12
	}`
	tr, err := ParseJSON([]byte(input))
	if err != nil {
		t.Fatalf("ParseJSON failed: %v", err)
	}
	if tr.Steps[2].Opcode != evm.SSTORE || tr.Steps[2].Storage == nil || !tr.Steps[2].Storage.IsWrite {
		t.Fatalf("step 2 should be an SSTORE with a write")
	}
	if tr.TxHash != "0xabc" || tr.BlockNumber == nil || *tr.BlockNumber != 12 {
		t.Errorf("metadata not decoded: %q %v", tr.TxHash, tr.BlockNumber)
	}
	if err := Validate(tr); err != nil {
		t.Fatalf("Validate failed: %v", err)
	}
	if tr.StorageWrites() != 1 {
		t.Errorf("StorageWrites = %d, want 1", tr.StorageWrites())
	}
}

func TestParseJSONStructuralErrors(t *testing.T) {
	tests := []struct {
		name  string
		input string
		code  core.ErrorCode
	}{
		{"length mismatch", `{"opcodes":[96,1],"stack_states":[[]],"gas_values":[10,7]}`, core.ErrLengthMismatch},
		{"pcs mismatch", `{"opcodes":[96],"stack_states":[[]],"gas_values":[10],"pcs":[0,1]}`, core.ErrLengthMismatch},
		{"unsupported opcode", `{"opcodes":[5],"stack_states":[[]],"gas_values":[10]}`, core.ErrUnsupportedOpcode},
		{"unknown mnemonic", `{"opcodes":["FROB"],"stack_states":[[]],"gas_values":[10]}`, core.ErrUnsupportedOpcode},
		{"negative word", `{"opcodes":[96],"stack_states":[[-1]],"gas_values":[10]}`, core.ErrMalformedInput},
		{"empty", `{"opcodes":[],"stack_states":[],"gas_values":[]}`, core.ErrEmptyTrace},
		{"storage step out of range", `{"opcodes":[96],"stack_states":[[]],"gas_values":[10],"storage_ops":[{"step":3}]}`, core.ErrMalformedInput},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ParseJSON([]byte(tt.input))
			if err == nil {
				t.Fatal("expected error")
			}
			if !core.HasCode(err, tt.code) {
				t.Errorf("expected %s, got %v", tt.code, err)
			}
			if core.KindOf(err) != core.KindStructural {
				t.Errorf("expected structural error, got %s", core.KindOf(err))
			}
		})
	}
}

func TestEncodeRoundTrip(t *testing.T) {
	tr, err := ParseJSON([]byte(addTraceJSON))
	if err != nil {
		t.Fatalf("ParseJSON failed: %v", err)
	}
	var buf bytes.Buffer
	if err := Encode(&buf, tr); err != nil {
		t.Fatalf("Encode failed: %v", err)
	}
	if !strings.Contains(buf.String(), `"pcs"`) {
		t.Error("encoded trace should carry explicit pcs")
	}
	again, err := Decode(&buf)
	if err != nil {
		t.Fatalf("Decode failed: %v", err)
	}
	for i := range tr.Steps {
		if tr.Steps[i].PC != again.Steps[i].PC || tr.Steps[i].Opcode != again.Steps[i].Opcode {
			t.Errorf("step %d differs after round trip", i)
		}
	}
}

func pushes(n int, gas uint64) *Trace {
	tr := &Trace{}
	for i := 0; i < n; i++ {
		tr.Steps = append(tr.Steps, Step{Opcode: evm.PUSH1, PC: uint64(2 * i), Gas: gas - uint64(3*i)})
	}
	return tr
}

func TestValidateSemanticErrors(t *testing.T) {
	deep := make([]uint64, evm.MaxStackDepth)

	tests := []struct {
		name string
		tr   *Trace
		code core.ErrorCode
		step int
	}{
		{
			name: "underflow",
			tr: &Trace{Steps: []Step{
				{Opcode: evm.PUSH1, PC: 0, Gas: 100},
				{Opcode: evm.ADD, PC: 2, Gas: 97},
			}},
			code: core.ErrStackUnderflow,
			step: 1,
		},
		{
			name: "overflow at 1025",
			tr: &Trace{Steps: []Step{
				{Opcode: evm.PUSH1, PC: 0, Stack: deep, Gas: 100},
			}},
			code: core.ErrStackOverflow,
			step: 0,
		},
		{
			name: "gas mismatch",
			tr: &Trace{Steps: []Step{
				{Opcode: evm.PUSH1, PC: 0, Gas: 1000},
				{Opcode: evm.PUSH1, PC: 2, Gas: 995},
			}},
			code: core.ErrGasMismatch,
			step: 1,
		},
		{
			name: "gas exhausted",
			tr: &Trace{Steps: []Step{
				{Opcode: evm.PUSH1, PC: 0, Gas: 2},
			}},
			code: core.ErrGasMismatch,
			step: 0,
		},
		{
			name: "pc mismatch",
			tr: &Trace{Steps: []Step{
				{Opcode: evm.PUSH1, PC: 0, Gas: 100},
				{Opcode: evm.PUSH1, PC: 1, Gas: 97},
			}},
			code: core.ErrPcMismatch,
			step: 1,
		},
		{
			name: "push past the last pc",
			tr: &Trace{Steps: []Step{
				{Opcode: evm.PUSH1, PC: math.MaxUint64 - 1, Gas: 1000},
			}},
			code: core.ErrPcMismatch,
			step: 0,
		},
		{
			name: "jumpi fallthrough past the last pc",
			tr: &Trace{Steps: []Step{
				{Opcode: evm.JUMPI, PC: math.MaxUint64, Stack: []uint64{7, 0}, Gas: 1000},
			}},
			code: core.ErrPcMismatch,
			step: 0,
		},
		{
			name: "snapshot deeper than tracked stack",
			tr: &Trace{Steps: []Step{
				{Opcode: evm.PUSH1, PC: 0, Gas: 100},
				{Opcode: evm.PUSH1, PC: 2, Stack: []uint64{1, 2}, Gas: 97},
			}},
			code: core.ErrStackMismatch,
			step: 1,
		},
		{
			name: "sload without storage op",
			tr: &Trace{Steps: []Step{
				{Opcode: evm.SLOAD, PC: 0, Stack: []uint64{4}, Gas: 1000},
			}},
			code: core.ErrStorageMismatch,
			step: 0,
		},
		{
			name: "sstore value mismatch",
			tr: &Trace{Steps: []Step{
				{Opcode: evm.SSTORE, PC: 0, Stack: []uint64{4, 9}, Gas: 30000,
					Storage: &StorageOp{Key: 4, Value: 8, IsWrite: true}},
			}},
			code: core.ErrStorageMismatch,
			step: 0,
		},
		{
			name: "storage op on add",
			tr: &Trace{Steps: []Step{
				{Opcode: evm.ADD, PC: 0, Stack: []uint64{1, 2}, Gas: 100,
					Storage: &StorageOp{Key: 1}},
			}},
			code: core.ErrStorageMismatch,
			step: 0,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := Validate(tt.tr)
			if err == nil {
				t.Fatal("expected validation error")
			}
			if !core.HasCode(err, tt.code) {
				t.Fatalf("expected %s, got %v", tt.code, err)
			}
			if core.KindOf(err) != core.KindSemantic {
				t.Errorf("expected semantic error, got %s", core.KindOf(err))
			}
			var e *core.Error
			if errors.As(err, &e) && e.Step != tt.step {
				t.Errorf("error step = %d, want %d", e.Step, tt.step)
			}
		})
	}
}

func TestValidateJumps(t *testing.T) {
	tr := &Trace{Steps: []Step{
		{Opcode: evm.PUSH1, PC: 0, Stack: []uint64{}, Gas: 100},
		{Opcode: evm.JUMP, PC: 2, Stack: []uint64{10}, Gas: 97},
		{Opcode: evm.PUSH1, PC: 10, Stack: []uint64{}, Gas: 89},
		{Opcode: evm.PUSH1, PC: 12, Stack: []uint64{}, Gas: 86},
		{Opcode: evm.JUMPI, PC: 14, Stack: []uint64{20, 0}, Gas: 83},
		{Opcode: evm.STOP, PC: 15, Stack: []uint64{}, Gas: 73},
	}}
	if err := Validate(tr); err != nil {
		t.Fatalf("Validate failed: %v", err)
	}

	tr.Steps[2].PC = 11
	if err := Validate(tr); !core.HasCode(err, core.ErrPcMismatch) {
		t.Errorf("expected PcMismatch for wrong jump target, got %v", err)
	}
}

func TestValidateLastPC(t *testing.T) {
	tr := &Trace{Steps: []Step{
		{Opcode: evm.PUSH1, PC: math.MaxUint64 - 2, Stack: []uint64{7, 1}, Gas: 1000},
		{Opcode: evm.JUMPI, PC: math.MaxUint64, Stack: []uint64{7, 1}, Gas: 997},
		{Opcode: evm.STOP, PC: 7, Stack: []uint64{}, Gas: 987},
	}}
	if err := Validate(tr); err != nil {
		t.Fatalf("successors up to 2^64-1 should validate: %v", err)
	}
}

func TestValidateLongTrace(t *testing.T) {
	tr := pushes(evm.MaxStackDepth, 1_000_000)
	if err := Validate(tr); err != nil {
		t.Fatalf("1024 pushes should validate: %v", err)
	}
	tr = pushes(evm.MaxStackDepth+1, 1_000_000)
	if err := Validate(tr); !core.HasCode(err, core.ErrStackOverflow) {
		t.Fatalf("expected StackOverflow, got %v", err)
	}
}

func TestStateTracking(t *testing.T) {
	tr, err := ParseJSON([]byte(addTraceJSON))
	if err != nil {
		t.Fatalf("ParseJSON failed: %v", err)
	}
	depths := tr.Depths()
	want := []int{0, 1, 2}
	for i := range want {
		if depths[i] != want[i] {
			t.Errorf("depth[%d] = %d, want %d", i, depths[i], want[i])
		}
	}
	exit := tr.ExitState()
	if exit.Gas != 991 || exit.Depth != 1 || exit.PC != 5 {
		t.Errorf("unexpected exit state %+v", exit)
	}
	hist := tr.Histogram()
	if hist[evm.PUSH1] != 2 || hist[evm.ADD] != 1 {
		t.Errorf("unexpected histogram %v", hist)
	}
}
