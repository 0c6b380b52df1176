package trace

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"strconv"

	"github.com/kunalsinghdadhwal/zephyr-proof/internal/zephyr-proof/core"
	"github.com/kunalsinghdadhwal/zephyr-proof/internal/zephyr-proof/evm"
)

// jsonTrace is the external trace format
type jsonTrace struct {
	Opcodes     []json.RawMessage `json:"opcodes"`
	StackStates [][]uint64        `json:"stack_states"`
	PCs         []uint64          `json:"pcs,omitempty"`
	GasValues   []uint64          `json:"gas_values"`
	StorageOps  []jsonStorageOp   `json:"storage_ops,omitempty"`
	TxHash      string            `json:"tx_hash,omitempty"`
	BlockNumber *uint64           `json:"block_number,omitempty"`
}

type jsonStorageOp struct {
	Step    int    `json:"step"`
	Key     uint64 `json:"key"`
	Value   uint64 `json:"value"`
	IsWrite bool   `json:"is_write"`
}

// Decode reads a JSON trace. Opcodes may be integers or mnemonics; pcs are
// derived from the opcode stream when omitted. Decoding only checks structure.
func Decode(r io.Reader) (*Trace, error) {
	var raw jsonTrace
	if err := json.NewDecoder(r).Decode(&raw); err != nil {
		return nil, core.Wrap(core.ErrMalformedInput, err, "failed to parse trace JSON")
	}
	return raw.toTrace()
}

// ParseJSON parses a JSON trace held in memory
func ParseJSON(data []byte) (*Trace, error) {
	return Decode(bytes.NewReader(data))
}

func (raw *jsonTrace) toTrace() (*Trace, error) {
	n := len(raw.Opcodes)
	if n == 0 {
		return nil, core.NewError(core.ErrEmptyTrace, "trace has no steps")
	}
	if len(raw.StackStates) != n || len(raw.GasValues) != n {
		return nil, core.NewError(core.ErrLengthMismatch,
			"opcodes=%d stack_states=%d gas_values=%d", n, len(raw.StackStates), len(raw.GasValues))
	}
	if raw.PCs != nil && len(raw.PCs) != n {
		return nil, core.NewError(core.ErrLengthMismatch, "opcodes=%d pcs=%d", n, len(raw.PCs))
	}

	tr := &Trace{
		Steps:       make([]Step, n),
		TxHash:      raw.TxHash,
		BlockNumber: raw.BlockNumber,
	}
	for i := 0; i < n; i++ {
		op, err := parseOpcode(raw.Opcodes[i])
		if err != nil {
			return nil, &core.Error{Code: core.ErrUnsupportedOpcode, Step: i, Chunk: -1,
				Message: "invalid opcode", Cause: err}
		}
		tr.Steps[i] = Step{
			Opcode: op,
			Stack:  append([]uint64(nil), raw.StackStates[i]...),
			Gas:    raw.GasValues[i],
		}
	}

	if raw.PCs != nil {
		for i := range tr.Steps {
			tr.Steps[i].PC = raw.PCs[i]
		}
	} else {
		for i := 1; i < n; i++ {
			prev := &tr.Steps[i-1]
			tr.Steps[i].PC = evm.NextPC(prev.Opcode, prev.PC, prev.Word(0), prev.Word(1))
		}
	}

	for _, op := range raw.StorageOps {
		if op.Step < 0 || op.Step >= n {
			return nil, core.NewError(core.ErrMalformedInput, "storage op step %d out of range [0, %d)", op.Step, n)
		}
		if tr.Steps[op.Step].Storage != nil {
			return nil, core.StepError(core.ErrMalformedInput, op.Step, "duplicate storage op")
		}
		tr.Steps[op.Step].Storage = &StorageOp{Key: op.Key, Value: op.Value, IsWrite: op.IsWrite}
	}

	return tr, nil
}

func parseOpcode(raw json.RawMessage) (evm.OpCode, error) {
	var code uint64
	if err := json.Unmarshal(raw, &code); err == nil {
		if code > 0xff {
			return 0, fmt.Errorf("opcode %d does not fit in a byte", code)
		}
		op := evm.OpCode(code)
		if !evm.IsSupported(op) {
			return 0, fmt.Errorf("opcode 0x%02x (%s) is not supported", code, op)
		}
		return op, nil
	}
	var name string
	if err := json.Unmarshal(raw, &name); err != nil {
		return 0, fmt.Errorf("opcode must be an integer or a mnemonic, got %s", string(raw))
	}
	return evm.ParseOpCode(name)
}

// Encode writes the trace in the external JSON format with explicit pcs
func Encode(w io.Writer, tr *Trace) error {
	raw := jsonTrace{
		Opcodes:     make([]json.RawMessage, len(tr.Steps)),
		StackStates: make([][]uint64, len(tr.Steps)),
		PCs:         make([]uint64, len(tr.Steps)),
		GasValues:   make([]uint64, len(tr.Steps)),
		TxHash:      tr.TxHash,
		BlockNumber: tr.BlockNumber,
	}
	for i := range tr.Steps {
		s := &tr.Steps[i]
		raw.Opcodes[i] = json.RawMessage(strconv.FormatUint(uint64(s.Opcode), 10))
		raw.StackStates[i] = s.Stack
		if raw.StackStates[i] == nil {
			raw.StackStates[i] = []uint64{}
		}
		raw.PCs[i] = s.PC
		raw.GasValues[i] = s.Gas
		if s.Storage != nil {
			raw.StorageOps = append(raw.StorageOps, jsonStorageOp{
				Step: i, Key: s.Storage.Key, Value: s.Storage.Value, IsWrite: s.Storage.IsWrite,
			})
		}
	}
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(raw)
}
