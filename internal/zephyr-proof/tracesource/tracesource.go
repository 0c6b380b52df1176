// Package tracesource fetches execution traces from an Ethereum node with
// debug_traceTransaction and converts the struct logs into traces.
package tracesource

import (
	"context"
	"strings"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/ethereum/go-ethereum/rpc"
	"github.com/holiman/uint256"

	"github.com/kunalsinghdadhwal/zephyr-proof/internal/zephyr-proof/core"
	"github.com/kunalsinghdadhwal/zephyr-proof/internal/zephyr-proof/evm"
	"github.com/kunalsinghdadhwal/zephyr-proof/internal/zephyr-proof/log"
	"github.com/kunalsinghdadhwal/zephyr-proof/internal/zephyr-proof/trace"
)

// Source produces the trace of a transaction
type Source interface {
	Fetch(ctx context.Context, txHash string) (*trace.Trace, error)
}

// StructLog is one entry of the struct logger output. Stack words and
// storage slots are hex, with or without 0x and zero padding.
type StructLog struct {
	PC      uint64            `json:"pc"`
	Op      string            `json:"op"`
	Gas     uint64            `json:"gas"`
	GasCost uint64            `json:"gasCost"`
	Depth   int               `json:"depth"`
	Error   string            `json:"error,omitempty"`
	Stack   []string          `json:"stack,omitempty"`
	Storage map[string]string `json:"storage,omitempty"`
}

// ExecutionResult is the struct logger response of debug_traceTransaction
type ExecutionResult struct {
	Gas         uint64      `json:"gas"`
	Failed      bool        `json:"failed"`
	ReturnValue string      `json:"returnValue"`
	StructLogs  []StructLog `json:"structLogs"`
}

// RPCSource fetches traces over JSON-RPC
type RPCSource struct {
	client *rpc.Client
	logger *log.Logger
}

// Dial connects to the node at url
func Dial(ctx context.Context, url string) (*RPCSource, error) {
	client, err := rpc.DialContext(ctx, url)
	if err != nil {
		return nil, core.Wrap(core.ErrFetch, err, "failed to connect to %s", url)
	}
	return NewRPCSource(client), nil
}

// NewRPCSource wraps an existing client
func NewRPCSource(client *rpc.Client) *RPCSource {
	return &RPCSource{client: client, logger: log.Default().Module("tracesource")}
}

// Close closes the underlying client
func (s *RPCSource) Close() {
	s.client.Close()
}

// Fetch traces txHash with the struct logger and converts the result. The
// block number is looked up with eth_getTransactionByHash.
func (s *RPCSource) Fetch(ctx context.Context, txHash string) (*trace.Trace, error) {
	raw, err := hexutil.Decode(txHash)
	if err != nil || len(raw) != common.HashLength {
		return nil, core.NewError(core.ErrFetch, "invalid transaction hash %q", txHash)
	}
	hash := common.BytesToHash(raw)

	var res ExecutionResult
	config := map[string]any{
		"enableMemory":     false,
		"disableStack":     false,
		"disableStorage":   false,
		"enableReturnData": false,
	}
	if err := s.client.CallContext(ctx, &res, "debug_traceTransaction", hash, config); err != nil {
		return nil, core.Wrap(core.ErrFetch, err, "debug_traceTransaction %s", hash.Hex())
	}
	if res.Failed {
		s.logger.Warn("transaction reverted", "tx", hash.Hex())
	}

	tr, err := Convert(&res)
	if err != nil {
		return nil, err
	}
	tr.TxHash = hash.Hex()

	var tx struct {
		BlockNumber *hexutil.Uint64 `json:"blockNumber"`
	}
	if err := s.client.CallContext(ctx, &tx, "eth_getTransactionByHash", hash); err != nil {
		return nil, core.Wrap(core.ErrFetch, err, "eth_getTransactionByHash %s", hash.Hex())
	}
	if tx.BlockNumber != nil {
		n := uint64(*tx.BlockNumber)
		tr.BlockNumber = &n
	}

	s.logger.Info("trace fetched", "tx", tr.TxHash, "steps", tr.Len())
	return tr, nil
}

// Convert turns struct logs into a trace. Only the outermost call frame is
// supported, and every stack word, slot and value must fit in 64 bits.
func Convert(res *ExecutionResult) (*trace.Trace, error) {
	if res == nil || len(res.StructLogs) == 0 {
		return nil, core.NewError(core.ErrFetch, "trace has no struct logs")
	}
	depth := res.StructLogs[0].Depth
	tr := &trace.Trace{Steps: make([]trace.Step, len(res.StructLogs))}

	for i := range res.StructLogs {
		l := &res.StructLogs[i]
		fail := func(code core.ErrorCode, format string, args ...any) (*trace.Trace, error) {
			return nil, core.Wrap(core.ErrFetch, core.StepError(code, i, format, args...), "struct log %d", i)
		}
		if l.Depth != depth {
			return fail(core.ErrMalformedInput, "call depth %d, nested call frames are not supported", l.Depth)
		}
		op, err := evm.ParseOpCode(l.Op)
		if err != nil {
			return fail(core.ErrUnsupportedOpcode, "%v", err)
		}

		// struct logs list the stack bottom first
		stack := make([]uint64, len(l.Stack))
		for j, word := range l.Stack {
			v, err := ParseWord(word)
			if err != nil {
				return fail(core.ErrMalformedInput, "stack word %d: %v", j, err)
			}
			stack[len(l.Stack)-1-j] = v
		}

		step := trace.Step{Opcode: op, PC: l.PC, Gas: l.Gas, Stack: stack}
		switch op {
		case evm.SLOAD:
			key := step.Word(0)
			value, found, err := loadedValue(res.StructLogs, i, key)
			if err != nil {
				return fail(core.ErrMalformedInput, "%v", err)
			}
			if !found {
				return fail(core.ErrStorageMismatch, "SLOAD slot %d is missing from the struct log storage", key)
			}
			step.Storage = &trace.StorageOp{Key: key, Value: value}
		case evm.SSTORE:
			step.Storage = &trace.StorageOp{Key: step.Word(0), Value: step.Word(1), IsWrite: true}
		}
		tr.Steps[i] = step
	}
	return tr, nil
}

// loadedValue finds the value an SLOAD at log i read: the slot in the
// storage view of the SLOAD itself, else of the following log. found is
// false when neither view holds the slot.
func loadedValue(logs []StructLog, i int, key uint64) (value uint64, found bool, err error) {
	for _, j := range []int{i, i + 1} {
		if j >= len(logs) {
			break
		}
		for slot, word := range logs[j].Storage {
			k, err := ParseWord(slot)
			if err != nil {
				return 0, false, err
			}
			if k == key {
				v, err := ParseWord(word)
				return v, err == nil, err
			}
		}
	}
	return 0, false, nil
}

// ParseWord parses a hex word as printed by struct loggers: optional 0x,
// optional zero padding to 32 bytes. The value must fit in 64 bits.
func ParseWord(s string) (uint64, error) {
	raw := strings.TrimPrefix(strings.TrimPrefix(s, "0x"), "0X")
	if raw == "" {
		return 0, core.NewError(core.ErrMalformedInput, "empty word %q", s)
	}
	digits := strings.TrimLeft(raw, "0")
	if digits == "" {
		return 0, nil
	}
	v, err := uint256.FromHex("0x" + digits)
	if err != nil {
		return 0, core.Wrap(core.ErrMalformedInput, err, "invalid word %q", s)
	}
	if !v.IsUint64() {
		return 0, core.NewError(core.ErrMalformedInput, "word %s exceeds 64 bits", v.Hex())
	}
	return v.Uint64(), nil
}
