package tracesource

import (
	"context"
	"encoding/json"
	"reflect"
	"strings"
	"testing"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/rpc"

	"github.com/kunalsinghdadhwal/zephyr-proof/internal/zephyr-proof/core"
	"github.com/kunalsinghdadhwal/zephyr-proof/internal/zephyr-proof/evm"
	"github.com/kunalsinghdadhwal/zephyr-proof/internal/zephyr-proof/trace"
)

const addResult = `{
	"gas": 9,
	"failed": false,
	"returnValue": "",
	"structLogs": [
		{"pc": 0, "op": "PUSH1", "gas": 1000, "gasCost": 3, "depth": 1, "stack": []},
		{"pc": 2, "op": "PUSH1", "gas": 997, "gasCost": 3, "depth": 1, "stack": ["0x1"]},
		{"pc": 4, "op": "ADD", "gas": 994, "gasCost": 3, "depth": 1, "stack": ["0x1", "0x2"]}
	]
}`

// pad formats v the way legacy loggers print words: zero padded, no prefix
func pad(v string) string {
	return strings.Repeat("0", 64-len(v)) + v
}

func decode(t *testing.T, s string) *ExecutionResult {
	t.Helper()
	var res ExecutionResult
	if err := json.Unmarshal([]byte(s), &res); err != nil {
		t.Fatalf("fixture: %v", err)
	}
	return &res
}

func TestConvertAddTrace(t *testing.T) {
	tr, err := Convert(decode(t, addResult))
	if err != nil {
		t.Fatalf("Convert: %v", err)
	}
	if err := trace.Validate(tr); err != nil {
		t.Fatalf("converted trace invalid: %v", err)
	}
	if !reflect.DeepEqual(tr.Steps[2].Stack, []uint64{2, 1}) {
		t.Errorf("stack not reversed to top first: %v", tr.Steps[2].Stack)
	}
	if tr.GasUsed() != 9 {
		t.Errorf("gas used %d", tr.GasUsed())
	}
}

func TestConvertStorage(t *testing.T) {
	res := &ExecutionResult{StructLogs: []StructLog{
		{PC: 0, Op: "PUSH1", Gas: 50000, Depth: 1, Stack: []string{}},
		{PC: 2, Op: "PUSH1", Gas: 49997, Depth: 1, Stack: []string{pad("7")}},
		{PC: 4, Op: "SSTORE", Gas: 49994, Depth: 1, Stack: []string{pad("7"), pad("5")},
			Storage: map[string]string{pad("5"): pad("7")}},
		{PC: 5, Op: "PUSH1", Gas: 29994, Depth: 1, Stack: []string{},
			Storage: map[string]string{pad("5"): pad("7")}},
		{PC: 7, Op: "SLOAD", Gas: 29991, Depth: 1, Stack: []string{pad("5")},
			Storage: map[string]string{pad("5"): pad("7")}},
	}}
	tr, err := Convert(res)
	if err != nil {
		t.Fatalf("Convert: %v", err)
	}
	if err := trace.Validate(tr); err != nil {
		t.Fatalf("converted trace invalid: %v", err)
	}
	want := []*trace.StorageOp{nil, nil, {Key: 5, Value: 7, IsWrite: true}, nil, {Key: 5, Value: 7}}
	for i, s := range tr.Steps {
		if !reflect.DeepEqual(s.Storage, want[i]) {
			t.Errorf("step %d storage %+v, want %+v", i, s.Storage, want[i])
		}
	}
}

func TestConvertErrors(t *testing.T) {
	tests := []struct {
		name string
		logs []StructLog
		code core.ErrorCode
	}{
		{"empty", nil, core.ErrFetch},
		{"unsupported opcode", []StructLog{{Op: "CALL", Depth: 1}}, core.ErrUnsupportedOpcode},
		{"nested frame", []StructLog{{Op: "PUSH1", Depth: 1}, {Op: "PUSH1", Depth: 2}}, core.ErrMalformedInput},
		{"wide word", []StructLog{{Op: "POP", Depth: 1, Stack: []string{"0x10000000000000000"}}}, core.ErrMalformedInput},
		{"bad hex", []StructLog{{Op: "POP", Depth: 1, Stack: []string{"0xzz"}}}, core.ErrMalformedInput},
		{"sload slot not logged", []StructLog{
			{Op: "SLOAD", Depth: 1, Stack: []string{"0x5"}, Storage: map[string]string{"0x6": "0x1"}},
			{Op: "STOP", Depth: 1, Stack: []string{"0x1"}},
		}, core.ErrStorageMismatch},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Convert(&ExecutionResult{StructLogs: tt.logs})
			if !core.HasCode(err, core.ErrFetch) || !core.HasCode(err, tt.code) {
				t.Errorf("expected Fetch/%s, got %v", tt.code, err)
			}
		})
	}
}

func TestParseWord(t *testing.T) {
	tests := []struct {
		in   string
		want uint64
		ok   bool
	}{
		{"0x0", 0, true},
		{"0x2a", 42, true},
		{pad("2a"), 42, true},
		{"0x" + pad("ffffffffffffffff"), ^uint64(0), true},
		{"", 0, false},
		{"0x", 0, false},
		{"0x1" + strings.Repeat("0", 16), 0, false},
		{"0xg", 0, false},
	}
	for _, tt := range tests {
		got, err := ParseWord(tt.in)
		if (err == nil) != tt.ok || got != tt.want {
			t.Errorf("ParseWord(%q) = %d, %v", tt.in, got, err)
		}
	}
}

type debugAPI struct{ result string }

func (api *debugAPI) TraceTransaction(ctx context.Context, hash common.Hash, config map[string]any) (json.RawMessage, error) {
	return json.RawMessage(api.result), nil
}

type ethAPI struct{}

func (ethAPI) GetTransactionByHash(hash common.Hash) (map[string]any, error) {
	return map[string]any{"hash": hash, "blockNumber": "0x2a"}, nil
}

func TestRPCSourceFetch(t *testing.T) {
	server := rpc.NewServer()
	defer server.Stop()
	if err := server.RegisterName("debug", &debugAPI{result: addResult}); err != nil {
		t.Fatal(err)
	}
	if err := server.RegisterName("eth", ethAPI{}); err != nil {
		t.Fatal(err)
	}
	src := NewRPCSource(rpc.DialInProc(server))
	defer src.Close()

	hash := "0x" + strings.Repeat("11", 32)
	tr, err := src.Fetch(context.Background(), hash)
	if err != nil {
		t.Fatalf("Fetch: %v", err)
	}
	if tr.TxHash != hash || tr.BlockNumber == nil || *tr.BlockNumber != 42 {
		t.Errorf("tx %s block %v", tr.TxHash, tr.BlockNumber)
	}
	if tr.Len() != 3 || tr.Steps[2].Opcode != evm.ADD {
		t.Errorf("unexpected trace %+v", tr.Steps)
	}

	if _, err := src.Fetch(context.Background(), "0x1234"); !core.HasCode(err, core.ErrFetch) {
		t.Errorf("short hash: %v", err)
	}
}
