package zephyrproof

import (
	"github.com/kunalsinghdadhwal/zephyr-proof/internal/zephyr-proof/evm"
	"github.com/kunalsinghdadhwal/zephyr-proof/internal/zephyr-proof/prover"
	"github.com/kunalsinghdadhwal/zephyr-proof/internal/zephyr-proof/trace"
)

// OpCode is an EVM opcode byte
type OpCode = evm.OpCode

// Trace is an ordered list of executed steps
type Trace = trace.Trace

// Step is one executed opcode with its pre-step state
type Step = trace.Step

// StorageOp is the storage access of an SLOAD or SSTORE step
type StorageOp = trace.StorageOp

// State is the continuation state between steps
type State = trace.State

// Instruction is one program instruction for Execute
type Instruction = trace.Instruction

// Config is the proving configuration
type Config = prover.Config

// ProofArtifact is the self-contained proof of a trace
type ProofArtifact = prover.ProofArtifact

// Metadata summarises a proved trace
type Metadata = prover.Metadata

// SimulationReport describes a validated trace without proving it
type SimulationReport struct {
	Steps         int               `json:"num_steps"`
	GasUsed       uint64            `json:"gas_used"`
	StorageWrites uint64            `json:"storage_writes"`
	Histogram     map[string]uint64 `json:"opcode_histogram"`
	Entry         State             `json:"entry"`
	Exit          State             `json:"exit"`

	// Commitment is the trace commitment as a decimal field element
	Commitment string `json:"commitment"`

	// Chunks is the number of chunk circuits of size 2^K
	K      int `json:"k"`
	Chunks int `json:"chunks"`

	// SingleChunkK is the smallest k that proves the trace in one chunk,
	// or 0 when no supported k does
	SingleChunkK int `json:"single_chunk_k"`
}

// ParseOpCode resolves an opcode mnemonic such as "PUSH1"
func ParseOpCode(name string) (OpCode, error) {
	return evm.ParseOpCode(name)
}
