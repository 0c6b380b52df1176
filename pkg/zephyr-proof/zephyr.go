package zephyrproof

import (
	"context"
	"io"
	"os"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/kunalsinghdadhwal/zephyr-proof/internal/zephyr-proof/backend"
	"github.com/kunalsinghdadhwal/zephyr-proof/internal/zephyr-proof/circuit"
	"github.com/kunalsinghdadhwal/zephyr-proof/internal/zephyr-proof/core"
	"github.com/kunalsinghdadhwal/zephyr-proof/internal/zephyr-proof/metrics"
	"github.com/kunalsinghdadhwal/zephyr-proof/internal/zephyr-proof/prover"
	"github.com/kunalsinghdadhwal/zephyr-proof/internal/zephyr-proof/trace"
	"github.com/kunalsinghdadhwal/zephyr-proof/internal/zephyr-proof/tracesource"
	"github.com/kunalsinghdadhwal/zephyr-proof/internal/zephyr-proof/utils"
	"github.com/kunalsinghdadhwal/zephyr-proof/internal/zephyr-proof/verifier"
	"github.com/kunalsinghdadhwal/zephyr-proof/internal/zephyr-proof/witness"
)

// DefaultConfig returns the default proving configuration
func DefaultConfig() *Config {
	return prover.DefaultConfig()
}

// Prover proves traces with the commitment backend
type Prover struct {
	inner *prover.Prover
}

// NewProver creates a prover. A nil config uses DefaultConfig.
func NewProver(config *Config) (*Prover, error) {
	if config == nil {
		config = DefaultConfig()
	}
	if err := config.Validate(); err != nil {
		return nil, err
	}
	b, err := backend.NewCommitBackend(config.NumQueries)
	if err != nil {
		return nil, err
	}
	inner, err := prover.New(config, b)
	if err != nil {
		return nil, err
	}
	return &Prover{inner: inner}, nil
}

// Instrument registers the proving metrics with reg
func (p *Prover) Instrument(reg prometheus.Registerer) error {
	m, err := metrics.New(reg)
	if err != nil {
		return err
	}
	p.inner.WithMetrics(m)
	return nil
}

// Config returns a copy of the prover configuration
func (p *Prover) Config() *Config {
	return p.inner.Config()
}

// Prove validates tr and produces its proof artifact
func (p *Prover) Prove(ctx context.Context, tr *Trace) (*ProofArtifact, error) {
	return p.inner.Prove(ctx, tr)
}

// Verifier checks proof artifacts
type Verifier struct {
	inner *verifier.Verifier
}

// NewVerifier creates a verifier. Only the query count of config matters:
// it must match the prover's for the verifying keys to agree.
func NewVerifier(config *Config) (*Verifier, error) {
	if config == nil {
		config = DefaultConfig()
	}
	b, err := backend.NewCommitBackend(config.NumQueries)
	if err != nil {
		return nil, err
	}
	return &Verifier{inner: verifier.New(b)}, nil
}

// Instrument registers the verification metrics with reg
func (v *Verifier) Instrument(reg prometheus.Registerer) error {
	m, err := metrics.New(reg)
	if err != nil {
		return err
	}
	v.inner.WithMetrics(m)
	return nil
}

// Verify returns (true, nil) only when every chunk proof and the artifact
// metadata check out
func (v *Verifier) Verify(ctx context.Context, a *ProofArtifact) (bool, error) {
	return v.inner.Verify(ctx, a)
}

// Prove proves tr with a one-off prover
func Prove(ctx context.Context, tr *Trace, config *Config) (*ProofArtifact, error) {
	p, err := NewProver(config)
	if err != nil {
		return nil, err
	}
	return p.Prove(ctx, tr)
}

// Verify verifies a with a one-off verifier using the default query count
func Verify(ctx context.Context, a *ProofArtifact) (bool, error) {
	v, err := NewVerifier(nil)
	if err != nil {
		return false, err
	}
	return v.Verify(ctx, a)
}

// Simulate validates tr and reports what proving it at circuit size k
// would cover, without proving anything
func Simulate(tr *Trace, k int) (*SimulationReport, error) {
	if err := trace.Validate(tr); err != nil {
		return nil, err
	}
	shape, err := circuit.NewShape(tr.Len(), k)
	if err != nil {
		return nil, err
	}
	w, err := witness.NewBuilder(circuit.MaxSteps(k)).Build(tr)
	if err != nil {
		return nil, err
	}

	hist := make(map[string]uint64)
	for op, n := range tr.Histogram() {
		hist[op.String()] = n
	}
	return &SimulationReport{
		Steps:         tr.Len(),
		GasUsed:       w.GasUsed(),
		StorageWrites: tr.StorageWrites(),
		Histogram:     hist,
		Entry:         tr.EntryState(),
		Exit:          tr.ExitState(),
		Commitment:    circuit.FormatElement(&w.Commitment),
		K:             k,
		Chunks:        shape.NumChunks(),
		SingleChunkK:  singleChunkK(tr.Len()),
	}, nil
}

func singleChunkK(steps int) int {
	k := max(utils.CeilLog2(steps), circuit.MinK)
	if k > circuit.MaxK {
		return 0
	}
	return k
}

// ParseTrace parses a JSON trace. Structure is checked, semantics are not.
func ParseTrace(data []byte) (*Trace, error) {
	return trace.ParseJSON(data)
}

// ReadTrace reads a JSON trace from r
func ReadTrace(r io.Reader) (*Trace, error) {
	return trace.Decode(r)
}

// ReadTraceFile reads a JSON trace from path
func ReadTraceFile(path string) (*Trace, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, core.Wrap(core.ErrMalformedInput, err, "failed to open trace %s", path)
	}
	defer f.Close()
	return trace.Decode(f)
}

// WriteTrace writes tr as JSON
func WriteTrace(w io.Writer, tr *Trace) error {
	return trace.Encode(w, tr)
}

// ValidateTrace checks every structural and semantic rule of tr
func ValidateTrace(tr *Trace) error {
	return trace.Validate(tr)
}

// ReadArtifact reads a JSON proof artifact from r
func ReadArtifact(r io.Reader) (*ProofArtifact, error) {
	return prover.ReadArtifact(r)
}

// ReadArtifactFile reads a JSON proof artifact from path
func ReadArtifactFile(path string) (*ProofArtifact, error) {
	return prover.ReadArtifactFile(path)
}

// Execute runs program on the 64-bit interpreter and records its trace.
// storage is the initial contract storage; maxSteps of 0 is unbounded.
func Execute(program []Instruction, gas uint64, storage map[uint64]uint64, maxSteps int) (*Trace, error) {
	return trace.Run(program, gas, storage, maxSteps)
}

// Push returns the narrowest PUSH instruction holding v
func Push(v uint64) Instruction {
	return trace.Push(v)
}

// Op returns an instruction without an immediate
func Op(op OpCode) Instruction {
	return trace.Op(op)
}

// Fetch pulls the trace of txHash from the node at rpcURL with
// debug_traceTransaction
func Fetch(ctx context.Context, rpcURL, txHash string) (*Trace, error) {
	src, err := tracesource.Dial(ctx, rpcURL)
	if err != nil {
		return nil, err
	}
	defer src.Close()
	return src.Fetch(ctx, txHash)
}
