// Package prover drives the proving pipeline: it validates a trace, builds
// its witness, plans chunks of 2^k steps and proves them on a bounded pool.
package prover

import (
	"context"
	"encoding/base64"
	"errors"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/kunalsinghdadhwal/zephyr-proof/internal/zephyr-proof/backend"
	"github.com/kunalsinghdadhwal/zephyr-proof/internal/zephyr-proof/circuit"
	"github.com/kunalsinghdadhwal/zephyr-proof/internal/zephyr-proof/core"
	"github.com/kunalsinghdadhwal/zephyr-proof/internal/zephyr-proof/log"
	"github.com/kunalsinghdadhwal/zephyr-proof/internal/zephyr-proof/metrics"
	"github.com/kunalsinghdadhwal/zephyr-proof/internal/zephyr-proof/planner"
	"github.com/kunalsinghdadhwal/zephyr-proof/internal/zephyr-proof/trace"
	"github.com/kunalsinghdadhwal/zephyr-proof/internal/zephyr-proof/witness"
)

// Prover proves traces with a proof backend
//
// The Prover implements the following workflow:
// 1. Validates the trace
// 2. Builds the witness and its commitment
// 3. Plans chunks of at most 2^k steps with their boundary states
// 4. Assembles and proves every chunk, concurrently when configured
// 5. Packages the chunk proofs into a ProofArtifact
type Prover struct {
	config  *Config
	backend backend.ProofBackend
	metrics *metrics.Metrics
	logger  *log.Logger
}

// New creates a prover. The configuration is copied.
func New(config *Config, b backend.ProofBackend) (*Prover, error) {
	if config == nil {
		config = DefaultConfig()
	}
	if err := config.Validate(); err != nil {
		return nil, err
	}
	if b == nil {
		return nil, core.NewError(core.ErrInvalidConfig, "proof backend cannot be nil")
	}
	return &Prover{
		config:  config.Clone(),
		backend: b,
		metrics: metrics.Discard(),
		logger:  log.Default().Module("prover"),
	}, nil
}

// WithMetrics records proving metrics into m
func (p *Prover) WithMetrics(m *metrics.Metrics) *Prover {
	if m != nil {
		p.metrics = m
	}
	return p
}

// WithLogger replaces the prover's logger
func (p *Prover) WithLogger(l *log.Logger) *Prover {
	if l != nil {
		p.logger = l.Module("prover")
	}
	return p
}

// Config returns a copy of the prover configuration
func (p *Prover) Config() *Config {
	return p.config.Clone()
}

// Prove generates the proof artifact of tr
func (p *Prover) Prove(ctx context.Context, tr *trace.Trace) (*ProofArtifact, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	start := time.Now()
	k := p.config.K

	// Step 1: Validate the trace and its shape
	if err := trace.Validate(tr); err != nil {
		return nil, err
	}
	shape, err := circuit.NewShape(tr.Len(), k)
	if err != nil {
		return nil, err
	}

	// Step 2: Build the witness
	w, err := witness.NewBuilder(circuit.MaxSteps(k)).Build(tr)
	if err != nil {
		return nil, err
	}

	// Step 3: Plan chunks and derive the verifying key
	chunks, err := planner.Plan(w, w.StateAt(0), shape.Capacity())
	if err != nil {
		return nil, err
	}
	vk, err := p.backend.DeriveVK(shape)
	if err != nil {
		return nil, core.Wrap(core.ErrBackend, err, "derive verifying key")
	}
	p.logger.Info("proving trace", "steps", tr.Len(), "k", k, "chunks", len(chunks),
		"workers", p.config.Workers(), "backend", p.backend.Name())

	// Step 4: Prove every chunk
	results, err := p.ProveChunks(ctx, w, chunks, vk)
	if err != nil {
		p.logger.Error("proving failed", "err", err)
		return nil, err
	}

	// Step 5: Package the artifact
	artifact := p.assemble(tr, shape, vk, results)
	p.metrics.ProofDuration.Observe(time.Since(start).Seconds())
	p.logger.Info("proof generated", "steps", tr.Len(), "chunks", len(results),
		"gas_used", artifact.Metadata.GasUsed, "elapsed", time.Since(start))
	return artifact, nil
}

// ProveChunks proves chunks of w and returns the results in chunk order.
// A single chunk is proved on the calling goroutine. Otherwise at most
// Workers chunks run at once; after the first failure, chunks already
// running finish and chunks not yet started are skipped.
func (p *Prover) ProveChunks(ctx context.Context, w *witness.Witness, chunks []planner.Chunk,
	vk *backend.VerifyingKey) ([]*ProofChunkResult, error) {
	results := make([]*ProofChunkResult, len(chunks))
	if len(chunks) == 1 {
		r, err := p.proveChunk(ctx, w, chunks[0], vk)
		if err != nil {
			return nil, err
		}
		results[0] = r
		return results, nil
	}

	// gctx only gates starting a chunk; running chunks keep the caller's ctx
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(p.config.Workers())
	for i, c := range chunks {
		if gctx.Err() != nil {
			break
		}
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			r, err := p.proveChunk(ctx, w, c, vk)
			if err != nil {
				return err
			}
			results[i] = r
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	// the loop can stop on a canceled ctx before any task reports it
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return results, nil
}

// proveChunk assembles and proves one chunk
func (p *Prover) proveChunk(ctx context.Context, w *witness.Witness, c planner.Chunk,
	vk *backend.VerifyingKey) (result *ProofChunkResult, err error) {
	start := time.Now()
	p.metrics.InFlight.Inc()
	defer func() {
		p.metrics.InFlight.Dec()
		kind := ""
		if err != nil {
			kind = core.KindOf(errors.Unwrap(err)).String()
		}
		p.metrics.ObserveChunk(start, c.Len(), err, kind)
	}()

	circ, err := circuit.Assemble(w.Window(c.Start, c.End), circuit.Entry{Chunk: c.Index, State: c.Entry}, p.config.K)
	if err != nil {
		return nil, core.ChunkError(core.ErrProofGeneration, c.Index, err,
			"assemble steps [%d, %d)", c.Start, c.End)
	}
	proof, err := p.backend.Prove(ctx, circ, vk)
	if err != nil {
		return nil, core.ChunkError(core.ErrProofGeneration, c.Index, err,
			"prove steps [%d, %d)", c.Start, c.End)
	}

	p.logger.Debug("chunk proved", "chunk", c.Index, "start", c.Start, "end", c.End,
		"proof_bytes", len(proof), "elapsed", time.Since(start))
	return &ProofChunkResult{
		Index:        c.Index,
		Start:        c.Start,
		End:          c.End,
		Proof:        proof,
		PublicInputs: circ.Public,
		Summary:      circ.Summary,
	}, nil
}

// assemble packages chunk results into an artifact
func (p *Prover) assemble(tr *trace.Trace, shape *circuit.Shape, vk *backend.VerifyingKey,
	results []*ProofChunkResult) *ProofArtifact {
	proofs := make([][]byte, len(results))
	summaries := make([]*circuit.Summary, len(results))
	public := make([]string, 0, shape.NumPublicInputs())
	for i, r := range results {
		proofs[i] = r.Proof
		summaries[i] = r.Summary
		public = append(public, r.PublicInputs.Strings()...)
	}

	md := Totals(summaries)
	md.TxHash = p.config.TxHash
	if md.TxHash == "" {
		md.TxHash = tr.TxHash
	}
	md.BlockNumber = p.config.BlockNumber
	if md.BlockNumber == nil {
		md.BlockNumber = tr.BlockNumber
	}

	return &ProofArtifact{
		Proof:        base64.StdEncoding.EncodeToString(EncodeEnvelope(proofs)),
		PublicInputs: public,
		Metadata:     md,
		NumSteps:     shape.NumSteps,
		K:            shape.K,
		VKHash:       vk.Hex(),
	}
}
