// Package verifier checks proof artifacts without the trace. Everything it
// needs is rebuilt from the artifact's num_steps and k.
package verifier

import (
	"context"
	"time"

	"github.com/kunalsinghdadhwal/zephyr-proof/internal/zephyr-proof/backend"
	"github.com/kunalsinghdadhwal/zephyr-proof/internal/zephyr-proof/circuit"
	"github.com/kunalsinghdadhwal/zephyr-proof/internal/zephyr-proof/core"
	"github.com/kunalsinghdadhwal/zephyr-proof/internal/zephyr-proof/log"
	"github.com/kunalsinghdadhwal/zephyr-proof/internal/zephyr-proof/metrics"
	"github.com/kunalsinghdadhwal/zephyr-proof/internal/zephyr-proof/prover"
)

// Verifier verifies ProofArtifacts
//
// The Verifier implements the following workflow:
// 1. Derives the circuit shape and verifying key from (num_steps, k)
// 2. Rejects an artifact whose vk_hash differs before verifying any proof
// 3. Decodes the chunk proofs and public inputs and checks the chunk chain
// 4. Verifies every chunk proof with the backend
// 5. Recomputes the metadata totals from the public inputs
type Verifier struct {
	backend backend.ProofBackend
	metrics *metrics.Metrics
	logger  *log.Logger
}

// New creates a verifier
func New(b backend.ProofBackend) *Verifier {
	return &Verifier{
		backend: b,
		metrics: metrics.Discard(),
		logger:  log.Default().Module("verifier"),
	}
}

// WithMetrics records verification metrics into m
func (v *Verifier) WithMetrics(m *metrics.Metrics) *Verifier {
	if m != nil {
		v.metrics = m
	}
	return v
}

// Verify returns (true, nil) only when every check passes. Any rejection
// returns false with a verification error naming the failed check.
func (v *Verifier) Verify(ctx context.Context, a *prover.ProofArtifact) (ok bool, err error) {
	start := time.Now()
	defer func() {
		v.metrics.ObserveVerification(start, ok)
		if err != nil {
			v.logger.Warn("artifact rejected", "err", err)
		}
	}()

	if v.backend == nil {
		return false, core.NewError(core.ErrInvalidConfig, "proof backend cannot be nil")
	}
	if a == nil {
		return false, core.NewError(core.ErrMalformedInput, "nil proof artifact")
	}

	// Step 1: Rebuild the verifying context
	shape, err := circuit.NewShape(a.NumSteps, a.K)
	if err != nil {
		return false, err
	}
	vk, err := v.backend.DeriveVK(shape)
	if err != nil {
		return false, core.Wrap(core.ErrBackend, err, "derive verifying key")
	}

	// Step 2: Fast path on the key fingerprint
	if !vk.Matches(a.VKHash) {
		return false, core.NewError(core.ErrKeyMismatch, "vk_hash %q does not match %s for num_steps=%d k=%d",
			a.VKHash, vk.Hex(), a.NumSteps, a.K)
	}

	// Step 3: Decode and chain the chunks
	proofs, err := a.ChunkProofs()
	if err != nil {
		return false, err
	}
	if len(proofs) != shape.NumChunks() {
		return false, core.NewError(core.ErrInvalidProof, "artifact carries %d chunk proofs, num_steps=%d k=%d needs %d",
			len(proofs), a.NumSteps, a.K, shape.NumChunks())
	}
	all, err := circuit.ParsePublicInputs(a.PublicInputs)
	if err != nil {
		return false, err
	}
	publics, err := circuit.Split(all, shape.NumChunks())
	if err != nil {
		return false, err
	}
	summaries, err := chain(shape, publics)
	if err != nil {
		return false, err
	}

	// Step 4: Verify every chunk
	for i := range proofs {
		if err := ctx.Err(); err != nil {
			return false, err
		}
		valid, err := v.backend.Verify(vk, proofs[i], publics[i])
		if err != nil {
			return false, core.ChunkError(core.ErrInvalidProof, i, err, "chunk proof rejected")
		}
		if !valid {
			return false, core.ChunkError(core.ErrInvalidProof, i, nil, "chunk proof rejected")
		}
	}

	// Step 5: Metadata totals
	totals := prover.Totals(summaries)
	if err := prover.SameTotals(&totals, &a.Metadata); err != nil {
		return false, core.Wrap(core.ErrInconsistentMetadata, err, "metadata disagrees with the public inputs")
	}

	v.logger.Debug("artifact verified", "steps", a.NumSteps, "chunks", len(proofs), "elapsed", time.Since(start))
	return true, nil
}

// chain decodes the per-chunk summaries and checks that they form one
// trace: shared commitment, consecutive indices, the row counts of the
// shape and every entry equal to the previous exit
func chain(shape *circuit.Shape, publics []circuit.PublicInputs) ([]*circuit.Summary, error) {
	summaries := make([]*circuit.Summary, len(publics))
	commitment := publics[0].Commitment()
	for i, pub := range publics {
		s, err := pub.Summary()
		if err != nil {
			return nil, core.ChunkError(core.ErrInvalidProof, i, err, "undecodable public inputs")
		}
		if c := pub.Commitment(); !c.Equal(&commitment) {
			return nil, core.ChunkError(core.ErrInvalidProof, i, nil, "trace commitment differs from chunk 0")
		}
		if s.Chunk != i {
			return nil, core.ChunkError(core.ErrInvalidProof, i, nil, "public inputs claim chunk index %d", s.Chunk)
		}
		if s.Rows != shape.ChunkRows[i] {
			return nil, core.ChunkError(core.ErrInvalidProof, i, nil, "public inputs claim %d rows, shape has %d",
				s.Rows, shape.ChunkRows[i])
		}
		if i > 0 && s.Entry != summaries[i-1].Exit {
			return nil, core.ChunkError(core.ErrInvalidProof, i, nil, "entry state %+v does not continue %+v",
				s.Entry, summaries[i-1].Exit)
		}
		summaries[i] = s
	}
	return summaries, nil
}
