// Package backend defines the proof backend contract and ships the
// commitment backend: a Tip5 Merkle commitment to every circuit row with
// Fiat-Shamir sampled openings checked against the constraint system.
package backend

import (
	"context"
	"encoding/hex"

	"github.com/vybium/vybium-crypto/pkg/vybium-crypto/hash"

	"github.com/kunalsinghdadhwal/zephyr-proof/internal/zephyr-proof/circuit"
	"github.com/kunalsinghdadhwal/zephyr-proof/internal/zephyr-proof/core"
)

// ProofBackend proves and verifies individual chunk circuits
type ProofBackend interface {
	// Name identifies the backend; it is part of the verifying key
	Name() string

	// DeriveVK derives the verifying key of a circuit shape. It must be a pure
	// function of the shape so the verifier can rebuild it.
	DeriveVK(shape *circuit.Shape) (*VerifyingKey, error)

	// Prove produces the proof of one chunk circuit
	Prove(ctx context.Context, c *circuit.Circuit, vk *VerifyingKey) ([]byte, error)

	// Verify checks a chunk proof against its public inputs
	Verify(vk *VerifyingKey, proof []byte, public circuit.PublicInputs) (bool, error)
}

// VerifyingKey identifies the circuit shape and constraint system a proof
// was produced for
type VerifyingKey struct {
	Backend    string
	Shape      *circuit.Shape
	NumQueries int
	Digest     hash.Digest
}

// Bytes returns the digest as big-endian limbs
func (vk *VerifyingKey) Bytes() []byte {
	return core.DigestBytes(vk.Digest)
}

// Hex returns the hex encoding of Bytes, the artifact's vk_hash
func (vk *VerifyingKey) Hex() string {
	return hex.EncodeToString(vk.Bytes())
}

// Matches reports whether vkHash is this key's hex digest
func (vk *VerifyingKey) Matches(vkHash string) bool {
	return vk.Hex() == vkHash
}

// checkChunk ensures c was assembled for the shape of vk
func (vk *VerifyingKey) checkChunk(k, chunk, rows int) error {
	if vk.Shape == nil {
		return core.NewError(core.ErrKeyMismatch, "verifying key has no shape")
	}
	if k != vk.Shape.K {
		return core.ChunkError(core.ErrKeyMismatch, chunk, nil, "circuit size k=%d, verifying key has k=%d",
			k, vk.Shape.K)
	}
	if chunk < 0 || chunk >= vk.Shape.NumChunks() {
		return core.ChunkError(core.ErrKeyMismatch, chunk, nil, "chunk index outside %d chunks", vk.Shape.NumChunks())
	}
	if want := vk.Shape.ChunkRows[chunk]; rows != want {
		return core.ChunkError(core.ErrKeyMismatch, chunk, nil, "chunk has %d rows, verifying key expects %d",
			rows, want)
	}
	return nil
}
