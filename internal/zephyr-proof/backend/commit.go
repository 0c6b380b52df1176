package backend

import (
	"context"
	"encoding/binary"
	"fmt"
	"sort"

	"github.com/consensys/gnark-crypto/ecc/bn254/fr"
	lru "github.com/hashicorp/golang-lru"
	"github.com/vybium/vybium-crypto/pkg/vybium-crypto/field"
	"github.com/vybium/vybium-crypto/pkg/vybium-crypto/hash"
	"github.com/vybium/vybium-crypto/pkg/vybium-crypto/merkle"

	"github.com/kunalsinghdadhwal/zephyr-proof/internal/zephyr-proof/circuit"
	"github.com/kunalsinghdadhwal/zephyr-proof/internal/zephyr-proof/core"
	"github.com/kunalsinghdadhwal/zephyr-proof/internal/zephyr-proof/log"
)

const (
	// CommitBackendName identifies proofs of the commitment backend
	CommitBackendName = "zephyr-commit-v1"

	// DefaultNumQueries is the number of sampled rows opened per chunk
	DefaultNumQueries = 24

	// DefaultKeyCacheSize bounds the verifying-key cache
	DefaultKeyCacheSize = 128

	// ctxCheckInterval is how many rows are hashed between cancellation checks
	ctxCheckInterval = 1024
)

type shapeKey struct {
	numSteps int
	k        int
}

// CommitBackend commits to every row of a chunk circuit with a Tip5 Merkle
// tree and opens the rows selected by a Fiat-Shamir transcript over the
// verifying key, the public inputs and the root. It is transparent, not
// zero-knowledge: opened rows are revealed.
type CommitBackend struct {
	numQueries int
	keys       *lru.Cache
	logger     *log.Logger
}

// NewCommitBackend creates a commitment backend opening numQueries rows per chunk
func NewCommitBackend(numQueries int) (*CommitBackend, error) {
	if numQueries <= 0 {
		return nil, core.NewError(core.ErrInvalidConfig, "number of queries must be positive, got %d", numQueries)
	}
	cache, err := lru.New(DefaultKeyCacheSize)
	if err != nil {
		return nil, core.Wrap(core.ErrBackend, err, "create verifying key cache")
	}
	return &CommitBackend{
		numQueries: numQueries,
		keys:       cache,
		logger:     log.Default().Module("backend"),
	}, nil
}

// Name implements ProofBackend
func (b *CommitBackend) Name() string {
	return CommitBackendName
}

// NumQueries returns the number of sampled rows per chunk
func (b *CommitBackend) NumQueries() int {
	return b.numQueries
}

// DeriveVK implements ProofBackend. Keys are cached by (num_steps, k).
func (b *CommitBackend) DeriveVK(shape *circuit.Shape) (*VerifyingKey, error) {
	if shape == nil {
		return nil, core.NewError(core.ErrInvalidConfig, "nil circuit shape")
	}
	key := shapeKey{numSteps: shape.NumSteps, k: shape.K}
	if cached, ok := b.keys.Get(key); ok {
		return cached.(*VerifyingKey), nil
	}

	var desc []byte
	desc = append(desc, CommitBackendName...)
	desc = binary.BigEndian.AppendUint32(desc, uint32(b.numQueries))
	desc = binary.BigEndian.AppendUint32(desc, uint32(shape.K))
	desc = binary.BigEndian.AppendUint64(desc, uint64(shape.NumSteps))
	desc = binary.BigEndian.AppendUint32(desc, uint32(shape.NumChunks()))
	for _, rows := range shape.ChunkRows {
		desc = binary.BigEndian.AppendUint32(desc, uint32(rows))
	}
	desc = append(desc, circuit.System().Descriptor()...)

	vk := &VerifyingKey{
		Backend:    CommitBackendName,
		Shape:      shape,
		NumQueries: b.numQueries,
		Digest:     hash.HashVarlen(BytesToElements(desc)),
	}
	b.keys.Add(key, vk)
	b.logger.Debug("derived verifying key", "num_steps", shape.NumSteps, "k", shape.K, "vk", vk.Hex())
	return vk, nil
}

// Prove implements ProofBackend. The circuit must satisfy every constraint.
func (b *CommitBackend) Prove(ctx context.Context, c *circuit.Circuit, vk *VerifyingKey) ([]byte, error) {
	if vk == nil || vk.Backend != CommitBackendName {
		return nil, core.NewError(core.ErrKeyMismatch, "verifying key was not derived by %s", CommitBackendName)
	}
	if err := vk.checkChunk(c.K, c.Summary.Chunk, c.Summary.Rows); err != nil {
		return nil, err
	}
	if err := c.CheckConstraints(); err != nil {
		return nil, err
	}

	leaves := make([]hash.Digest, c.NumRows())
	for i, row := range c.Rows {
		if i%ctxCheckInterval == 0 {
			if err := ctx.Err(); err != nil {
				return nil, err
			}
		}
		leaves[i] = RowDigest(row)
	}
	tree, err := merkle.New(leaves)
	if err != nil {
		return nil, core.ChunkError(core.ErrBackend, c.Summary.Chunk, err, "commit rows")
	}

	root := tree.Root()
	indices, err := b.openedRows(vk, c.K, c.Public, root)
	if err != nil {
		return nil, core.ChunkError(core.ErrBackend, c.Summary.Chunk, err, "sample queries")
	}

	proof := &Proof{
		K:        c.K,
		Root:     root,
		Seal:     seal(vk, c.Public, root),
		Openings: make([]Opening, len(indices)),
	}
	for i, idx := range indices {
		path, err := tree.AuthenticationPath(uint64(idx))
		if err != nil {
			return nil, core.ChunkError(core.ErrBackend, c.Summary.Chunk, err, "open row %d", idx)
		}
		proof.Openings[i] = Opening{Index: idx, Row: c.Rows[idx], Path: path}
	}

	out, err := proof.MarshalBinary()
	if err != nil {
		return nil, core.ChunkError(core.ErrBackend, c.Summary.Chunk, err, "encode proof")
	}
	b.logger.Debug("chunk committed", "chunk", c.Summary.Chunk, "rows", c.NumRows(), "openings", len(indices))
	return out, nil
}

// Verify implements ProofBackend. A rejected proof returns false with an
// InvalidProof error naming the failed check.
func (b *CommitBackend) Verify(vk *VerifyingKey, data []byte, public circuit.PublicInputs) (bool, error) {
	if vk == nil || vk.Backend != CommitBackendName || vk.Shape == nil {
		return false, core.NewError(core.ErrKeyMismatch, "verifying key was not derived by %s", CommitBackendName)
	}
	summary, err := public.Summary()
	if err != nil {
		return false, err
	}
	if err := vk.checkChunk(vk.Shape.K, summary.Chunk, summary.Rows); err != nil {
		return false, err
	}

	proof, err := UnmarshalProof(data)
	if err != nil {
		return false, err
	}
	reject := func(format string, args ...any) (bool, error) {
		return false, core.ChunkError(core.ErrInvalidProof, summary.Chunk, nil, format, args...)
	}
	if proof.K != vk.Shape.K {
		return reject("proof is for k=%d, verifying key has k=%d", proof.K, vk.Shape.K)
	}
	if !proof.Seal.Equal(seal(vk, public, proof.Root)) {
		return reject("seal does not bind these public inputs")
	}

	indices, err := b.openedRows(vk, proof.K, public, proof.Root)
	if err != nil {
		return false, core.ChunkError(core.ErrBackend, summary.Chunk, err, "sample queries")
	}
	if len(indices) != len(proof.Openings) {
		return reject("proof opens %d rows, transcript requires %d", len(proof.Openings), len(indices))
	}
	rows := make(map[int][]fr.Element, len(indices))
	for i, o := range proof.Openings {
		if o.Index != indices[i] {
			return reject("opening %d is row %d, transcript requires row %d", i, o.Index, indices[i])
		}
		if !merkle.VerifyInclusionProof(proof.Root, uint64(o.Index), RowDigest(o.Row), o.Path) {
			return reject("row %d is not in the committed table", o.Index)
		}
		rows[o.Index] = o.Row
	}

	sys := circuit.System()
	last := 1<<proof.K - 1
	if v := sys.CheckInitial(rows[0], public); v != nil {
		return reject("opened rows violate %v", v)
	}
	for _, idx := range indices {
		if v := sys.CheckRow(idx, rows[idx]); v != nil {
			return reject("opened rows violate %v", v)
		}
		if next, ok := rows[idx+1]; ok {
			if v := sys.CheckTransition(idx, rows[idx], next); v != nil {
				return reject("opened rows violate %v", v)
			}
		}
	}
	if v := sys.CheckTerminal(last, rows[last], public); v != nil {
		return reject("opened rows violate %v", v)
	}
	return true, nil
}

// openedRows returns the sorted, distinct rows a proof must open: the
// first and last row plus every sampled row and its successor
func (b *CommitBackend) openedRows(vk *VerifyingKey, k int, public circuit.PublicInputs, root hash.Digest) ([]int, error) {
	t := NewTranscript(CommitBackendName)
	t.AbsorbDigest(vk.Digest)
	t.AbsorbCells(public)
	t.AbsorbDigest(root)

	n := 1 << k
	sampled, err := t.SampleIndices(n, b.numQueries)
	if err != nil {
		return nil, err
	}
	set := map[int]struct{}{0: {}, n - 1: {}}
	for _, idx := range sampled {
		set[idx] = struct{}{}
		if idx+1 < n {
			set[idx+1] = struct{}{}
		}
	}
	out := make([]int, 0, len(set))
	for idx := range set {
		out = append(out, idx)
	}
	sort.Ints(out)
	return out, nil
}

// seal binds the verifying key, the public inputs and the root into one digest
func seal(vk *VerifyingKey, public circuit.PublicInputs, root hash.Digest) hash.Digest {
	elems := make([]field.Element, 0, 2*hash.DigestLen+len(public)*limbsPerCell)
	elems = append(elems, vk.Digest[:]...)
	elems = append(elems, CellsToElements(public)...)
	elems = append(elems, root[:]...)
	return hash.HashVarlen(elems)
}

func (b *CommitBackend) String() string {
	return fmt.Sprintf("%s(queries=%d)", CommitBackendName, b.numQueries)
}
