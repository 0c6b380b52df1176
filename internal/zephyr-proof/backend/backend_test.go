package backend

import (
	"bytes"
	"context"
	"errors"
	"testing"

	"github.com/vybium/vybium-crypto/pkg/vybium-crypto/hash"
	"github.com/vybium/vybium-crypto/pkg/vybium-crypto/merkle"

	"github.com/kunalsinghdadhwal/zephyr-proof/internal/zephyr-proof/chips"
	"github.com/kunalsinghdadhwal/zephyr-proof/internal/zephyr-proof/circuit"
	"github.com/kunalsinghdadhwal/zephyr-proof/internal/zephyr-proof/constraints"
	"github.com/kunalsinghdadhwal/zephyr-proof/internal/zephyr-proof/core"
	"github.com/kunalsinghdadhwal/zephyr-proof/internal/zephyr-proof/evm"
	"github.com/kunalsinghdadhwal/zephyr-proof/internal/zephyr-proof/trace"
	"github.com/kunalsinghdadhwal/zephyr-proof/internal/zephyr-proof/witness"
)

func testCircuit(t *testing.T, k int) *circuit.Circuit {
	t.Helper()
	tr := &trace.Trace{Steps: []trace.Step{
		{Opcode: evm.PUSH1, PC: 0, Gas: 1000},
		{Opcode: evm.PUSH1, PC: 2, Gas: 997, Stack: []uint64{1}},
		{Opcode: evm.ADD, PC: 4, Gas: 994, Stack: []uint64{2, 1}},
	}}
	if err := trace.Validate(tr); err != nil {
		t.Fatalf("Validate: %v", err)
	}
	w, err := witness.NewBuilder(0).Build(tr)
	if err != nil {
		t.Fatalf("Build: %v", err)
	}
	c, err := circuit.Assemble(w, circuit.Entry{State: w.StateAt(0)}, k)
	if err != nil {
		t.Fatalf("Assemble: %v", err)
	}
	return c
}

func setup(t *testing.T, k int) (*CommitBackend, *VerifyingKey, *circuit.Circuit, []byte) {
	t.Helper()
	b, err := NewCommitBackend(DefaultNumQueries)
	if err != nil {
		t.Fatalf("NewCommitBackend: %v", err)
	}
	shape, err := circuit.NewShape(3, k)
	if err != nil {
		t.Fatalf("NewShape: %v", err)
	}
	vk, err := b.DeriveVK(shape)
	if err != nil {
		t.Fatalf("DeriveVK: %v", err)
	}
	c := testCircuit(t, k)
	proof, err := b.Prove(context.Background(), c, vk)
	if err != nil {
		t.Fatalf("Prove: %v", err)
	}
	return b, vk, c, proof
}

func TestProveVerifyRoundTrip(t *testing.T) {
	for _, k := range []int{2, 3, 6} {
		b, vk, c, proof := setup(t, k)
		ok, err := b.Verify(vk, proof, c.Public)
		if err != nil || !ok {
			t.Fatalf("k=%d: Verify = %v, %v", k, ok, err)
		}
	}
}

func TestProofDeterministic(t *testing.T) {
	_, _, _, a := setup(t, 4)
	_, _, _, b := setup(t, 4)
	if !bytes.Equal(a, b) {
		t.Error("proving the same circuit twice produced different proofs")
	}
}

func TestTamperedPublicInputsRejected(t *testing.T) {
	b, vk, c, proof := setup(t, 3)
	for _, idx := range []int{chips.PubCommitment, chips.PubGasOut, chips.PubHistogramBase} {
		public := append(circuit.PublicInputs(nil), c.Public...)
		public[idx] = constraints.Add(public[idx], constraints.One)
		ok, err := b.Verify(vk, proof, public)
		if ok || err == nil {
			t.Errorf("public input %d: tampered vector accepted", idx)
		}
	}
}

func TestTamperedProofBytesRejected(t *testing.T) {
	b, vk, c, proof := setup(t, 3)
	for off := 0; off < len(proof); off += 97 {
		tampered := append([]byte(nil), proof...)
		tampered[off] ^= 0x01
		if ok, err := b.Verify(vk, tampered, c.Public); ok || err == nil {
			t.Fatalf("flipping byte %d was not detected", off)
		}
	}
	if ok, _ := b.Verify(vk, proof[:len(proof)-1], c.Public); ok {
		t.Error("truncated proof accepted")
	}
	if ok, _ := b.Verify(vk, append(append([]byte(nil), proof...), 0), c.Public); ok {
		t.Error("proof with trailing byte accepted")
	}
	ok, err := b.Verify(vk, nil, c.Public)
	if ok || !core.HasCode(err, core.ErrInvalidProof) {
		t.Errorf("empty proof: %v, %v", ok, err)
	}
}

func TestForgedTableRejected(t *testing.T) {
	b, vk, c, _ := setup(t, 3)
	c.Rows[0][chips.ColGas] = constraints.Const(998)
	if _, err := b.Prove(context.Background(), c, vk); !core.HasCode(err, core.ErrConstraintViolation) {
		t.Fatalf("Prove on forged table: %v", err)
	}

	// Commit to the forged table directly; row 0 is always opened.
	leaves := make([]hash.Digest, c.NumRows())
	for i, row := range c.Rows {
		leaves[i] = RowDigest(row)
	}
	tree, err := merkle.New(leaves)
	if err != nil {
		t.Fatal(err)
	}
	root := tree.Root()
	indices, err := b.openedRows(vk, c.K, c.Public, root)
	if err != nil {
		t.Fatal(err)
	}
	forged := &Proof{K: c.K, Root: root, Seal: seal(vk, c.Public, root)}
	for _, idx := range indices {
		path, err := tree.AuthenticationPath(uint64(idx))
		if err != nil {
			t.Fatal(err)
		}
		forged.Openings = append(forged.Openings, Opening{Index: idx, Row: c.Rows[idx], Path: path})
	}
	data, err := forged.MarshalBinary()
	if err != nil {
		t.Fatal(err)
	}
	ok, err := b.Verify(vk, data, c.Public)
	if ok || !core.HasCode(err, core.ErrInvalidProof) {
		t.Errorf("forged proof: %v, %v", ok, err)
	}
}

func TestVerifyingKey(t *testing.T) {
	b, err := NewCommitBackend(DefaultNumQueries)
	if err != nil {
		t.Fatal(err)
	}
	shape, _ := circuit.NewShape(3, 3)
	vk1, _ := b.DeriveVK(shape)
	again, _ := circuit.NewShape(3, 3)
	vk2, _ := b.DeriveVK(again)
	if vk1 != vk2 {
		t.Error("verifying key not served from the cache")
	}
	if len(vk1.Hex()) != 2*digestSize || !vk1.Matches(vk2.Hex()) {
		t.Errorf("vk hash %q", vk1.Hex())
	}

	other, _ := circuit.NewShape(4, 3)
	vk3, _ := b.DeriveVK(other)
	if vk3.Matches(vk1.Hex()) {
		t.Error("different num_steps produced the same key")
	}

	b2, _ := NewCommitBackend(DefaultNumQueries + 1)
	vk4, _ := b2.DeriveVK(shape)
	if vk4.Matches(vk1.Hex()) {
		t.Error("query count not bound into the key")
	}

	if _, err := NewCommitBackend(0); !core.HasCode(err, core.ErrInvalidConfig) {
		t.Errorf("zero queries: %v", err)
	}
}

func TestKeyMismatch(t *testing.T) {
	b, _, c, proof := setup(t, 3)
	shape, _ := circuit.NewShape(5, 3)
	wrong, _ := b.DeriveVK(shape)
	ok, err := b.Verify(wrong, proof, c.Public)
	if ok || !core.HasCode(err, core.ErrKeyMismatch) {
		t.Errorf("verify under wrong key: %v, %v", ok, err)
	}
	if _, err := b.Prove(context.Background(), c, wrong); !core.HasCode(err, core.ErrKeyMismatch) {
		t.Errorf("prove under wrong key: %v", err)
	}
}

func TestProveCanceled(t *testing.T) {
	b, vk, c, _ := setup(t, 3)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if _, err := b.Prove(ctx, c, vk); !errors.Is(err, context.Canceled) {
		t.Errorf("Prove with canceled context: %v", err)
	}
}

func TestProofCodec(t *testing.T) {
	_, _, _, data := setup(t, 3)
	p, err := UnmarshalProof(data)
	if err != nil {
		t.Fatalf("UnmarshalProof: %v", err)
	}
	if p.K != 3 || len(p.Openings) < 2 || len(p.Openings) > 8 {
		t.Errorf("k=%d openings=%d", p.K, len(p.Openings))
	}
	if first, last := p.Openings[0].Index, p.Openings[len(p.Openings)-1].Index; first != 0 || last != 7 {
		t.Errorf("boundary rows not opened: first=%d last=%d", first, last)
	}
	again, err := p.MarshalBinary()
	if err != nil {
		t.Fatalf("MarshalBinary: %v", err)
	}
	if !bytes.Equal(again, data) {
		t.Error("re-encoding changed the proof")
	}
}

func TestBytesToElementsLengthPrefixed(t *testing.T) {
	a := BytesToElements([]byte{1, 2, 3})
	b := BytesToElements([]byte{1, 2, 3, 0})
	if len(a) != 2 || len(b) != 2 || a[0].Value() == b[0].Value() {
		t.Error("trailing zero bytes must change the encoding")
	}
}

func TestRowCommitment(t *testing.T) {
	_, _, c, data := setup(t, 3)
	p, err := UnmarshalProof(data)
	if err != nil {
		t.Fatalf("UnmarshalProof: %v", err)
	}

	leaves := make([]hash.Digest, c.NumRows())
	for i, row := range c.Rows {
		leaves[i] = RowDigest(row)
	}
	tree, err := merkle.New(leaves)
	if err != nil {
		t.Fatal(err)
	}
	if !p.Root.Equal(tree.Root()) {
		t.Fatal("proof root is not the root of the row tree")
	}
	for _, o := range p.Openings {
		if !merkle.VerifyInclusionProof(p.Root, uint64(o.Index), leaves[o.Index], o.Path) {
			t.Errorf("row %d does not open against the root", o.Index)
		}
		other := (o.Index + 1) % c.NumRows()
		if merkle.VerifyInclusionProof(p.Root, uint64(o.Index), leaves[other], o.Path) {
			t.Errorf("row %d opened with the digest of row %d", o.Index, other)
		}
	}
}
