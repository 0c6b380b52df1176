package prover

import (
	"encoding/base64"
	"encoding/binary"
	"encoding/json"
	"fmt"
	"io"
	"os"

	"github.com/kunalsinghdadhwal/zephyr-proof/internal/zephyr-proof/circuit"
	"github.com/kunalsinghdadhwal/zephyr-proof/internal/zephyr-proof/core"
)

// Metadata summarises the proved trace. Every total is recomputed from the
// chunk public inputs by the verifier.
type Metadata struct {
	OpcodeHistogram map[string]uint64 `json:"opcode_histogram"`
	GasUsed         uint64            `json:"gas_used"`
	StorageWrites   uint64            `json:"storage_writes"`
	Chunks          int               `json:"chunks"`
	TxHash          string            `json:"tx_hash,omitempty"`
	BlockNumber     *uint64           `json:"block_number,omitempty"`
}

// ProofArtifact is the self-contained output of the prover
type ProofArtifact struct {
	Proof        string   `json:"proof"`
	PublicInputs []string `json:"public_inputs"`
	Metadata     Metadata `json:"metadata"`
	NumSteps     int      `json:"num_steps"`
	K            int      `json:"k"`
	VKHash       string   `json:"vk_hash"`
}

// ProofChunkResult is the proof of one chunk
type ProofChunkResult struct {
	Index        int
	Start        int
	End          int
	Proof        []byte
	PublicInputs circuit.PublicInputs
	Summary      *circuit.Summary
}

// Totals aggregates chunk summaries into artifact metadata
func Totals(summaries []*circuit.Summary) Metadata {
	md := Metadata{OpcodeHistogram: make(map[string]uint64), Chunks: len(summaries)}
	for _, s := range summaries {
		md.GasUsed += s.GasUsed()
		md.StorageWrites += s.StorageWrites
		for op, n := range s.Histogram {
			md.OpcodeHistogram[op.String()] += n
		}
	}
	return md
}

// SameTotals reports whether two metadata blocks agree on every total
func SameTotals(a, b *Metadata) error {
	if a.Chunks != b.Chunks {
		return fmt.Errorf("chunks: %d != %d", a.Chunks, b.Chunks)
	}
	if a.GasUsed != b.GasUsed {
		return fmt.Errorf("gas_used: %d != %d", a.GasUsed, b.GasUsed)
	}
	if a.StorageWrites != b.StorageWrites {
		return fmt.Errorf("storage_writes: %d != %d", a.StorageWrites, b.StorageWrites)
	}
	for name, n := range a.OpcodeHistogram {
		if b.OpcodeHistogram[name] != n {
			return fmt.Errorf("opcode_histogram[%s]: %d != %d", name, n, b.OpcodeHistogram[name])
		}
	}
	for name, n := range b.OpcodeHistogram {
		if a.OpcodeHistogram[name] != n {
			return fmt.Errorf("opcode_histogram[%s]: %d != %d", name, a.OpcodeHistogram[name], n)
		}
	}
	return nil
}

// GasUsed returns the gas consumed by the proved trace
func (a *ProofArtifact) GasUsed() uint64 {
	return a.Metadata.GasUsed
}

// ChunkProofs decodes the base64 envelope into per-chunk proofs
func (a *ProofArtifact) ChunkProofs() ([][]byte, error) {
	raw, err := base64.StdEncoding.Strict().DecodeString(a.Proof)
	if err != nil {
		return nil, core.Wrap(core.ErrInvalidProof, err, "proof is not valid base64")
	}
	return DecodeEnvelope(raw)
}

// Write encodes the artifact as indented JSON
func (a *ProofArtifact) Write(w io.Writer) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(a)
}

// WriteFile writes the artifact to path
func (a *ProofArtifact) WriteFile(path string) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("failed to create %s: %w", path, err)
	}
	if err := a.Write(f); err != nil {
		f.Close()
		return fmt.Errorf("failed to write %s: %w", path, err)
	}
	return f.Close()
}

// ReadArtifact decodes an artifact. Unknown fields are rejected.
func ReadArtifact(r io.Reader) (*ProofArtifact, error) {
	dec := json.NewDecoder(r)
	dec.DisallowUnknownFields()
	var a ProofArtifact
	if err := dec.Decode(&a); err != nil {
		return nil, core.Wrap(core.ErrMalformedInput, err, "failed to parse proof artifact")
	}
	return &a, nil
}

// ReadArtifactFile reads an artifact from path
func ReadArtifactFile(path string) (*ProofArtifact, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, core.Wrap(core.ErrMalformedInput, err, "failed to open %s", path)
	}
	defer f.Close()
	return ReadArtifact(f)
}

var envelopeMagic = [4]byte{'Z', 'P', 'E', '1'}

// EncodeEnvelope concatenates chunk proofs:
//
//	magic(4) count(4) { length(4) proof }*
func EncodeEnvelope(proofs [][]byte) []byte {
	size := 8
	for _, p := range proofs {
		size += 4 + len(p)
	}
	buf := make([]byte, 0, size)
	buf = append(buf, envelopeMagic[:]...)
	buf = binary.BigEndian.AppendUint32(buf, uint32(len(proofs)))
	for _, p := range proofs {
		buf = binary.BigEndian.AppendUint32(buf, uint32(len(p)))
		buf = append(buf, p...)
	}
	return buf
}

// DecodeEnvelope splits an envelope written by EncodeEnvelope. Trailing
// bytes are rejected.
func DecodeEnvelope(data []byte) ([][]byte, error) {
	fail := func(format string, args ...any) ([][]byte, error) {
		return nil, core.NewError(core.ErrInvalidProof, "malformed proof envelope: "+format, args...)
	}
	if len(data) < 8 || [4]byte(data[:4]) != envelopeMagic {
		return fail("bad header")
	}
	count := binary.BigEndian.Uint32(data[4:8])
	if count == 0 || count > circuit.MaxChunks {
		return fail("%d chunk proofs", count)
	}
	off := 8
	proofs := make([][]byte, 0, count)
	for i := uint32(0); i < count; i++ {
		if len(data)-off < 4 {
			return fail("truncated before proof %d", i)
		}
		n := int(binary.BigEndian.Uint32(data[off:]))
		off += 4
		if n > len(data)-off {
			return fail("proof %d claims %d bytes, %d remain", i, n, len(data)-off)
		}
		proofs = append(proofs, data[off:off+n])
		off += n
	}
	if off != len(data) {
		return fail("%d trailing bytes", len(data)-off)
	}
	return proofs, nil
}
