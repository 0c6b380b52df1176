// Package circuit assembles one chunk of a witness into a fixed-size table
// of 2^k rows checked against the opcode constraint system.
package circuit

import (
	"encoding/binary"
	"sync"

	"github.com/consensys/gnark-crypto/ecc/bn254/fr"
	"golang.org/x/crypto/sha3"

	"github.com/kunalsinghdadhwal/zephyr-proof/internal/zephyr-proof/chips"
	"github.com/kunalsinghdadhwal/zephyr-proof/internal/zephyr-proof/core"
	"github.com/kunalsinghdadhwal/zephyr-proof/internal/zephyr-proof/evm"
	"github.com/kunalsinghdadhwal/zephyr-proof/internal/zephyr-proof/trace"
	"github.com/kunalsinghdadhwal/zephyr-proof/internal/zephyr-proof/utils"
	"github.com/kunalsinghdadhwal/zephyr-proof/internal/zephyr-proof/witness"
)

// System returns the shared opcode constraint system
var System = sync.OnceValue(chips.NewSystem)

// Entry is the boundary a chunk starts from
type Entry struct {
	Chunk int
	State trace.State
}

// Circuit is one assembled chunk
type Circuit struct {
	K       int
	Rows    [][]fr.Element
	Public  PublicInputs
	Summary *Summary

	// Offset of the first row within the full trace
	Offset int
}

// Assemble lays out window as the first rows of a 2^k table and pads the
// rest with STOP rows that carry the exit state
func Assemble(window *witness.Witness, entry Entry, k int) (*Circuit, error) {
	if err := ValidateK(k); err != nil {
		return nil, err
	}
	if window == nil || window.Len() == 0 {
		return nil, core.NewError(core.ErrEmptyTrace, "chunk %d has no rows", entry.Chunk)
	}
	capacity := utils.Capacity(k)
	n := window.Len()
	if n > capacity {
		return nil, core.ChunkError(core.ErrRowOverflow, entry.Chunk, nil,
			"%d steps do not fit a circuit of %d rows (k=%d)", n, capacity, k)
	}

	rows := make([][]fr.Element, capacity)
	summary := &Summary{
		Chunk:     entry.Chunk,
		Rows:      n,
		Entry:     entry.State,
		Exit:      window.PostState(n - 1),
		Histogram: make(map[evm.OpCode]uint64),
	}
	for i := 0; i < n; i++ {
		step := stepAt(window, i)
		rows[i] = chips.AssignRow(&step)
		summary.Histogram[step.Opcode]++
		if step.StWrite {
			summary.StorageWrites++
		}
	}
	pad := chips.PadStep(summary.Exit.Gas, summary.Exit.Depth, summary.Exit.PC)
	for i := n; i < capacity; i++ {
		rows[i] = chips.AssignRow(&pad)
	}
	chips.FillCounters(rows)

	return &Circuit{
		K:       k,
		Rows:    rows,
		Public:  NewPublicInputs(window.Commitment, summary),
		Summary: summary,
		Offset:  window.Offset,
	}, nil
}

func stepAt(w *witness.Witness, i int) chips.Step {
	return chips.Step{
		Opcode:     w.Opcodes[i],
		PC:         w.PCs[i],
		Gas:        w.Gas[i],
		Depth:      w.Depths[i],
		S0:         w.S0[i],
		S1:         w.S1[i],
		S2:         w.S2[i],
		Result:     w.Results[i],
		HasStorage: w.HasStorage[i],
		StKey:      w.StorageKeys[i],
		StValue:    w.StorageValues[i],
		StWrite:    w.StorageWrites[i],
		Active:     true,
	}
}

// NumRows returns 2^k
func (c *Circuit) NumRows() int {
	return len(c.Rows)
}

// CheckConstraints evaluates the full constraint system over the table
func (c *Circuit) CheckConstraints() error {
	v := System().Check(c.Rows, c.Public)
	if v == nil {
		return nil
	}
	err := core.ChunkError(core.ErrConstraintViolation, c.Summary.Chunk, v, "%s constraint %q fails at row %d",
		v.Kind, v.Name, v.Row)
	if v.Row < c.Summary.Rows {
		err.Step = c.Offset + v.Row
	}
	return err
}

// Fingerprint hashes the shape, the public inputs and every cell. Two
// assemblies of the same chunk produce the same fingerprint.
func (c *Circuit) Fingerprint() [32]byte {
	h := sha3.NewLegacyKeccak256()
	var buf [8]byte
	binary.BigEndian.PutUint64(buf[:], uint64(c.K))
	h.Write(buf[:])
	binary.BigEndian.PutUint64(buf[:], uint64(chips.NumColumns))
	h.Write(buf[:])
	for i := range c.Public {
		b := c.Public[i].Bytes()
		h.Write(b[:])
	}
	for _, row := range c.Rows {
		for j := range row {
			b := row[j].Bytes()
			h.Write(b[:])
		}
	}
	var out [32]byte
	h.Sum(out[:0])
	return out
}
