// Package planner splits a witness into consecutive chunks and carries the
// continuation state across chunk boundaries.
package planner

import (
	"github.com/kunalsinghdadhwal/zephyr-proof/internal/zephyr-proof/core"
	"github.com/kunalsinghdadhwal/zephyr-proof/internal/zephyr-proof/trace"
	"github.com/kunalsinghdadhwal/zephyr-proof/internal/zephyr-proof/utils"
	"github.com/kunalsinghdadhwal/zephyr-proof/internal/zephyr-proof/witness"
)

// DefaultMaxRowsPerChunk bounds a chunk when no circuit size is given
const DefaultMaxRowsPerChunk = 1 << 14

// Chunk is the window [Start, End) of the witness together with the state
// the window starts from
type Chunk struct {
	Index int
	Start int
	End   int
	Entry trace.State
}

// Len returns the number of steps in the chunk
func (c Chunk) Len() int {
	return c.End - c.Start
}

// ChunkSizes returns the row count of every chunk of a numSteps trace.
// All chunks but the last hold exactly maxRows steps.
func ChunkSizes(numSteps, maxRows int) []int {
	if numSteps <= 0 || maxRows <= 0 {
		return nil
	}
	n := utils.CeilDiv(numSteps, maxRows)
	sizes := make([]int, n)
	for i := range sizes {
		sizes[i] = maxRows
	}
	sizes[n-1] = numSteps - (n-1)*maxRows
	return sizes
}

// Plan splits w into chunks of at most maxRows steps. Chunk 0 starts from
// entry; every later chunk starts from the post-state of the step before it.
func Plan(w *witness.Witness, entry trace.State, maxRows int) ([]Chunk, error) {
	if w == nil || w.Len() == 0 {
		return nil, core.NewError(core.ErrEmptyTrace, "nothing to plan: witness has no rows")
	}
	if maxRows <= 0 {
		return nil, core.NewError(core.ErrInvalidConfig, "max rows per chunk must be positive, got %d", maxRows)
	}

	sizes := ChunkSizes(w.Len(), maxRows)
	chunks := make([]Chunk, len(sizes))
	start := 0
	for i, size := range sizes {
		chunks[i] = Chunk{Index: i, Start: start, End: start + size, Entry: entry}
		start += size
		entry = w.PostState(start - 1)
	}
	return chunks, nil
}

// Continuous reports whether every chunk starts from the state left by its predecessor
func Continuous(w *witness.Witness, chunks []Chunk) bool {
	for i := 1; i < len(chunks); i++ {
		prev, cur := chunks[i-1], chunks[i]
		if cur.Start != prev.End || cur.Entry != w.PostState(prev.End-1) {
			return false
		}
	}
	return true
}
