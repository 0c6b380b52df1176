package circuit

import (
	"github.com/kunalsinghdadhwal/zephyr-proof/internal/zephyr-proof/chips"
	"github.com/kunalsinghdadhwal/zephyr-proof/internal/zephyr-proof/core"
	"github.com/kunalsinghdadhwal/zephyr-proof/internal/zephyr-proof/planner"
	"github.com/kunalsinghdadhwal/zephyr-proof/internal/zephyr-proof/utils"
)

const (
	// MinK is the smallest supported circuit size exponent
	MinK = 2
	// MaxK is the largest supported circuit size exponent
	MaxK = 24
	// MaxChunks bounds the number of chunks of a single proof
	MaxChunks = 4096
)

// Shape is everything the verifier can derive from (num_steps, k): the
// circuit size and the row count of each chunk
type Shape struct {
	NumSteps  int
	K         int
	ChunkRows []int
}

// ValidateK checks that k is within [MinK, MaxK]
func ValidateK(k int) error {
	if k < MinK || k > MaxK {
		return core.NewError(core.ErrInvalidConfig, "circuit size k=%d outside [%d, %d]", k, MinK, MaxK)
	}
	return nil
}

// MaxSteps returns the largest trace a circuit of size k can prove
func MaxSteps(k int) int {
	return utils.Capacity(k) * MaxChunks
}

// NewShape derives the chunk layout of a numSteps trace proved at size k
func NewShape(numSteps, k int) (*Shape, error) {
	if err := ValidateK(k); err != nil {
		return nil, err
	}
	if numSteps <= 0 {
		return nil, core.NewError(core.ErrEmptyTrace, "num_steps must be positive, got %d", numSteps)
	}
	if numSteps > MaxSteps(k) {
		return nil, core.NewError(core.ErrWidthOverflow,
			"%d steps exceed %d chunks of %d rows", numSteps, MaxChunks, utils.Capacity(k))
	}
	return &Shape{
		NumSteps:  numSteps,
		K:         k,
		ChunkRows: planner.ChunkSizes(numSteps, utils.Capacity(k)),
	}, nil
}

// Capacity returns the number of rows of every chunk circuit
func (s *Shape) Capacity() int {
	return utils.Capacity(s.K)
}

// NumChunks returns the number of chunk circuits
func (s *Shape) NumChunks() int {
	return len(s.ChunkRows)
}

// NumPublicInputs returns the length of the concatenated public inputs
func (s *Shape) NumPublicInputs() int {
	return s.NumChunks() * chips.NumPublicInputs
}
