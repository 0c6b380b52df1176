package prover

import (
	"runtime"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"

	"github.com/kunalsinghdadhwal/zephyr-proof/internal/zephyr-proof/backend"
	"github.com/kunalsinghdadhwal/zephyr-proof/internal/zephyr-proof/circuit"
	"github.com/kunalsinghdadhwal/zephyr-proof/internal/zephyr-proof/core"
)

// DefaultK is the default circuit size exponent
const DefaultK = 10

// Config represents the configuration of proof generation
type Config struct {
	// Circuit parameters
	K int // every chunk circuit has 2^K rows

	// Scheduling
	Parallel bool // prove chunks concurrently
	Threads  int  // worker bound; 0 means GOMAXPROCS

	// Backend parameters
	NumQueries int // rows sampled per chunk by the commitment backend

	// Artifact metadata
	TxHash      string
	BlockNumber *uint64
}

// DefaultConfig returns a configuration proving in parallel on every core
func DefaultConfig() *Config {
	return &Config{
		K:          DefaultK,
		Parallel:   true,
		Threads:    0,
		NumQueries: backend.DefaultNumQueries,
	}
}

// Validate checks if the configuration is valid
func (c *Config) Validate() error {
	if err := circuit.ValidateK(c.K); err != nil {
		return err
	}
	if c.Threads < 0 {
		return core.NewError(core.ErrInvalidConfig, "threads must not be negative, got %d", c.Threads)
	}
	if c.NumQueries <= 0 {
		return core.NewError(core.ErrInvalidConfig, "number of queries must be positive, got %d", c.NumQueries)
	}
	if c.TxHash != "" {
		b, err := hexutil.Decode(c.TxHash)
		if err != nil || len(b) != common.HashLength {
			return core.NewError(core.ErrInvalidConfig, "tx hash %q is not a 0x-prefixed 32-byte hex string", c.TxHash)
		}
	}
	return nil
}

// Workers returns the effective bound on concurrently proved chunks
func (c *Config) Workers() int {
	if !c.Parallel {
		return 1
	}
	if c.Threads > 0 {
		return c.Threads
	}
	return runtime.GOMAXPROCS(0)
}

// WithK sets the circuit size exponent
func (c *Config) WithK(k int) *Config {
	c.K = k
	return c
}

// WithParallel enables or disables concurrent chunk proving
func (c *Config) WithParallel(parallel bool) *Config {
	c.Parallel = parallel
	return c
}

// WithThreads sets the worker bound
func (c *Config) WithThreads(threads int) *Config {
	c.Threads = threads
	return c
}

// WithNumQueries sets the number of sampled rows per chunk
func (c *Config) WithNumQueries(queries int) *Config {
	c.NumQueries = queries
	return c
}

// WithTransaction records the transaction the trace belongs to
func (c *Config) WithTransaction(txHash string, blockNumber *uint64) *Config {
	c.TxHash = txHash
	c.BlockNumber = blockNumber
	return c
}

// Clone creates a copy of the configuration
func (c *Config) Clone() *Config {
	clone := *c
	if c.BlockNumber != nil {
		n := *c.BlockNumber
		clone.BlockNumber = &n
	}
	return &clone
}
