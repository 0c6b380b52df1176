package trace

import (
	"github.com/kunalsinghdadhwal/zephyr-proof/internal/zephyr-proof/core"
	"github.com/kunalsinghdadhwal/zephyr-proof/internal/zephyr-proof/evm"
)

// Validate checks the structural and semantic invariants of a trace.
// It runs once before witness construction and reports the first failing step.
func Validate(t *Trace) error {
	if t == nil || len(t.Steps) == 0 {
		return core.NewError(core.ErrEmptyTrace, "trace has no steps")
	}

	for i := range t.Steps {
		s := &t.Steps[i]
		if !evm.IsSupported(s.Opcode) {
			return core.StepError(core.ErrUnsupportedOpcode, i, "opcode 0x%02x (%s) is not supported",
				byte(s.Opcode), s.Opcode)
		}
		if len(s.Stack) > evm.MaxStackDepth {
			return core.StepError(core.ErrStackOverflow, i, "stack snapshot holds %d words, limit is %d",
				len(s.Stack), evm.MaxStackDepth)
		}
	}

	depth := len(t.Steps[0].Stack)
	for i := range t.Steps {
		s := &t.Steps[i]
		info := evm.MustLookup(s.Opcode)

		if len(s.Stack) > depth {
			return core.StepError(core.ErrStackMismatch, i, "snapshot holds %d words but tracked depth is %d",
				len(s.Stack), depth)
		}
		if depth < info.Pops {
			return core.StepError(core.ErrStackUnderflow, i, "%s needs %d operands, stack holds %d",
				s.Opcode, info.Pops, depth)
		}
		post := s.Apply(depth)
		if _, ok := evm.SuccessorPC(s.Opcode, s.PC, s.Word(0), s.Word(1)); !ok {
			return core.StepError(core.ErrPcMismatch, i, "%s at pc %d has no successor pc below 2^64",
				s.Opcode, s.PC)
		}
		if post.Depth > evm.MaxStackDepth {
			return core.StepError(core.ErrStackOverflow, i, "%s leaves %d words on the stack, limit is %d",
				s.Opcode, post.Depth, evm.MaxStackDepth)
		}

		if s.Gas < info.Cost {
			return core.StepError(core.ErrGasMismatch, i, "%s costs %d but only %d gas remains",
				s.Opcode, info.Cost, s.Gas)
		}
		if err := validateStorage(i, s); err != nil {
			return err
		}

		if i+1 < len(t.Steps) {
			next := &t.Steps[i+1]
			if next.Gas != post.Gas {
				return core.StepError(core.ErrGasMismatch, i+1, "gas is %d, expected %d after %s (cost %d)",
					next.Gas, post.Gas, s.Opcode, info.Cost)
			}
			if next.PC != post.PC {
				return core.StepError(core.ErrPcMismatch, i+1, "pc is %d, expected %d after %s at pc %d",
					next.PC, post.PC, s.Opcode, s.PC)
			}
		}
		depth = post.Depth
	}

	return nil
}

func validateStorage(i int, s *Step) error {
	switch s.Opcode {
	case evm.SLOAD, evm.SSTORE:
		if s.Storage == nil {
			return core.StepError(core.ErrStorageMismatch, i, "%s has no storage operation", s.Opcode)
		}
		if s.Storage.Key != s.Word(0) {
			return core.StepError(core.ErrStorageMismatch, i, "%s key %d differs from stack top %d",
				s.Opcode, s.Storage.Key, s.Word(0))
		}
		isWrite := s.Opcode == evm.SSTORE
		if s.Storage.IsWrite != isWrite {
			return core.StepError(core.ErrStorageMismatch, i, "%s storage operation has is_write=%t",
				s.Opcode, s.Storage.IsWrite)
		}
		if isWrite && s.Storage.Value != s.Word(1) {
			return core.StepError(core.ErrStorageMismatch, i, "SSTORE value %d differs from stack word %d",
				s.Storage.Value, s.Word(1))
		}
	default:
		if s.Storage != nil {
			return core.StepError(core.ErrStorageMismatch, i, "%s cannot carry a storage operation", s.Opcode)
		}
	}
	return nil
}
