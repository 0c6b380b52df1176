package trace

import (
	"github.com/kunalsinghdadhwal/zephyr-proof/internal/zephyr-proof/core"
	"github.com/kunalsinghdadhwal/zephyr-proof/internal/zephyr-proof/evm"
)

// Instruction is one opcode of a program with its immediate argument
type Instruction struct {
	Op  evm.OpCode
	Arg uint64
}

// Push returns a PUSH instruction of the narrowest supported width holding v
func Push(v uint64) Instruction {
	switch {
	case v < 1<<8:
		return Instruction{Op: evm.PUSH1, Arg: v}
	case v < 1<<16:
		return Instruction{Op: evm.PUSH2, Arg: v}
	case v < 1<<32:
		return Instruction{Op: evm.PUSH4, Arg: v}
	default:
		return Instruction{Op: evm.PUSH32, Arg: v}
	}
}

// Op returns an instruction without an immediate
func Op(op evm.OpCode) Instruction {
	return Instruction{Op: op}
}

// machine is the 64-bit interpreter state
type machine struct {
	stack   []uint64 // bottom first
	memory  map[uint64]uint64
	storage map[uint64]uint64
}

func (m *machine) snapshot() []uint64 {
	out := make([]uint64, len(m.stack))
	for i, v := range m.stack {
		out[len(m.stack)-1-i] = v
	}
	return out
}

func (m *machine) pop() uint64 {
	v := m.stack[len(m.stack)-1]
	m.stack = m.stack[:len(m.stack)-1]
	return v
}

func (m *machine) push(v uint64) {
	m.stack = append(m.stack, v)
}

// Run executes program from the given gas and records every step. Execution
// ends after STOP or when the pc leaves the program. Storage starts from
// storage (nil for empty) and is not modified. maxSteps bounds loops; 0
// means unbounded.
func Run(program []Instruction, gas uint64, storage map[uint64]uint64, maxSteps int) (*Trace, error) {
	if len(program) == 0 {
		return nil, core.NewError(core.ErrEmptyTrace, "program has no instructions")
	}

	// Lay out instructions by byte offset
	index := make(map[uint64]int, len(program))
	var pc uint64
	for i, ins := range program {
		info, ok := evm.Lookup(ins.Op)
		if !ok {
			return nil, core.NewError(core.ErrUnsupportedOpcode, "instruction %d: opcode 0x%02x is not supported",
				i, byte(ins.Op))
		}
		index[pc] = i
		pc += 1 + uint64(info.Immediate)
	}
	end := pc

	m := &machine{memory: make(map[uint64]uint64), storage: make(map[uint64]uint64, len(storage))}
	for k, v := range storage {
		m.storage[k] = v
	}

	tr := &Trace{}
	pc = 0
	for {
		if maxSteps > 0 && len(tr.Steps) == maxSteps {
			return nil, core.NewError(core.ErrWidthOverflow, "program did not halt within %d steps", maxSteps)
		}
		i, ok := index[pc]
		if !ok {
			return nil, core.StepError(core.ErrPcMismatch, len(tr.Steps), "pc %d is not an instruction boundary", pc)
		}
		ins := program[i]
		info := evm.MustLookup(ins.Op)
		step := Step{Opcode: ins.Op, PC: pc, Gas: gas, Stack: m.snapshot()}
		n := len(tr.Steps)

		if len(m.stack) < info.Pops {
			return nil, core.StepError(core.ErrStackUnderflow, n, "%s needs %d operands, stack holds %d",
				ins.Op, info.Pops, len(m.stack))
		}
		if len(m.stack)+info.Delta() > evm.MaxStackDepth {
			return nil, core.StepError(core.ErrStackOverflow, n, "%s overflows the stack", ins.Op)
		}
		if gas < info.Cost {
			return nil, core.StepError(core.ErrGasMismatch, n, "out of gas: %s costs %d, %d left", ins.Op, info.Cost, gas)
		}
		next := evm.NextPC(ins.Op, pc, step.Word(0), step.Word(1))

		switch ins.Op {
		case evm.STOP:
		case evm.PUSH1, evm.PUSH2, evm.PUSH4, evm.PUSH32:
			arg := ins.Arg
			if width := info.Immediate * 8; width < 64 {
				arg &= 1<<width - 1
			}
			m.push(arg)
		case evm.POP, evm.JUMP, evm.JUMPI:
			for j := 0; j < info.Pops; j++ {
				m.pop()
			}
		case evm.DUP1, evm.DUP2, evm.SWAP1, evm.SWAP2:
			v, _ := evm.Eval(ins.Op, step.Word(0), step.Word(1), step.Word(2))
			switch ins.Op {
			case evm.DUP1, evm.DUP2:
				m.push(v)
			case evm.SWAP1:
				top := len(m.stack) - 1
				m.stack[top], m.stack[top-1] = m.stack[top-1], m.stack[top]
			case evm.SWAP2:
				top := len(m.stack) - 1
				m.stack[top], m.stack[top-2] = m.stack[top-2], m.stack[top]
			}
		case evm.MLOAD:
			m.push(m.memory[m.pop()])
		case evm.MSTORE:
			offset, value := m.pop(), m.pop()
			m.memory[offset] = value
		case evm.SLOAD:
			key := m.pop()
			value := m.storage[key]
			step.Storage = &StorageOp{Key: key, Value: value}
			m.push(value)
		case evm.SSTORE:
			key, value := m.pop(), m.pop()
			step.Storage = &StorageOp{Key: key, Value: value, IsWrite: true}
			m.storage[key] = value
		default:
			result, ok := evm.Eval(ins.Op, step.Word(0), step.Word(1), step.Word(2))
			if !ok {
				return nil, core.StepError(core.ErrUnsupportedOpcode, n, "no semantics for %s", ins.Op)
			}
			for j := 0; j < info.Pops; j++ {
				m.pop()
			}
			m.push(result)
		}

		tr.Steps = append(tr.Steps, step)
		gas -= info.Cost
		if ins.Op == evm.STOP || next >= end {
			return tr, nil
		}
		pc = next
	}
}
