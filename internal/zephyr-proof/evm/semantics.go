package evm

import "math/bits"

// NextPC returns the program counter after executing op at pc with the
// top two stack words s0 and s1. STOP halts in place. A successor that does
// not fit in 64 bits wraps; use SuccessorPC to detect it.
func NextPC(op OpCode, pc, s0, s1 uint64) uint64 {
	next, _ := SuccessorPC(op, pc, s0, s1)
	return next
}

// SuccessorPC is NextPC with an overflow report: ok is false when the
// fallthrough pc exceeds math.MaxUint64.
func SuccessorPC(op OpCode, pc, s0, s1 uint64) (next uint64, ok bool) {
	var advance uint64
	switch op {
	case STOP:
		return pc, true
	case JUMP:
		return s0, true
	case JUMPI:
		if s1 != 0 {
			return s0, true
		}
		advance = 1
	default:
		advance = 1 + uint64(MustLookup(op).Immediate)
	}
	next, carry := bits.Add64(pc, advance, 0)
	return next, carry == 0
}

// Eval computes the result word of an opcode whose result is a function of
// the top three stack words. Words are 64 bits wide and wrap modulo 2^64;
// division and modulo by zero yield zero as in the EVM.
// ok is false for opcodes whose result is not determined by the stack.
func Eval(op OpCode, s0, s1, s2 uint64) (result uint64, ok bool) {
	switch op {
	case ADD:
		return s0 + s1, true
	case SUB:
		return s0 - s1, true
	case MUL:
		return s0 * s1, true
	case DIV:
		if s1 == 0 {
			return 0, true
		}
		return s0 / s1, true
	case MOD:
		if s1 == 0 {
			return 0, true
		}
		return s0 % s1, true
	case ADDMOD:
		// bits.Div64 requires hi < divisor
		if s2 == 0 {
			return 0, true
		}
		hi, lo := bits.Add64(s0, s1, 0)
		_, rem := bits.Div64(hi%s2, lo, s2)
		return rem, true
	case MULMOD:
		if s2 == 0 {
			return 0, true
		}
		hi, lo := bits.Mul64(s0, s1)
		_, rem := bits.Div64(hi%s2, lo, s2)
		return rem, true
	case LT:
		return boolWord(s0 < s1), true
	case GT:
		return boolWord(s0 > s1), true
	case EQ:
		return boolWord(s0 == s1), true
	case AND:
		return s0 & s1, true
	case OR:
		return s0 | s1, true
	case XOR:
		return s0 ^ s1, true
	case NOT:
		return ^s0, true
	case DUP1:
		return s0, true
	case DUP2:
		return s1, true
	case SWAP1:
		return s1, true
	case SWAP2:
		return s2, true
	}
	return 0, false
}

func boolWord(b bool) uint64 {
	if b {
		return 1
	}
	return 0
}
