package chips

import (
	"math/big"
	"math/bits"

	"github.com/consensys/gnark-crypto/ecc/bn254/fr"

	"github.com/kunalsinghdadhwal/zephyr-proof/internal/zephyr-proof/constraints"
	"github.com/kunalsinghdadhwal/zephyr-proof/internal/zephyr-proof/evm"
)

// ArithmeticChip constrains the arithmetic, comparison and bitwise opcodes
// over 64-bit words. Operands are s0 (a), s1 (b) and s2 (n).
//
// Auxiliary columns per opcode:
//
//	ADD     aux0 = carry
//	SUB     aux0 = borrow
//	MUL     aux0 = high word of a·b
//	DIV/MOD aux0 = quotient, aux1 = remainder, aux2 = b - r - 1, inv/flag zero test on b
//	ADDMOD  aux0 = quotient, aux1 = remainder, aux2 = n - r - 1, inv/flag zero test on n
//	MULMOD  as ADDMOD
//	LT/GT   aux2 = difference word
//	EQ      inv = (a - b)^-1
type ArithmeticChip struct{}

func (c *ArithmeticChip) Name() string { return "arithmetic" }

func (c *ArithmeticChip) Configure(sys *constraints.System) {
	var (
		one   = constraints.One
		two64 = constraints.Two64
	)

	gate := func(op evm.OpCode, name string, degree int, body func(row []fr.Element) fr.Element) {
		sys.AddConsistencyConstraint(op.String()+" "+name, degree+1, func(row []fr.Element) fr.Element {
			return constraints.Mul(ind(row, op), body(row))
		})
	}

	// a + b = r + carry·2^64
	gate(evm.ADD, "sum", 1, func(row []fr.Element) fr.Element {
		return constraints.Sub(constraints.Add(row[ColS0], row[ColS1]),
			constraints.Add(row[ColResult], constraints.Mul(row[ColAux0], two64)))
	})
	gate(evm.ADD, "carry boolean", 2, func(row []fr.Element) fr.Element {
		return constraints.IsBool(row[ColAux0])
	})

	// a - b + borrow·2^64 = r
	gate(evm.SUB, "difference", 1, func(row []fr.Element) fr.Element {
		return constraints.Sub(
			constraints.Add(row[ColS0], constraints.Mul(row[ColAux0], two64)),
			constraints.Add(row[ColS1], row[ColResult]))
	})
	gate(evm.SUB, "borrow boolean", 2, func(row []fr.Element) fr.Element {
		return constraints.IsBool(row[ColAux0])
	})

	// a·b = r + hi·2^64
	gate(evm.MUL, "product", 2, func(row []fr.Element) fr.Element {
		return constraints.Sub(constraints.Mul(row[ColS0], row[ColS1]),
			constraints.Add(row[ColResult], constraints.Mul(row[ColAux0], two64)))
	})

	// Division family: dividend = q·d + r with r < d unless d is zero
	division := func(op evm.OpCode, divisor int, dividend func(row []fr.Element) fr.Element, result int) {
		gate(op, "zero test", 2, func(row []fr.Element) fr.Element {
			return constraints.Sub(row[ColFlag],
				constraints.Sub(one, constraints.Mul(row[divisor], row[ColInv])))
		})
		gate(op, "zero flag", 2, func(row []fr.Element) fr.Element {
			return constraints.Mul(row[divisor], row[ColFlag])
		})
		gate(op, "quotient", 3, func(row []fr.Element) fr.Element {
			nonZero := constraints.Sub(one, row[ColFlag])
			rhs := constraints.Add(constraints.Mul(row[ColAux0], row[divisor]), row[ColAux1])
			return constraints.Mul(nonZero, constraints.Sub(dividend(row), rhs))
		})
		gate(op, "remainder bound", 2, func(row []fr.Element) fr.Element {
			nonZero := constraints.Sub(one, row[ColFlag])
			gap := constraints.Add(row[ColAux1], one, row[ColAux2])
			return constraints.Mul(nonZero, constraints.Sub(row[divisor], gap))
		})
		gate(op, "result", 2, func(row []fr.Element) fr.Element {
			nonZero := constraints.Sub(one, row[ColFlag])
			return constraints.Sub(row[ColResult], constraints.Mul(nonZero, row[result]))
		})
	}
	division(evm.DIV, ColS1, func(row []fr.Element) fr.Element { return row[ColS0] }, ColAux0)
	division(evm.MOD, ColS1, func(row []fr.Element) fr.Element { return row[ColS0] }, ColAux1)
	division(evm.ADDMOD, ColS2, func(row []fr.Element) fr.Element {
		return constraints.Add(row[ColS0], row[ColS1])
	}, ColAux1)
	division(evm.MULMOD, ColS2, func(row []fr.Element) fr.Element {
		return constraints.Mul(row[ColS0], row[ColS1])
	}, ColAux1)

	// a - b + r·2^64 = diff, with diff a 64-bit word
	comparison := func(op evm.OpCode, lhs, rhs int) {
		gate(op, "difference", 1, func(row []fr.Element) fr.Element {
			return constraints.Sub(
				constraints.Add(row[lhs], constraints.Mul(row[ColResult], two64)),
				constraints.Add(row[rhs], row[ColAux2]))
		})
		gate(op, "result boolean", 2, func(row []fr.Element) fr.Element {
			return constraints.IsBool(row[ColResult])
		})
	}
	comparison(evm.LT, ColS0, ColS1)
	comparison(evm.GT, ColS1, ColS0)

	gate(evm.EQ, "result", 2, func(row []fr.Element) fr.Element {
		d := constraints.Sub(row[ColS0], row[ColS1])
		return constraints.Sub(row[ColResult], constraints.Sub(one, constraints.Mul(d, row[ColInv])))
	})
	gate(evm.EQ, "zero difference", 2, func(row []fr.Element) fr.Element {
		d := constraints.Sub(row[ColS0], row[ColS1])
		return constraints.Mul(d, row[ColResult])
	})

	gate(evm.NOT, "complement", 1, func(row []fr.Element) fr.Element {
		return constraints.Sub(row[ColResult], constraints.Sub(constraints.WordMax, row[ColS0]))
	})

	bitwise := map[evm.OpCode]constraints.BitwiseOp{
		evm.AND: constraints.BitwiseAnd,
		evm.OR:  constraints.BitwiseOr,
		evm.XOR: constraints.BitwiseXor,
	}
	for _, op := range []evm.OpCode{evm.AND, evm.OR, evm.XOR} {
		col := Indicator(op)
		sys.AddLookup(op.String()+" table", constraints.NewBitwiseTable(bitwise[op]), func(row []fr.Element) []fr.Element {
			var a, b, r fr.Element
			a.Mul(&row[col], &row[ColS0])
			b.Mul(&row[col], &row[ColS1])
			r.Mul(&row[col], &row[ColResult])
			return []fr.Element{a, b, r}
		})
	}

	// Word ranges. Every row keeps its operands and result within 64 bits,
	// so the gadgets above cannot wrap the field.
	for _, col := range []int{ColS0, ColS1, ColS2, ColResult} {
		sys.AddLookup(columnName(col)+" word", constraints.NewRangeTable(64), func(row []fr.Element) []fr.Element {
			return []fr.Element{row[col]}
		})
	}
	sys.AddLookup("aux0 range", constraints.NewRangeTable(128), func(row []fr.Element) []fr.Element {
		return []fr.Element{row[ColAux0]}
	})
	sys.AddLookup("aux1 word", constraints.NewRangeTable(64), func(row []fr.Element) []fr.Element {
		return []fr.Element{row[ColAux1]}
	})
	sys.AddLookup("aux2 word", constraints.NewRangeTable(64), func(row []fr.Element) []fr.Element {
		return []fr.Element{row[ColAux2]}
	})
}

func (c *ArithmeticChip) Assign(row []fr.Element, step *Step) {
	a, b, n := step.S0, step.S1, step.S2
	row[ColS0] = constraints.Const(a)
	row[ColS1] = constraints.Const(b)
	row[ColS2] = constraints.Const(n)

	switch step.Opcode {
	case evm.ADD:
		_, carry := bits.Add64(a, b, 0)
		row[ColAux0] = constraints.Const(carry)
	case evm.SUB:
		_, borrow := bits.Sub64(a, b, 0)
		row[ColAux0] = constraints.Const(borrow)
	case evm.MUL:
		hi, _ := bits.Mul64(a, b)
		row[ColAux0] = constraints.Const(hi)
	case evm.DIV, evm.MOD:
		assignDivision(row, new(big.Int).SetUint64(a), b)
	case evm.ADDMOD:
		sum := new(big.Int).Add(new(big.Int).SetUint64(a), new(big.Int).SetUint64(b))
		assignDivision(row, sum, n)
	case evm.MULMOD:
		prod := new(big.Int).Mul(new(big.Int).SetUint64(a), new(big.Int).SetUint64(b))
		assignDivision(row, prod, n)
	case evm.LT:
		row[ColAux2] = constraints.Const(a - b)
	case evm.GT:
		row[ColAux2] = constraints.Const(b - a)
	case evm.EQ:
		row[ColInv] = constraints.Inverse(constraints.Sub(constraints.Const(a), constraints.Const(b)))
	}
}

// assignDivision fills quotient, remainder, gap and the zero test of divisor
func assignDivision(row []fr.Element, dividend *big.Int, divisor uint64) {
	if divisor == 0 {
		row[ColFlag] = constraints.One
		return
	}
	d := new(big.Int).SetUint64(divisor)
	q, r := new(big.Int).QuoRem(dividend, d, new(big.Int))
	row[ColAux0].SetBigInt(q)
	row[ColAux1].SetBigInt(r)
	row[ColAux2] = constraints.Const(divisor - r.Uint64() - 1)
	row[ColInv] = constraints.Inverse(constraints.Const(divisor))
}

func columnName(col int) string {
	switch col {
	case ColS0:
		return "s0"
	case ColS1:
		return "s1"
	case ColS2:
		return "s2"
	case ColResult:
		return "result"
	default:
		return "column"
	}
}
