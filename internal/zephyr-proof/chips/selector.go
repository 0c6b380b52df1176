package chips

import (
	"github.com/consensys/gnark-crypto/ecc/bn254/fr"

	"github.com/kunalsinghdadhwal/zephyr-proof/internal/zephyr-proof/constraints"
	"github.com/kunalsinghdadhwal/zephyr-proof/internal/zephyr-proof/evm"
)

// SelectorChip dispatches each row to exactly one opcode and one family.
// The indicator of the row's opcode fixes the opcode byte, gas cost, stack
// effect and pop count columns that the other chips read.
type SelectorChip struct{}

func (c *SelectorChip) Name() string { return "selector" }

func (c *SelectorChip) Configure(sys *constraints.System) {
	for _, op := range Opcodes {
		col := Indicator(op)
		sys.AddConsistencyConstraint("indicator "+op.String()+" boolean", 2, func(row []fr.Element) fr.Element {
			return constraints.IsBool(row[col])
		})
	}

	sys.AddConsistencyConstraint("one opcode per row", 1, func(row []fr.Element) fr.Element {
		return constraints.Sub(sumIndicators(row, Opcodes), constraints.One)
	})

	for f := evm.Family(0); f < evm.NumFamilies; f++ {
		members := familyMembers(f)
		col := SelectorColumn(f)
		sys.AddConsistencyConstraint("selector "+f.String(), 1, func(row []fr.Element) fr.Element {
			return constraints.Sub(row[col], sumIndicators(row, members))
		})
	}
	sys.AddConsistencyConstraint("one family per row", 1, func(row []fr.Element) fr.Element {
		var sum fr.Element
		for f := evm.Family(0); f < evm.NumFamilies; f++ {
			sum.Add(&sum, &row[SelectorColumn(f)])
		}
		return constraints.Sub(sum, constraints.One)
	})

	sys.AddConsistencyConstraint("opcode byte", 1, func(row []fr.Element) fr.Element {
		return constraints.Sub(row[ColOpcode], weighted(row, func(info evm.OpInfo) fr.Element {
			return constraints.Const(uint64(info.Code))
		}))
	})
	sys.AddConsistencyConstraint("gas cost", 1, func(row []fr.Element) fr.Element {
		return constraints.Sub(row[ColCost], weighted(row, func(info evm.OpInfo) fr.Element {
			return constraints.Const(info.Cost)
		}))
	})
	sys.AddConsistencyConstraint("stack delta", 1, func(row []fr.Element) fr.Element {
		return constraints.Sub(row[ColDelta], weighted(row, func(info evm.OpInfo) fr.Element {
			return signed(info.Delta())
		}))
	})
	sys.AddConsistencyConstraint("stack pops", 1, func(row []fr.Element) fr.Element {
		return constraints.Sub(row[ColPops], weighted(row, func(info evm.OpInfo) fr.Element {
			return constraints.Const(uint64(info.Pops))
		}))
	})

	var silent []evm.OpCode
	for _, op := range Opcodes {
		if !evm.MustLookup(op).HasResult() {
			silent = append(silent, op)
		}
	}
	sys.AddConsistencyConstraint("no result without push", 2, func(row []fr.Element) fr.Element {
		return constraints.Mul(sumIndicators(row, silent), row[ColResult])
	})
}

func (c *SelectorChip) Assign(row []fr.Element, step *Step) {
	info := evm.MustLookup(step.Opcode)
	row[Indicator(step.Opcode)] = constraints.One
	row[SelectorColumn(info.Family)] = constraints.One
	row[ColOpcode] = constraints.Const(uint64(info.Code))
	row[ColCost] = constraints.Const(info.Cost)
	row[ColDelta] = signed(info.Delta())
	row[ColPops] = constraints.Const(uint64(info.Pops))
	row[ColResult] = constraints.Const(step.Result)
}

func familyMembers(f evm.Family) []evm.OpCode {
	var out []evm.OpCode
	for _, op := range Opcodes {
		if evm.MustLookup(op).Family == f {
			out = append(out, op)
		}
	}
	return out
}

func sumIndicators(row []fr.Element, ops []evm.OpCode) fr.Element {
	var sum fr.Element
	for _, op := range ops {
		sum.Add(&sum, &row[Indicator(op)])
	}
	return sum
}

// weighted returns Σ indicator(op)·value(op) over all supported opcodes
func weighted(row []fr.Element, value func(evm.OpInfo) fr.Element) fr.Element {
	var sum, term fr.Element
	for _, op := range Opcodes {
		v := value(evm.MustLookup(op))
		term.Mul(&row[Indicator(op)], &v)
		sum.Add(&sum, &term)
	}
	return sum
}
