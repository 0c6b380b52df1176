package chips

import (
	"github.com/consensys/gnark-crypto/ecc/bn254/fr"

	"github.com/kunalsinghdadhwal/zephyr-proof/internal/zephyr-proof/constraints"
	"github.com/kunalsinghdadhwal/zephyr-proof/internal/zephyr-proof/evm"
)

// GasChip enforces gas continuity: every row pays its fixed cost and the
// remaining gas never goes negative.
type GasChip struct{}

func (c *GasChip) Name() string { return "gas" }

func (c *GasChip) Configure(sys *constraints.System) {
	sys.AddInitialConstraint("gas entry", 1, func(row, public []fr.Element) fr.Element {
		return constraints.Sub(row[ColGas], public[PubGasIn])
	})
	sys.AddTransitionConstraint("gas continuity", 1, func(cur, next []fr.Element) fr.Element {
		return constraints.Sub(next[ColGas], gasAfter(cur))
	})
	sys.AddTerminalConstraint("gas exit", 1, func(row, public []fr.Element) fr.Element {
		return constraints.Sub(public[PubGasOut], gasAfter(row))
	})
	sys.AddLookup("gas word", constraints.NewRangeTable(64), func(row []fr.Element) []fr.Element {
		return []fr.Element{row[ColGas]}
	})
	sys.AddLookup("gas covers cost", constraints.NewRangeTable(64), func(row []fr.Element) []fr.Element {
		return []fr.Element{gasAfter(row)}
	})
}

func (c *GasChip) Assign(row []fr.Element, step *Step) {
	row[ColGas] = constraints.Const(step.Gas)
}

func gasAfter(row []fr.Element) fr.Element {
	return constraints.Sub(row[ColGas], row[ColCost])
}

// StackChip tracks the stack depth and the result of the pure stack
// opcodes. Depth stays within [0, 1024] before and after every row and no
// row pops more words than the stack holds.
type StackChip struct{}

func (c *StackChip) Name() string { return "stack" }

func (c *StackChip) Configure(sys *constraints.System) {
	sys.AddInitialConstraint("depth entry", 1, func(row, public []fr.Element) fr.Element {
		return constraints.Sub(row[ColDepth], public[PubDepthIn])
	})
	sys.AddTransitionConstraint("depth continuity", 1, func(cur, next []fr.Element) fr.Element {
		return constraints.Sub(next[ColDepth], depthAfter(cur))
	})
	sys.AddTerminalConstraint("depth exit", 1, func(row, public []fr.Element) fr.Element {
		return constraints.Sub(public[PubDepthOut], depthAfter(row))
	})

	bound := constraints.NewBoundedTable(evm.MaxStackDepth)
	sys.AddLookup("depth bound", bound, func(row []fr.Element) []fr.Element {
		return []fr.Element{row[ColDepth]}
	})
	sys.AddLookup("no underflow", bound, func(row []fr.Element) []fr.Element {
		return []fr.Element{constraints.Sub(row[ColDepth], row[ColPops])}
	})
	sys.AddLookup("no overflow", bound, func(row []fr.Element) []fr.Element {
		return []fr.Element{depthAfter(row)}
	})

	copies := map[evm.OpCode]int{
		evm.DUP1:  ColS0,
		evm.DUP2:  ColS1,
		evm.SWAP1: ColS1,
		evm.SWAP2: ColS2,
	}
	for _, op := range []evm.OpCode{evm.DUP1, evm.DUP2, evm.SWAP1, evm.SWAP2} {
		src := copies[op]
		col := Indicator(op)
		sys.AddConsistencyConstraint(op.String()+" top", 2, func(row []fr.Element) fr.Element {
			return constraints.Mul(row[col], constraints.Sub(row[ColResult], row[src]))
		})
	}
}

func (c *StackChip) Assign(row []fr.Element, step *Step) {
	row[ColDepth] = constraints.Const(uint64(step.Depth))
}

func depthAfter(row []fr.Element) fr.Element {
	return constraints.Add(row[ColDepth], row[ColDelta])
}

// StorageChip binds SLOAD/SSTORE to their storage access. The access is
// packed into a single diff cell (key + 2^64·value + 2^128·write).
type StorageChip struct{}

func (c *StorageChip) Name() string { return "storage" }

func (c *StorageChip) Configure(sys *constraints.System) {
	sload := Indicator(evm.SLOAD)
	sstore := Indicator(evm.SSTORE)

	sys.AddConsistencyConstraint("SLOAD key", 2, func(row []fr.Element) fr.Element {
		return constraints.Mul(row[sload], constraints.Sub(row[ColStKey], row[ColS0]))
	})
	sys.AddConsistencyConstraint("SLOAD value", 2, func(row []fr.Element) fr.Element {
		return constraints.Mul(row[sload], constraints.Sub(row[ColResult], row[ColStValue]))
	})
	sys.AddConsistencyConstraint("SLOAD read", 2, func(row []fr.Element) fr.Element {
		return constraints.Mul(row[sload], row[ColStWrite])
	})
	sys.AddConsistencyConstraint("SSTORE key", 2, func(row []fr.Element) fr.Element {
		return constraints.Mul(row[sstore], constraints.Sub(row[ColStKey], row[ColS0]))
	})
	sys.AddConsistencyConstraint("SSTORE value", 2, func(row []fr.Element) fr.Element {
		return constraints.Mul(row[sstore], constraints.Sub(row[ColStValue], row[ColS1]))
	})
	sys.AddConsistencyConstraint("SSTORE write", 2, func(row []fr.Element) fr.Element {
		return constraints.Mul(row[sstore], constraints.Sub(row[ColStWrite], constraints.One))
	})

	idle := func(col int) func(row []fr.Element) fr.Element {
		return func(row []fr.Element) fr.Element {
			return constraints.Mul(constraints.Sub(constraints.One, row[ColSelStorage]), row[col])
		}
	}
	sys.AddConsistencyConstraint("idle key", 2, idle(ColStKey))
	sys.AddConsistencyConstraint("idle value", 2, idle(ColStValue))
	sys.AddConsistencyConstraint("idle write", 2, idle(ColStWrite))

	sys.AddConsistencyConstraint("access packing", 1, func(row []fr.Element) fr.Element {
		packed := constraints.Add(row[ColStKey],
			constraints.Mul(row[ColStValue], constraints.Two64),
			constraints.Mul(row[ColStWrite], constraints.Two128))
		return constraints.Sub(row[ColStDiff], packed)
	})

	sys.AddLookup("storage key word", constraints.NewRangeTable(64), func(row []fr.Element) []fr.Element {
		return []fr.Element{row[ColStKey]}
	})
	sys.AddLookup("storage value word", constraints.NewRangeTable(64), func(row []fr.Element) []fr.Element {
		return []fr.Element{row[ColStValue]}
	})
}

func (c *StorageChip) Assign(row []fr.Element, step *Step) {
	if !step.HasStorage {
		return
	}
	row[ColStKey] = constraints.Const(step.StKey)
	row[ColStValue] = constraints.Const(step.StValue)
	row[ColStWrite] = constraints.Bool(step.StWrite)
	row[ColStDiff] = constraints.Add(row[ColStKey],
		constraints.Mul(row[ColStValue], constraints.Two64),
		constraints.Mul(row[ColStWrite], constraints.Two128))
}

// MemoryChip covers MLOAD and MSTORE. Memory contents are not modelled:
// MLOAD yields a free 64-bit word and MSTORE leaves no result.
type MemoryChip struct{}

func (c *MemoryChip) Name() string { return "memory" }

func (c *MemoryChip) Configure(sys *constraints.System) {
	mload := Indicator(evm.MLOAD)
	sys.AddLookup("MLOAD word", constraints.NewRangeTable(64), func(row []fr.Element) []fr.Element {
		var v fr.Element
		v.Mul(&row[mload], &row[ColResult])
		return []fr.Element{v}
	})
	sys.AddLookup("memory offset word", constraints.NewRangeTable(64), func(row []fr.Element) []fr.Element {
		var v fr.Element
		v.Mul(&row[ColSelMemory], &row[ColS0])
		return []fr.Element{v}
	})
}

func (c *MemoryChip) Assign(row []fr.Element, step *Step) {}

// ControlChip computes the next program counter of every row and chains
// it into the following row.
type ControlChip struct{}

func (c *ControlChip) Name() string { return "control" }

func (c *ControlChip) Configure(sys *constraints.System) {
	jumpi := Indicator(evm.JUMPI)

	sys.AddConsistencyConstraint("JUMPI zero test", 3, func(row []fr.Element) fr.Element {
		expected := constraints.Sub(constraints.One, constraints.Mul(row[ColS1], row[ColInv]))
		return constraints.Mul(row[jumpi], constraints.Sub(row[ColFlag], expected))
	})
	sys.AddConsistencyConstraint("JUMPI zero flag", 3, func(row []fr.Element) fr.Element {
		return constraints.Mul(row[jumpi], row[ColS1], row[ColFlag])
	})
	sys.AddConsistencyConstraint("next pc", 3, func(row []fr.Element) fr.Element {
		return constraints.Sub(row[ColNextPC], expectedNextPC(row))
	})

	sys.AddInitialConstraint("pc entry", 1, func(row, public []fr.Element) fr.Element {
		return constraints.Sub(row[ColPC], public[PubPCIn])
	})
	sys.AddTransitionConstraint("pc continuity", 1, func(cur, next []fr.Element) fr.Element {
		return constraints.Sub(next[ColPC], cur[ColNextPC])
	})
	sys.AddTerminalConstraint("pc exit", 1, func(row, public []fr.Element) fr.Element {
		return constraints.Sub(public[PubPCOut], row[ColNextPC])
	})

	sys.AddLookup("pc word", constraints.NewRangeTable(64), func(row []fr.Element) []fr.Element {
		return []fr.Element{row[ColPC]}
	})
	sys.AddLookup("next pc word", constraints.NewRangeTable(64), func(row []fr.Element) []fr.Element {
		return []fr.Element{row[ColNextPC]}
	})
}

// expectedNextPC is Σ indicator·target over all opcodes: STOP stays, JUMP
// goes to s0, JUMPI goes to s0 unless s1 is zero, the rest advance past
// their immediate.
func expectedNextPC(row []fr.Element) fr.Element {
	var sum, term fr.Element
	pc := row[ColPC]
	for _, op := range Opcodes {
		var target fr.Element
		switch op {
		case evm.STOP:
			target = pc
		case evm.JUMP:
			target = row[ColS0]
		case evm.JUMPI:
			fallthroughPC := constraints.Add(pc, constraints.One)
			taken := constraints.Sub(constraints.One, row[ColFlag])
			target = constraints.Add(constraints.Mul(row[ColFlag], fallthroughPC),
				constraints.Mul(taken, row[ColS0]))
		default:
			target = constraints.Add(pc, constraints.Const(1+uint64(evm.MustLookup(op).Immediate)))
		}
		term.Mul(&row[Indicator(op)], &target)
		sum.Add(&sum, &term)
	}
	return sum
}

func (c *ControlChip) Assign(row []fr.Element, step *Step) {
	row[ColPC] = constraints.Const(step.PC)
	row[ColNextPC] = constraints.Const(evm.NextPC(step.Opcode, step.PC, step.S0, step.S1))
	if step.Opcode == evm.JUMPI {
		row[ColInv] = constraints.Inverse(constraints.Const(step.S1))
		row[ColFlag] = constraints.Bool(step.S1 == 0)
	}
}
