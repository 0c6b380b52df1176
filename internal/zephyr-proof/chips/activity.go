package chips

import (
	"github.com/consensys/gnark-crypto/ecc/bn254/fr"

	"github.com/kunalsinghdadhwal/zephyr-proof/internal/zephyr-proof/constraints"
	"github.com/kunalsinghdadhwal/zephyr-proof/internal/zephyr-proof/evm"
)

// ActivityChip separates real steps from padding and accumulates the
// per-chunk summary: step count, storage writes and opcode histogram.
// Counters hold the totals before their row; the terminal constraints add
// the last row and compare against the public inputs.
type ActivityChip struct{}

func (c *ActivityChip) Name() string { return "activity" }

func (c *ActivityChip) Configure(sys *constraints.System) {
	stop := Indicator(evm.STOP)

	sys.AddConsistencyConstraint("active boolean", 2, func(row []fr.Element) fr.Element {
		return constraints.IsBool(row[ColActive])
	})
	sys.AddConsistencyConstraint("padding is STOP", 2, func(row []fr.Element) fr.Element {
		return constraints.Mul(constraints.Sub(constraints.One, row[ColActive]),
			constraints.Sub(constraints.One, row[stop]))
	})
	sys.AddInitialConstraint("first row active", 1, func(row, public []fr.Element) fr.Element {
		return constraints.Sub(row[ColActive], constraints.One)
	})
	sys.AddTransitionConstraint("padding is a suffix", 2, func(cur, next []fr.Element) fr.Element {
		return constraints.Mul(next[ColActive], constraints.Sub(constraints.One, cur[ColActive]))
	})

	c.counter(sys, "steps", ColStepsSeen, PubRows, func(row []fr.Element) fr.Element {
		return row[ColActive]
	})
	c.counter(sys, "storage writes", ColWritesSeen, PubStorageWrites, func(row []fr.Element) fr.Element {
		return constraints.Mul(row[ColActive], row[ColStWrite])
	})
	for i, op := range Opcodes {
		col := Indicator(op)
		c.counter(sys, op.String()+" count", Counter(op), PubHistogramBase+i, func(row []fr.Element) fr.Element {
			return constraints.Mul(row[ColActive], row[col])
		})
	}
}

// counter registers a running sum over increment starting at zero and
// ending at public[pub]
func (c *ActivityChip) counter(sys *constraints.System, name string, col, pub int,
	increment func(row []fr.Element) fr.Element,
) {
	sys.AddInitialConstraint(name+" start", 1, func(row, public []fr.Element) fr.Element {
		return row[col]
	})
	sys.AddTransitionConstraint(name+" accumulate", 2, func(cur, next []fr.Element) fr.Element {
		return constraints.Sub(next[col], constraints.Add(cur[col], increment(cur)))
	})
	sys.AddTerminalConstraint(name+" total", 2, func(row, public []fr.Element) fr.Element {
		return constraints.Sub(public[pub], constraints.Add(row[col], increment(row)))
	})
}

func (c *ActivityChip) Assign(row []fr.Element, step *Step) {
	row[ColActive] = constraints.Bool(step.Active)
}

// FillCounters writes the running counter columns of a fully assigned table
func FillCounters(rows [][]fr.Element) {
	var steps, writes uint64
	counts := make([]uint64, NumOpcodes)
	for _, row := range rows {
		row[ColStepsSeen] = constraints.Const(steps)
		row[ColWritesSeen] = constraints.Const(writes)
		for i := range Opcodes {
			row[ColCounterBase+i] = constraints.Const(counts[i])
		}
		if row[ColActive].IsZero() {
			continue
		}
		steps++
		if !row[ColStWrite].IsZero() {
			writes++
		}
		for i := range Opcodes {
			if !row[ColIndicatorBase+i].IsZero() {
				counts[i]++
			}
		}
	}
}
