package chips

import (
	"github.com/consensys/gnark-crypto/ecc/bn254/fr"

	"github.com/kunalsinghdadhwal/zephyr-proof/internal/zephyr-proof/constraints"
)

// Chip owns a group of columns: it registers their constraints and fills
// them for one row.
type Chip interface {
	Name() string
	Configure(sys *constraints.System)
	Assign(row []fr.Element, step *Step)
}

// All returns every chip in configuration order. The order is part of the
// constraint system descriptor and therefore of the verifying key.
func All() []Chip {
	return []Chip{
		&SelectorChip{},
		&ArithmeticChip{},
		&GasChip{},
		&StackChip{},
		&StorageChip{},
		&MemoryChip{},
		&ControlChip{},
		&ActivityChip{},
	}
}

// NewSystem builds the constraint system of the opcode circuit
func NewSystem() *constraints.System {
	sys := constraints.NewSystem(NumColumns)
	for _, c := range All() {
		c.Configure(sys)
	}
	return sys
}

// AssignRow fills a fresh row from step using every chip
func AssignRow(step *Step) []fr.Element {
	row := NewRow()
	for _, c := range All() {
		c.Assign(row, step)
	}
	return row
}
