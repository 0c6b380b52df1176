// Package constraints defines the row constraint system enforced over a
// circuit table of BN254 scalar field cells.
//
// Constraints are divided into four kinds:
// 1. Initial: constraints on the first row, bound to the public inputs
// 2. Consistency: constraints within a single row
// 3. Transition: constraints between consecutive rows
// 4. Terminal: constraints on the last row, bound to the public inputs
//
// Lookups complete the system: a tuple computed from a row must belong to a
// fixed table (range checks, depth bound, bitwise operations).
package constraints

import (
	"encoding/binary"
	"fmt"

	"github.com/consensys/gnark-crypto/ecc/bn254/fr"
)

// Kind is the row scope a constraint applies to
type Kind int

const (
	KindInitial Kind = iota
	KindConsistency
	KindTransition
	KindTerminal
	KindLookup
)

func (k Kind) String() string {
	switch k {
	case KindInitial:
		return "initial"
	case KindConsistency:
		return "consistency"
	case KindTransition:
		return "transition"
	case KindTerminal:
		return "terminal"
	case KindLookup:
		return "lookup"
	default:
		return fmt.Sprintf("kind(%d)", int(k))
	}
}

// ConstraintPolynomial represents a constraint over a single row
type ConstraintPolynomial struct {
	// Name for debugging
	Name string

	// Degree of this constraint polynomial
	Degree int

	// Evaluator takes a row and returns the constraint value.
	// The constraint is satisfied if this evaluates to zero.
	Evaluator func(row []fr.Element) fr.Element
}

// BoundaryConstraint represents a constraint tying the first or last row to the public inputs
type BoundaryConstraint struct {
	Name   string
	Degree int

	Evaluator func(row []fr.Element, public []fr.Element) fr.Element
}

// TransitionConstraintPolynomial represents a constraint over two consecutive rows
type TransitionConstraintPolynomial struct {
	Name   string
	Degree int

	Evaluator func(currentRow, nextRow []fr.Element) fr.Element
}

// LookupArgument requires Inputs(row) to be a member of Table on every row
type LookupArgument struct {
	Name   string
	Table  Table
	Inputs func(row []fr.Element) []fr.Element
}

// System is a complete constraint system over a fixed number of columns
type System struct {
	numColumns int

	initialConstraints     []*BoundaryConstraint
	consistencyConstraints []*ConstraintPolynomial
	transitionConstraints  []*TransitionConstraintPolynomial
	terminalConstraints    []*BoundaryConstraint
	lookups                []*LookupArgument
}

// NewSystem creates an empty constraint system over numColumns columns
func NewSystem(numColumns int) *System {
	return &System{numColumns: numColumns}
}

// NumColumns returns the row width
func (s *System) NumColumns() int {
	return s.numColumns
}

// AddInitialConstraint adds a first-row constraint
func (s *System) AddInitialConstraint(name string, degree int,
	eval func(row []fr.Element, public []fr.Element) fr.Element,
) {
	s.initialConstraints = append(s.initialConstraints, &BoundaryConstraint{
		Name:      name,
		Degree:    degree,
		Evaluator: eval,
	})
}

// AddConsistencyConstraint adds a single-row constraint
func (s *System) AddConsistencyConstraint(name string, degree int,
	eval func(row []fr.Element) fr.Element,
) {
	s.consistencyConstraints = append(s.consistencyConstraints, &ConstraintPolynomial{
		Name:      name,
		Degree:    degree,
		Evaluator: eval,
	})
}

// AddTransitionConstraint adds a constraint between consecutive rows
func (s *System) AddTransitionConstraint(name string, degree int,
	eval func(currentRow, nextRow []fr.Element) fr.Element,
) {
	s.transitionConstraints = append(s.transitionConstraints, &TransitionConstraintPolynomial{
		Name:      name,
		Degree:    degree,
		Evaluator: eval,
	})
}

// AddTerminalConstraint adds a last-row constraint
func (s *System) AddTerminalConstraint(name string, degree int,
	eval func(row []fr.Element, public []fr.Element) fr.Element,
) {
	s.terminalConstraints = append(s.terminalConstraints, &BoundaryConstraint{
		Name:      name,
		Degree:    degree,
		Evaluator: eval,
	})
}

// AddLookup adds a lookup argument
func (s *System) AddLookup(name string, table Table, inputs func(row []fr.Element) []fr.Element) {
	s.lookups = append(s.lookups, &LookupArgument{Name: name, Table: table, Inputs: inputs})
}

// Violation describes the first unsatisfied constraint found
type Violation struct {
	Kind Kind
	Name string
	Row  int
}

func (v *Violation) Error() string {
	return fmt.Sprintf("%s constraint %q violated at row %d", v.Kind, v.Name, v.Row)
}

// CheckInitial checks the initial constraints on the first row
func (s *System) CheckInitial(row, public []fr.Element) *Violation {
	for _, c := range s.initialConstraints {
		if v := c.Evaluator(row, public); !v.IsZero() {
			return &Violation{Kind: KindInitial, Name: c.Name, Row: 0}
		}
	}
	return nil
}

// CheckRow checks the consistency constraints and lookups on one row
func (s *System) CheckRow(rowIdx int, row []fr.Element) *Violation {
	for _, c := range s.consistencyConstraints {
		if v := c.Evaluator(row); !v.IsZero() {
			return &Violation{Kind: KindConsistency, Name: c.Name, Row: rowIdx}
		}
	}
	for _, l := range s.lookups {
		if !l.Table.Contains(l.Inputs(row)) {
			return &Violation{Kind: KindLookup, Name: l.Name, Row: rowIdx}
		}
	}
	return nil
}

// CheckTransition checks the transition constraints between rowIdx and rowIdx+1
func (s *System) CheckTransition(rowIdx int, current, next []fr.Element) *Violation {
	for _, c := range s.transitionConstraints {
		if v := c.Evaluator(current, next); !v.IsZero() {
			return &Violation{Kind: KindTransition, Name: c.Name, Row: rowIdx}
		}
	}
	return nil
}

// CheckTerminal checks the terminal constraints on the last row
func (s *System) CheckTerminal(rowIdx int, row, public []fr.Element) *Violation {
	for _, c := range s.terminalConstraints {
		if v := c.Evaluator(row, public); !v.IsZero() {
			return &Violation{Kind: KindTerminal, Name: c.Name, Row: rowIdx}
		}
	}
	return nil
}

// Check evaluates every constraint over a row-major table
func (s *System) Check(rows [][]fr.Element, public []fr.Element) *Violation {
	if len(rows) == 0 {
		return &Violation{Kind: KindInitial, Name: "non-empty table", Row: 0}
	}
	if v := s.CheckInitial(rows[0], public); v != nil {
		return v
	}
	for i, row := range rows {
		if v := s.CheckRow(i, row); v != nil {
			return v
		}
		if i+1 < len(rows) {
			if v := s.CheckTransition(i, row, rows[i+1]); v != nil {
				return v
			}
		}
	}
	last := len(rows) - 1
	return s.CheckTerminal(last, rows[last], public)
}

// MaxDegree returns the maximum degree of all constraints
func (s *System) MaxDegree() int {
	maxDeg := 0
	for _, c := range s.initialConstraints {
		maxDeg = max(maxDeg, c.Degree)
	}
	for _, c := range s.consistencyConstraints {
		maxDeg = max(maxDeg, c.Degree)
	}
	for _, c := range s.transitionConstraints {
		maxDeg = max(maxDeg, c.Degree)
	}
	for _, c := range s.terminalConstraints {
		maxDeg = max(maxDeg, c.Degree)
	}
	return maxDeg
}

// NumConstraints returns the total number of constraints and lookups
func (s *System) NumConstraints() int {
	return len(s.initialConstraints) + len(s.consistencyConstraints) +
		len(s.transitionConstraints) + len(s.terminalConstraints) + len(s.lookups)
}

// Descriptor returns a deterministic encoding of the system's structure:
// column count and, per constraint, its kind, degree and name.
// It feeds the verifying-key fingerprint.
func (s *System) Descriptor() []byte {
	var buf []byte
	buf = binary.BigEndian.AppendUint32(buf, uint32(s.numColumns))
	appendEntry := func(kind Kind, degree int, name string) {
		buf = append(buf, byte(kind))
		buf = binary.BigEndian.AppendUint32(buf, uint32(degree))
		buf = binary.BigEndian.AppendUint32(buf, uint32(len(name)))
		buf = append(buf, name...)
	}
	for _, c := range s.initialConstraints {
		appendEntry(KindInitial, c.Degree, c.Name)
	}
	for _, c := range s.consistencyConstraints {
		appendEntry(KindConsistency, c.Degree, c.Name)
	}
	for _, c := range s.transitionConstraints {
		appendEntry(KindTransition, c.Degree, c.Name)
	}
	for _, c := range s.terminalConstraints {
		appendEntry(KindTerminal, c.Degree, c.Name)
	}
	for _, l := range s.lookups {
		appendEntry(KindLookup, 1, l.Name+"/"+l.Table.Name())
	}
	return buf
}
