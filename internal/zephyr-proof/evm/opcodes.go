// Package evm describes the EVM opcode subset that zephyr-proof can prove:
// codes, names, fixed gas costs, stack arity and immediate widths.
package evm

import (
	"fmt"
	"sort"
	"strings"

	"github.com/ethereum/go-ethereum/core/vm"
	"github.com/ethereum/go-ethereum/params"
)

// OpCode is a single EVM opcode byte
type OpCode byte

const (
	STOP   OpCode = 0x00
	ADD    OpCode = 0x01
	MUL    OpCode = 0x02
	SUB    OpCode = 0x03
	DIV    OpCode = 0x04
	MOD    OpCode = 0x06
	ADDMOD OpCode = 0x08
	MULMOD OpCode = 0x09
	LT     OpCode = 0x10
	GT     OpCode = 0x11
	EQ     OpCode = 0x14
	AND    OpCode = 0x16
	OR     OpCode = 0x17
	XOR    OpCode = 0x18
	NOT    OpCode = 0x19
	POP    OpCode = 0x50
	MLOAD  OpCode = 0x51
	MSTORE OpCode = 0x52
	SLOAD  OpCode = 0x54
	SSTORE OpCode = 0x55
	JUMP   OpCode = 0x56
	JUMPI  OpCode = 0x57
	PUSH1  OpCode = 0x60
	PUSH2  OpCode = 0x61
	PUSH4  OpCode = 0x63
	PUSH32 OpCode = 0x7f
	DUP1   OpCode = 0x80
	DUP2   OpCode = 0x81
	SWAP1  OpCode = 0x90
	SWAP2  OpCode = 0x91
)

// MaxStackDepth is the EVM stack limit
const MaxStackDepth = 1024

// Family groups opcodes by the chip that constrains them
type Family int

const (
	FamilyArith Family = iota
	FamilyStack
	FamilyStorage
	FamilyMemory
	FamilyControl

	NumFamilies = 5
)

func (f Family) String() string {
	switch f {
	case FamilyArith:
		return "arith"
	case FamilyStack:
		return "stack"
	case FamilyStorage:
		return "storage"
	case FamilyMemory:
		return "memory"
	case FamilyControl:
		return "control"
	default:
		return fmt.Sprintf("family(%d)", int(f))
	}
}

// OpInfo is the static description of a supported opcode
type OpInfo struct {
	Code      OpCode
	Family    Family
	Cost      uint64
	Pops      int
	Pushes    int
	Immediate int
}

// Delta returns the net stack effect
func (i OpInfo) Delta() int {
	return i.Pushes - i.Pops
}

// HasResult reports whether the opcode leaves a new word on top of the stack
func (i OpInfo) HasResult() bool {
	return i.Pushes > 0
}

var opTable = map[OpCode]OpInfo{
	STOP:   {STOP, FamilyControl, 0, 0, 0, 0},
	ADD:    {ADD, FamilyArith, vm.GasFastestStep, 2, 1, 0},
	MUL:    {MUL, FamilyArith, vm.GasFastStep, 2, 1, 0},
	SUB:    {SUB, FamilyArith, vm.GasFastestStep, 2, 1, 0},
	DIV:    {DIV, FamilyArith, vm.GasFastStep, 2, 1, 0},
	MOD:    {MOD, FamilyArith, vm.GasFastStep, 2, 1, 0},
	ADDMOD: {ADDMOD, FamilyArith, vm.GasMidStep, 3, 1, 0},
	MULMOD: {MULMOD, FamilyArith, vm.GasMidStep, 3, 1, 0},
	LT:     {LT, FamilyArith, vm.GasFastestStep, 2, 1, 0},
	GT:     {GT, FamilyArith, vm.GasFastestStep, 2, 1, 0},
	EQ:     {EQ, FamilyArith, vm.GasFastestStep, 2, 1, 0},
	AND:    {AND, FamilyArith, vm.GasFastestStep, 2, 1, 0},
	OR:     {OR, FamilyArith, vm.GasFastestStep, 2, 1, 0},
	XOR:    {XOR, FamilyArith, vm.GasFastestStep, 2, 1, 0},
	NOT:    {NOT, FamilyArith, vm.GasFastestStep, 1, 1, 0},
	POP:    {POP, FamilyStack, vm.GasQuickStep, 1, 0, 0},
	MLOAD:  {MLOAD, FamilyMemory, vm.GasFastestStep, 1, 1, 0},
	MSTORE: {MSTORE, FamilyMemory, vm.GasFastestStep, 2, 0, 0},
	SLOAD:  {SLOAD, FamilyStorage, params.SloadGasEIP150, 1, 1, 0},
	SSTORE: {SSTORE, FamilyStorage, params.SstoreSetGas, 2, 0, 0},
	JUMP:   {JUMP, FamilyControl, vm.GasMidStep, 1, 0, 0},
	JUMPI:  {JUMPI, FamilyControl, vm.GasSlowStep, 2, 0, 0},
	PUSH1:  {PUSH1, FamilyStack, vm.GasFastestStep, 0, 1, 1},
	PUSH2:  {PUSH2, FamilyStack, vm.GasFastestStep, 0, 1, 2},
	PUSH4:  {PUSH4, FamilyStack, vm.GasFastestStep, 0, 1, 4},
	PUSH32: {PUSH32, FamilyStack, vm.GasFastestStep, 0, 1, 32},
	// DUPn reads n words and writes n+1; SWAPn reads and writes n+1.
	DUP1:  {DUP1, FamilyStack, vm.GasFastestStep, 1, 2, 0},
	DUP2:  {DUP2, FamilyStack, vm.GasFastestStep, 2, 3, 0},
	SWAP1: {SWAP1, FamilyStack, vm.GasFastestStep, 2, 2, 0},
	SWAP2: {SWAP2, FamilyStack, vm.GasFastestStep, 3, 3, 0},
}

var supported []OpCode

func init() {
	supported = make([]OpCode, 0, len(opTable))
	for op := range opTable {
		supported = append(supported, op)
	}
	sort.Slice(supported, func(i, j int) bool { return supported[i] < supported[j] })
}

// Lookup returns the description of op
func Lookup(op OpCode) (OpInfo, bool) {
	info, ok := opTable[op]
	return info, ok
}

// MustLookup returns the description of op and panics for unsupported opcodes
func MustLookup(op OpCode) OpInfo {
	info, ok := opTable[op]
	if !ok {
		panic(fmt.Sprintf("unsupported opcode %s", op))
	}
	return info
}

// IsSupported reports whether op belongs to the provable subset
func IsSupported(op OpCode) bool {
	_, ok := opTable[op]
	return ok
}

// Supported returns the supported opcodes in ascending code order.
// The order is part of the circuit shape and the public-input layout.
func Supported() []OpCode {
	out := make([]OpCode, len(supported))
	copy(out, supported)
	return out
}

// Index returns the position of op in Supported(), or -1
func Index(op OpCode) int {
	i := sort.Search(len(supported), func(i int) bool { return supported[i] >= op })
	if i < len(supported) && supported[i] == op {
		return i
	}
	return -1
}

// Cost returns the fixed gas cost of op
func (op OpCode) Cost() uint64 {
	return MustLookup(op).Cost
}

// String returns the mnemonic used by go-ethereum
func (op OpCode) String() string {
	return vm.OpCode(op).String()
}

// ParseOpCode resolves a mnemonic such as "PUSH1" or "add"
func ParseOpCode(name string) (OpCode, error) {
	upper := strings.ToUpper(strings.TrimSpace(name))
	op := OpCode(vm.StringToOp(upper))
	if op.String() != upper {
		return 0, fmt.Errorf("unknown opcode mnemonic %q", name)
	}
	if !IsSupported(op) {
		return 0, fmt.Errorf("opcode %s is not supported", upper)
	}
	return op, nil
}
