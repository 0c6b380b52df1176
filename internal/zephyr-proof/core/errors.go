package core

import (
	"errors"
	"fmt"
)

// ErrorCode identifies a zephyr-proof failure
type ErrorCode int

const (
	// ErrUnknown represents an unknown error
	ErrUnknown ErrorCode = iota

	// ErrInvalidConfig represents an invalid configuration error
	ErrInvalidConfig

	// ErrMalformedInput represents trace input that cannot be decoded
	ErrMalformedInput

	// ErrLengthMismatch represents per-step arrays of different lengths
	ErrLengthMismatch

	// ErrUnsupportedOpcode represents an opcode outside the supported set
	ErrUnsupportedOpcode

	// ErrEmptyTrace represents a trace with zero steps
	ErrEmptyTrace

	// ErrWidthOverflow represents a trace longer than the configured circuit size can hold
	ErrWidthOverflow

	// ErrRowOverflow represents a chunk window larger than the circuit table
	ErrRowOverflow

	// ErrStackUnderflow represents a step consuming more words than the stack holds
	ErrStackUnderflow

	// ErrStackOverflow represents a step pushing the stack past 1024 words
	ErrStackOverflow

	// ErrStackMismatch represents a stack snapshot inconsistent with the tracked depth
	ErrStackMismatch

	// ErrGasMismatch represents a gas deduction that differs from the opcode cost
	ErrGasMismatch

	// ErrPcMismatch represents a program counter that does not follow the opcode stream
	ErrPcMismatch

	// ErrStorageMismatch represents a storage operation inconsistent with its step
	ErrStorageMismatch

	// ErrConstraintViolation represents an assembled circuit that fails a constraint.
	// Validated traces always satisfy the constraints, so this is an internal bug.
	ErrConstraintViolation

	// ErrProofGeneration represents a failure while proving a chunk
	ErrProofGeneration

	// ErrKeyMismatch represents a verifying-key fingerprint that does not match the artifact
	ErrKeyMismatch

	// ErrInvalidProof represents a proof rejected by the backend or undecodable proof bytes
	ErrInvalidProof

	// ErrInconsistentMetadata represents artifact totals that disagree with the chunk public inputs
	ErrInconsistentMetadata

	// ErrBackend represents an opaque failure inside the proof backend
	ErrBackend

	// ErrFetch represents a trace source failure
	ErrFetch
)

// Kind groups error codes into the failure taxonomy
type Kind int

const (
	KindUnknown Kind = iota
	KindStructural
	KindSemantic
	KindConstraint
	KindProofGeneration
	KindVerification
	KindBackend
	KindFetch
)

func (k Kind) String() string {
	switch k {
	case KindStructural:
		return "structural"
	case KindSemantic:
		return "semantic"
	case KindConstraint:
		return "constraint"
	case KindProofGeneration:
		return "proof generation"
	case KindVerification:
		return "verification"
	case KindBackend:
		return "backend"
	case KindFetch:
		return "fetch"
	default:
		return "unknown"
	}
}

var codeNames = map[ErrorCode]string{
	ErrUnknown:              "Unknown",
	ErrInvalidConfig:        "InvalidConfig",
	ErrMalformedInput:       "MalformedInput",
	ErrLengthMismatch:       "LengthMismatch",
	ErrUnsupportedOpcode:    "UnsupportedOpcode",
	ErrEmptyTrace:           "EmptyTrace",
	ErrWidthOverflow:        "WidthOverflow",
	ErrRowOverflow:          "RowOverflow",
	ErrStackUnderflow:       "StackUnderflow",
	ErrStackOverflow:        "StackOverflow",
	ErrStackMismatch:        "StackMismatch",
	ErrGasMismatch:          "GasMismatch",
	ErrPcMismatch:           "PcMismatch",
	ErrStorageMismatch:      "StorageMismatch",
	ErrConstraintViolation:  "ConstraintViolation",
	ErrProofGeneration:      "ProofGeneration",
	ErrKeyMismatch:          "KeyMismatch",
	ErrInvalidProof:         "InvalidProof",
	ErrInconsistentMetadata: "InconsistentMetadata",
	ErrBackend:              "Backend",
	ErrFetch:                "Fetch",
}

func (c ErrorCode) String() string {
	if name, ok := codeNames[c]; ok {
		return name
	}
	return fmt.Sprintf("ErrorCode(%d)", int(c))
}

// Kind returns the taxonomy group of the code
func (c ErrorCode) Kind() Kind {
	switch c {
	case ErrInvalidConfig, ErrMalformedInput, ErrLengthMismatch, ErrUnsupportedOpcode,
		ErrEmptyTrace, ErrWidthOverflow, ErrRowOverflow:
		return KindStructural
	case ErrStackUnderflow, ErrStackOverflow, ErrStackMismatch, ErrGasMismatch,
		ErrPcMismatch, ErrStorageMismatch:
		return KindSemantic
	case ErrConstraintViolation:
		return KindConstraint
	case ErrProofGeneration:
		return KindProofGeneration
	case ErrKeyMismatch, ErrInvalidProof, ErrInconsistentMetadata:
		return KindVerification
	case ErrBackend:
		return KindBackend
	case ErrFetch:
		return KindFetch
	default:
		return KindUnknown
	}
}

// Error is the typed error returned by every zephyr-proof package.
// Step and Chunk are -1 when the failure is not tied to a step or chunk.
type Error struct {
	Code    ErrorCode
	Step    int
	Chunk   int
	Message string
	Cause   error
}

// NewError creates an error that is not tied to a step or chunk
func NewError(code ErrorCode, format string, args ...any) *Error {
	return &Error{Code: code, Step: -1, Chunk: -1, Message: fmt.Sprintf(format, args...)}
}

// StepError creates an error located at a trace step
func StepError(code ErrorCode, step int, format string, args ...any) *Error {
	return &Error{Code: code, Step: step, Chunk: -1, Message: fmt.Sprintf(format, args...)}
}

// ChunkError creates an error located at a chunk, wrapping cause
func ChunkError(code ErrorCode, chunk int, cause error, format string, args ...any) *Error {
	return &Error{Code: code, Step: -1, Chunk: chunk, Message: fmt.Sprintf(format, args...), Cause: cause}
}

// Wrap creates an error with a cause
func Wrap(code ErrorCode, cause error, format string, args ...any) *Error {
	return &Error{Code: code, Step: -1, Chunk: -1, Message: fmt.Sprintf(format, args...), Cause: cause}
}

// Error returns the error message
func (e *Error) Error() string {
	msg := fmt.Sprintf("%s error [%s]", e.Code.Kind(), e.Code)
	if e.Chunk >= 0 {
		msg += fmt.Sprintf(" chunk %d", e.Chunk)
	}
	if e.Step >= 0 {
		msg += fmt.Sprintf(" step %d", e.Step)
	}
	msg += ": " + e.Message
	if e.Cause != nil {
		msg += fmt.Sprintf(" (caused by: %v)", e.Cause)
	}
	return msg
}

// Unwrap returns the cause of the error
func (e *Error) Unwrap() error {
	return e.Cause
}

// Is checks if the error matches the target error
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	return e.Code == t.Code
}

// CodeOf returns the code of the outermost *Error in err's chain
func CodeOf(err error) ErrorCode {
	var e *Error
	if errors.As(err, &e) {
		return e.Code
	}
	return ErrUnknown
}

// HasCode reports whether any *Error in err's chain carries code
func HasCode(err error, code ErrorCode) bool {
	return errors.Is(err, &Error{Code: code})
}

// KindOf returns the taxonomy group of err
func KindOf(err error) Kind {
	return CodeOf(err).Kind()
}
