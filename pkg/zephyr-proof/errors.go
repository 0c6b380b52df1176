package zephyrproof

import (
	"github.com/kunalsinghdadhwal/zephyr-proof/internal/zephyr-proof/core"
)

// Error is the typed error returned by every operation
type Error = core.Error

// ErrorCode identifies a failure
type ErrorCode = core.ErrorCode

// Kind groups error codes
type Kind = core.Kind

const (
	ErrUnknown              = core.ErrUnknown
	ErrInvalidConfig        = core.ErrInvalidConfig
	ErrMalformedInput       = core.ErrMalformedInput
	ErrLengthMismatch       = core.ErrLengthMismatch
	ErrUnsupportedOpcode    = core.ErrUnsupportedOpcode
	ErrEmptyTrace           = core.ErrEmptyTrace
	ErrWidthOverflow        = core.ErrWidthOverflow
	ErrRowOverflow          = core.ErrRowOverflow
	ErrStackUnderflow       = core.ErrStackUnderflow
	ErrStackOverflow        = core.ErrStackOverflow
	ErrStackMismatch        = core.ErrStackMismatch
	ErrGasMismatch          = core.ErrGasMismatch
	ErrPcMismatch           = core.ErrPcMismatch
	ErrStorageMismatch      = core.ErrStorageMismatch
	ErrConstraintViolation  = core.ErrConstraintViolation
	ErrProofGeneration      = core.ErrProofGeneration
	ErrKeyMismatch          = core.ErrKeyMismatch
	ErrInvalidProof         = core.ErrInvalidProof
	ErrInconsistentMetadata = core.ErrInconsistentMetadata
	ErrBackend              = core.ErrBackend
	ErrFetch                = core.ErrFetch
)

const (
	KindStructural      = core.KindStructural
	KindSemantic        = core.KindSemantic
	KindConstraint      = core.KindConstraint
	KindProofGeneration = core.KindProofGeneration
	KindVerification    = core.KindVerification
	KindBackend         = core.KindBackend
	KindFetch           = core.KindFetch
)

// HasCode reports whether any error in err's chain carries code
func HasCode(err error, code ErrorCode) bool {
	return core.HasCode(err, code)
}

// CodeOf returns the code of the outermost typed error in err's chain
func CodeOf(err error) ErrorCode {
	return core.CodeOf(err)
}

// KindOf returns the taxonomy group of err
func KindOf(err error) Kind {
	return core.KindOf(err)
}
