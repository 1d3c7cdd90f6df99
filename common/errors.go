package common

import "errors"

// Error taxonomy Each kind is a sentinel so callers can use
// errors.Is; package boundaries wrap these with github.com/pkg/errors to
// attach a stack trace (see layout/hamt/state doc comments).
var (
	// StructuralDecode
	ErrInvalidAccountData = errors.New("invalid account data")
	ErrAccountDataTooSmall = errors.New("account data too small")

	// StateConsistency
	ErrAccountAlreadyInitialized = errors.New("account already initialized")
	ErrUninitializedAccount      = errors.New("uninitialized account")
	ErrNotEnoughAccountKeys      = errors.New("not enough account keys")

	// ResourceBounds
	ErrOutOfStorage    = errors.New("out of storage")
	ErrCallTooDeep     = errors.New("call too deep")
	ErrOutOfFund       = errors.New("out of fund")

	// ExternalInvocation
	ErrInvalidRange = errors.New("invalid range")

	// CREATE-specific
	ErrCreateCollision = errors.New("create collision")
)
