package protocol

import "errors"

// Protocol violations: any of these aborts the current update, is logged to
// the invalid-record sink, and is re-raised to the caller unchanged.
var (
	ErrCodeEntropyTooLow  = errors.New("transaction or session code fails the randomness check")
	ErrTemporalViolation  = errors.New("record violates a timing invariant")
	ErrFieldMismatch      = errors.New("immutable field mismatch between prior and incoming record")
	ErrDuplicateSignature = errors.New("duplicate signature key")
	ErrUnknownSigner      = errors.New("signature key is not a member of its expected role")
	ErrBadSignature       = errors.New("signature does not verify")
	ErrOutOfPhaseCommit   = errors.New("commits present before all participants have promised")
	ErrSignatureMutated   = errors.New("merge saw the same key with a different signature")

	// ErrCapability wraps any error returned by a host-supplied capability
	// (Signer, Storage, Decider). It propagates unchanged; the driver never
	// retries on its own.
	ErrCapability = errors.New("capability error")
)
