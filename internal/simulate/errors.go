package simulate

import "errors"

// Sentinel errors reported by Run.
var (
	ErrInvalidConfig    = errors.New("invalid simulation config")
	ErrUnexpectedStatus = errors.New("unexpected status")
	ErrVerification     = errors.New("verification failed")
)
