package fixture

import "errors"

// Sentinel errors for snapshot loading.
var (
	ErrDecode  = errors.New("decode snapshot")
	ErrInvalid = errors.New("invalid snapshot")
)
