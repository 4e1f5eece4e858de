package leaderboard

import "errors"

// ErrInvalidInput is returned for structurally invalid input, such as a nil
// event or a nil criteria list.
var ErrInvalidInput = errors.New("invalid leaderboard input")
