package queue

import "errors"

// ErrFull is returned by callers that translate a refused Enqueue into an
// error.
var ErrFull = errors.New("review queue full")
