package notify

import "errors"

var (
	// ErrClosed is returned when publishing on a closed notifier.
	ErrClosed = errors.New("notifier closed")
	// ErrPublish wraps broker publish failures.
	ErrPublish = errors.New("publish notification")
)
