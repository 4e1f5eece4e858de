package model

import "errors"

// Sentinel errors returned by model validation and lifecycle checks.
var (
	ErrInvalidStatus            = errors.New("invalid event status")
	ErrInvalidTransition        = errors.New("invalid event status transition")
	ErrNoCriteria               = errors.New("event has no criteria")
	ErrCriteriaLocked           = errors.New("criteria are locked once the event leaves draft")
	ErrInvalidCriterion         = errors.New("invalid criterion")
	ErrInvalidScores            = errors.New("invalid review scores")
	ErrEventNotAcceptingReviews = errors.New("event is not accepting reviews")
	ErrEventNotOpen             = errors.New("event is not open for submissions")
	ErrNotAssigned              = errors.New("judge is not assigned to submission")
	ErrJudgeNotAccepted         = errors.New("judge has not accepted the invite")
)
