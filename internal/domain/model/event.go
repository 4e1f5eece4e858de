// Package model contains domain models passed between layers.
package model

import (
	"fmt"
	"time"
)

// EventStatus is the lifecycle state of an event.
type EventStatus string

// Event lifecycle states. Transitions only move forward one step.
const (
	StatusDraft   EventStatus = "draft"
	StatusOpen    EventStatus = "open"
	StatusJudging EventStatus = "judging"
	StatusClosed  EventStatus = "closed"
)

var nextStatus = map[EventStatus]EventStatus{ //nolint:gochecknoglobals // lifecycle table
	StatusDraft:   StatusOpen,
	StatusOpen:    StatusJudging,
	StatusJudging: StatusClosed,
}

// Valid reports whether s is a known status.
func (s EventStatus) Valid() bool {
	switch s {
	case StatusDraft, StatusOpen, StatusJudging, StatusClosed:
		return true
	}
	return false
}

// CanTransition reports whether s may move to the given status.
func (s EventStatus) CanTransition(to EventStatus) bool {
	next, ok := nextStatus[s]
	return ok && next == to
}

// AcceptsReviews reports whether judges may record reviews in this state.
func (s EventStatus) AcceptsReviews() bool {
	return s == StatusOpen || s == StatusJudging
}

// AcceptsSubmissions reports whether participants may submit in this state.
func (s EventStatus) AcceptsSubmissions() bool { return s == StatusOpen }

// Event is a hackathon event: it owns criteria and submissions.
type Event struct {
	ID                  string      `json:"id" yaml:"id"`
	Name                string      `json:"name" yaml:"name"`
	OrganizerID         string      `json:"organizer_id,omitempty" yaml:"organizer_id"`
	Status              EventStatus `json:"status" yaml:"status"`
	JudgesPerSubmission int         `json:"judges_per_submission" yaml:"judges_per_submission"`
	CreatedAt           time.Time   `json:"created_at" yaml:"created_at"`
}

// Transition moves the event to status to. Opening an event requires at
// least one criterion.
func (e *Event) Transition(to EventStatus, criteriaCount int) error {
	if !to.Valid() {
		return fmt.Errorf("%w: %q", ErrInvalidStatus, to)
	}
	if !e.Status.CanTransition(to) {
		return fmt.Errorf("%w: %s -> %s", ErrInvalidTransition, e.Status, to)
	}
	if to == StatusOpen && criteriaCount == 0 {
		return ErrNoCriteria
	}
	e.Status = to
	return nil
}

// Submission is a participant's entry. FormData is opaque to scoring.
type Submission struct {
	ID            string         `json:"id" yaml:"id"`
	EventID       string         `json:"event_id" yaml:"event_id"`
	ParticipantID string         `json:"participant_id" yaml:"participant_id"`
	FormData      map[string]any `json:"form_data,omitempty" yaml:"form_data"`
	CreatedAt     time.Time      `json:"created_at" yaml:"created_at"`
	UpdatedAt     time.Time      `json:"updated_at" yaml:"updated_at"`
}

// InviteStatus tracks a judge's response to an event invitation.
type InviteStatus string

// Invite states.
const (
	InvitePending  InviteStatus = "pending"
	InviteAccepted InviteStatus = "accepted"
)

// EventJudge is the judge membership of an event.
type EventJudge struct {
	EventID      string       `json:"event_id" yaml:"event_id"`
	JudgeID      string       `json:"judge_id" yaml:"judge_id"`
	InviteStatus InviteStatus `json:"invite_status" yaml:"invite_status"`
	InvitedAt    time.Time    `json:"invited_at" yaml:"invited_at"`
}

// Accepted reports whether the judge can receive assignments.
func (j EventJudge) Accepted() bool { return j.InviteStatus == InviteAccepted }

// Assignment pairs a judge with a submission. Its existence means the judge
// is expected to review the submission.
type Assignment struct {
	ID           string    `json:"id" yaml:"id"`
	EventID      string    `json:"event_id" yaml:"event_id"`
	SubmissionID string    `json:"submission_id" yaml:"submission_id"`
	JudgeID      string    `json:"judge_id" yaml:"judge_id"`
	CreatedAt    time.Time `json:"created_at" yaml:"created_at"`
}

// PairKey identifies a (judge, submission) pair.
func PairKey(judgeID, submissionID string) string {
	return judgeID + "|" + submissionID
}

// Key returns the assignment's pair key.
func (a Assignment) Key() string { return PairKey(a.JudgeID, a.SubmissionID) }

// Snapshot is the materialized state of one event that the report
// packages consume.
type Snapshot struct {
	Event       Event        `json:"event" yaml:"event"`
	Criteria    []Criterion  `json:"criteria" yaml:"criteria"`
	Submissions []Submission `json:"submissions" yaml:"submissions"`
	Judges      []EventJudge `json:"judges" yaml:"judges"`
	Assignments []Assignment `json:"assignments" yaml:"assignments"`
	Reviews     []Review     `json:"reviews" yaml:"reviews"`
}

// AcceptedJudges returns the IDs of judges who accepted their invites.
func (s Snapshot) AcceptedJudges() []string {
	out := make([]string, 0, len(s.Judges))
	for _, j := range s.Judges {
		if j.Accepted() {
			out = append(out, j.JudgeID)
		}
	}
	return out
}
