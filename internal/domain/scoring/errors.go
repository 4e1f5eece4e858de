package scoring

import (
	"errors"
	"fmt"
)

// ErrDataIntegrity marks a review data point that contradicts the criteria
// it is scored against.
var ErrDataIntegrity = errors.New("review data integrity")

// IssueKind names the class of an integrity problem.
type IssueKind string

// Integrity issue kinds.
const (
	IssueUnknownCriterion  IssueKind = "unknown_criterion"
	IssueOutOfRange        IssueKind = "out_of_range"
	IssueUnknownSubmission IssueKind = "unknown_submission"
)

// IntegrityIssue describes one skipped data point. It satisfies error and
// unwraps to ErrDataIntegrity.
type IntegrityIssue struct {
	Kind         IssueKind `json:"kind"`
	ReviewID     string    `json:"review_id"`
	SubmissionID string    `json:"submission_id,omitempty"`
	JudgeID      string    `json:"judge_id,omitempty"`
	CriterionID  string    `json:"criterion_id,omitempty"`
	Value        float64   `json:"value,omitempty"`
}

func (i IntegrityIssue) Error() string {
	switch i.Kind {
	case IssueOutOfRange:
		return fmt.Sprintf("%s: review %s: %s=%g out of range", ErrDataIntegrity, i.ReviewID, i.CriterionID, i.Value)
	case IssueUnknownCriterion:
		return fmt.Sprintf("%s: review %s: unknown criterion %q", ErrDataIntegrity, i.ReviewID, i.CriterionID)
	default:
		return fmt.Sprintf("%s: review %s: %s", ErrDataIntegrity, i.ReviewID, i.Kind)
	}
}

func (i IntegrityIssue) Unwrap() error { return ErrDataIntegrity }

// CountByKind tallies issues per kind.
func CountByKind(issues []IntegrityIssue) map[IssueKind]int {
	out := make(map[IssueKind]int)
	for _, is := range issues {
		out[is.Kind]++
	}
	return out
}
