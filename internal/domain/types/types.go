// Package types contains the report shapes shared between the domain
// packages and the adapters.
package types

import "time"

// CriterionAggregate is the per-criterion summary of one submission's
// reviews, in raw scale units. Average, Min and Max are nil when no review
// scored the criterion.
type CriterionAggregate struct {
	CriterionID string   `json:"criterion_id"`
	Name        string   `json:"name"`
	Average     *float64 `json:"average"`
	Min         *float64 `json:"min"`
	Max         *float64 `json:"max"`
	Weight      float64  `json:"weight"`
	Count       int      `json:"count"`
}

// LeaderboardEntry is one ranked submission. Unscored entries carry rank 0
// and a nil WeightedScore.
type LeaderboardEntry struct {
	Rank          int                  `json:"rank"`
	SubmissionID  string               `json:"submission_id"`
	ParticipantID string               `json:"participant_id,omitempty"`
	WeightedScore *float64             `json:"weighted_score"`
	DisplayScore  *float64             `json:"display_score"`
	ReviewCount   int                  `json:"review_count"`
	Scored        bool                 `json:"scored"`
	CreatedAt     time.Time            `json:"created_at"`
	Criteria      []CriterionAggregate `json:"criteria"`
}

// ProgressStatus classifies a judge's review progress.
type ProgressStatus string

// Progress states.
const (
	ProgressNotStarted ProgressStatus = "not_started"
	ProgressInProgress ProgressStatus = "in_progress"
	ProgressCompleted  ProgressStatus = "completed"
)

// JudgeProgress is assigned vs completed reviews for one judge.
type JudgeProgress struct {
	JudgeID   string         `json:"judge_id"`
	Assigned  int            `json:"assigned"`
	Completed int            `json:"completed"`
	Percent   int            `json:"percent"`
	Status    ProgressStatus `json:"status"`
}

// JudgeBias compares one judge's average given score with the event mean.
type JudgeBias struct {
	JudgeID     string  `json:"judge_id"`
	ReviewCount int     `json:"review_count"`
	Average     float64 `json:"average"`
	Deviation   float64 `json:"deviation"`
	IsOutlier   bool    `json:"is_outlier"`
}

// EventStats summarizes an event's judging activity.
type EventStats struct {
	EventID           string   `json:"event_id"`
	TotalSubmissions  int      `json:"total_submissions"`
	TotalJudges       int      `json:"total_judges"`
	AcceptedJudges    int      `json:"accepted_judges"`
	TotalAssignments  int      `json:"total_assignments"`
	TotalReviews      int      `json:"total_reviews"`
	CompletedReviews  int      `json:"completed_reviews"`
	PendingReviews    int      `json:"pending_reviews"`
	CompletionPercent float64  `json:"completion_percent"`
	AverageScore      *float64 `json:"average_score"`
}

// PendingSubmission lists the reviews a submission is still waiting for.
type PendingSubmission struct {
	SubmissionID  string   `json:"submission_id"`
	Assigned      int      `json:"assigned"`
	Reviewed      int      `json:"reviewed"`
	Remaining     int      `json:"remaining"`
	PendingJudges []string `json:"pending_judges"`
}
