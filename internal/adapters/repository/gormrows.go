package repository

import (
	"time"

	"github.com/okian/juryline/internal/domain/model"
)

// SQL rows. Scores and form data are stored as JSON columns.

type eventRow struct {
	ID                  string `gorm:"primaryKey;size:64"`
	Name                string `gorm:"size:255"`
	OrganizerID         string `gorm:"size:64;index"`
	Status              string `gorm:"size:16;not null"`
	JudgesPerSubmission int
	CreatedAt           time.Time
}

func (eventRow) TableName() string { return "events" }

type criterionRow struct {
	ID        string `gorm:"primaryKey;size:64"`
	EventID   string `gorm:"size:64;index;not null"`
	Name      string `gorm:"size:255"`
	ScaleMin  float64
	ScaleMax  float64
	Weight    float64
	SortOrder int
}

func (criterionRow) TableName() string { return "criteria" }

type submissionRow struct {
	ID            string         `gorm:"primaryKey;size:64"`
	EventID       string         `gorm:"size:64;not null;uniqueIndex:idx_submission_participant"`
	ParticipantID string         `gorm:"size:64;not null;uniqueIndex:idx_submission_participant"`
	FormData      map[string]any `gorm:"serializer:json;type:json"`
	CreatedAt     time.Time
	UpdatedAt     time.Time
}

func (submissionRow) TableName() string { return "submissions" }

type judgeRow struct {
	EventID      string `gorm:"primaryKey;size:64"`
	JudgeID      string `gorm:"primaryKey;size:64"`
	InviteStatus string `gorm:"size:16;not null"`
	InvitedAt    time.Time
}

func (judgeRow) TableName() string { return "event_judges" }

type assignmentRow struct {
	ID           string `gorm:"primaryKey;size:64"`
	EventID      string `gorm:"size:64;index;not null"`
	SubmissionID string `gorm:"size:64;not null;uniqueIndex:idx_assignment_pair"`
	JudgeID      string `gorm:"size:64;not null;uniqueIndex:idx_assignment_pair"`
	CreatedAt    time.Time
}

func (assignmentRow) TableName() string { return "judge_assignments" }

type reviewRow struct {
	ID           string             `gorm:"primaryKey;size:64"`
	EventID      string             `gorm:"size:64;index;not null"`
	SubmissionID string             `gorm:"size:64;not null;uniqueIndex:idx_review_pair"`
	JudgeID      string             `gorm:"size:64;not null;uniqueIndex:idx_review_pair"`
	Scores       map[string]float64 `gorm:"serializer:json;type:json"`
	Notes        string             `gorm:"type:text"`
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

func (reviewRow) TableName() string { return "reviews" }

func allRows() []any {
	return []any{&eventRow{}, &criterionRow{}, &submissionRow{}, &judgeRow{}, &assignmentRow{}, &reviewRow{}}
}

func toEventRow(e model.Event) eventRow {
	return eventRow{ID: e.ID, Name: e.Name, OrganizerID: e.OrganizerID, Status: string(e.Status), JudgesPerSubmission: e.JudgesPerSubmission, CreatedAt: e.CreatedAt}
}

func (r eventRow) model() model.Event {
	return model.Event{ID: r.ID, Name: r.Name, OrganizerID: r.OrganizerID, Status: model.EventStatus(r.Status), JudgesPerSubmission: r.JudgesPerSubmission, CreatedAt: r.CreatedAt}
}

func toCriterionRow(c model.Criterion) criterionRow {
	return criterionRow{ID: c.ID, EventID: c.EventID, Name: c.Name, ScaleMin: c.ScaleMin, ScaleMax: c.ScaleMax, Weight: c.Weight, SortOrder: c.SortOrder}
}

func (r criterionRow) model() model.Criterion {
	return model.Criterion{ID: r.ID, EventID: r.EventID, Name: r.Name, ScaleMin: r.ScaleMin, ScaleMax: r.ScaleMax, Weight: r.Weight, SortOrder: r.SortOrder}
}

func toSubmissionRow(s model.Submission) submissionRow {
	return submissionRow{ID: s.ID, EventID: s.EventID, ParticipantID: s.ParticipantID, FormData: s.FormData, CreatedAt: s.CreatedAt, UpdatedAt: s.UpdatedAt}
}

func (r submissionRow) model() model.Submission {
	return model.Submission{ID: r.ID, EventID: r.EventID, ParticipantID: r.ParticipantID, FormData: r.FormData, CreatedAt: r.CreatedAt, UpdatedAt: r.UpdatedAt}
}

func toJudgeRow(j model.EventJudge) judgeRow {
	return judgeRow{EventID: j.EventID, JudgeID: j.JudgeID, InviteStatus: string(j.InviteStatus), InvitedAt: j.InvitedAt}
}

func (r judgeRow) model() model.EventJudge {
	return model.EventJudge{EventID: r.EventID, JudgeID: r.JudgeID, InviteStatus: model.InviteStatus(r.InviteStatus), InvitedAt: r.InvitedAt}
}

func toAssignmentRow(a model.Assignment) assignmentRow {
	return assignmentRow{ID: a.ID, EventID: a.EventID, SubmissionID: a.SubmissionID, JudgeID: a.JudgeID, CreatedAt: a.CreatedAt}
}

func (r assignmentRow) model() model.Assignment {
	return model.Assignment{ID: r.ID, EventID: r.EventID, SubmissionID: r.SubmissionID, JudgeID: r.JudgeID, CreatedAt: r.CreatedAt}
}

func toReviewRow(r model.Review) reviewRow {
	return reviewRow{ID: r.ID, EventID: r.EventID, SubmissionID: r.SubmissionID, JudgeID: r.JudgeID, Scores: copyScores(r.Scores), Notes: r.Notes, CreatedAt: r.CreatedAt, UpdatedAt: r.UpdatedAt}
}

func (r reviewRow) model() model.Review {
	return model.Review{ID: r.ID, EventID: r.EventID, SubmissionID: r.SubmissionID, JudgeID: r.JudgeID, Scores: copyScores(r.Scores), Notes: r.Notes, CreatedAt: r.CreatedAt, UpdatedAt: r.UpdatedAt}
}
