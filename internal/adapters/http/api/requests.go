package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"

	"github.com/go-playground/validator/v10"
)

const maxBodyBytes = 1 << 20

var validate = validator.New()

type createEventRequest struct {
	Name                string `json:"name" validate:"required,max=200"`
	OrganizerID         string `json:"organizer_id" validate:"max=100"`
	JudgesPerSubmission int    `json:"judges_per_submission" validate:"required,min=1,max=100"`
}

type statusRequest struct {
	Status string `json:"status" validate:"required,oneof=draft open judging closed"`
}

type criterionRequest struct {
	Name      string   `json:"name" validate:"required,max=200"`
	ScaleMin  *float64 `json:"scale_min" validate:"required"`
	ScaleMax  *float64 `json:"scale_max" validate:"required"`
	Weight    *float64 `json:"weight" validate:"required,min=0"`
	SortOrder int      `json:"sort_order"`
}

type submissionRequest struct {
	ParticipantID string         `json:"participant_id" validate:"required,max=100"`
	FormData      map[string]any `json:"form_data"`
}

type inviteRequest struct {
	JudgeID string `json:"judge_id" validate:"required,max=100"`
}

type planRequest struct {
	Target int `json:"target" validate:"min=0,max=100"`
}

type reviewRequest struct {
	SubmissionID   string             `json:"submission_id" validate:"required"`
	JudgeID        string             `json:"judge_id" validate:"required"`
	Scores         map[string]float64 `json:"scores" validate:"required,min=1"`
	Notes          string             `json:"notes" validate:"max=5000"`
	IdempotencyKey string             `json:"idempotency_key" validate:"max=200"`
}

type ackResponse struct {
	Status    string `json:"status"`
	Duplicate bool   `json:"duplicate"`
	Key       string `json:"key,omitempty"`
}

// decode reads a JSON body into v and validates its struct tags. An empty
// body decodes to the zero value when allowEmpty is set.
func decode(r *http.Request, v any, allowEmpty bool) error {
	dec := json.NewDecoder(http.MaxBytesReader(nil, r.Body, maxBodyBytes))
	dec.DisallowUnknownFields()
	if err := dec.Decode(v); err != nil {
		if !allowEmpty || !errors.Is(err, io.EOF) {
			return fmt.Errorf("decode body: %w", err)
		}
	}
	if err := validate.Struct(v); err != nil {
		return fmt.Errorf("validate body: %w", err)
	}
	return nil
}
