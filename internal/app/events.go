package service

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/okian/juryline/internal/adapters/repository"
	"github.com/okian/juryline/internal/domain/model"
	"github.com/okian/juryline/pkg/logger"
)

// CreateEventInput describes a new event.
type CreateEventInput struct {
	Name                string
	OrganizerID         string
	JudgesPerSubmission int
}

// EventSummary is an event with its criteria and record counts.
type EventSummary struct {
	Event       model.Event       `json:"event"`
	Criteria    []model.Criterion `json:"criteria"`
	Submissions int               `json:"submissions"`
	Judges      int               `json:"judges"`
	Accepted    int               `json:"accepted_judges"`
	Assignments int               `json:"assignments"`
	Reviews     int               `json:"reviews"`
}

// CreateEvent stores a new draft event.
func (s *Service) CreateEvent(ctx context.Context, in CreateEventInput) (model.Event, error) {
	name := strings.TrimSpace(in.Name)
	if name == "" {
		return model.Event{}, fmt.Errorf("%w: missing name", ErrInvalidInput)
	}
	if in.JudgesPerSubmission < 1 {
		return model.Event{}, fmt.Errorf("%w: judges_per_submission must be at least 1", ErrInvalidInput)
	}

	ev, err := s.store.CreateEvent(ctx, model.Event{
		ID:                  s.newID(),
		Name:                name,
		OrganizerID:         in.OrganizerID,
		Status:              model.StatusDraft,
		JudgesPerSubmission: in.JudgesPerSubmission,
		CreatedAt:           s.now(),
	})
	if err != nil {
		return model.Event{}, fmt.Errorf("create event: %w", err)
	}
	s.log().Info(ctx, "event created", logger.String("event_id", ev.ID), logger.String("name", ev.Name))
	return ev, nil
}

// GetEvent returns the event with its criteria and record counts.
func (s *Service) GetEvent(ctx context.Context, eventID string) (EventSummary, error) {
	snap, err := s.store.Snapshot(ctx, eventID)
	if err != nil {
		return EventSummary{}, fmt.Errorf("get event %s: %w", eventID, err)
	}
	return EventSummary{
		Event:       snap.Event,
		Criteria:    snap.Criteria,
		Submissions: len(snap.Submissions),
		Judges:      len(snap.Judges),
		Accepted:    len(snap.AcceptedJudges()),
		Assignments: len(snap.Assignments),
		Reviews:     len(snap.Reviews),
	}, nil
}

// ListEvents returns all events ordered by creation time.
func (s *Service) ListEvents(ctx context.Context) ([]model.Event, error) {
	evs, err := s.store.ListEvents(ctx)
	if err != nil {
		return nil, fmt.Errorf("list events: %w", err)
	}
	return evs, nil
}

// TransitionEvent moves the event one step along its lifecycle.
func (s *Service) TransitionEvent(ctx context.Context, eventID string, to model.EventStatus) (model.Event, error) {
	var out model.Event
	err := s.store.WithEventLock(ctx, eventID, func(ctx context.Context) error {
		snap, err := s.store.Snapshot(ctx, eventID)
		if err != nil {
			return err
		}
		ev := snap.Event
		from := ev.Status
		if err := ev.Transition(to, len(snap.Criteria)); err != nil {
			return err
		}
		if err := s.store.UpdateEvent(ctx, ev); err != nil {
			return err
		}
		out = ev
		s.log().Info(ctx, "event status changed",
			logger.String("event_id", eventID),
			logger.String("from", string(from)),
			logger.String("to", string(to)),
		)
		return nil
	})
	if err != nil {
		return model.Event{}, fmt.Errorf("transition event %s: %w", eventID, err)
	}
	s.cache.invalidate(eventID)
	return out, nil
}

// CriterionInput describes a new criterion.
type CriterionInput struct {
	Name      string
	ScaleMin  float64
	ScaleMax  float64
	Weight    float64
	SortOrder int
}

// AddCriterion adds a criterion to a draft event.
func (s *Service) AddCriterion(ctx context.Context, eventID string, in CriterionInput) (model.Criterion, error) {
	c := model.Criterion{
		ID:        s.newID(),
		EventID:   eventID,
		Name:      strings.TrimSpace(in.Name),
		ScaleMin:  in.ScaleMin,
		ScaleMax:  in.ScaleMax,
		Weight:    in.Weight,
		SortOrder: in.SortOrder,
	}
	if c.Name == "" {
		return model.Criterion{}, fmt.Errorf("%w: missing name", model.ErrInvalidCriterion)
	}
	if err := c.Validate(); err != nil {
		return model.Criterion{}, err
	}

	var out model.Criterion
	err := s.store.WithEventLock(ctx, eventID, func(ctx context.Context) error {
		ev, err := s.store.GetEvent(ctx, eventID)
		if err != nil {
			return err
		}
		if ev.Status != model.StatusDraft {
			return model.ErrCriteriaLocked
		}
		out, err = s.store.AddCriterion(ctx, c)
		return err
	})
	if err != nil {
		return model.Criterion{}, fmt.Errorf("add criterion to %s: %w", eventID, err)
	}
	s.cache.invalidate(eventID)
	return out, nil
}

// AddSubmission records a participant's entry while the event is open.
func (s *Service) AddSubmission(ctx context.Context, eventID, participantID string, form map[string]any) (model.Submission, error) {
	if strings.TrimSpace(participantID) == "" {
		return model.Submission{}, fmt.Errorf("%w: missing participant_id", ErrInvalidInput)
	}
	ev, err := s.store.GetEvent(ctx, eventID)
	if err != nil {
		return model.Submission{}, fmt.Errorf("add submission to %s: %w", eventID, err)
	}
	if !ev.Status.AcceptsSubmissions() {
		return model.Submission{}, fmt.Errorf("add submission to %s: %w", eventID, model.ErrEventNotOpen)
	}

	now := s.now()
	sub, err := s.store.AddSubmission(ctx, model.Submission{
		ID:            s.newID(),
		EventID:       eventID,
		ParticipantID: participantID,
		FormData:      form,
		CreatedAt:     now,
		UpdatedAt:     now,
	})
	if err != nil {
		return model.Submission{}, fmt.Errorf("add submission to %s: %w", eventID, err)
	}
	s.cache.invalidate(eventID)
	return sub, nil
}

// InviteJudge adds a pending judge to the event. Re-inviting an accepted
// judge keeps the accepted status.
func (s *Service) InviteJudge(ctx context.Context, eventID, judgeID string) (model.EventJudge, error) {
	if strings.TrimSpace(judgeID) == "" {
		return model.EventJudge{}, fmt.Errorf("%w: missing judge_id", ErrInvalidInput)
	}
	var out model.EventJudge
	err := s.store.WithEventLock(ctx, eventID, func(ctx context.Context) error {
		if _, err := s.store.GetEvent(ctx, eventID); err != nil {
			return err
		}
		j, err := s.store.GetJudge(ctx, eventID, judgeID)
		switch {
		case err == nil:
			out = j
			return nil
		case !errors.Is(err, repository.ErrNotFound):
			return err
		}
		out, err = s.store.PutJudge(ctx, model.EventJudge{
			EventID:      eventID,
			JudgeID:      judgeID,
			InviteStatus: model.InvitePending,
			InvitedAt:    s.now(),
		})
		return err
	})
	if err != nil {
		return model.EventJudge{}, fmt.Errorf("invite judge %s to %s: %w", judgeID, eventID, err)
	}
	return out, nil
}

// AcceptInvite marks the judge's invite as accepted.
func (s *Service) AcceptInvite(ctx context.Context, eventID, judgeID string) (model.EventJudge, error) {
	var out model.EventJudge
	err := s.store.WithEventLock(ctx, eventID, func(ctx context.Context) error {
		j, err := s.store.GetJudge(ctx, eventID, judgeID)
		if err != nil {
			return err
		}
		j.InviteStatus = model.InviteAccepted
		out, err = s.store.PutJudge(ctx, j)
		return err
	})
	if err != nil {
		return model.EventJudge{}, fmt.Errorf("accept invite %s for %s: %w", judgeID, eventID, err)
	}
	s.log().Info(ctx, "judge accepted invite", logger.String("event_id", eventID), logger.String("judge_id", judgeID))
	return out, nil
}
