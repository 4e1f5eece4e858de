package service

import (
	"context"
	"fmt"

	"github.com/okian/juryline/internal/domain/assignment"
	"github.com/okian/juryline/internal/domain/model"
	"github.com/okian/juryline/pkg/logger"
	"github.com/okian/juryline/pkg/metrics"
)

// PlanAssignments tops every submission up to target judges (the event's
// judges_per_submission when target is not positive), stores the new
// assignments and announces them. Runs for the same event are serialized.
func (s *Service) PlanAssignments(ctx context.Context, eventID string, target int) (assignment.Result, error) {
	ctx, span := s.startSpan(ctx, "service.PlanAssignments", eventID)

	var res assignment.Result
	err := s.store.WithEventLock(ctx, eventID, func(ctx context.Context) error {
		snap, err := s.store.Snapshot(ctx, eventID)
		if err != nil {
			return err
		}
		if snap.Event.Status == model.StatusClosed {
			return ErrEventClosed
		}
		if target <= 0 {
			target = snap.Event.JudgesPerSubmission
		}

		res = assignment.Plan(snap.Submissions, snap.Judges, target, snap.Assignments,
			assignment.WithIDGenerator(s.newID),
			assignment.WithClock(s.now),
		)
		if len(res.Assignments) == 0 {
			return nil
		}
		return s.store.AddAssignments(ctx, eventID, res.Assignments)
	})
	endSpan(span, err)
	if err != nil {
		return assignment.Result{}, fmt.Errorf("plan assignments for %s: %w", eventID, err)
	}

	metrics.RecordPlannerRun(len(res.Assignments), len(res.UnderAssigned))
	s.log().Info(ctx, "assignments planned",
		logger.String("event_id", eventID),
		logger.Int("target", target),
		logger.Int("created", len(res.Assignments)),
		logger.Int("under_assigned", len(res.UnderAssigned)),
	)
	for _, w := range res.Warnings {
		s.log().Warn(ctx, "assignment warning", logger.String("event_id", eventID), logger.String("warning", w))
	}

	if len(res.Assignments) > 0 {
		if err := s.notifier.Notify(ctx, res.Assignments); err != nil {
			s.log().Error(ctx, "assignment notification failed",
				logger.String("event_id", eventID),
				logger.Error(err),
			)
		}
	}
	return res, nil
}
