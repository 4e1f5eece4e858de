package simulate

import (
	"context"
	"math"
	"net/http"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/okian/juryline/internal/domain/model"
	"github.com/okian/juryline/pkg/logger"
)

type submitOutcome int

const (
	outcomeAccepted submitOutcome = iota
	outcomeDuplicate
	outcomeFailed
)

type reviewJob struct {
	body map[string]any
}

type ackResponse struct {
	Status    string `json:"status"`
	Duplicate bool   `json:"duplicate"`
}

// submitReviews posts one review per planned assignment with a worker pool,
// then re-sends a share of them with the same idempotency key.
func (r *runner) submitReviews(ctx context.Context) error {
	jobs := make([]reviewJob, 0, len(r.planned))
	for _, a := range r.planned {
		scores := r.sc.scores(r.criteria, r.owner[a.SubmissionID], a.JudgeID)
		r.reviews = append(r.reviews, model.Review{
			EventID:      r.event.ID,
			SubmissionID: a.SubmissionID,
			JudgeID:      a.JudgeID,
			Scores:       scores,
		})
		jobs = append(jobs, reviewJob{body: map[string]any{
			"submission_id":   a.SubmissionID,
			"judge_id":        a.JudgeID,
			"scores":          scores,
			"idempotency_key": uuid.NewString(),
		}})
	}

	r.log.Info(ctx, "submitting reviews", logger.Int("reviews", len(jobs)), logger.Int("workers", r.cfg.Workers))
	accepted, duplicate, failed := r.runPool(ctx, jobs)
	r.stats.ReviewsAccepted += accepted
	r.stats.ReviewsDuplicate += duplicate
	r.stats.ReviewsFailed += failed

	if dups := int(math.Ceil(float64(len(jobs)) * r.cfg.DuplicateRatio)); dups > 0 {
		accepted, duplicate, failed := r.runPool(ctx, jobs[:dups])
		r.stats.ReviewsAccepted += accepted
		r.stats.ReviewsDuplicate += duplicate
		r.stats.ReviewsFailed += failed
		if duplicate != dups {
			return errorf("%d of %d re-sent reviews were not reported as duplicates", dups-duplicate, dups)
		}
	}

	if r.stats.ReviewsFailed > 0 {
		return errorf("%d reviews failed", r.stats.ReviewsFailed)
	}
	return nil
}

func (r *runner) runPool(ctx context.Context, jobs []reviewJob) (accepted, duplicate, failed int) {
	var acc, dup, fail, submitted, throttled int64

	ch := make(chan reviewJob, r.cfg.Workers*2)
	var wg sync.WaitGroup
	for range r.cfg.Workers {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for job := range ch {
				outcome, retries := r.submitOne(ctx, job)
				atomic.AddInt64(&submitted, 1)
				atomic.AddInt64(&throttled, int64(retries))
				switch outcome {
				case outcomeAccepted:
					atomic.AddInt64(&acc, 1)
				case outcomeDuplicate:
					atomic.AddInt64(&dup, 1)
				default:
					atomic.AddInt64(&fail, 1)
				}
			}
		}()
	}

	go func() {
		defer close(ch)
		for _, job := range jobs {
			select {
			case <-ctx.Done():
				return
			case ch <- job:
			}
		}
	}()
	wg.Wait()

	r.stats.ReviewsSubmitted += int(submitted)
	r.stats.Backpressured += int(throttled)
	// Jobs never handed to a worker count as failed.
	unsent := int64(len(jobs)) - submitted
	return int(acc), int(dup), int(fail + unsent)
}

// submitOne posts a review, retrying while the service answers 429.
func (r *runner) submitOne(ctx context.Context, job reviewJob) (submitOutcome, int) {
	path := "/events/" + r.event.ID + "/reviews"
	backoff := r.cfg.PollInterval / 4

	for attempt := 0; attempt <= DefaultMaxRetries; attempt++ {
		var ack ackResponse
		code, err := r.client.do(ctx, http.MethodPost, path, job.body, &ack, http.StatusAccepted, http.StatusOK)
		switch {
		case err == nil && (code == http.StatusOK || ack.Duplicate):
			return outcomeDuplicate, attempt
		case err == nil:
			return outcomeAccepted, attempt
		case code == http.StatusTooManyRequests:
			select {
			case <-ctx.Done():
				return outcomeFailed, attempt
			case <-time.After(backoff):
			}
		default:
			r.log.Debug(ctx, "review rejected", logger.Error(err))
			return outcomeFailed, attempt
		}
	}
	return outcomeFailed, DefaultMaxRetries
}
