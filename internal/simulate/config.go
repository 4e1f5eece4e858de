package simulate

import (
	"fmt"
	"runtime"
	"time"
)

// Default configuration values.
const (
	DefaultSubmissions  = 40
	DefaultJudges       = 8
	DefaultTarget       = 3
	DefaultTimeout      = 10 * time.Second
	DefaultWait         = 2 * time.Minute
	DefaultPollInterval = 250 * time.Millisecond
	DefaultMaxRetries   = 20
)

// Config holds configuration for a simulation run.
type Config struct {
	BaseURL        string        // Base URL of the service
	Submissions    int           // Number of submissions to create
	Judges         int           // Number of judges to invite and accept
	Target         int           // Reviews per submission
	Workers        int           // Concurrent review submitters
	Timeout        time.Duration // HTTP request timeout
	Wait           time.Duration // How long to wait for reviews to be ingested
	PollInterval   time.Duration // Progress polling interval
	DuplicateRatio float64       // Fraction of reviews re-sent to exercise deduplication
	Seed           uint64        // Seed for score generation; zero picks one
	Close          bool          // Close the event when done
}

// withDefaults fills zero fields and validates the rest.
func (c Config) withDefaults() (Config, error) {
	if c.BaseURL == "" {
		return c, fmt.Errorf("%w: base url is required", ErrInvalidConfig)
	}
	if c.Submissions <= 0 {
		c.Submissions = DefaultSubmissions
	}
	if c.Judges <= 0 {
		c.Judges = DefaultJudges
	}
	if c.Target <= 0 {
		c.Target = DefaultTarget
	}
	if c.Workers <= 0 {
		c.Workers = runtime.NumCPU() * 2
	}
	if c.Timeout <= 0 {
		c.Timeout = DefaultTimeout
	}
	if c.Wait <= 0 {
		c.Wait = DefaultWait
	}
	if c.PollInterval <= 0 {
		c.PollInterval = DefaultPollInterval
	}
	if c.DuplicateRatio < 0 || c.DuplicateRatio > 1 {
		return c, fmt.Errorf("%w: duplicate ratio %.2f outside [0, 1]", ErrInvalidConfig, c.DuplicateRatio)
	}
	return c, nil
}

// Stats holds simulation statistics.
type Stats struct {
	EventID           string        `json:"event_id"`
	Submissions       int           `json:"submissions"`
	Judges            int           `json:"judges"`
	Assignments       int           `json:"assignments"`
	ReviewsSubmitted  int           `json:"reviews_submitted"`
	ReviewsAccepted   int           `json:"reviews_accepted"`
	ReviewsDuplicate  int           `json:"reviews_duplicate"`
	ReviewsFailed     int           `json:"reviews_failed"`
	Backpressured     int           `json:"backpressured"`
	LeaderboardRanked int           `json:"leaderboard_ranked"`
	MaxJudgeLoad      int           `json:"max_judge_load"`
	MinJudgeLoad      int           `json:"min_judge_load"`
	Duration          time.Duration `json:"duration"`
}
