package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"sync"
	"time"

	"gorm.io/driver/mysql"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"

	"github.com/okian/juryline/internal/domain/model"
	"github.com/okian/juryline/pkg/metrics"
)

// advisoryLockTimeoutSeconds bounds how long GET_LOCK waits.
const advisoryLockTimeoutSeconds = 10

// GormStore is a Store backed by a SQL database through gorm. Event locks
// combine a process-local mutex with a MySQL advisory lock so planner runs
// serialize across instances.
type GormStore struct {
	db    *gorm.DB
	locks *eventLocks
	opts  storeOptions

	wg       sync.WaitGroup
	stopChan chan struct{}
	stopOnce sync.Once
}

var _ Store = (*GormStore)(nil)

// OpenMySQL connects to MySQL with dsn and returns a ready store.
func OpenMySQL(ctx context.Context, dsn string, opts ...Option) (*GormStore, error) {
	db, err := gorm.Open(mysql.Open(dsn), &gorm.Config{
		TranslateError: true,
		Logger:         gormlogger.Default.LogMode(gormlogger.Silent),
	})
	if err != nil {
		return nil, fmt.Errorf("open mysql: %w", err)
	}
	return NewGormStore(ctx, db, opts...)
}

// NewGormStore wraps an open gorm handle, migrating the schema unless
// disabled with WithAutoMigrate(false).
func NewGormStore(ctx context.Context, db *gorm.DB, opts ...Option) (*GormStore, error) {
	o := defaultOptions()
	for _, opt := range opts {
		opt(&o)
	}

	if o.autoMigrate {
		if err := db.WithContext(ctx).AutoMigrate(allRows()...); err != nil {
			return nil, fmt.Errorf("migrate schema: %w", err)
		}
	}

	s := &GormStore{
		db:       db,
		locks:    newEventLocks(),
		opts:     o,
		stopChan: make(chan struct{}),
	}
	s.startMetricsUpdater(ctx)
	return s, nil
}

func translate(err error, what string) error {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, gorm.ErrRecordNotFound):
		return fmt.Errorf("%s: %w", what, ErrNotFound)
	case errors.Is(err, gorm.ErrDuplicatedKey):
		return fmt.Errorf("%s: %w", what, ErrConflict)
	default:
		return fmt.Errorf("%s: %w", what, err)
	}
}

func (s *GormStore) requireEvent(tx *gorm.DB, eventID string) error {
	var n int64
	if err := tx.Model(&eventRow{}).Where("id = ?", eventID).Count(&n).Error; err != nil {
		return translate(err, "event "+eventID)
	}
	if n == 0 {
		return fmt.Errorf("event %s: %w", eventID, ErrNotFound)
	}
	return nil
}

func (s *GormStore) CreateEvent(ctx context.Context, ev model.Event) (model.Event, error) {
	row := toEventRow(ev)
	if err := s.db.WithContext(ctx).Create(&row).Error; err != nil {
		return model.Event{}, translate(err, "event "+ev.ID)
	}
	return row.model(), nil
}

func (s *GormStore) GetEvent(ctx context.Context, eventID string) (model.Event, error) {
	var row eventRow
	if err := s.db.WithContext(ctx).First(&row, "id = ?", eventID).Error; err != nil {
		return model.Event{}, translate(err, "event "+eventID)
	}
	return row.model(), nil
}

func (s *GormStore) ListEvents(ctx context.Context) ([]model.Event, error) {
	var rows []eventRow
	if err := s.db.WithContext(ctx).Order("created_at, id").Find(&rows).Error; err != nil {
		return nil, translate(err, "list events")
	}
	out := make([]model.Event, 0, len(rows))
	for _, r := range rows {
		out = append(out, r.model())
	}
	return out, nil
}

func (s *GormStore) UpdateEvent(ctx context.Context, ev model.Event) error {
	row := toEventRow(ev)
	res := s.db.WithContext(ctx).Model(&eventRow{}).Where("id = ?", ev.ID).Updates(map[string]any{
		"name":                  row.Name,
		"status":                row.Status,
		"judges_per_submission": row.JudgesPerSubmission,
	})
	if res.Error != nil {
		return translate(res.Error, "event "+ev.ID)
	}
	if res.RowsAffected == 0 {
		return s.requireEvent(s.db.WithContext(ctx), ev.ID)
	}
	return nil
}

func (s *GormStore) AddCriterion(ctx context.Context, c model.Criterion) (model.Criterion, error) {
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := s.requireEvent(tx, c.EventID); err != nil {
			return err
		}
		row := toCriterionRow(c)
		return translate(tx.Create(&row).Error, "criterion "+c.ID)
	})
	if err != nil {
		return model.Criterion{}, err
	}
	return c, nil
}

func (s *GormStore) AddSubmission(ctx context.Context, sub model.Submission) (model.Submission, error) {
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := s.requireEvent(tx, sub.EventID); err != nil {
			return err
		}
		row := toSubmissionRow(sub)
		return translate(tx.Create(&row).Error, "submission "+sub.ID)
	})
	if err != nil {
		return model.Submission{}, err
	}
	return sub, nil
}

func (s *GormStore) PutJudge(ctx context.Context, j model.EventJudge) (model.EventJudge, error) {
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := s.requireEvent(tx, j.EventID); err != nil {
			return err
		}
		row := toJudgeRow(j)
		return translate(tx.Save(&row).Error, "judge "+j.JudgeID)
	})
	if err != nil {
		return model.EventJudge{}, err
	}
	return j, nil
}

func (s *GormStore) GetJudge(ctx context.Context, eventID, judgeID string) (model.EventJudge, error) {
	var row judgeRow
	err := s.db.WithContext(ctx).First(&row, "event_id = ? AND judge_id = ?", eventID, judgeID).Error
	if err != nil {
		return model.EventJudge{}, translate(err, fmt.Sprintf("judge %s in event %s", judgeID, eventID))
	}
	return row.model(), nil
}

func (s *GormStore) AddAssignments(ctx context.Context, eventID string, as []model.Assignment) error {
	if len(as) == 0 {
		return nil
	}
	rows := make([]assignmentRow, 0, len(as))
	for _, a := range as {
		rows = append(rows, toAssignmentRow(a))
	}
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := s.requireEvent(tx, eventID); err != nil {
			return err
		}
		return translate(tx.Create(&rows).Error, "assignments for "+eventID)
	})
}

func (s *GormStore) UpsertReview(ctx context.Context, r model.Review) (model.Review, bool, error) {
	var (
		stored  model.Review
		created bool
	)
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := s.requireEvent(tx, r.EventID); err != nil {
			return err
		}

		var prev reviewRow
		err := tx.Where("submission_id = ? AND judge_id = ?", r.SubmissionID, r.JudgeID).First(&prev).Error
		switch {
		case errors.Is(err, gorm.ErrRecordNotFound):
			row := toReviewRow(r)
			if err := tx.Create(&row).Error; err != nil {
				return translate(err, "review "+r.ID)
			}
			stored, created = row.model(), true
			return nil
		case err != nil:
			return translate(err, "review lookup")
		}

		prev.Scores = copyScores(r.Scores)
		prev.Notes = r.Notes
		prev.UpdatedAt = r.UpdatedAt
		if prev.UpdatedAt.IsZero() {
			prev.UpdatedAt = time.Now()
		}
		if err := tx.Save(&prev).Error; err != nil {
			return translate(err, "review "+prev.ID)
		}
		stored = prev.model()
		return nil
	})
	if err != nil {
		return model.Review{}, false, err
	}
	return stored, created, nil
}

func (s *GormStore) Snapshot(ctx context.Context, eventID string) (model.Snapshot, error) {
	start := time.Now()
	defer func() {
		metrics.RecordStoreQueryLatency(float64(time.Since(start).Microseconds()) / 1000)
	}()

	var (
		ev    eventRow
		crits []criterionRow
		subs  []submissionRow
		js    []judgeRow
		as    []assignmentRow
		rs    []reviewRow
	)
	db := s.db.WithContext(ctx)
	if err := db.First(&ev, "id = ?", eventID).Error; err != nil {
		return model.Snapshot{}, translate(err, "event "+eventID)
	}
	queries := []struct {
		dest  any
		order string
	}{
		{&crits, "sort_order, id"},
		{&subs, "created_at, id"},
		{&js, "judge_id"},
		{&as, "created_at, id"},
		{&rs, "id"},
	}
	for _, q := range queries {
		if err := db.Where("event_id = ?", eventID).Order(q.order).Find(q.dest).Error; err != nil {
			return model.Snapshot{}, translate(err, "snapshot "+eventID)
		}
	}

	snap := model.Snapshot{
		Event:       ev.model(),
		Criteria:    make([]model.Criterion, 0, len(crits)),
		Submissions: make([]model.Submission, 0, len(subs)),
		Judges:      make([]model.EventJudge, 0, len(js)),
		Assignments: make([]model.Assignment, 0, len(as)),
		Reviews:     make([]model.Review, 0, len(rs)),
	}
	for _, r := range crits {
		snap.Criteria = append(snap.Criteria, r.model())
	}
	for _, r := range subs {
		snap.Submissions = append(snap.Submissions, r.model())
	}
	for _, r := range js {
		snap.Judges = append(snap.Judges, r.model())
	}
	for _, r := range as {
		snap.Assignments = append(snap.Assignments, r.model())
	}
	for _, r := range rs {
		snap.Reviews = append(snap.Reviews, r.model())
	}
	return snap, nil
}

// WithEventLock serializes fn per event inside this process and, through
// GET_LOCK, across processes sharing the database.
func (s *GormStore) WithEventLock(ctx context.Context, eventID string, fn func(ctx context.Context) error) error {
	return s.locks.with(ctx, eventID, func(ctx context.Context) error {
		sqlDB, err := s.db.DB()
		if err != nil {
			return fmt.Errorf("event lock %s: %w", eventID, err)
		}
		conn, err := sqlDB.Conn(ctx)
		if err != nil {
			return fmt.Errorf("event lock %s: %w", eventID, err)
		}
		defer conn.Close()

		name := advisoryLockName(eventID)
		var got sql.NullInt64
		if err := conn.QueryRowContext(ctx, "SELECT GET_LOCK(?, ?)", name, advisoryLockTimeoutSeconds).Scan(&got); err != nil {
			return fmt.Errorf("event lock %s: %w", eventID, err)
		}
		if !got.Valid || got.Int64 != 1 {
			return fmt.Errorf("event lock %s: %w", eventID, ErrConflict)
		}
		defer func() {
			_, _ = conn.ExecContext(context.WithoutCancel(ctx), "SELECT RELEASE_LOCK(?)", name)
		}()

		return fn(ctx)
	})
}

// advisoryLockName keeps the name within MySQL's 64 character limit.
func advisoryLockName(eventID string) string {
	name := "juryline:event:" + eventID
	if len(name) > 64 {
		name = name[:64]
	}
	return name
}

func (s *GormStore) Counts(ctx context.Context) Counts {
	var c Counts
	db := s.db.WithContext(ctx)
	counts := []struct {
		row any
		dst *int
	}{
		{&eventRow{}, &c.Events},
		{&criterionRow{}, &c.Criteria},
		{&submissionRow{}, &c.Submissions},
		{&judgeRow{}, &c.Judges},
		{&assignmentRow{}, &c.Assignments},
		{&reviewRow{}, &c.Reviews},
	}
	for _, q := range counts {
		var n int64
		if err := db.Model(q.row).Count(&n).Error; err != nil {
			metrics.RecordErrorByComponent("repository", "count")
			continue
		}
		*q.dst = int(n)
	}
	return c
}

// Close stops the metrics updater and closes the database handle.
func (s *GormStore) Close() error {
	s.stopOnce.Do(func() { close(s.stopChan) })
	s.wg.Wait()

	sqlDB, err := s.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}

func (s *GormStore) startMetricsUpdater(ctx context.Context) {
	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		ticker := time.NewTicker(s.opts.metricsUpdateInterval)
		defer ticker.Stop()

		for {
			select {
			case <-ctx.Done():
				return
			case <-s.stopChan:
				return
			case <-ticker.C:
				publishCounts(s.Counts(ctx))
			}
		}
	}()
}
