// Package fixture loads event snapshots from YAML or JSON files so reports
// can be computed offline, without a running service or store.
package fixture

import (
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/okian/juryline/internal/domain/model"
	"gopkg.in/yaml.v3"
)

// Load reads the snapshot stored at path.
func Load(path string) (model.Snapshot, error) {
	f, err := os.Open(path)
	if err != nil {
		return model.Snapshot{}, fmt.Errorf("%w: %w", ErrDecode, err)
	}
	defer func() { _ = f.Close() }()

	return Decode(f)
}

// Decode parses a snapshot document. JSON is accepted as a subset of YAML.
// Unknown fields are rejected. Child records without an event_id inherit the
// event's ID, and judges without an invite_status are treated as accepted.
func Decode(r io.Reader) (model.Snapshot, error) {
	var snap model.Snapshot

	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)
	if err := dec.Decode(&snap); err != nil {
		if errors.Is(err, io.EOF) {
			return model.Snapshot{}, fmt.Errorf("%w: empty document", ErrInvalid)
		}
		return model.Snapshot{}, fmt.Errorf("%w: %w", ErrDecode, err)
	}

	normalize(&snap)
	if err := Validate(snap); err != nil {
		return model.Snapshot{}, err
	}
	return snap, nil
}

// Validate checks the structural rules reports rely on.
func Validate(snap model.Snapshot) error {
	if strings.TrimSpace(snap.Event.ID) == "" {
		return fmt.Errorf("%w: event id is required", ErrInvalid)
	}
	if snap.Event.Status != "" && !snap.Event.Status.Valid() {
		return fmt.Errorf("%w: %w: %q", ErrInvalid, model.ErrInvalidStatus, snap.Event.Status)
	}

	seen := make(map[string]struct{}, len(snap.Criteria))
	for _, c := range snap.Criteria {
		if err := c.Validate(); err != nil {
			return fmt.Errorf("%w: %w", ErrInvalid, err)
		}
		if _, dup := seen[c.ID]; dup {
			return fmt.Errorf("%w: duplicate criterion %q", ErrInvalid, c.ID)
		}
		seen[c.ID] = struct{}{}
	}

	subs := make(map[string]struct{}, len(snap.Submissions))
	for _, s := range snap.Submissions {
		if s.ID == "" {
			return fmt.Errorf("%w: submission without id", ErrInvalid)
		}
		if _, dup := subs[s.ID]; dup {
			return fmt.Errorf("%w: duplicate submission %q", ErrInvalid, s.ID)
		}
		subs[s.ID] = struct{}{}
	}

	for _, a := range snap.Assignments {
		if _, ok := subs[a.SubmissionID]; !ok {
			return fmt.Errorf("%w: assignment %s references unknown submission %q", ErrInvalid, a.ID, a.SubmissionID)
		}
	}
	return nil
}

func normalize(snap *model.Snapshot) {
	id := snap.Event.ID
	if snap.Event.Status == "" {
		snap.Event.Status = model.StatusJudging
	}
	for i := range snap.Criteria {
		if snap.Criteria[i].EventID == "" {
			snap.Criteria[i].EventID = id
		}
	}
	model.SortCriteria(snap.Criteria)

	for i := range snap.Submissions {
		if snap.Submissions[i].EventID == "" {
			snap.Submissions[i].EventID = id
		}
	}
	for i := range snap.Judges {
		j := &snap.Judges[i]
		if j.EventID == "" {
			j.EventID = id
		}
		if j.InviteStatus == "" {
			j.InviteStatus = model.InviteAccepted
		}
	}
	for i := range snap.Assignments {
		if snap.Assignments[i].EventID == "" {
			snap.Assignments[i].EventID = id
		}
	}
	for i := range snap.Reviews {
		if snap.Reviews[i].EventID == "" {
			snap.Reviews[i].EventID = id
		}
	}
}
