package fixture

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/okian/juryline/internal/domain/model"
	. "github.com/smartystreets/goconvey/convey"
)

const sampleYAML = `
event:
  id: hack-1
  name: Spring Hack
  judges_per_submission: 2
criteria:
  - id: design
    name: Design
    scale_min: 0
    scale_max: 5
    weight: 1
    sort_order: 2
  - id: impact
    name: Impact
    scale_min: 1
    scale_max: 10
    weight: 2
    sort_order: 1
submissions:
  - id: s1
    participant_id: team-a
  - id: s2
    participant_id: team-b
judges:
  - judge_id: j1
  - judge_id: j2
    invite_status: pending
assignments:
  - id: a1
    submission_id: s1
    judge_id: j1
reviews:
  - id: r1
    submission_id: s1
    judge_id: j1
    scores:
      impact: 8
      design: 4
`

func TestDecode(t *testing.T) {
	Convey("Given a YAML snapshot", t, func() {
		snap, err := Decode(strings.NewReader(sampleYAML))

		Convey("Then it decodes and fills inherited fields", func() {
			So(err, ShouldBeNil)
			So(snap.Event.ID, ShouldEqual, "hack-1")
			So(snap.Event.Status, ShouldEqual, model.StatusJudging)
			So(snap.Criteria, ShouldHaveLength, 2)
			So(snap.Criteria[0].ID, ShouldEqual, "impact")
			So(snap.Criteria[1].EventID, ShouldEqual, "hack-1")
			So(snap.Submissions[1].EventID, ShouldEqual, "hack-1")
			So(snap.Reviews[0].Scores["impact"], ShouldEqual, 8)
			So(snap.AcceptedJudges(), ShouldResemble, []string{"j1"})
		})
	})

	Convey("Given a JSON snapshot", t, func() {
		doc := `{"event":{"id":"e1","status":"open"},"criteria":[{"id":"c","name":"C","scale_min":0,"scale_max":1,"weight":1}]}`
		snap, err := Decode(strings.NewReader(doc))

		Convey("Then it decodes as YAML", func() {
			So(err, ShouldBeNil)
			So(snap.Event.Status, ShouldEqual, model.StatusOpen)
			So(snap.Criteria[0].EventID, ShouldEqual, "e1")
		})
	})

	Convey("Given malformed snapshots", t, func() {
		cases := map[string]struct {
			doc  string
			kind error
		}{
			"empty":              {"", ErrInvalid},
			"unknown field":      {"event: {id: e1}\nbogus: 1\n", ErrDecode},
			"no event id":        {"event: {name: x}\n", ErrInvalid},
			"bad status":         {"event: {id: e1, status: archived}\n", ErrInvalid},
			"inverted scale":     {"event: {id: e1}\ncriteria: [{id: c, scale_min: 5, scale_max: 1}]\n", ErrInvalid},
			"duplicate criteria": {"event: {id: e1}\ncriteria: [{id: c, scale_max: 1}, {id: c, scale_max: 2}]\n", ErrInvalid},
			"orphan assignment":  {"event: {id: e1}\nassignments: [{id: a, submission_id: nope, judge_id: j}]\n", ErrInvalid},
			"not yaml":           {"event: [unterminated", ErrDecode},
		}

		for name, tc := range cases {
			Convey("Then "+name+" is rejected", func() {
				_, err := Decode(strings.NewReader(tc.doc))
				So(errors.Is(err, tc.kind), ShouldBeTrue)
			})
		}
	})
}

func TestLoad(t *testing.T) {
	Convey("Given a snapshot file on disk", t, func() {
		path := filepath.Join(t.TempDir(), "snapshot.yaml")
		So(os.WriteFile(path, []byte(sampleYAML), 0o600), ShouldBeNil)

		Convey("Then Load returns the decoded snapshot", func() {
			snap, err := Load(path)
			So(err, ShouldBeNil)
			So(snap.Submissions, ShouldHaveLength, 2)
		})

		Convey("Then a missing file is a decode error", func() {
			_, err := Load(filepath.Join(t.TempDir(), "missing.yaml"))
			So(errors.Is(err, ErrDecode), ShouldBeTrue)
		})
	})
}
