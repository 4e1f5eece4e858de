package leaderboard

import (
	"encoding/csv"
	"fmt"
	"io"
	"strconv"

	"github.com/okian/juryline/internal/domain/types"
)

// WriteCSV writes r as CSV: rank, submission, display score, one average
// column per criterion and the review count. Unscored rows leave rank and
// scores blank.
func WriteCSV(w io.Writer, r Result) error {
	cw := csv.NewWriter(w)

	header := []string{"Rank", "Submission", "Weighted Score"}
	for _, c := range r.Criteria {
		header = append(header, c.Name+" (avg)")
	}
	header = append(header, "Review Count")
	if err := cw.Write(header); err != nil {
		return fmt.Errorf("write csv header: %w", err)
	}

	for i := range r.Entries {
		e := &r.Entries[i]
		row := make([]string, 0, len(header))
		if e.Scored {
			row = append(row, strconv.Itoa(e.Rank), e.SubmissionID, formatFloat(e.DisplayScore, 1))
		} else {
			row = append(row, "", e.SubmissionID, "")
		}

		byID := make(map[string]types.CriterionAggregate, len(e.Criteria))
		for _, a := range e.Criteria {
			byID[a.CriterionID] = a
		}
		for _, c := range r.Criteria {
			row = append(row, formatFloat(byID[c.ID].Average, 2))
		}
		row = append(row, strconv.Itoa(e.ReviewCount))

		if err := cw.Write(row); err != nil {
			return fmt.Errorf("write csv row %s: %w", e.SubmissionID, err)
		}
	}

	cw.Flush()
	return cw.Error()
}

func formatFloat(v *float64, prec int) string {
	if v == nil {
		return ""
	}
	return strconv.FormatFloat(*v, 'f', prec, 64)
}
