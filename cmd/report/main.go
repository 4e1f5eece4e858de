// Command report computes Juryline reports from a snapshot file.
//
//	report -in snapshot.yaml -report leaderboard|progress|bias|plan [-threshold 1.0] [-target 3] [-format json|csv]
package main

import (
	"context"
	"encoding/csv"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"strconv"

	"github.com/okian/juryline/internal/domain/assignment"
	"github.com/okian/juryline/internal/domain/bias"
	"github.com/okian/juryline/internal/domain/leaderboard"
	"github.com/okian/juryline/internal/domain/model"
	"github.com/okian/juryline/internal/domain/progress"
	"github.com/okian/juryline/internal/domain/scoring"
	"github.com/okian/juryline/internal/fixture"
	"github.com/okian/juryline/pkg/logger"
)

// Report kinds.
const (
	reportLeaderboard = "leaderboard"
	reportProgress    = "progress"
	reportBias        = "bias"
	reportPlan        = "plan"

	formatJSON = "json"
	formatCSV  = "csv"
)

var errUsage = errors.New("usage")

type options struct {
	in        string
	report    string
	format    string
	threshold float64
	target    int
	tolerance float64
	top       int
}

func main() {
	err := run(context.Background(), os.Args[1:], os.Stdout, os.Stderr)
	switch {
	case err == nil, errors.Is(err, flag.ErrHelp):
	case errors.Is(err, errUsage):
		os.Stderr.WriteString("report: " + err.Error() + "\n")
		os.Exit(2)
	default:
		os.Stderr.WriteString("report: " + err.Error() + "\n")
		os.Exit(1)
	}
}

func run(ctx context.Context, args []string, stdout, stderr io.Writer) error {
	opts, err := parseFlags(args, stderr)
	if err != nil {
		return err
	}

	if err := logger.Init(logger.WithWriter(stderr)); err != nil {
		return fmt.Errorf("init logger: %w", err)
	}
	log := logger.Named("report")

	snap, err := fixture.Load(opts.in)
	if err != nil {
		return err
	}
	log.Debug(ctx, "snapshot loaded",
		logger.String("event_id", snap.Event.ID),
		logger.Int("submissions", len(snap.Submissions)),
		logger.Int("reviews", len(snap.Reviews)),
	)

	switch opts.report {
	case reportLeaderboard:
		res, err := leaderboard.Build(&snap.Event, snap.Criteria, snap.Submissions, snap.Reviews,
			leaderboard.WithTolerance(opts.tolerance))
		if err != nil {
			return err
		}
		warnIssues(ctx, log, res.Issues)
		if opts.top > 0 {
			res.Entries = res.Top(opts.top)
		}
		if opts.format == formatCSV {
			return leaderboard.WriteCSV(stdout, res)
		}
		return writeJSON(stdout, res)

	case reportProgress:
		sum := progress.Summarize(snap.Assignments, snap.Reviews, progress.WithJudges(snap.AcceptedJudges()...))
		if opts.format == formatCSV {
			return writeProgressCSV(stdout, sum)
		}
		return writeJSON(stdout, sum)

	case reportBias:
		rep := bias.Analyze(snap.Criteria, snap.Reviews,
			bias.WithThreshold(opts.threshold),
			bias.WithJudges(snap.AcceptedJudges()...),
			bias.WithTolerance(opts.tolerance),
		)
		warnIssues(ctx, log, rep.Issues)
		if opts.format == formatCSV {
			return writeBiasCSV(stdout, rep)
		}
		return writeJSON(stdout, rep)

	case reportPlan:
		target := opts.target
		if target <= 0 {
			target = snap.Event.JudgesPerSubmission
		}
		res := assignment.Plan(snap.Submissions, snap.Judges, target, snap.Assignments)
		for _, w := range res.Warnings {
			log.Warn(ctx, w, logger.String("event_id", snap.Event.ID))
		}
		if opts.format == formatCSV {
			return writePlanCSV(stdout, res.Assignments)
		}
		return writeJSON(stdout, res)
	}
	return fmt.Errorf("%w: unknown report %q", errUsage, opts.report)
}

func parseFlags(args []string, stderr io.Writer) (options, error) {
	var o options
	fs := flag.NewFlagSet("report", flag.ContinueOnError)
	fs.SetOutput(stderr)
	fs.StringVar(&o.in, "in", "", "Snapshot file (YAML or JSON)")
	fs.StringVar(&o.report, "report", reportLeaderboard, "Report: leaderboard, progress, bias or plan")
	fs.StringVar(&o.format, "format", formatJSON, "Output format: json or csv")
	fs.Float64Var(&o.threshold, "threshold", bias.DefaultThreshold, "Bias outlier multiplier of the standard deviation")
	fs.IntVar(&o.target, "target", 0, "Reviews per submission for plan (default: event judges_per_submission)")
	fs.Float64Var(&o.tolerance, "tolerance", scoring.DefaultTolerance, "Out-of-scale tolerance as a fraction of the scale span")
	fs.IntVar(&o.top, "top", 0, "Limit leaderboard output to the first N entries, unscored included")

	if err := fs.Parse(args); err != nil {
		return o, err
	}
	if o.in == "" {
		fs.Usage()
		return o, fmt.Errorf("%w: -in is required", errUsage)
	}
	switch o.report {
	case reportLeaderboard, reportProgress, reportBias, reportPlan:
	default:
		return o, fmt.Errorf("%w: unknown report %q", errUsage, o.report)
	}
	if o.format != formatJSON && o.format != formatCSV {
		return o, fmt.Errorf("%w: unknown format %q", errUsage, o.format)
	}
	if o.threshold < 0 {
		return o, fmt.Errorf("%w: threshold must be non-negative", errUsage)
	}
	return o, nil
}

func warnIssues(ctx context.Context, log logger.Logger, issues []scoring.IntegrityIssue) {
	for kind, n := range scoring.CountByKind(issues) {
		log.Warn(ctx, "skipped inconsistent review data", logger.String("kind", string(kind)), logger.Int("count", n))
	}
}

func writeJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func writeRows(w io.Writer, header []string, rows [][]string) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(header); err != nil {
		return err
	}
	if err := cw.WriteAll(rows); err != nil {
		return err
	}
	return cw.Error()
}

func writeProgressCSV(w io.Writer, sum progress.Summary) error {
	rows := make([][]string, 0, len(sum.Judges))
	for _, j := range sum.Judges {
		rows = append(rows, []string{j.JudgeID, strconv.Itoa(j.Assigned), strconv.Itoa(j.Completed), strconv.Itoa(j.Percent), string(j.Status)})
	}
	return writeRows(w, []string{"Judge", "Assigned", "Completed", "Percent", "Status"}, rows)
}

func writeBiasCSV(w io.Writer, rep bias.Report) error {
	rows := make([][]string, 0, len(rep.Judges))
	for _, j := range rep.Judges {
		rows = append(rows, []string{
			j.JudgeID,
			strconv.Itoa(j.ReviewCount),
			strconv.FormatFloat(j.Average, 'f', 2, 64),
			strconv.FormatFloat(j.Deviation, 'f', 2, 64),
			strconv.FormatBool(j.IsOutlier),
		})
	}
	return writeRows(w, []string{"Judge", "Reviews", "Average", "Deviation", "Outlier"}, rows)
}

func writePlanCSV(w io.Writer, planned []model.Assignment) error {
	rows := make([][]string, 0, len(planned))
	for _, a := range planned {
		rows = append(rows, []string{a.ID, a.SubmissionID, a.JudgeID})
	}
	return writeRows(w, []string{"Assignment", "Submission", "Judge"}, rows)
}
