// Command simulate drives a synthetic hackathon through a running Juryline
// service and verifies planner balance and leaderboard ordering.
package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"os"
	"runtime"
	"time"

	"github.com/okian/juryline/internal/simulate"
	"github.com/okian/juryline/pkg/logger"
)

// Default configuration constants.
const (
	defaultWorkers    = 2 // multiplier for runtime.NumCPU()
	defaultRunTimeout = 10 * time.Minute
	logFilePermission = 0o600
)

func main() {
	var (
		baseURL     = flag.String("url", "http://localhost:9080", "Base URL of the service")
		submissions = flag.Int("submissions", simulate.DefaultSubmissions, "Number of submissions to create")
		judges      = flag.Int("judges", simulate.DefaultJudges, "Number of judges to invite")
		target      = flag.Int("target", simulate.DefaultTarget, "Reviews per submission")
		workers     = flag.Int("workers", runtime.NumCPU()*defaultWorkers, "Number of concurrent review submitters")
		timeout     = flag.Duration("timeout", simulate.DefaultTimeout, "HTTP request timeout")
		wait        = flag.Duration("wait", simulate.DefaultWait, "Maximum wait for review ingestion")
		dupRatio    = flag.Float64("duplicates", 0.1, "Fraction of reviews re-sent to exercise deduplication")
		seed        = flag.Uint64("seed", 0, "Score generator seed (default: time based)")
		closeEvent  = flag.Bool("close", false, "Close the event when done")
		outputFile  = flag.String("output", "", "Write run statistics as JSON to this file")
		logFile     = flag.String("log", "", "Also write logs to this file")
		logFormat   = flag.String("log-format", "text", "Log format: text or json")
		verbose     = flag.Bool("verbose", false, "Enable debug logging")
	)
	flag.Parse()

	if err := setupLogging(*logFile, *logFormat, *verbose); err != nil {
		os.Stderr.WriteString("failed to setup logging: " + err.Error() + "\n")
		os.Exit(1)
	}

	ctx, cancel := context.WithTimeout(context.Background(), defaultRunTimeout)
	defer cancel()

	cfg := simulate.Config{
		BaseURL:        *baseURL,
		Submissions:    *submissions,
		Judges:         *judges,
		Target:         *target,
		Workers:        *workers,
		Timeout:        *timeout,
		Wait:           *wait,
		DuplicateRatio: *dupRatio,
		Seed:           *seed,
		Close:          *closeEvent,
	}

	stats, err := simulate.Run(ctx, cfg, logger.Named("simulate"))
	if *outputFile != "" && stats != nil {
		if werr := writeStats(*outputFile, stats); werr != nil {
			logger.Get().Warn(ctx, "failed to save statistics", logger.Error(werr))
		}
	}
	if err != nil {
		logger.Get().Error(ctx, "simulation failed", logger.Error(err))
		os.Exit(1)
	}
}

// setupLogging configures logging to the console and, optionally, a file.
func setupLogging(logFile, format string, verbose bool) error {
	var out io.Writer = os.Stdout
	if logFile != "" {
		f, err := os.OpenFile(logFile, os.O_CREATE|os.O_WRONLY|os.O_APPEND, logFilePermission)
		if err != nil {
			return fmt.Errorf("open log file: %w", err)
		}
		out = io.MultiWriter(os.Stdout, f)
	}
	if err := logger.Init(logger.WithFormat(format), logger.WithWriter(out)); err != nil {
		return err
	}
	if verbose {
		return logger.SetLevelString("debug")
	}
	return nil
}

func writeStats(path string, stats *simulate.Stats) error {
	data, err := json.MarshalIndent(stats, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(path, append(data, '\n'), logFilePermission)
}
