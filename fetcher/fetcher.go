// Package fetcher is the pipeline's first stage: it turns the configured
// handles into feed targets, runs the batched fetch core over them and
// writes the dated export file consumed by the summarizer.
package fetcher

import (
	"context"
	"log/slog"
	"strings"
	"time"

	"github.com/sumbird/sumbird/config"
	"github.com/sumbird/sumbird/dates"
	"github.com/sumbird/sumbird/feed"
	"github.com/sumbird/sumbird/filter"
)

// Result describes one fetch-and-export run.
type Result struct {
	ExportPath string
	Posts      int
	Successful int
	Total      int
	Failed     []feed.Failure
}

type Fetcher struct {
	cfg      config.Config
	location *time.Location
	filters  *filter.Pipeline
	runner   *feed.BatchRunner
	client   *feed.Client
}

// New wires the fetch core from configuration.
func New(cfg config.Config, location *time.Location, filters *filter.Pipeline) *Fetcher {
	client := feed.NewClient(cfg.BaseURL, time.Duration(cfg.RSSTimeoutSec)*time.Second)
	limiter := feed.NewRateLimiter(cfg.RateLimitMax, cfg.RateLimitWindow)
	session := feed.NewSession(cfg.SessionMode, time.Duration(cfg.BatchDelaySec*float64(time.Second)))

	retry := feed.DefaultRetryConfig("RSS feed fetch")
	retry.MaxAttempts = cfg.RetryMaxAttempts
	retry.Timeout = time.Duration(cfg.RSSTimeoutSec) * time.Second

	processor := feed.NewProcessor(client, limiter, session, location, retry)
	return &Fetcher{
		cfg:      cfg,
		location: location,
		filters:  filters,
		runner:   feed.NewBatchRunner(processor, cfg.BatchSize),
		client:   client,
	}
}

// Targets derives one feed target per configured handle. Blank handles are
// dropped; a leading "@" is tolerated and stripped.
func (f *Fetcher) Targets() []feed.Target {
	return Targets(f.cfg.Handles, f.client)
}

// Targets builds feed targets for the given handles.
func Targets(handles []string, client *feed.Client) []feed.Target {
	targets := make([]feed.Target, 0, len(handles))
	for _, handle := range CleanHandles(handles) {
		targets = append(targets, feed.Target{
			Handle: handle,
			URL:    client.FeedURL(handle),
			Title:  "@" + handle,
		})
	}
	return targets
}

// Run fetches all targets for the target day and writes the export file.
// Individual feed failures are reported in the result, never as an error;
// the returned error covers only the export write itself.
func (f *Fetcher) Run(ctx context.Context, target time.Time) (Result, error) {
	targets := f.Targets()
	start, end := dates.Range(target)
	dateStr := dates.DateStr(target)

	slog.Info("fetching feeds",
		"handles", len(targets), "date", dateStr, "base_url", f.cfg.BaseURL)

	run := f.runner.Run(ctx, targets, start, end)

	posts := run.Posts
	if f.filters != nil {
		posts = f.filters.Apply(posts, f.cfg.FilterNames)
	}

	slog.Info("fetch complete",
		"posts", len(posts), "successful", run.Successful, "total", len(targets), "failed", len(run.Failed))
	for _, failure := range run.Failed {
		slog.Warn("feed failed", "handle", failure.Handle, "reason", failure.Reason)
	}

	exportPath, err := WriteExport(f.cfg, dateStr, posts)
	if err != nil {
		return Result{}, err
	}

	return Result{
		ExportPath: exportPath,
		Posts:      len(posts),
		Successful: run.Successful,
		Total:      len(targets),
		Failed:     run.Failed,
	}, nil
}

// CleanHandles normalizes configured handles: whitespace and a leading
// "@" are stripped, blanks are dropped.
func CleanHandles(handles []string) []string {
	cleaned := make([]string, 0, len(handles))
	for _, handle := range handles {
		handle = strings.TrimSpace(strings.TrimPrefix(strings.TrimSpace(handle), "@"))
		if handle != "" {
			cleaned = append(cleaned, handle)
		}
	}
	return cleaned
}
