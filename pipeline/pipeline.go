// Package pipeline sequences the daily stages: fetch, summarize,
// translate, publish to Telegraph, announce on Telegram and regenerate
// the newsletter page. Each stage checkpoints its output as a dated
// file, so a re-run resumes where the previous one stopped.
package pipeline

import (
	"context"
	"fmt"
	"html/template"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/sumbird/sumbird/agent"
	"github.com/sumbird/sumbird/cache"
	"github.com/sumbird/sumbird/config"
	"github.com/sumbird/sumbird/dates"
	"github.com/sumbird/sumbird/fetcher"
	"github.com/sumbird/sumbird/filter"
	"github.com/sumbird/sumbird/newsletter"
	"github.com/sumbird/sumbird/telegram"
	"github.com/sumbird/sumbird/telegraph"
)

// Options control one pipeline run.
type Options struct {
	Date         string // YYYY-MM-DD override, yesterday when empty
	Force        bool   // redo stages even when their output exists
	SkipTelegram bool
	SkipPDF      bool
}

type Pipeline struct {
	cfg      config.Config
	creds    config.Credentials
	store    *cache.Cache
	location *time.Location
	opts     Options
}

func New(cfg config.Config, creds config.Credentials, store *cache.Cache, location *time.Location, opts Options) *Pipeline {
	return &Pipeline{
		cfg:      cfg,
		creds:    creds,
		store:    store,
		location: location,
		opts:     opts,
	}
}

// Run executes all stages for the target date.
func (p *Pipeline) Run(ctx context.Context) error {
	target, err := dates.TargetDate(p.opts.Date, p.location)
	if err != nil {
		return err
	}
	dateStr := dates.DateStr(target)
	slog.Info("starting pipeline", "date", dateStr)

	if err := os.MkdirAll(p.cfg.OutputDirectory, 0o755); err != nil {
		return fmt.Errorf("failed to create output directory: %w", err)
	}
	lock, err := AcquireLock(filepath.Join(p.cfg.OutputDirectory, "sumbird.lock"))
	if err != nil {
		return err
	}
	defer lock.Release()

	exportPath, err := p.runFetch(ctx, target, dateStr)
	if err != nil {
		return err
	}

	summaryPath, err := p.runAgentStage(ctx, "summary", dateStr, exportPath)
	if err != nil {
		return err
	}
	translatedPath, err := p.runAgentStage(ctx, "translate", dateStr, summaryPath)
	if err != nil {
		return err
	}

	published, err := p.runPublish(ctx, dateStr, summaryPath, translatedPath)
	if err != nil {
		return err
	}

	if p.opts.SkipTelegram {
		slog.Info("skipping telegram distribution")
	} else if err := p.runDistribute(ctx, published); err != nil {
		return err
	}

	if err := p.runNewsletter(ctx, dateStr, summaryPath, published); err != nil {
		return err
	}

	slog.Info("pipeline finished", "date", dateStr)
	return nil
}

// skipStage reports whether a stage's dated output already exists and
// the run is not forced.
func (p *Pipeline) skipStage(path string) bool {
	if p.opts.Force {
		return false
	}
	_, err := os.Stat(path)
	return err == nil
}

func (p *Pipeline) runFetch(ctx context.Context, target time.Time, dateStr string) (string, error) {
	exportPath := filepath.Join(p.cfg.StageDir("export"), dateStr+".md")
	if p.skipStage(exportPath) {
		slog.Info("using existing export file", "path", exportPath)
		return exportPath, nil
	}

	filters, err := filter.NewPipeline(p.cfg.Filters)
	if err != nil {
		return "", fmt.Errorf("failed to initialize filters: %w", err)
	}

	result, err := fetcher.New(p.cfg, p.location, filters).Run(ctx, target)
	if err != nil {
		return "", err
	}

	p.recordRun(dateStr, result)

	if err := checkFetchPolicy(p.cfg, result); err != nil {
		return "", err
	}
	return result.ExportPath, nil
}

// checkFetchPolicy decides whether a fetch outcome is good enough to
// summarize and publish.
func checkFetchPolicy(cfg config.Config, result fetcher.Result) error {
	if result.Total < cfg.MinFeedsTotal {
		return fmt.Errorf("only %d feeds configured, need at least %d", result.Total, cfg.MinFeedsTotal)
	}
	ratio := float64(result.Successful) / float64(result.Total)
	if ratio < cfg.MinFeedsSuccessRatio {
		return fmt.Errorf("fetched %d/%d feeds (%.0f%%), below the %.0f%% threshold",
			result.Successful, result.Total, ratio*100, cfg.MinFeedsSuccessRatio*100)
	}
	return nil
}

func (p *Pipeline) recordRun(dateStr string, result fetcher.Result) {
	failed := make(map[string]string, len(result.Failed))
	for _, failure := range result.Failed {
		failed[failure.Handle] = failure.Reason
	}
	for _, handle := range fetcher.CleanHandles(p.cfg.Handles) {
		entry := cache.RunEntry{Date: dateStr, Handle: handle, OK: true}
		if reason, ok := failed[handle]; ok {
			entry.OK = false
			entry.Reason = reason
		}
		if err := p.store.RecordRun(entry); err != nil {
			slog.Warn("failed to record run entry", "handle", handle, "error", err)
		}
	}
}

// runAgentStage processes the input file with one agent, writing the
// result as the stage's dated HTML file. Agent outputs are cached by
// input content, so re-running a day does not spend quota.
func (p *Pipeline) runAgentStage(ctx context.Context, agentType, dateStr, inputPath string) (string, error) {
	outPath := filepath.Join(p.cfg.StageDir(agentType), dateStr+".html")
	if p.skipStage(outPath) {
		slog.Info("using existing stage file", "stage", agentType, "path", outPath)
		return outPath, nil
	}

	input, err := os.ReadFile(inputPath)
	if err != nil {
		return "", fmt.Errorf("failed to read %s input: %w", agentType, err)
	}

	cacheKey := agentType + ":" + dateStr
	contentHash := cache.ContentHash(string(input))
	output, cached, err := p.store.GetAgentOutput(cacheKey, contentHash, []string{agentType})
	if err != nil {
		return "", err
	}
	if cached {
		slog.Info("agent output served from cache", "stage", agentType, "date", dateStr)
	} else {
		agents, err := agent.InitAgents(ctx, []string{agentType}, p.creds.Gemini)
		if err != nil {
			return "", err
		}
		slog.Info("running agent", "stage", agentType, "date", dateStr)
		output, err = agent.Pipeline(ctx, agents, []string{agentType}, string(input))
		if err != nil {
			return "", fmt.Errorf("%s stage failed: %w", agentType, err)
		}
		if err := p.store.SetAgentOutput(cacheKey, contentHash, []string{agentType}, output); err != nil {
			slog.Warn("failed to cache agent output", "stage", agentType, "error", err)
		}
	}

	if err := os.MkdirAll(filepath.Dir(outPath), 0o755); err != nil {
		return "", fmt.Errorf("failed to create %s directory: %w", agentType, err)
	}
	if err := os.WriteFile(outPath, []byte(output), 0o644); err != nil {
		return "", fmt.Errorf("failed to write %s file: %w", agentType, err)
	}
	slog.Info("stage complete", "stage", agentType, "path", outPath)
	return outPath, nil
}

func (p *Pipeline) runPublish(ctx context.Context, dateStr, summaryPath, translatedPath string) (telegraph.Published, error) {
	publishedDir := p.cfg.StageDir("published")

	existing, found, err := telegraph.ReadPublished(publishedDir, dateStr)
	if err != nil {
		return telegraph.Published{}, err
	}
	if found && !p.opts.Force {
		slog.Info("using existing publication", "url", existing.URL)
		return existing, nil
	}

	defaultTitle := fmt.Sprintf(p.cfg.SummaryTitleFormat, dateStr)
	publisher := telegraph.NewPublisher(p.creds.Telegraph)

	enPage, err := p.convertStageFile(summaryPath, defaultTitle)
	if err != nil {
		return telegraph.Published{}, err
	}
	enResult, err := publisher.Publish(ctx, enPage, existing.Path)
	if err != nil {
		return telegraph.Published{}, fmt.Errorf("failed to publish summary: %w", err)
	}

	published := telegraph.Published{
		Title:         enPage.Title,
		URL:           enResult.URL,
		Path:          enResult.Path,
		PublishedDate: time.Now().In(p.location).Format(time.RFC3339),
		SourceDate:    dateStr,
	}
	if summary, serr := p.store.RunStats(dateStr); serr == nil {
		published.FeedsSuccess = summary.Successful
	}

	faPage, err := p.convertStageFile(translatedPath, defaultTitle)
	if err == nil {
		faResult, perr := publisher.Publish(ctx, faPage, existing.FAPath)
		if perr != nil {
			slog.Error("failed to publish translation", "error", perr)
		} else {
			published.FATitle = faPage.Title
			published.FAURL = faResult.URL
			published.FAPath = faResult.Path
		}
	}

	if err := telegraph.WritePublished(publishedDir, published); err != nil {
		return telegraph.Published{}, err
	}
	slog.Info("published to telegraph", "url", published.URL, "fa_url", published.FAURL)
	return published, nil
}

func (p *Pipeline) convertStageFile(path, defaultTitle string) (telegraph.Page, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return telegraph.Page{}, fmt.Errorf("failed to read stage file: %w", err)
	}
	page, err := telegraph.Convert(string(data), defaultTitle)
	if err != nil {
		return telegraph.Page{}, fmt.Errorf("failed to convert %s: %w", filepath.Base(path), err)
	}
	footer := p.cfg.Footer
	page = telegraph.AppendFooter(page, footer.Text, footer.LinkText, footer.LinkURL)
	return page, nil
}

func (p *Pipeline) runDistribute(ctx context.Context, published telegraph.Published) error {
	if !p.creds.Telegram.IsValid() {
		slog.Warn("telegram credentials missing, skipping distribution")
		return nil
	}
	sessionDir := p.cfg.StageDir("telegram")
	if err := os.MkdirAll(sessionDir, 0o700); err != nil {
		return fmt.Errorf("failed to create telegram session directory: %w", err)
	}
	return telegram.Distribute(ctx, sessionDir, p.cfg, p.creds.Telegram, published)
}

func (p *Pipeline) runNewsletter(ctx context.Context, dateStr, summaryPath string, published telegraph.Published) error {
	summaryHTML, err := os.ReadFile(summaryPath)
	if err != nil {
		return fmt.Errorf("failed to read summary for newsletter: %w", err)
	}

	issue := newsletter.Issue{
		Title:       published.Title,
		Date:        dateStr,
		SummaryHTML: template.HTML(summaryHTML),
		EnglishURL:  published.URL,
		PersianURL:  published.FAURL,
		FooterText:  p.cfg.Footer.Text,
		FooterLink:  p.cfg.Footer.LinkText,
		FooterURL:   p.cfg.Footer.LinkURL,
	}

	htmlPath := filepath.Join(p.cfg.StageDir("site"), dateStr+".html")
	if err := newsletter.WriteHTML(htmlPath, issue); err != nil {
		return err
	}
	slog.Info("newsletter page generated", "path", htmlPath)

	if p.opts.SkipPDF {
		return nil
	}
	pdfPath := filepath.Join(p.cfg.StageDir("site"), dateStr+".pdf")
	if err := newsletter.GeneratePDF(ctx, htmlPath, pdfPath); err != nil {
		slog.Error("failed to generate PDF", "error", err)
	} else {
		slog.Info("PDF file generated", "path", pdfPath)
	}
	return nil
}
