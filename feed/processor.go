package feed

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"regexp"
	"strings"
	"time"

	"golang.org/x/net/html"
)

const (
	retweetPrefix  = "RT by @"
	feedTimeFormat = "2006-01-02 15:04 MST"
	canonicalHost  = "x.com"
)

// Processor orchestrates one feed fetch: rate-limiter gate, retried network
// call, validity check, failure classification and date-filtered post
// extraction.
type Processor struct {
	client   *Client
	limiter  *RateLimiter
	session  *Session
	location *time.Location
	retry    RetryConfig
}

// NewProcessor wires the fetch core together. retry controls the outer
// fixed-interval retry around each network call.
func NewProcessor(client *Client, limiter *RateLimiter, session *Session, location *time.Location, retry RetryConfig) *Processor {
	return &Processor{
		client:   client,
		limiter:  limiter,
		session:  session,
		location: location,
		retry:    retry,
	}
}

// Session returns the session profile the processor paces itself with.
func (p *Processor) Session() *Session {
	return p.session
}

// Client returns the underlying network client.
func (p *Processor) Client() *Client {
	return p.client
}

// ProcessFeed fetches and validates one feed. The returned reason is empty
// on success; on failure it is a human-readable classification and the
// Parsed may be nil. Errors never escape: exhausted retries become a reason.
func (p *Processor) ProcessFeed(ctx context.Context, feedURL, feedTitle string) (*Parsed, string) {
	p.limiter.WaitIfNeeded(p.session.BaseDelay())

	var parsed *Parsed
	cfg := p.retry
	if cfg.Context == "" {
		cfg.Context = fmt.Sprintf("feed fetch %s", feedTitle)
	}
	err := Retry(ctx, cfg, func(ctx context.Context) error {
		var fetchErr error
		parsed, fetchErr = p.client.FetchFeed(ctx, feedURL)
		return fetchErr
	})
	if err != nil {
		slog.Error("failed to process feed", "feed", feedTitle, "error", err)
		return nil, fmt.Sprintf("exception: %s", err)
	}

	if !isValidFeed(parsed) {
		return parsed, analyzeFeedFailure(parsed)
	}
	return parsed, ""
}

// isValidFeed accepts a feed only when a document was parsed cleanly with a
// success status and at least one entry.
func isValidFeed(parsed *Parsed) bool {
	if parsed == nil || parsed.Feed == nil {
		return false
	}
	if parsed.Malformed {
		return false
	}
	if parsed.Status != 0 && parsed.Status != http.StatusOK {
		return false
	}
	return len(parsed.Entries) > 0
}

// analyzeFeedFailure classifies an unusable feed. Ordering matters: network
// and parse failures are diagnosed before emptiness so that a missing
// document is never misreported as "no entries".
func analyzeFeedFailure(parsed *Parsed) string {
	if parsed == nil || parsed.Feed == nil {
		return "no feed data received (possible network issue or invalid URL)"
	}

	if parsed.Malformed {
		if parsed.ParseError != "" {
			return fmt.Sprintf("feed parsing error: %s", parsed.ParseError)
		}
		return "feed parsing error (malformed XML/RSS)"
	}

	switch {
	case parsed.Status == http.StatusNotFound:
		return "feed not found (404) - account may not exist or be private"
	case parsed.Status == http.StatusForbidden:
		return "access forbidden (403) - account may be private or restricted"
	case parsed.Status == http.StatusTooManyRequests:
		return "rate limited (429) - too many requests"
	case parsed.Status >= 500:
		return fmt.Sprintf("server error (%d) - service unavailable", parsed.Status)
	case parsed.Status != 0 && parsed.Status != http.StatusOK:
		return fmt.Sprintf("HTTP error (%d)", parsed.Status)
	}

	if len(parsed.Entries) == 0 {
		return "feed is empty (no entries found)"
	}

	title := strings.ToLower(parsed.Feed.Title)
	if strings.Contains(title, "error") || strings.Contains(title, "not found") {
		return fmt.Sprintf("feed error: %s", parsed.Feed.Title)
	}

	return "unknown error (feed validation failed)"
}

// ExtractPosts pulls the entries whose timestamp falls within the half-open
// [start, end) window and normalizes them into posts. Entries without any
// timestamp are skipped silently.
func (p *Processor) ExtractPosts(parsed *Parsed, start, end time.Time, source string) []Post {
	var posts []Post
	host := p.client.Host()

	for _, entry := range parsed.Entries {
		var ts time.Time
		switch {
		case entry.Published != nil:
			ts = entry.Published.In(p.location)
		case entry.Updated != nil:
			ts = entry.Updated.In(p.location)
		default:
			continue
		}

		if ts.Before(start) || !ts.Before(end) {
			continue
		}

		content := cleanText(stripHTML(entry.Content))

		if strings.HasPrefix(entry.Title, retweetPrefix) {
			author := authorFromLink(entry.Link, host)
			content = fmt.Sprintf("RT from @%s: %s", author, content)
		}

		posts = append(posts, Post{
			Source:    source,
			Content:   content,
			URL:       canonicalURL(entry.Link, host),
			Date:      ts.Format(feedTimeFormat),
			Timestamp: ts,
		})
	}
	return posts
}

// authorFromLink derives the original author from an internal status link
// of the form <host>/<author>/status/<id>. Unknown shapes yield "unknown".
func authorFromLink(link, host string) string {
	author, _, ok := splitStatusPath(link, host)
	if !ok {
		return "unknown"
	}
	return author
}

// canonicalURL rewrites an internal feed-host status link into its public
// form. Links that do not match the internal host pattern pass through.
func canonicalURL(link, host string) string {
	author, id, ok := splitStatusPath(link, host)
	if !ok {
		return link
	}
	return fmt.Sprintf("https://%s/%s/status/%s", canonicalHost, author, id)
}

func splitStatusPath(link, host string) (author, id string, ok bool) {
	if link == "" || host == "" || !strings.Contains(link, host+"/") {
		return "", "", false
	}
	path := link[strings.Index(link, host+"/")+len(host)+1:]
	author, rest, found := strings.Cut(path, "/status/")
	if !found || author == "" || rest == "" {
		return "", "", false
	}
	id, _, _ = strings.Cut(rest, "#")
	if id == "" {
		return "", "", false
	}
	return author, id, true
}

// stripHTML flattens an HTML fragment to its text content.
func stripHTML(s string) string {
	if s == "" {
		return ""
	}
	var b strings.Builder
	z := html.NewTokenizer(strings.NewReader(s))
	for {
		switch z.Next() {
		case html.ErrorToken:
			return b.String()
		case html.TextToken:
			b.Write(z.Text())
		}
	}
}

var whitespaceRe = regexp.MustCompile(`\s+`)

// cleanText escapes embedded newlines, collapses runs of whitespace and
// trims the ends.
func cleanText(s string) string {
	s = strings.ReplaceAll(s, "\n", `\n`)
	return strings.TrimSpace(whitespaceRe.ReplaceAllString(s, " "))
}
