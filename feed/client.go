package feed

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"math/rand"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/mmcdole/gofeed"
)

// ErrRateLimited marks a fetch rejected by the upstream rate limiter. It is
// retryable: the client has already backed off before returning it.
var ErrRateLimited = errors.New("rate limited (429)")

var userAgents = []string{
	"Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/120.0.0.0 Safari/537.36",
	"Mozilla/5.0 (Macintosh; Intel Mac OS X 10_15_7) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/120.0.0.0 Safari/537.36",
	"Mozilla/5.0 (X11; Linux x86_64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/120.0.0.0 Safari/537.36",
	"Mozilla/5.0 (Windows NT 10.0; Win64; x64; rv:121.0) Gecko/20100101 Firefox/121.0",
	"Mozilla/5.0 (Macintosh; Intel Mac OS X 10.15; rv:121.0) Gecko/20100101 Firefox/121.0",
}

const (
	rateLimitBackoffBase = 30 * time.Second
	rateLimitBackoffMax  = 300 * time.Second
	lowRemainingFloor    = 50
)

// Client performs single feed retrievals against the configured feed host
// with browser-like request headers. Rate-limit responses trigger an internal
// exponential backoff before the retryable error is surfaced; terminal HTTP
// statuses are not errors and land in Parsed.Status for classification.
type Client struct {
	baseURL    string
	httpClient *http.Client
	parser     *gofeed.Parser

	consecutive429 int
	last429        time.Time

	rng   *rand.Rand
	sleep func(time.Duration)
}

// NewClient builds a client for the given feed host with a bounded
// per-request timeout.
func NewClient(baseURL string, timeout time.Duration) *Client {
	c := &Client{
		baseURL:    strings.TrimRight(baseURL, "/"),
		httpClient: &http.Client{Timeout: timeout},
		parser:     gofeed.NewParser(),
		rng:        rand.New(rand.NewSource(time.Now().UnixNano())),
	}
	c.sleep = func(d time.Duration) { time.Sleep(d) }
	return c
}

// FeedURL derives the feed URL for a handle, with or without a leading "@".
func (c *Client) FeedURL(handle string) string {
	return fmt.Sprintf("%s/%s/rss", c.baseURL, strings.TrimPrefix(handle, "@"))
}

// Host returns the feed host name, used to recognize internal links.
func (c *Client) Host() string {
	u, err := url.Parse(c.baseURL)
	if err != nil {
		return ""
	}
	return u.Host
}

// Consecutive429 returns how many rate-limit rejections occurred since the
// last successful fetch.
func (c *Client) Consecutive429() int {
	return c.consecutive429
}

// Last429 returns when the most recent rate-limit rejection happened.
func (c *Client) Last429() time.Time {
	return c.last429
}

// FetchFeed retrieves and parses one feed document. Transport errors and
// rate-limit rejections are returned as errors for the retry executor; any
// other outcome, including terminal HTTP statuses and malformed documents,
// is described by the returned Parsed.
func (c *Client) FetchFeed(ctx context.Context, feedURL string) (*Parsed, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, feedURL, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to build request for %s: %w", feedURL, err)
	}
	c.applyHeaders(req)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusTooManyRequests {
		c.handleRateLimit()
		return nil, ErrRateLimited
	}

	c.checkRemainingQuota(resp)

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read response body: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		// Terminal status: surfaced for failure classification, not retried.
		return &Parsed{Feed: &Info{}, Status: resp.StatusCode}, nil
	}

	parsed := c.parse(body)
	parsed.Status = resp.StatusCode
	c.consecutive429 = 0
	return parsed, nil
}

func (c *Client) parse(body []byte) *Parsed {
	feed, err := c.parser.Parse(bytes.NewReader(body))
	if err != nil {
		return &Parsed{Feed: &Info{}, Malformed: true, ParseError: err.Error()}
	}

	parsed := &Parsed{
		Feed:    &Info{Title: feed.Title},
		Entries: make([]Entry, 0, len(feed.Items)),
	}
	for _, item := range feed.Items {
		content := item.Description
		if content == "" {
			content = item.Content
		}
		if content == "" {
			content = item.Title
		}
		parsed.Entries = append(parsed.Entries, Entry{
			Title:     item.Title,
			Link:      item.Link,
			Content:   content,
			Published: item.PublishedParsed,
			Updated:   item.UpdatedParsed,
		})
	}
	return parsed
}

func (c *Client) applyHeaders(req *http.Request) {
	req.Header.Set("User-Agent", userAgents[c.rng.Intn(len(userAgents))])
	req.Header.Set("Accept", "application/rss+xml, application/xml, text/xml, */*")
	req.Header.Set("Accept-Language", "en-US,en;q=0.9")
	req.Header.Set("Cache-Control", "no-cache")
	req.Header.Set("Pragma", "no-cache")
	req.Header.Set("Sec-Fetch-Dest", "document")
	req.Header.Set("Sec-Fetch-Mode", "navigate")
	req.Header.Set("Sec-Fetch-Site", "none")
	req.Header.Set("Upgrade-Insecure-Requests", "1")
}

// handleRateLimit backs off exponentially: 30s, 60s, 120s, capped at 300s,
// plus 5-15s of jitter.
func (c *Client) handleRateLimit() {
	c.consecutive429++
	c.last429 = time.Now()

	backoff := rateLimitBackoffBase << (c.consecutive429 - 1)
	if backoff > rateLimitBackoffMax || backoff <= 0 {
		backoff = rateLimitBackoffMax
	}
	jitter := 5*time.Second + time.Duration(c.rng.Int63n(int64(10*time.Second)))

	slog.Warn("rate limit hit, backing off",
		"backoff", backoff, "consecutive", c.consecutive429)
	c.sleep(backoff + jitter)
}

// checkRemainingQuota slows down preemptively when the upstream reports its
// rate-limit budget is nearly spent.
func (c *Client) checkRemainingQuota(resp *http.Response) {
	header := resp.Header.Get("x-rate-limit-remaining")
	if header == "" {
		return
	}
	remaining, err := strconv.Atoi(header)
	if err != nil || remaining >= lowRemainingFloor {
		return
	}
	slog.Warn("low rate limit remaining", "remaining", remaining)
	c.sleep(10*time.Second + time.Duration(c.rng.Int63n(int64(10*time.Second))))
}
