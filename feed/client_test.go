package feed

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"
)

const sampleRSS = `<?xml version="1.0" encoding="UTF-8"?>
<rss version="2.0">
  <channel>
    <title>@alice / feed</title>
    <item>
      <title>Hello</title>
      <link>http://HOST/alice/status/123#m</link>
      <description>Hello</description>
      <pubDate>Sun, 01 Jun 2025 10:00:00 GMT</pubDate>
    </item>
  </channel>
</rss>`

func newTestClient(t *testing.T, handler http.HandlerFunc) (*Client, *httptest.Server) {
	t.Helper()
	server := httptest.NewServer(handler)
	t.Cleanup(server.Close)
	client := NewClient(server.URL, 5*time.Second)
	client.sleep = func(time.Duration) {}
	return client, server
}

func TestClient_FetchFeedSuccess(t *testing.T) {
	client, server := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, sampleRSS)
	})
	_ = server

	parsed, err := client.FetchFeed(context.Background(), client.FeedURL("alice"))
	if err != nil {
		t.Fatalf("FetchFeed failed: %v", err)
	}
	if parsed.Feed == nil || parsed.Feed.Title != "@alice / feed" {
		t.Errorf("unexpected feed info: %+v", parsed.Feed)
	}
	if parsed.Status != http.StatusOK {
		t.Errorf("status = %d, want 200", parsed.Status)
	}
	if len(parsed.Entries) != 1 {
		t.Fatalf("expected 1 entry, got %d", len(parsed.Entries))
	}
	entry := parsed.Entries[0]
	if entry.Title != "Hello" || entry.Published == nil {
		t.Errorf("unexpected entry: %+v", entry)
	}
}

func TestClient_BrowserHeaders(t *testing.T) {
	var gotUA, gotAccept string
	client, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		gotUA = r.Header.Get("User-Agent")
		gotAccept = r.Header.Get("Accept")
		fmt.Fprint(w, sampleRSS)
	})

	if _, err := client.FetchFeed(context.Background(), client.FeedURL("alice")); err != nil {
		t.Fatalf("FetchFeed failed: %v", err)
	}

	found := false
	for _, ua := range userAgents {
		if gotUA == ua {
			found = true
		}
	}
	if !found {
		t.Errorf("user agent %q not from the pool", gotUA)
	}
	if gotAccept == "" {
		t.Error("Accept header not set")
	}
}

func TestClient_TerminalStatusIsNotAnError(t *testing.T) {
	client, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "gone", http.StatusNotFound)
	})

	parsed, err := client.FetchFeed(context.Background(), client.FeedURL("bob"))
	if err != nil {
		t.Fatalf("terminal status should not be an error, got %v", err)
	}
	if parsed.Status != http.StatusNotFound {
		t.Errorf("status = %d, want 404", parsed.Status)
	}
	if len(parsed.Entries) != 0 {
		t.Errorf("expected no entries for 404, got %d", len(parsed.Entries))
	}
}

func TestClient_RateLimitBackoffAndError(t *testing.T) {
	client, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTooManyRequests)
	})

	var slept []time.Duration
	client.sleep = func(d time.Duration) { slept = append(slept, d) }

	_, err := client.FetchFeed(context.Background(), client.FeedURL("carol"))
	if !errors.Is(err, ErrRateLimited) {
		t.Fatalf("expected ErrRateLimited, got %v", err)
	}
	if client.Consecutive429() != 1 {
		t.Errorf("consecutive 429 count = %d, want 1", client.Consecutive429())
	}
	if client.Last429().IsZero() {
		t.Error("last 429 instant not recorded")
	}
	if len(slept) != 1 {
		t.Fatalf("expected one backoff sleep, got %d", len(slept))
	}
	// 30s base plus 5-15s jitter on the first rejection.
	if slept[0] < 35*time.Second || slept[0] > 45*time.Second {
		t.Errorf("first backoff %v outside [35s, 45s]", slept[0])
	}
}

func TestClient_RateLimitBackoffDoublesAndCaps(t *testing.T) {
	client := NewClient("http://feeds.internal:8080", time.Second)
	var slept []time.Duration
	client.sleep = func(d time.Duration) { slept = append(slept, d) }

	for i := 0; i < 6; i++ {
		client.handleRateLimit()
	}

	// Doubling from the 30s base, capped at 300s, each with 5-15s jitter.
	bases := []time.Duration{30, 60, 120, 240, 300, 300}
	for i, base := range bases {
		lo := base*time.Second + 5*time.Second
		hi := base*time.Second + 15*time.Second
		if slept[i] < lo || slept[i] > hi {
			t.Errorf("backoff %d = %v, want within [%v, %v]", i, slept[i], lo, hi)
		}
	}
}

func TestClient_SuccessResetsRateLimitCounter(t *testing.T) {
	client, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, sampleRSS)
	})
	client.consecutive429 = 3

	if _, err := client.FetchFeed(context.Background(), client.FeedURL("alice")); err != nil {
		t.Fatalf("FetchFeed failed: %v", err)
	}
	if client.Consecutive429() != 0 {
		t.Errorf("counter not reset, got %d", client.Consecutive429())
	}
}

func TestClient_LowRemainingQuotaSlowsDown(t *testing.T) {
	client, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("x-rate-limit-remaining", "10")
		fmt.Fprint(w, sampleRSS)
	})

	var slept []time.Duration
	client.sleep = func(d time.Duration) { slept = append(slept, d) }

	if _, err := client.FetchFeed(context.Background(), client.FeedURL("alice")); err != nil {
		t.Fatalf("FetchFeed failed: %v", err)
	}
	if len(slept) != 1 || slept[0] < 10*time.Second || slept[0] > 20*time.Second {
		t.Errorf("expected one 10-20s pause, got %v", slept)
	}
}

func TestClient_MalformedBody(t *testing.T) {
	client, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, "this is not a feed document")
	})

	parsed, err := client.FetchFeed(context.Background(), client.FeedURL("alice"))
	if err != nil {
		t.Fatalf("malformed body should not be an error, got %v", err)
	}
	if !parsed.Malformed {
		t.Error("expected Malformed flag")
	}
	if parsed.ParseError == "" {
		t.Error("expected parse error detail")
	}
}

func TestClient_FeedURL(t *testing.T) {
	client := NewClient("http://feeds.internal:8080/", time.Second)
	tests := []struct {
		handle string
		want   string
	}{
		{"alice", "http://feeds.internal:8080/alice/rss"},
		{"@alice", "http://feeds.internal:8080/alice/rss"},
	}
	for _, tt := range tests {
		if got := client.FeedURL(tt.handle); got != tt.want {
			t.Errorf("FeedURL(%q) = %q, want %q", tt.handle, got, tt.want)
		}
	}
}

func TestClient_TransportErrorIsError(t *testing.T) {
	client := NewClient("http://127.0.0.1:1", 500*time.Millisecond)
	client.sleep = func(time.Duration) {}

	_, err := client.FetchFeed(context.Background(), client.FeedURL("alice"))
	if err == nil {
		t.Fatal("expected transport error")
	}
}
