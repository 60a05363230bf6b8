package telegraph

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/sumbird/sumbird/config"
)

const defaultAPIBase = "https://api.telegra.ph"

// PageResult is the Telegraph API response for a created or edited page.
type PageResult struct {
	Path  string `json:"path"`
	URL   string `json:"url"`
	Title string `json:"title"`
}

// Publisher creates and edits Telegraph pages.
type Publisher struct {
	apiBase    string
	token      string
	authorName string
	httpClient *http.Client
}

// NewPublisher builds a publisher from Telegraph credentials.
func NewPublisher(creds config.TelegraphCredentials) *Publisher {
	return &Publisher{
		apiBase:    defaultAPIBase,
		token:      creds.AccessToken,
		authorName: "Sumbird Bot",
		httpClient: &http.Client{Timeout: 60 * time.Second},
	}
}

// Publish creates a new page, or edits the page at existingPath when it
// is non-empty. Re-publishing a day updates its page in place instead of
// creating duplicates.
func (p *Publisher) Publish(ctx context.Context, page Page, existingPath string) (PageResult, error) {
	endpoint := p.apiBase + "/createPage"
	if existingPath != "" {
		endpoint = p.apiBase + "/editPage/" + existingPath
	}

	content, err := json.Marshal(page.Content)
	if err != nil {
		return PageResult{}, fmt.Errorf("failed to encode page content: %w", err)
	}

	form := url.Values{
		"access_token": {p.token},
		"title":        {page.Title},
		"content":      {string(content)},
		"author_name":  {p.authorName},
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, strings.NewReader(form.Encode()))
	if err != nil {
		return PageResult{}, fmt.Errorf("failed to build telegraph request: %w", err)
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	resp, err := p.httpClient.Do(req)
	if err != nil {
		return PageResult{}, fmt.Errorf("telegraph request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return PageResult{}, fmt.Errorf("telegraph API returned status %d", resp.StatusCode)
	}

	var body struct {
		OK     bool       `json:"ok"`
		Error  string     `json:"error"`
		Result PageResult `json:"result"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return PageResult{}, fmt.Errorf("failed to decode telegraph response: %w", err)
	}
	if !body.OK {
		return PageResult{}, fmt.Errorf("telegraph API error: %s", body.Error)
	}
	return body.Result, nil
}
