package telegraph

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"

	"github.com/sumbird/sumbird/config"
)

func TestConvert_TitleFromH1(t *testing.T) {
	page, err := Convert("<h1>AI Updates on 2025-06-01</h1><p>hello</p>", "fallback")
	if err != nil {
		t.Fatalf("Convert failed: %v", err)
	}
	if page.Title != "AI Updates on 2025-06-01" {
		t.Errorf("unexpected title: %s", page.Title)
	}
	if len(page.Content) != 1 || page.Content[0].Tag != "p" {
		t.Fatalf("h1 should not appear in content: %+v", page.Content)
	}
}

func TestConvert_DefaultTitle(t *testing.T) {
	page, err := Convert("<p>no heading here</p>", "AI Updates")
	if err != nil {
		t.Fatalf("Convert failed: %v", err)
	}
	if page.Title != "AI Updates" {
		t.Errorf("unexpected title: %s", page.Title)
	}
}

func TestConvert_HeadingsDowngraded(t *testing.T) {
	page, err := Convert("<h1>t</h1><h2>section</h2><h3>sub</h3>", "x")
	if err != nil {
		t.Fatalf("Convert failed: %v", err)
	}
	if len(page.Content) != 2 {
		t.Fatalf("unexpected content: %+v", page.Content)
	}
	if page.Content[0].Tag != "h4" {
		t.Errorf("h2 should become h4, got %s", page.Content[0].Tag)
	}
	if page.Content[1].Tag != "h3" {
		t.Errorf("h3 should stay h3, got %s", page.Content[1].Tag)
	}
}

func TestConvert_LinksKeepHref(t *testing.T) {
	page, err := Convert(`<p><a href="https://x.com/alice/status/1">post</a></p>`, "x")
	if err != nil {
		t.Fatalf("Convert failed: %v", err)
	}
	link := page.Content[0].Children[0]
	if link.Tag != "a" || link.Attrs["href"] != "https://x.com/alice/status/1" {
		t.Errorf("unexpected link node: %+v", link)
	}
	if len(link.Children) != 1 || link.Children[0].Text != "post" {
		t.Errorf("unexpected link children: %+v", link.Children)
	}
}

func TestConvert_DisallowedTagUnwrapped(t *testing.T) {
	page, err := Convert("<div><p>kept</p></div><span>inline</span>", "x")
	if err != nil {
		t.Fatalf("Convert failed: %v", err)
	}
	// div and span wrappers dropped, their content kept.
	if len(page.Content) != 2 {
		t.Fatalf("unexpected content: %+v", page.Content)
	}
	if page.Content[0].Tag != "p" {
		t.Errorf("expected p from inside div, got %+v", page.Content[0])
	}
	if page.Content[1].Text != "inline" {
		t.Errorf("expected bare text from span, got %+v", page.Content[1])
	}
}

func TestAppendFooter(t *testing.T) {
	page := Page{Title: "t", Content: []Node{{Tag: "p", Children: []Node{{Text: "body"}}}}}
	page = AppendFooter(page, "Generated by", "Sumbird", "https://github.com/sumbird/sumbird")

	footer := page.Content[len(page.Content)-1]
	if footer.Tag != "p" || len(footer.Children) != 2 {
		t.Fatalf("unexpected footer: %+v", footer)
	}
	if footer.Children[0].Text != "Generated by " {
		t.Errorf("unexpected footer text: %q", footer.Children[0].Text)
	}
	if footer.Children[1].Attrs["href"] != "https://github.com/sumbird/sumbird" {
		t.Errorf("unexpected footer link: %+v", footer.Children[1])
	}
}

func TestNodeJSONRoundTrip(t *testing.T) {
	node := Node{Tag: "p", Children: []Node{
		{Text: "see "},
		{Tag: "a", Attrs: map[string]string{"href": "https://example.com"}, Children: []Node{{Text: "here"}}},
	}}

	data, err := json.Marshal(node)
	if err != nil {
		t.Fatalf("marshal failed: %v", err)
	}
	// Text nodes must encode as bare strings per the Telegraph API.
	if !strings.Contains(string(data), `"see "`) {
		t.Errorf("text child not encoded as string: %s", data)
	}

	var back Node
	if err := json.Unmarshal(data, &back); err != nil {
		t.Fatalf("unmarshal failed: %v", err)
	}
	if back.Children[1].Attrs["href"] != "https://example.com" {
		t.Errorf("round trip lost attrs: %+v", back)
	}
}

func TestPublisher_CreateAndEdit(t *testing.T) {
	var gotPath string
	var gotForm url.Values
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		if err := r.ParseForm(); err != nil {
			t.Errorf("bad form: %v", err)
		}
		gotForm = r.PostForm
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"ok":true,"result":{"path":"Test-06-01","url":"https://telegra.ph/Test-06-01","title":"Test"}}`))
	}))
	defer srv.Close()

	pub := NewPublisher(config.TelegraphCredentials{AccessToken: "token"})
	pub.apiBase = srv.URL

	page := Page{Title: "Test", Content: []Node{{Tag: "p", Children: []Node{{Text: "hi"}}}}}

	result, err := pub.Publish(context.Background(), page, "")
	if err != nil {
		t.Fatalf("Publish failed: %v", err)
	}
	if gotPath != "/createPage" {
		t.Errorf("expected createPage, got %s", gotPath)
	}
	if gotForm.Get("access_token") != "token" {
		t.Error("access token not sent")
	}
	if !strings.Contains(gotForm.Get("content"), `"tag":"p"`) {
		t.Errorf("content not serialized: %s", gotForm.Get("content"))
	}
	if result.URL != "https://telegra.ph/Test-06-01" {
		t.Errorf("unexpected result: %+v", result)
	}

	if _, err := pub.Publish(context.Background(), page, "Test-06-01"); err != nil {
		t.Fatalf("edit Publish failed: %v", err)
	}
	if gotPath != "/editPage/Test-06-01" {
		t.Errorf("expected editPage path, got %s", gotPath)
	}
}

func TestPublisher_APIError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"ok":false,"error":"ACCESS_TOKEN_INVALID"}`))
	}))
	defer srv.Close()

	pub := NewPublisher(config.TelegraphCredentials{AccessToken: "bad"})
	pub.apiBase = srv.URL

	_, err := pub.Publish(context.Background(), Page{Title: "t"}, "")
	if err == nil {
		t.Fatal("expected error, got nil")
	}
	if !strings.Contains(err.Error(), "ACCESS_TOKEN_INVALID") {
		t.Errorf("unexpected error: %v", err)
	}
}

func TestPublishedRoundTrip(t *testing.T) {
	dir := t.TempDir()

	published := Published{
		Title:         "AI Updates on 2025-06-01",
		URL:           "https://telegra.ph/AI-Updates-06-01",
		Path:          "AI-Updates-06-01",
		PublishedDate: "2025-06-02T01:00:00+03:30",
		SourceDate:    "2025-06-01",
		FeedsSuccess:  42,
	}
	if err := WritePublished(dir, published); err != nil {
		t.Fatalf("WritePublished failed: %v", err)
	}

	back, found, err := ReadPublished(dir, "2025-06-01")
	if err != nil {
		t.Fatalf("ReadPublished failed: %v", err)
	}
	if !found {
		t.Fatal("checkpoint not found")
	}
	if back != published {
		t.Errorf("round trip mismatch: %+v vs %+v", back, published)
	}
}

func TestReadPublished_Missing(t *testing.T) {
	_, found, err := ReadPublished(t.TempDir(), "2025-06-01")
	if err != nil {
		t.Fatalf("ReadPublished failed: %v", err)
	}
	if found {
		t.Error("expected missing checkpoint")
	}
}
