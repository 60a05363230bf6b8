package telegram

import (
	"strings"
	"testing"

	"github.com/sumbird/sumbird/telegraph"
)

func TestFormatPost_BothLanguages(t *testing.T) {
	published := telegraph.Published{
		Title:      "AI Updates on 2025-06-01",
		URL:        "https://telegra.ph/AI-Updates-06-01",
		FAURL:      "https://telegra.ph/AI-Updates-06-01-fa",
		SourceDate: "2025-06-01",
	}

	text := FormatPost(published, "@sumbird")

	if !strings.HasPrefix(text, "<b>AI Updates on 2025-06-01</b>") {
		t.Errorf("missing bold title: %s", text)
	}
	if !strings.Contains(text, `<a href="https://telegra.ph/AI-Updates-06-01">English Summary</a>`) {
		t.Errorf("missing English link: %s", text)
	}
	if !strings.Contains(text, `<a href="https://telegra.ph/AI-Updates-06-01-fa">Persian Summary</a>`) {
		t.Errorf("missing Persian link: %s", text)
	}
	if !strings.HasSuffix(text, "@sumbird") {
		t.Errorf("missing channel signature: %s", text)
	}
}

func TestFormatPost_EnglishOnly(t *testing.T) {
	published := telegraph.Published{
		Title:      "AI Updates on 2025-06-01",
		URL:        "https://telegra.ph/AI-Updates-06-01",
		SourceDate: "2025-06-01",
	}

	text := FormatPost(published, "")

	if strings.Contains(text, "Persian") {
		t.Errorf("Persian link without FA URL: %s", text)
	}
}

func TestFormatPost_FallbackTitleAndEscaping(t *testing.T) {
	published := telegraph.Published{SourceDate: "2025-06-01"}
	text := FormatPost(published, "")
	if !strings.Contains(text, "AI Updates on 2025-06-01") {
		t.Errorf("missing fallback title: %s", text)
	}

	published.Title = "Fast & <Furious>"
	text = FormatPost(published, "")
	if !strings.Contains(text, "Fast &amp; &lt;Furious&gt;") {
		t.Errorf("title not HTML-escaped: %s", text)
	}
}

func TestValidateChannelID(t *testing.T) {
	valid := []string{"@sumbird", "-1001234567890", "-123456789", "123456"}
	for _, id := range valid {
		if err := ValidateChannelID(id); err != nil {
			t.Errorf("ValidateChannelID(%q) = %v, want nil", id, err)
		}
	}

	invalid := []string{"", "@", "sumbird", "-100abc", "-", "12a34"}
	for _, id := range invalid {
		if err := ValidateChannelID(id); err == nil {
			t.Errorf("ValidateChannelID(%q) = nil, want error", id)
		}
	}
}
