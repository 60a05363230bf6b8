package config

import (
	"os"
	"path/filepath"
	"testing"
)

func TestDefault(t *testing.T) {
	conf := Default()
	if conf.SessionMode != "conservative" {
		t.Errorf("session mode = %q, want conservative", conf.SessionMode)
	}
	if conf.BatchSize != 20 {
		t.Errorf("batch size = %d, want 20", conf.BatchSize)
	}
	if conf.MinFeedsSuccessRatio != 0.9 {
		t.Errorf("success ratio = %v, want 0.9", conf.MinFeedsSuccessRatio)
	}
}

func TestReadWriteRoundTrip(t *testing.T) {
	tmpDir := t.TempDir()
	cfgPath := filepath.Join(tmpDir, "config.toml")

	conf := Default()
	conf.BaseURL = "http://localhost:8080"
	conf.Handles = []string{"alice", "bob"}
	conf.SessionMode = "balanced"
	conf.Filters = map[string]Filter{
		"spam": {MinLength: 10, ExcludePatterns: []string{`(?i)sponsored`}},
	}
	conf.FilterNames = []string{"spam"}

	if err := Write(cfgPath, conf); err != nil {
		t.Fatalf("Write failed: %v", err)
	}

	got, err := Read(cfgPath)
	if err != nil {
		t.Fatalf("Read failed: %v", err)
	}
	if got.BaseURL != conf.BaseURL {
		t.Errorf("base url = %q, want %q", got.BaseURL, conf.BaseURL)
	}
	if len(got.Handles) != 2 || got.Handles[0] != "alice" {
		t.Errorf("handles = %v", got.Handles)
	}
	if got.SessionMode != "balanced" {
		t.Errorf("session mode = %q", got.SessionMode)
	}
	if got.Filters["spam"].MinLength != 10 {
		t.Errorf("filter not preserved: %+v", got.Filters)
	}
}

func TestRead_MissingFileReturnsDefaults(t *testing.T) {
	conf, err := Read(filepath.Join(t.TempDir(), "nope.toml"))
	if !os.IsNotExist(err) {
		t.Fatalf("expected not-exist error, got %v", err)
	}
	if conf.BatchSize != 20 {
		t.Errorf("expected defaults alongside the error, got %+v", conf)
	}
}

func TestCredentials_Validity(t *testing.T) {
	var creds Credentials
	if creds.Gemini.IsValid() || creds.Telegraph.IsValid() || creds.Telegram.IsValid() {
		t.Error("zero credentials must not be valid")
	}

	creds.Gemini = GeminiCredentials{APIKey: "k", Model: "gemini-2.0-flash"}
	creds.Telegraph = TelegraphCredentials{AccessToken: "t"}
	creds.Telegram = TelegramCredentials{AppID: 1, AppHash: "h", BotToken: "b"}
	if !creds.Gemini.IsValid() || !creds.Telegraph.IsValid() || !creds.Telegram.IsValid() {
		t.Error("populated credentials must be valid")
	}
}
