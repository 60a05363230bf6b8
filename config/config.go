package config

import (
	"fmt"
	"log/slog"
	"os"
	"path"

	"github.com/BurntSushi/toml"
)

const baseCfgPath = "sumbird/config.toml"

// Config holds the whole pipeline configuration.
type Config struct {
	// Feed source
	BaseURL  string   `toml:"base_url"` // feed host, e.g. "http://localhost:8080"
	Handles  []string `toml:"handles"`
	Timezone string   `toml:"timezone"`

	// Fetch pacing
	SessionMode      string  `toml:"session_mode"` // conservative, balanced or aggressive
	BatchSize        int     `toml:"batch_size"`
	BatchDelaySec    float64 `toml:"batch_delay_sec"`
	RSSTimeoutSec    int     `toml:"rss_timeout_sec"`
	RetryMaxAttempts int     `toml:"retry_max_attempts"`
	RateLimitMax     int     `toml:"rate_limit_max_requests"`
	RateLimitWindow  int     `toml:"rate_limit_window_minutes"`

	// Run success policy
	MinFeedsTotal        int     `toml:"min_feeds_total"`
	MinFeedsSuccessRatio float64 `toml:"min_feeds_success_ratio"`

	// Artifact locations
	OutputDirectory string `toml:"output_directory"` // stage artifacts live in subdirectories
	DatabasePath    string `toml:"database_path"`

	// Titles ("%s" is replaced with the date)
	ExportTitleFormat  string `toml:"export_title_format"`
	SummaryTitleFormat string `toml:"summary_title_format"`

	// Post filters
	Filters     map[string]Filter `toml:"filters"`
	FilterNames []string          `toml:"filter_names"` // pipeline applied to every post

	// Distribution
	TelegramChannel string `toml:"telegram_channel"` // e.g. "@sumbird"
	Footer          Footer `toml:"footer"`
}

// Filter defines rules for excluding extracted posts.
type Filter struct {
	MinLength       int      `toml:"min_length"`
	MinWords        int      `toml:"min_words"`
	ExcludePatterns []string `toml:"exclude_patterns"`
}

// Footer is appended to published pages.
type Footer struct {
	Text     string `toml:"text"`
	LinkText string `toml:"link_text"`
	LinkURL  string `toml:"link_url"`
}

// StageDir returns the directory a stage writes its dated artifacts into.
func (c Config) StageDir(stage string) string {
	return path.Join(c.OutputDirectory, stage)
}

func Read(cfgPath string) (Config, error) {
	conf := Default()
	dat, err := os.ReadFile(cfgPath)
	if err != nil {
		return conf, err
	}
	_, err = toml.Decode(string(dat), &conf)
	if err != nil {
		return conf, fmt.Errorf("failed to decode config at %s with %w", cfgPath, err)
	}
	return conf, nil
}

func Write(cfgPath string, cfg Config) error {
	blob, err := toml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("failed to encode config with %w", err)
	}
	basePath := path.Dir(cfgPath)
	err = os.MkdirAll(basePath, os.ModePerm)
	if err != nil {
		return fmt.Errorf("failed to create base config directory at '%s' with %w", basePath, err)
	}
	err = os.WriteFile(cfgPath, blob, 0644)
	if err != nil {
		return fmt.Errorf("failed to write into config file at '%s' with %w", cfgPath, err)
	}
	slog.Info("config written", "at", cfgPath)
	return nil
}

func Default() Config {
	var home = os.Getenv("HOME")
	var dataBase = path.Join(home, ".local/share/sumbird")
	return Config{
		Timezone:             "UTC",
		SessionMode:          "conservative",
		BatchSize:            20,
		BatchDelaySec:        30,
		RSSTimeoutSec:        30,
		RetryMaxAttempts:     3,
		RateLimitMax:         800,
		RateLimitWindow:      15,
		MinFeedsTotal:        50,
		MinFeedsSuccessRatio: 0.9,
		OutputDirectory:      path.Join(home, "sumbird"),
		DatabasePath:         path.Join(dataBase, "data.db"),
		ExportTitleFormat:    "Posts for %s",
		SummaryTitleFormat:   "Daily Summary - %s",
	}
}

func DefaultPath() string {
	var xdgHome = os.Getenv("XDG_CONFIG_HOME")
	if xdgHome != "" {
		return path.Join(xdgHome, baseCfgPath)
	}

	var home = os.Getenv("HOME")
	if home != "" {
		return path.Join(home, ".config", baseCfgPath)
	}

	panic("unclear where to search for the config file")
}
