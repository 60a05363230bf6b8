package telegraph

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
)

// Published is the per-day record of what went to Telegraph. It doubles
// as the checkpoint for the publish stage: re-running a day reads it to
// edit the existing pages instead of creating new ones.
type Published struct {
	Title         string `json:"title"`
	URL           string `json:"url"`
	Path          string `json:"path"`
	FATitle       string `json:"fa_title,omitempty"`
	FAURL         string `json:"fa_url,omitempty"`
	FAPath        string `json:"fa_path,omitempty"`
	PublishedDate string `json:"published_date"`
	SourceDate    string `json:"source_date"`
	FeedsSuccess  int    `json:"feeds_success"`
}

// PublishedPath returns the checkpoint file path for a date.
func PublishedPath(dir, dateStr string) string {
	return filepath.Join(dir, dateStr+".json")
}

// ReadPublished loads the checkpoint for a date. A missing file is not
// an error, it returns (Published{}, false, nil).
func ReadPublished(dir, dateStr string) (Published, bool, error) {
	data, err := os.ReadFile(PublishedPath(dir, dateStr))
	if os.IsNotExist(err) {
		return Published{}, false, nil
	}
	if err != nil {
		return Published{}, false, fmt.Errorf("failed to read published file: %w", err)
	}

	var published Published
	if err := json.Unmarshal(data, &published); err != nil {
		return Published{}, false, fmt.Errorf("failed to parse published file: %w", err)
	}
	return published, true, nil
}

// WritePublished saves the checkpoint for a date.
func WritePublished(dir string, published Published) error {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("failed to create published directory: %w", err)
	}

	data, err := json.MarshalIndent(published, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to encode published data: %w", err)
	}
	if err := os.WriteFile(PublishedPath(dir, published.SourceDate), data, 0o644); err != nil {
		return fmt.Errorf("failed to write published file: %w", err)
	}
	return nil
}
