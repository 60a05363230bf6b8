package fetcher

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/sumbird/sumbird/config"
	"github.com/sumbird/sumbird/feed"
)

// WriteExport renders the day's posts as markdown grouped by date and
// source and writes them to the export stage directory. It returns the
// path of the written file.
func WriteExport(cfg config.Config, dateStr string, posts []feed.Post) (string, error) {
	dir := cfg.StageDir("export")
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", fmt.Errorf("failed to create export directory with %w", err)
	}

	path := filepath.Join(dir, dateStr+".md")
	content := renderExport(cfg, dateStr, posts)
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		return "", fmt.Errorf("failed to write export file with %w", err)
	}
	return path, nil
}

func renderExport(cfg config.Config, dateStr string, posts []feed.Post) string {
	var b strings.Builder

	b.WriteString("# " + fmt.Sprintf(cfg.ExportTitleFormat, dateStr) + "\n")

	if len(posts) == 0 {
		b.WriteString("\n# No Posts Found\n")
		return b.String()
	}

	// date -> source -> posts, each level emitted in sorted order so the
	// export is stable for a given post set.
	byDate := map[string]map[string][]feed.Post{}
	for _, post := range posts {
		day := post.Timestamp.Format("2006-01-02")
		if byDate[day] == nil {
			byDate[day] = map[string][]feed.Post{}
		}
		byDate[day][post.Source] = append(byDate[day][post.Source], post)
	}

	for _, day := range sortedKeys(byDate) {
		b.WriteString("\n## " + day + "\n")
		sources := byDate[day]
		for _, source := range sortedKeys(sources) {
			b.WriteString("\n### " + source + "\n\n")
			for _, post := range sources[source] {
				b.WriteString(fmt.Sprintf("- %s: %s\n", post.Timestamp.Format("15:04"), post.Content))
				if post.URL != "" {
					b.WriteString("  " + post.URL + "\n")
				}
			}
		}
	}
	return b.String()
}

func sortedKeys[V any](m map[string]V) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
