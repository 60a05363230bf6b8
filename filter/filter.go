package filter

import (
	"log/slog"
	"regexp"
	"unicode"

	"github.com/sumbird/sumbird/config"
	"github.com/sumbird/sumbird/feed"
)

// Pipeline applies a series of named filters to extracted posts
type Pipeline struct {
	filters map[string]*compiledFilter
}

// compiledFilter contains compiled regex patterns for efficient matching
type compiledFilter struct {
	config          config.Filter
	excludePatterns []*regexp.Regexp
}

// NewPipeline creates a new filter pipeline from config
func NewPipeline(filtersConfig map[string]config.Filter) (*Pipeline, error) {
	compiled := make(map[string]*compiledFilter)

	for name, filterCfg := range filtersConfig {
		cf := &compiledFilter{
			config:          filterCfg,
			excludePatterns: make([]*regexp.Regexp, 0, len(filterCfg.ExcludePatterns)),
		}

		// Compile regex patterns
		for _, pattern := range filterCfg.ExcludePatterns {
			re, err := regexp.Compile(pattern)
			if err != nil {
				slog.Warn("invalid regex pattern in filter", "filter", name, "pattern", pattern, "error", err)
				continue
			}
			cf.excludePatterns = append(cf.excludePatterns, re)
		}

		compiled[name] = cf
	}

	return &Pipeline{filters: compiled}, nil
}

// ShouldInclude returns true if the post passes all filters in the pipeline.
// filterNames is a list of filter names to apply in order.
func (p *Pipeline) ShouldInclude(post feed.Post, filterNames []string) (bool, string) {
	if len(filterNames) == 0 {
		return true, "" // No filters = include everything
	}

	for _, filterName := range filterNames {
		filter, exists := p.filters[filterName]
		if !exists {
			slog.Warn("filter not found, skipping", "filter_name", filterName)
			continue
		}

		if shouldInclude, reason := applyFilter(post, filter, filterName); !shouldInclude {
			return false, reason
		}
	}

	return true, ""
}

// Apply runs the pipeline over a post list and returns the posts that pass.
func (p *Pipeline) Apply(posts []feed.Post, filterNames []string) []feed.Post {
	if len(filterNames) == 0 {
		return posts
	}

	kept := make([]feed.Post, 0, len(posts))
	for _, post := range posts {
		include, reason := p.ShouldInclude(post, filterNames)
		if !include {
			slog.Debug("post filtered out", "source", post.Source, "reason", reason, "url", post.URL)
			continue
		}
		kept = append(kept, post)
	}
	return kept
}

// applyFilter applies a single filter to a post
func applyFilter(post feed.Post, filter *compiledFilter, filterName string) (bool, string) {
	text := post.Content

	// 1. Check minimum length
	if filter.config.MinLength > 0 && len(text) < filter.config.MinLength {
		return false, filterName + ":min_length"
	}

	// 2. Check minimum word count
	if filter.config.MinWords > 0 {
		wordCount := countWords(text)
		if wordCount < filter.config.MinWords {
			return false, filterName + ":min_words"
		}
	}

	// 3. Check exclude patterns
	for i, pattern := range filter.excludePatterns {
		if pattern.MatchString(text) {
			return false, filterName + ":exclude_pattern[" + filter.config.ExcludePatterns[i] + "]"
		}
	}

	return true, ""
}

// countWords counts the number of words in text
func countWords(text string) int {
	words := 0
	inWord := false

	for _, r := range text {
		if unicode.IsLetter(r) || unicode.IsNumber(r) {
			if !inWord {
				words++
				inWord = true
			}
		} else {
			inWord = false
		}
	}

	return words
}
