// Package agent runs Gemini-backed transformations over the day's post
// digest: summarization and translation, each behind a retry wrapper
// tuned for free-tier quota errors.
package agent

import "context"

// Agent transforms one digest document into another.
type Agent interface {
	// Process takes content and returns the processed document
	Process(ctx context.Context, content string) (string, error)

	// Name returns the agent identifier (e.g., "summary")
	Name() string
}

// Pipeline applies agents in order, feeding each agent's output into the
// next one.
func Pipeline(ctx context.Context, agents map[string]Agent, order []string, content string) (string, error) {
	for _, name := range order {
		a, ok := agents[name]
		if !ok {
			continue
		}
		out, err := a.Process(ctx, content)
		if err != nil {
			return "", err
		}
		content = out
	}
	return content, nil
}
