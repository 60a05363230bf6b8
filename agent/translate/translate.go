package translate

import (
	"context"
	"embed"
	"fmt"
	"log"

	"github.com/firebase/genkit/go/ai"
	"github.com/firebase/genkit/go/genkit"
	"github.com/firebase/genkit/go/plugins/googlegenai"

	"github.com/sumbird/sumbird/config"
)

//go:embed *.prompt
var prompts embed.FS

const (
	agentName  = "translate"
	promptName = "translate"
)

// TranslateAgent uses Gemini to translate a digest while keeping its
// structure intact
type TranslateAgent struct {
	prompt *ai.Prompt
	g      *genkit.Genkit
}

// New creates a new translate agent with its own genkit instance.
func New(ctx context.Context, creds config.GeminiCredentials) (*TranslateAgent, error) {
	if !creds.IsValid() {
		return nil, fmt.Errorf("invalid Gemini credentials: API key and model must be set")
	}

	g := genkit.Init(ctx,
		genkit.WithPlugins(&googlegenai.GoogleAI{
			APIKey: creds.APIKey,
		}),
		genkit.WithPromptFS(prompts),
		genkit.WithPromptDir("."),
		genkit.WithDefaultModel(fmt.Sprintf("googleai/%s", creds.Model)),
	)

	prompt := genkit.LookupPrompt(g, promptName)
	if prompt == nil {
		log.Fatalf("prompt '%s' not found in embedded files", promptName)
	}

	return &TranslateAgent{
		prompt: &prompt,
		g:      g,
	}, nil
}

// Name returns the agent identifier
func (a *TranslateAgent) Name() string {
	return agentName
}

// Process translates the provided digest using Gemini
func (a *TranslateAgent) Process(ctx context.Context, content string) (string, error) {
	resp, err := (*a.prompt).Execute(ctx,
		ai.WithInput(map[string]any{"content": content}))
	if err != nil {
		return "", fmt.Errorf("failed to execute translate prompt: %w", err)
	}

	return resp.Text(), nil
}
