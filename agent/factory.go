package agent

import (
	"context"
	"fmt"

	"github.com/sumbird/sumbird/agent/summary"
	"github.com/sumbird/sumbird/agent/translate"
	"github.com/sumbird/sumbird/config"
)

// InitAgents creates the requested agents, each wrapped with retry logic.
// It fails fast if any agent initialization fails (missing credentials,
// missing prompt). Returns a map of agent name -> agent instance.
func InitAgents(ctx context.Context, agentTypes []string, creds config.GeminiCredentials) (map[string]Agent, error) {
	agents := make(map[string]Agent)
	retryConfig := DefaultRetryConfig()

	for _, agentType := range agentTypes {
		var baseAgent Agent
		var err error

		switch agentType {
		case "summary":
			baseAgent, err = summary.New(ctx, creds)
			if err != nil {
				return nil, fmt.Errorf("failed to initialize summary agent: %w", err)
			}
		case "translate":
			baseAgent, err = translate.New(ctx, creds)
			if err != nil {
				return nil, fmt.Errorf("failed to initialize translate agent: %w", err)
			}
		default:
			return nil, fmt.Errorf("unknown agent type: %s", agentType)
		}

		agents[agentType] = WithRetry(baseAgent, retryConfig)
	}

	return agents, nil
}
