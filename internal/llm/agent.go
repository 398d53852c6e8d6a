package llm

import (
	"context"
	"fmt"
	"strings"

	"github.com/nlpodyssey/openai-agents-go/agents"
	"github.com/nlpodyssey/openai-agents-go/modelsettings"
	"github.com/openai/openai-go/v2/packages/param"
)

// Agent completes prompts through a single-turn openai-agents-go run.
type Agent struct {
	provider  agents.ModelProvider
	model     string
	maxTokens int
}

// NewAgent creates an agent-backed completer for model served by provider.
func NewAgent(provider agents.ModelProvider, model string, maxTokens int) *Agent {
	return &Agent{provider: provider, model: model, maxTokens: maxTokens}
}

// NewOpenAIProvider builds a chat-completions model provider. baseURL may be
// empty to use the OpenAI default, or point at any compatible server.
func NewOpenAIProvider(apiKey, baseURL string) agents.ModelProvider {
	params := agents.OpenAIProviderParams{
		APIKey:       param.NewOpt(apiKey),
		UseResponses: param.NewOpt(false),
	}
	if baseURL != "" {
		params.BaseURL = param.NewOpt(baseURL)
	}
	return agents.NewOpenAIProvider(params)
}

// Complete runs the agent once and concatenates the streamed text deltas.
func (a *Agent) Complete(ctx context.Context, system, user string) (string, error) {
	agent := agents.New("interviewer").
		WithInstructions(system).
		WithModel(a.model).
		WithModelSettings(modelsettings.ModelSettings{
			MaxTokens: param.NewOpt(int64(a.maxTokens)),
		})

	runner := agents.Runner{Config: agents.RunConfig{
		ModelProvider:   a.provider,
		MaxTurns:        1,
		TracingDisabled: true,
	}}

	events, errCh, err := runner.RunStreamedChan(ctx, agent, user)
	if err != nil {
		return "", fmt.Errorf("agent stream start: %w", err)
	}

	var text strings.Builder
	for ev := range events {
		raw, ok := ev.(agents.RawResponsesStreamEvent)
		if !ok || raw.Data.Type != "response.output_text.delta" {
			continue
		}
		text.WriteString(raw.Data.Delta)
	}

	if streamErr := <-errCh; streamErr != nil {
		return "", fmt.Errorf("agent stream: %w", streamErr)
	}
	return text.String(), nil
}
