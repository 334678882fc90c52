// Package explain turns an analyzed profile into a short natural-language
// summary of where query time went, using an OpenAI-compatible chat endpoint.
// The feature is optional: without an API key the explainer is nil and the
// service reports it as unconfigured.
package explain

import (
	"context"
	"errors"
	"fmt"
	"strings"

	openai "github.com/sashabaranov/go-openai"

	"github.com/aswath86/opensearch-query-profiler/internal/config"
	"github.com/aswath86/opensearch-query-profiler/internal/profile"
)

var ErrNotConfigured = errors.New("explain is not configured")

const systemPrompt = "You are a search performance engineer. You are given timing data " +
	"from an OpenSearch/Elasticsearch query profile. Explain in a few short paragraphs " +
	"which components dominate the query time, why such components are typically slow, " +
	"and what the operator could try next. Be concrete and avoid restating the raw numbers."

type Explainer struct {
	client *openai.Client
	model  string
}

// New returns nil when no API key is configured.
func New(cfg config.ExplainConfig) *Explainer {
	apiKey := strings.TrimSpace(cfg.APIKey)
	if apiKey == "" {
		return nil
	}

	clientConfig := openai.DefaultConfig(apiKey)
	if baseURL := strings.TrimSpace(cfg.BaseURL); baseURL != "" {
		clientConfig.BaseURL = baseURL
	}

	return &Explainer{
		client: openai.NewClientWithConfig(clientConfig),
		model:  strings.TrimSpace(cfg.Model),
	}
}

// Explain produces a narrative for the given report.
func (e *Explainer) Explain(ctx context.Context, report *profile.Report) (string, error) {
	if e == nil {
		return "", ErrNotConfigured
	}
	if report == nil {
		return "", errors.New("no profile loaded")
	}

	resp, err := e.client.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model: e.model,
		Messages: []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleSystem, Content: systemPrompt},
			{Role: openai.ChatMessageRoleUser, Content: BuildPrompt(report)},
		},
	})
	if err != nil {
		return "", fmt.Errorf("chat completion: %w", err)
	}
	if len(resp.Choices) == 0 {
		return "", errors.New("chat completion returned no choices")
	}
	return strings.TrimSpace(resp.Choices[0].Message.Content), nil
}

func (e *Explainer) Configured() bool { return e != nil }

// BuildPrompt renders the report's headline numbers into the user message.
func BuildPrompt(report *profile.Report) string {
	var b strings.Builder

	fmt.Fprintf(&b, "Query took %.2f ms across %d shards.\n", report.TookMS, report.ShardCount())

	if report.HasPhases {
		b.WriteString("\nPhase timings:\n")
		for _, phase := range report.Phases {
			fmt.Fprintf(&b, "- %s: %.2f ms\n", phase.Phase, phase.TimeMS)
		}
	}

	top := report.TopComponents(10)
	if len(top) > 0 {
		b.WriteString("\nMost expensive components:\n")
		for _, component := range top {
			fmt.Fprintf(&b, "- %s %q on shard %s: %.2f ms (%s)\n",
				component.Kind, component.Name, component.Shard, component.TimeMS,
				profile.SeverityFor(profile.PercentageOf(component.TimeMS, report.TookMS)))
		}
	}

	if len(report.SlowShards) > 0 {
		b.WriteString("\nSlowest shards:\n")
		for _, shard := range report.SlowShards {
			fmt.Fprintf(&b, "- %s: %.2f ms\n", shard.Label, shard.TimeMS)
		}
	}

	return b.String()
}
