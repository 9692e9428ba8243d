package llm

import (
	"context"
	"fmt"
	"log"
	"strings"

	"github.com/anthropics/anthropic-sdk-go"

	"github.com/councilhq/council/pkg/models"
)

const defaultMaxTokens = 4096

// Invoker performs one model call per participant turn. It implements
// the engine's Invoker interface.
type Invoker struct {
	client *Client
}

// NewInvoker creates an Invoker backed by the given client.
func NewInvoker(client *Client) *Invoker {
	return &Invoker{client: client}
}

// Invoke makes a single message call for the agent and returns the
// response text, with reasoning delimiters applied per the agent's
// reasoning config.
func (i *Invoker) Invoke(ctx context.Context, agent *models.Agent, systemPrompt, input string) (string, error) {
	model := i.client.Model()
	if agent.API.Model != "" {
		model = i.client.TranslateModel(anthropic.Model(agent.API.Model))
	}
	maxTokens := int64(agent.API.MaxTokens)
	if maxTokens <= 0 {
		maxTokens = defaultMaxTokens
	}

	params := anthropic.MessageNewParams{
		Model:     model,
		MaxTokens: maxTokens,
		System: []anthropic.TextBlockParam{
			{Text: systemPrompt},
		},
		Messages: []anthropic.MessageParam{
			anthropic.NewUserMessage(anthropic.NewTextBlock(input)),
		},
	}
	if agent.API.Temperature > 0 {
		params.Temperature = anthropic.Float(agent.API.Temperature)
	}

	resp, err := i.client.sdk().Messages.New(ctx, params)
	if err != nil {
		return "", fmt.Errorf("API call failed: %w", err)
	}

	i.client.Tracker().Add(resp.Usage.InputTokens, resp.Usage.OutputTokens)
	log.Printf("[llm] agent %s: %d in / %d out tokens", agent.ID, resp.Usage.InputTokens, resp.Usage.OutputTokens)

	var b strings.Builder
	for _, block := range resp.Content {
		if block.Type == "text" {
			b.WriteString(block.Text)
		}
	}

	return applyReasoning(b.String(), agent.Reasoning), nil
}

// applyReasoning strips or exposes the agent's delimited reasoning
// block. When hiding, everything between the prefix and suffix markers
// is removed from the output.
func applyReasoning(text string, rc models.ReasoningConfig) string {
	if !rc.Enabled || rc.Prefix == "" || rc.Suffix == "" {
		return text
	}
	if !rc.HideFromOutput {
		return text
	}

	for {
		start := strings.Index(text, rc.Prefix)
		if start < 0 {
			break
		}
		end := strings.Index(text[start+len(rc.Prefix):], rc.Suffix)
		if end < 0 {
			// Unterminated reasoning block: drop everything after the prefix.
			text = text[:start]
			break
		}
		text = text[:start] + text[start+len(rc.Prefix)+end+len(rc.Suffix):]
	}
	return strings.TrimSpace(text)
}
