package engine

import (
	"context"

	"github.com/councilhq/council/pkg/models"
)

// Invoker is the agent-invocation collaborator: one LLM call per
// participant. Implementations live outside the engine (internal/llm);
// failures surface as AgentInvocationError to the retry policy.
type Invoker interface {
	// Invoke performs one model call for the agent and returns the
	// response text.
	Invoke(ctx context.Context, agent *models.Agent, systemPrompt, input string) (string, error)
}

// InvokerFunc adapts a function to the Invoker interface.
type InvokerFunc func(ctx context.Context, agent *models.Agent, systemPrompt, input string) (string, error)

// Invoke implements Invoker.
func (f InvokerFunc) Invoke(ctx context.Context, agent *models.Agent, systemPrompt, input string) (string, error) {
	return f(ctx, agent, systemPrompt, input)
}

// Curator is the external content-retrieval collaborator used by
// crud/rag action types and injection-mode token mappings.
type Curator interface {
	// ExecutePipeline runs the named curation pipeline against the
	// query context and returns the result text.
	ExecutePipeline(ctx context.Context, pipelineID, queryContext string) (string, error)
}

// Host is the external delivery target. The engine calls these
// operations and never inspects host internals.
type Host interface {
	// AppendMessage delivers text to the host conversation.
	AppendMessage(text string, metadata map[string]string) error
	// ProvideGenerationPrompt hands the host a compiled prompt to use
	// for its own generation instead of a direct message.
	ProvideGenerationPrompt(text string) error
}
