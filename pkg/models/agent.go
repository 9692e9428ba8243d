package models

// Agent represents a configured council member: one LLM persona that can
// be assigned to positions and invoked by pipeline actions.
type Agent struct {
	// ID is the unique identifier for this agent.
	ID string `json:"id" yaml:"id"`
	// Name is the display name of the agent.
	Name string `json:"name" yaml:"name"`
	// API holds the model invocation settings for this agent.
	API APIConfig `json:"api" yaml:"api"`
	// SystemPrompt describes how the agent's system prompt is sourced.
	SystemPrompt SystemPromptSpec `json:"system_prompt" yaml:"system_prompt"`
	// Reasoning holds optional thinking-block configuration.
	Reasoning ReasoningConfig `json:"reasoning" yaml:"reasoning"`
}

// Clone returns a deep copy of the agent. The engine snapshots agents at
// dispatch time so registry edits never affect an in-flight action.
func (a *Agent) Clone() *Agent {
	cp := *a
	return &cp
}

// APIConfig holds per-agent model invocation settings.
type APIConfig struct {
	// Endpoint is an optional override for the API base URL.
	Endpoint string `json:"endpoint,omitempty" yaml:"endpoint,omitempty"`
	// Model is the model identifier to invoke.
	Model string `json:"model" yaml:"model"`
	// Temperature is the sampling temperature.
	Temperature float64 `json:"temperature" yaml:"temperature"`
	// MaxTokens caps the response length.
	MaxTokens int `json:"max_tokens" yaml:"max_tokens"`
	// UseHostConnection routes the call through the host's own
	// connection settings instead of the agent's endpoint.
	UseHostConnection bool `json:"use_host_connection" yaml:"use_host_connection"`
}

// PromptSource identifies where an agent's system prompt comes from.
type PromptSource string

const (
	// PromptSourceCustom uses the literal text stored on the agent.
	PromptSourceCustom PromptSource = "custom"
	// PromptSourcePreset loads the prompt from a named preset.
	PromptSourcePreset PromptSource = "preset"
	// PromptSourceTokens builds the prompt from run variables at dispatch time.
	PromptSourceTokens PromptSource = "tokens"
)

// Valid returns true if the source is a known value.
func (s PromptSource) Valid() bool {
	switch s {
	case PromptSourceCustom, PromptSourcePreset, PromptSourceTokens:
		return true
	default:
		return false
	}
}

// SystemPromptSpec describes how an agent's system prompt is resolved.
type SystemPromptSpec struct {
	// Source selects the prompt origin.
	Source PromptSource `json:"source" yaml:"source"`
	// Text is the resolved prompt text. For the custom source it is
	// authoritative; for preset/tokens it holds the last resolution.
	Text string `json:"text" yaml:"text"`
	// PresetKey names the preset to load when Source is preset.
	PresetKey string `json:"preset_key,omitempty" yaml:"preset_key,omitempty"`
}

// ReasoningConfig controls visible-thinking handling for an agent.
type ReasoningConfig struct {
	// Enabled turns reasoning block extraction on.
	Enabled bool `json:"enabled" yaml:"enabled"`
	// Prefix is the delimiter that opens a reasoning block.
	Prefix string `json:"prefix,omitempty" yaml:"prefix,omitempty"`
	// Suffix is the delimiter that closes a reasoning block.
	Suffix string `json:"suffix,omitempty" yaml:"suffix,omitempty"`
	// HideFromOutput strips reasoning blocks from the delivered text.
	HideFromOutput bool `json:"hide_from_output" yaml:"hide_from_output"`
}

// SelectionMode determines how an agent pool picks its next agent.
type SelectionMode string

const (
	// SelectRandom picks a pool member uniformly at random.
	SelectRandom SelectionMode = "random"
	// SelectRoundRobin rotates through pool members in order.
	SelectRoundRobin SelectionMode = "round_robin"
	// SelectWeighted picks proportionally to configured weights.
	SelectWeighted SelectionMode = "weighted"
)

// Valid returns true if the mode is a known value.
func (m SelectionMode) Valid() bool {
	switch m {
	case SelectRandom, SelectRoundRobin, SelectWeighted:
		return true
	default:
		return false
	}
}

// AgentPool groups agents for positions that rotate among several
// members instead of binding a single fixed agent.
type AgentPool struct {
	// ID is the unique identifier for this pool.
	ID string `json:"id" yaml:"id"`
	// AgentIDs lists the member agents in definition order.
	AgentIDs []string `json:"agent_ids" yaml:"agent_ids"`
	// Mode selects how the next agent is chosen.
	Mode SelectionMode `json:"mode" yaml:"mode"`
	// Weights holds per-agent weights for the weighted mode, keyed by
	// agent ID. Weights need not sum to 1; they are normalized at
	// selection time.
	Weights map[string]float64 `json:"weights,omitempty" yaml:"weights,omitempty"`
}
