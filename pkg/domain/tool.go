package domain

// ToolCall is a tool invocation requested by the agent.
// Compatible with OpenAI/MCP tool call schemas.
type ToolCall struct {
	ID   string         `json:"id" yaml:"id" mapstructure:"id"`                         // Unique within one agent turn
	Name string         `json:"name" yaml:"name" mapstructure:"name"`                   // Function name to call
	Args map[string]any `json:"args,omitempty" yaml:"args,omitempty" mapstructure:"args"` // Arguments for the function
}

// ToolSpec describes a tool available to the model.
// This is used for generating schemas/prompts.
type ToolSpec struct {
	Name        string         `json:"name" yaml:"name" mapstructure:"name"`
	Description string         `json:"description" yaml:"description" mapstructure:"description"`
	Parameters  map[string]any `json:"parameters,omitempty" yaml:"parameters,omitempty" mapstructure:"parameters"`
}
