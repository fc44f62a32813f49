package llm

import (
	"context"
	"encoding/json"
)

// Tool describes a structured-output function exposed to the model.
type Tool struct {
	Name        string
	Description string
	InputSchema map[string]any
}

// Request is a single provider-agnostic completion request.
type Request struct {
	System      string
	User        string
	Tools       []Tool
	MaxTokens   int
	Temperature *float32
}

// Result carries the model's reply. When the model answered through a
// tool, ToolName and ToolInput are set; Text holds any plain content.
type Result struct {
	Text      string
	ToolName  string
	ToolInput json.RawMessage
}

// Client is the provider strategy. One implementation exists per provider,
// selected at configuration time.
type Client interface {
	Complete(ctx context.Context, req Request) (*Result, error)
	Provider() string
}
