// Package llm is the boundary to the hosted language model. Callers see one
// request/reply shape; provider differences stay inside the adapters.
package llm

import (
	"context"
	"errors"
)

type Role string

const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
	RoleTool      Role = "tool"
)

// ErrEmptyReply is returned when the model produced neither text nor tool calls.
var ErrEmptyReply = errors.New("model returned an empty reply")

type ToolCall struct {
	ID        string
	Name      string
	Arguments map[string]any
}

type ToolResult struct {
	CallID  string
	Name    string
	Content string
}

// Message is one entry of the conversation sent to the model. Assistant
// messages may carry ToolCalls; tool messages carry Results.
type Message struct {
	Role      Role
	Content   string
	ToolCalls []ToolCall
	Results   []ToolResult
}

type ToolSpec struct {
	Name        string
	Description string
	Parameters  map[string]any
}

type Request struct {
	System   string
	Messages []Message
	Tools    []ToolSpec
}

// Reply is either a final answer (Text, no ToolCalls) or a request to run tools.
type Reply struct {
	Text      string
	ToolCalls []ToolCall
}

func (r Reply) WantsTools() bool { return len(r.ToolCalls) > 0 }

// Client completes one model round trip.
type Client interface {
	Complete(ctx context.Context, req Request) (Reply, error)
}

// ClientFunc adapts a function to Client.
type ClientFunc func(ctx context.Context, req Request) (Reply, error)

func (f ClientFunc) Complete(ctx context.Context, req Request) (Reply, error) {
	return f(ctx, req)
}
