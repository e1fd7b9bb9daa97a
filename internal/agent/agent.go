package agent

import (
	"context"
	"fmt"
	"log"
	"runtime/debug"
	"strings"
	"unicode/utf8"

	"github.com/stellarlinkco/huarazbot/internal/config"
	"github.com/stellarlinkco/huarazbot/internal/llm"
	"github.com/stellarlinkco/huarazbot/internal/memory"
)

const (
	// Apology is the user-facing text of a failed query.
	Apology = "Disculpa, ocurrió un error procesando tu consulta. Por favor, intenta de nuevo."

	iterationLimitText = "Lo siento, no pude completar tu consulta a tiempo. ¿Podrías reformularla o ser más específico?"
)

// ToolExecutor runs tools by name. *tools.Registry implements it.
type ToolExecutor interface {
	Specs() []llm.ToolSpec
	Execute(ctx context.Context, name string, args map[string]any) string
}

type Options struct {
	SystemPrompt  string
	MaxIterations int
	// MemoryBudget is the character budget of the history sent with a query.
	MemoryBudget int
}

// Result is the outcome of one query. Error holds the failure detail and is
// meant for logs, not for users.
type Result struct {
	Success    bool     `json:"success"`
	Text       string   `json:"response"`
	Error      string   `json:"error,omitempty"`
	ToolsUsed  []string `json:"tool_calls"`
	Iterations int      `json:"-"`
}

// Agent runs the model/tool loop for one query at a time. It holds no
// per-session state; the caller passes the session's conversation.
type Agent struct {
	client llm.Client
	tools  ToolExecutor
	opts   Options
}

func New(client llm.Client, tools ToolExecutor, opts Options) *Agent {
	if opts.SystemPrompt == "" {
		opts.SystemPrompt = SystemPrompt
	}
	if opts.MaxIterations <= 0 {
		opts.MaxIterations = config.DefaultMaxToolIterations
	}
	if opts.MemoryBudget <= 0 {
		opts.MemoryBudget = config.DefaultMemoryBudget
	}
	return &Agent{client: client, tools: tools, opts: opts}
}

func (a *Agent) Options() Options { return a.opts }

// Process answers text within conv. The user turn is always recorded; the
// assistant turn only when the query succeeded. Failures, including panics,
// come back as an unsuccessful Result with the apology text.
func (a *Agent) Process(ctx context.Context, conv *memory.Conversation, text string) (res Result) {
	defer func() {
		if p := recover(); p != nil {
			log.Printf("[agent] panic: %v\n%s", p, debug.Stack())
			res = failed(fmt.Errorf("panic: %v", p), res.ToolsUsed)
		}
	}()

	budget := max(a.opts.MemoryBudget-utf8.RuneCountInString(text), 0)
	history := conv.Windowed(budget)
	// Providers expect the first message to come from the user.
	for len(history) > 0 && history[0].Role != memory.RoleUser {
		history = history[1:]
	}
	conv.AppendUser(text)

	messages := make([]llm.Message, 0, len(history)+1)
	for _, turn := range history {
		messages = append(messages, llm.Message{Role: llm.Role(turn.Role), Content: turn.Content})
	}
	messages = append(messages, llm.Message{Role: llm.RoleUser, Content: text})

	answer, used, iterations, err := a.run(ctx, messages)
	res.ToolsUsed = used
	res.Iterations = iterations
	if err != nil {
		log.Printf("[agent] query failed after %d iterations: %v", iterations, err)
		return failed(err, used)
	}

	conv.AppendAssistant(answer)
	res.Success = true
	res.Text = answer
	return res
}

func (a *Agent) run(ctx context.Context, messages []llm.Message) (string, []string, int, error) {
	specs := a.tools.Specs()
	used := []string{}
	partial := ""

	for i := 1; i <= a.opts.MaxIterations; i++ {
		if err := ctx.Err(); err != nil {
			return "", used, i - 1, err
		}

		reply, err := a.client.Complete(ctx, llm.Request{
			System:   a.opts.SystemPrompt,
			Messages: messages,
			Tools:    specs,
		})
		if err != nil {
			return "", used, i, fmt.Errorf("llm: %w", err)
		}
		if !reply.WantsTools() {
			return reply.Text, used, i, nil
		}
		if strings.TrimSpace(reply.Text) != "" {
			partial = reply.Text
		}

		messages = append(messages, llm.Message{Role: llm.RoleAssistant, Content: reply.Text, ToolCalls: reply.ToolCalls})
		results := make([]llm.ToolResult, 0, len(reply.ToolCalls))
		for _, call := range reply.ToolCalls {
			log.Printf("[agent] tool %s %v", call.Name, call.Arguments)
			out := a.tools.Execute(ctx, call.Name, call.Arguments)
			used = append(used, call.Name)
			results = append(results, llm.ToolResult{CallID: call.ID, Name: call.Name, Content: out})
		}
		messages = append(messages, llm.Message{Role: llm.RoleTool, Results: results})
	}

	log.Printf("[agent] reached %d tool iterations", a.opts.MaxIterations)
	if partial != "" {
		return partial, used, a.opts.MaxIterations, nil
	}
	return iterationLimitText, used, a.opts.MaxIterations, nil
}

func failed(err error, used []string) Result {
	if used == nil {
		used = []string{}
	}
	return Result{Success: false, Text: Apology, Error: err.Error(), ToolsUsed: used}
}
