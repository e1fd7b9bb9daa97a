package memory

import (
	"sync"
	"time"
	"unicode/utf8"
)

type Role string

const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
)

const (
	// Unlimited disables the window budget.
	Unlimited = -1

	summaryTurns      = 5
	summaryPreviewLen = 100
)

// Turn is one message of a conversation.
type Turn struct {
	Role      Role      `json:"role"`
	Content   string    `json:"content"`
	Timestamp time.Time `json:"timestamp"`
}

// Size is the budget cost of a turn, in characters.
func (t Turn) Size() int {
	return utf8.RuneCountInString(t.Content)
}

// Conversation is the ordered, append-only turn log of one session.
type Conversation struct {
	mu    sync.Mutex
	turns []Turn
	now   func() time.Time
}

func NewConversation() *Conversation {
	return &Conversation{now: time.Now}
}

func (c *Conversation) AppendUser(text string) {
	c.append(RoleUser, text)
}

func (c *Conversation) AppendAssistant(text string) {
	c.append(RoleAssistant, text)
}

func (c *Conversation) append(role Role, text string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.turns = append(c.turns, Turn{Role: role, Content: text, Timestamp: c.now()})
}

// Windowed returns the longest suffix of turns whose total Size fits in
// budget. Turns are never split. A negative budget returns every turn.
func (c *Conversation) Windowed(budget int) []Turn {
	c.mu.Lock()
	defer c.mu.Unlock()
	return window(c.turns, budget)
}

func window(turns []Turn, budget int) []Turn {
	if budget < 0 {
		return append([]Turn(nil), turns...)
	}
	start := len(turns)
	used := 0
	for start > 0 {
		size := turns[start-1].Size()
		if used+size > budget {
			break
		}
		used += size
		start--
	}
	return append([]Turn(nil), turns[start:]...)
}

// Turns returns a copy of the whole log.
func (c *Conversation) Turns() []Turn {
	return c.Windowed(Unlimited)
}

func (c *Conversation) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.turns)
}

func (c *Conversation) Clear() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.turns = nil
}

type TurnPreview struct {
	Role    Role   `json:"role"`
	Preview string `json:"preview"`
}

type Summary struct {
	TotalMessages int           `json:"total_messages"`
	MemoryBudget  int           `json:"memory_budget,omitempty"`
	Recent        []TurnPreview `json:"messages_in_history"`
}

// Summary reports the log size and previews of the last few turns.
func (c *Conversation) Summary() Summary {
	c.mu.Lock()
	defer c.mu.Unlock()

	s := Summary{TotalMessages: len(c.turns), Recent: []TurnPreview{}}
	from := max(len(c.turns)-summaryTurns, 0)
	for _, t := range c.turns[from:] {
		s.Recent = append(s.Recent, TurnPreview{Role: t.Role, Preview: truncate(t.Content, summaryPreviewLen)})
	}
	return s
}

func truncate(s string, n int) string {
	if utf8.RuneCountInString(s) <= n {
		return s
	}
	return string([]rune(s)[:n])
}
