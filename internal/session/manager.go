package session

import (
	"context"
	"log"
	"sync"
	"time"

	"github.com/stellarlinkco/huarazbot/internal/agent"
	"github.com/stellarlinkco/huarazbot/internal/memory"
)

// DefaultID is used when a caller does not name its session.
const DefaultID = "default"

// Processor answers one query against a session's conversation.
// *agent.Agent implements it.
type Processor interface {
	Process(ctx context.Context, conv *memory.Conversation, text string) agent.Result
}

// Entry is one transcript line, as served by the history endpoints.
type Entry struct {
	Role      string    `json:"role"`
	Content   string    `json:"content"`
	Timestamp time.Time `json:"timestamp"`
}

type session struct {
	// queryMu serializes queries of one session.
	queryMu sync.Mutex

	conv       *memory.Conversation
	mu         sync.Mutex
	transcript []Entry
	lastActive time.Time
}

type Stats struct {
	Conversations int `json:"total_conversations"`
	Messages      int `json:"total_messages"`
}

// Manager owns per-session state. Different sessions run concurrently;
// queries of the same session run one after the other.
type Manager struct {
	proc    Processor
	idleTTL time.Duration
	now     func() time.Time

	mu       sync.Mutex
	sessions map[string]*session
}

func NewManager(proc Processor, idleTTL time.Duration) *Manager {
	return &Manager{
		proc:     proc,
		idleTTL:  idleTTL,
		now:      time.Now,
		sessions: make(map[string]*session),
	}
}

func (m *Manager) get(id string, create bool) *session {
	if id == "" {
		id = DefaultID
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	s, ok := m.sessions[id]
	switch {
	case !ok && create:
		s = &session{conv: memory.NewConversation(), lastActive: m.now()}
		m.sessions[id] = s
		log.Printf("[session] created %s", id)
	case ok && create:
		// Sweep holds m.mu too, so a touched session is not idle when it looks.
		s.mu.Lock()
		s.lastActive = m.now()
		s.mu.Unlock()
	}
	return s
}

// live reports whether s is still the session registered under id.
func (m *Manager) live(id string, s *session) bool {
	if id == "" {
		id = DefaultID
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.sessions[id] == s
}

// Process runs text through the processor in the context of session id and
// records both sides in the transcript.
func (m *Manager) Process(ctx context.Context, id, text string) agent.Result {
	s := m.get(id, true)
	s.queryMu.Lock()
	for !m.live(id, s) {
		s.queryMu.Unlock()
		s = m.get(id, true)
		s.queryMu.Lock()
	}
	defer s.queryMu.Unlock()

	s.record("user", text, m.now())
	res := m.proc.Process(ctx, s.conv, text)
	s.record("assistant", res.Text, m.now())
	return res
}

func (s *session) record(role, content string, at time.Time) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.transcript = append(s.transcript, Entry{Role: role, Content: content, Timestamp: at})
	s.lastActive = at
}

// History returns the transcript of id. Unknown sessions have an empty one.
func (m *Manager) History(id string) []Entry {
	s := m.get(id, false)
	if s == nil {
		return []Entry{}
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]Entry{}, s.transcript...)
}

// Summary describes the conversation memory of id.
func (m *Manager) Summary(id string) memory.Summary {
	s := m.get(id, false)
	if s == nil {
		return memory.NewConversation().Summary()
	}
	return s.conv.Summary()
}

// Clear empties the transcript and the conversation memory of id. It
// reports whether the session existed.
func (m *Manager) Clear(id string) bool {
	s := m.get(id, false)
	if s == nil {
		return false
	}
	s.queryMu.Lock()
	defer s.queryMu.Unlock()

	s.conv.Clear()
	s.mu.Lock()
	s.transcript = nil
	s.lastActive = m.now()
	s.mu.Unlock()
	log.Printf("[session] cleared %s", id)
	return true
}

// Sweep drops sessions idle for longer than the idle TTL and returns how
// many were dropped. A zero TTL keeps everything.
func (m *Manager) Sweep() int {
	if m.idleTTL <= 0 {
		return 0
	}
	cutoff := m.now().Add(-m.idleTTL)

	m.mu.Lock()
	defer m.mu.Unlock()
	removed := 0
	for id, s := range m.sessions {
		if !s.queryMu.TryLock() {
			continue
		}
		s.mu.Lock()
		idle := s.lastActive.Before(cutoff)
		s.mu.Unlock()
		if idle {
			delete(m.sessions, id)
			removed++
		}
		s.queryMu.Unlock()
	}
	if removed > 0 {
		log.Printf("[session] swept %d idle sessions", removed)
	}
	return removed
}

func (m *Manager) Stats() Stats {
	m.mu.Lock()
	sessions := make([]*session, 0, len(m.sessions))
	for _, s := range m.sessions {
		sessions = append(sessions, s)
	}
	m.mu.Unlock()

	st := Stats{Conversations: len(sessions)}
	for _, s := range sessions {
		s.mu.Lock()
		st.Messages += len(s.transcript)
		s.mu.Unlock()
	}
	return st
}
