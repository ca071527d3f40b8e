package session

import (
	"fmt"
	"strings"
	"sync"

	"courserag/internal/domain"
)

// Manager is an in-memory, per-session bounded message log. maxHistory
// counts exchanges, so each session keeps at most 2*maxHistory messages,
// evicting the oldest first.
type Manager struct {
	mu         sync.Mutex
	sessions   map[string][]domain.Message
	counter    int
	maxHistory int
}

func NewManager(maxHistory int) *Manager {
	if maxHistory <= 0 {
		maxHistory = 5
	}
	return &Manager{
		sessions:   make(map[string][]domain.Message),
		maxHistory: maxHistory,
	}
}

// CreateSession allocates a new session with a monotonically increasing id.
func (m *Manager) CreateSession() string {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.counter++
	id := fmt.Sprintf("session_%d", m.counter)
	m.sessions[id] = nil
	return id
}

// AddMessage appends one message, lazily creating an unseen session.
func (m *Manager) AddMessage(sessionID, role, content string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.append(sessionID, domain.Message{Role: role, Content: content})
}

// AddExchange appends a user message and the assistant's answer as one unit.
func (m *Manager) AddExchange(sessionID, userText, assistantText string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.append(sessionID, domain.Message{Role: "user", Content: userText})
	m.append(sessionID, domain.Message{Role: "assistant", Content: assistantText})
}

func (m *Manager) append(sessionID string, msg domain.Message) {
	msgs := append(m.sessions[sessionID], msg)
	if limit := 2 * m.maxHistory; len(msgs) > limit {
		msgs = msgs[len(msgs)-limit:]
	}
	m.sessions[sessionID] = msgs
}

// GetConversationHistory renders the session chronologically as alternating
// "User:"/"Assistant:" lines. Returns "" for unknown or empty sessions.
func (m *Manager) GetConversationHistory(sessionID string) string {
	m.mu.Lock()
	defer m.mu.Unlock()
	msgs := m.sessions[sessionID]
	if len(msgs) == 0 {
		return ""
	}
	lines := make([]string, len(msgs))
	for i, msg := range msgs {
		role := "User"
		if msg.Role == "assistant" {
			role = "Assistant"
		}
		lines[i] = fmt.Sprintf("%s: %s", role, msg.Content)
	}
	return strings.Join(lines, "\n")
}

// ClearSession empties an existing session without deleting it; unknown
// sessions are a no-op.
func (m *Manager) ClearSession(sessionID string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.sessions[sessionID]; ok {
		m.sessions[sessionID] = nil
	}
}
