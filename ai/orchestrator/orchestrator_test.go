package orchestrator

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/queryon/queryon/ai/core/llm"
	"github.com/queryon/queryon/ai/rag"
	"github.com/queryon/queryon/store"
)

// memStore is an in-memory TurnStore for pipeline tests.
type memStore struct {
	mu            sync.Mutex
	cfg           *store.OrchestratorConfig
	conversations map[int32]*store.Conversation
	messages      []*store.Message
	events        []*store.MessageEvent
	rules         []*store.Rule
	tools         []*store.ToolConfig
	appointments  []*store.Appointment
	orders        []*store.Order
	nextMessageID int32
	apptSeq       int32
}

func newMemStore(cfg *store.OrchestratorConfig) *memStore {
	return &memStore{cfg: cfg, conversations: map[int32]*store.Conversation{}}
}

func (m *memStore) addConversation(id int32, state store.FlowState) *store.Conversation {
	m.mu.Lock()
	defer m.mu.Unlock()
	c := &store.Conversation{
		ID:        id,
		UID:       fmt.Sprintf("conv-%d", id),
		Platform:  store.PlatformWeb,
		Status:    store.ConversationActive,
		FlowState: state,
	}
	m.conversations[id] = c
	return c
}

func (m *memStore) GetConversation(_ context.Context, find *store.FindConversation) (*store.Conversation, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if find.ID == nil {
		return nil, nil
	}
	return m.conversations[*find.ID], nil
}

func (m *memStore) GetRecentMessages(_ context.Context, conversationID int32, limit int) ([]*store.Message, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var all []*store.Message
	for _, msg := range m.messages {
		if msg.ConversationID == conversationID {
			all = append(all, msg)
		}
	}
	if len(all) > limit {
		all = all[len(all)-limit:]
	}
	return all, nil
}

func (m *memStore) CreateMessage(_ context.Context, create *store.Message) (*store.Message, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.nextMessageID++
	create.ID = m.nextMessageID
	create.CreatedTs = time.Now().Unix()
	m.messages = append(m.messages, create)
	return create, nil
}

func (m *memStore) IncrementMessageCount(_ context.Context, conversationID int32) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if c, ok := m.conversations[conversationID]; ok {
		c.MessageCount++
	}
	return nil
}

func (m *memStore) LogEvents(_ context.Context, events []*store.MessageEvent) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.events = append(m.events, events...)
	return nil
}

func (m *memStore) UpdateFlowState(_ context.Context, conversationID int32, state store.FlowState) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if c, ok := m.conversations[conversationID]; ok {
		c.FlowState = state
	}
	return nil
}

func (m *memStore) GetOrchestratorConfig(context.Context) (*store.OrchestratorConfig, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.cfg, nil
}

func (m *memStore) ListActiveRules(context.Context) ([]*store.Rule, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]*store.Rule(nil), m.rules...), nil
}

func (m *memStore) ListToolConfigs(context.Context, *store.FindToolConfig) ([]*store.ToolConfig, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]*store.ToolConfig(nil), m.tools...), nil
}

func (m *memStore) CreateAppointment(_ context.Context, create *store.Appointment, numberPrefix string) (*store.Appointment, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.apptSeq++
	create.ID = m.apptSeq
	create.ApptNumber = fmt.Sprintf("%s-2026-%04d", numberPrefix, m.apptSeq)
	create.CreatedTs = time.Now().Unix()
	m.appointments = append(m.appointments, create)
	return create, nil
}

func (m *memStore) GetAppointmentByNumber(_ context.Context, apptNumber string) (*store.Appointment, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, a := range m.appointments {
		if a.ApptNumber == apptNumber {
			return a, nil
		}
	}
	return nil, nil
}

func (m *memStore) UpdateAppointment(_ context.Context, update *store.UpdateAppointment) (*store.Appointment, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, a := range m.appointments {
		if a.ID != update.ID {
			continue
		}
		if update.Status != nil {
			a.Status = *update.Status
		}
		if update.EventDate != nil {
			a.EventDate = update.EventDate
		}
		if update.EventTime != nil {
			a.EventTime = update.EventTime
		}
		return a, nil
	}
	return nil, nil
}

func (m *memStore) CreateOrder(_ context.Context, create *store.Order) (*store.Order, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	create.ID = int32(len(m.orders) + 1)
	create.CreatedTs = time.Now().Unix()
	m.orders = append(m.orders, create)
	return create, nil
}

func (m *memStore) lastAssistant() *store.Message {
	m.mu.Lock()
	defer m.mu.Unlock()
	for i := len(m.messages) - 1; i >= 0; i-- {
		if m.messages[i].Role == store.RoleAssistant {
			return m.messages[i]
		}
	}
	return nil
}

func (m *memStore) hasEvent(eventType store.EventType) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, ev := range m.events {
		if ev.EventType == eventType {
			return true
		}
	}
	return false
}

func (m *memStore) flowState(conversationID int32) store.FlowState {
	m.mu.Lock()
	defer m.mu.Unlock()
	if c, ok := m.conversations[conversationID]; ok {
		return c.FlowState
	}
	return nil
}

// scriptedLLM replays canned replies in call order, repeating the last one.
// It keeps each call's prompt so tests can inspect what the model saw.
type scriptedLLM struct {
	mu      sync.Mutex
	replies []string
	err     error
	calls   int
	prompts [][]llm.Message
}

func (s *scriptedLLM) Chat(ctx context.Context, messages []llm.Message) (string, *llm.CallStats, error) {
	llm.CountCall(ctx)
	s.mu.Lock()
	defer s.mu.Unlock()
	s.calls++
	s.prompts = append(s.prompts, messages)
	if s.err != nil {
		return "", nil, s.err
	}
	idx := s.calls - 1
	if idx >= len(s.replies) {
		idx = len(s.replies) - 1
	}
	return s.replies[idx], &llm.CallStats{}, nil
}

func (s *scriptedLLM) Warmup(context.Context) {}

func (s *scriptedLLM) callCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.calls
}

// promptText flattens the n-th call's messages for content assertions.
func (s *scriptedLLM) promptText(call int) string {
	s.mu.Lock()
	defer s.mu.Unlock()
	if call >= len(s.prompts) {
		return ""
	}
	var sb strings.Builder
	for _, m := range s.prompts[call] {
		sb.WriteString(m.Content)
		sb.WriteString("\n")
	}
	return sb.String()
}

type fakeRAG struct {
	answer  string
	sources []rag.Source
	err     error
}

func (f *fakeRAG) Ask(context.Context, string) (string, []rag.Source, error) {
	return f.answer, f.sources, f.err
}

func (f *fakeRAG) Search(context.Context, string, int) ([]rag.Source, error) {
	return f.sources, f.err
}

type fakeScheduler struct {
	mu            sync.Mutex
	slots         []string
	conflict      bool
	conflictErr   error
	conflictCalls int
	lastExclude   *int32
	reserved      []string
}

func (f *fakeScheduler) SlotsFor(context.Context, string, string, string) ([]string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.slots, nil
}

func (f *fakeScheduler) HasConflict(_ context.Context, _, _, _, _ string, exclude *int32) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.conflictCalls++
	f.lastExclude = exclude
	return f.conflict, f.conflictErr
}

func (f *fakeScheduler) Reserve(_ context.Context, _, date, timeStr, _ string, appointmentID int32) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.reserved = append(f.reserved, fmt.Sprintf("%d@%s %s", appointmentID, date, timeStr))
	return nil
}

func (f *fakeScheduler) reservedSlots() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.reserved...)
}

// baseConfig is a permissive pipeline config tests tighten as needed.
func baseConfig() *store.OrchestratorConfig {
	return &store.OrchestratorConfig{
		RulesFirst:            true,
		FallbackToDirect:      true,
		DefaultIntent:         "direct",
		MinConfidence:         0.5,
		LowConfidenceStrategy: "fallback",
		WhenRAGUnavailable:    "direct",
		LLMTimeoutSeconds:     5,
		MaxConversationTurns:  10,
		CharacterSystemPrompt: "Sen Gülnar Kına Organizasyon'un asistanısın.",
		AppointmentFields: []store.JSONMap{
			{"key": "customer_name", "label": "Ad Soyad", "question": "Adınızı ve soyadınızı alabilir miyim?", "required": true},
			{"key": "event_date", "label": "Tarih", "question": "Hangi tarihte olacak?", "required": true, "validation": "date"},
			{"key": "event_time", "label": "Saat", "question": "Saat kaçta başlayalım?", "required": true, "validation": "time"},
		},
	}
}
