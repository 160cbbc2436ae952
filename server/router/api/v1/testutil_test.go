package v1

import (
	"context"
	"net/http/httptest"
	"strings"
	"sync"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/queryon/queryon/ai/core/embedding"
	"github.com/queryon/queryon/ai/core/llm"
	"github.com/queryon/queryon/ai/orchestrator"
	"github.com/queryon/queryon/ai/rag"
	"github.com/queryon/queryon/internal/profile"
	"github.com/queryon/queryon/plugin/calendar"
	"github.com/queryon/queryon/plugin/chatapps"
	"github.com/queryon/queryon/plugin/chatapps/channels/web"
	"github.com/queryon/queryon/plugin/markdown"
	"github.com/queryon/queryon/plugin/webhook"
	"github.com/queryon/queryon/server/service/availability"
	"github.com/queryon/queryon/store"
)

const testAdminKey = "test-admin-key"

// fakeDriver is an in-memory store.Driver covering the slices the handler
// tests touch. Anything not implemented panics through the embedded nil
// interface, which is the desired failure mode in tests.
type fakeDriver struct {
	store.Driver

	mu            sync.Mutex
	nextID        int32
	conversations map[int32]*store.Conversation
	messages      []*store.Message
	events        []*store.MessageEvent
	rules         map[int32]*store.Rule
	config        *store.OrchestratorConfig
	ragConfig     *store.RAGConfig
	appointments  map[int32]*store.Appointment
	orders        map[int32]*store.Order
	resources     map[int32]*store.CalendarResource
	blocks        map[int32]*store.CalendarBlock
	tools         map[int32]*store.ToolConfig
	llms          map[int32]*store.LLMConfig
	embeddings    map[int32]*store.EmbeddingModelConfig
	documents     map[int32]*store.KnowledgeDocument
	chunks        []*store.DocumentChunk
}

func newFakeDriver() *fakeDriver {
	return &fakeDriver{
		conversations: map[int32]*store.Conversation{},
		rules:         map[int32]*store.Rule{},
		config: &store.OrchestratorConfig{
			ID:                       1,
			RulesFirst:               true,
			DefaultIntent:            "direct",
			MinConfidence:            0.6,
			LowConfidenceStrategy:    "fallback",
			WhenRAGUnavailable:       "direct",
			LLMTimeoutSeconds:        30,
			MaxConversationTurns:     20,
			AppointmentWebhookSecret: "hook-secret",
		},
		ragConfig:    &store.RAGConfig{ID: 1, TopK: 5, MinScore: 0.35},
		appointments: map[int32]*store.Appointment{},
		orders:       map[int32]*store.Order{},
		resources:    map[int32]*store.CalendarResource{},
		blocks:       map[int32]*store.CalendarBlock{},
		tools:        map[int32]*store.ToolConfig{},
		llms:         map[int32]*store.LLMConfig{},
		embeddings:   map[int32]*store.EmbeddingModelConfig{},
		documents:    map[int32]*store.KnowledgeDocument{},
	}
}

func (d *fakeDriver) id() int32 {
	d.nextID++
	return d.nextID
}

func (d *fakeDriver) Close() error { return nil }

// --- conversations ---

func (d *fakeDriver) CreateConversation(_ context.Context, create *store.Conversation) (*store.Conversation, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	cp := *create
	cp.ID = d.id()
	d.conversations[cp.ID] = &cp
	out := cp
	return &out, nil
}

func (d *fakeDriver) ListConversations(_ context.Context, find *store.FindConversation) ([]*store.Conversation, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	var out []*store.Conversation
	for _, c := range d.conversations {
		if find.ID != nil && c.ID != *find.ID {
			continue
		}
		if find.UID != nil && c.UID != *find.UID {
			continue
		}
		if find.Platform != nil && c.Platform != *find.Platform {
			continue
		}
		if find.ChannelID != nil && (c.ChannelID == nil || *c.ChannelID != *find.ChannelID) {
			continue
		}
		if find.Status != nil && c.Status != *find.Status {
			continue
		}
		cp := *c
		out = append(out, &cp)
	}
	if find.Limit != nil && len(out) > *find.Limit {
		out = out[:*find.Limit]
	}
	return out, nil
}

func (d *fakeDriver) UpdateConversation(_ context.Context, update *store.UpdateConversation) (*store.Conversation, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	c, ok := d.conversations[update.ID]
	if !ok {
		return nil, store.ErrNotFound
	}
	if update.Status != nil {
		c.Status = *update.Status
	}
	if update.Name != nil {
		c.Name = update.Name
	}
	if update.FlowState != nil {
		c.FlowState = *update.FlowState
	}
	cp := *c
	return &cp, nil
}

func (d *fakeDriver) IncrementMessageCount(_ context.Context, conversationID int32, lastMessageAt int64) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if c, ok := d.conversations[conversationID]; ok {
		c.MessageCount++
		c.LastMessageAt = lastMessageAt
	}
	return nil
}

// --- messages ---

func (d *fakeDriver) CreateMessage(_ context.Context, create *store.Message) (*store.Message, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	cp := *create
	cp.ID = d.id()
	d.messages = append(d.messages, &cp)
	out := cp
	return &out, nil
}

func (d *fakeDriver) ListMessages(_ context.Context, find *store.FindMessage) ([]*store.Message, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	var out []*store.Message
	for _, m := range d.messages {
		if find.ConversationID != nil && m.ConversationID != *find.ConversationID {
			continue
		}
		cp := *m
		out = append(out, &cp)
	}
	return out, nil
}

func (d *fakeDriver) CreateMessageEvents(_ context.Context, events []*store.MessageEvent) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	for _, e := range events {
		cp := *e
		cp.ID = d.id()
		d.events = append(d.events, &cp)
	}
	return nil
}

func (d *fakeDriver) ListMessageEvents(_ context.Context, find *store.FindMessageEvent) ([]*store.MessageEvent, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	var out []*store.MessageEvent
	for _, e := range d.events {
		if find.MessageID != nil && e.MessageID != *find.MessageID {
			continue
		}
		cp := *e
		out = append(out, &cp)
	}
	return out, nil
}

// --- rules ---

func (d *fakeDriver) CreateRule(_ context.Context, create *store.Rule) (*store.Rule, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	cp := *create
	cp.ID = d.id()
	d.rules[cp.ID] = &cp
	out := cp
	return &out, nil
}

func (d *fakeDriver) ListRules(_ context.Context, find *store.FindRule) ([]*store.Rule, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	var out []*store.Rule
	for _, r := range d.rules {
		if find.ID != nil && r.ID != *find.ID {
			continue
		}
		if find.IsActive != nil && r.IsActive != *find.IsActive {
			continue
		}
		cp := *r
		out = append(out, &cp)
	}
	return out, nil
}

func (d *fakeDriver) UpdateRule(_ context.Context, update *store.UpdateRule) (*store.Rule, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	r, ok := d.rules[update.ID]
	if !ok {
		return nil, store.ErrNotFound
	}
	if update.Name != nil {
		r.Name = *update.Name
	}
	if update.ResponseTemplate != nil {
		r.ResponseTemplate = *update.ResponseTemplate
	}
	if update.TriggerPatterns != nil {
		r.TriggerPatterns = *update.TriggerPatterns
	}
	if update.Priority != nil {
		r.Priority = *update.Priority
	}
	if update.IsActive != nil {
		r.IsActive = *update.IsActive
	}
	cp := *r
	return &cp, nil
}

func (d *fakeDriver) DeleteRule(_ context.Context, del *store.DeleteRule) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	delete(d.rules, del.ID)
	return nil
}

// --- orchestrator config ---

func (d *fakeDriver) GetOrchestratorConfig(context.Context) (*store.OrchestratorConfig, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	cp := *d.config
	return &cp, nil
}

func (d *fakeDriver) UpdateOrchestratorConfig(_ context.Context, update *store.UpdateOrchestratorConfig) (*store.OrchestratorConfig, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if update.RulesFirst != nil {
		d.config.RulesFirst = *update.RulesFirst
	}
	if update.MinConfidence != nil {
		d.config.MinConfidence = *update.MinConfidence
	}
	if update.LowConfidenceStrategy != nil {
		d.config.LowConfidenceStrategy = *update.LowConfidenceStrategy
	}
	if update.LLMTimeoutSeconds != nil {
		d.config.LLMTimeoutSeconds = *update.LLMTimeoutSeconds
	}
	if update.AppointmentWebhookURL != nil {
		d.config.AppointmentWebhookURL = *update.AppointmentWebhookURL
	}
	if update.UpdatedTs != nil {
		d.config.UpdatedTs = *update.UpdatedTs
	}
	cp := *d.config
	return &cp, nil
}

func (d *fakeDriver) GetRAGConfig(context.Context) (*store.RAGConfig, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	cp := *d.ragConfig
	return &cp, nil
}

func (d *fakeDriver) UpdateRAGConfig(_ context.Context, update *store.UpdateRAGConfig) (*store.RAGConfig, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if update.TopK != nil {
		d.ragConfig.TopK = *update.TopK
	}
	if update.MinScore != nil {
		d.ragConfig.MinScore = *update.MinScore
	}
	if update.AnswerPrompt != nil {
		d.ragConfig.AnswerPrompt = *update.AnswerPrompt
	}
	cp := *d.ragConfig
	return &cp, nil
}

// --- appointments and orders ---

func (d *fakeDriver) ListAppointments(_ context.Context, find *store.FindAppointment) ([]*store.Appointment, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	var out []*store.Appointment
	for _, a := range d.appointments {
		if find.ID != nil && a.ID != *find.ID {
			continue
		}
		if find.ApptNumber != nil && a.ApptNumber != *find.ApptNumber {
			continue
		}
		if find.Status != nil && a.Status != *find.Status {
			continue
		}
		if find.Artist != nil && (a.Artist == nil || *a.Artist != *find.Artist) {
			continue
		}
		if find.EventDate != nil && (a.EventDate == nil || *a.EventDate != *find.EventDate) {
			continue
		}
		if find.EventDateFrom != nil && (a.EventDate == nil || *a.EventDate < *find.EventDateFrom) {
			continue
		}
		if find.EventDateTo != nil && (a.EventDate == nil || *a.EventDate > *find.EventDateTo) {
			continue
		}
		cp := *a
		out = append(out, &cp)
	}
	return out, nil
}

func (d *fakeDriver) UpdateAppointment(_ context.Context, update *store.UpdateAppointment) (*store.Appointment, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	a, ok := d.appointments[update.ID]
	if !ok {
		return nil, store.ErrNotFound
	}
	if update.Status != nil {
		a.Status = *update.Status
	}
	if update.ContactName != nil {
		a.ContactName = update.ContactName
	}
	if update.Service != nil {
		a.Service = update.Service
	}
	if update.Location != nil {
		a.Location = update.Location
	}
	if update.Artist != nil {
		a.Artist = update.Artist
	}
	if update.EventDate != nil {
		a.EventDate = update.EventDate
	}
	if update.EventTime != nil {
		a.EventTime = update.EventTime
	}
	if update.Notes != nil {
		a.Notes = update.Notes
	}
	cp := *a
	return &cp, nil
}

func (d *fakeDriver) ListOrders(_ context.Context, find *store.FindOrder) ([]*store.Order, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	var out []*store.Order
	for _, o := range d.orders {
		if find.ID != nil && o.ID != *find.ID {
			continue
		}
		if find.Status != nil && o.Status != *find.Status {
			continue
		}
		cp := *o
		out = append(out, &cp)
	}
	return out, nil
}

func (d *fakeDriver) UpdateOrder(_ context.Context, update *store.UpdateOrder) (*store.Order, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	o, ok := d.orders[update.ID]
	if !ok {
		return nil, store.ErrNotFound
	}
	if update.Status != nil {
		o.Status = *update.Status
	}
	if update.Notes != nil {
		o.Notes = update.Notes
	}
	cp := *o
	return &cp, nil
}

// --- calendar ---

func (d *fakeDriver) CreateCalendarResource(_ context.Context, create *store.CalendarResource) (*store.CalendarResource, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	cp := *create
	cp.ID = d.id()
	d.resources[cp.ID] = &cp
	out := cp
	return &out, nil
}

func (d *fakeDriver) ListCalendarResources(_ context.Context, find *store.FindCalendarResource) ([]*store.CalendarResource, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	var out []*store.CalendarResource
	for _, r := range d.resources {
		if find.ID != nil && r.ID != *find.ID {
			continue
		}
		if find.ResourceName != nil && r.ResourceName != *find.ResourceName {
			continue
		}
		cp := *r
		out = append(out, &cp)
	}
	return out, nil
}

func (d *fakeDriver) UpdateCalendarResource(_ context.Context, update *store.UpdateCalendarResource) (*store.CalendarResource, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	r, ok := d.resources[update.ID]
	if !ok {
		return nil, store.ErrNotFound
	}
	if update.Name != nil {
		r.Name = *update.Name
	}
	if update.WorkingHours != nil {
		r.WorkingHours = *update.WorkingHours
	}
	cp := *r
	return &cp, nil
}

func (d *fakeDriver) DeleteCalendarResource(_ context.Context, del *store.DeleteCalendarResource) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	delete(d.resources, del.ID)
	return nil
}

func (d *fakeDriver) CreateCalendarBlock(_ context.Context, create *store.CalendarBlock) (*store.CalendarBlock, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	cp := *create
	cp.ID = d.id()
	d.blocks[cp.ID] = &cp
	out := cp
	return &out, nil
}

func (d *fakeDriver) ListCalendarBlocks(_ context.Context, find *store.FindCalendarBlock) ([]*store.CalendarBlock, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	var out []*store.CalendarBlock
	for _, b := range d.blocks {
		if find.ID != nil && b.ID != *find.ID {
			continue
		}
		if find.ResourceID != nil && b.ResourceID != *find.ResourceID {
			continue
		}
		if find.Date != nil && b.Date != *find.Date {
			continue
		}
		if find.AppointmentID != nil && (b.AppointmentID == nil || *b.AppointmentID != *find.AppointmentID) {
			continue
		}
		cp := *b
		out = append(out, &cp)
	}
	return out, nil
}

func (d *fakeDriver) DeleteCalendarBlock(_ context.Context, del *store.DeleteCalendarBlock) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	for id, b := range d.blocks {
		if del.ID != nil && b.ID == *del.ID {
			delete(d.blocks, id)
		}
		if del.AppointmentID != nil && b.AppointmentID != nil && *b.AppointmentID == *del.AppointmentID {
			delete(d.blocks, id)
		}
	}
	return nil
}

// --- tools ---

func (d *fakeDriver) CreateToolConfig(_ context.Context, create *store.ToolConfig) (*store.ToolConfig, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	cp := *create
	cp.ID = d.id()
	d.tools[cp.ID] = &cp
	out := cp
	return &out, nil
}

func (d *fakeDriver) ListToolConfigs(_ context.Context, find *store.FindToolConfig) ([]*store.ToolConfig, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	var out []*store.ToolConfig
	for _, t := range d.tools {
		if find.ID != nil && t.ID != *find.ID {
			continue
		}
		if find.Enabled != nil && t.Enabled != *find.Enabled {
			continue
		}
		cp := *t
		out = append(out, &cp)
	}
	return out, nil
}

func (d *fakeDriver) UpdateToolConfig(_ context.Context, update *store.UpdateToolConfig) (*store.ToolConfig, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	t, ok := d.tools[update.ID]
	if !ok {
		return nil, store.ErrNotFound
	}
	if update.Endpoint != nil {
		t.Endpoint = *update.Endpoint
	}
	if update.Enabled != nil {
		t.Enabled = *update.Enabled
	}
	cp := *t
	return &cp, nil
}

func (d *fakeDriver) DeleteToolConfig(_ context.Context, del *store.DeleteToolConfig) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	delete(d.tools, del.ID)
	return nil
}

// --- model configs ---

func (d *fakeDriver) CreateLLMConfig(_ context.Context, create *store.LLMConfig) (*store.LLMConfig, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	cp := *create
	cp.ID = d.id()
	d.llms[cp.ID] = &cp
	out := cp
	return &out, nil
}

func (d *fakeDriver) ListLLMConfigs(_ context.Context, find *store.FindLLMConfig) ([]*store.LLMConfig, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	var out []*store.LLMConfig
	for _, m := range d.llms {
		if find.ID != nil && m.ID != *find.ID {
			continue
		}
		if find.IsActive != nil && m.IsActive != *find.IsActive {
			continue
		}
		cp := *m
		out = append(out, &cp)
	}
	return out, nil
}

// UpdateLLMConfig mirrors the production driver: activating one row
// deactivates the rest.
func (d *fakeDriver) UpdateLLMConfig(_ context.Context, update *store.UpdateLLMConfig) (*store.LLMConfig, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	m, ok := d.llms[update.ID]
	if !ok {
		return nil, store.ErrNotFound
	}
	if update.IsActive != nil && *update.IsActive {
		for _, other := range d.llms {
			other.IsActive = false
		}
		m.IsActive = true
	}
	cp := *m
	return &cp, nil
}

func (d *fakeDriver) CreateEmbeddingModelConfig(_ context.Context, create *store.EmbeddingModelConfig) (*store.EmbeddingModelConfig, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	cp := *create
	cp.ID = d.id()
	d.embeddings[cp.ID] = &cp
	out := cp
	return &out, nil
}

func (d *fakeDriver) ListEmbeddingModelConfigs(_ context.Context, find *store.FindEmbeddingModelConfig) ([]*store.EmbeddingModelConfig, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	var out []*store.EmbeddingModelConfig
	for _, m := range d.embeddings {
		if find.ID != nil && m.ID != *find.ID {
			continue
		}
		cp := *m
		out = append(out, &cp)
	}
	return out, nil
}

func (d *fakeDriver) UpdateEmbeddingModelConfig(_ context.Context, update *store.UpdateEmbeddingModelConfig) (*store.EmbeddingModelConfig, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	m, ok := d.embeddings[update.ID]
	if !ok {
		return nil, store.ErrNotFound
	}
	if update.IsActive != nil && *update.IsActive {
		for _, other := range d.embeddings {
			other.IsActive = false
		}
		m.IsActive = true
	}
	cp := *m
	return &cp, nil
}

// --- knowledge ---

func (d *fakeDriver) CreateKnowledgeDocument(_ context.Context, create *store.KnowledgeDocument) (*store.KnowledgeDocument, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	cp := *create
	cp.ID = d.id()
	d.documents[cp.ID] = &cp
	out := cp
	return &out, nil
}

func (d *fakeDriver) ListKnowledgeDocuments(_ context.Context, find *store.FindKnowledgeDocument) ([]*store.KnowledgeDocument, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	var out []*store.KnowledgeDocument
	for _, doc := range d.documents {
		if find.ID != nil && doc.ID != *find.ID {
			continue
		}
		cp := *doc
		out = append(out, &cp)
	}
	return out, nil
}

func (d *fakeDriver) DeleteKnowledgeDocument(_ context.Context, del *store.DeleteKnowledgeDocument) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	delete(d.documents, del.ID)
	kept := d.chunks[:0]
	for _, chunk := range d.chunks {
		if chunk.DocumentID != del.ID {
			kept = append(kept, chunk)
		}
	}
	d.chunks = kept
	return nil
}

func (d *fakeDriver) CreateDocumentChunks(_ context.Context, chunks []*store.DocumentChunk) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	for _, chunk := range chunks {
		cp := *chunk
		cp.ID = d.id()
		d.chunks = append(d.chunks, &cp)
	}
	return nil
}

// fakeAssistant records orchestrator calls and replays a canned response.
type fakeAssistant struct {
	mu              sync.Mutex
	response        *orchestrator.Response
	err             error
	processed       []int32
	queries         []string
	reloads         int
	swappedLLM      bool
	swappedEmbedder bool
	swappedRAG      bool
}

func (a *fakeAssistant) ProcessMessage(_ context.Context, conversationID int32, query string) (*orchestrator.Response, error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.err != nil {
		return nil, a.err
	}
	a.processed = append(a.processed, conversationID)
	a.queries = append(a.queries, query)
	resp := *a.response
	resp.ConversationID = conversationID
	return &resp, nil
}

func (a *fakeAssistant) Reload(context.Context) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.reloads++
	return nil
}

func (a *fakeAssistant) SwapLLM(context.Context, llm.Service) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.swappedLLM = true
	return nil
}

func (a *fakeAssistant) SwapEmbedder(context.Context, embedding.Service) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.swappedEmbedder = true
	return nil
}

func (a *fakeAssistant) SwapRAG(rag.Service) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.swappedRAG = true
}

func (a *fakeAssistant) WarmupClassifier(context.Context) error { return nil }

// fakeEmbedder returns fixed-size vectors without a provider.
type fakeEmbedder struct {
	err error
}

func (e *fakeEmbedder) Embed(_ context.Context, text string) ([]float32, error) {
	vectors, err := e.EmbedBatch(context.Background(), []string{text})
	if err != nil {
		return nil, err
	}
	return vectors[0], nil
}

func (e *fakeEmbedder) EmbedBatch(_ context.Context, texts []string) ([][]float32, error) {
	if e.err != nil {
		return nil, e.err
	}
	out := make([][]float32, len(texts))
	for i := range texts {
		out[i] = []float32{0.1, 0.2, 0.3, 0.4}
	}
	return out, nil
}

func (e *fakeEmbedder) Dimensions() int { return 4 }

// fakeChannel is a scriptable chatapps.ChatChannel.
type fakeChannel struct {
	platform    store.Platform
	validateErr error
	parseErr    error
	parsed      *chatapps.IncomingMessage

	mu   sync.Mutex
	sent []*chatapps.OutgoingMessage
}

func (f *fakeChannel) Name() store.Platform { return f.platform }

func (f *fakeChannel) ValidateWebhook(context.Context, map[string]string, []byte) error {
	return f.validateErr
}

func (f *fakeChannel) ParseMessage(context.Context, []byte) (*chatapps.IncomingMessage, error) {
	if f.parseErr != nil {
		return nil, f.parseErr
	}
	return f.parsed, nil
}

func (f *fakeChannel) SendMessage(_ context.Context, msg *chatapps.OutgoingMessage) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.sent = append(f.sent, msg)
	return nil
}

func (f *fakeChannel) Close() error { return nil }

func (f *fakeChannel) sentMessages() []*chatapps.OutgoingMessage {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]*chatapps.OutgoingMessage(nil), f.sent...)
}

// newTestService wires an APIV1Service around the fake driver and assistant.
func newTestService(driver *fakeDriver) (*APIV1Service, *fakeAssistant) {
	p := &profile.Profile{
		Mode:        "dev",
		Timezone:    "UTC",
		AdminAPIKey: testAdminKey,
	}
	st := store.New(driver, p)
	assistant := &fakeAssistant{response: &orchestrator.Response{Answer: "ok", Confidence: 0.9}}
	svc := &APIV1Service{
		Profile:      p,
		Store:        st,
		Assistant:    assistant,
		Availability: availability.New(st, calendar.NewClient(calendar.Options{}), time.UTC),
		Markdown:     markdown.NewRenderer(),
		Webhooks:     webhook.NewDispatcher(nil),
		channels:     chatapps.NewChannelRouter(),
	}
	svc.channels.Register(web.New())
	return svc, assistant
}

// newTestEcho registers the service routes on a fresh echo instance.
func newTestEcho(svc *APIV1Service) *echo.Echo {
	e := echo.New()
	svc.Register(e)
	return e
}

// doJSON performs one request against the service's routes. A non-empty key
// is sent as the admin header.
func doJSON(e *echo.Echo, method, target, body, adminKey string) *httptest.ResponseRecorder {
	var reader *strings.Reader
	if body == "" {
		reader = strings.NewReader("")
	} else {
		reader = strings.NewReader(body)
	}
	req := httptest.NewRequest(method, target, reader)
	req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	if adminKey != "" {
		req.Header.Set("X-Admin-Key", adminKey)
	}
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, req)
	return rec
}

func int32p(v int32) *int32 { return &v }
func strp(s string) *string { return &s }
