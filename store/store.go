package store

import (
	"context"
	"time"

	"github.com/lithammer/shortuuid/v4"
	"github.com/pkg/errors"

	"github.com/queryon/queryon/internal/profile"
	"github.com/queryon/queryon/store/cache"
)

const orchestratorConfigCacheKey = "orchestrator_config"

// Store provides database access to all raw objects.
type Store struct {
	profile *profile.Profile
	driver  Driver

	// Cache for the hot single-row configs read on every turn.
	configCache *cache.Cache
}

// New creates a new instance of Store.
func New(driver Driver, profile *profile.Profile) *Store {
	cacheConfig := cache.Config{
		DefaultTTL:      time.Minute,
		CleanupInterval: 5 * time.Minute,
		MaxItems:        16,
	}

	return &Store{
		driver:      driver,
		profile:     profile,
		configCache: cache.New(cacheConfig),
	}
}

func (s *Store) GetDriver() Driver {
	return s.driver
}

func (s *Store) Close() error {
	s.configCache.Close()
	return s.driver.Close()
}

// ---------------------------------------------------------------------------
// Conversations

// StartConversation creates a new active conversation. A missing UID is
// generated; a missing status defaults to active.
func (s *Store) StartConversation(ctx context.Context, create *Conversation) (*Conversation, error) {
	if create.UID == "" {
		create.UID = shortuuid.New()
	}
	if create.Status == "" {
		create.Status = ConversationActive
	}
	now := time.Now().Unix()
	if create.CreatedTs == 0 {
		create.CreatedTs = now
	}
	create.UpdatedTs = now
	create.LastMessageAt = now
	return s.driver.CreateConversation(ctx, create)
}

func (s *Store) ListConversations(ctx context.Context, find *FindConversation) ([]*Conversation, error) {
	return s.driver.ListConversations(ctx, find)
}

// GetConversation returns the first match or nil when none exists.
func (s *Store) GetConversation(ctx context.Context, find *FindConversation) (*Conversation, error) {
	limit := 1
	find.Limit = &limit
	list, err := s.driver.ListConversations(ctx, find)
	if err != nil {
		return nil, err
	}
	if len(list) == 0 {
		return nil, nil
	}
	return list[0], nil
}

// GetActiveConversationByChannel resolves the active conversation for an
// inbound channel message, if one exists.
func (s *Store) GetActiveConversationByChannel(ctx context.Context, platform Platform, channelID string) (*Conversation, error) {
	status := ConversationActive
	return s.GetConversation(ctx, &FindConversation{
		Platform:  &platform,
		ChannelID: &channelID,
		Status:    &status,
	})
}

func (s *Store) UpdateConversation(ctx context.Context, update *UpdateConversation) (*Conversation, error) {
	now := time.Now().Unix()
	update.UpdatedTs = &now
	return s.driver.UpdateConversation(ctx, update)
}

// CloseConversation marks a conversation closed. Returns false when the
// conversation does not exist.
func (s *Store) CloseConversation(ctx context.Context, id int32) (bool, error) {
	status := ConversationClosed
	_, err := s.UpdateConversation(ctx, &UpdateConversation{ID: id, Status: &status})
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return false, nil
		}
		return false, err
	}
	return true, nil
}

func (s *Store) DeleteConversation(ctx context.Context, delete *DeleteConversation) error {
	return s.driver.DeleteConversation(ctx, delete)
}

// IncrementMessageCount bumps message_count and stamps last_message_at in a
// single statement.
func (s *Store) IncrementMessageCount(ctx context.Context, conversationID int32) error {
	return s.driver.IncrementMessageCount(ctx, conversationID, time.Now().Unix())
}

// GetFlowState returns the conversation's flow state, nil when no flow is active.
func (s *Store) GetFlowState(ctx context.Context, conversationID int32) (FlowState, error) {
	conversation, err := s.GetConversation(ctx, &FindConversation{ID: &conversationID})
	if err != nil {
		return nil, err
	}
	if conversation == nil {
		return nil, errors.Wrapf(ErrNotFound, "conversation %d", conversationID)
	}
	return conversation.FlowState, nil
}

// UpdateFlowState writes the flow state; a nil state clears it.
func (s *Store) UpdateFlowState(ctx context.Context, conversationID int32, state FlowState) error {
	_, err := s.UpdateConversation(ctx, &UpdateConversation{
		ID:        conversationID,
		FlowState: &state,
	})
	return err
}

// ---------------------------------------------------------------------------
// Messages

func (s *Store) CreateMessage(ctx context.Context, create *Message) (*Message, error) {
	if create.CreatedTs == 0 {
		create.CreatedTs = time.Now().Unix()
	}
	return s.driver.CreateMessage(ctx, create)
}

func (s *Store) ListMessages(ctx context.Context, find *FindMessage) ([]*Message, error) {
	return s.driver.ListMessages(ctx, find)
}

// GetRecentMessages returns the newest limit messages in chronological order.
func (s *Store) GetRecentMessages(ctx context.Context, conversationID int32, limit int) ([]*Message, error) {
	list, err := s.driver.ListMessages(ctx, &FindMessage{
		ConversationID: &conversationID,
		Limit:          &limit,
		OrderDesc:      true,
	})
	if err != nil {
		return nil, err
	}
	// Reverse into created_ts ascending.
	for i, j := 0, len(list)-1; i < j; i, j = i+1, j-1 {
		list[i], list[j] = list[j], list[i]
	}
	return list, nil
}

func (s *Store) DeleteMessage(ctx context.Context, delete *DeleteMessage) error {
	return s.driver.DeleteMessage(ctx, delete)
}

// LogEvent attaches a single structured event to a message.
func (s *Store) LogEvent(ctx context.Context, event *MessageEvent) error {
	return s.LogEvents(ctx, []*MessageEvent{event})
}

// LogEvents bulk-inserts message events, preserving slice order.
func (s *Store) LogEvents(ctx context.Context, events []*MessageEvent) error {
	if len(events) == 0 {
		return nil
	}
	now := time.Now().Unix()
	for _, event := range events {
		if event.CreatedTs == 0 {
			event.CreatedTs = now
		}
	}
	return s.driver.CreateMessageEvents(ctx, events)
}

func (s *Store) ListMessageEvents(ctx context.Context, find *FindMessageEvent) ([]*MessageEvent, error) {
	return s.driver.ListMessageEvents(ctx, find)
}

// ---------------------------------------------------------------------------
// Rules

func (s *Store) CreateRule(ctx context.Context, create *Rule) (*Rule, error) {
	now := time.Now().Unix()
	if create.CreatedTs == 0 {
		create.CreatedTs = now
	}
	create.UpdatedTs = now
	return s.driver.CreateRule(ctx, create)
}

func (s *Store) ListRules(ctx context.Context, find *FindRule) ([]*Rule, error) {
	return s.driver.ListRules(ctx, find)
}

// ListActiveRules returns the snapshot the rule engine is built from.
func (s *Store) ListActiveRules(ctx context.Context) ([]*Rule, error) {
	active := true
	return s.driver.ListRules(ctx, &FindRule{IsActive: &active})
}

func (s *Store) UpdateRule(ctx context.Context, update *UpdateRule) (*Rule, error) {
	now := time.Now().Unix()
	update.UpdatedTs = &now
	return s.driver.UpdateRule(ctx, update)
}

func (s *Store) DeleteRule(ctx context.Context, delete *DeleteRule) error {
	return s.driver.DeleteRule(ctx, delete)
}

// ---------------------------------------------------------------------------
// Orchestrator config

// GetOrchestratorConfig returns the single config row, cached briefly since
// it is read on every turn.
func (s *Store) GetOrchestratorConfig(ctx context.Context) (*OrchestratorConfig, error) {
	if cached, ok := s.configCache.Get(orchestratorConfigCacheKey); ok {
		if config, ok := cached.(*OrchestratorConfig); ok {
			return config, nil
		}
	}
	config, err := s.driver.GetOrchestratorConfig(ctx)
	if err != nil {
		return nil, err
	}
	s.configCache.Set(orchestratorConfigCacheKey, config)
	return config, nil
}

func (s *Store) UpdateOrchestratorConfig(ctx context.Context, update *UpdateOrchestratorConfig) (*OrchestratorConfig, error) {
	now := time.Now().Unix()
	update.UpdatedTs = &now
	config, err := s.driver.UpdateOrchestratorConfig(ctx, update)
	if err != nil {
		return nil, err
	}
	s.configCache.Delete(orchestratorConfigCacheKey)
	return config, nil
}

// ---------------------------------------------------------------------------
// Appointments and orders

// CreateAppointment inserts the appointment and generates its reference
// number inside the same transaction.
func (s *Store) CreateAppointment(ctx context.Context, create *Appointment, numberPrefix string) (*Appointment, error) {
	now := time.Now().Unix()
	if create.CreatedTs == 0 {
		create.CreatedTs = now
	}
	create.UpdatedTs = now
	if create.Status == "" {
		create.Status = RecordPending
	}
	return s.driver.CreateAppointment(ctx, create, numberPrefix)
}

func (s *Store) ListAppointments(ctx context.Context, find *FindAppointment) ([]*Appointment, error) {
	return s.driver.ListAppointments(ctx, find)
}

// GetAppointmentByNumber resolves an appointment by its reference number.
func (s *Store) GetAppointmentByNumber(ctx context.Context, apptNumber string) (*Appointment, error) {
	list, err := s.driver.ListAppointments(ctx, &FindAppointment{ApptNumber: &apptNumber})
	if err != nil {
		return nil, err
	}
	if len(list) == 0 {
		return nil, nil
	}
	return list[0], nil
}

func (s *Store) UpdateAppointment(ctx context.Context, update *UpdateAppointment) (*Appointment, error) {
	now := time.Now().Unix()
	update.UpdatedTs = &now
	return s.driver.UpdateAppointment(ctx, update)
}

func (s *Store) DeleteAppointment(ctx context.Context, delete *DeleteAppointment) error {
	return s.driver.DeleteAppointment(ctx, delete)
}

func (s *Store) CreateOrder(ctx context.Context, create *Order) (*Order, error) {
	now := time.Now().Unix()
	if create.CreatedTs == 0 {
		create.CreatedTs = now
	}
	create.UpdatedTs = now
	if create.Status == "" {
		create.Status = RecordPending
	}
	return s.driver.CreateOrder(ctx, create)
}

func (s *Store) ListOrders(ctx context.Context, find *FindOrder) ([]*Order, error) {
	return s.driver.ListOrders(ctx, find)
}

func (s *Store) UpdateOrder(ctx context.Context, update *UpdateOrder) (*Order, error) {
	now := time.Now().Unix()
	update.UpdatedTs = &now
	return s.driver.UpdateOrder(ctx, update)
}

func (s *Store) DeleteOrder(ctx context.Context, delete *DeleteOrder) error {
	return s.driver.DeleteOrder(ctx, delete)
}

// ---------------------------------------------------------------------------
// Calendar

func (s *Store) CreateCalendarResource(ctx context.Context, create *CalendarResource) (*CalendarResource, error) {
	now := time.Now().Unix()
	if create.CreatedTs == 0 {
		create.CreatedTs = now
	}
	create.UpdatedTs = now
	if create.CalendarType == "" {
		create.CalendarType = CalendarInternal
	}
	return s.driver.CreateCalendarResource(ctx, create)
}

func (s *Store) ListCalendarResources(ctx context.Context, find *FindCalendarResource) ([]*CalendarResource, error) {
	return s.driver.ListCalendarResources(ctx, find)
}

// GetCalendarResourceByName looks a resource up by its free-text key,
// matching case-insensitively.
func (s *Store) GetCalendarResourceByName(ctx context.Context, resourceName string) (*CalendarResource, error) {
	list, err := s.driver.ListCalendarResources(ctx, &FindCalendarResource{ResourceName: &resourceName})
	if err != nil {
		return nil, err
	}
	if len(list) == 0 {
		return nil, nil
	}
	return list[0], nil
}

func (s *Store) UpdateCalendarResource(ctx context.Context, update *UpdateCalendarResource) (*CalendarResource, error) {
	now := time.Now().Unix()
	update.UpdatedTs = &now
	return s.driver.UpdateCalendarResource(ctx, update)
}

func (s *Store) DeleteCalendarResource(ctx context.Context, delete *DeleteCalendarResource) error {
	return s.driver.DeleteCalendarResource(ctx, delete)
}

func (s *Store) CreateCalendarBlock(ctx context.Context, create *CalendarBlock) (*CalendarBlock, error) {
	if create.EndTime <= create.StartTime {
		return nil, errors.Errorf("calendar block end %s must be after start %s", create.EndTime, create.StartTime)
	}
	if create.CreatedTs == 0 {
		create.CreatedTs = time.Now().Unix()
	}
	return s.driver.CreateCalendarBlock(ctx, create)
}

func (s *Store) ListCalendarBlocks(ctx context.Context, find *FindCalendarBlock) ([]*CalendarBlock, error) {
	return s.driver.ListCalendarBlocks(ctx, find)
}

func (s *Store) DeleteCalendarBlock(ctx context.Context, delete *DeleteCalendarBlock) error {
	return s.driver.DeleteCalendarBlock(ctx, delete)
}

// ---------------------------------------------------------------------------
// Tools

func (s *Store) CreateToolConfig(ctx context.Context, create *ToolConfig) (*ToolConfig, error) {
	now := time.Now().Unix()
	if create.CreatedTs == 0 {
		create.CreatedTs = now
	}
	create.UpdatedTs = now
	return s.driver.CreateToolConfig(ctx, create)
}

func (s *Store) ListToolConfigs(ctx context.Context, find *FindToolConfig) ([]*ToolConfig, error) {
	return s.driver.ListToolConfigs(ctx, find)
}

func (s *Store) UpdateToolConfig(ctx context.Context, update *UpdateToolConfig) (*ToolConfig, error) {
	now := time.Now().Unix()
	update.UpdatedTs = &now
	return s.driver.UpdateToolConfig(ctx, update)
}

func (s *Store) DeleteToolConfig(ctx context.Context, delete *DeleteToolConfig) error {
	return s.driver.DeleteToolConfig(ctx, delete)
}

// ---------------------------------------------------------------------------
// Model configs

func (s *Store) CreateLLMConfig(ctx context.Context, create *LLMConfig) (*LLMConfig, error) {
	now := time.Now().Unix()
	if create.CreatedTs == 0 {
		create.CreatedTs = now
	}
	create.UpdatedTs = now
	return s.driver.CreateLLMConfig(ctx, create)
}

func (s *Store) ListLLMConfigs(ctx context.Context, find *FindLLMConfig) ([]*LLMConfig, error) {
	return s.driver.ListLLMConfigs(ctx, find)
}

func (s *Store) UpdateLLMConfig(ctx context.Context, update *UpdateLLMConfig) (*LLMConfig, error) {
	now := time.Now().Unix()
	update.UpdatedTs = &now
	return s.driver.UpdateLLMConfig(ctx, update)
}

func (s *Store) DeleteLLMConfig(ctx context.Context, delete *DeleteLLMConfig) error {
	return s.driver.DeleteLLMConfig(ctx, delete)
}

func (s *Store) CreateEmbeddingModelConfig(ctx context.Context, create *EmbeddingModelConfig) (*EmbeddingModelConfig, error) {
	now := time.Now().Unix()
	if create.CreatedTs == 0 {
		create.CreatedTs = now
	}
	create.UpdatedTs = now
	return s.driver.CreateEmbeddingModelConfig(ctx, create)
}

func (s *Store) ListEmbeddingModelConfigs(ctx context.Context, find *FindEmbeddingModelConfig) ([]*EmbeddingModelConfig, error) {
	return s.driver.ListEmbeddingModelConfigs(ctx, find)
}

func (s *Store) UpdateEmbeddingModelConfig(ctx context.Context, update *UpdateEmbeddingModelConfig) (*EmbeddingModelConfig, error) {
	now := time.Now().Unix()
	update.UpdatedTs = &now
	return s.driver.UpdateEmbeddingModelConfig(ctx, update)
}

func (s *Store) GetRAGConfig(ctx context.Context) (*RAGConfig, error) {
	return s.driver.GetRAGConfig(ctx)
}

func (s *Store) UpdateRAGConfig(ctx context.Context, update *UpdateRAGConfig) (*RAGConfig, error) {
	now := time.Now().Unix()
	update.UpdatedTs = &now
	return s.driver.UpdateRAGConfig(ctx, update)
}

// ---------------------------------------------------------------------------
// Knowledge base

func (s *Store) CreateKnowledgeDocument(ctx context.Context, create *KnowledgeDocument) (*KnowledgeDocument, error) {
	if create.CreatedTs == 0 {
		create.CreatedTs = time.Now().Unix()
	}
	return s.driver.CreateKnowledgeDocument(ctx, create)
}

func (s *Store) ListKnowledgeDocuments(ctx context.Context, find *FindKnowledgeDocument) ([]*KnowledgeDocument, error) {
	return s.driver.ListKnowledgeDocuments(ctx, find)
}

func (s *Store) DeleteKnowledgeDocument(ctx context.Context, delete *DeleteKnowledgeDocument) error {
	return s.driver.DeleteKnowledgeDocument(ctx, delete)
}

func (s *Store) CreateDocumentChunks(ctx context.Context, chunks []*DocumentChunk) error {
	now := time.Now().Unix()
	for _, chunk := range chunks {
		if chunk.CreatedTs == 0 {
			chunk.CreatedTs = now
		}
	}
	return s.driver.CreateDocumentChunks(ctx, chunks)
}

func (s *Store) SearchDocumentChunks(ctx context.Context, opts *ChunkSearchOptions) ([]*ChunkWithScore, error) {
	return s.driver.SearchDocumentChunks(ctx, opts)
}
