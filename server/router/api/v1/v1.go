// Package v1 is the REST surface: the public chat endpoint, the channel
// webhook ingress and the admin API. Controllers stay thin; conversation
// behaviour lives in the orchestrator and its collaborators.
package v1

import (
	"context"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/queryon/queryon/ai/core/embedding"
	"github.com/queryon/queryon/ai/core/llm"
	"github.com/queryon/queryon/ai/metrics"
	"github.com/queryon/queryon/ai/orchestrator"
	"github.com/queryon/queryon/ai/rag"
	"github.com/queryon/queryon/internal/profile"
	"github.com/queryon/queryon/plugin/calendar"
	"github.com/queryon/queryon/plugin/chatapps"
	"github.com/queryon/queryon/plugin/chatapps/channels/telegram"
	"github.com/queryon/queryon/plugin/chatapps/channels/web"
	"github.com/queryon/queryon/plugin/chatapps/channels/whatsapp"
	"github.com/queryon/queryon/plugin/markdown"
	"github.com/queryon/queryon/plugin/webhook"
	"github.com/queryon/queryon/server/service/availability"
	"github.com/queryon/queryon/store"
)

// ruleAssistThreshold gates LLM-assisted rule matching; suggestions below
// this confidence are discarded.
const ruleAssistThreshold = 0.75

// Warmup budgets for the async startup calls.
const (
	llmWarmupTimeout        = 10 * time.Second
	classifierWarmupTimeout = 30 * time.Second
)

// Assistant is the slice of the orchestrator the HTTP surface drives.
type Assistant interface {
	ProcessMessage(ctx context.Context, conversationID int32, query string) (*orchestrator.Response, error)
	Reload(ctx context.Context) error
	SwapLLM(ctx context.Context, svc llm.Service) error
	SwapEmbedder(ctx context.Context, svc embedding.Service) error
	SwapRAG(svc rag.Service)
	WarmupClassifier(ctx context.Context) error
}

var _ Assistant = (*orchestrator.Orchestrator)(nil)

// APIV1Service owns every route under /api/v1 and /webhooks.
type APIV1Service struct {
	Profile      *profile.Profile
	Store        *store.Store
	Assistant    Assistant
	Availability *availability.Service
	Markdown     *markdown.Renderer
	Metrics      *metrics.Exporter
	Webhooks     *webhook.Dispatcher

	channels    *chatapps.ChannelRouter
	chatLimiter *clientLimiter

	// Current model clients, kept so an embedding activation can rebuild
	// the retriever against the live LLM.
	mu       sync.Mutex
	llm      llm.Service
	embedder embedding.Service
}

// NewAPIV1Service composes the AI stack and the channel router. Missing LLM
// or embedding credentials degrade features with a warning instead of
// failing startup: rules and keyword classification work without either.
func NewAPIV1Service(ctx context.Context, instanceProfile *profile.Profile, storeInstance *store.Store, exporter *metrics.Exporter) (*APIV1Service, error) {
	dispatcher := webhook.NewDispatcher(exporter)

	availabilitySvc := availability.New(storeInstance, calendar.NewClient(calendar.Options{}), instanceProfile.Location())

	var llmService llm.Service
	if instanceProfile.IsLLMEnabled() {
		svc, err := llm.NewService(&llm.Config{
			Provider: instanceProfile.LLMProvider,
			Model:    instanceProfile.LLMModel,
			APIKey:   instanceProfile.LLMAPIKey,
			BaseURL:  instanceProfile.LLMBaseURL,
			Timeout:  instanceProfile.LLMTimeout,
		})
		if err != nil {
			slog.Warn("llm service unavailable, persona and L3 classification disabled",
				"provider", instanceProfile.LLMProvider, "error", err)
		} else {
			llmService = svc
			slog.Info("llm service initialized",
				"provider", instanceProfile.LLMProvider, "model", instanceProfile.LLMModel)
			go func() {
				warmupCtx, cancel := context.WithTimeout(context.Background(), llmWarmupTimeout)
				defer cancel()
				svc.Warmup(warmupCtx)
			}()
		}
	} else {
		slog.Info("llm disabled, deterministic layers only")
	}

	var embedder embedding.Service
	if instanceProfile.IsEmbeddingEnabled() {
		svc, err := embedding.NewService(&embedding.Config{
			Provider:   instanceProfile.EmbeddingProvider,
			Model:      instanceProfile.EmbeddingModel,
			APIKey:     instanceProfile.EmbeddingAPIKey,
			BaseURL:    instanceProfile.EmbeddingBaseURL,
			Dimensions: instanceProfile.EmbeddingVectorSize,
		})
		if err != nil {
			slog.Warn("embedding service unavailable, L2 classification and knowledge base disabled",
				"provider", instanceProfile.EmbeddingProvider, "error", err)
		} else {
			embedder = svc
		}
	}

	var ragService rag.Service
	if embedder != nil && llmService != nil {
		ragService = rag.NewService(storeInstance, embedder, llmService)
	}

	assistant, err := orchestrator.New(ctx, orchestrator.Options{
		Store:               storeInstance,
		LLM:                 llmService,
		Embedder:            embedder,
		RAG:                 ragService,
		Scheduler:           availabilitySvc,
		Metrics:             exporter,
		Webhooks:            dispatcher,
		RuleAssistThreshold: ruleAssistThreshold,
	})
	if err != nil {
		return nil, err
	}
	if embedder != nil {
		go func() {
			warmupCtx, cancel := context.WithTimeout(context.Background(), classifierWarmupTimeout)
			defer cancel()
			if err := assistant.WarmupClassifier(warmupCtx); err != nil {
				slog.Warn("classifier warmup failed, embedding layer stays cold", "error", err)
			}
		}()
	}

	s := &APIV1Service{
		Profile:      instanceProfile,
		Store:        storeInstance,
		Assistant:    assistant,
		Availability: availabilitySvc,
		Markdown:     markdown.NewRenderer(),
		Metrics:      exporter,
		Webhooks:     dispatcher,
		channels:     chatapps.NewChannelRouter(),
		llm:          llmService,
		embedder:     embedder,
	}

	limiter, err := newClientLimiterFromSpec(instanceProfile.ChatRateLimit)
	if err != nil {
		return nil, err
	}
	s.chatLimiter = limiter

	s.registerChannels()
	return s, nil
}

// registerChannels wires every configured chat platform into the router.
// The web channel is always present; bot channels need credentials.
func (s *APIV1Service) registerChannels() {
	s.channels.Register(web.New())

	if token := s.Profile.TelegramBotToken; token != "" {
		ch, err := telegram.New(telegram.Config{BotToken: token})
		if err != nil {
			slog.Warn("telegram channel disabled", "error", err)
		} else {
			s.channels.Register(ch)
			slog.Info("telegram channel registered")
			if base := strings.TrimSuffix(s.Profile.InstanceURL, "/"); base != "" {
				if err := ch.SetWebhook(base + "/webhooks/telegram"); err != nil {
					slog.Warn("telegram webhook registration failed", "error", err)
				}
			}
		}
	}

	if s.Profile.WhatsAppAccessToken != "" && s.Profile.WhatsAppPhoneNumberID != "" {
		s.channels.Register(whatsapp.New(whatsapp.Config{
			AccessToken:   s.Profile.WhatsAppAccessToken,
			PhoneNumberID: s.Profile.WhatsAppPhoneNumberID,
			VerifyToken:   s.Profile.WhatsAppVerifyToken,
			AppSecret:     s.Profile.WhatsAppAppSecret,
			APIVersion:    s.Profile.WhatsAppAPIVersion,
		}))
		slog.Info("whatsapp channel registered")
	}
}

// Register mounts all v1 routes. Channel ingress and the public chat
// endpoint sit behind the per-client rate limiter; everything that mutates
// business state sits behind the admin key.
func (s *APIV1Service) Register(e *echo.Echo) {
	hooks := e.Group("/webhooks", s.rateLimit)
	hooks.POST("/telegram", s.handleTelegramWebhook)
	hooks.GET("/whatsapp", s.handleWhatsAppVerify)
	hooks.POST("/whatsapp", s.handleWhatsAppWebhook)
	hooks.POST("/appointments", s.handleInboundAppointment)

	api := e.Group("/api/v1")
	api.POST("/chat", s.handleChat, s.rateLimit)

	admin := api.Group("", s.adminOnly)

	admin.GET("/conversations", s.listConversations)
	admin.GET("/conversations/:id", s.getConversation)
	admin.POST("/conversations/:id/close", s.closeConversation)
	admin.GET("/conversations/:id/messages", s.listConversationMessages)

	admin.GET("/rules", s.listRules)
	admin.POST("/rules", s.createRule)
	admin.PUT("/rules/:id", s.updateRule)
	admin.DELETE("/rules/:id", s.deleteRule)

	admin.GET("/config", s.getOrchestratorConfig)
	admin.PUT("/config", s.updateOrchestratorConfig)
	admin.GET("/config/rag", s.getRAGConfig)
	admin.PUT("/config/rag", s.updateRAGConfig)

	admin.GET("/appointments", s.listAppointments)
	admin.GET("/appointments/:id", s.getAppointment)
	admin.PUT("/appointments/:id", s.updateAppointment)
	admin.POST("/appointments/:id/cancel", s.cancelAppointment)

	admin.GET("/orders", s.listOrders)
	admin.GET("/orders/:id", s.getOrder)
	admin.PUT("/orders/:id", s.updateOrder)

	admin.GET("/calendar/resources", s.listCalendarResources)
	admin.POST("/calendar/resources", s.createCalendarResource)
	admin.PUT("/calendar/resources/:id", s.updateCalendarResource)
	admin.DELETE("/calendar/resources/:id", s.deleteCalendarResource)
	admin.GET("/calendar/blocks", s.listCalendarBlocks)
	admin.POST("/calendar/blocks", s.createCalendarBlock)
	admin.DELETE("/calendar/blocks/:id", s.deleteCalendarBlock)
	admin.GET("/availability", s.getAvailability)

	admin.GET("/tools", s.listTools)
	admin.POST("/tools", s.createTool)
	admin.PUT("/tools/:id", s.updateTool)
	admin.DELETE("/tools/:id", s.deleteTool)
	admin.POST("/tools/:id/test", s.testTool)

	admin.GET("/knowledge/documents", s.listKnowledgeDocuments)
	admin.POST("/knowledge/documents", s.createKnowledgeDocument)
	admin.DELETE("/knowledge/documents/:id", s.deleteKnowledgeDocument)

	admin.GET("/models", s.listModels)
	admin.POST("/models/llm", s.createLLMConfig)
	admin.POST("/models/llm/:id/activate", s.activateLLMConfig)
	admin.POST("/models/embedding", s.createEmbeddingConfig)
	admin.POST("/models/embedding/:id/activate", s.activateEmbeddingConfig)

	admin.GET("/channels/metrics", s.channelMetrics)
}

// Close shuts down the channel connections.
func (s *APIV1Service) Close() error {
	return s.channels.Close()
}
