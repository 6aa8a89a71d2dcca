// Package assistant implements the user-facing service on top of the agent
// runtime: it resolves a per-user agent of the requested type, runs chat
// turns through the engine, exposes the memory and preference operations and
// coordinates the multi-agent portfolio workflow.
package assistant

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/patrickmn/go-cache"

	"github.com/fincoach/fincoach/core"
	"github.com/fincoach/fincoach/engine"
	"github.com/fincoach/fincoach/finance"
	"github.com/fincoach/fincoach/logging"
	"github.com/fincoach/fincoach/model"
)

const (
	defaultAgentTTL           = 30 * time.Minute
	defaultConversationWindow = 10
	defaultUserID             = "default_user"
)

// UnknownAgentTypeError reports a request for an agent type the service does
// not know how to build.
type UnknownAgentTypeError struct {
	AgentType string
}

func (e *UnknownAgentTypeError) Error() string {
	return fmt.Sprintf("unknown agent type: %s", e.AgentType)
}

// Options configures a Service.
type Options struct {
	// AgentTTL controls how long an idle per-user agent stays cached.
	AgentTTL time.Duration

	// ConversationWindow caps the number of history messages passed to the
	// model per turn.
	ConversationWindow int

	// DefaultUserID is used when a request carries no user id.
	DefaultUserID string

	// MarketProvider overrides the default market data provider.
	MarketProvider *finance.MarketProvider

	// Logger defaults to NoOpLogger.
	Logger logging.Logger
}

// Service is the assistant facade. All methods are safe for concurrent use.
type Service struct {
	engine       *engine.Engine
	llm          model.Model
	sessionStore core.SessionStore
	memoryStore  core.MemoryStore
	market       *finance.MarketProvider
	logger       logging.Logger

	agents     *cache.Cache // agentCacheKey -> core.Agent
	workspaces *cache.Cache // userID -> *portfolioWorkspace

	conversationWindow int
	defaultUser        string
}

// New creates the assistant service. The session and memory stores must be
// the same instances the engine was built with so state stays consistent.
func New(
	llm model.Model,
	eng *engine.Engine,
	sessionStore core.SessionStore,
	memoryStore core.MemoryStore,
	optFns ...func(o *Options),
) *Service {
	opts := Options{
		AgentTTL:           defaultAgentTTL,
		ConversationWindow: defaultConversationWindow,
		DefaultUserID:      defaultUserID,
		Logger:             logging.NoOpLogger{},
	}
	for _, fn := range optFns {
		fn(&opts)
	}

	market := opts.MarketProvider
	if market == nil {
		market = finance.NewMarketProvider(0)
	}

	return &Service{
		engine:             eng,
		llm:                llm,
		sessionStore:       sessionStore,
		memoryStore:        memoryStore,
		market:             market,
		logger:             opts.Logger,
		agents:             cache.New(opts.AgentTTL, opts.AgentTTL*2),
		workspaces:         cache.New(opts.AgentTTL, opts.AgentTTL*2),
		conversationWindow: opts.ConversationWindow,
		defaultUser:        opts.DefaultUserID,
	}
}

func agentCacheKey(userID, agentType string) string {
	return userID + "_" + agentType
}

// workspaceFor returns the user's portfolio workspace, creating it lazily.
func (s *Service) workspaceFor(userID string) *portfolioWorkspace {
	if v, found := s.workspaces.Get(userID); found {
		if ws, ok := v.(*portfolioWorkspace); ok {
			return ws
		}
	}

	ws := newPortfolioWorkspace()
	s.workspaces.Set(userID, ws, cache.DefaultExpiration)
	return ws
}

// getOrCreateAgent resolves the cached agent for (user, type), building and
// registering a fresh one on miss or after TTL expiry.
func (s *Service) getOrCreateAgent(userID, agentType string) (core.Agent, error) {
	key := agentCacheKey(userID, agentType)

	if v, found := s.agents.Get(key); found {
		if a, ok := v.(core.Agent); ok {
			return a, nil
		}
	}

	a, err := s.buildAgent(userID, agentType)
	if err != nil {
		return nil, err
	}

	s.agents.Set(key, a, cache.DefaultExpiration)
	s.engine.Register(a)

	s.logger.Info("assistant.agent.created", "user_id", userID, "agent_type", agentType)

	return a, nil
}

// ChatResult is the outcome of one chat turn.
type ChatResult struct {
	Response  string    `json:"response"`
	AgentType string    `json:"agent_type"`
	UserID    string    `json:"user_id"`
	SessionID string    `json:"session_id"`
	Timestamp time.Time `json:"timestamp"`
}

// Chat runs one turn against the user's agent of the given type. An empty
// agentType defaults to the memory agent; an empty userID falls back to the
// configured default user. The user's id doubles as the session id so
// conversations persist across turns.
func (s *Service) Chat(ctx context.Context, userID, message, agentType string) (ChatResult, error) {
	if message == "" {
		return ChatResult{}, fmt.Errorf("message must not be empty")
	}
	if userID == "" {
		userID = s.defaultUser
	}
	if agentType == "" {
		agentType = AgentMemory
	}

	a, err := s.getOrCreateAgent(userID, agentType)
	if err != nil {
		return ChatResult{}, err
	}

	content := core.Content{
		Role:  "user",
		Parts: []core.Part{core.TextPart{Text: message}},
	}

	_, events, err := s.engine.InvokeSync(ctx, userID, a.Name(), content)
	if err != nil {
		return ChatResult{}, fmt.Errorf("chat run failed: %w", err)
	}

	return ChatResult{
		Response:  finalResponse(events),
		AgentType: agentType,
		UserID:    userID,
		SessionID: userID,
		Timestamp: time.Now().UTC(),
	}, nil
}

// finalResponse picks the last non-partial assistant text from a run.
func finalResponse(events []core.Event) string {
	var response string
	for _, ev := range events {
		if ev.Partial != nil && *ev.Partial {
			continue
		}
		if ev.Content == nil || ev.Content.Role != "assistant" {
			continue
		}
		if text := ev.Text(); text != "" {
			response = text
		}
	}
	return response
}

// StoreMemory persists content in the user's long-term memory.
func (s *Service) StoreMemory(ctx context.Context, userID, content string) error {
	if content == "" {
		return fmt.Errorf("content must not be empty")
	}
	if userID == "" {
		userID = s.defaultUser
	}

	return s.memoryStore.Store(ctx, userID, content, nil)
}

// RetrieveMemories searches the user's memory, dropping hits below minScore.
// A maxResults of 0 defaults to 5.
func (s *Service) RetrieveMemories(ctx context.Context, userID, query string, minScore float64, maxResults int) ([]core.SearchResult, error) {
	if userID == "" {
		userID = s.defaultUser
	}
	if maxResults <= 0 {
		maxResults = 5
	}

	results, err := s.memoryStore.Search(ctx, userID, query, maxResults)
	if err != nil {
		return nil, fmt.Errorf("search memories: %w", err)
	}

	filtered := make([]core.SearchResult, 0, len(results))
	for _, r := range results {
		if r.Score >= minScore {
			filtered = append(filtered, r)
		}
	}

	return filtered, nil
}

// ListMemories returns everything stored for the user, newest first.
func (s *Service) ListMemories(ctx context.Context, userID string) ([]core.SearchResult, error) {
	if userID == "" {
		userID = s.defaultUser
	}
	return s.memoryStore.List(ctx, userID)
}

// AgentState is a point-in-time view of a user's memory agent.
type AgentState struct {
	AgentID        string         `json:"agent_id"`
	MessageCount   int            `json:"message_count"`
	State          map[string]any `json:"state"`
	AvailableTools []string       `json:"available_tools"`
}

// GetAgentState inspects the user's memory agent and session.
func (s *Service) GetAgentState(userID string) (AgentState, error) {
	if userID == "" {
		userID = s.defaultUser
	}

	a, err := s.getOrCreateAgent(userID, AgentMemory)
	if err != nil {
		return AgentState{}, err
	}

	sess, err := s.sessionStore.Get(userID)
	if err != nil {
		return AgentState{}, fmt.Errorf("get session: %w", err)
	}

	state := AgentState{
		AgentID:      "agent_" + userID,
		MessageCount: len(sess.GetConversationHistory()),
		State:        sess.State,
	}
	if lister, ok := a.(interface{ ListTools() []string }); ok {
		state.AvailableTools = lister.ListTools()
	}

	return state, nil
}

// Message is one conversation history entry.
type Message struct {
	Role      string    `json:"role"`
	Content   string    `json:"content"`
	Timestamp time.Time `json:"timestamp"`
}

// GetConversationHistory returns the user's recent conversation, limited to
// the configured window.
func (s *Service) GetConversationHistory(userID string) ([]Message, error) {
	if userID == "" {
		userID = s.defaultUser
	}

	sess, err := s.sessionStore.Get(userID)
	if err != nil {
		return nil, fmt.Errorf("get session: %w", err)
	}

	history := sess.GetConversationHistory()
	if s.conversationWindow > 0 && len(history) > s.conversationWindow {
		history = history[len(history)-s.conversationWindow:]
	}

	messages := make([]Message, 0, len(history))
	for _, ev := range history {
		messages = append(messages, Message{
			Role:      ev.Content.Role,
			Content:   ev.Text(),
			Timestamp: ev.Timestamp,
		})
	}

	return messages, nil
}

// Reset drops the user's cached agents, portfolio workspace and conversation
// history. Long-term memories survive a reset.
func (s *Service) Reset(userID string) error {
	if userID == "" {
		userID = s.defaultUser
	}

	prefix := userID + "_"
	for key := range s.agents.Items() {
		if strings.HasPrefix(key, prefix) {
			s.agents.Delete(key)
		}
	}
	s.workspaces.Delete(userID)

	if _, err := s.sessionStore.Create(userID); err != nil {
		return fmt.Errorf("reset session: %w", err)
	}

	s.logger.Info("assistant.agent.reset", "user_id", userID)

	return nil
}

// OrchestrationResult is the outcome of a portfolio orchestration run.
type OrchestrationResult struct {
	Success                 bool           `json:"success"`
	Response                string         `json:"response"`
	CachedPortfolios        map[string]any `json:"cached_portfolios"`
	VisualizationsAvailable bool           `json:"visualizations_available"`
}

// OrchestratePortfolio runs the multi-agent portfolio workflow for a request.
func (s *Service) OrchestratePortfolio(ctx context.Context, userID, request string) (OrchestrationResult, error) {
	if request == "" {
		request = "Create an optimal investment portfolio"
	}
	if userID == "" {
		userID = s.defaultUser
	}

	result, err := s.Chat(ctx, userID, request, AgentOrchestrator)
	if err != nil {
		return OrchestrationResult{}, err
	}

	ws := s.workspaceFor(userID)

	return OrchestrationResult{
		Success:                 true,
		Response:                result.Response,
		CachedPortfolios:        ws.snapshot(),
		VisualizationsAvailable: len(ws.charts()) > 0,
	}, nil
}

// PortfolioData returns the cached intermediate results of the user's last
// orchestration runs.
func (s *Service) PortfolioData(userID string) map[string]any {
	if userID == "" {
		userID = s.defaultUser
	}
	return s.workspaceFor(userID).snapshot()
}

// Visualizations returns the user's cached chart data.
func (s *Service) Visualizations(userID string) map[string]finance.Chart {
	if userID == "" {
		userID = s.defaultUser
	}
	return s.workspaceFor(userID).charts()
}

// ClearPortfolioCache drops every user's cached portfolio data and charts.
func (s *Service) ClearPortfolioCache() {
	s.workspaces.Flush()
}
