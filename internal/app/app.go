// Package app assembles every domain component (C1-C12) into one running
// process: it is the single place that wires repositories, the LLM
// gateway, catalog, conversation, lead, CRM, notification, inactivity and
// cost-guard components together, and owns their background goroutines.
package app

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/vertexsales/salesbot/catalog"
	"github.com/vertexsales/salesbot/classifier"
	"github.com/vertexsales/salesbot/config"
	"github.com/vertexsales/salesbot/conversation"
	"github.com/vertexsales/salesbot/costguard"
	"github.com/vertexsales/salesbot/crm"
	"github.com/vertexsales/salesbot/knowledge"
	"github.com/vertexsales/salesbot/inactivity"
	"github.com/vertexsales/salesbot/leads"
	"github.com/vertexsales/salesbot/llm"
	"github.com/vertexsales/salesbot/llm/budget"
	"github.com/vertexsales/salesbot/llm/cache"
	"github.com/vertexsales/salesbot/llm/embedding"
	"github.com/vertexsales/salesbot/llm/factory"
	"github.com/vertexsales/salesbot/notify"
	"github.com/vertexsales/salesbot/obslog"
	"github.com/vertexsales/salesbot/orchestrator"
	"github.com/vertexsales/salesbot/prompts"
	"github.com/vertexsales/salesbot/store"
)

// App holds every wired component the HTTP and bot transports depend on,
// plus the background workers (C9 delivery, C10 inactivity scan) that run
// for the lifetime of the process.
type App struct {
	Orchestrator *orchestrator.Orchestrator
	Provider     llm.Provider
	Leads        *leads.Pipeline
	CRMWorker    *crm.Worker
	Inactivity   *inactivity.Monitor
	CostGuard    *costguard.Guard
	Log          *obslog.Logger

	cfg            *config.Config
	settingRepo    *store.LLMSettingRepository
	providerSwitch *ProviderSwitch
	promptCache    *cache.MultiLevelCache
	tokenBudget    *budget.TokenBudgetManager
	logger         *zap.Logger

	cancel context.CancelFunc
}

// buildPromptCache constructs the teacher's multi-level prompt cache
// (llm/cache.MultiLevelCache): always a local LRU, plus a Redis tier when
// cfg.Addr is set. Completions for tool-free, non-streaming requests are
// served from here before the provider is ever called.
func buildPromptCache(cfg config.RedisConfig, logger *zap.Logger) *cache.MultiLevelCache {
	cacheCfg := cache.DefaultCacheConfig()

	var rdb *redis.Client
	if cfg.Addr != "" {
		rdb = redis.NewClient(&redis.Options{
			Addr:         cfg.Addr,
			Password:     cfg.Password,
			DB:           cfg.DB,
			PoolSize:     cfg.PoolSize,
			MinIdleConns: cfg.MinIdleConns,
		})
	} else {
		cacheCfg.EnableRedis = false
	}

	return cache.NewMultiLevelCache(rdb, cacheCfg, logger)
}

// Build wires every component from cfg and db. It does not start any
// background goroutine; call Run for that once the HTTP server is ready to
// accept traffic.
func Build(cfg *config.Config, db *gorm.DB, consoleLogger *zap.Logger) (*App, error) {
	if err := store.AutoMigrate(db); err != nil {
		return nil, fmt.Errorf("app: migrate schema: %w", err)
	}

	telegramNotifier := notify.NewTelegramNotifier(cfg.Telegram.BotToken, cfg.Lead.ManagerTelegramChatID, consoleLogger)
	mailer := notify.NewMailer(cfg.Notify.SMTPHost, cfg.Notify.SMTPUser, cfg.Notify.SMTPPassword, cfg.Notify.SMTPUser, cfg.Notify.ManagerEmails)

	sysLogRepo := store.NewSystemLogRepository(db)
	appLog := obslog.New(consoleLogger, sysLogRepo, telegramNotifier, mailer)

	settingRepo := store.NewLLMSettingRepository(db)
	activeProviderID, override := resolveActiveLLMSetting(context.Background(), settingRepo, consoleLogger)

	provider, model, err := buildProvider(cfg.LLM, activeProviderID, override, consoleLogger)
	if err != nil {
		return nil, fmt.Errorf("app: build llm provider: %w", err)
	}
	guard := costguard.New(costguard.Config{
		MonthlyTokenLimit:   cfg.CostGuard.MonthlyTokenLimit,
		MonthlyCostLimitUSD: cfg.CostGuard.MonthlyCostLimitUSD,
		AlertThreshold:      cfg.CostGuard.AlertThreshold,
		AutoDisableOnLimit:  cfg.CostGuard.AutoDisableOnLimit,
		AlertEnabled:        cfg.CostGuard.AlertEnabled,
		WeeklyUsageReport:   cfg.CostGuard.WeeklyUsageReport,
	}, store.NewUsageRecordRepository(db), appLog, consoleLogger)
	tokenBudget := budget.NewTokenBudgetManager(budget.DefaultBudgetConfig(), consoleLogger)
	tokenBudget.OnAlert(func(a budget.Alert) {
		consoleLogger.Warn("llm token budget alert", zap.String("type", string(a.Type)), zap.Float64("threshold", a.Threshold), zap.Float64("current", a.Current))
	})

	promptCache := buildPromptCache(cfg.Redis, consoleLogger)
	resilient := llm.NewResilientProvider(provider, nil, consoleLogger)
	budgeted := NewBudgetedProvider(resilient, guard, tokenBudget, consoleLogger)
	providerSwitch := NewProviderSwitch(NewCachedProvider(budgeted, promptCache, consoleLogger))

	promptRegistry := prompts.NewRegistry(store.NewPromptRepository(db), consoleLogger)
	if err := promptRegistry.Reload(context.Background()); err != nil {
		return nil, fmt.Errorf("app: seed prompt registry: %w", err)
	}

	knowledgeStore := knowledge.NewStore(store.NewCompanyServiceRepository(db), store.NewCompanyInfoRepository(db))
	convStore := conversation.NewStore(store.NewConversationRepository(db), store.NewMessageRepository(db))

	embedder := catalog.NewEmbedder(func() (embedding.Provider, error) {
		if cfg.LLM.OpenAIAPIKey == "" {
			return nil, fmt.Errorf("no embedding provider configured: set OPENAI_API_KEY")
		}
		return embedding.NewOpenAIProvider(embedding.OpenAIConfig{
			APIKey: cfg.LLM.OpenAIAPIKey,
			Model:  cfg.Catalog.EmbeddingModel,
		}), nil
	})
	storeFactory := catalog.NewStoreFactory(cfg, cfg.Catalog.QdrantURL, consoleLogger)
	catalogEngine := catalog.NewEngine(
		store.NewCatalogVersionRepository(db),
		store.NewProductRepository(db),
		embedder,
		storeFactory,
		catalog.SearchConfig{
			MinScore:     cfg.Search.MinScore,
			NameBoost:    cfg.Search.NameBoost,
			ArticleBoost: cfg.Search.ArticleBoost,
			MaxResults:   cfg.Search.MaxResults,
		},
		consoleLogger,
	)
	if err := catalogEngine.LoadActive(context.Background()); err != nil {
		return nil, fmt.Errorf("app: load active catalog version: %w", err)
	}

	leadPipeline := leads.New(store.NewLeadRepository(db), consoleLogger, telegramNotifier, mailer)

	classify := classifier.New(providerSwitch, model, consoleLogger)

	orch := orchestrator.New(
		convStore,
		classify,
		catalogEngine,
		knowledgeStore,
		leadPipeline,
		promptRegistry,
		providerSwitch,
		model,
		0,
		consoleLogger,
	)

	crmClient := crm.NewClient(cfg.CRM.BaseURL, cfg.CRM.APIKey, cfg.CRM.Timeout)
	crmWorker := crm.NewWorker(store.NewLeadRepository(db), crmClient, appLog, cfg.CRM.RetryDelay, consoleLogger)

	inactivityMonitor := inactivity.New(convStore, leadPipeline, cfg.Lead.InactivityThreshold, consoleLogger)

	return &App{
		Orchestrator:   orch,
		Provider:       providerSwitch,
		Leads:          leadPipeline,
		CRMWorker:      crmWorker,
		Inactivity:     inactivityMonitor,
		CostGuard:      guard,
		Log:            appLog,
		cfg:            cfg,
		settingRepo:    settingRepo,
		providerSwitch: providerSwitch,
		promptCache:    promptCache,
		tokenBudget:    tokenBudget,
		logger:         consoleLogger,
	}, nil
}

// llmSettingOverride is the optional shape of sb_llm_settings.config: an
// operator-supplied API key/model override layered on top of the env-loaded
// defaults, applied without a restart via ActivateProvider.
type llmSettingOverride struct {
	APIKey string `json:"api_key"`
	Model  string `json:"model"`
}

// resolveActiveLLMSetting reads the row flagged is_active in sb_llm_settings,
// if any. A missing row is not an error: it means no admin override has been
// configured yet, so the caller falls back to cfg.LLM.DefaultProvider.
func resolveActiveLLMSetting(ctx context.Context, repo *store.LLMSettingRepository, logger *zap.Logger) (string, *llmSettingOverride) {
	setting, err := repo.Active(ctx)
	if err != nil {
		if !errors.Is(err, gorm.ErrRecordNotFound) {
			logger.Warn("failed to load active llm setting, falling back to config default", zap.Error(err))
		}
		return "", nil
	}

	override := &llmSettingOverride{}
	if setting.Config != "" {
		if err := json.Unmarshal([]byte(setting.Config), override); err != nil {
			logger.Warn("failed to parse llm setting config blob",
				zap.String("provider_id", setting.ProviderID), zap.Error(err))
		}
	}
	return setting.ProviderID, override
}

// buildProvider selects the LLM backend named by providerID (falling back to
// cfg.DefaultProvider when empty) and asks llm/factory to construct it:
// "yandex" (Yandex Foundation Models, native wire format) uses the Yandex
// key, model and folder; every other name uses the OpenAI key and model with
// the fixed base URL https://api.openai.com ("openai" builds the OpenAI
// provider, any other name a generic OpenAI-compatible provider against that
// same URL). No other base URL can be set here. override, when non-nil,
// layers an admin-supplied API key/model on top of the env-loaded config.
func buildProvider(cfg config.LLMConfig, providerID string, override *llmSettingOverride, consoleLogger *zap.Logger) (llm.Provider, string, error) {
	if providerID == "" {
		providerID = cfg.DefaultProvider
	}

	pc := factory.ProviderConfig{Timeout: cfg.Timeout}
	switch providerID {
	case "yandex":
		pc.APIKey = cfg.YandexAPIKey
		pc.Model = cfg.YandexDefaultModel
		pc.Extra = map[string]any{"folder_id": cfg.YandexFolderID}
	default:
		pc.APIKey = cfg.OpenAIAPIKey
		pc.BaseURL = "https://api.openai.com"
		pc.Model = cfg.OpenAIDefaultModel
	}
	if override != nil {
		if override.APIKey != "" {
			pc.APIKey = override.APIKey
		}
		if override.Model != "" {
			pc.Model = override.Model
		}
	}
	if pc.APIKey == "" {
		return nil, "", fmt.Errorf("%s provider selected but its API key is empty", providerID)
	}

	p, err := factory.NewProviderFromConfig(providerID, pc, consoleLogger)
	if err != nil {
		return nil, "", fmt.Errorf("app: build provider %s: %w", providerID, err)
	}
	return p, pc.Model, nil
}

// ActivateProvider flips sb_llm_settings so providerID becomes the active
// row, then rebuilds a Provider from its stored config override and swaps it
// into the running ProviderSwitch. Takes effect for the next turn; no
// restart required.
func (a *App) ActivateProvider(ctx context.Context, providerID string) error {
	if err := a.settingRepo.Activate(ctx, providerID); err != nil {
		return fmt.Errorf("app: activate provider %s: %w", providerID, err)
	}

	resolvedID, override := resolveActiveLLMSetting(ctx, a.settingRepo, a.logger)
	provider, _, err := buildProvider(a.cfg.LLM, resolvedID, override, a.logger)
	if err != nil {
		return fmt.Errorf("app: rebuild provider %s: %w", providerID, err)
	}
	resilient := llm.NewResilientProvider(provider, nil, a.logger)
	budgeted := NewBudgetedProvider(resilient, a.CostGuard, a.tokenBudget, a.logger)
	a.providerSwitch.Store(NewCachedProvider(budgeted, a.promptCache, a.logger))
	return nil
}

// Run starts the background workers (C9 CRM delivery, C10 inactivity scan).
// Call Stop to cancel them during shutdown.
func (a *App) Run() {
	ctx, cancel := context.WithCancel(context.Background())
	a.cancel = cancel
	go a.CRMWorker.Run(ctx)
	go a.Inactivity.Run(ctx)
}

// Stop cancels the background workers and flushes the hybrid logger's
// durable-write queue. drainTimeout bounds how long Stop waits for the
// logger's queue to flush.
func (a *App) Stop(drainTimeout time.Duration) {
	if a.cancel != nil {
		a.cancel()
	}
	done := make(chan struct{})
	go func() {
		a.Log.Close()
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(drainTimeout):
	}
}
