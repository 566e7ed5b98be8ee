// copilotd serves the ticket triage pipeline over HTTP.
package main

import (
	"context"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"

	"github.com/Sumitbhoyar/customer-support-copilot/cache"
	"github.com/Sumitbhoyar/customer-support-copilot/config"
	"github.com/Sumitbhoyar/customer-support-copilot/customer"
	"github.com/Sumitbhoyar/customer-support-copilot/events"
	"github.com/Sumitbhoyar/customer-support-copilot/knowledge"
	"github.com/Sumitbhoyar/customer-support-copilot/llm"
	"github.com/Sumitbhoyar/customer-support-copilot/llm/claude"
	"github.com/Sumitbhoyar/customer-support-copilot/llm/openai"
	"github.com/Sumitbhoyar/customer-support-copilot/pipeline"
	"github.com/Sumitbhoyar/customer-support-copilot/pkg/logging"
	"github.com/Sumitbhoyar/customer-support-copilot/pkg/metrics"
	"github.com/Sumitbhoyar/customer-support-copilot/pkg/telemetry"
	"github.com/Sumitbhoyar/customer-support-copilot/server"
	"github.com/Sumitbhoyar/customer-support-copilot/store"
	"github.com/Sumitbhoyar/customer-support-copilot/workflow"
)

func main() {
	logger := logging.Logger()

	cfg, err := config.Load()
	if err != nil {
		logger.Error("configuration invalid", "error", err)
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	shutdownTelemetry, err := telemetry.Init(ctx, telemetry.Config{
		ServiceName: "support-copilot",
		Environment: cfg.Environment,
		Disable:     cfg.TelemetryDisable,
	})
	if err != nil {
		logger.Error("telemetry init failed", "error", err)
		os.Exit(1)
	}
	defer shutdownTelemetry(context.Background())

	m := metrics.New()

	client := newModelClient(cfg)
	tokens, err := llm.NewTokenCounter()
	if err != nil {
		logger.Error("tokenizer init failed", "error", err)
		os.Exit(1)
	}

	var kb knowledge.Retriever
	if cfg.KBURL != "" {
		kb = knowledge.NewRemoteIndex(cfg.KBURL, cfg.KBAPIKey)
	} else {
		index := knowledge.NewInMemoryIndex(cfg.KBMinScore)
		if cfg.KBDir != "" {
			seedKnowledgeBase(index, cfg.KBDir)
		}
		kb = index
	}

	serverOpts := []server.Option{}

	var customerReader customer.CustomerReader
	if cfg.PostgresHost != "" {
		customers, err := store.NewCustomerStore(&store.PostgresConfig{
			Host:     cfg.PostgresHost,
			Port:     cfg.PostgresPort,
			User:     cfg.PostgresUser,
			Password: cfg.PostgresPassword,
			DBName:   cfg.PostgresDB,
			SSLMode:  cfg.PostgresSSLMode,
		})
		if err != nil {
			logger.Error("customer store unavailable", "error", err)
			os.Exit(1)
		}
		defer customers.Close()
		customerReader = customers
		serverOpts = append(serverOpts, server.WithDependency("postgres", customers))
	}

	var interactionReader customer.InteractionReader
	if cfg.MongoURI != "" {
		interactions, err := store.NewInteractionStore(&store.MongoConfig{
			URI:        cfg.MongoURI,
			Database:   cfg.MongoDatabase,
			Collection: cfg.MongoCollection,
		})
		if err != nil {
			logger.Error("interaction store unavailable", "error", err)
			os.Exit(1)
		}
		defer interactions.Close(context.Background())
		interactionReader = interactions
		serverOpts = append(serverOpts,
			server.WithInteractions(interactions),
			server.WithDependency("mongodb", interactions),
		)
	}

	var contextCache cache.Store[*customer.Context]
	if cfg.RedisAddr != "" {
		redisStore := cache.NewRedisStore[*customer.Context](&cache.RedisConfig{
			Addr:     cfg.RedisAddr,
			Password: cfg.RedisPassword,
			DB:       cfg.RedisDB,
			Prefix:   cfg.RedisPrefix,
			TTL:      cfg.CacheTTL,
		})
		defer redisStore.Close()
		contextCache = redisStore
		serverOpts = append(serverOpts, server.WithDependency("redis", redisStore))
	}
	customers := customer.NewService(customerReader, interactionReader, contextCache)

	pipelineOpts := []pipeline.Option{
		pipeline.WithCache(cfg.CacheMaxSize, cfg.CacheTTL),
		pipeline.WithKBMaxResults(cfg.KBMaxResults),
		pipeline.WithPromptTokenBudget(cfg.PromptTokenBudget, tokens),
		pipeline.WithMetrics(m),
	}
	classifier := pipeline.NewClassifier(client, pipelineOpts...)
	retriever := pipeline.NewRetriever(kb, customers, pipelineOpts...)
	generator := pipeline.NewGenerator(client, pipelineOpts...)

	var runner pipeline.Runner
	local := pipeline.NewLocal(classifier, retriever, generator, pipelineOpts...)
	runner = local
	if cfg.WorkflowURL != "" {
		engine := workflow.NewClient(workflow.Config{
			BaseURL:  cfg.WorkflowURL,
			Username: cfg.WorkflowUsername,
			Password: cfg.WorkflowPassword,
		})
		runner = pipeline.NewRemote(engine, cfg.WorkflowName, local)
		serverOpts = append(serverOpts, server.WithDependency("workflow", engine))
	}

	if len(cfg.KafkaBrokers) > 0 {
		publisher := events.NewPublisher(cfg.KafkaBrokers, cfg.KafkaTopic, m)
		defer publisher.Close()
		serverOpts = append(serverOpts, server.WithPublisher(publisher))
	}

	srv := server.New(classifier, retriever, generator, runner, serverOpts...)
	if err := srv.ListenAndServe(ctx, cfg.Port); err != nil {
		logger.Error("http server failed", "error", err)
		os.Exit(1)
	}
	logger.Info("shutdown complete")
}

func newModelClient(cfg *config.Config) llm.Client {
	switch cfg.Provider {
	case config.ProviderOpenAI:
		provider := openai.DefaultConfig(cfg.OpenAIAPIKey)
		if cfg.OpenAIModel != "" {
			provider.Model = cfg.OpenAIModel
		}
		if cfg.OpenAIEnhancedModel != "" {
			provider.EnhancedModel = cfg.OpenAIEnhancedModel
		}
		return openai.New(provider)
	default:
		provider := claude.DefaultConfig(cfg.AnthropicAPIKey)
		if cfg.AnthropicModel != "" {
			provider.Model = cfg.AnthropicModel
		}
		if cfg.AnthropicEnhanced != "" {
			provider.EnhancedModel = cfg.AnthropicEnhanced
		}
		return claude.New(provider)
	}
}

// seedKnowledgeBase ingests every HTML file under dir. Ingestion failures
// are logged per file so a bad article does not block startup.
func seedKnowledgeBase(kb *knowledge.InMemoryIndex, dir string) {
	logger := logging.WithComponent("kb_seed")
	entries, err := os.ReadDir(dir)
	if err != nil {
		logger.Warn("knowledge directory unreadable", "dir", dir, "error", err)
		return
	}
	for _, entry := range entries {
		if entry.IsDir() || !strings.HasSuffix(entry.Name(), ".html") {
			continue
		}
		path := filepath.Join(dir, entry.Name())
		data, err := os.ReadFile(path)
		if err != nil {
			logger.Warn("article unreadable", "path", path, "error", err)
			continue
		}
		id := strings.TrimSuffix(entry.Name(), ".html")
		title := strings.ReplaceAll(id, "-", " ")
		if err := kb.IngestHTML(id, title, string(data)); err != nil {
			logger.Warn("article ingest failed", "path", path, "error", err)
			continue
		}
	}
	logger.Info("knowledge base seeded", "documents", kb.Count())
}
