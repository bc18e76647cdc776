// Concierge server: conversational commerce API, agent orchestration,
// and the abandoned-cart voice recovery scheduler.
package main

import (
	"context"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"github.com/conciergelabs/concierge/pkg/agents"
	"github.com/conciergelabs/concierge/pkg/api"
	"github.com/conciergelabs/concierge/pkg/audit"
	"github.com/conciergelabs/concierge/pkg/cleanup"
	"github.com/conciergelabs/concierge/pkg/config"
	"github.com/conciergelabs/concierge/pkg/llm"
	"github.com/conciergelabs/concierge/pkg/metrics"
	"github.com/conciergelabs/concierge/pkg/models"
	"github.com/conciergelabs/concierge/pkg/orchestrator"
	"github.com/conciergelabs/concierge/pkg/services"
	"github.com/conciergelabs/concierge/pkg/store"
	"github.com/conciergelabs/concierge/pkg/version"
	"github.com/conciergelabs/concierge/pkg/voice"
)

func main() {
	if err := godotenv.Load(); err != nil {
		slog.Debug("No .env file found, continuing with existing environment", "error", err)
	}

	cfg := config.Load()
	slog.Info("Starting concierge",
		"version", version.Full(),
		"app", cfg.AppName,
		"http_port", cfg.HTTPPort,
		"llm_enabled", cfg.LLMEnabled,
		"voice_scheduler_enabled", cfg.VoiceSchedulerEnabled)

	ctx := context.Background()

	// 1. Storage: in-memory store, optionally backed by Mongo write-through
	// and a Redis cache when external services are enabled.
	var persist store.Persistence
	var cache store.Cache
	var mongoPersist *store.MongoPersistence
	var redisCache *store.RedisCache
	if cfg.EnableExternalServices {
		var err error
		mongoPersist, err = store.NewMongoPersistence(ctx, cfg.MongoDBURI, cfg.MongoDBName)
		if err != nil {
			slog.Error("Failed to connect to MongoDB", "uri", cfg.MongoDBURI, "error", err)
			os.Exit(1)
		}
		persist = mongoPersist
		slog.Info("Connected to MongoDB", "db", cfg.MongoDBName)

		redisCache, err = store.NewRedisCache(ctx, cfg.RedisURL)
		if err != nil {
			slog.Error("Failed to connect to Redis", "url", cfg.RedisURL, "error", err)
			os.Exit(1)
		}
		cache = redisCache
		slog.Info("Connected to Redis")
	}
	st := store.New(persist, cache)
	seedDemoCatalog(ctx, st)

	// 2. Domain services.
	products := services.NewProductService(st)
	carts := services.NewCartService(st, cfg)
	notifications := services.NewNotificationService(st)
	orders := services.NewOrderService(st, carts, notifications)
	memory := services.NewMemoryService(st)
	support := services.NewSupportService(st)
	sessions := services.NewSessionService(st, cfg)
	interactions := services.NewInteractionService(st)
	slog.Info("Services initialized")

	// 3. LLM planner. NewClient returns a disabled client when no
	// provider is configured; the orchestrator falls back to rules.
	planner := llm.NewClient(cfg)
	if planner.Enabled() {
		slog.Info("LLM planner enabled", "provider", cfg.LLMProvider, "model", cfg.LLMModel)
	} else {
		slog.Info("LLM planner disabled, using rule-based pipeline")
	}

	// 4. Orchestrator and agents.
	m := metrics.New()
	orch := orchestrator.New(cfg, planner, []agents.Agent{
		agents.NewProductAgent(products),
		agents.NewCartAgent(carts, products),
		agents.NewOrderAgent(orders, carts),
		agents.NewSupportAgent(support),
		agents.NewMemoryAgent(memory),
	}, sessions, carts, memory, interactions, m)

	// 5. Voice recovery.
	provider := voice.NewSuperUClient(cfg)
	voiceSvc := voice.NewService(cfg, st, provider, support, notifications, m)
	scheduler := voice.NewScheduler(voiceSvc, cfg.VoiceScanInterval)
	scheduler.Start(ctx)
	slog.Info("Voice recovery scheduler started",
		"interval", cfg.VoiceScanInterval,
		"provider_enabled", provider.Enabled())

	// 6. Retention and admin activity log.
	retention := cleanup.NewService(cleanup.DefaultConfig(), sessions, carts)
	retention.Start(ctx)

	auditLog := audit.NewLog(cfg, st)

	// 7. HTTP server.
	server := api.NewServer(cfg, orch, orders, voiceSvc, auditLog, m)
	httpServer := &http.Server{
		Addr:              ":" + cfg.HTTPPort,
		Handler:           server.Router(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		slog.Info("HTTP server listening", "addr", httpServer.Addr)
		if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errCh <- err
		}
	}()

	// 8. Wait for shutdown signal or server error.
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGTERM, syscall.SIGINT)

	select {
	case sig := <-sigCh:
		slog.Info("Shutdown signal received", "signal", sig)
	case err := <-errCh:
		slog.Error("Server error triggered shutdown", "error", err)
	}

	// 9. Graceful shutdown: stop intake first, then drain background
	// workers, then release external connections.
	shutdownCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		slog.Error("HTTP server shutdown error", "error", err)
	}

	scheduler.Stop()
	slog.Info("Voice scheduler stopped")

	retention.Stop()

	orch.Close()
	slog.Info("Orchestrator drained")

	if redisCache != nil {
		if err := redisCache.Close(); err != nil {
			slog.Error("Error closing Redis client", "error", err)
		}
	}
	if mongoPersist != nil {
		if err := mongoPersist.Close(shutdownCtx); err != nil {
			slog.Error("Error closing MongoDB client", "error", err)
		}
	}

	slog.Info("Shutdown complete")
}

// seedDemoCatalog loads a small catalog and demo user so the service is
// usable out of the box. Skipped when products already exist.
func seedDemoCatalog(ctx context.Context, st *store.Store) {
	if len(st.ListProducts()) > 0 {
		return
	}
	for _, p := range demoProducts {
		st.PutProduct(ctx, p)
	}
	st.PutUser(ctx, &models.User{
		ID:       "user_demo",
		Email:    "demo@example.com",
		Name:     "Demo Shopper",
		Phone:    "+15555550100",
		Timezone: "America/New_York",
	})
	slog.Info("Seeded demo catalog", "products", len(demoProducts))
}

var demoProducts = []*models.Product{
	{
		ProductID: "prod_trail_runner", Name: "Trail Runner X", Brand: "PeakRoute",
		Category: "shoes", Price: 129.99, Rating: 4.6, Tags: []string{"running", "trail"},
		Variants: []models.ProductVariant{
			{VariantID: "var_tr_9_black", Size: "9", Color: "black", Price: 129.99, Stock: 12, InStock: true},
			{VariantID: "var_tr_10_black", Size: "10", Color: "black", Price: 129.99, Stock: 8, InStock: true},
			{VariantID: "var_tr_9_red", Size: "9", Color: "red", Price: 134.99, Stock: 0, InStock: false},
		},
	},
	{
		ProductID: "prod_city_sneaker", Name: "City Sneaker", Brand: "Loft&Lane",
		Category: "shoes", Price: 89.99, Rating: 4.2, Tags: []string{"casual"},
		Variants: []models.ProductVariant{
			{VariantID: "var_cs_8_white", Size: "8", Color: "white", Price: 89.99, Stock: 20, InStock: true},
			{VariantID: "var_cs_9_white", Size: "9", Color: "white", Price: 89.99, Stock: 15, InStock: true},
		},
	},
	{
		ProductID: "prod_rain_shell", Name: "Storm Shell Jacket", Brand: "PeakRoute",
		Category: "jackets", Price: 159.99, Rating: 4.8, Tags: []string{"rain", "hiking"},
		Variants: []models.ProductVariant{
			{VariantID: "var_rs_m_navy", Size: "M", Color: "navy", Price: 159.99, Stock: 6, InStock: true},
			{VariantID: "var_rs_l_navy", Size: "L", Color: "navy", Price: 159.99, Stock: 4, InStock: true},
		},
	},
	{
		ProductID: "prod_wool_socks", Name: "Merino Crew Socks", Brand: "Loft&Lane",
		Category: "accessories", Price: 18.5, Rating: 4.4, Tags: []string{"wool", "running"},
		Variants: []models.ProductVariant{
			{VariantID: "var_ws_m_gray", Size: "M", Color: "gray", Price: 18.5, Stock: 40, InStock: true},
		},
	},
}
