package cmd

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/garytangtang2-bit/hkfirstclick/config"
	"github.com/garytangtang2-bit/hkfirstclick/database"
	"github.com/garytangtang2-bit/hkfirstclick/handlers"
	"github.com/garytangtang2-bit/hkfirstclick/services"
	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/spf13/cobra"
)

func newServeCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP API",
		RunE: func(cmd *cobra.Command, _ []string) error {
			return serve(cmd.Context(), config.Load())
		},
	}
}

func migrateDatabase(cfg *config.Config) error {
	return database.Migrate(cfg.Database.DSN())
}

func serve(ctx context.Context, cfg *config.Config) error {
	if err := cfg.Validate(); err != nil {
		return err
	}

	logger := slog.New(slog.NewJSONHandler(os.Stdout, nil))

	if err := migrateDatabase(cfg); err != nil {
		return err
	}
	db, err := database.Open(cfg.Database.DSN())
	if err != nil {
		return err
	}
	defer db.Close()

	accounts := database.NewAccountStore(db)
	itineraries := database.NewItineraryStore(db)

	cache := newCache(cfg, logger)
	if closer, ok := cache.(io.Closer); ok {
		defer closer.Close()
	}
	fares := services.NewTravelpayoutsClient(cfg.Travelpayouts.Token, cfg.Travelpayouts.Marker,
		cfg.Travelpayouts.APIURL, cfg.Travelpayouts.AutocompleteURL)
	if !fares.Configured() {
		log.Println("⚠️  TRAVELPAYOUTS_API_TOKEN not set, quotes will use estimates")
	}

	var primary, fallback services.Provider
	if cfg.AI.OpenAIKey != "" {
		primary = services.NewOpenAIProvider(cfg.AI.OpenAIKey, cfg.AI.OpenAIBaseURL)
	}
	if cfg.AI.GeminiKey != "" {
		fallback = services.NewGeminiProvider(cfg.AI.GeminiKey, cfg.AI.GeminiBaseURL)
	}

	tiers := services.NewTierTable(
		services.ModelSet{Primary: cfg.AI.StandardPrimaryModel, Fallback: cfg.AI.StandardFallbackModel},
		services.ModelSet{Primary: cfg.AI.PremiumPrimaryModel, Fallback: cfg.AI.PremiumFallbackModel},
	)
	planner := services.NewPlanner(
		tiers,
		services.NewQuoteFetcher(fares, cache, logger),
		services.NewInvoker(primary, fallback, logger),
		services.NewSettler(accounts, itineraries, logger),
		accounts,
		itineraries,
		logger,
	)

	deps := handlers.Deps{
		Resolver:        services.NewResolver(services.NewTokenVerifier(cfg.Auth.JWTSecret), accounts, logger),
		Planner:         planner,
		Itineraries:     itineraries,
		DB:              db,
		StartingCredits: cfg.Credits.Starting,
		Logger:          logger,
	}
	if cfg.Billing.StripeSecret != "" {
		deps.Billing = services.NewBilling(
			services.NewStripeSessions(cfg.Billing.StripeSecret),
			accounts,
			pricingPlans(cfg),
			cfg.Server.SiteURL,
			cfg.Billing.WebhookSecret,
			logger,
		)
	} else {
		log.Println("⚠️  STRIPE_SECRET_KEY not set, checkout and webhooks are disabled")
	}

	if cfg.Server.GinMode == "release" {
		gin.SetMode(gin.ReleaseMode)
	}
	r := newRouter(cfg)
	handlers.New(deps).Register(r.Group("/api"))

	srv := &http.Server{
		Addr:              ":" + cfg.Server.Port,
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
	}

	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	errCh := make(chan error, 1)
	go func() {
		log.Printf("🚀 HK First Click backend starting on port %s", cfg.Server.Port)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		if err != nil {
			return fmt.Errorf("start server: %w", err)
		}
		return nil
	case <-ctx.Done():
	}

	log.Println("🛑 Shutting down...")
	// generation calls can run for minutes
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 3*time.Minute)
	defer cancel()
	return srv.Shutdown(shutdownCtx)
}

func newRouter(cfg *config.Config) *gin.Engine {
	r := gin.Default()

	// Railway sits behind a proxy
	_ = r.SetTrustedProxies([]string{"0.0.0.0/0"})

	allowedOrigins := append([]string{"http://localhost:5173", "http://localhost:3000"}, cfg.Server.FrontendURLs...)
	r.Use(cors.New(cors.Config{
		AllowOrigins:     allowedOrigins,
		AllowMethods:     []string{"GET", "POST", "OPTIONS"},
		AllowHeaders:     []string{"Origin", "Content-Type", "Accept", "Authorization", "Stripe-Signature"},
		ExposeHeaders:    []string{"Content-Length", "Content-Disposition"},
		AllowCredentials: false,
		MaxAge:           12 * time.Hour,
	}))

	return r
}

// newCache prefers Redis so several instances share quotes, and falls back
// to process memory when Redis is absent or unreachable.
func newCache(cfg *config.Config, logger *slog.Logger) services.Cache {
	if cfg.Redis.URL != "" {
		rc, err := services.NewRedisCache(cfg.Redis.URL, logger)
		if err == nil {
			log.Println("✅ Redis cache connected")
			return rc
		}
		log.Printf("⚠️  Redis unavailable, using in-memory cache: %v", err)
	}
	return services.NewMemoryCache(6*time.Hour, 30*time.Minute)
}

func pricingPlans(cfg *config.Config) []services.PricingPlan {
	return []services.PricingPlan{
		{Tier: services.TierPass, PriceID: cfg.Billing.PricePass, Credits: cfg.Credits.Pass},
		{Tier: services.TierYearly, PriceID: cfg.Billing.PriceYearly, Credits: cfg.Credits.Yearly},
		{Tier: services.TierTopup, PriceID: cfg.Billing.PriceTopup, Credits: cfg.Credits.Topup},
	}
}
