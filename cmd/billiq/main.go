package main

import (
	"context"
	"fmt"
	"log"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/danielgtaylor/huma/v2"
	"github.com/danielgtaylor/huma/v2/adapters/humachi"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/joho/godotenv"
	"github.com/riandyrn/otelchi"

	"github.com/neomorfeo/billiq/internal/adapter/fakepay"
	"github.com/neomorfeo/billiq/internal/adapter/fsm"
	"github.com/neomorfeo/billiq/internal/adapter/otel"
	riverq "github.com/neomorfeo/billiq/internal/adapter/river"
	"github.com/neomorfeo/billiq/internal/adapter/sqlite"
	"github.com/neomorfeo/billiq/internal/adapter/stripe"
	"github.com/neomorfeo/billiq/internal/app"
	"github.com/neomorfeo/billiq/internal/domain"

	handler "github.com/neomorfeo/billiq/internal/adapter/http"
)

func main() {
	if err := run(); err != nil {
		log.Fatal(err)
	}
}

func run() error {
	// Missing .env is fine; the environment may be set directly.
	_ = godotenv.Load()

	port := envOrDefault("PORT", "8080")
	dbPath := envOrDefault("DATABASE_PATH", "billiq.db")

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// --- Observability ---
	providers, err := otel.Setup(ctx, otel.ConfigFromEnv())
	if err != nil {
		return fmt.Errorf("otel: %w", err)
	}
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := providers.Shutdown(shutdownCtx); err != nil {
			log.Printf("otel shutdown: %v", err)
		}
	}()

	// --- Adapters (out) ---
	db, err := otel.OpenDB(dbPath)
	if err != nil {
		return fmt.Errorf("database: %w", err)
	}
	defer db.Close()

	sqliteRepo, err := sqlite.NewFromDB(db)
	if err != nil {
		return fmt.Errorf("migrations: %w", err)
	}
	repo := otel.NewTracingRepository(sqliteRepo)

	policy, err := policyFromEnv()
	if err != nil {
		return fmt.Errorf("enforcement policy: %w", err)
	}

	provider, providerName, err := providerFromEnv()
	if err != nil {
		return fmt.Errorf("payment provider: %w", err)
	}

	riverClient, err := riverq.Setup(ctx, db, repo, policy)
	if err != nil {
		return fmt.Errorf("river: %w", err)
	}
	publisher := otel.NewTracingPublisher(riverq.NewPublisher(riverClient))

	// --- Application ---
	svc := app.NewBillingService(repo, provider, fsm.New(), publisher, policy, slog.Default())

	// --- Adapters (in) ---
	router := chi.NewMux()
	router.Use(middleware.Logger)
	router.Use(middleware.Recoverer)
	router.Use(middleware.RequestID)
	router.Use(otelchi.Middleware("billiq", otelchi.WithChiRoutes(router)))

	api := humachi.New(router, huma.DefaultConfig("billiq", "0.1.0"))
	handler.Register(api, svc, providerName)

	if err := riverClient.Start(ctx); err != nil {
		return fmt.Errorf("starting river: %w", err)
	}

	// --- Server ---
	srv := &http.Server{
		Addr:              ":" + port,
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		log.Printf("billiq listening on :%s (provider=%s)", port, providerName)
		log.Printf("API docs: http://localhost:%s/docs", port)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errCh <- err
		}
	}()

	select {
	case err := <-errCh:
		return fmt.Errorf("server: %w", err)
	case <-ctx.Done():
	}
	log.Println("shutting down...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Printf("server shutdown: %v", err)
	}
	if err := riverClient.Stop(shutdownCtx); err != nil {
		log.Printf("river shutdown: %v", err)
	}

	log.Println("stopped")
	return nil
}

// providerFromEnv selects the payment provider. BILLING_PROVIDER defaults
// to "fakepay" so a fresh checkout works with no credentials; "stripe"
// requires a secret key and a webhook signing secret.
func providerFromEnv() (domain.PaymentProvider, string, error) {
	name := envOrDefault("BILLING_PROVIDER", fakepay.ProviderName)

	switch name {
	case fakepay.ProviderName:
		return fakepay.New(envOrDefault("FAKEPAY_WEBHOOK_SIGNATURE", fakepay.DefaultSignature)), fakepay.ProviderName, nil

	case stripe.ProviderName:
		apiKey := os.Getenv("STRIPE_SECRET_KEY")
		webhookSecret := os.Getenv("STRIPE_WEBHOOK_SECRET")
		if apiKey == "" || webhookSecret == "" {
			return nil, "", fmt.Errorf("BILLING_PROVIDER=stripe requires STRIPE_SECRET_KEY and STRIPE_WEBHOOK_SECRET")
		}
		return stripe.New(stripe.Config{
			APIKey:        apiKey,
			WebhookSecret: webhookSecret,
			Prices:        priceTableFromEnv(),
		}), stripe.ProviderName, nil

	default:
		return nil, "", fmt.Errorf("unknown BILLING_PROVIDER %q", name)
	}
}

// priceTableFromEnv reads the Stripe price ids for plans and add-ons.
// Plans without a configured price are simply absent from the table and
// fail at checkout, not at startup, so a deploy can roll out plan by plan.
func priceTableFromEnv() stripe.PriceTable {
	plans := make(map[string]string)
	for _, code := range domain.PlanCodes() {
		if price := os.Getenv("STRIPE_PRICE_" + code); price != "" {
			plans[code] = price
		}
	}
	return stripe.PriceTable{
		Plans:         plans,
		AV30Block:     os.Getenv("STRIPE_PRICE_ADDON_AV30_BLOCK"),
		StorageBlock:  os.Getenv("STRIPE_PRICE_ADDON_STORAGE_BLOCK"),
		ExtraSite:     os.Getenv("STRIPE_PRICE_ADDON_EXTRA_SITE"),
		MessagingPack: os.Getenv("STRIPE_PRICE_ADDON_MESSAGING_PACK"),
	}
}

// policyFromEnv builds the enforcement policy, starting from the stock
// thresholds and overriding each value that is set in the environment.
func policyFromEnv() (domain.EnforcementPolicy, error) {
	policy := domain.DefaultEnforcementPolicy()

	var err error
	if policy.SoftRatio, err = envFloat("ENFORCEMENT_SOFT_RATIO", policy.SoftRatio); err != nil {
		return policy, err
	}
	if policy.GraceRatio, err = envFloat("ENFORCEMENT_GRACE_RATIO", policy.GraceRatio); err != nil {
		return policy, err
	}
	if policy.HardRatio, err = envFloat("ENFORCEMENT_HARD_RATIO", policy.HardRatio); err != nil {
		return policy, err
	}

	graceDays := int(policy.GracePeriod / (24 * time.Hour))
	if graceDays, err = envInt("ENFORCEMENT_GRACE_DAYS", graceDays); err != nil {
		return policy, err
	}
	policy.GracePeriod = time.Duration(graceDays) * 24 * time.Hour

	if !(policy.SoftRatio <= policy.GraceRatio && policy.GraceRatio <= policy.HardRatio) {
		return policy, fmt.Errorf("thresholds must be ordered: soft %.2f <= grace %.2f <= hard %.2f",
			policy.SoftRatio, policy.GraceRatio, policy.HardRatio)
	}
	return policy, nil
}

func envOrDefault(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func envFloat(key string, fallback float64) (float64, error) {
	v := os.Getenv(key)
	if v == "" {
		return fallback, nil
	}
	f, err := strconv.ParseFloat(v, 64)
	if err != nil {
		return 0, fmt.Errorf("%s: %w", key, err)
	}
	return f, nil
}

func envInt(key string, fallback int) (int, error) {
	v := os.Getenv(key)
	if v == "" {
		return fallback, nil
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return 0, fmt.Errorf("%s: %w", key, err)
	}
	return n, nil
}
