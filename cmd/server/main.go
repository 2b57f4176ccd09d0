package main

import (
	"context"
	"database/sql"
	"errors"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/google/uuid"
	"github.com/newrelic/go-agent/v3/newrelic"
	"github.com/redis/go-redis/v9"

	"ridecore/internal/app"
	"ridecore/internal/config"
	"ridecore/internal/handler"
	"ridecore/internal/maps"
	"ridecore/internal/payment"
	internalRedis "ridecore/internal/redis"
	"ridecore/internal/repository/postgres"
	"ridecore/internal/service"
)

func main() {
	// Load configuration.
	cfg := config.Load()

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	// Initialize New Relic FIRST (before database so we can instrument DB).
	var nrApp *newrelic.Application
	var err error
	if cfg.NewRelic.Enabled && cfg.NewRelic.LicenseKey != "" {
		nrApp, err = newrelic.NewApplication(
			newrelic.ConfigAppName(cfg.NewRelic.AppName),
			newrelic.ConfigLicense(cfg.NewRelic.LicenseKey),
			newrelic.ConfigDistributedTracerEnabled(true),
			newrelic.ConfigAppLogForwardingEnabled(true),
		)
		if err != nil {
			log.Printf("failed to initialize New Relic: %v", err)
			nrApp = nil
		} else {
			log.Printf("New Relic enabled: app=%s (with DB instrumentation)", cfg.NewRelic.AppName)
		}
	}

	db, err := app.NewDatabase(ctx, cfg.Database, nrApp)
	if err != nil {
		log.Fatalf("failed to connect to database: %v", err)
	}
	defer db.Close()
	log.Printf("Connected to PostgreSQL (driver=%s)", cfg.Database.Driver)

	redisClient, err := app.NewRedisClient(ctx, cfg.Redis, nrApp)
	if err != nil {
		log.Fatalf("failed to connect to redis: %v", err)
	}
	defer redisClient.Close()
	log.Println("Connected to Redis")

	runCtx, stop := context.WithCancel(context.Background())
	defer stop()

	rt := app.NewRealtime(cfg.Realtime, cfg.AMQP, redisClient)
	defer rt.Close()
	go rt.Run(runCtx)

	server, matchingService := wireServer(db, redisClient, rt, nrApp, cfg)

	go runSweeper(runCtx, matchingService, cfg.Matching.SweepInterval)

	go func() {
		log.Printf("Starting server on port %s", cfg.Server.Port)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatalf("server error: %v", err)
		}
	}()

	// Graceful shutdown.
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	log.Println("Shutting down server...")
	stop()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer shutdownCancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Printf("server forced to shutdown: %v", err)
	}
	if nrApp != nil {
		nrApp.Shutdown(5 * time.Second)
	}

	log.Println("Server exited")
}

// wireServer wires all dependencies and returns the HTTP server.
func wireServer(
	db *sql.DB,
	redisClient *redis.Client,
	rt *app.Realtime,
	nrApp *newrelic.Application,
	cfg *config.Config,
) (*http.Server, *service.MatchingService) {
	store := postgres.NewStore(db)

	// Redis stores.
	locationStore := internalRedis.NewLocationStore(redisClient)
	lockStore := internalRedis.NewLockStore(redisClient)
	cacheStore := internalRedis.NewCacheStore(redisClient)

	// Outbound calls to payment providers and Google Maps.
	httpClient := &http.Client{Timeout: 15 * time.Second}
	if nrApp != nil {
		httpClient.Transport = newrelic.NewRoundTripper(http.DefaultTransport)
	}

	// Payment providers.
	secret := cfg.Payment.CallbackSecret
	if secret == "" {
		secret = uuid.NewString()
		log.Println("PAYMENT_CALLBACK_SECRET not set; signed return URLs will not survive a restart")
	}
	signer := payment.NewCallbackSigner(secret, payment.DefaultSignatureTTL)
	callbacks := payment.NewCallbackURLs(cfg.Payment.CallbackBaseURL)
	providers := payment.NewRegistry(
		payment.CashProvider{},
		payment.NewClickProvider(payment.ClickConfig{
			MerchantID: cfg.Payment.ClickMerchantID,
			ServiceID:  cfg.Payment.ClickServiceID,
		}, callbacks, signer),
		payment.NewPaymeProvider(payment.PaymeConfig{
			MerchantID: cfg.Payment.PaymeMerchantID,
		}, callbacks, signer),
		payment.NewStripeProvider(payment.StripeConfig{
			SecretKey: cfg.Payment.StripeSecretKey,
			RateToUSD: cfg.Payment.StripeRateToUSD,
		}, httpClient, callbacks, signer),
	)

	// Mapping provider is optional; quotes fall back to straight-line estimates.
	var router service.RouteEstimator
	var geocoder handler.Geocoder
	if cfg.Maps.APIKey != "" {
		mapsClient, err := maps.NewClient(cfg.Maps.APIKey, httpClient)
		if err != nil {
			log.Printf("Google Maps disabled: %v", err)
		} else {
			router = maps.NewRouteService(mapsClient, cfg.Maps.Language, cfg.Maps.Region)
			geocoder = maps.NewGeocodeService(mapsClient, cfg.Maps.Language, cfg.Maps.Region)
		}
	}

	// Services.
	notificationService := service.NewNotificationService(rt.Publisher)
	fare := service.NewFareCalculator(service.FareConfig{
		Base:   cfg.Pricing.BaseFare,
		PerKm:  cfg.Pricing.PerKm,
		PerMin: cfg.Pricing.PerMin,
	})
	surgeConfig := service.DefaultSurgeConfig()
	surgeConfig.Enabled = cfg.Pricing.SurgeEnabled
	surgeConfig.RadiusKm = cfg.Pricing.SurgeRadiusKm
	surgeConfig.MaxSurge = cfg.Pricing.SurgeMultiplier
	surgeService := service.NewSurgeService(locationStore, store.Rides(), surgeConfig)

	promoService := service.NewPromoService(store, cacheStore)
	paymentService := service.NewPaymentService(store, providers, cfg.Payment.Currency, notificationService)
	lifecycleService := service.NewLifecycleService(store, paymentService, notificationService)
	matchingService := service.NewMatchingService(store, lifecycleService, lockStore, service.MatchingConfig{
		RadiusKm:   cfg.Matching.RadiusKm,
		SweepBatch: cfg.Matching.SweepBatch,
	})
	rideService := service.NewRideService(store, fare, promoService, surgeService, router, matchingService, notificationService)
	receiptService := service.NewReceiptService(store, fare, cfg.Payment.Currency)
	driverService := service.NewDriverService(store, locationStore, matchingService, notificationService)
	profileService := service.NewProfileService(store)

	// Handlers.
	engine := app.NewRouter(app.RouterDeps{
		ProfileHandler:   handler.NewProfileHandler(profileService),
		RideHandler:      handler.NewRideHandler(rideService, lifecycleService, matchingService, receiptService),
		DriverHandler:    handler.NewDriverHandler(driverService),
		PaymentHandler:   handler.NewPaymentHandler(paymentService, payment.NewCallbackParser(signer), cfg.Payment.AppURL),
		PromoHandler:     handler.NewPromoHandler(promoService),
		MapsHandler:      handler.NewMapsHandler(geocoder),
		RealtimeHandler:  handler.NewRealtimeHandler(rt.Hub),
		IdempotencyStore: redisClient,
		NewRelicApp:      nrApp,
		AllowedOrigins:   cfg.Server.AllowedOrigins,
	})

	return &http.Server{
		Addr:         ":" + cfg.Server.Port,
		Handler:      engine,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
	}, matchingService
}

// runSweeper retries matching for the pending pool until ctx is cancelled.
func runSweeper(ctx context.Context, matching *service.MatchingService, interval time.Duration) {
	if interval <= 0 {
		return
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			result, err := matching.SweepPending(ctx)
			if err != nil {
				if !errors.Is(err, context.Canceled) {
					log.Printf("[MATCHING] sweep failed: %v", err)
				}
				continue
			}
			if result.Matched > 0 {
				log.Printf("[MATCHING] sweep matched %d of %d pending rides", result.Matched, result.Examined)
			}
		}
	}
}
