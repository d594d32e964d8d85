// Package routes wires the dependency graph and registers the HTTP
// surface: repositories feed services, services feed handlers, and
// every route lands behind the gates it needs.
package routes

import (
	"time"

	"github.com/gofiber/fiber/v2"
	"gorm.io/gorm"

	"qrwallet/internal/config"
	"qrwallet/internal/gateway/momo"
	"qrwallet/internal/gateway/paystack"
	"qrwallet/internal/handlers"
	"qrwallet/internal/middleware"
	"qrwallet/internal/repositories"
	"qrwallet/internal/repositories/cache"
	"qrwallet/internal/services/audit"
	"qrwallet/internal/services/auth"
	"qrwallet/internal/services/collection"
	"qrwallet/internal/services/exchange"
	"qrwallet/internal/services/fees"
	"qrwallet/internal/services/idempotency"
	"qrwallet/internal/services/kyc"
	"qrwallet/internal/services/ledger"
	"qrwallet/internal/services/payment"
	"qrwallet/internal/services/ratelimit"
	"qrwallet/internal/services/withdrawal"
)

// App is the wired application: the services main needs a handle on
// (background refresher, guard sweeps) after route registration.
type App struct {
	Exchange    exchange.Service
	Idempotency idempotency.Service
	RateLimit   ratelimit.Service
}

// Setup builds every layer and registers the routes. cacheService may
// be nil; the wallet read cache and rate cache degrade to the store.
func Setup(app *fiber.App, db *gorm.DB, cacheService *cache.CacheService, cfg *config.Config) *App {
	production := cfg.Env == "production"

	// Repositories
	userRepo := repositories.NewUserRepository(db, cacheService)
	ledgerRepo := repositories.NewLedgerRepository(db)
	guardRepo := repositories.NewGuardRepository(db)

	// Gateway clients
	paystackClient := paystack.NewClient(cfg.PaystackSecretKey, cfg.PaystackBaseURL)
	momoClient := momo.NewClient(momo.Config{
		BaseURL:           cfg.MomoBaseURL,
		TargetEnvironment: cfg.MomoTargetEnv,
		APIUser:           cfg.MomoUserID,
		APIKey:            cfg.MomoAPIKey,
		CollectionKey:     cfg.MomoSubscriptionKeyCollection,
		DisbursementKey:   cfg.MomoSubscriptionKeyDisbursement,
	})

	// Ambient services
	auditSvc := audit.NewService(guardRepo, cfg.AuditIPSalt)
	kycSvc := kyc.NewService(userRepo)
	idemSvc := idempotency.NewService(guardRepo, idempotency.DefaultTTL)
	limitSvc := ratelimit.NewService(guardRepo, nil)
	lookupGuard := ratelimit.NewLookupGuard(5, time.Minute, 5*time.Minute, 10000)

	var rateCache exchange.RateCache
	if cacheService != nil {
		rateCache = cacheService
	}
	var fetcher exchange.Fetcher
	if cfg.ServiceReady(config.ServiceExchange) {
		fetcher = exchange.NewHTTPFetcher(cfg.ExchangeRateAPIURL, cfg.ExchangeRateAPIKey)
	}
	exchangeSvc := exchange.NewService(ledgerRepo, rateCache, fetcher, exchange.Config{
		Pivot:           cfg.DefaultCurrency,
		Currencies:      cfg.SupportedCurrencies,
		RefreshInterval: cfg.ExchangeRefreshInterval,
		MaxStaleness:    cfg.ExchangeMaxStaleness,
	})

	// Domain services
	feeCalc := fees.NewCalculator(cfg.TransferFeePercent, cfg.TransferFeeMin, cfg.TransferFeeMax)
	var walletCache ledger.WalletCache
	if cacheService != nil {
		walletCache = cacheService
	}
	ledgerSvc := ledger.NewService(ledgerRepo, userRepo, exchangeSvc, feeCalc, auditSvc, walletCache, ledger.Config{
		MaxAmount:          cfg.MaxTransferAmount,
		DailyLimit:         cfg.DailyTransferLimit,
		MonthlyLimit:       cfg.MonthlyTransferLimit,
		AccountingCurrency: cfg.DefaultCurrency,
	})
	paymentSvc := payment.NewService(ledgerRepo, paystackClient, ledgerSvc, userRepo, auditSvc, payment.Config{
		CallbackURL: cfg.PaystackCallbackURL,
		Production:  production,
	})
	collectionSvc := collection.NewService(ledgerRepo, momoClient, ledgerSvc, auditSvc, collection.Config{
		Production: production,
	})
	withdrawalSvc := withdrawal.NewService(ledgerRepo, paystackClient, momoClient, auditSvc, walletCache, withdrawal.Config{
		MinAmount:  cfg.WithdrawalMinAmount,
		Production: production,
	})
	authSvc := auth.NewService(userRepo, auth.Config{
		DefaultCurrency:     cfg.DefaultCurrency,
		SupportedCurrencies: cfg.SupportedCurrencies,
		IPHashSalt:          cfg.AuditIPSalt,
	})

	// Handlers
	authHandler := handlers.NewAuthHandler(authSvc)
	walletHandler := handlers.NewWalletHandler(ledgerSvc, kycSvc, limitSvc, lookupGuard)
	transferHandler := handlers.NewTransferHandler(ledgerSvc, kycSvc, limitSvc, idemSvc)
	withdrawalHandler := handlers.NewWithdrawalHandler(withdrawalSvc, kycSvc, limitSvc, idemSvc, cfg)
	collectionHandler := handlers.NewCollectionHandler(collectionSvc, kycSvc, limitSvc, idemSvc, cfg)
	paymentHandler := handlers.NewPaymentHandler(paymentSvc, kycSvc, limitSvc, idemSvc, cfg)
	kycHandler := handlers.NewKYCHandler(kycSvc, limitSvc)
	adminHandler := handlers.NewAdminHandler(guardRepo, ledgerRepo)
	webhookHandler := handlers.NewWebhookHandler(paymentSvc, withdrawalSvc, collectionSvc, cfg)
	healthHandler := handlers.NewHealthHandler(db, cacheService)

	authMW := middleware.NewAuth(userRepo)

	// Public surface
	app.Get("/health", healthHandler.Check)
	app.Post("/webhooks/paystack", webhookHandler.Paystack)
	app.Post("/webhooks/momo", webhookHandler.Momo)

	api := app.Group("/api")
	api.Post("/auth/register", authHandler.Register)
	api.Post("/auth/login", authHandler.Login)
	api.Post("/auth/refresh", authHandler.Refresh)

	// Authenticated surface
	authed := api.Group("", authMW.Handler)
	authed.Post("/auth/logout", authHandler.Logout)
	authed.Post("/auth/change-password", authHandler.ChangePassword)

	authed.Get("/wallet", walletHandler.Get)
	authed.Get("/wallet/lookup/:walletNumber", walletHandler.Lookup)
	authed.Get("/transactions", walletHandler.Transactions)

	authed.Post("/transfers/send", transferHandler.Send)

	authed.Post("/withdrawals", withdrawalHandler.Initiate)
	authed.Post("/withdrawals/finalize", withdrawalHandler.Finalize)
	authed.Get("/banks", withdrawalHandler.Banks)
	authed.Post("/banks/resolve", withdrawalHandler.ResolveAccount)

	authed.Post("/momo/collect", collectionHandler.Collect)

	authed.Post("/payments/deposit", paymentHandler.Deposit)
	authed.Get("/payments/verify/:reference", paymentHandler.Verify)

	authed.Get("/kyc/status", kycHandler.Status)
	authed.Post("/kyc/submit", kycHandler.Submit)

	// Admin surface
	admin := authed.Group("/admin", middleware.RequireAdmin)
	admin.Get("/kyc/pending", kycHandler.Pending)
	admin.Post("/kyc/:id/review", kycHandler.Review)
	admin.Get("/audit-logs", adminHandler.AuditLogs)
	admin.Get("/fees", adminHandler.Fees)

	return &App{
		Exchange:    exchangeSvc,
		Idempotency: idemSvc,
		RateLimit:   limitSvc,
	}
}
