// Package main seeds a fresh deployment: the admin account with its
// wallet, the per-currency platform fee wallets, and an initial
// exchange-rate table so transfers work before the first refresh.
package main

import (
	"time"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"

	"qrwallet/internal/config"
	"qrwallet/internal/models"
	"qrwallet/internal/repositories"
	"qrwallet/internal/utils"
	"qrwallet/internal/utils/logger"
)

// seedRates quote each supported currency against USD. They only
// bootstrap an empty table; the refresh worker replaces them.
var seedRates = map[string]string{
	"USD": "1",
	"NGN": "0.00065",
	"XAF": "0.0017",
	"GHS": "0.064",
	"KES": "0.0077",
}

func main() {
	config.LoadEnv()
	cfg := config.Load()

	log := logger.Init(cfg.Env, "info")
	defer logger.Sync()

	if err := repositories.InitDB(); err != nil {
		log.Fatal("database initialization failed", zap.Error(err))
	}

	userRepo := repositories.NewUserRepository(repositories.DB, repositories.CacheService)
	ledgerRepo := repositories.NewLedgerRepository(repositories.DB)

	seedAdmin(cfg, userRepo, log)
	seedPlatformWallets(cfg, log)
	seedExchangeRates(cfg, ledgerRepo, log)

	log.Info("seed complete")
}

func seedAdmin(cfg *config.Config, users repositories.UserRepository, log *zap.Logger) {
	email := config.GetEnv("ADMIN_EMAIL", "admin@qrwallet.local")
	if _, err := users.GetByEmail(email); err == nil {
		log.Info("admin already exists", zap.String("email", email))
		return
	}

	password := config.GetEnv("ADMIN_PASSWORD", "")
	if password == "" {
		password = utils.MustGenerateSecureCode()
		log.Info("generated admin password", zap.String("password", password))
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		log.Fatal("hashing admin password failed", zap.Error(err))
	}

	number, err := utils.GenerateWalletNumber()
	if err != nil {
		log.Fatal("generating wallet number failed", zap.Error(err))
	}

	admin := &models.User{
		Email:     email,
		Phone:     config.GetEnv("ADMIN_PHONE", "+0000000000"),
		Password:  string(hash),
		Name:      "Platform Admin",
		Role:      "admin",
		KYCStatus: models.KYCStatusVerified,
	}
	wallet := &models.Wallet{
		WalletNumber: number,
		Currency:     cfg.DefaultCurrency,
		Status:       models.WalletStatusActive,
	}
	if err := users.CreateWithWallet(admin, wallet); err != nil {
		log.Fatal("creating admin failed", zap.Error(err))
	}
	log.Info("admin created", zap.String("email", email), zap.String("wallet", number))
}

func seedPlatformWallets(cfg *config.Config, log *zap.Logger) {
	for _, currency := range cfg.SupportedCurrencies {
		row := models.PlatformWallet{Currency: currency}
		err := repositories.DB.
			Where(models.PlatformWallet{Currency: currency}).
			FirstOrCreate(&row).Error
		if err != nil {
			log.Fatal("creating platform wallet failed",
				zap.String("currency", currency), zap.Error(err))
		}
	}
	log.Info("platform wallets ready", zap.Strings("currencies", cfg.SupportedCurrencies))
}

func seedExchangeRates(cfg *config.Config, ledger repositories.LedgerRepository, log *zap.Logger) {
	now := time.Now()
	for _, currency := range cfg.SupportedCurrencies {
		quote, ok := seedRates[currency]
		if !ok {
			log.Warn("no seed rate for currency, skipping", zap.String("currency", currency))
			continue
		}
		if currency == "USD" {
			continue
		}
		err := ledger.UpsertRate(&models.ExchangeRate{
			Base:      currency,
			Quote:     "USD",
			Rate:      decimal.RequireFromString(quote),
			Source:    "seed",
			FetchedAt: now,
		})
		if err != nil {
			log.Fatal("seeding exchange rate failed",
				zap.String("currency", currency), zap.Error(err))
		}
	}
	log.Info("exchange rates seeded")
}
