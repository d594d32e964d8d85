package repositories

import (
	"errors"

	"github.com/shopspring/decimal"

	"qrwallet/internal/models"
)

var (
	ErrWalletNotFound     = errors.New("wallet not found")
	ErrTransactionMissing = errors.New("transaction not found")
	ErrPaymentNotFound    = errors.New("payment not found")
	ErrWithdrawalNotFound = errors.New("withdrawal not found")
	ErrMomoNotFound       = errors.New("momo transaction not found")
	ErrRateNotFound       = errors.New("exchange rate not found")
	ErrDuplicateRecord    = errors.New("record already exists")
)

// LedgerRepository is the data access surface for every financial
// record: wallets, receipts, deposits, withdrawals, mobile money legs
// and exchange rates. Writers that move money must run inside
// ExecuteInTransaction and take row locks through the ForUpdate
// variants.
type LedgerRepository interface {
	// Wallet operations
	CreateWallet(wallet *models.Wallet) error
	GetWallet(id uint) (*models.Wallet, error)
	GetWalletByUserID(userID uint) (*models.Wallet, error)
	GetWalletByNumber(walletNumber string) (*models.Wallet, error)
	// GetWalletForUpdate locks the row until the surrounding
	// transaction commits. Callers must lock in ascending wallet ID
	// order when taking more than one.
	GetWalletForUpdate(id uint) (*models.Wallet, error)
	UpdateWallet(wallet *models.Wallet) error

	// GetPlatformWalletForUpdate returns the locked fee wallet for a
	// currency, creating it on first use.
	GetPlatformWalletForUpdate(currency string) (*models.PlatformWallet, error)
	UpdatePlatformWallet(wallet *models.PlatformWallet) error
	ListPlatformWallets() ([]models.PlatformWallet, error)
	CreateFeeRecord(record *models.FeeRecord) error
	// GetFeeTotalUSD sums collected fees in USD-equivalent terms.
	GetFeeTotalUSD() (decimal.Decimal, error)

	// Receipt operations
	CreateTransaction(tx *models.Transaction) error
	CreateTransactions(txs []*models.Transaction) error
	GetTransactionsByTransactionID(transactionID string) ([]*models.Transaction, error)
	GetTransactionByReference(reference string) (*models.Transaction, error)
	ListTransactions(userID uint, offset, limit int) ([]models.Transaction, int64, error)
	UpdateTransaction(tx *models.Transaction) error

	// Deposit operations
	CreatePayment(payment *models.Payment) error
	GetPaymentByReference(reference string) (*models.Payment, error)
	GetPaymentByReferenceForUpdate(reference string) (*models.Payment, error)
	UpdatePayment(payment *models.Payment) error

	// Withdrawal operations
	CreateWithdrawal(w *models.Withdrawal) error
	GetWithdrawalByReference(reference string) (*models.Withdrawal, error)
	GetWithdrawalByReferenceForUpdate(reference string) (*models.Withdrawal, error)
	GetWithdrawalByTransferCode(code string) (*models.Withdrawal, error)
	UpdateWithdrawal(w *models.Withdrawal) error

	// Mobile money operations
	CreateMomoTransaction(m *models.MomoTransaction) error
	GetMomoByExternalID(externalID string) (*models.MomoTransaction, error)
	GetMomoByExternalIDForUpdate(externalID string) (*models.MomoTransaction, error)
	UpdateMomoTransaction(m *models.MomoTransaction) error

	// Exchange rate storage
	UpsertRate(rate *models.ExchangeRate) error
	GetStoredRate(base, quote string) (*models.ExchangeRate, error)

	// ExecuteInTransaction runs fn against a transaction-scoped copy
	// of the repository.
	ExecuteInTransaction(fn func(LedgerRepository) error) error
}
