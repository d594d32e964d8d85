package repositories

import (
	"errors"
	"fmt"

	"github.com/shopspring/decimal"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"qrwallet/internal/models"
)

type ledgerRepository struct {
	db *gorm.DB
}

func NewLedgerRepository(db *gorm.DB) LedgerRepository {
	return &ledgerRepository{
		db: db,
	}
}

// translateDuplicate maps the ORM's duplicated-key sentinel onto a
// repository error. TranslateError is enabled on the connection, so
// unique violations surface as gorm.ErrDuplicatedKey regardless of
// driver.
func translateDuplicate(err, sentinel error) error {
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return sentinel
	}
	return err
}

func (r *ledgerRepository) CreateWallet(wallet *models.Wallet) error {
	if err := r.db.Create(wallet).Error; err != nil {
		return fmt.Errorf("failed to create wallet: %w", err)
	}
	return nil
}

func (r *ledgerRepository) GetWallet(id uint) (*models.Wallet, error) {
	var wallet models.Wallet
	if err := r.db.First(&wallet, id).Error; err != nil {
		if err == gorm.ErrRecordNotFound {
			return nil, ErrWalletNotFound
		}
		return nil, fmt.Errorf("failed to get wallet: %w", err)
	}
	return &wallet, nil
}

func (r *ledgerRepository) GetWalletByUserID(userID uint) (*models.Wallet, error) {
	var wallet models.Wallet
	if err := r.db.Where("user_id = ?", userID).First(&wallet).Error; err != nil {
		if err == gorm.ErrRecordNotFound {
			return nil, ErrWalletNotFound
		}
		return nil, fmt.Errorf("failed to get wallet: %w", err)
	}
	return &wallet, nil
}

func (r *ledgerRepository) GetWalletByNumber(walletNumber string) (*models.Wallet, error) {
	var wallet models.Wallet
	if err := r.db.Where("wallet_number = ?", walletNumber).First(&wallet).Error; err != nil {
		if err == gorm.ErrRecordNotFound {
			return nil, ErrWalletNotFound
		}
		return nil, fmt.Errorf("failed to get wallet: %w", err)
	}
	return &wallet, nil
}

func (r *ledgerRepository) GetWalletForUpdate(id uint) (*models.Wallet, error) {
	var wallet models.Wallet
	err := r.db.Clauses(clause.Locking{Strength: "UPDATE"}).First(&wallet, id).Error
	if err != nil {
		if err == gorm.ErrRecordNotFound {
			return nil, ErrWalletNotFound
		}
		return nil, fmt.Errorf("failed to lock wallet: %w", err)
	}
	return &wallet, nil
}

func (r *ledgerRepository) UpdateWallet(wallet *models.Wallet) error {
	if err := r.db.Save(wallet).Error; err != nil {
		return fmt.Errorf("failed to update wallet: %w", err)
	}
	return nil
}

func (r *ledgerRepository) GetPlatformWalletForUpdate(currency string) (*models.PlatformWallet, error) {
	var pw models.PlatformWallet
	err := r.db.Clauses(clause.Locking{Strength: "UPDATE"}).
		Where("currency = ?", currency).First(&pw).Error
	if err == nil {
		return &pw, nil
	}
	if err != gorm.ErrRecordNotFound {
		return nil, fmt.Errorf("failed to lock platform wallet: %w", err)
	}

	pw = models.PlatformWallet{Currency: currency}
	if err := r.db.Create(&pw).Error; err != nil {
		return nil, fmt.Errorf("failed to create platform wallet: %w", err)
	}
	return &pw, nil
}

func (r *ledgerRepository) UpdatePlatformWallet(wallet *models.PlatformWallet) error {
	if err := r.db.Save(wallet).Error; err != nil {
		return fmt.Errorf("failed to update platform wallet: %w", err)
	}
	return nil
}

func (r *ledgerRepository) ListPlatformWallets() ([]models.PlatformWallet, error) {
	var wallets []models.PlatformWallet
	if err := r.db.Order("currency").Find(&wallets).Error; err != nil {
		return nil, fmt.Errorf("failed to list platform wallets: %w", err)
	}
	return wallets, nil
}

func (r *ledgerRepository) CreateFeeRecord(record *models.FeeRecord) error {
	if err := r.db.Create(record).Error; err != nil {
		return fmt.Errorf("failed to create fee record: %w", err)
	}
	return nil
}

func (r *ledgerRepository) GetFeeTotalUSD() (decimal.Decimal, error) {
	var total decimal.NullDecimal
	err := r.db.Model(&models.FeeRecord{}).
		Select("COALESCE(SUM(usd_equivalent), 0)").
		Scan(&total).Error
	if err != nil {
		return decimal.Zero, fmt.Errorf("failed to sum fee records: %w", err)
	}
	if !total.Valid {
		return decimal.Zero, nil
	}
	return total.Decimal, nil
}

func (r *ledgerRepository) CreateTransaction(tx *models.Transaction) error {
	if err := r.db.Create(tx).Error; err != nil {
		return fmt.Errorf("failed to create transaction: %w", err)
	}
	return nil
}

func (r *ledgerRepository) CreateTransactions(txs []*models.Transaction) error {
	if len(txs) == 0 {
		return nil
	}
	if err := r.db.Create(txs).Error; err != nil {
		return fmt.Errorf("failed to create transactions: %w", err)
	}
	return nil
}

func (r *ledgerRepository) GetTransactionsByTransactionID(transactionID string) ([]*models.Transaction, error) {
	var txs []*models.Transaction
	if err := r.db.Where("transaction_id = ?", transactionID).Order("id").Find(&txs).Error; err != nil {
		return nil, fmt.Errorf("failed to get transactions: %w", err)
	}
	if len(txs) == 0 {
		return nil, ErrTransactionMissing
	}
	return txs, nil
}

func (r *ledgerRepository) GetTransactionByReference(reference string) (*models.Transaction, error) {
	var tx models.Transaction
	if err := r.db.Where("reference = ?", reference).First(&tx).Error; err != nil {
		if err == gorm.ErrRecordNotFound {
			return nil, ErrTransactionMissing
		}
		return nil, fmt.Errorf("failed to get transaction: %w", err)
	}
	return &tx, nil
}

func (r *ledgerRepository) ListTransactions(userID uint, offset, limit int) ([]models.Transaction, int64, error) {
	var txs []models.Transaction
	var total int64

	q := r.db.Model(&models.Transaction{}).Where("user_id = ?", userID)
	if err := q.Count(&total).Error; err != nil {
		return nil, 0, fmt.Errorf("failed to count transactions: %w", err)
	}
	err := q.Order("created_at DESC").Offset(offset).Limit(limit).Find(&txs).Error
	if err != nil {
		return nil, 0, fmt.Errorf("failed to list transactions: %w", err)
	}
	return txs, total, nil
}

func (r *ledgerRepository) UpdateTransaction(tx *models.Transaction) error {
	if err := r.db.Save(tx).Error; err != nil {
		return fmt.Errorf("failed to update transaction: %w", err)
	}
	return nil
}

func (r *ledgerRepository) CreatePayment(payment *models.Payment) error {
	if err := r.db.Create(payment).Error; err != nil {
		return translateDuplicate(fmt.Errorf("failed to create payment: %w", err), ErrDuplicateRecord)
	}
	return nil
}

func (r *ledgerRepository) GetPaymentByReference(reference string) (*models.Payment, error) {
	var payment models.Payment
	if err := r.db.Where("reference = ?", reference).First(&payment).Error; err != nil {
		if err == gorm.ErrRecordNotFound {
			return nil, ErrPaymentNotFound
		}
		return nil, fmt.Errorf("failed to get payment: %w", err)
	}
	return &payment, nil
}

func (r *ledgerRepository) GetPaymentByReferenceForUpdate(reference string) (*models.Payment, error) {
	var payment models.Payment
	err := r.db.Clauses(clause.Locking{Strength: "UPDATE"}).
		Where("reference = ?", reference).First(&payment).Error
	if err != nil {
		if err == gorm.ErrRecordNotFound {
			return nil, ErrPaymentNotFound
		}
		return nil, fmt.Errorf("failed to lock payment: %w", err)
	}
	return &payment, nil
}

func (r *ledgerRepository) UpdatePayment(payment *models.Payment) error {
	if err := r.db.Save(payment).Error; err != nil {
		return fmt.Errorf("failed to update payment: %w", err)
	}
	return nil
}

func (r *ledgerRepository) CreateWithdrawal(w *models.Withdrawal) error {
	if err := r.db.Create(w).Error; err != nil {
		return translateDuplicate(fmt.Errorf("failed to create withdrawal: %w", err), ErrDuplicateRecord)
	}
	return nil
}

func (r *ledgerRepository) GetWithdrawalByReference(reference string) (*models.Withdrawal, error) {
	var w models.Withdrawal
	if err := r.db.Where("reference = ?", reference).First(&w).Error; err != nil {
		if err == gorm.ErrRecordNotFound {
			return nil, ErrWithdrawalNotFound
		}
		return nil, fmt.Errorf("failed to get withdrawal: %w", err)
	}
	return &w, nil
}

func (r *ledgerRepository) GetWithdrawalByReferenceForUpdate(reference string) (*models.Withdrawal, error) {
	var w models.Withdrawal
	err := r.db.Clauses(clause.Locking{Strength: "UPDATE"}).
		Where("reference = ?", reference).First(&w).Error
	if err != nil {
		if err == gorm.ErrRecordNotFound {
			return nil, ErrWithdrawalNotFound
		}
		return nil, fmt.Errorf("failed to lock withdrawal: %w", err)
	}
	return &w, nil
}

func (r *ledgerRepository) GetWithdrawalByTransferCode(code string) (*models.Withdrawal, error) {
	var w models.Withdrawal
	if err := r.db.Where("transfer_code = ?", code).First(&w).Error; err != nil {
		if err == gorm.ErrRecordNotFound {
			return nil, ErrWithdrawalNotFound
		}
		return nil, fmt.Errorf("failed to get withdrawal: %w", err)
	}
	return &w, nil
}

func (r *ledgerRepository) UpdateWithdrawal(w *models.Withdrawal) error {
	if err := r.db.Save(w).Error; err != nil {
		return fmt.Errorf("failed to update withdrawal: %w", err)
	}
	return nil
}

func (r *ledgerRepository) CreateMomoTransaction(m *models.MomoTransaction) error {
	if err := r.db.Create(m).Error; err != nil {
		return translateDuplicate(fmt.Errorf("failed to create momo transaction: %w", err), ErrDuplicateRecord)
	}
	return nil
}

func (r *ledgerRepository) GetMomoByExternalID(externalID string) (*models.MomoTransaction, error) {
	var m models.MomoTransaction
	if err := r.db.Where("external_id = ?", externalID).First(&m).Error; err != nil {
		if err == gorm.ErrRecordNotFound {
			return nil, ErrMomoNotFound
		}
		return nil, fmt.Errorf("failed to get momo transaction: %w", err)
	}
	return &m, nil
}

func (r *ledgerRepository) GetMomoByExternalIDForUpdate(externalID string) (*models.MomoTransaction, error) {
	var m models.MomoTransaction
	err := r.db.Clauses(clause.Locking{Strength: "UPDATE"}).
		Where("external_id = ?", externalID).First(&m).Error
	if err != nil {
		if err == gorm.ErrRecordNotFound {
			return nil, ErrMomoNotFound
		}
		return nil, fmt.Errorf("failed to lock momo transaction: %w", err)
	}
	return &m, nil
}

func (r *ledgerRepository) UpdateMomoTransaction(m *models.MomoTransaction) error {
	if err := r.db.Save(m).Error; err != nil {
		return fmt.Errorf("failed to update momo transaction: %w", err)
	}
	return nil
}

func (r *ledgerRepository) UpsertRate(rate *models.ExchangeRate) error {
	err := r.db.Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "base"}, {Name: "quote"}},
		DoUpdates: clause.AssignmentColumns([]string{"rate", "source", "fetched_at", "updated_at"}),
	}).Create(rate).Error
	if err != nil {
		return fmt.Errorf("failed to upsert rate: %w", err)
	}
	return nil
}

func (r *ledgerRepository) GetStoredRate(base, quote string) (*models.ExchangeRate, error) {
	var rate models.ExchangeRate
	if err := r.db.Where("base = ? AND quote = ?", base, quote).First(&rate).Error; err != nil {
		if err == gorm.ErrRecordNotFound {
			return nil, ErrRateNotFound
		}
		return nil, fmt.Errorf("failed to get rate: %w", err)
	}
	return &rate, nil
}

func (r *ledgerRepository) ExecuteInTransaction(fn func(LedgerRepository) error) error {
	return r.db.Transaction(func(tx *gorm.DB) error {
		txRepo := &ledgerRepository{db: tx}
		return fn(txRepo)
	})
}
