package withdrawal

import (
	"context"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"qrwallet/internal/errors"
	"qrwallet/internal/gateway"
	"qrwallet/internal/models"
	"qrwallet/internal/repositories"
	"qrwallet/internal/services/audit"
)

type repoFake struct {
	repositories.LedgerRepository
	wallets     map[uint]*models.Wallet
	withdrawals map[string]*models.Withdrawal
	txs         []*models.Transaction
	nextID      uint
}

func newRepoFake() *repoFake {
	return &repoFake{
		wallets:     map[uint]*models.Wallet{},
		withdrawals: map[string]*models.Withdrawal{},
	}
}

func (f *repoFake) GetWallet(id uint) (*models.Wallet, error) {
	w, ok := f.wallets[id]
	if !ok {
		return nil, repositories.ErrWalletNotFound
	}
	cp := *w
	return &cp, nil
}

func (f *repoFake) GetWalletByUserID(userID uint) (*models.Wallet, error) {
	for _, w := range f.wallets {
		if w.UserID == userID {
			cp := *w
			return &cp, nil
		}
	}
	return nil, repositories.ErrWalletNotFound
}

func (f *repoFake) GetWalletForUpdate(id uint) (*models.Wallet, error) {
	return f.GetWallet(id)
}

func (f *repoFake) UpdateWallet(w *models.Wallet) error {
	cp := *w
	f.wallets[w.ID] = &cp
	return nil
}

func (f *repoFake) CreateWithdrawal(w *models.Withdrawal) error {
	f.nextID++
	w.ID = f.nextID
	cp := *w
	f.withdrawals[w.Reference] = &cp
	return nil
}

func (f *repoFake) GetWithdrawalByReference(ref string) (*models.Withdrawal, error) {
	w, ok := f.withdrawals[ref]
	if !ok {
		return nil, repositories.ErrWithdrawalNotFound
	}
	cp := *w
	return &cp, nil
}

func (f *repoFake) GetWithdrawalByReferenceForUpdate(ref string) (*models.Withdrawal, error) {
	return f.GetWithdrawalByReference(ref)
}

func (f *repoFake) GetWithdrawalByTransferCode(code string) (*models.Withdrawal, error) {
	for _, w := range f.withdrawals {
		if w.TransferCode == code {
			cp := *w
			return &cp, nil
		}
	}
	return nil, repositories.ErrWithdrawalNotFound
}

func (f *repoFake) UpdateWithdrawal(w *models.Withdrawal) error {
	cp := *w
	f.withdrawals[w.Reference] = &cp
	return nil
}

func (f *repoFake) CreateTransaction(tx *models.Transaction) error {
	f.txs = append(f.txs, tx)
	return nil
}

func (f *repoFake) ExecuteInTransaction(fn func(repositories.LedgerRepository) error) error {
	return fn(f)
}

// bankFake scripts the bank gateway one call at a time.
type bankFake struct {
	resolveDetail *gateway.AccountDetail
	resolveErr    error
	recipientCode string
	recipientErr  error
	initResult    *gateway.TransferResult
	initErr       error
	finalizeRes   *gateway.TransferResult
	finalizeErr   error
	verifyRes     *gateway.TransferResult
	verifyErr     error
	banks         []gateway.Bank

	resolveCalls  int
	initCalls     int
	verifyCalls   int
	lastReference string
	lastCurrency  string
}

func (f *bankFake) ListBanks(_ context.Context, currency string) ([]gateway.Bank, error) {
	f.lastCurrency = currency
	return f.banks, nil
}

func (f *bankFake) ResolveAccount(_ context.Context, accountNumber, bankCode string) (*gateway.AccountDetail, error) {
	f.resolveCalls++
	if f.resolveErr != nil {
		return nil, f.resolveErr
	}
	return f.resolveDetail, nil
}

func (f *bankFake) CreateRecipient(_ context.Context, name, accountNumber, bankCode, currency string) (string, error) {
	if f.recipientErr != nil {
		return "", f.recipientErr
	}
	return f.recipientCode, nil
}

func (f *bankFake) InitiateTransfer(_ context.Context, amount decimal.Decimal, currency, recipientCode, reference, reason string) (*gateway.TransferResult, error) {
	f.initCalls++
	f.lastReference = reference
	f.lastCurrency = currency
	if f.initErr != nil {
		return nil, f.initErr
	}
	res := *f.initResult
	res.Reference = reference
	return &res, nil
}

func (f *bankFake) FinalizeTransfer(_ context.Context, transferCode, otp string) (*gateway.TransferResult, error) {
	if f.finalizeErr != nil {
		return nil, f.finalizeErr
	}
	return f.finalizeRes, nil
}

func (f *bankFake) VerifyTransfer(_ context.Context, reference string) (*gateway.TransferResult, error) {
	f.verifyCalls++
	if f.verifyErr != nil {
		return nil, f.verifyErr
	}
	return f.verifyRes, nil
}

type momoFake struct {
	transferErr error
	statusRes   *gateway.CollectionStatus
	statusErr   error

	transferCalls int
	statusCalls   int
	lastReference string
	lastPhone     string
	lastCurrency  string
}

func (f *momoFake) Transfer(_ context.Context, referenceID string, amount decimal.Decimal, currency, payeePhone, message, note string) error {
	f.transferCalls++
	f.lastReference = referenceID
	f.lastPhone = payeePhone
	f.lastCurrency = currency
	return f.transferErr
}

func (f *momoFake) TransferStatus(_ context.Context, referenceID string) (*gateway.CollectionStatus, error) {
	f.statusCalls++
	if f.statusErr != nil {
		return nil, f.statusErr
	}
	return f.statusRes, nil
}

type auditFake struct {
	entries []audit.Entry
}

func (f *auditFake) Record(_ context.Context, entry audit.Entry) {
	f.entries = append(f.entries, entry)
}

func (f *auditFake) actions() []string {
	var out []string
	for _, e := range f.entries {
		out = append(out, e.Action)
	}
	return out
}

type cacheFake struct {
	invalidated []uint
}

func (f *cacheFake) InvalidateWallet(_ context.Context, userID uint) error {
	f.invalidated = append(f.invalidated, userID)
	return nil
}

type fixture struct {
	repo  *repoFake
	bank  *bankFake
	momo  *momoFake
	audit *auditFake
	cache *cacheFake
	svc   *service
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	f := &fixture{
		repo: newRepoFake(),
		bank: &bankFake{
			resolveDetail: &gateway.AccountDetail{AccountNumber: "0123456789", AccountName: "JANE DOE"},
			recipientCode: "RCP_1",
			initResult:    &gateway.TransferResult{TransferCode: "TRF_1", Status: "pending"},
		},
		momo:  &momoFake{},
		audit: &auditFake{},
		cache: &cacheFake{},
	}
	svc := NewService(f.repo, f.bank, f.momo, f.audit, f.cache, Config{
		MinAmount: decimal.NewFromInt(100),
	})
	f.svc = svc.(*service)
	f.svc.now = func() time.Time { return time.Date(2025, 6, 15, 10, 0, 0, 0, time.UTC) }
	return f
}

func (f *fixture) addWallet(walletID, userID uint, currency string, balance int64) *models.Wallet {
	w := &models.Wallet{
		ID:           walletID,
		UserID:       userID,
		WalletNumber: "QRW-0000-0000-000" + string(rune('0'+walletID)),
		Currency:     currency,
		Balance:      decimal.NewFromInt(balance),
		Status:       models.WalletStatusActive,
	}
	f.repo.wallets[walletID] = w
	return w
}

// addWithdrawal seeds a debited, pending withdrawal the way Initiate
// leaves one before the gateway settles it.
func (f *fixture) addWithdrawal(ref string, walletID, userID uint, amount int64) *models.Withdrawal {
	w := &models.Withdrawal{
		ID:          uint(len(f.repo.withdrawals) + 1),
		UserID:      userID,
		WalletID:    walletID,
		Reference:   ref,
		Method:      models.WithdrawalMethodBank,
		Amount:      decimal.NewFromInt(amount),
		Fee:         decimal.Zero,
		Currency:    "NGN",
		StatusModel: models.StatusModel{Status: models.StatusPending},
	}
	f.repo.withdrawals[ref] = w
	return w
}

func bankRequest(amount int64) Request {
	return Request{
		Amount:        decimal.NewFromInt(amount),
		Method:        models.WithdrawalMethodBank,
		BankCode:      "011",
		AccountNumber: "0123456789",
	}
}

func TestInitiateBankWithdrawal(t *testing.T) {
	f := newFixture(t)
	f.addWallet(1, 10, "NGN", 1000)

	result, err := f.svc.Initiate(context.Background(), 10, bankRequest(500))
	require.NoError(t, err)
	assert.NotEmpty(t, result.Reference)
	assert.Equal(t, models.StatusPending, result.Status)
	assert.Equal(t, "TRF_1", result.TransferCode)
	assert.False(t, result.RequiresOTP)

	assert.True(t, f.repo.wallets[1].Balance.Equal(decimal.NewFromInt(500)),
		"wallet should be debited, got %s", f.repo.wallets[1].Balance)

	wd := f.repo.withdrawals[result.Reference]
	require.NotNil(t, wd)
	assert.Equal(t, models.StatusPending, wd.Status)
	assert.Equal(t, "JANE DOE", wd.AccountName)
	assert.Equal(t, "RCP_1", wd.RecipientCode)
	assert.Equal(t, "TRF_1", wd.TransferCode)
	assert.Equal(t, "pending", wd.GatewayStatus)
	assert.False(t, wd.Refunded)

	assert.Equal(t, result.Reference, f.bank.lastReference)
	assert.Equal(t, "NGN", f.bank.lastCurrency)
	assert.Equal(t, []string{"withdrawal.initiated"}, f.audit.actions())
	assert.Equal(t, []uint{10}, f.cache.invalidated)
}

func TestInitiateMomoWithdrawal(t *testing.T) {
	f := newFixture(t)
	f.addWallet(1, 10, "XAF", 2000)

	result, err := f.svc.Initiate(context.Background(), 10, Request{
		Amount: decimal.NewFromInt(800),
		Method: models.WithdrawalMethodMomo,
		Phone:  "+237 670 000 001",
	})
	require.NoError(t, err)
	assert.Equal(t, models.StatusPending, result.Status)

	assert.Equal(t, 1, f.momo.transferCalls)
	assert.Equal(t, result.Reference, f.momo.lastReference)
	assert.Equal(t, "237670000001", f.momo.lastPhone, "phone should be normalized")
	assert.Equal(t, "XAF", f.momo.lastCurrency)

	assert.True(t, f.repo.wallets[1].Balance.Equal(decimal.NewFromInt(1200)))
	wd := f.repo.withdrawals[result.Reference]
	require.NotNil(t, wd)
	assert.Equal(t, models.WithdrawalMethodMomo, wd.Method)
	assert.Equal(t, "237670000001", wd.MomoNumber)
}

func TestInitiateBelowMinimum(t *testing.T) {
	f := newFixture(t)
	f.addWallet(1, 10, "NGN", 1000)

	_, err := f.svc.Initiate(context.Background(), 10, bankRequest(50))
	require.Error(t, err)
	assert.True(t, errors.Is(err, errors.ErrAmountTooSmall))
	assert.Equal(t, "100", errors.From(err).Details["minimum"])

	assert.Zero(t, f.bank.resolveCalls)
	assert.True(t, f.repo.wallets[1].Balance.Equal(decimal.NewFromInt(1000)))
	assert.Equal(t, []string{"withdrawal.failed"}, f.audit.actions())
}

func TestInitiateValidation(t *testing.T) {
	f := newFixture(t)
	f.addWallet(1, 10, "NGN", 1000)

	_, err := f.svc.Initiate(context.Background(), 10, Request{
		Amount: decimal.NewFromInt(500),
		Method: models.WithdrawalMethodBank,
	})
	require.Error(t, err)
	assert.True(t, errors.Is(err, errors.ErrValidation))
	details := errors.From(err).Details
	assert.Contains(t, details, "bank_code")
	assert.Contains(t, details, "account_number")

	_, err = f.svc.Initiate(context.Background(), 10, Request{
		Amount: decimal.NewFromInt(500),
		Method: models.WithdrawalMethodMomo,
		Phone:  "nope",
	})
	require.Error(t, err)
	assert.Contains(t, errors.From(err).Details, "phone")

	_, err = f.svc.Initiate(context.Background(), 10, Request{
		Amount: decimal.NewFromInt(500),
		Method: "cheque",
	})
	require.Error(t, err)
	assert.Contains(t, errors.From(err).Details, "method")
}

func TestInitiateInsufficientBalance(t *testing.T) {
	f := newFixture(t)
	f.addWallet(1, 10, "NGN", 300)

	_, err := f.svc.Initiate(context.Background(), 10, bankRequest(500))
	require.Error(t, err)
	assert.True(t, errors.Is(err, errors.ErrInsufficientBalance))

	assert.Zero(t, f.bank.resolveCalls, "no recipient should be created for an unpayable withdrawal")
	assert.Empty(t, f.repo.withdrawals)
}

func TestInitiateSuspendedWallet(t *testing.T) {
	f := newFixture(t)
	w := f.addWallet(1, 10, "NGN", 1000)
	w.Status = models.WalletStatusSuspended

	_, err := f.svc.Initiate(context.Background(), 10, bankRequest(500))
	require.Error(t, err)
	assert.True(t, errors.Is(err, errors.ErrWalletSuspended))
	assert.Zero(t, f.bank.resolveCalls)
}

func TestRejectedDestinationCostsNothing(t *testing.T) {
	f := newFixture(t)
	f.addWallet(1, 10, "NGN", 1000)
	f.bank.resolveErr = errors.ErrGatewayRejected.WithMessage("unknown account")

	_, err := f.svc.Initiate(context.Background(), 10, bankRequest(500))
	require.Error(t, err)
	assert.True(t, errors.Is(err, errors.ErrGatewayRejected))

	assert.True(t, f.repo.wallets[1].Balance.Equal(decimal.NewFromInt(1000)))
	assert.Empty(t, f.repo.withdrawals)
	assert.Zero(t, f.bank.initCalls)
}

func TestRejectedTransferRefunds(t *testing.T) {
	f := newFixture(t)
	f.addWallet(1, 10, "NGN", 1000)
	f.bank.initErr = errors.ErrGatewayRejected.WithMessage("transfer blocked")

	_, err := f.svc.Initiate(context.Background(), 10, bankRequest(500))
	require.Error(t, err)
	assert.True(t, errors.Is(err, errors.ErrGatewayRejected))

	assert.True(t, f.repo.wallets[1].Balance.Equal(decimal.NewFromInt(1000)),
		"debit should be compensated, got %s", f.repo.wallets[1].Balance)

	require.Len(t, f.repo.withdrawals, 1)
	for _, wd := range f.repo.withdrawals {
		assert.Equal(t, models.StatusFailed, wd.Status)
		assert.True(t, wd.Refunded)
		assert.Equal(t, "transfer blocked", wd.FailReason)
	}

	require.Len(t, f.repo.txs, 1)
	receipt := f.repo.txs[0]
	assert.Equal(t, models.TransactionTypeRefund, receipt.Type)
	assert.Equal(t, models.DirectionReceive, receipt.Direction)
	assert.Equal(t, models.StatusCompleted, receipt.Status)
	assert.True(t, receipt.Amount.Equal(decimal.NewFromInt(500)))

	assert.Contains(t, f.audit.actions(), "withdrawal.refunded")
	assert.Contains(t, f.audit.actions(), "withdrawal.failed")
	assert.Zero(t, f.bank.verifyCalls, "a decisive rejection needs no cross-check")
}

func TestTimeoutConfirmedFailedRefunds(t *testing.T) {
	f := newFixture(t)
	f.addWallet(1, 10, "NGN", 1000)
	f.bank.initErr = errors.ErrGatewayUnavailable.WithMessage("timeout")
	f.bank.verifyRes = &gateway.TransferResult{Status: "failed"}

	_, err := f.svc.Initiate(context.Background(), 10, bankRequest(500))
	require.Error(t, err)
	assert.True(t, errors.Is(err, errors.ErrGatewayUnavailable))

	assert.Equal(t, 1, f.bank.verifyCalls, "an ambiguous failure must be cross-checked")
	assert.True(t, f.repo.wallets[1].Balance.Equal(decimal.NewFromInt(1000)))
	for _, wd := range f.repo.withdrawals {
		assert.True(t, wd.Refunded)
	}
}

func TestTimeoutConfirmedPendingKeepsDebit(t *testing.T) {
	f := newFixture(t)
	f.addWallet(1, 10, "NGN", 1000)
	f.bank.initErr = errors.ErrGatewayUnavailable.WithMessage("timeout")
	f.bank.verifyRes = &gateway.TransferResult{Status: "pending", TransferCode: "TRF_9"}

	result, err := f.svc.Initiate(context.Background(), 10, bankRequest(500))
	require.NoError(t, err, "a transfer the gateway confirms in flight is not a failure")
	assert.Equal(t, models.StatusPending, result.Status)

	assert.True(t, f.repo.wallets[1].Balance.Equal(decimal.NewFromInt(500)),
		"debit must stand while the transfer is in flight")
	wd := f.repo.withdrawals[result.Reference]
	assert.Equal(t, "TRF_9", wd.TransferCode)
	assert.False(t, wd.Refunded)
}

func TestTimeoutVerifyUnreachableKeepsPending(t *testing.T) {
	f := newFixture(t)
	f.addWallet(1, 10, "NGN", 1000)
	f.bank.initErr = errors.ErrGatewayUnavailable.WithMessage("timeout")
	f.bank.verifyErr = errors.ErrGatewayUnavailable.WithMessage("still down")

	result, err := f.svc.Initiate(context.Background(), 10, bankRequest(500))
	require.NoError(t, err)
	assert.Equal(t, models.StatusPending, result.Status)

	assert.True(t, f.repo.wallets[1].Balance.Equal(decimal.NewFromInt(500)),
		"never refund while the outcome is unknown")
	for _, wd := range f.repo.withdrawals {
		assert.False(t, wd.Refunded)
		assert.Equal(t, models.StatusPending, wd.Status)
	}
}

func TestOTPFlow(t *testing.T) {
	f := newFixture(t)
	f.addWallet(1, 10, "NGN", 1000)
	f.bank.initResult = &gateway.TransferResult{TransferCode: "TRF_OTP", Status: "otp", RequiresOTP: true}
	f.bank.finalizeRes = &gateway.TransferResult{TransferCode: "TRF_OTP", Status: "success"}

	result, err := f.svc.Initiate(context.Background(), 10, bankRequest(500))
	require.NoError(t, err)
	assert.True(t, result.RequiresOTP)
	assert.Equal(t, models.StatusPendingOTP, result.Status)
	assert.Equal(t, "TRF_OTP", result.TransferCode)

	wd := f.repo.withdrawals[result.Reference]
	assert.Equal(t, models.StatusPendingOTP, wd.Status)
	assert.True(t, wd.OTPRequired)

	final, err := f.svc.Finalize(context.Background(), 10, "TRF_OTP", "123456")
	require.NoError(t, err)
	assert.Equal(t, models.StatusCompleted, final.Status)

	wd = f.repo.withdrawals[result.Reference]
	assert.Equal(t, models.StatusCompleted, wd.Status)

	var states []string
	for _, change := range wd.StatusHistory {
		states = append(states, change.To)
	}
	assert.Equal(t, []string{models.StatusPendingOTP, models.StatusProcessing, models.StatusCompleted}, states)

	require.Len(t, f.repo.txs, 1)
	assert.Equal(t, models.TransactionTypeWithdrawal, f.repo.txs[0].Type)
	assert.Equal(t, models.DirectionSend, f.repo.txs[0].Direction)

	assert.True(t, f.repo.wallets[1].Balance.Equal(decimal.NewFromInt(500)),
		"completion must not touch the balance again")
}

func TestFinalizeWrongUser(t *testing.T) {
	f := newFixture(t)
	f.addWallet(1, 10, "NGN", 1000)
	wd := f.addWithdrawal("ref-1", 1, 10, 500)
	wd.Status = models.StatusPendingOTP
	wd.TransferCode = "TRF_OTP"

	_, err := f.svc.Finalize(context.Background(), 99, "TRF_OTP", "123456")
	require.Error(t, err)
	assert.True(t, errors.Is(err, errors.ErrPermissionDenied))
}

func TestFinalizeNotWaitingForOTP(t *testing.T) {
	f := newFixture(t)
	f.addWallet(1, 10, "NGN", 1000)
	wd := f.addWithdrawal("ref-1", 1, 10, 500)
	wd.TransferCode = "TRF_1"

	_, err := f.svc.Finalize(context.Background(), 10, "TRF_1", "123456")
	require.Error(t, err)
	assert.True(t, errors.Is(err, errors.ErrOTPNotPending))
}

func TestFinalizeUnknownCode(t *testing.T) {
	f := newFixture(t)

	_, err := f.svc.Finalize(context.Background(), 10, "TRF_MISSING", "123456")
	require.Error(t, err)
	assert.True(t, errors.Is(err, errors.ErrWithdrawalNotFound))
}

func TestFinalizeBadOTPKeepsState(t *testing.T) {
	f := newFixture(t)
	f.addWallet(1, 10, "NGN", 1000)
	wd := f.addWithdrawal("ref-1", 1, 10, 500)
	wd.Status = models.StatusPendingOTP
	wd.TransferCode = "TRF_OTP"
	f.bank.finalizeErr = errors.ErrGatewayRejected.WithMessage("invalid otp")

	_, err := f.svc.Finalize(context.Background(), 10, "TRF_OTP", "000000")
	require.Error(t, err)
	assert.True(t, errors.Is(err, errors.ErrGatewayRejected))

	assert.Equal(t, models.StatusPendingOTP, f.repo.withdrawals["ref-1"].Status,
		"a rejected OTP must leave the withdrawal retryable")
}

func TestCompleteTransferWebhook(t *testing.T) {
	f := newFixture(t)
	f.addWallet(1, 10, "NGN", 500)
	f.addWithdrawal("ref-1", 1, 10, 500)

	applied, err := f.svc.CompleteTransfer(context.Background(), "ref-1", "success")
	require.NoError(t, err)
	assert.True(t, applied)

	wd := f.repo.withdrawals["ref-1"]
	assert.Equal(t, models.StatusCompleted, wd.Status)
	assert.Equal(t, "success", wd.GatewayStatus)
	require.Len(t, f.repo.txs, 1)
	assert.Equal(t, models.TransactionTypeWithdrawal, f.repo.txs[0].Type)
	assert.Equal(t, "ref-1", f.repo.txs[0].Reference)

	applied, err = f.svc.CompleteTransfer(context.Background(), "ref-1", "success")
	require.NoError(t, err)
	assert.False(t, applied, "replayed success must be inert")
	assert.Len(t, f.repo.txs, 1, "replay must not duplicate the receipt")
}

func TestCompleteAfterRefundRejected(t *testing.T) {
	f := newFixture(t)
	f.addWallet(1, 10, "NGN", 500)
	f.addWithdrawal("ref-1", 1, 10, 500)

	applied, err := f.svc.RefundTransfer(context.Background(), "ref-1", "failed", "insufficient gateway balance")
	require.NoError(t, err)
	assert.True(t, applied)

	_, err = f.svc.CompleteTransfer(context.Background(), "ref-1", "success")
	require.Error(t, err, "an out-of-order success after a refund must not complete")
	assert.Equal(t, "TXN_INVALID_STATE", errors.From(err).Code)

	assert.True(t, f.repo.wallets[1].Balance.Equal(decimal.NewFromInt(1000)),
		"the refunded balance must stand")
}

func TestRefundTransferWebhook(t *testing.T) {
	f := newFixture(t)
	f.addWallet(1, 10, "NGN", 500)
	f.addWithdrawal("ref-1", 1, 10, 500)

	applied, err := f.svc.RefundTransfer(context.Background(), "ref-1", "failed", "NOT_ENOUGH_FUNDS")
	require.NoError(t, err)
	assert.True(t, applied)

	assert.True(t, f.repo.wallets[1].Balance.Equal(decimal.NewFromInt(1000)))
	wd := f.repo.withdrawals["ref-1"]
	assert.Equal(t, models.StatusFailed, wd.Status)
	assert.True(t, wd.Refunded)
	assert.Equal(t, "NOT_ENOUGH_FUNDS", wd.FailReason)

	require.Len(t, f.repo.txs, 1)
	assert.Equal(t, models.TransactionTypeRefund, f.repo.txs[0].Type)
	assert.Equal(t, []uint{10}, f.cache.invalidated)

	applied, err = f.svc.RefundTransfer(context.Background(), "ref-1", "failed", "NOT_ENOUGH_FUNDS")
	require.NoError(t, err)
	assert.False(t, applied, "replayed failure must be inert")
	assert.True(t, f.repo.wallets[1].Balance.Equal(decimal.NewFromInt(1000)),
		"replay must not credit twice")
}

func TestRefundUnknownReference(t *testing.T) {
	f := newFixture(t)

	_, err := f.svc.RefundTransfer(context.Background(), "missing", "failed", "whatever")
	require.Error(t, err)
	assert.True(t, errors.Is(err, errors.ErrWithdrawalNotFound))
}

func TestTransferEventCompletesVerifiedSuccess(t *testing.T) {
	f := newFixture(t)
	f.addWallet(1, 10, "NGN", 500)
	f.addWithdrawal("ref-1", 1, 10, 500)
	f.bank.verifyRes = &gateway.TransferResult{Reference: "ref-1", Status: "success"}

	applied, err := f.svc.ProcessTransferEvent(context.Background(), "ref-1", "success")
	require.NoError(t, err)
	assert.True(t, applied)

	assert.Equal(t, 1, f.bank.verifyCalls)
	assert.Equal(t, models.StatusCompleted, f.repo.withdrawals["ref-1"].Status)
	require.Len(t, f.repo.txs, 1)
	assert.Equal(t, models.TransactionTypeWithdrawal, f.repo.txs[0].Type)
}

func TestTransferEventQueryOverridesCallback(t *testing.T) {
	f := newFixture(t)
	f.addWallet(1, 10, "NGN", 500)
	f.addWithdrawal("ref-1", 1, 10, 500)
	f.bank.verifyRes = &gateway.TransferResult{Reference: "ref-1", Status: "failed"}

	// The callback claims success; the gateway says the transfer
	// failed, so the debit comes back.
	applied, err := f.svc.ProcessTransferEvent(context.Background(), "ref-1", "success")
	require.NoError(t, err)
	assert.True(t, applied)

	wd := f.repo.withdrawals["ref-1"]
	assert.Equal(t, models.StatusFailed, wd.Status)
	assert.True(t, wd.Refunded)
	assert.True(t, f.repo.wallets[1].Balance.Equal(decimal.NewFromInt(1000)))
}

func TestTransferEventProductionRejectsUnverified(t *testing.T) {
	f := newFixture(t)
	f.svc.cfg.Production = true
	f.addWallet(1, 10, "NGN", 500)
	f.addWithdrawal("ref-1", 1, 10, 500)
	f.bank.verifyErr = errors.ErrGatewayUnavailable

	_, err := f.svc.ProcessTransferEvent(context.Background(), "ref-1", "failed")
	require.Error(t, err)
	assert.True(t, errors.Is(err, errors.ErrCrossVerification))

	wd := f.repo.withdrawals["ref-1"]
	assert.Equal(t, models.StatusPending, wd.Status)
	assert.False(t, wd.Refunded)
	assert.True(t, f.repo.wallets[1].Balance.Equal(decimal.NewFromInt(500)),
		"an unverifiable failure event must not move money")
}

func TestTransferEventDevTrustsCallback(t *testing.T) {
	f := newFixture(t)
	f.addWallet(1, 10, "NGN", 500)
	f.addWithdrawal("ref-1", 1, 10, 500)
	f.bank.verifyErr = errors.ErrGatewayUnavailable

	applied, err := f.svc.ProcessTransferEvent(context.Background(), "ref-1", "success")
	require.NoError(t, err)
	assert.True(t, applied)
	assert.Equal(t, models.StatusCompleted, f.repo.withdrawals["ref-1"].Status)
}

func TestTransferEventMomoReasonCarried(t *testing.T) {
	f := newFixture(t)
	f.addWallet(1, 10, "XAF", 500)
	wd := f.addWithdrawal("ref-1", 1, 10, 500)
	wd.Method = models.WithdrawalMethodMomo
	wd.Currency = "XAF"
	f.momo.statusRes = &gateway.CollectionStatus{
		ExternalID: "ref-1",
		Status:     "FAILED",
		Reason:     "PAYEE_NOT_FOUND: payee not registered",
	}

	applied, err := f.svc.ProcessTransferEvent(context.Background(), "ref-1", "FAILED")
	require.NoError(t, err)
	assert.True(t, applied)

	assert.Equal(t, 1, f.momo.statusCalls)
	assert.Zero(t, f.bank.verifyCalls)
	got := f.repo.withdrawals["ref-1"]
	assert.True(t, got.Refunded)
	assert.Equal(t, "PAYEE_NOT_FOUND: payee not registered", got.FailReason)
}

func TestTransferEventPendingIgnored(t *testing.T) {
	f := newFixture(t)
	f.addWallet(1, 10, "NGN", 500)
	f.addWithdrawal("ref-1", 1, 10, 500)
	f.bank.verifyRes = &gateway.TransferResult{Reference: "ref-1", Status: "pending"}

	applied, err := f.svc.ProcessTransferEvent(context.Background(), "ref-1", "success")
	require.NoError(t, err)
	assert.False(t, applied)
	assert.Equal(t, models.StatusPending, f.repo.withdrawals["ref-1"].Status)
}

func TestTransferEventUnknownReference(t *testing.T) {
	f := newFixture(t)

	_, err := f.svc.ProcessTransferEvent(context.Background(), "ghost", "success")
	require.Error(t, err)
	assert.True(t, errors.Is(err, errors.ErrWithdrawalNotFound))
	assert.Zero(t, f.bank.verifyCalls, "existence is checked before any gateway traffic")
}

func TestBanksPassThrough(t *testing.T) {
	f := newFixture(t)
	f.bank.banks = []gateway.Bank{{Name: "GTBank", Code: "058", Currency: "NGN"}}

	banks, err := f.svc.Banks(context.Background(), "ngn")
	require.NoError(t, err)
	require.Len(t, banks, 1)
	assert.Equal(t, "NGN", f.bank.lastCurrency, "currency should be normalized")
}

func TestResolveAccountValidates(t *testing.T) {
	f := newFixture(t)

	_, err := f.svc.ResolveAccount(context.Background(), "", "011")
	require.Error(t, err)
	assert.True(t, errors.Is(err, errors.ErrValidation))

	detail, err := f.svc.ResolveAccount(context.Background(), "0123456789", "011")
	require.NoError(t, err)
	assert.Equal(t, "JANE DOE", detail.AccountName)
}
