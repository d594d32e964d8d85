package auth

import (
	"testing"
	"time"

	"qrwallet/internal/errors"
	"qrwallet/internal/models"
	"qrwallet/internal/repositories"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"
)

type userRepoFake struct {
	repositories.UserRepository
	users     map[uint]*models.User
	nextID    uint
	updateErr error
	bumped    []uint
}

func newUserRepoFake() *userRepoFake {
	return &userRepoFake{users: map[uint]*models.User{}}
}

func (f *userRepoFake) add(user *models.User) *models.User {
	if user.ID == 0 {
		f.nextID++
		user.ID = f.nextID
	}
	f.users[user.ID] = user
	return user
}

func (f *userRepoFake) GetByID(id uint) (*models.User, error) {
	user, ok := f.users[id]
	if !ok {
		return nil, repositories.ErrUserNotFound
	}
	cp := *user
	return &cp, nil
}

func (f *userRepoFake) GetByEmail(email string) (*models.User, error) {
	for _, user := range f.users {
		if user.Email == email {
			cp := *user
			return &cp, nil
		}
	}
	return nil, repositories.ErrUserNotFound
}

func (f *userRepoFake) GetByPhone(phone string) (*models.User, error) {
	for _, user := range f.users {
		if user.Phone == phone {
			cp := *user
			return &cp, nil
		}
	}
	return nil, repositories.ErrUserNotFound
}

func (f *userRepoFake) CreateWithWallet(user *models.User, wallet *models.Wallet) error {
	f.nextID++
	user.ID = f.nextID
	wallet.ID = f.nextID
	wallet.UserID = user.ID
	user.WalletID = &wallet.ID
	f.users[user.ID] = user
	return nil
}

func (f *userRepoFake) Update(user *models.User) error {
	if f.updateErr != nil {
		return f.updateErr
	}
	cp := *user
	f.users[user.ID] = &cp
	return nil
}

func (f *userRepoFake) IncrementTokenVersion(userID uint) error {
	user, ok := f.users[userID]
	if !ok {
		return repositories.ErrUserNotFound
	}
	user.TokenVersion++
	f.bumped = append(f.bumped, userID)
	return nil
}

const testPassword = "Sup3r$ecret"

func newTestService(t *testing.T, repo *userRepoFake) *service {
	t.Helper()
	t.Setenv("JWT_SECRET", "auth-test-secret")
	svc := NewService(repo, Config{
		DefaultCurrency:     "USD",
		SupportedCurrencies: []string{"USD", "XAF", "NGN"},
		IPHashSalt:          "pepper",
	})
	return svc.(*service)
}

func seedUser(t *testing.T, repo *userRepoFake, email, phone string) *models.User {
	t.Helper()
	hash, err := bcrypt.GenerateFromPassword([]byte(testPassword), bcrypt.MinCost)
	require.NoError(t, err)
	return repo.add(&models.User{
		Email:        email,
		Phone:        phone,
		Password:     string(hash),
		Name:         "Ada",
		Role:         "user",
		Status:       "active",
		TokenVersion: 1,
	})
}

func TestRegisterCreatesUserWithWallet(t *testing.T) {
	repo := newUserRepoFake()
	svc := newTestService(t, repo)

	user, pair, err := svc.Register(RegisterRequest{
		Email:    "Ada@Example.COM",
		Phone:    "+237650000001",
		Password: testPassword,
		Name:     "Ada",
		Country:  "cm",
		Currency: "xaf",
	})
	require.NoError(t, err)
	require.NotNil(t, user)
	require.NotNil(t, pair)

	assert.Equal(t, "ada@example.com", user.Email)
	assert.Equal(t, "CM", user.Country)
	assert.Equal(t, 1, user.TokenVersion)
	assert.Equal(t, models.KYCStatusUnverified, user.KYCStatus)
	require.NotNil(t, user.Wallet)
	assert.Equal(t, "XAF", user.Wallet.Currency)
	assert.Regexp(t, `^QRW-\d{4}-\d{4}-\d{4}$`, user.Wallet.WalletNumber)
	assert.True(t, user.Wallet.Balance.IsZero())
	assert.NotEmpty(t, pair.AccessToken)
	assert.NotEmpty(t, pair.RefreshToken)
}

func TestRegisterDefaultsCurrency(t *testing.T) {
	repo := newUserRepoFake()
	svc := newTestService(t, repo)

	user, _, err := svc.Register(RegisterRequest{
		Email:    "ada@example.com",
		Phone:    "+237650000001",
		Password: testPassword,
		Name:     "Ada",
	})
	require.NoError(t, err)
	assert.Equal(t, "USD", user.Wallet.Currency)
}

func TestRegisterValidation(t *testing.T) {
	repo := newUserRepoFake()
	svc := newTestService(t, repo)

	_, _, err := svc.Register(RegisterRequest{
		Email:    "not-an-email",
		Phone:    "abc",
		Password: "weak",
		Name:     "  ",
		Currency: "EUR",
	})
	require.Error(t, err)
	assert.ErrorIs(t, err, errors.ErrValidation)

	appErr := errors.From(err)
	assert.Contains(t, appErr.Details, "email")
	assert.Contains(t, appErr.Details, "phone")
	assert.Contains(t, appErr.Details, "password")
	assert.Contains(t, appErr.Details, "name")
	assert.Contains(t, appErr.Details, "currency")
	assert.Empty(t, repo.users)
}

func TestRegisterDuplicateEmail(t *testing.T) {
	repo := newUserRepoFake()
	svc := newTestService(t, repo)
	seedUser(t, repo, "ada@example.com", "+237650000001")

	_, _, err := svc.Register(RegisterRequest{
		Email:    "ada@example.com",
		Phone:    "+237650000002",
		Password: testPassword,
		Name:     "Other Ada",
	})
	assert.ErrorIs(t, err, errors.ErrEmailTaken)

	_, _, err = svc.Register(RegisterRequest{
		Email:    "other@example.com",
		Phone:    "+237650000001",
		Password: testPassword,
		Name:     "Other Ada",
	})
	assert.ErrorIs(t, err, errors.ErrPhoneTaken)
}

func TestLoginSuccess(t *testing.T) {
	repo := newUserRepoFake()
	svc := newTestService(t, repo)
	seeded := seedUser(t, repo, "ada@example.com", "+237650000001")
	seeded.FailedLoginAttempts = 3

	user, pair, err := svc.Login("ada@example.com", "", testPassword, "203.0.113.9")
	require.NoError(t, err)
	require.NotNil(t, pair)
	assert.NotEmpty(t, pair.AccessToken)

	saved := repo.users[user.ID]
	assert.Zero(t, saved.FailedLoginAttempts)
	assert.False(t, saved.LastLoginAt.IsZero())
	assert.NotEmpty(t, saved.LastLoginIP)
	assert.NotEqual(t, "203.0.113.9", saved.LastLoginIP, "raw IP must never be stored")
}

func TestLoginByPhone(t *testing.T) {
	repo := newUserRepoFake()
	svc := newTestService(t, repo)
	seedUser(t, repo, "ada@example.com", "+237650000001")

	_, pair, err := svc.Login("", "+237650000001", testPassword, "")
	require.NoError(t, err)
	assert.NotEmpty(t, pair.AccessToken)
}

func TestLoginWrongPassword(t *testing.T) {
	repo := newUserRepoFake()
	svc := newTestService(t, repo)
	seeded := seedUser(t, repo, "ada@example.com", "+237650000001")

	_, _, err := svc.Login("ada@example.com", "", "wrong-password", "")
	assert.ErrorIs(t, err, errors.ErrInvalidCredentials)
	assert.Equal(t, 1, repo.users[seeded.ID].FailedLoginAttempts)
}

func TestLoginUnknownUser(t *testing.T) {
	repo := newUserRepoFake()
	svc := newTestService(t, repo)

	_, _, err := svc.Login("ghost@example.com", "", testPassword, "")
	assert.ErrorIs(t, err, errors.ErrInvalidCredentials)
}

func TestLoginLockout(t *testing.T) {
	repo := newUserRepoFake()
	svc := newTestService(t, repo)
	seeded := seedUser(t, repo, "ada@example.com", "+237650000001")

	base := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	svc.now = func() time.Time { return base }

	for i := 0; i < maxFailedLogins; i++ {
		_, _, err := svc.Login("ada@example.com", "", "wrong-password", "")
		assert.ErrorIs(t, err, errors.ErrInvalidCredentials)
	}

	locked := repo.users[seeded.ID]
	require.NotNil(t, locked.AccountLockoutUntil)
	assert.Equal(t, base.Add(lockoutDuration), *locked.AccountLockoutUntil)

	// Even the correct password is rejected while the lock holds.
	_, _, err := svc.Login("ada@example.com", "", testPassword, "")
	require.ErrorIs(t, err, errors.ErrAccountLocked)
	appErr := errors.From(err)
	assert.Contains(t, appErr.Details, "retry_after_seconds")

	// Once the lock expires the correct password gets back in and the
	// lock is cleared.
	svc.now = func() time.Time { return base.Add(lockoutDuration + time.Second) }
	_, _, err = svc.Login("ada@example.com", "", testPassword, "")
	require.NoError(t, err)
	assert.Nil(t, repo.users[seeded.ID].AccountLockoutUntil)
}

func TestLoginSuspendedAccount(t *testing.T) {
	repo := newUserRepoFake()
	svc := newTestService(t, repo)
	seeded := seedUser(t, repo, "ada@example.com", "+237650000001")
	seeded.Status = "suspended"

	_, _, err := svc.Login("ada@example.com", "", testPassword, "")
	assert.ErrorIs(t, err, errors.ErrPermissionDenied)
}

func TestRefreshTokens(t *testing.T) {
	repo := newUserRepoFake()
	svc := newTestService(t, repo)
	seedUser(t, repo, "ada@example.com", "+237650000001")

	_, pair, err := svc.Login("ada@example.com", "", testPassword, "")
	require.NoError(t, err)

	fresh, err := svc.RefreshTokens(pair.RefreshToken)
	require.NoError(t, err)
	assert.NotEmpty(t, fresh.AccessToken)
	assert.NotEmpty(t, fresh.RefreshToken)
}

func TestRefreshTokensRevoked(t *testing.T) {
	repo := newUserRepoFake()
	svc := newTestService(t, repo)
	seeded := seedUser(t, repo, "ada@example.com", "+237650000001")

	_, pair, err := svc.Login("ada@example.com", "", testPassword, "")
	require.NoError(t, err)

	require.NoError(t, svc.Logout(seeded.ID))

	_, err = svc.RefreshTokens(pair.RefreshToken)
	assert.ErrorIs(t, err, errors.ErrTokenExpired)
}

func TestRefreshTokensGarbage(t *testing.T) {
	repo := newUserRepoFake()
	svc := newTestService(t, repo)

	_, err := svc.RefreshTokens("not-a-jwt")
	assert.ErrorIs(t, err, errors.ErrInvalidToken)
}

func TestLogoutBumpsTokenVersion(t *testing.T) {
	repo := newUserRepoFake()
	svc := newTestService(t, repo)
	seeded := seedUser(t, repo, "ada@example.com", "+237650000001")

	require.NoError(t, svc.Logout(seeded.ID))
	assert.Equal(t, []uint{seeded.ID}, repo.bumped)
	assert.Equal(t, 2, repo.users[seeded.ID].TokenVersion)
}

func TestChangePassword(t *testing.T) {
	repo := newUserRepoFake()
	svc := newTestService(t, repo)
	seeded := seedUser(t, repo, "ada@example.com", "+237650000001")
	oldHash := seeded.Password

	require.NoError(t, svc.ChangePassword(seeded.ID, testPassword, "N3w$ecret!pass"))

	saved := repo.users[seeded.ID]
	assert.NotEqual(t, oldHash, saved.Password)
	assert.Equal(t, 2, saved.TokenVersion, "sessions must be revoked")
	assert.NoError(t, bcrypt.CompareHashAndPassword([]byte(saved.Password), []byte("N3w$ecret!pass")))
}

func TestChangePasswordWrongOld(t *testing.T) {
	repo := newUserRepoFake()
	svc := newTestService(t, repo)
	seeded := seedUser(t, repo, "ada@example.com", "+237650000001")

	err := svc.ChangePassword(seeded.ID, "wrong-password", "N3w$ecret!pass")
	assert.ErrorIs(t, err, errors.ErrInvalidCredentials)
	assert.Equal(t, 1, repo.users[seeded.ID].TokenVersion)
}

func TestChangePasswordWeakNew(t *testing.T) {
	repo := newUserRepoFake()
	svc := newTestService(t, repo)
	seeded := seedUser(t, repo, "ada@example.com", "+237650000001")

	err := svc.ChangePassword(seeded.ID, testPassword, "weak")
	assert.ErrorIs(t, err, errors.ErrValidation)
}
