package repositories

import (
	"errors"

	"qrwallet/internal/models"
)

var (
	ErrUserNotFound      = errors.New("user not found")
	ErrEmailTaken        = errors.New("email already taken")
	ErrPhoneTaken        = errors.New("phone number already taken")
	ErrInvalidUserData   = errors.New("invalid user data")
	ErrDatabaseOperation = errors.New("database operation failed")
)

// UserRepository defines the interface for user-related database operations
type UserRepository interface {
	// Create creates a new user in the database
	Create(user *models.User) error

	// CreateWithWallet creates the user and their wallet in one
	// transaction so a user row never exists without a wallet.
	CreateWithWallet(user *models.User, wallet *models.Wallet) error

	// GetByID retrieves a user by their ID
	GetByID(id uint) (*models.User, error)

	// GetByEmail retrieves a user by their email address
	GetByEmail(email string) (*models.User, error)

	// GetByPhone retrieves a user by their phone number
	GetByPhone(phone string) (*models.User, error)

	// Update updates an existing user's information
	Update(user *models.User) error

	// IncrementTokenVersion increments the user's token version
	IncrementTokenVersion(userID uint) error

	// List retrieves users with pagination
	List(offset, limit int) ([]*models.User, int64, error)

	// UpdatePassword updates the user's password
	UpdatePassword(userID uint, hashedPassword string) error

	// UpdateStatus updates the user's status
	UpdateStatus(userID uint, status string) error

	// UpdateKYCStatus mirrors the latest verification decision onto
	// the user row together with the legacy boolean flags.
	UpdateKYCStatus(userID uint, status string) error

	// KYC submission trail
	CreateKYCSubmission(sub *models.KYCSubmission) error
	GetKYCSubmissionByID(id uint) (*models.KYCSubmission, error)
	GetLatestKYCSubmission(userID uint) (*models.KYCSubmission, error)
	ListPendingKYCSubmissions(offset, limit int) ([]*models.KYCSubmission, int64, error)
	UpdateKYCSubmission(sub *models.KYCSubmission) error

	// ExecuteInTransaction runs fn against a transaction-scoped copy
	// of the repository.
	ExecuteInTransaction(fn func(UserRepository) error) error
}
