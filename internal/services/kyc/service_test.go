package kyc

import (
	"sort"
	"testing"
	"time"

	"qrwallet/internal/errors"
	"qrwallet/internal/models"
	"qrwallet/internal/repositories"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

type userRepoFake struct {
	repositories.UserRepository
	users          map[uint]*models.User
	subs           map[uint]*models.KYCSubmission
	nextSubID      uint
	kycStatusCalls int
}

func newUserRepoFake() *userRepoFake {
	return &userRepoFake{
		users: map[uint]*models.User{},
		subs:  map[uint]*models.KYCSubmission{},
	}
}

func (f *userRepoFake) GetByID(id uint) (*models.User, error) {
	user, ok := f.users[id]
	if !ok {
		return nil, repositories.ErrUserNotFound
	}
	cp := *user
	return &cp, nil
}

func (f *userRepoFake) Update(user *models.User) error {
	cp := *user
	f.users[user.ID] = &cp
	return nil
}

func (f *userRepoFake) UpdateKYCStatus(userID uint, status string) error {
	f.kycStatusCalls++
	user, ok := f.users[userID]
	if !ok {
		return repositories.ErrUserNotFound
	}
	user.KYCStatus = status
	user.IsVerified = status == models.KYCStatusVerified
	user.KYCApproved = status == models.KYCStatusVerified
	return nil
}

func (f *userRepoFake) CreateKYCSubmission(sub *models.KYCSubmission) error {
	f.nextSubID++
	sub.ID = f.nextSubID
	cp := *sub
	f.subs[sub.ID] = &cp
	return nil
}

func (f *userRepoFake) GetKYCSubmissionByID(id uint) (*models.KYCSubmission, error) {
	sub, ok := f.subs[id]
	if !ok {
		return nil, gorm.ErrRecordNotFound
	}
	cp := *sub
	return &cp, nil
}

func (f *userRepoFake) GetLatestKYCSubmission(userID uint) (*models.KYCSubmission, error) {
	var latest *models.KYCSubmission
	for _, sub := range f.subs {
		if sub.UserID != userID {
			continue
		}
		if latest == nil || sub.ID > latest.ID {
			latest = sub
		}
	}
	if latest == nil {
		return nil, gorm.ErrRecordNotFound
	}
	cp := *latest
	return &cp, nil
}

func (f *userRepoFake) ListPendingKYCSubmissions(offset, limit int) ([]*models.KYCSubmission, int64, error) {
	var pending []*models.KYCSubmission
	for _, sub := range f.subs {
		if sub.Status == models.KYCStatusPending {
			cp := *sub
			pending = append(pending, &cp)
		}
	}
	sort.Slice(pending, func(i, j int) bool { return pending[i].ID < pending[j].ID })
	return pending, int64(len(pending)), nil
}

func (f *userRepoFake) UpdateKYCSubmission(sub *models.KYCSubmission) error {
	cp := *sub
	f.subs[sub.ID] = &cp
	return nil
}

func (f *userRepoFake) ExecuteInTransaction(fn func(repositories.UserRepository) error) error {
	return fn(f)
}

func seedUser(f *userRepoFake, id uint, status string) *models.User {
	user := &models.User{Model: gorm.Model{ID: id}, KYCStatus: status}
	f.users[id] = user
	return user
}

func TestEnforceVerifiedPasses(t *testing.T) {
	repo := newUserRepoFake()
	seedUser(repo, 1, models.KYCStatusVerified)
	svc := NewService(repo)

	assert.NoError(t, svc.Enforce(1))
	assert.Zero(t, repo.kycStatusCalls)
}

func TestEnforceMigratesLegacyFlagsOnce(t *testing.T) {
	repo := newUserRepoFake()
	user := seedUser(repo, 1, models.KYCStatusUnverified)
	user.KYCApproved = true
	svc := NewService(repo)

	require.NoError(t, svc.Enforce(1))
	assert.Equal(t, 1, repo.kycStatusCalls)
	assert.Equal(t, models.KYCStatusVerified, repo.users[1].KYCStatus)

	// Second call sees the migrated status and does not migrate again.
	require.NoError(t, svc.Enforce(1))
	assert.Equal(t, 1, repo.kycStatusCalls)
}

func TestEnforceRejectsUnverified(t *testing.T) {
	repo := newUserRepoFake()
	seedUser(repo, 1, models.KYCStatusUnverified)
	seedUser(repo, 2, models.KYCStatusPending)
	seedUser(repo, 3, models.KYCStatusRejected)
	svc := NewService(repo)

	assert.ErrorIs(t, svc.Enforce(1), errors.ErrKYCRequired)
	assert.ErrorIs(t, svc.Enforce(2), errors.ErrKYCPending)
	assert.ErrorIs(t, svc.Enforce(3), errors.ErrKYCRejected)
}

func TestEnforceUnknownUser(t *testing.T) {
	svc := NewService(newUserRepoFake())
	assert.ErrorIs(t, svc.Enforce(99), errors.ErrUserNotFound)
}

func TestSubmitCreatesPendingSubmission(t *testing.T) {
	repo := newUserRepoFake()
	seedUser(repo, 1, models.KYCStatusUnverified)
	svc := NewService(repo)

	sub, err := svc.Submit(1, SubmissionRequest{
		DocumentType: "passport",
		DocumentRef:  "A1234567",
		ScanURL:      "https://cdn.example/scans/a.jpg",
	})
	require.NoError(t, err)
	assert.Equal(t, models.KYCStatusPending, sub.Status)

	user := repo.users[1]
	assert.Equal(t, models.KYCStatusPending, user.KYCStatus)
	assert.Equal(t, "passport", user.KYCDocumentType)
	require.NotNil(t, user.KYCSubmittedAt)
	assert.WithinDuration(t, time.Now(), *user.KYCSubmittedAt, time.Minute)
}

func TestSubmitRejectsDuplicateAndVerified(t *testing.T) {
	repo := newUserRepoFake()
	seedUser(repo, 1, models.KYCStatusPending)
	seedUser(repo, 2, models.KYCStatusVerified)
	svc := NewService(repo)

	_, err := svc.Submit(1, SubmissionRequest{DocumentType: "passport", DocumentRef: "x"})
	assert.ErrorIs(t, err, errors.ErrKYCAlreadySubmitted)

	_, err = svc.Submit(2, SubmissionRequest{DocumentType: "passport", DocumentRef: "x"})
	assert.ErrorIs(t, err, errors.ErrKYCAlreadyVerified)
}

func TestReviewApproveVerifiesUser(t *testing.T) {
	repo := newUserRepoFake()
	seedUser(repo, 1, models.KYCStatusUnverified)
	svc := NewService(repo)

	sub, err := svc.Submit(1, SubmissionRequest{DocumentType: "id_card", DocumentRef: "ref"})
	require.NoError(t, err)

	require.NoError(t, svc.Review(42, sub.ID, true, ""))

	stored := repo.subs[sub.ID]
	assert.Equal(t, models.KYCStatusVerified, stored.Status)
	require.NotNil(t, stored.ReviewedBy)
	assert.EqualValues(t, 42, *stored.ReviewedBy)
	assert.Equal(t, models.KYCStatusVerified, repo.users[1].KYCStatus)

	assert.NoError(t, svc.Enforce(1))
}

func TestReviewRejectKeepsReason(t *testing.T) {
	repo := newUserRepoFake()
	seedUser(repo, 1, models.KYCStatusUnverified)
	svc := NewService(repo)

	sub, err := svc.Submit(1, SubmissionRequest{DocumentType: "id_card", DocumentRef: "ref"})
	require.NoError(t, err)

	require.NoError(t, svc.Review(42, sub.ID, false, "document unreadable"))

	stored := repo.subs[sub.ID]
	assert.Equal(t, models.KYCStatusRejected, stored.Status)
	assert.Equal(t, "document unreadable", stored.RejectReason)
	assert.ErrorIs(t, svc.Enforce(1), errors.ErrKYCRejected)

	view, err := svc.Status(1)
	require.NoError(t, err)
	assert.Equal(t, "document unreadable", view.RejectReason)
}

func TestReviewTwiceRejected(t *testing.T) {
	repo := newUserRepoFake()
	seedUser(repo, 1, models.KYCStatusUnverified)
	svc := NewService(repo)

	sub, err := svc.Submit(1, SubmissionRequest{DocumentType: "id_card", DocumentRef: "ref"})
	require.NoError(t, err)

	require.NoError(t, svc.Review(42, sub.ID, true, ""))
	err = svc.Review(42, sub.ID, true, "")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "already reviewed")
}
