package idempotency

import (
	"fmt"
	"testing"
	"time"

	"qrwallet/internal/errors"
	"qrwallet/internal/models"
	"qrwallet/internal/repositories"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testKey = "k-0123456789abcdef"

type guardRepoFake struct {
	repositories.GuardRepository
	keys    map[string]models.IdempotencyKey
	getErr  error
	saveErr error
}

func newGuardRepoFake() *guardRepoFake {
	return &guardRepoFake{keys: map[string]models.IdempotencyKey{}}
}

func (f *guardRepoFake) GetIdempotencyKeyForUpdate(key string) (*models.IdempotencyKey, error) {
	if f.getErr != nil {
		return nil, f.getErr
	}
	rec, ok := f.keys[key]
	if !ok {
		return nil, repositories.ErrIdempotencyKeyNotFound
	}
	cp := rec
	return &cp, nil
}

func (f *guardRepoFake) CreateIdempotencyKey(key *models.IdempotencyKey) error {
	if _, ok := f.keys[key.Key]; ok {
		return repositories.ErrIdempotencyKeyExists
	}
	f.keys[key.Key] = *key
	return nil
}

func (f *guardRepoFake) UpdateIdempotencyKey(key *models.IdempotencyKey) error {
	if f.saveErr != nil {
		return f.saveErr
	}
	f.keys[key.Key] = *key
	return nil
}

func (f *guardRepoFake) DeleteExpiredIdempotencyKeys(before time.Time) (int64, error) {
	var n int64
	for k, rec := range f.keys {
		if rec.ExpiresAt.Before(before) {
			delete(f.keys, k)
			n++
		}
	}
	return n, nil
}

func (f *guardRepoFake) ExecuteInTransaction(fn func(repositories.GuardRepository) error) error {
	return fn(f)
}

func TestRunExecutesOnceAndCachesResult(t *testing.T) {
	repo := newGuardRepoFake()
	svc := NewService(repo, 0)

	calls := 0
	op := func() (interface{}, error) {
		calls++
		return map[string]interface{}{"transaction_id": "txn-1", "amount": "150"}, nil
	}

	first, err := svc.Run(testKey, "transfer.send", 1, op)
	require.NoError(t, err)
	assert.False(t, first.Replay)
	assert.Equal(t, "txn-1", first.Result["transaction_id"])
	assert.Equal(t, 1, calls)

	stored := repo.keys[testKey]
	assert.Equal(t, models.IdempotencyStatusCompleted, stored.Status)

	second, err := svc.Run(testKey, "transfer.send", 1, op)
	require.NoError(t, err)
	assert.True(t, second.Replay)
	assert.Equal(t, first.Result, second.Result)
	assert.Equal(t, 1, calls, "operation must not run twice")
}

func TestRunRejectsShortKey(t *testing.T) {
	repo := newGuardRepoFake()
	svc := NewService(repo, 0)

	ran := false
	_, err := svc.Run("short-key", "transfer.send", 1, func() (interface{}, error) {
		ran = true
		return nil, nil
	})

	require.Error(t, err)
	var appErr *errors.AppError
	require.True(t, errors.As(err, &appErr))
	assert.Equal(t, "SYSTEM_VALIDATION_FAILED", appErr.Code)
	assert.False(t, ran)
	assert.Empty(t, repo.keys)
}

func TestRunRejectsForeignKey(t *testing.T) {
	repo := newGuardRepoFake()
	svc := NewService(repo, 0)

	_, err := svc.Run(testKey, "transfer.send", 1, func() (interface{}, error) {
		return map[string]interface{}{"ok": true}, nil
	})
	require.NoError(t, err)

	_, err = svc.Run(testKey, "transfer.send", 2, func() (interface{}, error) {
		t.Fatal("operation must not run for a foreign key")
		return nil, nil
	})
	assert.ErrorIs(t, err, errors.ErrPermissionDenied)
}

func TestRunRejectsInFlightDuplicate(t *testing.T) {
	repo := newGuardRepoFake()
	repo.keys[testKey] = models.IdempotencyKey{
		Key:       testKey,
		UserID:    1,
		Operation: "withdrawal.initiate",
		Status:    models.IdempotencyStatusPending,
		ExpiresAt: time.Now().Add(time.Hour),
	}
	svc := NewService(repo, 0)

	_, err := svc.Run(testKey, "withdrawal.initiate", 1, func() (interface{}, error) {
		t.Fatal("operation must not run while the key is in flight")
		return nil, nil
	})
	assert.ErrorIs(t, err, errors.ErrDuplicateRequest)
}

func TestRunReclaimsExpiredPendingKey(t *testing.T) {
	repo := newGuardRepoFake()
	repo.keys[testKey] = models.IdempotencyKey{
		Key:       testKey,
		UserID:    1,
		Operation: "transfer.send",
		Status:    models.IdempotencyStatusPending,
		ExpiresAt: time.Now().Add(-time.Minute),
	}
	svc := NewService(repo, 0)

	out, err := svc.Run(testKey, "transfer.send", 1, func() (interface{}, error) {
		return map[string]interface{}{"ok": true}, nil
	})
	require.NoError(t, err)
	assert.False(t, out.Replay)
	assert.Equal(t, models.IdempotencyStatusCompleted, repo.keys[testKey].Status)
}

func TestRunFailureEnablesRetry(t *testing.T) {
	repo := newGuardRepoFake()
	svc := NewService(repo, 0)

	boom := fmt.Errorf("gateway timeout")
	_, err := svc.Run(testKey, "transfer.send", 1, func() (interface{}, error) {
		return nil, boom
	})
	require.ErrorIs(t, err, boom)

	stored := repo.keys[testKey]
	assert.Equal(t, models.IdempotencyStatusFailed, stored.Status)
	assert.Equal(t, "gateway timeout", stored.LastError)

	out, err := svc.Run(testKey, "transfer.send", 1, func() (interface{}, error) {
		return map[string]interface{}{"ok": true}, nil
	})
	require.NoError(t, err)
	assert.False(t, out.Replay)
	assert.Equal(t, models.IdempotencyStatusCompleted, repo.keys[testKey].Status)
}

func TestRunFailsClosedOnClaimStorageError(t *testing.T) {
	repo := newGuardRepoFake()
	repo.getErr = fmt.Errorf("connection refused")
	svc := NewService(repo, 0)

	_, err := svc.Run(testKey, "transfer.send", 1, func() (interface{}, error) {
		t.Fatal("operation must not run when the claim cannot be made")
		return nil, nil
	})

	require.Error(t, err)
	var appErr *errors.AppError
	require.True(t, errors.As(err, &appErr))
	assert.Equal(t, "SYSTEM_INTERNAL", appErr.Code)
}

func TestSweepRemovesExpiredKeys(t *testing.T) {
	repo := newGuardRepoFake()
	repo.keys["expired-0123456789ab"] = models.IdempotencyKey{
		Key:       "expired-0123456789ab",
		ExpiresAt: time.Now().Add(-time.Hour),
	}
	repo.keys[testKey] = models.IdempotencyKey{
		Key:       testKey,
		ExpiresAt: time.Now().Add(time.Hour),
	}
	svc := NewService(repo, 0)

	removed, err := svc.Sweep(time.Now())
	require.NoError(t, err)
	assert.EqualValues(t, 1, removed)
	assert.Len(t, repo.keys, 1)
}
