package services

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/listenme/listenme/internal/database/testutil"
	"github.com/listenme/listenme/internal/models"
)

func TestOneTimeCodeIssueAndConsume(t *testing.T) {
	db := testutil.MustOpenTestDB(t)
	current := time.Date(2025, 4, 1, 9, 0, 0, 0, time.UTC)

	svc, err := NewOneTimeCodeService(db, WithCodeClock(func() time.Time { return current }))
	require.NoError(t, err)

	code, err := svc.Issue(context.Background(), "  Ann@Example.COM ")
	require.NoError(t, err)
	require.Len(t, code, 6)

	// Stored against the normalized address.
	var stored models.OneTimeCode
	require.NoError(t, db.First(&stored).Error)
	require.Equal(t, "ann@example.com", stored.Email)
	require.Equal(t, current.Add(10*time.Minute).Unix(), stored.ExpiresAt.Unix())

	require.NoError(t, svc.Consume(context.Background(), "ANN@example.com", code))

	// A consumed code can never be consumed again.
	require.ErrorIs(t, svc.Consume(context.Background(), "ann@example.com", code), ErrCodeInvalid)
}

func TestOneTimeCodeExpiryBoundary(t *testing.T) {
	db := testutil.MustOpenTestDB(t)
	current := time.Date(2025, 4, 1, 9, 0, 0, 0, time.UTC)

	svc, err := NewOneTimeCodeService(db, WithCodeClock(func() time.Time { return current }))
	require.NoError(t, err)

	code, err := svc.Issue(context.Background(), "ann@example.com")
	require.NoError(t, err)

	// Even the correct code stops matching once past expiry.
	current = current.Add(10*time.Minute + time.Second)
	require.ErrorIs(t, svc.Consume(context.Background(), "ann@example.com", code), ErrCodeInvalid)
}

func TestOneTimeCodeNewestWins(t *testing.T) {
	db := testutil.MustOpenTestDB(t)
	current := time.Date(2025, 4, 1, 9, 0, 0, 0, time.UTC)

	svc, err := NewOneTimeCodeService(db, WithCodeClock(func() time.Time { return current }))
	require.NoError(t, err)

	first, err := svc.Issue(context.Background(), "ann@example.com")
	require.NoError(t, err)

	current = current.Add(time.Minute)
	second, err := svc.Issue(context.Background(), "ann@example.com")
	require.NoError(t, err)

	// Issuing a newer code does not invalidate the older one; both remain
	// independently consumable until they expire.
	require.NoError(t, svc.Consume(context.Background(), "ann@example.com", second))
	if first != second {
		require.NoError(t, svc.Consume(context.Background(), "ann@example.com", first))
	}
}

func TestOneTimeCodeConcurrentConsumeSingleWinner(t *testing.T) {
	db := testutil.MustOpenTestDB(t)

	svc, err := NewOneTimeCodeService(db)
	require.NoError(t, err)

	code, err := svc.Issue(context.Background(), "race@example.com")
	require.NoError(t, err)

	const attempts = 8
	results := make([]error, attempts)
	var wg sync.WaitGroup
	var start sync.WaitGroup
	start.Add(1)

	for i := 0; i < attempts; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			start.Wait()
			results[i] = svc.Consume(context.Background(), "race@example.com", code)
		}(i)
	}
	start.Done()
	wg.Wait()

	wins := 0
	for _, err := range results {
		if err == nil {
			wins++
		} else {
			require.ErrorIs(t, err, ErrCodeInvalid)
		}
	}
	require.Equal(t, 1, wins)
}

func TestOneTimeCodePurgeExpired(t *testing.T) {
	db := testutil.MustOpenTestDB(t)
	current := time.Date(2025, 4, 1, 9, 0, 0, 0, time.UTC)

	svc, err := NewOneTimeCodeService(db, WithCodeClock(func() time.Time { return current }))
	require.NoError(t, err)

	_, err = svc.Issue(context.Background(), "old@example.com")
	require.NoError(t, err)

	current = current.Add(time.Hour)
	_, err = svc.Issue(context.Background(), "fresh@example.com")
	require.NoError(t, err)

	removed, err := svc.PurgeExpired(context.Background())
	require.NoError(t, err)
	require.EqualValues(t, 1, removed)

	var remaining int64
	require.NoError(t, db.Model(&models.OneTimeCode{}).Count(&remaining).Error)
	require.EqualValues(t, 1, remaining)
}
