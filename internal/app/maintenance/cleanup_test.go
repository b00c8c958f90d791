package maintenance

import (
	"context"
	"testing"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/stretchr/testify/require"

	"github.com/listenme/listenme/internal/database/testutil"
	"github.com/listenme/listenme/internal/models"
	"github.com/listenme/listenme/internal/services"
)

func TestCleanerRunOnce(t *testing.T) {
	db := testutil.MustOpenTestDB(t)
	now := time.Now()

	records := []models.OneTimeCode{
		{Email: "expired@example.com", Code: "111111", ExpiresAt: now.Add(-time.Hour)},
		{Email: "active@example.com", Code: "222222", ExpiresAt: now.Add(time.Hour)},
	}
	for i := range records {
		require.NoError(t, db.Create(&records[i]).Error)
	}

	tokens := []models.PasswordResetToken{
		{Email: "expired@example.com", Token: "expired-token", ExpiresAt: now.Add(-time.Hour)},
		{Email: "active@example.com", Token: "active-token", ExpiresAt: now.Add(time.Hour)},
	}
	for i := range tokens {
		require.NoError(t, db.Create(&tokens[i]).Error)
	}

	codes, err := services.NewOneTimeCodeService(db)
	require.NoError(t, err)
	resets, err := services.NewPasswordResetService(db)
	require.NoError(t, err)

	cleaner := NewCleaner(codes, resets)
	require.NoError(t, cleaner.RunOnce(context.Background()))

	var codeCount, tokenCount int64
	require.NoError(t, db.Model(&models.OneTimeCode{}).Count(&codeCount).Error)
	require.NoError(t, db.Model(&models.PasswordResetToken{}).Count(&tokenCount).Error)
	require.Equal(t, int64(1), codeCount)
	require.Equal(t, int64(1), tokenCount)
}

func TestCleanerStartRegistersJob(t *testing.T) {
	db := testutil.MustOpenTestDB(t)

	codes, err := services.NewOneTimeCodeService(db)
	require.NoError(t, err)
	resets, err := services.NewPasswordResetService(db)
	require.NoError(t, err)

	scheduler := cron.New(cron.WithLogger(cron.DiscardLogger))
	cleaner := NewCleaner(codes, resets, WithCron(scheduler), WithSchedule("@every 1h"))

	require.NoError(t, cleaner.Start())
	require.Len(t, scheduler.Entries(), 1)

	<-cleaner.Stop().Done()
}

func TestCleanerWithoutServicesIsInert(t *testing.T) {
	cleaner := NewCleaner(nil, nil)
	require.NoError(t, cleaner.Start())
	require.NoError(t, cleaner.RunOnce(context.Background()))
	<-cleaner.Stop().Done()
}
