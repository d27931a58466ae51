package cron

import (
	"context"
	"errors"
	"testing"
	"time"

	"gorm.io/gorm"

	"github.com/angelmondragon/cashstore-backend/pkg/logger"
)

func TestActivityRetentionJobDeletesOldRows(t *testing.T) {
	now := time.Date(2026, 5, 10, 3, 0, 0, 0, time.UTC)
	repo := &fakeActivityRetentionRepo{}
	job := newActivityRetentionJob(t, repo, 0)
	job.now = func() time.Time { return now }

	if err := job.Run(context.Background()); err != nil {
		t.Fatalf("Run: %v", err)
	}
	expectedCutoff := now.AddDate(0, 0, -activityRetentionDays)
	if !repo.lastCutoff.Equal(expectedCutoff) {
		t.Fatalf("expected cutoff %s, got %s", expectedCutoff, repo.lastCutoff)
	}
	if repo.called != 1 {
		t.Fatalf("expected repo called once, got %d", repo.called)
	}
}

func TestActivityRetentionJobHonoursConfiguredDays(t *testing.T) {
	now := time.Date(2026, 5, 10, 3, 0, 0, 0, time.UTC)
	repo := &fakeActivityRetentionRepo{}
	job := newActivityRetentionJob(t, repo, 7)
	job.now = func() time.Time { return now }

	if err := job.Run(context.Background()); err != nil {
		t.Fatalf("Run: %v", err)
	}
	if want := now.AddDate(0, 0, -7); !repo.lastCutoff.Equal(want) {
		t.Fatalf("expected cutoff %s, got %s", want, repo.lastCutoff)
	}
}

func TestActivityRetentionJobPropagatesError(t *testing.T) {
	repo := &fakeActivityRetentionRepo{err: errors.New("boom")}
	job := newActivityRetentionJob(t, repo, 0)

	if err := job.Run(context.Background()); err == nil {
		t.Fatal("expected error")
	}
}

func newActivityRetentionJob(t *testing.T, repo *fakeActivityRetentionRepo, days int) *activityRetentionJob {
	t.Helper()
	jobIface, err := NewActivityRetentionJob(ActivityRetentionJobParams{
		Logger:     logger.Nop(),
		DB:         passthroughTxRunner{},
		Repository: repo,
		Retention:  days,
	})
	if err != nil {
		t.Fatalf("NewActivityRetentionJob: %v", err)
	}
	job, ok := jobIface.(*activityRetentionJob)
	if !ok {
		t.Fatalf("expected activityRetentionJob, got %T", jobIface)
	}
	return job
}

type fakeActivityRetentionRepo struct {
	lastCutoff time.Time
	called     int
	err        error
}

func (f *fakeActivityRetentionRepo) DeleteBefore(ctx context.Context, tx *gorm.DB, cutoff time.Time) (int64, error) {
	f.called++
	f.lastCutoff = cutoff
	if f.err != nil {
		return 0, f.err
	}
	return 12, nil
}

type passthroughTxRunner struct{}

func (passthroughTxRunner) WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error {
	return fn(nil)
}
