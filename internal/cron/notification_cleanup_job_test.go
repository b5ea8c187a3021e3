package cron

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/amendezcabrera/villagelink-backend/pkg/logger"
)

type fakeCleanupRepo struct {
	cutoff  time.Time
	deleted int64
	err     error
}

func (f *fakeCleanupRepo) DeleteOlderThan(ctx context.Context, cutoff time.Time) (int64, error) {
	f.cutoff = cutoff
	if f.err != nil {
		return 0, f.err
	}
	return f.deleted, nil
}

func TestNotificationCleanupJobUsesRetentionWindow(t *testing.T) {
	repo := &fakeCleanupRepo{deleted: 12}
	job, err := NewNotificationCleanupJob(NotificationCleanupJobParams{
		Logger:     logger.New(logger.Options{ServiceName: "cron-test"}),
		Repository: repo,
		Retention:  7,
	})
	if err != nil {
		t.Fatalf("construct job: %v", err)
	}

	before := time.Now().UTC()
	if err := job.Run(context.Background()); err != nil {
		t.Fatalf("Run() error: %v", err)
	}

	wantCutoff := before.Add(-7 * 24 * time.Hour)
	if repo.cutoff.Before(wantCutoff.Add(-time.Minute)) || repo.cutoff.After(wantCutoff.Add(time.Minute)) {
		t.Fatalf("cutoff %v not within the 7-day window", repo.cutoff)
	}
}

func TestNotificationCleanupJobDefaultsRetention(t *testing.T) {
	repo := &fakeCleanupRepo{}
	job, err := NewNotificationCleanupJob(NotificationCleanupJobParams{
		Logger:     logger.New(logger.Options{ServiceName: "cron-test"}),
		Repository: repo,
	})
	if err != nil {
		t.Fatalf("construct job: %v", err)
	}
	if err := job.Run(context.Background()); err != nil {
		t.Fatalf("Run() error: %v", err)
	}

	wantCutoff := time.Now().UTC().Add(-notificationRetentionDays * 24 * time.Hour)
	if repo.cutoff.After(wantCutoff.Add(time.Minute)) {
		t.Fatalf("default retention not applied, cutoff %v", repo.cutoff)
	}
}

func TestNotificationCleanupJobPropagatesError(t *testing.T) {
	job, err := NewNotificationCleanupJob(NotificationCleanupJobParams{
		Logger:     logger.New(logger.Options{ServiceName: "cron-test"}),
		Repository: &fakeCleanupRepo{err: errors.New("db down")},
	})
	if err != nil {
		t.Fatalf("construct job: %v", err)
	}
	if err := job.Run(context.Background()); err == nil {
		t.Fatal("expected error")
	}
}
