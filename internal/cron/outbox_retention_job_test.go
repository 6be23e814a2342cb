package cron

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/angelmondragon/banksampah-backend/pkg/logger"
)

func TestOutboxRetentionUsesDefaults(t *testing.T) {
	now := time.Date(2026, 2, 10, 0, 0, 0, 0, time.UTC)
	pruner := &fakePruner{remaining: 3}
	job := newRetentionJob(t, pruner, OutboxRetentionJobParams{})
	job.now = func() time.Time { return now }

	require.NoError(t, job.Run(context.Background()))
	assert.Equal(t, 1, pruner.calls)
	assert.True(t, pruner.cutoff.Equal(now.AddDate(0, 0, -outboxRetentionDays)))
	assert.Equal(t, outboxMinAttempts, pruner.minAttempts)
	assert.Equal(t, outboxDeleteBatch, pruner.limit)
}

func TestOutboxRetentionDeletesInBatches(t *testing.T) {
	pruner := &fakePruner{remaining: 25}
	job := newRetentionJob(t, pruner, OutboxRetentionJobParams{Retention: 7, BatchSize: 10})

	require.NoError(t, job.Run(context.Background()))
	// 10 + 10 + 5
	assert.Equal(t, 3, pruner.calls)
	assert.Zero(t, pruner.remaining)
}

func TestOutboxRetentionStopsWhenExactlyDrained(t *testing.T) {
	pruner := &fakePruner{remaining: 20}
	job := newRetentionJob(t, pruner, OutboxRetentionJobParams{BatchSize: 10})

	require.NoError(t, job.Run(context.Background()))
	// the third call sees zero rows
	assert.Equal(t, 3, pruner.calls)
}

func TestOutboxRetentionPropagatesError(t *testing.T) {
	pruner := &fakePruner{err: errors.New("boom")}
	job := newRetentionJob(t, pruner, OutboxRetentionJobParams{})

	assert.EqualError(t, job.Run(context.Background()), "boom")
}

func TestOutboxRetentionHonoursCancellation(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	pruner := &fakePruner{remaining: 5}
	job := newRetentionJob(t, pruner, OutboxRetentionJobParams{})

	assert.ErrorIs(t, job.Run(ctx), context.Canceled)
	assert.Zero(t, pruner.calls)
}

func TestNewOutboxRetentionJobRequiresDependencies(t *testing.T) {
	_, err := NewOutboxRetentionJob(OutboxRetentionJobParams{})
	assert.Error(t, err)
}

func newRetentionJob(t *testing.T, pruner *fakePruner, params OutboxRetentionJobParams) *outboxRetentionJob {
	t.Helper()
	params.Logger = logger.New(logger.Options{ServiceName: "test"})
	params.DB = passthroughTxRunner{}
	params.Repository = pruner
	job, err := NewOutboxRetentionJob(params)
	require.NoError(t, err)
	return job.(*outboxRetentionJob)
}

type fakePruner struct {
	remaining   int
	calls       int
	cutoff      time.Time
	minAttempts int
	limit       int
	err         error
}

func (f *fakePruner) DeleteSettledBefore(_ context.Context, _ *gorm.DB, cutoff time.Time, minAttemptCount, limit int) (int64, error) {
	f.calls++
	f.cutoff, f.minAttempts, f.limit = cutoff, minAttemptCount, limit
	if f.err != nil {
		return 0, f.err
	}
	n := min(limit, f.remaining)
	f.remaining -= n
	return int64(n), nil
}

type passthroughTxRunner struct{}

func (passthroughTxRunner) WithTx(_ context.Context, fn func(tx *gorm.DB) error) error {
	return fn(nil)
}
