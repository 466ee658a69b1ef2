package scheduler

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/go-co-op/gocron/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestScheduler(t *testing.T) *Scheduler {
	t.Helper()
	s, err := New()
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Stop() })
	return s
}

func TestInstantAfterStart(t *testing.T) {
	s := newTestScheduler(t)

	var runs atomic.Int32
	require.NoError(t, s.AddSingletonJob("crawl", "Crawl", "crawls the site", "1h",
		gocron.DurationJob(time.Hour),
		func(context.Context) error {
			runs.Add(1)
			return nil
		},
		true,
	))

	s.Start()

	require.Eventually(t, func() bool {
		info, ok := s.GetJob("crawl")
		return ok && info.Status == JobStatusCompleted
	}, 5*time.Second, 10*time.Millisecond)

	info, _ := s.GetJob("crawl")
	assert.Equal(t, int32(1), runs.Load())
	assert.Equal(t, 1, info.RunCount)
	assert.True(t, info.Singleton)
}

func TestJobFailure(t *testing.T) {
	s := newTestScheduler(t)

	require.NoError(t, s.AddJob("broken", "Broken", "", "1h",
		gocron.DurationJob(time.Hour),
		func(context.Context) error { return errors.New("site down") },
		false,
	))
	s.Start()
	require.NoError(t, s.RunJobNow("broken"))

	require.Eventually(t, func() bool {
		info, _ := s.GetJob("broken")
		return info.Status == JobStatusFailed
	}, 5*time.Second, 10*time.Millisecond)

	info, _ := s.GetJob("broken")
	assert.Equal(t, 1, info.ErrorCount)
	assert.Equal(t, "site down", info.LastError)
}

func TestDisabledJobIsSkipped(t *testing.T) {
	s := newTestScheduler(t)

	var runs atomic.Int32
	require.NoError(t, s.AddJob("crawl", "Crawl", "", "1h",
		gocron.DurationJob(time.Hour),
		func(context.Context) error {
			runs.Add(1)
			return nil
		},
		false,
	))
	s.Start()
	require.NoError(t, s.DisableJob("crawl"))
	require.NoError(t, s.RunJobNow("crawl"))

	assert.Never(t, func() bool { return runs.Load() > 0 }, 200*time.Millisecond, 10*time.Millisecond)
	info, _ := s.GetJob("crawl")
	assert.False(t, info.Enabled)
	assert.Zero(t, info.RunCount)
}

func TestUnknownJob(t *testing.T) {
	s := newTestScheduler(t)

	assert.ErrorIs(t, s.RunJobNow("nope"), ErrJobNotFound)
	assert.ErrorIs(t, s.EnableJob("nope"), ErrJobNotFound)
	_, ok := s.GetJob("nope")
	assert.False(t, ok)
}

func TestDuplicateJob(t *testing.T) {
	s := newTestScheduler(t)
	noop := func(context.Context) error { return nil }

	require.NoError(t, s.AddJob("a", "A", "", "1h", gocron.DurationJob(time.Hour), noop, false))
	require.NoError(t, s.AddJob("b", "B", "", "1h", gocron.DurationJob(time.Hour), noop, false))
	assert.Error(t, s.AddJob("a", "A", "", "1h", gocron.DurationJob(time.Hour), noop, false))

	jobs := s.GetJobs()
	require.Len(t, jobs, 2)
	assert.Equal(t, "a", jobs[0].ID)
	assert.Equal(t, "b", jobs[1].ID)
}
