package service

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"giveaway-bot-backend/internal/features/giveaway/models"
)

type recordingNotifier struct {
	mu    sync.Mutex
	ended []*models.EndResult
}

func (n *recordingNotifier) GiveawayEnded(_ context.Context, res *models.EndResult) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.ended = append(n.ended, res)
}

func (n *recordingNotifier) results() []*models.EndResult {
	n.mu.Lock()
	defer n.mu.Unlock()
	return append([]*models.EndResult(nil), n.ended...)
}

func newScheduler(f *fixture, notifier Notifier) *Scheduler {
	s := NewScheduler(f.repo, f.svc, notifier, time.Minute)
	s.clock = func() time.Time { return f.now }
	return s
}

func TestTickActivatesDueScheduled(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)

	startsAt := f.now.Add(time.Hour)
	g := f.create(t, &models.GiveawayCreate{Duration: "30m", StartsAt: &startsAt})

	sched := newScheduler(f, nil)

	// Not due yet.
	sched.Tick(ctx)
	got, err := f.svc.Get(ctx, g.ID)
	require.NoError(t, err)
	assert.Equal(t, models.StateScheduled, got.State)

	f.now = startsAt.Add(time.Second)
	sched.Tick(ctx)

	got, err = f.svc.Get(ctx, g.ID)
	require.NoError(t, err)
	assert.Equal(t, models.StateActive, got.State)
}

func TestTickEndsOverdue(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	notifier := &recordingNotifier{}

	g := f.create(t, &models.GiveawayCreate{Duration: "1h"})
	_, err := f.svc.Enter(ctx, g.ID, 7, nil)
	require.NoError(t, err)

	sched := newScheduler(f, notifier)

	f.now = f.now.Add(time.Hour + time.Second)
	sched.Tick(ctx)

	got, err := f.svc.Get(ctx, g.ID)
	require.NoError(t, err)
	assert.Equal(t, models.StateEnded, got.State)
	assert.Equal(t, []int64{7}, got.Winners)

	results := notifier.results()
	require.Len(t, results, 1)
	assert.Equal(t, g.ID, results[0].Giveaway.ID)

	// A second pass over the same state is a no-op.
	sched.Tick(ctx)
	assert.Len(t, notifier.results(), 1)
}

func TestTickRecoversAfterRestart(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	notifier := &recordingNotifier{}

	// The deadline passed while no scheduler was running.
	g := f.create(t, &models.GiveawayCreate{Duration: "10m"})
	_, err := f.svc.Enter(ctx, g.ID, 1, nil)
	require.NoError(t, err)
	f.now = f.now.Add(time.Hour)

	// A fresh scheduler's first pass picks it up exactly once.
	sched := newScheduler(f, notifier)
	sched.Tick(ctx)
	sched.Tick(ctx)

	got, err := f.svc.Get(ctx, g.ID)
	require.NoError(t, err)
	assert.Equal(t, models.StateEnded, got.State)
	assert.Len(t, notifier.results(), 1)
}

func TestTickSkipsCancelled(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	notifier := &recordingNotifier{}

	g := f.create(t, &models.GiveawayCreate{Duration: "10m"})
	_, err := f.svc.Cancel(ctx, g.ID)
	require.NoError(t, err)

	f.now = f.now.Add(time.Hour)
	sched := newScheduler(f, notifier)
	sched.Tick(ctx)

	got, err := f.svc.Get(ctx, g.ID)
	require.NoError(t, err)
	assert.Equal(t, models.StateCancelled, got.State)
	assert.Empty(t, notifier.results())
}

func TestStartStop(t *testing.T) {
	f := newFixture(t)
	sched := newScheduler(f, nil)

	sched.Start()
	sched.Stop()
}
