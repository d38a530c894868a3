package sqlite

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"giveaway-bot-backend/internal/features/giveaway/models"
	"giveaway-bot-backend/internal/features/giveaway/repository"
	"giveaway-bot-backend/internal/platform/sqlite"
)

func newRepo(t *testing.T) *Repository {
	t.Helper()
	db, err := sqlite.OpenInMemory()
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	return NewRepository(db)
}

func newGiveaway(state models.State) *models.Giveaway {
	now := time.Now().UTC().Truncate(time.Millisecond)
	return &models.Giveaway{
		ID:          uuid.NewString(),
		CommunityID: 100,
		ChannelID:   200,
		CreatorID:   300,
		Prize:       "Mystery Box",
		CreatedAt:   now,
		EndsAt:      now.Add(time.Hour),
		WinnerCount: 1,
		State:       state,
	}
}

func mustCreate(t *testing.T, repo *Repository, g *models.Giveaway) {
	t.Helper()
	require.NoError(t, repo.Create(context.Background(), g))
}

func firstN(entrants []int64, _ []int64) []int64 {
	return entrants
}

func TestCreateAndGet(t *testing.T) {
	repo := newRepo(t)
	ctx := context.Background()

	g := newGiveaway(models.StateActive)
	startsAt := g.CreatedAt.Add(10 * time.Minute)
	g.StartsAt = &startsAt
	g.RequiredRole = 42
	mustCreate(t, repo, g)

	got, err := repo.GetByID(ctx, g.ID)
	require.NoError(t, err)
	assert.Equal(t, g.ID, got.ID)
	assert.Equal(t, g.Prize, got.Prize)
	assert.Equal(t, models.StateActive, got.State)
	assert.Equal(t, int64(42), got.RequiredRole)
	require.NotNil(t, got.StartsAt)
	assert.True(t, got.StartsAt.Equal(startsAt))
	assert.True(t, got.EndsAt.Equal(g.EndsAt))
	assert.Equal(t, int64(0), got.EntryCount)
}

func TestGetMissing(t *testing.T) {
	repo := newRepo(t)
	_, err := repo.GetByID(context.Background(), uuid.NewString())
	assert.ErrorIs(t, err, repository.ErrGiveawayNotFound)
}

func TestMessageRef(t *testing.T) {
	repo := newRepo(t)
	ctx := context.Background()

	g := newGiveaway(models.StateActive)
	mustCreate(t, repo, g)

	require.NoError(t, repo.SetMessageRef(ctx, g.ID, "chan/123"))

	got, err := repo.GetByMessageRef(ctx, "chan/123")
	require.NoError(t, err)
	assert.Equal(t, g.ID, got.ID)

	_, err = repo.GetByMessageRef(ctx, "chan/999")
	assert.ErrorIs(t, err, repository.ErrGiveawayNotFound)

	err = repo.SetMessageRef(ctx, uuid.NewString(), "x")
	assert.ErrorIs(t, err, repository.ErrGiveawayNotFound)
}

func TestAddEntry(t *testing.T) {
	repo := newRepo(t)
	ctx := context.Background()
	now := time.Now()

	t.Run("first entry is added", func(t *testing.T) {
		g := newGiveaway(models.StateActive)
		mustCreate(t, repo, g)

		added, count, err := repo.AddEntry(ctx, g.ID, 1, now)
		require.NoError(t, err)
		assert.True(t, added)
		assert.Equal(t, int64(1), count)
	})

	t.Run("duplicate is a no-op, not an error", func(t *testing.T) {
		g := newGiveaway(models.StateActive)
		mustCreate(t, repo, g)

		_, _, err := repo.AddEntry(ctx, g.ID, 1, now)
		require.NoError(t, err)

		added, count, err := repo.AddEntry(ctx, g.ID, 1, now.Add(time.Second))
		require.NoError(t, err)
		assert.False(t, added)
		assert.Equal(t, int64(1), count)
	})

	t.Run("non-active giveaway rejects the entry", func(t *testing.T) {
		for _, state := range []models.State{models.StateScheduled, models.StateEnded, models.StateCancelled} {
			g := newGiveaway(state)
			mustCreate(t, repo, g)

			_, _, err := repo.AddEntry(ctx, g.ID, 1, now)
			assert.ErrorIs(t, err, repository.ErrStateConflict, "state %s", state)

			count, err := repo.EntryCount(ctx, g.ID)
			require.NoError(t, err)
			assert.Equal(t, int64(0), count, "state %s", state)
		}
	})

	t.Run("missing giveaway", func(t *testing.T) {
		_, _, err := repo.AddEntry(ctx, uuid.NewString(), 1, now)
		assert.ErrorIs(t, err, repository.ErrGiveawayNotFound)
	})
}

func TestAddEntryConcurrent(t *testing.T) {
	repo := newRepo(t)
	ctx := context.Background()

	g := newGiveaway(models.StateActive)
	mustCreate(t, repo, g)

	const workers = 8
	var wg sync.WaitGroup
	var added int32
	errs := make(chan error, workers)

	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			ok, _, err := repo.AddEntry(ctx, g.ID, 7, time.Now())
			if err != nil {
				errs <- err
				return
			}
			if ok {
				atomic.AddInt32(&added, 1)
			}
		}()
	}
	wg.Wait()
	close(errs)

	for err := range errs {
		require.NoError(t, err)
	}
	assert.Equal(t, int32(1), added)

	count, err := repo.EntryCount(ctx, g.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(1), count)
}

func TestEntriesOrder(t *testing.T) {
	repo := newRepo(t)
	ctx := context.Background()

	g := newGiveaway(models.StateActive)
	mustCreate(t, repo, g)

	base := time.Now()
	for i, userID := range []int64{30, 10, 20} {
		_, _, err := repo.AddEntry(ctx, g.ID, userID, base.Add(time.Duration(i)*time.Second))
		require.NoError(t, err)
	}

	entrants, err := repo.Entries(ctx, g.ID)
	require.NoError(t, err)
	assert.Equal(t, []int64{30, 10, 20}, entrants)

	entered, err := repo.HasEntered(ctx, g.ID, 10)
	require.NoError(t, err)
	assert.True(t, entered)

	entered, err = repo.HasEntered(ctx, g.ID, 99)
	require.NoError(t, err)
	assert.False(t, entered)
}

func TestActivate(t *testing.T) {
	repo := newRepo(t)
	ctx := context.Background()

	g := newGiveaway(models.StateScheduled)
	startsAt := time.Now().Add(-time.Minute)
	g.StartsAt = &startsAt
	mustCreate(t, repo, g)

	ok, err := repo.Activate(ctx, g.ID)
	require.NoError(t, err)
	assert.True(t, ok)

	// Second activation is a lost race, not an error.
	ok, err = repo.Activate(ctx, g.ID)
	require.NoError(t, err)
	assert.False(t, ok)

	got, err := repo.GetByID(ctx, g.ID)
	require.NoError(t, err)
	assert.Equal(t, models.StateActive, got.State)
}

func TestCancel(t *testing.T) {
	repo := newRepo(t)
	ctx := context.Background()

	t.Run("active giveaway cancels and reports prior state", func(t *testing.T) {
		g := newGiveaway(models.StateActive)
		mustCreate(t, repo, g)

		prior, err := repo.Cancel(ctx, g.ID)
		require.NoError(t, err)
		assert.Equal(t, models.StateActive, prior)

		got, err := repo.GetByID(ctx, g.ID)
		require.NoError(t, err)
		assert.Equal(t, models.StateCancelled, got.State)
	})

	t.Run("entries survive cancellation", func(t *testing.T) {
		g := newGiveaway(models.StateActive)
		mustCreate(t, repo, g)
		_, _, err := repo.AddEntry(ctx, g.ID, 7, time.Now())
		require.NoError(t, err)

		_, err = repo.Cancel(ctx, g.ID)
		require.NoError(t, err)

		count, err := repo.EntryCount(ctx, g.ID)
		require.NoError(t, err)
		assert.Equal(t, int64(1), count)
	})

	t.Run("terminal states refuse", func(t *testing.T) {
		for _, state := range []models.State{models.StateEnded, models.StateCancelled} {
			g := newGiveaway(state)
			mustCreate(t, repo, g)

			_, err := repo.Cancel(ctx, g.ID)
			assert.ErrorIs(t, err, repository.ErrStateConflict, "state %s", state)
		}
	})
}

func TestComplete(t *testing.T) {
	repo := newRepo(t)
	ctx := context.Background()

	t.Run("snapshots entrants and stores winners", func(t *testing.T) {
		g := newGiveaway(models.StateActive)
		mustCreate(t, repo, g)
		for i, userID := range []int64{1, 2, 3} {
			_, _, err := repo.AddEntry(ctx, g.ID, userID, time.Now().Add(time.Duration(i)*time.Second))
			require.NoError(t, err)
		}

		res, err := repo.Complete(ctx, g.ID, func(entrants, exclude []int64) []int64 {
			assert.Equal(t, []int64{1, 2, 3}, entrants)
			assert.Nil(t, exclude)
			return []int64{2}
		})
		require.NoError(t, err)
		assert.Equal(t, []int64{2}, res.Winners)
		assert.False(t, res.NoEntrants)
		assert.Equal(t, models.StateEnded, res.Giveaway.State)

		winners, err := repo.Winners(ctx, g.ID)
		require.NoError(t, err)
		assert.Equal(t, []int64{2}, winners)
	})

	t.Run("second complete loses the race", func(t *testing.T) {
		g := newGiveaway(models.StateActive)
		mustCreate(t, repo, g)

		_, err := repo.Complete(ctx, g.ID, firstN)
		require.NoError(t, err)

		_, err = repo.Complete(ctx, g.ID, firstN)
		assert.ErrorIs(t, err, repository.ErrStateConflict)
	})

	t.Run("no entrants still ends the giveaway", func(t *testing.T) {
		g := newGiveaway(models.StateActive)
		mustCreate(t, repo, g)

		res, err := repo.Complete(ctx, g.ID, firstN)
		require.NoError(t, err)
		assert.True(t, res.NoEntrants)
		assert.Empty(t, res.Winners)
		assert.Equal(t, models.StateEnded, res.Giveaway.State)
	})

	t.Run("entries rejected after completion", func(t *testing.T) {
		g := newGiveaway(models.StateActive)
		mustCreate(t, repo, g)

		_, err := repo.Complete(ctx, g.ID, firstN)
		require.NoError(t, err)

		_, _, err = repo.AddEntry(ctx, g.ID, 5, time.Now())
		assert.ErrorIs(t, err, repository.ErrStateConflict)
	})
}

func TestReroll(t *testing.T) {
	repo := newRepo(t)
	ctx := context.Background()

	t.Run("overwrites winners and passes previous as exclude", func(t *testing.T) {
		g := newGiveaway(models.StateActive)
		mustCreate(t, repo, g)
		for i, userID := range []int64{1, 2, 3} {
			_, _, err := repo.AddEntry(ctx, g.ID, userID, time.Now().Add(time.Duration(i)*time.Second))
			require.NoError(t, err)
		}

		_, err := repo.Complete(ctx, g.ID, func(entrants, _ []int64) []int64 {
			return []int64{1}
		})
		require.NoError(t, err)

		res, err := repo.Reroll(ctx, g.ID, func(entrants, exclude []int64) []int64 {
			assert.Equal(t, []int64{1, 2, 3}, entrants)
			assert.Equal(t, []int64{1}, exclude)
			return []int64{3}
		})
		require.NoError(t, err)
		assert.Equal(t, []int64{3}, res.Winners)
		assert.True(t, res.Rerolled)
		assert.Equal(t, models.StateEnded, res.Giveaway.State)

		winners, err := repo.Winners(ctx, g.ID)
		require.NoError(t, err)
		assert.Equal(t, []int64{3}, winners)
	})

	t.Run("only ended giveaways reroll", func(t *testing.T) {
		for _, state := range []models.State{models.StateScheduled, models.StateActive, models.StateCancelled} {
			g := newGiveaway(state)
			mustCreate(t, repo, g)

			_, err := repo.Reroll(ctx, g.ID, firstN)
			assert.ErrorIs(t, err, repository.ErrStateConflict, "state %s", state)
		}
	})
}

func TestListByCommunity(t *testing.T) {
	repo := newRepo(t)
	ctx := context.Background()

	active := newGiveaway(models.StateActive)
	active.CommunityID = 1
	mustCreate(t, repo, active)

	ended := newGiveaway(models.StateEnded)
	ended.CommunityID = 1
	ended.CreatedAt = active.CreatedAt.Add(time.Second)
	mustCreate(t, repo, ended)

	other := newGiveaway(models.StateActive)
	other.CommunityID = 2
	mustCreate(t, repo, other)

	all, err := repo.ListByCommunity(ctx, 1)
	require.NoError(t, err)
	require.Len(t, all, 2)
	assert.Equal(t, active.ID, all[0].ID)
	assert.Equal(t, ended.ID, all[1].ID)

	activeOnly, err := repo.ListByCommunity(ctx, 1, models.StateActive)
	require.NoError(t, err)
	require.Len(t, activeOnly, 1)
	assert.Equal(t, active.ID, activeOnly[0].ID)
}

func TestListEnteredBy(t *testing.T) {
	repo := newRepo(t)
	ctx := context.Background()

	a := newGiveaway(models.StateActive)
	a.CommunityID = 1
	mustCreate(t, repo, a)

	b := newGiveaway(models.StateActive)
	b.CommunityID = 1
	mustCreate(t, repo, b)

	_, _, err := repo.AddEntry(ctx, a.ID, 7, time.Now())
	require.NoError(t, err)

	entered, err := repo.ListEnteredBy(ctx, 1, 7)
	require.NoError(t, err)
	require.Len(t, entered, 1)
	assert.Equal(t, a.ID, entered[0].ID)

	entered, err = repo.ListEnteredBy(ctx, 1, 8)
	require.NoError(t, err)
	assert.Empty(t, entered)

	// Terminal giveaways drop out of the listing; the entry itself stays.
	_, err = repo.Complete(ctx, a.ID, firstN)
	require.NoError(t, err)

	entered, err = repo.ListEnteredBy(ctx, 1, 7)
	require.NoError(t, err)
	assert.Empty(t, entered)

	has, err := repo.HasEntered(ctx, a.ID, 7)
	require.NoError(t, err)
	assert.True(t, has)
}

func TestDueQueries(t *testing.T) {
	repo := newRepo(t)
	ctx := context.Background()
	now := time.Now().UTC()

	dueStart := newGiveaway(models.StateScheduled)
	past := now.Add(-time.Minute)
	dueStart.StartsAt = &past
	mustCreate(t, repo, dueStart)

	notYet := newGiveaway(models.StateScheduled)
	future := now.Add(time.Hour)
	notYet.StartsAt = &future
	mustCreate(t, repo, notYet)

	dueEnd := newGiveaway(models.StateActive)
	dueEnd.EndsAt = now.Add(-time.Second)
	mustCreate(t, repo, dueEnd)

	running := newGiveaway(models.StateActive)
	mustCreate(t, repo, running)

	scheduled, err := repo.DueScheduled(ctx, now)
	require.NoError(t, err)
	require.Len(t, scheduled, 1)
	assert.Equal(t, dueStart.ID, scheduled[0].ID)

	overdue, err := repo.DueActive(ctx, now)
	require.NoError(t, err)
	require.Len(t, overdue, 1)
	assert.Equal(t, dueEnd.ID, overdue[0].ID)
}

func TestDeleteCascades(t *testing.T) {
	repo := newRepo(t)
	ctx := context.Background()

	g := newGiveaway(models.StateActive)
	mustCreate(t, repo, g)
	_, _, err := repo.AddEntry(ctx, g.ID, 1, time.Now())
	require.NoError(t, err)
	_, err = repo.Complete(ctx, g.ID, firstN)
	require.NoError(t, err)

	require.NoError(t, repo.Delete(ctx, g.ID))

	_, err = repo.GetByID(ctx, g.ID)
	assert.ErrorIs(t, err, repository.ErrGiveawayNotFound)

	count, err := repo.EntryCount(ctx, g.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(0), count)

	winners, err := repo.Winners(ctx, g.ID)
	require.NoError(t, err)
	assert.Empty(t, winners)

	assert.ErrorIs(t, repo.Delete(ctx, g.ID), repository.ErrGiveawayNotFound)
}
