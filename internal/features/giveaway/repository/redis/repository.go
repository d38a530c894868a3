// Package redis implements the giveaway store on Redis. Giveaways are
// JSON documents, per-state sets index them for the scheduler, and a
// sorted set per giveaway keeps entries in registration order. State
// transitions take a short-lived per-giveaway lock.
package redis

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"

	"giveaway-bot-backend/internal/features/giveaway/models"
	"giveaway-bot-backend/internal/features/giveaway/repository"
)

const (
	keyPrefixGiveaway  = "giveaway:"
	keyPrefixState     = "giveaways:"
	keyPrefixCommunity = "giveaways:community:"
	keyPrefixMsgRef    = "giveaway:msgref:"
	defaultLockTimeout = 30 * time.Second
)

type Repository struct {
	client *redis.Client
}

func NewRepository(client *redis.Client) *Repository {
	return &Repository{client: client}
}

func giveawayKey(id string) string   { return keyPrefixGiveaway + id }
func entriesKey(id string) string    { return keyPrefixGiveaway + id + ":entries" }
func winnersKey(id string) string    { return keyPrefixGiveaway + id + ":winners" }
func lockKey(id string) string       { return keyPrefixGiveaway + id + ":lock" }
func stateKey(s models.State) string { return keyPrefixState + string(s) }
func communityKey(id int64) string   { return keyPrefixCommunity + strconv.FormatInt(id, 10) }
func msgRefKey(ref string) string    { return keyPrefixMsgRef + ref }

// withLock runs fn while holding the giveaway's transition lock.
func (r *Repository) withLock(ctx context.Context, id string, fn func() error) error {
	ok, err := r.client.SetNX(ctx, lockKey(id), "locked", defaultLockTimeout).Result()
	if err != nil {
		return fmt.Errorf("acquire lock: %w", err)
	}
	if !ok {
		return repository.ErrAlreadyLocked
	}
	defer r.client.Del(ctx, lockKey(id))

	return fn()
}

func (r *Repository) save(ctx context.Context, g *models.Giveaway) error {
	data, err := json.Marshal(g)
	if err != nil {
		return fmt.Errorf("marshal giveaway: %w", err)
	}
	return r.client.Set(ctx, giveawayKey(g.ID), data, 0).Err()
}

func (r *Repository) load(ctx context.Context, id string) (*models.Giveaway, error) {
	data, err := r.client.Get(ctx, giveawayKey(id)).Bytes()
	if err == redis.Nil {
		return nil, repository.ErrGiveawayNotFound
	}
	if err != nil {
		return nil, err
	}

	var g models.Giveaway
	if err := json.Unmarshal(data, &g); err != nil {
		return nil, fmt.Errorf("unmarshal giveaway: %w", err)
	}
	return &g, nil
}

// moveState rewrites the document's state and swaps the index sets.
func (r *Repository) moveState(ctx context.Context, g *models.Giveaway, to models.State) error {
	from := g.State
	g.State = to

	data, err := json.Marshal(g)
	if err != nil {
		return fmt.Errorf("marshal giveaway: %w", err)
	}

	pipe := r.client.Pipeline()
	pipe.Set(ctx, giveawayKey(g.ID), data, 0)
	pipe.SRem(ctx, stateKey(from), g.ID)
	pipe.SAdd(ctx, stateKey(to), g.ID)
	_, err = pipe.Exec(ctx)
	return err
}

func (r *Repository) Create(ctx context.Context, g *models.Giveaway) error {
	data, err := json.Marshal(g)
	if err != nil {
		return fmt.Errorf("marshal giveaway: %w", err)
	}

	pipe := r.client.Pipeline()
	pipe.Set(ctx, giveawayKey(g.ID), data, 0)
	pipe.SAdd(ctx, stateKey(g.State), g.ID)
	pipe.SAdd(ctx, communityKey(g.CommunityID), g.ID)
	if g.MessageRef != "" {
		pipe.Set(ctx, msgRefKey(g.MessageRef), g.ID, 0)
	}
	_, err = pipe.Exec(ctx)
	return err
}

func (r *Repository) GetByID(ctx context.Context, id string) (*models.Giveaway, error) {
	g, err := r.load(ctx, id)
	if err != nil {
		return nil, err
	}
	if err := r.hydrate(ctx, g); err != nil {
		return nil, err
	}
	return g, nil
}

func (r *Repository) hydrate(ctx context.Context, g *models.Giveaway) error {
	count, err := r.client.ZCard(ctx, entriesKey(g.ID)).Result()
	if err != nil {
		return fmt.Errorf("count entries: %w", err)
	}
	g.EntryCount = count

	if g.State == models.StateEnded {
		winners, err := r.Winners(ctx, g.ID)
		if err != nil {
			return err
		}
		g.Winners = winners
	}
	return nil
}

func (r *Repository) GetByMessageRef(ctx context.Context, ref string) (*models.Giveaway, error) {
	id, err := r.client.Get(ctx, msgRefKey(ref)).Result()
	if err == redis.Nil {
		return nil, repository.ErrGiveawayNotFound
	}
	if err != nil {
		return nil, err
	}
	return r.GetByID(ctx, id)
}

func (r *Repository) SetMessageRef(ctx context.Context, id, ref string) error {
	return r.withLock(ctx, id, func() error {
		g, err := r.load(ctx, id)
		if err != nil {
			return err
		}

		pipe := r.client.Pipeline()
		if g.MessageRef != "" {
			pipe.Del(ctx, msgRefKey(g.MessageRef))
		}
		g.MessageRef = ref
		data, err := json.Marshal(g)
		if err != nil {
			return fmt.Errorf("marshal giveaway: %w", err)
		}
		pipe.Set(ctx, giveawayKey(id), data, 0)
		pipe.Set(ctx, msgRefKey(ref), id, 0)
		_, err = pipe.Exec(ctx)
		return err
	})
}

func (r *Repository) Delete(ctx context.Context, id string) error {
	return r.withLock(ctx, id, func() error {
		g, err := r.load(ctx, id)
		if err != nil {
			return err
		}

		pipe := r.client.Pipeline()
		pipe.Del(ctx, giveawayKey(id), entriesKey(id), winnersKey(id))
		pipe.SRem(ctx, stateKey(g.State), id)
		pipe.SRem(ctx, communityKey(g.CommunityID), id)
		if g.MessageRef != "" {
			pipe.Del(ctx, msgRefKey(g.MessageRef))
		}
		_, err = pipe.Exec(ctx)
		return err
	})
}

func (r *Repository) loadSet(ctx context.Context, key string) ([]*models.Giveaway, error) {
	ids, err := r.client.SMembers(ctx, key).Result()
	if err != nil {
		return nil, err
	}

	out := make([]*models.Giveaway, 0, len(ids))
	for _, id := range ids {
		g, err := r.GetByID(ctx, id)
		if err == repository.ErrGiveawayNotFound {
			continue
		}
		if err != nil {
			return nil, err
		}
		out = append(out, g)
	}
	return out, nil
}

func (r *Repository) ListByCommunity(ctx context.Context, communityID int64, states ...models.State) ([]*models.Giveaway, error) {
	all, err := r.loadSet(ctx, communityKey(communityID))
	if err != nil {
		return nil, err
	}
	if len(states) == 0 {
		sortByCreated(all)
		return all, nil
	}

	wanted := make(map[models.State]struct{}, len(states))
	for _, s := range states {
		wanted[s] = struct{}{}
	}

	out := all[:0]
	for _, g := range all {
		if _, ok := wanted[g.State]; ok {
			out = append(out, g)
		}
	}
	sortByCreated(out)
	return out, nil
}

func (r *Repository) ListEnteredBy(ctx context.Context, communityID, userID int64) ([]*models.Giveaway, error) {
	all, err := r.loadSet(ctx, communityKey(communityID))
	if err != nil {
		return nil, err
	}

	member := strconv.FormatInt(userID, 10)
	out := all[:0]
	for _, g := range all {
		// Entries outlive the giveaway, but only running ones are listed.
		if g.State.Terminal() {
			continue
		}
		_, err := r.client.ZScore(ctx, entriesKey(g.ID), member).Result()
		if err == redis.Nil {
			continue
		}
		if err != nil {
			return nil, err
		}
		out = append(out, g)
	}
	sortByCreated(out)
	return out, nil
}

func (r *Repository) DueScheduled(ctx context.Context, now time.Time) ([]*models.Giveaway, error) {
	all, err := r.loadSet(ctx, stateKey(models.StateScheduled))
	if err != nil {
		return nil, err
	}

	out := all[:0]
	for _, g := range all {
		if g.ShouldStart(now) {
			out = append(out, g)
		}
	}
	return out, nil
}

func (r *Repository) DueActive(ctx context.Context, now time.Time) ([]*models.Giveaway, error) {
	all, err := r.loadSet(ctx, stateKey(models.StateActive))
	if err != nil {
		return nil, err
	}

	out := all[:0]
	for _, g := range all {
		if g.ShouldEnd(now) {
			out = append(out, g)
		}
	}
	return out, nil
}

func (r *Repository) Activate(ctx context.Context, id string) (bool, error) {
	var activated bool
	err := r.withLock(ctx, id, func() error {
		g, err := r.load(ctx, id)
		if err != nil {
			return err
		}
		if g.State != models.StateScheduled {
			return nil
		}
		if err := r.moveState(ctx, g, models.StateActive); err != nil {
			return err
		}
		activated = true
		return nil
	})
	return activated, err
}

func (r *Repository) Cancel(ctx context.Context, id string) (models.State, error) {
	var prior models.State
	err := r.withLock(ctx, id, func() error {
		g, err := r.load(ctx, id)
		if err != nil {
			return err
		}
		if g.State.Terminal() {
			return repository.ErrStateConflict
		}
		prior = g.State
		return r.moveState(ctx, g, models.StateCancelled)
	})
	if err != nil {
		return "", err
	}
	return prior, nil
}

func (r *Repository) Complete(ctx context.Context, id string, pick repository.PickFunc) (*models.EndResult, error) {
	var result *models.EndResult
	err := r.withLock(ctx, id, func() error {
		g, err := r.load(ctx, id)
		if err != nil {
			return err
		}
		if g.State != models.StateActive {
			return repository.ErrStateConflict
		}

		// AddEntry takes the same lock, so between the state flip and
		// the snapshot below no entry can land.
		if err := r.moveState(ctx, g, models.StateEnded); err != nil {
			return err
		}

		entrants, err := r.Entries(ctx, id)
		if err != nil {
			return err
		}

		winners := pick(entrants, nil)
		if err := r.storeWinners(ctx, id, winners); err != nil {
			return err
		}

		g.Winners = winners
		g.EntryCount = int64(len(entrants))
		result = &models.EndResult{
			Giveaway:   g,
			Winners:    winners,
			NoEntrants: len(entrants) == 0,
		}
		return nil
	})
	return result, err
}

func (r *Repository) Reroll(ctx context.Context, id string, pick repository.PickFunc) (*models.EndResult, error) {
	var result *models.EndResult
	err := r.withLock(ctx, id, func() error {
		g, err := r.load(ctx, id)
		if err != nil {
			return err
		}
		if g.State != models.StateEnded {
			return repository.ErrStateConflict
		}

		entrants, err := r.Entries(ctx, id)
		if err != nil {
			return err
		}
		previous, err := r.Winners(ctx, id)
		if err != nil {
			return err
		}

		winners := pick(entrants, previous)
		if err := r.storeWinners(ctx, id, winners); err != nil {
			return err
		}

		g.Winners = winners
		g.EntryCount = int64(len(entrants))
		result = &models.EndResult{
			Giveaway:   g,
			Winners:    winners,
			NoEntrants: len(entrants) == 0,
			Rerolled:   true,
		}
		return nil
	})
	return result, err
}

func (r *Repository) storeWinners(ctx context.Context, id string, winners []int64) error {
	data, err := json.Marshal(winners)
	if err != nil {
		return fmt.Errorf("marshal winners: %w", err)
	}
	return r.client.Set(ctx, winnersKey(id), data, 0).Err()
}

func (r *Repository) AddEntry(ctx context.Context, id string, userID int64, now time.Time) (bool, int64, error) {
	var added bool
	var count int64

	// The same lock serializes Complete's state flip and snapshot, so an
	// entry can never land between the two.
	err := r.withLock(ctx, id, func() error {
		g, err := r.load(ctx, id)
		if err != nil {
			return err
		}
		if g.State != models.StateActive {
			return repository.ErrStateConflict
		}

		// NX keeps the original registration time for duplicates. The
		// score preserves registration order for the entrant snapshot.
		n, err := r.client.ZAddNX(ctx, entriesKey(id), redis.Z{
			Score:  float64(now.UnixNano()),
			Member: strconv.FormatInt(userID, 10),
		}).Result()
		if err != nil {
			return fmt.Errorf("add entry: %w", err)
		}
		added = n > 0

		count, err = r.client.ZCard(ctx, entriesKey(id)).Result()
		if err != nil {
			return fmt.Errorf("count entries: %w", err)
		}
		return nil
	})
	if err != nil {
		return false, 0, err
	}
	return added, count, nil
}

func (r *Repository) HasEntered(ctx context.Context, id string, userID int64) (bool, error) {
	_, err := r.client.ZScore(ctx, entriesKey(id), strconv.FormatInt(userID, 10)).Result()
	if err == redis.Nil {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return true, nil
}

func (r *Repository) Entries(ctx context.Context, id string) ([]int64, error) {
	members, err := r.client.ZRange(ctx, entriesKey(id), 0, -1).Result()
	if err != nil {
		return nil, fmt.Errorf("list entries: %w", err)
	}

	out := make([]int64, 0, len(members))
	for _, m := range members {
		userID, err := strconv.ParseInt(m, 10, 64)
		if err != nil {
			return nil, fmt.Errorf("parse entry member %q: %w", m, err)
		}
		out = append(out, userID)
	}
	return out, nil
}

func (r *Repository) EntryCount(ctx context.Context, id string) (int64, error) {
	return r.client.ZCard(ctx, entriesKey(id)).Result()
}

func (r *Repository) Winners(ctx context.Context, id string) ([]int64, error) {
	data, err := r.client.Get(ctx, winnersKey(id)).Bytes()
	if err == redis.Nil {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}

	var winners []int64
	if err := json.Unmarshal(data, &winners); err != nil {
		return nil, fmt.Errorf("unmarshal winners: %w", err)
	}
	return winners, nil
}

func sortByCreated(gs []*models.Giveaway) {
	sort.Slice(gs, func(i, j int) bool {
		return gs[i].CreatedAt.Before(gs[j].CreatedAt)
	})
}
