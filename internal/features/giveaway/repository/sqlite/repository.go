// Package sqlite implements the giveaway store on an embedded database.
//
// State transitions use compare-and-swap updates on the state column and
// run inside a transaction together with the entrant snapshot, so a
// registration racing with Complete either lands before the snapshot or
// is rejected by the state guard.
package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"giveaway-bot-backend/internal/features/giveaway/models"
	"giveaway-bot-backend/internal/features/giveaway/repository"
)

type Repository struct {
	db *sql.DB
}

func NewRepository(db *sql.DB) *Repository {
	return &Repository{db: db}
}

// timeFormat keeps a fixed-width fractional part so stored timestamps
// compare correctly as strings.
const timeFormat = "2006-01-02T15:04:05.000000000Z07:00"

const giveawayColumns = `id, community_id, channel_id, creator_id, prize,
	created_at, starts_at, ends_at, winner_count, required_role, state, message_ref`

func (r *Repository) Create(ctx context.Context, g *models.Giveaway) error {
	var startsAt sql.NullString
	if g.StartsAt != nil {
		startsAt = sql.NullString{String: g.StartsAt.UTC().Format(timeFormat), Valid: true}
	}

	_, err := r.db.ExecContext(ctx, `
		INSERT INTO giveaways (`+giveawayColumns+`)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		g.ID, g.CommunityID, g.ChannelID, g.CreatorID, g.Prize,
		g.CreatedAt.UTC().Format(timeFormat), startsAt,
		g.EndsAt.UTC().Format(timeFormat),
		g.WinnerCount, g.RequiredRole, string(g.State), g.MessageRef,
	)
	if err != nil {
		return fmt.Errorf("insert giveaway: %w", err)
	}
	return nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanGiveaway(row rowScanner) (*models.Giveaway, error) {
	var g models.Giveaway
	var createdAt, endsAt, state string
	var startsAt sql.NullString

	err := row.Scan(&g.ID, &g.CommunityID, &g.ChannelID, &g.CreatorID, &g.Prize,
		&createdAt, &startsAt, &endsAt, &g.WinnerCount, &g.RequiredRole, &state, &g.MessageRef)
	if err != nil {
		return nil, err
	}

	g.State = models.State(state)
	if g.CreatedAt, err = time.Parse(time.RFC3339Nano, createdAt); err != nil {
		return nil, fmt.Errorf("parse created_at: %w", err)
	}
	if g.EndsAt, err = time.Parse(time.RFC3339Nano, endsAt); err != nil {
		return nil, fmt.Errorf("parse ends_at: %w", err)
	}
	if startsAt.Valid {
		t, err := time.Parse(time.RFC3339Nano, startsAt.String)
		if err != nil {
			return nil, fmt.Errorf("parse starts_at: %w", err)
		}
		g.StartsAt = &t
	}
	return &g, nil
}

// hydrate fills the derived read-side fields: entry count and, for ended
// giveaways, the stored winner list.
func (r *Repository) hydrate(ctx context.Context, g *models.Giveaway) error {
	if err := r.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM entries WHERE giveaway_id = ?`, g.ID,
	).Scan(&g.EntryCount); err != nil {
		return fmt.Errorf("count entries: %w", err)
	}

	if g.State == models.StateEnded {
		winners, err := r.Winners(ctx, g.ID)
		if err != nil {
			return err
		}
		g.Winners = winners
	}
	return nil
}

func (r *Repository) GetByID(ctx context.Context, id string) (*models.Giveaway, error) {
	row := r.db.QueryRowContext(ctx,
		`SELECT `+giveawayColumns+` FROM giveaways WHERE id = ?`, id)

	g, err := scanGiveaway(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, repository.ErrGiveawayNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get giveaway: %w", err)
	}
	if err := r.hydrate(ctx, g); err != nil {
		return nil, err
	}
	return g, nil
}

func (r *Repository) GetByMessageRef(ctx context.Context, ref string) (*models.Giveaway, error) {
	row := r.db.QueryRowContext(ctx,
		`SELECT `+giveawayColumns+` FROM giveaways WHERE message_ref = ?`, ref)

	g, err := scanGiveaway(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, repository.ErrGiveawayNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get giveaway by message ref: %w", err)
	}
	if err := r.hydrate(ctx, g); err != nil {
		return nil, err
	}
	return g, nil
}

func (r *Repository) SetMessageRef(ctx context.Context, id, ref string) error {
	res, err := r.db.ExecContext(ctx,
		`UPDATE giveaways SET message_ref = ? WHERE id = ?`, ref, id)
	if err != nil {
		return fmt.Errorf("set message ref: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return repository.ErrGiveawayNotFound
	}
	return nil
}

func (r *Repository) Delete(ctx context.Context, id string) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin delete: %w", err)
	}
	defer tx.Rollback()

	res, err := tx.ExecContext(ctx, `DELETE FROM giveaways WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("delete giveaway: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return repository.ErrGiveawayNotFound
	}
	if _, err := tx.ExecContext(ctx, `DELETE FROM entries WHERE giveaway_id = ?`, id); err != nil {
		return fmt.Errorf("delete entries: %w", err)
	}
	if _, err := tx.ExecContext(ctx, `DELETE FROM winners WHERE giveaway_id = ?`, id); err != nil {
		return fmt.Errorf("delete winners: %w", err)
	}
	return tx.Commit()
}

func (r *Repository) queryGiveaways(ctx context.Context, query string, args ...any) ([]*models.Giveaway, error) {
	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query giveaways: %w", err)
	}
	defer rows.Close()

	var out []*models.Giveaway
	for rows.Next() {
		g, err := scanGiveaway(rows)
		if err != nil {
			return nil, fmt.Errorf("scan giveaway: %w", err)
		}
		out = append(out, g)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	for _, g := range out {
		if err := r.hydrate(ctx, g); err != nil {
			return nil, err
		}
	}
	return out, nil
}

func (r *Repository) ListByCommunity(ctx context.Context, communityID int64, states ...models.State) ([]*models.Giveaway, error) {
	query := `SELECT ` + giveawayColumns + ` FROM giveaways WHERE community_id = ?`
	args := []any{communityID}

	if len(states) > 0 {
		query += ` AND state IN (?` + strings.Repeat(",?", len(states)-1) + `)`
		for _, s := range states {
			args = append(args, string(s))
		}
	}
	query += ` ORDER BY created_at`

	return r.queryGiveaways(ctx, query, args...)
}

// ListEnteredBy returns the running giveaways the user has entered.
// Terminal giveaways drop out of the listing even though their entries
// are kept.
func (r *Repository) ListEnteredBy(ctx context.Context, communityID, userID int64) ([]*models.Giveaway, error) {
	return r.queryGiveaways(ctx, `
		SELECT `+qualify(giveawayColumns, "g")+`
		FROM giveaways g
		JOIN entries e ON e.giveaway_id = g.id
		WHERE g.community_id = ? AND e.user_id = ? AND g.state IN (?, ?)
		ORDER BY e.entered_at`,
		communityID, userID,
		string(models.StateActive), string(models.StateScheduled))
}

func (r *Repository) DueScheduled(ctx context.Context, now time.Time) ([]*models.Giveaway, error) {
	return r.queryGiveaways(ctx, `
		SELECT `+giveawayColumns+` FROM giveaways
		WHERE state = ? AND starts_at IS NOT NULL AND starts_at <= ?
		ORDER BY starts_at`,
		string(models.StateScheduled), now.UTC().Format(timeFormat))
}

func (r *Repository) DueActive(ctx context.Context, now time.Time) ([]*models.Giveaway, error) {
	return r.queryGiveaways(ctx, `
		SELECT `+giveawayColumns+` FROM giveaways
		WHERE state = ? AND ends_at <= ?
		ORDER BY ends_at`,
		string(models.StateActive), now.UTC().Format(timeFormat))
}

func (r *Repository) Activate(ctx context.Context, id string) (bool, error) {
	res, err := r.db.ExecContext(ctx,
		`UPDATE giveaways SET state = ? WHERE id = ? AND state = ?`,
		string(models.StateActive), id, string(models.StateScheduled))
	if err != nil {
		return false, fmt.Errorf("activate giveaway: %w", err)
	}
	n, _ := res.RowsAffected()
	if n == 0 {
		if _, err := r.GetByID(ctx, id); err != nil {
			return false, err
		}
		// Exists but not scheduled: another worker got there first.
		return false, nil
	}
	return true, nil
}

func (r *Repository) Cancel(ctx context.Context, id string) (models.State, error) {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return "", fmt.Errorf("begin cancel: %w", err)
	}
	defer tx.Rollback()

	var state string
	err = tx.QueryRowContext(ctx, `SELECT state FROM giveaways WHERE id = ?`, id).Scan(&state)
	if errors.Is(err, sql.ErrNoRows) {
		return "", repository.ErrGiveawayNotFound
	}
	if err != nil {
		return "", fmt.Errorf("read state: %w", err)
	}

	prior := models.State(state)
	res, err := tx.ExecContext(ctx,
		`UPDATE giveaways SET state = ? WHERE id = ? AND state IN (?, ?)`,
		string(models.StateCancelled), id,
		string(models.StateScheduled), string(models.StateActive))
	if err != nil {
		return "", fmt.Errorf("cancel giveaway: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return "", repository.ErrStateConflict
	}
	return prior, tx.Commit()
}

func (r *Repository) Complete(ctx context.Context, id string, pick repository.PickFunc) (*models.EndResult, error) {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("begin complete: %w", err)
	}
	defer tx.Rollback()

	// Claim the giveaway first. Once this write lands no concurrent
	// AddEntry can pass its state guard, so the snapshot below is final.
	res, err := tx.ExecContext(ctx,
		`UPDATE giveaways SET state = ? WHERE id = ? AND state = ?`,
		string(models.StateEnded), id, string(models.StateActive))
	if err != nil {
		return nil, fmt.Errorf("claim giveaway: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		if _, err := r.GetByID(ctx, id); err != nil {
			return nil, err
		}
		return nil, repository.ErrStateConflict
	}

	entrants, err := entriesTx(ctx, tx, id)
	if err != nil {
		return nil, err
	}

	winners := pick(entrants, nil)
	if err := storeWinnersTx(ctx, tx, id, winners); err != nil {
		return nil, err
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("commit complete: %w", err)
	}

	g, err := r.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	return &models.EndResult{
		Giveaway:   g,
		Winners:    winners,
		NoEntrants: len(entrants) == 0,
	}, nil
}

func (r *Repository) Reroll(ctx context.Context, id string, pick repository.PickFunc) (*models.EndResult, error) {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("begin reroll: %w", err)
	}
	defer tx.Rollback()

	// Self-assignment confirms the state and takes the write lock, so
	// two concurrent rerolls serialize on it.
	res, err := tx.ExecContext(ctx,
		`UPDATE giveaways SET state = ? WHERE id = ? AND state = ?`,
		string(models.StateEnded), id, string(models.StateEnded))
	if err != nil {
		return nil, fmt.Errorf("claim giveaway: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		if _, err := r.GetByID(ctx, id); err != nil {
			return nil, err
		}
		return nil, repository.ErrStateConflict
	}

	entrants, err := entriesTx(ctx, tx, id)
	if err != nil {
		return nil, err
	}
	previous, err := winnersTx(ctx, tx, id)
	if err != nil {
		return nil, err
	}

	winners := pick(entrants, previous)
	if err := storeWinnersTx(ctx, tx, id, winners); err != nil {
		return nil, err
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("commit reroll: %w", err)
	}

	g, err := r.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	return &models.EndResult{
		Giveaway:   g,
		Winners:    winners,
		NoEntrants: len(entrants) == 0,
		Rerolled:   true,
	}, nil
}

func (r *Repository) AddEntry(ctx context.Context, id string, userID int64, now time.Time) (bool, int64, error) {
	// The state guard and the insert are one statement, so an entry can
	// never land after Complete claims the giveaway.
	res, err := r.db.ExecContext(ctx, `
		INSERT OR IGNORE INTO entries (giveaway_id, user_id, entered_at)
		SELECT ?, ?, ?
		WHERE EXISTS (SELECT 1 FROM giveaways WHERE id = ? AND state = ?)`,
		id, userID, now.UTC().Format(timeFormat),
		id, string(models.StateActive))
	if err != nil {
		return false, 0, fmt.Errorf("insert entry: %w", err)
	}

	n, _ := res.RowsAffected()
	if n == 0 {
		// Either a duplicate or a non-active giveaway; tell them apart.
		entered, err := r.HasEntered(ctx, id, userID)
		if err != nil {
			return false, 0, err
		}
		if !entered {
			if _, err := r.GetByID(ctx, id); err != nil {
				return false, 0, err
			}
			return false, 0, repository.ErrStateConflict
		}
	}

	count, err := r.EntryCount(ctx, id)
	if err != nil {
		return false, 0, err
	}
	return n > 0, count, nil
}

func (r *Repository) HasEntered(ctx context.Context, id string, userID int64) (bool, error) {
	var one int
	err := r.db.QueryRowContext(ctx,
		`SELECT 1 FROM entries WHERE giveaway_id = ? AND user_id = ?`,
		id, userID).Scan(&one)
	if errors.Is(err, sql.ErrNoRows) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("check entry: %w", err)
	}
	return true, nil
}

func (r *Repository) Entries(ctx context.Context, id string) ([]int64, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT user_id FROM entries WHERE giveaway_id = ? ORDER BY entered_at, user_id`, id)
	if err != nil {
		return nil, fmt.Errorf("list entries: %w", err)
	}
	defer rows.Close()
	return scanIDs(rows)
}

func (r *Repository) EntryCount(ctx context.Context, id string) (int64, error) {
	var count int64
	err := r.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM entries WHERE giveaway_id = ?`, id).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("count entries: %w", err)
	}
	return count, nil
}

func (r *Repository) Winners(ctx context.Context, id string) ([]int64, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT user_id FROM winners WHERE giveaway_id = ? ORDER BY position`, id)
	if err != nil {
		return nil, fmt.Errorf("list winners: %w", err)
	}
	defer rows.Close()
	return scanIDs(rows)
}

func entriesTx(ctx context.Context, tx *sql.Tx, id string) ([]int64, error) {
	rows, err := tx.QueryContext(ctx,
		`SELECT user_id FROM entries WHERE giveaway_id = ? ORDER BY entered_at, user_id`, id)
	if err != nil {
		return nil, fmt.Errorf("snapshot entries: %w", err)
	}
	defer rows.Close()
	return scanIDs(rows)
}

func winnersTx(ctx context.Context, tx *sql.Tx, id string) ([]int64, error) {
	rows, err := tx.QueryContext(ctx,
		`SELECT user_id FROM winners WHERE giveaway_id = ? ORDER BY position`, id)
	if err != nil {
		return nil, fmt.Errorf("read winners: %w", err)
	}
	defer rows.Close()
	return scanIDs(rows)
}

func storeWinnersTx(ctx context.Context, tx *sql.Tx, id string, winners []int64) error {
	if _, err := tx.ExecContext(ctx, `DELETE FROM winners WHERE giveaway_id = ?`, id); err != nil {
		return fmt.Errorf("clear winners: %w", err)
	}
	now := time.Now().UTC().Format(timeFormat)
	for i, userID := range winners {
		if _, err := tx.ExecContext(ctx,
			`INSERT INTO winners (giveaway_id, user_id, position, selected_at) VALUES (?, ?, ?, ?)`,
			id, userID, i, now); err != nil {
			return fmt.Errorf("store winner: %w", err)
		}
	}
	return nil
}

func scanIDs(rows *sql.Rows) ([]int64, error) {
	var out []int64
	for rows.Next() {
		var id int64
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		out = append(out, id)
	}
	return out, rows.Err()
}

// qualify prefixes each column in a comma-separated list with an alias.
func qualify(columns, alias string) string {
	parts := strings.Split(columns, ",")
	for i, c := range parts {
		parts[i] = alias + "." + strings.TrimSpace(c)
	}
	return strings.Join(parts, ", ")
}
