package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	_ "modernc.org/sqlite"

	"github.com/use-agent/farescout/models"
	"github.com/use-agent/farescout/storage"
)

// ensure sqliteBackend implements storage.Backend
var _ storage.Backend = (*sqliteBackend)(nil)

type sqliteBackend struct {
	db *sql.DB
}

// Times are stored as unix milliseconds so ORDER BY is numeric. An
// expires_at of 0 never expires.
const schema = `
CREATE TABLE IF NOT EXISTS saved_offers (
	id TEXT PRIMARY KEY,
	owner TEXT NOT NULL,
	city TEXT NOT NULL,
	city_key TEXT NOT NULL,
	code TEXT NOT NULL DEFAULT '',
	price REAL NOT NULL,
	currency TEXT NOT NULL,
	screenshot_ref TEXT NOT NULL,
	page_url TEXT NOT NULL,
	departure_date TEXT NOT NULL,
	return_date TEXT NOT NULL,
	scraped_at INTEGER NOT NULL,
	created_at INTEGER NOT NULL,
	expires_at INTEGER NOT NULL DEFAULT 0,
	UNIQUE (owner, city_key, departure_date, return_date)
);
CREATE INDEX IF NOT EXISTS saved_offers_owner_created ON saved_offers (owner, created_at DESC);
`

// New creates a new SQLite-backed storage.Backend.
func New(dsn string) (storage.Backend, error) {
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}
	db.SetMaxOpenConns(1)

	if _, err := db.Exec(schema); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("create schema: %w", err)
	}

	return &sqliteBackend{db: db}, nil
}

func unixMilli(t time.Time) int64 {
	if t.IsZero() {
		return 0
	}
	return t.UnixMilli()
}

func (b *sqliteBackend) Save(ctx context.Context, owner string, offer *models.SavedOffer) error {
	cityKey := storage.CityKey(offer.City)

	// An expired copy of the same trip must not block the new one.
	_, err := b.db.ExecContext(ctx, `DELETE FROM saved_offers
	WHERE owner = ? AND city_key = ? AND departure_date = ? AND return_date = ?
	AND expires_at > 0 AND expires_at <= ?`,
		owner, cityKey, offer.DepartureDate, offer.ReturnDate, time.Now().UnixMilli())
	if err != nil {
		return fmt.Errorf("purge expired offer: %w", err)
	}

	query := `
	INSERT INTO saved_offers (
		id, owner, city, city_key, code, price, currency, screenshot_ref, page_url,
		departure_date, return_date, scraped_at, created_at, expires_at
	) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	ON CONFLICT (owner, city_key, departure_date, return_date) DO NOTHING
	`

	res, err := b.db.ExecContext(ctx, query,
		offer.ID,
		owner,
		offer.City,
		cityKey,
		offer.Code,
		offer.Price,
		offer.Currency,
		offer.ScreenshotRef,
		offer.PageURL,
		offer.DepartureDate,
		offer.ReturnDate,
		offer.ScrapedAt.UnixMilli(),
		offer.CreatedAt.UnixMilli(),
		unixMilli(offer.ExpiresAt),
	)
	if err != nil {
		return fmt.Errorf("insert offer: %w", err)
	}

	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("insert offer: %w", err)
	}
	if n == 0 {
		return storage.ErrDuplicate
	}
	return nil
}

func (b *sqliteBackend) List(ctx context.Context, owner string, filter storage.Filter) ([]*models.SavedOffer, error) {
	query := `SELECT id, city, code, price, currency, screenshot_ref, page_url, departure_date, return_date, scraped_at, created_at, expires_at
	FROM saved_offers WHERE owner = ? AND (expires_at = 0 OR expires_at > ?) ORDER BY created_at DESC, id`
	args := []any{owner, time.Now().UnixMilli()}

	// SQLite only accepts OFFSET after a LIMIT; -1 means unbounded.
	if filter.Limit > 0 || filter.Offset > 0 {
		limit := filter.Limit
		if limit <= 0 {
			limit = -1
		}
		query += ` LIMIT ? OFFSET ?`
		args = append(args, limit, max(filter.Offset, 0))
	}

	rows, err := b.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query offers: %w", err)
	}
	defer rows.Close()

	results := []*models.SavedOffer{}
	for rows.Next() {
		var o models.SavedOffer
		var scrapedMs, createdMs, expiresMs int64

		err := rows.Scan(
			&o.ID, &o.City, &o.Code, &o.Price, &o.Currency, &o.ScreenshotRef, &o.PageURL,
			&o.DepartureDate, &o.ReturnDate, &scrapedMs, &createdMs, &expiresMs,
		)
		if err != nil {
			return nil, fmt.Errorf("scan offer: %w", err)
		}
		o.ScrapedAt = time.UnixMilli(scrapedMs).UTC()
		o.CreatedAt = time.UnixMilli(createdMs).UTC()
		if expiresMs > 0 {
			o.ExpiresAt = time.UnixMilli(expiresMs).UTC()
		}

		results = append(results, &o)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("query offers: %w", err)
	}

	return results, nil
}

func (b *sqliteBackend) Delete(ctx context.Context, owner, id string) error {
	res, err := b.db.ExecContext(ctx, `DELETE FROM saved_offers WHERE owner = ? AND id = ?`, owner, id)
	if err != nil {
		return fmt.Errorf("delete offer: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("delete offer: %w", err)
	}
	if n == 0 {
		return storage.ErrNotFound
	}
	return nil
}

func (b *sqliteBackend) Close() error {
	return b.db.Close()
}
