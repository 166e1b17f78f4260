package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/use-agent/farescout/models"
	"github.com/use-agent/farescout/storage"
)

// ensure postgresBackend implements storage.Backend
var _ storage.Backend = (*postgresBackend)(nil)

type postgresBackend struct {
	pool *pgxpool.Pool
}

const schema = `
CREATE TABLE IF NOT EXISTS saved_offers (
	id TEXT PRIMARY KEY,
	owner TEXT NOT NULL,
	city TEXT NOT NULL,
	city_key TEXT NOT NULL,
	code TEXT NOT NULL DEFAULT '',
	price DOUBLE PRECISION NOT NULL,
	currency TEXT NOT NULL,
	screenshot_ref TEXT NOT NULL,
	page_url TEXT NOT NULL,
	departure_date TEXT NOT NULL,
	return_date TEXT NOT NULL,
	scraped_at TIMESTAMPTZ NOT NULL,
	created_at TIMESTAMPTZ NOT NULL,
	expires_at TIMESTAMPTZ,
	UNIQUE (owner, city_key, departure_date, return_date)
);
CREATE INDEX IF NOT EXISTS saved_offers_owner_created ON saved_offers (owner, created_at DESC);
`

// New creates a new Postgres-backed storage.Backend.
func New(ctx context.Context, dsn string) (storage.Backend, error) {
	pool, err := pgxpool.New(ctx, dsn)
	if err != nil {
		return nil, fmt.Errorf("open postgres: %w", err)
	}

	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ping postgres: %w", err)
	}

	_, err = pool.Exec(ctx, schema)
	if err != nil {
		pool.Close()
		return nil, fmt.Errorf("create schema: %w", err)
	}

	return &postgresBackend{pool: pool}, nil
}

func (b *postgresBackend) Save(ctx context.Context, owner string, offer *models.SavedOffer) error {
	cityKey := storage.CityKey(offer.City)

	// An expired copy of the same trip must not block the new one.
	_, err := b.pool.Exec(ctx, `DELETE FROM saved_offers
	WHERE owner = $1 AND city_key = $2 AND departure_date = $3 AND return_date = $4
	AND expires_at IS NOT NULL AND expires_at <= now()`,
		owner, cityKey, offer.DepartureDate, offer.ReturnDate)
	if err != nil {
		return fmt.Errorf("purge expired offer: %w", err)
	}

	var expires *time.Time
	if !offer.ExpiresAt.IsZero() {
		expires = &offer.ExpiresAt
	}

	query := `
	INSERT INTO saved_offers (
		id, owner, city, city_key, code, price, currency, screenshot_ref, page_url,
		departure_date, return_date, scraped_at, created_at, expires_at
	) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14)
	ON CONFLICT (owner, city_key, departure_date, return_date) DO NOTHING
	`

	tag, err := b.pool.Exec(ctx, query,
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
		offer.ScrapedAt,
		offer.CreatedAt,
		expires,
	)
	if err != nil {
		return fmt.Errorf("insert offer: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return storage.ErrDuplicate
	}
	return nil
}

func (b *postgresBackend) List(ctx context.Context, owner string, filter storage.Filter) ([]*models.SavedOffer, error) {
	query := `SELECT id, city, code, price, currency, screenshot_ref, page_url, departure_date, return_date, scraped_at, created_at, expires_at
	FROM saved_offers WHERE owner = $1 AND (expires_at IS NULL OR expires_at > now()) ORDER BY created_at DESC, id`
	args := []any{owner}
	paramCount := 2

	if filter.Limit > 0 {
		query += fmt.Sprintf(` LIMIT $%d`, paramCount)
		args = append(args, filter.Limit)
		paramCount++
	}
	if filter.Offset > 0 {
		query += fmt.Sprintf(` OFFSET $%d`, paramCount)
		args = append(args, filter.Offset)
	}

	rows, err := b.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query offers: %w", err)
	}
	defer rows.Close()

	results := []*models.SavedOffer{}
	for rows.Next() {
		var o models.SavedOffer
		var expires *time.Time
		err := rows.Scan(
			&o.ID, &o.City, &o.Code, &o.Price, &o.Currency, &o.ScreenshotRef, &o.PageURL,
			&o.DepartureDate, &o.ReturnDate, &o.ScrapedAt, &o.CreatedAt, &expires,
		)
		if err != nil {
			return nil, fmt.Errorf("scan offer: %w", err)
		}
		if expires != nil {
			o.ExpiresAt = *expires
		}
		results = append(results, &o)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("query offers: %w", err)
	}

	return results, nil
}

func (b *postgresBackend) Delete(ctx context.Context, owner, id string) error {
	tag, err := b.pool.Exec(ctx, `DELETE FROM saved_offers WHERE owner = $1 AND id = $2`, owner, id)
	if err != nil {
		return fmt.Errorf("delete offer: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return storage.ErrNotFound
	}
	return nil
}

func (b *postgresBackend) Close() error {
	b.pool.Close()
	return nil
}
