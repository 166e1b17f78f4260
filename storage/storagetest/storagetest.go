// Package storagetest holds the behaviour every storage.Backend must share.
package storagetest

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/use-agent/farescout/models"
	"github.com/use-agent/farescout/storage"
)

func offer(city, from, to string, price float64, created time.Time) *models.SavedOffer {
	return &models.SavedOffer{
		ID:            uuid.NewString(),
		City:          city,
		Code:          "OPO",
		Price:         price,
		Currency:      "EUR",
		ScreenshotRef: "/screenshots/flight-" + city + ".png",
		PageURL:       "https://www.kiwi.com/en/search/results/dublin-ireland/" + city,
		DepartureDate: from,
		ReturnDate:    to,
		ScrapedAt:     created.Add(-time.Minute),
		CreatedAt:     created,
	}
}

// Run exercises b. Owners are randomised so a shared database can be reused.
func Run(t *testing.T, b storage.Backend) {
	t.Helper()
	ctx := context.Background()
	alice := "alice-" + uuid.NewString()
	bob := "bob-" + uuid.NewString()
	base := time.Date(2025, 5, 1, 9, 0, 0, 0, time.UTC)

	porto := offer("Porto", "2025-06-01", "2025-06-08", 89.5, base)
	nice := offer("Nice", "2025-06-01", "2025-06-08", 120, base.Add(time.Hour))
	if err := b.Save(ctx, alice, porto); err != nil {
		t.Fatalf("Save(porto) error = %v", err)
	}
	if err := b.Save(ctx, alice, nice); err != nil {
		t.Fatalf("Save(nice) error = %v", err)
	}

	dup := offer("Porto", "2025-06-01", "2025-06-08", 75, base.Add(2*time.Hour))
	if err := b.Save(ctx, alice, dup); !errors.Is(err, storage.ErrDuplicate) {
		t.Errorf("Save(duplicate) error = %v, want ErrDuplicate", err)
	}
	if err := b.Save(ctx, bob, dup); err != nil {
		t.Errorf("another owner may save the same trip: %v", err)
	}
	other := offer("Porto", "2025-07-01", "2025-07-08", 75, base.Add(3*time.Hour))
	if err := b.Save(ctx, alice, other); err != nil {
		t.Errorf("different dates are not a duplicate: %v", err)
	}

	got, err := b.List(ctx, alice, storage.Filter{})
	if err != nil {
		t.Fatalf("List() error = %v", err)
	}
	if len(got) != 3 {
		t.Fatalf("List() returned %d offers, want 3", len(got))
	}
	if got[0].ID != other.ID || got[2].ID != porto.ID {
		t.Errorf("List() order = %s,%s,%s, want newest first", got[0].City, got[1].City, got[2].City)
	}

	p := got[2]
	if p.City != porto.City || p.Code != porto.Code || p.Price != porto.Price || p.Currency != porto.Currency {
		t.Errorf("round trip = %+v, want %+v", p, porto)
	}
	if p.ScreenshotRef != porto.ScreenshotRef || p.PageURL != porto.PageURL {
		t.Errorf("round trip refs = %q %q", p.ScreenshotRef, p.PageURL)
	}
	if p.DepartureDate != porto.DepartureDate || p.ReturnDate != porto.ReturnDate {
		t.Errorf("round trip dates = %s..%s", p.DepartureDate, p.ReturnDate)
	}
	if !p.CreatedAt.Equal(porto.CreatedAt) || !p.ScrapedAt.Equal(porto.ScrapedAt) {
		t.Errorf("round trip times = %v / %v", p.CreatedAt, p.ScrapedAt)
	}

	page, err := b.List(ctx, alice, storage.Filter{Limit: 1, Offset: 1})
	if err != nil || len(page) != 1 || page[0].ID != nice.ID {
		t.Errorf("List(limit 1, offset 1) = %v, %v, want Nice", page, err)
	}

	if err := b.Delete(ctx, bob, porto.ID); !errors.Is(err, storage.ErrNotFound) {
		t.Errorf("Delete(other owner) error = %v, want ErrNotFound", err)
	}
	if err := b.Delete(ctx, alice, porto.ID); err != nil {
		t.Errorf("Delete() error = %v", err)
	}
	if err := b.Delete(ctx, alice, porto.ID); !errors.Is(err, storage.ErrNotFound) {
		t.Errorf("second Delete() error = %v, want ErrNotFound", err)
	}

	got, err = b.List(ctx, alice, storage.Filter{})
	if err != nil || len(got) != 2 {
		t.Errorf("List() after delete = %d offers, %v", len(got), err)
	}
	if err := b.Save(ctx, alice, offer("Porto", "2025-06-01", "2025-06-08", 70, base.Add(4*time.Hour))); err != nil {
		t.Errorf("re-saving a deleted trip should succeed: %v", err)
	}

	empty, err := b.List(ctx, "nobody-"+uuid.NewString(), storage.Filter{})
	if err != nil || len(empty) != 0 {
		t.Errorf("List(unknown owner) = %v, %v", empty, err)
	}
	runExpiry(t, b)
}

func runExpiry(t *testing.T, b storage.Backend) {
	t.Helper()
	ctx := context.Background()
	carol := "carol-" + uuid.NewString()
	now := time.Now().UTC().Truncate(time.Millisecond)

	stale := offer("Faro", "2025-06-01", "2025-06-08", 60, now.Add(-6*24*time.Hour))
	stale.ExpiresAt = now.Add(-time.Hour)
	live := offer("Malaga", "2025-06-01", "2025-06-08", 70, now.Add(-time.Hour))
	live.ExpiresAt = now.Add(24 * time.Hour)
	for _, o := range []*models.SavedOffer{stale, live} {
		if err := b.Save(ctx, carol, o); err != nil {
			t.Fatalf("Save(%s) error = %v", o.City, err)
		}
	}

	got, err := b.List(ctx, carol, storage.Filter{})
	if err != nil {
		t.Fatalf("List() error = %v", err)
	}
	if len(got) != 1 || got[0].ID != live.ID {
		t.Fatalf("List() = %d offers, want only the unexpired one", len(got))
	}
	if !got[0].ExpiresAt.Equal(live.ExpiresAt) {
		t.Errorf("ExpiresAt = %v, want %v", got[0].ExpiresAt, live.ExpiresAt)
	}

	again := offer("Faro", "2025-06-01", "2025-06-08", 55, now)
	if err := b.Save(ctx, carol, again); err != nil {
		t.Errorf("an expired trip should not block saving it again: %v", err)
	}
	if err := b.Save(ctx, carol, offer("Malaga", "2025-06-01", "2025-06-08", 65, now)); !errors.Is(err, storage.ErrDuplicate) {
		t.Errorf("Save(live duplicate) error = %v, want ErrDuplicate", err)
	}
}
