// Package storage persists offers that a caller has accepted.
package storage

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"strings"

	"github.com/use-agent/farescout/models"
)

var (
	// ErrDuplicate is returned when the owner already saved an offer for the
	// same city and dates.
	ErrDuplicate = errors.New("storage: offer already saved")

	// ErrNotFound is returned when no offer with the ID belongs to the owner.
	ErrNotFound = errors.New("storage: offer not found")
)

// Filter pages through an owner's offers, newest first.
type Filter struct {
	Limit  int
	Offset int
}

// Backend defines the interface for storing saved offers. Every operation
// is scoped to an owner.
type Backend interface {
	Save(ctx context.Context, owner string, offer *models.SavedOffer) error
	List(ctx context.Context, owner string, filter Filter) ([]*models.SavedOffer, error)
	Delete(ctx context.Context, owner, id string) error
	Close() error
}

// Owner derives the stored owner identifier from an API key so raw keys
// never reach the database.
func Owner(apiKey string) string {
	if apiKey == "" {
		return "anonymous"
	}
	sum := sha256.Sum256([]byte(apiKey))
	return hex.EncodeToString(sum[:16])
}

// CityKey normalises a city name for the per-owner uniqueness check.
func CityKey(city string) string {
	return strings.ToLower(strings.Join(strings.Fields(city), " "))
}
