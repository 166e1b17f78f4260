package postgres

import (
	"context"
	"os"
	"testing"

	"github.com/use-agent/farescout/storage/storagetest"
)

func TestPostgresBackend(t *testing.T) {
	// Only run this test if FARESCOUT_TEST_POSTGRES_DSN is set
	dsn := os.Getenv("FARESCOUT_TEST_POSTGRES_DSN")
	if dsn == "" {
		t.Skip("Skipping Postgres backend test: FARESCOUT_TEST_POSTGRES_DSN not set")
	}

	b, err := New(context.Background(), dsn)
	if err != nil {
		t.Fatalf("Failed to create Postgres backend: %v", err)
	}
	defer b.Close()

	storagetest.Run(t, b)
}
