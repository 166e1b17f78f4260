package main

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/use-agent/farescout/config"
)

func TestOpenStorage(t *testing.T) {
	ctx := context.Background()

	b, err := openStorage(ctx, config.StorageConfig{Driver: "none"})
	if err != nil || b != nil {
		t.Errorf("none driver = %v, %v, want nil backend", b, err)
	}

	b, err = openStorage(ctx, config.StorageConfig{Driver: "SQLite", DSN: filepath.Join(t.TempDir(), "x.db")})
	if err != nil || b == nil {
		t.Fatalf("sqlite driver = %v, %v", b, err)
	}
	b.Close()

	if _, err := openStorage(ctx, config.StorageConfig{Driver: "mongo"}); err == nil {
		t.Error("unknown driver should fail")
	}
}
