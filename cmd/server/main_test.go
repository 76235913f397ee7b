package main

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"ayurgenix/internal/config"
	"ayurgenix/internal/db"
)

func TestOpenStore(t *testing.T) {
	ctx := context.Background()

	store, err := openStore(ctx, config.StoreConfig{Type: "memory", TTLHours: 1})
	require.NoError(t, err)
	assert.IsType(t, &db.MemoryStore{}, store)
	assert.NoError(t, store.Close())

	tests := []struct {
		name string
		cfg  config.StoreConfig
	}{
		{"postgres without url", config.StoreConfig{Type: "postgres"}},
		{"redis without url", config.StoreConfig{Type: "redis"}},
		{"unknown type", config.StoreConfig{Type: "sqlite"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			store, err := openStore(ctx, tt.cfg)
			assert.Error(t, err)
			assert.Nil(t, store)
		})
	}
}

