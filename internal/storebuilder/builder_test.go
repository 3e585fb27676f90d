package storebuilder

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/alicebob/miniredis/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/park285/tictac-server/internal/config"
	"github.com/park285/tictac-server/internal/store/memstore"
	"github.com/park285/tictac-server/internal/store/redisstore"
	"github.com/park285/tictac-server/internal/store/sqlstore"
)

func TestNewSelectsBackend(t *testing.T) {
	ctx := context.Background()
	mr, err := miniredis.Run()
	require.NoError(t, err)
	defer mr.Close()

	cases := []struct {
		name  string
		cfg   config.AppConfig
		check func(t *testing.T, got any)
	}{
		{
			name:  "memory",
			cfg:   config.AppConfig{StoreBackend: config.BackendMemory},
			check: func(t *testing.T, got any) { assert.IsType(t, &memstore.Store{}, got) },
		},
		{
			name:  "sqlite",
			cfg:   config.AppConfig{StoreBackend: config.BackendSQLite, SQLitePath: filepath.Join(t.TempDir(), "data", "t.db")},
			check: func(t *testing.T, got any) { assert.IsType(t, &sqlstore.Store{}, got) },
		},
		{
			name:  "redis",
			cfg:   config.AppConfig{StoreBackend: config.BackendRedis, RedisURL: "redis://" + mr.Addr()},
			check: func(t *testing.T, got any) { assert.IsType(t, &redisstore.Store{}, got) },
		},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			cfg := tc.cfg
			s, err := New(ctx, &cfg, nil)
			require.NoError(t, err)
			defer s.Close()
			require.NoError(t, s.Ping(ctx))
			tc.check(t, s)
		})
	}
}

func TestNewRejectsUnknownBackend(t *testing.T) {
	_, err := New(context.Background(), &config.AppConfig{StoreBackend: "tape"}, nil)
	assert.Error(t, err)
	_, err = New(context.Background(), nil, nil)
	assert.Error(t, err)
}
