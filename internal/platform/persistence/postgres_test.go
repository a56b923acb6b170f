package persistence

import (
	"context"
	"log/slog"
	"os"
	"testing"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/stretchr/testify/assert"
)

func TestPostgresDB_Pool(t *testing.T) {
	logger := slog.New(slog.NewJSONHandler(os.Stdout, nil))
	var nilPool *pgxpool.Pool
	db := &PostgresDB{
		pool:   nilPool,
		logger: logger,
	}
	assert.Equal(t, nilPool, db.Pool(), "Pool() should return the initialized pool")
}

func TestPostgresDB_PingWithoutPool(t *testing.T) {
	db := &PostgresDB{logger: slog.New(slog.NewJSONHandler(os.Stdout, nil))}
	assert.EqualError(t, db.Ping(context.Background()), "postgres pool is not initialized")
}
