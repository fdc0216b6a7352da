package services

import (
	"context"
	"fmt"
	"path/filepath"
	"testing"

	"cohort/config"
	"cohort/internal/database"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func serviceTestDB(t *testing.T) database.DB {
	t.Helper()

	db, err := database.New(config.Config{
		DatabaseDbPath: filepath.Join(t.TempDir(), "test.db"),
		ValkeyEnabled:  false,
	})
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })

	require.NoError(t, db.SQL.Exec("CREATE TABLE items (id INTEGER PRIMARY KEY, name TEXT)").Error)
	return db
}

func TestTransactionService_CommitOnSuccess(t *testing.T) {
	db := serviceTestDB(t)
	service := NewTransactionService(db)

	err := service.Execute(context.Background(), func(txCtx context.Context) error {
		tx, ok := GetTransaction(txCtx)
		require.True(t, ok, "transaction should be carried by the context")
		return tx.Exec("INSERT INTO items (name) VALUES (?)", "a").Error
	})
	require.NoError(t, err)

	var count int64
	require.NoError(t, db.SQL.Table("items").Count(&count).Error)
	assert.Equal(t, int64(1), count)
}

func TestTransactionService_RollbackOnError(t *testing.T) {
	db := serviceTestDB(t)
	service := NewTransactionService(db)

	err := service.Execute(context.Background(), func(txCtx context.Context) error {
		tx, _ := GetTransaction(txCtx)
		require.NoError(t, tx.Exec("INSERT INTO items (name) VALUES (?)", "a").Error)
		return fmt.Errorf("abort")
	})
	assert.Error(t, err)

	var count int64
	require.NoError(t, db.SQL.Table("items").Count(&count).Error)
	assert.Zero(t, count)
}

func TestGetTransaction_AbsentByDefault(t *testing.T) {
	_, ok := GetTransaction(context.Background())
	assert.False(t, ok)
}

func TestDetachTransaction(t *testing.T) {
	db := serviceTestDB(t)
	service := NewTransactionService(db)

	err := service.Execute(context.Background(), func(txCtx context.Context) error {
		_, ok := GetTransaction(txCtx)
		require.True(t, ok)

		_, ok = GetTransaction(DetachTransaction(txCtx))
		assert.False(t, ok, "detached context must not expose the transaction")
		return nil
	})
	require.NoError(t, err)
}

func TestCacheInvalidationService_DisabledCache(t *testing.T) {
	db := serviceTestDB(t)
	service := NewCacheInvalidationService(db)
	ctx := context.Background()

	assert.NoError(t, service.InvalidateConsent(ctx, "hash-1"))
	assert.NoError(t, service.InvalidateReports(ctx))
}
