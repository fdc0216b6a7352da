package services

import (
	"context"

	"cohort/internal/database"
	"cohort/internal/logger"

	"gorm.io/gorm"
)

type txContextKey struct{}

// TransactionService runs a function inside one storage transaction,
// carried through the context so repositories join it transparently
// via GetTransaction.
type TransactionService struct {
	db  database.DB
	log logger.Logger
}

func NewTransactionService(db database.DB) *TransactionService {
	return &TransactionService{
		db:  db,
		log: logger.New("TransactionService"),
	}
}

func (s *TransactionService) Execute(ctx context.Context, fn func(txCtx context.Context) error) error {
	return s.db.SQLWithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return fn(context.WithValue(ctx, txContextKey{}, tx))
	})
}

// GetTransaction returns the transaction carried by ctx, if any.
func GetTransaction(ctx context.Context) (*gorm.DB, bool) {
	tx, ok := ctx.Value(txContextKey{}).(*gorm.DB)
	return tx, ok
}

// DetachTransaction shadows any transaction carried by ctx so writes
// made with the returned context commit independently of it.
func DetachTransaction(ctx context.Context) context.Context {
	return context.WithValue(ctx, txContextKey{}, struct{}{})
}
