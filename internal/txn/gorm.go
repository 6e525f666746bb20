// internal/txn/gorm.go
package txn

import (
	"context"

	"gorm.io/gorm"
)

type dbKey struct{}

// WithDB attaches an open gorm transaction to ctx.
func WithDB(ctx context.Context, tx *gorm.DB) context.Context {
	return context.WithValue(ctx, dbKey{}, tx)
}

// Conn returns the transaction carried by ctx, or db bound to ctx.
func Conn(ctx context.Context, db *gorm.DB) *gorm.DB {
	if tx, ok := ctx.Value(dbKey{}).(*gorm.DB); ok && tx != nil {
		return tx
	}
	return db.WithContext(ctx)
}

func InDBTransaction(ctx context.Context) bool {
	tx, ok := ctx.Value(dbKey{}).(*gorm.DB)
	return ok && tx != nil
}
