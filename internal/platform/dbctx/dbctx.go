package dbctx

import (
	"context"

	"gorm.io/gorm"
)

// Context bundles a request context with an optional GORM transaction.
type Context struct {
	Ctx context.Context
	Tx  *gorm.DB
}

// Or returns the transaction when set, otherwise the fallback handle.
func (c Context) Or(db *gorm.DB) *gorm.DB {
	if c.Tx != nil {
		return c.Tx
	}
	return db
}

// Context returns c.Ctx, defaulting to context.Background().
func (c Context) Context() context.Context {
	if c.Ctx == nil {
		return context.Background()
	}
	return c.Ctx
}
