// Package dbcontext reads and writes the singleton Context record.
package dbcontext

import (
	"github.com/google/uuid"
	"github.com/tdex-network/walletdb/internal/core/domain"
	"github.com/tdex-network/walletdb/internal/core/ports"
	"github.com/tdex-network/walletdb/internal/storageutil/records"
)

// Get returns the context, creating it within write transactions when
// missing. Read-only transactions get the initial values without a write.
func Get(tx ports.Tx) (*domain.Context, error) {
	ctx, err := records.GetSafe[domain.Context](tx, domain.StoreContext, domain.MainContextID)
	if err != nil {
		return nil, err
	}
	if ctx != nil {
		return ctx, nil
	}

	ctx = domain.NewContext(uuid.New().String())
	if tx.ReadOnly() {
		return ctx, nil
	}
	if _, err := records.Add(tx, domain.StoreContext, []domain.Context{*ctx}, true); err != nil {
		return nil, err
	}
	return ctx, nil
}

// Update applies fn to the context and persists it.
func Update(tx ports.Tx, fn func(c *domain.Context) error) (*domain.Context, error) {
	ctx, err := Get(tx)
	if err != nil {
		return nil, err
	}
	if err := fn(ctx); err != nil {
		return nil, err
	}
	if err := records.Upsert(tx, domain.StoreContext, ctx); err != nil {
		return nil, err
	}
	return ctx, nil
}
