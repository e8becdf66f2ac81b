package stock

import (
	"context"
	"fmt"

	"github.com/google/uuid"
)

// KeyedLocker serializes writers on a stock key. Acquire blocks for a bounded
// wait and returns LOCK_TIMEOUT when the key stays contended; the returned
// release function must be called exactly once.
type KeyedLocker interface {
	Acquire(ctx context.Context, key string) (release func(), err error)
}

// StockKey builds the lock key for a variant in a warehouse. All quantity
// writers for the same key serialize on it, so an availability check and the
// write it guards observe the same state.
func StockKey(tenantID, variantID, warehouseID uuid.UUID) string {
	return fmt.Sprintf("%s|%s|%s", tenantID, variantID, warehouseID)
}
