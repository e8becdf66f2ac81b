package picking

import (
	"sort"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/wms/backend/internal/domain/ledger"
	"github.com/wms/backend/internal/domain/shared"
)

// AllocationMode defines how stock lines are selected for a demand
type AllocationMode string

const (
	// AllocationModeAuto walks pickable lines in deterministic order and
	// takes greedily until the demand is covered
	AllocationModeAuto AllocationMode = "AUTO_REMAINING"
	// AllocationModeExplicit uses caller-specified lines in the given order
	AllocationModeExplicit AllocationMode = "EXPLICIT"
)

// IsValid checks if the allocation mode is valid
func (m AllocationMode) IsValid() bool {
	return m == AllocationModeAuto || m == AllocationModeExplicit
}

// String returns the string representation
func (m AllocationMode) String() string {
	return string(m)
}

// LineRequest targets a specific stock line in explicit mode. A zero quantity
// means take as much as possible from that line.
type LineRequest struct {
	LineID   uuid.UUID
	Quantity decimal.Decimal
}

// Allocation represents stock taken from one line for one demand
type Allocation struct {
	LineID     uuid.UUID
	VariantID  uuid.UUID
	LocationID uuid.UUID
	BatchID    *uuid.UUID
	Quantity   decimal.Decimal
}

// AllocationResult is the outcome of allocating one demand. A shortfall is
// reported explicitly rather than as an error so that partial picking lists
// can still be created.
type AllocationResult struct {
	Allocations    []Allocation
	TotalAllocated decimal.Decimal
	Shortfall      decimal.Decimal
	FullyAllocated bool
}

// Allocator selects stock lines to satisfy picking demands
type Allocator struct{}

// NewAllocator creates a new allocator
func NewAllocator() *Allocator {
	return &Allocator{}
}

// Allocate selects lines for the requested quantity. Lines must belong to one
// variant and warehouse; only located lines with stock participate. Returns
// NO_STOCK_AVAILABLE when nothing at all can be allocated.
func (a *Allocator) Allocate(requestedQuantity decimal.Decimal, lines []ledger.StockLine) (*AllocationResult, error) {
	if requestedQuantity.LessThanOrEqual(decimal.Zero) {
		return nil, shared.NewDomainError("INVALID_QUANTITY", "Requested quantity must be positive")
	}

	pickable := filterPickable(lines)
	if len(pickable) == 0 {
		return nil, shared.ErrNoStockAvailable
	}

	sortPickOrder(pickable)
	return walkLines(requestedQuantity, pickable), nil
}

// AllocateExplicit allocates from the requested lines in order. Unknown or
// unpickable lines are skipped.
func (a *Allocator) AllocateExplicit(requestedQuantity decimal.Decimal, requests []LineRequest, lines []ledger.StockLine) (*AllocationResult, error) {
	if requestedQuantity.LessThanOrEqual(decimal.Zero) {
		return nil, shared.NewDomainError("INVALID_QUANTITY", "Requested quantity must be positive")
	}
	if len(requests) == 0 {
		return nil, shared.NewDomainError("INVALID_REQUESTS", "Explicit allocation requires line requests")
	}

	lineMap := make(map[uuid.UUID]*ledger.StockLine)
	for i := range lines {
		if lines[i].IsLocated() && lines[i].HasStock() {
			lineMap[lines[i].ID] = &lines[i]
		}
	}

	allocations := make([]Allocation, 0)
	remaining := requestedQuantity
	totalAllocated := decimal.Zero

	for _, req := range requests {
		if remaining.IsZero() {
			break
		}
		line, exists := lineMap[req.LineID]
		if !exists || line.Quantity.LessThanOrEqual(decimal.Zero) {
			continue
		}

		var take decimal.Decimal
		if req.Quantity.LessThanOrEqual(decimal.Zero) {
			take = decimal.Min(remaining, line.Quantity)
		} else {
			take = decimal.Min(decimal.Min(req.Quantity, remaining), line.Quantity)
		}
		if take.LessThanOrEqual(decimal.Zero) {
			continue
		}

		allocations = append(allocations, Allocation{
			LineID:     line.ID,
			VariantID:  line.VariantID,
			LocationID: *line.LocationID,
			BatchID:    line.BatchID,
			Quantity:   take,
		})
		totalAllocated = totalAllocated.Add(take)
		remaining = remaining.Sub(take)

		// Track consumption in case the same line is requested twice
		line.Quantity = line.Quantity.Sub(take)
	}

	if len(allocations) == 0 {
		return nil, shared.ErrNoStockAvailable
	}

	return &AllocationResult{
		Allocations:    allocations,
		TotalAllocated: totalAllocated,
		Shortfall:      remaining,
		FullyAllocated: remaining.IsZero(),
	}, nil
}

// filterPickable keeps located lines with positive quantity
func filterPickable(lines []ledger.StockLine) []ledger.StockLine {
	pickable := make([]ledger.StockLine, 0, len(lines))
	for _, line := range lines {
		if line.IsLocated() && line.HasStock() {
			pickable = append(pickable, line)
		}
	}
	return pickable
}

// sortPickOrder orders lines so that allocation is deterministic across runs:
// ascending location ID, then batch ID with batch-less lines first, then
// creation time.
func sortPickOrder(lines []ledger.StockLine) {
	sort.Slice(lines, func(i, j int) bool {
		li, lj := lines[i].LocationID.String(), lines[j].LocationID.String()
		if li != lj {
			return li < lj
		}
		bi, bj := batchKey(lines[i].BatchID), batchKey(lines[j].BatchID)
		if bi != bj {
			return bi < bj
		}
		return lines[i].CreatedAt.Before(lines[j].CreatedAt)
	})
}

func batchKey(batchID *uuid.UUID) string {
	if batchID == nil {
		return ""
	}
	return batchID.String()
}

// walkLines takes greedily from the sorted lines
func walkLines(requestedQuantity decimal.Decimal, sorted []ledger.StockLine) *AllocationResult {
	allocations := make([]Allocation, 0)
	remaining := requestedQuantity
	totalAllocated := decimal.Zero

	for i := range sorted {
		if remaining.IsZero() {
			break
		}
		line := &sorted[i]

		take := decimal.Min(remaining, line.Quantity)
		allocations = append(allocations, Allocation{
			LineID:     line.ID,
			VariantID:  line.VariantID,
			LocationID: *line.LocationID,
			BatchID:    line.BatchID,
			Quantity:   take,
		})
		totalAllocated = totalAllocated.Add(take)
		remaining = remaining.Sub(take)
	}

	return &AllocationResult{
		Allocations:    allocations,
		TotalAllocated: totalAllocated,
		Shortfall:      remaining,
		FullyAllocated: remaining.IsZero(),
	}
}
