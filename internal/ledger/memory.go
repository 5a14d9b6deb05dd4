package ledger

import (
	"context"
	"log/slog"
	"sort"
	"sync"
)

// account holds one supplier's config and stock. Fields must not be
// read or written without the account mutex.
type account struct {
	mu    sync.RWMutex
	cfg   SupplierConfig
	items map[string]Line // keyed by ItemKey
}

// MemoryStore is an in-process ledger. Each supplier carries its own
// lock, so deductions against different suppliers never contend while
// all operations touching one supplier are serialized.
type MemoryStore struct {
	mu       sync.RWMutex
	accounts map[string]*account
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{accounts: make(map[string]*account)}
}

func (s *MemoryStore) account(supplierID string) (*account, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	a, ok := s.accounts[supplierID]
	return a, ok
}

func (s *MemoryStore) EnsureSupplier(ctx context.Context, cfg SupplierConfig) error {
	_ = ctx
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, exists := s.accounts[cfg.SupplierID]; exists {
		return nil
	}
	s.accounts[cfg.SupplierID] = &account{cfg: cfg, items: make(map[string]Line)}
	return nil
}

func (s *MemoryStore) Supplier(ctx context.Context, supplierID string) (SupplierConfig, error) {
	_ = ctx
	a, ok := s.account(supplierID)
	if !ok {
		return SupplierConfig{}, ErrUnknownSupplier
	}
	a.mu.RLock()
	defer a.mu.RUnlock()
	return a.cfg, nil
}

func (s *MemoryStore) Inventory(ctx context.Context, supplierID string) ([]Line, error) {
	_ = ctx
	a, ok := s.account(supplierID)
	if !ok {
		return nil, ErrUnknownSupplier
	}
	a.mu.RLock()
	defer a.mu.RUnlock()
	out := make([]Line, 0, len(a.items))
	for _, it := range a.items {
		out = append(out, it)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out, nil
}

// OfferFor offers min(want, stock) per requested line under the
// supplier's read lock, so the snapshot never interleaves with a
// deduction on the same supplier.
func (s *MemoryStore) OfferFor(ctx context.Context, supplierID string, requested []Line) ([]Line, float64, error) {
	_ = ctx
	a, ok := s.account(supplierID)
	if !ok {
		return nil, 0, ErrUnknownSupplier
	}
	a.mu.RLock()
	defer a.mu.RUnlock()

	offered := make([]Line, 0, len(requested))
	for _, r := range requested {
		stock := a.items[ItemKey(r.Name)]
		offer := r.Qty
		if stock.Qty < offer {
			offer = stock.Qty
		}
		if offer < 0 {
			offer = 0
		}
		offered = append(offered, Line{
			Name:      r.Name,
			Qty:       offer,
			Unit:      stock.Unit,
			UnitPrice: stock.UnitPrice,
		})
	}
	return offered, coverage(requested, offered), nil
}

// Deduct applies newQty = max(0, qty - want) for every line while
// holding the supplier write lock, so the whole accept lands as one
// unit. Unknown items are skipped. The returned lines carry the
// quantities actually removed.
func (s *MemoryStore) Deduct(ctx context.Context, supplierID string, lines []Line) ([]Line, error) {
	_ = ctx
	a, ok := s.account(supplierID)
	if !ok {
		return nil, ErrUnknownSupplier
	}
	a.mu.Lock()
	defer a.mu.Unlock()

	applied := make([]Line, 0, len(lines))
	for _, l := range lines {
		if l.Qty <= 0 {
			continue
		}
		key := ItemKey(l.Name)
		stock, exists := a.items[key]
		if !exists {
			// nothing to deduct; not an error
			continue
		}
		take := l.Qty
		if take > stock.Qty {
			slog.Warn("deduction clamped to available stock",
				"supplier_id", supplierID,
				"item", key,
				"requested", l.Qty,
				"available", stock.Qty,
			)
			take = stock.Qty
		}
		stock.Qty -= take
		a.items[key] = stock
		applied = append(applied, Line{
			Name:      key,
			Qty:       take,
			Unit:      stock.Unit,
			UnitPrice: stock.UnitPrice,
		})
	}
	return applied, nil
}

// Restock adds lines to stock. Quantities must be non-negative; unit and
// unit price update only when provided, matching upsert semantics.
func (s *MemoryStore) Restock(ctx context.Context, supplierID string, lines []Line) ([]Line, error) {
	for _, l := range lines {
		if l.Qty < 0 {
			return nil, ErrNegativeQty
		}
	}
	return s.apply(ctx, supplierID, lines)
}

// Adjust applies signed deltas, flooring at zero.
func (s *MemoryStore) Adjust(ctx context.Context, supplierID string, lines []Line) ([]Line, error) {
	return s.apply(ctx, supplierID, lines)
}

func (s *MemoryStore) apply(ctx context.Context, supplierID string, lines []Line) ([]Line, error) {
	a, ok := s.account(supplierID)
	if !ok {
		return nil, ErrUnknownSupplier
	}
	a.mu.Lock()
	for _, l := range lines {
		key := ItemKey(l.Name)
		if key == "" {
			continue
		}
		stock := a.items[key]
		stock.Name = key
		stock.Qty += l.Qty
		if stock.Qty < 0 {
			stock.Qty = 0
		}
		if l.Unit != "" {
			stock.Unit = l.Unit
		}
		if l.UnitPrice != 0 {
			stock.UnitPrice = l.UnitPrice
		}
		a.items[key] = stock
	}
	a.mu.Unlock()
	return s.Inventory(ctx, supplierID)
}
