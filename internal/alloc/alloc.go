// Package alloc builds the per-supplier allocation plan from the
// quotes gathered in a need's window: a greedy walk over quotes in
// score order that never allocates more than requested and stops as
// soon as every line is covered.
package alloc

import (
	"sort"

	"github.com/wh0th3h3llam1/agent-aid/internal/ledger"
	"github.com/wh0th3h3llam1/agent-aid/internal/protocol"
)

// ScoredQuote pairs an accepting quote with its score and the transport
// address replies go to. Callers pass quotes in arrival order; ties on
// score keep that order (first seen wins).
type ScoredQuote struct {
	Quote  protocol.QuoteResponse
	Score  float64
	Sender protocol.PartyRef
}

// Allocation is the plan for one accepted supplier.
type Allocation struct {
	SupplierID string
	Sender     protocol.PartyRef
	Lines      []protocol.Line
}

// Plan is the allocator output. Remaining holds the per-item quantity
// still uncovered after the plan; all zeros means full coverage.
type Plan struct {
	Allocations []Allocation
	Remaining   map[string]int
}

// FullyCovered reports whether every tracked item reached zero.
func (p Plan) FullyCovered() bool {
	for _, qty := range p.Remaining {
		if qty > 0 {
			return false
		}
	}
	return true
}

// Build runs the greedy allocation. remaining maps item key to the
// outstanding requested quantity; quotes must all be accepting. The
// input map is not mutated. Output order is deterministic for identical
// inputs: suppliers appear in the order they first received an
// allocation.
func Build(remaining map[string]int, quotes []ScoredQuote) Plan {
	rest := make(map[string]int, len(remaining))
	for k, v := range remaining {
		rest[ledger.ItemKey(k)] = v
	}

	sorted := make([]ScoredQuote, len(quotes))
	copy(sorted, quotes)
	sort.SliceStable(sorted, func(i, j int) bool { return sorted[i].Score > sorted[j].Score })

	var allocations []Allocation
	index := make(map[string]int) // supplierID -> allocations slot

	for _, sq := range sorted {
		if covered(rest) {
			break
		}
		for _, offer := range sq.Quote.Lines {
			if offer.Qty <= 0 {
				continue
			}
			key := ledger.ItemKey(offer.Name)
			need, tracked := rest[key]
			if !tracked || need <= 0 {
				// offered item we never asked for, or already covered
				continue
			}
			take := offer.Qty
			if take > need {
				take = need
			}

			slot, seen := index[sq.Quote.SupplierID]
			if !seen {
				slot = len(allocations)
				index[sq.Quote.SupplierID] = slot
				allocations = append(allocations, Allocation{
					SupplierID: sq.Quote.SupplierID,
					Sender:     sq.Sender,
				})
			}
			allocations[slot].Lines = append(allocations[slot].Lines, protocol.Line{
				Name:      key,
				Qty:       take,
				Unit:      offer.Unit,
				UnitPrice: offer.UnitPrice,
			})
			rest[key] = need - take
		}
	}

	return Plan{Allocations: allocations, Remaining: rest}
}

func covered(rest map[string]int) bool {
	for _, qty := range rest {
		if qty > 0 {
			return false
		}
	}
	return true
}
