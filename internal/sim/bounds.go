package sim

import (
	"math"
	"math/bits"

	"github.com/efreitasn/dexfuzz/internal/dex"
	"github.com/efreitasn/dexfuzz/internal/domain"
)

// Margins applied when inflating pc ceilings. Both are looser than the
// exchange's actual fee schedule, which is what makes the bounds sound
// regardless of how fills play out.
const (
	feeMarginDen    uint64 = 100  // worst-case taker fee
	rebateMarginDen uint64 = 1000 // worst-case maker rebate
)

// Bounds holds per-owner gain/loss ceilings for each (asset, direction)
// pair, pre-computed from an unexecuted action log.
type Bounds struct {
	CoinGained map[domain.OwnerID]uint64
	CoinSpent  map[domain.OwnerID]uint64
	PcGained   map[domain.OwnerID]uint64
	PcSpent    map[domain.OwnerID]uint64
}

// ComputeBounds scans the log once and produces conservative ceilings:
//
//   - coin gained: a bid can at most take its full quantity.
//   - coin spent: an ask can at most give its full quantity.
//   - pc spent: a bid can at most pay its full notional plus the fee
//     margin.
//   - pc gained: an ask either takes aggressively against the best bid
//     posted so far (running max bid price, threaded in log order since
//     only earlier bids can be resting when the ask arrives) or rests
//     and sells at its own price plus the rebate margin, whichever is
//     larger.
//
// All arithmetic saturates, so hostile logs with huge prices or
// quantities still produce valid (if astronomically loose) ceilings.
// The function is pure: it never touches exchange state, and computing
// it twice over the same log yields identical maps.
func ComputeBounds(actions []domain.Action) Bounds {
	b := Bounds{
		CoinGained: make(map[domain.OwnerID]uint64),
		CoinSpent:  make(map[domain.OwnerID]uint64),
		PcGained:   make(map[domain.OwnerID]uint64),
		PcSpent:    make(map[domain.OwnerID]uint64),
	}

	var maxBidPrice uint64
	for _, a := range actions {
		if a.Kind != domain.ActionPlaceOrder {
			continue
		}
		o := a.Order
		if o.Side == domain.SideBid {
			if o.LimitPrice > maxBidPrice {
				maxBidPrice = o.LimitPrice
			}
			coin := satMul(o.MaxQty, dex.CoinLotSize)
			b.CoinGained[a.Owner] = satAdd(b.CoinGained[a.Owner], coin)

			cost := satMul(satMul(o.MaxQty, o.LimitPrice), dex.PcLotSize)
			costPlusFees := satAdd(cost, cost/feeMarginDen)
			b.PcSpent[a.Owner] = satAdd(b.PcSpent[a.Owner], costPlusFees)
		} else {
			coin := satMul(o.MaxQty, dex.CoinLotSize)
			b.CoinSpent[a.Owner] = satAdd(b.CoinSpent[a.Owner], coin)

			maxTake := satMul(satMul(o.MaxQty, maxBidPrice), dex.PcLotSize)
			maxProvide := satMul(satMul(o.MaxQty, o.LimitPrice), dex.PcLotSize)
			maxProvidePlusRebate := satAdd(maxProvide, maxProvide/rebateMarginDen)
			gain := maxTake
			if maxProvidePlusRebate > gain {
				gain = maxProvidePlusRebate
			}
			b.PcGained[a.Owner] = satAdd(b.PcGained[a.Owner], gain)
		}
	}
	return b
}

func satAdd(a, b uint64) uint64 {
	sum, carry := bits.Add64(a, b, 0)
	if carry != 0 {
		return math.MaxUint64
	}
	return sum
}

func satMul(a, b uint64) uint64 {
	hi, lo := bits.Mul64(a, b)
	if hi != 0 {
		return math.MaxUint64
	}
	return lo
}
