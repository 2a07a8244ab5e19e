package sim

import (
	"math"
	"reflect"
	"testing"

	"github.com/efreitasn/dexfuzz/internal/domain"
)

func place(owner domain.OwnerID, side domain.Side, price, qty uint64) domain.Action {
	return domain.PlaceOrder(owner, domain.NewOrderParams{
		Side: side, Type: domain.OrderTypeLimit,
		LimitPrice: price, MaxQty: qty, ClientOrderID: 1,
	})
}

func TestComputeBounds_Bid(t *testing.T) {
	b := ComputeBounds([]domain.Action{place(1, domain.SideBid, 5, 10)})

	if got := b.CoinGained[1]; got != 1_000_000 {
		t.Fatalf("coin gained: got %d, want 1000000", got)
	}
	// Notional 5000 plus the 1/100 fee margin.
	if got := b.PcSpent[1]; got != 5050 {
		t.Fatalf("pc spent: got %d, want 5050", got)
	}
	if got := b.CoinSpent[1]; got != 0 {
		t.Fatalf("coin spent: got %d, want 0", got)
	}
	if got := b.PcGained[1]; got != 0 {
		t.Fatalf("pc gained: got %d, want 0", got)
	}
}

func TestComputeBounds_AskWithNoPriorBid(t *testing.T) {
	b := ComputeBounds([]domain.Action{place(2, domain.SideAsk, 5, 10)})

	if got := b.CoinSpent[2]; got != 1_000_000 {
		t.Fatalf("coin spent: got %d, want 1000000", got)
	}
	// No bid has been posted, so the ask can only rest and sell at its
	// own price: notional 5000 plus the 1/1000 rebate margin.
	if got := b.PcGained[2]; got != 5005 {
		t.Fatalf("pc gained: got %d, want 5005", got)
	}
}

func TestComputeBounds_AskTakesRunningMaxBid(t *testing.T) {
	b := ComputeBounds([]domain.Action{
		place(1, domain.SideBid, 9, 3),
		place(2, domain.SideAsk, 5, 10),
	})

	// Taking against the best bid price 9 dominates resting at 5:
	// 10×9×100 = 9000 beats 5005.
	if got := b.PcGained[2]; got != 9000 {
		t.Fatalf("pc gained: got %d, want 9000", got)
	}
}

func TestComputeBounds_BidAfterAskDoesNotCount(t *testing.T) {
	b := ComputeBounds([]domain.Action{
		place(2, domain.SideAsk, 5, 10),
		place(1, domain.SideBid, 9, 3),
	})

	// The bid at 9 arrives after the ask, so it cannot be resting when
	// the ask matches.
	if got := b.PcGained[2]; got != 5005 {
		t.Fatalf("pc gained: got %d, want 5005", got)
	}
}

func TestComputeBounds_IgnoresNonPlacements(t *testing.T) {
	b := ComputeBounds([]domain.Action{
		domain.CancelOrder(1, 0, false),
		domain.MatchOrders(10),
		domain.ConsumeEvents(10),
		domain.SettleFunds(1),
	})

	if len(b.CoinGained)+len(b.CoinSpent)+len(b.PcGained)+len(b.PcSpent) != 0 {
		t.Fatalf("expected empty bounds, got %+v", b)
	}
}

func TestComputeBounds_Accumulates(t *testing.T) {
	b := ComputeBounds([]domain.Action{
		place(1, domain.SideBid, 5, 10),
		place(1, domain.SideBid, 5, 10),
	})

	if got := b.CoinGained[1]; got != 2_000_000 {
		t.Fatalf("coin gained: got %d, want 2000000", got)
	}
	if got := b.PcSpent[1]; got != 10100 {
		t.Fatalf("pc spent: got %d, want 10100", got)
	}
}

func TestComputeBounds_Saturates(t *testing.T) {
	b := ComputeBounds([]domain.Action{
		place(1, domain.SideBid, math.MaxUint64, math.MaxUint64),
		place(1, domain.SideBid, math.MaxUint64, math.MaxUint64),
	})

	if got := b.PcSpent[1]; got != math.MaxUint64 {
		t.Fatalf("pc spent: got %d, want saturation", got)
	}
	if got := b.CoinGained[1]; got != math.MaxUint64 {
		t.Fatalf("coin gained: got %d, want saturation", got)
	}
}

func TestComputeBounds_Deterministic(t *testing.T) {
	actions := []domain.Action{
		place(1, domain.SideBid, 9, 3),
		place(2, domain.SideAsk, 5, 10),
		place(3, domain.SideBid, 2, 7),
		domain.MatchOrders(10),
		place(2, domain.SideAsk, 1, 4),
	}

	first := ComputeBounds(actions)
	second := ComputeBounds(actions)
	if !reflect.DeepEqual(first, second) {
		t.Fatalf("bounds differ across computations:\n%+v\n%+v", first, second)
	}
}
