package sim

import (
	"errors"
	"io"
	"log/slog"
	"testing"

	"github.com/efreitasn/dexfuzz/internal/dex"
	"github.com/efreitasn/dexfuzz/internal/domain"
)

func TestRun_EmptyInput(t *testing.T) {
	report, err := Run(nil, Options{})
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	if report.Owners != 0 || report.Actions != 0 {
		t.Fatalf("expected empty report, got %+v", report)
	}
}

// A bid that never trades: placed, cranked onto the book, cancelled and
// settled. The owner ends exactly where it started.
func TestRunActions_PlaceCancelRefundsInFull(t *testing.T) {
	actions := []domain.Action{
		domain.PlaceOrder(1, domain.NewOrderParams{
			Side: domain.SideBid, Type: domain.OrderTypeLimit,
			LimitPrice: 5, MaxQty: 10, ClientOrderID: 1,
		}),
		domain.MatchOrders(10),
		domain.ConsumeEvents(10),
		domain.CancelOrder(1, 0, false),
		domain.ConsumeEvents(10),
		domain.SettleFunds(1),
	}

	report, err := RunActions(actions, Options{})
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	if report.Owners != 1 {
		t.Fatalf("owners: got %d, want 1", report.Owners)
	}
	if report.PcFeesAccrued != 0 {
		t.Fatalf("expected no fees without fills, got %d", report.PcFeesAccrued)
	}
}

func TestRunActions_UnknownOwnerOpsAreNoops(t *testing.T) {
	actions := []domain.Action{
		domain.CancelOrder(7, 3, true),
		domain.SettleFunds(6),
		domain.ConsumeEvents(50),
		domain.MatchOrders(50),
	}

	report, err := RunActions(actions, Options{})
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	if report.Owners != 0 {
		t.Fatalf("expected no owners provisioned, got %d", report.Owners)
	}
	if report.Actions != len(actions) {
		t.Fatalf("actions: got %d, want %d", report.Actions, len(actions))
	}
}

func crossingActions() []domain.Action {
	return []domain.Action{
		domain.PlaceOrder(1, domain.NewOrderParams{
			Side: domain.SideBid, Type: domain.OrderTypeLimit,
			LimitPrice: 5, MaxQty: 10, ClientOrderID: 1,
		}),
		domain.PlaceOrder(2, domain.NewOrderParams{
			Side: domain.SideAsk, Type: domain.OrderTypeLimit,
			LimitPrice: 5, MaxQty: 10, ClientOrderID: 2,
		}),
		domain.MatchOrders(10),
		domain.ConsumeEvents(10),
		domain.SettleFunds(1),
		domain.SettleFunds(2),
	}
}

func TestRunActions_CrossingFillConserves(t *testing.T) {
	report, err := RunActions(crossingActions(), Options{})
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	if report.Owners != 2 {
		t.Fatalf("owners: got %d, want 2", report.Owners)
	}
	// Taker fee 25 minus maker rebate 2 on a 5000 notional fill.
	if report.PcFeesAccrued != 23 {
		t.Fatalf("pc fees: got %d, want 23", report.PcFeesAccrued)
	}
	if report.CoinFeesAccrued != 0 {
		t.Fatalf("coin fees: got %d, want 0", report.CoinFeesAccrued)
	}
}

func TestRunActions_ForceCrankSameOutcome(t *testing.T) {
	plain, err := RunActions(crossingActions(), Options{})
	if err != nil {
		t.Fatalf("plain run: %v", err)
	}
	forced, err := RunActions(crossingActions(), Options{ForceCrank: true})
	if err != nil {
		t.Fatalf("forced run: %v", err)
	}
	if plain.PcFeesAccrued != forced.PcFeesAccrued {
		t.Fatalf("fees differ: plain %d, forced %d", plain.PcFeesAccrued, forced.PcFeesAccrued)
	}
	if plain.Owners != forced.Owners {
		t.Fatalf("owners differ: plain %d, forced %d", plain.Owners, forced.Owners)
	}
}

// Orders abandoned on the book or in the queues must all be liquidated:
// the run ends with every lock released even when the log never cancels
// or settles anything.
func TestRunActions_LiquidatesAbandonedOrders(t *testing.T) {
	actions := []domain.Action{
		domain.PlaceOrder(1, domain.NewOrderParams{
			Side: domain.SideBid, Type: domain.OrderTypeLimit,
			LimitPrice: 5, MaxQty: 10, ClientOrderID: 1,
		}),
		domain.PlaceOrder(2, domain.NewOrderParams{
			Side: domain.SideAsk, Type: domain.OrderTypeLimit,
			LimitPrice: 9, MaxQty: 4, ClientOrderID: 2,
		}),
		domain.MatchOrders(1),
	}

	if _, err := RunActions(actions, Options{}); err != nil {
		t.Fatalf("run: %v", err)
	}
}

func TestVerify_ConservationViolationWithoutSettlement(t *testing.T) {
	market := dex.NewMarket()
	reg := NewRegistry(market)
	log := slog.New(slog.NewTextHandler(io.Discard, nil))
	exec := NewExecutor(market, reg, log, 0)
	driver := NewDriver(exec, reg, log, false)

	err := driver.Replay([]domain.Action{
		domain.PlaceOrder(1, domain.NewOrderParams{
			Side: domain.SideBid, Type: domain.OrderTypeLimit,
			LimitPrice: 5, MaxQty: 10, ClientOrderID: 1,
		}),
	})
	if err != nil {
		t.Fatalf("replay: %v", err)
	}

	// No liquidation: the locked pc is still in the vault, so the token
	// account totals cannot add up.
	verr := Verify(reg, market, ComputeBounds(nil))
	var violation *InvariantViolation
	if !errors.As(verr, &violation) {
		t.Fatalf("expected invariant violation, got %v", verr)
	}
	if violation.Invariant != InvariantConservation || violation.Asset != dex.AssetPc {
		t.Fatalf("expected pc conservation violation, got %+v", violation)
	}
}

func TestVerify_GainBoundViolationWithZeroBounds(t *testing.T) {
	market := dex.NewMarket()
	reg := NewRegistry(market)
	log := slog.New(slog.NewTextHandler(io.Discard, nil))
	exec := NewExecutor(market, reg, log, 0)
	driver := NewDriver(exec, reg, log, false)

	if err := driver.Replay(crossingActions()); err != nil {
		t.Fatalf("replay: %v", err)
	}
	if err := driver.Liquidate(); err != nil {
		t.Fatalf("liquidate: %v", err)
	}

	// Zeroed ceilings: owner 1 gained a full million native coin, which
	// no zero bound can admit.
	verr := Verify(reg, market, Bounds{})
	var violation *InvariantViolation
	if !errors.As(verr, &violation) {
		t.Fatalf("expected invariant violation, got %v", verr)
	}
	if violation.Invariant != InvariantGainBound || violation.Asset != dex.AssetCoin || violation.Owner != 1 {
		t.Fatalf("expected coin gain bound violation for owner 1, got %+v", violation)
	}
}

func TestVerify_PassesAfterFullRun(t *testing.T) {
	market := dex.NewMarket()
	reg := NewRegistry(market)
	log := slog.New(slog.NewTextHandler(io.Discard, nil))
	exec := NewExecutor(market, reg, log, 0)
	driver := NewDriver(exec, reg, log, false)

	actions := crossingActions()
	bounds := ComputeBounds(actions)
	if err := driver.Replay(actions); err != nil {
		t.Fatalf("replay: %v", err)
	}
	if err := driver.Liquidate(); err != nil {
		t.Fatalf("liquidate: %v", err)
	}
	if err := Verify(reg, market, bounds); err != nil {
		t.Fatalf("verify: %v", err)
	}

	// Liquidation leaves nothing resting or pending.
	if market.BookLen() != 0 {
		t.Fatalf("book not empty: %d", market.BookLen())
	}
	if market.RequestQueue().Len() != 0 {
		t.Fatalf("request queue not empty: %d", market.RequestQueue().Len())
	}
	if market.EventQueue().Len() != 0 {
		t.Fatalf("event queue not empty: %d", market.EventQueue().Len())
	}
}
