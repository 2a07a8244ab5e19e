package sim

import (
	"fmt"
	"log/slog"
	"math"

	"github.com/efreitasn/dexfuzz/internal/dex"
	"github.com/efreitasn/dexfuzz/internal/domain"
)

// crankLimit is the match/consume batch size used for the periodic
// cranks interleaved with liquidation cancels.
const crankLimit = 100

// Driver replays an action log through the executor and then winds the
// market down to a terminal state with no resting liquidity and fully
// flushed settlements.
type Driver struct {
	exec       *Executor
	reg        *Registry
	log        *slog.Logger
	forceCrank bool
}

// NewDriver creates a driver. When forceCrank is set, every replayed
// action is followed by a MatchOrders+ConsumeEvents cycle, which makes
// fills land immediately after the action that caused them. Useful when
// reading verbose logs; it has no effect on the checked invariants.
func NewDriver(exec *Executor, reg *Registry, log *slog.Logger, forceCrank bool) *Driver {
	return &Driver{exec: exec, reg: reg, log: log, forceCrank: forceCrank}
}

// Replay applies the log in order.
func (d *Driver) Replay(actions []domain.Action) error {
	for i, a := range actions {
		if err := d.exec.Apply(a); err != nil {
			return fmt.Errorf("action %d: %w", i, err)
		}
		if d.forceCrank {
			if err := d.crank(crankLimit); err != nil {
				return fmt.Errorf("action %d: %w", i, err)
			}
		}
	}
	return nil
}

// Liquidate deterministically cancels every occupied slot in canonical
// OwnerID order, cranking a match/consume cycle before every 8th
// cancellation so the request queue never fills, then runs one final
// full-drain crank and settles every owner that still has order
// tracking state. Afterwards no owner should have locked funds.
func (d *Driver) Liquidate() error {
	cancels := 0
	for _, owner := range d.reg.SortedByID() {
		for slot := 0; slot < dex.NumSlots; slot++ {
			if _, _, _, ok := owner.OpenOrders.Slot(uint8(slot)); !ok {
				continue
			}
			if cancels%8 == 0 {
				if err := d.crank(crankLimit); err != nil {
					return err
				}
			}
			if err := d.exec.Apply(domain.CancelOrder(owner.ID, uint8(slot), false)); err != nil {
				return err
			}
			cancels++
		}
	}

	// Final crank at the maximum limit: every pending request and event
	// must drain for the residual-lock invariant to be checkable.
	if err := d.crank(math.MaxUint16); err != nil {
		return err
	}

	for _, owner := range d.reg.SortedByID() {
		if err := d.exec.Apply(domain.SettleFunds(owner.ID)); err != nil {
			return err
		}
	}

	d.log.Debug("liquidation complete",
		slog.Int("cancels", cancels),
		slog.Int("owners", d.reg.Len()),
	)
	return nil
}

func (d *Driver) crank(limit uint16) error {
	if err := d.exec.Apply(domain.MatchOrders(limit)); err != nil {
		return fmt.Errorf("crank: %w", err)
	}
	if err := d.exec.Apply(domain.ConsumeEvents(limit)); err != nil {
		return fmt.Errorf("crank: %w", err)
	}
	return nil
}
