package sim

import (
	"fmt"

	"github.com/efreitasn/dexfuzz/internal/dex"
	"github.com/efreitasn/dexfuzz/internal/domain"
)

// Invariant names carried by InvariantViolation.
const (
	InvariantConservation = "conservation"
	InvariantGainBound    = "gain_bound"
	InvariantLossBound    = "loss_bound"
	InvariantResidualLock = "residual_lock"
)

// InvariantViolation is a failed end-of-run assertion. It is distinct
// from exchange-reported errors and always carries both the observed
// and the expected magnitude; per-owner violations also carry the
// offending owner id.
type InvariantViolation struct {
	Invariant string
	Asset     dex.Asset
	Owner     domain.OwnerID
	PerOwner  bool
	Observed  uint64
	Want      uint64
}

func (v *InvariantViolation) Error() string {
	if v.PerOwner {
		return fmt.Sprintf("invariant %s violated: owner %d %s observed %d, bound %d",
			v.Invariant, v.Owner, v.Asset, v.Observed, v.Want)
	}
	return fmt.Sprintf("invariant %s violated: %s observed %d, want %d",
		v.Invariant, v.Asset, v.Observed, v.Want)
}

// Verify runs the end-of-run assertions: per-asset conservation against
// the exchange's fee-accrual totals, per-owner realized gain and loss
// against the pre-computed ceilings, and zero residual locked balances.
// It must only be called after the liquidation pass.
func Verify(reg *Registry, market *dex.Market, bounds Bounds) error {
	var totalCoin, totalPc uint64
	for _, o := range reg.SortedByID() {
		totalCoin += o.CoinAcct.Balance()
		totalPc += o.PcAcct.Balance()
	}
	owners := uint64(reg.Len())

	if got, want := totalCoin+market.CoinFeesAccrued(), owners*InitialCoinBalance; got != want {
		return &InvariantViolation{
			Invariant: InvariantConservation, Asset: dex.AssetCoin,
			Observed: got, Want: want,
		}
	}
	if got, want := totalPc+market.PcFeesAccrued(), owners*InitialPcBalance; got != want {
		return &InvariantViolation{
			Invariant: InvariantConservation, Asset: dex.AssetPc,
			Observed: got, Want: want,
		}
	}

	for _, o := range reg.SortedByID() {
		if err := checkOwnerBounds(o, dex.AssetCoin, o.CoinAcct.Balance(), InitialCoinBalance,
			bounds.CoinGained[o.ID], bounds.CoinSpent[o.ID]); err != nil {
			return err
		}
		if err := checkOwnerBounds(o, dex.AssetPc, o.PcAcct.Balance(), InitialPcBalance,
			bounds.PcGained[o.ID], bounds.PcSpent[o.ID]); err != nil {
			return err
		}

		if total := o.OpenOrders.NativeCoinTotal(); total != 0 {
			return &InvariantViolation{
				Invariant: InvariantResidualLock, Asset: dex.AssetCoin,
				Owner: o.ID, PerOwner: true, Observed: total, Want: 0,
			}
		}
		if total := o.OpenOrders.NativePcTotal(); total != 0 {
			return &InvariantViolation{
				Invariant: InvariantResidualLock, Asset: dex.AssetPc,
				Owner: o.ID, PerOwner: true, Observed: total, Want: 0,
			}
		}
	}
	return nil
}

func checkOwnerBounds(o *Owner, asset dex.Asset, balance, initial, gainBound, lossBound uint64) error {
	if balance > initial {
		if gained := balance - initial; gained > gainBound {
			return &InvariantViolation{
				Invariant: InvariantGainBound, Asset: asset,
				Owner: o.ID, PerOwner: true, Observed: gained, Want: gainBound,
			}
		}
	}
	if balance < initial {
		if spent := initial - balance; spent > lossBound {
			return &InvariantViolation{
				Invariant: InvariantLossBound, Asset: asset,
				Owner: o.ID, PerOwner: true, Observed: spent, Want: lossBound,
			}
		}
	}
	return nil
}
