package sim

import (
	"bytes"
	"sort"

	"github.com/efreitasn/dexfuzz/internal/dex"
	"github.com/efreitasn/dexfuzz/internal/domain"
)

// Initial balances every owner's token accounts are funded with. The
// two assets deliberately differ so a bug that confuses them shows up
// in the conservation check.
const (
	InitialCoinBalance uint64 = 1_000_000_000
	InitialPcBalance   uint64 = 3_000_000_000
)

// Owner is the per-participant resource bundle: an identity signer, an
// open-orders account, and one pre-funded token account per asset.
type Owner struct {
	ID         domain.OwnerID
	Signer     *dex.Signer
	OpenOrders *dex.OpenOrders
	CoinAcct   *dex.TokenAccount
	PcAcct     *dex.TokenAccount
}

// Registry provisions owners on demand. All resources are scoped to one
// simulation run; the registry is never shared across runs.
type Registry struct {
	market *dex.Market
	owners map[domain.OwnerID]*Owner
}

// NewRegistry creates an empty registry bound to the market.
func NewRegistry(market *dex.Market) *Registry {
	return &Registry{
		market: market,
		owners: make(map[domain.OwnerID]*Owner),
	}
}

// Provision returns the owner's resource bundle, creating and funding
// it on first reference. Idempotent: later calls for the same id return
// the same bundle.
func (r *Registry) Provision(id domain.OwnerID) *Owner {
	if o, ok := r.owners[id]; ok {
		return o
	}
	signer := dex.NewSigner()
	o := &Owner{
		ID:         id,
		Signer:     signer,
		OpenOrders: dex.NewOpenOrders(signer),
		CoinAcct:   dex.NewTokenAccount(dex.AssetCoin, signer.Key(), InitialCoinBalance),
		PcAcct:     dex.NewTokenAccount(dex.AssetPc, signer.Key(), InitialPcBalance),
	}
	r.owners[id] = o
	return o
}

// Get returns the owner if it has been provisioned.
func (r *Registry) Get(id domain.OwnerID) (*Owner, bool) {
	o, ok := r.owners[id]
	return o, ok
}

// Len returns the number of provisioned owners.
func (r *Registry) Len() int {
	return len(r.owners)
}

// SortedByID returns provisioned owners in ascending OwnerID order, the
// canonical order for the deterministic liquidation pass.
func (r *Registry) SortedByID() []*Owner {
	out := make([]*Owner, 0, len(r.owners))
	for _, o := range r.owners {
		out = append(out, o)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

// OpenOrdersByKey returns every provisioned owner's open-orders account
// in ascending key-byte order, as the exchange's ConsumeEvents protocol
// requires.
func (r *Registry) OpenOrdersByKey() []*dex.OpenOrders {
	out := make([]*dex.OpenOrders, 0, len(r.owners))
	for _, o := range r.owners {
		out = append(out, o.OpenOrders)
	}
	sort.Slice(out, func(i, j int) bool {
		a, b := out[i].Key(), out[j].Key()
		return bytes.Compare(a[:], b[:]) < 0
	})
	return out
}
