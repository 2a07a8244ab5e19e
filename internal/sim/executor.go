package sim

import (
	"fmt"
	"log/slog"

	"github.com/efreitasn/dexfuzz/internal/dex"
	"github.com/efreitasn/dexfuzz/internal/domain"
)

// Executor translates one Action into the exchange's instruction plus
// its ordered account list and dispatches it, absorbing the rejections
// the random log is expected to provoke and failing on everything else.
type Executor struct {
	market    *dex.Market
	reg       *Registry
	log       *slog.Logger
	verbosity int

	absorbed map[dex.ErrorCode]int
	executed int
}

// NewExecutor creates an executor over the market and registry.
func NewExecutor(market *dex.Market, reg *Registry, log *slog.Logger, verbosity int) *Executor {
	return &Executor{
		market:    market,
		reg:       reg,
		log:       log,
		verbosity: verbosity,
		absorbed:  make(map[dex.ErrorCode]int),
	}
}

// Absorbed returns how many expected rejections were absorbed, by code.
func (e *Executor) Absorbed() map[dex.ErrorCode]int {
	return e.absorbed
}

// Executed returns the number of actions applied, no-ops included.
func (e *Executor) Executed() int {
	return e.executed
}

// Apply dispatches one action. Lookups against owners or slots the
// random log never created are defensive no-ops. The returned error is
// fatal to the run: either an unexpected exchange error (wrapped with
// its structured detail) or a rejection the exchange failed to issue.
func (e *Executor) Apply(a domain.Action) error {
	e.executed++
	if e.verbosity >= 2 {
		e.log.Debug("apply", slog.String("kind", string(a.Kind)), slog.Int("owner", int(a.Owner)))
	}
	if e.verbosity >= 3 {
		e.log.Debug("queues",
			slog.Int("requests", e.market.RequestQueue().Len()),
			slog.Int("events", e.market.EventQueue().Len()),
			slog.Int("book", e.market.BookLen()),
		)
	}

	switch a.Kind {
	case domain.ActionPlaceOrder:
		return e.placeOrder(a)
	case domain.ActionCancelOrder:
		return e.cancelOrder(a)
	case domain.ActionMatchOrders:
		return e.matchOrders(a.Limit)
	case domain.ActionConsumeEvents:
		return e.consumeEvents(a.Limit)
	case domain.ActionSettleFunds:
		return e.settleFunds(a.Owner)
	default:
		return fmt.Errorf("unknown action kind %q", a.Kind)
	}
}

func (e *Executor) placeOrder(a domain.Action) error {
	owner := e.reg.Provision(a.Owner)

	payer := owner.CoinAcct
	if a.Order.Side == domain.SideBid {
		payer = owner.PcAcct
	}
	err := dex.ProcessInstruction([]dex.Account{
		e.market,
		owner.OpenOrders,
		e.market.RequestQueue(),
		payer,
		owner.Signer,
		e.market.CoinVault(),
		e.market.PcVault(),
	}, dex.NewOrderInstruction{
		Side:          a.Order.Side,
		Type:          a.Order.Type,
		LimitPrice:    a.Order.LimitPrice,
		MaxQty:        a.Order.MaxQty,
		ClientOrderID: a.Order.ClientOrderID,
	})
	return e.absorb(err, "place order",
		dex.CodeInsufficientFunds,
		dex.CodeRequestQueueFull,
		dex.CodeOpenOrdersSlotsFull,
	)
}

func (e *Executor) cancelOrder(a domain.Action) error {
	owner, ok := e.reg.Get(a.Owner)
	if !ok {
		return nil
	}
	orderID, clientOrderID, side, ok := owner.OpenOrders.Slot(a.Slot)
	if !ok {
		return nil
	}

	accounts := []dex.Account{
		e.market,
		owner.OpenOrders,
		e.market.RequestQueue(),
		owner.Signer,
	}

	if a.ByClientID {
		err := dex.ProcessInstruction(accounts, dex.CancelOrderByClientIDInstruction{
			ClientOrderID: clientOrderID,
		})
		if clientOrderID == 0 {
			// The exchange must reject a zero client order id. Accepting
			// it is a hard failure of the system under test.
			if err == nil {
				return fmt.Errorf("cancel by client id: exchange accepted zero client order id for owner %d slot %d", a.Owner, a.Slot)
			}
			return e.absorb(err, "cancel by client id",
				dex.CodeClientOrderIDZero,
				dex.CodeRequestQueueFull,
			)
		}
		return e.absorb(err, "cancel by client id",
			dex.CodeOrderNotFound,
			dex.CodeRequestQueueFull,
		)
	}

	err := dex.ProcessInstruction(accounts, dex.CancelOrderInstruction{
		Side:      side,
		OrderID:   orderID,
		OwnerSlot: a.Slot,
	})
	return e.absorb(err, "cancel order",
		dex.CodeOrderNotFound,
		dex.CodeRequestQueueFull,
	)
}

func (e *Executor) matchOrders(limit uint16) error {
	err := dex.ProcessInstruction([]dex.Account{
		e.market,
		e.market.RequestQueue(),
		e.market.EventQueue(),
		e.market.CoinVault(),
		e.market.PcVault(),
	}, dex.MatchOrdersInstruction{Limit: limit})
	if err != nil {
		return fmt.Errorf("match orders: %w", err)
	}
	return nil
}

func (e *Executor) consumeEvents(limit uint16) error {
	oos := e.reg.OpenOrdersByKey()
	if len(oos) == 0 {
		return nil
	}
	accounts := make([]dex.Account, 0, len(oos)+4)
	for _, oo := range oos {
		accounts = append(accounts, oo)
	}
	accounts = append(accounts,
		e.market,
		e.market.EventQueue(),
		e.market.CoinVault(),
		e.market.PcVault(),
	)
	if err := dex.ProcessInstruction(accounts, dex.ConsumeEventsInstruction{Limit: limit}); err != nil {
		return fmt.Errorf("consume events: %w", err)
	}
	return nil
}

func (e *Executor) settleFunds(id domain.OwnerID) error {
	owner, ok := e.reg.Get(id)
	if !ok {
		return nil
	}
	err := dex.ProcessInstruction([]dex.Account{
		e.market,
		owner.OpenOrders,
		owner.Signer,
		e.market.CoinVault(),
		e.market.PcVault(),
		owner.CoinAcct,
		owner.PcAcct,
	}, dex.SettleFundsInstruction{})
	if err != nil {
		return fmt.Errorf("settle funds: %w", err)
	}
	return nil
}

// absorb swallows err when its code is one of the expected rejections
// for the action, counting it; anything else is fatal.
func (e *Executor) absorb(err error, action string, codes ...dex.ErrorCode) error {
	if err == nil {
		return nil
	}
	if code, ok := dex.CodeOf(err); ok {
		for _, c := range codes {
			if code == c {
				e.absorbed[code]++
				if e.verbosity >= 2 {
					e.log.Debug("absorbed rejection", slog.String("action", action), slog.String("code", string(code)))
				}
				return nil
			}
		}
	}
	return fmt.Errorf("%s: %w", action, err)
}
