package dex

import (
	"bytes"

	"github.com/efreitasn/dexfuzz/internal/domain"
)

// Instruction is the closed set of operations the exchange accepts.
// Each instruction requires a specific ordered account list, documented
// on the variant; ProcessInstruction rejects any other shape with
// CodeInvalidAccounts.
type Instruction interface {
	isInstruction()
}

// NewOrderInstruction places an order. Accounts, in order: market,
// open-orders, request queue, payer token account (pc for bids, coin
// for asks), signer, coin vault, pc vault.
type NewOrderInstruction struct {
	Side          domain.Side
	Type          domain.OrderType
	LimitPrice    uint64
	MaxQty        uint64
	ClientOrderID uint64
}

// CancelOrderInstruction cancels by order id. Accounts, in order:
// market, open-orders, request queue, signer.
type CancelOrderInstruction struct {
	Side      domain.Side
	OrderID   uint64
	OwnerSlot uint8
}

// CancelOrderByClientIDInstruction cancels by client order id. Same
// accounts as CancelOrderInstruction. A zero client order id is always
// rejected with CodeClientOrderIDZero.
type CancelOrderByClientIDInstruction struct {
	ClientOrderID uint64
}

// MatchOrdersInstruction runs the matching crank over at most Limit
// pending requests. Accounts, in order: market, request queue, event
// queue, coin vault, pc vault.
type MatchOrdersInstruction struct {
	Limit uint16
}

// ConsumeEventsInstruction applies at most Limit pending events.
// Accounts: every targeted open-orders account in ascending key-byte
// order, then market, event queue, coin vault, pc vault.
type ConsumeEventsInstruction struct {
	Limit uint16
}

// SettleFundsInstruction withdraws an account's free funds. Accounts,
// in order: market, open-orders, signer, coin vault, pc vault, owner
// coin token account, owner pc token account.
type SettleFundsInstruction struct{}

func (NewOrderInstruction) isInstruction()              {}
func (CancelOrderInstruction) isInstruction()           {}
func (CancelOrderByClientIDInstruction) isInstruction() {}
func (MatchOrdersInstruction) isInstruction()           {}
func (ConsumeEventsInstruction) isInstruction()         {}
func (SettleFundsInstruction) isInstruction()           {}

// ProcessInstruction is the exchange's single entry point. It validates
// the ordered account list against the instruction, then executes it
// against the market in accounts[0] (or the trailing market account for
// ConsumeEvents). The returned error is always a *Error.
func ProcessInstruction(accounts []Account, instr Instruction) error {
	switch in := instr.(type) {
	case NewOrderInstruction:
		m, rest, err := leadingMarket(accounts, 7)
		if err != nil {
			return err
		}
		oo, ok := rest[0].(*OpenOrders)
		if !ok {
			return errCode(CodeInvalidAccounts, "account 1 must be open-orders")
		}
		payer, ok := rest[2].(*TokenAccount)
		if !ok {
			return errCode(CodeInvalidAccounts, "account 3 must be a token account")
		}
		signer, ok := rest[3].(*Signer)
		if !ok {
			return errCode(CodeInvalidAccounts, "account 4 must be a signer")
		}
		if err := m.checkMarketAccounts(rest[1], nil, rest[4], rest[5]); err != nil {
			return err
		}
		if oo.Owner() != signer.Key() || payer.owner != signer.Key() {
			return errCode(CodeInvalidAccounts, "signer does not own order accounts")
		}
		wantAsset := AssetCoin
		if in.Side == domain.SideBid {
			wantAsset = AssetPc
		}
		if payer.Asset() != wantAsset {
			return errCode(CodeInvalidAccounts, "payer must hold %s for %s orders", wantAsset, in.Side)
		}
		return m.newOrder(oo, payer, in)

	case CancelOrderInstruction:
		m, oo, err := cancelAccounts(accounts)
		if err != nil {
			return err
		}
		return m.cancelOrder(oo, in)

	case CancelOrderByClientIDInstruction:
		m, oo, err := cancelAccounts(accounts)
		if err != nil {
			return err
		}
		return m.cancelOrderByClientID(oo, in.ClientOrderID)

	case MatchOrdersInstruction:
		m, rest, err := leadingMarket(accounts, 5)
		if err != nil {
			return err
		}
		if err := m.checkMarketAccounts(rest[0], rest[1], rest[2], rest[3]); err != nil {
			return err
		}
		return m.matchOrders(in.Limit)

	case ConsumeEventsInstruction:
		if len(accounts) < 5 {
			return errCode(CodeInvalidAccounts, "want open-orders accounts plus 4 market accounts, got %d", len(accounts))
		}
		tail := accounts[len(accounts)-4:]
		m, ok := tail[0].(*Market)
		if !ok {
			return errCode(CodeInvalidAccounts, "trailing accounts must start with market")
		}
		if err := m.checkMarketAccounts(nil, tail[1], tail[2], tail[3]); err != nil {
			return err
		}
		oos := make([]*OpenOrders, 0, len(accounts)-4)
		for i, a := range accounts[:len(accounts)-4] {
			oo, ok := a.(*OpenOrders)
			if !ok {
				return errCode(CodeInvalidAccounts, "account %d must be open-orders", i)
			}
			oos = append(oos, oo)
		}
		for i := 1; i < len(oos); i++ {
			prev, cur := oos[i-1].Key(), oos[i].Key()
			if bytes.Compare(prev[:], cur[:]) >= 0 {
				return errCode(CodeAccountsNotSorted, "open-orders accounts must be in ascending key order")
			}
		}
		return m.consumeEvents(oos, in.Limit)

	case SettleFundsInstruction:
		m, rest, err := leadingMarket(accounts, 7)
		if err != nil {
			return err
		}
		oo, ok := rest[0].(*OpenOrders)
		if !ok {
			return errCode(CodeInvalidAccounts, "account 1 must be open-orders")
		}
		signer, ok := rest[1].(*Signer)
		if !ok {
			return errCode(CodeInvalidAccounts, "account 2 must be a signer")
		}
		if err := m.checkMarketAccounts(nil, nil, rest[2], rest[3]); err != nil {
			return err
		}
		coinAcct, ok1 := rest[4].(*TokenAccount)
		pcAcct, ok2 := rest[5].(*TokenAccount)
		if !ok1 || !ok2 {
			return errCode(CodeInvalidAccounts, "accounts 5 and 6 must be token accounts")
		}
		if oo.Owner() != signer.Key() || coinAcct.owner != signer.Key() || pcAcct.owner != signer.Key() {
			return errCode(CodeInvalidAccounts, "signer does not own settle accounts")
		}
		if coinAcct.Asset() != AssetCoin || pcAcct.Asset() != AssetPc {
			return errCode(CodeInvalidAccounts, "settle token accounts must be coin then pc")
		}
		return m.settleFunds(oo, coinAcct, pcAcct)

	default:
		return errCode(CodeInvalidAccounts, "unknown instruction")
	}
}

// leadingMarket checks the account count and extracts the market from
// position 0, returning the remaining accounts.
func leadingMarket(accounts []Account, want int) (*Market, []Account, error) {
	if len(accounts) != want {
		return nil, nil, errCode(CodeInvalidAccounts, "want %d accounts, got %d", want, len(accounts))
	}
	m, ok := accounts[0].(*Market)
	if !ok {
		return nil, nil, errCode(CodeInvalidAccounts, "account 0 must be the market")
	}
	return m, accounts[1:], nil
}

func cancelAccounts(accounts []Account) (*Market, *OpenOrders, error) {
	m, rest, err := leadingMarket(accounts, 4)
	if err != nil {
		return nil, nil, err
	}
	oo, ok := rest[0].(*OpenOrders)
	if !ok {
		return nil, nil, errCode(CodeInvalidAccounts, "account 1 must be open-orders")
	}
	if err := m.checkMarketAccounts(rest[1], nil, nil, nil); err != nil {
		return nil, nil, err
	}
	signer, ok := rest[2].(*Signer)
	if !ok {
		return nil, nil, errCode(CodeInvalidAccounts, "account 3 must be a signer")
	}
	if oo.Owner() != signer.Key() {
		return nil, nil, errCode(CodeInvalidAccounts, "signer does not own open-orders")
	}
	return m, oo, nil
}

// checkMarketAccounts verifies that the caller passed this market's own
// queue and vault accounts. Nil arguments are skipped.
func (m *Market) checkMarketAccounts(reqQ, eventQ, coinVault, pcVault Account) error {
	if reqQ != nil && reqQ != Account(m.reqQ) {
		return errCode(CodeInvalidAccounts, "wrong request queue")
	}
	if eventQ != nil && eventQ != Account(m.eventQ) {
		return errCode(CodeInvalidAccounts, "wrong event queue")
	}
	if coinVault != nil && coinVault != Account(m.coinVault) {
		return errCode(CodeInvalidAccounts, "wrong coin vault")
	}
	if pcVault != nil && pcVault != Account(m.pcVault) {
		return errCode(CodeInvalidAccounts, "wrong pc vault")
	}
	return nil
}
