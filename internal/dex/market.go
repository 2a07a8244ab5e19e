package dex

import (
	"math/bits"

	"github.com/google/uuid"

	"github.com/efreitasn/dexfuzz/internal/domain"
)

// Lot sizes convert logical order quantities and prices into native
// storage units: an order for q lots moves q×CoinLotSize native coin,
// and a fill of q lots at price p moves q×p×PcLotSize native pc.
const (
	CoinLotSize uint64 = 100_000
	PcLotSize   uint64 = 100
)

// Fee schedule. The taker pays notional/TakerFeeDen on each fill, the
// maker receives notional/MakerRebateDen back, and the difference
// accrues to the market. Both rates must stay strictly inside the
// margins assumed by callers that pre-compute gain/loss ceilings
// (1/100 fee, 1/1000 rebate).
const (
	TakerFeeDen    uint64 = 200
	MakerRebateDen uint64 = 2000
)

// Market is the exchange's global state for one coin/pc pair: the
// vaults, the request and event queues, the resting book, and the fee
// accrual totals. All mutation goes through ProcessInstruction.
type Market struct {
	key uuid.UUID

	coinVault *TokenAccount
	pcVault   *TokenAccount

	reqQ   *RequestQueue
	eventQ *EventQueue
	book   *Book

	coinFeesAccrued uint64
	pcFeesAccrued   uint64

	seq uint64
}

// NewMarket creates an empty market with fresh vaults and queues.
func NewMarket() *Market {
	key := uuid.New()
	return &Market{
		key:       key,
		coinVault: NewTokenAccount(AssetCoin, key, 0),
		pcVault:   NewTokenAccount(AssetPc, key, 0),
		reqQ:      newRequestQueue(),
		eventQ:    newEventQueue(),
		book:      newBook(),
	}
}

func (m *Market) Key() uuid.UUID { return m.key }

// RequestQueue returns the market's request queue account.
func (m *Market) RequestQueue() *RequestQueue { return m.reqQ }

// EventQueue returns the market's event queue account.
func (m *Market) EventQueue() *EventQueue { return m.eventQ }

// CoinVault returns the vault holding locked and settled coin.
func (m *Market) CoinVault() *TokenAccount { return m.coinVault }

// PcVault returns the vault holding locked and settled pc.
func (m *Market) PcVault() *TokenAccount { return m.pcVault }

// CoinFeesAccrued returns total coin skimmed as fees. The current fee
// schedule only charges pc, so this stays zero.
func (m *Market) CoinFeesAccrued() uint64 { return m.coinFeesAccrued }

// PcFeesAccrued returns total pc skimmed as fees.
func (m *Market) PcFeesAccrued() uint64 { return m.pcFeesAccrued }

// BookLen returns the number of resting orders, both sides.
func (m *Market) BookLen() int { return m.book.len() }

// checkedMul returns a×b, or ok=false on overflow.
func checkedMul(a, b uint64) (uint64, bool) {
	hi, lo := bits.Mul64(a, b)
	return lo, hi == 0
}

// checkedAdd returns a+b, or ok=false on overflow.
func checkedAdd(a, b uint64) (uint64, bool) {
	sum, carry := bits.Add64(a, b, 0)
	return sum, carry == 0
}

// lockFor computes the native units a new order must lock: bids lock
// the full notional at the limit price plus the worst-case taker fee,
// asks lock the full quantity in coin. Overflow means the order could
// never be funded, reported as ok=false.
func lockFor(instr NewOrderInstruction) (amount uint64, asset Asset, ok bool) {
	if instr.Side == domain.SideBid {
		notional, ok := checkedMul(instr.MaxQty, instr.LimitPrice)
		if !ok {
			return 0, AssetPc, false
		}
		notional, ok = checkedMul(notional, PcLotSize)
		if !ok {
			return 0, AssetPc, false
		}
		lock, ok := checkedAdd(notional, notional/TakerFeeDen)
		return lock, AssetPc, ok
	}
	lock, ok := checkedMul(instr.MaxQty, CoinLotSize)
	return lock, AssetCoin, ok
}

func (m *Market) newOrder(oo *OpenOrders, payer *TokenAccount, instr NewOrderInstruction) error {
	lock, asset, ok := lockFor(instr)
	if !ok {
		return errCode(CodeInsufficientFunds, "order notional overflows")
	}
	if payer.Balance() < lock {
		return errCode(CodeInsufficientFunds, "need %d native %s, have %d", lock, asset, payer.Balance())
	}
	if m.reqQ.full() {
		return errCode(CodeRequestQueueFull, "capacity %d", RequestQueueCap)
	}
	slot, ok := oo.findFreeSlot()
	if !ok {
		return errCode(CodeOpenOrdersSlotsFull, "all %d slots occupied", NumSlots)
	}

	m.seq++
	o := &order{
		id:              m.seq,
		clientOrderID:   instr.ClientOrderID,
		owner:           oo,
		slot:            slot,
		side:            instr.Side,
		typ:             instr.Type,
		price:           instr.LimitPrice,
		remainingQty:    instr.MaxQty,
		lockedRemaining: lock,
	}

	payer.debit(lock)
	if asset == AssetCoin {
		m.coinVault.credit(lock)
	} else {
		m.pcVault.credit(lock)
	}
	oo.lock(asset, lock)
	oo.setSlot(slot, o.id, o.clientOrderID, o.side)
	m.reqQ.push(o)
	return nil
}

func (m *Market) matchOrders(limit uint16) error {
	for i := uint16(0); i < limit; i++ {
		o, ok := m.reqQ.pop()
		if !ok {
			break
		}
		m.matchRequest(o)
	}
	return nil
}

// matchRequest runs one popped request against the opposite side of the
// book at resting prices, emitting paired fill events. Limit remainders
// rest on the book; IOC remainders and crossing post-only orders are
// released through out events.
func (m *Market) matchRequest(o *order) {
	if o.typ == domain.OrderTypePostOnly && m.wouldCross(o) {
		m.emitOut(o)
		return
	}

	for o.remainingQty > 0 {
		maker, ok := m.bestOpposite(o.side)
		if !ok || !crosses(o, maker) {
			break
		}

		fillQty := o.remainingQty
		if maker.remainingQty < fillQty {
			fillQty = maker.remainingQty
		}
		m.fill(o, maker, fillQty)

		if maker.remainingQty == 0 {
			m.book.remove(maker.id)
			m.emitOut(maker)
		}
	}

	switch {
	case o.remainingQty == 0:
		m.emitOut(o)
	case o.typ == domain.OrderTypeLimit || o.typ == domain.OrderTypePostOnly:
		m.book.insert(o)
	default: // IOC remainder
		m.emitOut(o)
	}
}

func (m *Market) bestOpposite(side domain.Side) (*order, bool) {
	if side == domain.SideBid {
		return m.book.bestAsk()
	}
	return m.book.bestBid()
}

func (m *Market) wouldCross(o *order) bool {
	maker, ok := m.bestOpposite(o.side)
	return ok && crosses(o, maker)
}

func crosses(taker, maker *order) bool {
	if taker.side == domain.SideBid {
		return maker.price <= taker.price
	}
	return maker.price >= taker.price
}

// fill executes fillQty lots between taker and maker at the maker's
// price and emits one event per side. Fee flows are exact: the taker's
// debit equals the maker's credit plus the accrued fee, so value is
// conserved to the native unit.
func (m *Market) fill(taker, maker *order, fillQty uint64) {
	// Maker notionals are bounded by what the maker locked, so these
	// cannot overflow.
	notional := fillQty * maker.price * PcLotSize
	nativeCoin := fillQty * CoinLotSize
	takerFee := notional / TakerFeeDen
	makerRebate := notional / MakerRebateDen

	if taker.side == domain.SideBid {
		// Taker buys: spends locked pc plus fee, receives coin.
		// Maker sells: locked coin leaves, pc proceeds plus rebate
		// arrive as free funds.
		debit := notional + takerFee
		taker.lockedRemaining -= debit
		maker.lockedRemaining -= nativeCoin
		m.eventQ.push(event{
			owner: taker.owner, slot: taker.slot,
			pcSpend: debit, coinCredit: nativeCoin,
		})
		m.eventQ.push(event{
			owner: maker.owner, slot: maker.slot,
			coinSpend: nativeCoin, pcCredit: notional + makerRebate,
		})
	} else {
		// Taker sells: locked coin leaves, pc proceeds net of fee
		// arrive as free funds. Maker buys at its own price: notional
		// plus its fee allowance leave the locked pool, the allowance
		// returns to free, and the rebate arrives as new funds.
		allowance := notional / TakerFeeDen
		taker.lockedRemaining -= nativeCoin
		maker.lockedRemaining -= notional + allowance
		m.eventQ.push(event{
			owner: taker.owner, slot: taker.slot,
			coinSpend: nativeCoin, pcCredit: notional - takerFee,
		})
		m.eventQ.push(event{
			owner: maker.owner, slot: maker.slot,
			pcSpend: notional, pcUnlock: allowance,
			coinCredit: nativeCoin, pcCredit: makerRebate,
		})
	}
	m.pcFeesAccrued += takerFee - makerRebate

	taker.remainingQty -= fillQty
	maker.remainingQty -= fillQty
}

// emitOut emits the terminal event for an order: whatever remains
// locked is released to free funds and the slot is freed once the event
// is consumed.
func (m *Market) emitOut(o *order) {
	e := event{owner: o.owner, slot: o.slot, release: true}
	if o.side == domain.SideBid {
		e.pcUnlock = o.lockedRemaining
	} else {
		e.coinUnlock = o.lockedRemaining
	}
	o.lockedRemaining = 0
	o.remainingQty = 0
	m.eventQ.push(e)
}

// cancel removes the order from the book or from the pending request
// queue and releases its remaining lock through an out event.
func (m *Market) cancel(oo *OpenOrders, o *order) error {
	if o == nil || o.owner != oo {
		return errCode(CodeOrderNotFound, "order not resting or pending")
	}
	if m.book.remove(o.id) == nil {
		if m.reqQ.removeByID(o.id) == nil {
			return errCode(CodeOrderNotFound, "order %d not resting or pending", o.id)
		}
	}
	m.emitOut(o)
	return nil
}

func (m *Market) cancelOrder(oo *OpenOrders, instr CancelOrderInstruction) error {
	o := m.book.get(instr.OrderID)
	if o == nil {
		o = m.reqQ.findByID(instr.OrderID)
	}
	if o == nil {
		return errCode(CodeOrderNotFound, "order %d", instr.OrderID)
	}
	if o.owner != oo || o.slot != instr.OwnerSlot || o.side != instr.Side {
		return errCode(CodeOrderNotFound, "order %d does not match slot %d", instr.OrderID, instr.OwnerSlot)
	}
	return m.cancel(oo, o)
}

func (m *Market) cancelOrderByClientID(oo *OpenOrders, clientOrderID uint64) error {
	if clientOrderID == 0 {
		return errCode(CodeClientOrderIDZero, "client order id must be nonzero")
	}
	o := m.book.findByClientID(oo, clientOrderID)
	if o == nil {
		o = m.reqQ.findByClientID(oo, clientOrderID)
	}
	if o == nil {
		return errCode(CodeOrderNotFound, "client order id %d", clientOrderID)
	}
	return m.cancel(oo, o)
}

// consumeEvents applies up to limit pending events to the provided
// open-orders accounts. The accounts must arrive sorted by key bytes
// and must cover every account an applied event targets.
func (m *Market) consumeEvents(oos []*OpenOrders, limit uint16) error {
	provided := make(map[uuid.UUID]bool, len(oos))
	for _, oo := range oos {
		provided[oo.Key()] = true
	}

	for i := uint16(0); i < limit; i++ {
		if m.eventQ.Len() == 0 {
			break
		}
		next := m.eventQ.events[0]
		if !provided[next.owner.Key()] {
			return errCode(CodeOwnerAccountMissing, "event targets account %s not in list", next.owner.Key())
		}
		e, _ := m.eventQ.pop()
		applyEvent(e)
	}
	return nil
}

func applyEvent(e event) {
	oo := e.owner

	oo.nativeCoinTotal -= e.coinSpend
	oo.nativeCoinTotal += e.coinCredit
	oo.nativeCoinFree += e.coinCredit + e.coinUnlock

	oo.nativePcTotal -= e.pcSpend
	oo.nativePcTotal += e.pcCredit
	oo.nativePcFree += e.pcCredit + e.pcUnlock

	if e.release {
		oo.clearSlot(e.slot)
	}
}

// settleFunds moves the account's free balances out of the vaults into
// the owner's token accounts.
func (m *Market) settleFunds(oo *OpenOrders, coinAcct, pcAcct *TokenAccount) error {
	coin := oo.nativeCoinFree
	pc := oo.nativePcFree

	if !m.coinVault.debit(coin) || !m.pcVault.debit(pc) {
		return errCode(CodeInvalidAccounts, "vault balance below free funds")
	}
	coinAcct.credit(coin)
	pcAcct.credit(pc)

	oo.nativeCoinFree = 0
	oo.nativeCoinTotal -= coin
	oo.nativePcFree = 0
	oo.nativePcTotal -= pc
	return nil
}
