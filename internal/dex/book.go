package dex

import (
	"github.com/google/btree"

	"github.com/efreitasn/dexfuzz/internal/domain"
)

// order is the exchange's internal record of one order, used both for
// requests waiting in the request queue and for orders resting on the
// book. lockedRemaining tracks the native units still locked in the
// vault on behalf of this order (pc for bids, coin for asks).
type order struct {
	id            uint64
	clientOrderID uint64
	owner         *OpenOrders
	slot          uint8
	side          domain.Side
	typ           domain.OrderType
	price         uint64

	remainingQty    uint64
	lockedRemaining uint64
}

// bidLess orders the bid side: price descending, then id ascending, so
// Min() returns the best bid (highest price, earliest order).
func bidLess(a, b *order) bool {
	if a.price != b.price {
		return a.price > b.price
	}
	return a.id < b.id
}

// askLess orders the ask side: price ascending, then id ascending, so
// Min() returns the best ask (lowest price, earliest order).
func askLess(a, b *order) bool {
	if a.price != b.price {
		return a.price < b.price
	}
	return a.id < b.id
}

// Book holds the resting bid and ask sides in B-trees with a secondary
// index for O(log n) removal by order id.
type Book struct {
	bids  *btree.BTreeG[*order]
	asks  *btree.BTreeG[*order]
	index map[uint64]*order
}

func newBook() *Book {
	const degree = 32
	return &Book{
		bids:  btree.NewG(degree, bidLess),
		asks:  btree.NewG(degree, askLess),
		index: make(map[uint64]*order),
	}
}

func (b *Book) insert(o *order) {
	if o.side == domain.SideBid {
		b.bids.ReplaceOrInsert(o)
	} else {
		b.asks.ReplaceOrInsert(o)
	}
	b.index[o.id] = o
}

// remove deletes an order from the book by id. Returns nil if the id is
// not resting on either side.
func (b *Book) remove(id uint64) *order {
	o, ok := b.index[id]
	if !ok {
		return nil
	}
	delete(b.index, id)
	if o.side == domain.SideBid {
		b.bids.Delete(o)
	} else {
		b.asks.Delete(o)
	}
	return o
}

func (b *Book) get(id uint64) *order {
	return b.index[id]
}

// bestBid returns the highest-priority bid.
func (b *Book) bestBid() (*order, bool) {
	return b.bids.Min()
}

// bestAsk returns the highest-priority ask.
func (b *Book) bestAsk() (*order, bool) {
	return b.asks.Min()
}

// findByClientID scans the index for the owner's order with the given
// client order id. Client order ids are caller-chosen and need not be
// unique; the match with the lowest order id wins.
func (b *Book) findByClientID(owner *OpenOrders, clientOrderID uint64) *order {
	var found *order
	for _, o := range b.index {
		if o.owner == owner && o.clientOrderID == clientOrderID {
			if found == nil || o.id < found.id {
				found = o
			}
		}
	}
	return found
}

// len returns the number of resting orders on both sides.
func (b *Book) len() int {
	return len(b.index)
}
