package dex

import (
	"github.com/google/uuid"

	"github.com/efreitasn/dexfuzz/internal/domain"
)

// NumSlots is the fixed capacity of an open-orders account. Cancel
// requests referencing slots at or beyond this bound are meaningless.
const NumSlots = 128

// OpenOrders is a participant's order-tracking account: a fixed table
// of order slots plus the native balances the exchange holds on the
// participant's behalf. locked ≡ total − free for each asset.
type OpenOrders struct {
	key   uuid.UUID
	owner uuid.UUID

	orders    [NumSlots]uint64
	clientIDs [NumSlots]uint64
	sides     [NumSlots]domain.Side

	nativeCoinFree  uint64
	nativeCoinTotal uint64
	nativePcFree    uint64
	nativePcTotal   uint64
}

// NewOpenOrders creates an empty open-orders account owned by signer.
func NewOpenOrders(signer *Signer) *OpenOrders {
	return &OpenOrders{key: uuid.New(), owner: signer.Key()}
}

func (oo *OpenOrders) Key() uuid.UUID { return oo.key }

// Owner returns the key of the owning signer.
func (oo *OpenOrders) Owner() uuid.UUID { return oo.owner }

// Slot reports the order occupying the given slot. ok is false when the
// slot is free or out of range.
func (oo *OpenOrders) Slot(slot uint8) (orderID, clientOrderID uint64, side domain.Side, ok bool) {
	if int(slot) >= NumSlots || oo.orders[slot] == 0 {
		return 0, 0, "", false
	}
	return oo.orders[slot], oo.clientIDs[slot], oo.sides[slot], true
}

// NativeCoinFree returns settled-but-unwithdrawn coin.
func (oo *OpenOrders) NativeCoinFree() uint64 { return oo.nativeCoinFree }

// NativeCoinTotal returns free plus locked coin.
func (oo *OpenOrders) NativeCoinTotal() uint64 { return oo.nativeCoinTotal }

// NativePcFree returns settled-but-unwithdrawn pc.
func (oo *OpenOrders) NativePcFree() uint64 { return oo.nativePcFree }

// NativePcTotal returns free plus locked pc.
func (oo *OpenOrders) NativePcTotal() uint64 { return oo.nativePcTotal }

func (oo *OpenOrders) findFreeSlot() (uint8, bool) {
	for i := 0; i < NumSlots; i++ {
		if oo.orders[i] == 0 {
			return uint8(i), true
		}
	}
	return 0, false
}

func (oo *OpenOrders) setSlot(slot uint8, orderID, clientOrderID uint64, side domain.Side) {
	oo.orders[slot] = orderID
	oo.clientIDs[slot] = clientOrderID
	oo.sides[slot] = side
}

func (oo *OpenOrders) clearSlot(slot uint8) {
	oo.orders[slot] = 0
	oo.clientIDs[slot] = 0
	oo.sides[slot] = ""
}

func (oo *OpenOrders) lock(asset Asset, amount uint64) {
	switch asset {
	case AssetCoin:
		oo.nativeCoinTotal += amount
	case AssetPc:
		oo.nativePcTotal += amount
	}
}
