package domain

// Side indicates whether an order is a bid (buy) or ask (sell).
type Side string

const (
	SideBid Side = "bid"
	SideAsk Side = "ask"
)

// OrderType distinguishes how an order behaves when it reaches the
// matching crank.
type OrderType string

const (
	OrderTypeLimit    OrderType = "limit"
	OrderTypeIOC      OrderType = "ioc"
	OrderTypePostOnly OrderType = "post_only"
)

// OwnerIDSpace is the modulus applied to raw bytes when deriving an
// OwnerID. The id space is kept deliberately tiny so that randomly
// generated logs make the same few participants trade against each
// other instead of spreading actions over owners that never interact.
const OwnerIDSpace = 8

// OwnerID identifies a simulated participant. Always derived via
// ReduceOwnerID; never widen this to a large id space.
type OwnerID uint8

// ReduceOwnerID maps a raw byte into the restricted OwnerID space.
func ReduceOwnerID(raw byte) OwnerID {
	return OwnerID(raw % OwnerIDSpace)
}

// ActionKind tags the variant held by an Action.
type ActionKind string

const (
	ActionPlaceOrder    ActionKind = "place_order"
	ActionCancelOrder   ActionKind = "cancel_order"
	ActionMatchOrders   ActionKind = "match_orders"
	ActionConsumeEvents ActionKind = "consume_events"
	ActionSettleFunds   ActionKind = "settle_funds"
)

// NewOrderParams holds the parameters of a simulated order placement.
// LimitPrice and MaxQty are in lots and are always nonzero.
type NewOrderParams struct {
	Side          Side
	Type          OrderType
	LimitPrice    uint64
	MaxQty        uint64
	ClientOrderID uint64
}

// Action is one simulated operation. It is a closed tagged union: Kind
// selects the variant and the remaining fields are only meaningful for
// the variants that use them.
type Action struct {
	Kind ActionKind

	// PlaceOrder, CancelOrder, SettleFunds.
	Owner OwnerID

	// PlaceOrder.
	Order NewOrderParams

	// CancelOrder.
	Slot       uint8
	ByClientID bool

	// MatchOrders, ConsumeEvents.
	Limit uint16
}

// PlaceOrder builds a place-order action.
func PlaceOrder(owner OwnerID, params NewOrderParams) Action {
	return Action{Kind: ActionPlaceOrder, Owner: owner, Order: params}
}

// CancelOrder builds a cancel action targeting one of the owner's
// open-order slots.
func CancelOrder(owner OwnerID, slot uint8, byClientID bool) Action {
	return Action{Kind: ActionCancelOrder, Owner: owner, Slot: slot, ByClientID: byClientID}
}

// MatchOrders builds a global matching crank action.
func MatchOrders(limit uint16) Action {
	return Action{Kind: ActionMatchOrders, Limit: limit}
}

// ConsumeEvents builds a global event-consumption crank action.
func ConsumeEvents(limit uint16) Action {
	return Action{Kind: ActionConsumeEvents, Limit: limit}
}

// SettleFunds builds a settle action for the owner's matched funds.
func SettleFunds(owner OwnerID) Action {
	return Action{Kind: ActionSettleFunds, Owner: owner}
}
