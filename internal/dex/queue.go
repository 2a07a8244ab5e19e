package dex

import "github.com/google/uuid"

// RequestQueueCap bounds the number of new-order requests that can wait
// for a matching crank. Placements against a full queue are rejected
// with CodeRequestQueueFull.
const RequestQueueCap = 16

// RequestQueue holds new orders awaiting a MatchOrders crank, FIFO.
type RequestQueue struct {
	key  uuid.UUID
	reqs []*order
}

func newRequestQueue() *RequestQueue {
	return &RequestQueue{key: uuid.New()}
}

func (q *RequestQueue) Key() uuid.UUID { return q.key }

// Len returns the number of pending requests.
func (q *RequestQueue) Len() int { return len(q.reqs) }

func (q *RequestQueue) full() bool {
	return len(q.reqs) >= RequestQueueCap
}

func (q *RequestQueue) push(o *order) {
	q.reqs = append(q.reqs, o)
}

func (q *RequestQueue) pop() (*order, bool) {
	if len(q.reqs) == 0 {
		return nil, false
	}
	o := q.reqs[0]
	q.reqs = q.reqs[1:]
	return o, true
}

// removeByID removes and returns the pending request with the given
// order id, preserving the order of the rest.
func (q *RequestQueue) removeByID(id uint64) *order {
	for i, o := range q.reqs {
		if o.id == id {
			q.reqs = append(q.reqs[:i], q.reqs[i+1:]...)
			return o
		}
	}
	return nil
}

// findByID returns the pending request with the given order id without
// removing it.
func (q *RequestQueue) findByID(id uint64) *order {
	for _, o := range q.reqs {
		if o.id == id {
			return o
		}
	}
	return nil
}

// findByClientID returns the owner's pending request with the given
// client order id, earliest first.
func (q *RequestQueue) findByClientID(owner *OpenOrders, clientOrderID uint64) *order {
	for _, o := range q.reqs {
		if o.owner == owner && o.clientOrderID == clientOrderID {
			return o
		}
	}
	return nil
}

// event is one balance mutation destined for an open-orders account,
// produced by the matching crank and applied by ConsumeEvents. credit
// adds to free and total, spend removes from locked (and total), unlock
// moves locked to free. release frees the order's slot.
type event struct {
	owner *OpenOrders
	slot  uint8

	coinCredit uint64
	coinSpend  uint64
	coinUnlock uint64
	pcCredit   uint64
	pcSpend    uint64
	pcUnlock   uint64

	release bool
}

// EventQueue holds fill and out events awaiting consumption, FIFO. It
// grows without bound; only consumption drains it.
type EventQueue struct {
	key    uuid.UUID
	events []event
}

func newEventQueue() *EventQueue {
	return &EventQueue{key: uuid.New()}
}

func (q *EventQueue) Key() uuid.UUID { return q.key }

// Len returns the number of pending events.
func (q *EventQueue) Len() int { return len(q.events) }

func (q *EventQueue) push(e event) {
	q.events = append(q.events, e)
}

func (q *EventQueue) pop() (event, bool) {
	if len(q.events) == 0 {
		return event{}, false
	}
	e := q.events[0]
	q.events = q.events[1:]
	return e, true
}
