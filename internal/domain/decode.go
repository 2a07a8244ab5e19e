package domain

import "encoding/binary"

// MaxDecodedActions caps the length of a decoded action log so that a
// single run stays bounded no matter how large the input stream is.
const MaxDecodedActions = 4096

// decoder is a cursor over an arbitrary byte stream. Reads past the end
// of the stream return zero bytes, so every input decodes to some log
// and the same input always decodes to the same log.
type decoder struct {
	data []byte
	pos  int
}

func (d *decoder) remaining() int {
	return len(d.data) - d.pos
}

func (d *decoder) byte() byte {
	if d.pos >= len(d.data) {
		return 0
	}
	b := d.data[d.pos]
	d.pos++
	return b
}

func (d *decoder) uint16() uint16 {
	var buf [2]byte
	buf[0] = d.byte()
	buf[1] = d.byte()
	return binary.LittleEndian.Uint16(buf[:])
}

func (d *decoder) uint64() uint64 {
	var buf [8]byte
	for i := range buf {
		buf[i] = d.byte()
	}
	return binary.LittleEndian.Uint64(buf[:])
}

// nonzero64 reads a u64 and coerces zero to one. Order prices and
// quantities must be nonzero.
func (d *decoder) nonzero64() uint64 {
	v := d.uint64()
	if v == 0 {
		return 1
	}
	return v
}

// Decode turns an arbitrary byte stream into a finite action log. The
// decoding is deterministic and total: any input yields a valid log,
// and identical inputs yield identical logs.
func Decode(data []byte) []Action {
	d := &decoder{data: data}
	var actions []Action

	for d.remaining() > 0 && len(actions) < MaxDecodedActions {
		switch d.byte() % 5 {
		case 0:
			side := SideBid
			if d.byte()%2 == 1 {
				side = SideAsk
			}
			var typ OrderType
			switch d.byte() % 3 {
			case 0:
				typ = OrderTypeLimit
			case 1:
				typ = OrderTypeIOC
			case 2:
				typ = OrderTypePostOnly
			}
			actions = append(actions, PlaceOrder(ReduceOwnerID(d.byte()), NewOrderParams{
				Side:          side,
				Type:          typ,
				LimitPrice:    d.nonzero64(),
				MaxQty:        d.nonzero64(),
				ClientOrderID: d.uint64(),
			}))
		case 1:
			owner := ReduceOwnerID(d.byte())
			slot := d.byte()
			byClientID := d.byte()%2 == 1
			actions = append(actions, CancelOrder(owner, slot, byClientID))
		case 2:
			actions = append(actions, MatchOrders(d.uint16()))
		case 3:
			actions = append(actions, ConsumeEvents(d.uint16()))
		case 4:
			actions = append(actions, SettleFunds(ReduceOwnerID(d.byte())))
		}
	}
	return actions
}
