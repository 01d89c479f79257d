package orders

import (
	"math/big"
	"sync"

	"github.com/ethereum/go-ethereum/common"
)

// EventType names the append-only events emitted for off-chain observers.
type EventType string

const (
	EventStatusSet     EventType = "status_set"
	EventOrderApproved EventType = "order_approved"
	EventOrderCanceled EventType = "order_canceled"
	EventOrderFilled   EventType = "order_filled"
)

// Event is implemented by all engine events.
type Event interface {
	Type() EventType
}

// StatusSetEvent records the operational flag changing.
type StatusSetEvent struct {
	Active bool `json:"active"`
}

func (StatusSetEvent) Type() EventType { return EventStatusSet }

// OrderApprovedEvent records an order entering the Approved state.
type OrderApprovedEvent struct {
	Hash        common.Hash    `json:"hash"`
	Maker       common.Address `json:"maker"`
	BaseMarket  *big.Int       `json:"baseMarket"`
	QuoteMarket *big.Int       `json:"quoteMarket"`
}

func (OrderApprovedEvent) Type() EventType { return EventOrderApproved }

// OrderCanceledEvent records an order entering the Canceled state.
type OrderCanceledEvent struct {
	Hash        common.Hash    `json:"hash"`
	Maker       common.Address `json:"maker"`
	BaseMarket  *big.Int       `json:"baseMarket"`
	QuoteMarket *big.Int       `json:"quoteMarket"`
}

func (OrderCanceledEvent) Type() EventType { return EventOrderCanceled }

// OrderFilledEvent records one accepted fill.
type OrderFilledEvent struct {
	Hash          common.Hash    `json:"hash"`
	Maker         common.Address `json:"maker"`
	FillAmount    *big.Int       `json:"fillAmount"`
	TotalFilled   *big.Int       `json:"totalFilled"`
	Price         *big.Int       `json:"price"`
	Fee           *big.Int       `json:"fee"`
	IsNegativeFee bool           `json:"isNegativeFee"`
}

func (OrderFilledEvent) Type() EventType { return EventOrderFilled }

// Feed fans engine events out to subscribers. Slow subscribers drop events
// rather than block the engine, same policy as the websocket hub broadcast.
type Feed struct {
	mu   sync.Mutex
	subs map[int]chan Event
	next int
}

func NewFeed() *Feed {
	return &Feed{subs: make(map[int]chan Event)}
}

// Subscribe registers a buffered subscriber channel. The returned func
// unsubscribes and closes the channel.
func (f *Feed) Subscribe(buffer int) (<-chan Event, func()) {
	f.mu.Lock()
	defer f.mu.Unlock()

	id := f.next
	f.next++
	ch := make(chan Event, buffer)
	f.subs[id] = ch

	cancel := func() {
		f.mu.Lock()
		defer f.mu.Unlock()
		if sub, ok := f.subs[id]; ok {
			delete(f.subs, id)
			close(sub)
		}
	}
	return ch, cancel
}

// Publish delivers an event to every subscriber that has buffer space.
func (f *Feed) Publish(ev Event) {
	f.mu.Lock()
	defer f.mu.Unlock()

	for _, ch := range f.subs {
		select {
		case ch <- ev:
		default:
			// Buffer full, skip this subscriber
		}
	}
}
