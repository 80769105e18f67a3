package session

import (
	evbus "github.com/asaskevich/EventBus"

	"github.com/danmuck/rtmctl/internal/protocol"
)

// Kind names an observable socket condition.
type Kind string

const (
	KindSendError    Kind = "send_error"
	KindReceiveError Kind = "receive_error"
	KindDecodeError  Kind = "decode_error"
	KindHandlerError Kind = "handler_error"
	KindNoRoute      Kind = "no_route"
	KindClosed       Kind = "closed"
)

// Kinds lists every condition kind.
func Kinds() []Kind {
	return []Kind{KindSendError, KindReceiveError, KindDecodeError, KindHandlerError, KindNoRoute, KindClosed}
}

// Topic is the event bus topic a BusObserver publishes kind on.
func (k Kind) Topic() string {
	return "rtm:" + string(k)
}

// Condition is one reported socket event.
// Key and Raw are set when the condition concerns a specific message.
type Condition struct {
	Kind    Kind
	Session string
	Err     error
	Key     protocol.RouteKey
	Raw     []byte
}

type Observer interface {
	Observe(c Condition)
}

type ObserverFunc func(c Condition)

func (f ObserverFunc) Observe(c Condition) {
	f(c)
}

// Observers fans a condition out to each non-nil observer in order.
type Observers []Observer

func (o Observers) Observe(c Condition) {
	for _, obs := range o {
		if obs != nil {
			obs.Observe(c)
		}
	}
}

// BusObserver publishes conditions on an event bus, one topic per Kind.
// Subscribers receive the Condition as their only argument.
type BusObserver struct {
	bus evbus.Bus
}

func NewBusObserver(bus evbus.Bus) *BusObserver {
	if bus == nil {
		bus = evbus.New()
	}
	return &BusObserver{bus: bus}
}

func (b *BusObserver) Bus() evbus.Bus {
	return b.bus
}

func (b *BusObserver) Observe(c Condition) {
	b.bus.Publish(c.Kind.Topic(), c)
}

// Subscribe registers fn for kind on the observer's bus.
func (b *BusObserver) Subscribe(kind Kind, fn func(Condition)) error {
	return b.bus.Subscribe(kind.Topic(), fn)
}
