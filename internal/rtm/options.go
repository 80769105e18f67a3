package rtm

import (
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/danmuck/rtmctl/internal/protocol"
	"github.com/danmuck/rtmctl/internal/protocol/messages"
	"github.com/danmuck/rtmctl/internal/protocol/registry"
	"github.com/danmuck/rtmctl/internal/protocol/session"
)

// Recorder receives traffic measurements. observability.Metrics implements it.
type Recorder interface {
	MessageSent(bytes int)
	MessageReceived(key protocol.RouteKey, bytes int)
	DrainFinished(elapsed time.Duration, messages int)
}

type nopRecorder struct{}

func (nopRecorder) MessageSent(int)                        {}
func (nopRecorder) MessageReceived(protocol.RouteKey, int) {}
func (nopRecorder) DrainFinished(time.Duration, int)       {}

type options struct {
	cfg         session.Config
	reg         *registry.Registry
	observers   session.Observers
	recorder    Recorder
	handlers    []HandlerSpec
	onConnected func(*Socket)
	logger      zerolog.Logger
}

func defaultOptions() options {
	return options{
		cfg:      session.DefaultConfig(),
		reg:      messages.Registry(),
		recorder: nopRecorder{},
		logger:   log.Logger,
	}
}

type Option func(*options)

func WithConfig(cfg session.Config) Option {
	return func(o *options) {
		o.cfg = cfg
	}
}

// WithRegistry replaces the default message registry.
func WithRegistry(reg *registry.Registry) Option {
	return func(o *options) {
		if reg != nil {
			o.reg = reg
		}
	}
}

// WithObserver adds an observer of socket conditions. May be repeated.
func WithObserver(obs session.Observer) Option {
	return func(o *options) {
		if obs != nil {
			o.observers = append(o.observers, obs)
		}
	}
}

func WithRecorder(r Recorder) Option {
	return func(o *options) {
		if r != nil {
			o.recorder = r
		}
	}
}

// WithHandlers binds handlers before the reader starts, so no message
// arriving right after connect is missed.
func WithHandlers(specs ...HandlerSpec) Option {
	return func(o *options) {
		o.handlers = append(o.handlers, specs...)
	}
}

// WithOnConnected runs fn once the socket is open.
func WithOnConnected(fn func(*Socket)) Option {
	return func(o *options) {
		o.onConnected = fn
	}
}

func WithLogger(logger zerolog.Logger) Option {
	return func(o *options) {
		o.logger = logger
	}
}
