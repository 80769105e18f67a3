package observability

import (
	"github.com/rs/zerolog"

	"github.com/danmuck/rtmctl/internal/protocol/session"
)

// LogObserver writes socket conditions to logger.
type LogObserver struct {
	logger zerolog.Logger
}

func NewLogObserver(logger zerolog.Logger) *LogObserver {
	return &LogObserver{logger: logger}
}

func (o *LogObserver) Observe(c session.Condition) {
	var event *zerolog.Event
	switch c.Kind {
	case session.KindClosed:
		event = o.logger.Info()
	case session.KindNoRoute:
		event = o.logger.Debug()
	case session.KindDecodeError, session.KindHandlerError:
		event = o.logger.Warn()
	default:
		event = o.logger.Error()
	}
	event = event.Str("kind", string(c.Kind)).Str("session", c.Session)
	if c.Key.Type != "" {
		event = event.Str("key", c.Key.String())
	}
	if len(c.Raw) > 0 {
		event = event.Int("bytes", len(c.Raw))
	}
	event.Err(c.Err).Msg("rtm condition")
}
