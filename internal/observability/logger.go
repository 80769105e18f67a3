package observability

import (
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/danmuck/rtmctl/internal/logging"
)

// InitLogger configures the runtime log profile once and returns a logger
// tagged with app. The global logger is replaced with the tagged one.
func InitLogger(app string) zerolog.Logger {
	logging.ConfigureRuntime()
	logger := log.Logger.With().Str("app", app).Logger()
	log.Logger = logger
	return logger
}
