package observability

import (
	"github.com/danmuck/imagedb/internal/logging"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

// InitLogger builds the process logger from cfg, tags it with app and
// installs it as the zerolog global.
func InitLogger(app string, cfg logging.Config) zerolog.Logger {
	_ = logging.ApplyEnv(&cfg)
	logger := logging.New(cfg).With().Str("app", app).Logger()
	zerolog.SetGlobalLevel(logging.ParseLevel(cfg.Level))
	log.Logger = logger
	return logger
}
