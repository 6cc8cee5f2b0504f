package content

import (
	"github.com/dgraph-io/badger/v2"
	"github.com/rs/zerolog"
)

// badgerLogger routes badger's log output through zerolog.
type badgerLogger struct {
	log zerolog.Logger
}

var _ badger.Logger = (*badgerLogger)(nil)

func newBadgerLogger(log zerolog.Logger) *badgerLogger {
	return &badgerLogger{
		log: log.With().Str("component", "badger").Logger(),
	}
}

func (l *badgerLogger) Errorf(msg string, args ...interface{}) {
	l.log.Error().Msgf(msg, args...)
}

func (l *badgerLogger) Warningf(msg string, args ...interface{}) {
	l.log.Warn().Msgf(msg, args...)
}

func (l *badgerLogger) Infof(msg string, args ...interface{}) {
	l.log.Debug().Msgf(msg, args...)
}

func (l *badgerLogger) Debugf(msg string, args ...interface{}) {
	l.log.Trace().Msgf(msg, args...)
}
