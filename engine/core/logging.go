package core

import (
	"os"
	"sync"
	"time"

	"github.com/charmbracelet/log"
	"github.com/google/uuid"
)

var once sync.Once

type logger struct {
	*log.Logger
	session uuid.UUID
}

var singleton *logger

func getLogger() *logger {
	once.Do(
		func() {
			session := uuid.New()
			l := log.NewWithOptions(os.Stderr, log.Options{
				ReportCaller:    true,
				CallerOffset:    1,
				ReportTimestamp: true,
				TimeFormat:      time.RFC3339,
				Prefix:          "Portalis " + session.String()[:8],
			})
			l.SetLevel(log.DebugLevel)
			singleton = &logger{Logger: l, session: session}
		})
	return singleton
}

// SetLogLevel parses one of debug, info, warn, error or fatal. Unknown
// values leave the current level untouched and are reported.
func SetLogLevel(level string) {
	lvl, err := log.ParseLevel(level)
	if err != nil {
		LogWarn("unknown log level `%s`, keeping %s", level, getLogger().GetLevel())
		return
	}
	getLogger().SetLevel(lvl)
}

// SessionID identifies this process run in every log line prefix.
func SessionID() uuid.UUID {
	return getLogger().session
}

func LogDebug(msg string, args ...interface{}) {
	getLogger().Debugf(msg, args...)
}

func LogInfo(msg string, args ...interface{}) {
	getLogger().Infof(msg, args...)
}

func LogWarn(msg string, args ...interface{}) {
	getLogger().Warnf(msg, args...)
}

func LogError(msg string, args ...interface{}) {
	getLogger().Errorf(msg, args...)
}

func LogFatal(msg string, args ...interface{}) {
	getLogger().Fatalf(msg, args...)
}
