package logger

import (
	"os"
	"time"

	"github.com/rs/zerolog"
)

// Logger represents a structured logger
type Logger struct {
	logger zerolog.Logger
}

// Fields represents log fields
type Fields map[string]interface{}

var (
	// Default is the default logger instance
	Default *Logger
)

// Init initializes the logger with the given configuration
func Init() {
	level := getLogLevel()

	zerolog.TimeFieldFormat = time.RFC3339
	zerolog.SetGlobalLevel(level)

	output := zerolog.ConsoleWriter{
		Out:        os.Stdout,
		TimeFormat: time.RFC3339,
	}

	logger := zerolog.New(output).With().Timestamp().Logger()

	Default = &Logger{logger: logger}

	Default.Info().
		Str("level", level.String()).
		Msg("Logger initialized")
}

// getLogLevel returns the log level from environment variable
func getLogLevel() zerolog.Level {
	levelStr := os.Getenv("LOG_LEVEL")
	if levelStr == "" {
		if os.Getenv("CRAWLWORKER_ENVIRONMENT") == "production" {
			return zerolog.InfoLevel
		}
		return zerolog.DebugLevel
	}

	level, err := zerolog.ParseLevel(levelStr)
	if err != nil {
		return zerolog.InfoLevel
	}
	return level
}

// WithFields creates a new logger with fields
func (l *Logger) WithFields(fields Fields) *Logger {
	newLogger := l.logger.With()
	for k, v := range fields {
		newLogger = newLogger.Interface(k, v)
	}
	return &Logger{logger: newLogger.Logger()}
}

// WithField creates a new logger with a single field
func (l *Logger) WithField(key string, value interface{}) *Logger {
	return &Logger{logger: l.logger.With().Interface(key, value).Logger()}
}

// WithError adds an error to the logger
func (l *Logger) WithError(err error) *Logger {
	return &Logger{logger: l.logger.With().Err(err).Logger()}
}

// Debug returns a debug event
func (l *Logger) Debug() *zerolog.Event {
	return l.logger.Debug()
}

// Info returns an info event
func (l *Logger) Info() *zerolog.Event {
	return l.logger.Info()
}

// Warn returns a warn event
func (l *Logger) Warn() *zerolog.Event {
	return l.logger.Warn()
}

// Error returns an error event
func (l *Logger) Error() *zerolog.Event {
	return l.logger.Error()
}

// Fatal returns a fatal event
func (l *Logger) Fatal() *zerolog.Event {
	return l.logger.Fatal()
}

// Debugf logs a formatted debug message on the default logger
func Debugf(format string, v ...interface{}) {
	get().Debug().Msgf(format, v...)
}

// Infof logs a formatted info message on the default logger
func Infof(format string, v ...interface{}) {
	get().Info().Msgf(format, v...)
}

// Warnf logs a formatted warning message on the default logger
func Warnf(format string, v ...interface{}) {
	get().Warn().Msgf(format, v...)
}

// Errorf logs a formatted error message on the default logger
func Errorf(format string, v ...interface{}) {
	get().Error().Msgf(format, v...)
}

func get() *Logger {
	if Default == nil {
		Init()
	}
	return Default
}

// ForComponent creates a logger scoped to a named component
func ForComponent(name string) *Logger {
	return get().WithField("component", name)
}

// ForRule creates a logger scoped to a single crawl rule
func ForRule(ruleID string) *Logger {
	return get().WithField("rule_id", ruleID)
}

// Nop returns a logger that discards everything, for tests
func Nop() *Logger {
	return &Logger{logger: zerolog.Nop()}
}
