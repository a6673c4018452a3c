package server

import "log"

// Logger interface for logging operations (Interface Segregation Principle).
type Logger interface {
	Printf(format string, v ...interface{})
}

// StdLogger wraps the standard log package to implement Logger interface.
type StdLogger struct {
	prefix string
}

// NewStdLogger returns a logger that writes through the standard log package.
func NewStdLogger() *StdLogger {
	return &StdLogger{}
}

// WithComponent returns a logger that tags every line with [component].
func (l *StdLogger) WithComponent(component string) *StdLogger {
	return &StdLogger{prefix: "[" + component + "] "}
}

func (l *StdLogger) Printf(format string, v ...interface{}) {
	log.Printf(l.prefix+format, v...)
}
