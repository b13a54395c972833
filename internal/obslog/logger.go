package obslog

import "sync"

// Log levels used across the application.
const (
	DebugLevel = "debug"
	InfoLevel  = "info"
	WarnLevel  = "warn"
	ErrorLevel = "error"
)

var (
	globalLogger *Logger
	once         sync.Once
)

// Get returns a singleton logger configured with the provided level. The
// first call initializes the logger; subsequent calls ignore the level and
// return the already-initialized instance.
func Get(level string) *Logger {
	once.Do(func() {
		globalLogger = newZapLogger(level)
	})
	return globalLogger
}

// ForZone returns a child logger tagging every entry with the given zone
// name ("upper"/"lower"), so fault and tuning log lines from both
// ZoneControllers can be told apart without threading a prefix through
// every call site.
func (l *Logger) ForZone(zone string) *Logger {
	return &Logger{SugaredLogger: l.With("zone", zone)}
}
