package contracts

import "time"

// LogLevel represents the severity level for logging.
type LogLevel int

const (
	// InfoLevel reports link lifecycle and other progress messages.
	InfoLevel LogLevel = iota
	// DebugLevel reports per-byte decisions such as discarded orphan data bytes.
	DebugLevel
	// ErrorLevel reports failures the caller should look at.
	ErrorLevel
	// WarnLevel reports degraded operation, e.g. inbound bytes dropped on a full buffer.
	WarnLevel
	// FatalLevel logs and terminates the process.
	FatalLevel
)

// LogDestination specifies where log messages are written.
type LogDestination string

const (
	// ConsoleLog writes log messages to stderr.
	ConsoleLog LogDestination = "console"
	// FileLog writes log messages to a file.
	FileLog LogDestination = "file"
)

// Field builds a typed key/value pair attached to a log message.
type Field interface {
	Bool(key string, val bool) Field
	Int(key string, val int) Field
	Float64(key string, val float64) Field
	String(key string, val string) Field
	Time(key string, val time.Time) Field
	Duration(key string, val time.Duration) Field
	Int64(key string, val int64) Field
	Error(key string, val error) Field
	Uint64(key string, val uint64) Field
	Uint8(key string, val uint8) Field
}

// Logger records messages at different levels.
type Logger interface {
	Info(msg string, fields ...Field)
	Error(msg string, fields ...Field)
	Debug(msg string, fields ...Field)
	Warn(msg string, fields ...Field)
	Fatal(msg string, fields ...Field)

	Field() Field

	SetLevel(level LogLevel)
	SetDestination(dest LogDestination, filePath ...string)
	Sync() error
}
