package logging

import (
	"fmt"
	"strings"
)

// LogLevel represents the severity of a log message
type LogLevel string

const (
	// LogLevelDebug is for debug messages
	LogLevelDebug LogLevel = "debug"
	// LogLevelInfo is for informational messages
	LogLevelInfo LogLevel = "info"
	// LogLevelWarn is for warning messages
	LogLevelWarn LogLevel = "warn"
	// LogLevelError is for error messages
	LogLevelError LogLevel = "error"
)

var (
	// App is the global application logger
	App *AppLogger
	// Audit is the global audit logger for access decisions
	Audit AuditLogger
)

func init() {
	// Default loggers write to stdout (app) and discard (audit) until
	// Initialize is called with real paths.
	var err error

	App, err = NewAppLogger("", LogLevelInfo)
	if err != nil {
		panic(fmt.Sprintf("failed to initialize default app logger: %v", err))
	}

	Audit, err = NewAuditLogger("")
	if err != nil {
		panic(fmt.Sprintf("failed to initialize default audit logger: %v", err))
	}
}

// Initialize sets up the global loggers
func Initialize(auditLogPath, appLogPath string, level LogLevel) error {
	if level == "" {
		level = LogLevelInfo
	}

	newAudit, err := NewAuditLogger(auditLogPath)
	if err != nil {
		return fmt.Errorf("failed to initialize audit logger: %w", err)
	}

	newApp, err := NewAppLogger(appLogPath, level)
	if err != nil {
		return fmt.Errorf("failed to initialize app logger: %w", err)
	}

	Audit = newAudit
	App = newApp

	return nil
}

// formatValue formats a value for logfmt, quoting if necessary
func formatValue(v interface{}) string {
	s := fmt.Sprintf("%v", v)
	// Collapse newlines and tabs so one entry stays on one line
	s = strings.Join(strings.Fields(s), " ")
	if strings.ContainsAny(s, " =\"") {
		s = strings.ReplaceAll(s, "\"", "\\\"")
		return fmt.Sprintf("\"%s\"", s)
	}
	if s == "" {
		return "\"\""
	}
	return s
}
