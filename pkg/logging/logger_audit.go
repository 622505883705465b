package logging

import (
	"fmt"
	"io"
	"log"
	"os"
	"strings"
	"time"
)

// AuditLogger records access decisions and exposed operations in logfmt.
type AuditLogger interface {
	// LogDecision logs the outcome of an access check for one resource.
	LogDecision(operation string, user string, resourceID string, granted bool, details ...interface{})
	// LogOperation logs an exposed operation with its final status.
	LogOperation(operation string, user string, status string, details ...interface{})
}

type auditLogger struct {
	logger *log.Logger
}

// NewAuditLogger creates a new audit logger. An empty logPath discards all
// entries.
func NewAuditLogger(logPath string) (AuditLogger, error) {
	var writer io.Writer

	if logPath == "" {
		writer = io.Discard
	} else {
		f, err := os.OpenFile(logPath, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0644)
		if err != nil {
			return nil, fmt.Errorf("opening audit log file: %w", err)
		}
		writer = f
	}

	return &auditLogger{
		logger: log.New(writer, "", 0),
	}, nil
}

func (l *auditLogger) LogDecision(operation string, user string, resourceID string, granted bool, details ...interface{}) {
	status := "granted"
	if !granted {
		status = "denied"
	}

	var parts []string
	parts = append(parts, fmt.Sprintf("op=%s", formatValue(operation)))
	if user == "" {
		parts = append(parts, "user=anonymous")
	} else {
		parts = append(parts, fmt.Sprintf("user=%s", formatValue(user)))
	}
	if resourceID != "" {
		parts = append(parts, fmt.Sprintf("resource=%s", formatValue(resourceID)))
	}
	parts = append(parts, fmt.Sprintf("decision=%s", status))
	l.write(parts, details)
}

func (l *auditLogger) LogOperation(operation string, user string, status string, details ...interface{}) {
	var parts []string
	parts = append(parts, fmt.Sprintf("op=%s", formatValue(operation)))
	if user != "" {
		parts = append(parts, fmt.Sprintf("user=%s", formatValue(user)))
	}
	parts = append(parts, fmt.Sprintf("status=%s", formatValue(status)))
	l.write(parts, details)
}

func (l *auditLogger) write(parts []string, details []interface{}) {
	for i := 0; i+1 < len(details); i += 2 {
		parts = append(parts, fmt.Sprintf("%v=%s", details[i], formatValue(details[i+1])))
	}

	timestamp := time.Now().UTC().Format("2006-01-02 15:04:05 -0700")
	l.logger.Printf("%s %s", timestamp, strings.Join(parts, " "))
}
