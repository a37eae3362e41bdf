package report

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"
)

// EventType represents the type of event
type EventType string

const (
	EventScan  EventType = "scan"
	EventParse EventType = "parse"
	EventApply EventType = "apply"
	EventSkip  EventType = "skip"
	EventEdit  EventType = "edit"
	EventClear EventType = "clear"
	EventError EventType = "error"
)

// EventLevel represents the severity level
type EventLevel string

const (
	LevelDebug   EventLevel = "debug"
	LevelInfo    EventLevel = "info"
	LevelWarning EventLevel = "warning"
	LevelError   EventLevel = "error"
)

var levelPriority = map[EventLevel]int{
	LevelDebug:   0,
	LevelInfo:    1,
	LevelWarning: 2,
	LevelError:   3,
}

// ParseLevel maps a level name to an EventLevel, defaulting to info
func ParseLevel(name string) EventLevel {
	level := EventLevel(name)
	if _, ok := levelPriority[level]; ok {
		return level
	}
	return LevelInfo
}

// Event is a single line of the audit log
type Event struct {
	Timestamp time.Time         `json:"ts"`
	Level     EventLevel        `json:"level"`
	Event     EventType         `json:"event"`
	RunID     string            `json:"run_id,omitempty"`
	Path      string            `json:"path,omitempty"`
	Rule      string            `json:"rule,omitempty"`
	Field     string            `json:"field,omitempty"`
	Before    string            `json:"before,omitempty"`
	After     string            `json:"after,omitempty"`
	Reason    string            `json:"reason,omitempty"`
	DryRun    bool              `json:"dry_run,omitempty"`
	Error     string            `json:"error,omitempty"`
	Extra     map[string]string `json:"extra,omitempty"`
}

// EventLogger writes events to a JSONL file
type EventLogger struct {
	file     *os.File
	encoder  *json.Encoder
	mu       sync.Mutex
	path     string
	minLevel EventLevel
}

// NewEventLogger creates a new event logger with a minimum log level
func NewEventLogger(outputDir string, minLevel EventLevel) (*EventLogger, error) {
	if err := os.MkdirAll(outputDir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create output directory: %w", err)
	}

	timestamp := time.Now().Format("20060102-150405")
	path := filepath.Join(outputDir, fmt.Sprintf("events-%s.jsonl", timestamp))

	// Append so two commands in the same second share a file
	file, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0644)
	if err != nil {
		return nil, fmt.Errorf("failed to create event log: %w", err)
	}

	return &EventLogger{
		file:     file,
		encoder:  json.NewEncoder(file),
		path:     path,
		minLevel: minLevel,
	}, nil
}

// Log writes an event to the JSONL file
func (l *EventLogger) Log(event *Event) error {
	if l == nil || l.file == nil {
		return nil
	}

	if levelPriority[event.Level] < levelPriority[l.minLevel] {
		return nil
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	if event.Timestamp.IsZero() {
		event.Timestamp = time.Now()
	}

	if err := l.encoder.Encode(event); err != nil {
		return fmt.Errorf("failed to encode event: %w", err)
	}

	return nil
}

// LogScan logs a cataloged file
func (l *EventLogger) LogScan(path string, sizeBytes int64, cached bool) error {
	level := LevelInfo
	if cached {
		level = LevelDebug
	}
	return l.Log(&Event{
		Level: level,
		Event: EventScan,
		Path:  path,
		Extra: map[string]string{
			"size_bytes": fmt.Sprintf("%d", sizeBytes),
			"cached":     fmt.Sprintf("%t", cached),
		},
	})
}

// LogParse logs which rule matched a filename
func (l *EventLogger) LogParse(path, rule, track, title, artist string) error {
	return l.Log(&Event{
		Level: LevelDebug,
		Event: EventParse,
		Path:  path,
		Rule:  rule,
		Extra: map[string]string{
			"track":  track,
			"title":  title,
			"artist": artist,
		},
	})
}

// LogApply logs tags derived from a filename being written
func (l *EventLogger) LogApply(runID, path, rule string, dryRun bool, err error) error {
	level := LevelInfo
	errMsg := ""
	if err != nil {
		level = LevelError
		errMsg = err.Error()
	}

	return l.Log(&Event{
		Level:  level,
		Event:  EventApply,
		RunID:  runID,
		Path:   path,
		Rule:   rule,
		DryRun: dryRun,
		Error:  errMsg,
	})
}

// LogSkip logs a file left untouched
func (l *EventLogger) LogSkip(runID, path, reason string) error {
	return l.Log(&Event{
		Level:  LevelWarning,
		Event:  EventSkip,
		RunID:  runID,
		Path:   path,
		Reason: reason,
	})
}

// LogEdit logs a single-field change
func (l *EventLogger) LogEdit(path, field, before, after string, err error) error {
	level := LevelInfo
	errMsg := ""
	if err != nil {
		level = LevelError
		errMsg = err.Error()
	}

	return l.Log(&Event{
		Level:  level,
		Event:  EventEdit,
		Path:   path,
		Field:  field,
		Before: before,
		After:  after,
		Error:  errMsg,
	})
}

// LogClear logs all tags being removed from a file
func (l *EventLogger) LogClear(runID, path string, dryRun bool, err error) error {
	level := LevelInfo
	errMsg := ""
	if err != nil {
		level = LevelError
		errMsg = err.Error()
	}

	return l.Log(&Event{
		Level:  level,
		Event:  EventClear,
		RunID:  runID,
		Path:   path,
		DryRun: dryRun,
		Error:  errMsg,
	})
}

// LogError logs an error event
func (l *EventLogger) LogError(event EventType, path string, err error) error {
	return l.Log(&Event{
		Level: LevelError,
		Event: event,
		Path:  path,
		Error: err.Error(),
	})
}

// Close closes the event log file
func (l *EventLogger) Close() error {
	if l == nil || l.file == nil {
		return nil
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	return l.file.Close()
}

// Path returns the path to the event log file
func (l *EventLogger) Path() string {
	if l == nil {
		return ""
	}
	return l.path
}

// NullLogger returns a no-op event logger
func NullLogger() *EventLogger {
	return nil
}
