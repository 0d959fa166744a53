package logx

import (
	"encoding/json"
	"os"
	"sync"
	"time"
)

// Event is a single structured run event, appended as one JSONL line.
type Event struct {
	Timestamp time.Time `json:"ts"`
	Type      string    `json:"type"` // "FIT", "CHECKPOINT", "ALLOC", "BACKTEST", "ERROR"
	Severity  string    `json:"severity"`
	Message   string    `json:"message"`
}

// EventLog appends run events to a JSONL file. Safe for concurrent use.
type EventLog struct {
	mu   sync.Mutex
	path string
}

// NewEventLog creates an event log writing to path. The file is created on
// first append.
func NewEventLog(path string) *EventLog {
	return &EventLog{path: path}
}

// Append writes one event. Logging failures are swallowed; the event log
// must never take down a run.
func (l *EventLog) Append(e Event) {
	if l == nil || l.path == "" {
		return
	}
	if e.Timestamp.IsZero() {
		e.Timestamp = time.Now().UTC()
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	f, err := os.OpenFile(l.path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return
	}
	defer f.Close()

	b, err := json.Marshal(e)
	if err != nil {
		return
	}
	f.Write(append(b, '\n'))
}

// Info appends an info-severity event.
func (l *EventLog) Info(eventType, message string) {
	l.Append(Event{Type: eventType, Severity: "info", Message: message})
}

// Warn appends a warning-severity event.
func (l *EventLog) Warn(eventType, message string) {
	l.Append(Event{Type: eventType, Severity: "warning", Message: message})
}
