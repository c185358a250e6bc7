package observability

import (
	"encoding/json"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"time"
)

// EventType defines the category of the log event.
type EventType string

const (
	EventTypeTurn    EventType = "turn"
	EventTypeDelta   EventType = "delta"
	EventTypeExtract EventType = "extract"
	EventTypeRender  EventType = "render"
	EventTypeSave    EventType = "save"
	EventTypeLLM     EventType = "llm"
	EventTypeSession EventType = "session"
)

// Event represents a structured log entry.
type Event struct {
	Type      EventType `json:"type"`
	SessionID string    `json:"session_id,omitempty"`
	Data      any       `json:"data"`
	Timestamp time.Time `json:"timestamp"`
}

// Logger handles structured logging. LLM round trips additionally go to
// a size-rotated jsonl file so prompts can be inspected after the fact.
type Logger struct {
	llmLogPath string
	maxSize    int64
}

func NewLogger() *Logger {
	return &Logger{
		llmLogPath: filepath.Join("logs", "llm.jsonl"),
		maxSize:    10 * 1024 * 1024, // 10MB
	}
}

// Log emits a structured JSON event to stdout.
func (l *Logger) Log(evt Event) {
	if evt.Timestamp.IsZero() {
		evt.Timestamp = time.Now()
	}
	data, err := json.Marshal(evt)
	if err != nil {
		fmt.Printf("{\"error\": \"failed to marshal event: %v\"}\n", err)
		return
	}
	fmt.Println(string(data))

	if evt.Type == EventTypeLLM {
		l.writeToFile(data)
	}
}

func (l *Logger) writeToFile(data []byte) {
	if err := os.MkdirAll(filepath.Dir(l.llmLogPath), 0755); err != nil {
		log.Printf("failed to create log directory: %v", err)
		return
	}

	info, err := os.Stat(l.llmLogPath)
	if err == nil && info.Size() > l.maxSize {
		l.rotateLogs()
	}

	f, err := os.OpenFile(l.llmLogPath, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0644)
	if err != nil {
		log.Printf("failed to open log file: %v", err)
		return
	}
	defer f.Close()

	if _, err := f.Write(append(data, '\n')); err != nil {
		log.Printf("failed to write to log file: %v", err)
	}
}

func (l *Logger) rotateLogs() {
	// Simple rotation: keep one .old file
	oldPath := l.llmLogPath + ".old"
	_ = os.Remove(oldPath)
	_ = os.Rename(l.llmLogPath, oldPath)
}

// Helper methods for common events

func (l *Logger) LogTurn(sessionID, utterance string) {
	l.Log(Event{
		Type:      EventTypeTurn,
		SessionID: sessionID,
		Data:      map[string]string{"utterance": utterance},
	})
}

func (l *Logger) LogDelta(sessionID, operation, outcome string) {
	l.Log(Event{
		Type:      EventTypeDelta,
		SessionID: sessionID,
		Data: map[string]string{
			"operation": operation,
			"outcome":   outcome,
		},
	})
}

func (l *Logger) LogExtractFailed(sessionID, reason string) {
	l.Log(Event{
		Type:      EventTypeExtract,
		SessionID: sessionID,
		Data:      map[string]string{"status": "failed", "reason": reason},
	})
}

func (l *Logger) LogRender(sessionID string, stepCount, bytes int) {
	l.Log(Event{
		Type:      EventTypeRender,
		SessionID: sessionID,
		Data: map[string]int{
			"steps": stepCount,
			"bytes": bytes,
		},
	})
}

func (l *Logger) LogSave(sessionID, name, path string) {
	l.Log(Event{
		Type:      EventTypeSave,
		SessionID: sessionID,
		Data: map[string]string{
			"name": name,
			"path": path,
		},
	})
}

func (l *Logger) LogSessionEvicted(sessionID string, idle time.Duration) {
	l.Log(Event{
		Type:      EventTypeSession,
		SessionID: sessionID,
		Data:      map[string]string{"status": "evicted", "idle": idle.String()},
	})
}
