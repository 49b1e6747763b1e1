package observability

import (
	"encoding/json"
	"fmt"
	"io"
	"log"
	"os"
	"path/filepath"
	"sync"
	"time"
)

// EventType defines the category of the log event.
type EventType string

const (
	EventTypeStatus    EventType = "status"
	EventTypePlan      EventType = "plan"
	EventTypeStep      EventType = "step"
	EventTypeQuality   EventType = "quality"
	EventTypeReview    EventType = "review"
	EventTypeToolCall  EventType = "tool_call"
	EventTypeHeartbeat EventType = "heartbeat"
	EventTypeLLM       EventType = "llm"
)

// Level is the severity of a status notification.
type Level string

const (
	LevelInfo    Level = "info"
	LevelSuccess Level = "success"
	LevelWarning Level = "warning"
	LevelError   Level = "error"
)

// Event represents a structured log entry.
type Event struct {
	Type      EventType `json:"type"`
	ChatID    string    `json:"chat_id,omitempty"`
	TaskID    string    `json:"task_id,omitempty"`
	Data      any       `json:"data"`
	Timestamp time.Time `json:"timestamp"`
}

type sink struct {
	mu         sync.Mutex
	out        io.Writer
	console    io.Writer
	llmLogPath string
	maxSize    int64
}

// Logger writes structured events and serves as the run's progress channel.
// Child loggers from WithTask share the underlying writers.
type Logger struct {
	sink   *sink
	chatID string
	taskID string
}

// Options configures a Logger. Zero values fall back to stdout and logs/llm.jsonl.
type Options struct {
	Out        io.Writer
	Console    io.Writer
	LLMLogPath string
	MaxSizeMB  int
}

func NewLogger(opts Options) *Logger {
	if opts.Out == nil {
		opts.Out = os.Stdout
	}
	if opts.LLMLogPath == "" {
		opts.LLMLogPath = filepath.Join("logs", "llm.jsonl")
	}
	if opts.MaxSizeMB <= 0 {
		opts.MaxSizeMB = 10
	}
	return &Logger{sink: &sink{
		out:        opts.Out,
		console:    opts.Console,
		llmLogPath: opts.LLMLogPath,
		maxSize:    int64(opts.MaxSizeMB) * 1024 * 1024,
	}}
}

// Discard returns a logger that drops everything. Useful in tests.
func Discard() *Logger {
	return NewLogger(Options{Out: io.Discard, LLMLogPath: os.DevNull})
}

// WithTask returns a child logger tagging events with a chat and task id.
func (l *Logger) WithTask(chatID, taskID string) *Logger {
	return &Logger{sink: l.sink, chatID: chatID, taskID: taskID}
}

// Log emits a structured JSON event.
func (l *Logger) Log(evt Event) {
	if evt.Timestamp.IsZero() {
		evt.Timestamp = time.Now()
	}
	if evt.ChatID == "" {
		evt.ChatID = l.chatID
	}
	if evt.TaskID == "" {
		evt.TaskID = l.taskID
	}
	data, err := json.Marshal(evt)
	if err != nil {
		data = []byte(fmt.Sprintf(`{"error": "failed to marshal event: %v"}`, err))
	}

	l.sink.mu.Lock()
	defer l.sink.mu.Unlock()
	fmt.Fprintln(l.sink.out, string(data))

	if evt.Type == EventTypeLLM {
		l.sink.writeToFile(data)
	}
}

func (s *sink) writeToFile(data []byte) {
	if s.llmLogPath == os.DevNull {
		return
	}
	if err := os.MkdirAll(filepath.Dir(s.llmLogPath), 0755); err != nil {
		log.Printf("failed to create log directory: %v", err)
		return
	}

	info, err := os.Stat(s.llmLogPath)
	if err == nil && info.Size() > s.maxSize {
		s.rotate()
	}

	f, err := os.OpenFile(s.llmLogPath, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0644)
	if err != nil {
		log.Printf("failed to open log file: %v", err)
		return
	}
	defer f.Close()

	if _, err := f.Write(append(data, '\n')); err != nil {
		log.Printf("failed to write to log file: %v", err)
	}
}

// rotate keeps a single .old generation.
func (s *sink) rotate() {
	oldPath := s.llmLogPath + ".old"
	_ = os.Remove(oldPath)
	_ = os.Rename(s.llmLogPath, oldPath)
}

// Status is a progress notification. Sticky messages also become the active
// task shown by the live status line.
func (l *Logger) Status(level Level, message string, sticky bool) {
	l.Log(Event{
		Type: EventTypeStatus,
		Data: map[string]any{
			"level":   level,
			"message": message,
			"sticky":  sticky,
		},
	})
	if sticky {
		SetStatus(CurrentPhase(), message)
	}
	if l.sink.console != nil {
		l.sink.mu.Lock()
		fmt.Fprintln(l.sink.console, FormatStatus(level, message))
		l.sink.mu.Unlock()
	}
}

func (l *Logger) LogPlan(goal string, actionIDs []string) {
	l.Log(Event{
		Type: EventTypePlan,
		Data: map[string]any{"goal": goal, "actions": actionIDs},
	})
}

func (l *Logger) LogStep(step int, actionID, status string) {
	l.Log(Event{
		Type: EventTypeStep,
		Data: map[string]any{"step": step, "action_id": actionID, "status": status},
	})
}

func (l *Logger) LogQuality(actionID string, attempt int, score float64, accepted bool, issues []string) {
	l.Log(Event{
		Type: EventTypeQuality,
		Data: map[string]any{
			"action_id":     actionID,
			"attempt":       attempt,
			"quality_score": score,
			"accepted":      accepted,
			"issues":        issues,
		},
	})
}

func (l *Logger) LogReview(outcome string, detail string) {
	l.Log(Event{
		Type: EventTypeReview,
		Data: map[string]string{"outcome": outcome, "detail": detail},
	})
}

func (l *Logger) LogToolCall(actionID, tool, args, verdict string) {
	l.Log(Event{
		Type: EventTypeToolCall,
		Data: map[string]string{
			"action_id": actionID,
			"tool":      tool,
			"args":      args,
			"verdict":   verdict,
		},
	})
}

func (l *Logger) LogHeartbeat() {
	l.Log(Event{
		Type: EventTypeHeartbeat,
		Data: map[string]string{"status": "alive"},
	})
}

func (l *Logger) LogLLM(model string, prompt any, response string, toolCalls any) {
	l.Log(Event{
		Type: EventTypeLLM,
		Data: map[string]any{
			"model":      model,
			"prompt":     prompt,
			"response":   response,
			"tool_calls": toolCalls,
		},
	})
}
