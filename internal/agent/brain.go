package agent

import (
	"context"
	"errors"

	"github.com/rahul/karya/internal/observability"
	"github.com/rahul/karya/internal/store"
	"github.com/tmc/langchaingo/llms"
)

// Brain defines the core intelligence interface for the agent.
type Brain interface {
	Think(ctx context.Context, chatID string, input string) (string, error)
}

// ErrAborted is returned when a failing action was not approved and the run stopped.
var ErrAborted = errors.New("plan run aborted")

// Reporter receives progress notifications. It never influences control flow.
type Reporter interface {
	Status(level observability.Level, message string, sticky bool)
}

// HistoryStore is the chat memory the planner reads and Pipe appends to.
type HistoryStore interface {
	AddMessage(chatID string, role string, content string) error
	GetHistory(chatID string, limit int) ([]llms.MessageContent, error)
}

// RunArchive keeps finished runs.
type RunArchive interface {
	SaveRun(r store.Run) error
}

// Settings are the engine toggles. Each component receives them at construction.
type Settings struct {
	ToolsEnabled        bool
	MaxRetries          int
	QualityThreshold    float64
	DesignReview        bool
	TemplateEnhancement bool
	// ReportLanguage is auto, en or fr.
	ReportLanguage string
	ActionModel    string
	WriterModel    string
	AnalysisModel  string
	HistoryLimit   int
}

// DefaultSettings mirrors the configuration defaults.
func DefaultSettings() Settings {
	return Settings{
		ToolsEnabled:     true,
		MaxRetries:       2,
		QualityThreshold: 0.7,
		DesignReview:     true,
		ReportLanguage:   "auto",
		HistoryLimit:     5,
	}
}

func (s Settings) reviewModel() string {
	if s.AnalysisModel != "" {
		return s.AnalysisModel
	}
	return s.WriterModel
}

type nopReporter struct{}

func (nopReporter) Status(observability.Level, string, bool) {}

func reporterOrNop(r Reporter) Reporter {
	if r == nil {
		return nopReporter{}
	}
	return r
}
