package agent

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"

	"github.com/m-mizutani/goerr/v2"
	"github.com/rahul/karya/internal/markdown"
	"github.com/rahul/karya/internal/observability"
	"github.com/rahul/karya/internal/plan"
	"github.com/rahul/karya/internal/store"
)

// Pipe runs goals end to end: plan, repair, validate, execute, archive.
// Each run owns its plan; a Pipe can serve runs concurrently.
type Pipe struct {
	Planner  *Planner
	Executor *Executor
	History  HistoryStore
	Archive  RunArchive
	Logger   *observability.Logger
	Settings Settings
}

func NewPipe(planner *Planner, executor *Executor, history HistoryStore, archive RunArchive, logger *observability.Logger, settings Settings) *Pipe {
	if logger == nil {
		logger = observability.Discard()
	}
	return &Pipe{
		Planner:  planner,
		Executor: executor,
		History:  history,
		Archive:  archive,
		Logger:   logger,
		Settings: settings,
	}
}

// Think plans the goal in input, runs it and returns the rendered deliverable.
func (pp *Pipe) Think(ctx context.Context, chatID string, input string) (string, error) {
	p, err := pp.Planner.Plan(ctx, chatID, input)
	if err != nil {
		return "", err
	}

	p, err = pp.Run(ctx, chatID, p)
	if err != nil {
		return "", err
	}

	deliverable := Deliverable(p, pp.Settings)
	if pp.History != nil {
		if err := pp.History.AddMessage(chatID, "human", input); err != nil {
			log.Printf("Warning: failed to save message: %v", err)
		}
		if err := pp.History.AddMessage(chatID, "ai", deliverable); err != nil {
			log.Printf("Warning: failed to save message: %v", err)
		}
	}
	return deliverable, nil
}

// Run repairs, validates and executes p, then archives the run whatever the outcome.
func (pp *Pipe) Run(ctx context.Context, chatID string, p *plan.Plan) (*plan.Plan, error) {
	logger := pp.Logger.WithTask(chatID, p.ID)

	for _, w := range plan.Repair(p, pp.Settings.WriterModel) {
		logger.Status(observability.LevelWarning, w.Message, false)
	}
	if pp.Settings.TemplateEnhancement && pp.Planner != nil {
		if pp.Planner.EnhanceTemplate(ctx, p, logger) {
			for _, w := range plan.Repair(p, pp.Settings.WriterModel) {
				logger.Status(observability.LevelWarning, w.Message, false)
			}
		}
	}

	if err := plan.Validate(p); err != nil {
		logger.Status(observability.LevelError, fmt.Sprintf("Plan rejected: %v", err), false)
		pp.archive(chatID, p, err)
		return p, err
	}
	logger.LogPlan(p.Goal, p.IDs())

	err := pp.Executor.Execute(ctx, p, logger)
	for i, a := range p.Actions {
		logger.LogStep(i+1, a.ID, string(a.Status))
		if r, ok := p.Metadata.ActionQuality[a.ID]; ok {
			logger.LogQuality(a.ID, a.Attempts, r.QualityScore, r.IsSuccessful, r.Issues)
		}
	}
	fs := p.Metadata.FinalSynthesis
	switch {
	case fs.RolledBack:
		logger.LogReview("rolled_back", fs.ReviewError)
	case fs.Review != nil:
		logger.LogReview("appended", fmt.Sprintf("%d step(s) reviewed", len(fs.Review.Steps)))
	}

	pp.archive(chatID, p, err)
	if err != nil {
		return p, err
	}
	return p, nil
}

func (pp *Pipe) archive(chatID string, p *plan.Plan, runErr error) {
	if pp.Archive == nil {
		return
	}
	data, err := json.Marshal(p)
	if err != nil {
		log.Printf("Warning: failed to encode plan %s: %v", p.ID, err)
		return
	}

	run := store.Run{
		ID:     p.ID,
		ChatID: chatID,
		Goal:   p.Goal,
		Status: store.RunCompleted,
		Plan:   string(data),
	}
	switch {
	case errors.Is(runErr, ErrAborted):
		run.Status = store.RunAborted
	case runErr != nil:
		run.Status = store.RunFailed
	default:
		run.Deliverable = Deliverable(p, pp.Settings)
	}
	if runErr != nil {
		run.Error = runErr.Error()
	}
	if err := pp.Archive.SaveRun(run); err != nil {
		log.Printf("Warning: %v", goerr.Wrap(err, "failed to archive run", goerr.V("plan_id", p.ID)))
	}
}

// Deliverable renders the terminal action's output for display.
func Deliverable(p *plan.Plan, settings Settings) string {
	t := p.Terminal()
	if t == nil || t.Output == nil {
		return ""
	}
	cat := CatalogFor(settings.ReportLanguage, p.Goal)
	return markdown.Render(*t.Output, cat.DetailsLabel)
}
