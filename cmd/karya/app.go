package main

import (
	"fmt"
	"io"
	"log"
	"os"
	"path/filepath"
	"time"

	"github.com/m-mizutani/goerr/v2"
	"github.com/rahul/karya/internal/agent"
	"github.com/rahul/karya/internal/governance"
	"github.com/rahul/karya/internal/llm"
	"github.com/rahul/karya/internal/observability"
	"github.com/rahul/karya/internal/store"
	"github.com/rahul/karya/internal/tools"
	"github.com/rahul/karya/pkg/config"
	"github.com/tmc/langchaingo/llms"
	"github.com/tmc/langchaingo/llms/openai"
)

// app holds the wired components for one process.
type app struct {
	logger  *observability.Logger
	history *store.HistoryStore
	browser *tools.BrowserTool
	events  io.Closer
	pipe    *agent.Pipe
}

func loadConfig() (*config.Config, error) {
	return config.Load(configPath)
}

func settingsFrom(cfg *config.Config) agent.Settings {
	return agent.Settings{
		ToolsEnabled:        cfg.Planner.EnableToolIntegration,
		MaxRetries:          cfg.Planner.MaxRetries,
		QualityThreshold:    cfg.Planner.QualityThreshold,
		DesignReview:        cfg.Planner.EnableDesignReview,
		TemplateEnhancement: cfg.Planner.EnableTemplateEnhancement,
		ReportLanguage:      cfg.Planner.ReportLanguage,
		ActionModel:         cfg.Planner.ActionModel,
		WriterModel:         cfg.Planner.WriterModel,
		AnalysisModel:       cfg.Planner.AnalysisModel,
		HistoryLimit:        cfg.Memory.HistoryLimit,
	}
}

func newModel(cfg *config.Config) (llms.Model, string, error) {
	pName, pCfg := cfg.GetDefaultProvider()
	if pName == "" {
		return nil, "", fmt.Errorf("no enabled provider found in config")
	}

	switch pName {
	case "openai", "openrouter":
		opts := []openai.Option{
			openai.WithToken(pCfg.APIKey),
			openai.WithModel(pCfg.Model),
		}
		if pCfg.BaseURL != "" {
			opts = append(opts, openai.WithBaseURL(pCfg.BaseURL))
		}
		model, err := openai.New(opts...)
		if err != nil {
			return nil, "", goerr.Wrap(err, "failed to create provider", goerr.V("provider", pName))
		}
		return model, pCfg.Model, nil
	default:
		return nil, "", fmt.Errorf("provider %s not yet implemented", pName)
	}
}

func newRegistry(cfg *config.Config) (*tools.Registry, *tools.BrowserTool) {
	registry := tools.NewRegistry()

	searchTool, err := tools.NewSearchTool(5)
	if err != nil {
		log.Printf("Warning: Failed to initialize search tool: %v", err)
	} else {
		registry.Register(searchTool)
	}

	registry.Register(tools.NewScraperTool(30 * time.Second))

	browserTool := tools.NewBrowserTool(45 * time.Second)
	registry.Register(browserTool)

	if cfg.App.Workspace != "" {
		fsTool, err := tools.NewFilesystemTool(cfg.App.Workspace)
		if err != nil {
			log.Printf("Warning: Failed to initialize filesystem tool: %v", err)
		} else {
			registry.Register(fsTool)
		}
	}
	return registry, browserTool
}

func newPolicy(cfg *config.Config) (*governance.DefaultPolicyEngine, error) {
	gov := governance.NewDefaultPolicyEngine()
	for _, name := range cfg.Governance.DeniedTools {
		gov.DenyTool(name)
	}
	for _, pattern := range cfg.Governance.DeniedArguments {
		if err := gov.DenyArguments(pattern); err != nil {
			return nil, goerr.Wrap(err, "invalid denied argument pattern", goerr.V("pattern", pattern))
		}
	}
	return gov, nil
}

func newDecider(cfg *config.Config) agent.Decider {
	switch cfg.Planner.OnFailure {
	case "approve":
		return agent.StaticDecider{Decision: agent.DecisionApprove}
	case "ask":
		return agent.NewTerminalDecider(agent.DecisionAbort)
	default:
		return agent.StaticDecider{Decision: agent.DecisionAbort}
	}
}

// newApp wires the engine from the configuration. console receives status
// lines; nil keeps them in the structured log only.
func newApp(cfg *config.Config, console io.Writer) (*app, error) {
	if !cfg.Logging.Console {
		console = nil
	}
	events, err := openEventLog(cfg.Logging.EventLogPath)
	if err != nil {
		return nil, err
	}
	logger := observability.NewLogger(observability.Options{
		Out:        events,
		Console:    console,
		LLMLogPath: cfg.Logging.LLMLogPath,
		MaxSizeMB:  cfg.Logging.MaxSizeMB,
	})

	model, defaultModel, err := newModel(cfg)
	if err != nil {
		events.Close()
		return nil, err
	}

	history, err := store.NewHistoryStore(cfg.Memory.Path)
	if err != nil {
		events.Close()
		return nil, err
	}

	gov, err := newPolicy(cfg)
	if err != nil {
		history.Close()
		events.Close()
		return nil, err
	}

	registry, browser := newRegistry(cfg)
	backend := llm.NewLangchainBackend(model, defaultModel, registry, gov, logger)
	backend.MaxToolSteps = cfg.Planner.MaxToolSteps
	backend.JSONMode = cfg.Planner.JSONMode

	settings := settingsFrom(cfg)
	prompts := agent.NewPromptManager(cfg.Planner.PromptsDir)

	planner := agent.NewPlanner(backend, prompts, registry, history, settings, cfg.ModelAliases())
	executor := agent.NewExecutor(
		agent.NewReflector(backend, prompts, settings),
		agent.NewSynthesizer(backend, prompts, settings),
		newDecider(cfg),
		settings,
	)

	return &app{
		logger:  logger,
		history: history,
		browser: browser,
		events:  events,
		pipe:    agent.NewPipe(planner, executor, history, history, logger, settings),
	}, nil
}

func (a *app) Close() {
	if a.browser != nil {
		a.browser.Close()
	}
	if err := a.history.Close(); err != nil {
		log.Printf("Warning: failed to close store: %v", err)
	}
	a.events.Close()
}

// openEventLog appends structured events to path. An empty path discards them.
func openEventLog(path string) (io.WriteCloser, error) {
	if path == "" {
		return nopCloser{io.Discard}, nil
	}
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return nil, fmt.Errorf("failed to create log directory: %w", err)
	}
	f, err := os.OpenFile(path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0644)
	if err != nil {
		return nil, fmt.Errorf("failed to open event log: %w", err)
	}
	return f, nil
}

type nopCloser struct{ io.Writer }

func (nopCloser) Close() error { return nil }

func consoleWriter() io.Writer {
	if observability.IsTerminal() {
		return observability.NewTermWriter()
	}
	return os.Stderr
}
