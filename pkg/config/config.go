package config

import (
	"errors"
	"fmt"
	"strings"

	"github.com/spf13/viper"
)

type Config struct {
	App        AppConfig                 `mapstructure:"app"`
	Gateways   map[string]GatewayConfig  `mapstructure:"gateways"`
	Providers  map[string]ProviderConfig `mapstructure:"providers"`
	Memory     MemoryConfig              `mapstructure:"memory"`
	Planner    PlannerConfig             `mapstructure:"planner"`
	Logging    LoggingConfig             `mapstructure:"logging"`
	Governance GovernanceConfig          `mapstructure:"governance"`
}

type AppConfig struct {
	Name      string `mapstructure:"name"`
	Workspace string `mapstructure:"workspace"`
}

type GatewayConfig struct {
	Token   string `mapstructure:"token"`
	Enabled bool   `mapstructure:"enabled"`
}

type ProviderConfig struct {
	APIKey  string `mapstructure:"api_key"`
	Model   string `mapstructure:"model"`
	BaseURL string `mapstructure:"base_url"`
	Enabled bool   `mapstructure:"enabled"`
}

type MemoryConfig struct {
	Type         string `mapstructure:"type"`
	Path         string `mapstructure:"path"`
	HistoryLimit int    `mapstructure:"history_limit"`
}

// PlannerConfig holds the engine toggles handed to the executor and reflector.
type PlannerConfig struct {
	ActionModel               string  `mapstructure:"action_model"`
	WriterModel               string  `mapstructure:"writer_model"`
	CoderModel                string  `mapstructure:"coder_model"`
	AnalysisModel             string  `mapstructure:"analysis_model"`
	EnableToolIntegration     bool    `mapstructure:"enable_tool_integration"`
	MaxRetries                int     `mapstructure:"max_retries"`
	QualityThreshold          float64 `mapstructure:"quality_threshold"`
	EnableDesignReview        bool    `mapstructure:"enable_design_review"`
	EnableTemplateEnhancement bool    `mapstructure:"enable_template_enhancement"`
	OnFailure                 string  `mapstructure:"on_failure"`
	ReportLanguage            string  `mapstructure:"report_language"`
	PromptsDir                string  `mapstructure:"prompts_dir"`
	MaxToolSteps              int     `mapstructure:"max_tool_steps"`
	JSONMode                  bool    `mapstructure:"json_mode"`
}

type LoggingConfig struct {
	// EventLogPath receives the structured run events as JSON lines.
	EventLogPath string `mapstructure:"event_log_path"`
	LLMLogPath   string `mapstructure:"llm_log_path"`
	MaxSizeMB    int    `mapstructure:"max_size_mb"`
	Console      bool   `mapstructure:"console"`
}

type GovernanceConfig struct {
	DeniedTools     []string `mapstructure:"denied_tools"`
	DeniedArguments []string `mapstructure:"denied_arguments"`
}

// Default returns the configuration used when no file overrides a key.
func Default() *Config {
	return &Config{
		App: AppConfig{
			Name:      "karya",
			Workspace: "./workspace",
		},
		Memory: MemoryConfig{
			Type:         "sqlite",
			Path:         "karya.db",
			HistoryLimit: 5,
		},
		Planner: PlannerConfig{
			EnableToolIntegration: true,
			MaxRetries:            2,
			QualityThreshold:      0.7,
			EnableDesignReview:    true,
			OnFailure:             "abort",
			ReportLanguage:        "auto",
			PromptsDir:            "./prompts",
			MaxToolSteps:          8,
		},
		Logging: LoggingConfig{
			EventLogPath: "logs/events.jsonl",
			LLMLogPath:   "logs/llm.jsonl",
			MaxSizeMB:    10,
			Console:      true,
		},
		Governance: GovernanceConfig{
			DeniedArguments: []string{`file://`, `169\.254\.169\.254`},
		},
	}
}

// SetDefaults registers every default on v so env overrides resolve.
func SetDefaults(v *viper.Viper) {
	d := Default()

	v.SetDefault("app.name", d.App.Name)
	v.SetDefault("app.workspace", d.App.Workspace)

	v.SetDefault("memory.type", d.Memory.Type)
	v.SetDefault("memory.path", d.Memory.Path)
	v.SetDefault("memory.history_limit", d.Memory.HistoryLimit)

	v.SetDefault("planner.action_model", d.Planner.ActionModel)
	v.SetDefault("planner.writer_model", d.Planner.WriterModel)
	v.SetDefault("planner.coder_model", d.Planner.CoderModel)
	v.SetDefault("planner.analysis_model", d.Planner.AnalysisModel)
	v.SetDefault("planner.enable_tool_integration", d.Planner.EnableToolIntegration)
	v.SetDefault("planner.max_retries", d.Planner.MaxRetries)
	v.SetDefault("planner.quality_threshold", d.Planner.QualityThreshold)
	v.SetDefault("planner.enable_design_review", d.Planner.EnableDesignReview)
	v.SetDefault("planner.enable_template_enhancement", d.Planner.EnableTemplateEnhancement)
	v.SetDefault("planner.on_failure", d.Planner.OnFailure)
	v.SetDefault("planner.report_language", d.Planner.ReportLanguage)
	v.SetDefault("planner.prompts_dir", d.Planner.PromptsDir)
	v.SetDefault("planner.max_tool_steps", d.Planner.MaxToolSteps)
	v.SetDefault("planner.json_mode", d.Planner.JSONMode)

	v.SetDefault("logging.event_log_path", d.Logging.EventLogPath)
	v.SetDefault("logging.llm_log_path", d.Logging.LLMLogPath)
	v.SetDefault("logging.max_size_mb", d.Logging.MaxSizeMB)
	v.SetDefault("logging.console", d.Logging.Console)

	v.SetDefault("governance.denied_tools", d.Governance.DeniedTools)
	v.SetDefault("governance.denied_arguments", d.Governance.DeniedArguments)
}

// Load reads path (JSON or YAML, by extension) over the defaults. KARYA_*
// environment variables override file values, e.g. KARYA_PLANNER_MAX_RETRIES.
// An empty path loads defaults and environment only.
func Load(path string) (*Config, error) {
	v := viper.New()
	SetDefaults(v)
	v.SetEnvPrefix("karya")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("failed to read config file %s: %w", path, err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to decode config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate reports every invalid setting at once.
func (c *Config) Validate() error {
	var errs []error
	if c.Planner.MaxRetries < 0 {
		errs = append(errs, fmt.Errorf("planner.max_retries must be >= 0, got %d", c.Planner.MaxRetries))
	}
	if c.Planner.QualityThreshold < 0 || c.Planner.QualityThreshold > 1 {
		errs = append(errs, fmt.Errorf("planner.quality_threshold must be within [0,1], got %v", c.Planner.QualityThreshold))
	}
	switch c.Planner.OnFailure {
	case "abort", "approve", "ask":
	default:
		errs = append(errs, fmt.Errorf("planner.on_failure must be abort, approve or ask, got %q", c.Planner.OnFailure))
	}
	switch c.Planner.ReportLanguage {
	case "auto", "en", "fr":
	default:
		errs = append(errs, fmt.Errorf("planner.report_language must be auto, en or fr, got %q", c.Planner.ReportLanguage))
	}
	return errors.Join(errs...)
}

// GetDefaultProvider returns the first enabled provider, by name order.
func (c *Config) GetDefaultProvider() (string, ProviderConfig) {
	var names []string
	for name, p := range c.Providers {
		if p.Enabled {
			names = append(names, name)
		}
	}
	if len(names) == 0 {
		return "", ProviderConfig{}
	}
	best := names[0]
	for _, n := range names[1:] {
		if n < best {
			best = n
		}
	}
	return best, c.Providers[best]
}

// Gateway returns the named gateway config if it is enabled and has a token.
func (c *Config) Gateway(name string) (GatewayConfig, bool) {
	g, ok := c.Gateways[name]
	if ok && g.Enabled && g.Token != "" {
		return g, true
	}
	return GatewayConfig{}, false
}

// ModelAliases maps the alias names a plan may use to configured models.
func (c *Config) ModelAliases() map[string]string {
	return map[string]string{
		"ACTION_MODEL":   c.Planner.ActionModel,
		"WRITER_MODEL":   c.Planner.WriterModel,
		"CODER_MODEL":    c.Planner.CoderModel,
		"ANALYSIS_MODEL": c.Planner.AnalysisModel,
	}
}
