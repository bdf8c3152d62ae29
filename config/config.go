package config

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"gopkg.in/yaml.v3"

	kberrors "incidentkb/pkg/errors"
)

// DataDirName is the per-workspace directory holding the journal and config.
const DataDirName = ".incidentkb"

// Config holds all configuration for incidentkb.
type Config struct {
	Memory    MemoryConfig    `yaml:"memory"`
	Embedding EmbeddingConfig `yaml:"embedding"`
	Journal   JournalConfig   `yaml:"journal"`
	Ingest    IngestConfig    `yaml:"ingest"`
	Server    ServerConfig    `yaml:"server"`
	Planner   PlannerConfig   `yaml:"planner"`
	Logging   LoggingConfig   `yaml:"logging"`
}

// MemoryConfig holds vector memory settings. TopK and PreviewChars only size
// the output of `incidentkb search`; the tools handed to the planner and to
// HTTP clients always return 3 results with 200-character previews.
type MemoryConfig struct {
	TopK               int  `yaml:"top_k"`
	PreviewChars       int  `yaml:"preview_chars"`
	RejectDuplicateIDs bool `yaml:"reject_duplicate_ids"`
}

// EmbeddingConfig holds embedding provider configuration.
type EmbeddingConfig struct {
	Provider  string   `yaml:"provider"`    // "openai", "jina", "ollama", "compatible", "hashing"
	Model     string   `yaml:"model"`       // e.g., "text-embedding-3-small"
	APIKeyEnv string   `yaml:"api_key_env"` // Environment variable for API key
	BaseURL   string   `yaml:"base_url"`
	Dimension int      `yaml:"dimension"`
	Timeout   Duration `yaml:"timeout"`
	CacheSize int      `yaml:"cache_size"` // 0 disables the embedding cache
	CacheTTL  Duration `yaml:"cache_ttl"`
}

// JournalConfig selects where ingested incidents are persisted.
type JournalConfig struct {
	Backend string `yaml:"backend"` // "bolt", "sqlite", "none"
	Path    string `yaml:"path"`    // relative paths resolve against the root dir
}

// IngestConfig holds file ingestion configuration.
type IngestConfig struct {
	Includes           []string `yaml:"includes"`
	Excludes           []string `yaml:"excludes"`
	ConfluencePatterns []string `yaml:"confluence_patterns"`
	SlackPatterns      []string `yaml:"slack_patterns"`
	WatchDebounce      Duration `yaml:"watch_debounce"`
}

// ServerConfig holds the HTTP tool endpoint configuration.
type ServerConfig struct {
	Host string `yaml:"host"`
	Port int    `yaml:"port"`
}

// PlannerConfig holds the planning service (LLM) configuration.
type PlannerConfig struct {
	Provider     string `yaml:"provider"`
	Model        string `yaml:"model"`
	APIKeyEnv    string `yaml:"api_key_env"`
	BaseURL      string `yaml:"base_url"`
	MaxSteps     int    `yaml:"max_steps"`
	SystemPrompt string `yaml:"system_prompt"`
}

// LoggingConfig holds logging configuration.
type LoggingConfig struct {
	Level       string `yaml:"level"`
	Development bool   `yaml:"development"`
}

// DefaultSystemPrompt frames the planner as an incident knowledge agent.
const DefaultSystemPrompt = `You are an Incident Knowledge Agent that helps users understand and learn from past incidents.
Use the available tools to search through incident history and provide helpful responses.
Always cite your sources and provide relevant links.`

// DefaultConfig returns the default configuration.
func DefaultConfig() *Config {
	return &Config{
		Memory: MemoryConfig{
			TopK:         3,
			PreviewChars: 200,
		},
		Embedding: EmbeddingConfig{
			Provider:  "openai",
			Model:     "text-embedding-3-small",
			APIKeyEnv: "OPENAI_API_KEY",
			Dimension: 1536,
			Timeout:   Duration(60 * time.Second),
			CacheSize: 512,
			CacheTTL:  Duration(30 * time.Minute),
		},
		Journal: JournalConfig{
			Backend: "bolt",
			Path:    filepath.Join(DataDirName, "journal.db"),
		},
		Ingest: IngestConfig{
			Includes:           []string{"**/*.md", "**/*.txt", "**/*.log"},
			Excludes:           []string{"**/.git/**", "**/" + DataDirName + "/**", "**/node_modules/**"},
			ConfluencePatterns: []string{"**/*.md", "**/confluence/**"},
			SlackPatterns:      []string{"**/slack/**", "**/*.txt", "**/*.log"},
			WatchDebounce:      Duration(400 * time.Millisecond),
		},
		Server: ServerConfig{
			Host: "127.0.0.1",
			Port: 8088,
		},
		Planner: PlannerConfig{
			Provider:     "openai",
			Model:        "gpt-4o-mini",
			APIKeyEnv:    "OPENAI_API_KEY",
			MaxSteps:     6,
			SystemPrompt: DefaultSystemPrompt,
		},
		Logging: LoggingConfig{
			Level: "info",
		},
	}
}

// Load loads configuration from a YAML file. A missing file yields defaults.
func Load(path string) (*Config, error) {
	cfg := DefaultConfig()

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return cfg, nil
		}
		return nil, kberrors.Wrap(err, kberrors.CodeConfigLoadReadFailure, "read config",
			kberrors.Field("path", path))
	}

	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, kberrors.Wrap(err, kberrors.CodeConfigParseInvalidFormat, "parse config",
			kberrors.Field("path", path))
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

// LoadFromDir loads configuration from a directory (looks for incidentkb.yaml,
// then .incidentkb/config.yaml).
func LoadFromDir(dir string) (*Config, error) {
	path := filepath.Join(dir, "incidentkb.yaml")
	if _, err := os.Stat(path); err == nil {
		return Load(path)
	}

	path = filepath.Join(dir, DataDirName, "config.yaml")
	if _, err := os.Stat(path); err == nil {
		return Load(path)
	}

	return DefaultConfig(), nil
}

// Validate rejects settings the core cannot run with.
func (c *Config) Validate() error {
	invalid := func(field string, value any, msg string) error {
		return kberrors.New(kberrors.CodeConfigValidateInvalidValue, msg,
			kberrors.Field("field", field), kberrors.Field("value", value))
	}

	switch {
	case c.Memory.TopK <= 0:
		return invalid("memory.top_k", c.Memory.TopK, "top_k must be positive")
	case c.Memory.PreviewChars <= 0:
		return invalid("memory.preview_chars", c.Memory.PreviewChars, "preview_chars must be positive")
	case c.Embedding.Dimension < 0:
		return invalid("embedding.dimension", c.Embedding.Dimension, "dimension must not be negative")
	case c.Embedding.CacheSize < 0:
		return invalid("embedding.cache_size", c.Embedding.CacheSize, "cache_size must not be negative")
	case c.Planner.MaxSteps < 0:
		return invalid("planner.max_steps", c.Planner.MaxSteps, "max_steps must not be negative")
	case c.Server.Port < 0 || c.Server.Port > 65535:
		return invalid("server.port", c.Server.Port, "port out of range")
	}

	switch c.Journal.Backend {
	case "bolt", "sqlite", "none":
	default:
		return invalid("journal.backend", c.Journal.Backend, "unsupported journal backend")
	}

	return nil
}

// Save saves configuration to a YAML file.
func (c *Config) Save(path string) error {
	data, err := yaml.Marshal(c)
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0644)
}

// JournalPath resolves the journal location against dir.
func (c *Config) JournalPath(dir string) string {
	if filepath.IsAbs(c.Journal.Path) {
		return c.Journal.Path
	}
	return filepath.Join(dir, c.Journal.Path)
}

// ServerAddr returns host:port for the HTTP server.
func (c *Config) ServerAddr() string {
	return fmt.Sprintf("%s:%d", c.Server.Host, c.Server.Port)
}

// EnsureDataDir ensures the .incidentkb directory exists.
func EnsureDataDir(dir string) error {
	return os.MkdirAll(filepath.Join(dir, DataDirName), 0755)
}

// Duration is a time.Duration written as "30s" or "5m" in YAML.
type Duration time.Duration

func (d Duration) Duration() time.Duration {
	return time.Duration(d)
}

func (d Duration) MarshalYAML() (any, error) {
	return time.Duration(d).String(), nil
}

func (d *Duration) UnmarshalYAML(node *yaml.Node) error {
	var raw string
	if err := node.Decode(&raw); err != nil {
		return err
	}
	parsed, err := time.ParseDuration(raw)
	if err != nil {
		return fmt.Errorf("invalid duration %q: %w", raw, err)
	}
	*d = Duration(parsed)
	return nil
}
