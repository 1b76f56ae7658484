package config

import (
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/robfig/cron/v3"
	"gopkg.in/yaml.v3"
)

// Storage backends
const (
	BackendSupabase = "supabase"
	BackendPostgres = "postgres"
	BackendMongo    = "mongo"
	BackendSQLite   = "sqlite"
	BackendXLSX     = "xlsx"
)

// Config holds the application configuration
type Config struct {
	Search   SearchConfig   `yaml:"search"`
	YouTube  YouTubeConfig  `yaml:"youtube"`
	Audio    AudioConfig    `yaml:"audio"`
	Gemini   GeminiConfig   `yaml:"gemini"`
	Storage  StorageConfig  `yaml:"storage"`
	Pipeline PipelineConfig `yaml:"pipeline"`

	Schedule    string `yaml:"schedule"`
	Timezone    string `yaml:"timezone"`
	LogLevel    string `yaml:"log_level"`
	Environment string `yaml:"environment"`
}

// SearchConfig controls candidate discovery
type SearchConfig struct {
	Query      string   `yaml:"query"`
	WindowDays int      `yaml:"window_days"`
	MaxResults int      `yaml:"max_results"`
	Feeds      []string `yaml:"feeds"`
	Pages      []string `yaml:"pages"`
	Sitemaps   []string `yaml:"sitemaps"`
	SeedFile   string   `yaml:"seed_file"`
}

type YouTubeConfig struct {
	APIKey  string `yaml:"api_key"`
	APIBase string `yaml:"api_base"`
}

type AudioConfig struct {
	MaxDurationSecs int    `yaml:"max_duration_secs"`
	TempDir         string `yaml:"temp_dir"`
}

type GeminiConfig struct {
	APIKey              string `yaml:"api_key"`
	Model               string `yaml:"model"`
	BaseURL             string `yaml:"base_url"`
	TimeoutSecs         int    `yaml:"timeout_secs"`
	RequestsPerMinute   int    `yaml:"requests_per_minute"`
	FilePollTimeoutSecs int    `yaml:"file_poll_timeout_secs"`
}

// StorageConfig selects and configures the record store
type StorageConfig struct {
	Backend string `yaml:"backend"`
	Table   string `yaml:"table"`

	SupabaseURL      string `yaml:"supabase_url"`
	SupabaseKey      string `yaml:"supabase_key"`
	SupabasePassword string `yaml:"supabase_password"`
	ConnectionString string `yaml:"connection_string"`

	PostgresDSN     string `yaml:"postgres_dsn"`
	MongoURI        string `yaml:"mongo_uri"`
	MongoDatabase   string `yaml:"mongo_database"`
	MongoCollection string `yaml:"mongo_collection"`
	SQLitePath      string `yaml:"sqlite_path"`
	XLSXPath        string `yaml:"xlsx_path"`
}

type PipelineConfig struct {
	// SkipWithoutDescription turns a missing description into a Skipped outcome
	// instead of proceeding with an unknown interviewee.
	SkipWithoutDescription bool `yaml:"skip_without_description"`
}

// Window returns the trailing discovery window
func (c *Config) Window() time.Duration {
	return time.Duration(c.Search.WindowDays) * 24 * time.Hour
}

// MaxDuration returns the longest accepted video
func (c *Config) MaxDuration() time.Duration {
	return time.Duration(c.Audio.MaxDurationSecs) * time.Second
}

// GeminiTimeout returns the per-call model timeout
func (c *Config) GeminiTimeout() time.Duration {
	return time.Duration(c.Gemini.TimeoutSecs) * time.Second
}

// Load reads the configuration from file and environment variables
func Load() (*Config, error) {
	configPath := os.Getenv("PODCAST_INSIGHTS_CONFIG")
	if configPath == "" {
		configPath = "./config.yaml"
	}
	return LoadFile(configPath)
}

// LoadFile reads the configuration from path. A missing file yields defaults plus environment overrides.
func LoadFile(path string) (*Config, error) {
	var cfg Config

	data, err := os.ReadFile(path)
	switch {
	case errors.Is(err, os.ErrNotExist):
	case err != nil:
		return nil, fmt.Errorf("failed to read config file: %w", err)
	default:
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return nil, fmt.Errorf("failed to parse config YAML: %w", err)
		}
	}

	applyEnvironmentOverrides(&cfg)
	applyDefaults(&cfg)

	if err := validate(&cfg); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// applyEnvironmentOverrides lets the environment win over the file
func applyEnvironmentOverrides(cfg *Config) {
	setString(&cfg.Search.Query, "SEARCH_QUERY")
	setString(&cfg.YouTube.APIKey, "YOUTUBE_API_KEY")
	setString(&cfg.Gemini.APIKey, "GEMINI_API_KEY")
	setString(&cfg.Gemini.APIKey, "GOOGLE_API_KEY")
	setString(&cfg.Gemini.Model, "GEMINI_MODEL")
	setString(&cfg.Storage.Backend, "STORAGE_BACKEND")
	setString(&cfg.Storage.SupabaseURL, "SUPABASE_URL")
	setString(&cfg.Storage.SupabaseKey, "SUPABASE_KEY")
	setString(&cfg.Storage.SupabasePassword, "SUPABASE_DB_PASSWORD")
	setString(&cfg.Storage.PostgresDSN, "DATABASE_URL")
	setString(&cfg.Storage.MongoURI, "MONGO_URI")
	setString(&cfg.LogLevel, "LOG_LEVEL")
	setString(&cfg.Environment, "ENVIRONMENT")
	setString(&cfg.Schedule, "SCHEDULE")
}

func setString(dst *string, env string) {
	if v := os.Getenv(env); v != "" {
		*dst = v
	}
}

// applyDefaults sets default values for missing fields
func applyDefaults(cfg *Config) {
	if cfg.Search.Query == "" {
		cfg.Search.Query = "tech podcast"
	}
	if cfg.Search.WindowDays == 0 {
		cfg.Search.WindowDays = 7
	}
	if cfg.Search.MaxResults == 0 {
		cfg.Search.MaxResults = 50
	}
	if cfg.YouTube.APIBase == "" {
		cfg.YouTube.APIBase = "https://www.googleapis.com/youtube/v3"
	}
	if cfg.Audio.MaxDurationSecs == 0 {
		cfg.Audio.MaxDurationSecs = 3600
	}
	if cfg.Audio.TempDir == "" {
		cfg.Audio.TempDir = os.TempDir()
	}
	if cfg.Gemini.Model == "" {
		cfg.Gemini.Model = "gemini-1.5-pro-latest"
	}
	if cfg.Gemini.BaseURL == "" {
		cfg.Gemini.BaseURL = "https://generativelanguage.googleapis.com"
	}
	if cfg.Gemini.TimeoutSecs == 0 {
		cfg.Gemini.TimeoutSecs = 300
	}
	if cfg.Gemini.RequestsPerMinute == 0 {
		cfg.Gemini.RequestsPerMinute = 10
	}
	if cfg.Gemini.FilePollTimeoutSecs == 0 {
		cfg.Gemini.FilePollTimeoutSecs = 120
	}
	if cfg.Storage.Backend == "" {
		if cfg.Storage.SupabaseURL != "" {
			cfg.Storage.Backend = BackendSupabase
		} else {
			cfg.Storage.Backend = BackendXLSX
		}
	}
	if cfg.Storage.Table == "" {
		cfg.Storage.Table = "podcast_insights"
	}
	if cfg.Storage.MongoDatabase == "" {
		cfg.Storage.MongoDatabase = "podcast_insights"
	}
	if cfg.Storage.MongoCollection == "" {
		cfg.Storage.MongoCollection = cfg.Storage.Table
	}
	if cfg.Storage.SQLitePath == "" {
		cfg.Storage.SQLitePath = "./podcast_insights.db"
	}
	if cfg.Storage.XLSXPath == "" {
		cfg.Storage.XLSXPath = "./podcast_insights.xlsx"
	}
	if cfg.Timezone == "" {
		cfg.Timezone = "UTC"
	}
	if cfg.LogLevel == "" {
		cfg.LogLevel = "info"
	}
	if cfg.Environment == "" {
		cfg.Environment = "local"
	}
}

// validate checks the configuration for correctness
func validate(cfg *Config) error {
	if cfg.Gemini.APIKey == "" {
		return fmt.Errorf("gemini.api_key (or GOOGLE_API_KEY) is required")
	}
	if cfg.Search.WindowDays < 0 {
		return fmt.Errorf("search.window_days must be positive, got %d", cfg.Search.WindowDays)
	}
	if cfg.Search.MaxResults < 0 || cfg.Search.MaxResults > 50 {
		return fmt.Errorf("search.max_results must be between 1 and 50, got %d", cfg.Search.MaxResults)
	}
	if cfg.Audio.MaxDurationSecs < 0 {
		return fmt.Errorf("audio.max_duration_secs must be positive, got %d", cfg.Audio.MaxDurationSecs)
	}
	if cfg.YouTube.APIKey == "" && len(cfg.Search.Feeds) == 0 && len(cfg.Search.Pages) == 0 &&
		len(cfg.Search.Sitemaps) == 0 && cfg.Search.SeedFile == "" {
		return fmt.Errorf("no discovery source configured: set youtube.api_key, search.feeds, search.pages, search.sitemaps or search.seed_file")
	}

	if err := validateStorage(&cfg.Storage); err != nil {
		return err
	}

	if _, err := time.LoadLocation(cfg.Timezone); err != nil {
		return fmt.Errorf("invalid timezone: %w", err)
	}
	if cfg.Schedule != "" {
		if _, err := cron.ParseStandard(cfg.Schedule); err != nil {
			return fmt.Errorf("invalid schedule %q: %w", cfg.Schedule, err)
		}
	}
	return nil
}

func validateStorage(s *StorageConfig) error {
	switch s.Backend {
	case BackendSupabase:
		if s.SupabaseURL == "" {
			return fmt.Errorf("storage.supabase_url (or SUPABASE_URL) is required for the supabase backend")
		}
		if s.SupabaseKey == "" && s.ConnectionString == "" && s.SupabasePassword == "" {
			return fmt.Errorf("supabase backend needs supabase_key, supabase_password or connection_string")
		}
	case BackendPostgres:
		if s.PostgresDSN == "" {
			return fmt.Errorf("storage.postgres_dsn (or DATABASE_URL) is required for the postgres backend")
		}
	case BackendMongo:
		if s.MongoURI == "" {
			return fmt.Errorf("storage.mongo_uri (or MONGO_URI) is required for the mongo backend")
		}
	case BackendSQLite, BackendXLSX:
	default:
		return fmt.Errorf("unknown storage.backend %q", s.Backend)
	}
	return nil
}
