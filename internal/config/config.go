package config

import (
	"fmt"
	"os"
	"regexp"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/kelseyhightower/envconfig"
	"gopkg.in/yaml.v2"
)

// Config represents the complete application configuration
type Config struct {
	Server    ServerConfig    `yaml:"server" envconfig:"SERVER"`
	Logging   LoggingConfig   `yaml:"logging" envconfig:"LOGGING"`
	Source    SourceConfig    `yaml:"source" envconfig:"SOURCE"`
	Transform TransformConfig `yaml:"transform" envconfig:"TRANSFORM"`
	Load      LoadConfig      `yaml:"load" envconfig:"LOAD"`
	Retry     RetryConfig     `yaml:"retry" envconfig:"RETRY"`
	Schedule  ScheduleConfig  `yaml:"schedule" envconfig:"SCHEDULE"`
	Handoff   HandoffConfig   `yaml:"handoff" envconfig:"HANDOFF"`
	Telemetry TelemetryConfig `yaml:"telemetry" envconfig:"TELEMETRY"`
}

// ServerConfig contains HTTP server configuration
type ServerConfig struct {
	Port            int           `yaml:"port" envconfig:"PORT" validate:"min=1,max=65535"`
	ReadTimeout     time.Duration `yaml:"read_timeout" envconfig:"READ_TIMEOUT" validate:"gt=0"`
	WriteTimeout    time.Duration `yaml:"write_timeout" envconfig:"WRITE_TIMEOUT" validate:"gt=0"`
	IdleTimeout     time.Duration `yaml:"idle_timeout" envconfig:"IDLE_TIMEOUT"`
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout" envconfig:"SHUTDOWN_TIMEOUT" validate:"gt=0"`
	RateLimitRPS    float64       `yaml:"rate_limit_rps" envconfig:"RATE_LIMIT_RPS" validate:"gte=0"`
	RateLimitBurst  int           `yaml:"rate_limit_burst" envconfig:"RATE_LIMIT_BURST" validate:"gte=0"`
}

// LoggingConfig contains logging configuration
type LoggingConfig struct {
	Level        string `yaml:"level" envconfig:"LEVEL" validate:"oneof=debug info warn warning error"`
	Output       string `yaml:"output" envconfig:"OUTPUT" validate:"oneof=console file both"`
	FilePath     string `yaml:"file_path" envconfig:"FILE_PATH"`
	ProgressPath string `yaml:"progress_path" envconfig:"PROGRESS_PATH" validate:"required"`
}

// SourceConfig locates the HTML table to extract
type SourceConfig struct {
	URL            string        `yaml:"url" envconfig:"URL" validate:"required,url"`
	TableTag       string        `yaml:"table_tag" envconfig:"TABLE_TAG" validate:"required"`
	TableClass     string        `yaml:"table_class" envconfig:"TABLE_CLASS"`
	Placeholder    string        `yaml:"placeholder" envconfig:"PLACEHOLDER"`
	RankColumn     int           `yaml:"rank_column" envconfig:"RANK_COLUMN" validate:"gte=0"`
	NameColumn     int           `yaml:"name_column" envconfig:"NAME_COLUMN" validate:"gte=0"`
	MetricColumn   int           `yaml:"metric_column" envconfig:"METRIC_COLUMN" validate:"gte=0"`
	Fetcher        string        `yaml:"fetcher" envconfig:"FETCHER" validate:"oneof=http chrome"`
	UserAgent      string        `yaml:"user_agent" envconfig:"USER_AGENT"`
	RequestTimeout time.Duration `yaml:"request_timeout" envconfig:"REQUEST_TIMEOUT" validate:"gt=0"`
	RatePerSecond  float64       `yaml:"rate_per_second" envconfig:"RATE_PER_SECOND" validate:"gt=0"`
}

// TransformConfig controls currency derivation
type TransformConfig struct {
	RatesPath    string   `yaml:"rates_path" envconfig:"RATES_PATH" validate:"required"`
	BaseCurrency string   `yaml:"base_currency" envconfig:"BASE_CURRENCY" validate:"required,alpha,len=3"`
	Currencies   []string `yaml:"currencies" envconfig:"CURRENCIES" validate:"required,min=1,dive,alpha,len=3"`
	Divisor      float64  `yaml:"divisor" envconfig:"DIVISOR" validate:"gt=0"`
	Rounding     string   `yaml:"rounding" envconfig:"ROUNDING" validate:"oneof=half_even half_away"`
}

// LoadConfig names the sinks written by the load stage
type LoadConfig struct {
	CSVPath  string `yaml:"csv_path" envconfig:"CSV_PATH" validate:"required"`
	XLSXPath string `yaml:"xlsx_path" envconfig:"XLSX_PATH"`
	DBPath   string `yaml:"db_path" envconfig:"DB_PATH" validate:"required"`
	Table    string `yaml:"table" envconfig:"TABLE" validate:"required"`
}

// RetryConfig is the default stage retry policy
type RetryConfig struct {
	MaxAttempts    int           `yaml:"max_attempts" envconfig:"MAX_ATTEMPTS" validate:"min=1"`
	Delay          time.Duration `yaml:"delay" envconfig:"DELAY" validate:"gte=0"`
	AttemptTimeout time.Duration `yaml:"attempt_timeout" envconfig:"ATTEMPT_TIMEOUT" validate:"gt=0"`
}

// ScheduleConfig controls the periodic trigger and run concurrency
type ScheduleConfig struct {
	Enabled           bool          `yaml:"enabled" envconfig:"ENABLED"`
	Interval          time.Duration `yaml:"interval" envconfig:"INTERVAL" validate:"gt=0"`
	RunOnStart        bool          `yaml:"run_on_start" envconfig:"RUN_ON_START"`
	MaxConcurrentRuns int           `yaml:"max_concurrent_runs" envconfig:"MAX_CONCURRENT_RUNS" validate:"min=1"`
	HistorySize       int           `yaml:"history_size" envconfig:"HISTORY_SIZE" validate:"min=1"`
}

// HandoffConfig selects the handoff store backend
type HandoffConfig struct {
	Backend       string        `yaml:"backend" envconfig:"BACKEND" validate:"oneof=memory redis"`
	RedisAddr     string        `yaml:"redis_addr" envconfig:"REDIS_ADDR" validate:"required_if=Backend redis"`
	RedisPassword string        `yaml:"redis_password" envconfig:"REDIS_PASSWORD"`
	RedisDB       int           `yaml:"redis_db" envconfig:"REDIS_DB" validate:"gte=0"`
	KeyPrefix     string        `yaml:"key_prefix" envconfig:"KEY_PREFIX"`
	TTL           time.Duration `yaml:"ttl" envconfig:"TTL" validate:"gte=0"`
}

// TelemetryConfig controls OpenTelemetry setup
type TelemetryConfig struct {
	ServiceName   string `yaml:"service_name" envconfig:"SERVICE_NAME"`
	Environment   string `yaml:"environment" envconfig:"ENVIRONMENT"`
	TraceExporter string `yaml:"trace_exporter" envconfig:"TRACE_EXPORTER" validate:"oneof=none stdout"`
	EnableMetrics bool   `yaml:"enable_metrics" envconfig:"ENABLE_METRICS"`
}

var identifierPattern = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_]*$`)

// Load builds the configuration from defaults, an optional YAML file and the environment.
// Precedence: environment > file > defaults. An empty path falls back to BANKCAP_CONFIG_FILE
// and then to the usual locations.
func Load(path string) (*Config, error) {
	cfg := Default()

	if path == "" {
		path = getConfigFilePath()
	}
	if path != "" {
		if err := loadFromFile(path, cfg); err != nil {
			return nil, fmt.Errorf("failed to load config from file: %w", err)
		}
	}

	if err := envconfig.Process(EnvPrefix, cfg); err != nil {
		return nil, fmt.Errorf("failed to load config from env: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}

	return cfg, nil
}

// loadFromFile overlays the YAML file onto cfg; keys absent from the file keep their value
func loadFromFile(filePath string, cfg *Config) error {
	data, err := os.ReadFile(filePath)
	if err != nil {
		return err
	}
	return yaml.Unmarshal(data, cfg)
}

// getConfigFilePath returns the path to the config file, or "" when none exists
func getConfigFilePath() string {
	if p := os.Getenv(ConfigFileEnv); p != "" {
		return p
	}

	locations := []string{
		"config.yaml",
		"configs/config.yaml",
	}
	for _, location := range locations {
		if _, err := os.Stat(location); err == nil {
			return location
		}
	}
	return ""
}

// Validate checks struct tags and cross-field rules
func (c *Config) Validate() error {
	if err := validator.New().Struct(c); err != nil {
		return err
	}

	if !identifierPattern.MatchString(c.Load.Table) {
		return fmt.Errorf("invalid table name %q", c.Load.Table)
	}

	// currency codes compare case-insensitively
	base := strings.ToUpper(c.Transform.BaseCurrency)
	seen := make(map[string]bool, len(c.Transform.Currencies))
	for _, code := range c.Transform.Currencies {
		cur := strings.ToUpper(code)
		if cur == base {
			return fmt.Errorf("currency %s duplicates the base currency", cur)
		}
		if seen[cur] {
			return fmt.Errorf("currency %s listed twice", cur)
		}
		seen[cur] = true
	}

	if c.Logging.Output != "console" && c.Logging.FilePath == "" {
		return fmt.Errorf("logging file_path is required for output %q", c.Logging.Output)
	}

	return nil
}

// Default returns default configuration
func Default() *Config {
	return &Config{
		Server: ServerConfig{
			Port:            8080,
			ReadTimeout:     15 * time.Second,
			WriteTimeout:    30 * time.Second,
			IdleTimeout:     60 * time.Second,
			ShutdownTimeout: 15 * time.Second,
			RateLimitRPS:    10,
			RateLimitBurst:  20,
		},
		Logging: LoggingConfig{
			Level:        "info",
			Output:       "console",
			FilePath:     "logs/bankcap.log",
			ProgressPath: DefaultProgressPath,
		},
		Source: SourceConfig{
			URL:            DefaultSourceURL,
			TableTag:       "table",
			TableClass:     DefaultTableClass,
			Placeholder:    DefaultPlaceholder,
			RankColumn:     0,
			NameColumn:     1,
			MetricColumn:   2,
			Fetcher:        "http",
			UserAgent:      AppName + "/" + AppVersion,
			RequestTimeout: 30 * time.Second,
			RatePerSecond:  1,
		},
		Transform: TransformConfig{
			RatesPath:    DefaultRatesPath,
			BaseCurrency: "USD",
			Currencies:   []string{"GBP", "EUR", "INR"},
			Divisor:      1000,
			Rounding:     RoundingHalfEven,
		},
		Load: LoadConfig{
			CSVPath: DefaultCSVPath,
			DBPath:  DefaultDBPath,
			Table:   DefaultTableName,
		},
		Retry: RetryConfig{
			MaxAttempts:    2,
			Delay:          5 * time.Minute,
			AttemptTimeout: 2 * time.Minute,
		},
		Schedule: ScheduleConfig{
			Enabled:           false,
			Interval:          24 * time.Hour,
			MaxConcurrentRuns: 2,
			HistorySize:       50,
		},
		Handoff: HandoffConfig{
			Backend:   "memory",
			RedisAddr: "localhost:6379",
			KeyPrefix: "bankcap:handoff",
			TTL:       24 * time.Hour,
		},
		Telemetry: TelemetryConfig{
			ServiceName:   AppName,
			Environment:   "development",
			TraceExporter: "none",
			EnableMetrics: true,
		},
	}
}
