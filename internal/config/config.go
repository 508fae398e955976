// Package config loads and validates function configuration from an optional
// YAML file, an optional .env file and the process environment.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"

	"github.com/pricofy/csv-translation/internal/domain"
)

// Translator backends.
const (
	BackendAWS      = "aws"
	BackendFunction = "function"
)

// Role names the function a process runs as; each validates its own subset.
type Role string

// Function roles.
const (
	RoleUploadHandler Role = "upload-handler"
	RoleProcessor     Role = "processor"
	RoleListFiles     Role = "list-files"
	RoleUserUploads   Role = "user-uploads"
	RoleAPIKeys       Role = "api-keys"
	RoleLocal         Role = "local"
)

// Config represents the complete application configuration
type Config struct {
	App         AppConfig         `yaml:"app"`
	Logging     LoggingConfig     `yaml:"logging"`
	Storage     StorageConfig     `yaml:"storage"`
	Queue       QueueConfig       `yaml:"queue"`
	Metadata    MetadataConfig    `yaml:"metadata"`
	Translation TranslationConfig `yaml:"translation"`
	APIKeys     APIKeysConfig     `yaml:"api_keys"`
	Local       LocalConfig       `yaml:"local"`
}

// AppConfig holds deployment metadata
type AppConfig struct {
	Environment  string `yaml:"environment"`
	FunctionName string `yaml:"function_name"`
}

// LoggingConfig holds logging configuration
type LoggingConfig struct {
	Level        string `yaml:"level"`
	Format       string `yaml:"format"`
	EnableSource bool   `yaml:"enable_source"`
}

// StorageConfig names the buckets
type StorageConfig struct {
	InputBucket  string `yaml:"input_bucket"`
	OutputBucket string `yaml:"output_bucket"`
	ListBucket   string `yaml:"list_bucket"`
	ListMaxKeys  int32  `yaml:"list_max_keys"`
}

// QueueConfig holds the translation job queue
type QueueConfig struct {
	URL string `yaml:"url"`
}

// MetadataConfig names the DynamoDB tables and indexes
type MetadataConfig struct {
	JobTable    string `yaml:"job_table"`
	EmailIndex  string `yaml:"email_index"`
	APIKeyTable string `yaml:"api_key_table"`
	APIKeyIndex string `yaml:"api_key_index"`
}

// TranslationConfig selects and tunes the translation backend
type TranslationConfig struct {
	Backend      string        `yaml:"backend"`
	FunctionName string        `yaml:"function_name"`
	SourceLang   string        `yaml:"source_lang"`
	TargetLang   string        `yaml:"target_lang"`
	Concurrency  int           `yaml:"concurrency"`
	Timeout      time.Duration `yaml:"timeout"`
}

// APIKeysConfig holds key issuance settings. Usage plans are provisioned
// outside this service; keys are only attached to an existing plan.
type APIKeysConfig struct {
	UsagePlanID    string  `yaml:"usage_plan_id"`
	ExpirationDays int     `yaml:"expiration_days"`
	RateLimit      float64 `yaml:"rate_limit"`
	BurstLimit     int32   `yaml:"burst_limit"`
	DailyQuota     int32   `yaml:"daily_quota"`
}

// LocalConfig holds the local development server settings
type LocalConfig struct {
	Addr string `yaml:"addr"`
}

// Defaults returns the configuration used before any file or environment
// overrides.
func Defaults() *Config {
	return &Config{
		App:     AppConfig{Environment: "dev"},
		Logging: LoggingConfig{Level: "info", Format: "json"},
		Storage: StorageConfig{ListMaxKeys: 100},
		Metadata: MetadataConfig{
			EmailIndex:  "email-index",
			APIKeyTable: "ApiKeyMetadata",
			APIKeyIndex: "ApiKeyIndex",
		},
		Translation: TranslationConfig{
			Backend:     BackendAWS,
			SourceLang:  domain.DefaultSourceLang,
			TargetLang:  "es",
			Concurrency: 4,
			Timeout:     10 * time.Second,
		},
		APIKeys: APIKeysConfig{
			ExpirationDays: 365,
			RateLimit:      10,
			BurstLimit:     50,
			DailyQuota:     100,
		},
		Local: LocalConfig{Addr: ":8080"},
	}
}

// LoadDotEnv loads a .env file from the working directory when present.
func LoadDotEnv() error {
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("failed to load .env file: %w", err)
	}
	return nil
}

// Load builds the configuration from defaults, the YAML file at path (when
// non-empty) and the environment, in increasing precedence.
func Load(path string) (*Config, error) {
	cfg := Defaults()

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("failed to parse config file: %w", err)
		}
	}

	if err := cfg.applyEnv(os.LookupEnv); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Languages returns the default translation pair.
func (c *Config) Languages() domain.Languages {
	return domain.Languages{Source: c.Translation.SourceLang, Target: c.Translation.TargetLang}
}

type lookupFunc func(string) (string, bool)

func (c *Config) applyEnv(lookup lookupFunc) error {
	strs := map[string]*string{
		"ENVIRONMENT":              &c.App.Environment,
		"AWS_LAMBDA_FUNCTION_NAME": &c.App.FunctionName,
		"LOG_LEVEL":                &c.Logging.Level,
		"LOG_FORMAT":               &c.Logging.Format,
		"INPUT_BUCKET":             &c.Storage.InputBucket,
		"OUTPUT_BUCKET":            &c.Storage.OutputBucket,
		"BUCKET_NAME":              &c.Storage.ListBucket,
		"SQS_QUEUE_URL":            &c.Queue.URL,
		"METADATA_TABLE":           &c.Metadata.JobTable,
		"EMAIL_INDEX":              &c.Metadata.EmailIndex,
		"API_METADATA_TABLE":       &c.Metadata.APIKeyTable,
		"API_KEY_INDEX":            &c.Metadata.APIKeyIndex,
		"TRANSLATOR_BACKEND":       &c.Translation.Backend,
		"TRANSLATOR_FUNCTION":      &c.Translation.FunctionName,
		"SOURCE_LANG":              &c.Translation.SourceLang,
		"TARGET_LANG":              &c.Translation.TargetLang,
		"USAGE_PLAN_ID":            &c.APIKeys.UsagePlanID,
		"LOCAL_ADDR":               &c.Local.Addr,
	}
	for name, dst := range strs {
		if v, ok := lookup(name); ok && v != "" {
			*dst = v
		}
	}

	if v, ok := lookup("TRANSLATE_CONCURRENCY"); ok && v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("invalid TRANSLATE_CONCURRENCY %q: %w", v, err)
		}
		c.Translation.Concurrency = n
	}
	if v, ok := lookup("TRANSLATE_TIMEOUT"); ok && v != "" {
		d, err := time.ParseDuration(v)
		if err != nil {
			return fmt.Errorf("invalid TRANSLATE_TIMEOUT %q: %w", v, err)
		}
		c.Translation.Timeout = d
	}
	if v, ok := lookup("API_KEY_EXPIRATION_DAYS"); ok && v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("invalid API_KEY_EXPIRATION_DAYS %q: %w", v, err)
		}
		c.APIKeys.ExpirationDays = n
	}
	if v, ok := lookup("LOG_SOURCE"); ok && v != "" {
		b, err := strconv.ParseBool(v)
		if err != nil {
			return fmt.Errorf("invalid LOG_SOURCE %q: %w", v, err)
		}
		c.Logging.EnableSource = b
	}
	return nil
}

// Validate checks the settings required by role.
func (c *Config) Validate(role Role) error {
	switch role {
	case RoleUploadHandler:
		return firstErr(c.validateJobs, c.validateAPIKeyLookup, c.validateQueue, c.validateBuckets, c.validateTranslation)
	case RoleProcessor:
		return firstErr(c.validateJobs, c.validateQueueless, c.validateTranslation)
	case RoleListFiles:
		if c.Storage.ListBucket == "" {
			return fmt.Errorf("BUCKET_NAME is required")
		}
		return nil
	case RoleUserUploads:
		return firstErr(c.validateJobs, c.validateOutputBucket)
	case RoleAPIKeys:
		return firstErr(c.validateAPIKeyLookup, c.validateAPIKeyIssuance)
	case RoleLocal:
		return firstErr(
			c.validateJobs, c.validateAPIKeyLookup, c.validateQueue, c.validateBuckets,
			c.validateTranslation, c.validateAPIKeyIssuance,
		)
	default:
		return fmt.Errorf("unknown role %q", role)
	}
}

func firstErr(checks ...func() error) error {
	for _, check := range checks {
		if err := check(); err != nil {
			return err
		}
	}
	return nil
}

func (c *Config) validateJobs() error {
	if c.Metadata.JobTable == "" {
		return fmt.Errorf("METADATA_TABLE is required")
	}
	return nil
}

func (c *Config) validateAPIKeyLookup() error {
	if c.Metadata.APIKeyTable == "" {
		return fmt.Errorf("API_METADATA_TABLE is required")
	}
	if c.Metadata.APIKeyIndex == "" {
		return fmt.Errorf("API_KEY_INDEX is required")
	}
	return nil
}

func (c *Config) validateQueue() error {
	if c.Queue.URL == "" {
		return fmt.Errorf("SQS_QUEUE_URL is required")
	}
	return nil
}

func (c *Config) validateBuckets() error {
	if c.Storage.InputBucket == "" {
		return fmt.Errorf("INPUT_BUCKET is required")
	}
	return c.validateOutputBucket()
}

// validateQueueless covers the processor, which consumes the queue but never
// sends to it.
func (c *Config) validateQueueless() error {
	return c.validateOutputBucket()
}

func (c *Config) validateOutputBucket() error {
	if c.Storage.OutputBucket == "" {
		return fmt.Errorf("OUTPUT_BUCKET is required")
	}
	return nil
}

func (c *Config) validateTranslation() error {
	switch c.Translation.Backend {
	case BackendAWS:
	case BackendFunction:
		if c.Translation.FunctionName == "" {
			return fmt.Errorf("TRANSLATOR_FUNCTION is required for the %q backend", BackendFunction)
		}
	default:
		return fmt.Errorf("unknown translator backend %q", c.Translation.Backend)
	}
	if c.Translation.Concurrency <= 0 {
		return fmt.Errorf("translation concurrency must be greater than 0")
	}
	if c.Translation.Timeout <= 0 {
		return fmt.Errorf("translation timeout must be greater than 0")
	}
	if err := c.Languages().Validate(); err != nil {
		return fmt.Errorf("invalid default languages: %w", err)
	}
	return nil
}

func (c *Config) validateAPIKeyIssuance() error {
	if c.APIKeys.ExpirationDays <= 0 {
		return fmt.Errorf("api key expiration days must be greater than 0")
	}
	return nil
}
