package common

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"gopkg.in/yaml.v3"
)

// Config holds all application configuration
type Config struct {
	OCR       OCRConfig      `yaml:"ocr"`
	Pipeline  PipelineConfig `yaml:"pipeline"`
	Templates TemplateConfig `yaml:"templates"`
	Queue     QueueConfig    `yaml:"queue"`
	Log       LogConfig      `yaml:"log"`
}

// OCRConfig holds text-extraction backend configuration
type OCRConfig struct {
	Primary  string `yaml:"primary"`  // tesseract | tesseract-lib | vision
	Fallback string `yaml:"fallback"` // same choices, empty disables fallback

	TesseractBin  string `yaml:"tesseract_bin"`
	TesseractLang string `yaml:"tesseract_lang"`
	TessdataDir   string `yaml:"tessdata_dir"`
	PSM           int    `yaml:"psm"`
	OEM           int    `yaml:"oem"`

	VisionCredentialsFile string  `yaml:"vision_credentials_file"`
	VisionAPIKey          string  `yaml:"vision_api_key"`
	VisionEndpoint        string  `yaml:"vision_endpoint"`
	VisionRPS             float64 `yaml:"vision_rps"`

	Timeout       time.Duration `yaml:"timeout"`
	MaxAttempts   int           `yaml:"max_attempts"`
	BaseDelay     time.Duration `yaml:"base_delay"`
	Multiplier    float64       `yaml:"multiplier"`
	MaxDelay      time.Duration `yaml:"max_delay"`
	MinTextLength int           `yaml:"min_text_length"`
	CacheTTL      time.Duration `yaml:"cache_ttl"`

	ArtifactCacheDir string `yaml:"artifact_cache_dir"` // normalized images are cached here when set
	Grayscale        bool   `yaml:"grayscale"`
}

// PipelineConfig holds thresholds and behavior flags for the extraction pipeline
type PipelineConfig struct {
	DispatchThreshold float64 `yaml:"dispatch_threshold"`
	TemplateThreshold float64 `yaml:"template_threshold"`
	ConfidenceFloor   float64 `yaml:"confidence_floor"`
	ItemsWeight       float64 `yaml:"items_weight"`
	TotalsWeight      float64 `yaml:"totals_weight"`
	MetadataWeight    float64 `yaml:"metadata_weight"`
	TotalsTolerance   float64 `yaml:"totals_tolerance"`
	Reextract         bool    `yaml:"reextract"`
	LearnTemplates    bool    `yaml:"learn_templates"`
	DefaultCurrency   string  `yaml:"default_currency"`
}

// TemplateConfig selects where learned templates are persisted
type TemplateConfig struct {
	Store string `yaml:"store"` // memory | bolt | sqlite | postgres
	Path  string `yaml:"path"`
	DSN   string `yaml:"dsn"`
}

// QueueConfig holds worker pool configuration
type QueueConfig struct {
	Workers        int           `yaml:"workers"`
	Size           int           `yaml:"size"`
	ProcessTimeout time.Duration `yaml:"process_timeout"`
}

// LogConfig holds logging configuration
type LogConfig struct {
	Level string `yaml:"level"`
}

// DefaultConfig returns the built-in defaults.
func DefaultConfig() *Config {
	return &Config{
		OCR: OCRConfig{
			Primary:       "tesseract",
			Fallback:      "vision",
			TesseractBin:  "tesseract",
			TesseractLang: "eng",
			PSM:           6,
			VisionRPS:     5,
			Timeout:       30 * time.Second,
			MaxAttempts:   3,
			BaseDelay:     time.Second,
			Multiplier:    2,
			MaxDelay:      10 * time.Second,
			MinTextLength: 10,
			Grayscale:     true,
		},
		Pipeline: PipelineConfig{
			DispatchThreshold: 0.7,
			TemplateThreshold: 0.6,
			ConfidenceFloor:   0.75,
			ItemsWeight:       0.4,
			TotalsWeight:      0.4,
			MetadataWeight:    0.2,
			TotalsTolerance:   0.02,
			Reextract:         true,
			LearnTemplates:    true,
			DefaultCurrency:   "USD",
		},
		Templates: TemplateConfig{
			Store: "memory",
		},
		Queue: QueueConfig{
			Workers:        4,
			Size:           256,
			ProcessTimeout: 2 * time.Minute,
		},
		Log: LogConfig{
			Level: "info",
		},
	}
}

// LoadConfig loads configuration: defaults, then the YAML file named by
// EXTRACTOR_CONFIG_FILE (if set), then environment variables.
func LoadConfig() (*Config, error) {
	cfg := DefaultConfig()
	if path := os.Getenv("EXTRACTOR_CONFIG_FILE"); path != "" {
		if err := cfg.loadYAML(path); err != nil {
			return nil, err
		}
	}
	cfg.applyEnv()
	return cfg, nil
}

func (c *Config) loadYAML(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return NewAppError(CodeConfig, fmt.Sprintf("read config file %s", path), err)
	}
	if err := yaml.Unmarshal(data, c); err != nil {
		return NewAppError(CodeConfig, fmt.Sprintf("parse config file %s", path), err)
	}
	return nil
}

func (c *Config) applyEnv() {
	o := &c.OCR
	o.Primary = getEnv("OCR_PRIMARY", o.Primary)
	o.Fallback = getEnv("OCR_FALLBACK", o.Fallback)
	if os.Getenv("OCR_FALLBACK") == "none" {
		o.Fallback = ""
	}
	o.TesseractBin = getEnv("TESSERACT_BIN", o.TesseractBin)
	o.TesseractLang = getEnv("TESSERACT_LANG", o.TesseractLang)
	o.TessdataDir = getEnv("TESSDATA_PREFIX", o.TessdataDir)
	o.PSM = getEnvAsInt("TESSERACT_PSM", o.PSM)
	o.OEM = getEnvAsInt("TESSERACT_OEM", o.OEM)
	o.VisionCredentialsFile = getEnv("GOOGLE_APPLICATION_CREDENTIALS", o.VisionCredentialsFile)
	o.VisionAPIKey = getEnv("GOOGLE_VISION_API_KEY", o.VisionAPIKey)
	o.VisionEndpoint = getEnv("GOOGLE_VISION_ENDPOINT", o.VisionEndpoint)
	o.VisionRPS = getEnvAsFloat64("GOOGLE_VISION_RPS", o.VisionRPS)
	o.Timeout = getEnvAsDuration("OCR_TIMEOUT", o.Timeout)
	o.MaxAttempts = getEnvAsInt("OCR_MAX_ATTEMPTS", o.MaxAttempts)
	o.BaseDelay = getEnvAsDuration("OCR_BASE_DELAY", o.BaseDelay)
	o.Multiplier = getEnvAsFloat64("OCR_BACKOFF_MULTIPLIER", o.Multiplier)
	o.MaxDelay = getEnvAsDuration("OCR_MAX_DELAY", o.MaxDelay)
	o.MinTextLength = getEnvAsInt("OCR_MIN_TEXT_LENGTH", o.MinTextLength)
	o.CacheTTL = getEnvAsDuration("OCR_CACHE_TTL", o.CacheTTL)
	o.ArtifactCacheDir = getEnv("ARTIFACT_CACHE_DIR", o.ArtifactCacheDir)
	o.Grayscale = getEnvAsBool("IMAGE_GRAYSCALE", o.Grayscale)

	p := &c.Pipeline
	p.DispatchThreshold = getEnvAsFloat64("DISPATCH_THRESHOLD", p.DispatchThreshold)
	p.TemplateThreshold = getEnvAsFloat64("TEMPLATE_MATCH_THRESHOLD", p.TemplateThreshold)
	p.ConfidenceFloor = getEnvAsFloat64("CONFIDENCE_FLOOR", p.ConfidenceFloor)
	p.ItemsWeight = getEnvAsFloat64("WEIGHT_ITEMS", p.ItemsWeight)
	p.TotalsWeight = getEnvAsFloat64("WEIGHT_TOTALS", p.TotalsWeight)
	p.MetadataWeight = getEnvAsFloat64("WEIGHT_METADATA", p.MetadataWeight)
	p.TotalsTolerance = getEnvAsFloat64("TOTALS_TOLERANCE", p.TotalsTolerance)
	p.Reextract = getEnvAsBool("REEXTRACT_ENABLED", p.Reextract)
	p.LearnTemplates = getEnvAsBool("TEMPLATE_LEARNING", p.LearnTemplates)
	p.DefaultCurrency = getEnv("DEFAULT_CURRENCY", p.DefaultCurrency)

	t := &c.Templates
	t.Store = getEnv("TEMPLATE_STORE", t.Store)
	t.Path = getEnv("TEMPLATE_STORE_PATH", t.Path)
	t.DSN = getEnv("TEMPLATE_STORE_DSN", t.DSN)

	q := &c.Queue
	q.Workers = getEnvAsInt("QUEUE_WORKERS", q.Workers)
	q.Size = getEnvAsInt("QUEUE_SIZE", q.Size)
	q.ProcessTimeout = getEnvAsDuration("QUEUE_PROCESS_TIMEOUT", q.ProcessTimeout)

	c.Log.Level = getEnv("LOG_LEVEL", c.Log.Level)
}

// Helper functions for environment variable parsing
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvAsInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intVal, err := strconv.Atoi(value); err == nil {
			return intVal
		}
	}
	return defaultValue
}

func getEnvAsFloat64(key string, defaultValue float64) float64 {
	if value := os.Getenv(key); value != "" {
		if floatVal, err := strconv.ParseFloat(value, 64); err == nil {
			return floatVal
		}
	}
	return defaultValue
}

func getEnvAsBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if boolVal, err := strconv.ParseBool(value); err == nil {
			return boolVal
		}
	}
	return defaultValue
}

func getEnvAsDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if duration, err := time.ParseDuration(value); err == nil {
			return duration
		}
	}
	return defaultValue
}

var backendNames = []string{"tesseract", "tesseract-lib", "vision"}

// Validate validates the loaded configuration
func (c *Config) Validate() error {
	v := NewValidator()
	v.Field("ocr.primary", c.OCR.Primary, Required, OneOf(backendNames...)).
		Field("ocr.fallback", c.OCR.Fallback, OneOf(backendNames...)).
		Field("ocr.timeout", c.OCR.Timeout, Positive).
		Field("ocr.max_attempts", c.OCR.MaxAttempts, Positive).
		Field("ocr.base_delay", c.OCR.BaseDelay, Positive).
		Field("ocr.multiplier", c.OCR.Multiplier, Positive).
		Field("ocr.max_delay", c.OCR.MaxDelay, Positive).
		Field("pipeline.dispatch_threshold", c.Pipeline.DispatchThreshold, Probability).
		Field("pipeline.template_threshold", c.Pipeline.TemplateThreshold, Probability).
		Field("pipeline.confidence_floor", c.Pipeline.ConfidenceFloor, Probability).
		Field("pipeline.items_weight", c.Pipeline.ItemsWeight, Probability).
		Field("pipeline.totals_weight", c.Pipeline.TotalsWeight, Probability).
		Field("pipeline.metadata_weight", c.Pipeline.MetadataWeight, Probability).
		Field("pipeline.default_currency", c.Pipeline.DefaultCurrency, CurrencyCode).
		Field("templates.store", c.Templates.Store, Required, OneOf("memory", "bolt", "sqlite", "postgres")).
		Field("queue.workers", c.Queue.Workers, Positive).
		Field("queue.size", c.Queue.Size, Positive).
		Field("log.level", c.Log.Level, OneOf("debug", "info", "warn", "error"))

	if c.OCR.Fallback != "" && c.OCR.Fallback == c.OCR.Primary {
		v.Field("ocr.fallback", c.OCR.Fallback, func(name string, value interface{}) *ValidationError {
			return &ValidationError{Field: name, Value: value, Message: "must differ from ocr.primary"}
		})
	}
	switch c.Templates.Store {
	case "bolt", "sqlite":
		v.Field("templates.path", c.Templates.Path, Required)
	case "postgres":
		v.Field("templates.dsn", c.Templates.DSN, Required)
	}
	if err := v.AsAppError(CodeConfig); err != nil {
		return err
	}

	sum := c.Pipeline.ItemsWeight + c.Pipeline.TotalsWeight + c.Pipeline.MetadataWeight
	if sum < 0.999 || sum > 1.001 {
		return NewAppError(CodeConfig, fmt.Sprintf("confidence weights must sum to 1, got %.3f", sum), ErrInvalidInput)
	}
	return nil
}
