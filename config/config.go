// Package config holds the service configuration, read from the environment
// the way frame services are.
package config

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/joho/godotenv"
	"github.com/pitabwire/frame/config"

	"github.com/ibsar/voicedialog/internal/logging"
	"github.com/ibsar/voicedialog/pkg/dialog"
	"github.com/ibsar/voicedialog/pkg/nlu"
	"github.com/ibsar/voicedialog/pkg/notify"
	"github.com/ibsar/voicedialog/pkg/transcript"
	"github.com/ibsar/voicedialog/pkg/urlvalidation"
	"github.com/ibsar/voicedialog/pkg/wizard"
)

// VoiceConfig configures the voice dialog service.
type VoiceConfig struct {
	config.ConfigurationDefault

	// Backend API
	BackendURL        string `envDefault:"http://localhost:4000/api" env:"BACKEND_URL"          validate:"required,url"`
	BackendTimeoutSec int    `envDefault:"10"                        env:"BACKEND_TIMEOUT_SEC"  validate:"min=1"`
	CatalogTTLSec     int    `envDefault:"60"                        env:"CATALOG_TTL_SEC"      validate:"min=0"`
	BreakerFailures   int    `envDefault:"5"                         env:"BREAKER_FAILURES"     validate:"min=1"`
	BreakerResetSec   int    `envDefault:"30"                        env:"BREAKER_RESET_SEC"    validate:"min=1"`

	// Dialog
	MenuDir          string `envDefault:""      env:"MENU_DIR"`
	SpeechLocale     string `envDefault:"ar-TN" env:"SPEECH_LOCALE"      validate:"required"`
	MenuTimeoutMs    int    `envDefault:"10000" env:"MENU_TIMEOUT_MS"    validate:"min=1000"`
	WizardTimeoutMs  int    `envDefault:"8000"  env:"WIZARD_TIMEOUT_MS"  validate:"min=1000"`
	SpeakTimeoutMs   int    `envDefault:"15000" env:"SPEAK_TIMEOUT_MS"   validate:"min=1000"`
	DebounceMs       int    `envDefault:"1800"  env:"DEBOUNCE_MS"        validate:"min=100"`
	NameAttempts     int    `envDefault:"3"     env:"NAME_ATTEMPTS"      validate:"min=1"`
	ReadListLimit    int    `envDefault:"3"     env:"READ_LIST_LIMIT"    validate:"min=1,max=10"`
	ProductChoices   int    `envDefault:"5"     env:"PRODUCT_CHOICES"    validate:"min=1,max=9"`

	// Fallback classifier
	Classifier          string  `envDefault:"keyword"     env:"CLASSIFIER"             validate:"oneof=none keyword llm"`
	MinIntentConfidence float64 `envDefault:"0.6"         env:"MIN_INTENT_CONFIDENCE"  validate:"gte=0,lte=1"`
	ClassifierCacheSize int     `envDefault:"512"         env:"CLASSIFIER_CACHE_SIZE"  validate:"min=1"`
	LLMAPIKey           string  `envDefault:""            env:"LLM_API_KEY"            validate:"required_if=Classifier llm"`
	LLMModel            string  `envDefault:"gpt-4o-mini" env:"LLM_MODEL"`
	LLMBaseURL          string  `envDefault:""            env:"LLM_BASE_URL"           validate:"omitempty,url"`
	LLMTimeoutMs        int     `envDefault:"8000"        env:"LLM_TIMEOUT_MS"         validate:"min=100"`
	LLMRequestsPerMin   int     `envDefault:"30"          env:"LLM_REQUESTS_PER_MIN"   validate:"min=0"`

	// Transcript journal
	JournalDriver   string `envDefault:"memory"                   env:"JOURNAL_DRIVER"    validate:"oneof=none memory redis sql"`
	JournalRedisURL string `envDefault:"redis://localhost:6379/0" env:"JOURNAL_REDIS_URL" validate:"required_if=JournalDriver redis"`
	JournalMaxTurns int    `envDefault:"200"                      env:"JOURNAL_MAX_TURNS" validate:"min=1"`
	JournalTTLHours int    `envDefault:"24"                       env:"JOURNAL_TTL_HOURS" validate:"min=1"`

	// Browser bridge
	BridgePath     string `envDefault:"/ws" env:"BRIDGE_PATH"     validate:"startswith=/"`
	AllowedOrigins string `envDefault:""    env:"ALLOWED_ORIGINS"`

	// Event endpoints
	NotifyStore         string `envDefault:"memory" env:"NOTIFY_STORE"           validate:"oneof=none memory sql"`
	NotifyMaxAttempts   int    `envDefault:"5"      env:"NOTIFY_MAX_ATTEMPTS"    validate:"min=1,max=20"`
	NotifyTimeoutSec    int    `envDefault:"10"     env:"NOTIFY_TIMEOUT_SEC"     validate:"min=1"`
	NotifyBackoffSec    int    `envDefault:"2"      env:"NOTIFY_BACKOFF_SEC"     validate:"min=1"`
	NotifyBackoffMaxSec int    `envDefault:"300"    env:"NOTIFY_BACKOFF_MAX_SEC" validate:"gtefield=NotifyBackoffSec"`
	NotifyAllowPrivate  bool   `envDefault:"false"  env:"NOTIFY_ALLOW_PRIVATE"`

	// Service
	RequireAuth        bool `envDefault:"false" env:"REQUIRE_AUTH"`
	WorkerPoolCount    int  `envDefault:"4"     env:"WORKER_POOL_COUNT"    validate:"min=1"`
	WorkerPoolCapacity int  `envDefault:"1000"  env:"WORKER_POOL_CAPACITY" validate:"min=1"`
	SessionIdleMinutes int  `envDefault:"30"    env:"SESSION_IDLE_MINUTES" validate:"min=1"`

	// Logging
	LogFile       string `envDefault:""     env:"LOG_FILE"`
	LogFileLevel  string `envDefault:"info" env:"LOG_FILE_LEVEL"  validate:"oneof=debug info warn warning error"`
	LogMaxSizeMB  int    `envDefault:"50"   env:"LOG_MAX_SIZE_MB" validate:"min=1"`
	LogMaxBackups int    `envDefault:"5"    env:"LOG_MAX_BACKUPS" validate:"min=0"`
	LogMaxAgeDays int    `envDefault:"14"   env:"LOG_MAX_AGE_DAYS" validate:"min=0"`
}

var validate = validator.New(validator.WithRequiredStructEnabled())

// Validate checks field constraints.
func (c *VoiceConfig) Validate() error {
	if err := validate.StructExcept(c, "ConfigurationDefault"); err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}
	return nil
}

// Dialog returns the supervisor settings.
func (c *VoiceConfig) Dialog() dialog.Config {
	return dialog.Config{
		MenuTimeout:         time.Duration(c.MenuTimeoutMs) * time.Millisecond,
		WizardTimeout:       time.Duration(c.WizardTimeoutMs) * time.Millisecond,
		SpeakTimeout:        time.Duration(c.SpeakTimeoutMs) * time.Millisecond,
		Debounce:            time.Duration(c.DebounceMs) * time.Millisecond,
		Locale:              c.SpeechLocale,
		MinIntentConfidence: c.MinIntentConfidence,
		ListLimit:           c.ReadListLimit,
		Wizard: wizard.Config{
			NameAttempts: c.NameAttempts,
			HistoryLimit: c.ReadListLimit,
			Candidates:   c.ProductChoices,
		},
	}
}

// NLU returns the classifier options.
func (c *VoiceConfig) NLU() nlu.Options {
	return nlu.Options{
		LLM: nlu.LLMConfig{
			APIKey:            c.LLMAPIKey,
			Model:             c.LLMModel,
			BaseURL:           c.LLMBaseURL,
			Timeout:           time.Duration(c.LLMTimeoutMs) * time.Millisecond,
			RequestsPerMinute: c.LLMRequestsPerMin,
		},
		MinConfidence: c.MinIntentConfidence,
		CacheSize:     c.ClassifierCacheSize,
	}
}

// Journal returns the transcript store options. db backs the sql driver.
func (c *VoiceConfig) Journal(db transcript.DB) transcript.Options {
	return transcript.Options{
		MaxTurns: c.JournalMaxTurns,
		TTL:      time.Duration(c.JournalTTLHours) * time.Hour,
		RedisURL: c.JournalRedisURL,
		DB:       db,
	}
}

// Logging returns the file logging options.
func (c *VoiceConfig) Logging() logging.Options {
	return logging.Options{
		Level:      c.LogFileLevel,
		File:       c.LogFile,
		MaxSizeMB:  c.LogMaxSizeMB,
		MaxBackups: c.LogMaxBackups,
		MaxAgeDays: c.LogMaxAgeDays,
		Compress:   true,
	}
}

// UsesDatastore reports whether any component needs frame's datastore.
func (c *VoiceConfig) UsesDatastore() bool {
	return c.JournalDriver == transcript.DriverSQL || c.NotifyStore == "sql"
}

// Notify returns the event endpoint delivery settings.
func (c *VoiceConfig) Notify() notify.Config {
	nc := notify.Config{
		MaxAttempts:     c.NotifyMaxAttempts,
		Timeout:         time.Duration(c.NotifyTimeoutSec) * time.Second,
		BackoffInitial:  time.Duration(c.NotifyBackoffSec) * time.Second,
		BackoffMax:      time.Duration(c.NotifyBackoffMaxSec) * time.Second,
		BreakerFailures: c.BreakerFailures,
		BreakerReset:    time.Duration(c.BreakerResetSec) * time.Second,
	}
	if c.NotifyAllowPrivate {
		nc.URLOptions = []urlvalidation.Option{urlvalidation.AllowPrivateIPs()}
	}
	return nc
}

// LoadEnvFiles loads the given .env files into the environment. Missing
// files are skipped; variables already set win.
func LoadEnvFiles(files ...string) error {
	for _, f := range files {
		if _, err := os.Stat(f); errors.Is(err, fs.ErrNotExist) {
			continue
		}
		if err := godotenv.Load(f); err != nil {
			return fmt.Errorf("load %s: %w", f, err)
		}
	}
	return nil
}

// Load reads .env, then the environment, and validates the result.
func Load(ctx context.Context) (VoiceConfig, error) {
	if err := LoadEnvFiles(".env"); err != nil {
		return VoiceConfig{}, err
	}
	cfg, err := config.LoadWithOIDC[VoiceConfig](ctx)
	if err != nil {
		return VoiceConfig{}, fmt.Errorf("loading config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return VoiceConfig{}, err
	}
	return cfg, nil
}
