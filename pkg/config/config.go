package config

import (
	"reflect"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"

	"github.com/ajitpratap0/tap-returnless/pkg/errors"
)

// DateLayout is the accepted layout of start_date.
const DateLayout = "2006-01-02"

// DefaultBaseURL is the Returnless API root.
const DefaultBaseURL = "https://api-v2.returnless.com/2023-01"

// TapConfig is the complete tap configuration.
type TapConfig struct {
	// AuthToken is sent as a bearer credential. Empty means unauthenticated.
	AuthToken string `yaml:"auth_token" json:"auth_token"`
	// StartDate is the watermark (YYYY-MM-DD). Empty disables filtering.
	StartDate string `yaml:"start_date" json:"start_date" validate:"omitempty,datetime=2006-01-02"`
	// BaseURL is the API root every stream path is appended to.
	BaseURL   string `yaml:"base_url" json:"base_url" validate:"required,url"`
	UserAgent string `yaml:"user_agent" json:"user_agent"`

	// Streams selects a subset of the catalog. Empty selects everything.
	Streams []string `yaml:"streams" json:"streams" validate:"dive,required"`
	// ValidateRecords checks every emitted record against its schema.
	ValidateRecords bool `yaml:"validate_records" json:"validate_records"`

	HTTP          HTTPConfig          `yaml:"http" json:"http"`
	Output        OutputConfig        `yaml:"output" json:"output"`
	Observability ObservabilityConfig `yaml:"observability" json:"observability"`
}

// HTTPConfig controls the API client.
type HTTPConfig struct {
	// Timeout bounds a single request, including reading the body
	Timeout time.Duration `yaml:"timeout" json:"timeout" validate:"gt=0"`
	// RateLimitPerSec limits requests per second (0 = unlimited)
	RateLimitPerSec float64 `yaml:"rate_limit_per_sec" json:"rate_limit_per_sec" validate:"gte=0"`
	RateBurst       int     `yaml:"rate_burst" json:"rate_burst" validate:"gte=0"`

	// MaxRetries is the retry budget for retryable failures
	MaxRetries        int           `yaml:"max_retries" json:"max_retries" validate:"gte=0,lte=20"`
	RetryInitialDelay time.Duration `yaml:"retry_initial_delay" json:"retry_initial_delay" validate:"gte=0"`
	RetryMaxDelay     time.Duration `yaml:"retry_max_delay" json:"retry_max_delay" validate:"gtefield=RetryInitialDelay"`

	CircuitBreaker   bool          `yaml:"circuit_breaker" json:"circuit_breaker"`
	FailureThreshold int           `yaml:"failure_threshold" json:"failure_threshold" validate:"gte=0"`
	ResetTimeout     time.Duration `yaml:"reset_timeout" json:"reset_timeout" validate:"gte=0"`

	EnableHTTP2 bool `yaml:"enable_http2" json:"enable_http2"`
}

// OutputConfig controls where messages are written.
type OutputConfig struct {
	// Path is the output file. Empty or "-" means stdout.
	Path string `yaml:"path" json:"path"`
	// Compression applies to file output only.
	Compression      string `yaml:"compression" json:"compression" validate:"omitempty,oneof=none gzip zstd s2 snappy lz4"`
	CompressionLevel string `yaml:"compression_level" json:"compression_level" validate:"omitempty,oneof=fastest default better best"`
}

// ObservabilityConfig controls logging, metrics and tracing.
type ObservabilityConfig struct {
	LogLevel    string `yaml:"log_level" json:"log_level" validate:"omitempty,oneof=debug info warn error"`
	LogEncoding string `yaml:"log_encoding" json:"log_encoding" validate:"omitempty,oneof=json console"`
	// MetricsAddr serves Prometheus metrics while syncing when set, e.g. ":9102"
	MetricsAddr string `yaml:"metrics_addr" json:"metrics_addr" validate:"omitempty,hostname_port"`
	// Tracing exports one span per stream sync to stderr.
	Tracing bool `yaml:"tracing" json:"tracing"`
}

// NewTapConfig returns a configuration with defaults applied.
func NewTapConfig() *TapConfig {
	return &TapConfig{
		BaseURL:   DefaultBaseURL,
		UserAgent: "tap-returnless",
		HTTP: HTTPConfig{
			Timeout:           60 * time.Second,
			RateLimitPerSec:   5,
			RateBurst:         5,
			MaxRetries:        5,
			RetryInitialDelay: 1 * time.Second,
			RetryMaxDelay:     30 * time.Second,
			CircuitBreaker:    true,
			FailureThreshold:  10,
			ResetTimeout:      30 * time.Second,
			EnableHTTP2:       true,
		},
		Output: OutputConfig{
			Compression: "none",
		},
		Observability: ObservabilityConfig{
			LogLevel:    "info",
			LogEncoding: "json",
		},
	}
}

var validate = newValidator()

func newValidator() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())
	v.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name := strings.SplitN(fld.Tag.Get("yaml"), ",", 2)[0]
		if name == "" || name == "-" {
			return fld.Name
		}
		return name
	})
	return v
}

// Validate checks the configuration
func (c *TapConfig) Validate() error {
	if err := validate.Struct(c); err != nil {
		var verrs validator.ValidationErrors
		if errors.As(err, &verrs) {
			msgs := make([]string, 0, len(verrs))
			for _, fe := range verrs {
				msgs = append(msgs, fieldMessage(fe))
			}
			return errors.New(errors.ErrorTypeConfig, strings.Join(msgs, "; "))
		}
		return errors.Wrap(err, errors.ErrorTypeConfig, "invalid configuration")
	}
	return nil
}

func fieldMessage(fe validator.FieldError) string {
	field := strings.TrimPrefix(fe.Namespace(), "TapConfig.")
	switch fe.Tag() {
	case "datetime":
		return field + " must be a date in YYYY-MM-DD format"
	case "required":
		return field + " is required"
	case "url":
		return field + " must be a valid URL"
	case "oneof":
		return field + " must be one of [" + fe.Param() + "]"
	default:
		return field + " failed " + fe.Tag() + " check"
	}
}

// Watermark returns start_date promoted to the start of that day in UTC.
// ok is false when no start date is configured.
func (c *TapConfig) Watermark() (watermark time.Time, ok bool, err error) {
	if strings.TrimSpace(c.StartDate) == "" {
		return time.Time{}, false, nil
	}
	t, err := time.ParseInLocation(DateLayout, strings.TrimSpace(c.StartDate), time.UTC)
	if err != nil {
		return time.Time{}, false, errors.Wrapf(err, errors.ErrorTypeParse, "invalid start_date %q", c.StartDate)
	}
	return t, true, nil
}

// Selected reports whether stream is selected for sync.
func (c *TapConfig) Selected(stream string) bool {
	if len(c.Streams) == 0 {
		return true
	}
	for _, s := range c.Streams {
		if s == stream {
			return true
		}
	}
	return false
}
