package config

import (
	"os"
	"path/filepath"
	"strings"

	"github.com/goccy/go-json"
	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"

	"github.com/ajitpratap0/tap-returnless/pkg/errors"
)

// EnvPrefix prefixes every environment variable the tap reads.
const EnvPrefix = "RETURNLESS"

// Load loads a configuration file into config. Files ending in .json are
// decoded as JSON, everything else as YAML. ${VAR_NAME} references are
// substituted from the environment before decoding.
func Load(filePath string, config interface{}) error {
	data, err := os.ReadFile(filePath) //nolint:gosec // G304: path comes from the operator
	if err != nil {
		return errors.Wrapf(err, errors.ErrorTypeFile, "failed to read config file %s", filePath)
	}

	content := []byte(substituteEnvVars(string(data)))

	if strings.EqualFold(filepath.Ext(filePath), ".json") {
		// Route JSON through a YAML node so both formats share the same
		// field tags and duration parsing ("30s").
		var raw interface{}
		if err := json.Unmarshal(content, &raw); err != nil {
			return errors.Wrap(err, errors.ErrorTypeConfig, "failed to parse JSON config")
		}
		var node yaml.Node
		if err := node.Encode(raw); err != nil {
			return errors.Wrap(err, errors.ErrorTypeConfig, "failed to convert JSON config")
		}
		if err := node.Decode(config); err != nil {
			return errors.Wrap(err, errors.ErrorTypeConfig, "failed to decode JSON config")
		}
		return nil
	}

	if err := yaml.Unmarshal(content, config); err != nil {
		return errors.Wrap(err, errors.ErrorTypeConfig, "failed to parse YAML config")
	}
	return nil
}

// Save saves a configuration to a YAML file
func Save(filePath string, config interface{}) error {
	data, err := yaml.Marshal(config)
	if err != nil {
		return errors.Wrap(err, errors.ErrorTypeConfig, "failed to marshal YAML")
	}

	if err := os.WriteFile(filePath, data, 0o600); err != nil {
		return errors.Wrap(err, errors.ErrorTypeFile, "failed to write config file")
	}

	return nil
}

// LoadTapConfig builds a TapConfig from defaults, an optional file and the
// environment, then validates it.
func LoadTapConfig(filePath string) (*TapConfig, error) {
	cfg := NewTapConfig()
	if filePath != "" {
		if err := Load(filePath, cfg); err != nil {
			return nil, err
		}
	}
	if err := ApplyEnv(cfg); err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// ApplyEnv overlays RETURNLESS_* environment variables onto cfg. Nested
// keys use underscores, e.g. RETURNLESS_HTTP_MAX_RETRIES.
func ApplyEnv(cfg *TapConfig) error {
	v := viper.New()
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	for _, b := range envBindings {
		if err := v.BindEnv(b.key); err != nil {
			return errors.Wrapf(err, errors.ErrorTypeConfig, "failed to bind %s", b.key)
		}
	}

	for _, b := range envBindings {
		if !v.IsSet(b.key) {
			continue
		}
		b.apply(v, cfg)
	}
	return nil
}

type envBinding struct {
	key   string
	apply func(v *viper.Viper, cfg *TapConfig)
}

var envBindings = []envBinding{
	{"auth_token", func(v *viper.Viper, c *TapConfig) { c.AuthToken = v.GetString("auth_token") }},
	{"start_date", func(v *viper.Viper, c *TapConfig) { c.StartDate = v.GetString("start_date") }},
	{"base_url", func(v *viper.Viper, c *TapConfig) { c.BaseURL = v.GetString("base_url") }},
	{"user_agent", func(v *viper.Viper, c *TapConfig) { c.UserAgent = v.GetString("user_agent") }},
	{"streams", func(v *viper.Viper, c *TapConfig) { c.Streams = SplitList(v.GetString("streams")) }},
	{"validate_records", func(v *viper.Viper, c *TapConfig) { c.ValidateRecords = v.GetBool("validate_records") }},
	{"http.timeout", func(v *viper.Viper, c *TapConfig) { c.HTTP.Timeout = v.GetDuration("http.timeout") }},
	{"http.max_retries", func(v *viper.Viper, c *TapConfig) { c.HTTP.MaxRetries = v.GetInt("http.max_retries") }},
	{"http.rate_limit_per_sec", func(v *viper.Viper, c *TapConfig) { c.HTTP.RateLimitPerSec = v.GetFloat64("http.rate_limit_per_sec") }},
	{"output.path", func(v *viper.Viper, c *TapConfig) { c.Output.Path = v.GetString("output.path") }},
	{"output.compression", func(v *viper.Viper, c *TapConfig) { c.Output.Compression = v.GetString("output.compression") }},
	{"observability.log_level", func(v *viper.Viper, c *TapConfig) { c.Observability.LogLevel = v.GetString("observability.log_level") }},
	{"observability.metrics_addr", func(v *viper.Viper, c *TapConfig) {
		c.Observability.MetricsAddr = v.GetString("observability.metrics_addr")
	}},
}

// SplitList splits a comma separated list, dropping blanks.
func SplitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}

// substituteEnvVars replaces ${VAR_NAME} with environment variable values
func substituteEnvVars(content string) string {
	var b strings.Builder
	for {
		start := strings.Index(content, "${")
		if start == -1 {
			break
		}
		end := strings.Index(content[start:], "}")
		if end == -1 {
			break
		}
		end += start

		b.WriteString(content[:start])
		b.WriteString(os.Getenv(content[start+2 : end]))
		content = content[end+1:]
	}
	b.WriteString(content)
	return b.String()
}
