package config

import (
	"os"
	"regexp"
	"strconv"
	"strings"

	"gopkg.in/yaml.v3"
)

// envVarPattern matches ${VAR_NAME} patterns in strings.
var envVarPattern = regexp.MustCompile(`\$\{([A-Za-z_][A-Za-z0-9_]*)\}`)

// expandEnvVars replaces ${VAR} patterns with environment variable values.
// Unset variables are left unchanged.
func expandEnvVars(s string) string {
	return envVarPattern.ReplaceAllStringFunc(s, func(match string) string {
		if val, ok := os.LookupEnv(match[2 : len(match)-1]); ok {
			return val
		}
		return match
	})
}

// expandSensitiveFields resolves ${ENV_VAR} references in secrets so they
// need not be written into the config file.
func expandSensitiveFields(cfg *Config) {
	cfg.Gateway.Auth.Token = expandEnvVars(cfg.Gateway.Auth.Token)
	cfg.Gateway.Auth.Password = expandEnvVars(cfg.Gateway.Auth.Password)
	cfg.Gateway.InboundSecret = expandEnvVars(cfg.Gateway.InboundSecret)
	if cfg.SMS.Default != nil {
		cfg.SMS.Default.Token = expandEnvVars(cfg.SMS.Default.Token)
	}
	for sim, gw := range cfg.SMS.SIMs {
		gw.Token = expandEnvVars(gw.Token)
		cfg.SMS.SIMs[sim] = gw
	}
}

// Load reads the config file, applies environment overrides, and returns
// a merged Config. Missing files produce defaults only.
func Load(path string) (Config, error) {
	cfg := Defaults()

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			applyEnvOverrides(&cfg)
			return cfg, nil
		}
		return cfg, err
	}

	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return cfg, &ConfigError{Message: "failed to parse config: " + err.Error()}
	}

	applyDefaults(&cfg)
	applyEnvOverrides(&cfg)
	expandSensitiveFields(&cfg)
	return cfg, nil
}

// LoadRaw reads the config file into a generic map for path-based access.
func LoadRaw(path string) (map[string]any, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return map[string]any{}, nil
		}
		return nil, err
	}

	var raw map[string]any
	if err := yaml.Unmarshal(data, &raw); err != nil {
		return nil, &ConfigError{Message: "failed to parse config: " + err.Error()}
	}
	if raw == nil {
		raw = map[string]any{}
	}
	return raw, nil
}

// SaveRaw writes a generic map back to a YAML config file.
func SaveRaw(path string, raw map[string]any) error {
	data, err := yaml.Marshal(raw)
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0o600)
}

func defaultInt(v *int, def int) {
	if *v == 0 {
		*v = def
	}
}

func defaultString(v *string, def string) {
	if *v == "" {
		*v = def
	}
}

// applyDefaults fills zero-value fields with sensible defaults.
func applyDefaults(cfg *Config) {
	defaultInt(&cfg.Gateway.Port, DefaultPort)
	defaultString(&cfg.Gateway.Bind, "loopback")
	defaultString(&cfg.Gateway.Auth.Mode, "token")

	f := &cfg.Forwarding
	defaultInt(&f.MaxAttempts, DefaultMaxAttempts)
	defaultInt(&f.BackoffMs, DefaultBackoffMs)
	defaultInt(&f.WaitBudgetMs, DefaultWaitBudgetMs)
	defaultInt(&f.Webhook.ConnectTimeoutMs, DefaultConnectTimeoutMs)
	defaultInt(&f.Webhook.ReadTimeoutMs, DefaultReadTimeoutMs)
	defaultInt(&f.Webhook.TotalTimeoutMs, DefaultTotalTimeoutMs)

	defaultInt(&cfg.OutcomeLog.Retention, DefaultRetention)
	defaultInt(&cfg.OutcomeLog.MaxLineLength, DefaultMaxLineLength)

	defaultString(&cfg.Logging.Level, "info")
	defaultString(&cfg.Logging.ConsoleStyle, "pretty")
}

// applyEnvOverrides reads SMSRELAY_* environment variables and overrides
// config values.
func applyEnvOverrides(cfg *Config) {
	if v := os.Getenv("SMSRELAY_GATEWAY_PORT"); v != "" {
		if port, err := strconv.Atoi(v); err == nil {
			cfg.Gateway.Port = port
		}
	}
	if v := os.Getenv("SMSRELAY_GATEWAY_BIND"); v != "" {
		cfg.Gateway.Bind = v
	}
	if v := os.Getenv("SMSRELAY_GATEWAY_TOKEN"); v != "" {
		cfg.Gateway.Auth.Token = v
	}
	if v := os.Getenv("SMSRELAY_LOG_LEVEL"); v != "" {
		cfg.Logging.Level = strings.ToLower(v)
	}
	if v := os.Getenv("SMSRELAY_STORE_PATH"); v != "" {
		cfg.Store.Path = v
	}
	if v := os.Getenv("SMSRELAY_FORWARDING_ENABLED"); v != "" {
		if on, err := strconv.ParseBool(v); err == nil {
			cfg.Forwarding.Enabled = &on
		}
	}
}
