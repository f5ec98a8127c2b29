package core

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	envprovider "github.com/goliatone/go-config/koanf/providers/env"
	"github.com/goliatone/go-config/koanf/merge"
	glog "github.com/goliatone/go-logger/glog"
)

const (
	// EnvPrefix scopes service variables. Nesting uses "__", so
	// IDENTITY_SYNC_WEBHOOK__LEDGER_ENABLED sets webhook.ledger_enabled.
	EnvPrefix = "IDENTITY_SYNC_"

	envDelimiter = "__"
)

// envAliases binds the unprefixed names deployments already export.
// Prefixed variables win over an alias for the same path.
var envAliases = map[string]string{
	"CLERK_WEBHOOK_SECRET": "webhook.secret",
	"DATABASE_URL":         "database.dsn",
	"HTTP_ADDR":            "http.addr",
	"KAFKA_BROKERS":        "kafka.brokers",
	"KAFKA_TOPIC":          "kafka.topic",
	"LOG_FORMAT":           "log.format",
	"LOG_LEVEL":            "log.level",
}

// listPaths hold comma separated values.
var listPaths = map[string]bool{
	"kafka.brokers": true,
}

// EnvConfigLoader reads the process environment through the go-config env
// provider. Values stay strings; cfgx decode hooks type them.
type EnvConfigLoader struct {
	Prefix string
	Logger glog.Logger
}

func NewEnvConfigLoader() *EnvConfigLoader {
	return &EnvConfigLoader{Prefix: EnvPrefix}
}

func (l *EnvConfigLoader) LoadRaw(context.Context) (map[string]any, error) {
	prefix := EnvPrefix
	var logger glog.Logger
	if l != nil {
		if trimmed := strings.TrimSpace(l.Prefix); trimmed != "" {
			prefix = trimmed
		}
		logger = l.Logger
	}

	raw, err := readEnv(envprovider.ProviderWithValue("", ".", aliasEnvKey), logger)
	if err != nil {
		return nil, err
	}
	scoped, err := readEnv(envprovider.ProviderWithValue(prefix, ".", prefixedEnvKey(prefix)), logger)
	if err != nil {
		return nil, err
	}
	if err := merge.IgnoringNullValues(scoped, raw); err != nil {
		return nil, fmt.Errorf("core: merge env config: %w", err)
	}
	return raw, nil
}

func aliasEnvKey(key string, value string) (string, any) {
	path, ok := envAliases[key]
	if !ok {
		return "", nil
	}
	return envValue(path, value)
}

func prefixedEnvKey(prefix string) func(string, string) (string, any) {
	return func(key string, value string) (string, any) {
		path := strings.ToLower(strings.TrimPrefix(key, prefix))
		path = strings.ReplaceAll(path, envDelimiter, ".")
		return envValue(path, value)
	}
}

// envValue drops blank variables so they never mask defaults.
func envValue(path string, value string) (string, any) {
	value = strings.TrimSpace(value)
	if path == "" || value == "" {
		return "", nil
	}
	if !listPaths[path] {
		return path, value
	}
	items := make([]string, 0)
	for _, item := range strings.Split(value, ",") {
		if trimmed := strings.TrimSpace(item); trimmed != "" {
			items = append(items, trimmed)
		}
	}
	if len(items) == 0 {
		return "", nil
	}
	return path, items
}

func readEnv(provider *envprovider.Env, logger glog.Logger) (map[string]any, error) {
	provider.SetLogger(envLogger{logger: logger})
	data, err := provider.ReadBytes()
	if err != nil {
		return nil, BadInput("core: read environment: "+err.Error(), nil)
	}
	out := map[string]any{}
	if err := json.Unmarshal(data, &out); err != nil {
		return nil, fmt.Errorf("core: decode environment: %w", err)
	}
	return out, nil
}

// envLogger adapts glog to the go-config logger. Debug lines echo raw
// variable values, secrets included, so they are dropped.
type envLogger struct {
	logger glog.Logger
}

func (envLogger) Debug(string, ...any) {}

func (e envLogger) Info(format string, args ...any) {
	if e.logger != nil {
		e.logger.Info(fmt.Sprintf(format, args...))
	}
}

func (e envLogger) Error(format string, args ...any) {
	if e.logger != nil {
		e.logger.Error(fmt.Sprintf(format, args...))
	}
}

var _ RawConfigLoader = (*EnvConfigLoader)(nil)
