package core

import (
	"context"
	"fmt"
	"strings"

	"github.com/goliatone/go-config/cfgx"
	opts "github.com/goliatone/go-options"
)

type ConfigProvider interface {
	Load(ctx context.Context, defaults Config) (Config, error)
}

type RawConfigLoader interface {
	LoadRaw(ctx context.Context) (map[string]any, error)
}

type OptionsResolver interface {
	Resolve(defaults Config, loaded Config, runtime Config) (Config, error)
}

// LoadConfig layers defaults, provider values and runtime overrides, then
// validates the result.
func LoadConfig(ctx context.Context, provider ConfigProvider, resolver OptionsResolver, runtime Config) (Config, error) {
	defaults := DefaultConfig()
	if provider == nil {
		provider = NewCfgxConfigProvider(nil)
	}
	if resolver == nil {
		resolver = GoOptionsResolver{}
	}
	loaded, err := provider.Load(ctx, defaults)
	if err != nil {
		return Config{}, err
	}
	return resolver.Resolve(defaults, loaded, runtime)
}

type StaticRawConfigLoader struct {
	Values map[string]any
}

func (l StaticRawConfigLoader) LoadRaw(context.Context) (map[string]any, error) {
	if len(l.Values) == 0 {
		return map[string]any{}, nil
	}
	out := make(map[string]any, len(l.Values))
	for key, value := range l.Values {
		out[key] = value
	}
	return out, nil
}

type CfgxConfigProvider struct {
	Loader RawConfigLoader
}

func NewCfgxConfigProvider(loader RawConfigLoader) *CfgxConfigProvider {
	return &CfgxConfigProvider{Loader: loader}
}

// Load decodes raw values over defaults. Validation is deferred to the
// resolver so runtime overrides can still supply required fields.
func (p *CfgxConfigProvider) Load(ctx context.Context, defaults Config) (Config, error) {
	if p == nil {
		return defaults, nil
	}
	loader := p.Loader
	if loader == nil {
		loader = StaticRawConfigLoader{}
	}
	raw, err := loader.LoadRaw(ctx)
	if err != nil {
		return Config{}, err
	}
	cfg, err := cfgx.Build[Config](raw, cfgx.WithDefaults(defaults))
	if err != nil {
		return Config{}, fmt.Errorf("core: decode config: %w", err)
	}
	return cfg, nil
}

type GoOptionsResolver struct{}

func (GoOptionsResolver) Resolve(defaults Config, loaded Config, runtime Config) (Config, error) {
	defaultLayer := configToLayerMap(defaults, true)
	loadedLayer := configToLayerMap(loaded, false)
	runtimeLayer := configToLayerMap(runtime, false)

	stack, err := opts.NewStack(
		opts.NewLayer(
			opts.NewScope("defaults", 0),
			defaultLayer,
			opts.WithSnapshotID[map[string]any]("defaults"),
		),
		opts.NewLayer(
			opts.NewScope("config", 10),
			loadedLayer,
			opts.WithSnapshotID[map[string]any]("config"),
		),
		opts.NewLayer(
			opts.NewScope("runtime", 20),
			runtimeLayer,
			opts.WithSnapshotID[map[string]any]("runtime"),
		),
	)
	if err != nil {
		return Config{}, fmt.Errorf("core: options stack build failed: %w", err)
	}
	merged, err := stack.Merge()
	if err != nil {
		return Config{}, fmt.Errorf("core: options merge failed: %w", err)
	}
	resolved, err := cfgx.Build[Config](merged.Value,
		cfgx.WithDefaults(defaults),
		cfgx.WithValidator[Config]((*Config).Validate),
	)
	if err != nil {
		return Config{}, err
	}
	if err := resolved.Validate(); err != nil {
		return Config{}, err
	}
	return resolved, nil
}

func configToLayerMap(cfg Config, includeZero bool) map[string]any {
	layer := map[string]any{}
	if includeZero || strings.TrimSpace(cfg.ServiceName) != "" {
		layer["service_name"] = cfg.ServiceName
	}

	httpLayer := map[string]any{}
	if includeZero || strings.TrimSpace(cfg.HTTP.Addr) != "" {
		httpLayer["addr"] = cfg.HTTP.Addr
	}
	if includeZero || strings.TrimSpace(cfg.HTTP.WebhookPath) != "" {
		httpLayer["webhook_path"] = cfg.HTTP.WebhookPath
	}
	if includeZero || cfg.HTTP.ReadTimeout > 0 {
		httpLayer["read_timeout"] = cfg.HTTP.ReadTimeout
	}
	if includeZero || cfg.HTTP.WriteTimeout > 0 {
		httpLayer["write_timeout"] = cfg.HTTP.WriteTimeout
	}
	if includeZero || cfg.HTTP.MaxBodyBytes > 0 {
		httpLayer["max_body_bytes"] = cfg.HTTP.MaxBodyBytes
	}
	putSection(layer, "http", httpLayer)

	webhookLayer := map[string]any{}
	if includeZero || strings.TrimSpace(cfg.Webhook.ProviderID) != "" {
		webhookLayer["provider_id"] = cfg.Webhook.ProviderID
	}
	if includeZero || strings.TrimSpace(cfg.Webhook.Secret) != "" {
		webhookLayer["secret"] = cfg.Webhook.Secret
	}
	if includeZero || cfg.Webhook.Tolerance > 0 {
		webhookLayer["tolerance"] = cfg.Webhook.Tolerance
	}
	if includeZero || cfg.Webhook.LedgerEnabled {
		webhookLayer["ledger_enabled"] = cfg.Webhook.LedgerEnabled
	}
	putSection(layer, "webhook", webhookLayer)

	databaseLayer := map[string]any{}
	if includeZero || strings.TrimSpace(cfg.Database.Driver) != "" {
		databaseLayer["driver"] = cfg.Database.Driver
	}
	if includeZero || strings.TrimSpace(cfg.Database.DSN) != "" {
		databaseLayer["dsn"] = cfg.Database.DSN
	}
	if includeZero || cfg.Database.Debug {
		databaseLayer["debug"] = cfg.Database.Debug
	}
	if includeZero || cfg.Database.PingTimeout > 0 {
		databaseLayer["ping_timeout"] = cfg.Database.PingTimeout
	}
	putSection(layer, "database", databaseLayer)

	if includeZero || cfg.Sync.IdempotentDuplicates {
		layer["sync"] = map[string]any{
			"idempotent_duplicates": cfg.Sync.IdempotentDuplicates,
		}
	}

	kafkaLayer := map[string]any{}
	if includeZero || len(cfg.Kafka.Brokers) > 0 {
		kafkaLayer["brokers"] = append([]string(nil), cfg.Kafka.Brokers...)
	}
	if includeZero || strings.TrimSpace(cfg.Kafka.Topic) != "" {
		kafkaLayer["topic"] = cfg.Kafka.Topic
	}
	putSection(layer, "kafka", kafkaLayer)

	if includeZero || cfg.Cache.TTL > 0 {
		layer["cache"] = map[string]any{
			"ttl": cfg.Cache.TTL,
		}
	}

	logLayer := map[string]any{}
	if includeZero || strings.TrimSpace(cfg.Log.Format) != "" {
		logLayer["format"] = cfg.Log.Format
	}
	if includeZero || strings.TrimSpace(cfg.Log.Level) != "" {
		logLayer["level"] = cfg.Log.Level
	}
	putSection(layer, "log", logLayer)
	return layer
}

func putSection(layer map[string]any, key string, section map[string]any) {
	if len(section) == 0 {
		return
	}
	layer[key] = section
}
