package identitysync

import (
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/goliatone/go-identity-sync/adapters/gologger"
	"github.com/goliatone/go-identity-sync/core"
	"github.com/goliatone/go-identity-sync/inbound"
	"github.com/goliatone/go-identity-sync/publish"
	identityquery "github.com/goliatone/go-identity-sync/query"
	sqlstore "github.com/goliatone/go-identity-sync/store/sql"
	"github.com/goliatone/go-identity-sync/usersync"
	"github.com/goliatone/go-identity-sync/webhooks"
	repositorycache "github.com/goliatone/go-repository-cache/cache"
)

type Config = core.Config

type Logger = core.Logger

type LoggerProvider = core.LoggerProvider

type MetricsRecorder = core.MetricsRecorder

func DefaultConfig() Config {
	return core.DefaultConfig()
}

type Option func(*options)

type options struct {
	logger         core.Logger
	loggerProvider core.LoggerProvider
	metrics        core.MetricsRecorder
	publisher      core.UserEventPublisher
	cacheService   repositorycache.CacheService
	ledger         webhooks.DeliveryLedger
	now            func() time.Time
}

func WithLogger(logger core.Logger) Option {
	return func(o *options) {
		o.logger = logger
	}
}

func WithLoggerProvider(provider core.LoggerProvider) Option {
	return func(o *options) {
		o.loggerProvider = provider
	}
}

func WithMetrics(metrics core.MetricsRecorder) Option {
	return func(o *options) {
		o.metrics = metrics
	}
}

// WithPublisher overrides the Kafka publisher built from Config.Kafka.
func WithPublisher(publisher core.UserEventPublisher) Option {
	return func(o *options) {
		o.publisher = publisher
	}
}

func WithCacheService(cacheService repositorycache.CacheService) Option {
	return func(o *options) {
		o.cacheService = cacheService
	}
}

// WithDeliveryLedger overrides the SQL ledger enabled by
// Config.Webhook.LedgerEnabled.
func WithDeliveryLedger(ledger webhooks.DeliveryLedger) Option {
	return func(o *options) {
		o.ledger = ledger
	}
}

func WithClock(now func() time.Time) Option {
	return func(o *options) {
		o.now = now
	}
}

// Service is the assembled webhook receiver.
type Service struct {
	config    Config
	logger    core.Logger
	factory   *sqlstore.RepositoryFactory
	processor *webhooks.Processor
	router    http.Handler
	facade    *Facade
	closers   []func() error
}

// New validates cfg and wires the webhook pipeline over the persistence
// client, which may be a *persistence.Client, *bun.DB or anything exposing
// DB() *bun.DB.
func New(cfg Config, persistenceClient any, opts ...Option) (*Service, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	o := options{}
	for _, opt := range opts {
		if opt != nil {
			opt(&o)
		}
	}
	_, logger := gologger.Resolve(cfg.ServiceName, o.loggerProvider, o.logger)

	factory, err := sqlstore.NewRepositoryFactory().BuildStores(persistenceClient)
	if err != nil {
		return nil, err
	}
	svc := &Service{config: cfg, logger: logger, factory: factory}

	svixOpts := []webhooks.SvixOption{webhooks.WithTolerance(cfg.Webhook.Tolerance)}
	if o.now != nil {
		svixOpts = append(svixOpts, webhooks.WithClock(o.now))
	}
	template, err := webhooks.NewClerkWebhookTemplate(cfg.Webhook.Secret, svixOpts...)
	if err != nil {
		return nil, err
	}

	reader, err := svc.userReader(o.cacheService)
	if err != nil {
		return nil, err
	}
	publisher, err := svc.publisher(o.publisher)
	if err != nil {
		return nil, err
	}

	handlerOpts := []usersync.Option{
		usersync.WithUserReader(reader),
		usersync.WithIdempotentDuplicates(cfg.Sync.IdempotentDuplicates),
		usersync.WithPublisher(publisher),
		usersync.WithLogger(logger),
	}
	if o.now != nil {
		handlerOpts = append(handlerOpts, usersync.WithClock(o.now))
	}
	handler := usersync.NewHandler(factory.UserStore(), handlerOpts...)

	ledger := o.ledger
	if ledger == nil && cfg.Webhook.LedgerEnabled {
		ledger = factory.WebhookDeliveryStore()
	}
	svc.processor = template.NewProcessor(ledger, handler)
	if o.now != nil {
		svc.processor.Now = o.now
	}

	var deliveries identityquery.DeliveryReader
	if ledger != nil {
		deliveries = ledger
	}
	svc.facade, err = NewFacade(factory.UserStore(), reader, deliveries)
	if err != nil {
		return nil, err
	}

	webhookHandler := inbound.NewWebhookHandler(
		svc.processor,
		inbound.WithProviderID(cfg.Webhook.ProviderID),
		inbound.WithMaxBodyBytes(cfg.HTTP.MaxBodyBytes),
		inbound.WithObserver(core.NewObserver(logger, o.metrics)),
	)
	svc.router = inbound.NewRouter(cfg.HTTP.WebhookPath, webhookHandler)

	logger.Info("identity sync configured",
		"webhook_path", cfg.HTTP.WebhookPath,
		"provider_id", cfg.Webhook.ProviderID,
		"ledger", ledger != nil,
		"kafka", len(cfg.Kafka.Brokers) > 0,
		"idempotent_duplicates", cfg.Sync.IdempotentDuplicates,
	)
	return svc, nil
}

func (s *Service) userReader(cacheService repositorycache.CacheService) (core.UserReader, error) {
	if cacheService == nil {
		cacheConfig := repositorycache.DefaultConfig()
		if s.config.Cache.TTL > 0 {
			cacheConfig.TTL = s.config.Cache.TTL
		}
		service, err := repositorycache.NewCacheService(cacheConfig)
		if err != nil {
			return nil, fmt.Errorf("identitysync: user cache: %w", err)
		}
		cacheService = service
	}
	return s.factory.CachedUserReader(cacheService)
}

func (s *Service) publisher(override core.UserEventPublisher) (core.UserEventPublisher, error) {
	if override != nil {
		return override, nil
	}
	if len(s.config.Kafka.Brokers) == 0 {
		return core.NopUserEventPublisher{}, nil
	}
	publisher, err := publish.NewKafkaPublisher(s.config.Kafka.Brokers, s.config.Kafka.Topic)
	if err != nil {
		return nil, err
	}
	s.closers = append(s.closers, publisher.Close)
	return publisher, nil
}

func (s *Service) Config() Config {
	if s == nil {
		return Config{}
	}
	return s.config
}

// Handler returns the HTTP router serving the webhook and health routes.
func (s *Service) Handler() http.Handler {
	if s == nil {
		return nil
	}
	return s.router
}

func (s *Service) Processor() *webhooks.Processor {
	if s == nil {
		return nil
	}
	return s.processor
}

func (s *Service) Facade() *Facade {
	if s == nil {
		return nil
	}
	return s.facade
}

func (s *Service) Stores() *sqlstore.RepositoryFactory {
	if s == nil {
		return nil
	}
	return s.factory
}

// Close releases resources the service created. The persistence client is
// owned by the caller.
func (s *Service) Close() error {
	if s == nil {
		return nil
	}
	var errs []error
	for _, closeFn := range s.closers {
		if err := closeFn(); err != nil {
			errs = append(errs, err)
		}
	}
	s.closers = nil
	return errors.Join(errs...)
}
