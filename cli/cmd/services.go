package cmd

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"

	currency "github.com/malusev998/currency-rates"
	"github.com/malusev998/currency-rates/events"
	"github.com/malusev998/currency-rates/fetchers"
	"github.com/malusev998/currency-rates/metrics"
	"github.com/malusev998/currency-rates/services"
	"github.com/malusev998/currency-rates/storage"
)

// application holds what every command shares once the config is loaded.
type application struct {
	config    *Config
	logger    *slog.Logger
	storage   currency.Storage
	registry  *prometheus.Registry
	metrics   *metrics.Metrics
	publisher *events.KafkaPublisher
	logCloser io.Closer
}

func newApplication(ctx context.Context, config *Config, debug bool, logOutput io.Writer) (*application, error) {
	logger, logCloser := newLogger(config.Logging, debug, logOutput)

	registry := prometheus.NewRegistry()
	registry.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))

	app := &application{
		config:    config,
		logger:    logger,
		registry:  registry,
		metrics:   metrics.New(registry),
		logCloser: logCloser,
	}

	s, err := createStorage(ctx, config, logger)

	if err != nil {
		_ = logCloser.Close()
		return nil, err
	}

	app.storage = s

	if len(config.Kafka.Brokers) > 0 {
		app.publisher = events.NewKafkaPublisher(config.Kafka.Brokers, config.Kafka.Topic)
		app.storage = events.NewPublishingStorage(s, app.publisher, logger)
	}

	return app, nil
}

func createStorage(ctx context.Context, config *Config, logger *slog.Logger) (currency.Storage, error) {
	c := withStorageLogger(config.StorageConfig, logger)

	s, err := storage.NewStorage(ctx, config.Storage, c)

	if err != nil {
		return nil, fmt.Errorf("error while creating %s storage: %w", config.Storage, err)
	}

	return s, nil
}

func withStorageLogger(c interface{}, logger *slog.Logger) interface{} {
	switch sc := c.(type) {
	case storage.MySQLConfig:
		sc.Logger = logger
		return sc
	case storage.MongoDBConfig:
		sc.Logger = logger
		return sc
	case storage.SQLiteConfig:
		sc.Logger = logger
		return sc
	case storage.PostgresConfig:
		sc.Logger = logger
		return sc
	}

	return c
}

func (a *application) fetcherFactory(provider currency.Provider) (currency.Fetcher, error) {
	c, ok := a.config.FetchersConfig[provider]

	if !ok {
		return nil, fmt.Errorf("%w: %s is not configured", fetchers.ErrFetcherNotFound, provider)
	}

	return fetchers.NewCurrencyFetcher(provider, c)
}

// newAcquirer reads the provider registry and resolves a fresh chain.
func (a *application) newAcquirer(ctx context.Context) (services.Acquirer, error) {
	chain, err := services.NewProviderChain(
		ctx,
		a.storage,
		a.fetcherFactory,
		services.NewLogReporter(a.logger, a.metrics),
		a.metrics,
	)

	if err != nil {
		return nil, err
	}

	return services.NewRateAcquirer(chain, a.config.RatePrecision), nil
}

func (a *application) newReconciler(ctx context.Context) (*services.GapReconciler, error) {
	acquirer, err := a.newAcquirer(ctx)

	if err != nil {
		return nil, err
	}

	return services.NewGapReconciler(a.storage, acquirer, a.config.BatchSize, a.logger, a.metrics), nil
}

func (a *application) converter() services.ConversionService {
	return services.ConversionService{Storage: a.storage, AmountPrecision: a.config.AmountPrecision}
}

func (a *application) Close() error {
	var errs []error

	if a.publisher != nil {
		errs = append(errs, a.publisher.Close())
	}

	errs = append(errs, a.storage.Close(), a.logCloser.Close())

	return errors.Join(errs...)
}
