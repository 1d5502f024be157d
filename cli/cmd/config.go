package cmd

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/go-sql-driver/mysql"
	"github.com/joho/godotenv"
	"github.com/spf13/viper"

	currency "github.com/malusev998/currency-rates"
	"github.com/malusev998/currency-rates/fetchers"
	"github.com/malusev998/currency-rates/storage"
)

const envPrefix = "CURRENCY_RATES"

type (
	FetchersConfig map[currency.Provider]interface{}

	LoggingConfig struct {
		Level string
		File  string
	}

	KafkaConfig struct {
		Brokers []string
		Topic   string
	}

	Config struct {
		Storage         storage.Provider
		StorageConfig   interface{}
		FetchersConfig  FetchersConfig
		Providers       []currency.ProviderDescriptor
		Currencies      []currency.Currency
		RatePrecision   int32
		AmountPrecision int32
		BatchSize       int
		Workers         int
		HTTPAddr        string
		Logging         LoggingConfig
		Kafka           KafkaConfig
	}

	providerEntry struct {
		Name     string `mapstructure:"name"`
		Priority int    `mapstructure:"priority"`
		Active   *bool  `mapstructure:"active"`
	}
)

var fetcherKeys = map[currency.Provider]string{
	currency.CurrencyBeaconProvider:   "currencybeacon",
	currency.ExchangeRatesAPIProvider: "exchangeratesapi",
	currency.FreeConvProvider:         "freecurrconv",
}

func newViper(configFile string) (*viper.Viper, error) {
	// a missing .env is fine, the environment may already be populated
	_ = godotenv.Load()

	v := viper.New()

	v.SetDefault("storage", storage.SQLite.String())
	v.SetDefault("databases.sqlite.path", "currency-rates.db")
	v.SetDefault("databases.mongodb.db", "currency_rates")
	v.SetDefault("precision.rate", 6)
	v.SetDefault("precision.amount", 2)
	v.SetDefault("batchsize", 1000)
	v.SetDefault("workers", 0)
	v.SetDefault("http.addr", ":8080")
	v.SetDefault("logging.level", "info")
	v.SetDefault("kafka.topic", "currency-rates")

	v.SetEnvPrefix(envPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if configFile == "" {
		return v, nil
	}

	absolutePath, err := filepath.Abs(configFile)

	if err != nil {
		return nil, err
	}

	if _, err := os.Stat(absolutePath); errors.Is(err, fs.ErrNotExist) {
		return v, nil
	}

	v.SetConfigFile(absolutePath)

	if err := v.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("error while reading in the config file: %w", err)
	}

	return v, nil
}

func getMysqlDSN(config map[string]string) string {
	if dsn := config["dsn"]; dsn != "" {
		return dsn
	}

	mysqlDriverConfig := mysql.NewConfig()
	mysqlDriverConfig.User = config["user"]
	mysqlDriverConfig.Passwd = config["password"]
	mysqlDriverConfig.Addr = config["addr"]
	mysqlDriverConfig.Net = "tcp"
	mysqlDriverConfig.DBName = config["db"]

	return mysqlDriverConfig.FormatDSN()
}

func getStorageConfig(v *viper.Viper, provider storage.Provider) interface{} {
	base := storage.BaseConfig{
		Migrate:     v.GetBool("migrate"),
		TablePrefix: v.GetString("databases.prefix"),
	}

	switch provider {
	case storage.MySQL:
		return storage.MySQLConfig{
			BaseConfig:       base,
			ConnectionString: getMysqlDSN(v.GetStringMapString("databases.mysql")),
		}
	case storage.MongoDB:
		return storage.MongoDBConfig{
			BaseConfig:       base,
			ConnectionString: v.GetString("databases.mongodb.uri"),
			Database:         v.GetString("databases.mongodb.db"),
			Transactions:     v.GetBool("databases.mongodb.transactions"),
		}
	case storage.Postgres:
		return storage.PostgresConfig{
			BaseConfig:       base,
			ConnectionString: v.GetString("databases.postgres.dsn"),
		}
	default:
		return storage.SQLiteConfig{
			BaseConfig: base,
			Path:       v.GetString("databases.sqlite.path"),
		}
	}
}

// getFetchersConfig returns a config only for the providers with a fetchers
// section, the rest stay unresolvable for the provider chain.
func getFetchersConfig(v *viper.Viper) FetchersConfig {
	configs := make(FetchersConfig, len(fetcherKeys))

	for provider, key := range fetcherKeys {
		prefix := "fetchers." + key

		if !v.IsSet(prefix) && !v.IsSet(prefix+".url") {
			continue
		}

		base := fetchers.BaseConfig{
			URL:     v.GetString(prefix + ".url"),
			APIKey:  v.GetString(prefix + ".apikey"),
			Timeout: v.GetDuration(prefix + ".timeout"),
		}

		switch provider {
		case currency.CurrencyBeaconProvider:
			configs[provider] = fetchers.CurrencyBeaconConfig{BaseConfig: base}
		case currency.ExchangeRatesAPIProvider:
			configs[provider] = fetchers.ExchangeRatesAPIConfig{BaseConfig: base}
		case currency.FreeConvProvider:
			configs[provider] = fetchers.FreeConvServiceConfig{BaseConfig: base}
		}
	}

	return configs
}

func getProviders(v *viper.Viper) ([]currency.ProviderDescriptor, error) {
	var entries []providerEntry

	if err := v.UnmarshalKey("providers", &entries); err != nil {
		return nil, fmt.Errorf("error while parsing providers: %w", err)
	}

	providers := make([]currency.ProviderDescriptor, 0, len(entries))

	for _, entry := range entries {
		name, err := currency.ConvertToProviderFromString(entry.Name)

		if err != nil {
			return nil, err
		}

		active := entry.Active == nil || *entry.Active

		providers = append(providers, currency.ProviderDescriptor{Name: name, Priority: entry.Priority, Active: active})
	}

	return providers, nil
}

func getCurrencies(v *viper.Viper) ([]currency.Currency, error) {
	var currencies []currency.Currency

	if err := v.UnmarshalKey("currencies", &currencies); err != nil {
		return nil, fmt.Errorf("error while parsing currencies: %w", err)
	}

	for i, c := range currencies {
		if c.Code == "" {
			return nil, fmt.Errorf("currency at position %d has no code", i)
		}

		currencies[i].Code = strings.ToUpper(c.Code)
	}

	return currencies, nil
}

func getConfig(v *viper.Viper) (*Config, error) {
	storageProvider, err := storage.ConvertToProviderFromString(v.GetString("storage"))

	if err != nil {
		return nil, err
	}

	providers, err := getProviders(v)

	if err != nil {
		return nil, err
	}

	currencies, err := getCurrencies(v)

	if err != nil {
		return nil, err
	}

	batchSize := v.GetInt("batchsize")

	if batchSize <= 0 {
		return nil, fmt.Errorf("batchsize must be positive, got %d", batchSize)
	}

	return &Config{
		Storage:         storageProvider,
		StorageConfig:   getStorageConfig(v, storageProvider),
		FetchersConfig:  getFetchersConfig(v),
		Providers:       providers,
		Currencies:      currencies,
		RatePrecision:   v.GetInt32("precision.rate"),
		AmountPrecision: v.GetInt32("precision.amount"),
		BatchSize:       batchSize,
		Workers:         v.GetInt("workers"),
		HTTPAddr:        v.GetString("http.addr"),
		Logging: LoggingConfig{
			Level: v.GetString("logging.level"),
			File:  v.GetString("logging.file"),
		},
		Kafka: KafkaConfig{
			Brokers: v.GetStringSlice("kafka.brokers"),
			Topic:   v.GetString("kafka.topic"),
		},
	}, nil
}
