package storage

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	currency "github.com/malusev998/currency-rates"
)

type (
	Provider string

	BaseConfig struct {
		Migrate     bool
		TablePrefix string
		Logger      *slog.Logger
	}

	MySQLConfig struct {
		BaseConfig
		ConnectionString string
		IDGenerator      IDGenerator
	}

	MongoDBConfig struct {
		BaseConfig
		ConnectionString string
		Database         string
		// Transactions needs a replica set; without it a reconciliation
		// cannot be rolled back.
		Transactions bool
	}

	SQLiteConfig struct {
		BaseConfig
		Path string
	}

	PostgresConfig struct {
		BaseConfig
		ConnectionString string
	}
)

const (
	MySQL    Provider = "mysql"
	MongoDB  Provider = "mongodb"
	SQLite   Provider = "sqlite"
	Postgres Provider = "postgres"
)

var (
	ErrStorageNotFound           = errors.New("storage is not found")
	ErrNotEnoughBytesInGenerator = errors.New("id generator must return at least 16 bytes")
)

func (p Provider) String() string {
	return string(p)
}

func ConvertToProviderFromString(str string) (Provider, error) {
	switch strings.ToLower(str) {
	case "mysql":
		return MySQL, nil
	case "mongodb", "mongo":
		return MongoDB, nil
	case "sqlite", "sqlite3":
		return SQLite, nil
	case "postgres", "postgresql":
		return Postgres, nil
	}

	return "", fmt.Errorf("value %s is not valid Provider", str)
}

func NewStorage(ctx context.Context, provider Provider, config interface{}) (currency.Storage, error) {
	var (
		s   currency.Storage
		err error
	)

	switch provider {
	case MySQL:
		s, err = NewMySQLStorage(ctx, config.(MySQLConfig))
	case MongoDB:
		s, err = NewMongoStorage(ctx, config.(MongoDBConfig))
	case SQLite:
		s, err = NewSQLiteStorage(ctx, config.(SQLiteConfig))
	case Postgres:
		s, err = NewPostgresStorage(ctx, config.(PostgresConfig))
	default:
		return nil, ErrStorageNotFound
	}

	if err != nil {
		return nil, err
	}

	return s, nil
}

// Seed saves the currencies and providers a fresh database starts with.
func Seed(ctx context.Context, s currency.Storage, currencies []currency.Currency, providers []currency.ProviderDescriptor) error {
	for _, c := range currencies {
		if err := s.SaveCurrency(ctx, c); err != nil {
			return fmt.Errorf("error while saving currency %s: %w", c.Code, err)
		}
	}

	for _, p := range providers {
		if err := s.SaveProvider(ctx, p); err != nil {
			return fmt.Errorf("error while saving provider %s: %w", p.Name, err)
		}
	}

	return nil
}

func currencyNotFound(code string) error {
	return fmt.Errorf("%w: %s", currency.ErrCurrencyNotFound, code)
}
