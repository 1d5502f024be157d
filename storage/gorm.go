package storage

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/glebarez/sqlite"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
	"gorm.io/gorm/logger"
	"gorm.io/gorm/schema"

	currency "github.com/malusev998/currency-rates"
)

const gormBatchSize = 500

type (
	currencyRecord struct {
		Code string `gorm:"primaryKey;size:10"`
		Name string `gorm:"size:100;not null"`
	}

	providerRecord struct {
		Name     string `gorm:"primaryKey;size:50"`
		Priority int    `gorm:"not null"`
		Active   bool   `gorm:"not null;default:true"`
	}

	// Dates are kept as YYYY-MM-DD text and rates as their decimal text so
	// both dialects compare and round-trip them the same way.
	rateRecord struct {
		ID       string          `gorm:"primaryKey;size:36"`
		From     string          `gorm:"column:from_currency;size:10;not null;uniqueIndex:idx_pair_date,priority:1"`
		To       string          `gorm:"column:to_currency;size:10;not null;uniqueIndex:idx_pair_date,priority:2"`
		Date     string          `gorm:"size:10;not null;uniqueIndex:idx_pair_date,priority:3;index"`
		Rate     decimal.Decimal `gorm:"type:varchar(40);not null"`
		Provider string          `gorm:"size:50;not null;default:''"`
	}

	gormRates struct {
		db *gorm.DB
	}

	// GormStorage backs the embedded SQLite store and PostgreSQL.
	GormStorage struct {
		gormRates
		name Provider
	}

	gormTx struct {
		gormRates
	}
)

func (currencyRecord) TableName(namer schema.Namer) string {
	return namer.TableName("Currency")
}

func (providerRecord) TableName(namer schema.Namer) string {
	return namer.TableName("Provider")
}

func (rateRecord) TableName(namer schema.Namer) string {
	return namer.TableName("ExchangeRate")
}

func NewSQLiteStorage(ctx context.Context, c SQLiteConfig) (*GormStorage, error) {
	path := c.Path

	if path == "" {
		path = "currency-rates.db"
	}

	if dir := filepath.Dir(strings.SplitN(path, "?", 2)[0]); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("failed to create database directory: %w", err)
		}
	}

	if !strings.Contains(path, "?") {
		path += "?_pragma=busy_timeout(5000)&_pragma=journal_mode(WAL)"
	}

	return newGormStorage(ctx, SQLite, sqlite.Open(path), c.BaseConfig)
}

func NewPostgresStorage(ctx context.Context, c PostgresConfig) (*GormStorage, error) {
	return newGormStorage(ctx, Postgres, postgres.Open(c.ConnectionString), c.BaseConfig)
}

func newGormStorage(ctx context.Context, name Provider, dialector gorm.Dialector, c BaseConfig) (*GormStorage, error) {
	db, err := gorm.Open(dialector, &gorm.Config{
		Logger:         newGormLogger(c.Logger),
		NamingStrategy: schema.NamingStrategy{TablePrefix: c.TablePrefix},
	})

	if err != nil {
		return nil, fmt.Errorf("failed to connect to %s: %w", name, err)
	}

	s := &GormStorage{gormRates: gormRates{db: db}, name: name}

	if c.Migrate {
		if err := s.Migrate(ctx); err != nil {
			return nil, err
		}
	}

	return s, nil
}

// slogWriter routes gorm's warnings, slow queries included, into slog.
type slogWriter struct {
	logger *slog.Logger
}

func (w slogWriter) Printf(format string, args ...interface{}) {
	w.logger.Warn(fmt.Sprintf(format, args...), slog.String("component", "gorm"))
}

func newGormLogger(l *slog.Logger) logger.Interface {
	if l == nil {
		l = slog.Default()
	}

	return logger.New(slogWriter{logger: l}, logger.Config{
		SlowThreshold:             200 * time.Millisecond,
		LogLevel:                  logger.Warn,
		IgnoreRecordNotFoundError: true,
	})
}

func (s *GormStorage) Migrate(ctx context.Context) error {
	if err := s.db.WithContext(ctx).AutoMigrate(&currencyRecord{}, &providerRecord{}, &rateRecord{}); err != nil {
		return fmt.Errorf("failed to migrate %s: %w", s.name, err)
	}

	return nil
}

func (s *GormStorage) Drop(ctx context.Context) error {
	return s.db.WithContext(ctx).Migrator().DropTable(&rateRecord{}, &providerRecord{}, &currencyRecord{})
}

func (s *GormStorage) Close() error {
	db, err := s.db.DB()

	if err != nil {
		return err
	}

	return db.Close()
}

func (s *GormStorage) GetStorageProviderName() string {
	return s.name.String()
}

func (s *GormStorage) Begin(ctx context.Context) (currency.Tx, error) {
	tx := s.db.WithContext(ctx).Begin()

	if tx.Error != nil {
		return nil, tx.Error
	}

	return &gormTx{gormRates: gormRates{db: tx}}, nil
}

func (s *GormStorage) Currencies(ctx context.Context) ([]currency.Currency, error) {
	var records []currencyRecord

	if err := s.db.WithContext(ctx).Order("code").Find(&records).Error; err != nil {
		return nil, err
	}

	currencies := make([]currency.Currency, 0, len(records))

	for _, record := range records {
		currencies = append(currencies, currency.Currency{Code: record.Code, Name: record.Name})
	}

	return currencies, nil
}

func (s *GormStorage) CurrencyByCode(ctx context.Context, code string) (currency.Currency, error) {
	var record currencyRecord

	err := s.db.WithContext(ctx).Where("code = ?", code).Take(&record).Error

	if errors.Is(err, gorm.ErrRecordNotFound) {
		return currency.Currency{}, currencyNotFound(code)
	}

	if err != nil {
		return currency.Currency{}, err
	}

	return currency.Currency{Code: record.Code, Name: record.Name}, nil
}

func (s *GormStorage) SaveCurrency(ctx context.Context, c currency.Currency) error {
	return s.db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "code"}},
			DoUpdates: clause.AssignmentColumns([]string{"name"}),
		}).
		Create(&currencyRecord{Code: c.Code, Name: c.Name}).Error
}

func (s *GormStorage) DeleteCurrency(ctx context.Context, code string) error {
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		result := tx.Where("code = ?", code).Delete(&currencyRecord{})

		if result.Error != nil {
			return result.Error
		}

		if result.RowsAffected == 0 {
			return currencyNotFound(code)
		}

		return tx.Where("from_currency = ? OR to_currency = ?", code, code).Delete(&rateRecord{}).Error
	})
}

func (s *GormStorage) Providers(ctx context.Context) ([]currency.ProviderDescriptor, error) {
	var records []providerRecord

	if err := s.db.WithContext(ctx).Order("priority").Order("name").Find(&records).Error; err != nil {
		return nil, err
	}

	providers := make([]currency.ProviderDescriptor, 0, len(records))

	for _, record := range records {
		providers = append(providers, currency.ProviderDescriptor{
			Name:     currency.Provider(record.Name),
			Priority: record.Priority,
			Active:   record.Active,
		})
	}

	return providers, nil
}

func (s *GormStorage) SaveProvider(ctx context.Context, p currency.ProviderDescriptor) error {
	// Select keeps gorm from dropping a false Active as a zero value.
	return s.db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "name"}},
			DoUpdates: clause.AssignmentColumns([]string{"priority", "active"}),
		}).
		Select("*").
		Create(&providerRecord{Name: p.Name.String(), Priority: p.Priority, Active: p.Active}).Error
}

func (s *GormStorage) CountOn(ctx context.Context, date time.Time) (int64, error) {
	var count int64

	err := s.db.WithContext(ctx).
		Model(&rateRecord{}).
		Where("date = ?", currency.Day(date).Format(currency.DateLayout)).
		Count(&count).Error

	return count, err
}

func (t *gormTx) Commit(context.Context) error {
	return t.db.Commit().Error
}

func (t *gormTx) Rollback(context.Context) error {
	return t.db.Rollback().Error
}

func (r gormRates) RatesBetween(ctx context.Context, base string, start, end time.Time) ([]currency.ExchangeRate, error) {
	var records []rateRecord

	err := r.db.WithContext(ctx).
		Where("from_currency = ? AND date BETWEEN ? AND ?",
			base,
			currency.Day(start).Format(currency.DateLayout),
			currency.Day(end).Format(currency.DateLayout),
		).
		Order("date").
		Order("to_currency").
		Find(&records).Error

	if err != nil {
		return nil, err
	}

	rates := make([]currency.ExchangeRate, 0, len(records))

	for _, record := range records {
		rate, err := record.toExchangeRate()

		if err != nil {
			return nil, err
		}

		rates = append(rates, rate)
	}

	return rates, nil
}

func (r gormRates) Latest(ctx context.Context, from, to string) (currency.ExchangeRate, error) {
	var record rateRecord

	err := r.db.WithContext(ctx).
		Where("from_currency = ? AND to_currency = ?", from, to).
		Order("date DESC").
		Take(&record).Error

	if errors.Is(err, gorm.ErrRecordNotFound) {
		return currency.ExchangeRate{}, currency.ErrRateNotFound
	}

	if err != nil {
		return currency.ExchangeRate{}, err
	}

	return record.toExchangeRate()
}

func (r gormRates) Store(ctx context.Context, rates []currency.ExchangeRate) error {
	if len(rates) == 0 {
		return nil
	}

	records := newRateRecords(rates)

	return r.db.WithContext(ctx).CreateInBatches(&records, gormBatchSize).Error
}

func (r gormRates) StoreIgnoringDuplicates(ctx context.Context, rates []currency.ExchangeRate) (int64, error) {
	if len(rates) == 0 {
		return 0, nil
	}

	records := newRateRecords(rates)

	result := r.db.WithContext(ctx).
		Clauses(clause.OnConflict{DoNothing: true}).
		CreateInBatches(&records, gormBatchSize)

	return result.RowsAffected, result.Error
}

func newRateRecords(rates []currency.ExchangeRate) []rateRecord {
	records := make([]rateRecord, 0, len(rates))

	for _, rate := range rates {
		records = append(records, rateRecord{
			ID:       uuid.NewString(),
			From:     rate.From,
			To:       rate.To,
			Date:     currency.Day(rate.Date).Format(currency.DateLayout),
			Rate:     rate.Rate,
			Provider: rate.Provider.String(),
		})
	}

	return records
}

func (r rateRecord) toExchangeRate() (currency.ExchangeRate, error) {
	date, err := currency.ParseDate(r.Date)

	if err != nil {
		return currency.ExchangeRate{}, fmt.Errorf("invalid date stored for %s_%s: %w", r.From, r.To, err)
	}

	return currency.ExchangeRate{
		ID:       r.ID,
		From:     r.From,
		To:       r.To,
		Date:     date,
		Rate:     r.Rate,
		Provider: currency.Provider(r.Provider),
	}, nil
}
