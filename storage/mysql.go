package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/go-sql-driver/mysql"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	currency "github.com/malusev998/currency-rates"
)

// keeps one INSERT well below the placeholder limit of the server
const maxRowsPerStatement = 1000

type (
	IDGenerator interface {
		Generate() []byte
	}

	UUIDGenerator struct{}

	queryer interface {
		ExecContext(ctx context.Context, query string, args ...interface{}) (sql.Result, error)
		QueryContext(ctx context.Context, query string, args ...interface{}) (*sql.Rows, error)
		QueryRowContext(ctx context.Context, query string, args ...interface{}) *sql.Row
	}

	tableNames struct {
		currencies string
		rates      string
		providers  string
	}

	// sqlRates holds the rate queries shared by the connection and its
	// transactions.
	sqlRates struct {
		q           queryer
		tables      tableNames
		idGenerator IDGenerator
	}

	MySQLStorage struct {
		sqlRates
		db *sql.DB
	}

	mysqlTx struct {
		sqlRates
		tx *sql.Tx
	}
)

func (UUIDGenerator) Generate() []byte {
	id := uuid.New()
	return id[:]
}

func newTableNames(prefix string) tableNames {
	return tableNames{
		currencies: prefix + "currencies",
		rates:      prefix + "exchange_rates",
		providers:  prefix + "providers",
	}
}

func NewMySQLStorage(ctx context.Context, c MySQLConfig) (*MySQLStorage, error) {
	driverConfig, err := mysql.ParseDSN(c.ConnectionString)

	if err != nil {
		return nil, fmt.Errorf("invalid mysql connection string: %w", err)
	}

	driverConfig.ParseTime = true
	driverConfig.Loc = time.UTC

	db, err := sql.Open("mysql", driverConfig.FormatDSN())

	if err != nil {
		return nil, err
	}

	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("error while connecting to mysql: %w", err)
	}

	return NewSQLStorage(ctx, db, c.IDGenerator, c.TablePrefix, c.Migrate)
}

func NewSQLStorage(ctx context.Context, db *sql.DB, idGenerator IDGenerator, tablePrefix string, migrate bool) (*MySQLStorage, error) {
	if idGenerator == nil {
		idGenerator = UUIDGenerator{}
	}

	s := &MySQLStorage{
		sqlRates: sqlRates{q: db, tables: newTableNames(tablePrefix), idGenerator: idGenerator},
		db:       db,
	}

	if migrate {
		if err := s.Migrate(ctx); err != nil {
			return nil, err
		}
	}

	return s, nil
}

func (s *MySQLStorage) Migrate(ctx context.Context) error {
	statements := []string{
		fmt.Sprintf(`CREATE TABLE IF NOT EXISTS %s(
	code VARCHAR(10) NOT NULL PRIMARY KEY,
	name VARCHAR(100) NOT NULL
);`, s.tables.currencies),
		fmt.Sprintf(`CREATE TABLE IF NOT EXISTS %s(
	name VARCHAR(50) NOT NULL PRIMARY KEY,
	priority INT NOT NULL,
	active BOOLEAN NOT NULL DEFAULT TRUE
);`, s.tables.providers),
		fmt.Sprintf(`CREATE TABLE IF NOT EXISTS %s(
	id BINARY(16) NOT NULL PRIMARY KEY,
	from_currency VARCHAR(10) NOT NULL,
	to_currency VARCHAR(10) NOT NULL,
	date DATE NOT NULL,
	rate DECIMAL(30,12) NOT NULL,
	provider VARCHAR(50) NOT NULL DEFAULT '',
	UNIQUE KEY %s_pair_date (from_currency, to_currency, date),
	KEY %s_date (date)
);`, s.tables.rates, s.tables.rates, s.tables.rates),
	}

	for _, statement := range statements {
		if _, err := s.db.ExecContext(ctx, statement); err != nil {
			return fmt.Errorf("error while migrating mysql: %w", err)
		}
	}

	return nil
}

func (s *MySQLStorage) Drop(ctx context.Context) error {
	_, err := s.db.ExecContext(ctx, fmt.Sprintf("DROP TABLE IF EXISTS %s, %s, %s;", s.tables.rates, s.tables.providers, s.tables.currencies))
	return err
}

func (s *MySQLStorage) Close() error {
	return s.db.Close()
}

func (s *MySQLStorage) GetStorageProviderName() string {
	return MySQL.String()
}

func (s *MySQLStorage) Begin(ctx context.Context) (currency.Tx, error) {
	tx, err := s.db.BeginTx(ctx, nil)

	if err != nil {
		return nil, err
	}

	return &mysqlTx{
		sqlRates: sqlRates{q: tx, tables: s.tables, idGenerator: s.idGenerator},
		tx:       tx,
	}, nil
}

func (s *MySQLStorage) Currencies(ctx context.Context) ([]currency.Currency, error) {
	rows, err := s.db.QueryContext(ctx, fmt.Sprintf("SELECT code, name FROM %s ORDER BY code;", s.tables.currencies))

	if err != nil {
		return nil, err
	}

	defer rows.Close()

	currencies := make([]currency.Currency, 0)

	for rows.Next() {
		var c currency.Currency

		if err := rows.Scan(&c.Code, &c.Name); err != nil {
			return nil, err
		}

		currencies = append(currencies, c)
	}

	return currencies, rows.Err()
}

func (s *MySQLStorage) CurrencyByCode(ctx context.Context, code string) (currency.Currency, error) {
	var c currency.Currency

	row := s.db.QueryRowContext(ctx, fmt.Sprintf("SELECT code, name FROM %s WHERE code = ? LIMIT 1;", s.tables.currencies), code)

	if err := row.Scan(&c.Code, &c.Name); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return currency.Currency{}, currencyNotFound(code)
		}

		return currency.Currency{}, err
	}

	return c, nil
}

func (s *MySQLStorage) SaveCurrency(ctx context.Context, c currency.Currency) error {
	_, err := s.db.ExecContext(ctx,
		fmt.Sprintf("INSERT INTO %s(code, name) VALUES (?,?) ON DUPLICATE KEY UPDATE name = VALUES(name);", s.tables.currencies),
		c.Code, c.Name,
	)

	return err
}

func (s *MySQLStorage) DeleteCurrency(ctx context.Context, code string) error {
	tx, err := s.db.BeginTx(ctx, nil)

	if err != nil {
		return err
	}

	result, err := tx.ExecContext(ctx, fmt.Sprintf("DELETE FROM %s WHERE code = ?;", s.tables.currencies), code)

	if err != nil {
		_ = tx.Rollback()
		return err
	}

	if affected, err := result.RowsAffected(); err != nil || affected == 0 {
		_ = tx.Rollback()

		if err != nil {
			return err
		}

		return currencyNotFound(code)
	}

	if _, err := tx.ExecContext(ctx,
		fmt.Sprintf("DELETE FROM %s WHERE from_currency = ? OR to_currency = ?;", s.tables.rates),
		code, code,
	); err != nil {
		_ = tx.Rollback()
		return err
	}

	return tx.Commit()
}

func (s *MySQLStorage) Providers(ctx context.Context) ([]currency.ProviderDescriptor, error) {
	rows, err := s.db.QueryContext(ctx, fmt.Sprintf("SELECT name, priority, active FROM %s ORDER BY priority, name;", s.tables.providers))

	if err != nil {
		return nil, err
	}

	defer rows.Close()

	providers := make([]currency.ProviderDescriptor, 0)

	for rows.Next() {
		var (
			p    currency.ProviderDescriptor
			name string
		)

		if err := rows.Scan(&name, &p.Priority, &p.Active); err != nil {
			return nil, err
		}

		p.Name = currency.Provider(name)
		providers = append(providers, p)
	}

	return providers, rows.Err()
}

func (s *MySQLStorage) SaveProvider(ctx context.Context, p currency.ProviderDescriptor) error {
	_, err := s.db.ExecContext(ctx,
		fmt.Sprintf("INSERT INTO %s(name, priority, active) VALUES (?,?,?) ON DUPLICATE KEY UPDATE priority = VALUES(priority), active = VALUES(active);", s.tables.providers),
		p.Name.String(), p.Priority, p.Active,
	)

	return err
}

func (s *MySQLStorage) CountOn(ctx context.Context, date time.Time) (int64, error) {
	var count int64

	row := s.db.QueryRowContext(ctx, fmt.Sprintf("SELECT COUNT(*) FROM %s WHERE date = ?;", s.tables.rates), currency.Day(date).Format(currency.DateLayout))

	if err := row.Scan(&count); err != nil {
		return 0, err
	}

	return count, nil
}

func (t *mysqlTx) Commit(context.Context) error {
	return t.tx.Commit()
}

func (t *mysqlTx) Rollback(context.Context) error {
	return t.tx.Rollback()
}

func (r sqlRates) RatesBetween(ctx context.Context, base string, start, end time.Time) ([]currency.ExchangeRate, error) {
	rows, err := r.q.QueryContext(ctx,
		fmt.Sprintf("SELECT id, from_currency, to_currency, date, rate, provider FROM %s WHERE from_currency = ? AND date BETWEEN ? AND ? ORDER BY date, to_currency;", r.tables.rates),
		base, currency.Day(start).Format(currency.DateLayout), currency.Day(end).Format(currency.DateLayout),
	)

	if err != nil {
		return nil, err
	}

	defer rows.Close()

	rates := make([]currency.ExchangeRate, 0)

	for rows.Next() {
		rate, err := scanRate(rows)

		if err != nil {
			return nil, err
		}

		rates = append(rates, rate)
	}

	return rates, rows.Err()
}

func (r sqlRates) Latest(ctx context.Context, from, to string) (currency.ExchangeRate, error) {
	row := r.q.QueryRowContext(ctx,
		fmt.Sprintf("SELECT id, from_currency, to_currency, date, rate, provider FROM %s WHERE from_currency = ? AND to_currency = ? ORDER BY date DESC LIMIT 1;", r.tables.rates),
		from, to,
	)

	rate, err := scanRate(row)

	if errors.Is(err, sql.ErrNoRows) {
		return currency.ExchangeRate{}, currency.ErrRateNotFound
	}

	return rate, err
}

func (r sqlRates) Store(ctx context.Context, rates []currency.ExchangeRate) error {
	_, err := r.insert(ctx, "INSERT", rates)
	return err
}

func (r sqlRates) StoreIgnoringDuplicates(ctx context.Context, rates []currency.ExchangeRate) (int64, error) {
	return r.insert(ctx, "INSERT IGNORE", rates)
}

func (r sqlRates) insert(ctx context.Context, verb string, rates []currency.ExchangeRate) (int64, error) {
	var inserted int64

	for start := 0; start < len(rates); start += maxRowsPerStatement {
		end := start + maxRowsPerStatement

		if end > len(rates) {
			end = len(rates)
		}

		chunk := rates[start:end]
		args := make([]interface{}, 0, len(chunk)*6)

		var builder strings.Builder

		builder.WriteString(fmt.Sprintf("%s INTO %s(id, from_currency, to_currency, date, rate, provider) VALUES ", verb, r.tables.rates))

		for i, rate := range chunk {
			id := r.idGenerator.Generate()

			if len(id) < 16 {
				return inserted, ErrNotEnoughBytesInGenerator
			}

			if i > 0 {
				builder.WriteString(",")
			}

			builder.WriteString("(?,?,?,?,?,?)")
			args = append(args, id[:16], rate.From, rate.To, currency.Day(rate.Date).Format(currency.DateLayout), rate.Rate, rate.Provider.String())
		}

		builder.WriteString(";")

		result, err := r.q.ExecContext(ctx, builder.String(), args...)

		if err != nil {
			return inserted, err
		}

		affected, err := result.RowsAffected()

		if err != nil {
			return inserted, err
		}

		inserted += affected
	}

	return inserted, nil
}

type scanner interface {
	Scan(dest ...interface{}) error
}

func scanRate(row scanner) (currency.ExchangeRate, error) {
	var (
		id       []byte
		rate     currency.ExchangeRate
		value    decimal.Decimal
		provider string
	)

	if err := row.Scan(&id, &rate.From, &rate.To, &rate.Date, &value, &provider); err != nil {
		return currency.ExchangeRate{}, err
	}

	if parsed, err := uuid.FromBytes(id); err == nil {
		rate.ID = parsed
	} else {
		rate.ID = id
	}

	rate.Date = currency.Day(rate.Date)
	rate.Rate = value
	rate.Provider = currency.Provider(provider)

	return rate, nil
}
