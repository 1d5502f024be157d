package storage

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/shopspring/decimal"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	currency "github.com/malusev998/currency-rates"
)

const mongoDuplicateKey = 11000

type (
	rateDocument struct {
		ID       primitive.ObjectID   `bson:"_id,omitempty"`
		From     string               `bson:"from"`
		To       string               `bson:"to"`
		Date     time.Time            `bson:"date"`
		Rate     primitive.Decimal128 `bson:"rate"`
		Provider string               `bson:"provider"`
	}

	providerDocument struct {
		Name     string `bson:"name"`
		Priority int    `bson:"priority"`
		Active   bool   `bson:"active"`
	}

	mongoRates struct {
		rates   *mongo.Collection
		session mongo.Session
	}

	MongoStorage struct {
		mongoRates
		client       *mongo.Client
		currencies   *mongo.Collection
		providers    *mongo.Collection
		transactions bool
	}

	mongoTx struct {
		mongoRates
	}
)

func NewMongoStorage(ctx context.Context, c MongoDBConfig) (*MongoStorage, error) {
	client, err := mongo.Connect(ctx, options.Client().ApplyURI(c.ConnectionString))

	if err != nil {
		return nil, fmt.Errorf("error while connecting to mongodb: %w", err)
	}

	if err := client.Ping(ctx, nil); err != nil {
		_ = client.Disconnect(ctx)
		return nil, fmt.Errorf("error while connecting to mongodb: %w", err)
	}

	database := c.Database

	if database == "" {
		database = "currency_rates"
	}

	s := NewMongoStorageFromDatabase(client.Database(database), c.TablePrefix, c.Transactions)

	if c.Migrate {
		if err := s.Migrate(ctx); err != nil {
			_ = client.Disconnect(ctx)
			return nil, err
		}
	}

	return s, nil
}

func NewMongoStorageFromDatabase(database *mongo.Database, prefix string, transactions bool) *MongoStorage {
	return &MongoStorage{
		mongoRates:   mongoRates{rates: database.Collection(prefix + "exchange_rates")},
		client:       database.Client(),
		currencies:   database.Collection(prefix + "currencies"),
		providers:    database.Collection(prefix + "providers"),
		transactions: transactions,
	}
}

func (s *MongoStorage) Migrate(ctx context.Context) error {
	if _, err := s.rates.Indexes().CreateMany(ctx, []mongo.IndexModel{
		{
			Keys:    bson.D{{Key: "from", Value: 1}, {Key: "to", Value: 1}, {Key: "date", Value: 1}},
			Options: options.Index().SetUnique(true),
		},
		{
			Keys: bson.D{{Key: "date", Value: 1}},
		},
	}); err != nil {
		return fmt.Errorf("error while creating exchange rate indexes: %w", err)
	}

	if _, err := s.currencies.Indexes().CreateOne(ctx, mongo.IndexModel{
		Keys:    bson.D{{Key: "code", Value: 1}},
		Options: options.Index().SetUnique(true),
	}); err != nil {
		return fmt.Errorf("error while creating currency indexes: %w", err)
	}

	if _, err := s.providers.Indexes().CreateOne(ctx, mongo.IndexModel{
		Keys:    bson.D{{Key: "name", Value: 1}},
		Options: options.Index().SetUnique(true),
	}); err != nil {
		return fmt.Errorf("error while creating provider indexes: %w", err)
	}

	return nil
}

func (s *MongoStorage) Drop(ctx context.Context) error {
	for _, collection := range []*mongo.Collection{s.rates, s.currencies, s.providers} {
		if err := collection.Drop(ctx); err != nil {
			return err
		}
	}

	return nil
}

func (s *MongoStorage) Close() error {
	return s.client.Disconnect(context.Background())
}

func (s *MongoStorage) GetStorageProviderName() string {
	return MongoDB.String()
}

// Begin starts a session transaction when they are enabled. Otherwise the
// returned Tx writes straight through and Rollback cannot undo anything.
func (s *MongoStorage) Begin(context.Context) (currency.Tx, error) {
	if !s.transactions {
		return &mongoTx{mongoRates: mongoRates{rates: s.rates}}, nil
	}

	session, err := s.client.StartSession()

	if err != nil {
		return nil, err
	}

	if err := session.StartTransaction(); err != nil {
		session.EndSession(context.Background())
		return nil, err
	}

	return &mongoTx{mongoRates: mongoRates{rates: s.rates, session: session}}, nil
}

func (s *MongoStorage) Currencies(ctx context.Context) ([]currency.Currency, error) {
	cursor, err := s.currencies.Find(ctx, bson.M{}, options.Find().SetSort(bson.D{{Key: "code", Value: 1}}))

	if err != nil {
		return nil, err
	}

	currencies := make([]currency.Currency, 0)

	if err := cursor.All(ctx, &currencies); err != nil {
		return nil, err
	}

	return currencies, nil
}

func (s *MongoStorage) CurrencyByCode(ctx context.Context, code string) (currency.Currency, error) {
	var c currency.Currency

	err := s.currencies.FindOne(ctx, bson.M{"code": code}).Decode(&c)

	if errors.Is(err, mongo.ErrNoDocuments) {
		return currency.Currency{}, currencyNotFound(code)
	}

	return c, err
}

func (s *MongoStorage) SaveCurrency(ctx context.Context, c currency.Currency) error {
	_, err := s.currencies.UpdateOne(ctx,
		bson.M{"code": c.Code},
		bson.M{"$set": bson.M{"name": c.Name}},
		options.Update().SetUpsert(true),
	)

	return err
}

// DeleteCurrency is not atomic without transactions: the rates are removed
// after the currency.
func (s *MongoStorage) DeleteCurrency(ctx context.Context, code string) error {
	result, err := s.currencies.DeleteOne(ctx, bson.M{"code": code})

	if err != nil {
		return err
	}

	if result.DeletedCount == 0 {
		return currencyNotFound(code)
	}

	_, err = s.rates.DeleteMany(ctx, bson.M{"$or": bson.A{bson.M{"from": code}, bson.M{"to": code}}})

	return err
}

func (s *MongoStorage) Providers(ctx context.Context) ([]currency.ProviderDescriptor, error) {
	cursor, err := s.providers.Find(ctx, bson.M{}, options.Find().SetSort(bson.D{{Key: "priority", Value: 1}, {Key: "name", Value: 1}}))

	if err != nil {
		return nil, err
	}

	var documents []providerDocument

	if err := cursor.All(ctx, &documents); err != nil {
		return nil, err
	}

	providers := make([]currency.ProviderDescriptor, 0, len(documents))

	for _, document := range documents {
		providers = append(providers, currency.ProviderDescriptor{
			Name:     currency.Provider(document.Name),
			Priority: document.Priority,
			Active:   document.Active,
		})
	}

	return providers, nil
}

func (s *MongoStorage) SaveProvider(ctx context.Context, p currency.ProviderDescriptor) error {
	_, err := s.providers.UpdateOne(ctx,
		bson.M{"name": p.Name.String()},
		bson.M{"$set": bson.M{"priority": p.Priority, "active": p.Active}},
		options.Update().SetUpsert(true),
	)

	return err
}

func (s *MongoStorage) CountOn(ctx context.Context, date time.Time) (int64, error) {
	return s.rates.CountDocuments(ctx, bson.M{"date": currency.Day(date)})
}

func (t *mongoTx) Commit(ctx context.Context) error {
	if t.session == nil {
		return nil
	}

	defer t.session.EndSession(ctx)

	return t.session.CommitTransaction(ctx)
}

func (t *mongoTx) Rollback(ctx context.Context) error {
	if t.session == nil {
		return nil
	}

	defer t.session.EndSession(ctx)

	return t.session.AbortTransaction(ctx)
}

func (r mongoRates) sessionContext(ctx context.Context) context.Context {
	if r.session == nil {
		return ctx
	}

	return mongo.NewSessionContext(ctx, r.session)
}

func (r mongoRates) RatesBetween(ctx context.Context, base string, start, end time.Time) ([]currency.ExchangeRate, error) {
	ctx = r.sessionContext(ctx)

	cursor, err := r.rates.Find(ctx,
		bson.M{
			"from": base,
			"date": bson.M{"$gte": currency.Day(start), "$lte": currency.Day(end)},
		},
		options.Find().SetSort(bson.D{{Key: "date", Value: 1}, {Key: "to", Value: 1}}),
	)

	if err != nil {
		return nil, err
	}

	var documents []rateDocument

	if err := cursor.All(ctx, &documents); err != nil {
		return nil, err
	}

	rates := make([]currency.ExchangeRate, 0, len(documents))

	for _, document := range documents {
		rate, err := document.toExchangeRate()

		if err != nil {
			return nil, err
		}

		rates = append(rates, rate)
	}

	return rates, nil
}

func (r mongoRates) Latest(ctx context.Context, from, to string) (currency.ExchangeRate, error) {
	var document rateDocument

	err := r.rates.FindOne(r.sessionContext(ctx),
		bson.M{"from": from, "to": to},
		options.FindOne().SetSort(bson.D{{Key: "date", Value: -1}}),
	).Decode(&document)

	if errors.Is(err, mongo.ErrNoDocuments) {
		return currency.ExchangeRate{}, currency.ErrRateNotFound
	}

	if err != nil {
		return currency.ExchangeRate{}, err
	}

	return document.toExchangeRate()
}

func (r mongoRates) Store(ctx context.Context, rates []currency.ExchangeRate) error {
	if len(rates) == 0 {
		return nil
	}

	documents, err := newRateDocuments(rates)

	if err != nil {
		return err
	}

	_, err = r.rates.InsertMany(r.sessionContext(ctx), documents)

	return err
}

func (r mongoRates) StoreIgnoringDuplicates(ctx context.Context, rates []currency.ExchangeRate) (int64, error) {
	if len(rates) == 0 {
		return 0, nil
	}

	documents, err := newRateDocuments(rates)

	if err != nil {
		return 0, err
	}

	_, err = r.rates.InsertMany(r.sessionContext(ctx), documents, options.InsertMany().SetOrdered(false))

	if err == nil {
		return int64(len(documents)), nil
	}

	var bulkErr mongo.BulkWriteException

	if !errors.As(err, &bulkErr) || bulkErr.WriteConcernError != nil {
		return 0, err
	}

	for _, writeErr := range bulkErr.WriteErrors {
		if writeErr.Code != mongoDuplicateKey {
			return 0, err
		}
	}

	return int64(len(documents) - len(bulkErr.WriteErrors)), nil
}

func newRateDocuments(rates []currency.ExchangeRate) ([]interface{}, error) {
	documents := make([]interface{}, 0, len(rates))

	for _, rate := range rates {
		value, err := primitive.ParseDecimal128(rate.Rate.String())

		if err != nil {
			return nil, fmt.Errorf("rate %s of %s cannot be stored: %w", rate.Rate, rate.Pair(), err)
		}

		documents = append(documents, rateDocument{
			From:     rate.From,
			To:       rate.To,
			Date:     currency.Day(rate.Date),
			Rate:     value,
			Provider: rate.Provider.String(),
		})
	}

	return documents, nil
}

func (d rateDocument) toExchangeRate() (currency.ExchangeRate, error) {
	value, err := decimal.NewFromString(d.Rate.String())

	if err != nil {
		return currency.ExchangeRate{}, fmt.Errorf("invalid rate stored for %s_%s: %w", d.From, d.To, err)
	}

	return currency.ExchangeRate{
		ID:       d.ID,
		From:     d.From,
		To:       d.To,
		Date:     currency.Day(d.Date.UTC()),
		Rate:     value,
		Provider: currency.Provider(d.Provider),
	}, nil
}
