package events

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/segmentio/kafka-go"
	"github.com/shopspring/decimal"

	currency "github.com/malusev998/currency-rates"
)

type (
	// RateEvent announces an exchange rate written to storage.
	RateEvent struct {
		From     string          `json:"from_currency"`
		To       string          `json:"to_currency"`
		Date     string          `json:"date"`
		Rate     decimal.Decimal `json:"rate"`
		Provider string          `json:"provider"`
	}

	Publisher interface {
		PublishRates(ctx context.Context, rates []currency.ExchangeRate) error
	}

	messageWriter interface {
		WriteMessages(ctx context.Context, msgs ...kafka.Message) error
		Close() error
	}

	KafkaPublisher struct {
		writer messageWriter
	}
)

func NewRateEvent(rate currency.ExchangeRate) RateEvent {
	return RateEvent{
		From:     rate.From,
		To:       rate.To,
		Date:     rate.Date.Format(currency.DateLayout),
		Rate:     rate.Rate,
		Provider: rate.Provider.String(),
	}
}

// NewKafkaPublisher hashes message keys so every event of a currency pair
// lands on the same partition, in write order.
func NewKafkaPublisher(brokers []string, topic string) *KafkaPublisher {
	return NewKafkaPublisherWithWriter(&kafka.Writer{
		Addr:         kafka.TCP(brokers...),
		Topic:        topic,
		Balancer:     &kafka.Hash{},
		BatchTimeout: 50 * time.Millisecond,
	})
}

func NewKafkaPublisherWithWriter(writer messageWriter) *KafkaPublisher {
	return &KafkaPublisher{writer: writer}
}

func (k *KafkaPublisher) PublishRates(ctx context.Context, rates []currency.ExchangeRate) error {
	if len(rates) == 0 {
		return nil
	}

	now := time.Now()
	messages := make([]kafka.Message, 0, len(rates))

	for _, rate := range rates {
		msg, err := json.Marshal(NewRateEvent(rate))

		if err != nil {
			return err
		}

		messages = append(messages, kafka.Message{
			Key:   []byte(rate.Pair()),
			Value: msg,
			Time:  now,
		})
	}

	if err := k.writer.WriteMessages(ctx, messages...); err != nil {
		return fmt.Errorf("error while publishing %d exchange rates: %w", len(messages), err)
	}

	return nil
}

func (k *KafkaPublisher) Close() error {
	return k.writer.Close()
}
