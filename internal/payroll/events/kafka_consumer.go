package events

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/cenkalti/backoff/v4"
	e "github.com/gartstein/payroll/internal/payroll/errors"
	"github.com/google/uuid"
	"github.com/segmentio/kafka-go"
	"go.uber.org/zap"
)

// SettlementStatus is the outcome reported by the payment provider.
type SettlementStatus string

const (
	SettlementSuccessful SettlementStatus = "successful"
	SettlementFailed     SettlementStatus = "failed"
)

// Settlement is the message the payment provider publishes once a payment
// has been processed.
type Settlement struct {
	PaymentID uuid.UUID        `json:"payment_id"`
	Status    SettlementStatus `json:"status"`
	Reason    string           `json:"reason,omitempty"`
}

func (s Settlement) validate() error {
	if s.PaymentID == uuid.Nil {
		return fmt.Errorf("%w: payment_id is required", e.ErrInvalidInput)
	}
	switch s.Status {
	case SettlementSuccessful, SettlementFailed:
		return nil
	default:
		return fmt.Errorf("%w: unknown settlement status %q", e.ErrInvalidInput, s.Status)
	}
}

type KafkaReader interface {
	FetchMessage(ctx context.Context) (kafka.Message, error)
	CommitMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

// SettlementHandler applies one settlement.
type SettlementHandler func(context.Context, Settlement) error

// Consumer reads settlement messages. Messages the handler rejects as
// invalid are committed and skipped; infrastructure failures leave the
// offset uncommitted so the message is redelivered. Fetch errors are
// retried with exponential backoff until the context ends.
type Consumer struct {
	reader       KafkaReader
	logger       *zap.Logger
	handler      SettlementHandler
	fetchBackoff func() backoff.BackOff
	done         chan struct{}
}

func NewConsumer(brokers []string, groupID, topic string, logger *zap.Logger) *Consumer {
	return newConsumer(kafka.NewReader(kafka.ReaderConfig{
		Brokers: brokers,
		GroupID: groupID,
		Topic:   topic,
		Dialer:  kafka.DefaultDialer,
	}), logger)
}

func newConsumer(reader KafkaReader, logger *zap.Logger) *Consumer {
	return &Consumer{
		reader:       reader,
		logger:       logger.Named("kafka_consumer"),
		fetchBackoff: defaultFetchBackoff,
		done:         make(chan struct{}),
	}
}

func defaultFetchBackoff() backoff.BackOff {
	policy := backoff.NewExponentialBackOff()
	policy.InitialInterval = 100 * time.Millisecond
	policy.MaxInterval = 10 * time.Second
	policy.MaxElapsedTime = 0
	return policy
}

func (c *Consumer) RegisterHandler(fn SettlementHandler) {
	c.handler = fn
}

// Start consumes until ctx is cancelled. Without a registered handler the
// loop stops at once and no message is fetched.
func (c *Consumer) Start(ctx context.Context) {
	if c.handler == nil {
		c.logger.Error("No settlement handler registered, consumer not started")
		close(c.done)
		return
	}
	go func() {
		defer close(c.done)
		for {
			msg, err := c.fetch(ctx)
			if err != nil {
				return
			}
			if c.process(ctx, msg) {
				c.commit(ctx, msg)
			}
		}
	}()
}

// fetch returns the next message, backing off between failed attempts. It
// only fails once ctx is done.
func (c *Consumer) fetch(ctx context.Context) (kafka.Message, error) {
	var msg kafka.Message
	operation := func() error {
		var err error
		msg, err = c.reader.FetchMessage(ctx)
		if err != nil && ctx.Err() != nil {
			return backoff.Permanent(ctx.Err())
		}
		return err
	}
	notify := func(err error, wait time.Duration) {
		c.logger.Error("Failed to fetch message", zap.Error(err), zap.Duration("retry_in", wait))
	}
	err := backoff.RetryNotify(operation, backoff.WithContext(c.fetchBackoff(), ctx), notify)
	return msg, err
}

// process reports whether msg is finished with and can be committed.
func (c *Consumer) process(ctx context.Context, msg kafka.Message) bool {
	var settlement Settlement
	if err := json.Unmarshal(msg.Value, &settlement); err != nil {
		c.logger.Error("Failed to parse settlement",
			zap.Error(err),
			zap.ByteString("value", msg.Value),
		)
		return true
	}
	if err := settlement.validate(); err != nil {
		c.logger.Warn("Skipping invalid settlement", zap.Error(err), zap.ByteString("value", msg.Value))
		return true
	}

	if err := c.handler(ctx, settlement); err != nil {
		fields := []zap.Field{
			zap.Error(err),
			zap.String("payment_id", settlement.PaymentID.String()),
			zap.String("status", string(settlement.Status)),
		}
		if e.IsValidation(err) || errors.Is(err, e.ErrNotFound) {
			c.logger.Warn("Settlement rejected", fields...)
			return true
		}
		c.logger.Error("Failed to handle settlement", fields...)
		return false
	}
	return true
}

func (c *Consumer) commit(ctx context.Context, msg kafka.Message) {
	if err := c.reader.CommitMessages(ctx, msg); err != nil {
		c.logger.Error("Failed to commit message",
			zap.Error(err),
			zap.Int64("offset", msg.Offset),
		)
	}
}

// Wait blocks until the consume loop has stopped.
func (c *Consumer) Wait() {
	<-c.done
}

func (c *Consumer) Close() {
	if err := c.reader.Close(); err != nil {
		c.logger.Error("Failed to close Kafka reader", zap.Error(err))
	}
}
