package events

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/Caskiuz/nemymarket.git/internal/logger"
	"github.com/Caskiuz/nemymarket.git/internal/metrics"
	"github.com/Caskiuz/nemymarket.git/internal/models"
	"github.com/Caskiuz/nemymarket.git/internal/settlement"
	"github.com/IBM/sarama"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

// Consumer reads delivered-order events from the broker and feeds them
// into the settlement path. Handling is idempotent end to end, so a
// redelivered or replayed message is harmless.
type Consumer struct {
	brokers []string
	topic   string
	settle  settlement.SettlementService
}

func NewConsumer(brokers []string, topic string, settle settlement.SettlementService) *Consumer {
	return &Consumer{brokers: brokers, topic: topic, settle: settle}
}

func (c *Consumer) Run(ctx context.Context) error {
	consumer, err := sarama.NewConsumer(c.brokers, sarama.NewConfig())
	if err != nil {
		return fmt.Errorf("failed to create consumer: %w", err)
	}
	defer func() {
		if err := consumer.Close(); err != nil {
			logger.Log.Error("failed to close consumer", zap.Error(err))
		}
	}()

	partitions, err := consumer.Partitions(c.topic)
	if err != nil {
		return fmt.Errorf("failed to list partitions for %s: %w", c.topic, err)
	}
	logger.Log.Info("consuming delivered-order events",
		zap.String("topic", c.topic),
		zap.Int("partitions", len(partitions)))

	g, ctx := errgroup.WithContext(ctx)
	for _, partition := range partitions {
		pc, err := consumer.ConsumePartition(c.topic, partition, sarama.OffsetNewest)
		if err != nil {
			return fmt.Errorf("failed to consume partition %d: %w", partition, err)
		}
		g.Go(func() error {
			return c.awaitMessages(ctx, pc, partition)
		})
	}
	return g.Wait()
}

func (c *Consumer) awaitMessages(ctx context.Context, pc sarama.PartitionConsumer, partition int32) error {
	defer func() {
		if err := pc.Close(); err != nil {
			logger.Log.Error("failed to close partition consumer",
				zap.Int32("partition", partition), zap.Error(err))
		}
	}()
	for {
		select {
		case msg := <-pc.Messages():
			c.handleMessage(ctx, msg)
		case err := <-pc.Errors():
			logger.Log.Error("consumer error",
				zap.Int32("partition", partition), zap.Error(err))
		case <-ctx.Done():
			logger.Log.Info("stopping consumer", zap.Int32("partition", partition))
			return nil
		}
	}
}

func (c *Consumer) handleMessage(ctx context.Context, msg *sarama.ConsumerMessage) {
	var ev models.OrderDeliveredEvent
	if err := json.Unmarshal(msg.Value, &ev); err != nil {
		logger.Log.Error("failed to unmarshal delivered-order event",
			zap.Int64("offset", msg.Offset), zap.Error(err))
		metrics.EventsConsumed.WithLabelValues("malformed").Inc()
		return
	}
	if err := c.settle.HandleDelivered(ctx, ev); err != nil {
		// Invalid events are dropped for good; transient failures are
		// left to the reconcile job, which re-drives unsettled orders.
		if errors.Is(err, models.ErrInvalidEvent) {
			logger.Log.Error("dropping invalid delivered-order event",
				zap.String("order", ev.OrderID), zap.Error(err))
			metrics.EventsConsumed.WithLabelValues("invalid").Inc()
			return
		}
		logger.Log.Error("failed to settle delivered order",
			zap.String("order", ev.OrderID), zap.Error(err))
		metrics.EventsConsumed.WithLabelValues("failed").Inc()
		return
	}
	metrics.EventsConsumed.WithLabelValues("ok").Inc()
}
