package queue

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/rs/zerolog/log"
	"github.com/segmentio/kafka-go"

	"github.com/rl1809/stock-reserve/internal/core/domain"
	"github.com/rl1809/stock-reserve/internal/port"
)

const dedupHeaderKey = "dedup_id"

// KafkaSequencer publishes decrement requests keyed by partition key. The
// hash balancer maps one key to one partition, which gives the per-product
// FIFO guarantee; the broker has no native dedup, so the ledger's dedup
// window filters redundant enqueues before they are written.
type KafkaSequencer struct {
	writer *kafka.Writer
	ledger port.Ledger
}

func NewKafkaWriter(brokers []string, topic string) *kafka.Writer {
	return &kafka.Writer{
		Addr:         kafka.TCP(brokers...),
		Topic:        topic,
		Balancer:     &kafka.Hash{},
		RequiredAcks: kafka.RequireAll,
	}
}

func NewKafkaSequencer(writer *kafka.Writer, ledger port.Ledger) *KafkaSequencer {
	return &KafkaSequencer{writer: writer, ledger: ledger}
}

func (s *KafkaSequencer) Enqueue(ctx context.Context, msg domain.Message) error {
	ok, err := s.ledger.Reserve(ctx, msg.DeduplicationID)
	if err != nil {
		return fmt.Errorf("dedup reserve: %w", err)
	}
	if !ok {
		log.Debug().Str("dedup_id", msg.DeduplicationID).Msg("duplicate message discarded")
		return nil
	}

	payload, err := json.Marshal(msg.Request)
	if err != nil {
		return fmt.Errorf("marshal request: %w", err)
	}

	err = s.writer.WriteMessages(ctx, kafka.Message{
		Key:   []byte(msg.PartitionKey),
		Value: payload,
		Headers: []kafka.Header{
			{Key: dedupHeaderKey, Value: []byte(msg.DeduplicationID)},
		},
	})
	if err != nil {
		// The message never reached the broker. Give the dedup key back so
		// a retry of the same request is not discarded as a duplicate.
		if relErr := s.ledger.Release(ctx, msg.DeduplicationID); relErr != nil {
			log.Error().Err(relErr).Str("dedup_id", msg.DeduplicationID).
				Msg("failed to release dedup key after write failure")
		}
		return fmt.Errorf("write message: %w", err)
	}
	return nil
}
