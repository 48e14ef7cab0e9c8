package queue

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"sync"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/segmentio/kafka-go"

	"github.com/rl1809/stock-reserve/internal/core/domain"
	"github.com/rl1809/stock-reserve/internal/port"
)

// KafkaConsumer drains the stock topic and feeds the handler. A commit is
// the acknowledgment: a crash before commit means the group redelivers the
// message, which the handler tolerates through its idempotency ledger.
type KafkaConsumer struct {
	reader  *kafka.Reader
	handler port.MessageHandler
	wg      sync.WaitGroup
}

func NewKafkaReader(brokers []string, topic, groupID string) *kafka.Reader {
	return kafka.NewReader(kafka.ReaderConfig{
		Brokers:  brokers,
		Topic:    topic,
		GroupID:  groupID,
		MinBytes: 1,
		MaxBytes: 10e6,
	})
}

func NewKafkaConsumer(reader *kafka.Reader, handler port.MessageHandler) *KafkaConsumer {
	return &KafkaConsumer{reader: reader, handler: handler}
}

func (c *KafkaConsumer) Start(ctx context.Context) {
	c.wg.Add(1)
	go func() {
		defer c.wg.Done()
		log.Info().Str("topic", c.reader.Config().Topic).Msg("kafka consumer started")

		for {
			m, err := c.reader.FetchMessage(ctx)
			if err != nil {
				if ctx.Err() != nil || errors.Is(err, io.EOF) || errors.Is(err, kafka.ErrGroupClosed) {
					log.Info().Msg("kafka consumer stopping")
					return
				}
				log.Error().Err(err).Msg("fetch message failed")
				time.Sleep(time.Second)
				continue
			}

			c.process(ctx, m)
		}
	}()
}

func (c *KafkaConsumer) Stop() {
	c.reader.Close()
	c.wg.Wait()
}

func (c *KafkaConsumer) process(ctx context.Context, m kafka.Message) {
	var req domain.DecrementRequest
	if err := json.Unmarshal(m.Value, &req); err != nil {
		log.Error().Err(err).Msg("skipping malformed message")
		c.commit(ctx, m)
		return
	}

	msg := domain.Message{
		PartitionKey:    string(m.Key),
		DeduplicationID: dedupID(m),
		Request:         req,
	}
	if msg.DeduplicationID == "" {
		msg.DeduplicationID = req.DeduplicationID()
	}

	if err := c.handler(ctx, msg); err != nil && errors.Is(err, domain.ErrStoreUnavailable) {
		// Leave uncommitted so the group offset stays behind this message;
		// it is redelivered after a restart or rebalance.
		return
	}

	c.commit(ctx, m)
}

func (c *KafkaConsumer) commit(ctx context.Context, m kafka.Message) {
	if err := c.reader.CommitMessages(ctx, m); err != nil {
		log.Error().Err(err).Msg("failed to commit message")
	}
}

func dedupID(m kafka.Message) string {
	for _, h := range m.Headers {
		if h.Key == dedupHeaderKey {
			return string(h.Value)
		}
	}
	return ""
}
