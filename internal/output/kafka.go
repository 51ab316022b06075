package output

import (
	"context"
	"fmt"
	"time"

	"github.com/IBM/sarama"
	"go.uber.org/zap"
)

type KafkaBroker struct {
	producer     sarama.AsyncProducer
	cfg          *KafkaConfig
	inputTimeout time.Duration
	logger       *zap.Logger
}

func NewKafkaBroker(logger *zap.Logger, cfg *KafkaConfig) (*KafkaBroker, error) {
	acks, err := cfg.requiredAcks()
	if err != nil {
		return nil, err
	}

	saramaCfg := sarama.NewConfig()
	saramaCfg.Producer.Return.Successes = true
	saramaCfg.Producer.Flush.Messages = cfg.FlushMessages
	saramaCfg.Producer.Flush.Frequency = cfg.FlushFrequency
	saramaCfg.ChannelBufferSize = cfg.ChannelBufferSize
	saramaCfg.Producer.RequiredAcks = acks
	saramaCfg.Producer.Idempotent = false

	producer, err := sarama.NewAsyncProducer(cfg.Brokers, saramaCfg)
	if err != nil {
		logger.Error("failed to create Kafka producer", zap.Error(err))
		return nil, err
	}

	logger.Info("kafka producer initialized",
		zap.Strings("brokers", cfg.Brokers),
		zap.String("topic", cfg.Topic),
	)

	return newKafkaBroker(logger, cfg, producer), nil
}

func newKafkaBroker(logger *zap.Logger, cfg *KafkaConfig, producer sarama.AsyncProducer) *KafkaBroker {
	return &KafkaBroker{
		producer:     producer,
		cfg:          cfg,
		inputTimeout: time.Second,
		logger:       logger,
	}
}

// SendBatch publishes every message of the batch and waits until Kafka has
// acknowledged all of them.
func (k *KafkaBroker) SendBatch(ctx context.Context, batch Batch) error {
	logger := k.logger.With(zap.String("method", "SendBatch"))

	if len(batch.Messages) == 0 {
		return nil
	}

	remaining := make(map[string]struct{}, len(batch.Messages))
	for _, msg := range batch.Messages {
		remaining[msg.ID] = struct{}{}
	}

	// the ack reader must be gone before a retry of the same batch starts
	ctx, cancel := context.WithCancel(ctx)
	readerDone := make(chan struct{})
	defer func() {
		cancel()
		<-readerDone
	}()

	done := make(chan struct{})
	errChan := make(chan error, 1)

	go func() {
		defer close(readerDone)
		for {
			select {
			case msg := <-k.producer.Successes():
				meta, ok := msg.Metadata.(Message)
				if !ok {
					logger.Warn("kafka ack metadata type mismatch")
					continue
				}

				if _, ok := remaining[meta.ID]; !ok {
					logger.Warn("kafka acked unknown message ID", zap.String("id", meta.ID))
					continue
				}
				delete(remaining, meta.ID)

				if len(remaining) == 0 {
					close(done)
					return
				}

			case err := <-k.producer.Errors():
				logger.Error("kafka send error", zap.Error(err.Err))
				errChan <- err.Err
				return

			case <-ctx.Done():
				errChan <- ctx.Err()
				return
			}
		}
	}()

	for _, m := range batch.Messages {
		msg := &sarama.ProducerMessage{
			Topic:    k.cfg.Topic,
			Value:    sarama.ByteEncoder(m.Payload),
			Key:      sarama.StringEncoder(batch.Key),
			Metadata: m,
		}

		select {
		case k.producer.Input() <- msg:
		case <-ctx.Done():
			logger.Warn("context cancelled while sending to kafka")
			return ctx.Err()
		case <-time.After(k.inputTimeout):
			logger.Warn("timeout on Kafka input queue")
			return fmt.Errorf("timeout on input queue")
		}
	}

	select {
	case <-done:
		return nil
	case err := <-errChan:
		return err
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (k *KafkaBroker) Close(ctx context.Context) error {
	k.logger.Info("kafka producer shutting down...")
	done := make(chan struct{})

	go func() {
		err := k.producer.Close()
		if err != nil {
			k.logger.Warn("error while closing Kafka producer", zap.Error(err))
		}
		close(done)
	}()

	select {
	case <-done:
		k.logger.Info("kafka producer closed")
		return nil
	case <-ctx.Done():
		k.logger.Warn("kafka producer close timeout", zap.Error(ctx.Err()))
		return ctx.Err()
	}
}
