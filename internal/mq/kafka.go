package mq

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/segmentio/kafka-go"

	"github.com/qenty/academy/config"
)

const messageIDHeader = "message-id"

type kafkaReader interface {
	FetchMessage(ctx context.Context) (kafka.Message, error)
	CommitMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

var (
	newKafkaReader = func(cfg kafka.ReaderConfig) kafkaReader { return kafka.NewReader(cfg) }

	kafkaMaxAttempts  = 5
	kafkaRetryBackoff = 500 * time.Millisecond
)

// KafkaClient maps channels to Kafka topics. Consumers share one group id so
// each event is handled once per deployment.
type KafkaClient struct {
	brokers []string
	groupID string

	mu      sync.Mutex
	writers map[string]*kafka.Writer
}

func NewKafkaClient(cfg config.KafkaConfig) (*KafkaClient, error) {
	if len(cfg.Brokers) == 0 {
		return nil, errors.New("kafka brokers are required")
	}
	if strings.TrimSpace(cfg.GroupID) == "" {
		return nil, errors.New("kafka group id is required")
	}
	return &KafkaClient{
		brokers: cfg.Brokers,
		groupID: cfg.GroupID,
		writers: make(map[string]*kafka.Writer),
	}, nil
}

func (k *KafkaClient) Publish(ctx context.Context, channel string, data []byte, attrs map[string]string) (string, error) {
	if strings.TrimSpace(channel) == "" {
		return "", errors.New("kafka channel is required")
	}

	messageID := uuid.NewString()
	headers := []kafka.Header{{Key: messageIDHeader, Value: []byte(messageID)}}
	for key, value := range attrs {
		headers = append(headers, kafka.Header{Key: key, Value: []byte(value)})
	}

	err := k.writer(channel).WriteMessages(ctx, kafka.Message{
		Key:     []byte(messageID),
		Value:   data,
		Headers: headers,
	})
	if err != nil {
		return "", err
	}
	return messageID, nil
}

// Subscribe blocks until ctx is done. Kafka commits are cumulative, so a
// message the handler rejects is retried in place with a growing backoff and
// never committed past. Once the attempts run out Subscribe returns the
// handler error; the group resumes from the uncommitted offset.
func (k *KafkaClient) Subscribe(ctx context.Context, channel string, handler Handler) error {
	if strings.TrimSpace(channel) == "" {
		return errors.New("kafka channel is required")
	}

	reader := newKafkaReader(kafka.ReaderConfig{
		Brokers:  k.brokers,
		GroupID:  k.groupID,
		Topic:    channel,
		MinBytes: 1,
		MaxBytes: 10 << 20,
	})
	defer reader.Close()

	for {
		msg, err := reader.FetchMessage(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			return err
		}

		if err := handleKafkaMessage(ctx, msg, handler); err != nil {
			return err
		}
		if err := reader.CommitMessages(ctx, msg); err != nil {
			return err
		}
	}
}

func handleKafkaMessage(ctx context.Context, msg kafka.Message, handler Handler) error {
	message := Message{ID: string(msg.Key), Data: msg.Value, Attributes: kafkaHeadersToAttributes(msg.Headers)}
	if id, ok := message.Attributes[messageIDHeader]; ok {
		message.ID = id
		delete(message.Attributes, messageIDHeader)
	}

	backoff := kafkaRetryBackoff
	for attempt := 1; ; attempt++ {
		err := handler(ctx, message)
		if err == nil {
			return nil
		}
		if attempt >= kafkaMaxAttempts {
			return fmt.Errorf("kafka message %s at offset %d failed after %d attempts: %w", message.ID, msg.Offset, attempt, err)
		}

		timer := time.NewTimer(backoff)
		select {
		case <-ctx.Done():
			timer.Stop()
			return ctx.Err()
		case <-timer.C:
		}
		backoff *= 2
	}
}

func (k *KafkaClient) Close() error {
	k.mu.Lock()
	defer k.mu.Unlock()
	var errs []error
	for _, w := range k.writers {
		errs = append(errs, w.Close())
	}
	return errors.Join(errs...)
}

func (k *KafkaClient) writer(topic string) *kafka.Writer {
	k.mu.Lock()
	defer k.mu.Unlock()
	if w, ok := k.writers[topic]; ok {
		return w
	}
	w := &kafka.Writer{
		Addr:                   kafka.TCP(k.brokers...),
		Topic:                  topic,
		Balancer:               &kafka.LeastBytes{},
		AllowAutoTopicCreation: true,
	}
	k.writers[topic] = w
	return w
}

func kafkaHeadersToAttributes(headers []kafka.Header) map[string]string {
	if len(headers) == 0 {
		return nil
	}
	attrs := make(map[string]string, len(headers))
	for _, h := range headers {
		attrs[h.Key] = string(h.Value)
	}
	return attrs
}
