package queue

import (
	"context"
	"time"

	"github.com/segmentio/kafka-go"

	"qrattend/internal/logger"
)

// KafkaQueue publishes to and consumes from a single Kafka topic.
type KafkaQueue struct {
	writer  *kafka.Writer
	brokers []string
	topic   string
	groupID string
	reader  *kafka.Reader
}

// NewKafkaQueue builds a writer for topic; a consumer group reader is created lazily by Consume.
func NewKafkaQueue(brokers []string, topic, groupID string) *KafkaQueue {
	writer := &kafka.Writer{
		Addr:         kafka.TCP(brokers...),
		Topic:        topic,
		Balancer:     &kafka.LeastBytes{},
		RequiredAcks: kafka.RequireAll,
		BatchSize:    1,
		BatchTimeout: 10 * time.Millisecond,
		MaxAttempts:  3,
		WriteTimeout: 5 * time.Second,
	}
	return &KafkaQueue{writer: writer, brokers: brokers, topic: topic, groupID: groupID}
}

// Publish writes the message body keyed by message id.
func (q *KafkaQueue) Publish(ctx context.Context, msg Message) error {
	return q.writer.WriteMessages(ctx, kafka.Message{
		Key:   []byte(msg.ID),
		Value: msg.Body,
		Time:  msg.At,
		Headers: []kafka.Header{
			{Key: "event-type", Value: []byte(msg.Type)},
		},
	})
}

// Consume reads messages and commits each one after it is handed to the caller.
func (q *KafkaQueue) Consume(ctx context.Context) (<-chan Message, error) {
	q.reader = kafka.NewReader(kafka.ReaderConfig{
		Brokers:  q.brokers,
		Topic:    q.topic,
		GroupID:  q.groupID,
		MinBytes: 1,
		MaxBytes: 10e6,
	})

	out := make(chan Message)
	go func() {
		defer close(out)
		for {
			km, err := q.reader.FetchMessage(ctx)
			if err != nil {
				if ctx.Err() != nil {
					return
				}
				logger.Log.WithError(err).Error("kafka fetch failed")
				time.Sleep(time.Second)
				continue
			}

			select {
			case out <- fromKafka(km):
			case <-ctx.Done():
				return
			}
			if err := q.reader.CommitMessages(ctx, km); err != nil {
				logger.Log.WithError(err).Error("kafka commit failed")
			}
		}
	}()
	return out, nil
}

func (q *KafkaQueue) Close() error {
	if q.reader != nil {
		_ = q.reader.Close()
	}
	return q.writer.Close()
}

func fromKafka(km kafka.Message) Message {
	msg := Message{ID: string(km.Key), At: km.Time, Body: km.Value}
	for _, h := range km.Headers {
		if h.Key == "event-type" {
			msg.Type = string(h.Value)
		}
	}
	return msg
}
