package queue

import (
	"fmt"

	"qrattend/internal/config"
	"qrattend/internal/store"
)

// Open builds the queue backend selected by QUEUE_BACKEND.
// redis may be nil unless the redis backend is chosen.
func Open(cfg config.App, redis *store.Redis) (Queue, error) {
	switch cfg.QueueBackend {
	case "memory", "":
		return NewInMemory(256), nil
	case "redis":
		if redis == nil {
			return nil, fmt.Errorf("redis queue requires a redis client")
		}
		return NewRedisQueue(redis.Client, cfg.QueueKey), nil
	case "kafka":
		return NewKafkaQueue(cfg.KafkaBrokers, cfg.KafkaTopic, cfg.KafkaGroupID), nil
	default:
		return nil, fmt.Errorf("unknown queue backend %q", cfg.QueueBackend)
	}
}
