package mq

import (
	"context"
	"fmt"

	"github.com/result-system/apiserver/config"
)

// Open connects the backend named by cfg.Backend. The "none" backend drops
// every published message.
func Open(ctx context.Context, cfg config.MQConfig) (*MQ, error) {
	var (
		backend Backend
		err     error
	)
	switch cfg.Backend {
	case "", "none":
		backend = Discard{}
	case "rabbitmq":
		backend, err = NewRabbitMQClient(cfg.RabbitMQ)
	case "pubsub":
		backend, err = NewPubSubClient(ctx, cfg.PubSub)
	default:
		return nil, fmt.Errorf("unknown mq backend %q", cfg.Backend)
	}
	if err != nil {
		return nil, fmt.Errorf("mq %s: %w", cfg.Backend, err)
	}
	return New(backend), nil
}
