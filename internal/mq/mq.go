package mq

import (
	"context"
	"encoding/json"
	"fmt"
)

// AttrContentType carries the payload media type across backends.
const AttrContentType = "content-type"

const contentTypeJSON = "application/json"

// Message is a payload delivered to a subscriber, independent of the broker.
type Message struct {
	ID         string
	Data       []byte
	Attributes map[string]string
}

// Handler processes one message. A non-nil error nacks it for redelivery.
type Handler func(ctx context.Context, msg Message) error

// Backend is implemented by each broker client.
type Backend interface {
	Publish(ctx context.Context, channel string, data []byte, attrs map[string]string) (string, error)
	Subscribe(ctx context.Context, channel string, handler Handler) error
	Close() error
}

// MQ is the broker handle shared by publishers and consumers.
type MQ struct {
	backend Backend
}

func New(backend Backend) *MQ {
	return &MQ{backend: backend}
}

// Publish sends data to channel and returns the broker's message id.
func (m *MQ) Publish(ctx context.Context, channel string, data []byte, attrs map[string]string) (string, error) {
	return m.backend.Publish(ctx, channel, data, attrs)
}

// PublishJSON encodes v and publishes it with a JSON content type. attrs is
// not modified.
func (m *MQ) PublishJSON(ctx context.Context, channel string, v any, attrs map[string]string) (string, error) {
	data, err := json.Marshal(v)
	if err != nil {
		return "", fmt.Errorf("encode %s payload: %w", channel, err)
	}
	merged := make(map[string]string, len(attrs)+1)
	for k, val := range attrs {
		merged[k] = val
	}
	merged[AttrContentType] = contentTypeJSON
	return m.backend.Publish(ctx, channel, data, merged)
}

// Subscribe blocks delivering messages from channel until ctx is done.
func (m *MQ) Subscribe(ctx context.Context, channel string, handler Handler) error {
	return m.backend.Subscribe(ctx, channel, handler)
}

func (m *MQ) Close() error {
	return m.backend.Close()
}

// Discard is a Backend that accepts and drops every message.
type Discard struct{}

func (Discard) Publish(ctx context.Context, channel string, data []byte, attrs map[string]string) (string, error) {
	return "", nil
}

// Subscribe blocks until ctx is done; nothing is ever delivered.
func (Discard) Subscribe(ctx context.Context, channel string, handler Handler) error {
	<-ctx.Done()
	return ctx.Err()
}

func (Discard) Close() error { return nil }
