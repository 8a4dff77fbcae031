package service

import (
	"context"

	"github.com/minio/minio-go/v7/pkg/notification"
	"github.com/segmentio/kafka-go"
)

// MessageIterator is the message source the Iterator reads bucket notifications
// from. *kafkaclient.Iterator satisfies it.
//
// Implementations own the consumer lifecycle and close Messages() when stopped.
type MessageIterator interface {
	// Messages returns a receive-only channel of Kafka messages.
	Messages() <-chan kafka.Message

	// CommitOffset acknowledges a processed message.
	CommitOffset(ctx context.Context, msg kafka.Message) error
}

// LoaderFunc loads and decodes the object named by a notification.
// Implementations must be read-only and honor ctx.
type LoaderFunc[T any] func(ctx context.Context, bucket, key string) (T, error)

// EventFilter selects the notification records worth loading.
type EventFilter func(event notification.Event) bool

// FetchedObject pairs a loaded object with the notification record that named it.
type FetchedObject[T any] struct {
	Data  T
	Event notification.Event
}
