// Package service turns object store notifications into loaded objects.
// MinIO publishes bucket events to Kafka; the Iterator reads them through a
// MessageIterator (pkg/kafkaclient) and fetches each referenced object with a
// LoaderFunc. The map uses it to pick up a new style as soon as it is uploaded.
package service

import (
	"context"
	"encoding/json"
	"log"
	"net/url"

	"github.com/minio/minio-go/v7/pkg/notification"
)

// Iterator yields the objects named by bucket notifications. It is generic over
// the loaded type T.
//
// The Iterator does not manage the lifecycle of the message source.
type Iterator[T any] struct {
	msgIterator MessageIterator
	loader      LoaderFunc[T]
	filter      EventFilter
}

// NewIterator constructs an Iterator. A nil filter accepts every record.
func NewIterator[T any](iterator MessageIterator, loader LoaderFunc[T], filter EventFilter) *Iterator[T] {
	if filter == nil {
		filter = func(notification.Event) bool { return true }
	}
	return &Iterator[T]{
		msgIterator: iterator,
		loader:      loader,
		filter:      filter,
	}
}

// Objects streams one FetchedObject per accepted notification record. Messages
// that cannot be decoded, or whose objects fail to load, are logged and skipped.
// The offset of a message is committed once all of its records were handled.
// The returned channel closes when the message source closes or ctx ends.
func (it *Iterator[T]) Objects(ctx context.Context) <-chan *FetchedObject[T] {
	out := make(chan *FetchedObject[T])
	go func() {
		defer close(out)

		for {
			select {
			case <-ctx.Done():
				return
			case msg, ok := <-it.msgIterator.Messages():
				if !ok {
					return
				}

				var info notification.Info
				if err := json.Unmarshal(msg.Value, &info); err != nil {
					log.Printf("Error unmarshalling notification at offset %d: %v", msg.Offset, err)
					continue
				}

				for _, event := range info.Records {
					if !it.filter(event) {
						continue
					}
					key, err := url.QueryUnescape(event.S3.Object.Key)
					if err != nil {
						log.Printf("Error decoding object key %q: %v", event.S3.Object.Key, err)
						continue
					}
					data, err := it.loader(ctx, event.S3.Bucket.Name, key)
					if err != nil {
						log.Printf("Error loading %s/%s: %v", event.S3.Bucket.Name, key, err)
						continue
					}
					select {
					case out <- &FetchedObject[T]{Data: data, Event: event}:
					case <-ctx.Done():
						return
					}
				}

				if err := it.msgIterator.CommitOffset(ctx, msg); err != nil {
					log.Printf("Failed to commit offset: %v", err)
				}
			}
		}
	}()
	return out
}

// KeyFilter accepts records for one bucket and object key.
func KeyFilter(bucket, key string) EventFilter {
	return func(event notification.Event) bool {
		if event.S3.Bucket.Name != bucket {
			return false
		}
		decoded, err := url.QueryUnescape(event.S3.Object.Key)
		return err == nil && decoded == key
	}
}
