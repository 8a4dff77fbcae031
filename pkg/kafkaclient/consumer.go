// Package kafkaclient wraps segmentio/kafka-go for the two streams of the map:
// tap events going out and bucket notifications coming in.
package kafkaclient

import (
	"context"
	"errors"
	"io"
	"log"
	"sync"
	"time"

	"github.com/segmentio/kafka-go"
)

// KafkaReader is the part of *kafka.Reader the consumer uses. Tests swap in a mock.
type KafkaReader interface {
	ReadMessage(ctx context.Context) (kafka.Message, error)
	CommitMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

// KafkaConsumer reads one topic in a consumer group and hands the messages out
// on a channel. Offsets are committed by the caller.
type KafkaConsumer struct {
	reader      KafkaReader
	doneChan    chan struct{}
	stopOnce    sync.Once
	wg          sync.WaitGroup
	messageChan chan kafka.Message
	retryDelay  time.Duration
}

// NewKafkaConsumer builds a consumer for topic. Auto-commit is disabled.
func NewKafkaConsumer(topic, groupID, broker string) *KafkaConsumer {
	reader := kafka.NewReader(kafka.ReaderConfig{
		Brokers:        []string{broker},
		Topic:          topic,
		GroupID:        groupID,
		CommitInterval: 0,
		MinBytes:       1,
		MaxBytes:       10e6,
		MaxWait:        500 * time.Millisecond,
	})
	return newConsumer(reader)
}

func newConsumer(reader KafkaReader) *KafkaConsumer {
	return &KafkaConsumer{
		reader:      reader,
		doneChan:    make(chan struct{}),
		messageChan: make(chan kafka.Message),
		retryDelay:  time.Second,
	}
}

// StartConsuming runs the read loop on its own goroutine. The message channel
// closes when ctx ends, Stop is called or the reader is closed.
func (kc *KafkaConsumer) StartConsuming(ctx context.Context) {
	kc.wg.Add(1)
	go func() {
		defer kc.wg.Done()
		defer close(kc.messageChan)

		log.Println("Starting Kafka consumer loop...")
		for {
			select {
			case <-ctx.Done():
				log.Println("Context canceled, stopping consumer loop.")
				return
			case <-kc.doneChan:
				log.Println("Shutdown signal received, stopping consumer loop.")
				return
			default:
			}

			msg, err := kc.reader.ReadMessage(ctx)
			if err != nil {
				if errors.Is(err, io.EOF) || errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
					log.Printf("Kafka reader finished: %v", err)
					return
				}
				log.Printf("Error reading message: %v", err)
				select {
				case <-time.After(kc.retryDelay):
				case <-kc.doneChan:
					return
				}
				continue
			}

			select {
			case kc.messageChan <- msg:
			case <-ctx.Done():
				return
			case <-kc.doneChan:
				return
			}
		}
	}()
}

// Stop ends the read loop, waits for it and closes the reader. It is safe to
// call more than once.
func (kc *KafkaConsumer) Stop() {
	kc.stopOnce.Do(func() {
		close(kc.doneChan)
		kc.wg.Wait()
		if err := kc.reader.Close(); err != nil {
			log.Printf("Failed to close Kafka reader: %v", err)
		}
		log.Println("Kafka consumer stopped.")
	})
}

// Iterator exposes a consumer's messages together with offset commits.
type Iterator struct {
	consumer *KafkaConsumer
}

func (kc *KafkaConsumer) NewIterator() *Iterator {
	return &Iterator{consumer: kc}
}

func (it *Iterator) Messages() <-chan kafka.Message {
	return it.consumer.messageChan
}

// CommitOffset commits msg for the consumer group.
func (it *Iterator) CommitOffset(ctx context.Context, msg kafka.Message) error {
	return it.consumer.reader.CommitMessages(ctx, msg)
}
