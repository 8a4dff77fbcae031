package kafkaclient

import (
	"context"
	"errors"
	"fmt"
	"io"
	"sync"
	"testing"
	"time"

	"github.com/segmentio/kafka-go"
)

// mockReader replays a fixed set of messages, then reports io.EOF.
type mockReader struct {
	messages chan kafka.Message

	mu        sync.Mutex
	committed []int64
	closed    bool
	failFirst int
}

func newMockReader(count int, delay time.Duration) *mockReader {
	mr := &mockReader{messages: make(chan kafka.Message)}
	go func() {
		defer close(mr.messages)
		for i := 0; i < count; i++ {
			mr.messages <- kafka.Message{
				Topic:  "map-taps",
				Offset: int64(i),
				Value:  []byte(fmt.Sprintf("tap-%d", i)),
			}
			time.Sleep(delay)
		}
	}()
	return mr
}

func (mr *mockReader) ReadMessage(ctx context.Context) (kafka.Message, error) {
	mr.mu.Lock()
	if mr.closed {
		mr.mu.Unlock()
		return kafka.Message{}, io.EOF
	}
	if mr.failFirst > 0 {
		mr.failFirst--
		mr.mu.Unlock()
		return kafka.Message{}, errors.New("broker not available")
	}
	mr.mu.Unlock()

	select {
	case <-ctx.Done():
		return kafka.Message{}, ctx.Err()
	case msg, ok := <-mr.messages:
		if !ok {
			return kafka.Message{}, io.EOF
		}
		return msg, nil
	}
}

func (mr *mockReader) CommitMessages(_ context.Context, msgs ...kafka.Message) error {
	mr.mu.Lock()
	defer mr.mu.Unlock()
	if mr.closed {
		return io.EOF
	}
	for _, msg := range msgs {
		mr.committed = append(mr.committed, msg.Offset)
	}
	return nil
}

func (mr *mockReader) Close() error {
	mr.mu.Lock()
	defer mr.mu.Unlock()
	mr.closed = true
	return nil
}

func TestKafkaConsumer_ReadsAndCommits(t *testing.T) {
	tests := []struct {
		name      string
		count     int
		failFirst int
	}{
		{name: "three messages", count: 3},
		{name: "no messages", count: 0},
		{name: "recovers from read errors", count: 2, failFirst: 2},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
			defer cancel()

			reader := newMockReader(tt.count, time.Millisecond)
			reader.failFirst = tt.failFirst
			consumer := newConsumer(reader)
			consumer.retryDelay = 5 * time.Millisecond
			consumer.StartConsuming(ctx)
			iterator := consumer.NewIterator()

			received := 0
			for msg := range iterator.Messages() {
				if want := fmt.Sprintf("tap-%d", received); string(msg.Value) != want {
					t.Errorf("message %d: got %q, want %q", received, msg.Value, want)
				}
				if err := iterator.CommitOffset(ctx, msg); err != nil {
					t.Errorf("CommitOffset() failed: %v", err)
				}
				received++
			}
			consumer.Stop()

			if received != tt.count {
				t.Errorf("received %d messages, want %d", received, tt.count)
			}
			if len(reader.committed) != tt.count {
				t.Errorf("committed %d messages, want %d", len(reader.committed), tt.count)
			}
			if !reader.closed {
				t.Error("reader was not closed by Stop")
			}
		})
	}
}

func TestKafkaConsumer_StopWhileStreaming(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	reader := newMockReader(100, 5*time.Millisecond)
	consumer := newConsumer(reader)
	consumer.StartConsuming(ctx)
	iterator := consumer.NewIterator()

	for i := 0; i < 5; i++ {
		select {
		case <-iterator.Messages():
		case <-time.After(500 * time.Millisecond):
			t.Fatal("timed out waiting for a message")
		}
	}

	consumer.Stop()
	consumer.Stop()

	remaining := 0
	for range iterator.Messages() {
		remaining++
	}
	if remaining > 0 {
		t.Errorf("got %d messages after Stop, want 0", remaining)
	}
}
