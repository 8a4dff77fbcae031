package service

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/segmentio/kafka-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// mockMessages feeds canned messages and records commits.
type mockMessages struct {
	ch        chan kafka.Message
	mu        sync.Mutex
	committed []int64
}

func newMockMessages(values ...string) *mockMessages {
	m := &mockMessages{ch: make(chan kafka.Message, len(values))}
	for i, v := range values {
		m.ch <- kafka.Message{Topic: "bucket-events", Offset: int64(i), Value: []byte(v)}
	}
	close(m.ch)
	return m
}

func (m *mockMessages) Messages() <-chan kafka.Message { return m.ch }

func (m *mockMessages) CommitOffset(_ context.Context, msg kafka.Message) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.committed = append(m.committed, msg.Offset)
	return nil
}

func notificationJSON(bucket, key string) string {
	return fmt.Sprintf(`{"EventName":"s3:ObjectCreated:Put","Key":"%s/%s","Records":[{"eventName":"s3:ObjectCreated:Put","s3":{"bucket":{"name":"%s"},"object":{"key":"%s"}}}]}`,
		bucket, key, bucket, key)
}

func TestIterator_Objects(t *testing.T) {
	tests := []struct {
		name       string
		messages   []string
		filter     EventFilter
		loaderErr  map[string]error
		wantKeys   []string
		wantCommit []int64
	}{
		{
			name:       "loads every record",
			messages:   []string{notificationJSON("styles", "night.json"), notificationJSON("styles", "day.json")},
			wantKeys:   []string{"styles/night.json", "styles/day.json"},
			wantCommit: []int64{0, 1},
		},
		{
			name:       "unescapes keys",
			messages:   []string{notificationJSON("styles", "map%2Fstyle.json")},
			wantKeys:   []string{"styles/map/style.json"},
			wantCommit: []int64{0},
		},
		{
			name:       "skips bad json without committing",
			messages:   []string{"not json", notificationJSON("styles", "day.json")},
			wantKeys:   []string{"styles/day.json"},
			wantCommit: []int64{1},
		},
		{
			name:       "filter drops other objects",
			messages:   []string{notificationJSON("styles", "other.json"), notificationJSON("styles", "style.json")},
			filter:     KeyFilter("styles", "style.json"),
			wantKeys:   []string{"styles/style.json"},
			wantCommit: []int64{0, 1},
		},
		{
			name:       "loader error is skipped",
			messages:   []string{notificationJSON("styles", "broken.json")},
			loaderErr:  map[string]error{"broken.json": errors.New("boom")},
			wantKeys:   nil,
			wantCommit: []int64{0},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ctx, cancel := context.WithTimeout(context.Background(), time.Second)
			defer cancel()

			src := newMockMessages(tt.messages...)
			loader := func(_ context.Context, bucket, key string) (string, error) {
				if err := tt.loaderErr[key]; err != nil {
					return "", err
				}
				return bucket + "/" + key, nil
			}

			var got []string
			for obj := range NewIterator[string](src, loader, tt.filter).Objects(ctx) {
				got = append(got, obj.Data)
			}

			assert.Equal(t, tt.wantKeys, got)
			src.mu.Lock()
			defer src.mu.Unlock()
			assert.Equal(t, tt.wantCommit, src.committed)
		})
	}
}

func TestIterator_StopsOnContextCancel(t *testing.T) {
	src := &mockMessages{ch: make(chan kafka.Message)}
	ctx, cancel := context.WithCancel(context.Background())

	out := NewIterator[string](src, func(context.Context, string, string) (string, error) {
		return "", nil
	}, nil).Objects(ctx)
	cancel()

	select {
	case _, ok := <-out:
		require.False(t, ok, "channel should be closed")
	case <-time.After(time.Second):
		t.Fatal("iterator did not stop after cancel")
	}
}
