package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log"
	"os"

	"github.com/segmentio/kafka-go"

	"clustermap/internal/enrich"
	"clustermap/internal/env"
	"clustermap/internal/models"
	"clustermap/pkg/graceful"
	"clustermap/pkg/kafkaclient"
)

// watchedTap is one consumed message on its way through the pipeline.
type watchedTap struct {
	msg   kafka.Message
	event *models.TapEvent
}

type committer interface {
	CommitOffset(ctx context.Context, msg kafka.Message) error
}

func main() {
	env.LoadEnv()
	ctx, cancel := graceful.Context(context.Background())
	defer cancel()

	broker := env.MustGetEnv("KAFKA_BROKER")
	topic := env.String("KAFKA_TAP_TOPIC", "map-taps")
	groupID := env.String("KAFKA_GROUP_ID", "clustermap") + "-tapwatch"

	log.Printf("Connecting to Kafka broker: %s on topic: %s with group ID: %s", broker, topic, groupID)
	consumer := kafkaclient.NewKafkaConsumer(topic, groupID, broker)
	consumer.StartConsuming(ctx)
	iterator := consumer.NewIterator()

	taps := make(chan *watchedTap)
	go func() {
		defer close(taps)
		for msg := range iterator.Messages() {
			taps <- &watchedTap{msg: msg}
		}
	}()

	newWatchPipeline(os.Stdout, iterator).Process(ctx, taps)

	consumer.Stop()
	log.Println("Main method finished, application exiting.")
}

// newWatchPipeline decodes each message, prints it and commits its offset.
// Malformed messages are logged and still committed.
func newWatchPipeline(out io.Writer, offsets committer) *enrich.Pipeline[watchedTap] {
	return enrich.NewPipeline(
		enrich.NewStage(decodeStep),
		enrich.NewStage(printStep(out)),
		enrich.NewStage(commitStep(offsets)),
	)
}

func decodeStep(_ context.Context, tap *watchedTap) error {
	var ev models.TapEvent
	if err := json.Unmarshal(tap.msg.Value, &ev); err != nil {
		return fmt.Errorf("skipping malformed tap event at offset %d: %w", tap.msg.Offset, err)
	}
	tap.event = &ev
	return nil
}

func printStep(out io.Writer) enrich.Step[watchedTap] {
	return func(_ context.Context, tap *watchedTap) error {
		if tap.event == nil {
			return nil
		}
		_, err := fmt.Fprintln(out, describe(*tap.event))
		return err
	}
}

func commitStep(offsets committer) enrich.Step[watchedTap] {
	return func(ctx context.Context, tap *watchedTap) error {
		if err := offsets.CommitOffset(ctx, tap.msg); err != nil {
			return fmt.Errorf("failed to commit offset %d: %w", tap.msg.Offset, err)
		}
		return nil
	}
}

func describe(ev models.TapEvent) string {
	at := ev.At.Format("15:04:05")
	switch ev.Kind {
	case models.TapCluster:
		return fmt.Sprintf("%s cluster of %d at %v", at, ev.Count, ev.Coordinate)
	case models.TapMarker:
		if ev.ItemName != "" {
			return fmt.Sprintf("%s marker %s at %v", at, ev.ItemName, ev.Coordinate)
		}
		return fmt.Sprintf("%s marker of %d at %v", at, ev.Count, ev.Coordinate)
	default:
		s := fmt.Sprintf("%s map at %v", at, ev.Coordinate)
		if ev.Nearest != "" {
			s += " near " + ev.Nearest
		}
		if ev.Address != nil && len(ev.Address.Lines) > 0 {
			s += " (" + ev.Address.Lines[0] + ")"
		}
		return s
	}
}
