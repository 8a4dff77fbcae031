package enrich

import (
	"context"
	"errors"
	"fmt"
	"log"

	"clustermap/internal/models"
	"clustermap/pkg/geo"
	"clustermap/pkg/location"
)

// EventSink receives finished tap events. *kafkaclient.Publisher satisfies it.
type EventSink interface {
	Publish(ctx context.Context, key string, v any) error
}

// ItemFinder hit-tests the clustered items.
type ItemFinder interface {
	Nearest(coord geo.Coordinate, zoom int) (int, bool)
	Item(index int) (models.Item, bool)
}

// GeocodeStep attaches the reverse-geocoded address to map taps.
func GeocodeStep(reverser location.Reverser) Step[models.TapEvent] {
	return func(ctx context.Context, ev *models.TapEvent) error {
		if ev.Kind != models.TapMap {
			return nil
		}
		addr, err := reverser.Reverse(ctx, ev.Coordinate)
		if errors.Is(err, location.ErrNoAddress) {
			log.Printf("No address at %v", ev.Coordinate)
			return nil
		}
		if err != nil {
			return fmt.Errorf("reverse geocode %v: %w", ev.Coordinate, err)
		}
		ev.Address = addr
		return nil
	}
}

// NearestItemStep records the name of the item under a map tap, if any. zoom
// reports the current camera zoom.
func NearestItemStep(finder ItemFinder, zoom func() int) Step[models.TapEvent] {
	return func(_ context.Context, ev *models.TapEvent) error {
		if ev.Kind != models.TapMap {
			return nil
		}
		idx, ok := finder.Nearest(ev.Coordinate, zoom())
		if !ok {
			return nil
		}
		if item, ok := finder.Item(idx); ok {
			ev.Nearest = item.Name()
		}
		return nil
	}
}

// LogAddressStep prints the address fields of a geocoded tap.
func LogAddressStep(_ context.Context, ev *models.TapEvent) error {
	a := ev.Address
	if a == nil {
		return nil
	}
	log.Printf("Address for %v:", ev.Coordinate)
	log.Printf("  thoroughfare: %s", a.Thoroughfare)
	log.Printf("  locality: %s", a.Locality)
	log.Printf("  subLocality: %s", a.SubLocality)
	log.Printf("  administrativeArea: %s", a.AdministrativeArea)
	log.Printf("  postalCode: %s", a.PostalCode)
	log.Printf("  country: %s", a.Country)
	for i, line := range a.Lines {
		log.Printf("  line %d: %s", i, line)
	}
	return nil
}

// ForwardStep publishes the event keyed by its id. A nil sink drops events.
func ForwardStep(sink EventSink) Step[models.TapEvent] {
	return func(ctx context.Context, ev *models.TapEvent) error {
		if sink == nil {
			return nil
		}
		if err := sink.Publish(ctx, ev.ID, ev); err != nil {
			return fmt.Errorf("forward tap %s: %w", ev.ID, err)
		}
		return nil
	}
}

// NewTapPipeline resolves the address and the nearest item in parallel, then
// logs and forwards the event.
func NewTapPipeline(reverser location.Reverser, finder ItemFinder, zoom func() int, sink EventSink) *Pipeline[models.TapEvent] {
	return NewPipeline(
		NewStage(GeocodeStep(reverser), NearestItemStep(finder, zoom)),
		NewStage(LogAddressStep, ForwardStep(sink)),
	)
}
