package env

import (
	"errors"
	"fmt"

	"clustermap/internal/poi"
	"clustermap/pkg/geo"
)

// Config is the process configuration read from the environment.
type Config struct {
	Camera     geo.Coordinate
	Zoom       float64
	ItemCount  int
	ItemExtent float64
	RandomSeed int64
	MapStyle   string
	HTTPAddr   string

	NominatimURL string
	UserAgent    string

	KafkaBroker     string
	KafkaTapTopic   string
	KafkaStyleTopic string
	KafkaGroupID    string

	MinioEndpoint  string
	MinioAccessKey string
	MinioSecretKey string
	MinioUseSSL    bool
	MinioBucket    string

	SnapshotPath string
	PostgresURL  string
}

// MinioEnabled reports whether object storage is configured.
func (c Config) MinioEnabled() bool {
	return c.MinioEndpoint != "" && c.MinioAccessKey != "" && c.MinioSecretKey != ""
}

// Load reads Config from the environment. Unset variables take their defaults;
// malformed numbers are reported together.
func Load() (Config, error) {
	cfg := Config{
		MapStyle:        String("MAP_STYLE", "style.json"),
		HTTPAddr:        String("HTTP_ADDR", ":8000"),
		NominatimURL:    String("NOMINATIM_URL", ""),
		UserAgent:       String("GEOCODER_USER_AGENT", ""),
		KafkaBroker:     String("KAFKA_BROKER", ""),
		KafkaTapTopic:   String("KAFKA_TAP_TOPIC", "map-taps"),
		KafkaStyleTopic: String("KAFKA_STYLE_TOPIC", ""),
		KafkaGroupID:    String("KAFKA_GROUP_ID", "clustermap"),
		MinioEndpoint:   String("MINIO_ENDPOINT", ""),
		MinioAccessKey:  String("MINIO_ACCESS_KEY", ""),
		MinioSecretKey:  String("MINIO_SECRET_KEY", ""),
		MinioBucket:     String("MINIO_BUCKET", "clustermap"),
		SnapshotPath:    String("SNAPSHOT_PATH", ""),
		PostgresURL:     String("POSTGRES_URL", ""),
	}

	var errs []error
	collect := func(err error) {
		if err != nil {
			errs = append(errs, err)
		}
	}

	var err error
	cfg.Camera.Lat, err = Float("CAMERA_LAT", poi.DefaultCenter.Lat)
	collect(err)
	cfg.Camera.Lon, err = Float("CAMERA_LON", poi.DefaultCenter.Lon)
	collect(err)
	cfg.Zoom, err = Float("CAMERA_ZOOM", poi.DefaultZoom)
	collect(err)
	cfg.ItemCount, err = Int("ITEM_COUNT", poi.DefaultCount)
	collect(err)
	cfg.ItemExtent, err = Float("ITEM_EXTENT", poi.DefaultExtent)
	collect(err)
	cfg.RandomSeed, err = Int64("RANDOM_SEED", 0)
	collect(err)
	cfg.MinioUseSSL, err = Bool("MINIO_USE_SSL", false)
	collect(err)

	if len(errs) == 0 {
		if !cfg.Camera.Valid() {
			errs = append(errs, fmt.Errorf("camera position %v out of range", cfg.Camera))
		}
		if cfg.ItemCount < 0 {
			errs = append(errs, fmt.Errorf("ITEM_COUNT must not be negative, got %d", cfg.ItemCount))
		}
		if cfg.ItemExtent < 0 {
			errs = append(errs, fmt.Errorf("ITEM_EXTENT must not be negative, got %g", cfg.ItemExtent))
		} else if cfg.Camera.Valid() && !itemBoxValid(cfg.Camera, cfg.ItemExtent) {
			errs = append(errs, fmt.Errorf("items within %g degrees of %v would leave the valid coordinate range", cfg.ItemExtent, cfg.Camera))
		}
	}
	if err := errors.Join(errs...); err != nil {
		return Config{}, fmt.Errorf("invalid configuration: %w", err)
	}
	return cfg, nil
}

func itemBoxValid(center geo.Coordinate, extent float64) bool {
	sw := geo.Coordinate{Lat: center.Lat - extent, Lon: center.Lon - extent}
	ne := geo.Coordinate{Lat: center.Lat + extent, Lon: center.Lon + extent}
	return sw.Valid() && ne.Valid()
}
