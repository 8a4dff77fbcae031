package main

import (
	"context"
	"log"
	"net/http"
	"time"

	"clustermap/internal/api"
	"clustermap/internal/enrich"
	"clustermap/internal/env"
	"clustermap/internal/mapview"
	"clustermap/internal/render"
	"clustermap/internal/service"
	"clustermap/internal/storage"
	"clustermap/internal/style"
	"clustermap/pkg/graceful"
	"clustermap/pkg/kafkaclient"
	"clustermap/pkg/location"
)

func main() {
	env.LoadEnv()
	cfg, err := env.Load()
	if err != nil {
		log.Fatal(err)
	}

	ctx, cancel := graceful.Context(context.Background())
	defer cancel()

	var (
		s3      *storage.S3Service
		objects style.ObjectGetter
	)
	if cfg.MinioEnabled() {
		s3, err = storage.NewS3Service(cfg.MinioEndpoint, cfg.MinioAccessKey, cfg.MinioSecretKey, cfg.MinioUseSSL)
		if err != nil {
			log.Printf("Object storage disabled: %v", err)
		} else if err := s3.CreateBucket(ctx, cfg.MinioBucket, ""); err != nil {
			log.Printf("Object storage disabled: %v", err)
			s3 = nil
		} else {
			objects = s3
		}
	}

	if s3 != nil {
		seedStyle(ctx, s3, cfg.MapStyle)
	}

	var repo *storage.ItemRepository
	if cfg.PostgresURL != "" {
		repo, err = storage.NewItemRepository(ctx, cfg.PostgresURL)
		if err != nil {
			log.Printf("Postgres disabled: %v", err)
			repo = nil
		} else {
			defer repo.Close()
			if err := repo.EnsureSchema(ctx); err != nil {
				log.Printf("Postgres disabled: %v", err)
				repo = nil
			}
		}
	}

	items := loadItems(ctx, cfg, datasetStores{s3: s3, repo: repo})

	var sink enrich.EventSink
	if cfg.KafkaBroker != "" && cfg.KafkaTapTopic != "" {
		publisher := kafkaclient.NewPublisher(cfg.KafkaBroker, cfg.KafkaTapTopic)
		defer func() {
			if err := publisher.Close(); err != nil {
				log.Printf("Failed to close tap publisher: %v", err)
			}
		}()
		sink = publisher
		log.Printf("Forwarding taps to %s on topic %s", cfg.KafkaBroker, cfg.KafkaTapTopic)
	}

	geocoder := location.NewClient(cfg.NominatimURL, cfg.UserAgent)
	styles := style.NewLoader(objects)

	view, err := mapview.New(ctx, mapview.Config{
		Camera:      cfg.Camera,
		Zoom:        cfg.Zoom,
		ItemCount:   cfg.ItemCount,
		ItemExtent:  cfg.ItemExtent,
		Seed:        cfg.RandomSeed,
		StyleSource: cfg.MapStyle,
		Width:       800,
		Height:      600,
	}, mapview.Deps{
		Reverser: geocoder,
		Sink:     sink,
		Styles:   styles,
		Items:    items,
	})
	if err != nil {
		log.Fatalf("Failed to build map: %v", err)
	}
	defer view.Wait()

	if cfg.KafkaBroker != "" && cfg.KafkaStyleTopic != "" {
		consumer := kafkaclient.NewKafkaConsumer(cfg.KafkaStyleTopic, cfg.KafkaGroupID, cfg.KafkaBroker)
		defer consumer.Stop()
		consumer.StartConsuming(ctx)
		go followStyles(ctx, consumer, styles, cfg.MapStyle, view)
	}

	bucketer := view.Renderer().Bucketer()
	markerColor, _ := view.Style().Colors()
	icons, err := render.NewIconGenerator(bucketer, markerColor)
	if err != nil {
		log.Fatalf("Failed to prepare icons: %v", err)
	}
	width, height := view.Size()
	server := api.NewServer(view, icons, render.NewMapRenderer(width, height, bucketer), geocoder)

	srv := &http.Server{
		Addr:              cfg.HTTPAddr,
		Handler:           server.Router(),
		ReadHeaderTimeout: 10 * time.Second,
	}
	if err := graceful.Serve(ctx, srv, 5*time.Second); err != nil {
		log.Fatalf("HTTP server failed: %v", err)
	}
	log.Println("Main method finished, application exiting.")
}

// followStyles reloads the map style whenever the configured style object is
// rewritten in the bucket.
func followStyles(ctx context.Context, consumer *kafkaclient.KafkaConsumer, styles *style.Loader, source string, view *mapview.View) {
	bucket, key, isObject, err := style.ObjectSource(source)
	if err != nil {
		log.Printf("Not following style updates: %v", err)
		return
	}
	var filter service.EventFilter
	if isObject {
		filter = service.KeyFilter(bucket, key)
	}

	iterator := service.NewIterator(consumer.NewIterator(), styles.ObjectLoader(), filter)
	style.Follow(iterator.Objects(ctx), view.SetStyle)
}

// seedStyle uploads the default style when the configured style object does
// not exist yet, so that it can be edited in place.
func seedStyle(ctx context.Context, s3 *storage.S3Service, source string) {
	bucket, key, isObject, err := style.ObjectSource(source)
	if err != nil || !isObject {
		return
	}
	exists, err := s3.Exists(ctx, bucket, key)
	if err != nil || exists {
		return
	}
	if err := s3.CreateBucket(ctx, bucket, ""); err != nil {
		log.Printf("Failed to create style bucket: %v", err)
		return
	}
	if err := s3.PutJSON(ctx, bucket, key, style.Default()); err != nil {
		log.Printf("Failed to seed map style: %v", err)
		return
	}
	log.Printf("Seeded default map style at %s", source)
}
