package main

import (
	"context"
	"errors"
	"log"
	"os"

	"clustermap/internal/env"
	"clustermap/internal/keys"
	"clustermap/internal/models"
	"clustermap/internal/poi"
	"clustermap/internal/storage"
)

type datasetStores struct {
	s3   *storage.S3Service
	repo *storage.ItemRepository
}

// loadItems returns the dataset for this run: a snapshot file when one exists,
// else the bucket snapshot for these parameters, else the items Postgres holds
// for these parameters, else a freshly generated set. The result is then
// written to every configured store that did not provide it.
func loadItems(ctx context.Context, cfg env.Config, stores datasetStores) []models.Item {
	var (
		items  []models.Item
		source string
	)

	if cfg.SnapshotPath != "" {
		loaded, err := storage.ReadSnapshotFile(cfg.SnapshotPath)
		switch {
		case err == nil:
			items, source = loaded, "snapshot"
		case errors.Is(err, os.ErrNotExist):
		default:
			log.Printf("Ignoring snapshot %s: %v", cfg.SnapshotPath, err)
		}
	}

	dataset := keys.Dataset(cfg.Camera, cfg.ItemExtent, cfg.ItemCount, cfg.RandomSeed)
	key := keys.Snapshot(cfg.Camera, cfg.ItemExtent, cfg.ItemCount, cfg.RandomSeed)
	if items == nil && stores.s3 != nil {
		exists, err := stores.s3.Exists(ctx, cfg.MinioBucket, key)
		if err != nil {
			log.Printf("Failed to look up snapshot %s: %v", key, err)
		} else if exists {
			loaded, err := stores.s3.GetSnapshot(ctx, cfg.MinioBucket, key)
			if err != nil {
				log.Printf("Ignoring snapshot %s: %v", key, err)
			} else {
				items, source = loaded, "object storage"
			}
		}
	}

	if items == nil && stores.repo != nil {
		loaded, err := stores.repo.LoadItems(ctx, dataset)
		switch {
		case errors.Is(err, storage.ErrNoDataset):
			log.Printf("Postgres holds no items for %s: %v", dataset, err)
		case err != nil:
			log.Printf("Failed to load items from postgres: %v", err)
		case len(loaded) == cfg.ItemCount && cfg.ItemCount > 0:
			items, source = loaded, "postgres"
		}
	}

	if items == nil {
		items = poi.Generate(cfg.Camera, cfg.ItemExtent, cfg.ItemCount, poi.NewRand(cfg.RandomSeed))
		source = "generator"
	}
	log.Printf("Loaded %d items from %s", len(items), source)

	if cfg.SnapshotPath != "" && source != "snapshot" {
		if err := storage.WriteSnapshotFile(cfg.SnapshotPath, items); err != nil {
			log.Printf("Failed to write snapshot: %v", err)
		}
	}
	if stores.repo != nil && source != "postgres" {
		if err := stores.repo.ReplaceItems(ctx, dataset, items); err != nil {
			log.Printf("Failed to store items in postgres: %v", err)
		}
	}
	if stores.s3 != nil && source != "object storage" {
		if err := stores.s3.PutSnapshot(ctx, cfg.MinioBucket, key, items); err != nil {
			log.Printf("Failed to upload snapshot: %v", err)
		}
	}
	return items
}
