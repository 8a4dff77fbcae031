package storage

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"clustermap/internal/models"
	"clustermap/pkg/geo"
)

const (
	itemsTable   = "poi_items"
	datasetTable = "poi_dataset"
)

// ErrNoDataset is returned by LoadItems when the stored items were made for
// another dataset, or when nothing is stored yet.
var ErrNoDataset = errors.New("no stored items for this dataset")

const createItemsTable = `CREATE TABLE IF NOT EXISTS poi_items (
	id   INTEGER PRIMARY KEY,
	name TEXT NOT NULL,
	lat  DOUBLE PRECISION NOT NULL,
	lon  DOUBLE PRECISION NOT NULL
)`

const createDatasetTable = `CREATE TABLE IF NOT EXISTS poi_dataset (
	id      BOOLEAN PRIMARY KEY DEFAULT TRUE CHECK (id),
	dataset TEXT NOT NULL
)`

const upsertDataset = `INSERT INTO poi_dataset (id, dataset) VALUES (TRUE, $1)
ON CONFLICT (id) DO UPDATE SET dataset = EXCLUDED.dataset`

// ItemRepository keeps the generated items in Postgres.
type ItemRepository struct {
	pool *pgxpool.Pool
}

// NewItemRepository connects to the database at url.
func NewItemRepository(ctx context.Context, url string) (*ItemRepository, error) {
	pool, err := pgxpool.New(ctx, url)
	if err != nil {
		return nil, fmt.Errorf("connect to postgres: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ping postgres: %w", err)
	}
	return &ItemRepository{pool: pool}, nil
}

func (r *ItemRepository) EnsureSchema(ctx context.Context) error {
	if _, err := r.pool.Exec(ctx, createItemsTable); err != nil {
		return fmt.Errorf("create %s: %w", itemsTable, err)
	}
	if _, err := r.pool.Exec(ctx, createDatasetTable); err != nil {
		return fmt.Errorf("create %s: %w", datasetTable, err)
	}
	return nil
}

// ReplaceItems swaps the stored items for items of dataset in one transaction.
func (r *ItemRepository) ReplaceItems(ctx context.Context, dataset string, items []models.Item) error {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin: %w", err)
	}
	defer tx.Rollback(ctx) //nolint:errcheck

	if _, err := tx.Exec(ctx, "TRUNCATE "+itemsTable); err != nil {
		return fmt.Errorf("truncate %s: %w", itemsTable, err)
	}
	n, err := tx.CopyFrom(ctx, pgx.Identifier{itemsTable}, []string{"id", "name", "lat", "lon"},
		pgx.CopyFromSlice(len(items), func(i int) ([]any, error) {
			return itemRow(i, items[i]), nil
		}))
	if err != nil {
		return fmt.Errorf("copy items: %w", err)
	}
	if _, err := tx.Exec(ctx, upsertDataset, dataset); err != nil {
		return fmt.Errorf("record dataset: %w", err)
	}
	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("commit: %w", err)
	}
	if int(n) != len(items) {
		return fmt.Errorf("copied %d of %d items", n, len(items))
	}
	return nil
}

// LoadItems returns the stored items of dataset in id order.
func (r *ItemRepository) LoadItems(ctx context.Context, dataset string) ([]models.Item, error) {
	var stored string
	err := r.pool.QueryRow(ctx, "SELECT dataset FROM "+datasetTable).Scan(&stored)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNoDataset
	}
	if err != nil {
		return nil, fmt.Errorf("query %s: %w", datasetTable, err)
	}
	if stored != dataset {
		return nil, fmt.Errorf("%w: stored items belong to %s", ErrNoDataset, stored)
	}

	rows, err := r.pool.Query(ctx, "SELECT name, lat, lon FROM "+itemsTable+" ORDER BY id")
	if err != nil {
		return nil, fmt.Errorf("query %s: %w", itemsTable, err)
	}
	items, err := pgx.CollectRows(rows, scanItem)
	if err != nil {
		return nil, fmt.Errorf("scan %s: %w", itemsTable, err)
	}
	return items, nil
}

func (r *ItemRepository) Close() {
	r.pool.Close()
}

func itemRow(id int, item models.Item) []any {
	pos := item.Position()
	return []any{id, item.Name(), pos.Lat, pos.Lon}
}

func scanItem(row pgx.CollectableRow) (models.Item, error) {
	var (
		name     string
		lat, lon float64
	)
	if err := row.Scan(&name, &lat, &lon); err != nil {
		return models.Item{}, err
	}
	return storedItem(name, lat, lon)
}

func storedItem(name string, lat, lon float64) (models.Item, error) {
	pos := geo.Coordinate{Lat: lat, Lon: lon}
	if !pos.Valid() {
		return models.Item{}, fmt.Errorf("item %q at %v is off the globe", name, pos)
	}
	return models.NewItem(name, pos), nil
}
