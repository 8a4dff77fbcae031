// Package storage persists the generated items and the map style: snapshots in
// object storage or on disk, rows in Postgres.
package storage

import (
	"bufio"
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"math"
	"os"

	"github.com/klauspost/compress/zstd"

	"clustermap/internal/models"
	"clustermap/pkg/geo"
)

var snapshotMagic = [4]byte{'P', 'O', 'I', '1'}

// ErrBadSnapshot is returned for streams that are not item snapshots.
var ErrBadSnapshot = errors.New("not an item snapshot")

// WriteSnapshot writes items as a zstd-compressed little-endian stream:
// magic, item count, then lat, lon, name length and name per item.
func WriteSnapshot(w io.Writer, items []models.Item) error {
	enc, err := zstd.NewWriter(w)
	if err != nil {
		return fmt.Errorf("create zstd writer: %w", err)
	}
	bw := bufio.NewWriter(enc)

	if err := writeItems(bw, items); err != nil {
		enc.Close()
		return err
	}
	if err := bw.Flush(); err != nil {
		enc.Close()
		return fmt.Errorf("flush snapshot: %w", err)
	}
	if err := enc.Close(); err != nil {
		return fmt.Errorf("close zstd writer: %w", err)
	}
	return nil
}

func writeItems(w io.Writer, items []models.Item) error {
	if _, err := w.Write(snapshotMagic[:]); err != nil {
		return fmt.Errorf("write snapshot header: %w", err)
	}
	if err := binary.Write(w, binary.LittleEndian, uint32(len(items))); err != nil {
		return fmt.Errorf("write item count: %w", err)
	}
	for i, item := range items {
		name := item.Name()
		if len(name) > math.MaxUint16 {
			return fmt.Errorf("item %d: name too long (%d bytes)", i, len(name))
		}
		pos := item.Position()
		rec := struct {
			Lat, Lon float64
			NameLen  uint16
		}{pos.Lat, pos.Lon, uint16(len(name))}
		if err := binary.Write(w, binary.LittleEndian, rec); err != nil {
			return fmt.Errorf("write item %d: %w", i, err)
		}
		if _, err := io.WriteString(w, name); err != nil {
			return fmt.Errorf("write item %d name: %w", i, err)
		}
	}
	return nil
}

// ReadSnapshot decodes a stream written by WriteSnapshot.
func ReadSnapshot(r io.Reader) ([]models.Item, error) {
	dec, err := zstd.NewReader(r)
	if err != nil {
		return nil, fmt.Errorf("create zstd reader: %w", err)
	}
	defer dec.Close()
	br := bufio.NewReader(dec)

	var magic [4]byte
	if _, err := io.ReadFull(br, magic[:]); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrBadSnapshot, err)
	}
	if magic != snapshotMagic {
		return nil, ErrBadSnapshot
	}

	var count uint32
	if err := binary.Read(br, binary.LittleEndian, &count); err != nil {
		return nil, fmt.Errorf("read item count: %w", err)
	}

	items := make([]models.Item, 0, min(int(count), 1<<20))
	for i := 0; i < int(count); i++ {
		var rec struct {
			Lat, Lon float64
			NameLen  uint16
		}
		if err := binary.Read(br, binary.LittleEndian, &rec); err != nil {
			return nil, fmt.Errorf("read item %d: %w", i, err)
		}
		name := make([]byte, rec.NameLen)
		if _, err := io.ReadFull(br, name); err != nil {
			return nil, fmt.Errorf("read item %d name: %w", i, err)
		}
		pos := geo.Coordinate{Lat: rec.Lat, Lon: rec.Lon}
		if !pos.Valid() {
			return nil, fmt.Errorf("%w: item %d at %v is off the globe", ErrBadSnapshot, i, pos)
		}
		items = append(items, models.NewItem(string(name), pos))
	}
	return items, nil
}

// WriteSnapshotFile writes items to path, replacing it.
func WriteSnapshotFile(path string, items []models.Item) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("create snapshot %s: %w", path, err)
	}
	if err := WriteSnapshot(f, items); err != nil {
		f.Close()
		return err
	}
	return f.Close()
}

// ReadSnapshotFile loads the snapshot at path.
func ReadSnapshotFile(path string) ([]models.Item, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open snapshot %s: %w", path, err)
	}
	defer f.Close()
	return ReadSnapshot(f)
}
