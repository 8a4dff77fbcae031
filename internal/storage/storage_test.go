package storage

import (
	"bytes"
	"encoding/binary"
	"math"
	"path/filepath"
	"testing"

	"github.com/klauspost/compress/zstd"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"clustermap/internal/models"
	"clustermap/internal/poi"
	"clustermap/pkg/geo"
)

func TestSnapshot(t *testing.T) {
	tests := []struct {
		name  string
		items []models.Item
	}{
		{name: "empty", items: []models.Item{}},
		{name: "unicode names", items: []models.Item{
			models.NewItem("Café", geo.Coordinate{Lat: -33.8, Lon: 151.2}),
			models.NewItem("", geo.Coordinate{Lat: 90, Lon: -180}),
		}},
		{name: "generated dataset", items: poi.Generate(poi.DefaultCenter, poi.DefaultExtent, 500, poi.NewRand(3))},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var buf bytes.Buffer
			require.NoError(t, WriteSnapshot(&buf, tt.items))

			got, err := ReadSnapshot(&buf)
			require.NoError(t, err)
			assert.Equal(t, tt.items, got)
		})
	}
}

func TestSnapshot_Rejects(t *testing.T) {
	_, err := ReadSnapshot(bytes.NewReader([]byte("plain text")))
	assert.Error(t, err)

	var buf bytes.Buffer
	enc, err := zstd.NewWriter(&buf)
	require.NoError(t, err)
	_, err = enc.Write([]byte("JSON{}"))
	require.NoError(t, err)
	require.NoError(t, enc.Close())

	_, err = ReadSnapshot(&buf)
	assert.ErrorIs(t, err, ErrBadSnapshot)
}

func TestSnapshot_Truncated(t *testing.T) {
	var plain bytes.Buffer
	plain.Write(snapshotMagic[:])
	require.NoError(t, binary.Write(&plain, binary.LittleEndian, uint32(2)))
	require.NoError(t, binary.Write(&plain, binary.LittleEndian, struct {
		Lat, Lon float64
		NameLen  uint16
	}{1, 2, 3}))
	plain.WriteString("abc")

	var buf bytes.Buffer
	enc, err := zstd.NewWriter(&buf)
	require.NoError(t, err)
	_, err = enc.Write(plain.Bytes())
	require.NoError(t, err)
	require.NoError(t, enc.Close())

	_, err = ReadSnapshot(&buf)
	assert.ErrorContains(t, err, "read item 1")
}

func TestSnapshot_RejectsInvalidCoordinates(t *testing.T) {
	for _, pos := range []geo.Coordinate{
		{Lat: 90.3, Lon: 151.2},
		{Lat: -33.8, Lon: 181},
		{Lat: math.NaN(), Lon: 151.2},
	} {
		var buf bytes.Buffer
		require.NoError(t, WriteSnapshot(&buf, []models.Item{
			models.NewItem("Item 1", poi.DefaultCenter),
			models.NewItem("Item 2", pos),
		}))

		_, err := ReadSnapshot(&buf)
		assert.ErrorIs(t, err, ErrBadSnapshot, "%v", pos)
		assert.ErrorContains(t, err, "item 1")
	}
}

func TestSnapshotFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "items.poi.zst")
	items := poi.Generate(poi.DefaultCenter, poi.DefaultExtent, 20, poi.NewRand(9))

	require.NoError(t, WriteSnapshotFile(path, items))
	got, err := ReadSnapshotFile(path)
	require.NoError(t, err)
	assert.Equal(t, items, got)

	_, err = ReadSnapshotFile(filepath.Join(t.TempDir(), "missing"))
	assert.Error(t, err)
}

func TestItemRow(t *testing.T) {
	item := models.NewItem("Item 7", geo.Coordinate{Lat: -33.9, Lon: 151.1})
	assert.Equal(t, []any{6, "Item 7", -33.9, 151.1}, itemRow(6, item))
}

func TestStoredItem(t *testing.T) {
	item, err := storedItem("Item 3", -33.8, 151.2)
	require.NoError(t, err)
	assert.Equal(t, models.NewItem("Item 3", geo.Coordinate{Lat: -33.8, Lon: 151.2}), item)

	_, err = storedItem("Item 4", 95, 151.2)
	assert.ErrorContains(t, err, "off the globe")
	_, err = storedItem("Item 5", -33.8, math.Inf(1))
	assert.Error(t, err)
}
