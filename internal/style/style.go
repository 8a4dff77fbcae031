// Package style loads the optional JSON map style. A style that cannot be loaded
// never stops the map: callers log the error and keep Default().
package style

import (
	"context"
	"encoding/json"
	"fmt"
	"image/color"
	"os"
	"strconv"
	"strings"
)

// MapStyle controls the tile set and marker colors of the rendered map.
type MapStyle struct {
	Name         string `json:"name"`
	TileProvider string `json:"tileProvider"`
	MarkerColor  string `json:"markerColor"`
	// ClusterColor overrides the per-bucket cluster colors when set.
	ClusterColor string `json:"clusterColor,omitempty"`
}

var tileProviders = map[string]bool{
	"osm":         true,
	"carto-light": true,
	"carto-dark":  true,
	"opentopomap": true,
}

func Default() MapStyle {
	return MapStyle{
		Name:         "default",
		TileProvider: "osm",
		MarkerColor:  "#db4437",
	}
}

// Parse decodes and validates a style document. Missing fields take their
// default values.
func Parse(data []byte) (MapStyle, error) {
	st := Default()
	if err := json.Unmarshal(data, &st); err != nil {
		return MapStyle{}, fmt.Errorf("decode map style: %w", err)
	}
	if st.TileProvider == "" {
		st.TileProvider = Default().TileProvider
	}
	if !tileProviders[st.TileProvider] {
		return MapStyle{}, fmt.Errorf("unknown tile provider %q", st.TileProvider)
	}
	if st.MarkerColor == "" {
		st.MarkerColor = Default().MarkerColor
	}
	if _, err := ParseColor(st.MarkerColor); err != nil {
		return MapStyle{}, fmt.Errorf("markerColor: %w", err)
	}
	if st.ClusterColor != "" {
		if _, err := ParseColor(st.ClusterColor); err != nil {
			return MapStyle{}, fmt.Errorf("clusterColor: %w", err)
		}
	}
	return st, nil
}

// Colors returns the parsed marker and cluster colors. The cluster color is
// zero when the style leaves it to the bucket palette.
func (s MapStyle) Colors() (marker, cluster color.RGBA) {
	marker, err := ParseColor(s.MarkerColor)
	if err != nil {
		marker, _ = ParseColor(Default().MarkerColor)
	}
	if s.ClusterColor != "" {
		cluster, _ = ParseColor(s.ClusterColor)
	}
	return marker, cluster
}

// ParseColor accepts #rgb and #rrggbb.
func ParseColor(s string) (color.RGBA, error) {
	hex, ok := strings.CutPrefix(s, "#")
	if !ok || (len(hex) != 3 && len(hex) != 6) {
		return color.RGBA{}, fmt.Errorf("invalid color %q", s)
	}
	v, err := strconv.ParseUint(hex, 16, 32)
	if err != nil {
		return color.RGBA{}, fmt.Errorf("invalid color %q", s)
	}
	if len(hex) == 3 {
		return color.RGBA{
			R: uint8(v>>8&0xf) * 17,
			G: uint8(v>>4&0xf) * 17,
			B: uint8(v&0xf) * 17,
			A: 0xff,
		}, nil
	}
	return color.RGBA{R: uint8(v >> 16), G: uint8(v >> 8), B: uint8(v), A: 0xff}, nil
}

// ObjectGetter reads objects from the style bucket.
type ObjectGetter interface {
	GetObjectBytes(ctx context.Context, bucket, key string) ([]byte, error)
}

// Loader resolves a style source: a local path, or s3://bucket/key when an
// object store is configured.
type Loader struct {
	objects ObjectGetter
}

func NewLoader(objects ObjectGetter) *Loader {
	return &Loader{objects: objects}
}

func (l *Loader) Load(ctx context.Context, source string) (MapStyle, error) {
	data, err := l.read(ctx, source)
	if err != nil {
		return MapStyle{}, err
	}
	return Parse(data)
}

// ObjectSource splits an s3://bucket/key source. ok is false for local paths.
func ObjectSource(source string) (bucket, key string, ok bool, err error) {
	rest, found := strings.CutPrefix(source, "s3://")
	if !found {
		return "", "", false, nil
	}
	bucket, key, found = strings.Cut(rest, "/")
	if !found || bucket == "" || key == "" {
		return "", "", true, fmt.Errorf("style source %q: want s3://bucket/key", source)
	}
	return bucket, key, true, nil
}

func (l *Loader) read(ctx context.Context, source string) ([]byte, error) {
	bucket, key, isObject, err := ObjectSource(source)
	if err != nil {
		return nil, err
	}
	if isObject {
		if l.objects == nil {
			return nil, fmt.Errorf("style source %q: object storage is not configured", source)
		}
		return l.objects.GetObjectBytes(ctx, bucket, key)
	}
	data, err := os.ReadFile(source)
	if err != nil {
		return nil, fmt.Errorf("read style %s: %w", source, err)
	}
	return data, nil
}
