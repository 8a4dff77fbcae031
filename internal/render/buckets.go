package render

import (
	"fmt"
	"image/color"
	"strconv"
	"strings"
)

// DefaultBuckets are the cluster sizes at which the icon label switches from an
// exact count to "<bucket>+".
var DefaultBuckets = []int{10, 50, 100, 200, 1000}

// DefaultBucketColors has one background color per bucket.
var DefaultBucketColors = []color.RGBA{
	{0x00, 0x99, 0xcc, 0xff},
	{0x66, 0x99, 0x00, 0xff},
	{0xff, 0x88, 0x00, 0xff},
	{0xcc, 0x00, 0x00, 0xff},
	{0x99, 0x33, 0xcc, 0xff},
}

// Bucketer maps cluster sizes to icon labels and colors.
type Bucketer struct {
	buckets []int
	colors  []color.RGBA
}

// NewBucketer validates buckets (positive, strictly ascending). colors may be
// shorter than buckets; the last color is reused.
func NewBucketer(buckets []int, colors []color.RGBA) (*Bucketer, error) {
	if len(buckets) == 0 {
		return nil, fmt.Errorf("at least one bucket is required")
	}
	for i, b := range buckets {
		if b <= 0 {
			return nil, fmt.Errorf("bucket %d must be positive, got %d", i, b)
		}
		if i > 0 && b <= buckets[i-1] {
			return nil, fmt.Errorf("buckets must be ascending: %d after %d", b, buckets[i-1])
		}
	}
	if len(colors) == 0 {
		colors = DefaultBucketColors
	}
	return &Bucketer{buckets: buckets, colors: colors}, nil
}

func DefaultBucketer() *Bucketer {
	b, _ := NewBucketer(DefaultBuckets, DefaultBucketColors)
	return b
}

// Index returns the index of the largest bucket not above count, or -1 when count
// is below the first bucket.
func (b *Bucketer) Index(count int) int {
	idx := -1
	for i, bucket := range b.buckets {
		if count < bucket {
			break
		}
		idx = i
	}
	return idx
}

// Label is the text drawn on a cluster icon.
func (b *Bucketer) Label(count int) string {
	idx := b.Index(count)
	if idx < 0 {
		return strconv.Itoa(count)
	}
	return strconv.Itoa(b.buckets[idx]) + "+"
}

// Color is the icon background for count. Counts below the first bucket share
// the first color.
func (b *Bucketer) Color(count int) color.RGBA {
	idx := b.Index(count)
	if idx < 0 {
		idx = 0
	}
	if idx >= len(b.colors) {
		idx = len(b.colors) - 1
	}
	return b.colors[idx]
}

// CountForLabel recovers the smallest count that produces label.
func (b *Bucketer) CountForLabel(label string) (int, error) {
	n, err := strconv.Atoi(strings.TrimSuffix(label, "+"))
	if err != nil || n <= 0 {
		return 0, fmt.Errorf("invalid cluster label %q", label)
	}
	if b.Label(n) != label {
		return 0, fmt.Errorf("label %q does not match any bucket", label)
	}
	return n, nil
}
