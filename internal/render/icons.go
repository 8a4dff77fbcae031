package render

import (
	"bytes"
	"fmt"
	"image/color"
	"strings"
	"sync"

	"github.com/fogleman/gg"
	"github.com/golang/freetype"
	"github.com/golang/freetype/truetype"
	"golang.org/x/image/font"
	"golang.org/x/image/font/gofont/gobold"
)

const (
	clusterIconSize = 48
	pinWidth        = 28
	pinHeight       = 40
)

// IconGenerator draws PNG marker icons and caches them by key.
type IconGenerator struct {
	bucketer *Bucketer
	pinColor color.Color

	// font.Face is not safe for concurrent use; mu also guards cache.
	mu    sync.Mutex
	face  font.Face
	cache map[string][]byte
}

func NewIconGenerator(bucketer *Bucketer, pinColor color.Color) (*IconGenerator, error) {
	parsed, err := freetype.ParseFont(gobold.TTF)
	if err != nil {
		return nil, fmt.Errorf("parse icon font: %w", err)
	}
	if bucketer == nil {
		bucketer = DefaultBucketer()
	}
	if pinColor == nil {
		pinColor = color.RGBA{0xdb, 0x44, 0x37, 0xff}
	}
	return &IconGenerator{
		bucketer: bucketer,
		pinColor: pinColor,
		face: truetype.NewFace(parsed, &truetype.Options{
			Size:    14,
			DPI:     72,
			Hinting: font.HintingFull,
		}),
		cache: make(map[string][]byte),
	}, nil
}

// Icon returns the PNG for an icon key: PinIcon or ClusterIconPrefix+label.
func (g *IconGenerator) Icon(key string) ([]byte, error) {
	switch {
	case key == PinIcon || key == "":
		return g.Pin(g.pinColor)
	case strings.HasPrefix(key, ClusterIconPrefix):
		label := strings.TrimPrefix(key, ClusterIconPrefix)
		count, err := g.bucketer.CountForLabel(label)
		if err != nil {
			return nil, err
		}
		return g.cached(key, func() ([]byte, error) {
			return g.drawCluster(label, g.bucketer.Color(count))
		})
	default:
		return nil, fmt.Errorf("unknown icon %q", key)
	}
}

// Pin returns the pin PNG filled with fill. Pins are cached per color.
func (g *IconGenerator) Pin(fill color.Color) ([]byte, error) {
	if fill == nil {
		fill = g.pinColor
	}
	r, gr, b, a := fill.RGBA()
	key := fmt.Sprintf("%s#%02x%02x%02x%02x", PinIcon, r>>8, gr>>8, b>>8, a>>8)
	return g.cached(key, func() ([]byte, error) {
		return g.drawPin(fill)
	})
}

// ClusterIcon returns the bubble PNG for a cluster of count items.
func (g *IconGenerator) ClusterIcon(count int) ([]byte, error) {
	return g.Icon(ClusterIconPrefix + g.bucketer.Label(count))
}

func (g *IconGenerator) cached(key string, draw func() ([]byte, error)) ([]byte, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if png, ok := g.cache[key]; ok {
		return png, nil
	}
	png, err := draw()
	if err != nil {
		return nil, err
	}
	g.cache[key] = png
	return png, nil
}

func (g *IconGenerator) drawCluster(label string, background color.Color) ([]byte, error) {
	dc := gg.NewContext(clusterIconSize, clusterIconSize)
	c := float64(clusterIconSize) / 2

	dc.DrawCircle(c, c, c-2)
	dc.SetColor(background)
	dc.FillPreserve()
	dc.SetColor(color.White)
	dc.SetLineWidth(3)
	dc.Stroke()

	dc.SetFontFace(g.face)
	dc.DrawStringAnchored(label, c, c, 0.5, 0.35)
	return encode(dc)
}

func (g *IconGenerator) drawPin(fill color.Color) ([]byte, error) {
	dc := gg.NewContext(pinWidth, pinHeight)
	cx := float64(pinWidth) / 2
	r := cx - 2

	dc.SetColor(fill)
	dc.DrawCircle(cx, r+2, r)
	dc.Fill()
	dc.MoveTo(cx-r*0.75, r+2+r*0.6)
	dc.LineTo(cx+r*0.75, r+2+r*0.6)
	dc.LineTo(cx, pinHeight-1)
	dc.ClosePath()
	dc.Fill()

	dc.SetColor(color.White)
	dc.DrawCircle(cx, r+2, r*0.4)
	dc.Fill()
	return encode(dc)
}

func encode(dc *gg.Context) ([]byte, error) {
	var buf bytes.Buffer
	if err := dc.EncodePNG(&buf); err != nil {
		return nil, fmt.Errorf("encode icon: %w", err)
	}
	return buf.Bytes(), nil
}
