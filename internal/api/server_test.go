package api

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"image"
	"image/color"
	"image/png"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"clustermap/internal/mapview"
	"clustermap/internal/models"
	"clustermap/internal/poi"
	"clustermap/internal/render"
	"clustermap/internal/style"
	"clustermap/pkg/geo"
	"clustermap/pkg/location"
)

func init() {
	gin.SetMode(gin.TestMode)
}

type fakeImager struct {
	err     error
	markers int
}

func (f *fakeImager) Render(_ models.Camera, markers []models.Marker, _ style.MapStyle) (image.Image, error) {
	if f.err != nil {
		return nil, f.err
	}
	f.markers = len(markers)
	img := image.NewRGBA(image.Rect(0, 0, 4, 3))
	img.Set(1, 1, color.White)
	return img, nil
}

type fakeSearcher struct{}

func (fakeSearcher) Geocode(_ context.Context, q string) (*location.Location, error) {
	if q != "Sydney Opera House" {
		return nil, errors.New("no results")
	}
	return &location.Location{Name: "Sydney Opera House", Coordinate: geo.Coordinate{Lat: -33.8568, Lon: 151.2153}}, nil
}

func newTestServer(t *testing.T, imager MapImager) (*Server, *mapview.View) {
	t.Helper()
	items := poi.Generate(poi.DefaultCenter, poi.DefaultExtent, 1500, poi.NewRand(21))
	view, err := mapview.New(context.Background(), mapview.DefaultConfig(), mapview.Deps{Items: items})
	require.NoError(t, err)
	icons, err := render.NewIconGenerator(view.Renderer().Bucketer(), nil)
	require.NoError(t, err)
	t.Cleanup(view.Wait)
	return NewServer(view, icons, imager, fakeSearcher{}), view
}

func do(t *testing.T, h http.Handler, method, target, body string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(method, target, strings.NewReader(body))
	if body != "" {
		req.Header.Set("Content-Type", "application/json")
	}
	w := httptest.NewRecorder()
	h.ServeHTTP(w, req)
	return w
}

func TestCamera(t *testing.T) {
	srv, _ := newTestServer(t, nil)
	h := srv.Router()

	w := do(t, h, http.MethodGet, "/api/camera", "")
	require.Equal(t, http.StatusOK, w.Code)
	var cam models.Camera
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &cam))
	assert.Equal(t, models.Camera{Target: poi.DefaultCenter, Zoom: 10}, cam)

	w = do(t, h, http.MethodPut, "/api/camera", `{"lat":-33.85,"lon":151.21,"zoom":25}`)
	require.Equal(t, http.StatusOK, w.Code)
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &cam))
	assert.Equal(t, models.Camera{Target: geo.Coordinate{Lat: -33.85, Lon: 151.21}, Zoom: 21}, cam)

	for _, body := range []string{`{"lat":-33.85}`, `{"lat":120,"lon":0}`, `not json`} {
		w = do(t, h, http.MethodPut, "/api/camera", body)
		assert.Equal(t, http.StatusBadRequest, w.Code, body)
	}
}

func TestClusters(t *testing.T) {
	srv, _ := newTestServer(t, nil)
	h := srv.Router()

	tests := []struct {
		name     string
		query    string
		wantCode int
	}{
		{"camera viewport", "", http.StatusOK},
		{"explicit bounds", "?north=-33.6&south=-34.0&east=151.4&west=151.0&zoom=12", http.StatusOK},
		{"bad zoom", "?zoom=abc", http.StatusBadRequest},
		{"zoom out of range", "?zoom=30", http.StatusBadRequest},
		{"partial bounds", "?north=-33.6&south=-34.0", http.StatusBadRequest},
		{"bad bound", "?north=x&south=-34.0&east=151.4&west=151.0", http.StatusBadRequest},
		{"inverted bounds", "?north=-34.0&south=-33.6&east=151.4&west=151.0", http.StatusBadRequest},
		{"NaN bound", "?north=NaN&south=-34.0&east=151.4&west=151.0", http.StatusBadRequest},
		{"infinite bound", "?north=-33.6&south=-34.0&east=Inf&west=151.0", http.StatusBadRequest},
		{"latitude out of range", "?north=95&south=-34.0&east=151.4&west=151.0", http.StatusBadRequest},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := do(t, h, http.MethodGet, "/api/clusters"+tt.query, "")
			require.Equal(t, tt.wantCode, w.Code, w.Body.String())
			if tt.wantCode != http.StatusOK {
				assert.Contains(t, w.Body.String(), `"error"`)
				return
			}

			var fc struct {
				Type     string `json:"type"`
				Features []struct {
					ID         string `json:"id"`
					Properties struct {
						Cluster    bool   `json:"cluster"`
						PointCount int    `json:"point_count"`
						Icon       string `json:"icon"`
					} `json:"properties"`
				} `json:"features"`
			}
			require.NoError(t, json.Unmarshal(w.Body.Bytes(), &fc))
			assert.Equal(t, "FeatureCollection", fc.Type)
			require.NotEmpty(t, fc.Features)
			for _, f := range fc.Features {
				if f.Properties.Cluster {
					assert.True(t, strings.HasPrefix(f.Properties.Icon, render.ClusterIconPrefix))
				} else {
					assert.Equal(t, render.PinIcon, f.Properties.Icon)
					assert.Equal(t, 1, f.Properties.PointCount)
				}
			}
		})
	}
}

func TestClusters_AcrossAntimeridian(t *testing.T) {
	items := []models.Item{
		models.NewItem("Item 1", geo.Coordinate{Lat: 0, Lon: 179.9}),
		models.NewItem("Item 2", geo.Coordinate{Lat: 0, Lon: -179.9}),
		models.NewItem("Item 3", geo.Coordinate{Lat: 0, Lon: 0}),
	}
	view, err := mapview.New(context.Background(), mapview.DefaultConfig(), mapview.Deps{Items: items})
	require.NoError(t, err)
	t.Cleanup(view.Wait)
	icons, err := render.NewIconGenerator(view.Renderer().Bucketer(), nil)
	require.NoError(t, err)
	h := NewServer(view, icons, nil, fakeSearcher{}).Router()

	w := do(t, h, http.MethodGet, "/api/clusters?north=1&south=-1&east=-179.5&west=179.5&zoom=16", "")
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	var fc struct {
		Features []struct {
			ID string `json:"id"`
		} `json:"features"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &fc))
	var ids []string
	for _, f := range fc.Features {
		ids = append(ids, f.ID)
	}
	assert.ElementsMatch(t, []string{models.ItemMarkerID(0), models.ItemMarkerID(1)}, ids)
}

func TestTaps(t *testing.T) {
	srv, view := newTestServer(t, nil)
	h := srv.Router()

	w := do(t, h, http.MethodPost, "/api/tap", `{"lat":-33.8,"lon":151.2}`)
	assert.Equal(t, http.StatusAccepted, w.Code)
	w = do(t, h, http.MethodPost, "/api/tap", `{"lat":-33.8}`)
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = do(t, h, http.MethodPost, "/api/clusters/tap", `{"lat":-33.7,"lon":151.1,"count":40}`)
	require.Equal(t, http.StatusOK, w.Code)
	var res mapview.TapResult
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &res))
	assert.False(t, res.Consumed)
	assert.Equal(t, 11.0, res.Camera.Zoom)
	assert.Equal(t, geo.Coordinate{Lat: -33.7, Lon: 151.1}, view.Camera().Target)

	w = do(t, h, http.MethodPost, "/api/clusters/tap", `{"lat":-33.7,"lon":151.1,"count":1}`)
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = do(t, h, http.MethodPost, "/api/markers/item-0/tap", "")
	require.Equal(t, http.StatusOK, w.Code)
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &res))
	require.NotNil(t, res.InfoWindow)
	assert.Equal(t, "Item 1", res.InfoWindow.Title)

	w = do(t, h, http.MethodPost, "/api/markers/item-123456/tap", "")
	assert.Equal(t, http.StatusNotFound, w.Code)
	w = do(t, h, http.MethodPost, "/api/markers/cluster-1/tap", "")
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestMarkerInfo(t *testing.T) {
	srv, _ := newTestServer(t, nil)
	h := srv.Router()

	w := do(t, h, http.MethodGet, "/api/markers/item-9/info", "")
	require.Equal(t, http.StatusOK, w.Code)
	var win mapview.InfoWindow
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &win))
	assert.Equal(t, "Item 10", win.Title)
	assert.Equal(t, render.PinIcon, win.Icon)

	w = do(t, h, http.MethodGet, "/api/markers/nope/info", "")
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestIcons(t *testing.T) {
	srv, _ := newTestServer(t, nil)
	h := srv.Router()

	for _, name := range []string{"pin.png", "cluster-100+.png", "cluster-7.png"} {
		w := do(t, h, http.MethodGet, "/api/icons/"+name, "")
		require.Equal(t, http.StatusOK, w.Code, name)
		assert.Equal(t, "image/png", w.Header().Get("Content-Type"))
		_, err := png.Decode(bytes.NewReader(w.Body.Bytes()))
		assert.NoError(t, err, name)
	}

	for _, name := range []string{"pin.gif", "cluster-101+.png", "star.png"} {
		w := do(t, h, http.MethodGet, "/api/icons/"+name, "")
		assert.Equal(t, http.StatusNotFound, w.Code, name)
	}
}

func TestIcons_PinFollowsStyle(t *testing.T) {
	srv, view := newTestServer(t, nil)
	h := srv.Router()

	pinCenter := func() color.RGBA {
		w := do(t, h, http.MethodGet, "/api/icons/pin.png", "")
		require.Equal(t, http.StatusOK, w.Code)
		img, err := png.Decode(bytes.NewReader(w.Body.Bytes()))
		require.NoError(t, err)
		return color.RGBAModel.Convert(img.At(img.Bounds().Dx()/2, 4)).(color.RGBA)
	}

	st := style.Default()
	st.MarkerColor = "#0000ff"
	view.SetStyle(st)
	assert.Equal(t, color.RGBA{B: 0xff, A: 0xff}, pinCenter())

	st.MarkerColor = "#00ff00"
	view.SetStyle(st)
	assert.Equal(t, color.RGBA{G: 0xff, A: 0xff}, pinCenter())
}

func TestMapImage(t *testing.T) {
	imager := &fakeImager{}
	srv, _ := newTestServer(t, imager)
	w := do(t, srv.Router(), http.MethodGet, "/api/map.png", "")
	require.Equal(t, http.StatusOK, w.Code)
	img, err := png.Decode(bytes.NewReader(w.Body.Bytes()))
	require.NoError(t, err)
	assert.Equal(t, 4, img.Bounds().Dx())
	assert.Positive(t, imager.markers)

	srv, _ = newTestServer(t, &fakeImager{err: errors.New("tile server down")})
	w = do(t, srv.Router(), http.MethodGet, "/api/map.png", "")
	assert.Equal(t, http.StatusBadGateway, w.Code)

	srv, _ = newTestServer(t, nil)
	w = do(t, srv.Router(), http.MethodGet, "/api/map.png", "")
	assert.Equal(t, http.StatusServiceUnavailable, w.Code)
}

func TestStyleHealthAndCORS(t *testing.T) {
	srv, _ := newTestServer(t, nil)
	h := srv.Router()

	w := do(t, h, http.MethodGet, "/api/style", "")
	require.Equal(t, http.StatusOK, w.Code)
	var st style.MapStyle
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &st))
	assert.Equal(t, style.Default(), st)

	w = do(t, h, http.MethodGet, "/healthz", "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"status":"ok","items":1500}`, w.Body.String())
	assert.Equal(t, "*", w.Header().Get("Access-Control-Allow-Origin"))

	w = do(t, h, http.MethodOptions, "/api/camera", "")
	assert.Equal(t, http.StatusNoContent, w.Code)
}

func TestGeocode(t *testing.T) {
	srv, view := newTestServer(t, nil)
	h := srv.Router()

	w := do(t, h, http.MethodGet, "/api/geocode?q=Sydney+Opera+House&move=true", "")
	require.Equal(t, http.StatusOK, w.Code)
	var loc location.Location
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &loc))
	assert.Equal(t, "Sydney Opera House", loc.Name)
	assert.Equal(t, loc.Coordinate, view.Camera().Target)

	w = do(t, h, http.MethodGet, "/api/geocode?q=", "")
	assert.Equal(t, http.StatusBadRequest, w.Code)
	w = do(t, h, http.MethodGet, "/api/geocode?q=Atlantis", "")
	assert.Equal(t, http.StatusNotFound, w.Code)
}
