package location

import (
	"context"
	"fmt"
	"net/url"
	"strconv"

	"clustermap/pkg/geo"
)

// Location holds the first search hit for a free-form query.
type Location struct {
	Name        string         `json:"name"`
	DisplayName string         `json:"displayName"`
	Coordinate  geo.Coordinate `json:"coordinate"`
	City        string         `json:"city,omitempty"`
	Country     string         `json:"country,omitempty"`
	Type        string         `json:"type,omitempty"`
}

// NominatimResponse is shaped for the /search API response.
type NominatimResponse []struct {
	PlaceID     int64   `json:"place_id"`
	OsmType     string  `json:"osm_type"`
	OsmID       int64   `json:"osm_id"`
	Lat         string  `json:"lat"`
	Lon         string  `json:"lon"`
	Type        string  `json:"type"`
	Importance  float64 `json:"importance"`
	Name        string  `json:"name"`
	DisplayName string  `json:"display_name"`
	Address     struct {
		City    string `json:"city"`
		Town    string `json:"town"`
		Village string `json:"village"`
		Country string `json:"country"`
	} `json:"address"`
}

// Geocode resolves a place name to a coordinate. It is used to point the camera
// somewhere by name.
func (c *Client) Geocode(ctx context.Context, query string) (*Location, error) {
	params := url.Values{}
	params.Set("q", query)
	params.Set("format", "json")
	params.Set("addressdetails", "1")
	params.Set("limit", "1")
	params.Set("accept-language", "en")

	var results NominatimResponse
	if err := c.get(ctx, "/search", params, &results); err != nil {
		return nil, err
	}
	if len(results) == 0 {
		return nil, fmt.Errorf("no results for %s", query)
	}

	first := results[0]
	lat, err := strconv.ParseFloat(first.Lat, 64)
	if err != nil {
		return nil, fmt.Errorf("bad latitude %q for %s: %w", first.Lat, query, err)
	}
	lon, err := strconv.ParseFloat(first.Lon, 64)
	if err != nil {
		return nil, fmt.Errorf("bad longitude %q for %s: %w", first.Lon, query, err)
	}

	return &Location{
		Name:        query,
		DisplayName: first.DisplayName,
		Coordinate:  geo.Coordinate{Lat: lat, Lon: lon},
		City:        firstNonEmpty(first.Address.City, first.Address.Town, first.Address.Village),
		Country:     first.Address.Country,
		Type:        first.Type,
	}, nil
}
