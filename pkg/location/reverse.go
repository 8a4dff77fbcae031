package location

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"strconv"
	"strings"

	"clustermap/pkg/geo"
)

// ErrNoAddress is returned when the server has no address for a coordinate
// (open sea, for example).
var ErrNoAddress = errors.New("no address found")

// Address is the reverse-geocoded description of a coordinate.
type Address struct {
	Thoroughfare       string   `json:"thoroughfare,omitempty"`
	Locality           string   `json:"locality,omitempty"`
	SubLocality        string   `json:"subLocality,omitempty"`
	AdministrativeArea string   `json:"administrativeArea,omitempty"`
	PostalCode         string   `json:"postalCode,omitempty"`
	Country            string   `json:"country,omitempty"`
	CountryCode        string   `json:"countryCode,omitempty"`
	Lines              []string `json:"lines,omitempty"`
}

// Reverser is anything that can reverse-geocode a coordinate.
type Reverser interface {
	Reverse(ctx context.Context, coord geo.Coordinate) (*Address, error)
}

type reverseResponse struct {
	Error       string `json:"error"`
	PlaceID     int64  `json:"place_id"`
	Lat         string `json:"lat"`
	Lon         string `json:"lon"`
	DisplayName string `json:"display_name"`
	Address     struct {
		HouseNumber  string `json:"house_number"`
		Road         string `json:"road"`
		Pedestrian   string `json:"pedestrian"`
		Suburb       string `json:"suburb"`
		CityDistrict string `json:"city_district"`
		City         string `json:"city"`
		Town         string `json:"town"`
		Village      string `json:"village"`
		State        string `json:"state"`
		Postcode     string `json:"postcode"`
		Country      string `json:"country"`
		CountryCode  string `json:"country_code"`
	} `json:"address"`
}

// Reverse looks up the address closest to coord.
func (c *Client) Reverse(ctx context.Context, coord geo.Coordinate) (*Address, error) {
	if !coord.Valid() {
		return nil, fmt.Errorf("reverse geocode: invalid coordinate %v", coord)
	}

	params := url.Values{}
	params.Set("lat", strconv.FormatFloat(coord.Lat, 'f', 7, 64))
	params.Set("lon", strconv.FormatFloat(coord.Lon, 'f', 7, 64))
	params.Set("format", "jsonv2")
	params.Set("addressdetails", "1")
	params.Set("accept-language", "en")

	var resp reverseResponse
	if err := c.get(ctx, "/reverse", params, &resp); err != nil {
		return nil, err
	}
	if resp.Error != "" {
		return nil, fmt.Errorf("reverse geocode %v: %w (%s)", coord, ErrNoAddress, resp.Error)
	}

	a := resp.Address
	road := firstNonEmpty(a.Road, a.Pedestrian)
	if road != "" && a.HouseNumber != "" {
		road = a.HouseNumber + " " + road
	}

	return &Address{
		Thoroughfare:       road,
		Locality:           firstNonEmpty(a.City, a.Town, a.Village),
		SubLocality:        firstNonEmpty(a.Suburb, a.CityDistrict),
		AdministrativeArea: a.State,
		PostalCode:         a.Postcode,
		Country:            a.Country,
		CountryCode:        strings.ToUpper(a.CountryCode),
		Lines:              splitLines(resp.DisplayName),
	}, nil
}

func splitLines(displayName string) []string {
	if displayName == "" {
		return nil
	}
	parts := strings.Split(displayName, ",")
	lines := make([]string, 0, len(parts))
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			lines = append(lines, p)
		}
	}
	return lines
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}
