package sources

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"log"
	"os"
	"strconv"

	"github.com/climateviz/station-map/pkg/mapengine"
	"github.com/climateviz/station-map/pkg/utils"
)

// placeColumns is the layout of a populated-places CSV row:
// kind, name, country_code, lat, lon, capital, rank, population.
const placeColumns = 8

// ParsePlaces reads the populated-places CSV used for map labels.
func ParsePlaces(r io.Reader) ([]*mapengine.Place, error) {
	cr := csv.NewReader(r)
	cr.FieldsPerRecord = placeColumns

	header, err := cr.Read()
	if err != nil {
		return nil, fmt.Errorf("reading places header: %w", err)
	}
	if header[0] != "kind" {
		return nil, fmt.Errorf("unexpected places header, got %q", header[0])
	}

	var places []*mapengine.Place
	skipped := 0
	for {
		rec, err := cr.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			skipped++
			continue
		}
		p, err := parsePlaceRow(rec)
		if err != nil {
			skipped++
			continue
		}
		places = append(places, p)
	}
	if skipped > 0 {
		log.Printf("[places] skipped %d unparseable rows", skipped)
	}
	return places, nil
}

func parsePlaceRow(rec []string) (*mapengine.Place, error) {
	p := &mapengine.Place{
		Name:        rec[1],
		CountryCode: rec[2],
	}
	switch rec[0] {
	case "city":
		p.Kind = mapengine.PlaceCity
	case "country":
		p.Kind = mapengine.PlaceCountry
	default:
		return nil, fmt.Errorf("unknown place kind %q", rec[0])
	}

	var err error
	if p.Lat, err = strconv.ParseFloat(rec[3], 64); err != nil {
		return nil, fmt.Errorf("place %s: bad latitude", rec[1])
	}
	if p.Lon, err = strconv.ParseFloat(rec[4], 64); err != nil {
		return nil, fmt.Errorf("place %s: bad longitude", rec[1])
	}
	p.Capital = rec[5] == "1" || rec[5] == "true"
	if p.Rank, err = strconv.Atoi(rec[6]); err != nil {
		return nil, fmt.Errorf("place %s: bad rank", rec[1])
	}
	if p.Population, err = strconv.Atoi(rec[7]); err != nil {
		return nil, fmt.Errorf("place %s: bad population", rec[1])
	}
	return p, nil
}

// LoadPlacesFile parses a local places CSV.
func LoadPlacesFile(path string) ([]*mapengine.Place, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer func() {
		if err := f.Close(); err != nil {
			log.Printf("Error closing %s: %v", path, err)
		}
	}()
	return ParsePlaces(f)
}

// FetchPlaces downloads and parses the populated-places dataset.
func FetchPlaces(useCache bool) ([]*mapengine.Place, error) {
	rc, err := utils.GetCachedReader(PopulatedPlacesURL, useCache, DatasetPlaces)
	if err != nil {
		return nil, err
	}
	defer func() {
		if err := rc.Close(); err != nil {
			log.Printf("Error closing places reader: %v", err)
		}
	}()
	return ParsePlaces(rc)
}
