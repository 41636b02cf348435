package sources

import (
	"fmt"
	"io"
	"log"
	"os"

	geojson "github.com/paulmach/go.geojson"

	"github.com/climateviz/station-map/pkg/utils"
)

// ParseFeatureCollection decodes a GeoJSON FeatureCollection from r.
func ParseFeatureCollection(r io.Reader) (*geojson.FeatureCollection, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, err
	}
	fc, err := geojson.UnmarshalFeatureCollection(data)
	if err != nil {
		return nil, fmt.Errorf("decoding GeoJSON: %w", err)
	}
	return fc, nil
}

// LoadFeatureFile parses a local GeoJSON file.
func LoadFeatureFile(path string) (*geojson.FeatureCollection, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer func() {
		if err := f.Close(); err != nil {
			log.Printf("Error closing %s: %v", path, err)
		}
	}()
	return ParseFeatureCollection(f)
}

func fetchFeatures(url string, ds utils.Dataset, useCache bool) (*geojson.FeatureCollection, error) {
	rc, err := utils.GetCachedReader(url, useCache, ds)
	if err != nil {
		return nil, err
	}
	defer func() {
		if err := rc.Close(); err != nil {
			log.Printf("Error closing %s reader: %v", ds, err)
		}
	}()
	return ParseFeatureCollection(rc)
}

// FetchBoundaries downloads the country boundary polygons.
func FetchBoundaries(useCache bool) (*geojson.FeatureCollection, error) {
	return fetchFeatures(CountryBoundariesURL, DatasetBoundaries, useCache)
}

// FetchWater downloads the lake polygons drawn as the water layer.
func FetchWater(useCache bool) (*geojson.FeatureCollection, error) {
	return fetchFeatures(LakesURL, DatasetWater, useCache)
}
