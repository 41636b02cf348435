// Package sources loads the datasets the viewer renders: station climate
// normals, country and lake geometry, and populated places for labeling.
package sources

import (
	"encoding/csv"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log"
	"os"
	"strconv"

	"github.com/climateviz/station-map/pkg/mapengine"
	"github.com/climateviz/station-map/pkg/utils"
)

// stationColumns is the fixed layout of a normals CSV row:
// id, city, country, koppen, lat, lon, color, 12 temperature columns (°C),
// 12 precipitation columns (mm).
const stationColumns = 7 + 12 + 12

const stationKeyPrefix = "station/"

// ParseStations reads station normals CSV. Rows that fail to parse are
// logged and skipped; a dataset with a few broken rows still renders.
func ParseStations(r io.Reader) ([]*mapengine.Station, error) {
	cr := csv.NewReader(r)
	cr.FieldsPerRecord = stationColumns

	header, err := cr.Read()
	if err != nil {
		return nil, fmt.Errorf("reading normals header: %w", err)
	}
	if header[0] != "station_id" {
		return nil, fmt.Errorf("unexpected normals header, got %q", header[0])
	}

	var stations []*mapengine.Station
	skipped := 0
	for {
		rec, err := cr.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			// Row-level CSV damage: skip and keep going.
			skipped++
			continue
		}
		st, err := parseStationRow(rec)
		if err != nil {
			skipped++
			continue
		}
		stations = append(stations, st)
	}
	if skipped > 0 {
		log.Printf("[stations] skipped %d unparseable rows", skipped)
	}
	if len(stations) == 0 {
		return nil, errors.New("normals file contained no usable stations")
	}
	return stations, nil
}

func parseStationRow(rec []string) (*mapengine.Station, error) {
	lat, err := strconv.ParseFloat(rec[4], 64)
	if err != nil {
		return nil, fmt.Errorf("station %s: bad latitude %q", rec[0], rec[4])
	}
	lon, err := strconv.ParseFloat(rec[5], 64)
	if err != nil {
		return nil, fmt.Errorf("station %s: bad longitude %q", rec[0], rec[5])
	}
	if lat < -90 || lat > 90 || lon < -180 || lon > 180 {
		return nil, fmt.Errorf("station %s: coordinates out of range", rec[0])
	}
	clr, err := mapengine.ParseHexColor(rec[6])
	if err != nil {
		return nil, fmt.Errorf("station %s: %w", rec[0], err)
	}

	st := &mapengine.Station{
		ID:        rec[0],
		City:      rec[1],
		Country:   rec[2],
		Class:     rec[3],
		Lat:       lat,
		Lon:       lon,
		BaseColor: clr,
	}
	for m := 0; m < 12; m++ {
		if st.MonthlyTemp[m], err = strconv.ParseFloat(rec[7+m], 64); err != nil {
			return nil, fmt.Errorf("station %s: bad temperature month %d", rec[0], m+1)
		}
		if st.MonthlyPrecip[m], err = strconv.ParseFloat(rec[19+m], 64); err != nil {
			return nil, fmt.Errorf("station %s: bad precipitation month %d", rec[0], m+1)
		}
	}
	return st, nil
}

// LoadStationsFile parses a local normals CSV.
func LoadStationsFile(path string) ([]*mapengine.Station, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer func() {
		if err := f.Close(); err != nil {
			log.Printf("Error closing %s: %v", path, err)
		}
	}()
	return ParseStations(f)
}

// FetchStations downloads and parses the normals dataset, trying each mirror
// in order. Already-cached mirrors are preferred over fresh downloads.
func FetchStations(useCache bool) ([]*mapengine.Station, error) {
	urls := StationNormalsURLs
	if cached, ok := utils.FindCachedURL(urls, DatasetStations); ok {
		urls = []string{cached}
	}
	var lastErr error
	for _, u := range urls {
		rc, err := utils.GetCachedReader(u, useCache, DatasetStations)
		if err != nil {
			lastErr = err
			continue
		}
		stations, err := ParseStations(rc)
		if cerr := rc.Close(); cerr != nil {
			log.Printf("Error closing normals reader: %v", cerr)
		}
		if err != nil {
			lastErr = err
			continue
		}
		return stations, nil
	}
	return nil, fmt.Errorf("no normals mirror usable: %w", lastErr)
}

// SaveStationsToStore persists parsed stations so later launches skip the
// CSV entirely.
func SaveStationsToStore(store *utils.DatasetStore, stations []*mapengine.Station) error {
	batch := make(map[string][]byte, len(stations))
	for _, st := range stations {
		data, err := json.Marshal(st)
		if err != nil {
			return fmt.Errorf("encoding station %s: %w", st.ID, err)
		}
		batch[stationKeyPrefix+st.ID] = data
	}
	return store.PutBatch(batch)
}

// LoadStationsFromStore restores a previously saved station set. Returns
// (nil, nil) when the store holds none.
func LoadStationsFromStore(store *utils.DatasetStore) ([]*mapengine.Station, error) {
	var stations []*mapengine.Station
	err := store.ForEachPrefix(stationKeyPrefix, func(k, v []byte) error {
		st := &mapengine.Station{}
		if err := json.Unmarshal(v, st); err != nil {
			return fmt.Errorf("decoding %s: %w", k, err)
		}
		stations = append(stations, st)
		return nil
	})
	if err != nil {
		return nil, err
	}
	return stations, nil
}
