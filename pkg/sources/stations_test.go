package sources

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/climateviz/station-map/pkg/utils"
)

const normalsHeader = "station_id,city,country,koppen,lat,lon,color," +
	"t01,t02,t03,t04,t05,t06,t07,t08,t09,t10,t11,t12," +
	"p01,p02,p03,p04,p05,p06,p07,p08,p09,p10,p11,p12"

func normalsRow(id, city, country, class string, lat, lon float64, color string) string {
	temps := make([]string, 12)
	precips := make([]string, 12)
	for i := range temps {
		temps[i] = fmt.Sprintf("%.1f", float64(i)-2)
		precips[i] = fmt.Sprintf("%.1f", float64(i)*15)
	}
	return fmt.Sprintf("%s,%s,%s,%s,%f,%f,%s,%s,%s",
		id, city, country, class, lat, lon, color,
		strings.Join(temps, ","), strings.Join(precips, ","))
}

func TestParseStations(t *testing.T) {
	csvData := strings.Join([]string{
		normalsHeader,
		normalsRow("GME00111445", "Berlin", "Germany", "Cfb", 52.5, 13.4, "#50a05a"),
		normalsRow("EGM00062366", "Cairo", "Egypt", "BWh", 30.0, 31.2, "dcb43c"),
	}, "\n")

	stations, err := ParseStations(strings.NewReader(csvData))
	if err != nil {
		t.Fatalf("ParseStations: %v", err)
	}
	if len(stations) != 2 {
		t.Fatalf("got %d stations, want 2", len(stations))
	}
	st := stations[0]
	if st.ID != "GME00111445" || st.City != "Berlin" || st.Class != "Cfb" {
		t.Errorf("station fields: %+v", st)
	}
	if st.Lat != 52.5 || st.Lon != 13.4 {
		t.Errorf("coordinates (%f, %f)", st.Lat, st.Lon)
	}
	if st.MonthlyTemp[0] != -2 || st.MonthlyPrecip[11] != 165 {
		t.Errorf("monthly columns misread: t01=%f p12=%f", st.MonthlyTemp[0], st.MonthlyPrecip[11])
	}
	if st.BaseColor.R != 0x50 || st.BaseColor.G != 0xa0 || st.BaseColor.B != 0x5a {
		t.Errorf("color misread: %v", st.BaseColor)
	}
}

func TestParseStationsSkipsBrokenRows(t *testing.T) {
	csvData := strings.Join([]string{
		normalsHeader,
		normalsRow("GOOD00000001", "Lima", "Peru", "BWn", -12.0, -77.0, "#888888"),
		normalsRow("BAD000000001", "Nowhere", "XX", "Af", 412.0, 13.4, "#888888"), // latitude out of range
		normalsRow("BAD000000002", "Nocolor", "XX", "Af", 10.0, 10.0, "notacolor"),
	}, "\n")

	stations, err := ParseStations(strings.NewReader(csvData))
	if err != nil {
		t.Fatalf("ParseStations: %v", err)
	}
	if len(stations) != 1 || stations[0].ID != "GOOD00000001" {
		t.Fatalf("got %d stations, want only the good one", len(stations))
	}
}

func TestParseStationsRejectsBadInput(t *testing.T) {
	cases := []struct {
		name string
		data string
	}{
		{"empty", ""},
		{"wrong header", "foo,bar\n"},
		{"header only", normalsHeader + "\n"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if _, err := ParseStations(strings.NewReader(tc.data)); err == nil {
				t.Error("expected an error")
			}
		})
	}
}

func TestStationStoreRoundTrip(t *testing.T) {
	tmpDir, err := os.MkdirTemp("", "station-store-test-*")
	if err != nil {
		t.Fatalf("Failed to create temp dir: %v", err)
	}
	defer func() {
		if err := os.RemoveAll(tmpDir); err != nil {
			t.Logf("Error removing temp dir: %v", err)
		}
	}()
	store, err := utils.OpenDatasetStore(filepath.Join(tmpDir, "test.db"))
	if err != nil {
		t.Fatalf("Failed to open store: %v", err)
	}
	defer func() {
		if err := store.Close(); err != nil {
			t.Logf("Error closing store: %v", err)
		}
	}()

	csvData := strings.Join([]string{
		normalsHeader,
		normalsRow("A", "Alpha", "AA", "Af", 1, 2, "#101010"),
		normalsRow("B", "Beta", "BB", "Cfb", 3, 4, "#202020"),
	}, "\n")
	stations, err := ParseStations(strings.NewReader(csvData))
	if err != nil {
		t.Fatalf("ParseStations: %v", err)
	}

	if err := SaveStationsToStore(store, stations); err != nil {
		t.Fatalf("SaveStationsToStore: %v", err)
	}
	restored, err := LoadStationsFromStore(store)
	if err != nil {
		t.Fatalf("LoadStationsFromStore: %v", err)
	}
	if len(restored) != 2 {
		t.Fatalf("restored %d stations, want 2", len(restored))
	}
	byID := map[string]bool{}
	for _, st := range restored {
		byID[st.ID] = true
		if st.ID == "A" && (st.City != "Alpha" || st.MonthlyPrecip[2] != 30) {
			t.Errorf("station A fields lost in round trip: %+v", st)
		}
	}
	if !byID["A"] || !byID["B"] {
		t.Errorf("restored IDs: %v", byID)
	}
}
