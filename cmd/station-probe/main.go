// station-probe is a headless inspection tool: it fits the projection the
// viewer would use and reports which station a pointer or coordinate query
// resolves to, with its full normals. Useful when a station picks up the
// wrong neighbors or a dataset row looks suspect.
package main

import (
	"flag"
	"fmt"
	"log"
	"os"
	"strings"

	"github.com/climateviz/station-map/pkg/mapengine"
	"github.com/climateviz/station-map/pkg/sources"
)

var (
	stationsPath = flag.String("stations", "", "Local station normals CSV (required)")
	lon          = flag.Float64("lon", 13.4, "Query longitude")
	lat          = flag.Float64("lat", 52.5, "Query latitude")
	width        = flag.Int("width", 1280, "Viewport width used for the fit")
	height       = flag.Int("height", 800, "Viewport height used for the fit")
	count        = flag.Int("count", 1, "Number of nearest stations to report")
)

func main() {
	flag.Parse()
	if *stationsPath == "" {
		flag.Usage()
		os.Exit(2)
	}

	stations, err := sources.LoadStationsFile(*stationsPath)
	if err != nil {
		log.Fatalf("Failed to load stations: %v", err)
	}
	fmt.Printf("Loaded %d stations\n", len(stations))

	vp := mapengine.NewViewport(*width, *height)
	vp.Fit(stations)
	if vp.Proj.Identity() {
		log.Fatal("Station set is degenerate; no projection possible")
	}

	glyph := mapengine.DefaultGlyphScale()
	idx := mapengine.NewStationIndex()
	idx.Rebuild(stations, vp, glyph)

	remaining := stations
	for i := 0; i < *count && len(remaining) > 0; i++ {
		bx, by := vp.Proj.Forward(*lon, *lat)
		sx, sy := vp.BaseToScreen(bx, by)
		st := idx.QueryNearest(vp, sx, sy, 1e18)
		if st == nil {
			break
		}
		fmt.Printf("\n#%d nearest to (%.3f, %.3f):\n", i+1, *lon, *lat)
		printStation(st, glyph)

		// Remove the hit and rebuild so the next round reports the runner-up.
		next := remaining[:0]
		for _, s := range remaining {
			if s != st {
				next = append(next, s)
			}
		}
		remaining = next
		idx.Rebuild(remaining, vp, glyph)
	}
}

func printStation(st *mapengine.Station, glyph mapengine.GlyphScale) {
	fmt.Printf("  %s  %s, %s  [%s]  (%.4f, %.4f)\n",
		st.ID, st.City, st.Country, st.Class, st.Lon, st.Lat)
	fmt.Printf("  %s\n", strings.Repeat("-", 64))
	months := []string{"Jan", "Feb", "Mar", "Apr", "May", "Jun", "Jul", "Aug", "Sep", "Oct", "Nov", "Dec"}
	fmt.Printf("  %-8s", "")
	for _, m := range months {
		fmt.Printf("%7s", m)
	}
	fmt.Println()
	fmt.Printf("  %-8s", "temp °C")
	for m := 0; m < 12; m++ {
		fmt.Printf("%7.1f", st.MonthlyTemp[m])
	}
	fmt.Println()
	fmt.Printf("  %-8s", "prcp mm")
	for m := 0; m < 12; m++ {
		fmt.Printf("%7.1f", st.MonthlyPrecip[m])
	}
	fmt.Println()
	fmt.Printf("  %-8s", "r-outer")
	for m := 0; m < 12; m++ {
		fmt.Printf("%7.2f", glyph.PrecipRadiusFactor(st.MonthlyPrecip[m]))
	}
	fmt.Println()
	fmt.Printf("  %-8s", "r-inner")
	for m := 0; m < 12; m++ {
		fmt.Printf("%7.2f", glyph.TempRadiusFactor(st.MonthlyTemp[m]))
	}
	fmt.Println()
}
