package main

import (
	"log"
	"net/http"
	"os"

	"github.com/alecthomas/kong"
	"github.com/hajimehoshi/ebiten/v2"
	geojson "github.com/paulmach/go.geojson"
	_ "github.com/silbinarywolf/preferdiscretegpu"

	"github.com/climateviz/station-map/pkg/mapengine"
	"github.com/climateviz/station-map/pkg/notify"
	"github.com/climateviz/station-map/pkg/sources"
	"github.com/climateviz/station-map/pkg/utils"
)

var cli struct {
	Stations   string `help:"Local station normals CSV. The published dataset is fetched when empty." type:"path"`
	Boundaries string `help:"Local country boundaries GeoJSON." type:"path"`
	Water      string `help:"Local lakes GeoJSON." type:"path"`
	Places     string `help:"Local populated places CSV." type:"path"`

	Store    string `default:"data/store" help:"Directory for the parsed dataset store."`
	CacheDir string `default:"data/cache" help:"Directory for raw dataset downloads."`
	NoCache  bool   `help:"Stream datasets instead of caching them on disk."`
	Refresh  bool   `help:"Re-fetch the station normals even when the store has them."`

	Width        int    `default:"1280" help:"Internal rendering width."`
	Height       int    `default:"800" help:"Internal rendering height."`
	WindowWidth  int    `default:"1280" help:"Initial window width (non-headless only)."`
	WindowHeight int    `default:"800" help:"Initial window height (non-headless only)."`
	TPS          int    `default:"60" help:"Ticks per second (engine updates)."`
	Style        string `default:"glyph" enum:"glyph,point" help:"Station symbol style."`
	Headless     bool   `help:"Run without a local window (offscreen rendering active)."`

	NotifyListen string `help:"Listen address for the websocket notification bridge, e.g. :8077."`
}

func main() {
	kong.Parse(&cli,
		kong.Name("station-viewer"),
		kong.Description("Interactive map of climate station normals."))
	log.SetOutput(os.Stderr)
	log.SetFlags(log.LstdFlags | log.Lmicroseconds)

	utils.CacheDir = cli.CacheDir
	useCache := !cli.NoCache

	style, err := mapengine.ParseSymbolStyle(cli.Style)
	if err != nil {
		log.Fatalf("Bad --style: %v", err)
	}

	engine := mapengine.NewEngine(cli.Width, cli.Height)
	engine.SetSymbolStyle(style)

	if cli.NotifyListen != "" {
		hub := notify.NewHub()
		engine.Subscribe(hub)
		mux := http.NewServeMux()
		mux.Handle("/ws", hub)
		go func() {
			log.Printf("Notification bridge listening on %s", cli.NotifyListen)
			if err := http.ListenAndServe(cli.NotifyListen, mux); err != nil {
				log.Fatalf("Notification bridge failed: %v", err)
			}
		}()
	}

	stations, err := loadStations(useCache)
	if err != nil {
		log.Fatalf("Failed to load station normals: %v", err)
	}
	boundaries, water, places := loadOverlays(useCache)

	engine.SetData(stations, boundaries, water, places)
	go engine.StartMemoryWatcher()

	ebiten.SetTPS(cli.TPS)
	if cli.Headless {
		log.Println("Running in HEADLESS mode (rendering active).")
	} else {
		ebiten.SetWindowSize(cli.WindowWidth, cli.WindowHeight)
		ebiten.SetWindowTitle("Climate Station Map")
	}
	if err := ebiten.RunGame(engine); err != nil {
		log.Fatal(err)
	}
}

// loadStations prefers, in order: an explicit local file, the parsed store,
// then a fresh fetch which also repopulates the store.
func loadStations(useCache bool) ([]*mapengine.Station, error) {
	if cli.Stations != "" {
		return sources.LoadStationsFile(cli.Stations)
	}

	store, err := utils.OpenDatasetStore(cli.Store)
	if err != nil {
		return nil, err
	}
	defer func() {
		if err := store.Close(); err != nil {
			log.Printf("Error closing dataset store: %v", err)
		}
	}()

	if !cli.Refresh {
		stations, err := sources.LoadStationsFromStore(store)
		if err != nil {
			log.Printf("Dataset store unreadable, refetching: %v", err)
		} else if len(stations) > 0 {
			log.Printf("Loaded %d stations from the dataset store", len(stations))
			return stations, nil
		}
	}

	stations, err := sources.FetchStations(useCache)
	if err != nil {
		return nil, err
	}
	if err := sources.SaveStationsToStore(store, stations); err != nil {
		log.Printf("Failed to persist stations to the store: %v", err)
	}
	return stations, nil
}

// loadOverlays fetches boundary, water and label datasets. All three are
// decorative relative to the stations, so failures degrade to a plain map
// instead of aborting.
func loadOverlays(useCache bool) (boundaries, water *geojson.FeatureCollection, places []*mapengine.Place) {
	var err error
	if cli.Boundaries != "" {
		boundaries, err = sources.LoadFeatureFile(cli.Boundaries)
	} else {
		boundaries, err = sources.FetchBoundaries(useCache)
	}
	if err != nil {
		log.Printf("Boundary layer unavailable: %v", err)
		boundaries = nil
	}

	if cli.Water != "" {
		water, err = sources.LoadFeatureFile(cli.Water)
	} else {
		water, err = sources.FetchWater(useCache)
	}
	if err != nil {
		log.Printf("Water layer unavailable: %v", err)
		water = nil
	}

	if cli.Places != "" {
		places, err = sources.LoadPlacesFile(cli.Places)
	} else {
		places, err = sources.FetchPlaces(useCache)
	}
	if err != nil {
		log.Printf("Label layer unavailable: %v", err)
		places = nil
	}
	return boundaries, water, places
}
