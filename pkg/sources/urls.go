package sources

import "github.com/climateviz/station-map/pkg/utils"

// Dataset families served out of the shared download cache.
const (
	DatasetStations   utils.Dataset = "stations"
	DatasetBoundaries utils.Dataset = "boundaries"
	DatasetWater      utils.Dataset = "water"
	DatasetPlaces     utils.Dataset = "places"
)

const (
	// Station normals, one row per station with monthly temperature and
	// precipitation columns. Mirrors are tried in order.
	StationNormalsURL       = "https://data.climateviz.dev/normals/stations-1991-2020.csv"
	StationNormalsMirrorURL = "https://mirror.climateviz.dev/normals/stations-1991-2020.csv"

	// Natural Earth 1:110m cultural and physical vectors, as GeoJSON.
	CountryBoundariesURL = "https://raw.githubusercontent.com/nvkelso/natural-earth-vector/master/geojson/ne_110m_admin_0_countries.geojson"
	LakesURL             = "https://raw.githubusercontent.com/nvkelso/natural-earth-vector/master/geojson/ne_110m_lakes.geojson"

	// Populated places with rank and population columns.
	PopulatedPlacesURL = "https://data.climateviz.dev/places/populated-places.csv"
)

// StationNormalsURLs lists the normals mirrors in preference order.
var StationNormalsURLs = []string{StationNormalsURL, StationNormalsMirrorURL}
