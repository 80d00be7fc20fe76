package domain

// Marker is one memory plotted on the map.
type Marker struct {
	ID          string    `json:"id"`
	MediaKind   MediaKind `json:"mediaKind"`
	Latitude    float64   `json:"latitude"`
	Longitude   float64   `json:"longitude"`
	Title       string    `json:"title"`
	Description string    `json:"description"`
}

// Region is the visible map area: a centre plus the spans around it.
type Region struct {
	Latitude       float64 `json:"latitude"`
	Longitude      float64 `json:"longitude"`
	LatitudeDelta  float64 `json:"latitudeDelta"`
	LongitudeDelta float64 `json:"longitudeDelta"`
}

type MapView struct {
	Markers []Marker `json:"markers"`
	Region  *Region  `json:"region,omitempty"`
}

const (
	regionPaddingFactor = 1.5
	regionMinDelta      = 0.01
)

// PlotMarkers returns markers for every record that has a real location.
func PlotMarkers(records []MemoryRecord) []Marker {
	markers := make([]Marker, 0, len(records))
	for _, r := range records {
		if !r.HasLocation() {
			continue
		}
		markers = append(markers, Marker{
			ID:          r.ID,
			MediaKind:   r.MediaKind,
			Latitude:    r.Location.Latitude,
			Longitude:   r.Location.Longitude,
			Title:       r.DisplayDescription(),
			Description: r.CreatedAt.Format("2006-01-02"),
		})
	}
	return markers
}

// FitRegion returns the region that shows all markers, or nil when there are none.
func FitRegion(markers []Marker) *Region {
	if len(markers) == 0 {
		return nil
	}

	minLat, maxLat := markers[0].Latitude, markers[0].Latitude
	minLng, maxLng := markers[0].Longitude, markers[0].Longitude
	for _, m := range markers[1:] {
		minLat = min(minLat, m.Latitude)
		maxLat = max(maxLat, m.Latitude)
		minLng = min(minLng, m.Longitude)
		maxLng = max(maxLng, m.Longitude)
	}

	return &Region{
		Latitude:       (minLat + maxLat) / 2,
		Longitude:      (minLng + maxLng) / 2,
		LatitudeDelta:  (maxLat-minLat)*regionPaddingFactor + regionMinDelta,
		LongitudeDelta: (maxLng-minLng)*regionPaddingFactor + regionMinDelta,
	}
}

func NewMapView(records []MemoryRecord) MapView {
	markers := PlotMarkers(records)
	return MapView{
		Markers: markers,
		Region:  FitRegion(markers),
	}
}
