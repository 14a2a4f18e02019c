package export

import (
	"fmt"
	"io"

	"github.com/twpayne/go-kml/v3"

	"github.com/landloop/server/internal/lib/geo"
	"github.com/landloop/server/internal/services"
	"github.com/landloop/server/internal/store"
)

// WriteKML renders the claimed territories, plus the in-progress walk if one
// exists, as a KML document for map overlays. All coordinates are shifted into
// the display frame before rendering so the overlay lines up with the basemap.
func WriteKML(w io.Writer, territories []store.Territory, session *services.TrackingSnapshot) error {
	docElements := []kml.Element{
		kml.Name("Claimed territories"),
	}

	for _, territory := range territories {
		placemark := territoryPlacemark(territory)
		if placemark != nil {
			docElements = append(docElements, placemark)
		}
	}

	if session != nil && len(session.DisplayPath) >= 2 {
		docElements = append(docElements, sessionPlacemark(session))
	}

	doc := kml.KML(kml.Document(docElements...))
	if err := doc.WriteIndent(w, "", "  "); err != nil {
		return fmt.Errorf("failed to write KML: %w", err)
	}
	return nil
}

// territoryPlacemark renders one territory as a closed polygon. KML requires
// the ring's first coordinate repeated at the end.
func territoryPlacemark(territory store.Territory) kml.Element {
	if len(territory.Points) < 3 {
		return nil
	}

	display := geo.CorrectPath(territory.Points)
	coords := make([]kml.Coordinate, len(display)+1)
	for i, p := range display {
		coords[i] = kml.Coordinate{Lon: p.Longitude, Lat: p.Latitude}
	}
	coords[len(display)] = coords[0]

	description := fmt.Sprintf("<ul><li><strong>Player:</strong> %s</li><li><strong>Area:</strong> %.0f m²</li><li><strong>Points:</strong> %d</li><li><strong>Claimed:</strong> %s</li></ul>",
		territory.PlayerID, territory.AreaM2, territory.PointCount,
		territory.CreatedAt.Format("2006-01-02 15:04:05"))

	return kml.Placemark(
		kml.Name(territory.ID),
		kml.Description(description),
		kml.Polygon(
			kml.OuterBoundaryIs(
				kml.LinearRing(
					kml.Coordinates(coords...),
				),
			),
		),
	)
}

// sessionPlacemark renders the current walk as a line string. The path is
// left open; closure is the engine's call, not the renderer's.
func sessionPlacemark(session *services.TrackingSnapshot) kml.Element {
	coords := make([]kml.Coordinate, len(session.DisplayPath))
	for i, p := range session.DisplayPath {
		coords[i] = kml.Coordinate{Lon: p.Longitude, Lat: p.Latitude}
	}

	return kml.Placemark(
		kml.Name("Current walk"),
		kml.Description(fmt.Sprintf("<ul><li><strong>State:</strong> %s</li><li><strong>Points:</strong> %d</li></ul>",
			session.State, session.PointCount)),
		kml.LineString(
			kml.Tessellate(true),
			kml.Coordinates(coords...),
		),
	)
}
