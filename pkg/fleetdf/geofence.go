package fleetdf

// points closer than this (in degrees) to a polygon edge count as on the
// boundary, which we treat as inside
const boundaryEpsilon = 1e-9

// Geofence is a named geographic boundary used as a spatial policy
// reference. Either Boundary (simple polygon, >= 3 vertices) or
// CentrePoint + RadiusMetres (circular fence) is set, never both.
type Geofence struct {
	PrimaryIdentifier string `groups:"basic" bson:"primaryidentifier"`
	Name              string `groups:"basic" bson:"name"`

	Boundary []Location `groups:"detailed" bson:"boundary,omitempty"`

	CentrePoint  *Location `groups:"detailed" bson:"centrepoint,omitempty"`
	RadiusMetres float64   `groups:"detailed" bson:"radiusmetres,omitempty"`

	// Display only, carried for the dashboard collaborator
	Colour string `groups:"basic" bson:"colour,omitempty"`
}

func (g *Geofence) IsCircular() bool {
	return g.CentrePoint != nil
}

// Validate rejects degenerate definitions up front so containment never
// has to return a silently wrong answer.
func (g *Geofence) Validate() error {
	if g.IsCircular() {
		if len(g.Boundary) > 0 {
			return NewConfigurationError(g.PrimaryIdentifier, "geofence has both a polygon boundary and a centre point")
		}
		if !g.CentrePoint.IsValid() {
			return NewConfigurationError(g.PrimaryIdentifier, "circular geofence centre point is not a valid coordinate")
		}
		if g.RadiusMetres <= 0 {
			return NewConfigurationError(g.PrimaryIdentifier, "circular geofence radius must be greater than zero")
		}

		return nil
	}

	if len(g.Boundary) < 3 {
		return NewConfigurationError(g.PrimaryIdentifier, "polygon geofence must have at least 3 vertices")
	}

	for _, vertex := range g.Boundary {
		if !vertex.IsValid() {
			return NewConfigurationError(g.PrimaryIdentifier, "polygon geofence has an invalid vertex coordinate")
		}
	}

	return nil
}

// Contains reports whether the point falls within the geofence. The
// boundary itself counts as inside - float comparisons make "exactly on
// the line" ambiguous so the inclusive convention is fixed here.
func (g *Geofence) Contains(point Location) (bool, error) {
	if err := g.Validate(); err != nil {
		return false, err
	}

	if !point.IsValid() {
		return false, NewConfigurationError(g.PrimaryIdentifier, "containment test called with an invalid point")
	}

	if g.IsCircular() {
		return g.CentrePoint.DistanceFrom(point) <= g.RadiusMetres, nil
	}

	// Boundary vertices and edges are inside by convention
	for index, vertex := range g.Boundary {
		next := g.Boundary[(index+1)%len(g.Boundary)]

		if point.DistanceFromLine(vertex, next) <= boundaryEpsilon {
			return true, nil
		}
	}

	// Standard ray casting over the closed vertex sequence
	inside := false
	x := point.Longitude()
	y := point.Latitude()

	previous := len(g.Boundary) - 1
	for index := 0; index < len(g.Boundary); index++ {
		xi := g.Boundary[index].Longitude()
		yi := g.Boundary[index].Latitude()
		xj := g.Boundary[previous].Longitude()
		yj := g.Boundary[previous].Latitude()

		intersects := ((yi > y) != (yj > y)) &&
			(x < (xj-xi)*(y-yi)/(yj-yi)+xi)
		if intersects {
			inside = !inside
		}

		previous = index
	}

	return inside, nil
}

// GeofenceDocument is the interchange schema for geofence import/export.
// Coordinate pairs are latitude first, matching the management tooling.
type GeofenceDocument struct {
	Name        string      `json:"name"`
	Coordinates [][]float64 `json:"coordinates"`
	Colour      string      `json:"color,omitempty"`
}

func (d *GeofenceDocument) ToGeofence(identifier string) (*Geofence, error) {
	geofence := &Geofence{
		PrimaryIdentifier: identifier,
		Name:              d.Name,
		Colour:            d.Colour,
	}

	for _, pair := range d.Coordinates {
		if len(pair) != 2 {
			return nil, NewConfigurationError(identifier, "coordinate pairs must be [latitude, longitude]")
		}

		geofence.Boundary = append(geofence.Boundary, NewLocation(pair[0], pair[1]))
	}

	if err := geofence.Validate(); err != nil {
		return nil, err
	}

	return geofence, nil
}

func (g *Geofence) ToDocument() (*GeofenceDocument, error) {
	if g.IsCircular() {
		return nil, NewConfigurationError(g.PrimaryIdentifier, "circular geofences have no document representation")
	}

	document := &GeofenceDocument{
		Name:   g.Name,
		Colour: g.Colour,
	}

	for _, vertex := range g.Boundary {
		document.Coordinates = append(document.Coordinates, []float64{vertex.Latitude(), vertex.Longitude()})
	}

	return document, nil
}
