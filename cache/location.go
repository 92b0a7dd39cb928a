// Package cache stores node locations, so that ways can be built from
// their node references.
package cache

import (
	"errors"
	"math"

	osm "github.com/omniscale/go-osm"
)

var (
	NotFound = errors.New("not found")
)

const coordPrecision = 10000000

const undefinedCoord = math.MaxInt32

// Location is a node location in fixed point representation with
// a precision of 1e-7 degree.
type Location struct {
	X, Y int32
}

// InvalidLocation is returned for nodes without a location.
var InvalidLocation = Location{undefinedCoord, undefinedCoord}

func toFixed(c float64) int32 {
	return int32(math.Round(c * coordPrecision))
}

func NewLocation(long, lat float64) Location {
	if math.IsNaN(long) || math.IsNaN(lat) ||
		long < -180 || long > 180 || lat < -90 || lat > 90 {
		return InvalidLocation
	}
	return Location{toFixed(long), toFixed(lat)}
}

func (l Location) Valid() bool {
	return l.X >= -180*coordPrecision && l.X <= 180*coordPrecision &&
		l.Y >= -90*coordPrecision && l.Y <= 90*coordPrecision
}

func (l Location) Long() float64 { return float64(l.X) / coordPrecision }
func (l Location) Lat() float64  { return float64(l.Y) / coordPrecision }

// Locations is a node location index. Stores are only accessed from
// a single goroutine, but Put may be called with unsorted batches.
type Locations interface {
	// Put stores the locations of all nodes.
	Put(nodes []osm.Node) error
	// Get returns the location of node id or NotFound.
	Get(id int64) (Location, error)
	// Flush writes pending changes.
	Flush() error
	Close() error
}

// Iterator is implemented by stores that can list all locations in
// ascending id order.
type Iterator interface {
	Iter(fn func(id int64, loc Location) error) error
}

// Sizer is implemented by stores that can report their size.
type Sizer interface {
	// Len returns the number of stored locations.
	Len() int
	// Used returns the estimated memory usage in bytes.
	Used() int64
}

type wayFiller interface {
	FillWay(way *osm.Way) (int, error)
}

// FillWay sets way.Nodes from way.Refs. Nodes without a location get
// NaN coordinates. Returns the number of missing locations.
func FillWay(l Locations, way *osm.Way) (int, error) {
	if way == nil {
		return 0, nil
	}
	if wf, ok := l.(wayFiller); ok {
		return wf.FillWay(way)
	}
	way.Nodes = make([]osm.Node, len(way.Refs))
	missing := 0
	for i, id := range way.Refs {
		loc, err := l.Get(id)
		if err != nil && err != NotFound {
			return 0, err
		}
		setNode(&way.Nodes[i], id, loc)
		if !loc.Valid() {
			missing++
		}
	}
	return missing, nil
}

func setNode(nd *osm.Node, id int64, loc Location) {
	nd.ID = id
	if loc.Valid() {
		nd.Long = loc.Long()
		nd.Lat = loc.Lat()
	} else {
		nd.Long = math.NaN()
		nd.Lat = math.NaN()
	}
}
