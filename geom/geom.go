// Package geom builds orb geometries from OSM nodes and ways.
package geom

import (
	"math"

	osm "github.com/omniscale/go-osm"
	"github.com/paulmach/orb"
)

type GeomError struct {
	message string
	level   int
}

func (e *GeomError) Error() string {
	return e.message
}

func (e *GeomError) Level() int {
	return e.level
}

func newGeomError(message string, level int) *GeomError {
	return &GeomError{message, level}
}

var (
	ErrorOneNodeWay      = newGeomError("need at least two separate nodes for way", 0)
	ErrorNoRing          = newGeomError("linestrings do not form ring", 0)
	ErrorInvalidLocation = newGeomError("invalid or missing node location", 0)
)

// IsGeomError returns whether err is caused by invalid input data.
func IsGeomError(err error) bool {
	_, ok := err.(*GeomError)
	return ok
}

func validNode(nd osm.Node) bool {
	return !math.IsNaN(nd.Long) && !math.IsNaN(nd.Lat)
}

func Point(node osm.Node) (orb.Point, error) {
	if !validNode(node) {
		return orb.Point{}, ErrorInvalidLocation
	}
	return orb.Point{node.Long, node.Lat}, nil
}

// unduplicateNodes removes consecutive nodes with the same location.
func unduplicateNodes(nodes []osm.Node) []osm.Node {
	if len(nodes) < 2 {
		return nodes
	}
	foundDup := false
	for i := 1; i < len(nodes); i++ {
		if nodes[i-1].Long == nodes[i].Long && nodes[i-1].Lat == nodes[i].Lat {
			foundDup = true
			break
		}
	}
	if !foundDup {
		return nodes
	}

	result := make([]osm.Node, 0, len(nodes))
	result = append(result, nodes[0])
	for i := 1; i < len(nodes); i++ {
		if nodes[i-1].Long == nodes[i].Long && nodes[i-1].Lat == nodes[i].Lat {
			continue
		}
		result = append(result, nodes[i])
	}
	return result
}

func checkLocations(nodes []osm.Node) error {
	for _, nd := range nodes {
		if !validNode(nd) {
			return ErrorInvalidLocation
		}
	}
	return nil
}

func LineString(nodes []osm.Node) (orb.LineString, error) {
	if err := checkLocations(nodes); err != nil {
		return nil, err
	}
	nodes = unduplicateNodes(nodes)
	if len(nodes) < 2 {
		return nil, ErrorOneNodeWay
	}
	ls := make(orb.LineString, len(nodes))
	for i, nd := range nodes {
		ls[i] = orb.Point{nd.Long, nd.Lat}
	}
	return ls, nil
}

func ringFromNodes(nodes []osm.Node) (orb.Ring, error) {
	if err := checkLocations(nodes); err != nil {
		return nil, err
	}
	nodes = unduplicateNodes(nodes)
	if len(nodes) < 4 {
		return nil, newGeomError("polygon ring needs at least four points", 0)
	}
	r := make(orb.Ring, len(nodes))
	for i, nd := range nodes {
		r[i] = orb.Point{nd.Long, nd.Lat}
	}
	if !r.Closed() {
		return nil, ErrorNoRing
	}
	return r, nil
}

// Polygon returns a polygon with a counter-clockwise exterior ring.
func Polygon(nodes []osm.Node) (orb.Polygon, error) {
	r, err := ringFromNodes(nodes)
	if err != nil {
		return nil, err
	}
	orient(r, orb.CCW)
	return orb.Polygon{r}, nil
}

func orient(r orb.Ring, o orb.Orientation) {
	if r.Orientation() != o {
		r.Reverse()
	}
}
