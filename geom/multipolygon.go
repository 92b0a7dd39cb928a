package geom

import (
	"fmt"
	"sort"

	osm "github.com/omniscale/go-osm"
	"github.com/paulmach/orb"
	"github.com/paulmach/orb/planar"
)

// maxRingGap is the distance in degrees up to which unclosed rings
// are closed.
const maxRingGap = 1e-7

// BuildMultiPolygon assembles the way members of rel. Member ways need
// to be set with their nodes. Exterior rings are counter-clockwise,
// interior rings clockwise.
func BuildMultiPolygon(rel *osm.Relation) (orb.MultiPolygon, error) {
	rings, err := buildRings(rel)
	if err != nil {
		return nil, err
	}
	return buildGeometry(rings)
}

func buildRings(rel *osm.Relation) ([]*ring, error) {
	var incompleteRings []*ring
	var completeRings []*ring

	// create rings for all WAY members
	for _, member := range rel.Members {
		if member.Way == nil {
			continue
		}
		if len(member.Way.Refs) < 2 || len(member.Way.Nodes) != len(member.Way.Refs) {
			continue
		}
		r := newRing(member.Way)
		if r.isClosed() {
			completeRings = append(completeRings, r)
		} else {
			incompleteRings = append(incompleteRings, r)
		}
	}

	mergedRings := mergeRings(incompleteRings)
	if len(completeRings)+len(mergedRings) == 0 {
		return nil, newGeomError(
			fmt.Sprintf("linestrings from relation %d have no rings", rel.ID), 0)
	}

	for _, r := range mergedRings {
		if !r.isClosed() && !r.tryClose(maxRingGap) {
			return nil, newGeomError(
				fmt.Sprintf("linestrings from relation %d do not form a ring", rel.ID), 0)
		}
	}
	completeRings = append(completeRings, mergedRings...)

	for _, r := range completeRings {
		if err := r.build(); err != nil {
			return nil, err
		}
	}
	return completeRings, nil
}

// contains returns whether ring a contains ring b. Rings are expected
// to be valid, only one point of b that is not a node of a is tested.
func contains(a, b *ring) bool {
	if a.area <= b.area {
		return false
	}
	if !a.bound.Contains(b.bound.Min) || !a.bound.Contains(b.bound.Max) {
		return false
	}
	shared := make(map[int64]struct{}, len(a.refs))
	for _, ref := range a.refs {
		shared[ref] = struct{}{}
	}
	for i, nd := range b.nodes {
		if _, ok := shared[b.refs[i]]; ok {
			continue
		}
		return planar.RingContains(a.geom, orb.Point{nd.Long, nd.Lat})
	}
	// all nodes are shared, test the center of the first edge
	p := orb.Point{
		(b.geom[0][0] + b.geom[1][0]) / 2,
		(b.geom[0][1] + b.geom[1][1]) / 2,
	}
	return planar.RingContains(a.geom, p)
}

func buildGeometry(rings []*ring) (orb.MultiPolygon, error) {
	// sort by area (large to small)
	sort.SliceStable(rings, func(i, j int) bool { return rings[i].area > rings[j].area })

	index := newRingIndex(rings)
	for j := range rings {
		// the smallest containing ring is the parent
		for _, i := range index.intersecting(rings[j].bound) {
			if i >= j {
				continue
			}
			if i <= rings[j].containedBy {
				continue
			}
			if contains(rings[i], rings[j]) {
				rings[j].containedBy = i
			}
		}
	}

	var shells []*ring
	for j, r := range rings {
		if ringIsHole(rings, j) {
			parent := rings[r.containedBy]
			parent.holes = append(parent.holes, r)
		} else {
			shells = append(shells, r)
		}
	}

	mp := make(orb.MultiPolygon, 0, len(shells))
	for _, shell := range shells {
		orient(shell.geom, orb.CCW)
		poly := orb.Polygon{shell.geom}
		for _, hole := range shell.holes {
			orient(hole.geom, orb.CW)
			poly = append(poly, hole.geom)
		}
		mp = append(mp, poly)
	}
	return mp, nil
}

// ringIsHole returns true if rings[idx] is a hole, False if it is a
// shell (also if hole in a hole, etc)
func ringIsHole(rings []*ring, idx int) bool {
	containedCounter := 0
	for {
		idx = rings[idx].containedBy
		if idx == -1 {
			break
		}
		containedCounter += 1
	}
	return containedCounter%2 == 1
}
