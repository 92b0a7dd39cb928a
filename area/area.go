// Package area assembles areas from closed ways and from multipolygon
// and boundary relations.
package area

import (
	"sort"

	osm "github.com/omniscale/go-osm"
	"github.com/paulmach/orb"

	"github.com/omniscale/osm2ogr/geom"
	"github.com/omniscale/osm2ogr/log"
)

// Area is a polygonal feature assembled from a closed way or a relation.
type Area struct {
	// ID is way id * 2 for areas from ways and relation id * 2 + 1 for
	// areas from relations.
	ID       int64
	OrigID   int64
	FromWay  bool
	Tags     osm.Tags
	Metadata *osm.Metadata
	Geometry orb.MultiPolygon
}

func WayAreaID(wayID int64) int64           { return wayID * 2 }
func RelationAreaID(relationID int64) int64 { return relationID*2 + 1 }

// Handler receives assembled areas. Err is a geometry error when the
// area could not be built, a is not nil in both cases.
type Handler func(a *Area, err error) error

type pendingRelation struct {
	rel     osm.Relation
	missing int
}

// Manager collects multipolygon relations in the first pass and
// assembles areas in the second pass.
type Manager struct {
	relations map[int64]*pendingRelation
	// relations that need a way
	wayRelations map[int64][]int64
	// ways needed by pending relations
	ways map[int64]*osm.Way
	// number of pending relations per member way
	wayRefs map[int64]int
	debug   bool
}

func NewManager() *Manager {
	return &Manager{
		relations:    make(map[int64]*pendingRelation),
		wayRelations: make(map[int64][]int64),
		ways:         make(map[int64]*osm.Way),
		wayRefs:      make(map[int64]int),
	}
}

// SetDebug enables logging of assembly details.
func (m *Manager) SetDebug(debug bool) {
	m.debug = debug
}

func isAreaRelation(rel *osm.Relation) bool {
	t := rel.Tags["type"]
	return t == "multipolygon" || t == "boundary"
}

// AddRelation registers rel if it is a multipolygon or boundary
// relation with at least one way member. Returns whether rel was added.
func (m *Manager) AddRelation(rel *osm.Relation) bool {
	if !isAreaRelation(rel) {
		return false
	}
	if _, ok := m.relations[rel.ID]; ok {
		return false
	}
	p := &pendingRelation{rel: *rel}
	p.rel.Members = make([]osm.Member, 0, len(rel.Members))
	seen := make(map[int64]bool)
	for _, mb := range rel.Members {
		if mb.Type != osm.WayMember {
			continue
		}
		p.rel.Members = append(p.rel.Members, osm.Member{ID: mb.ID, Type: mb.Type, Role: mb.Role})
		if seen[mb.ID] {
			continue
		}
		seen[mb.ID] = true
		p.missing++
		m.wayRelations[mb.ID] = append(m.wayRelations[mb.ID], rel.ID)
		m.wayRefs[mb.ID]++
	}
	if p.missing == 0 {
		return false
	}
	m.relations[rel.ID] = p
	return true
}

// Way handles a way with resolved nodes. Closed ways are passed as
// areas to h. Member ways of registered relations are kept until all
// members of the relation are complete.
func (m *Manager) Way(way *osm.Way, h Handler) error {
	if isWayArea(way) {
		a := &Area{
			ID:       WayAreaID(way.ID),
			OrigID:   way.ID,
			FromWay:  true,
			Tags:     way.Tags,
			Metadata: way.Metadata,
		}
		poly, err := geom.Polygon(way.Nodes)
		if err == nil {
			a.Geometry = orb.MultiPolygon{poly}
		}
		if err := h(a, err); err != nil {
			return err
		}
	}

	relIDs, ok := m.wayRelations[way.ID]
	if !ok {
		return nil
	}
	delete(m.wayRelations, way.ID)
	m.ways[way.ID] = way
	for _, relID := range relIDs {
		p, ok := m.relations[relID]
		if !ok {
			continue
		}
		p.missing--
		if p.missing == 0 {
			if err := m.complete(p, h); err != nil {
				return err
			}
		}
	}
	return nil
}

// isWayArea returns whether a closed way should be handled as an area.
func isWayArea(way *osm.Way) bool {
	if len(way.Refs) < 4 || way.Refs[0] != way.Refs[len(way.Refs)-1] {
		return false
	}
	tags := 0
	for k := range way.Tags {
		if !ignoredAreaTags[k] {
			tags++
		}
	}
	if tags == 0 {
		return false
	}
	return way.Tags["area"] != "no"
}

// ignoredAreaTags do not make a closed way an area.
var ignoredAreaTags = map[string]bool{
	"created_by": true,
	"source":     true,
	"note":       true,
}

func (m *Manager) complete(p *pendingRelation, h Handler) error {
	delete(m.relations, p.rel.ID)
	for i := range p.rel.Members {
		p.rel.Members[i].Way = m.ways[p.rel.Members[i].ID]
	}

	a := &Area{
		ID:       RelationAreaID(p.rel.ID),
		OrigID:   p.rel.ID,
		Tags:     p.rel.Tags,
		Metadata: p.rel.Metadata,
	}
	mp, err := geom.BuildMultiPolygon(&p.rel)
	if err == nil {
		a.Geometry = mp
	} else if m.debug {
		log.Printf("[debug] assembling relation %d failed: %s", p.rel.ID, err)
	}
	if m.debug && err == nil {
		log.Printf("[debug] assembled relation %d with %d polygons from %d ways",
			p.rel.ID, len(mp), len(p.rel.Members))
	}
	m.release(p)
	return h(a, err)
}

// release removes member ways that are not needed by other relations.
func (m *Manager) release(p *pendingRelation) {
	seen := make(map[int64]bool, len(p.rel.Members))
	for _, mb := range p.rel.Members {
		if seen[mb.ID] {
			continue
		}
		seen[mb.ID] = true
		m.wayRefs[mb.ID]--
		if m.wayRefs[mb.ID] <= 0 {
			delete(m.wayRefs, mb.ID)
			delete(m.ways, mb.ID)
		}
	}
}

// IncompleteRelations returns the ids of all registered relations with
// missing member ways, sorted by id.
func (m *Manager) IncompleteRelations() []int64 {
	ids := make([]int64, 0, len(m.relations))
	for id := range m.relations {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	return ids
}
