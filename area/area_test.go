package area

import (
	"testing"

	osm "github.com/omniscale/go-osm"
	"github.com/paulmach/orb/planar"
)

func way(id int64, tags osm.Tags, refs []int64, coords [][2]float64) *osm.Way {
	w := &osm.Way{Element: osm.Element{ID: id, Tags: tags}, Refs: refs}
	for i, ref := range refs {
		w.Nodes = append(w.Nodes, osm.Node{Element: osm.Element{ID: ref}, Long: coords[i][0], Lat: coords[i][1]})
	}
	return w
}

func square(id int64, tags osm.Tags, firstRef int64, min, max float64) *osm.Way {
	return way(id, tags,
		[]int64{firstRef, firstRef + 1, firstRef + 2, firstRef + 3, firstRef},
		[][2]float64{{min, min}, {max, min}, {max, max}, {min, max}, {min, min}},
	)
}

type collector struct {
	areas  []*Area
	errors []*Area
}

func (c *collector) handle(a *Area, err error) error {
	if err != nil {
		c.errors = append(c.errors, a)
		return nil
	}
	c.areas = append(c.areas, a)
	return nil
}

func TestClosedWayArea(t *testing.T) {
	m := NewManager()
	c := &collector{}
	if err := m.Way(square(7, osm.Tags{"building": "yes"}, 1, 0, 1), c.handle); err != nil {
		t.Fatal(err)
	}
	if len(c.areas) != 1 {
		t.Fatal(c.areas)
	}
	a := c.areas[0]
	if a.ID != 14 || a.OrigID != 7 || !a.FromWay {
		t.Errorf("unexpected area %+v", a)
	}
	if planar.Area(a.Geometry) != 1 {
		t.Error(planar.Area(a.Geometry))
	}
}

func TestClosedWayNoArea(t *testing.T) {
	m := NewManager()
	c := &collector{}
	// untagged
	m.Way(square(1, nil, 1, 0, 1), c.handle)
	// only tags that do not describe a feature
	m.Way(square(5, osm.Tags{"created_by": "JOSM", "source": "survey", "note": "check"}, 1, 0, 1), c.handle)
	// area=no
	m.Way(square(2, osm.Tags{"area": "no", "highway": "service"}, 1, 0, 1), c.handle)
	// not closed
	m.Way(way(3, osm.Tags{"highway": "road"}, []int64{1, 2, 3, 4}, [][2]float64{{0, 0}, {1, 0}, {1, 1}, {0, 1}}), c.handle)
	// too short
	m.Way(way(4, osm.Tags{"highway": "road"}, []int64{1, 2, 1}, [][2]float64{{0, 0}, {1, 0}, {0, 0}}), c.handle)
	if len(c.areas) != 0 || len(c.errors) != 0 {
		t.Fatal(c.areas, c.errors)
	}
}

func TestClosedWayIgnoredTags(t *testing.T) {
	m := NewManager()
	c := &collector{}
	if err := m.Way(square(6, osm.Tags{"source": "survey", "landuse": "grass"}, 1, 0, 1), c.handle); err != nil {
		t.Fatal(err)
	}
	if len(c.areas) != 1 || c.areas[0].Tags["source"] != "survey" {
		t.Fatal(c.areas)
	}
}

func TestInvalidWayArea(t *testing.T) {
	m := NewManager()
	c := &collector{}
	// closed by refs, but only two distinct locations
	w := way(5, osm.Tags{"building": "yes"}, []int64{1, 2, 3, 1}, [][2]float64{{0, 0}, {1, 1}, {1, 1}, {0, 0}})
	m.Way(w, c.handle)
	if len(c.errors) != 1 || c.errors[0].ID != 10 {
		t.Fatal(c.errors)
	}
}

func TestRelationArea(t *testing.T) {
	m := NewManager()
	c := &collector{}

	rel := &osm.Relation{
		Element: osm.Element{ID: 3, Tags: osm.Tags{"type": "multipolygon", "landuse": "forest"}},
		Members: []osm.Member{
			{ID: 10, Type: osm.WayMember, Role: "outer"},
			{ID: 11, Type: osm.WayMember, Role: "inner"},
			{ID: 99, Type: osm.NodeMember},
		},
	}
	if !m.AddRelation(rel) {
		t.Fatal("relation not added")
	}
	if m.AddRelation(&osm.Relation{Element: osm.Element{ID: 4, Tags: osm.Tags{"type": "route"}},
		Members: []osm.Member{{ID: 10, Type: osm.WayMember}}}) {
		t.Fatal("route relation added")
	}
	if m.AddRelation(&osm.Relation{Element: osm.Element{ID: 5, Tags: osm.Tags{"type": "boundary"}},
		Members: []osm.Member{{ID: 1, Type: osm.NodeMember}}}) {
		t.Fatal("relation without way members added")
	}

	m.Way(square(10, nil, 1, 0, 10), c.handle)
	if len(c.areas) != 0 {
		t.Fatal("relation completed too early")
	}
	if ids := m.IncompleteRelations(); len(ids) != 1 || ids[0] != 3 {
		t.Fatal(ids)
	}

	m.Way(square(11, nil, 10, 2, 8), c.handle)
	if len(c.areas) != 1 {
		t.Fatal(c.areas, c.errors)
	}
	a := c.areas[0]
	if a.ID != 7 || a.OrigID != 3 || a.FromWay {
		t.Errorf("unexpected area %+v", a)
	}
	if a.Tags["landuse"] != "forest" {
		t.Error(a.Tags)
	}
	if planar.Area(a.Geometry) != 100-36 {
		t.Error(planar.Area(a.Geometry))
	}
	if len(m.IncompleteRelations()) != 0 || len(m.ways) != 0 || len(m.wayRefs) != 0 {
		t.Error("relation state not released")
	}
}

func TestSharedMemberWay(t *testing.T) {
	m := NewManager()
	c := &collector{}
	for _, id := range []int64{1, 2} {
		m.AddRelation(&osm.Relation{
			Element: osm.Element{ID: id, Tags: osm.Tags{"type": "boundary"}},
			Members: []osm.Member{
				{ID: 10, Type: osm.WayMember},
				{ID: 10 + id, Type: osm.WayMember},
			},
		})
	}
	m.Way(square(11, nil, 100, 0, 1), c.handle)
	if len(c.areas) != 0 {
		t.Fatal(c.areas)
	}
	m.Way(square(10, nil, 1, 2, 3), c.handle)
	if len(c.areas) != 1 || c.areas[0].OrigID != 1 {
		t.Fatal(c.areas)
	}
	if _, ok := m.ways[10]; !ok {
		t.Fatal("shared way released too early")
	}
	m.Way(square(12, nil, 200, 5, 6), c.handle)
	if len(c.areas) != 2 || c.areas[1].OrigID != 2 {
		t.Fatal(c.areas)
	}
	if len(m.ways) != 0 {
		t.Error("ways not released", m.ways)
	}
}

func TestBrokenRelation(t *testing.T) {
	m := NewManager()
	c := &collector{}
	m.AddRelation(&osm.Relation{
		Element: osm.Element{ID: 8, Tags: osm.Tags{"type": "multipolygon"}},
		Members: []osm.Member{{ID: 1, Type: osm.WayMember}},
	})
	m.Way(way(1, nil, []int64{1, 2, 3}, [][2]float64{{0, 0}, {1, 0}, {1, 1}}), c.handle)
	if len(c.errors) != 1 || c.errors[0].ID != 17 {
		t.Fatal(c.errors)
	}
	if len(c.areas) != 0 {
		t.Fatal(c.areas)
	}
}
