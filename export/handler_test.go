package export

import (
	"bytes"
	"math"
	"os"
	"strings"
	"testing"
	"time"

	osm "github.com/omniscale/go-osm"
	"github.com/paulmach/orb"
	"github.com/pkg/errors"

	"github.com/omniscale/osm2ogr/area"
	"github.com/omniscale/osm2ogr/dataset"
	"github.com/omniscale/osm2ogr/geom"
	"github.com/omniscale/osm2ogr/log"
	"github.com/omniscale/osm2ogr/mapping"
	"github.com/omniscale/osm2ogr/stats"
)

func captureLog(t *testing.T) *bytes.Buffer {
	buf := &bytes.Buffer{}
	log.SetOutput(buf)
	log.SetTimestamps(false)
	log.SetMinLevel(log.LWarn)
	t.Cleanup(func() {
		log.SetOutput(os.Stderr)
		log.SetTimestamps(true)
	})
	return buf
}

func memoryHandler(t *testing.T, m *mapping.Mapping, srid int) (*dataset.Dataset, *Handler, *stats.Statistics) {
	t.Helper()
	ds, err := dataset.Open("Memory", "test", srid, nil)
	if err != nil {
		t.Fatal(err)
	}
	st := stats.NewStatistics()
	h, err := NewHandler(ds, m, st)
	if err != nil {
		t.Fatal(err)
	}
	return ds, h, st
}

func features(t *testing.T, ds *dataset.Dataset, layer string) []dataset.MemoryFeature {
	t.Helper()
	l, ok := ds.MemoryLayer(layer)
	if !ok {
		t.Fatal("missing layer", layer)
	}
	return l.Features
}

func node(id int64, long, lat float64, tags osm.Tags) *osm.Node {
	return &osm.Node{Element: osm.Element{ID: id, Tags: tags}, Long: long, Lat: lat}
}

func way(id int64, tags osm.Tags, coords ...[2]float64) *osm.Way {
	w := &osm.Way{Element: osm.Element{ID: id, Tags: tags}}
	for i, c := range coords {
		w.Refs = append(w.Refs, int64(i+1))
		w.Nodes = append(w.Nodes, osm.Node{Element: osm.Element{ID: int64(i + 1)}, Long: c[0], Lat: c[1]})
	}
	return w
}

func square() orb.MultiPolygon {
	return orb.MultiPolygon{{{{0, 0}, {1, 0}, {1, 1}, {0, 1}, {0, 0}}}}
}

func TestOverviewHandler(t *testing.T) {
	logs := captureLog(t)
	ds, h, st := memoryHandler(t, mapping.Overview(false, true), 4326)

	n := node(1, 8, 53, osm.Tags{"amenity": "post_box", "operator": "DP"})
	n.Metadata = &osm.Metadata{Version: 3, Changeset: 10, Timestamp: time.Date(2020, 1, 2, 3, 4, 5, 0, time.UTC), UserID: 5, UserName: "foo"}
	if err := h.Node(n); err != nil {
		t.Fatal(err)
	}
	// untagged
	if err := h.Node(node(2, 8, 53, nil)); err != nil {
		t.Fatal(err)
	}

	if err := h.Way(way(10, osm.Tags{"highway": "primary"}, [2]float64{0, 0}, [2]float64{1, 1})); err != nil {
		t.Fatal(err)
	}
	// untagged ways are added
	if err := h.Way(way(11, nil, [2]float64{0, 0}, [2]float64{1, 0})); err != nil {
		t.Fatal(err)
	}
	// missing location
	if err := h.Way(way(12, nil, [2]float64{0, 0}, [2]float64{math.NaN(), math.NaN()})); err != nil {
		t.Fatal(err)
	}

	a := &area.Area{ID: 41, OrigID: 20, Tags: osm.Tags{"landuse": "grass"}, Geometry: square()}
	if err := h.Area(a, nil); err != nil {
		t.Fatal(err)
	}
	if err := h.Area(&area.Area{ID: 42, OrigID: 21, FromWay: true, Tags: osm.Tags{"building": "yes"}}, geom.ErrorNoRing); err != nil {
		t.Fatal(err)
	}
	if err := ds.Close(); err != nil {
		t.Fatal(err)
	}

	points := features(t, ds, "points")
	if len(points) != 1 {
		t.Fatal(points)
	}
	p := points[0]
	if p.Geometry != (orb.Point{8, 53}) {
		t.Error(p.Geometry)
	}
	for field, expected := range map[string]interface{}{
		"id":        float64(1),
		"tags":      "amenity=post_box,operator=DP",
		"version":   int32(3),
		"changeset": int32(10),
		"timestamp": "2020-01-02T03:04:05Z",
		"uid":       int32(5),
		"user":      "foo",
	} {
		if p.Values[field] != expected {
			t.Errorf("%s: %#v != %#v", field, p.Values[field], expected)
		}
	}

	lines := features(t, ds, "lines")
	if len(lines) != 2 || lines[0].Values["id"] != int64(10) || lines[1].Values["tags"] != "" {
		t.Error(lines)
	}
	// no metadata
	if lines[0].Values["version"] != nil {
		t.Error(lines[0].Values)
	}

	areas := features(t, ds, "areas")
	if len(areas) != 1 || areas[0].Values["id"] != int64(41) || areas[0].Values["tags"] != "landuse=grass" {
		t.Error(areas)
	}

	out := logs.String()
	if !strings.Contains(out, "[warn] Ignoring illegal geometry for way 12.") {
		t.Error(out)
	}
	if !strings.Contains(out, "[warn] Ignoring illegal geometry for area 42 created from way with id=21.") {
		t.Error(out)
	}
	c := st.Counts()
	if c.Invalid != 2 || c.Features != 4 {
		t.Errorf("unexpected counts %+v", c)
	}
}

func TestUntaggedNodes(t *testing.T) {
	ds, h, _ := memoryHandler(t, mapping.Overview(true, false), 4326)
	h.Node(node(1, 8, 53, nil))
	h.Node(node(2, 8, 53, osm.Tags{"name": "x"}))
	ds.Close()
	if points := features(t, ds, "points"); len(points) != 2 {
		t.Error(points)
	}
}

func TestPostboxesHandler(t *testing.T) {
	captureLog(t)
	ds, h, _ := memoryHandler(t, mapping.Postboxes(true), 3857)

	h.Node(node(1, 0, 0, osm.Tags{"amenity": "post_box", "operator": "DP"}))
	h.Node(node(2, 1, 0, osm.Tags{"amenity": "post_box"}))
	h.Node(node(3, 1, 0, osm.Tags{"amenity": "bench"}))
	h.Way(way(10, osm.Tags{"highway": "residential"}, [2]float64{0, 0}, [2]float64{1, 0}))
	h.Way(way(11, osm.Tags{"waterway": "river"}, [2]float64{0, 0}, [2]float64{1, 0}))
	h.Area(&area.Area{ID: 41, OrigID: 20, Tags: osm.Tags{"building": "house"}, Geometry: square()}, nil)
	h.Area(&area.Area{ID: 43, OrigID: 21, Tags: osm.Tags{"landuse": "grass"}, Geometry: square()}, nil)
	// not matching, no warning
	h.Area(&area.Area{ID: 45, OrigID: 22, Tags: osm.Tags{"landuse": "grass"}}, geom.ErrorNoRing)
	if err := ds.Close(); err != nil {
		t.Fatal(err)
	}

	postboxes := features(t, ds, "postboxes")
	if len(postboxes) != 2 {
		t.Fatal(postboxes)
	}
	if postboxes[0].Values["operator"] != "DP" || postboxes[1].Values["operator"] != nil {
		t.Error(postboxes)
	}
	if x := postboxes[1].Geometry.(orb.Point)[0]; math.Abs(x-111319.49) > 0.01 {
		t.Error("not projected", x)
	}

	roads := features(t, ds, "roads")
	if len(roads) != 1 || roads[0].Values["type"] != "residential" || roads[0].Values["id"] != float64(10) {
		t.Error(roads)
	}
	buildings := features(t, ds, "buildings")
	if len(buildings) != 1 || buildings[0].Values["type"] != "house" {
		t.Error(buildings)
	}
}

func TestHandlerErrors(t *testing.T) {
	ds, h, _ := memoryHandler(t, mapping.Overview(false, false), 4326)
	defer ds.Close()
	fail := errors.New("fail")
	if err := h.Area(&area.Area{ID: 1}, fail); err != fail {
		t.Error(err)
	}
}
