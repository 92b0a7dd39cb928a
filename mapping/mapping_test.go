package mapping

import (
	"io/ioutil"
	"path/filepath"
	"strings"
	"testing"
	"time"

	osm "github.com/omniscale/go-osm"

	"github.com/omniscale/osm2ogr/dataset"
)

const testMapping = `
layers:
  - name: roads
    geometry: linestring
    options: [SPATIAL_INDEX=NO]
    filter:
      key: highway
      reject:
        highway: [proposed, construction]
    fields:
      - {name: id, type: integer64, source: id}
      - {name: type, type: string, width: 30, source: filter_value}
      - {name: name, type: string, width: 100, source: "tag:name"}
  - name: shops
    geometry: point
    filter:
      key: shop
      values: [bakery, butcher]
    fields:
      - {name: id, type: real, width: 10}
      - {name: tags, type: string}
`

func TestNew(t *testing.T) {
	m, err := New([]byte(testMapping))
	if err != nil {
		t.Fatal(err)
	}
	if len(m.Layers) != 2 {
		t.Fatal(m.Layers)
	}
	roads := m.Layers[0]
	if roads.Geometry != dataset.LineString || len(roads.Fields) != 3 || roads.Options[0] != "SPATIAL_INDEX=NO" {
		t.Errorf("unexpected layer %+v", roads)
	}
	if m.Layers[1].Fields[1].Source != "tags" {
		t.Error("default source not set", m.Layers[1].Fields[1])
	}
	if ls := m.LayersFor(dataset.Point); len(ls) != 1 || ls[0].Name != "shops" {
		t.Error(ls)
	}
	if m.HasAreas() {
		t.Error("mapping has no areas")
	}
}

func TestFromFile(t *testing.T) {
	filename := filepath.Join(t.TempDir(), "mapping.yml")
	if err := ioutil.WriteFile(filename, []byte(testMapping), 0644); err != nil {
		t.Fatal(err)
	}
	if _, err := FromFile(filename); err != nil {
		t.Fatal(err)
	}
	if _, err := FromFile(filename + ".missing"); err == nil {
		t.Fatal("missing error")
	}
}

func TestNewErrors(t *testing.T) {
	for _, tc := range []struct {
		mapping string
		err     string
	}{
		{`layers: []`, "without layers"},
		{`layers: [{name: a, geometry: polygon}]`, "invalid geometry"},
		{`layers: [{name: a, geometry: point}, {name: a, geometry: point}]`, "duplicate layer"},
		{`layers: [{name: a, geometry: point, fields: [{name: b, type: bool}]}]`, "invalid type"},
		{`layers: [{name: a, geometry: point, fields: [{name: b, type: string, source: foo}]}]`, "unknown field source"},
		{`layers: [{name: a, geometry: point, fields: [{name: b, type: string, source: "tag:"}]}]`, "empty tag"},
		{`layers: [{name: a, geometry: point, options: [NOVALUE]}]`, "layer a"},
		{`layers: [{name: a, geometry: point, unknown: 1}]`, "unknown"},
		{`layers: [{name: a, geometry: point, filter: {reject: {highway: foo}}}]`, "not a list"},
	} {
		_, err := New([]byte(tc.mapping))
		if err == nil {
			t.Errorf("expected error for %s", tc.mapping)
			continue
		}
		if !strings.Contains(err.Error(), tc.err) {
			t.Errorf("unexpected error for %s: %s", tc.mapping, err)
		}
	}
}

func TestFilterMatch(t *testing.T) {
	m, err := New([]byte(testMapping))
	if err != nil {
		t.Fatal(err)
	}
	roads := m.Layers[0].Filter
	shops := m.Layers[1].Filter
	tagged := &Filter{Tagged: true}
	anyFilter := &Filter{Key: "amenity", Values: []string{anyValue}}

	for _, tc := range []struct {
		filter *Filter
		tags   osm.Tags
		match  bool
		value  string
	}{
		{roads, osm.Tags{"highway": "primary"}, true, "primary"},
		{roads, osm.Tags{"highway": "construction"}, false, ""},
		{roads, osm.Tags{"building": "yes"}, false, ""},
		{roads, nil, false, ""},
		{shops, osm.Tags{"shop": "bakery"}, true, "bakery"},
		{shops, osm.Tags{"shop": "florist"}, false, ""},
		{tagged, osm.Tags{"name": "foo"}, true, ""},
		{tagged, osm.Tags{}, false, ""},
		{anyFilter, osm.Tags{"amenity": "bench"}, true, "bench"},
		{nil, nil, true, ""},
	} {
		v, ok := tc.filter.Match(tc.tags)
		if ok != tc.match || v != tc.value {
			t.Errorf("%+v %v: got %v %q", tc.filter, tc.tags, ok, v)
		}
	}
}

func TestFieldValues(t *testing.T) {
	ts := time.Date(2020, 3, 4, 5, 6, 7, 0, time.UTC)
	elem := &Element{
		ID:     41,
		OrigID: 20,
		Tags:   osm.Tags{"name": "Main St", "highway": "residential", "oneway": "yes"},
		Metadata: &osm.Metadata{
			UserID:    12,
			UserName:  "mapper",
			Version:   3,
			Timestamp: ts,
			Changeset: 1234,
		},
	}
	match := Match{Value: "residential"}
	for _, tc := range []struct {
		source   string
		expected interface{}
	}{
		{"id", int64(41)},
		{"orig_id", int64(20)},
		{"filter_value", "residential"},
		{"tag:name", "Main St"},
		{"tag:ref", nil},
		{"tags", "highway=residential,name=Main St,oneway=yes"},
		{"version", int32(3)},
		{"changeset", int64(1234)},
		{"timestamp", ts},
		{"uid", int32(12)},
		{"user", "mapper"},
	} {
		f := &Field{Name: "f", Type: dataset.String, Source: tc.source}
		if v := f.Value(elem, match); v != tc.expected {
			t.Errorf("%s: %#v != %#v", tc.source, v, tc.expected)
		}
	}

	// without metadata
	elem.Metadata = nil
	for _, source := range []string{"version", "changeset", "timestamp", "uid", "user"} {
		f := &Field{Name: "f", Type: dataset.String, Source: source}
		if v := f.Value(elem, match); v != nil {
			t.Errorf("%s: %#v", source, v)
		}
	}
	if v := TagList(&Element{}, match); v != "" {
		t.Error(v)
	}
}

func TestOverview(t *testing.T) {
	m := Overview(false, true)
	if len(m.Layers) != 3 {
		t.Fatal(m.Layers)
	}
	points := m.Layers[0]
	if points.Name != "points" || points.Filter == nil || !points.Filter.Tagged {
		t.Errorf("unexpected points layer %+v", points)
	}
	if len(points.Fields) != 7 || points.Fields[0].Type != dataset.Real || points.Fields[6].Name != "user" {
		t.Error(points.Fields)
	}
	if !m.HasAreas() {
		t.Error("no areas")
	}
	if !m.NeedsMetadata() {
		t.Error("metadata not needed")
	}

	m = Overview(true, false)
	if m.Layers[0].Filter != nil {
		t.Error("untagged nodes are filtered")
	}
	if len(m.Layers[1].Fields) != 2 {
		t.Error(m.Layers[1].Fields)
	}
	if m.NeedsMetadata() {
		t.Error("metadata needed")
	}
}

func TestPostboxes(t *testing.T) {
	m := Postboxes(true)
	var names []string
	for _, l := range m.Layers {
		names = append(names, l.Name)
	}
	if strings.Join(names, ",") != "postboxes,roads,buildings" {
		t.Error(names)
	}
	if _, ok := m.Layers[0].Filter.Match(osm.Tags{"amenity": "post_box"}); !ok {
		t.Error("post box not matched")
	}
	if m := Postboxes(false); m.HasAreas() {
		t.Error("unexpected areas")
	}
}
