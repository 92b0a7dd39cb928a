package mapping

import (
	"github.com/omniscale/osm2ogr/dataset"
)

const maxLengthTags = 200

func metadataFields() []*Field {
	return []*Field{
		{Name: "version", Type: dataset.Integer, Width: 7, Source: "version"},
		{Name: "changeset", Type: dataset.Integer, Width: 7, Source: "changeset"},
		{Name: "timestamp", Type: dataset.String, Width: 20, Source: "timestamp"},
		{Name: "uid", Type: dataset.Integer, Width: 7, Source: "uid"},
		{Name: "user", Type: dataset.String, Width: 256, Source: "user"},
	}
}

// Overview returns the mapping with all nodes, ways and areas in the
// layers points, lines and areas. Untagged nodes are only added with
// addUntaggedNodes.
func Overview(addUntaggedNodes, addMetadata bool) *Mapping {
	layer := func(name string, geometry dataset.GeometryType, idType dataset.FieldType, idWidth int) *Layer {
		l := &Layer{
			Name:     name,
			Geometry: geometry,
			Options:  []string{"SPATIAL_INDEX=NO"},
			Fields: []*Field{
				{Name: "id", Type: idType, Width: idWidth, Source: "id"},
				{Name: "tags", Type: dataset.String, Width: maxLengthTags, Source: "tags"},
			},
		}
		if addMetadata {
			l.Fields = append(l.Fields, metadataFields()...)
		}
		return l
	}
	points := layer("points", dataset.Point, dataset.Real, 10)
	if !addUntaggedNodes {
		points.Filter = &Filter{Tagged: true}
	}
	m := &Mapping{Layers: []*Layer{
		points,
		layer("lines", dataset.LineString, dataset.Integer64, 0),
		layer("areas", dataset.MultiPolygon, dataset.Integer64, 0),
	}}
	m.mustPrepare()
	return m
}

// Postboxes returns the mapping with post boxes, roads and buildings.
func Postboxes(withAreas bool) *Mapping {
	layer := func(name string, geometry dataset.GeometryType, filter *Filter, field *Field) *Layer {
		return &Layer{
			Name:     name,
			Geometry: geometry,
			Filter:   filter,
			Fields: []*Field{
				{Name: "id", Type: dataset.Real, Width: 10, Source: "id"},
				field,
			},
		}
	}
	m := &Mapping{Layers: []*Layer{
		layer("postboxes", dataset.Point,
			&Filter{Key: "amenity", Values: []string{"post_box"}},
			&Field{Name: "operator", Type: dataset.String, Width: 30, Source: "tag:operator"}),
		layer("roads", dataset.LineString,
			&Filter{Key: "highway"},
			&Field{Name: "type", Type: dataset.String, Width: 30, Source: "filter_value"}),
	}}
	if withAreas {
		m.Layers = append(m.Layers, layer("buildings", dataset.MultiPolygon,
			&Filter{Key: "building"},
			&Field{Name: "type", Type: dataset.String, Width: 30, Source: "filter_value"}))
	}
	m.mustPrepare()
	return m
}

func (m *Mapping) mustPrepare() {
	if err := m.prepare(); err != nil {
		panic(err)
	}
}
