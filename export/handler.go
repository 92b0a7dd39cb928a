// Package export converts OSM files into datasets.
package export

import (
	osm "github.com/omniscale/go-osm"
	"github.com/paulmach/orb"
	"github.com/pkg/errors"

	"github.com/omniscale/osm2ogr/area"
	"github.com/omniscale/osm2ogr/dataset"
	"github.com/omniscale/osm2ogr/geom"
	"github.com/omniscale/osm2ogr/log"
	"github.com/omniscale/osm2ogr/mapping"
	"github.com/omniscale/osm2ogr/proj"
	"github.com/omniscale/osm2ogr/stats"
)

type layer struct {
	conf *mapping.Layer
	l    *dataset.Layer
}

type match struct {
	layer *layer
	value string
}

// Handler adds the nodes, ways and areas to all matching layers. It
// implements reader.Handler.
type Handler struct {
	srid   int
	points []*layer
	lines  []*layer
	areas  []*layer
	stats  *stats.Statistics
}

// NewHandler creates all layers of m in ds.
func NewHandler(ds *dataset.Dataset, m *mapping.Mapping, st *stats.Statistics) (*Handler, error) {
	if st == nil {
		st = stats.NewStatistics()
	}
	h := &Handler{srid: ds.Srid(), stats: st}
	for _, conf := range m.Layers {
		l, err := ds.CreateLayer(conf.Name, conf.Geometry, conf.Options)
		if err != nil {
			return nil, err
		}
		for _, f := range conf.Fields {
			if err := l.AddField(f.Name, f.Type, f.Width); err != nil {
				return nil, err
			}
		}
		lyr := &layer{conf: conf, l: l}
		switch conf.Geometry {
		case dataset.Point:
			h.points = append(h.points, lyr)
		case dataset.LineString:
			h.lines = append(h.lines, lyr)
		case dataset.MultiPolygon:
			h.areas = append(h.areas, lyr)
		}
	}
	return h, nil
}

func matches(layers []*layer, tags osm.Tags) []match {
	var result []match
	for _, l := range layers {
		if v, ok := l.conf.Filter.Match(tags); ok {
			result = append(result, match{layer: l, value: v})
		}
	}
	return result
}

func (h *Handler) Node(n *osm.Node) error {
	ms := matches(h.points, n.Tags)
	if len(ms) == 0 {
		return nil
	}
	p, err := geom.Point(*n)
	if err != nil {
		return h.geometryError(err, "Ignoring illegal geometry for node %d.", n.ID)
	}
	elem := &mapping.Element{ID: n.ID, OrigID: n.ID, Tags: n.Tags, Metadata: n.Metadata}
	return h.add(ms, p, elem)
}

func (h *Handler) Way(w *osm.Way) error {
	ms := matches(h.lines, w.Tags)
	if len(ms) == 0 {
		return nil
	}
	ls, err := geom.LineString(w.Nodes)
	if err != nil {
		return h.geometryError(err, "Ignoring illegal geometry for way %d.", w.ID)
	}
	elem := &mapping.Element{ID: w.ID, OrigID: w.ID, Tags: w.Tags, Metadata: w.Metadata}
	return h.add(ms, ls, elem)
}

func (h *Handler) Area(a *area.Area, err error) error {
	if err != nil && !geom.IsGeomError(err) {
		return err
	}
	ms := matches(h.areas, a.Tags)
	if len(ms) == 0 {
		return nil
	}
	if err != nil {
		from := "relation"
		if a.FromWay {
			from = "way"
		}
		return h.geometryError(err, "Ignoring illegal geometry for area %d created from %s with id=%d.", a.ID, from, a.OrigID)
	}
	elem := &mapping.Element{ID: a.ID, OrigID: a.OrigID, Tags: a.Tags, Metadata: a.Metadata}
	return h.add(ms, a.Geometry, elem)
}

// geometryError logs geometry errors and returns all other errors.
func (h *Handler) geometryError(err error, format string, args ...interface{}) error {
	if !geom.IsGeomError(err) {
		return err
	}
	h.stats.AddInvalid()
	log.Printf("[warn] "+format, args...)
	log.Printf("[debug] %s", err)
	return nil
}

// add projects g and adds it to all matching layers.
func (h *Handler) add(ms []match, g orb.Geometry, elem *mapping.Element) error {
	g, err := proj.Project(g, h.srid)
	if err != nil {
		return err
	}
	for _, m := range ms {
		f := m.layer.l.NewFeature(g)
		fm := mapping.Match{Layer: m.layer.conf, Value: m.value}
		for _, field := range m.layer.conf.Fields {
			if err := f.SetField(field.Name, field.Value(elem, fm)); err != nil {
				return errors.Wrapf(err, "layer %s, id %d", m.layer.conf.Name, elem.ID)
			}
		}
		if err := f.Add(); err != nil {
			return err
		}
		h.stats.AddFeature(m.layer.conf.Name)
	}
	return nil
}
