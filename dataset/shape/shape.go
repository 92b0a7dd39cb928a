// Package shape implements the ESRI Shapefile format. The dataset name
// is a directory with one shapefile per layer.
package shape

import (
	"fmt"
	"io/ioutil"
	"os"
	"path/filepath"
	"strings"

	shp "github.com/jonas-p/go-shp"
	"github.com/paulmach/orb"
	"github.com/pkg/errors"

	"github.com/omniscale/osm2ogr/dataset"
	"github.com/omniscale/osm2ogr/proj"
)

const (
	maxFieldName   = 10
	maxStringWidth = 254
	defaultWidth   = 80
)

func init() {
	dataset.Register(dataset.Driver{
		Name: "ESRI Shapefile",
		New:  newWriter,
	})
}

type writer struct {
	dir    string
	srid   int
	layers []*layer
}

type layer struct {
	def    dataset.LayerDef
	base   string
	w      *shp.Writer
	fields []shp.Field
}

func newWriter(conf dataset.Config) (dataset.Writer, error) {
	if err := os.MkdirAll(conf.Name, 0755); err != nil {
		return nil, err
	}
	return &writer{dir: conf.Name, srid: conf.Srid}, nil
}

func shapeType(t dataset.GeometryType) (shp.ShapeType, error) {
	switch t {
	case dataset.Point:
		return shp.POINT, nil
	case dataset.LineString:
		return shp.POLYLINE, nil
	case dataset.MultiPolygon:
		return shp.POLYGON, nil
	}
	return 0, errors.Errorf("unsupported geometry type %s", t)
}

// dbfFields returns the DBF fields for defs. Names are truncated to ten
// characters and made unique.
func dbfFields(defs []dataset.FieldDef) []shp.Field {
	fields := make([]shp.Field, len(defs))
	seen := make(map[string]bool)
	for i, def := range defs {
		name := def.Name
		if len(name) > maxFieldName {
			name = name[:maxFieldName]
		}
		for n := 1; seen[strings.ToLower(name)]; n++ {
			suffix := fmt.Sprintf("_%d", n)
			name = def.Name
			if len(name) > maxFieldName-len(suffix) {
				name = name[:maxFieldName-len(suffix)]
			}
			name += suffix
		}
		seen[strings.ToLower(name)] = true

		switch def.Type {
		case dataset.Integer:
			fields[i] = shp.NumberField(name, 10)
		case dataset.Integer64:
			fields[i] = shp.NumberField(name, 18)
		case dataset.Real:
			// 24 characters leave room for 17 digit ids
			fields[i] = shp.FloatField(name, 24, 6)
		default:
			width := def.Width
			if width <= 0 {
				width = defaultWidth
			}
			if width > maxStringWidth {
				width = maxStringWidth
			}
			fields[i] = shp.StringField(name, uint8(width))
		}
	}
	return fields
}

func (w *writer) CreateLayer(def *dataset.LayerDef) (dataset.LayerWriter, error) {
	typ, err := shapeType(def.GeometryType)
	if err != nil {
		return nil, err
	}
	base := filepath.Join(w.dir, def.Name)
	sw, err := shp.Create(base+".shp", typ)
	if err != nil {
		return nil, err
	}
	fields := dbfFields(def.Fields)
	if err := sw.SetFields(fields); err != nil {
		sw.Close()
		return nil, err
	}
	if wkt, err := proj.WKT(w.srid); err == nil {
		if err := ioutil.WriteFile(base+".prj", []byte(wkt), 0644); err != nil {
			sw.Close()
			return nil, err
		}
	}
	if err := ioutil.WriteFile(base+".cpg", []byte("UTF-8"), 0644); err != nil {
		sw.Close()
		return nil, err
	}
	l := &layer{def: *def, base: base, w: sw, fields: fields}
	w.layers = append(w.layers, l)
	return l, nil
}

func (l *layer) Insert(g orb.Geometry, values []interface{}) error {
	s, err := toShape(g)
	if err != nil {
		return err
	}
	row := int(l.w.Write(s))
	for i, v := range values {
		if v == nil {
			continue
		}
		switch v := v.(type) {
		case int32:
			err = l.w.WriteAttribute(row, i, int(v))
		case int64:
			err = l.w.WriteAttribute(row, i, int(v))
		case string:
			if len(v) > int(l.fields[i].Size) {
				v = v[:l.fields[i].Size]
			}
			err = l.w.WriteAttribute(row, i, v)
		default:
			err = l.w.WriteAttribute(row, i, v)
		}
		if err != nil {
			return errors.Wrapf(err, "writing field %s", l.def.Fields[i].Name)
		}
	}
	return nil
}

func points(ls []orb.Point) []shp.Point {
	pts := make([]shp.Point, len(ls))
	for i, p := range ls {
		pts[i] = shp.Point{X: p[0], Y: p[1]}
	}
	return pts
}

// toShape converts g. Shapefile polygons have clockwise outer rings and
// counter-clockwise holes.
func toShape(g orb.Geometry) (shp.Shape, error) {
	switch g := g.(type) {
	case orb.Point:
		return &shp.Point{X: g[0], Y: g[1]}, nil
	case orb.LineString:
		return shp.NewPolyLine([][]shp.Point{points(g)}), nil
	case orb.MultiPolygon:
		var parts [][]shp.Point
		for _, poly := range g {
			for i, r := range poly {
				r = r.Clone()
				if i == 0 {
					r = orient(r, orb.CW)
				} else {
					r = orient(r, orb.CCW)
				}
				parts = append(parts, points(r))
			}
		}
		p := shp.Polygon(*shp.NewPolyLine(parts))
		return &p, nil
	}
	return nil, errors.Errorf("unsupported geometry %T", g)
}

func orient(r orb.Ring, o orb.Orientation) orb.Ring {
	if r.Orientation() != o {
		r.Reverse()
	}
	return r
}

func (w *writer) Close() error {
	var firstErr error
	for _, l := range w.layers {
		if err := l.close(); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}

// close writes the headers and moves the DBF to <base>.dbf. go-shp
// creates the DBF of foo.shp as foodbf.
func (l *layer) close() error {
	l.w.Close()
	err := os.Rename(l.base+"dbf", l.base+".dbf")
	if err != nil && !os.IsNotExist(err) {
		return errors.Wrapf(err, "writing %s.dbf", l.base)
	}
	return nil
}
