// Package geojson implements the GeoJSON and GeoJSONSeq formats. The
// dataset name is a directory with one file per layer.
package geojson

import (
	"bufio"
	"encoding/json"
	"os"
	"path/filepath"

	"github.com/paulmach/orb"
	"github.com/paulmach/orb/geojson"
	"github.com/pkg/errors"

	"github.com/omniscale/osm2ogr/dataset"
)

func init() {
	dataset.Register(dataset.Driver{
		Name: "GeoJSON",
		New: func(conf dataset.Config) (dataset.Writer, error) {
			return newWriter(conf, false)
		},
	})
	dataset.Register(dataset.Driver{
		Name: "GeoJSONSeq",
		New: func(conf dataset.Config) (dataset.Writer, error) {
			return newWriter(conf, true)
		},
	})
}

type writer struct {
	dir    string
	seq    bool
	rs     bool
	layers []*layer
}

type layer struct {
	def   dataset.LayerDef
	f     *os.File
	buf   *bufio.Writer
	seq   bool
	rs    bool
	count int
}

func newWriter(conf dataset.Config, seq bool) (*writer, error) {
	if err := os.MkdirAll(conf.Name, 0755); err != nil {
		return nil, err
	}
	return &writer{
		dir: conf.Name,
		seq: seq,
		// RFC 8142 record separators
		rs: conf.Options.Bool("RS", false),
	}, nil
}

func (w *writer) CreateLayer(def *dataset.LayerDef) (dataset.LayerWriter, error) {
	ext := ".geojson"
	if w.seq {
		ext = ".geojsonl"
		if w.rs {
			ext = ".geojsons"
		}
	}
	f, err := os.Create(filepath.Join(w.dir, def.Name+ext))
	if err != nil {
		return nil, err
	}
	l := &layer{
		def: *def,
		f:   f,
		buf: bufio.NewWriterSize(f, 64*1024),
		seq: w.seq,
		rs:  w.rs,
	}
	if !w.seq {
		name, _ := json.Marshal(def.Name)
		l.buf.WriteString(`{"type":"FeatureCollection","name":`)
		l.buf.Write(name)
		l.buf.WriteString(",\"features\":[\n")
	}
	w.layers = append(w.layers, l)
	return l, nil
}

func (l *layer) Insert(g orb.Geometry, values []interface{}) error {
	f := geojson.NewFeature(g)
	for i, fd := range l.def.Fields {
		if i < len(values) {
			f.Properties[fd.Name] = values[i]
		} else {
			f.Properties[fd.Name] = nil
		}
	}
	data, err := json.Marshal(f)
	if err != nil {
		return errors.Wrap(err, "encoding feature")
	}
	switch {
	case l.rs:
		l.buf.WriteByte(0x1e)
	case !l.seq && l.count > 0:
		l.buf.WriteString(",\n")
	}
	l.count++
	l.buf.Write(data)
	if l.seq {
		_, err = l.buf.WriteString("\n")
	}
	return err
}

func (l *layer) close() error {
	if !l.seq {
		if l.count > 0 {
			l.buf.WriteString("\n")
		}
		l.buf.WriteString("]}\n")
	}
	if err := l.buf.Flush(); err != nil {
		l.f.Close()
		return err
	}
	return l.f.Close()
}

func (w *writer) Close() error {
	var err error
	for _, l := range w.layers {
		if cerr := l.close(); cerr != nil && err == nil {
			err = cerr
		}
	}
	return err
}
