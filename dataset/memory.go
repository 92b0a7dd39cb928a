package dataset

import (
	"github.com/paulmach/orb"
	"github.com/pkg/errors"
)

func init() {
	Register(Driver{
		Name: "Memory",
		New: func(Config) (Writer, error) {
			return &memoryWriter{}, nil
		},
	})
}

type MemoryFeature struct {
	Geometry orb.Geometry
	Values   map[string]interface{}
}

// MemoryLayer contains the committed features of a layer of the Memory
// format.
type MemoryLayer struct {
	Def      LayerDef
	Features []MemoryFeature
	pending  []MemoryFeature
	w        *memoryWriter
}

type memoryWriter struct {
	layers  []*MemoryLayer
	inTx    bool
	commits int
	closed  bool
}

func (m *memoryWriter) CreateLayer(def *LayerDef) (LayerWriter, error) {
	l := &MemoryLayer{Def: *def, w: m}
	m.layers = append(m.layers, l)
	return l, nil
}

func (l *MemoryLayer) Insert(g orb.Geometry, values []interface{}) error {
	if l.w.closed {
		return errors.New("memory dataset closed")
	}
	f := MemoryFeature{Geometry: g, Values: make(map[string]interface{}, len(values))}
	for i, field := range l.Def.Fields {
		f.Values[field.Name] = values[i]
	}
	if l.w.inTx {
		l.pending = append(l.pending, f)
	} else {
		l.Features = append(l.Features, f)
	}
	return nil
}

func (m *memoryWriter) Begin() error {
	if m.inTx {
		return errors.New("transaction already started")
	}
	m.inTx = true
	return nil
}

func (m *memoryWriter) Commit() error {
	if !m.inTx {
		return errors.New("no transaction")
	}
	for _, l := range m.layers {
		l.Features = append(l.Features, l.pending...)
		l.pending = nil
	}
	m.inTx = false
	m.commits++
	return nil
}

func (m *memoryWriter) Rollback() error {
	for _, l := range m.layers {
		l.pending = nil
	}
	m.inTx = false
	return nil
}

func (m *memoryWriter) Close() error {
	m.closed = true
	return nil
}

// MemoryLayer returns the layer of a dataset of the Memory format.
func (d *Dataset) MemoryLayer(name string) (*MemoryLayer, bool) {
	m, ok := d.w.(*memoryWriter)
	if !ok {
		return nil, false
	}
	for _, l := range m.layers {
		if l.Def.Name == name {
			return l, true
		}
	}
	return nil, false
}
