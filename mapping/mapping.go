package mapping

import (
	"io/ioutil"

	osm "github.com/omniscale/go-osm"
	"github.com/pkg/errors"
	"gopkg.in/yaml.v2"

	"github.com/omniscale/osm2ogr/dataset"
)

const anyValue = "__any__"

type Mapping struct {
	Layers []*Layer `yaml:"layers"`
}

func FromFile(filename string) (*Mapping, error) {
	b, err := ioutil.ReadFile(filename)
	if err != nil {
		return nil, err
	}
	m, err := New(b)
	if err != nil {
		return nil, errors.Wrapf(err, "reading mapping %s", filename)
	}
	return m, nil
}

func New(b []byte) (*Mapping, error) {
	m := Mapping{}
	if err := yaml.UnmarshalStrict(b, &m); err != nil {
		return nil, err
	}
	if err := m.prepare(); err != nil {
		return nil, err
	}
	return &m, nil
}

// prepare checks all layers and sets default field sources.
func (m *Mapping) prepare() error {
	if len(m.Layers) == 0 {
		return errors.New("mapping without layers")
	}
	names := make(map[string]bool)
	for _, l := range m.Layers {
		if l.Name == "" {
			return errors.New("layer without name")
		}
		if names[l.Name] {
			return errors.Errorf("duplicate layer %s", l.Name)
		}
		names[l.Name] = true
		if !l.Geometry.Valid() {
			return errors.Errorf("invalid geometry %q for layer %s", l.Geometry, l.Name)
		}
		if _, err := dataset.ParseOptions(l.Options); err != nil {
			return errors.Wrapf(err, "layer %s", l.Name)
		}
		for _, f := range l.Fields {
			if f.Name == "" {
				return errors.Errorf("field without name in layer %s", l.Name)
			}
			if !f.Type.Valid() {
				return errors.Errorf("invalid type %q for field %s in layer %s", f.Type, f.Name, l.Name)
			}
			if f.Source == "" {
				f.Source = f.Name
			}
			fn, err := valueFunc(f.Source)
			if err != nil {
				return errors.Wrapf(err, "field %s in layer %s", f.Name, l.Name)
			}
			f.fn = fn
		}
	}
	return nil
}

// LayersFor returns all layers of geometry type t.
func (m *Mapping) LayersFor(t dataset.GeometryType) []*Layer {
	var result []*Layer
	for _, l := range m.Layers {
		if l.Geometry == t {
			result = append(result, l)
		}
	}
	return result
}

// HasAreas returns whether a layer needs areas.
func (m *Mapping) HasAreas() bool {
	return len(m.LayersFor(dataset.MultiPolygon)) > 0
}

// Match returns the value of the filter key and whether the filter
// accepts tags. A nil filter accepts everything.
func (f *Filter) Match(tags osm.Tags) (string, bool) {
	if f == nil {
		return "", true
	}
	if f.Tagged && len(tags) == 0 {
		return "", false
	}
	for k, values := range f.Reject {
		if v, ok := tags[k]; ok && containsValue(values, v) {
			return "", false
		}
	}
	if f.Key == "" {
		return "", true
	}
	v, ok := tags[f.Key]
	if !ok {
		return "", false
	}
	if len(f.Values) > 0 && !containsValue(f.Values, v) {
		return "", false
	}
	return v, true
}

func containsValue(values []string, v string) bool {
	for _, val := range values {
		if val == v || val == anyValue {
			return true
		}
	}
	return false
}

var metadataSources = map[string]bool{
	"version":   true,
	"changeset": true,
	"timestamp": true,
	"uid":       true,
	"user":      true,
}

// NeedsMetadata returns whether a field uses OSM metadata.
func (m *Mapping) NeedsMetadata() bool {
	for _, l := range m.Layers {
		for _, f := range l.Fields {
			if metadataSources[f.Source] {
				return true
			}
		}
	}
	return false
}
