package mapping

import (
	"fmt"

	"gopkg.in/yaml.v2"

	"github.com/omniscale/osm2ogr/dataset"
)

type Layer struct {
	Name     string               `yaml:"name"`
	Geometry dataset.GeometryType `yaml:"geometry"`
	// Options are KEY=VALUE layer creation options.
	Options []string `yaml:"options"`
	Filter  *Filter  `yaml:"filter"`
	Fields  []*Field `yaml:"fields"`
}

type Filter struct {
	// Key is required if set. Values restricts the accepted values of
	// Key, __any__ accepts all values.
	Key    string   `yaml:"key"`
	Values []string `yaml:"values"`
	// Tagged requires at least one tag.
	Tagged bool `yaml:"tagged"`
	// Reject drops elements with one of these tag values.
	Reject KeyValues `yaml:"reject"`
}

type Field struct {
	Name   string            `yaml:"name"`
	Type   dataset.FieldType `yaml:"type"`
	Width  int               `yaml:"width"`
	Source string            `yaml:"source"`

	fn ValueFunc
}

type KeyValues map[string][]string

func (kv *KeyValues) UnmarshalYAML(unmarshal func(interface{}) error) error {
	if *kv == nil {
		*kv = make(map[string][]string)
	}
	slice := yaml.MapSlice{}
	if err := unmarshal(&slice); err != nil {
		return err
	}
	for _, item := range slice {
		k, ok := item.Key.(string)
		if !ok {
			return fmt.Errorf("mapping key '%v' not a string", item.Key)
		}
		values, ok := item.Value.([]interface{})
		if !ok {
			return fmt.Errorf("mapping values of '%s' not a list", k)
		}
		for _, v := range values {
			s, ok := v.(string)
			if !ok {
				return fmt.Errorf("mapping value '%v' not a string", v)
			}
			(*kv)[k] = append((*kv)[k], s)
		}
	}
	return nil
}
