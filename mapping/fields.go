package mapping

import (
	"sort"
	"strings"

	osm "github.com/omniscale/go-osm"
	"github.com/pkg/errors"
)

// Element is the part of an OSM object that is available to fields.
type Element struct {
	ID       int64
	OrigID   int64
	Tags     osm.Tags
	Metadata *osm.Metadata
}

// Match is the result of a layer filter.
type Match struct {
	Layer *Layer
	// Value of the filter key.
	Value string
}

type ValueFunc func(elem *Element, match Match) interface{}

var sources = map[string]ValueFunc{
	"id":           ID,
	"orig_id":      OrigID,
	"filter_value": FilterValue,
	"tags":         TagList,
	"version":      Version,
	"changeset":    Changeset,
	"timestamp":    Timestamp,
	"uid":          UID,
	"user":         User,
}

const tagPrefix = "tag:"

func valueFunc(source string) (ValueFunc, error) {
	if strings.HasPrefix(source, tagPrefix) {
		key := source[len(tagPrefix):]
		if key == "" {
			return nil, errors.New("empty tag source")
		}
		return Tag(key), nil
	}
	f, ok := sources[source]
	if !ok {
		return nil, errors.Errorf("unknown field source %q", source)
	}
	return f, nil
}

// Value returns the value of the field for elem.
func (f *Field) Value(elem *Element, match Match) interface{} {
	if f.fn == nil {
		fn, err := valueFunc(f.Source)
		if err != nil {
			return nil
		}
		f.fn = fn
	}
	return f.fn(elem, match)
}

func ID(elem *Element, match Match) interface{} {
	return elem.ID
}

func OrigID(elem *Element, match Match) interface{} {
	if elem.OrigID != 0 {
		return elem.OrigID
	}
	return elem.ID
}

func FilterValue(elem *Element, match Match) interface{} {
	return match.Value
}

func Tag(key string) ValueFunc {
	return func(elem *Element, match Match) interface{} {
		if v, ok := elem.Tags[key]; ok {
			return v
		}
		return nil
	}
}

// TagList returns all tags as k=v list, separated by comma and sorted by
// key.
func TagList(elem *Element, match Match) interface{} {
	keys := make([]string, 0, len(elem.Tags))
	for k := range elem.Tags {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	var b strings.Builder
	for i, k := range keys {
		if i > 0 {
			b.WriteByte(',')
		}
		b.WriteString(k)
		b.WriteByte('=')
		b.WriteString(elem.Tags[k])
	}
	return b.String()
}

func Version(elem *Element, match Match) interface{} {
	if elem.Metadata == nil {
		return nil
	}
	return elem.Metadata.Version
}

func Changeset(elem *Element, match Match) interface{} {
	if elem.Metadata == nil {
		return nil
	}
	return elem.Metadata.Changeset
}

func Timestamp(elem *Element, match Match) interface{} {
	if elem.Metadata == nil || elem.Metadata.Timestamp.IsZero() {
		return nil
	}
	return elem.Metadata.Timestamp
}

func UID(elem *Element, match Match) interface{} {
	if elem.Metadata == nil {
		return nil
	}
	return elem.Metadata.UserID
}

func User(elem *Element, match Match) interface{} {
	if elem.Metadata == nil {
		return nil
	}
	return elem.Metadata.UserName
}
