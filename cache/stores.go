package cache

import (
	"io/ioutil"
	"os"
	"sort"
	"strings"

	osm "github.com/omniscale/go-osm"
	"github.com/pkg/errors"
)

// DefaultStore is the location store type used when none is selected.
const DefaultStore = "flex_mem"

type storeType struct {
	description string
	open        func(dir string) (Locations, error)
	disk        bool
}

var stores = map[string]storeType{}

func register(name, description string, disk bool, open func(dir string) (Locations, error)) {
	stores[name] = storeType{description: description, open: open, disk: disk}
}

func init() {
	register("flex_mem", "sparse array, switches to a dense array for large extracts", false,
		func(string) (Locations, error) { return NewFlexMem(), nil })
	register("sparse_mem_array", "sorted array, for small extracts", false,
		func(string) (Locations, error) { return NewSparseMemArray(), nil })
	register("dense_mem_array", "array indexed by node id, for planet files", false,
		func(string) (Locations, error) { return NewDenseMemArray(), nil })
	register("sparse_mem_map", "hash map, for small and unsorted extracts", false,
		func(string) (Locations, error) { return NewSparseMemMap(), nil })
	register("leveldb", "delta coded bunches in LevelDB, use leveldb:DIR to keep the index", true,
		func(dir string) (Locations, error) { return openBunchStore(dir, openLevelDB) })
	register("badger", "delta coded bunches in Badger, use badger:DIR to keep the index", true,
		func(dir string) (Locations, error) { return openBunchStore(dir, openBadger) })
}

// Types returns the names of all location store types.
func Types() []string {
	names := make([]string, 0, len(stores))
	for name := range stores {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Description returns a one line description of the store type.
func Description(name string) string {
	return stores[name].description
}

// Valid returns whether spec names a known store type.
func Valid(spec string) bool {
	name, _ := splitSpec(spec)
	_, ok := stores[name]
	return ok
}

func splitSpec(spec string) (name, dir string) {
	parts := strings.SplitN(spec, ":", 2)
	name = parts[0]
	if len(parts) == 2 {
		dir = parts[1]
	}
	return name, dir
}

// Open creates the location store for spec. Spec is the store type
// with an optional directory for disk based stores (leveldb:/tmp/idx).
// Disk stores without a directory use a temporary directory that is
// removed on Close.
func Open(spec string) (Locations, error) {
	name, dir := splitSpec(spec)
	st, ok := stores[name]
	if !ok {
		return nil, errors.Errorf("unknown location store type '%s'", name)
	}
	if !st.disk {
		if dir != "" {
			return nil, errors.Errorf("location store type '%s' does not support a directory", name)
		}
		return st.open("")
	}

	if dir != "" {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return nil, errors.Wrapf(err, "creating location store dir %s", dir)
		}
		l, err := st.open(dir)
		return l, errors.Wrapf(err, "opening %s location store", name)
	}

	tmp, err := ioutil.TempDir("", "osm2ogr-"+name)
	if err != nil {
		return nil, errors.Wrap(err, "creating temp dir for location store")
	}
	l, err := st.open(tmp)
	if err != nil {
		os.RemoveAll(tmp)
		return nil, errors.Wrapf(err, "opening %s location store", name)
	}
	return &tempStore{Locations: l, dir: tmp}, nil
}

// tempStore removes the store directory on Close.
type tempStore struct {
	Locations
	dir string
}

func (t *tempStore) Close() error {
	err := t.Locations.Close()
	if rmErr := os.RemoveAll(t.dir); err == nil {
		err = rmErr
	}
	return err
}

func (t *tempStore) Iter(fn func(id int64, loc Location) error) error {
	it, ok := t.Locations.(Iterator)
	if !ok {
		return errors.New("location store does not support iteration")
	}
	return it.Iter(fn)
}

func (t *tempStore) FillWay(way *osm.Way) (int, error) {
	return FillWay(t.Locations, way)
}
