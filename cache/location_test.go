package cache

import (
	"bytes"
	"math"
	"sort"
	"testing"

	osm "github.com/omniscale/go-osm"
)

func node(id int64, long, lat float64) osm.Node {
	return osm.Node{Element: osm.Element{ID: id}, Long: long, Lat: lat}
}

func TestLocation(t *testing.T) {
	l := NewLocation(8.1234567, 53.7654321)
	if l.X != 81234567 || l.Y != 537654321 {
		t.Fatal(l)
	}
	if math.Abs(l.Long()-8.1234567) > 1e-9 || math.Abs(l.Lat()-53.7654321) > 1e-9 {
		t.Fatal(l.Long(), l.Lat())
	}
	if !NewLocation(-180, -90).Valid() || !NewLocation(180, 90).Valid() {
		t.Error("bounds should be valid")
	}
	if NewLocation(180.1, 0).Valid() || NewLocation(math.NaN(), 0).Valid() {
		t.Error("expected invalid location")
	}
	if InvalidLocation.Valid() {
		t.Error("InvalidLocation is valid")
	}
}

// memKV is an in-memory kv backend for bunchStore tests.
type memKV struct {
	data map[string][]byte
}

func (m *memKV) Get(key []byte) ([]byte, error) { return m.data[string(key)], nil }
func (m *memKV) Put(key, value []byte) error {
	v := make([]byte, len(value))
	copy(v, value)
	m.data[string(key)] = v
	return nil
}
func (m *memKV) Delete(key []byte) error { delete(m.data, string(key)); return nil }
func (m *memKV) Iter(fn func(key, value []byte) error) error {
	keys := make([]string, 0, len(m.data))
	for k := range m.data {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		if err := fn([]byte(k), m.data[k]); err != nil {
			return err
		}
	}
	return nil
}
func (m *memKV) Close() error { return nil }

func newTestBunchStore(t *testing.T) *bunchStore {
	s, err := newBunchStore(&memKV{data: map[string][]byte{}}, 4, 2)
	if err != nil {
		t.Fatal(err)
	}
	return s
}

func testStores(t *testing.T) map[string]Locations {
	return map[string]Locations{
		"sparse_mem_array": NewSparseMemArray(),
		"dense_mem_array":  NewDenseMemArray(),
		"sparse_mem_map":   NewSparseMemMap(),
		"flex_mem":         NewFlexMem(),
		"bunch":            newTestBunchStore(t),
	}
}

func TestStoresPutGet(t *testing.T) {
	for name, s := range testStores(t) {
		t.Run(name, func(t *testing.T) {
			nodes := []osm.Node{
				node(3, 3, 3),
				node(1, 1, 1),
				node(20, 20, 20),
				node(2, 2, 2),
			}
			if err := s.Put(nodes); err != nil {
				t.Fatal(err)
			}
			// update
			if err := s.Put([]osm.Node{node(2, 2.5, 2.5)}); err != nil {
				t.Fatal(err)
			}
			for _, tc := range []struct {
				id   int64
				long float64
			}{{1, 1}, {2, 2.5}, {3, 3}, {20, 20}} {
				loc, err := s.Get(tc.id)
				if err != nil {
					t.Fatalf("%d: %v", tc.id, err)
				}
				if loc.Long() != tc.long || loc.Lat() != tc.long {
					t.Errorf("%d: unexpected location %v", tc.id, loc)
				}
			}
			for _, id := range []int64{0, 4, 19, 1000} {
				if loc, err := s.Get(id); err != NotFound || loc.Valid() {
					t.Errorf("%d: expected NotFound, got %v %v", id, loc, err)
				}
			}

			var ids []int64
			err := s.(Iterator).Iter(func(id int64, loc Location) error {
				ids = append(ids, id)
				return nil
			})
			if err != nil {
				t.Fatal(err)
			}
			if len(ids) != 4 || ids[0] != 1 || ids[1] != 2 || ids[2] != 3 || ids[3] != 20 {
				t.Errorf("unexpected iteration order %v", ids)
			}
			if err := s.Close(); err != nil {
				t.Fatal(err)
			}
		})
	}
}

func TestFillWay(t *testing.T) {
	for name, s := range testStores(t) {
		t.Run(name, func(t *testing.T) {
			s.Put([]osm.Node{node(1, 1, 1), node(2, 2, 2), node(9, 9, 9)})
			way := &osm.Way{Refs: []int64{1, 2, 5, 9}}
			missing, err := FillWay(s, way)
			if err != nil {
				t.Fatal(err)
			}
			if missing != 1 {
				t.Errorf("expected one missing location, got %d", missing)
			}
			if len(way.Nodes) != 4 {
				t.Fatal(way.Nodes)
			}
			if way.Nodes[0].Long != 1 || way.Nodes[3].Lat != 9 || way.Nodes[3].ID != 9 {
				t.Error(way.Nodes)
			}
			if !math.IsNaN(way.Nodes[2].Long) || way.Nodes[2].ID != 5 {
				t.Error("missing node should have NaN coordinates", way.Nodes[2])
			}
		})
	}
}

func TestDenseNegativeID(t *testing.T) {
	d := NewDenseMemArray()
	if err := d.Put([]osm.Node{node(-1, 1, 1)}); err == nil {
		t.Fatal("expected error for negative id")
	}
}

func TestSparseNegativeIDs(t *testing.T) {
	s := NewSparseMemArray()
	s.Put([]osm.Node{node(-5, 1, 1), node(-10, 2, 2)})
	loc, err := s.Get(-10)
	if err != nil || loc.Long() != 2 {
		t.Fatal(loc, err)
	}
}

func TestFlexMemSwitchesToDense(t *testing.T) {
	f := NewFlexMem()
	nodes := make([]osm.Node, minDenseEntries)
	for i := range nodes {
		nodes[i] = node(int64(i+1), 1, 1)
	}
	f.Put(nodes)
	if !f.Dense() {
		t.Fatal("expected dense store")
	}
	if f.Len() != minDenseEntries {
		t.Error(f.Len())
	}
	loc, err := f.Get(minDenseEntries)
	if err != nil || loc.Long() != 1 {
		t.Fatal(loc, err)
	}

	sparse := NewFlexMem()
	for i := range nodes {
		nodes[i] = node(int64(i*10+1), 1, 1)
	}
	sparse.Put(nodes)
	if sparse.Dense() {
		t.Fatal("expected sparse store for sparse ids")
	}
}

func TestBunchStoreEviction(t *testing.T) {
	s := newTestBunchStore(t)
	db := s.db.(*memKV)
	// bunch size 4, cache capacity 2
	var nodes []osm.Node
	for i := int64(0); i < 40; i++ {
		nodes = append(nodes, node(i, float64(i), 0))
	}
	if err := s.Put(nodes); err != nil {
		t.Fatal(err)
	}
	if len(db.data) < 8 {
		t.Errorf("expected evicted bunches to be written, got %d", len(db.data))
	}
	if err := s.Flush(); err != nil {
		t.Fatal(err)
	}
	if len(db.data) != 10 {
		t.Errorf("expected 10 bunches, got %d", len(db.data))
	}
	for i := int64(0); i < 40; i++ {
		loc, err := s.Get(i)
		if err != nil || loc.Long() != float64(i) {
			t.Fatal(i, loc, err)
		}
	}
	if s.bunchID(-1) != -1 || s.bunchID(-4) != -1 || s.bunchID(-5) != -2 || s.bunchID(3) != 0 {
		t.Error("unexpected bunch ids")
	}
}

func TestDump(t *testing.T) {
	s := NewSparseMemMap()
	s.Put([]osm.Node{node(7, 7, -7), node(1, 1, -1), node(3, 3, -3)})
	buf := &bytes.Buffer{}
	n, err := Dump(s, buf)
	if err != nil {
		t.Fatal(err)
	}
	if n != 3 || buf.Len() != 3*DumpEntrySize {
		t.Fatal(n, buf.Len())
	}
	var ids []int64
	err = ReadDump(buf, func(id int64, loc Location) error {
		ids = append(ids, id)
		if loc.Long() != float64(id) || loc.Lat() != -float64(id) {
			t.Errorf("%d: %v", id, loc)
		}
		return nil
	})
	if err != nil {
		t.Fatal(err)
	}
	if len(ids) != 3 || ids[0] != 1 || ids[2] != 7 {
		t.Error(ids)
	}
}

func TestOpen(t *testing.T) {
	for _, name := range Types() {
		if Description(name) == "" {
			t.Errorf("missing description for %s", name)
		}
	}
	if _, err := Open("unknown"); err == nil {
		t.Error("expected error for unknown store")
	}
	if _, err := Open("flex_mem:/tmp/foo"); err == nil {
		t.Error("expected error for memory store with dir")
	}
	l, err := Open("sparse_mem_map")
	if err != nil {
		t.Fatal(err)
	}
	l.Close()
	if !Valid("leveldb:/tmp/foo") || Valid("foo") {
		t.Error("unexpected Valid result")
	}
}

func TestBadgerStore(t *testing.T) {
	dir := t.TempDir()
	l, err := Open("badger:" + dir)
	if err != nil {
		t.Fatal(err)
	}
	l.Put([]osm.Node{node(100, 1, 2), node(5, 3, 4)})
	if err := l.Flush(); err != nil {
		t.Fatal(err)
	}
	loc, err := l.Get(100)
	if err != nil || loc.Long() != 1 || loc.Lat() != 2 {
		t.Fatal(loc, err)
	}
	buf := &bytes.Buffer{}
	if n, err := Dump(l, buf); err != nil || n != 2 {
		t.Fatal(n, err)
	}
	if err := l.Close(); err != nil {
		t.Fatal(err)
	}
}
