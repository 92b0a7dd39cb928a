package cache

import (
	"sort"

	osm "github.com/omniscale/go-osm"
	"github.com/pkg/errors"
)

type idLocation struct {
	id  int64
	loc Location
}

// SparseMemArray keeps locations in an array sorted by id. Put appends
// and the array is sorted on the first lookup after an unsorted Put.
type SparseMemArray struct {
	entries  []idLocation
	sorted   bool
	min, max int64
}

func NewSparseMemArray() *SparseMemArray {
	return &SparseMemArray{sorted: true}
}

func (s *SparseMemArray) Put(nodes []osm.Node) error {
	for _, nd := range nodes {
		if n := len(s.entries); n > 0 && s.entries[n-1].id >= nd.ID {
			s.sorted = false
		}
		if len(s.entries) == 0 || nd.ID < s.min {
			s.min = nd.ID
		}
		if len(s.entries) == 0 || nd.ID > s.max {
			s.max = nd.ID
		}
		s.entries = append(s.entries, idLocation{nd.ID, NewLocation(nd.Long, nd.Lat)})
	}
	return nil
}

func (s *SparseMemArray) sort() {
	if s.sorted {
		return
	}
	// stable, so that the last Put of duplicate ids wins
	sort.SliceStable(s.entries, func(i, j int) bool { return s.entries[i].id < s.entries[j].id })
	uniq := s.entries[:0]
	for i, e := range s.entries {
		if i+1 < len(s.entries) && s.entries[i+1].id == e.id {
			continue
		}
		uniq = append(uniq, e)
	}
	s.entries = uniq
	s.sorted = true
}

func (s *SparseMemArray) Get(id int64) (Location, error) {
	s.sort()
	idx := sort.Search(len(s.entries), func(i int) bool {
		return s.entries[i].id >= id
	})
	if idx < len(s.entries) && s.entries[idx].id == id {
		return s.entries[idx].loc, nil
	}
	return InvalidLocation, NotFound
}

func (s *SparseMemArray) Iter(fn func(id int64, loc Location) error) error {
	s.sort()
	for _, e := range s.entries {
		if err := fn(e.id, e.loc); err != nil {
			return err
		}
	}
	return nil
}

func (s *SparseMemArray) Len() int     { s.sort(); return len(s.entries) }
func (s *SparseMemArray) Used() int64  { return int64(cap(s.entries)) * 16 }
func (s *SparseMemArray) Flush() error { return nil }
func (s *SparseMemArray) Close() error {
	s.entries = nil
	return nil
}

// DenseMemArray keeps locations in an array indexed by node id.
// Negative ids are not supported.
type DenseMemArray struct {
	locs []Location
	n    int
}

func NewDenseMemArray() *DenseMemArray {
	return &DenseMemArray{}
}

func (d *DenseMemArray) grow(id int64) {
	if id < int64(len(d.locs)) {
		return
	}
	size := int64(len(d.locs)) * 3 / 2
	if size <= id {
		size = id + 1024
	}
	locs := make([]Location, size)
	copy(locs, d.locs)
	for i := len(d.locs); i < len(locs); i++ {
		locs[i] = InvalidLocation
	}
	d.locs = locs
}

func (d *DenseMemArray) put(id int64, loc Location) error {
	if id < 0 {
		return errors.Errorf("negative node id %d not supported by dense location store", id)
	}
	d.grow(id)
	if was, is := d.locs[id].Valid(), loc.Valid(); !was && is {
		d.n++
	} else if was && !is {
		d.n--
	}
	d.locs[id] = loc
	return nil
}

func (d *DenseMemArray) Put(nodes []osm.Node) error {
	for _, nd := range nodes {
		if err := d.put(nd.ID, NewLocation(nd.Long, nd.Lat)); err != nil {
			return err
		}
	}
	return nil
}

func (d *DenseMemArray) Get(id int64) (Location, error) {
	if id < 0 || id >= int64(len(d.locs)) || !d.locs[id].Valid() {
		return InvalidLocation, NotFound
	}
	return d.locs[id], nil
}

func (d *DenseMemArray) Iter(fn func(id int64, loc Location) error) error {
	for id, loc := range d.locs {
		if !loc.Valid() {
			continue
		}
		if err := fn(int64(id), loc); err != nil {
			return err
		}
	}
	return nil
}

func (d *DenseMemArray) Len() int     { return d.n }
func (d *DenseMemArray) Used() int64  { return int64(cap(d.locs)) * 8 }
func (d *DenseMemArray) Flush() error { return nil }
func (d *DenseMemArray) Close() error {
	d.locs = nil
	return nil
}

// SparseMemMap keeps locations in a map.
type SparseMemMap struct {
	locs map[int64]Location
}

func NewSparseMemMap() *SparseMemMap {
	return &SparseMemMap{locs: make(map[int64]Location)}
}

func (m *SparseMemMap) Put(nodes []osm.Node) error {
	for _, nd := range nodes {
		m.locs[nd.ID] = NewLocation(nd.Long, nd.Lat)
	}
	return nil
}

func (m *SparseMemMap) Get(id int64) (Location, error) {
	loc, ok := m.locs[id]
	if !ok {
		return InvalidLocation, NotFound
	}
	return loc, nil
}

func (m *SparseMemMap) Iter(fn func(id int64, loc Location) error) error {
	ids := make([]int64, 0, len(m.locs))
	for id := range m.locs {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	for _, id := range ids {
		if err := fn(id, m.locs[id]); err != nil {
			return err
		}
	}
	return nil
}

func (m *SparseMemMap) Len() int     { return len(m.locs) }
func (m *SparseMemMap) Used() int64  { return int64(len(m.locs)) * 40 }
func (m *SparseMemMap) Flush() error { return nil }
func (m *SparseMemMap) Close() error {
	m.locs = nil
	return nil
}

// minDenseEntries is the number of entries before FlexMem considers
// to switch to a dense array.
const minDenseEntries = 1 << 16

// FlexMem starts with a SparseMemArray and switches to a DenseMemArray
// as soon as the dense array needs less memory.
type FlexMem struct {
	sparse *SparseMemArray
	dense  *DenseMemArray
}

func NewFlexMem() *FlexMem {
	return &FlexMem{sparse: NewSparseMemArray()}
}

func (f *FlexMem) Dense() bool { return f.dense != nil }

func (f *FlexMem) Put(nodes []osm.Node) error {
	if f.dense != nil {
		return f.dense.Put(nodes)
	}
	if err := f.sparse.Put(nodes); err != nil {
		return err
	}
	if len(f.sparse.entries) >= minDenseEntries {
		f.maybeSwitch()
	}
	return nil
}

func (f *FlexMem) maybeSwitch() {
	// sparse entries need 16 bytes, dense slots 8
	if f.sparse.min < 0 || f.sparse.max >= int64(len(f.sparse.entries))*2 {
		return
	}
	f.sparse.sort()
	dense := NewDenseMemArray()
	dense.grow(f.sparse.max)
	for _, e := range f.sparse.entries {
		dense.put(e.id, e.loc)
	}
	f.dense = dense
	f.sparse = nil
}

func (f *FlexMem) Get(id int64) (Location, error) {
	if f.dense != nil {
		return f.dense.Get(id)
	}
	return f.sparse.Get(id)
}

func (f *FlexMem) Iter(fn func(id int64, loc Location) error) error {
	if f.dense != nil {
		return f.dense.Iter(fn)
	}
	return f.sparse.Iter(fn)
}

func (f *FlexMem) Len() int {
	if f.dense != nil {
		return f.dense.Len()
	}
	return f.sparse.Len()
}

func (f *FlexMem) Used() int64 {
	if f.dense != nil {
		return f.dense.Used()
	}
	return f.sparse.Used()
}

func (f *FlexMem) Flush() error { return nil }

func (f *FlexMem) Close() error {
	f.sparse = nil
	f.dense = nil
	return nil
}
