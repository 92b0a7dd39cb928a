package cache

import (
	bin "encoding/binary"
	"sort"
	"sync"

	lru "github.com/hashicorp/golang-lru/v2"
	osm "github.com/omniscale/go-osm"
	"github.com/pkg/errors"

	"github.com/omniscale/osm2ogr/cache/binary"
)

// kv is the key/value backend of a bunchStore.
type kv interface {
	// Get returns nil without error for missing keys.
	Get(key []byte) ([]byte, error)
	Put(key, value []byte) error
	Delete(key []byte) error
	// Iter calls fn for all entries in key order.
	Iter(fn func(key, value []byte) error) error
	Close() error
}

type coordsBunch struct {
	id         int64
	coords     []binary.Coord
	needsWrite bool
}

func (b *coordsBunch) get(id int64) (Location, bool) {
	idx := sort.Search(len(b.coords), func(i int) bool {
		return b.coords[i].ID >= id
	})
	if idx < len(b.coords) && b.coords[idx].ID == id {
		return Location{b.coords[idx].X, b.coords[idx].Y}, true
	}
	return InvalidLocation, false
}

// put puts a single coord into the coords bunch. This function
// does support updating nodes.
func (b *coordsBunch) put(c binary.Coord) {
	idx := sort.Search(len(b.coords), func(i int) bool {
		return b.coords[i].ID >= c.ID
	})
	if idx < len(b.coords) {
		if b.coords[idx].ID == c.ID {
			// overwrite
			b.coords[idx] = c
		} else {
			// insert
			b.coords = append(b.coords, c)
			copy(b.coords[idx+1:], b.coords[idx:])
			b.coords[idx] = c
		}
	} else {
		// append
		b.coords = append(b.coords, c)
	}
	b.needsWrite = true
}

// bunchStore stores locations in bunches of BunchSize consecutive ids.
// Each bunch is delta coded and stored under the big endian bunch id.
// Decoded bunches are kept in a write-back LRU cache.
type bunchStore struct {
	mu        sync.Mutex
	db        kv
	bunchSize int64
	bunches   *lru.Cache[int64, *coordsBunch]
	buf       []byte
	// first error of a write-back during LRU eviction
	evictErr error
	n        int
}

func openBunchStore(dir string, open func(dir string, opts *storeOptions) (kv, error)) (*bunchStore, error) {
	opts := loadStoreOptions()
	db, err := open(dir, &opts)
	if err != nil {
		return nil, err
	}
	return newBunchStore(db, int64(opts.BunchSize), opts.BunchCacheCapacity)
}

func newBunchStore(db kv, bunchSize int64, capacity int) (*bunchStore, error) {
	if bunchSize <= 0 {
		bunchSize = 64
	}
	if capacity <= 0 {
		capacity = 1024
	}
	s := &bunchStore{db: db, bunchSize: bunchSize}
	bunches, err := lru.NewWithEvict[int64, *coordsBunch](capacity, s.onEvict)
	if err != nil {
		return nil, err
	}
	s.bunches = bunches
	return s, nil
}

func (s *bunchStore) onEvict(bunchID int64, bunch *coordsBunch) {
	if !bunch.needsWrite {
		return
	}
	if err := s.putPacked(bunchID, bunch.coords); err != nil && s.evictErr == nil {
		s.evictErr = err
	}
}

func idToKeyBuf(id int64) []byte {
	b := make([]byte, 8)
	bin.BigEndian.PutUint64(b, uint64(id))
	return b[:8]
}

func idFromKeyBuf(buf []byte) int64 {
	return int64(bin.BigEndian.Uint64(buf))
}

func (s *bunchStore) bunchID(nodeID int64) int64 {
	// floor division, so that negative ids get their own bunches
	if nodeID < 0 {
		return (nodeID - s.bunchSize + 1) / s.bunchSize
	}
	return nodeID / s.bunchSize
}

func (s *bunchStore) putPacked(bunchID int64, coords []binary.Coord) error {
	key := idToKeyBuf(bunchID)
	if len(coords) == 0 {
		return s.db.Delete(key)
	}
	s.buf = binary.MarshalDeltaCoords(coords, s.buf)
	return s.db.Put(key, s.buf)
}

func (s *bunchStore) getBunch(bunchID int64) (*coordsBunch, error) {
	if bunch, ok := s.bunches.Get(bunchID); ok {
		return bunch, nil
	}
	bunch := &coordsBunch{id: bunchID}
	data, err := s.db.Get(idToKeyBuf(bunchID))
	if err != nil {
		return nil, err
	}
	if data != nil {
		bunch.coords, err = binary.UnmarshalDeltaCoords(data, make([]binary.Coord, 0, s.bunchSize))
		if err != nil {
			return nil, errors.Wrapf(err, "decoding bunch %d", bunchID)
		}
	}
	s.bunches.Add(bunchID, bunch)
	if s.evictErr != nil {
		return nil, s.evictErr
	}
	return bunch, nil
}

func (s *bunchStore) Put(nodes []osm.Node) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	var bunch *coordsBunch
	var err error
	for _, nd := range nodes {
		bunchID := s.bunchID(nd.ID)
		if bunch == nil || bunch.id != bunchID {
			bunch, err = s.getBunch(bunchID)
			if err != nil {
				return err
			}
		}
		loc := NewLocation(nd.Long, nd.Lat)
		before := len(bunch.coords)
		bunch.put(binary.Coord{ID: nd.ID, X: loc.X, Y: loc.Y})
		s.n += len(bunch.coords) - before
	}
	return nil
}

func (s *bunchStore) Get(id int64) (Location, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	bunch, err := s.getBunch(s.bunchID(id))
	if err != nil {
		return InvalidLocation, err
	}
	if loc, ok := bunch.get(id); ok {
		return loc, nil
	}
	return InvalidLocation, NotFound
}

// FillWay re-uses bunches for consecutive refs.
func (s *bunchStore) FillWay(way *osm.Way) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	way.Nodes = make([]osm.Node, len(way.Refs))

	var bunch *coordsBunch
	var err error
	missing := 0
	for i, id := range way.Refs {
		bunchID := s.bunchID(id)
		if bunch == nil || bunch.id != bunchID {
			bunch, err = s.getBunch(bunchID)
			if err != nil {
				return 0, err
			}
		}
		loc, _ := bunch.get(id)
		setNode(&way.Nodes[i], id, loc)
		if !loc.Valid() {
			missing++
		}
	}
	return missing, nil
}

func (s *bunchStore) Flush() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, bunchID := range s.bunches.Keys() {
		bunch, ok := s.bunches.Peek(bunchID)
		if !ok || !bunch.needsWrite {
			continue
		}
		if err := s.putPacked(bunchID, bunch.coords); err != nil {
			return err
		}
		bunch.needsWrite = false
	}
	return s.evictErr
}

// Iter flushes all pending bunches and iterates the backend. Ids are
// only returned in ascending order for positive ids.
func (s *bunchStore) Iter(fn func(id int64, loc Location) error) error {
	if err := s.Flush(); err != nil {
		return err
	}
	var coords []binary.Coord
	return s.db.Iter(func(key, value []byte) error {
		var err error
		coords, err = binary.UnmarshalDeltaCoords(value, coords)
		if err != nil {
			return errors.Wrapf(err, "decoding bunch %d", idFromKeyBuf(key))
		}
		for _, c := range coords {
			if err := fn(c.ID, Location{c.X, c.Y}); err != nil {
				return err
			}
		}
		return nil
	})
}

// Len returns the number of locations stored since the store was opened.
func (s *bunchStore) Len() int { return s.n }

// Used returns the estimated size of the bunch cache.
func (s *bunchStore) Used() int64 {
	return int64(s.bunches.Len()) * s.bunchSize * 16
}

func (s *bunchStore) Close() error {
	err := s.Flush()
	s.bunches.Purge()
	if cerr := s.db.Close(); err == nil {
		err = cerr
	}
	return err
}
