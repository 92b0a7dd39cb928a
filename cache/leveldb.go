package cache

import (
	"github.com/jmhodges/levigo"
)

type levelDB struct {
	db    *levigo.DB
	cache *levigo.Cache
	wo    *levigo.WriteOptions
	ro    *levigo.ReadOptions
}

func openLevelDB(path string, o *storeOptions) (kv, error) {
	c := &levelDB{}
	opts := levigo.NewOptions()
	defer opts.Close()
	opts.SetCreateIfMissing(true)
	if o.CacheSizeM > 0 {
		c.cache = levigo.NewLRUCache(o.CacheSizeM * 1024 * 1024)
		opts.SetCache(c.cache)
	}
	if o.MaxOpenFiles > 0 {
		opts.SetMaxOpenFiles(o.MaxOpenFiles)
	}
	if o.BlockRestartInterval > 0 {
		opts.SetBlockRestartInterval(o.BlockRestartInterval)
	}
	if o.WriteBufferSizeM > 0 {
		opts.SetWriteBufferSize(o.WriteBufferSizeM * 1024 * 1024)
	}
	if o.BlockSizeK > 0 {
		opts.SetBlockSize(o.BlockSizeK * 1024)
	}

	db, err := levigo.Open(path, opts)
	if err != nil {
		if c.cache != nil {
			c.cache.Close()
		}
		return nil, err
	}
	c.db = db
	c.wo = levigo.NewWriteOptions()
	c.ro = levigo.NewReadOptions()
	return c, nil
}

func (c *levelDB) Get(key []byte) ([]byte, error) {
	return c.db.Get(c.ro, key)
}

func (c *levelDB) Put(key, value []byte) error {
	return c.db.Put(c.wo, key, value)
}

func (c *levelDB) Delete(key []byte) error {
	return c.db.Delete(c.wo, key)
}

func (c *levelDB) Iter(fn func(key, value []byte) error) error {
	ro := levigo.NewReadOptions()
	ro.SetFillCache(false)
	defer ro.Close()
	it := c.db.NewIterator(ro)
	defer it.Close()
	for it.SeekToFirst(); it.Valid(); it.Next() {
		if err := fn(it.Key(), it.Value()); err != nil {
			return err
		}
	}
	return it.GetError()
}

func (c *levelDB) Close() error {
	if c.ro != nil {
		c.ro.Close()
		c.ro = nil
	}
	if c.wo != nil {
		c.wo.Close()
		c.wo = nil
	}
	if c.db != nil {
		c.db.Close()
		c.db = nil
	}
	if c.cache != nil {
		c.cache.Close()
		c.cache = nil
	}
	return nil
}
