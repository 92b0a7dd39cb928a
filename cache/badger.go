package cache

import (
	"github.com/dgraph-io/badger"

	"github.com/omniscale/osm2ogr/log"
)

type badgerDB struct {
	db *badger.DB
}

type badgerLogger struct{}

func (badgerLogger) Errorf(f string, v ...interface{})   { log.Printf("[error] badger: "+f, v...) }
func (badgerLogger) Warningf(f string, v ...interface{}) { log.Printf("[warn] badger: "+f, v...) }
func (badgerLogger) Infof(f string, v ...interface{})    { log.Printf("[debug] badger: "+f, v...) }
func (badgerLogger) Debugf(f string, v ...interface{})   { log.Printf("[debug] badger: "+f, v...) }

func openBadger(path string, o *storeOptions) (kv, error) {
	opts := badger.DefaultOptions(path)
	opts.Logger = badgerLogger{}
	opts.SyncWrites = false
	db, err := badger.Open(opts)
	if err != nil {
		return nil, err
	}
	return &badgerDB{db: db}, nil
}

func (b *badgerDB) Get(key []byte) ([]byte, error) {
	var data []byte
	err := b.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get(key)
		if err == badger.ErrKeyNotFound {
			return nil
		}
		if err != nil {
			return err
		}
		data, err = item.ValueCopy(nil)
		return err
	})
	return data, err
}

func (b *badgerDB) Put(key, value []byte) error {
	// value buffer is re-used by the caller
	v := make([]byte, len(value))
	copy(v, value)
	return b.db.Update(func(txn *badger.Txn) error {
		return txn.Set(key, v)
	})
}

func (b *badgerDB) Delete(key []byte) error {
	return b.db.Update(func(txn *badger.Txn) error {
		return txn.Delete(key)
	})
}

func (b *badgerDB) Iter(fn func(key, value []byte) error) error {
	return b.db.View(func(txn *badger.Txn) error {
		it := txn.NewIterator(badger.DefaultIteratorOptions)
		defer it.Close()
		for it.Rewind(); it.Valid(); it.Next() {
			item := it.Item()
			value, err := item.ValueCopy(nil)
			if err != nil {
				return err
			}
			if err := fn(item.Key(), value); err != nil {
				return err
			}
		}
		return nil
	})
}

func (b *badgerDB) Close() error {
	return b.db.Close()
}
