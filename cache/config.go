package cache

import (
	"encoding/json"
	"os"

	"github.com/pkg/errors"

	"github.com/omniscale/osm2ogr/log"
)

// storeOptions tune the LevelDB and Badger location stores.
type storeOptions struct {
	CacheSizeM           int `json:"cache_size_m"`
	MaxOpenFiles         int `json:"max_open_files"`
	BlockRestartInterval int `json:"block_restart_interval"`
	WriteBufferSizeM     int `json:"write_buffer_size_m"`
	BlockSizeK           int `json:"block_size_k"`
	// BunchSize is the number of consecutive node ids stored in one
	// key. Must not change for an existing store directory.
	BunchSize int `json:"bunch_size"`
	// BunchCacheCapacity is the number of decoded bunches kept in memory.
	BunchCacheCapacity int `json:"bunch_cache_capacity"`
}

var defaultStoreOptions = storeOptions{
	CacheSizeM:           16,
	MaxOpenFiles:         64,
	BlockRestartInterval: 256,
	WriteBufferSizeM:     64,
	BunchSize:            32,
	BunchCacheCapacity:   8096,
}

// ConfigEnv names the environment variable with the path to a JSON file
// that overrides the location store options.
const ConfigEnv = "OSM2OGR_CACHE_CONFIG"

// loadStoreOptions returns the default options, updated with the file
// from ConfigEnv. Invalid files are ignored with a warning.
func loadStoreOptions() storeOptions {
	opts := defaultStoreOptions
	filename := os.Getenv(ConfigEnv)
	if filename == "" {
		return opts
	}
	if err := readStoreOptions(filename, &opts); err != nil {
		log.Println("[warn] Ignoring location store config:", err)
		return defaultStoreOptions
	}
	return opts
}

func readStoreOptions(filename string, opts *storeOptions) error {
	data, err := os.ReadFile(filename)
	if err != nil {
		return err
	}
	if err := json.Unmarshal(data, opts); err != nil {
		return errors.Wrapf(err, "parsing %s", filename)
	}
	if opts.BunchSize <= 0 || opts.BunchCacheCapacity <= 0 {
		return errors.Errorf("%s: bunch_size and bunch_cache_capacity must be positive", filename)
	}
	return nil
}
