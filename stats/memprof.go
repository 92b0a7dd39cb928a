package stats

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"runtime/pprof"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/pkg/errors"

	"github.com/omniscale/osm2ogr/log"
)

// MemProfiler writes a heap profile into dir every interval until ctx
// is done.
func MemProfiler(ctx context.Context, dir string, interval time.Duration) error {
	if err := os.MkdirAll(dir, 0750); err != nil {
		return errors.Wrap(err, "creating memprofile dir")
	}

	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for i := 0; ; i++ {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
		}
		filename := filepath.Join(dir, fmt.Sprintf("memprof-%03d.pprof", i))
		if err := writeHeapProfile(filename); err != nil {
			return err
		}
		log.Printf("[debug] wrote %s", filename)
	}
}

func writeHeapProfile(filename string) error {
	f, err := os.Create(filename)
	if err != nil {
		return errors.Wrap(err, "creating heap profile")
	}
	if err := pprof.WriteHeapProfile(f); err != nil {
		f.Close()
		return errors.Wrap(err, "writing heap profile")
	}
	return f.Close()
}

// MemorySys returns the memory obtained from the OS. As the Go runtime
// rarely returns memory, this is the peak memory usage of the process.
func MemorySys() uint64 {
	var m runtime.MemStats
	runtime.ReadMemStats(&m)
	MemoryUsage.Set(float64(m.Sys))
	return m.Sys
}

func MemoryReport() string {
	return fmt.Sprintf("Peak memory used: %s", humanize.IBytes(MemorySys()))
}
