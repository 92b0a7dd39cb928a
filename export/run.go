package export

import (
	"context"
	"fmt"
	"os"
	"strings"
	"time"

	osm "github.com/omniscale/go-osm"
	"github.com/pkg/errors"

	"github.com/omniscale/osm2ogr/area"
	"github.com/omniscale/osm2ogr/cache"
	"github.com/omniscale/osm2ogr/config"
	"github.com/omniscale/osm2ogr/dataset"
	"github.com/omniscale/osm2ogr/log"
	"github.com/omniscale/osm2ogr/mapping"
	"github.com/omniscale/osm2ogr/reader"
	"github.com/omniscale/osm2ogr/stats"
)

// datasetOptions are passed to all formats, formats ignore unknown
// options.
var datasetOptions = []string{"SPATIALITE=TRUE", "INIT_WITH_EPSG=no"}

const statsInterval = time.Second

// Run converts the input of opts into a dataset with the layers of m.
func Run(ctx context.Context, opts *config.Options, m *mapping.Mapping) error {
	log.SetMinLevel(opts.LogLevel())

	src, err := reader.Open(opts.InputFile, opts.InputFormat)
	if err != nil {
		return err
	}
	defer src.Close()

	if opts.Httpprofile != "" {
		stats.StartHttpPProf(opts.Httpprofile)
	}
	if opts.MemProfile != "" {
		ctx, cancel := context.WithCancel(ctx)
		defer cancel()
		go func() {
			if err := stats.MemProfiler(ctx, opts.MemProfile, opts.MemProfileInterval); err != nil {
				log.Println("[error]", err)
			}
		}()
	}

	output := opts.OutputName()
	log.Printf("[info] Writing to '%s'", output)

	var areas *area.Manager
	if m.HasAreas() && !opts.NoAreas {
		areas = area.NewManager()
		areas.SetDebug(opts.Debug)
		if err := readRelations(ctx, src, areas); err != nil {
			return err
		}
	}

	locations, err := cache.Open(opts.LocationStore)
	if err != nil {
		return err
	}
	defer locations.Close()

	dataset.SetConfigOption("OGR_SQLITE_SYNCHRONOUS", "OFF")
	ds, err := dataset.Open(opts.Format, output, opts.Srid, datasetOptions)
	if err != nil {
		return err
	}
	if err := prepareDataset(ds, opts.FeaturesPerTransaction); err != nil {
		ds.Close()
		return err
	}

	st := stats.NewStatsReporter(statsInterval)
	defer st.Stop()

	h, err := NewHandler(ds, m, st)
	if err != nil {
		ds.Close()
		return err
	}

	step := log.Step("Pass 2")
	err = reader.Apply(ctx, src, reader.Config{
		Locations:       locations,
		Handler:         h,
		Areas:           areas,
		IncludeMetadata: m.NeedsMetadata(),
		Stats:           st,
	})
	if err != nil {
		ds.Close()
		return err
	}
	st.Message(fmt.Sprintf("Finishing %s", output))
	if err := ds.Close(); err != nil {
		return err
	}
	step()
	counts := st.Stop()

	if areas != nil {
		if ids := areas.IncompleteRelations(); len(ids) > 0 {
			log.Printf("[warn] Warning! Some member ways missing for these multipolygon relations: %s", joinIDs(ids))
		}
	}
	reportLayers(ds, counts)
	log.Printf("[info] %s", stats.MemoryReport())

	if opts.DumpLocations != "" {
		return dumpLocations(locations, opts.DumpLocations)
	}
	return nil
}

func readRelations(ctx context.Context, src *reader.Source, areas *area.Manager) error {
	defer log.Step("Pass 1")()
	n := 0
	err := reader.ReadRelations(ctx, src, func(rel *osm.Relation) error {
		if areas.AddRelation(rel) {
			n++
		}
		return nil
	})
	if err != nil {
		return err
	}
	log.Printf("[info] %d multipolygon relations", n)
	return nil
}

// prepareDataset disables the SQLite journal and enables automatic
// transactions. Formats with other SQL dialects reject the pragma, so
// failed statements are only logged.
func prepareDataset(ds *dataset.Dataset, featuresPerTransaction int) error {
	if err := ds.Exec("PRAGMA journal_mode = OFF;"); err != nil {
		log.Printf("[warn] %s", err)
	}
	if featuresPerTransaction > 0 {
		return ds.EnableAutoTransactions(featuresPerTransaction)
	}
	return nil
}

func joinIDs(ids []int64) string {
	parts := make([]string, len(ids))
	for i, id := range ids {
		parts[i] = fmt.Sprint(id)
	}
	return strings.Join(parts, " ")
}

func reportLayers(ds *dataset.Dataset, counts stats.Counts) {
	for _, l := range ds.Layers() {
		log.Printf("[info] %s: %d features", l.Name(), l.Count())
	}
	log.Printf("[info] %d nodes, %d ways, %d relations, %d areas, %d invalid geometries",
		counts.Nodes, counts.Ways, counts.Relations, counts.Areas, counts.Invalid)
}

func dumpLocations(locations cache.Locations, filename string) error {
	f, err := os.Create(filename)
	if err != nil {
		return errors.Wrap(err, "creating location dump")
	}
	n, err := cache.Dump(locations, f)
	if err != nil {
		f.Close()
		return errors.Wrap(err, "dumping locations")
	}
	log.Printf("[info] dumped %d locations to %s", n, filename)
	return f.Close()
}
