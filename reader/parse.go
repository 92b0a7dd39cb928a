package reader

import (
	"context"
	"os"
	"runtime"
	"strconv"

	osm "github.com/omniscale/go-osm"
	"github.com/omniscale/go-osm/parser/diff"
	"github.com/omniscale/go-osm/parser/pbf"
	posm "github.com/paulmach/osm"
	"github.com/paulmach/osm/osmxml"
	"github.com/pkg/errors"

	"github.com/omniscale/osm2ogr/log"
)

// batchSize is the number of XML elements per batch, similar to the
// number of elements in a PBF block.
const batchSize = 8000

// parserConcurrency returns the number of PBF parser goroutines.
// OSM2OGR_READ_PROCS overrides the default of NumCPU.
func parserConcurrency() int {
	n := runtime.NumCPU()
	if procs := os.Getenv("OSM2OGR_READ_PROCS"); procs != "" {
		if v, err := strconv.Atoi(procs); err == nil && v > 0 {
			n = v
		} else {
			log.Printf("[warn] ignoring invalid OSM2OGR_READ_PROCS=%q", procs)
		}
	}
	return n
}

// parseConfig defines the destinations of a parse run. Nil channels
// skip the element type. All channels are closed when parse returns.
type parseConfig struct {
	Nodes           chan []osm.Node
	Ways            chan []osm.Way
	Relations       chan []osm.Relation
	IncludeMetadata bool
	// OnFirstWay is called before the first way batch is sent and
	// blocks until all nodes are processed.
	OnFirstWay func()
}

func (c *parseConfig) close() {
	if c.Nodes != nil {
		close(c.Nodes)
	}
	if c.Ways != nil {
		close(c.Ways)
	}
	if c.Relations != nil {
		close(c.Relations)
	}
}

func (s *Source) parse(ctx context.Context, conf parseConfig) error {
	defer conf.close()

	r, err := s.open()
	if err != nil {
		return err
	}
	defer r.Close()

	switch s.Format {
	case FormatPBF:
		p := pbf.New(r, pbf.Config{
			Nodes:           conf.Nodes,
			Ways:            conf.Ways,
			Relations:       conf.Relations,
			IncludeMetadata: conf.IncludeMetadata,
			OnFirstWay:      conf.OnFirstWay,
			KeepOpen:        true,
			Concurrency:     parserConcurrency(),
		})
		header, err := p.Header()
		if err != nil {
			return errors.Wrapf(err, "reading %s", s)
		}
		if !header.Time.IsZero() && header.Time.Unix() != 0 {
			log.Printf("[info] reading %s with data till %v", s, header.Time.Local())
		}
		if err := p.Parse(ctx); err != nil {
			return errors.Wrapf(err, "parsing %s", s)
		}
		return nil
	case FormatOSC:
		b := newBatcher(ctx, &conf)
		diffs := make(chan osm.Diff, batchSize)
		p := diff.New(r, diff.Config{Diffs: diffs, IncludeMetadata: conf.IncludeMetadata})
		errc := make(chan error, 1)
		go func() {
			errc <- p.Parse(ctx)
		}()
		var berr error
		for d := range diffs {
			if berr != nil || d.Delete {
				continue
			}
			switch {
			case d.Node != nil:
				berr = b.node(*d.Node)
			case d.Way != nil:
				berr = b.way(*d.Way)
			case d.Rel != nil:
				berr = b.relation(*d.Rel)
			}
		}
		if err := <-errc; err != nil {
			return errors.Wrapf(err, "parsing %s", s)
		}
		if berr != nil {
			return berr
		}
		return b.flush()
	case FormatXML:
		b := newBatcher(ctx, &conf)
		scanner := osmxml.New(ctx, r)
		defer scanner.Close()
		for scanner.Scan() {
			var err error
			switch o := scanner.Object().(type) {
			case *posm.Node:
				if conf.Nodes != nil {
					err = b.node(convertNode(o, conf.IncludeMetadata))
				}
			case *posm.Way:
				if conf.Ways != nil {
					err = b.way(convertWay(o, conf.IncludeMetadata))
				}
			case *posm.Relation:
				if conf.Relations != nil {
					err = b.relation(convertRelation(o, conf.IncludeMetadata))
				}
			}
			if err != nil {
				return err
			}
		}
		if err := scanner.Err(); err != nil {
			return errors.Wrapf(err, "parsing %s", s)
		}
		return b.flush()
	}
	return errors.Errorf("unsupported input format %q", s.Format)
}

// batcher collects elements of sequential parsers into batches and
// keeps the nodes, ways, relations order of the PBF parser.
type batcher struct {
	ctx       context.Context
	conf      *parseConfig
	nodes     []osm.Node
	ways      []osm.Way
	relations []osm.Relation
	seenWays  bool
	seenRels  bool
	unsorted  bool
}

func newBatcher(ctx context.Context, conf *parseConfig) *batcher {
	return &batcher{ctx: ctx, conf: conf}
}

func (b *batcher) warnUnsorted() {
	if !b.unsorted {
		b.unsorted = true
		log.Println("[warn] input is not sorted by type (nodes, ways, relations)")
	}
}

func (b *batcher) node(nd osm.Node) error {
	if b.conf.Nodes == nil {
		return nil
	}
	if b.seenWays || b.seenRels {
		b.warnUnsorted()
	}
	b.nodes = append(b.nodes, nd)
	if len(b.nodes) >= batchSize {
		return b.flushNodes()
	}
	return nil
}

func (b *batcher) way(w osm.Way) error {
	if b.conf.Ways == nil {
		return nil
	}
	if !b.seenWays {
		b.seenWays = true
		if err := b.flushNodes(); err != nil {
			return err
		}
		if b.conf.OnFirstWay != nil {
			b.conf.OnFirstWay()
		}
	}
	if b.seenRels {
		b.warnUnsorted()
	}
	b.ways = append(b.ways, w)
	if len(b.ways) >= batchSize {
		return b.flushWays()
	}
	return nil
}

func (b *batcher) relation(r osm.Relation) error {
	if b.conf.Relations == nil {
		return nil
	}
	if !b.seenRels {
		b.seenRels = true
		if err := b.flushWays(); err != nil {
			return err
		}
	}
	b.relations = append(b.relations, r)
	if len(b.relations) >= batchSize {
		return b.flushRelations()
	}
	return nil
}

func (b *batcher) flushNodes() error {
	if len(b.nodes) == 0 {
		return nil
	}
	batch := b.nodes
	b.nodes = nil
	select {
	case b.conf.Nodes <- batch:
		return nil
	case <-b.ctx.Done():
		return b.ctx.Err()
	}
}

func (b *batcher) flushWays() error {
	if len(b.ways) == 0 {
		return nil
	}
	batch := b.ways
	b.ways = nil
	select {
	case b.conf.Ways <- batch:
		return nil
	case <-b.ctx.Done():
		return b.ctx.Err()
	}
}

func (b *batcher) flushRelations() error {
	if len(b.relations) == 0 {
		return nil
	}
	batch := b.relations
	b.relations = nil
	select {
	case b.conf.Relations <- batch:
		return nil
	case <-b.ctx.Done():
		return b.ctx.Err()
	}
}

func (b *batcher) flush() error {
	if err := b.flushNodes(); err != nil {
		return err
	}
	if err := b.flushWays(); err != nil {
		return err
	}
	return b.flushRelations()
}
