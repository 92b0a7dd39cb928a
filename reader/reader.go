// Package reader reads OSM files in two passes. The first pass
// collects relations, the second pass stores node locations and passes
// nodes, ways and areas to a Handler.
package reader

import (
	"context"

	osm "github.com/omniscale/go-osm"
	"github.com/pkg/errors"
	"golang.org/x/sync/errgroup"

	"github.com/omniscale/osm2ogr/area"
	"github.com/omniscale/osm2ogr/cache"
	"github.com/omniscale/osm2ogr/log"
	"github.com/omniscale/osm2ogr/stats"
)

// Handler receives the elements of the second pass. All calls are made
// from a single goroutine. Nodes are passed before ways, ways have
// their Nodes set. Err of Area is a geometry error if the area could
// not be built.
type Handler interface {
	Node(n *osm.Node) error
	Way(w *osm.Way) error
	Area(a *area.Area, err error) error
}

type Config struct {
	Locations cache.Locations
	Handler   Handler
	// Areas assembles areas from ways, nil disables areas.
	Areas           *area.Manager
	IncludeMetadata bool
	Stats           *stats.Statistics
}

// ReadRelations calls fn for each relation of src.
func ReadRelations(ctx context.Context, src *Source, fn func(rel *osm.Relation) error) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	relations := make(chan []osm.Relation, 4)
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return src.parse(gctx, parseConfig{Relations: relations})
	})
	// the parser returns context.Canceled after a failed callback, but
	// the callback error is returned
	var cerr error
	g.Go(func() error {
		for rels := range relations {
			if cerr != nil {
				continue
			}
			for i := range rels {
				if cerr = fn(&rels[i]); cerr != nil {
					cancel()
					break
				}
			}
		}
		return cerr
	})
	err := g.Wait()
	if cerr != nil {
		return cerr
	}
	return err
}

// Apply reads all nodes and ways of src. Locations of all nodes are
// stored in conf.Locations before the first way is handled. Node
// locations missing in src result in invalid way nodes.
func Apply(ctx context.Context, src *Source, conf Config) error {
	if conf.Locations == nil || conf.Handler == nil {
		return errors.New("reader needs locations and handler")
	}
	if conf.Stats == nil {
		conf.Stats = stats.NewStatistics()
	}
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	c := &consumer{
		conf:  conf,
		nodes: make(chan []osm.Node, 4),
		ways:  make(chan []osm.Way, 4),
		sync:  make(chan chan struct{}),
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return src.parse(gctx, parseConfig{
			Nodes:           c.nodes,
			Ways:            c.ways,
			IncludeMetadata: conf.IncludeMetadata,
			OnFirstWay: func() {
				done := make(chan struct{})
				select {
				case c.sync <- done:
				case <-gctx.Done():
					return
				}
				select {
				case <-done:
				case <-gctx.Done():
				}
			},
		})
	})
	var cerr error
	g.Go(func() error {
		cerr = c.run()
		if cerr != nil {
			cancel()
			c.drain()
		}
		return cerr
	})
	err := g.Wait()
	if cerr != nil {
		return cerr
	}
	if err != nil {
		return err
	}
	if c.missing > 0 {
		log.Printf("[info] %d node locations of %d ways missing", c.missing, c.waysMissing)
	}
	return nil
}

// consumer serializes all calls to the location store, the handler and
// the area manager.
type consumer struct {
	conf        Config
	nodes       chan []osm.Node
	ways        chan []osm.Way
	sync        chan chan struct{}
	missing     int
	waysMissing int
}

func (c *consumer) run() error {
	for c.nodes != nil || c.ways != nil {
		select {
		case batch, ok := <-c.nodes:
			if !ok {
				c.nodes = nil
				continue
			}
			if err := c.handleNodes(batch); err != nil {
				return err
			}
		case done := <-c.sync:
			// all node batches are sent before the first way
			if err := c.drainNodes(); err != nil {
				return err
			}
			if err := c.conf.Locations.Flush(); err != nil {
				return errors.Wrap(err, "flushing locations")
			}
			close(done)
		case batch, ok := <-c.ways:
			if !ok {
				c.ways = nil
				continue
			}
			if err := c.handleWays(batch); err != nil {
				return err
			}
		}
	}
	return errors.Wrap(c.conf.Locations.Flush(), "flushing locations")
}

func (c *consumer) drainNodes() error {
	for c.nodes != nil {
		select {
		case batch, ok := <-c.nodes:
			if !ok {
				c.nodes = nil
				return nil
			}
			if err := c.handleNodes(batch); err != nil {
				return err
			}
		default:
			return nil
		}
	}
	return nil
}

// drain discards all remaining batches so that the parser can finish.
func (c *consumer) drain() {
	for c.nodes != nil || c.ways != nil {
		select {
		case _, ok := <-c.nodes:
			if !ok {
				c.nodes = nil
			}
		case _, ok := <-c.ways:
			if !ok {
				c.ways = nil
			}
		case done := <-c.sync:
			close(done)
		}
	}
}

func (c *consumer) handleNodes(nodes []osm.Node) error {
	if err := c.conf.Locations.Put(nodes); err != nil {
		return errors.Wrap(err, "storing node locations")
	}
	for i := range nodes {
		if err := c.conf.Handler.Node(&nodes[i]); err != nil {
			return err
		}
	}
	c.conf.Stats.AddNodes(len(nodes))
	return nil
}

func (c *consumer) handleArea(a *area.Area, err error) error {
	c.conf.Stats.AddAreas(1)
	return c.conf.Handler.Area(a, err)
}

func (c *consumer) handleWays(ways []osm.Way) error {
	for i := range ways {
		w := &ways[i]
		missing, err := cache.FillWay(c.conf.Locations, w)
		if err != nil {
			return errors.Wrapf(err, "loading node locations of way %d", w.ID)
		}
		if missing > 0 {
			c.missing += missing
			c.waysMissing++
		}
		if err := c.conf.Handler.Way(w); err != nil {
			return err
		}
		if c.conf.Areas != nil {
			if err := c.conf.Areas.Way(w, c.handleArea); err != nil {
				return err
			}
		}
	}
	c.conf.Stats.AddWays(len(ways))
	return nil
}
