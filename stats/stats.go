// Package stats reports the progress of a conversion.
package stats

import (
	"fmt"
	"sync"
	"time"

	"github.com/omniscale/osm2ogr/log"
)

// Counts are the totals of a conversion.
type Counts struct {
	Nodes     int64
	Ways      int64
	Relations int64
	Areas     int64
	Features  int64
	Invalid   int64
}

type Statistics struct {
	nodes     *RpsCounter
	ways      *RpsCounter
	relations *RpsCounter
	areas     *RpsCounter
	features  *RpsCounter
	invalid   *RpsCounter
	messages  chan string
	done      chan struct{}
	wg        sync.WaitGroup
	stopOnce  sync.Once
}

func (s *Statistics) AddNodes(n int) {
	s.nodes.Add(n)
	ElementsTotal.WithLabelValues("node").Add(float64(n))
}

func (s *Statistics) AddWays(n int) {
	s.ways.Add(n)
	ElementsTotal.WithLabelValues("way").Add(float64(n))
}

func (s *Statistics) AddRelations(n int) {
	s.relations.Add(n)
	ElementsTotal.WithLabelValues("relation").Add(float64(n))
}

func (s *Statistics) AddAreas(n int) {
	s.areas.Add(n)
	ElementsTotal.WithLabelValues("area").Add(float64(n))
}

func (s *Statistics) AddFeature(layer string) {
	s.features.Add(1)
	FeaturesTotal.WithLabelValues(layer).Inc()
}

func (s *Statistics) AddInvalid() {
	s.invalid.Add(1)
	InvalidGeometriesTotal.Inc()
}

// Message prints the current progress followed by msg.
func (s *Statistics) Message(msg string) {
	if s.messages == nil {
		log.Printf("[info] %s", msg)
		return
	}
	s.messages <- msg
}

func newStatistics() *Statistics {
	return &Statistics{
		nodes:     NewRpsCounter(),
		ways:      NewRpsCounter(),
		relations: NewRpsCounter(),
		areas:     NewRpsCounter(),
		features:  NewRpsCounter(),
		invalid:   NewRpsCounter(),
	}
}

// NewStatistics returns counters without a progress reporter.
func NewStatistics() *Statistics {
	return newStatistics()
}

// NewStatsReporter returns counters that are logged every interval
// at progress level until Stop is called.
func NewStatsReporter(interval time.Duration) *Statistics {
	s := newStatistics()
	s.messages = make(chan string)
	s.done = make(chan struct{})

	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		tick := time.NewTicker(interval)
		defer tick.Stop()
		for {
			select {
			case msg := <-s.messages:
				s.print(time.Now())
				log.Printf("[info] %s", msg)
			case now := <-tick.C:
				s.print(now)
			case <-s.done:
				s.print(time.Now())
				return
			}
		}
	}()
	return s
}

// Stop ends the reporter and returns the totals.
func (s *Statistics) Stop() Counts {
	s.stopOnce.Do(func() {
		if s.done != nil {
			close(s.done)
			s.wg.Wait()
		}
	})
	return s.Counts()
}

func (s *Statistics) Counts() Counts {
	return Counts{
		Nodes:     s.nodes.Value(),
		Ways:      s.ways.Value(),
		Relations: s.relations.Value(),
		Areas:     s.areas.Value(),
		Features:  s.features.Value(),
		Invalid:   s.invalid.Value(),
	}
}

func (s *Statistics) print(now time.Time) {
	for _, c := range []*RpsCounter{s.nodes, s.ways, s.relations, s.areas, s.features} {
		c.Tick(now)
	}
	log.Println("[progress] " + s.progressLine())
}

func (s *Statistics) progressLine() string {
	return fmt.Sprintf("Nodes: %7d/s (%10d) Ways: %7d/s (%9d) Relations: %6d/s (%8d) Areas: %6d/s (%8d) Features: %7d/s (%10d)",
		roundRps(s.nodes.LastRps(), 1000), s.nodes.Value(),
		roundRps(s.ways.LastRps(), 100), s.ways.Value(),
		roundRps(s.relations.LastRps(), 10), s.relations.Value(),
		roundRps(s.areas.LastRps(), 10), s.areas.Value(),
		roundRps(s.features.LastRps(), 100), s.features.Value(),
	)
}

func roundRps(rps float64, step int64) int64 {
	return int64(rps) / step * step
}
