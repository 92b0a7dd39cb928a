package stats

import (
	"net/http"
	_ "net/http/pprof"
	"sync"

	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/omniscale/osm2ogr/log"
)

var registerMetrics sync.Once

// StartHttpPProf serves net/http/pprof and prometheus /metrics on bind.
func StartHttpPProf(bind string) {
	registerMetrics.Do(func() {
		http.Handle("/metrics", promhttp.Handler())
	})
	go func() {
		log.Printf("[error] http profile server: %s", http.ListenAndServe(bind, nil))
	}()
}
