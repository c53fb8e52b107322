package stats

import (
	"encoding/json"
	"expvar"
	"net/http"
	"time"
)

type StatsProvider interface {
	Incr(name string)
	Decr(name string)
	RegisterMetric(name string)
	Run()
}

// StatsUpdater exposes process counters over expvar. Counter updates are
// funneled through a channel and applied by a single goroutine, so callers
// on hot paths never contend on the map.
type StatsUpdater struct {
	vars       *expvar.Map
	updateChan chan metricDelta
	stopChan   chan struct{}
}

type metricDelta struct {
	name  string
	delta int64
}

func NewStatsUpdater(mux *http.ServeMux) *StatsUpdater {
	su := &StatsUpdater{
		vars:       expvar.NewMap("unimarket-stats"),
		updateChan: make(chan metricDelta, 512),
		stopChan:   make(chan struct{}),
	}
	mux.Handle("GET /debug/vars", http.HandlerFunc(su.statsHandler))

	startTime := time.Now()
	su.vars.Set("Uptime", expvar.Func(func() any {
		return time.Since(startTime).Milliseconds()
	}))

	return su
}

func (su *StatsUpdater) statsHandler(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")

	data := make(map[string]any)
	su.vars.Do(func(kv expvar.KeyValue) {
		var value any
		json.Unmarshal([]byte(kv.Value.String()), &value)
		data[kv.Key] = value
	})

	json.NewEncoder(w).Encode(data)
}

// RegisterMetric publishes a counter. Metrics must be registered before the
// first Incr or Decr for their name; unknown names are dropped at apply time.
func (su *StatsUpdater) RegisterMetric(name string) {
	su.vars.Set(name, new(expvar.Int))
}

func (su *StatsUpdater) Incr(name string) {
	su.updateChan <- metricDelta{name: name, delta: 1}
}

func (su *StatsUpdater) Decr(name string) {
	su.updateChan <- metricDelta{name: name, delta: -1}
}

func (su *StatsUpdater) Run() {
	go func() {
		for {
			select {
			case req := <-su.updateChan:
				su.apply(req)
			case <-su.stopChan:
				return
			}
		}
	}()
}

func (su *StatsUpdater) apply(req metricDelta) {
	counter, ok := su.vars.Get(req.name).(*expvar.Int)
	if !ok {
		return
	}

	counter.Add(req.delta)
}

func (su *StatsUpdater) Stop() {
	close(su.stopChan)
}
