package cli

import (
	"encoding/json"
	"io"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/wesleyorama2/throughput/perf"
	"github.com/wesleyorama2/throughput/perf/rate"
	"github.com/wesleyorama2/throughput/perf/stats"
)

// watchStatus is the JSON body of /status.
type watchStatus struct {
	Running   bool               `json:"running"`
	StartTime time.Time          `json:"startTime"`
	Uptime    string             `json:"uptime"`
	Stats     stats.Snapshot     `json:"stats"`
	Errors    []stats.ErrorEntry `json:"errors"`
	Pacing    *rate.Stats        `json:"pacing,omitempty"`
}

// newWatchHandler serves the live views of d and the metrics gathered by g.
func newWatchHandler(d *perf.Daemon, g prometheus.Gatherer) http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("GET /log", textHandler(d.Log))
	mux.HandleFunc("GET /stats", textHandler(d.Stats))
	mux.HandleFunc("GET /errors", textHandler(d.Errors))
	mux.HandleFunc("GET /histogram", textHandler(d.Histogram))

	mux.HandleFunc("GET /history", jsonHandler(func() any {
		return d.History()
	}))
	mux.HandleFunc("GET /status", jsonHandler(func() any {
		status := watchStatus{
			Running:   d.Running(),
			StartTime: d.StartTime(),
			Stats:     d.Snapshot(),
			Errors:    d.ErrorTable(),
			Pacing:    d.Pacing(),
		}
		if !status.StartTime.IsZero() {
			status.Uptime = time.Since(status.StartTime).Round(time.Millisecond).String()
		}
		return status
	}))

	mux.Handle("GET /metrics", promhttp.HandlerFor(g, promhttp.HandlerOpts{}))
	return mux
}

func textHandler(view func() string) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/plain; charset=utf-8")
		io.WriteString(w, view()+"\n")
	}
}

func jsonHandler(view func() any) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		if err := enc.Encode(view()); err != nil {
			http.Error(w, err.Error(), http.StatusInternalServerError)
		}
	}
}
