// Package metrics exposes Prometheus metrics for the blog server.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	postsTotal = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "inkwell_posts_total",
		Help: "Number of posts currently listed on the index page",
	})

	rendersTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "inkwell_renders_total",
		Help: "Page renders by kind and outcome",
	}, []string{"kind", "outcome"}) // kind=post|root|not_found, outcome=success|failure

	uploadsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "inkwell_uploads_total",
		Help: "Uploaded post files by outcome",
	}, []string{"outcome"})

	deletesTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "inkwell_deletes_total",
		Help: "Post deletions by outcome",
	}, []string{"outcome"}) // outcome=success|not_found|failure

	watchEventsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "inkwell_watch_events_total",
		Help: "Posts directory events handled by the watcher",
	}, []string{"op"})

	liveClients = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "inkwell_live_reload_clients",
		Help: "Connected live-reload websocket clients",
	})
)

func SetPostsTotal(n int) { postsTotal.Set(float64(n)) }

func RecordRender(kind string, err error) {
	rendersTotal.WithLabelValues(kind, outcome(err)).Inc()
}

func RecordUpload(err error) { uploadsTotal.WithLabelValues(outcome(err)).Inc() }

func RecordDelete(result string) { deletesTotal.WithLabelValues(result).Inc() }

func RecordWatchEvent(op string) { watchEventsTotal.WithLabelValues(op).Inc() }

func SetLiveClients(n int) { liveClients.Set(float64(n)) }

func outcome(err error) string {
	if err != nil {
		return "failure"
	}
	return "success"
}
