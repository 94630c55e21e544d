// Package metrics holds the Prometheus instruments for sync runs.
// The CLI exposes them on an optional listener; long media restores
// are the main reason to watch them.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	// Attempts counts every underlying remote call, including
	// retries, labelled by operation.
	Attempts = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "txtwire",
		Subsystem: "remote",
		Name:      "attempts_total",
		Help:      "Remote calls issued, retries included.",
	}, []string{"call"})

	// Retries counts attempts after the first.
	Retries = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "txtwire",
		Subsystem: "remote",
		Name:      "retries_total",
		Help:      "Remote calls re-issued after a transient failure.",
	}, []string{"call"})

	// GaveUps counts operations abandoned at the retry ceiling.
	GaveUps = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "txtwire",
		Subsystem: "remote",
		Name:      "gave_up_total",
		Help:      "Operations abandoned after exhausting the retry ceiling.",
	}, []string{"call"})

	// BlobBytesUp counts encrypted media bytes sent to the object
	// store.
	BlobBytesUp = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "txtwire",
		Subsystem: "blob",
		Name:      "upload_bytes_total",
		Help:      "Encrypted media bytes uploaded.",
	})

	// BlobBytesDown counts encrypted media bytes fetched from the
	// object store.
	BlobBytesDown = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "txtwire",
		Subsystem: "blob",
		Name:      "download_bytes_total",
		Help:      "Encrypted media bytes downloaded.",
	})
)

// Serve blocks serving /metrics on addr.  The CLI runs it on a
// goroutine for the life of the process.
func Serve(addr string) error {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())
	return http.ListenAndServe(addr, mux)
}
