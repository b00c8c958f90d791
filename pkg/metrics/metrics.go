package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// AuthAttempts records authentication attempts by result
	// (success|failure|unverified).
	AuthAttempts = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "listenme_auth_attempts_total",
			Help: "Total number of authentication attempts",
		},
		[]string{"result"},
	)

	// CodesIssued counts one-time codes and reset tokens handed out, by purpose
	// (signup|login|reset).
	CodesIssued = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "listenme_codes_issued_total",
			Help: "Total number of verification codes and reset tokens issued",
		},
		[]string{"purpose"},
	)

	// SongUploads counts catalogued songs by result (success|failure).
	SongUploads = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "listenme_song_uploads_total",
			Help: "Total number of song upload attempts",
		},
		[]string{"result"},
	)

	// SongPlays counts play-count increments.
	SongPlays = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "listenme_song_plays_total",
			Help: "Total number of recorded song plays",
		},
	)

	// APILatency measures HTTP request latencies.
	APILatency = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "listenme_api_latency_seconds",
			Help:    "API endpoint latency",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "path", "status"},
	)
)
