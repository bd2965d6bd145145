package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

// Collectors for the prime engine, key generation and the key server. They live in their own
// package so prime, keys and server can share them without importing each other.

var (
	CandidatesSampled = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "securemsg_prime_candidates_total",
		Help: "Random candidates sampled by prime search workers",
	}, []string{"bits"})

	PrimesFound = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "securemsg_primes_found_total",
		Help: "Probable primes returned by the prime generator",
	}, []string{"bits"})

	PrimeSearchSeconds = prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "securemsg_prime_search_seconds",
		Help:    "Wall-clock time of one prime search",
		Buckets: prometheus.ExponentialBuckets(0.0005, 2, 16),
	}, []string{"bits"})

	KeyPairsGenerated = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "securemsg_keypairs_generated_total",
		Help: "Key pairs produced by the key pair generator",
	}, []string{"key_size"})

	KeyPairRetries = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "securemsg_keypair_retries_total",
		Help: "Prime pairs discarded because they were equal or the public exponent was not invertible",
	})

	HTTPRequests = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "securemsg_http_requests_total",
		Help: "Requests served by the key server",
	}, []string{"route", "method", "status"})

	HTTPRequestSeconds = prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "securemsg_http_request_duration_seconds",
		Help:    "Latency of key server requests",
		Buckets: prometheus.DefBuckets,
	}, []string{"route", "method"})

	PrimeStreams = prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "securemsg_prime_streams_active",
		Help: "Open prime stream websocket sessions",
	})
)

func collectors() []prometheus.Collector {
	return []prometheus.Collector{
		CandidatesSampled,
		PrimesFound,
		PrimeSearchSeconds,
		KeyPairsGenerated,
		KeyPairRetries,
		HTTPRequests,
		HTTPRequestSeconds,
		PrimeStreams,
	}
}

// Register registers every collector on reg (or the default registerer if nil).
// Registering twice is not an error.
func Register(reg prometheus.Registerer) error {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	for _, c := range collectors() {
		if err := reg.Register(c); err != nil {
			if _, ok := err.(prometheus.AlreadyRegisteredError); !ok {
				return err
			}
		}
	}
	return nil
}
