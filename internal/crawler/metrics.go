package crawler

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// TotalFetchRequests tracks the number of HTTP requests dispatched.
	TotalFetchRequests = promauto.NewCounter(prometheus.CounterOpts{
		Name: "crawler_fetch_requests_total",
		Help: "The total number of HTTP page requests sent.",
	})
	// TotalFetchErrors tracks requests that resulted in a transport error.
	TotalFetchErrors = promauto.NewCounter(prometheus.CounterOpts{
		Name: "crawler_fetch_errors_total",
		Help: "The total number of failed HTTP page requests.",
	})
	// TotalFetchRetries tracks backoff-and-retry cycles inside the fetcher.
	TotalFetchRetries = promauto.NewCounter(prometheus.CounterOpts{
		Name: "crawler_fetch_retries_total",
		Help: "The total number of fetch retries after transport failures.",
	})
	// TotalOversizedBodies tracks bodies rejected by the size guard.
	TotalOversizedBodies = promauto.NewCounter(prometheus.CounterOpts{
		Name: "crawler_oversized_bodies_total",
		Help: "The total number of responses rejected for exceeding the size limit.",
	})
	// AttemptsByOutcome tracks orchestrated crawl attempts per terminal state.
	AttemptsByOutcome = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "crawler_attempts_total",
		Help: "The total number of crawl attempts by outcome.",
	}, []string{"outcome"})
)
