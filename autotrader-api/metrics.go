package main

import "github.com/prometheus/client_golang/prometheus"

type Metrics struct {
	SuccessfulRequests *prometheus.CounterVec
	BadRequests        *prometheus.CounterVec
	ListingsCreated    *prometheus.CounterVec
	MessagesSent       *prometheus.CounterVec
	FollowRequests     *prometheus.CounterVec
	UnfollowRequests   *prometheus.CounterVec
}

// InitMetrics registers the counters on the given registerer; tests pass a
// throwaway registry so repeated setup does not collide.
func InitMetrics(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		SuccessfulRequests: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "successful_request",
				Help: "Total number of successful (2xx) HTTP requests",
			},
			[]string{"path"},
		),
		BadRequests: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "unsuccessful_request",
				Help: "Total number of unsuccessful (4xx/5xx) HTTP requests",
			},
			[]string{"path"},
		),
		ListingsCreated: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "listings_created",
				Help: "Total number of listings created",
			},
			[]string{"path"},
		),
		MessagesSent: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "successful_message",
				Help: "Total number of successfully sent direct messages",
			},
			[]string{"path"},
		),
		FollowRequests: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "successful_follows",
				Help: "Total number of successful follow requests",
			},
			[]string{"path"},
		),
		UnfollowRequests: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "successful_unfollows",
				Help: "Total number of successful unfollow requests",
			},
			[]string{"path"},
		),
	}

	reg.MustRegister(m.SuccessfulRequests)
	reg.MustRegister(m.BadRequests)
	reg.MustRegister(m.ListingsCreated)
	reg.MustRegister(m.MessagesSent)
	reg.MustRegister(m.FollowRequests)
	reg.MustRegister(m.UnfollowRequests)

	return m
}
