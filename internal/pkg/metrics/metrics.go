package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
)

const namespace = "deploy_networks"

// Result label values.
const (
	ResultOK       = "ok"
	ResultNotFound = "not_found"
	ResultError    = "error"
	ResultCached   = "cached"
)

// UnknownNetwork is the label used for lookups of names that are not configured,
// so arbitrary input cannot grow label cardinality.
const UnknownNetwork = "unknown"

// Metrics holds the collectors of one process, registered on their own registry.
type Metrics struct {
	Registry              *prometheus.Registry
	ProfileLookups        *prometheus.CounterVec
	CredentialResolutions *prometheus.CounterVec
	TransportDials        *prometheus.CounterVec
	ProbeDuration         *prometheus.HistogramVec
}

// New creates and registers all collectors.
func New() *Metrics {
	m := &Metrics{
		Registry: prometheus.NewRegistry(),
		ProfileLookups: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "profile_lookups_total",
			Help:      "Network profile lookups by network and result.",
		}, []string{"network", "result"}),
		CredentialResolutions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "credential_resolutions_total",
			Help:      "Signing credential resolutions by network and result.",
		}, []string{"network", "result"}),
		TransportDials: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "transport_dials_total",
			Help:      "Transport creations by network and result.",
		}, []string{"network", "result"}),
		ProbeDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "node_probe_duration_seconds",
			Help:      "Node probe latency by network.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"network"}),
	}

	m.Registry.MustRegister(
		m.ProfileLookups,
		m.CredentialResolutions,
		m.TransportDials,
		m.ProbeDuration,
		collectors.NewGoCollector(),
	)
	return m
}
