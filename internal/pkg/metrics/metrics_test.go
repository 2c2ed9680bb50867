package metrics

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNew_RegistersCollectors(t *testing.T) {
	t.Parallel()

	m := New()
	m.ProfileLookups.WithLabelValues("development", ResultOK).Inc()
	m.TransportDials.WithLabelValues("quaitestnet", ResultError).Add(2)

	assert.InDelta(t, 1, testutil.ToFloat64(m.ProfileLookups.WithLabelValues("development", ResultOK)), 0)
	assert.InDelta(t, 2, testutil.ToFloat64(m.TransportDials.WithLabelValues("quaitestnet", ResultError)), 0)

	families, err := m.Registry.Gather()
	require.NoError(t, err)

	names := make(map[string]bool, len(families))
	for _, f := range families {
		names[f.GetName()] = true
	}
	assert.True(t, names["deploy_networks_profile_lookups_total"])
	assert.True(t, names["deploy_networks_transport_dials_total"])
}

func TestNew_IndependentRegistries(t *testing.T) {
	t.Parallel()

	// Each call must own its registry, otherwise the second MustRegister panics.
	assert.NotPanics(t, func() {
		_ = New()
		_ = New()
	})
}
