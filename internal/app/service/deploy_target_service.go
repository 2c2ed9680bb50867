package service

import (
	"context"
	"errors"
	"sort"
	"time"

	"deploy_networks/internal/app/port"
	"deploy_networks/internal/domain/entity"
	"deploy_networks/internal/pkg/metrics"

	"golang.org/x/sync/errgroup"
)

// DeployTargetServiceImpl implements port.DeployTargetService.
type DeployTargetServiceImpl struct {
	profiles              port.ProfileProvider
	credentials           port.CredentialProvider
	transports            port.TransportFactory
	prober                port.NodeProber
	logger                port.Logger
	metrics               *metrics.Metrics
	maxConcurrentRoutines int
}

// NewDeployTargetService creates a new instance of DeployTargetServiceImpl.
// prober and m may be nil.
func NewDeployTargetService(
	pp port.ProfileProvider,
	cp port.CredentialProvider,
	tf port.TransportFactory,
	np port.NodeProber,
	l port.Logger,
	m *metrics.Metrics,
	maxRoutines int,
) *DeployTargetServiceImpl {
	if maxRoutines <= 0 {
		maxRoutines = 1
	}
	return &DeployTargetServiceImpl{
		profiles:              pp,
		credentials:           cp,
		transports:            tf,
		prober:                np,
		logger:                l,
		metrics:               m,
		maxConcurrentRoutines: maxRoutines,
	}
}

// Select resolves the named profile and, if it signs, its credential.
// A profile without a from address takes the credential's address.
func (s *DeployTargetServiceImpl) Select(name string) (entity.DeployTarget, error) {
	profile, err := s.profiles.GetProfile(name)
	if err != nil {
		var notFound *entity.NotFoundError
		if errors.As(err, &notFound) {
			s.observeLookup(metrics.UnknownNetwork, metrics.ResultNotFound)
		} else {
			s.observeLookup(metrics.UnknownNetwork, metrics.ResultError)
		}
		s.logger.Warn("Network lookup failed", "network", name, "error", err)
		return entity.DeployTarget{}, err
	}
	s.observeLookup(profile.Name, metrics.ResultOK)

	cred, err := s.credentials.GetCredential(profile)
	if err != nil {
		return entity.DeployTarget{}, err
	}
	if cred != nil && profile.From == "" {
		profile.From = cred.Address().Hex()
	}

	s.logger.Debug("Network selected", "network", profile.Name, "endpoint", profile.Endpoint(), "sender", profile.From)
	return entity.DeployTarget{Profile: profile, Credential: cred}, nil
}

// Connect selects the named network and returns its transport, dialing it if needed.
func (s *DeployTargetServiceImpl) Connect(ctx context.Context, name string) (port.TransportHandle, error) {
	target, err := s.Select(name)
	if err != nil {
		return nil, err
	}
	return s.transports.CreateTransport(ctx, target.Credential, target.Profile)
}

// Check selects every named network (all of them when names is empty) and probes
// the http(s) ones. Results are sorted by name; failures are reported per network.
func (s *DeployTargetServiceImpl) Check(ctx context.Context, names []string) []entity.CheckResult {
	if len(names) == 0 {
		names = s.profiles.ListProfiles()
	}
	names = uniqueSorted(names)
	s.logger.Debug("Checking networks", "networks", names, "max_concurrent_routines", s.maxConcurrentRoutines)

	results := make([]entity.CheckResult, len(names))
	var g errgroup.Group
	g.SetLimit(s.maxConcurrentRoutines)

	for i, name := range names {
		i, name := i, name
		g.Go(func() error {
			results[i] = s.checkOne(ctx, name)
			return nil
		})
	}
	_ = g.Wait() // Errors are carried in results

	failed := 0
	for _, r := range results {
		if !r.OK() {
			failed++
		}
	}
	s.logger.Info("Network check finished", "checked", len(results), "failed", failed)
	return results
}

func (s *DeployTargetServiceImpl) checkOne(ctx context.Context, name string) entity.CheckResult {
	result := entity.CheckResult{Name: name}

	target, err := s.Select(name)
	if err != nil {
		result.Err = err
		return result
	}
	result.Endpoint = target.Profile.Endpoint()
	result.Sender = target.Profile.From

	if s.prober == nil || !probeable(target.Profile) {
		return result
	}

	start := time.Now()
	probe, err := s.prober.Probe(ctx, result.Endpoint)
	if s.metrics != nil {
		s.metrics.ProbeDuration.WithLabelValues(name).Observe(time.Since(start).Seconds())
	}
	if err != nil {
		s.logger.Warn("Node probe failed", "network", name, "endpoint", result.Endpoint, "error", err)
		result.Err = err
		return result
	}
	result.Probe = &probe

	if probe.NetworkID != target.Profile.NetworkID {
		mismatch := &entity.NetworkMismatchError{Profile: name, Expected: target.Profile.NetworkID, Actual: probe.NetworkID}
		if other, ok := s.profiles.GetProfileByNetworkID(probe.NetworkID); ok {
			mismatch.Matches = other.Name
		}
		result.Err = mismatch
	}
	return result
}

func (s *DeployTargetServiceImpl) observeLookup(network, result string) {
	if s.metrics == nil {
		return
	}
	s.metrics.ProfileLookups.WithLabelValues(network, result).Inc()
}

func probeable(p entity.NetworkProfile) bool {
	return p.Protocol == "http" || p.Protocol == "https" || p.Protocol == ""
}

func uniqueSorted(names []string) []string {
	seen := make(map[string]struct{}, len(names))
	out := make([]string, 0, len(names))
	for _, n := range names {
		if _, ok := seen[n]; ok {
			continue
		}
		seen[n] = struct{}{}
		out = append(out, n)
	}
	sort.Strings(out)
	return out
}
