package provider

import (
	"sync"

	"deploy_networks/internal/app/port"
	"deploy_networks/internal/domain/entity"
	"deploy_networks/internal/pkg/metrics"
)

// CredentialLoader loads the credential for one profile from its source.
type CredentialLoader interface {
	Load(profile entity.NetworkProfile) (*entity.Credential, error)
}

// SenderVerifier checks a credential against the profile's declared sender.
type SenderVerifier func(profile entity.NetworkProfile, cred *entity.Credential) error

type credentialProviderImpl struct {
	loader  CredentialLoader
	verify  SenderVerifier
	logger  port.Logger
	metrics *metrics.Metrics

	mu    sync.Mutex
	cache map[string]*entity.Credential // Key: profile name
}

// NewCredentialProvider creates a new CredentialProvider. Successful resolutions are
// cached per profile name; failures are retried on the next call.
func NewCredentialProvider(loader CredentialLoader, verify SenderVerifier, logger port.Logger, m *metrics.Metrics) port.CredentialProvider {
	return &credentialProviderImpl{
		loader:  loader,
		verify:  verify,
		logger:  logger,
		metrics: m,
		cache:   make(map[string]*entity.Credential),
	}
}

// GetCredential returns the credential of a profile, or nil when the profile does not sign.
func (p *credentialProviderImpl) GetCredential(profile entity.NetworkProfile) (*entity.Credential, error) {
	if !profile.RequiresCredential() {
		return nil, nil
	}

	p.mu.Lock()
	defer p.mu.Unlock()

	if cred, ok := p.cache[profile.Name]; ok {
		p.logger.Debug("Returning cached credential", "network", profile.Name)
		p.observe(profile.Name, metrics.ResultCached)
		return cred, nil
	}

	cred, err := p.loader.Load(profile)
	if err == nil && p.verify != nil {
		err = p.verify(profile, cred)
	}
	if err != nil {
		p.logger.Error("Failed to resolve credential", "network", profile.Name, "error", err)
		p.observe(profile.Name, metrics.ResultError)
		return nil, err
	}

	p.cache[profile.Name] = cred
	p.logger.Info("Credential resolved", "network", profile.Name, "address", cred.Address().Hex())
	p.observe(profile.Name, metrics.ResultOK)
	return cred, nil
}

func (p *credentialProviderImpl) observe(network, result string) {
	if p.metrics == nil {
		return
	}
	p.metrics.CredentialResolutions.WithLabelValues(network, result).Inc()
}
