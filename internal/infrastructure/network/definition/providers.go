package networkdefinition

import (
	"fmt"
	"sort"

	"deploy_networks/internal/app/port"
	"deploy_networks/internal/domain/entity"
)

// ProfileProvider is an immutable lookup table of network profiles.
// It is safe for concurrent use; every accessor returns copies.
type ProfileProvider struct {
	logger   port.Logger
	profiles map[string]entity.NetworkProfile
	names    []string
}

// Names of the built-in networks.
const (
	DevelopmentName = "development"
	QuaiTestnetName = "quaitestnet"
)

// DefaultProfiles returns fresh copies of the built-in profiles keyed by name.
func DefaultProfiles() map[string]entity.NetworkProfile {
	return map[string]entity.NetworkProfile{
		DevelopmentName: {
			Name:      DevelopmentName,
			Host:      "127.0.0.1",
			Port:      8678,
			NetworkID: 9303,
			Protocol:  entity.DefaultProtocol,
		},
		QuaiTestnetName: {
			Name:      QuaiTestnetName,
			Host:      "127.0.0.1", // Local node; point at your node provider via config or DEPLOY_NETWORKS_QUAITESTNET_HOST
			Port:      8610,        // HTTP port of zone-1-1 (cyprus1)
			NetworkID: 12101,       // Depends on the zone chain being targeted
			Protocol:  entity.DefaultProtocol,
			Gas:       490335, // Gas limits change per chain, keep in sync with the target zone
			From:      "0x1930e0b28d3766e895df661de871a9b8ab70a4da",
			WebSocket: true,
			Signer:    &entity.SignerRef{},
		},
	}
}

// NewProfileProvider builds a provider from an already validated set of profiles.
// Map keys are authoritative for profile names.
func NewProfileProvider(profiles map[string]entity.NetworkProfile, log port.Logger) *ProfileProvider {
	p := &ProfileProvider{
		logger:   log,
		profiles: make(map[string]entity.NetworkProfile, len(profiles)),
		names:    make([]string, 0, len(profiles)),
	}

	for name, profile := range profiles {
		profile = profile.Clone()
		profile.Name = name
		p.profiles[name] = profile
		p.names = append(p.names, name)
	}
	sort.Strings(p.names)

	if len(p.names) == 0 {
		p.logger.Warn("No network profiles configured. Every lookup will fail.")
	} else {
		p.logger.Info(fmt.Sprintf("ProfileProvider initialized with %d networks", len(p.names)))
		for _, name := range p.names {
			profile := p.profiles[name]
			p.logger.Debug(fmt.Sprintf("  - Network: %s (endpoint: %s, network_id: %d, signer: %t)",
				name, profile.Endpoint(), profile.NetworkID, profile.RequiresCredential()))
		}
	}

	return p
}

// GetProfile returns the profile with exactly this name.
func (p *ProfileProvider) GetProfile(name string) (entity.NetworkProfile, error) {
	if p == nil {
		return entity.NetworkProfile{}, &entity.NotFoundError{Name: name}
	}
	profile, ok := p.profiles[name]
	if !ok {
		return entity.NetworkProfile{}, &entity.NotFoundError{Name: name, Known: p.ListProfiles()}
	}
	return profile.Clone(), nil
}

// ListProfiles returns all configured network names in sorted order.
func (p *ProfileProvider) ListProfiles() []string {
	if p == nil {
		return []string{}
	}
	namesCopy := make([]string, len(p.names))
	copy(namesCopy, p.names)
	return namesCopy
}

// GetAllProfiles returns every profile, sorted by name.
func (p *ProfileProvider) GetAllProfiles() []entity.NetworkProfile {
	if p == nil {
		return []entity.NetworkProfile{}
	}
	all := make([]entity.NetworkProfile, 0, len(p.names))
	for _, name := range p.names {
		all = append(all, p.profiles[name].Clone())
	}
	return all
}

// GetProfileByNetworkID returns the first profile, in name order, declaring this network id.
func (p *ProfileProvider) GetProfileByNetworkID(networkID uint64) (entity.NetworkProfile, bool) {
	if p == nil {
		return entity.NetworkProfile{}, false
	}
	for _, name := range p.names {
		if profile := p.profiles[name]; profile.NetworkID == networkID {
			return profile.Clone(), true
		}
	}
	return entity.NetworkProfile{}, false
}
