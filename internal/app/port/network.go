package port

import (
	"context"
	"math/big"

	"deploy_networks/internal/domain/entity"

	"github.com/ethereum/go-ethereum/accounts/abi/bind"
	"github.com/ethereum/go-ethereum/common"
)

// ProfileProvider defines the interface for looking up network profiles.
type ProfileProvider interface {
	// GetProfile returns the profile with exactly this name, or an *entity.NotFoundError.
	GetProfile(name string) (entity.NetworkProfile, error)

	// ListProfiles returns every configured network name, sorted.
	ListProfiles() []string

	// GetProfileByNetworkID returns the first profile, in name order, declaring this network id.
	GetProfileByNetworkID(networkID uint64) (entity.NetworkProfile, bool)
}

// CredentialProvider resolves the signing credential for a profile.
type CredentialProvider interface {
	GetCredential(profile entity.NetworkProfile) (*entity.Credential, error)
}

// TransportHandle mediates communication with the node behind one profile.
type TransportHandle interface {
	Endpoint() string
	From() common.Address
	ChainID(ctx context.Context) (*big.Int, error)
	Balance(ctx context.Context) (*big.Int, error)
	// Transactor returns signing options bound to the node's chain id and the profile's gas limit.
	Transactor(ctx context.Context) (*bind.TransactOpts, error)
	Close()
}

// TransportFactory creates transports on demand. Implementations must not
// connect to anything before CreateTransport is called. A returned handle may be
// shared and may be closed once it has gone unrequested for the factory's idle
// TTL, so callers should request a handle per operation instead of keeping one.
type TransportFactory interface {
	CreateTransport(ctx context.Context, credential *entity.Credential, profile entity.NetworkProfile) (TransportHandle, error)
}

// NodeProber checks that a node answers on an endpoint.
type NodeProber interface {
	Probe(ctx context.Context, endpoint string) (entity.ProbeResult, error)
}
