package entity

import (
	"net"
	"strconv"
)

// DefaultProtocol is the endpoint scheme used when a profile does not set one.
const DefaultProtocol = "http"

// NetworkProfile holds the connection and signing parameters for one target chain.
// This structure is defined at the domain level to be used across application and infrastructure layers.
type NetworkProfile struct {
	Name      string     `json:"name" yaml:"-"`
	Host      string     `json:"host" yaml:"host"`
	Port      int        `json:"port" yaml:"port"`
	NetworkID uint64     `json:"networkId" yaml:"network_id"`
	Protocol  string     `json:"protocol" yaml:"protocol,omitempty"`
	Gas       uint64     `json:"gas,omitempty" yaml:"gas,omitempty"`
	From      string     `json:"from,omitempty" yaml:"from,omitempty"`
	WebSocket bool       `json:"websocket" yaml:"websocket,omitempty"` // Requested persistent connection, passed through to the consumer
	Signer    *SignerRef `json:"signer,omitempty" yaml:"signer,omitempty"`
}

// SignerRef says where the signing credential for a profile lives.
// It never carries the credential itself.
type SignerRef struct {
	CredentialEnv  string `json:"credentialEnv,omitempty" yaml:"credential_env,omitempty"`
	CredentialFile string `json:"credentialFile,omitempty" yaml:"credential_file,omitempty"`
}

// Endpoint composes protocol://host:port.
func (p NetworkProfile) Endpoint() string {
	protocol := p.Protocol
	if protocol == "" {
		protocol = DefaultProtocol
	}
	return protocol + "://" + net.JoinHostPort(p.Host, strconv.Itoa(p.Port))
}

// RequiresCredential reports whether deploying to this network needs a signing credential.
func (p NetworkProfile) RequiresCredential() bool {
	return p.Signer != nil
}

// Clone returns a deep copy so callers cannot mutate a provider's profile.
func (p NetworkProfile) Clone() NetworkProfile {
	if p.Signer != nil {
		signer := *p.Signer
		p.Signer = &signer
	}
	return p
}
