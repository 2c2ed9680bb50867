package entity

import (
	"crypto/ecdsa"
	"strconv"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"
)

const redactedCredential = "[REDACTED]"

// Credential is a signing key together with the account address it derives.
// Every textual or serialized form of a Credential is redacted.
type Credential struct {
	key     *ecdsa.PrivateKey
	address common.Address
}

// NewCredential wraps a private key and derives its address.
func NewCredential(key *ecdsa.PrivateKey) *Credential {
	return &Credential{
		key:     key,
		address: crypto.PubkeyToAddress(key.PublicKey),
	}
}

// Address returns the account derived from the key.
func (c *Credential) Address() common.Address {
	return c.address
}

// PrivateKey returns the key for signing. Callers must not log or persist it.
func (c *Credential) PrivateKey() *ecdsa.PrivateKey {
	return c.key
}

func (c *Credential) String() string {
	if c == nil {
		return "credential(<nil>)"
	}
	return "credential(" + c.address.Hex() + ", key=" + redactedCredential + ")"
}

func (c *Credential) GoString() string {
	return c.String()
}

func (c *Credential) MarshalJSON() ([]byte, error) {
	return []byte(strconv.Quote(c.String())), nil
}

func (c *Credential) MarshalYAML() (interface{}, error) {
	return c.String(), nil
}
