package networkdefinition

import (
	"errors"
	"testing"

	"deploy_networks/internal/domain/entity"
	"deploy_networks/internal/pkg/logger"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newDefaultProvider() *ProfileProvider {
	return NewProfileProvider(DefaultProfiles(), logger.NewNop())
}

// TestGetProfile_Development checks the local development chain values.
func TestGetProfile_Development(t *testing.T) {
	t.Parallel()

	profile, err := newDefaultProvider().GetProfile("development")

	require.NoError(t, err)
	assert.Equal(t, "development", profile.Name)
	assert.Equal(t, "127.0.0.1", profile.Host)
	assert.Equal(t, 8678, profile.Port)
	assert.Equal(t, uint64(9303), profile.NetworkID)
	assert.False(t, profile.RequiresCredential())
}

// TestGetProfile_QuaiTestnet checks the derived endpoint and gas limit of the remote test chain.
func TestGetProfile_QuaiTestnet(t *testing.T) {
	t.Parallel()

	profile, err := newDefaultProvider().GetProfile("quaitestnet")

	require.NoError(t, err)
	assert.Equal(t, "http://127.0.0.1:8610", profile.Endpoint())
	assert.Equal(t, uint64(490335), profile.Gas)
	assert.Equal(t, uint64(12101), profile.NetworkID)
	assert.True(t, profile.WebSocket)
	assert.True(t, profile.RequiresCredential())
}

func TestGetProfile_NotFound(t *testing.T) {
	t.Parallel()

	_, err := newDefaultProvider().GetProfile("mainnet")

	var notFound *entity.NotFoundError
	require.True(t, errors.As(err, &notFound))
	assert.Equal(t, "mainnet", notFound.Name)
	assert.Equal(t, []string{"development", "quaitestnet"}, notFound.Known)
}

func TestGetProfile_ExactMatchOnly(t *testing.T) {
	t.Parallel()

	_, err := newDefaultProvider().GetProfile("Development")

	var notFound *entity.NotFoundError
	require.ErrorAs(t, err, &notFound)
}

// TestAllProfiles_PositiveIdentifiers holds for every declared network.
func TestAllProfiles_PositiveIdentifiers(t *testing.T) {
	t.Parallel()

	p := newDefaultProvider()
	for _, name := range p.ListProfiles() {
		profile, err := p.GetProfile(name)
		require.NoError(t, err)
		assert.Positive(t, profile.Port, name)
		assert.Positive(t, profile.NetworkID, name)
	}
}

func TestListProfiles_SortedCopy(t *testing.T) {
	t.Parallel()

	p := newDefaultProvider()
	names := p.ListProfiles()
	require.Equal(t, []string{"development", "quaitestnet"}, names)

	names[0] = "mutated"
	assert.Equal(t, []string{"development", "quaitestnet"}, p.ListProfiles())
}

func TestGetProfile_ReturnsCopies(t *testing.T) {
	t.Parallel()

	p := newDefaultProvider()
	profile, err := p.GetProfile("quaitestnet")
	require.NoError(t, err)

	profile.Port = 1
	profile.Signer.CredentialEnv = "MUTATED"

	again, err := p.GetProfile("quaitestnet")
	require.NoError(t, err)
	assert.Equal(t, 8610, again.Port)
	assert.Empty(t, again.Signer.CredentialEnv)
}

func TestNewProfileProvider_MapKeyWinsOverName(t *testing.T) {
	t.Parallel()

	p := NewProfileProvider(map[string]entity.NetworkProfile{
		"local": {Name: "something-else", Host: "localhost", Port: 8545, NetworkID: 1337},
	}, logger.NewNop())

	profile, err := p.GetProfile("local")
	require.NoError(t, err)
	assert.Equal(t, "local", profile.Name)
}

func TestGetProfileByNetworkID(t *testing.T) {
	t.Parallel()

	p := newDefaultProvider()

	profile, ok := p.GetProfileByNetworkID(12101)
	require.True(t, ok)
	assert.Equal(t, "quaitestnet", profile.Name)

	_, ok = p.GetProfileByNetworkID(1)
	assert.False(t, ok)
}

func TestNilProvider(t *testing.T) {
	t.Parallel()

	var p *ProfileProvider
	_, err := p.GetProfile("development")
	require.Error(t, err)
	assert.Empty(t, p.ListProfiles())
	assert.Empty(t, p.GetAllProfiles())
}

func TestEmptyProvider(t *testing.T) {
	t.Parallel()

	p := NewProfileProvider(nil, logger.NewNop())
	_, err := p.GetProfile("development")

	var notFound *entity.NotFoundError
	require.ErrorAs(t, err, &notFound)
	assert.Contains(t, err.Error(), "no networks are configured")
}

func TestDefaultProfiles_IndependentCopies(t *testing.T) {
	t.Parallel()

	first := DefaultProfiles()
	first["quaitestnet"].Signer.CredentialEnv = "CHANGED"

	second := DefaultProfiles()
	assert.Empty(t, second["quaitestnet"].Signer.CredentialEnv)
}
