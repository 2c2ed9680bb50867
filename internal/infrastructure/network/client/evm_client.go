package client

import (
	"context"
	"errors"
	"fmt"
	"math/big"
	"sync"
	"sync/atomic"
	"time"

	"deploy_networks/internal/domain/entity"

	"github.com/ethereum/go-ethereum/accounts/abi/bind"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/ethclient"
)

// ErrNoSender is returned by Balance when neither a credential nor a from address is known.
var ErrNoSender = errors.New("network has no sender address")

// EVMTransport implements the port.TransportHandle interface for EVM-compatible nodes.
type EVMTransport struct {
	ethClient      *ethclient.Client
	profile        entity.NetworkProfile
	credential     *entity.Credential
	rpcCallTimeout time.Duration

	closeOnce sync.Once
	closed    atomic.Bool
}

// NewEVMTransport wraps an already connected client. The transport takes ownership of it.
func NewEVMTransport(ethClient *ethclient.Client, profile entity.NetworkProfile, credential *entity.Credential, rpcCallTimeout time.Duration) *EVMTransport {
	return &EVMTransport{
		ethClient:      ethClient,
		profile:        profile.Clone(),
		credential:     credential,
		rpcCallTimeout: rpcCallTimeout,
	}
}

// Endpoint returns the URL the transport is connected to.
func (t *EVMTransport) Endpoint() string {
	return t.profile.Endpoint()
}

// From returns the sending account: the credential's address, else the declared from address.
func (t *EVMTransport) From() common.Address {
	if t.credential != nil {
		return t.credential.Address()
	}
	if common.IsHexAddress(t.profile.From) {
		return common.HexToAddress(t.profile.From)
	}
	return common.Address{}
}

// ChainID asks the node for its chain id.
func (t *EVMTransport) ChainID(ctx context.Context) (*big.Int, error) {
	callCtx, cancel := t.callContext(ctx)
	defer cancel()

	id, err := t.ethClient.ChainID(callCtx)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch chain id from %s: %w", t.Endpoint(), err)
	}
	return id, nil
}

// Balance returns the latest native balance of the sending account, in wei.
func (t *EVMTransport) Balance(ctx context.Context) (*big.Int, error) {
	from := t.From()
	if from == (common.Address{}) {
		return nil, fmt.Errorf("network %q: %w", t.profile.Name, ErrNoSender)
	}

	callCtx, cancel := t.callContext(ctx)
	defer cancel()

	balance, err := t.ethClient.BalanceAt(callCtx, from, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch balance of %s from %s: %w", from.Hex(), t.Endpoint(), err)
	}
	return balance, nil
}

// Transactor returns signing options for the node's chain id with the profile's gas limit.
func (t *EVMTransport) Transactor(ctx context.Context) (*bind.TransactOpts, error) {
	if t.credential == nil {
		return nil, &entity.InvalidCredentialError{Profile: t.profile.Name, Reason: "network has no signer configured"}
	}

	chainID, err := t.ChainID(ctx)
	if err != nil {
		return nil, err
	}

	opts, err := bind.NewKeyedTransactorWithChainID(t.credential.PrivateKey(), chainID)
	if err != nil {
		return nil, fmt.Errorf("failed to create transactor for %s: %w", t.profile.Name, err)
	}
	opts.GasLimit = t.profile.Gas // 0 lets the node estimate
	opts.Context = ctx
	return opts, nil
}

// Close releases the connection. It is safe to call more than once.
func (t *EVMTransport) Close() {
	t.closeOnce.Do(func() {
		t.closed.Store(true)
		t.ethClient.Close()
	})
}

// Closed reports whether Close has been called.
func (t *EVMTransport) Closed() bool {
	return t.closed.Load()
}

func (t *EVMTransport) callContext(ctx context.Context) (context.Context, context.CancelFunc) {
	if t.rpcCallTimeout <= 0 {
		return context.WithCancel(ctx)
	}
	return context.WithTimeout(ctx, t.rpcCallTimeout)
}
