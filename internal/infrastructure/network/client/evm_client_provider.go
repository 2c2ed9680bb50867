package client

import (
	"context"
	"errors"
	"fmt"
	"time"

	"deploy_networks/internal/app/port"
	"deploy_networks/internal/domain/entity"
	"deploy_networks/internal/infrastructure/configloader"
	"deploy_networks/internal/pkg/metrics"

	"github.com/ethereum/go-ethereum/ethclient"
	"github.com/patrickmn/go-cache"
	"golang.org/x/sync/singleflight"
	"golang.org/x/time/rate"
)

// ErrChainIDMismatch is returned when chain id verification is enabled and the node disagrees with the profile.
var ErrChainIDMismatch = errors.New("node chain id does not match network id")

// DialFunc connects to a node endpoint.
type DialFunc func(ctx context.Context, endpoint string) (*ethclient.Client, error)

// FactoryOption customizes an EVMTransportFactory.
type FactoryOption func(*EVMTransportFactory)

// WithDialFunc replaces ethclient.DialContext.
func WithDialFunc(dial DialFunc) FactoryOption {
	return func(f *EVMTransportFactory) { f.dial = dial }
}

// EVMTransportFactory implements the port.TransportFactory interface.
// Nothing is dialed until CreateTransport is called. Transports are cached
// per network, endpoint and sender. Every cache hit restarts the TTL, and a
// transport left unrequested for a whole TTL is closed even if a caller still
// holds it, so long-running work should call CreateTransport per operation.
type EVMTransportFactory struct {
	logger  port.Logger
	metrics *metrics.Metrics
	dial    DialFunc

	dialTimeout    time.Duration
	rpcCallTimeout time.Duration
	verifyChainID  bool

	limiter    *rate.Limiter
	transports *cache.Cache
	group      singleflight.Group
}

// NewEVMTransportFactory creates a new EVMTransportFactory from the performance settings of cfg.
func NewEVMTransportFactory(cfg *configloader.Config, logger port.Logger, m *metrics.Metrics, opts ...FactoryOption) *EVMTransportFactory {
	perf := cfg.Performance
	ttl := time.Duration(perf.TransportTTLMinutes) * time.Minute

	f := &EVMTransportFactory{
		logger:         logger,
		metrics:        m,
		dial:           ethclient.DialContext,
		dialTimeout:    time.Duration(perf.DialTimeoutSeconds) * time.Second,
		rpcCallTimeout: time.Duration(perf.RPCCallTimeoutSeconds) * time.Second,
		verifyChainID:  perf.VerifyChainID,
		limiter:        rate.NewLimiter(rate.Limit(perf.DialRatePerSecond), perf.DialBurst),
		transports:     cache.New(ttl, ttl/2),
	}
	f.transports.OnEvicted(func(key string, value interface{}) {
		if t, ok := value.(*EVMTransport); ok {
			f.logger.Debug("Closing expired transport", "key", key, "endpoint", t.Endpoint())
			t.Close()
		}
	})
	for _, opt := range opts {
		opt(f)
	}
	return f
}

// CreateTransport returns a transport for the profile, dialing it on first use.
func (f *EVMTransportFactory) CreateTransport(ctx context.Context, credential *entity.Credential, profile entity.NetworkProfile) (port.TransportHandle, error) {
	key := transportKey(credential, profile)

	if t, ok := f.cached(key); ok {
		f.logger.Debug("Returning cached transport", "network", profile.Name)
		f.observe(profile.Name, metrics.ResultCached)
		return t, nil
	}

	v, err, _ := f.group.Do(key, func() (interface{}, error) {
		// An expired entry lingers until the janitor runs; evict it now so it is closed
		// rather than silently overwritten.
		f.transports.DeleteExpired()
		if t, ok := f.cached(key); ok {
			return t, nil
		}
		return f.dialTransport(ctx, credential, profile, key)
	})
	if err != nil {
		f.logger.Error("Failed to create transport", "network", profile.Name, "endpoint", profile.Endpoint(), "error", err)
		f.observe(profile.Name, metrics.ResultError)
		return nil, err
	}

	f.observe(profile.Name, metrics.ResultOK)
	return v.(*EVMTransport), nil
}

func (f *EVMTransportFactory) dialTransport(ctx context.Context, credential *entity.Credential, profile entity.NetworkProfile, key string) (*EVMTransport, error) {
	if err := f.limiter.Wait(ctx); err != nil {
		return nil, fmt.Errorf("failed to wait for dial slot for %s: %w", profile.Name, err)
	}

	f.logger.Info("Creating new transport", "network", profile.Name, "endpoint", profile.Endpoint())

	dialCtx, cancel := context.WithTimeout(ctx, f.dialTimeout)
	defer cancel()

	ethClient, err := f.dial(dialCtx, profile.Endpoint())
	if err != nil {
		return nil, fmt.Errorf("failed to connect to %s for network %s: %w", profile.Endpoint(), profile.Name, err)
	}

	t := NewEVMTransport(ethClient, profile, credential, f.rpcCallTimeout)
	if f.verifyChainID {
		chainID, err := t.ChainID(ctx)
		if err != nil {
			t.Close()
			return nil, err
		}
		if !chainID.IsUint64() || chainID.Uint64() != profile.NetworkID {
			t.Close()
			return nil, fmt.Errorf("network %s: node reports %s, profile declares %d: %w", profile.Name, chainID, profile.NetworkID, ErrChainIDMismatch)
		}
	}

	f.transports.SetDefault(key, t)
	f.logger.Info("Successfully created and cached new transport", "network", profile.Name, "sender", t.From().Hex())
	return t, nil
}

// cached returns a live cached transport and restarts its TTL, dropping one that was already closed.
func (f *EVMTransportFactory) cached(key string) (*EVMTransport, bool) {
	v, ok := f.transports.Get(key)
	if !ok {
		return nil, false
	}
	t := v.(*EVMTransport)
	if !t.Closed() {
		f.transports.SetDefault(key, t)
	}
	// Checked again in case the janitor closed it between Get and SetDefault.
	if t.Closed() {
		f.transports.Delete(key)
		return nil, false
	}
	return t, true
}

// Close closes every cached transport, including expired ones the janitor has not swept yet.
func (f *EVMTransportFactory) Close() {
	f.transports.DeleteExpired()
	for key := range f.transports.Items() {
		f.transports.Delete(key)
	}
}

func (f *EVMTransportFactory) observe(network, result string) {
	if f.metrics == nil {
		return
	}
	f.metrics.TransportDials.WithLabelValues(network, result).Inc()
}

func transportKey(credential *entity.Credential, profile entity.NetworkProfile) string {
	sender := ""
	if credential != nil {
		sender = credential.Address().Hex()
	}
	return profile.Name + "|" + profile.Endpoint() + "|" + sender
}
