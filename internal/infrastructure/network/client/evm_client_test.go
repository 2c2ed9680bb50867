package client

import (
	"context"
	"errors"
	"math/big"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"deploy_networks/internal/domain/entity"
	"deploy_networks/internal/infrastructure/configloader"
	"deploy_networks/internal/pkg/logger"
	"deploy_networks/internal/pkg/metrics"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/ethereum/go-ethereum/ethclient"
	"github.com/ethereum/go-ethereum/rpc"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeEth serves the subset of the eth namespace the transport uses.
type fakeEth struct {
	chainID  int64
	balances map[common.Address]*big.Int
}

func (f *fakeEth) ChainId() (*hexutil.Big, error) {
	return (*hexutil.Big)(big.NewInt(f.chainID)), nil
}

func (f *fakeEth) GetBalance(addr common.Address, _ string) (*hexutil.Big, error) {
	if b, ok := f.balances[addr]; ok {
		return (*hexutil.Big)(b), nil
	}
	return (*hexutil.Big)(new(big.Int)), nil
}

func newNode(t *testing.T, eth *fakeEth) *rpc.Server {
	t.Helper()
	server := rpc.NewServer()
	require.NoError(t, server.RegisterName("eth", eth))
	t.Cleanup(server.Stop)
	return server
}

// inProcDial returns a DialFunc that connects to server and counts dials.
func inProcDial(server *rpc.Server, dials *atomic.Int32) DialFunc {
	return func(context.Context, string) (*ethclient.Client, error) {
		dials.Add(1)
		return ethclient.NewClient(rpc.DialInProc(server)), nil
	}
}

func loadConfig(t *testing.T) *configloader.Config {
	t.Helper()
	cfg, err := configloader.Load(configloader.Options{LookupEnv: func(string) (string, bool) { return "", false }})
	require.NoError(t, err)
	return cfg
}

func newCredential(t *testing.T) *entity.Credential {
	t.Helper()
	key, err := crypto.GenerateKey()
	require.NoError(t, err)
	return entity.NewCredential(key)
}

var quai = entity.NetworkProfile{
	Name:      "quaitestnet",
	Host:      "127.0.0.1",
	Port:      8610,
	NetworkID: 12101,
	Protocol:  "http",
	Gas:       490335,
	Signer:    &entity.SignerRef{},
}

func TestEVMTransport_BalanceAndChainID(t *testing.T) {
	t.Parallel()

	cred := newCredential(t)
	server := newNode(t, &fakeEth{
		chainID:  12101,
		balances: map[common.Address]*big.Int{cred.Address(): big.NewInt(1_500_000_000_000_000_000)},
	})
	tr := NewEVMTransport(ethclient.NewClient(rpc.DialInProc(server)), quai, cred, 0)
	defer tr.Close()

	assert.Equal(t, "http://127.0.0.1:8610", tr.Endpoint())
	assert.Equal(t, cred.Address(), tr.From())

	chainID, err := tr.ChainID(context.Background())
	require.NoError(t, err)
	assert.Equal(t, int64(12101), chainID.Int64())

	balance, err := tr.Balance(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "1500000000000000000", balance.String())
}

// TestEVMTransport_Transactor tests that signing options carry the node chain id and the gas limit
func TestEVMTransport_Transactor(t *testing.T) {
	t.Parallel()

	cred := newCredential(t)
	server := newNode(t, &fakeEth{chainID: 9000})
	tr := NewEVMTransport(ethclient.NewClient(rpc.DialInProc(server)), quai, cred, 0)
	defer tr.Close()

	opts, err := tr.Transactor(context.Background())
	require.NoError(t, err)
	assert.Equal(t, cred.Address(), opts.From)
	assert.Equal(t, uint64(490335), opts.GasLimit)
	assert.NotNil(t, opts.Signer)
}

func TestEVMTransport_TransactorWithoutCredential(t *testing.T) {
	t.Parallel()

	server := newNode(t, &fakeEth{chainID: 9303})
	dev := entity.NetworkProfile{Name: "development", Host: "127.0.0.1", Port: 8678, NetworkID: 9303}
	tr := NewEVMTransport(ethclient.NewClient(rpc.DialInProc(server)), dev, nil, 0)
	defer tr.Close()

	_, err := tr.Transactor(context.Background())
	var credErr *entity.InvalidCredentialError
	require.ErrorAs(t, err, &credErr)

	_, err = tr.Balance(context.Background())
	assert.ErrorIs(t, err, ErrNoSender)
}

func TestEVMTransport_FromFallsBackToProfile(t *testing.T) {
	t.Parallel()

	server := newNode(t, &fakeEth{chainID: 12101})
	profile := quai.Clone()
	profile.From = "0x1930e0b28d3766e895df661de871a9b8ab70a4da"
	tr := NewEVMTransport(ethclient.NewClient(rpc.DialInProc(server)), profile, nil, 0)
	defer tr.Close()

	assert.Equal(t, common.HexToAddress(profile.From), tr.From())
}

func TestEVMTransport_CloseIdempotent(t *testing.T) {
	t.Parallel()

	server := newNode(t, &fakeEth{chainID: 1})
	tr := NewEVMTransport(ethclient.NewClient(rpc.DialInProc(server)), quai, nil, 0)

	tr.Close()
	tr.Close()
	assert.True(t, tr.Closed())
}

// TestFactory_LazyAndCached tests that dialing happens on first use only
func TestFactory_LazyAndCached(t *testing.T) {
	t.Parallel()

	var dials atomic.Int32
	server := newNode(t, &fakeEth{chainID: 12101})
	m := metrics.New()
	f := NewEVMTransportFactory(loadConfig(t), logger.NewNop(), m, WithDialFunc(inProcDial(server, &dials)))
	defer f.Close()

	assert.Zero(t, dials.Load())

	first, err := f.CreateTransport(context.Background(), nil, quai)
	require.NoError(t, err)
	second, err := f.CreateTransport(context.Background(), nil, quai)
	require.NoError(t, err)

	assert.Same(t, first, second)
	assert.Equal(t, int32(1), dials.Load())
	assert.InDelta(t, 1, testutil.ToFloat64(m.TransportDials.WithLabelValues("quaitestnet", metrics.ResultOK)), 0)
	assert.InDelta(t, 1, testutil.ToFloat64(m.TransportDials.WithLabelValues("quaitestnet", metrics.ResultCached)), 0)
}

func TestFactory_ConcurrentCallersShareOneDial(t *testing.T) {
	t.Parallel()

	var dials atomic.Int32
	server := newNode(t, &fakeEth{chainID: 12101})
	f := NewEVMTransportFactory(loadConfig(t), logger.NewNop(), nil, WithDialFunc(inProcDial(server, &dials)))
	defer f.Close()

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := f.CreateTransport(context.Background(), nil, quai)
			assert.NoError(t, err)
		}()
	}
	wg.Wait()
	assert.Equal(t, int32(1), dials.Load())
}

func TestFactory_RedialsAfterCallerClose(t *testing.T) {
	t.Parallel()

	var dials atomic.Int32
	server := newNode(t, &fakeEth{chainID: 12101})
	f := NewEVMTransportFactory(loadConfig(t), logger.NewNop(), nil, WithDialFunc(inProcDial(server, &dials)))
	defer f.Close()

	tr, err := f.CreateTransport(context.Background(), nil, quai)
	require.NoError(t, err)
	tr.Close()

	_, err = f.CreateTransport(context.Background(), nil, quai)
	require.NoError(t, err)
	assert.Equal(t, int32(2), dials.Load())
}

func TestFactory_SeparateSenders(t *testing.T) {
	t.Parallel()

	var dials atomic.Int32
	server := newNode(t, &fakeEth{chainID: 12101})
	f := NewEVMTransportFactory(loadConfig(t), logger.NewNop(), nil, WithDialFunc(inProcDial(server, &dials)))
	defer f.Close()

	a, err := f.CreateTransport(context.Background(), newCredential(t), quai)
	require.NoError(t, err)
	b, err := f.CreateTransport(context.Background(), newCredential(t), quai)
	require.NoError(t, err)

	assert.NotEqual(t, a.From(), b.From())
	assert.Equal(t, int32(2), dials.Load())
}

func TestFactory_VerifyChainID(t *testing.T) {
	t.Parallel()

	var dials atomic.Int32
	server := newNode(t, &fakeEth{chainID: 9000})
	cfg := loadConfig(t)
	cfg.Performance.VerifyChainID = true
	f := NewEVMTransportFactory(cfg, logger.NewNop(), nil, WithDialFunc(inProcDial(server, &dials)))
	defer f.Close()

	_, err := f.CreateTransport(context.Background(), nil, quai)
	require.ErrorIs(t, err, ErrChainIDMismatch)
	assert.Contains(t, err.Error(), "9000")
}

func TestFactory_DialError(t *testing.T) {
	t.Parallel()

	refused := errors.New("connection refused")
	m := metrics.New()
	f := NewEVMTransportFactory(loadConfig(t), logger.NewNop(), m, WithDialFunc(func(context.Context, string) (*ethclient.Client, error) {
		return nil, refused
	}))
	defer f.Close()

	_, err := f.CreateTransport(context.Background(), nil, quai)
	require.ErrorIs(t, err, refused)
	assert.Contains(t, err.Error(), "http://127.0.0.1:8610")
	assert.InDelta(t, 1, testutil.ToFloat64(m.TransportDials.WithLabelValues("quaitestnet", metrics.ResultError)), 0)
}

func TestFactory_CloseClosesTransports(t *testing.T) {
	t.Parallel()

	var dials atomic.Int32
	server := newNode(t, &fakeEth{chainID: 12101})
	f := NewEVMTransportFactory(loadConfig(t), logger.NewNop(), nil, WithDialFunc(inProcDial(server, &dials)))

	tr, err := f.CreateTransport(context.Background(), nil, quai)
	require.NoError(t, err)
	f.Close()

	assert.True(t, tr.(*EVMTransport).Closed())
}

// TestFactory_ExpiredTransportClosedBeforeRedial tests that an expired entry the janitor has not swept is closed, not overwritten
func TestFactory_ExpiredTransportClosedBeforeRedial(t *testing.T) {
	t.Parallel()

	var dials atomic.Int32
	server := newNode(t, &fakeEth{chainID: 12101})
	f := NewEVMTransportFactory(loadConfig(t), logger.NewNop(), nil, WithDialFunc(inProcDial(server, &dials)))

	first, err := f.CreateTransport(context.Background(), nil, quai)
	require.NoError(t, err)
	f.transports.Set(transportKey(nil, quai), first, 10*time.Millisecond)
	time.Sleep(50 * time.Millisecond)

	second, err := f.CreateTransport(context.Background(), nil, quai)
	require.NoError(t, err)

	assert.NotSame(t, first, second)
	assert.Equal(t, int32(2), dials.Load())
	assert.True(t, first.(*EVMTransport).Closed())

	f.Close()
	assert.True(t, second.(*EVMTransport).Closed())
}

// TestFactory_CloseSweepsExpiredTransports tests that Close reaches entries that expired without being swept
func TestFactory_CloseSweepsExpiredTransports(t *testing.T) {
	t.Parallel()

	var dials atomic.Int32
	server := newNode(t, &fakeEth{chainID: 12101})
	f := NewEVMTransportFactory(loadConfig(t), logger.NewNop(), nil, WithDialFunc(inProcDial(server, &dials)))

	tr, err := f.CreateTransport(context.Background(), nil, quai)
	require.NoError(t, err)
	f.transports.Set(transportKey(nil, quai), tr, time.Millisecond)
	time.Sleep(10 * time.Millisecond)

	f.Close()
	assert.True(t, tr.(*EVMTransport).Closed())
}

// TestFactory_CacheHitRestartsTTL tests that a transport in use keeps getting its expiry pushed back
func TestFactory_CacheHitRestartsTTL(t *testing.T) {
	t.Parallel()

	var dials atomic.Int32
	server := newNode(t, &fakeEth{chainID: 12101})
	f := NewEVMTransportFactory(loadConfig(t), logger.NewNop(), nil, WithDialFunc(inProcDial(server, &dials)))
	defer f.Close()

	key := transportKey(nil, quai)
	_, err := f.CreateTransport(context.Background(), nil, quai)
	require.NoError(t, err)
	before := f.transports.Items()[key].Expiration

	time.Sleep(5 * time.Millisecond)
	_, err = f.CreateTransport(context.Background(), nil, quai)
	require.NoError(t, err)

	assert.Greater(t, f.transports.Items()[key].Expiration, before)
	assert.Equal(t, int32(1), dials.Load())
}
