package nodeprobe

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"sync/atomic"
	"time"

	"deploy_networks/internal/domain/entity"

	"github.com/ethereum/go-ethereum/common/hexutil"
	jsoniter "github.com/json-iterator/go"
	"github.com/valyala/fasthttp"
	"go.uber.org/zap"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

// ErrUnsupportedScheme is returned for endpoints that cannot be probed over plain HTTP.
var ErrUnsupportedScheme = errors.New("only http and https endpoints can be probed")

type rpcRequest struct {
	JSONRPC string        `json:"jsonrpc"`
	ID      uint64        `json:"id"`
	Method  string        `json:"method"`
	Params  []interface{} `json:"params"`
}

type rpcError struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
}

type rpcResponse struct {
	ID     uint64    `json:"id"`
	Result string    `json:"result"`
	Error  *rpcError `json:"error"`
}

// Prober asks a node which network it serves, over plain JSON-RPC.
type Prober struct {
	client  *fasthttp.Client
	timeout time.Duration
	logger  *zap.Logger
	nextID  atomic.Uint64
}

// NewProber creates a Prober. timeout applies when the context has no deadline.
func NewProber(timeout time.Duration, logger *zap.Logger) *Prober {
	return &Prober{
		client:  &fasthttp.Client{Name: "deploy_networks"},
		timeout: timeout,
		logger:  logger.Named("NodeProber"),
	}
}

// Probe calls net_version and eth_chainId on endpoint.
func (p *Prober) Probe(ctx context.Context, endpoint string) (entity.ProbeResult, error) {
	result := entity.ProbeResult{Endpoint: endpoint}
	if !strings.HasPrefix(endpoint, "http://") && !strings.HasPrefix(endpoint, "https://") {
		return result, fmt.Errorf("failed to probe %s: %w", endpoint, ErrUnsupportedScheme)
	}

	start := time.Now()

	version, err := p.call(ctx, endpoint, "net_version")
	if err != nil {
		return result, err
	}
	result.NetworkID, err = strconv.ParseUint(version, 10, 64)
	if err != nil {
		return result, fmt.Errorf("node at %s returned malformed net_version %q: %w", endpoint, version, err)
	}

	chainID, err := p.call(ctx, endpoint, "eth_chainId")
	if err != nil {
		return result, err
	}
	result.ChainID, err = hexutil.DecodeUint64(chainID)
	if err != nil {
		return result, fmt.Errorf("node at %s returned malformed eth_chainId %q: %w", endpoint, chainID, err)
	}

	result.Latency = time.Since(start)
	p.logger.Debug("Node probed",
		zap.String("endpoint", endpoint),
		zap.Uint64("networkId", result.NetworkID),
		zap.Uint64("chainId", result.ChainID),
		zap.Duration("latency", result.Latency))
	return result, nil
}

func (p *Prober) call(ctx context.Context, endpoint, method string) (string, error) {
	body, err := json.Marshal(rpcRequest{JSONRPC: "2.0", ID: p.nextID.Add(1), Method: method, Params: []interface{}{}})
	if err != nil {
		return "", fmt.Errorf("failed to encode %s request: %w", method, err)
	}

	req := fasthttp.AcquireRequest()
	defer fasthttp.ReleaseRequest(req)
	req.SetRequestURI(endpoint)
	req.Header.SetMethod(fasthttp.MethodPost)
	req.Header.SetContentTypeBytes([]byte("application/json"))
	req.SetBody(body)

	resp := fasthttp.AcquireResponse()
	defer fasthttp.ReleaseResponse(resp)

	if deadline, ok := ctx.Deadline(); ok {
		err = p.client.DoDeadline(req, resp, deadline)
	} else {
		err = p.client.DoTimeout(req, resp, p.timeout)
	}
	if err != nil {
		p.logger.Warn("Failed to reach node", zap.String("endpoint", endpoint), zap.String("method", method), zap.Error(err))
		return "", fmt.Errorf("failed to call %s on %s: %w", method, endpoint, err)
	}

	if resp.StatusCode() != fasthttp.StatusOK {
		return "", fmt.Errorf("%s on %s returned HTTP status %d", method, endpoint, resp.StatusCode())
	}

	var decoded rpcResponse
	if err := json.Unmarshal(resp.Body(), &decoded); err != nil {
		return "", fmt.Errorf("failed to decode %s response from %s: %w", method, endpoint, err)
	}
	if decoded.Error != nil {
		return "", fmt.Errorf("%s on %s failed: %s (code %d)", method, endpoint, decoded.Error.Message, decoded.Error.Code)
	}
	return decoded.Result, nil
}
