// Package ethrpc implements chain.LogSource over JSON-RPC using go-ethereum.
package ethrpc

import (
	"context"
	"fmt"
	"math/big"
	"time"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/ethereum/go-ethereum/ethclient"
	"github.com/ethereum/go-ethereum/rpc"

	"dex-exec-lab/internal/chain"
)

// DefaultTimeout bounds a single RPC round trip.
const DefaultTimeout = 60 * time.Second

// Client implements chain.LogSource on top of ethclient.
type Client struct {
	rpc     *rpc.Client
	eth     *ethclient.Client
	timeout time.Duration
}

// ClientOption configures Client.
type ClientOption func(*Client)

// WithTimeout sets the per-call timeout.
func WithTimeout(d time.Duration) ClientOption {
	return func(c *Client) {
		c.timeout = d
	}
}

// Dial connects to an HTTP or WebSocket JSON-RPC endpoint.
func Dial(ctx context.Context, endpoint string, opts ...ClientOption) (*Client, error) {
	rc, err := rpc.DialContext(ctx, endpoint)
	if err != nil {
		return nil, fmt.Errorf("dial rpc %s: %w", endpoint, err)
	}

	c := &Client{
		rpc:     rc,
		eth:     ethclient.NewClient(rc),
		timeout: DefaultTimeout,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c, nil
}

// Close releases the underlying connection.
func (c *Client) Close() {
	c.eth.Close()
}

// Compile-time interface check.
var _ chain.LogSource = (*Client)(nil)

// ChainID returns the connected chain's id.
func (c *Client) ChainID(ctx context.Context) (*big.Int, error) {
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	id, err := c.eth.ChainID(ctx)
	if err != nil {
		return nil, fmt.Errorf("eth_chainId: %w", err)
	}
	return id, nil
}

// BlockNumber returns the latest block height.
func (c *Client) BlockNumber(ctx context.Context) (uint64, error) {
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	n, err := c.eth.BlockNumber(ctx)
	if err != nil {
		return 0, fmt.Errorf("eth_blockNumber: %w", err)
	}
	return n, nil
}

// GetLogs runs eth_getLogs for a single pool address.
func (c *Client) GetLogs(ctx context.Context, pool common.Address, topics [][]common.Hash, from, to uint64) ([]chain.RawLog, error) {
	if to < from {
		return nil, fmt.Errorf("eth_getLogs: invalid range %d-%d", from, to)
	}

	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	q := ethereum.FilterQuery{
		FromBlock: new(big.Int).SetUint64(from),
		ToBlock:   new(big.Int).SetUint64(to),
		Addresses: []common.Address{pool},
		Topics:    topics,
	}

	logs, err := c.eth.FilterLogs(ctx, q)
	if err != nil {
		return nil, fmt.Errorf("eth_getLogs %d-%d: %w", from, to, err)
	}
	return logs, nil
}

// blockTime is the subset of an eth_getBlockByNumber result we need.
// L2 headers carry extra fields that a full types.Header decode may reject.
type blockTime struct {
	Number    hexutil.Uint64 `json:"number"`
	Timestamp hexutil.Uint64 `json:"timestamp"`
}

// GetBlockTimestamp resolves a block number to its timestamp.
func (c *Client) GetBlockTimestamp(ctx context.Context, block uint64) (int64, error) {
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	var head *blockTime
	err := c.rpc.CallContext(ctx, &head, "eth_getBlockByNumber", hexutil.EncodeUint64(block), false)
	if err != nil {
		return 0, fmt.Errorf("eth_getBlockByNumber %d: %w", block, err)
	}
	if head == nil {
		return 0, fmt.Errorf("eth_getBlockByNumber %d: %w", block, ethereum.NotFound)
	}
	return int64(head.Timestamp), nil
}
