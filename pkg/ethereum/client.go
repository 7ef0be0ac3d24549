// Package ethereum is a minimal RPC health-check client for the EVM
// endpoint an anchor target talks to, kept separate from
// pkg/anchor/evm.go so a node can probe chain reachability at startup
// without building a full transactor.
package ethereum

import (
	"context"
	"fmt"
	"math/big"

	"github.com/ethereum/go-ethereum/ethclient"
)

// Client wraps an ethclient connection for read-only chain-health checks.
type Client struct {
	client  *ethclient.Client
	chainID *big.Int
	url     string
}

// NewClient dials url and returns a Client scoped to chainID.
func NewClient(url string, chainID int64) (*Client, error) {
	client, err := ethclient.Dial(url)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to Ethereum: %w", err)
	}
	return &Client{client: client, chainID: big.NewInt(chainID), url: url}, nil
}

// Health confirms the RPC endpoint answers eth_blockNumber.
func (c *Client) Health(ctx context.Context) error {
	if _, err := c.client.BlockNumber(ctx); err != nil {
		return fmt.Errorf("ethereum health check failed: %w", err)
	}
	return nil
}

// LatestBlockNumber returns the current chain head.
func (c *Client) LatestBlockNumber(ctx context.Context) (uint64, error) {
	return c.client.BlockNumber(ctx)
}

// ChainID returns the chain id this client was configured for.
func (c *Client) ChainID() *big.Int {
	return c.chainID
}

// URL returns the RPC endpoint this client was dialed against.
func (c *Client) URL() string {
	return c.url
}
