package ethrpc

import (
	"context"
	"errors"
	"fmt"
	"math/big"
	"strings"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
)

// ErrPoolNotFound is returned when the factory has no pool for the pair and fee tier.
var ErrPoolNotFound = errors.New("pool not found")

const factoryABIJSON = `[{
	"inputs": [
		{"internalType": "address", "name": "tokenA", "type": "address"},
		{"internalType": "address", "name": "tokenB", "type": "address"},
		{"internalType": "uint24", "name": "fee", "type": "uint24"}
	],
	"name": "getPool",
	"outputs": [{"internalType": "address", "name": "pool", "type": "address"}],
	"stateMutability": "view",
	"type": "function"
}]`

var factoryABI = mustParseABI(factoryABIJSON)

func mustParseABI(s string) abi.ABI {
	parsed, err := abi.JSON(strings.NewReader(s))
	if err != nil {
		panic(fmt.Sprintf("parse factory abi: %v", err))
	}
	return parsed
}

// GetPool calls Factory.getPool(tokenA, tokenB, fee). Token order does not matter.
func (c *Client) GetPool(ctx context.Context, factory, tokenA, tokenB common.Address, fee uint32) (common.Address, error) {
	input, err := factoryABI.Pack("getPool", tokenA, tokenB, new(big.Int).SetUint64(uint64(fee)))
	if err != nil {
		return common.Address{}, fmt.Errorf("pack getPool: %w", err)
	}

	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	out, err := c.eth.CallContract(ctx, ethereum.CallMsg{To: &factory, Data: input}, nil)
	if err != nil {
		return common.Address{}, fmt.Errorf("call getPool: %w", err)
	}

	values, err := factoryABI.Unpack("getPool", out)
	if err != nil {
		return common.Address{}, fmt.Errorf("unpack getPool: %w", err)
	}
	if len(values) != 1 {
		return common.Address{}, fmt.Errorf("unpack getPool: expected 1 value, got %d", len(values))
	}

	pool, ok := values[0].(common.Address)
	if !ok {
		return common.Address{}, fmt.Errorf("unpack getPool: unexpected type %T", values[0])
	}
	if pool == (common.Address{}) {
		return common.Address{}, fmt.Errorf("fee %d: %w", fee, ErrPoolNotFound)
	}
	return pool, nil
}
