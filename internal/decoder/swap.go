// Package decoder turns raw Uniswap-v3-style Swap logs into domain events.
package decoder

import (
	"encoding/hex"
	"fmt"
	"math/big"
	"strings"

	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"

	"dex-exec-lab/internal/chain"
	"dex-exec-lab/internal/domain"
)

// SwapSignature is the canonical event signature.
const SwapSignature = "Swap(address,address,int256,int256,uint160,uint128,int24)"

// SwapTopic is keccak256(SwapSignature), the topic0 of every Swap log.
var SwapTopic = crypto.Keccak256Hash([]byte(SwapSignature))

// PayloadSize is the ABI-encoded size of the non-indexed Swap fields.
const PayloadSize = 5 * 32

var swapArgs = abi.Arguments{
	{Name: "amount0", Type: mustType("int256")},
	{Name: "amount1", Type: mustType("int256")},
	{Name: "sqrtPriceX96", Type: mustType("uint160")},
	{Name: "liquidity", Type: mustType("uint128")},
	{Name: "tick", Type: mustType("int24")},
}

func mustType(t string) abi.Type {
	typ, err := abi.NewType(t, "", nil)
	if err != nil {
		panic(fmt.Sprintf("abi type %s: %v", t, err))
	}
	return typ
}

// SwapFilter returns the topic filter selecting Swap logs.
func SwapFilter() [][]common.Hash {
	return [][]common.Hash{{SwapTopic}}
}

// DecodeSwap decodes one raw log into a SwapEvent for venue.
// BlockTimestamp is left zero; the caller resolves it.
func DecodeSwap(venue string, lg chain.RawLog) (*domain.SwapEvent, error) {
	fail := func(reason string, err error) error {
		return &DecodeError{Block: lg.BlockNumber, LogIndex: lg.Index, Reason: reason, Err: err}
	}

	if len(lg.Topics) < 3 {
		return nil, fail(fmt.Sprintf("expected 3 topics, got %d", len(lg.Topics)), nil)
	}
	if lg.Topics[0] != SwapTopic {
		return nil, fail("unexpected event signature "+lg.Topics[0].Hex(), nil)
	}
	if len(lg.Data) == 0 {
		return nil, fail("payload", ErrEmptyPayload)
	}
	if len(lg.Data) != PayloadSize {
		return nil, fail(fmt.Sprintf("payload length %d, want %d", len(lg.Data), PayloadSize), nil)
	}

	values, err := swapArgs.Unpack(lg.Data)
	if err != nil {
		return nil, fail("abi unpack", err)
	}

	ints := make([]*big.Int, len(values))
	for i, v := range values {
		n, ok := v.(*big.Int)
		if !ok {
			return nil, fail(fmt.Sprintf("field %s has type %T", swapArgs[i].Name, v), nil)
		}
		ints[i] = n
	}

	return &domain.SwapEvent{
		Venue:        venue,
		Pool:         lg.Address.Hex(),
		BlockNumber:  lg.BlockNumber,
		LogIndex:     lg.Index,
		TxHash:       lg.TxHash.Hex(),
		Sender:       topicAddress(lg.Topics[1]).Hex(),
		Recipient:    topicAddress(lg.Topics[2]).Hex(),
		Amount0:      ints[0],
		Amount1:      ints[1],
		SqrtPriceX96: ints[2],
		Liquidity:    ints[3],
		Tick:         int32(ints[4].Int64()),
	}, nil
}

// topicAddress takes the low-order 20 bytes of an indexed address topic.
func topicAddress(h common.Hash) common.Address {
	return common.BytesToAddress(h.Bytes())
}

// NormalizeHexPayload decodes a recorded hex payload. A leading 0x is optional
// and an odd nibble count is left-padded with a zero.
func NormalizeHexPayload(s string) ([]byte, error) {
	s = strings.TrimSpace(s)
	if strings.HasPrefix(s, "0x") || strings.HasPrefix(s, "0X") {
		s = s[2:]
	}
	if s == "" {
		return nil, ErrEmptyPayload
	}
	if len(s)%2 == 1 {
		s = "0" + s
	}

	b, err := hex.DecodeString(s)
	if err != nil {
		return nil, fmt.Errorf("decode hex payload: %w", err)
	}
	return b, nil
}

// DecodeSwaps decodes a batch, skipping records that fail.
// The returned errors are all *DecodeError, in input order.
func DecodeSwaps(venue string, logs []chain.RawLog) ([]*domain.SwapEvent, []error) {
	events := make([]*domain.SwapEvent, 0, len(logs))
	var errs []error
	for _, lg := range logs {
		ev, err := DecodeSwap(venue, lg)
		if err != nil {
			errs = append(errs, err)
			continue
		}
		events = append(events, ev)
	}
	return events, errs
}

// PackSwapData ABI-encodes the non-indexed Swap fields.
func PackSwapData(amount0, amount1, sqrtPriceX96, liquidity *big.Int, tick int32) ([]byte, error) {
	return swapArgs.Pack(amount0, amount1, sqrtPriceX96, liquidity, big.NewInt(int64(tick)))
}

// AddressTopic right-aligns an address into a 32-byte topic.
func AddressTopic(a common.Address) common.Hash {
	return common.BytesToHash(a.Bytes())
}
