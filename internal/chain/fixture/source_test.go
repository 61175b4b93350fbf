package fixture

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/ethereum/go-ethereum/common"

	"dex-exec-lab/internal/decoder"
)

const pool = "0xC6962004f452bE9203591991D15f6b388e09E8D0"

func TestLoad_ServesRangeAndTimestamps(t *testing.T) {
	topic := decoder.SwapTopic.Hex()
	input := strings.Join([]string{
		`# recorded swaps`,
		`{"address":"` + pool + `","topics":["` + topic + `"],"data":"0xabc","blockNumber":12,"logIndex":1,"blockTimestamp":1700000012}`,
		`{"address":"` + pool + `","topics":["` + topic + `"],"data":"ff","blockNumber":10,"logIndex":0,"blockTimestamp":1700000010}`,
		`{"address":"0x0000000000000000000000000000000000000001","topics":["` + topic + `"],"data":"0x01","blockNumber":11,"logIndex":0}`,
		``,
	}, "\n")

	src, err := Load(strings.NewReader(input))
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if src.Len() != 3 {
		t.Fatalf("expected 3 logs, got %d", src.Len())
	}

	first, last, ok := src.BlockRange()
	if !ok || first != 10 || last != 12 {
		t.Errorf("unexpected block range %d-%d (%v)", first, last, ok)
	}

	ctx := context.Background()
	logs, err := src.GetLogs(ctx, common.HexToAddress(pool), decoder.SwapFilter(), 10, 12)
	if err != nil {
		t.Fatalf("GetLogs: %v", err)
	}
	if len(logs) != 2 {
		t.Fatalf("expected 2 logs for pool, got %d", len(logs))
	}
	if logs[0].BlockNumber != 10 || logs[1].BlockNumber != 12 {
		t.Errorf("logs not ordered: %d, %d", logs[0].BlockNumber, logs[1].BlockNumber)
	}
	if len(logs[1].Data) != 2 || logs[1].Data[0] != 0x0a || logs[1].Data[1] != 0xbc {
		t.Errorf("odd nibble payload not normalised: %x", logs[1].Data)
	}

	logs, err = src.GetLogs(ctx, common.HexToAddress(pool), nil, 11, 11)
	if err != nil {
		t.Fatalf("GetLogs: %v", err)
	}
	if len(logs) != 0 {
		t.Errorf("expected empty range, got %d logs", len(logs))
	}

	ts, err := src.GetBlockTimestamp(ctx, 12)
	if err != nil || ts != 1700000012 {
		t.Errorf("GetBlockTimestamp(12) = %d, %v", ts, err)
	}
	if _, err := src.GetBlockTimestamp(ctx, 11); !errors.Is(err, ErrNoTimestamp) {
		t.Errorf("expected ErrNoTimestamp, got %v", err)
	}
}

func TestLoad_BadLine(t *testing.T) {
	_, err := Load(strings.NewReader("{not json}\n"))
	if err == nil {
		t.Fatal("expected error for malformed line")
	}
}
