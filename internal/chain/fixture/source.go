// Package fixture serves recorded logs from a JSON-lines file.
//
// Each line is one log record:
//
//	{"address":"0x..","topics":["0x.."],"data":"0x..","blockNumber":1,"logIndex":0,
//	 "transactionHash":"0x..","blockTimestamp":1700000000}
//
// Payloads go through decoder.NormalizeHexPayload, so recordings with a
// missing 0x prefix or an odd nibble count are accepted.
package fixture

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"sort"
	"strings"

	"github.com/ethereum/go-ethereum/common"

	"dex-exec-lab/internal/chain"
	"dex-exec-lab/internal/decoder"
)

// ErrNoTimestamp is returned for blocks absent from the recording.
var ErrNoTimestamp = errors.New("block timestamp not recorded")

type record struct {
	Address         string   `json:"address"`
	Topics          []string `json:"topics"`
	Data            string   `json:"data"`
	BlockNumber     uint64   `json:"blockNumber"`
	LogIndex        uint     `json:"logIndex"`
	TransactionHash string   `json:"transactionHash"`
	BlockTimestamp  int64    `json:"blockTimestamp"`
}

// Source implements chain.LogSource over an in-memory recording.
type Source struct {
	logs       []chain.RawLog
	timestamps map[uint64]int64
}

var _ chain.LogSource = (*Source)(nil)

// Open loads a recording from path.
func Open(path string) (*Source, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open fixture: %w", err)
	}
	defer f.Close()

	return Load(f)
}

// Load reads a recording from r. Payloads that do not normalise are kept as
// empty data so the decoder reports them per record.
func Load(r io.Reader) (*Source, error) {
	s := &Source{timestamps: make(map[uint64]int64)}

	sc := bufio.NewScanner(r)
	sc.Buffer(make([]byte, 64*1024), 4*1024*1024)

	line := 0
	for sc.Scan() {
		line++
		text := strings.TrimSpace(sc.Text())
		if text == "" || strings.HasPrefix(text, "#") {
			continue
		}

		var rec record
		if err := json.Unmarshal([]byte(text), &rec); err != nil {
			return nil, fmt.Errorf("fixture line %d: %w", line, err)
		}

		lg := chain.RawLog{
			Address:     common.HexToAddress(rec.Address),
			BlockNumber: rec.BlockNumber,
			Index:       rec.LogIndex,
			TxHash:      common.HexToHash(rec.TransactionHash),
		}
		for _, t := range rec.Topics {
			lg.Topics = append(lg.Topics, common.HexToHash(t))
		}
		if data, err := decoder.NormalizeHexPayload(rec.Data); err == nil {
			lg.Data = data
		}

		s.logs = append(s.logs, lg)
		if rec.BlockTimestamp != 0 {
			s.timestamps[rec.BlockNumber] = rec.BlockTimestamp
		}
	}
	if err := sc.Err(); err != nil {
		return nil, fmt.Errorf("read fixture: %w", err)
	}

	sort.SliceStable(s.logs, func(i, j int) bool {
		if s.logs[i].BlockNumber != s.logs[j].BlockNumber {
			return s.logs[i].BlockNumber < s.logs[j].BlockNumber
		}
		return s.logs[i].Index < s.logs[j].Index
	})
	return s, nil
}

// Len returns the number of recorded logs.
func (s *Source) Len() int {
	return len(s.logs)
}

// BlockRange returns the first and last recorded block.
func (s *Source) BlockRange() (uint64, uint64, bool) {
	if len(s.logs) == 0 {
		return 0, 0, false
	}
	return s.logs[0].BlockNumber, s.logs[len(s.logs)-1].BlockNumber, true
}

// GetLogs returns recorded logs of pool in [from, to] matching topic0.
func (s *Source) GetLogs(ctx context.Context, pool common.Address, topics [][]common.Hash, from, to uint64) ([]chain.RawLog, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if to < from {
		return nil, fmt.Errorf("invalid range %d-%d", from, to)
	}

	start := sort.Search(len(s.logs), func(i int) bool {
		return s.logs[i].BlockNumber >= from
	})

	var out []chain.RawLog
	for i := start; i < len(s.logs) && s.logs[i].BlockNumber <= to; i++ {
		lg := s.logs[i]
		if lg.Address != pool || !topicMatches(lg, topics) {
			continue
		}
		out = append(out, lg)
	}
	return out, nil
}

// GetBlockTimestamp returns the recorded timestamp of block.
func (s *Source) GetBlockTimestamp(ctx context.Context, block uint64) (int64, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}
	ts, ok := s.timestamps[block]
	if !ok {
		return 0, fmt.Errorf("block %d: %w", block, ErrNoTimestamp)
	}
	return ts, nil
}

func topicMatches(lg chain.RawLog, topics [][]common.Hash) bool {
	if len(topics) == 0 || len(topics[0]) == 0 {
		return true
	}
	if len(lg.Topics) == 0 {
		return false
	}
	for _, want := range topics[0] {
		if lg.Topics[0] == want {
			return true
		}
	}
	return false
}
