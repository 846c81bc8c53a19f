// Package report loads the periodically generated trading summary shown on the home page.
package report

import (
	"errors"
	"fmt"
	"os"
	"sort"
	"time"

	jsoniter "github.com/json-iterator/go"
	"github.com/sirupsen/logrus"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

// ErrNoReport is returned when no report has been generated yet
var ErrNoReport = errors.New("no trading report available")

// MarketAsset is one monitored ticker in the market snapshot
type MarketAsset struct {
	Name              string  `json:"name"`
	Price             float64 `json:"price"`
	OpenInterestUSD   float64 `json:"open_interest_usd"`
	FundingRateHourly float64 `json:"funding_rate_hourly"`
	MaxLeverage       float64 `json:"max_leverage"`
	Volume24hUSD      float64 `json:"volume_24h_usd"`
}

// Position is an open position of a tracked trader
type Position struct {
	Coin             string  `json:"coin"`
	Side             string  `json:"side"`
	SizeTokens       float64 `json:"size_tokens"`
	PositionValueUSD float64 `json:"position_value_usd"`
	EntryPrice       float64 `json:"entry_price"`
	UnrealizedPnLUSD float64 `json:"unrealized_pnl_usd"`
	Leverage         float64 `json:"leverage"`
}

// Fill is a recent trade of a tracked trader
type Fill struct {
	Coin          string  `json:"coin"`
	Side          string  `json:"side"`
	SizeTokens    float64 `json:"size_tokens"`
	Price         float64 `json:"price"`
	ValueUSD      float64 `json:"value_usd"`
	Time          string  `json:"time"`
	IsLiquidation bool    `json:"is_liquidation"`
}

// Trader is the snapshot of one tracked trader
type Trader struct {
	Address            string     `json:"address"`
	OpenPositions      []Position `json:"open_positions"`
	RecentFills        []Fill     `json:"recent_fills"`
	TotalUnrealizedPnL float64    `json:"total_unrealized_pnl"`
	Timestamp          string     `json:"timestamp"`
	Error              string     `json:"error,omitempty"`
}

// Report is the consolidated report written by the report job
type Report struct {
	LastUpdatedUTC            string                 `json:"last_updated_utc"`
	MarketSnapshot            map[string]MarketAsset `json:"market_snapshot"`
	TopTraders                []Trader               `json:"top_traders_snapshot"`
	AISummaryMarkdown         string                 `json:"ai_summary_markdown"`
	GenerationDurationSeconds float64                `json:"generation_duration_seconds"`
}

// LastUpdated parses LastUpdatedUTC. The zero time means unknown.
func (r *Report) LastUpdated() time.Time {
	t, err := time.Parse(time.RFC3339Nano, r.LastUpdatedUTC)
	if err != nil {
		return time.Time{}
	}
	return t
}

// Markets returns the market snapshot ordered by ticker name
func (r *Report) Markets() []MarketAsset {
	out := make([]MarketAsset, 0, len(r.MarketSnapshot))
	for name, m := range r.MarketSnapshot {
		if m.Name == "" {
			m.Name = name
		}
		out = append(out, m)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}

// Load reads the report at path. A missing or empty path yields ErrNoReport.
func Load(path string) (*Report, error) {
	if path == "" {
		return nil, ErrNoReport
	}

	data, err := os.ReadFile(path)
	if errors.Is(err, os.ErrNotExist) {
		return nil, ErrNoReport
	}
	if err != nil {
		return nil, fmt.Errorf("read report %s: %w", path, err)
	}

	var r Report
	if err := json.Unmarshal(data, &r); err != nil {
		return nil, fmt.Errorf("decode report %s: %w", path, err)
	}
	return &r, nil
}

// Source serves the report from a file. The report job rewrites the file in place, so
// every call rereads it.
type Source struct {
	path string
}

// NewSource creates a source for path
func NewSource(path string) *Source {
	return &Source{path: path}
}

// Current returns the latest report, or nil when none can be shown.
// Failures are logged; the page falls back to placeholder copy.
func (s *Source) Current() *Report {
	r, err := Load(s.path)
	switch {
	case errors.Is(err, ErrNoReport):
		return nil
	case err != nil:
		logrus.WithError(err).Warn("Trading report unavailable, showing placeholder")
		return nil
	}
	return r
}
