package simulator

import (
	"encoding/csv"
	"encoding/json"
	"fmt"
	"io"
	"strconv"
	"time"

	"perpmm/pkg/types"
)

// jsonBar mirrors one element of the JSON bar file format from spec §6:
// {timestamp?, open, high, low, close, volume, bidDepth?, askDepth?}.
type jsonBar struct {
	Timestamp *int64  `json:"timestamp"`
	Open      float64 `json:"open"`
	High      float64 `json:"high"`
	Low       float64 `json:"low"`
	Close     float64 `json:"close"`
	Volume    float64 `json:"volume"`
	BidDepth  float64 `json:"bidDepth"`
	AskDepth  float64 `json:"askDepth"`
}

// LoadJSON parses a JSON array of bar objects.
func LoadJSON(r io.Reader) ([]types.HistoricalBar, error) {
	var raw []jsonBar
	if err := json.NewDecoder(r).Decode(&raw); err != nil {
		return nil, fmt.Errorf("decode bar json: %w", err)
	}

	bars := make([]types.HistoricalBar, 0, len(raw))
	for _, b := range raw {
		ts := time.Now()
		if b.Timestamp != nil {
			ts = time.UnixMilli(*b.Timestamp)
		}
		bars = append(bars, withDefaultDepth(types.HistoricalBar{
			Timestamp: ts,
			Open:      b.Open,
			High:      b.High,
			Low:       b.Low,
			Close:     b.Close,
			Volume:    b.Volume,
			BidDepth:  b.BidDepth,
			AskDepth:  b.AskDepth,
		}))
	}
	return bars, nil
}

// LoadCSV parses a CSV file with a header row naming columns among
// timestamp, open, high, low, close, volume, bidDepth, askDepth. Missing
// optional columns use their documented defaults.
func LoadCSV(r io.Reader) ([]types.HistoricalBar, error) {
	reader := csv.NewReader(r)
	reader.FieldsPerRecord = -1

	header, err := reader.Read()
	if err != nil {
		return nil, fmt.Errorf("read csv header: %w", err)
	}
	col := make(map[string]int, len(header))
	for i, name := range header {
		col[name] = i
	}

	var bars []types.HistoricalBar
	for {
		record, err := reader.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("read csv row: %w", err)
		}

		bar := types.HistoricalBar{Timestamp: time.Now()}
		if i, ok := col["timestamp"]; ok && i < len(record) {
			if ms, err := strconv.ParseInt(record[i], 10, 64); err == nil {
				bar.Timestamp = time.UnixMilli(ms)
			}
		}
		bar.Open = csvFloat(record, col, "open")
		bar.High = csvFloat(record, col, "high")
		bar.Low = csvFloat(record, col, "low")
		bar.Close = csvFloat(record, col, "close")
		bar.Volume = csvFloat(record, col, "volume")
		bar.BidDepth = csvFloat(record, col, "bidDepth")
		bar.AskDepth = csvFloat(record, col, "askDepth")

		bars = append(bars, withDefaultDepth(bar))
	}
	return bars, nil
}

func csvFloat(record []string, col map[string]int, name string) float64 {
	i, ok := col[name]
	if !ok || i >= len(record) {
		return 0
	}
	v, err := strconv.ParseFloat(record[i], 64)
	if err != nil {
		return 0
	}
	return v
}

// withDefaultDepth applies spec §4.10's "missing bidDepth/askDepth default
// to 50" rule.
func withDefaultDepth(b types.HistoricalBar) types.HistoricalBar {
	if b.BidDepth == 0 {
		b.BidDepth = 50
	}
	if b.AskDepth == 0 {
		b.AskDepth = 50
	}
	return b
}
