package market

import (
	"encoding/csv"
	"fmt"
	"os"
	"strconv"
	"strings"
)

// LoadCSV reads candles from a CSV file with columns:
// open_time,open,high,low,close,volume[,close_time]
// A header row is skipped when the first field is not numeric.
func LoadCSV(path string) ([]Candle, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open candles file: %w", err)
	}
	defer f.Close()

	reader := csv.NewReader(f)
	reader.FieldsPerRecord = -1
	records, err := reader.ReadAll()
	if err != nil {
		return nil, fmt.Errorf("read candles file: %w", err)
	}

	candles := make([]Candle, 0, len(records))
	for i, rec := range records {
		if len(rec) < 6 {
			return nil, fmt.Errorf("row %d: expected at least 6 columns, got %d", i+1, len(rec))
		}
		if _, err := strconv.ParseInt(strings.TrimSpace(rec[0]), 10, 64); err != nil {
			if i == 0 {
				continue // header row
			}
			return nil, fmt.Errorf("row %d: bad open_time %q", i+1, rec[0])
		}
		c, err := parseRow(rec)
		if err != nil {
			return nil, fmt.Errorf("row %d: %w", i+1, err)
		}
		candles = append(candles, c)
	}

	if err := Validate(candles); err != nil {
		return nil, fmt.Errorf("invalid candle data: %w", err)
	}
	return candles, nil
}

func parseRow(rec []string) (Candle, error) {
	var c Candle
	var err error
	if c.OpenTime, err = strconv.ParseInt(strings.TrimSpace(rec[0]), 10, 64); err != nil {
		return c, fmt.Errorf("open_time: %w", err)
	}
	fields := []*float64{&c.Open, &c.High, &c.Low, &c.Close, &c.Volume}
	names := []string{"open", "high", "low", "close", "volume"}
	for i, dst := range fields {
		if *dst, err = strconv.ParseFloat(strings.TrimSpace(rec[i+1]), 64); err != nil {
			return c, fmt.Errorf("%s: %w", names[i], err)
		}
	}
	if len(rec) >= 7 {
		if c.CloseTime, err = strconv.ParseInt(strings.TrimSpace(rec[6]), 10, 64); err != nil {
			return c, fmt.Errorf("close_time: %w", err)
		}
	} else {
		c.CloseTime = c.OpenTime
	}
	return c, nil
}
