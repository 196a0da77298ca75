package market

import (
	"os"
	"path/filepath"
	"testing"
)

func writeCSV(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "candles.csv")
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestLoadCSV(t *testing.T) {
	path := writeCSV(t, "open_time,open,high,low,close,volume\n"+
		"1700000000000,100,105,99,104,1500\n"+
		"1700003600000,104,108,103,107,1800\n")

	candles, err := LoadCSV(path)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if len(candles) != 2 {
		t.Fatalf("expected 2 candles, got %d", len(candles))
	}
	if candles[0].Close != 104 {
		t.Errorf("expected close 104, got %.2f", candles[0].Close)
	}
	if candles[1].CloseTime != candles[1].OpenTime {
		t.Errorf("expected close_time defaulted to open_time")
	}
}

func TestLoadCSVWithCloseTime(t *testing.T) {
	path := writeCSV(t, "1700000000000,100,105,99,104,1500,1700003599999\n")

	candles, err := LoadCSV(path)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if candles[0].CloseTime != 1700003599999 {
		t.Errorf("expected explicit close_time, got %d", candles[0].CloseTime)
	}
}

func TestLoadCSVRejectsBadRow(t *testing.T) {
	path := writeCSV(t, "1700000000000,100,105,99,abc,1500\n")
	if _, err := LoadCSV(path); err == nil {
		t.Error("expected error for non-numeric close")
	}
}

func TestValidateOrdering(t *testing.T) {
	candles := []Candle{
		{OpenTime: 2, Open: 1, High: 1, Low: 1, Close: 1},
		{OpenTime: 1, Open: 1, High: 1, Low: 1, Close: 1},
	}
	if err := Validate(candles); err == nil {
		t.Error("expected error for out-of-order timestamps")
	}
}

func TestValidateRejectsInvertedRange(t *testing.T) {
	candles := []Candle{
		{OpenTime: 1, Open: 1, High: 1, Low: 2, Close: 1},
	}
	if err := Validate(candles); err == nil {
		t.Error("expected error for high below low")
	}
}

func TestValidateEmpty(t *testing.T) {
	if err := Validate(nil); err == nil {
		t.Error("expected error for empty window")
	}
}
