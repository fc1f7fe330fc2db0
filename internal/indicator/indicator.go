// Package indicator computes the derived technical values the scanner
// and monitor evaluate against the minute-bar ring (spec §4.2 "Indicators
// computed on demand from the ring"), grounded on the go-talib usage in
// aristath-sentinel's pkg/formulas (rsi.go, ema.go) and its gonum-based
// stats.go for mean/stddev-shaped helpers.
package indicator

import (
	"github.com/markcheno/go-talib"
	"gonum.org/v1/gonum/stat"
)

// RSI returns the 14-period (or length-period) Relative Strength Index
// for the most recent close in closes, or nil if there isn't enough
// history.
func RSI(closes []float64, length int) *float64 {
	if len(closes) < length+1 {
		return nil
	}
	vals := talib.Rsi(closes, length)
	return lastValid(vals)
}

// SMA returns the simple moving average of the last length closes.
func SMA(closes []float64, length int) *float64 {
	if len(closes) < length {
		return nil
	}
	vals := talib.Sma(closes, length)
	return lastValid(vals)
}

// ATR returns the 14-period (or length-period) Average True Range.
func ATR(highs, lows, closes []float64, length int) *float64 {
	if len(closes) < length+1 {
		return nil
	}
	vals := talib.Atr(highs, lows, closes, length)
	return lastValid(vals)
}

// VWAP computes the volume-weighted average price over the supplied
// closes/volumes (typically the current session's bars). Unlike the
// go-talib moving averages, VWAP has no direct talib equivalent, so it is
// computed directly — the same "derive it by hand when talib has no
// primitive" pattern aristath-sentinel uses for its non-talib formulas.
func VWAP(closes, volumes []float64) *float64 {
	if len(closes) == 0 || len(closes) != len(volumes) {
		return nil
	}
	var pv, v float64
	for i := range closes {
		pv += closes[i] * volumes[i]
		v += volumes[i]
	}
	if v == 0 {
		return nil
	}
	result := pv / v
	return &result
}

// VolumeRatio compares the most recent volume to the mean of the
// preceding `lookback` bars (spec §4.2 "volume ratio vs. 20-bar mean").
func VolumeRatio(volumes []float64, lookback int) *float64 {
	if len(volumes) < lookback+1 {
		return nil
	}
	window := volumes[len(volumes)-lookback-1 : len(volumes)-1]
	mean := stat.Mean(window, nil)
	if mean == 0 {
		return nil
	}
	result := volumes[len(volumes)-1] / mean
	return &result
}

func lastValid(vals []float64) *float64 {
	if len(vals) == 0 {
		return nil
	}
	v := vals[len(vals)-1]
	if v != v { // NaN
		return nil
	}
	return &v
}
