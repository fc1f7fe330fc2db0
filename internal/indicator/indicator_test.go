package indicator

import "testing"

func TestSMA(t *testing.T) {
	closes := []float64{1, 2, 3, 4, 5}
	got := SMA(closes, 5)
	if got == nil || *got != 3 {
		t.Fatalf("SMA = %v, want 3", got)
	}
	if SMA(closes, 6) != nil {
		t.Fatal("insufficient history must yield nil")
	}
}

func TestRSIDirection(t *testing.T) {
	up := make([]float64, 30)
	down := make([]float64, 30)
	for i := range up {
		up[i] = 100 + float64(i)
		down[i] = 100 - float64(i)
	}
	rsiUp := RSI(up, 14)
	rsiDown := RSI(down, 14)
	if rsiUp == nil || rsiDown == nil {
		t.Fatal("RSI should be computable with 30 bars")
	}
	if *rsiUp <= 70 {
		t.Errorf("monotonic rise RSI = %v, want > 70", *rsiUp)
	}
	if *rsiDown >= 30 {
		t.Errorf("monotonic fall RSI = %v, want < 30", *rsiDown)
	}
	if RSI(up[:14], 14) != nil {
		t.Fatal("RSI needs length+1 samples")
	}
}

func TestVWAP(t *testing.T) {
	closes := []float64{100, 200}
	volumes := []float64{1, 3}
	got := VWAP(closes, volumes)
	if got == nil || *got != 175 {
		t.Fatalf("VWAP = %v, want 175", got)
	}
	if VWAP(closes, []float64{0, 0}) != nil {
		t.Fatal("zero total volume must yield nil")
	}
	if VWAP(closes, volumes[:1]) != nil {
		t.Fatal("mismatched lengths must yield nil")
	}
}

func TestVolumeRatio(t *testing.T) {
	volumes := make([]float64, 21)
	for i := range volumes {
		volumes[i] = 1000
	}
	volumes[20] = 3000
	got := VolumeRatio(volumes, 20)
	if got == nil || *got != 3 {
		t.Fatalf("VolumeRatio = %v, want 3", got)
	}
	if VolumeRatio(volumes[:20], 20) != nil {
		t.Fatal("insufficient history must yield nil")
	}
}

func TestATR(t *testing.T) {
	n := 20
	highs := make([]float64, n)
	lows := make([]float64, n)
	closes := make([]float64, n)
	for i := 0; i < n; i++ {
		highs[i] = 102
		lows[i] = 98
		closes[i] = 100
	}
	got := ATR(highs, lows, closes, 14)
	if got == nil {
		t.Fatal("ATR should be computable with 20 bars")
	}
	// Constant 4-point range converges to an ATR of 4.
	if *got < 3.9 || *got > 4.1 {
		t.Errorf("ATR = %v, want ~4", *got)
	}
}
