package config

import (
	"testing"
)

func TestGetEnvHelpers(t *testing.T) {
	t.Setenv("TEST_STR", "hello")
	t.Setenv("TEST_INT", "42")
	t.Setenv("TEST_INT_BAD", "not-a-number")
	t.Setenv("TEST_FLOAT", "0.85")
	t.Setenv("TEST_BOOL", "true")

	if got := getEnv("TEST_STR", "fallback"); got != "hello" {
		t.Errorf("getEnv = %q, want hello", got)
	}
	if got := getEnv("TEST_MISSING", "fallback"); got != "fallback" {
		t.Errorf("getEnv fallback = %q", got)
	}
	if got := getEnvAsInt("TEST_INT", 0); got != 42 {
		t.Errorf("getEnvAsInt = %d, want 42", got)
	}
	if got := getEnvAsInt("TEST_INT_BAD", 7); got != 7 {
		t.Errorf("getEnvAsInt on invalid input = %d, want fallback 7", got)
	}
	if got := getEnvAsFloat64("TEST_FLOAT", 0); got != 0.85 {
		t.Errorf("getEnvAsFloat64 = %v, want 0.85", got)
	}
	if got := getEnvAsBool("TEST_BOOL", false); !got {
		t.Error("getEnvAsBool = false, want true")
	}
	if got := getEnvAsBool("TEST_MISSING", true); !got {
		t.Error("getEnvAsBool fallback = false, want true")
	}
}

func TestLoadScannerDefaults(t *testing.T) {
	t.Setenv("REDIS_ADDR", "localhost:6379")

	cfg := LoadScanner()
	if cfg.MinRequiredBars != 20 {
		t.Errorf("MinRequiredBars = %d, want 20", cfg.MinRequiredBars)
	}
	if cfg.SignalCooldownSec != 600 {
		t.Errorf("SignalCooldownSec = %d, want 600", cfg.SignalCooldownSec)
	}
	if cfg.RSIGuardMaxSideways != 75 || cfg.RSIGuardMaxBull != 85 {
		t.Errorf("RSI guard = %v/%v, want 75/85", cfg.RSIGuardMaxSideways, cfg.RSIGuardMaxBull)
	}
	if cfg.NoTradeWindowStart != "09:00" || cfg.NoTradeWindowEnd != "09:15" {
		t.Errorf("no-trade window = %s-%s", cfg.NoTradeWindowStart, cfg.NoTradeWindowEnd)
	}
	if cfg.WorkerCount != 4 || cfg.QueueCapacity != 1000 || cfg.ReadBatchSize != 100 {
		t.Errorf("worker layout = %d/%d/%d, want 4/1000/100", cfg.WorkerCount, cfg.QueueCapacity, cfg.ReadBatchSize)
	}
	if cfg.EnableWatchlistConviction || cfg.EnableORBBreakout {
		t.Error("conviction and ORB strategies must default to off")
	}
}

func TestLoadBuyExecDefaults(t *testing.T) {
	t.Setenv("REDIS_ADDR", "localhost:6379")

	cfg := LoadBuyExec()
	if cfg.MaxPortfolioSize != 10 {
		t.Errorf("MaxPortfolioSize = %d, want 10", cfg.MaxPortfolioSize)
	}
	if cfg.CashFloorBear != 0.25 || cfg.CashFloorBull != 0.10 {
		t.Errorf("cash floors = %v/%v, want 0.25/0.10", cfg.CashFloorBear, cfg.CashFloorBull)
	}
	if cfg.CorrelationLimit != 0.85 || cfg.CorrelationDays != 60 {
		t.Errorf("correlation = %v/%d, want 0.85/60", cfg.CorrelationLimit, cfg.CorrelationDays)
	}
	if cfg.ConfirmPollCount != 3 || cfg.ConfirmPollInterval != 2 {
		t.Errorf("confirm polling = %dx%ds, want 3x2s", cfg.ConfirmPollCount, cfg.ConfirmPollInterval)
	}
	if cfg.MomentumLimitPremium != 0.003 {
		t.Errorf("momentum premium = %v, want 0.003", cfg.MomentumLimitPremium)
	}
}

func TestEnvOverridesDefault(t *testing.T) {
	t.Setenv("REDIS_ADDR", "localhost:6379")
	t.Setenv("SCANNER_SIGNAL_COOLDOWN_SECONDS", "300")

	cfg := LoadScanner()
	if cfg.SignalCooldownSec != 300 {
		t.Errorf("SignalCooldownSec = %d, want the 300 override", cfg.SignalCooldownSec)
	}
}
