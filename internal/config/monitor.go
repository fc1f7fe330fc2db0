package config

// Monitor holds the Price Monitor's tunables (spec §4.3, §6.4 "Sell").
type Monitor struct {
	Common

	GatewayURL string // GATEWAY_URL

	StopLossPct              float64 // STOP_LOSS_PCT, default 6
	ATRMultiplier            float64 // ATR_MULTIPLIER, default 2.5
	TrailingActivationPct    float64 // TRAILING_ACTIVATION_PCT, default 4
	TrailingDropFromHighPct  float64 // TRAILING_DROP_FROM_HIGH_PCT, default 3
	ProfitLockL1Floor        float64 // PROFIT_LOCK_L1_FLOOR_PCT, default 0.7
	ProfitLockL1Activation   float64 // PROFIT_LOCK_L1_ACTIVATION_PCT, default 5
	ProfitLockL2Floor        float64 // PROFIT_LOCK_L2_FLOOR_PCT, default 2.0
	ProfitLockL2Activation   float64 // PROFIT_LOCK_L2_ACTIVATION_PCT, default 10
	BreakevenActivationPct   float64 // BREAKEVEN_ACTIVATION_PCT, default 3
	BreakevenFloorPct        float64 // BREAKEVEN_FLOOR_PCT, default 0.3
	ProfitFloorActivationPct float64 // PROFIT_FLOOR_ACTIVATION_PCT, default 15
	ProfitFloorRetracePct    float64 // PROFIT_FLOOR_RETRACE_PCT, default 10
	HardStopPct              float64 // HARD_STOP_PCT, default 10
	TargetProfitPct          float64 // TARGET_PROFIT_PCT, default 10
	RSIOverboughtThreshold   float64 // RSI_OVERBOUGHT_THRESHOLD, default 75
	RSIOverboughtMinProfit   float64 // RSI_OVERBOUGHT_MIN_PROFIT_PCT, default 3

	TimeTightenStartDaysDefault int // TIME_TIGHTEN_START_DAYS, default 10
	TimeTightenStartDaysBull    int // TIME_TIGHTEN_START_DAYS_BULL, default 15
	MaxHoldingDays              int // MAX_HOLDING_DAYS, default 60
	DeathCrossBearOnly          bool // DEATH_CROSS_BEAR_ONLY, default true

	ReconcileIntervalSec int // MONITOR_RECONCILE_INTERVAL_SEC, default 30
	WorkerCount          int // MONITOR_WORKER_COUNT, default 4
	QueueCapacity        int // MONITOR_QUEUE_CAPACITY, default 1000
	ReadBatchSize        int // MONITOR_READ_BATCH_SIZE, default 100
}

func LoadMonitor() *Monitor {
	return &Monitor{
		Common:                      LoadCommon(),
		GatewayURL:                  getEnv("GATEWAY_URL", "http://localhost:8080"),
		StopLossPct:                 getEnvAsFloat64("STOP_LOSS_PCT", 6),
		ATRMultiplier:               getEnvAsFloat64("ATR_MULTIPLIER", 2.5),
		TrailingActivationPct:       getEnvAsFloat64("TRAILING_ACTIVATION_PCT", 4),
		TrailingDropFromHighPct:     getEnvAsFloat64("TRAILING_DROP_FROM_HIGH_PCT", 3),
		ProfitLockL1Floor:           getEnvAsFloat64("PROFIT_LOCK_L1_FLOOR_PCT", 0.7),
		ProfitLockL1Activation:      getEnvAsFloat64("PROFIT_LOCK_L1_ACTIVATION_PCT", 5),
		ProfitLockL2Floor:           getEnvAsFloat64("PROFIT_LOCK_L2_FLOOR_PCT", 2.0),
		ProfitLockL2Activation:      getEnvAsFloat64("PROFIT_LOCK_L2_ACTIVATION_PCT", 10),
		BreakevenActivationPct:      getEnvAsFloat64("BREAKEVEN_ACTIVATION_PCT", 3),
		BreakevenFloorPct:           getEnvAsFloat64("BREAKEVEN_FLOOR_PCT", 0.3),
		ProfitFloorActivationPct:    getEnvAsFloat64("PROFIT_FLOOR_ACTIVATION_PCT", 15),
		ProfitFloorRetracePct:       getEnvAsFloat64("PROFIT_FLOOR_RETRACE_PCT", 10),
		HardStopPct:                 getEnvAsFloat64("HARD_STOP_PCT", 10),
		TargetProfitPct:             getEnvAsFloat64("TARGET_PROFIT_PCT", 10),
		RSIOverboughtThreshold:      getEnvAsFloat64("RSI_OVERBOUGHT_THRESHOLD", 75),
		RSIOverboughtMinProfit:      getEnvAsFloat64("RSI_OVERBOUGHT_MIN_PROFIT_PCT", 3),
		TimeTightenStartDaysDefault: getEnvAsInt("TIME_TIGHTEN_START_DAYS", 10),
		TimeTightenStartDaysBull:    getEnvAsInt("TIME_TIGHTEN_START_DAYS_BULL", 15),
		MaxHoldingDays:              getEnvAsInt("MAX_HOLDING_DAYS", 60),
		DeathCrossBearOnly:          getEnvAsBool("DEATH_CROSS_BEAR_ONLY", true),
		ReconcileIntervalSec:        getEnvAsInt("MONITOR_RECONCILE_INTERVAL_SEC", 30),
		WorkerCount:                 getEnvAsInt("MONITOR_WORKER_COUNT", 4),
		QueueCapacity:               getEnvAsInt("MONITOR_QUEUE_CAPACITY", 1000),
		ReadBatchSize:               getEnvAsInt("MONITOR_READ_BATCH_SIZE", 100),
	}
}
