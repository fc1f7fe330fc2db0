package config

// Scanner holds the Buy Scanner's tunables (spec §4.2, §6.4 "Scanner").
type Scanner struct {
	Common

	GatewayURL string // GATEWAY_URL

	MinRequiredBars      int     // SCANNER_MIN_REQUIRED_BARS, default 20
	SignalCooldownSec    int     // SCANNER_SIGNAL_COOLDOWN_SECONDS, default 600
	RSIGuardMaxSideways  float64 // SCANNER_RSI_GUARD_MAX_SIDEWAYS, default 75
	RSIGuardMaxBull      float64 // SCANNER_RSI_GUARD_MAX_BULL, default 85
	VWAPDeviationWarning float64 // SCANNER_VWAP_DEVIATION_WARNING, default 0.02

	NoTradeWindowStart string // SCANNER_NO_TRADE_WINDOW_START, default "09:00"
	NoTradeWindowEnd   string // SCANNER_NO_TRADE_WINDOW_END, default "09:15"
	DangerWindowStart  string // SCANNER_DANGER_WINDOW_START, default "14:00"
	DangerWindowEnd    string // SCANNER_DANGER_WINDOW_END, default "15:00"

	EnableWatchlistConviction bool // SCANNER_ENABLE_CONVICTION, default false
	EnableORBBreakout         bool // SCANNER_ENABLE_ORB, default false

	MomentumCapPct       float64 // SCANNER_MOMENTUM_CAP_PCT, default 0.05
	VolumeRatioThreshold float64 // SCANNER_VOLUME_RATIO_THRESHOLD, default 2.0

	WorkerCount     int // SCANNER_WORKER_COUNT, default 4
	QueueCapacity   int // SCANNER_QUEUE_CAPACITY, default 1000
	ReadBatchSize   int // SCANNER_READ_BATCH_SIZE, default 100
	WatchlistReloadSec int // SCANNER_WATCHLIST_RELOAD_SEC, default 300

	DailyBuyCapBull     int // SCANNER_DAILY_BUY_CAP_BULL, default 8
	DailyBuyCapSideways int // SCANNER_DAILY_BUY_CAP_SIDEWAYS, default 5
	DailyBuyCapBear     int // SCANNER_DAILY_BUY_CAP_BEAR, default 2
}

func LoadScanner() *Scanner {
	return &Scanner{
		Common:                    LoadCommon(),
		GatewayURL:                getEnv("GATEWAY_URL", "http://localhost:8080"),
		MinRequiredBars:           getEnvAsInt("SCANNER_MIN_REQUIRED_BARS", 20),
		SignalCooldownSec:         getEnvAsInt("SCANNER_SIGNAL_COOLDOWN_SECONDS", 600),
		RSIGuardMaxSideways:       getEnvAsFloat64("SCANNER_RSI_GUARD_MAX_SIDEWAYS", 75),
		RSIGuardMaxBull:           getEnvAsFloat64("SCANNER_RSI_GUARD_MAX_BULL", 85),
		VWAPDeviationWarning:      getEnvAsFloat64("SCANNER_VWAP_DEVIATION_WARNING", 0.02),
		NoTradeWindowStart:        getEnv("SCANNER_NO_TRADE_WINDOW_START", "09:00"),
		NoTradeWindowEnd:          getEnv("SCANNER_NO_TRADE_WINDOW_END", "09:15"),
		DangerWindowStart:         getEnv("SCANNER_DANGER_WINDOW_START", "14:00"),
		DangerWindowEnd:           getEnv("SCANNER_DANGER_WINDOW_END", "15:00"),
		EnableWatchlistConviction: getEnvAsBool("SCANNER_ENABLE_CONVICTION", false),
		EnableORBBreakout:         getEnvAsBool("SCANNER_ENABLE_ORB", false),
		MomentumCapPct:            getEnvAsFloat64("SCANNER_MOMENTUM_CAP_PCT", 0.05),
		VolumeRatioThreshold:      getEnvAsFloat64("SCANNER_VOLUME_RATIO_THRESHOLD", 2.0),
		WorkerCount:               getEnvAsInt("SCANNER_WORKER_COUNT", 4),
		QueueCapacity:             getEnvAsInt("SCANNER_QUEUE_CAPACITY", 1000),
		ReadBatchSize:             getEnvAsInt("SCANNER_READ_BATCH_SIZE", 100),
		WatchlistReloadSec:        getEnvAsInt("SCANNER_WATCHLIST_RELOAD_SEC", 300),
		DailyBuyCapBull:           getEnvAsInt("SCANNER_DAILY_BUY_CAP_BULL", 8),
		DailyBuyCapSideways:       getEnvAsInt("SCANNER_DAILY_BUY_CAP_SIDEWAYS", 5),
		DailyBuyCapBear:           getEnvAsInt("SCANNER_DAILY_BUY_CAP_BEAR", 2),
	}
}
