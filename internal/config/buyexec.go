package config

// BuyExec holds the Buy Executor's tunables (spec §4.4, §6.4 "Risk").
type BuyExec struct {
	Common

	GatewayURL string // GATEWAY_URL

	MaxPortfolioSize int // MAX_PORTFOLIO_SIZE, default 10

	CashFloorBull       float64 // CASH_FLOOR_BULL_PCT, default 0.10
	CashFloorSideways   float64 // CASH_FLOOR_SIDEWAYS_PCT, default 0.15
	CashFloorBear       float64 // CASH_FLOOR_BEAR_PCT, default 0.25
	CashFloorStrongBear float64 // CASH_FLOOR_STRONG_BEAR_PCT, default 0.25

	SectorCapDefault    float64 // SECTOR_CAP_PCT, default 0.30
	SectorCapStrongBull float64 // SECTOR_CAP_STRONG_BULL_PCT, default 0.50
	StockCapDefault     float64 // STOCK_CAP_PCT, default 0.15
	StockCapStrongBull  float64 // STOCK_CAP_STRONG_BULL_PCT, default 0.25

	DailyBuyCapBull       int // identical to scanner's caps; kept here too since the guard enforces it independently
	DailyBuyCapSideways   int
	DailyBuyCapBear       int
	DailyBuyCapStrongBear int

	HybridScoreFloor float64 // MIN_HYBRID_SCORE, default 40
	CorrelationLimit float64 // CORRELATION_LIMIT, default 0.85
	CorrelationDays  int     // CORRELATION_LOOKBACK_DAYS, default 60

	DuplicateOrderWindowMin int // DUPLICATE_ORDER_WINDOW_MIN, default 10
	BuyLockTTLSec           int // BUY_LOCK_TTL_SEC, default 180

	StopLossCooldownDays int // STOPLOSS_COOLDOWN_DAYS, default 3
	SellCooldownHours    int // SELL_COOLDOWN_HOURS, default 24

	SizeTierHighScore float64 // SIZE_TIER_HIGH_SCORE, default 80
	SizeTierHighPct   float64 // SIZE_TIER_HIGH_PCT, default 0.12
	SizeTierMidScore  float64 // SIZE_TIER_MID_SCORE, default 70
	SizeTierMidPct    float64 // SIZE_TIER_MID_PCT, default 0.09
	SizeTierLowScore  float64 // SIZE_TIER_LOW_SCORE, default 60
	SizeTierLowPct    float64 // SIZE_TIER_LOW_PCT, default 0.06

	MinViableNotional decimal64 // MIN_VIABLE_NOTIONAL, default 100000

	StopLossPct float64 // STOP_LOSS_PCT, default 6 — seeds the initial stop_loss_price on persist

	MomentumLimitPremium float64 // BUYEXEC_MOMENTUM_LIMIT_PREMIUM, default 0.003
	MomentumOrderTimeoutSec int  // BUYEXEC_MOMENTUM_ORDER_TIMEOUT_SEC, default 10

	ConfirmPollCount    int // BUYEXEC_CONFIRM_POLL_COUNT, default 3
	ConfirmPollInterval int // BUYEXEC_CONFIRM_POLL_INTERVAL_SEC, default 2

	MarketOpenTime  string // MARKET_OPEN_TIME, default "09:00"
	MarketCloseTime string // MARKET_CLOSE_TIME, default "15:30"

	WorkerCount   int // BUYEXEC_WORKER_COUNT, default 4
	QueueCapacity int // BUYEXEC_QUEUE_CAPACITY, default 1000
	ReadBatchSize int // BUYEXEC_READ_BATCH_SIZE, default 100
}

// decimal64 is a plain float64 alias used only for env-parsed notional
// thresholds; all money math downstream uses decimal.Decimal.
type decimal64 = float64

func LoadBuyExec() *BuyExec {
	return &BuyExec{
		Common:                  LoadCommon(),
		GatewayURL:              getEnv("GATEWAY_URL", "http://localhost:8080"),
		MaxPortfolioSize:        getEnvAsInt("MAX_PORTFOLIO_SIZE", 10),
		CashFloorBull:           getEnvAsFloat64("CASH_FLOOR_BULL_PCT", 0.10),
		CashFloorSideways:       getEnvAsFloat64("CASH_FLOOR_SIDEWAYS_PCT", 0.15),
		CashFloorBear:           getEnvAsFloat64("CASH_FLOOR_BEAR_PCT", 0.25),
		CashFloorStrongBear:     getEnvAsFloat64("CASH_FLOOR_STRONG_BEAR_PCT", 0.25),
		SectorCapDefault:        getEnvAsFloat64("SECTOR_CAP_PCT", 0.30),
		SectorCapStrongBull:     getEnvAsFloat64("SECTOR_CAP_STRONG_BULL_PCT", 0.50),
		StockCapDefault:         getEnvAsFloat64("STOCK_CAP_PCT", 0.15),
		StockCapStrongBull:      getEnvAsFloat64("STOCK_CAP_STRONG_BULL_PCT", 0.25),
		DailyBuyCapBull:         getEnvAsInt("SCANNER_DAILY_BUY_CAP_BULL", 8),
		DailyBuyCapSideways:     getEnvAsInt("SCANNER_DAILY_BUY_CAP_SIDEWAYS", 5),
		DailyBuyCapBear:         getEnvAsInt("SCANNER_DAILY_BUY_CAP_BEAR", 2),
		DailyBuyCapStrongBear:   getEnvAsInt("SCANNER_DAILY_BUY_CAP_STRONG_BEAR", 1),
		HybridScoreFloor:        getEnvAsFloat64("MIN_HYBRID_SCORE", 40),
		CorrelationLimit:        getEnvAsFloat64("CORRELATION_LIMIT", 0.85),
		CorrelationDays:         getEnvAsInt("CORRELATION_LOOKBACK_DAYS", 60),
		DuplicateOrderWindowMin: getEnvAsInt("DUPLICATE_ORDER_WINDOW_MIN", 10),
		BuyLockTTLSec:           getEnvAsInt("BUY_LOCK_TTL_SEC", 180),
		StopLossCooldownDays:    getEnvAsInt("STOPLOSS_COOLDOWN_DAYS", 3),
		SellCooldownHours:       getEnvAsInt("SELL_COOLDOWN_HOURS", 24),
		SizeTierHighScore:       getEnvAsFloat64("SIZE_TIER_HIGH_SCORE", 80),
		SizeTierHighPct:         getEnvAsFloat64("SIZE_TIER_HIGH_PCT", 0.12),
		SizeTierMidScore:        getEnvAsFloat64("SIZE_TIER_MID_SCORE", 70),
		SizeTierMidPct:          getEnvAsFloat64("SIZE_TIER_MID_PCT", 0.09),
		SizeTierLowScore:        getEnvAsFloat64("SIZE_TIER_LOW_SCORE", 60),
		SizeTierLowPct:          getEnvAsFloat64("SIZE_TIER_LOW_PCT", 0.06),
		MinViableNotional:       getEnvAsFloat64("MIN_VIABLE_NOTIONAL", 100000),
		StopLossPct:             getEnvAsFloat64("STOP_LOSS_PCT", 6),
		MomentumLimitPremium:    getEnvAsFloat64("BUYEXEC_MOMENTUM_LIMIT_PREMIUM", 0.003),
		MomentumOrderTimeoutSec: getEnvAsInt("BUYEXEC_MOMENTUM_ORDER_TIMEOUT_SEC", 10),
		ConfirmPollCount:        getEnvAsInt("BUYEXEC_CONFIRM_POLL_COUNT", 3),
		ConfirmPollInterval:     getEnvAsInt("BUYEXEC_CONFIRM_POLL_INTERVAL_SEC", 2),
		MarketOpenTime:          getEnv("MARKET_OPEN_TIME", "09:00"),
		MarketCloseTime:         getEnv("MARKET_CLOSE_TIME", "15:30"),
		WorkerCount:             getEnvAsInt("BUYEXEC_WORKER_COUNT", 4),
		QueueCapacity:           getEnvAsInt("BUYEXEC_QUEUE_CAPACITY", 1000),
		ReadBatchSize:           getEnvAsInt("BUYEXEC_READ_BATCH_SIZE", 100),
	}
}
