package config

// SellExec holds the Sell Executor's tunables (spec §4.5).
type SellExec struct {
	Common

	GatewayURL string // GATEWAY_URL

	SellLockTTLSec       int // SELL_LOCK_TTL_SEC, default 30
	SellCooldownHours    int // SELL_COOLDOWN_HOURS, default 24
	StopLossCooldownDays int // STOPLOSS_COOLDOWN_DAYS, default 3

	ConfirmPollCount    int // SELLEXEC_CONFIRM_POLL_COUNT, default 3
	ConfirmPollInterval int // SELLEXEC_CONFIRM_POLL_INTERVAL_SEC, default 2

	HardStopRetries     int // SELLEXEC_HARD_STOP_RETRIES, default 3
	HardStopBackoffSec  int // SELLEXEC_HARD_STOP_BACKOFF_SEC, default 2

	WorkerCount   int // SELLEXEC_WORKER_COUNT, default 4
	QueueCapacity int // SELLEXEC_QUEUE_CAPACITY, default 1000
	ReadBatchSize int // SELLEXEC_READ_BATCH_SIZE, default 100
}

func LoadSellExec() *SellExec {
	return &SellExec{
		Common:               LoadCommon(),
		GatewayURL:           getEnv("GATEWAY_URL", "http://localhost:8080"),
		SellLockTTLSec:       getEnvAsInt("SELL_LOCK_TTL_SEC", 30),
		SellCooldownHours:    getEnvAsInt("SELL_COOLDOWN_HOURS", 24),
		StopLossCooldownDays: getEnvAsInt("STOPLOSS_COOLDOWN_DAYS", 3),
		ConfirmPollCount:     getEnvAsInt("SELLEXEC_CONFIRM_POLL_COUNT", 3),
		ConfirmPollInterval:  getEnvAsInt("SELLEXEC_CONFIRM_POLL_INTERVAL_SEC", 2),
		HardStopRetries:      getEnvAsInt("SELLEXEC_HARD_STOP_RETRIES", 3),
		HardStopBackoffSec:   getEnvAsInt("SELLEXEC_HARD_STOP_BACKOFF_SEC", 2),
		WorkerCount:          getEnvAsInt("SELLEXEC_WORKER_COUNT", 4),
		QueueCapacity:        getEnvAsInt("SELLEXEC_QUEUE_CAPACITY", 1000),
		ReadBatchSize:        getEnvAsInt("SELLEXEC_READ_BATCH_SIZE", 100),
	}
}
