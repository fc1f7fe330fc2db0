package config

// Gateway holds the Brokerage Gateway's tunables (spec §6.4 "Gateway").
type Gateway struct {
	Common

	VenueAPIKey    string // VENUE_API_KEY
	VenueAPISecret string // VENUE_API_SECRET
	VenueBaseURL   string // VENUE_BASE_URL
	VenueWSURL     string // VENUE_WS_URL
	TokenFilePath  string // GATEWAY_TOKEN_FILE

	RateLimitPerSecond int // GATEWAY_RATE_LIMIT_PER_SEC, default 19
	RateLimitWaitMs    int // GATEWAY_RATE_LIMIT_WAIT_MS, default 2000

	BreakerFailureThreshold int // GATEWAY_BREAKER_FAILURES, default 5
	BreakerWindowSec        int // GATEWAY_BREAKER_WINDOW_SEC, default 30
	BreakerOpenSec          int // GATEWAY_BREAKER_OPEN_SEC, default 60

	HTTPAddr string // GATEWAY_HTTP_ADDR, default :8080

	TickStreamMaxLen int64 // TICK_STREAM_MAXLEN, default 100000
}

// LoadGateway loads the Gateway's configuration.
func LoadGateway() *Gateway {
	common := LoadCommon("VENUE_API_KEY", "VENUE_API_SECRET", "VENUE_BASE_URL", "VENUE_WS_URL")
	return &Gateway{
		Common:                  common,
		VenueAPIKey:             getEnv("VENUE_API_KEY", ""),
		VenueAPISecret:          getEnv("VENUE_API_SECRET", ""),
		VenueBaseURL:            getEnv("VENUE_BASE_URL", ""),
		VenueWSURL:              getEnv("VENUE_WS_URL", ""),
		TokenFilePath:           getEnv("GATEWAY_TOKEN_FILE", "/var/lib/gateway/token.json"),
		RateLimitPerSecond:      getEnvAsInt("GATEWAY_RATE_LIMIT_PER_SEC", 19),
		RateLimitWaitMs:         getEnvAsInt("GATEWAY_RATE_LIMIT_WAIT_MS", 2000),
		BreakerFailureThreshold: getEnvAsInt("GATEWAY_BREAKER_FAILURES", 5),
		BreakerWindowSec:        getEnvAsInt("GATEWAY_BREAKER_WINDOW_SEC", 30),
		BreakerOpenSec:          getEnvAsInt("GATEWAY_BREAKER_OPEN_SEC", 60),
		HTTPAddr:                getEnv("GATEWAY_HTTP_ADDR", ":8080"),
		TickStreamMaxLen:        getEnvAsInt64("TICK_STREAM_MAXLEN", 100000),
	}
}
