// The scanner binary consumes ticks for watchlist symbols, maintains
// minute-bar rings and indicators, and publishes BuySignal messages
// (spec §4.2).
package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/redis/go-redis/v9"

	"github.com/korea-trading-core/core/internal/bus"
	"github.com/korea-trading-core/core/internal/cache"
	"github.com/korea-trading-core/core/internal/config"
	"github.com/korea-trading-core/core/internal/gatewayclient"
	"github.com/korea-trading-core/core/internal/logging"
	"github.com/korea-trading-core/core/internal/metrics"
	"github.com/korea-trading-core/core/internal/scanner"
)

func main() {
	cfg := config.LoadScanner()
	log := logging.Setup("scanner", cfg.LogFile, cfg.MaxLogSizeMB, cfg.MaxLogBackups)

	rdb := redis.NewClient(&redis.Options{
		Addr:     cfg.RedisAddr,
		Password: cfg.RedisPassword,
		DB:       cfg.RedisDB,
	})
	b := bus.New(rdb)
	c := cache.New(rdb)
	gw := gatewayclient.New(cfg.GatewayURL, 0)

	watchlist := scanner.NewWatchlist(c, gw, log)
	engine := scanner.NewEngine(cfg, log, b, c, watchlist)

	go func() {
		http.Handle("/metrics", metrics.Handler())
		_ = http.ListenAndServe(":9102", nil)
	}()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	log.Info().Str("event", "scanner_started").Send()
	if err := engine.Run(ctx); err != nil && ctx.Err() == nil {
		log.Fatal().Str("event", "scanner_failed").Str("reason", err.Error()).Send()
	}
	log.Info().Str("event", "scanner_stopped").Send()
}
