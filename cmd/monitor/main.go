// The monitor binary evaluates the exit chain for every held position on
// each tick and publishes SellOrder messages (spec §4.3).
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
	"github.com/korea-trading-core/core/internal/monitor"
)

func main() {
	cfg := config.LoadMonitor()
	log := logging.Setup("monitor", cfg.LogFile, cfg.MaxLogSizeMB, cfg.MaxLogBackups)

	rdb := redis.NewClient(&redis.Options{
		Addr:     cfg.RedisAddr,
		Password: cfg.RedisPassword,
		DB:       cfg.RedisDB,
	})
	b := bus.New(rdb)
	c := cache.New(rdb)
	gw := gatewayclient.New(cfg.GatewayURL, 0)

	engine := monitor.NewEngine(cfg, log, b, c, gw)

	go func() {
		http.Handle("/metrics", metrics.Handler())
		_ = http.ListenAndServe(":9103", nil)
	}()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	log.Info().Str("event", "monitor_started").Send()
	if err := engine.Run(ctx); err != nil && ctx.Err() == nil {
		log.Fatal().Str("event", "monitor_failed").Str("reason", err.Error()).Send()
	}
	log.Info().Str("event", "monitor_stopped").Send()
}
