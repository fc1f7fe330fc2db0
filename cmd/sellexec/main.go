// The sellexec binary consumes SellOrders, places sell orders under the
// per-code sell lock, confirms fills, applies position state transitions,
// and writes cooldown markers (spec §4.5).
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
	"github.com/korea-trading-core/core/internal/cooldown"
	"github.com/korea-trading-core/core/internal/gatewayclient"
	"github.com/korea-trading-core/core/internal/lock"
	"github.com/korea-trading-core/core/internal/logging"
	"github.com/korea-trading-core/core/internal/metrics"
	"github.com/korea-trading-core/core/internal/sellexec"
	"github.com/korea-trading-core/core/internal/storage"
)

func main() {
	cfg := config.LoadSellExec()
	log := logging.Setup("sellexec", cfg.LogFile, cfg.MaxLogSizeMB, cfg.MaxLogBackups)

	rdb := redis.NewClient(&redis.Options{
		Addr:     cfg.RedisAddr,
		Password: cfg.RedisPassword,
		DB:       cfg.RedisDB,
	})
	b := bus.New(rdb)
	c := cache.New(rdb)
	gw := gatewayclient.New(cfg.GatewayURL, 0)

	store, err := storage.Open(cfg.DBPath)
	if err != nil {
		log.Fatal().Str("event", "storage_open_failed").Str("reason", err.Error()).Send()
	}
	defer store.Close()

	exec := sellexec.New(cfg, log, b, c,
		lock.New(rdb),
		cooldown.New(c),
		store,
		gw,
	)

	go func() {
		http.Handle("/metrics", metrics.Handler())
		_ = http.ListenAndServe(":9105", nil)
	}()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	log.Info().Str("event", "sellexec_started").Send()
	if err := exec.Run(ctx); err != nil && ctx.Err() == nil {
		log.Fatal().Str("event", "sellexec_failed").Str("reason", err.Error()).Send()
	}
	log.Info().Str("event", "sellexec_stopped").Send()
}
