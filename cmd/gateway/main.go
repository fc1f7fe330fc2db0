// The gateway binary is the sole process-level owner of all outbound
// brokerage traffic (spec §4.1): it serves the local HTTP surface to
// peer services, maintains the one WebSocket connection to the venue,
// and publishes every inbound execution/quote message to stream:ticks.
//
// Operational note: do not restart this process while the venue is open.
// Token issuance is globally rate-limited at the venue; a restart during
// session hours with a stale cached token can block all trading for the
// remainder of the session. The token file must live on a persistent
// volume for the same reason.
package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/korea-trading-core/core/internal/breaker"
	"github.com/korea-trading-core/core/internal/broker/kis"
	"github.com/korea-trading-core/core/internal/bus"
	"github.com/korea-trading-core/core/internal/config"
	"github.com/korea-trading-core/core/internal/gateway"
	"github.com/korea-trading-core/core/internal/logging"
	"github.com/korea-trading-core/core/internal/metrics"
	"github.com/korea-trading-core/core/internal/model"
	"github.com/korea-trading-core/core/internal/telegram"
	"github.com/korea-trading-core/core/internal/ws"
)

func main() {
	cfg := config.LoadGateway()
	log := logging.Setup("gateway", cfg.LogFile, cfg.MaxLogSizeMB, cfg.MaxLogBackups)

	rdb := redis.NewClient(&redis.Options{
		Addr:     cfg.RedisAddr,
		Password: cfg.RedisPassword,
		DB:       cfg.RedisDB,
	})
	b := bus.New(rdb)

	client := kis.New(kis.Config{
		BaseURL:       cfg.VenueBaseURL,
		APIKey:        cfg.VenueAPIKey,
		APISecret:     cfg.VenueAPISecret,
		TokenFilePath: cfg.TokenFilePath,
		RatePerSecond: cfg.RateLimitPerSecond,
		RateWait:      time.Duration(cfg.RateLimitWaitMs) * time.Millisecond,
		Breaker: breaker.Config{
			FailureThreshold: cfg.BreakerFailureThreshold,
			Window:           time.Duration(cfg.BreakerWindowSec) * time.Second,
			OpenDuration:     time.Duration(cfg.BreakerOpenSec) * time.Second,
		},
	})

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	streamer := ws.New(
		func(ctx context.Context) (string, error) {
			// Called on every reconnect attempt; returns the configured
			// static URL, so no per-attempt credential is issued.
			return cfg.VenueWSURL, nil
		},
		func(tick model.PriceTick) {
			pubCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
			defer cancel()
			if _, err := b.Publish(pubCtx, bus.StreamTicks, tick, cfg.TickStreamMaxLen); err != nil {
				log.Warn().Str("event", "tick_publish_failed").Str("stock_code", tick.StockCode.String()).Str("reason", err.Error()).Send()
				return
			}
			metrics.TicksPublished.Inc()
		},
	)
	streamer.OnProlongedDisconnect = func(down time.Duration) {
		log.Error().Str("event", "ws_disconnected").Str("reason", down.String()).Send()
		telegram.Notify(telegram.Alert{
			Severity: telegram.SevCritical,
			Service:  "gateway",
			Event:    "ws_disconnected",
			Reason:   fmt.Sprintf("venue WebSocket down for %s; ticks are stale", down.Round(time.Second)),
		})
	}
	go streamer.Run(ctx)

	// Operator alert when a breaker stays open past two minutes (§7).
	go func() {
		ticker := time.NewTicker(30 * time.Second)
		defer ticker.Stop()
		alerted := make(map[string]bool)
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				open := client.BreakersOpenFor(2 * time.Minute)
				current := make(map[string]bool, len(open))
				for _, ep := range open {
					current[ep] = true
					if !alerted[ep] {
						log.Error().Str("event", "breaker_open_prolonged").Str("reason", ep).Send()
						telegram.Notify(telegram.Alert{
							Severity: telegram.SevCritical,
							Service:  "gateway",
							Event:    "circuit_open_prolonged",
							Reason:   "open for over 2 minutes: " + ep,
						})
					}
				}
				alerted = current
			}
		}
	}()

	srv := gateway.NewServer(client, streamer, log)
	httpServer := &http.Server{
		Addr:         cfg.HTTPAddr,
		Handler:      srv.Router(),
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 30 * time.Second,
	}

	go func() {
		log.Info().Str("event", "gateway_started").Str("reason", cfg.HTTPAddr).Send()
		if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal().Str("event", "http_server_failed").Str("reason", err.Error()).Send()
		}
	}()

	<-ctx.Done()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	_ = httpServer.Shutdown(shutdownCtx)
	_ = streamer.Close()
	log.Info().Str("event", "gateway_stopped").Send()
}
