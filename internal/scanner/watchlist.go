// Watchlist reload (spec §4.2): every 5 minutes the scanner reloads the
// Scout's HotWatchlist from cache, unions it with the operator's manual
// pin hash, and aligns the Gateway's live WebSocket subscriptions with
// the resulting code set.
package scanner

import (
	"context"
	"sort"
	"strconv"
	"sync"

	"github.com/rs/zerolog"

	"github.com/korea-trading-core/core/internal/cache"
	"github.com/korea-trading-core/core/internal/model"
)

// SubscriptionClient is the slice of gatewayclient.Client the watchlist
// manager needs to keep live subscriptions aligned.
type SubscriptionClient interface {
	Subscribe(ctx context.Context, codes []model.StockCode) error
	Unsubscribe(ctx context.Context, codes []model.StockCode) error
}

// Watchlist holds the scanner's merged view of (HotWatchlist ∪ manual
// pins) and diffs successive reloads against the subscribed set.
type Watchlist struct {
	cache *cache.Cache
	subs  SubscriptionClient
	log   zerolog.Logger

	mu      sync.RWMutex
	entries map[model.StockCode]model.WatchlistEntry
	regime  model.MarketRegime
}

func NewWatchlist(c *cache.Cache, subs SubscriptionClient, log zerolog.Logger) *Watchlist {
	return &Watchlist{
		cache:   c,
		subs:    subs,
		log:     log,
		entries: make(map[model.StockCode]model.WatchlistEntry),
	}
}

// Lookup returns the merged entry for code, if it is currently eligible
// for scanning.
func (w *Watchlist) Lookup(code model.StockCode) (model.WatchlistEntry, bool) {
	w.mu.RLock()
	defer w.mu.RUnlock()
	e, ok := w.entries[code]
	return e, ok
}

// Codes returns the current scan set, sorted for deterministic
// subscription frames.
func (w *Watchlist) Codes() []model.StockCode {
	w.mu.RLock()
	defer w.mu.RUnlock()
	out := make([]model.StockCode, 0, len(w.entries))
	for c := range w.entries {
		out = append(out, c)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}

// Reload pulls watchlist:active and watchlist:manual, rebuilds the merged
// entry map, and reconciles Gateway subscriptions when the code set
// changed. Entries that fail validation are dropped individually rather
// than poisoning the whole reload.
func (w *Watchlist) Reload(ctx context.Context) error {
	var hot model.HotWatchlist
	found, err := w.cache.Get(ctx, cache.KeyWatchlistActive, &hot)
	if err != nil {
		return err
	}

	merged := make(map[model.StockCode]model.WatchlistEntry)
	if found {
		for _, e := range hot.Stocks {
			if err := e.Validate(); err != nil {
				w.log.Warn().Str("event", "watchlist_entry_invalid").Str("stock_code", e.StockCode.String()).Str("reason", err.Error()).Send()
				continue
			}
			merged[e.StockCode] = e
		}
	}

	pins, err := w.cache.HGetAll(ctx, cache.KeyWatchlistManual)
	if err == nil {
		for raw, minScore := range pins {
			code, err := model.NewStockCode(raw)
			if err != nil {
				continue
			}
			if _, already := merged[code]; already {
				continue
			}
			score, _ := strconv.ParseFloat(minScore, 64)
			merged[code] = model.WatchlistEntry{
				StockCode:   code,
				StockName:   raw,
				HybridScore: score,
				LLMScore:    score,
				IsTradable:  true,
				TradeTier:   model.Tier2,
				RiskTag:     model.RiskNeutral,
			}
		}
	}

	w.mu.Lock()
	prev := w.entries
	w.entries = merged
	if found {
		w.regime = hot.MarketRegime
	}
	w.mu.Unlock()

	added, removed := diffCodes(prev, merged)
	if len(added) > 0 {
		if err := w.subs.Subscribe(ctx, added); err != nil {
			w.log.Warn().Str("event", "subscribe_failed").Str("reason", err.Error()).Send()
		}
	}
	if len(removed) > 0 {
		if err := w.subs.Unsubscribe(ctx, removed); err != nil {
			w.log.Warn().Str("event", "unsubscribe_failed").Str("reason", err.Error()).Send()
		}
	}
	if len(added) > 0 || len(removed) > 0 {
		w.log.Info().Str("event", "watchlist_reloaded").Int("size", len(merged)).Int("added", len(added)).Int("removed", len(removed)).Send()
	}
	return nil
}

func diffCodes(prev, next map[model.StockCode]model.WatchlistEntry) (added, removed []model.StockCode) {
	for c := range next {
		if _, ok := prev[c]; !ok {
			added = append(added, c)
		}
	}
	for c := range prev {
		if _, ok := next[c]; !ok {
			removed = append(removed, c)
		}
	}
	return added, removed
}
