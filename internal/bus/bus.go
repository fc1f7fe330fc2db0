// Package bus wraps Redis Streams as a typed, at-most-once message bus
// with consumer groups, grounded on spec §4.6 "Typed message bus": producer
// serializes the record as a single payload field (JSON); consumer parses
// and immediately ACKs; malformed payloads are ACKed and dead-lettered;
// a pending-entries scan reclaims messages idle past a threshold.
package bus

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

const payloadField = "payload"

// Stream and consumer group names from spec §6.1.
const (
	StreamTicks      = "stream:ticks"
	StreamBuySignals = "stream:buy-signals"
	StreamSellOrders = "stream:sell-orders"

	GroupScanner     = "group:scanner"
	GroupMonitor     = "group:monitor"
	GroupBuyExecutor = "group:buy-executor"
	GroupSellExecutor = "group:sell-executor"

	// MaxLenApprox is the approximate MAXLEN every producer trims to
	// (spec §6.1: "100,000 approx" on all three streams).
	MaxLenApprox int64 = 100000
)

// Bus is a thin wrapper over a redis.Client providing the publish/consume
// contract every CORE component shares.
type Bus struct {
	rdb *redis.Client
}

func New(rdb *redis.Client) *Bus {
	return &Bus{rdb: rdb}
}

// Publish appends record, JSON-encoded into a single "payload" field, to
// stream, trimming approximately to maxLen (MAXLEN~).
func (b *Bus) Publish(ctx context.Context, stream string, record any, maxLen int64) (string, error) {
	data, err := json.Marshal(record)
	if err != nil {
		return "", fmt.Errorf("bus: marshal record for %s: %w", stream, err)
	}
	id, err := b.rdb.XAdd(ctx, &redis.XAddArgs{
		Stream: stream,
		MaxLen: maxLen,
		Approx: true,
		Values: map[string]any{payloadField: data},
	}).Result()
	if err != nil {
		return "", fmt.Errorf("bus: publish to %s: %w", stream, err)
	}
	return id, nil
}

// EnsureGroup creates the consumer group on stream if it does not already
// exist, starting from the beginning of the stream's current backlog.
func (b *Bus) EnsureGroup(ctx context.Context, stream, group string) error {
	err := b.rdb.XGroupCreateMkStream(ctx, stream, group, "0").Err()
	if err != nil && !isBusyGroupErr(err) {
		return fmt.Errorf("bus: create group %s on %s: %w", group, stream, err)
	}
	return nil
}

func isBusyGroupErr(err error) bool {
	return err != nil && len(err.Error()) >= 9 && err.Error()[:9] == "BUSYGROUP"
}

// Handler processes a reclaimed message's decoded payload for
// RunReclaimLoop. RunReclaimLoop discards the returned error, so a
// handler logs or dead-letters its own failures. ACK has already happened
// by the time Handler runs, per the at-most-once contract in spec §5.
type Handler func(ctx context.Context, payload []byte) error

// ConsumeOptions configures one consumer's reads: BatchSize and Block
// bound a single XReadGroup call.
type ConsumeOptions struct {
	Group         string
	Consumer      string
	BatchSize     int64
	Block         time.Duration
	DeadLetterTTL time.Duration
}

// ReadBatch performs a single blocking XReadGroup call against stream and
// returns the raw messages, having already ACKed every message it
// returns — at-most-once by construction: a crash between ACK and Handler
// execution drops the message rather than risking a duplicate order.
func (b *Bus) ReadBatch(ctx context.Context, stream string, opt ConsumeOptions) ([]redis.XMessage, error) {
	res, err := b.rdb.XReadGroup(ctx, &redis.XReadGroupArgs{
		Group:    opt.Group,
		Consumer: opt.Consumer,
		Streams:  []string{stream, ">"},
		Count:    opt.BatchSize,
		Block:    opt.Block,
	}).Result()
	if err != nil {
		if err == redis.Nil {
			return nil, nil
		}
		return nil, fmt.Errorf("bus: read group %s on %s: %w", opt.Group, stream, err)
	}
	if len(res) == 0 {
		return nil, nil
	}
	msgs := res[0].Messages
	ids := make([]string, len(msgs))
	for i, m := range msgs {
		ids[i] = m.ID
	}
	if len(ids) > 0 {
		if err := b.rdb.XAck(ctx, stream, opt.Group, ids...).Err(); err != nil {
			return nil, fmt.Errorf("bus: ack %s on %s: %w", opt.Group, stream, err)
		}
	}
	return msgs, nil
}

// ReclaimStale claims pending entries idle for more than minIdle from
// other consumers in group on stream, ACKing them immediately (the same
// ACK-before-process contract as ReadBatch) and returning them for
// processing. This covers the narrow crash window between XReadGroup
// returning in a prior ReadBatch call and that call's own XAck — spec
// §4.6 "pending-entries scan every 60 s reclaims messages whose original
// consumer has been idle for more than 300 s" and §7 "process crash: on
// restart, reclaim pending entries after 300 s idle".
func (b *Bus) ReclaimStale(ctx context.Context, stream, group, consumer string, minIdle time.Duration, count int64) ([]redis.XMessage, error) {
	msgs, _, err := b.rdb.XAutoClaim(ctx, &redis.XAutoClaimArgs{
		Stream:   stream,
		Group:    group,
		Consumer: consumer,
		MinIdle:  minIdle,
		Start:    "0",
		Count:    count,
	}).Result()
	if err != nil {
		return nil, fmt.Errorf("bus: autoclaim %s on %s: %w", group, stream, err)
	}
	if len(msgs) == 0 {
		return nil, nil
	}
	ids := make([]string, len(msgs))
	for i, m := range msgs {
		ids[i] = m.ID
	}
	if err := b.rdb.XAck(ctx, stream, group, ids...).Err(); err != nil {
		return nil, fmt.Errorf("bus: ack reclaimed %s on %s: %w", group, stream, err)
	}
	return msgs, nil
}

// RunReclaimLoop polls ReclaimStale every interval until ctx is cancelled,
// handing every reclaimed message's payload to handle. Each
// stream-consuming binary (scanner, monitor, buyexec, sellexec) runs one
// of these for the stream it consumes, alongside its worker pool.
func RunReclaimLoop(ctx context.Context, b *Bus, stream, group, consumer string, interval, minIdle time.Duration, handle Handler) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			msgs, err := b.ReclaimStale(ctx, stream, group, consumer, minIdle, 100)
			if err != nil {
				continue
			}
			for _, m := range msgs {
				payload, err := Payload(m)
				if err != nil {
					_ = b.DeadLetter(ctx, stream, nil, fmt.Sprintf("reclaim: %v", err))
					continue
				}
				_ = handle(ctx, payload)
			}
		}
	}
}

// Payload extracts the JSON payload bytes from a stream message.
func Payload(msg redis.XMessage) ([]byte, error) {
	return PayloadFromValues(msg.ID, msg.Values)
}

// PayloadFromValues is Payload over a raw id/values pair, for callers
// that have already peeled the message apart.
func PayloadFromValues(id string, values map[string]any) ([]byte, error) {
	raw, ok := values[payloadField]
	if !ok {
		return nil, fmt.Errorf("bus: message %s missing %q field", id, payloadField)
	}
	switch v := raw.(type) {
	case string:
		return []byte(v), nil
	case []byte:
		return v, nil
	default:
		return nil, fmt.Errorf("bus: message %s has non-string payload", id)
	}
}

// ReadBatchPending performs a single blocking XReadGroup call WITHOUT
// acknowledging the messages it returns. The executors use this variant:
// their failure taxonomy (spec §4.4, §7) distinguishes errors that must
// be ACKed (validation, precondition, business) from brokerage transport
// errors that must be left pending so the 300s pending-entries recovery
// re-delivers them. Callers are responsible for calling Ack on every
// message whose error kind says errs.ShouldAck.
func (b *Bus) ReadBatchPending(ctx context.Context, stream string, opt ConsumeOptions) ([]redis.XMessage, error) {
	res, err := b.rdb.XReadGroup(ctx, &redis.XReadGroupArgs{
		Group:    opt.Group,
		Consumer: opt.Consumer,
		Streams:  []string{stream, ">"},
		Count:    opt.BatchSize,
		Block:    opt.Block,
	}).Result()
	if err != nil {
		if err == redis.Nil {
			return nil, nil
		}
		return nil, fmt.Errorf("bus: read group %s on %s: %w", opt.Group, stream, err)
	}
	if len(res) == 0 {
		return nil, nil
	}
	return res[0].Messages, nil
}

// Ack acknowledges ids on stream for group.
func (b *Bus) Ack(ctx context.Context, stream, group string, ids ...string) error {
	if len(ids) == 0 {
		return nil
	}
	if err := b.rdb.XAck(ctx, stream, group, ids...).Err(); err != nil {
		return fmt.Errorf("bus: ack %s on %s: %w", group, stream, err)
	}
	return nil
}

// DeadLetter appends a malformed or unprocessable payload to the stream's
// dead-letter log for later operator inspection.
func (b *Bus) DeadLetter(ctx context.Context, stream string, payload []byte, reason string) error {
	err := b.rdb.XAdd(ctx, &redis.XAddArgs{
		Stream: "deadletter:" + stream,
		MaxLen: 10000,
		Approx: true,
		Values: map[string]any{
			payloadField: payload,
			"reason":     reason,
			"at":         time.Now().UTC().Format(time.RFC3339),
		},
	}).Err()
	if err != nil {
		return fmt.Errorf("bus: dead-letter on %s: %w", stream, err)
	}
	return nil
}
