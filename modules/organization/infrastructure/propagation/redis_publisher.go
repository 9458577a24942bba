package propagation

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	goredis "github.com/redis/go-redis/v9"

	"github.com/jacksonlee411/Roots-And-Branches/modules/organization/domain/types"
)

const defaultChannelPrefix = "org.changes"

// RedisPublisher fans committed change events out over Redis pub/sub, one
// channel per tenant.
type RedisPublisher struct {
	rdb    *goredis.Client
	prefix string
}

func NewRedisPublisher(addr string, prefix string) (*RedisPublisher, error) {
	addr = strings.TrimSpace(addr)
	if addr == "" {
		return nil, fmt.Errorf("missing redis address")
	}
	if strings.TrimSpace(prefix) == "" {
		prefix = defaultChannelPrefix
	}

	rdb := goredis.NewClient(&goredis.Options{
		Addr:        addr,
		DialTimeout: 5 * time.Second,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := rdb.Ping(ctx).Err(); err != nil {
		_ = rdb.Close()
		return nil, fmt.Errorf("redis ping: %w", err)
	}

	return &RedisPublisher{rdb: rdb, prefix: prefix}, nil
}

func (r *RedisPublisher) Publish(ctx context.Context, event types.ChangeEvent) error {
	raw, err := json.Marshal(event)
	if err != nil {
		return err
	}
	return r.rdb.Publish(ctx, channelFor(r.prefix, event.TenantID), raw).Err()
}

// Subscribe forwards events for one tenant to onEvent until ctx is
// cancelled. Duplicate deliveries are filtered by recordId so at-least-once
// publishing stays invisible to the callback.
func (r *RedisPublisher) Subscribe(ctx context.Context, tenantID string, onEvent func(types.ChangeEvent)) error {
	if onEvent == nil {
		return fmt.Errorf("onEvent callback required")
	}

	sub := r.rdb.Subscribe(ctx, channelFor(r.prefix, tenantID))
	if _, err := sub.Receive(ctx); err != nil {
		_ = sub.Close()
		return fmt.Errorf("redis subscribe: %w", err)
	}

	go func() {
		defer func() { _ = sub.Close() }()
		seen := newDedupeWindow(1024)
		ch := sub.Channel()
		for {
			select {
			case <-ctx.Done():
				return
			case m, ok := <-ch:
				if !ok || m == nil {
					return
				}
				var event types.ChangeEvent
				if err := json.Unmarshal([]byte(m.Payload), &event); err != nil {
					continue
				}
				if !seen.observe(event.RecordID, event.OperationType) {
					continue
				}
				onEvent(event)
			}
		}
	}()

	return nil
}

func (r *RedisPublisher) Close() error {
	return r.rdb.Close()
}

func channelFor(prefix string, tenantID string) string {
	return prefix + "." + tenantID
}

// dedupeWindow remembers the last N (recordId, operation) pairs. A bounded
// window is enough: redelivery happens close to the original send.
type dedupeWindow struct {
	limit int
	order []string
	seen  map[string]struct{}
}

func newDedupeWindow(limit int) *dedupeWindow {
	return &dedupeWindow{
		limit: limit,
		seen:  make(map[string]struct{}, limit),
	}
}

// observe reports whether the pair is new, and records it.
func (w *dedupeWindow) observe(recordID string, op types.OperationType) bool {
	key := recordID + "|" + string(op)
	if _, ok := w.seen[key]; ok {
		return false
	}
	w.seen[key] = struct{}{}
	w.order = append(w.order, key)
	if len(w.order) > w.limit {
		oldest := w.order[0]
		w.order = w.order[1:]
		delete(w.seen, oldest)
	}
	return true
}
