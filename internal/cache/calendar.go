package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"schoolhub/attendance/internal/calendar"
)

// CalendarCache keeps a session's calendar entries in redis. A nil client
// turns every call into a miss or no-op.
//
// Every write bumps a per-session generation. Readers take the generation
// before loading from the store and Set only stores entries when it has not
// moved, so a slow reader cannot put back a calendar a writer just replaced.
type CalendarCache struct {
	client *redis.Client
	ttl    time.Duration
}

func NewCalendarCache(client *redis.Client, ttl time.Duration) *CalendarCache {
	if ttl <= 0 {
		ttl = 10 * time.Minute
	}
	return &CalendarCache{client: client, ttl: ttl}
}

func (c *CalendarCache) Enabled() bool {
	return c != nil && c.client != nil
}

func (c *CalendarCache) Get(ctx context.Context, sessionID string) ([]calendar.CalendarDate, bool, error) {
	if !c.Enabled() {
		return nil, false, nil
	}
	value, err := c.client.Get(ctx, calendarKey(sessionID)).Bytes()
	if err == redis.Nil {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, err
	}
	var entries []calendar.CalendarDate
	if err := json.Unmarshal(value, &entries); err != nil {
		return nil, false, err
	}
	return entries, true, nil
}

// Generation returns the session's write generation, zero before any write.
func (c *CalendarCache) Generation(ctx context.Context, sessionID string) (int64, error) {
	if !c.Enabled() {
		return 0, nil
	}
	gen, err := c.client.Get(ctx, generationKey(sessionID)).Int64()
	if err == redis.Nil {
		return 0, nil
	}
	return gen, err
}

// Set stores entries loaded while the generation was gen. It is a no-op when a
// write happened since.
func (c *CalendarCache) Set(ctx context.Context, sessionID string, gen int64, entries []calendar.CalendarDate) error {
	if !c.Enabled() {
		return nil
	}
	data, err := json.Marshal(entries)
	if err != nil {
		return err
	}
	genKey := generationKey(sessionID)
	err = c.client.Watch(ctx, func(tx *redis.Tx) error {
		current, err := tx.Get(ctx, genKey).Int64()
		if err != nil && err != redis.Nil {
			return err
		}
		if current != gen {
			return nil
		}
		_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			pipe.Set(ctx, calendarKey(sessionID), data, c.ttl)
			return nil
		})
		return err
	}, genKey)
	if errors.Is(err, redis.TxFailedErr) {
		return nil
	}
	return err
}

// Invalidate drops the cached entries and bumps the generation. Call it after
// the store write has committed.
func (c *CalendarCache) Invalidate(ctx context.Context, sessionID string) error {
	if !c.Enabled() {
		return nil
	}
	_, err := c.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.Incr(ctx, generationKey(sessionID))
		pipe.Del(ctx, calendarKey(sessionID))
		return nil
	})
	return err
}

func calendarKey(sessionID string) string {
	return fmt.Sprintf("calendar:%s", sessionID)
}

func generationKey(sessionID string) string {
	return fmt.Sprintf("calendar:%s:gen", sessionID)
}
