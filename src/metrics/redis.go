package metrics

import (
	"context"
	"fmt"
	"strconv"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

const (
	counterKey    = "safetyjim:counters"
	timingStream  = "safetyjim.timings"
	timingMaxLen  = 10000
	flushInterval = 10 * time.Second
)

// Connect parses a redis:// URL and pings the server.
func Connect(ctx context.Context, url string) (*redis.Client, error) {
	opt, err := redis.ParseURL(url)
	if err != nil {
		return nil, fmt.Errorf("redis: %w", err)
	}
	rdb := redis.NewClient(opt)
	if err := rdb.Ping(ctx).Err(); err != nil {
		_ = rdb.Close()
		return nil, fmt.Errorf("redis ping: %w", err)
	}
	return rdb, nil
}

type timing struct {
	name string
	d    time.Duration
	at   time.Time
}

// RedisSink aggregates counters and timings in memory and flushes them to
// Redis in one pipeline. Increment and Histogram never touch the network.
type RedisSink struct {
	rdb *redis.Client
	log *zap.Logger

	mu      sync.Mutex
	counts  map[string]int64
	timings []timing
}

func NewRedisSink(rdb *redis.Client, log *zap.Logger) *RedisSink {
	return &RedisSink{
		rdb:    rdb,
		log:    log,
		counts: make(map[string]int64),
	}
}

func (s *RedisSink) Increment(name string) {
	s.mu.Lock()
	s.counts[name]++
	s.mu.Unlock()
}

func (s *RedisSink) Histogram(name string, d time.Duration) {
	s.mu.Lock()
	s.timings = append(s.timings, timing{name: name, d: d, at: time.Now()})
	s.mu.Unlock()
}

// Run flushes on every tick until ctx is done, then flushes once more.
func (s *RedisSink) Run(ctx context.Context) error {
	ticker := time.NewTicker(flushInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			final, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			if err := s.Flush(final); err != nil {
				s.log.Warn("final metrics flush failed", zap.Error(err))
			}
			cancel()
			return nil
		case <-ticker.C:
			if err := s.Flush(ctx); err != nil {
				s.log.Warn("metrics flush failed", zap.Error(err))
			}
		}
	}
}

// Flush writes everything aggregated since the last flush. On failure the
// pending data is dropped.
func (s *RedisSink) Flush(ctx context.Context) error {
	s.mu.Lock()
	counts, timings := s.counts, s.timings
	s.counts, s.timings = make(map[string]int64), nil
	s.mu.Unlock()

	if len(counts) == 0 && len(timings) == 0 {
		return nil
	}

	pipe := s.rdb.Pipeline()
	for name, n := range counts {
		pipe.HIncrBy(ctx, counterKey, name, n)
	}
	for _, t := range timings {
		pipe.XAdd(ctx, &redis.XAddArgs{
			Stream: timingStream,
			MaxLen: timingMaxLen,
			Approx: true,
			Values: map[string]interface{}{
				"name": t.name,
				"ms":   strconv.FormatInt(t.d.Milliseconds(), 10),
				"at":   t.at.Unix(),
			},
		})
	}
	_, err := pipe.Exec(ctx)
	return err
}

// Counters returns the persisted counter totals.
func (s *RedisSink) Counters(ctx context.Context) (map[string]int64, error) {
	raw, err := s.rdb.HGetAll(ctx, counterKey).Result()
	if err != nil {
		return nil, err
	}
	out := make(map[string]int64, len(raw))
	for name, v := range raw {
		n, err := strconv.ParseInt(v, 10, 64)
		if err != nil {
			continue
		}
		out[name] = n
	}
	return out, nil
}
