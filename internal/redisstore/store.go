// Package redisstore mirrors loop state into Redis so that other lab tools
// can read the current lock state and recent history without talking to
// the daemon.
package redisstore

import (
	"context"
	"fmt"
	"log"
	"sync/atomic"
	"time"

	"github.com/go-redis/redis/v8"

	"github.com/sweeney/lock-feedback/internal/logic"
	"github.com/sweeney/lock-feedback/internal/mqtt"
	"github.com/sweeney/lock-feedback/internal/status"
)

// Key names, relative to Config.Prefix.
const (
	KeyLatest  = "latest"
	KeyLock    = "lock"
	KeySamples = "samples"
	KeyEvents  = "events"
	KeyCounts  = "counts"
)

const queueSize = 64

// Config holds the Redis connection settings.
type Config struct {
	Addr     string
	Password string
	DB       int
	Prefix   string
	// HistoryLimit caps the samples sorted set and the events list.
	HistoryLimit int64
	// Timeout bounds the ping and every pipeline write.
	Timeout time.Duration
}

// DefaultConfig returns the settings used when only an address is given.
func DefaultConfig() Config {
	return Config{
		Addr:         "localhost:6379",
		Prefix:       "lockfb",
		HistoryLimit: 1000,
		Timeout:      2 * time.Second,
	}
}

// Store writes loop reports to Redis from a single background worker.
type Store struct {
	client  *redis.Client
	cfg     Config
	reports chan logic.Report
	dropped atomic.Int64
}

// New creates a Store. No connection is made until Ping or Run.
func New(cfg Config) *Store {
	if cfg.Prefix == "" {
		cfg.Prefix = DefaultConfig().Prefix
	}
	if cfg.HistoryLimit <= 0 {
		cfg.HistoryLimit = DefaultConfig().HistoryLimit
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = DefaultConfig().Timeout
	}
	return &Store{
		client: redis.NewClient(&redis.Options{
			Addr:     cfg.Addr,
			Password: cfg.Password,
			DB:       cfg.DB,
		}),
		cfg:     cfg,
		reports: make(chan logic.Report, queueSize),
	}
}

// Ping checks that the server is reachable.
func (s *Store) Ping(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, s.cfg.Timeout)
	defer cancel()
	if err := s.client.Ping(ctx).Err(); err != nil {
		return fmt.Errorf("redis ping %s: %w", s.cfg.Addr, err)
	}
	return nil
}

// Record queues r for the worker. It never blocks; when the queue is full
// the report is dropped and counted.
func (s *Store) Record(r logic.Report) {
	select {
	case s.reports <- r:
	default:
		s.dropped.Add(1)
	}
}

// Dropped returns the number of reports discarded because the queue was full.
func (s *Store) Dropped() int64 {
	return s.dropped.Load()
}

// Run writes queued reports until ctx is done.
func (s *Store) Run(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case r := <-s.reports:
			if err := s.write(ctx, r); err != nil {
				log.Printf("redis: %v", err)
			}
		}
	}
}

func (s *Store) write(ctx context.Context, r logic.Report) error {
	ctx, cancel := context.WithTimeout(ctx, s.cfg.Timeout)
	defer cancel()

	pipe := s.client.Pipeline()
	s.queue(ctx, pipe, r)
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("write report: %w", err)
	}
	return nil
}

// queue adds the commands for one report to pipe and returns them.
func (s *Store) queue(ctx context.Context, pipe redis.Pipeliner, r logic.Report) []redis.Cmder {
	var cmds []redis.Cmder
	add := func(c redis.Cmder) { cmds = append(cmds, c) }

	add(pipe.Set(ctx, s.key(KeyLatest), status.FormatReport(r), 0))

	c := r.Counts
	add(pipe.HSet(ctx, s.key(KeyCounts),
		"iterations", c.Iterations,
		"read_errors", c.ReadErrors,
		"raises", c.Raises,
		"lowers", c.Lowers,
		"rearms", c.Rearms,
		"failures", c.Failures,
	))

	if r.ReadErr != nil {
		return cmds
	}

	add(pipe.Set(ctx, s.key(KeyLock), string(r.Reading.State), 0))

	ms := r.Timestamp.UnixMilli()
	add(pipe.ZAdd(ctx, s.key(KeySamples), &redis.Z{
		Score:  float64(ms),
		Member: fmt.Sprintf("%d:%.6f", ms, r.Reading.Mean),
	}))
	add(pipe.ZRemRangeByRank(ctx, s.key(KeySamples), 0, -(s.cfg.HistoryLimit + 1)))

	if len(r.Events) == 0 {
		return cmds
	}
	for _, e := range r.Events {
		payload, err := mqtt.FormatPayload(e)
		if err != nil {
			continue
		}
		add(pipe.LPush(ctx, s.key(KeyEvents), payload))
	}
	add(pipe.LTrim(ctx, s.key(KeyEvents), 0, s.cfg.HistoryLimit-1))
	return cmds
}

func (s *Store) key(name string) string {
	return s.cfg.Prefix + ":" + name
}

// Close releases the client.
func (s *Store) Close() error {
	return s.client.Close()
}
