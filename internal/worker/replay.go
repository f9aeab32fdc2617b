package worker

// replay.go
// Background goroutine that periodically moves dead receipt jobs back onto
// their queue. It skips the tick while the order backend breaker is open and
// leaves a job parked once it has been replayed MaxReplays times.

import (
	"context"
	"encoding/json"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog/log"
)

// ReplayConfig holds all dependencies for the replay goroutine.
type ReplayConfig struct {
	RDB        *redis.Client
	Queue      string
	Interval   time.Duration
	BatchSize  int
	MaxReplays int
	// BackendDown reports whether replays should wait, typically the order
	// breaker being open. Nil means never.
	BackendDown func() bool
}

// StartDLQReplay launches the replay loop. It respects ctx for graceful shutdown.
func StartDLQReplay(ctx context.Context, cfg ReplayConfig) {
	if cfg.Interval <= 0 {
		cfg.Interval = time.Minute
	}
	go func() {
		ticker := time.NewTicker(cfg.Interval)
		defer ticker.Stop()

		log.Info().Str("queue", cfg.Queue).Msg("dlq_replay: started")

		for {
			select {
			case <-ctx.Done():
				log.Info().Msg("dlq_replay: shutting down")
				return
			case <-ticker.C:
				if n, err := ReplayDLQ(ctx, cfg); err != nil {
					log.Error().Err(err).Msg("dlq_replay: tick failed")
				} else if n > 0 {
					log.Info().Int("replayed", n).Str("queue", cfg.Queue).Msg("dlq_replay: jobs requeued")
				}
			}
		}
	}()
}

// ReplayDLQ runs one replay pass and returns how many jobs were requeued.
// Exhausted entries are rotated to the head of the DLQ so they stay
// available for manual inspection.
func ReplayDLQ(ctx context.Context, cfg ReplayConfig) (int, error) {
	if cfg.BackendDown != nil && cfg.BackendDown() {
		log.Debug().Msg("dlq_replay: backend unavailable, skipping tick")
		return 0, nil
	}
	if cfg.BatchSize <= 0 {
		cfg.BatchSize = 10
	}

	dlqKey := DLQPrefix + cfg.Queue
	replayed := 0
	for i := 0; i < cfg.BatchSize; i++ {
		raw, err := cfg.RDB.RPop(ctx, dlqKey).Result()
		if err == redis.Nil {
			break
		}
		if err != nil {
			return replayed, err
		}

		var entry DLQEntry
		if err := json.Unmarshal([]byte(raw), &entry); err != nil {
			log.Error().Err(err).Msg("dlq_replay: dropping unreadable entry")
			continue
		}
		if entry.Replays >= cfg.MaxReplays {
			if err := cfg.RDB.LPush(ctx, dlqKey, raw).Err(); err != nil {
				return replayed, err
			}
			continue
		}

		encoded, err := json.Marshal(Job{Type: entry.JobType, Payload: entry.Payload, Replays: entry.Replays + 1})
		if err != nil {
			return replayed, err
		}
		if err := cfg.RDB.LPush(ctx, entry.OriginalQueue, encoded).Err(); err != nil {
			return replayed, err
		}
		replayed++
	}
	return replayed, nil
}
