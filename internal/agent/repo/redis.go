package repo

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/chat-food/server/internal/agent/model"
	errx "github.com/chat-food/server/internal/core/error"
	logx "github.com/chat-food/server/pkg/logger"
	"github.com/redis/go-redis/v9"
)

// listReader is satisfied by both the client and a WATCH transaction.
type listReader interface {
	LRange(ctx context.Context, key string, start, stop int64) *redis.StringSliceCmd
}

// maxWatchRetries bounds optimistic retries when another writer touched the session.
const maxWatchRetries = 3

type RedisConversationRepository struct {
	rdb redis.UniversalClient
	ttl time.Duration
}

func NewRedisConversationRepository(rdb redis.UniversalClient, ttl time.Duration) *RedisConversationRepository {
	return &RedisConversationRepository{rdb: rdb, ttl: ttl}
}

func (r *RedisConversationRepository) intentsKey(sessionID string) string {
	return fmt.Sprintf("session:%s:intents", sessionID)
}

func (r *RedisConversationRepository) turnsKey(sessionID string) string {
	return fmt.Sprintf("session:%s:turns", sessionID)
}

func (r *RedisConversationRepository) LoadWindow(ctx context.Context, sessionID string) (*model.Window, error) {
	w, err := r.read(ctx, r.rdb, sessionID)
	if err != nil {
		logx.Error().Err(err).Str("session_id", sessionID).Msg("failed to load conversation window from redis")
		return nil, err
	}
	return w, nil
}

func (r *RedisConversationRepository) UpdateWindow(ctx context.Context, sessionID string, fn func(model.Window) model.Window) (*model.Window, error) {
	intentsKey, turnsKey := r.intentsKey(sessionID), r.turnsKey(sessionID)

	var updated model.Window
	txf := func(tx *redis.Tx) error {
		current, err := r.read(ctx, tx, sessionID)
		if err != nil {
			return err
		}
		updated = fn(*current)
		updated.SessionID = sessionID

		labels := make([]any, 0, len(updated.Labels))
		for _, l := range updated.Labels {
			labels = append(labels, string(l))
		}
		turns := make([]any, 0, len(updated.Turns))
		for _, t := range updated.Turns {
			b, err := json.Marshal(t)
			if err != nil {
				return fmt.Errorf("marshal turn: %w", err)
			}
			turns = append(turns, b)
		}

		_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			pipe.Del(ctx, intentsKey, turnsKey)
			if len(labels) == 0 {
				return nil
			}
			pipe.RPush(ctx, intentsKey, labels...)
			pipe.RPush(ctx, turnsKey, turns...)
			// extend TTL on touch
			if r.ttl > 0 {
				pipe.Expire(ctx, intentsKey, r.ttl)
				pipe.Expire(ctx, turnsKey, r.ttl)
			}
			return nil
		})
		return err
	}

	var err error
	for attempt := 0; attempt < maxWatchRetries; attempt++ {
		err = r.rdb.Watch(ctx, txf, intentsKey, turnsKey)
		if !errors.Is(err, redis.TxFailedErr) {
			break
		}
		logx.Warn().Str("session_id", sessionID).Int("attempt", attempt+1).Msg("conversation window changed concurrently, retrying")
	}
	if err != nil {
		logx.Error().Err(err).Str("session_id", sessionID).Msg("failed to update conversation window")
		var appErr *errx.AppError
		if errors.As(err, &appErr) {
			return nil, err
		}
		return nil, errx.WrapRedis(err)
	}
	return &updated, nil
}

func (r *RedisConversationRepository) SetLastReply(ctx context.Context, sessionID string, reply string) error {
	_, err := r.UpdateWindow(ctx, sessionID, func(w model.Window) model.Window {
		if n := len(w.Turns); n > 0 {
			w.Turns[n-1].Assistant = reply
		}
		return w
	})
	return err
}

func (r *RedisConversationRepository) ClearHistory(ctx context.Context, sessionID string) error {
	if err := r.rdb.Del(ctx, r.intentsKey(sessionID), r.turnsKey(sessionID)).Err(); err != nil {
		logx.Error().Err(err).Str("session_id", sessionID).Msg("failed to delete conversation window from redis")
		return errx.WrapRedis(err)
	}
	return nil
}

// read loads both lists. A length mismatch (e.g. one key expired alone) keeps
// only the common tail so labels and turns stay paired.
func (r *RedisConversationRepository) read(ctx context.Context, c listReader, sessionID string) (*model.Window, error) {
	labels, err := c.LRange(ctx, r.intentsKey(sessionID), 0, -1).Result()
	if err != nil && err != redis.Nil {
		return nil, errx.WrapRedis(err)
	}
	rows, err := c.LRange(ctx, r.turnsKey(sessionID), 0, -1).Result()
	if err != nil && err != redis.Nil {
		return nil, errx.WrapRedis(err)
	}

	if len(labels) != len(rows) {
		logx.Warn().
			Str("session_id", sessionID).
			Int("labels", len(labels)).
			Int("turns", len(rows)).
			Msg("conversation window out of sync, keeping common tail")
		n := min(len(labels), len(rows))
		labels = labels[len(labels)-n:]
		rows = rows[len(rows)-n:]
	}

	w := &model.Window{
		SessionID: sessionID,
		Labels:    make([]model.Intent, 0, len(labels)),
		Turns:     make([]model.ConversationTurn, 0, len(rows)),
	}
	for _, l := range labels {
		w.Labels = append(w.Labels, model.Intent(l))
	}
	for i, s := range rows {
		var t model.ConversationTurn
		if err := json.Unmarshal([]byte(s), &t); err != nil {
			return nil, fmt.Errorf("unmarshal turn at index %d: %w", i, err)
		}
		w.Turns = append(w.Turns, t)
	}
	return w, nil
}

var _ model.ConversationRepository = (*RedisConversationRepository)(nil)
