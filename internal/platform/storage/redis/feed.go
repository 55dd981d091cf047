package redis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/marcelojr/awards-night/internal/domain"
)

// Feed uses a Redis list to publish accepted votes for the live-tally worker.
type Feed struct {
	client *redis.Client
	key    string
}

func NewFeed(client *redis.Client, key string) *Feed {
	return &Feed{
		client: client,
		key:    key,
	}
}

func (f *Feed) PublishVote(ctx context.Context, event domain.VoteEvent) error {
	payload, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("redis feed: encode vote event: %w", err)
	}
	if err := f.client.LPush(ctx, f.key, payload).Err(); err != nil {
		return fmt.Errorf("redis feed: publish vote event: %w", err)
	}
	return nil
}

func (f *Feed) ConsumeVotes(ctx context.Context, handler func(context.Context, domain.VoteEvent) error) error {
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}

		// BRPOP blocks with a short timeout so the context stays responsive.
		res, err := f.client.BRPop(ctx, 5*time.Second, f.key).Result()
		if err != nil {
			if errors.Is(err, redis.Nil) {
				continue
			}
			if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
				return err
			}
			return fmt.Errorf("redis feed: consume vote event: %w", err)
		}

		if len(res) != 2 {
			continue
		}

		var event domain.VoteEvent
		if err := json.Unmarshal([]byte(res[1]), &event); err != nil {
			return fmt.Errorf("redis feed: invalid payload: %w", err)
		}

		// The handler decides whether the event was applied; errors stop the loop.
		if err := handler(ctx, event); err != nil {
			return err
		}
	}
}

var _ domain.Feed = (*Feed)(nil)
