package votes

import (
	"context"

	"github.com/pkg/errors"
	"github.com/redis/go-redis/v9"

	"flashvote/logging"
)

// ChangesChannel is the Redis pub/sub channel carrying subject ids of new votes.
const ChangesChannel = "votes:changes"

// Feed broadcasts "subject X got a vote" notifications through Redis so every
// instance's listeners hear about votes stored by any instance.
type Feed struct {
	rdb *redis.Client
}

func NewFeed(rdb *redis.Client) *Feed {
	return &Feed{rdb: rdb}
}

func (f *Feed) Publish(ctx context.Context, subjectID string) error {
	return errors.Wrap(f.rdb.Publish(ctx, ChangesChannel, subjectID).Err(), "publish vote change")
}

// Subscribe returns subject ids as they are published. The channel is closed
// once ctx is done. Notifications are at-least-once and unordered; slow
// readers drop messages instead of blocking the subscription.
func (f *Feed) Subscribe(ctx context.Context) (<-chan string, error) {
	ps := f.rdb.Subscribe(ctx, ChangesChannel)
	// 等 Redis 確認訂閱，之後 Publish 的訊息才不會漏
	if _, err := ps.Receive(ctx); err != nil {
		_ = ps.Close()
		return nil, errors.Wrap(err, "subscribe vote changes")
	}

	out := make(chan string, 16)
	go func() {
		defer close(out)
		defer ps.Close()

		msgs := ps.Channel()
		for {
			select {
			case <-ctx.Done():
				return
			case m, ok := <-msgs:
				if !ok {
					return
				}
				select {
				case out <- m.Payload:
				default:
					logging.Component("change-feed").WithField(logging.FldSubject, m.Payload).Debug("listener behind, dropping change")
				}
			}
		}
	}()
	return out, nil
}
