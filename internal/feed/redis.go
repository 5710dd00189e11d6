package feed

import (
	"context"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

// RedisBroker fans topic changes out across server instances over Redis
// pub/sub. Publishes go to Redis only; local listeners are woken when the
// message comes back through the subscription, including our own.
type RedisBroker struct {
	local  *Broker
	client *redis.Client
	prefix string
	log    *zap.Logger
}

// NewRedisBroker returns a broker publishing on channels "<prefix>:<topic>".
func NewRedisBroker(client *redis.Client, prefix string, log *zap.Logger) *RedisBroker {
	if prefix == "" {
		prefix = "chatfeed"
	}
	return &RedisBroker{local: NewBroker(), client: client, prefix: prefix, log: log.Named("feed")}
}

func (r *RedisBroker) channel(topic string) string { return r.prefix + ":" + topic }

func (r *RedisBroker) Listen(topics ...string) (<-chan struct{}, func()) {
	return r.local.Listen(topics...)
}

// publishTimeout bounds a publish that outlives the request that caused it.
const publishTimeout = 2 * time.Second

// publishContext detaches a publish from its caller. Stores publish right
// after a commit, and a client hanging up at that moment must not keep other
// instances from hearing about the write.
func publishContext(ctx context.Context) (context.Context, context.CancelFunc) {
	return context.WithTimeout(context.WithoutCancel(ctx), publishTimeout)
}

func (r *RedisBroker) Publish(ctx context.Context, topics ...string) {
	ctx, cancel := publishContext(ctx)
	defer cancel()
	for _, t := range topics {
		if err := r.client.Publish(ctx, r.channel(t), "").Err(); err != nil {
			// keep this instance's subscribers live even when redis is down
			r.log.Warn("redis publish failed, delivering locally", zap.String("topic", t), zap.Error(err))
			r.local.Publish(ctx, t)
		}
	}
}

// Run relays Redis messages to local listeners until ctx is cancelled.
func (r *RedisBroker) Run(ctx context.Context) error {
	ps := r.client.PSubscribe(ctx, r.prefix+":*")
	defer ps.Close()

	// wait for the subscription to be confirmed so early publishes are not lost
	if _, err := ps.Receive(ctx); err != nil {
		return err
	}

	ch := ps.Channel()
	for {
		select {
		case <-ctx.Done():
			return nil
		case msg, ok := <-ch:
			if !ok {
				return nil
			}
			r.local.Publish(ctx, strings.TrimPrefix(msg.Channel, r.prefix+":"))
		}
	}
}
