package queue

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
	"storyloom/internal/util"
	"storyloom/pkg/domain"
)

// AssetWriteQueue carries render-asset records to durable storage off the
// request path. Local state is optimistic and authoritative for clients;
// a failed durable write is logged, never retried inline.
type AssetWriteQueue struct {
	client       *redis.Client
	stream       string
	group        string
	consumerBase string
	block        time.Duration
	claimIdle    time.Duration
	maxLen       int64
	readCount    int64
	once         sync.Once
}

// AssetQueueConfig configures the Redis stream behind the queue.
type AssetQueueConfig struct {
	Addr      string
	Password  string
	Stream    string
	Group     string
	Consumer  string
	Block     time.Duration
	ClaimIdle time.Duration
	MaxLen    int64
	ReadCount int64
}

// NewAssetWriteQueue connects to Redis and validates the stream config.
func NewAssetWriteQueue(cfg AssetQueueConfig) (*AssetWriteQueue, error) {
	addr := strings.TrimSpace(cfg.Addr)
	if addr == "" {
		return nil, errors.New("redis addr required")
	}
	stream := strings.TrimSpace(cfg.Stream)
	if stream == "" {
		return nil, errors.New("queue stream required")
	}
	group := strings.TrimSpace(cfg.Group)
	if group == "" {
		group = "asset-writers"
	}
	consumer := strings.TrimSpace(cfg.Consumer)
	if consumer == "" {
		consumer = util.NewID()
	}
	block := cfg.Block
	if block <= 0 {
		block = 5 * time.Second
	}
	claimIdle := cfg.ClaimIdle
	if claimIdle <= 0 {
		claimIdle = 30 * time.Second
	}
	maxLen := cfg.MaxLen
	if maxLen <= 0 {
		maxLen = 10000
	}
	readCount := cfg.ReadCount
	if readCount <= 0 {
		readCount = 10
	}

	return &AssetWriteQueue{
		client:       redis.NewClient(&redis.Options{Addr: addr, Password: cfg.Password}),
		stream:       stream,
		group:        group,
		consumerBase: consumer,
		block:        block,
		claimIdle:    claimIdle,
		maxLen:       maxLen,
		readCount:    readCount,
	}, nil
}

// Enqueue schedules one asset record for durable persistence.
func (q *AssetWriteQueue) Enqueue(ctx context.Context, asset domain.Asset) error {
	if strings.TrimSpace(asset.ID) == "" {
		return errors.New("asset id required")
	}
	payload, err := json.Marshal(asset)
	if err != nil {
		return fmt.Errorf("marshal asset: %w", err)
	}
	return q.client.XAdd(ctx, &redis.XAddArgs{
		Stream: q.stream,
		MaxLen: q.maxLen,
		Approx: true,
		Values: map[string]any{
			"asset_id": asset.ID,
			"payload":  string(payload),
		},
	}).Err()
}

// Start launches consumer goroutines. Each delivered asset is handed to the
// handler exactly once per delivery and then acknowledged regardless of the
// handler outcome; handler failures are logged and dropped.
func (q *AssetWriteQueue) Start(ctx context.Context, concurrency int, handler func(context.Context, domain.Asset) error) {
	if concurrency <= 0 {
		concurrency = 1
	}
	q.ensureGroup(ctx)
	for i := 0; i < concurrency; i++ {
		consumer := fmt.Sprintf("%s-%d", q.consumerBase, i)
		go q.consumeLoop(ctx, consumer, handler)
	}
}

func (q *AssetWriteQueue) ensureGroup(ctx context.Context) {
	q.once.Do(func() {
		err := q.client.XGroupCreateMkStream(ctx, q.stream, q.group, "$").Err()
		if err != nil && !strings.Contains(err.Error(), "BUSYGROUP") {
			// best-effort; errors will surface on consume
		}
	})
}

func (q *AssetWriteQueue) consumeLoop(ctx context.Context, consumer string, handler func(context.Context, domain.Asset) error) {
	for {
		select {
		case <-ctx.Done():
			return
		default:
		}

		if msgs, err := q.claimPending(ctx, consumer); err == nil {
			for _, msg := range msgs {
				q.handleMessage(ctx, msg, handler)
			}
		}

		streams, err := q.client.XReadGroup(ctx, &redis.XReadGroupArgs{
			Group:    q.group,
			Consumer: consumer,
			Streams:  []string{q.stream, ">"},
			Count:    q.readCount,
			Block:    q.block,
		}).Result()
		if err != nil {
			continue
		}
		for _, stream := range streams {
			for _, msg := range stream.Messages {
				q.handleMessage(ctx, msg, handler)
			}
		}
	}
}

func (q *AssetWriteQueue) claimPending(ctx context.Context, consumer string) ([]redis.XMessage, error) {
	res, _, err := q.client.XAutoClaim(ctx, &redis.XAutoClaimArgs{
		Stream:   q.stream,
		Group:    q.group,
		Consumer: consumer,
		MinIdle:  q.claimIdle,
		Start:    "0-0",
		Count:    q.readCount,
	}).Result()
	if err == redis.Nil {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return res, nil
}

func (q *AssetWriteQueue) handleMessage(ctx context.Context, msg redis.XMessage, handler func(context.Context, domain.Asset) error) {
	defer q.ackAndDel(ctx, msg.ID)

	raw, _ := msg.Values["payload"].(string)
	if raw == "" {
		return
	}
	var asset domain.Asset
	if err := json.Unmarshal([]byte(raw), &asset); err != nil {
		slog.Warn("asset write payload malformed, dropping", "msg_id", msg.ID, "err", err)
		return
	}
	if err := handler(ctx, asset); err != nil {
		slog.Warn("durable asset write failed", "asset_id", asset.ID, "err", err)
	}
}

func (q *AssetWriteQueue) ackAndDel(ctx context.Context, msgID string) {
	_, _ = q.client.XAck(ctx, q.stream, q.group, msgID).Result()
	_, _ = q.client.XDel(ctx, q.stream, msgID).Result()
}
