package app

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/redis/go-redis/v9"
	"golang.org/x/sync/errgroup"

	"storyloom/pkg/domain"
)

// WorkspaceCache holds the last good workspace payload per user so the
// client can still boot when a collection load fails.
type WorkspaceCache interface {
	Get(ctx context.Context, userID string) (domain.Workspace, bool)
	Set(ctx context.Context, userID string, workspace domain.Workspace)
}

// RedisWorkspaceCache stores workspace snapshots as JSON values.
type RedisWorkspaceCache struct {
	client *redis.Client
	ttl    time.Duration
}

// NewRedisWorkspaceCache connects the cache to Redis.
func NewRedisWorkspaceCache(addr, password string, ttl time.Duration) *RedisWorkspaceCache {
	if ttl <= 0 {
		ttl = 24 * time.Hour
	}
	return &RedisWorkspaceCache{
		client: redis.NewClient(&redis.Options{Addr: addr, Password: password}),
		ttl:    ttl,
	}
}

func workspaceCacheKey(userID string) string {
	return "workspace:snapshot:" + userID
}

func (c *RedisWorkspaceCache) Get(ctx context.Context, userID string) (domain.Workspace, bool) {
	raw, err := c.client.Get(ctx, workspaceCacheKey(userID)).Bytes()
	if err != nil {
		return domain.Workspace{}, false
	}
	var workspace domain.Workspace
	if err := json.Unmarshal(raw, &workspace); err != nil {
		return domain.Workspace{}, false
	}
	return workspace, true
}

func (c *RedisWorkspaceCache) Set(ctx context.Context, userID string, workspace domain.Workspace) {
	raw, err := json.Marshal(workspace)
	if err != nil {
		return
	}
	if err := c.client.Set(ctx, workspaceCacheKey(userID), raw, c.ttl).Err(); err != nil {
		slog.Warn("workspace cache write failed", "user_id", userID, "err", err)
	}
}

// Workspace bulk-loads the client bootstrap payload: all collections are
// fetched concurrently and joined all-or-nothing. If any one load fails the
// whole batch is treated as failed and the last cached snapshot is served
// instead; a fresh successful load refreshes the cache.
func (a *App) Workspace(ctx context.Context, userID string, tier domain.SubscriptionTier) (domain.Workspace, bool, error) {
	var workspace domain.Workspace

	group, groupCtx := errgroup.WithContext(ctx)
	group.Go(func() error {
		projects, err := a.store.ListProjectsByOwner(userID)
		if err != nil {
			return fmt.Errorf("load projects: %w", err)
		}
		workspace.Projects = projects
		return nil
	})
	group.Go(func() error {
		assets, err := a.store.ListAssetsByOwner(userID)
		if err != nil {
			return fmt.Errorf("load assets: %w", err)
		}
		workspace.Assets = assets
		return nil
	})
	group.Go(func() error {
		bible, err := a.store.ListBibleEntriesByOwner(userID)
		if err != nil {
			return fmt.Errorf("load bible: %w", err)
		}
		workspace.Bible = bible
		return nil
	})
	group.Go(func() error {
		snapshots, err := a.store.ListSnapshotsByOwner(userID)
		if err != nil {
			return fmt.Errorf("load snapshots: %w", err)
		}
		workspace.Snapshots = snapshots
		return nil
	})
	group.Go(func() error {
		usage, err := a.billing.Usage(groupCtx, userID, tier)
		if err != nil {
			return fmt.Errorf("load usage: %w", err)
		}
		workspace.Usage = &usage
		return nil
	})

	if err := group.Wait(); err != nil {
		if a.cache != nil {
			if cached, ok := a.cache.Get(ctx, userID); ok {
				slog.Warn("workspace load failed, serving cached snapshot", "user_id", userID, "err", err)
				return cached, true, nil
			}
		}
		return domain.Workspace{}, false, err
	}

	if a.cache != nil {
		a.cache.Set(ctx, userID, workspace)
	}
	return workspace, false, nil
}
