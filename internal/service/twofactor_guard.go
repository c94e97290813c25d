package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/redis/go-redis/v9"
)

// ErrTwoFactorLocked means the user burned through their allowed failed
// code attempts and must wait out the cooldown window.
var ErrTwoFactorLocked = errors.New("too many failed two-factor attempts")

// TwoFactorGuard throttles failed two-factor code attempts per user.
// Implementations fail open: an unreachable backend must not lock every
// user out of 2FA verification.
type TwoFactorGuard interface {
	Check(ctx context.Context, userID uint) error
	RecordFailure(ctx context.Context, userID uint)
	Reset(ctx context.Context, userID uint)
}

type redisTwoFactorGuard struct {
	client      *redis.Client
	maxFailures int
	cooldown    time.Duration
	logger      *slog.Logger
}

func NewRedisTwoFactorGuard(client *redis.Client, maxFailures int, cooldown time.Duration, logger *slog.Logger) TwoFactorGuard {
	if logger == nil {
		logger = slog.Default()
	}
	return &redisTwoFactorGuard{
		client:      client,
		maxFailures: maxFailures,
		cooldown:    cooldown,
		logger:      logger,
	}
}

func (g *redisTwoFactorGuard) key(userID uint) string {
	return fmt.Sprintf("rollt:2fa:failures:%d", userID)
}

func (g *redisTwoFactorGuard) Check(ctx context.Context, userID uint) error {
	count, err := g.client.Get(ctx, g.key(userID)).Int64()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil
		}
		g.logger.Warn("two-factor guard unavailable, allowing attempt", "user_id", userID, "error", err)
		return nil
	}
	if count >= int64(g.maxFailures) {
		return ErrTwoFactorLocked
	}
	return nil
}

func (g *redisTwoFactorGuard) RecordFailure(ctx context.Context, userID uint) {
	count, err := g.client.Incr(ctx, g.key(userID)).Result()
	if err != nil {
		g.logger.Warn("two-factor guard failure not recorded", "user_id", userID, "error", err)
		return
	}
	if count == 1 {
		if err := g.client.Expire(ctx, g.key(userID), g.cooldown).Err(); err != nil {
			g.logger.Warn("two-factor guard cooldown not set", "user_id", userID, "error", err)
		}
	}
}

func (g *redisTwoFactorGuard) Reset(ctx context.Context, userID uint) {
	if err := g.client.Del(ctx, g.key(userID)).Err(); err != nil {
		g.logger.Warn("two-factor guard reset failed", "user_id", userID, "error", err)
	}
}

// noopTwoFactorGuard is used when redis is not configured.
type noopTwoFactorGuard struct{}

func NewNoopTwoFactorGuard() TwoFactorGuard { return noopTwoFactorGuard{} }

func (noopTwoFactorGuard) Check(context.Context, uint) error   { return nil }
func (noopTwoFactorGuard) RecordFailure(context.Context, uint) {}
func (noopTwoFactorGuard) Reset(context.Context, uint)         {}
