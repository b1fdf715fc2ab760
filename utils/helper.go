package utils

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"bitbucket.org/mmdatafocus/marketsync_backend/config"
	"github.com/bsm/redislock"
	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"
)

func IntFromEnv(key string, def int) int {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return def
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return def
	}
	return n
}

func BoolFromEnv(key string, def bool) bool {
	val := strings.ToLower(strings.TrimSpace(os.Getenv(key)))
	switch val {
	case "true", "1", "yes", "y", "on":
		return true
	case "false", "0", "no", "n", "off":
		return false
	default:
		return def
	}
}

func StringFromEnv(key string, def string) string {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return def
	}
	return v
}

// DecimalFromNumber tolerates absent and malformed numeric payload fields;
// upstream feeds occasionally send "" for zero amounts.
func DecimalFromNumber(num json.Number) decimal.Decimal {
	if num.String() == "" {
		return decimal.Zero
	}
	if d, err := decimal.NewFromString(num.String()); err == nil {
		return d
	}
	return decimal.Zero
}

// ObtainSyncLock takes a distributed lock for one client's sync cycle so
// overlapping schedules cannot write the same window concurrently. The store
// session is serialized per cycle; the lock enforces that across processes.
// Returns a release func. When Redis is not configured the lock degrades to a
// no-op (single-process deployments).
func ObtainSyncLock(ctx context.Context, marketplace string, clientId string, ttl time.Duration, logger *logrus.Logger) (func(), error) {
	locker := config.GetRedisLock()
	if locker == nil {
		return func() {}, nil
	}

	lockKey := fmt.Sprintf("marketsync:%s:%s", marketplace, clientId)
	lock, err := locker.Obtain(ctx, lockKey, ttl, nil)
	if err == redislock.ErrNotObtained {
		config.LogError(logger, "utils", "ObtainSyncLock", "Could not obtain sync lock for client", clientId, err)
		return nil, errors.New("could not obtain sync lock for client")
	} else if err != nil {
		config.LogError(logger, "utils", "ObtainSyncLock", "Error obtaining sync lock for client", clientId, err)
		return nil, err
	}

	return func() {
		_ = lock.Release(ctx)
	}, nil
}
