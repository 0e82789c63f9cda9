// Package cart stores the per-owner shopping cart as a JSON record in Redis.
package cart

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"goflare.io/market/models"
)

// cartTTL bounds abandoned carts. Active carts refresh it on every write.
const cartTTL = 7 * 24 * time.Hour

// maxTxAttempts bounds the optimistic retry loop when two mutations race on
// the same owner's cart.
const maxTxAttempts = 5

var _ Store = (*store)(nil)

// ErrConflict is returned when an optimistic update loses the race more
// times than we are willing to retry.
var ErrConflict = errors.New("concurrent cart modification")

// CacheError wraps a failure of the backing cache. Callers are expected to
// treat it as "the cache forgot": degrade, never crash.
type CacheError struct {
	Op  string
	Err error
}

func (e *CacheError) Error() string {
	return fmt.Sprintf("cart cache %s: %v", e.Op, e.Err)
}

func (e *CacheError) Unwrap() error {
	return e.Err
}

// Store is the narrow cart persistence contract. Get returns (nil, nil) when
// no cart exists. A cart with zero lines is never written; Set and Update
// delete the record instead.
type Store interface {
	Get(ctx context.Context, ownerID string) (*models.Cart, error)
	Set(ctx context.Context, ownerID string, cart *models.Cart) error
	Delete(ctx context.Context, ownerID string) error

	// Update runs a read-modify-write cycle under optimistic concurrency:
	// the key is watched, fn is applied to the current cart (nil when
	// absent), and the write is retried when a concurrent mutation wins.
	// Errors returned by fn abort the cycle and propagate unchanged.
	Update(ctx context.Context, ownerID string, fn func(*models.Cart) (*models.Cart, error)) (*models.Cart, error)
}

type store struct {
	rdb    *redis.Client
	logger *zap.Logger
}

func NewStore(rdb *redis.Client, logger *zap.Logger) Store {
	return &store{
		rdb:    rdb,
		logger: logger,
	}
}

func cartKey(ownerID string) string {
	return fmt.Sprintf("cart:%s", ownerID)
}

func (s *store) Get(ctx context.Context, ownerID string) (*models.Cart, error) {
	data, err := s.rdb.Get(ctx, cartKey(ownerID)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, nil
	}
	if err != nil {
		s.logger.Warn("failed to read cart", zap.String("owner_id", ownerID), zap.Error(err))
		return nil, &CacheError{Op: "get", Err: err}
	}

	var cart models.Cart
	if err = json.Unmarshal(data, &cart); err != nil {
		s.logger.Error("corrupt cart record", zap.String("owner_id", ownerID), zap.Error(err))
		return nil, &CacheError{Op: "decode", Err: err}
	}

	return &cart, nil
}

func (s *store) Set(ctx context.Context, ownerID string, cart *models.Cart) error {
	if cart == nil || cart.IsEmpty() {
		return s.Delete(ctx, ownerID)
	}

	data, err := json.Marshal(cart)
	if err != nil {
		return &CacheError{Op: "encode", Err: err}
	}

	if err = s.rdb.Set(ctx, cartKey(ownerID), data, cartTTL).Err(); err != nil {
		s.logger.Warn("failed to write cart", zap.String("owner_id", ownerID), zap.Error(err))
		return &CacheError{Op: "set", Err: err}
	}

	return nil
}

func (s *store) Delete(ctx context.Context, ownerID string) error {
	if err := s.rdb.Del(ctx, cartKey(ownerID)).Err(); err != nil {
		s.logger.Warn("failed to delete cart", zap.String("owner_id", ownerID), zap.Error(err))
		return &CacheError{Op: "delete", Err: err}
	}
	return nil
}

func (s *store) Update(ctx context.Context, ownerID string, fn func(*models.Cart) (*models.Cart, error)) (*models.Cart, error) {
	key := cartKey(ownerID)
	var (
		result *models.Cart
		fnErr  error
	)

	txf := func(tx *redis.Tx) error {
		var current *models.Cart

		data, err := tx.Get(ctx, key).Bytes()
		switch {
		case errors.Is(err, redis.Nil):
			// no cart yet
		case err != nil:
			return &CacheError{Op: "get", Err: err}
		default:
			current = new(models.Cart)
			if err = json.Unmarshal(data, current); err != nil {
				return &CacheError{Op: "decode", Err: err}
			}
		}

		next, err := fn(current)
		if err != nil {
			fnErr = err
			return err
		}
		result = next

		_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			if next == nil || next.IsEmpty() {
				pipe.Del(ctx, key)
				return nil
			}
			encoded, err := json.Marshal(next)
			if err != nil {
				return &CacheError{Op: "encode", Err: err}
			}
			pipe.Set(ctx, key, encoded, cartTTL)
			return nil
		})
		return err
	}

	for attempt := 0; attempt < maxTxAttempts; attempt++ {
		fnErr = nil
		err := s.rdb.Watch(ctx, txf, key)
		if err == nil {
			return result, nil
		}
		if errors.Is(err, redis.TxFailedErr) {
			s.logger.Debug("cart update conflict, retrying",
				zap.String("owner_id", ownerID),
				zap.Int("attempt", attempt+1))
			continue
		}
		// fn errors and already-typed cache errors propagate unchanged;
		// anything else came from the connection itself.
		if fnErr != nil && errors.Is(err, fnErr) {
			return nil, err
		}
		var cacheErr *CacheError
		if errors.As(err, &cacheErr) {
			return nil, err
		}
		s.logger.Warn("cart update failed", zap.String("owner_id", ownerID), zap.Error(err))
		return nil, &CacheError{Op: "update", Err: err}
	}

	s.logger.Warn("cart update gave up after repeated conflicts", zap.String("owner_id", ownerID))
	return nil, ErrConflict
}
