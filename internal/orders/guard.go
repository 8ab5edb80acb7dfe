package orders

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	goredis "github.com/redis/go-redis/v9"

	pkgerrors "github.com/ventiahq/ventia-backend/pkg/errors"
	"github.com/ventiahq/ventia-backend/pkg/redis"
)

const guardPendingMarker = "pending"

// creationGuard deduplicates order creation by content fingerprint. The first
// caller claims the fingerprint before doing any work; concurrent identical
// requests are rejected while the claim is pending, and later retries are
// answered with the already-created order id.
type creationGuard struct {
	store redis.IdempotencyStore
	ttl   time.Duration
}

func newCreationGuard(store redis.IdempotencyStore, ttl time.Duration) creationGuard {
	if ttl <= 0 {
		ttl = 7 * 24 * time.Hour
	}
	return creationGuard{store: store, ttl: ttl}
}

// claim attempts to own the fingerprint. It returns the id of the previously
// created order when the same content was already processed.
func (g creationGuard) claim(ctx context.Context, fingerprint string) (*uuid.UUID, error) {
	key := g.store.IdempotencyKey("order-create", fingerprint)

	ok, err := g.store.SetNX(ctx, key, guardPendingMarker, g.ttl)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "idempotency store unavailable")
	}
	if ok {
		return nil, nil
	}

	value, err := g.store.Get(ctx, key)
	if errors.Is(err, goredis.Nil) {
		// Claim expired between SetNX and Get; try once more.
		ok, err = g.store.SetNX(ctx, key, guardPendingMarker, g.ttl)
		if err != nil {
			return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "idempotency store unavailable")
		}
		if ok {
			return nil, nil
		}
		return nil, duplicateInFlight()
	}
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "idempotency store unavailable")
	}

	if value == guardPendingMarker {
		return nil, duplicateInFlight()
	}
	orderID, parseErr := uuid.Parse(value)
	if parseErr != nil {
		return nil, duplicateInFlight()
	}
	return &orderID, nil
}

// commit records the created order id so replays resolve to it.
func (g creationGuard) commit(ctx context.Context, fingerprint string, orderID uuid.UUID) error {
	key := g.store.IdempotencyKey("order-create", fingerprint)
	return g.store.Set(ctx, key, orderID.String(), g.ttl)
}

// release frees the claim after a failed creation so the client can retry.
func (g creationGuard) release(ctx context.Context, fingerprint string) error {
	key := g.store.IdempotencyKey("order-create", fingerprint)
	return g.store.Del(ctx, key)
}

func duplicateInFlight() error {
	return pkgerrors.New(pkgerrors.CodeConflict, "identical order creation already in progress")
}
