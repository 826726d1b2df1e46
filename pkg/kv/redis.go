package kv

import (
	"context"
	"errors"

	pkgerrors "github.com/leminhvu/packtrace-backend/pkg/errors"
	pkgredis "github.com/leminhvu/packtrace-backend/pkg/redis"
)

// Redis adapts the shared redis client into a Gateway.
type Redis struct {
	client *pkgredis.Client
}

// NewRedis wraps an already-connected redis client.
func NewRedis(client *pkgredis.Client) (*Redis, error) {
	if client == nil {
		return nil, errors.New("redis client required")
	}
	return &Redis{client: client}, nil
}

func (r *Redis) Get(ctx context.Context, key string) ([]byte, bool, error) {
	val, err := r.client.Get(ctx, r.client.GatewayKey(key))
	if err != nil {
		if errors.Is(err, pkgredis.Nil) {
			return nil, false, nil
		}
		return nil, false, pkgerrors.Wrap(pkgerrors.CodeStorageUnavailable, err, "redis get")
	}
	return []byte(val), true, nil
}

func (r *Redis) Set(ctx context.Context, key string, value []byte) error {
	if err := r.client.Set(ctx, r.client.GatewayKey(key), string(value), 0); err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeStorageUnavailable, err, "redis set")
	}
	return nil
}

func (r *Redis) Remove(ctx context.Context, key string) error {
	if err := r.client.Del(ctx, r.client.GatewayKey(key)); err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeStorageUnavailable, err, "redis del")
	}
	return nil
}
