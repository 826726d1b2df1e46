package kv

import "context"

// Backed layers a durable secondary store behind a primary gateway for a
// chosen set of keys. Reads fall back to the secondary and repopulate the
// primary; writes and removals go to both. Only the license record is backed
// this way in practice.
type Backed struct {
	primary   Gateway
	secondary Gateway
	backed    map[string]struct{}
}

// NewBacked wraps primary with a secondary store for the given keys.
func NewBacked(primary, secondary Gateway, keys ...string) *Backed {
	backed := make(map[string]struct{}, len(keys))
	for _, k := range keys {
		backed[k] = struct{}{}
	}
	return &Backed{primary: primary, secondary: secondary, backed: backed}
}

func (b *Backed) isBacked(key string) bool {
	_, ok := b.backed[key]
	return ok
}

func (b *Backed) Get(ctx context.Context, key string) ([]byte, bool, error) {
	val, ok, err := b.primary.Get(ctx, key)
	if err != nil {
		return nil, false, err
	}
	if ok || !b.isBacked(key) {
		return val, ok, nil
	}
	val, ok, err = b.secondary.Get(ctx, key)
	if err != nil || !ok {
		return nil, false, err
	}
	// Restore the primary so subsequent reads stay cheap. Best effort.
	_ = b.primary.Set(ctx, key, val)
	return val, true, nil
}

func (b *Backed) Set(ctx context.Context, key string, value []byte) error {
	if err := b.primary.Set(ctx, key, value); err != nil {
		return err
	}
	if b.isBacked(key) {
		_ = b.secondary.Set(ctx, key, value)
	}
	return nil
}

func (b *Backed) Remove(ctx context.Context, key string) error {
	if err := b.primary.Remove(ctx, key); err != nil {
		return err
	}
	if b.isBacked(key) {
		_ = b.secondary.Remove(ctx, key)
	}
	return nil
}
