package store

import (
	"context"

	"object-sync-service/internal/user"
)

// UserStore persists authenticated users across process restarts as opaque
// portable tokens. Load returns (nil, nil) when the key is absent.
type UserStore interface {
	Save(ctx context.Context, key string, u *user.User) error
	Load(ctx context.Context, key string) (*user.User, error)
	Delete(ctx context.Context, key string) error
	All(ctx context.Context) ([]*user.User, error)
	Close() error
}

// SaveAsync runs Save on a worker goroutine and reports the result through
// the callback, which runs on that goroutine.
func SaveAsync(ctx context.Context, s UserStore, key string, u *user.User, callback func(error)) {
	go func() {
		callback(s.Save(ctx, key, u))
	}()
}

// LoadAsync runs Load on a worker goroutine and reports the result through
// the callback, which runs on that goroutine.
func LoadAsync(ctx context.Context, s UserStore, key string, callback func(*user.User, error)) {
	go func() {
		callback(s.Load(ctx, key))
	}()
}
