package storage

import (
	"context"
	"errors"
	"strings"
)

var ErrNotFound = errors.New("storage key not found")

// Storage is a key-value store partitioned by scope. A scope is one browser
// context; keys inside a scope never collide with keys of another scope.
type Storage interface {
	Get(ctx context.Context, scope, key string) (string, error)
	Set(ctx context.Context, scope, key, value string) error
	Remove(ctx context.Context, scope, key string) error
}

func validate(scope, key string) error {
	if strings.TrimSpace(scope) == "" {
		return errors.New("storage scope is required")
	}
	if strings.TrimSpace(key) == "" {
		return errors.New("storage key is required")
	}
	return nil
}
