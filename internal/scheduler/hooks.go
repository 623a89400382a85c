package scheduler

import (
	"context"

	"github.com/mohamedkhairy/squeeze-scanner/internal/models"
)

// Hook is invoked after every completed scan with the previous and the new
// ranked lists.
type Hook interface {
	Name() string
	OnScan(ctx context.Context, prev, next []models.CacheItem) error
}

// HookFunc adapts a function into a Hook.
type HookFunc struct {
	name string
	fn   func(ctx context.Context, prev, next []models.CacheItem) error
}

// NewHookFunc creates a named function hook.
func NewHookFunc(name string, fn func(ctx context.Context, prev, next []models.CacheItem) error) *HookFunc {
	return &HookFunc{name: name, fn: fn}
}

// Name returns the hook name
func (h *HookFunc) Name() string { return h.name }

// OnScan calls the wrapped function
func (h *HookFunc) OnScan(ctx context.Context, prev, next []models.CacheItem) error {
	return h.fn(ctx, prev, next)
}
