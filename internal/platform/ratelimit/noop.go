package ratelimit

import (
	"context"

	"github.com/marcelojr/awards-night/internal/domain"
)

// Noop represents a disabled guard.
type Noop struct{}

func NewNoop() Noop {
	return Noop{}
}

func (Noop) Allow(ctx context.Context, operation, identity string) error {
	// Empty implementation used when rate limiting is switched off via config.
	return nil
}

var _ domain.Guard = Noop{}
