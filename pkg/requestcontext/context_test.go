package requestcontext

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestNowFallsBackToWallClock(t *testing.T) {
	before := time.Now()
	got := Now(context.Background())
	assert.False(t, got.Before(before))
}

func TestInjectedValues(t *testing.T) {
	fixed := time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)
	ctx := WithTime(context.Background(), fixed)
	ctx = WithRequestID(ctx, "req-1")
	ctx = WithClientIP(ctx, "10.0.0.1")

	assert.Equal(t, fixed, Now(ctx))
	assert.Equal(t, "req-1", RequestID(ctx))
	assert.Equal(t, "10.0.0.1", ClientIP(ctx))
	assert.Empty(t, RequestID(context.Background()))
}
