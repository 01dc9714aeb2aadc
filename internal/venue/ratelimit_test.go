package venue

import (
	"context"
	"testing"
	"time"
)

func TestNewLimitsBurstAllowsImmediateConsumption(t *testing.T) {
	t.Parallel()
	limits := NewLimits()

	for i := 0; i < 5; i++ {
		start := time.Now()
		if err := limits.Book.Wait(context.Background()); err != nil {
			t.Fatalf("Wait returned error: %v", err)
		}
		if elapsed := time.Since(start); elapsed > 50*time.Millisecond {
			t.Errorf("Wait took %v, expected immediate within burst (token %d)", elapsed, i)
		}
	}
}

func TestLimitsContextCancelled(t *testing.T) {
	t.Parallel()
	limits := NewLimits()

	for i := 0; i < 150; i++ {
		_ = limits.Book.Wait(context.Background())
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()

	if err := limits.Book.Wait(ctx); err == nil {
		t.Errorf("expected context deadline error once burst is exhausted")
	}
}
