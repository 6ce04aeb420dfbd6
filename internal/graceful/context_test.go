package graceful

import (
	"context"
	"errors"
	"syscall"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestContext_CanceledOnSignal(t *testing.T) {
	ctx, cancel := Context(context.Background())
	defer cancel()

	go func() {
		time.Sleep(100 * time.Millisecond)
		if err := syscall.Kill(syscall.Getpid(), syscall.SIGINT); err != nil {
			t.Errorf("Failed to send SIGINT: %v", err)
		}
	}()

	select {
	case <-ctx.Done():
		assert.True(t, errors.Is(ctx.Err(), context.Canceled))
	case <-time.After(5 * time.Second):
		t.Fatal("timed out waiting for context to be canceled")
	}
}

func TestContext_CancelWithoutSignal(t *testing.T) {
	ctx, cancel := Context(context.Background())
	cancel()

	select {
	case <-ctx.Done():
	case <-time.After(time.Second):
		require.Fail(t, "context not canceled")
	}
}
