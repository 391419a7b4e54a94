package common

import (
	"context"
	"os"
	"strings"
	"syscall"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestWithInterrupt_CancelledBySignal(t *testing.T) {
	ctx, stop := WithInterrupt(context.Background())
	defer stop()

	require.NoError(t, syscall.Kill(os.Getpid(), syscall.SIGTERM))

	select {
	case <-ctx.Done():
	case <-time.After(2 * time.Second):
		t.Fatal("context was not cancelled")
	}
}

func TestWithInterrupt_StopCancels(t *testing.T) {
	ctx, stop := WithInterrupt(context.Background())
	stop()
	assert.Error(t, ctx.Err())
}

func TestShortCommit(t *testing.T) {
	assert.Equal(t, "0123abcd", ShortCommit("0123abcdef456789"))
	assert.Equal(t, "abc", ShortCommit("abc"))
}

func TestUserAgent(t *testing.T) {
	assert.True(t, strings.HasPrefix(UserAgent(), "skypost/"))
}

func TestIsTerminal(t *testing.T) {
	assert.False(t, IsTerminal(strings.NewReader("piped")))

	f, err := os.CreateTemp(t.TempDir(), "stdin")
	require.NoError(t, err)
	defer f.Close()
	assert.False(t, IsTerminal(f))
}
