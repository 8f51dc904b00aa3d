package sshtunnel

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestWaitForSocketReturnsOnceFileAppears(t *testing.T) {
	path := filepath.Join(t.TempDir(), "forwarded.sock")

	go func() {
		time.Sleep(50 * time.Millisecond)
		require.NoError(t, os.WriteFile(path, nil, 0o600))
	}()

	err := waitForSocket(context.Background(), path)
	assert.NoError(t, err)
}

func TestWaitForSocketRespectsContextCancellation(t *testing.T) {
	path := filepath.Join(t.TempDir(), "never-appears.sock")

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	err := waitForSocket(ctx, path)
	assert.Error(t, err)
}
