package config

import (
	"context"
	"os"
	"path/filepath"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vyrodovalexey/webedge/internal/observability"
)

// validSiteYAML is a minimal valid site for testing
const validSiteYAML = `
apiVersion: webedge.io/v1
kind: Site
metadata:
  name: test-site
spec:
  redirects:
    - source: /send
      destination: /swap
      permanent: true
`

// invalidSiteYAML has a destination referencing an uncaptured name
const invalidSiteYAML = `
apiVersion: webedge.io/v1
kind: Site
metadata:
  name: test-site
spec:
  redirects:
    - source: /swap/:currency
      destination: /swap?outputCurrency=:outputCurrency
`

func writeSite(t *testing.T, content string) string {
	t.Helper()

	path := filepath.Join(t.TempDir(), "site.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestNewWatcher(t *testing.T) {
	t.Parallel()

	path := writeSite(t, validSiteYAML)

	watcher, err := NewWatcher(path, func(*Site) {})
	require.NoError(t, err)
	require.NotNil(t, watcher)

	assert.Equal(t, path, watcher.path)
	assert.NotNil(t, watcher.callback)
	assert.NotNil(t, watcher.loader)
	assert.Equal(t, 100*time.Millisecond, watcher.debounceDelay)
}

func TestNewWatcher_WithOptions(t *testing.T) {
	t.Parallel()

	path := writeSite(t, validSiteYAML)
	logger := observability.NopLogger()
	loader := NewLoader()

	watcher, err := NewWatcher(path, func(*Site) {},
		WithDebounceDelay(200*time.Millisecond),
		WithLogger(logger),
		WithLoader(loader),
		WithErrorCallback(func(error) {}),
	)
	require.NoError(t, err)

	assert.Equal(t, 200*time.Millisecond, watcher.debounceDelay)
	assert.Equal(t, logger, watcher.logger)
	assert.Same(t, loader, watcher.loader)
	assert.NotNil(t, watcher.errorCallback)
}

func TestWatcher_Start(t *testing.T) {
	// Not parallel due to file system operations

	path := writeSite(t, validSiteYAML)

	watcher, err := NewWatcher(path, func(*Site) {}, WithDebounceDelay(10*time.Millisecond))
	require.NoError(t, err)
	assert.Nil(t, watcher.LastSite())

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	require.NoError(t, watcher.Start(ctx))
	// Start again should return nil (already running)
	assert.NoError(t, watcher.Start(ctx))

	site := watcher.LastSite()
	require.NotNil(t, site)
	assert.Equal(t, "test-site", site.Metadata.Name)

	require.NoError(t, watcher.Stop())
	// Stop again is a no-op
	assert.NoError(t, watcher.Stop())
}

func TestWatcher_Start_Errors(t *testing.T) {
	// Not parallel due to file system operations

	tests := []struct {
		name string
		path func(t *testing.T) string
	}{
		{
			name: "invalid site",
			path: func(t *testing.T) string { return writeSite(t, invalidSiteYAML) },
		},
		{
			name: "file not found",
			path: func(t *testing.T) string { return filepath.Join(t.TempDir(), "missing.yaml") },
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			watcher, err := NewWatcher(tt.path(t), func(*Site) {})
			require.NoError(t, err)

			assert.Error(t, watcher.Start(context.Background()))
			assert.Nil(t, watcher.LastSite())
			assert.NoError(t, watcher.Stop())
		})
	}
}

func TestWatcher_FileChange(t *testing.T) {
	// Not parallel due to file system operations and timing

	path := writeSite(t, validSiteYAML)

	var mu sync.Mutex
	var received *Site
	called := make(chan struct{}, 1)

	watcher, err := NewWatcher(path, func(site *Site) {
		mu.Lock()
		received = site
		mu.Unlock()
		select {
		case called <- struct{}{}:
		default:
		}
	}, WithDebounceDelay(50*time.Millisecond))
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	require.NoError(t, watcher.Start(ctx))

	updated := `
apiVersion: webedge.io/v1
kind: Site
metadata:
  name: updated-site
spec:
  redirects:
    - source: /pool
      destination: /liquidity
      permanent: true
`
	// Wait a bit before modifying to ensure watcher is ready
	time.Sleep(100 * time.Millisecond)
	require.NoError(t, os.WriteFile(path, []byte(updated), 0o644))

	select {
	case <-called:
		mu.Lock()
		require.NotNil(t, received)
		assert.Equal(t, "updated-site", received.Metadata.Name)
		assert.Equal(t, "/pool", received.Spec.Redirects[0].Source)
		mu.Unlock()
	case <-time.After(2 * time.Second):
		t.Fatal("callback was not called after file change")
	}

	assert.Equal(t, "updated-site", watcher.LastSite().Metadata.Name)
	require.NoError(t, watcher.Stop())
}

func TestWatcher_FileChange_InvalidSite(t *testing.T) {
	// Not parallel due to file system operations and timing

	path := writeSite(t, validSiteYAML)

	var callbackCalled atomic.Bool
	errs := make(chan error, 1)

	watcher, err := NewWatcher(path,
		func(*Site) { callbackCalled.Store(true) },
		WithDebounceDelay(50*time.Millisecond),
		WithErrorCallback(func(err error) {
			select {
			case errs <- err:
			default:
			}
		}),
	)
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	require.NoError(t, watcher.Start(ctx))

	time.Sleep(100 * time.Millisecond)
	require.NoError(t, os.WriteFile(path, []byte(invalidSiteYAML), 0o644))

	select {
	case err := <-errs:
		assert.Contains(t, err.Error(), "spec.redirects[0]")
	case <-time.After(2 * time.Second):
		t.Fatal("error callback was not called for an invalid site")
	}

	assert.False(t, callbackCalled.Load())
	assert.Equal(t, "test-site", watcher.LastSite().Metadata.Name, "previous site must stay current")
	require.NoError(t, watcher.Stop())
}

func TestWatcher_UnchangedContentSkipped(t *testing.T) {
	// Not parallel due to file system operations and timing

	path := writeSite(t, validSiteYAML)

	var calls atomic.Int32
	watcher, err := NewWatcher(path, func(*Site) { calls.Add(1) },
		WithDebounceDelay(20*time.Millisecond))
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	require.NoError(t, watcher.Start(ctx))

	time.Sleep(100 * time.Millisecond)
	require.NoError(t, os.WriteFile(path, []byte(validSiteYAML), 0o644))
	time.Sleep(300 * time.Millisecond)

	assert.Equal(t, int32(0), calls.Load())
	require.NoError(t, watcher.Stop())
}

func TestWatcher_ForceReload(t *testing.T) {
	t.Parallel()

	path := writeSite(t, validSiteYAML)

	var calls atomic.Int32
	watcher, err := NewWatcher(path, func(*Site) { calls.Add(1) })
	require.NoError(t, err)

	require.NoError(t, watcher.ForceReload())
	assert.Equal(t, int32(1), calls.Load())
	assert.Equal(t, "test-site", watcher.LastSite().Metadata.Name)

	require.NoError(t, os.WriteFile(path, []byte(invalidSiteYAML), 0o644))
	assert.Error(t, watcher.ForceReload())
	assert.Equal(t, int32(1), calls.Load())
}

func TestWatcher_ContextCancel(t *testing.T) {
	// Not parallel due to file system operations

	path := writeSite(t, validSiteYAML)

	watcher, err := NewWatcher(path, func(*Site) {})
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	require.NoError(t, watcher.Start(ctx))
	cancel()

	select {
	case <-watcher.stoppedCh:
	case <-time.After(2 * time.Second):
		t.Fatal("watch loop did not exit on context cancellation")
	}
	require.NoError(t, watcher.Stop())
}
