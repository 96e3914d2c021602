package worker

import (
	"context"
	"errors"
	"net"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"git.tatikoma.dev/corpix/keeper/config"
	"git.tatikoma.dev/corpix/keeper/process"
	"git.tatikoma.dev/corpix/keeper/watcher"
)

type fakeSupervisor struct {
	mu         sync.Mutex
	startErr   error
	restartErr error
	starts     []process.Mode
	restarts   chan process.Mode
	shutdowns  int
}

func (f *fakeSupervisor) Start(mode process.Mode) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.starts = append(f.starts, mode)
	return f.startErr
}

func (f *fakeSupervisor) Restart(mode process.Mode) error {
	if f.restartErr != nil {
		return f.restartErr
	}
	select {
	case f.restarts <- mode:
	default:
	}
	return nil
}

func (f *fakeSupervisor) Shutdown() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.shutdowns++
	return nil
}

func listen(t *testing.T) string {
	l, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	t.Cleanup(func() { _ = l.Close() })
	go func() {
		for {
			conn, err := l.Accept()
			if err != nil {
				return
			}
			_ = conn.Close()
		}
	}()
	return l.Addr().String()
}

func workerConfig(addr string) config.Worker {
	cfg := config.Default().Worker
	cfg.ReadyAddr = addr
	cfg.ReadyTimeout = time.Second
	cfg.Debounce = 10 * time.Millisecond
	return cfg
}

type runResult struct {
	ready chan struct{}
	done  chan error
}

func run(ctx context.Context, s *Service) runResult {
	r := runResult{ready: make(chan struct{}), done: make(chan error, 1)}
	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		wg.Wait()
		close(r.ready)
	}()
	go func() { r.done <- s.Run(ctx, &wg) }()
	return r
}

func TestServiceRun(t *testing.T) {
	sup := &fakeSupervisor{restarts: make(chan process.Mode, 1)}
	cfg := workerConfig(listen(t))
	cfg.Mode = process.ModeGrouped
	s := New(cfg, sup, process.NewResolver(), nil)

	ctx, cancel := context.WithCancel(context.Background())
	r := run(ctx, s)

	select {
	case <-r.ready:
	case err := <-r.done:
		t.Fatalf("service exited: %v", err)
	case <-time.After(2 * time.Second):
		t.Fatal("service did not become ready")
	}
	assert.Equal(t, []process.Mode{process.ModeGrouped}, sup.starts)

	s.Signal(os.Interrupt)
	select {
	case mode := <-sup.restarts:
		assert.Equal(t, process.ModeGrouped, mode)
	case <-time.After(2 * time.Second):
		t.Fatal("restart was not requested")
	}

	cancel()
	require.NoError(t, <-r.done)

	require.NoError(t, s.Close())
	assert.Equal(t, 1, sup.shutdowns)
}

func TestServiceStartFailure(t *testing.T) {
	errSpawn := errors.New("failed to spawn worker after 3 attempt(s)")
	sup := &fakeSupervisor{startErr: errSpawn}
	s := New(workerConfig(""), sup, process.NewResolver(), nil)

	r := run(context.Background(), s)
	assert.ErrorIs(t, <-r.done, errSpawn)
	select {
	case <-r.ready:
		t.Error("service should not be ready")
	default:
	}
}

func TestServiceRestartFailure(t *testing.T) {
	errSpawn := errors.New("failed to spawn worker after 3 attempt(s)")
	sup := &fakeSupervisor{restartErr: errSpawn}
	s := New(workerConfig(""), sup, process.NewResolver(), nil)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	r := run(ctx, s)
	<-r.ready

	s.Restart()
	select {
	case err := <-r.done:
		assert.ErrorIs(t, err, errSpawn)
		assert.ErrorContains(t, err, "failed to restart worker")
	case <-time.After(2 * time.Second):
		t.Fatal("failed restart did not stop the service")
	}
}

func TestServiceNotReady(t *testing.T) {
	l, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	addr := l.Addr().String()
	require.NoError(t, l.Close())

	cfg := workerConfig(addr)
	cfg.ReadyTimeout = 200 * time.Millisecond
	s := New(cfg, &fakeSupervisor{}, process.NewResolver(), nil)

	r := run(context.Background(), s)
	assert.ErrorContains(t, <-r.done, "did not accept connections")
}

func TestServiceWatchBinary(t *testing.T) {
	dir := t.TempDir()
	binary := filepath.Join(dir, "core")
	require.NoError(t, os.WriteFile(binary, []byte("#!/bin/sh\n"), 0o755))

	w, err := watcher.New()
	require.NoError(t, err)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go func() { _ = w.Run(ctx) }()
	defer w.Close()

	sup := &fakeSupervisor{restarts: make(chan process.Mode, 1)}
	cfg := workerConfig("")
	cfg.Name = "core"
	cfg.Watch = true
	s := New(cfg, sup, process.NewResolver(dir), w)

	path, err := s.Binary()
	require.NoError(t, err)
	assert.Equal(t, binary, path)

	r := run(ctx, s)
	<-r.ready

	// watch registration happens right after ready
	require.Eventually(t, func() bool {
		if err := os.WriteFile(binary, []byte("#!/bin/sh\n# v2\n"), 0o755); err != nil {
			return false
		}
		select {
		case mode := <-sup.restarts:
			return mode == process.ModeSidecar
		case <-time.After(100 * time.Millisecond):
			return false
		}
	}, 3*time.Second, 10*time.Millisecond)

	cancel()
	require.NoError(t, <-r.done)
}

func TestProbe(t *testing.T) {
	require.NoError(t, Probe(context.Background(), listen(t), time.Second, 10*time.Millisecond))
}
