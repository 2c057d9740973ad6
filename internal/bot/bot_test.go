package bot

import (
	"context"
	"errors"
	"net"
	"net/http"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/edgard/psyprofile/internal/bot/tasks"
	"github.com/edgard/psyprofile/internal/config"
	"github.com/edgard/psyprofile/internal/logger"
)

type blockingListener struct{ started atomic.Bool }

func (l *blockingListener) Start(ctx context.Context) {
	l.started.Store(true)
	<-ctx.Done()
}

type returningListener struct{}

func (returningListener) Start(context.Context) {}

type fakeScheduler struct {
	startErr         error
	started, stopped atomic.Bool
}

func (s *fakeScheduler) Start() error {
	s.started.Store(true)
	return s.startErr
}

func (s *fakeScheduler) Stop() error {
	s.stopped.Store(true)
	return nil
}

func freeAddr(t *testing.T) string {
	t.Helper()
	l, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	addr := l.Addr().String()
	require.NoError(t, l.Close())
	return addr
}

func TestBotRun(t *testing.T) {
	t.Parallel()

	t.Run("graceful shutdown", func(t *testing.T) {
		t.Parallel()
		listener := &blockingListener{}
		sched := &fakeScheduler{}
		addr := freeAddr(t)
		server := &http.Server{
			Addr:              addr,
			Handler:           http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) { w.WriteHeader(http.StatusNoContent) }),
			ReadHeaderTimeout: time.Second,
		}
		b := NewBot(logger.Discard(), listener, server, sched, time.Second)

		ctx, cancel := context.WithCancel(context.Background())
		done := make(chan error, 1)
		go func() { done <- b.Run(ctx) }()

		require.Eventually(t, func() bool {
			resp, err := http.Get("http://" + addr)
			if err != nil {
				return false
			}
			resp.Body.Close()
			return resp.StatusCode == http.StatusNoContent
		}, 2*time.Second, 10*time.Millisecond)

		cancel()
		select {
		case err := <-done:
			require.NoError(t, err)
		case <-time.After(3 * time.Second):
			t.Fatal("Run did not return after cancel")
		}
		assert.True(t, listener.started.Load())
		assert.True(t, sched.started.Load())
		assert.True(t, sched.stopped.Load())
	})

	t.Run("listener exit is an error", func(t *testing.T) {
		t.Parallel()
		b := NewBot(logger.Discard(), returningListener{}, nil, &fakeScheduler{}, time.Second)
		err := b.Run(context.Background())
		assert.Error(t, err)
	})

	t.Run("scheduler start failure", func(t *testing.T) {
		t.Parallel()
		sched := &fakeScheduler{startErr: errors.New("bad cron")}
		b := NewBot(logger.Discard(), &blockingListener{}, nil, sched, time.Second)
		err := b.Run(context.Background())
		assert.ErrorContains(t, err, "bad cron")
	})
}

func TestScheduler(t *testing.T) {
	t.Parallel()

	var runs atomic.Int32
	taskMap := map[string]tasks.ScheduledTaskFunc{
		"tick": func(context.Context) error {
			runs.Add(1)
			return nil
		},
	}
	cfg := &config.SchedulerConfig{Tasks: map[string]config.TaskConfig{
		"tick":     {Enabled: true, Schedule: "* * * * * *"},
		"disabled": {Enabled: false, Schedule: "* * * * * *"},
		"unknown":  {Enabled: true, Schedule: "* * * * * *"},
		"bad":      {Enabled: true, Schedule: "not a cron"},
	}}
	taskMap["bad"] = taskMap["tick"]

	s, err := NewScheduler(logger.Discard(), cfg, taskMap)
	require.NoError(t, err)
	require.NoError(t, s.Start())
	assert.Error(t, s.Start(), "double start")
	assert.Equal(t, 1, s.scheduled)

	assert.Eventually(t, func() bool { return runs.Load() > 0 }, 3*time.Second, 50*time.Millisecond)
	require.NoError(t, s.Stop())
	require.NoError(t, s.Stop())
}
