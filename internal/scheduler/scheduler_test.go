package scheduler

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// yearly never fires during a test run.
const yearly = "0 0 1 1 *"

func newTestScheduler(t *testing.T) *Scheduler {
	t.Helper()
	s, err := New(zerolog.Nop())
	require.NoError(t, err)
	return s
}

func waitForRun(t *testing.T, s *Scheduler, id string) *TaskInfo {
	t.Helper()
	var info *TaskInfo
	require.Eventually(t, func() bool {
		var err error
		info, err = s.GetTask(id)
		return err == nil && info.LastRun != nil && !info.Running
	}, 2*time.Second, 10*time.Millisecond)
	return info
}

func TestRegisterTask(t *testing.T) {
	s := newTestScheduler(t)
	defer s.Stop()

	noop := func(context.Context) error { return nil }
	require.NoError(t, s.RegisterTask(TaskConfig{ID: "b", Name: "B", Cron: yearly, Func: noop}))
	require.NoError(t, s.RegisterTask(TaskConfig{ID: "a", Name: "A", Cron: yearly, Func: noop}))

	err := s.RegisterTask(TaskConfig{ID: "a", Cron: yearly, Func: noop})
	assert.ErrorIs(t, err, ErrTaskExists)

	err = s.RegisterTask(TaskConfig{ID: "bad", Cron: "not a cron", Func: noop})
	assert.Error(t, err)

	err = s.RegisterTask(TaskConfig{ID: "nofunc", Cron: yearly})
	assert.Error(t, err)

	tasks := s.ListTasks()
	require.Len(t, tasks, 2)
	assert.Equal(t, "a", tasks[0].ID)
	assert.Equal(t, "b", tasks[1].ID)
}

func TestRunNow(t *testing.T) {
	s := newTestScheduler(t)
	s.Start()
	defer s.Stop()

	var calls atomic.Int32
	require.NoError(t, s.RegisterTask(TaskConfig{
		ID:   "count",
		Cron: yearly,
		Func: func(context.Context) error {
			calls.Add(1)
			return nil
		},
	}))

	require.NoError(t, s.RunNow("count"))
	info := waitForRun(t, s, "count")
	assert.Equal(t, int32(1), calls.Load())
	assert.Empty(t, info.LastError)
	assert.NotNil(t, info.NextRun)

	assert.ErrorIs(t, s.RunNow("missing"), ErrTaskNotFound)
	_, err := s.GetTask("missing")
	assert.ErrorIs(t, err, ErrTaskNotFound)
}

func TestRunNow_RecordsError(t *testing.T) {
	s := newTestScheduler(t)
	defer s.Stop()

	require.NoError(t, s.RegisterTask(TaskConfig{
		ID:   "fail",
		Cron: yearly,
		Func: func(context.Context) error { return errors.New("provider down") },
	}))

	require.NoError(t, s.RunNow("fail"))
	info := waitForRun(t, s, "fail")
	assert.Equal(t, "provider down", info.LastError)
}

func TestRunNow_AlreadyRunning(t *testing.T) {
	s := newTestScheduler(t)
	s.Start()

	release := make(chan struct{})
	require.NoError(t, s.RegisterTask(TaskConfig{
		ID:   "slow",
		Cron: yearly,
		Func: func(context.Context) error {
			<-release
			return nil
		},
	}))

	require.NoError(t, s.RunNow("slow"))
	require.Eventually(t, func() bool {
		info, _ := s.GetTask("slow")
		return info.Running
	}, 2*time.Second, 10*time.Millisecond)

	assert.ErrorIs(t, s.RunNow("slow"), ErrTaskRunning)
	close(release)
	waitForRun(t, s, "slow")
	require.NoError(t, s.Stop())
}

func TestStartRunsStartupTasks(t *testing.T) {
	s := newTestScheduler(t)
	defer s.Stop()

	require.NoError(t, s.RegisterTask(TaskConfig{
		ID:         "startup",
		Cron:       yearly,
		RunOnStart: true,
		Func:       func(context.Context) error { return nil },
	}))
	s.Start()
	waitForRun(t, s, "startup")
}

func TestStopCancelsRunningTasks(t *testing.T) {
	s := newTestScheduler(t)
	s.Start()

	var cancelled atomic.Bool
	require.NoError(t, s.RegisterTask(TaskConfig{
		ID:   "blocking",
		Cron: yearly,
		Func: func(ctx context.Context) error {
			<-ctx.Done()
			cancelled.Store(true)
			return ctx.Err()
		},
	}))

	require.NoError(t, s.RunNow("blocking"))
	require.Eventually(t, func() bool {
		info, _ := s.GetTask("blocking")
		return info.Running
	}, 2*time.Second, 10*time.Millisecond)

	require.NoError(t, s.Stop())
	assert.True(t, cancelled.Load())
}
