package lifecycle

import (
	"context"
	"os"
	"strconv"
	"syscall"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLockAcquireAndRelease(t *testing.T) {
	l := NewLock(t.TempDir())
	require.NoError(t, l.Acquire())

	data, err := os.ReadFile(l.PidFile)
	require.NoError(t, err)
	assert.Equal(t, strconv.Itoa(os.Getpid()), string(data))

	pid, running := l.IsRunning()
	assert.True(t, running)
	assert.Equal(t, os.Getpid(), pid)

	l.Release()
	assert.NoFileExists(t, l.PidFile)
}

func TestLockRefusesSecondHolder(t *testing.T) {
	dir := t.TempDir()
	first := NewLock(dir)
	require.NoError(t, first.Acquire())
	defer first.Release()

	second := NewLock(dir)
	assert.ErrorIs(t, second.Acquire(), ErrLocked)

	// 未持有锁时释放不影响持有者的文件
	second.Release()
	assert.FileExists(t, first.PidFile)
}

func TestLockReplacesStalePidFile(t *testing.T) {
	l := NewLock(t.TempDir())
	require.NoError(t, os.WriteFile(l.PidFile, []byte("not-a-pid"), 0o644))

	require.NoError(t, l.Acquire())
	defer l.Release()

	pid, running := l.IsRunning()
	assert.True(t, running)
	assert.Equal(t, os.Getpid(), pid)
}

func TestSignalHandlerCancelsOnSignal(t *testing.T) {
	h := NewSignalHandler(context.Background(), nil)
	h.Start()
	defer h.Stop()

	h.sigs <- syscall.SIGTERM

	select {
	case <-h.Context().Done():
	case <-time.After(time.Second):
		t.Fatal("context not cancelled")
	}
}

func TestSignalHandlerStop(t *testing.T) {
	h := NewSignalHandler(context.Background(), nil)
	h.Start()
	h.Stop()
	assert.Error(t, h.Context().Err())
}
