// Package lifecycle 运行锁和信号处理
package lifecycle

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"syscall"
)

// PidFileName 运行期间在证书目录创建的 PID 文件
const PidFileName = "le-cpanel-updater.pid"

// ErrLocked 其他进程持有锁
var ErrLocked = errors.New("another run is in progress")

// Lock 基于 PID 文件的运行锁
type Lock struct {
	PidFile string
	held    bool
}

// NewLock 创建运行锁
func NewLock(dir string) *Lock {
	return &Lock{PidFile: filepath.Join(dir, PidFileName)}
}

// Acquire 写入当前 PID，已退出进程留下的文件会被替换
func (l *Lock) Acquire() error {
	if err := os.MkdirAll(filepath.Dir(l.PidFile), 0o755); err != nil {
		return fmt.Errorf("create lock directory: %w", err)
	}

	for attempt := 0; attempt < 2; attempt++ {
		f, err := os.OpenFile(l.PidFile, os.O_CREATE|os.O_EXCL|os.O_WRONLY, 0o644)
		if err == nil {
			_, werr := f.WriteString(strconv.Itoa(os.Getpid()))
			cerr := f.Close()
			if werr != nil || cerr != nil {
				_ = os.Remove(l.PidFile)
				return fmt.Errorf("write pid file: %w", errors.Join(werr, cerr))
			}
			l.held = true
			return nil
		}
		if !errors.Is(err, os.ErrExist) {
			return fmt.Errorf("create pid file: %w", err)
		}

		if pid, running := l.IsRunning(); running {
			return fmt.Errorf("%w (pid %d)", ErrLocked, pid)
		}
		// 残留
		if err := os.Remove(l.PidFile); err != nil && !errors.Is(err, os.ErrNotExist) {
			return fmt.Errorf("remove stale pid file: %w", err)
		}
	}
	return ErrLocked
}

// Release 删除本锁创建的 PID 文件
func (l *Lock) Release() {
	if !l.held {
		return
	}
	_ = os.Remove(l.PidFile)
	l.held = false
}

// IsRunning 检查 PID 文件中的进程是否在运行
func (l *Lock) IsRunning() (int, bool) {
	data, err := os.ReadFile(l.PidFile)
	if err != nil {
		return 0, false
	}

	pid, err := strconv.Atoi(strings.TrimSpace(string(data)))
	if err != nil || pid <= 0 {
		return 0, false
	}

	process, err := os.FindProcess(pid)
	if err != nil {
		return 0, false
	}

	// 信号 0 只检查进程是否存在
	err = process.Signal(syscall.Signal(0))
	return pid, err == nil || errors.Is(err, syscall.EPERM)
}
