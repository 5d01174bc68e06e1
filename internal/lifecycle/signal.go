package lifecycle

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"go.uber.org/zap"
)

// SignalHandler 收到 SIGINT 或 SIGTERM 时取消上下文
type SignalHandler struct {
	ctx    context.Context
	cancel context.CancelFunc
	sigs   chan os.Signal
	logger *zap.Logger
}

// NewSignalHandler 创建信号处理器
func NewSignalHandler(parent context.Context, logger *zap.Logger) *SignalHandler {
	if logger == nil {
		logger = zap.NewNop()
	}
	ctx, cancel := context.WithCancel(parent)
	return &SignalHandler{
		ctx:    ctx,
		cancel: cancel,
		sigs:   make(chan os.Signal, 1),
		logger: logger,
	}
}

// Context 返回可取消的上下文
func (h *SignalHandler) Context() context.Context {
	return h.ctx
}

// Start 开始监听信号
func (h *SignalHandler) Start() {
	signal.Notify(h.sigs, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		select {
		case sig := <-h.sigs:
			h.logger.Warn("received signal, aborting run", zap.String("signal", sig.String()))
			h.cancel()
		case <-h.ctx.Done():
		}
	}()
}

// Stop 停止监听并取消上下文
func (h *SignalHandler) Stop() {
	signal.Stop(h.sigs)
	h.cancel()
}
