package core

import (
	"bytes"
	"context"
	"fmt"
	"os/exec"
	"strings"

	"go.uber.org/zap"
)

// Executor 命令执行器
type Executor struct {
	logger *zap.Logger
}

// NewExecutor 创建执行器
func NewExecutor(logger *zap.Logger) *Executor {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Executor{logger: logger}
}

// RunPostCommand 替换 ${NAME} 变量后通过 sh -c 执行
func (e *Executor) RunPostCommand(ctx context.Context, command string, vars map[string]string) error {
	if command == "" {
		return nil
	}

	for key, value := range vars {
		command = strings.ReplaceAll(command, "${"+key+"}", value)
	}

	e.logger.Info("running post command", zap.String("command", command))

	var out bytes.Buffer
	cmd := exec.CommandContext(ctx, "sh", "-c", command)
	cmd.Stdout = &out
	cmd.Stderr = &out

	if err := cmd.Run(); err != nil {
		return fmt.Errorf("post command: %w: %s", err, strings.TrimSpace(out.String()))
	}

	e.logger.Info("post command finished", zap.String("output", strings.TrimSpace(out.String())))
	return nil
}

// BuildVars 构建后置命令变量
func (e *Executor) BuildVars(domain, certDir, certFile, keyFile, fullchainFile string) map[string]string {
	return map[string]string{
		"DOMAIN":         domain,
		"CERT_DIR":       certDir,
		"CERT_FILE":      certFile,
		"KEY_FILE":       keyFile,
		"FULLCHAIN_FILE": fullchainFile,
	}
}
