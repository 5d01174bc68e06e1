package provider

import (
	"context"
	"fmt"
)

// Installer 控制面板证书安装接口
type Installer interface {
	// Name 返回安装器名称
	Name() string

	// Install 提交证书、私钥和 CA 证书链，面板有响应不代表已生效
	Install(ctx context.Context) error
}

// InstallReason 安装失败原因
type InstallReason string

const (
	ReasonMissingBundle InstallReason = "missing-bundle"
	ReasonTransport     InstallReason = "transport"
)

// InstallError 安装错误
type InstallError struct {
	Reason InstallReason
	Err    error
}

func (e *InstallError) Error() string {
	if e.Err == nil {
		return fmt.Sprintf("install certificate: %s", e.Reason)
	}
	return fmt.Sprintf("install certificate: %s: %v", e.Reason, e.Err)
}

func (e *InstallError) Unwrap() error {
	return e.Err
}
