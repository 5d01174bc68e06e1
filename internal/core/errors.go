package core

import (
	"errors"
	"fmt"
)

// Stage 订单失败的阶段
type Stage string

const (
	StageOrder         Stage = "order"
	StageAuthorization Stage = "authorization"
	StageFinalize      Stage = "finalize"
	StageCertificate   Stage = "certificate"
)

var (
	// ErrUnexpectedInvalid 验证后授权仍无效
	ErrUnexpectedInvalid = errors.New("authorizations unexpectedly invalid after verification")

	// ErrNotFinalized finalize 请求成功但订单未 finalize
	ErrNotFinalized = errors.New("order not finalized")

	// ErrIllegalTransition 非法的订单状态迁移
	ErrIllegalTransition = errors.New("illegal order state transition")
)

// OrderError 订单错误
type OrderError struct {
	Stage Stage
	Err   error
}

func (e *OrderError) Error() string {
	return fmt.Sprintf("order %s stage: %v", e.Stage, e.Err)
}

func (e *OrderError) Unwrap() error {
	return e.Err
}
